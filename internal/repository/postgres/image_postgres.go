package postgres

import (
	"context"
	"database/sql"

	"sunnyapi/internal/model"
	"sunnyapi/internal/repository"
)

const imageColumns = `id, listing_kind, listing_id, object_key, content_type, size, created_at`

type ImagePostgres struct {
	db *sql.DB
}

func NewImagePostgres(db *sql.DB) *ImagePostgres {
	return &ImagePostgres{db: db}
}

var _ repository.ImageRepository = (*ImagePostgres)(nil)

func scanImage(s scanner) (*model.Image, error) {
	var (
		img  model.Image
		kind string
	)
	if err := s.Scan(&img.ID, &kind, &img.ListingID, &img.ObjectKey, &img.ContentType, &img.Size, &img.CreatedAt); err != nil {
		return nil, mapError(err)
	}
	img.Kind = model.Kind(kind)
	return &img, nil
}

func (r *ImagePostgres) Create(ctx context.Context, img *model.Image) (*model.Image, error) {
	const q = `
		INSERT INTO listing_images (id, listing_kind, listing_id, object_key, content_type, size, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING ` + imageColumns
	row := r.db.QueryRowContext(ctx, q,
		img.ID,
		string(img.Kind),
		img.ListingID,
		img.ObjectKey,
		img.ContentType,
		img.Size,
		img.CreatedAt,
	)
	return scanImage(row)
}

func (r *ImagePostgres) FindByID(ctx context.Context, id string) (*model.Image, error) {
	const q = `SELECT ` + imageColumns + ` FROM listing_images WHERE id = $1`
	return scanImage(r.db.QueryRowContext(ctx, q, id))
}

func (r *ImagePostgres) ListByListing(ctx context.Context, kind model.Kind, listingID string) ([]model.Image, error) {
	const q = `SELECT ` + imageColumns + ` FROM listing_images WHERE listing_kind = $1 AND listing_id = $2 ORDER BY created_at, id`
	rows, err := r.db.QueryContext(ctx, q, string(kind), listingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]model.Image, 0)
	for rows.Next() {
		img, err := scanImage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *img)
	}
	return out, rows.Err()
}

func (r *ImagePostgres) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM listing_images WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return expectOne(res)
}
