package postgres

import (
	"context"
	"database/sql"

	"sunnyapi/internal/model"
	"sunnyapi/internal/repository"
)

// FavoritePostgres stores polymorphic favorites; the listing summary is joined from either table.
type FavoritePostgres struct {
	db *sql.DB
}

func NewFavoritePostgres(db *sql.DB) *FavoritePostgres {
	return &FavoritePostgres{db: db}
}

var _ repository.FavoriteRepository = (*FavoritePostgres)(nil)

func (r *FavoritePostgres) Add(ctx context.Context, f *model.Favorite) (*model.Favorite, error) {
	const q = `
		INSERT INTO favorites (id, user_id, target_kind, target_id, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, user_id, target_kind, target_id, created_at`
	var (
		out  model.Favorite
		kind string
	)
	err := r.db.QueryRowContext(ctx, q, f.ID, f.UserID, string(f.TargetKind), f.TargetID, f.CreatedAt).
		Scan(&out.ID, &out.UserID, &kind, &out.TargetID, &out.CreatedAt)
	if err != nil {
		return nil, mapError(err)
	}
	out.TargetKind = model.Kind(kind)
	return &out, nil
}

func (r *FavoritePostgres) Remove(ctx context.Context, userID string, kind model.Kind, targetID string) error {
	const q = `DELETE FROM favorites WHERE user_id = $1 AND target_kind = $2 AND target_id = $3`
	res, err := r.db.ExecContext(ctx, q, userID, string(kind), targetID)
	if err != nil {
		return err
	}
	return expectOne(res)
}

func (r *FavoritePostgres) ListByUser(ctx context.Context, userID string, pq repository.PageQuery) (*repository.PageResult[model.Favorite], error) {
	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM favorites WHERE user_id = $1`, userID).Scan(&total); err != nil {
		return nil, err
	}

	const q = `
		SELECT f.id, f.user_id, f.target_kind, f.target_id, f.created_at,
			coalesce(s.provider_id, a.provider_id)::text, coalesce(s.title, a.title),
			coalesce(s.address, a.address), coalesce(s.price, a.price),
			coalesce(s.status, a.status), coalesce(s.rating, a.rating)
		FROM favorites f
		LEFT JOIN services s ON f.target_kind = 'service' AND s.id = f.target_id
		LEFT JOIN ads a ON f.target_kind = 'ad' AND a.id = f.target_id
		WHERE f.user_id = $1
		ORDER BY f.created_at DESC, f.id DESC
		LIMIT $2 OFFSET $3`
	rows, err := r.db.QueryContext(ctx, q, userID, pq.Limit, pq.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]model.Favorite, 0)
	for rows.Next() {
		var (
			f                                model.Favorite
			kind                             string
			provider, title, address, status sql.NullString
			price, rating                    sql.NullFloat64
		)
		if err := rows.Scan(
			&f.ID,
			&f.UserID,
			&kind,
			&f.TargetID,
			&f.CreatedAt,
			&provider,
			&title,
			&address,
			&price,
			&status,
			&rating,
		); err != nil {
			return nil, err
		}
		f.TargetKind = model.Kind(kind)
		if title.Valid {
			l := &model.Listing{
				ID:         f.TargetID,
				Kind:       f.TargetKind,
				ProviderID: provider.String,
				Title:      title.String,
				Address:    address.String,
				Status:     model.Status(status.String),
				Rating:     rating.Float64,
			}
			if price.Valid {
				p := price.Float64
				l.Price = &p
			}
			f.Listing = l
		}
		items = append(items, f)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &repository.PageResult[model.Favorite]{Items: items, Total: total}, nil
}

func (r *FavoritePostgres) Exists(ctx context.Context, userID string, kind model.Kind, targetID string) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM favorites WHERE user_id = $1 AND target_kind = $2 AND target_id = $3)`
	var exists bool
	err := r.db.QueryRowContext(ctx, q, userID, string(kind), targetID).Scan(&exists)
	return exists, err
}
