package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"sunnyapi/internal/database"
	"sunnyapi/internal/model"
	"sunnyapi/internal/repository"
)

// ListingPostgres stores services and ads in their own tables with identical columns.
// Table names come from model.Kind and are never taken from user input.
type ListingPostgres struct {
	db *sql.DB
}

func NewListingPostgres(db *sql.DB) *ListingPostgres {
	return &ListingPostgres{db: db}
}

var _ repository.ListingRepository = (*ListingPostgres)(nil)

var listingOrder = map[string]string{
	"":            "l.created_at DESC, l.id DESC",
	"-created_at": "l.created_at DESC, l.id DESC",
	"created_at":  "l.created_at ASC, l.id ASC",
	"price":       "l.price ASC NULLS LAST, l.id",
	"-price":      "l.price DESC NULLS LAST, l.id",
	"rating":      "l.rating ASC, l.id",
	"-rating":     "l.rating DESC, l.id",
}

// listingSelect renders the column list for kind, including the aggregated taxonomy ids.
func listingSelect(k model.Kind) string {
	return fmt.Sprintf(`SELECT l.id, '%s' AS kind, l.provider_id, l.title, l.description, l.address, l.price, l.status,
		l.rejection_reason, l.rating, l.comments_count, l.created_at, l.updated_at, l.published_at,
		(SELECT coalesce(string_agg(j.taxonomy_id::text, ',' ORDER BY j.taxonomy_id), '') FROM %s j WHERE j.listing_id = l.id) AS taxonomy_ids
		FROM %s l`, k, k.JoinTable(), k.Table())
}

func scanListing(s scanner) (*model.Listing, error) {
	var (
		l         model.Listing
		kind      string
		status    string
		price     sql.NullFloat64
		published sql.NullTime
		taxonomy  string
	)
	if err := s.Scan(
		&l.ID,
		&kind,
		&l.ProviderID,
		&l.Title,
		&l.Description,
		&l.Address,
		&price,
		&status,
		&l.RejectionReason,
		&l.Rating,
		&l.CommentsCount,
		&l.CreatedAt,
		&l.UpdatedAt,
		&published,
		&taxonomy,
	); err != nil {
		return nil, mapError(err)
	}
	l.Kind = model.Kind(kind)
	l.Status = model.Status(status)
	if price.Valid {
		v := price.Float64
		l.Price = &v
	}
	if published.Valid {
		t := published.Time
		l.PublishedAt = &t
	}
	l.TaxonomyIDs = splitIDs(taxonomy)
	return &l, nil
}

func nullPrice(p *float64) sql.NullFloat64 {
	if p == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *p, Valid: true}
}

func (r *ListingPostgres) Create(ctx context.Context, l *model.Listing) (*model.Listing, error) {
	q := fmt.Sprintf(`
		INSERT INTO %s (id, provider_id, title, description, address, price, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)`, l.Kind.Table())

	err := database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, q,
			l.ID,
			l.ProviderID,
			l.Title,
			l.Description,
			l.Address,
			nullPrice(l.Price),
			string(l.Status),
			l.CreatedAt,
		); err != nil {
			return mapError(err)
		}
		return linkTaxonomy(ctx, tx, l.Kind, l.ID, l.TaxonomyIDs)
	})
	if err != nil {
		return nil, err
	}
	return r.FindByID(ctx, l.Kind, l.ID)
}

func linkTaxonomy(ctx context.Context, tx *sql.Tx, kind model.Kind, listingID string, ids []string) error {
	q := fmt.Sprintf(`INSERT INTO %s (listing_id, taxonomy_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`, kind.JoinTable())
	for _, id := range ids {
		if _, err := tx.ExecContext(ctx, q, listingID, id); err != nil {
			return err
		}
	}
	return nil
}

func (r *ListingPostgres) FindByID(ctx context.Context, kind model.Kind, id string) (*model.Listing, error) {
	q := listingSelect(kind) + ` WHERE l.id = $1`
	return scanListing(r.db.QueryRowContext(ctx, q, id))
}

func (r *ListingPostgres) List(ctx context.Context, kind model.Kind, f repository.ListingFilter, pq repository.PageQuery) (*repository.PageResult[model.Listing], error) {
	w := &where{}
	if len(f.Statuses) > 0 {
		statuses := make([]string, 0, len(f.Statuses))
		for _, s := range f.Statuses {
			statuses = append(statuses, string(s))
		}
		w.in("l.status", statuses)
	}
	if f.ProviderID != "" {
		w.add("l.provider_id = " + w.arg(f.ProviderID))
	}
	if len(f.TaxonomyIDs) > 0 {
		w.add(fmt.Sprintf("EXISTS (SELECT 1 FROM %s j WHERE j.listing_id = l.id AND j.taxonomy_id IN (%s))",
			kind.JoinTable(), w.list(f.TaxonomyIDs)))
	}
	if q := strings.TrimSpace(f.Query); q != "" {
		p := w.arg(q)
		w.add(fmt.Sprintf("(l.search_vector @@ plainto_tsquery('russian', %s) OR l.title ILIKE '%%' || %s || '%%')", p, p))
	}
	if f.MinPrice != nil {
		w.add("l.price >= " + w.arg(*f.MinPrice))
	}
	if f.MaxPrice != nil {
		w.add("l.price <= " + w.arg(*f.MaxPrice))
	}
	order, ok := listingOrder[f.OrderBy]
	if !ok {
		order = listingOrder[""]
	}

	var total int
	qCount := fmt.Sprintf(`SELECT COUNT(*) FROM %s l`, kind.Table()) + w.sql()
	if err := r.db.QueryRowContext(ctx, qCount, w.args...).Scan(&total); err != nil {
		return nil, err
	}

	args := append(append([]any{}, w.args...), pq.Limit, pq.Offset)
	qList := listingSelect(kind) + w.sql() +
		fmt.Sprintf(` ORDER BY %s LIMIT $%d OFFSET $%d`, order, len(w.args)+1, len(w.args)+2)

	items, err := r.queryListings(ctx, qList, args...)
	if err != nil {
		return nil, err
	}
	return &repository.PageResult[model.Listing]{Items: items, Total: total}, nil
}

func (r *ListingPostgres) queryListings(ctx context.Context, q string, args ...any) ([]model.Listing, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]model.Listing, 0)
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *l)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func (r *ListingPostgres) Update(ctx context.Context, l *model.Listing, from model.Status) (*model.Listing, error) {
	q := fmt.Sprintf(`
		UPDATE %s SET title = $2, description = $3, address = $4, price = $5, status = $6, updated_at = $7
		WHERE id = $1 AND status = $8`, l.Kind.Table())
	qUnlink := fmt.Sprintf(`DELETE FROM %s WHERE listing_id = $1`, l.Kind.JoinTable())

	err := database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, q,
			l.ID,
			l.Title,
			l.Description,
			l.Address,
			nullPrice(l.Price),
			string(l.Status),
			l.UpdatedAt,
			string(from),
		)
		if err != nil {
			return err
		}
		if err := expectTransition(res); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, qUnlink, l.ID); err != nil {
			return err
		}
		return linkTaxonomy(ctx, tx, l.Kind, l.ID, l.TaxonomyIDs)
	})
	if err != nil {
		return nil, err
	}
	return r.FindByID(ctx, l.Kind, l.ID)
}

func (r *ListingPostgres) Delete(ctx context.Context, kind model.Kind, id string) error {
	qDelete := fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, kind.Table())
	return database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		for _, q := range []string{
			`DELETE FROM comments WHERE target_kind = $1 AND target_id = $2`,
			`DELETE FROM favorites WHERE target_kind = $1 AND target_id = $2`,
			`DELETE FROM listing_images WHERE listing_kind = $1 AND listing_id = $2`,
		} {
			if _, err := tx.ExecContext(ctx, q, string(kind), id); err != nil {
				return err
			}
		}
		res, err := tx.ExecContext(ctx, qDelete, id)
		if err != nil {
			return err
		}
		return expectOne(res)
	})
}

func (r *ListingPostgres) UpdateStatus(ctx context.Context, l *model.Listing, from model.Status, clearFavorites bool) error {
	q := fmt.Sprintf(`
		UPDATE %s SET status = $2, rejection_reason = $3, published_at = $4, updated_at = $5
		WHERE id = $1 AND status = $6`, l.Kind.Table())

	var published any
	if l.PublishedAt != nil {
		published = *l.PublishedAt
	}

	return database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, q,
			l.ID,
			string(l.Status),
			l.RejectionReason,
			published,
			l.UpdatedAt,
			string(from),
		)
		if err != nil {
			return err
		}
		if err := expectTransition(res); err != nil {
			return err
		}
		if clearFavorites {
			const qFav = `DELETE FROM favorites WHERE target_kind = $1 AND target_id = $2`
			if _, err := tx.ExecContext(ctx, qFav, string(l.Kind), l.ID); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *ListingPostgres) Search(ctx context.Context, kinds []model.Kind, query string, pq repository.PageQuery) (*repository.PageResult[model.Listing], error) {
	if len(kinds) == 0 {
		kinds = model.Kinds
	}
	const match = ` WHERE l.status = 'published' AND (l.search_vector @@ plainto_tsquery('russian', $1) OR l.title ILIKE '%' || $1 || '%')`

	counts := make([]string, 0, len(kinds))
	selects := make([]string, 0, len(kinds))
	for _, k := range kinds {
		counts = append(counts, fmt.Sprintf(`(SELECT COUNT(*) FROM %s l`+match+`)`, k.Table()))
		sel := strings.Replace(listingSelect(k), "SELECT ", "SELECT ts_rank(l.search_vector, plainto_tsquery('russian', $1)) AS rank, ", 1)
		selects = append(selects, sel+match)
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT `+strings.Join(counts, " + "), query).Scan(&total); err != nil {
		return nil, err
	}

	q := `SELECT id, kind, provider_id, title, description, address, price, status, rejection_reason, rating,
		comments_count, created_at, updated_at, published_at, taxonomy_ids
		FROM (` + strings.Join(selects, " UNION ALL ") + `) found
		ORDER BY rank DESC, created_at DESC LIMIT $2 OFFSET $3`

	items, err := r.queryListings(ctx, q, query, pq.Limit, pq.Offset)
	if err != nil {
		return nil, err
	}
	return &repository.PageResult[model.Listing]{Items: items, Total: total}, nil
}

func (r *ListingPostgres) RefreshRating(ctx context.Context, kind model.Kind, id string) error {
	q := fmt.Sprintf(`
		UPDATE %s SET
			rating = coalesce((SELECT round(avg(c.rating), 2) FROM comments c
				WHERE c.target_kind = $1 AND c.target_id = $2 AND c.status = 'approved'), 0),
			comments_count = (SELECT COUNT(*) FROM comments c
				WHERE c.target_kind = $1 AND c.target_id = $2 AND c.status = 'approved')
		WHERE id = $2`, kind.Table())
	res, err := r.db.ExecContext(ctx, q, string(kind), id)
	if err != nil {
		return err
	}
	return expectOne(res)
}
