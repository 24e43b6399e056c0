package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"sunnyapi/internal/model"
	"sunnyapi/internal/repository"
)

// TaxonomyPostgres reads and writes the categories and types tables.
type TaxonomyPostgres struct {
	db *sql.DB
}

func NewTaxonomyPostgres(db *sql.DB) *TaxonomyPostgres {
	return &TaxonomyPostgres{db: db}
}

var _ repository.TaxonomyRepository = (*TaxonomyPostgres)(nil)

func scanTaxonomy(s scanner, kind model.TaxonomyKind) (*model.Taxonomy, error) {
	var (
		t      model.Taxonomy
		parent sql.NullString
	)
	if err := s.Scan(&t.ID, &parent, &t.Name, &t.Slug, &t.CreatedAt); err != nil {
		return nil, mapError(err)
	}
	t.Kind = kind
	if parent.Valid {
		p := parent.String
		t.ParentID = &p
	}
	return &t, nil
}

func (r *TaxonomyPostgres) List(ctx context.Context, kind model.TaxonomyKind) ([]model.Taxonomy, error) {
	q := fmt.Sprintf(`SELECT id, parent_id, name, slug, created_at FROM %s ORDER BY name, id`, kind.Table())
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]model.Taxonomy, 0)
	for rows.Next() {
		t, err := scanTaxonomy(rows, kind)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

func (r *TaxonomyPostgres) FindByID(ctx context.Context, kind model.TaxonomyKind, id string) (*model.Taxonomy, error) {
	q := fmt.Sprintf(`SELECT id, parent_id, name, slug, created_at FROM %s WHERE id = $1`, kind.Table())
	return scanTaxonomy(r.db.QueryRowContext(ctx, q, id), kind)
}

func (r *TaxonomyPostgres) Create(ctx context.Context, t *model.Taxonomy) (*model.Taxonomy, error) {
	q := fmt.Sprintf(`
		INSERT INTO %s (id, parent_id, name, slug, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, parent_id, name, slug, created_at`, t.Kind.Table())
	var parent any
	if t.ParentID != nil {
		parent = *t.ParentID
	}
	row := r.db.QueryRowContext(ctx, q, t.ID, parent, t.Name, t.Slug, t.CreatedAt)
	return scanTaxonomy(row, t.Kind)
}

func (r *TaxonomyPostgres) Delete(ctx context.Context, kind model.TaxonomyKind, id string) error {
	q := fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, kind.Table())
	res, err := r.db.ExecContext(ctx, q, id)
	if err != nil {
		return err
	}
	return expectOne(res)
}
