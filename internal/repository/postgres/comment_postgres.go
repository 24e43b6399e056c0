package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"sunnyapi/internal/model"
	"sunnyapi/internal/repository"
)

const commentColumns = `id, target_kind, target_id, author_id, text, rating, status, created_at, updated_at`

type CommentPostgres struct {
	db *sql.DB
}

func NewCommentPostgres(db *sql.DB) *CommentPostgres {
	return &CommentPostgres{db: db}
}

var _ repository.CommentRepository = (*CommentPostgres)(nil)

func scanComment(s scanner) (*model.Comment, error) {
	var (
		c      model.Comment
		kind   string
		status string
	)
	if err := s.Scan(
		&c.ID,
		&kind,
		&c.TargetID,
		&c.AuthorID,
		&c.Text,
		&c.Rating,
		&status,
		&c.CreatedAt,
		&c.UpdatedAt,
	); err != nil {
		return nil, mapError(err)
	}
	c.TargetKind = model.Kind(kind)
	c.Status = model.CommentStatus(status)
	return &c, nil
}

func (r *CommentPostgres) Create(ctx context.Context, c *model.Comment) (*model.Comment, error) {
	const q = `
		INSERT INTO comments (id, target_kind, target_id, author_id, text, rating, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
		RETURNING ` + commentColumns
	row := r.db.QueryRowContext(ctx, q,
		c.ID,
		string(c.TargetKind),
		c.TargetID,
		c.AuthorID,
		c.Text,
		c.Rating,
		string(c.Status),
		c.CreatedAt,
	)
	return scanComment(row)
}

func (r *CommentPostgres) FindByID(ctx context.Context, id string) (*model.Comment, error) {
	const q = `SELECT ` + commentColumns + ` FROM comments WHERE id = $1`
	return scanComment(r.db.QueryRowContext(ctx, q, id))
}

func (r *CommentPostgres) ListByTarget(ctx context.Context, kind model.Kind, targetID string, f repository.CommentFilter, pq repository.PageQuery) (*repository.PageResult[model.Comment], error) {
	w := &where{}
	w.add("target_kind = " + w.arg(string(kind)))
	w.add("target_id = " + w.arg(targetID))
	if len(f.Statuses) > 0 {
		statuses := make([]string, 0, len(f.Statuses))
		for _, s := range f.Statuses {
			statuses = append(statuses, string(s))
		}
		cond := "status IN (" + w.list(statuses) + ")"
		if f.IncludeAuthor != "" {
			cond = "(" + cond + " OR author_id = " + w.arg(f.IncludeAuthor) + ")"
		}
		w.add(cond)
	}
	return r.page(ctx, w, pq)
}

func (r *CommentPostgres) ListByStatus(ctx context.Context, status model.CommentStatus, pq repository.PageQuery) (*repository.PageResult[model.Comment], error) {
	w := &where{}
	w.add("status = " + w.arg(string(status)))
	return r.page(ctx, w, pq)
}

func (r *CommentPostgres) page(ctx context.Context, w *where, pq repository.PageQuery) (*repository.PageResult[model.Comment], error) {
	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM comments`+w.sql(), w.args...).Scan(&total); err != nil {
		return nil, err
	}

	q := `SELECT ` + commentColumns + ` FROM comments` + w.sql() +
		fmt.Sprintf(` ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`, len(w.args)+1, len(w.args)+2)
	rows, err := r.db.QueryContext(ctx, q, append(w.args, pq.Limit, pq.Offset)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]model.Comment, 0)
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &repository.PageResult[model.Comment]{Items: items, Total: total}, nil
}

func (r *CommentPostgres) UpdateStatus(ctx context.Context, id string, from, to model.CommentStatus) error {
	const q = `UPDATE comments SET status = $2, updated_at = now() WHERE id = $1 AND status = $3`
	res, err := r.db.ExecContext(ctx, q, id, string(to), string(from))
	if err != nil {
		return err
	}
	return expectTransition(res)
}

func (r *CommentPostgres) Delete(ctx context.Context, id string) error {
	const q = `DELETE FROM comments WHERE id = $1`
	res, err := r.db.ExecContext(ctx, q, id)
	if err != nil {
		return err
	}
	return expectOne(res)
}

func (r *CommentPostgres) ExistsByAuthor(ctx context.Context, kind model.Kind, targetID, authorID string) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM comments WHERE target_kind = $1 AND target_id = $2 AND author_id = $3)`
	var exists bool
	err := r.db.QueryRowContext(ctx, q, string(kind), targetID, authorID).Scan(&exists)
	return exists, err
}
