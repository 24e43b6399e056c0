package postgres

import (
	"context"
	"database/sql"

	"sunnyapi/internal/model"
	"sunnyapi/internal/repository"
)

const userColumns = `id, email, password_hash, name, phone, is_staff, is_active, email_verified, created_at, updated_at`

// UserPostgres is a PostgreSQL implementation of repository.UserRepository.
type UserPostgres struct {
	db *sql.DB
}

func NewUserPostgres(db *sql.DB) *UserPostgres {
	return &UserPostgres{db: db}
}

var _ repository.UserRepository = (*UserPostgres)(nil)

func scanUser(s scanner) (*model.User, error) {
	var u model.User
	if err := s.Scan(
		&u.ID,
		&u.Email,
		&u.PasswordHash,
		&u.Name,
		&u.Phone,
		&u.IsStaff,
		&u.IsActive,
		&u.EmailVerified,
		&u.CreatedAt,
		&u.UpdatedAt,
	); err != nil {
		return nil, mapError(err)
	}
	return &u, nil
}

func (r *UserPostgres) Create(ctx context.Context, u *model.User) (*model.User, error) {
	const q = `
		INSERT INTO users (id, email, password_hash, name, phone, is_staff, is_active, email_verified, created_at, updated_at)
		VALUES ($1, lower($2), $3, $4, $5, $6, $7, $8, $9, $9)
		RETURNING ` + userColumns
	row := r.db.QueryRowContext(ctx, q,
		u.ID,
		u.Email,
		u.PasswordHash,
		u.Name,
		u.Phone,
		u.IsStaff,
		u.IsActive,
		u.EmailVerified,
		u.CreatedAt,
	)
	return scanUser(row)
}

func (r *UserPostgres) FindByID(ctx context.Context, id string) (*model.User, error) {
	const q = `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(r.db.QueryRowContext(ctx, q, id))
}

func (r *UserPostgres) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	const q = `SELECT ` + userColumns + ` FROM users WHERE email = lower($1)`
	return scanUser(r.db.QueryRowContext(ctx, q, email))
}

func (r *UserPostgres) Update(ctx context.Context, u *model.User) (*model.User, error) {
	const q = `
		UPDATE users SET name = $2, phone = $3, updated_at = now()
		WHERE id = $1
		RETURNING ` + userColumns
	return scanUser(r.db.QueryRowContext(ctx, q, u.ID, u.Name, u.Phone))
}

func (r *UserPostgres) ListStaff(ctx context.Context) ([]model.User, error) {
	const q = `SELECT ` + userColumns + ` FROM users WHERE is_staff AND is_active ORDER BY created_at`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]model.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *u)
	}
	return out, rows.Err()
}

func (r *UserPostgres) SetPassword(ctx context.Context, id, hash string) error {
	const q = `UPDATE users SET password_hash = $2, updated_at = now() WHERE id = $1`
	res, err := r.db.ExecContext(ctx, q, id, hash)
	if err != nil {
		return err
	}
	return expectOne(res)
}

func (r *UserPostgres) MarkEmailVerified(ctx context.Context, id string) error {
	const q = `UPDATE users SET email_verified = true, updated_at = now() WHERE id = $1`
	res, err := r.db.ExecContext(ctx, q, id)
	if err != nil {
		return err
	}
	return expectOne(res)
}
