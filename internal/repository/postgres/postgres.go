// Package postgres implements the repository interfaces on PostgreSQL through database/sql.
// It holds SQL only; business rules live in the service layer.
package postgres

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"sunnyapi/internal/repository"
)

const uniqueViolation = "23505"

type scanner interface {
	Scan(dest ...any) error
}

// mapError translates driver errors into repository sentinels.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return repository.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%w: %s", repository.ErrDuplicate, pgErr.ConstraintName)
	}
	return err
}

// expectOne turns a zero-row write into ErrNotFound.
func expectOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// expectTransition maps a status-guarded write that touched no rows to ErrStatusConflict.
func expectTransition(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return repository.ErrStatusConflict
	}
	return nil
}

// where accumulates AND-ed conditions with positional arguments.
type where struct {
	clauses []string
	args    []any
}

// arg registers v and returns its placeholder.
func (w *where) arg(v any) string {
	w.args = append(w.args, v)
	return fmt.Sprintf("$%d", len(w.args))
}

func (w *where) add(clause string) {
	w.clauses = append(w.clauses, clause)
}

// list registers values and returns "$n, $n+1, ...".
func (w *where) list(values []string) string {
	ph := make([]string, 0, len(values))
	for _, v := range values {
		ph = append(ph, w.arg(v))
	}
	return strings.Join(ph, ", ")
}

// in adds "col IN (...)" for the given values.
func (w *where) in(col string, values []string) {
	w.add(col + " IN (" + w.list(values) + ")")
}

func (w *where) sql() string {
	if len(w.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.clauses, " AND ")
}

func splitIDs(s string) []string {
	if s == "" {
		return []string{}
	}
	return strings.Split(s, ",")
}
