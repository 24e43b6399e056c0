// Package service implements the marketplace use cases on top of the repositories.
package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"sunnyapi/internal/mailer"
	"sunnyapi/internal/model"
	"sunnyapi/internal/profanity"
	"sunnyapi/internal/repository"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrForbidden         = errors.New("forbidden")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrInvalidTransition = model.ErrInvalidTransition
	ErrAlreadyExists     = errors.New("already exists")
	ErrProfanity         = errors.New(profanity.Message)
)

// ValidationError maps field names to messages. It unwraps to its cause when there is one.
type ValidationError struct {
	Fields map[string]string
	cause  error
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error { return e.cause }

func invalid(field, msg string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: msg}}
}

// checkProfanity returns a ValidationError wrapping ErrProfanity for every offending field.
func checkProfanity(f *profanity.Filter, fields map[string]string) error {
	if f == nil {
		return nil
	}
	if bad := f.Check(fields); bad != nil {
		return &ValidationError{Fields: bad, cause: ErrProfanity}
	}
	return nil
}

// fromRepo translates repository sentinels into service errors.
func fromRepo(err error, what string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound):
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	case errors.Is(err, repository.ErrDuplicate):
		return fmt.Errorf("%s: %w", what, ErrAlreadyExists)
	case errors.Is(err, repository.ErrStatusConflict):
		return fmt.Errorf("%s changed concurrently: %w", what, ErrInvalidTransition)
	}
	return err
}

// Actor is the authenticated caller. The zero value is an anonymous visitor.
type Actor struct {
	UserID  string
	IsStaff bool
}

func (a Actor) Authenticated() bool { return a.UserID != "" }

func requireUser(a Actor) error {
	if !a.Authenticated() {
		return ErrUnauthorized
	}
	return nil
}

func requireStaff(a Actor) error {
	if err := requireUser(a); err != nil {
		return err
	}
	if !a.IsStaff {
		return fmt.Errorf("staff only: %w", ErrForbidden)
	}
	return nil
}

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// Page is limit/offset pagination as requested by a client.
type Page struct {
	Limit  int
	Offset int
}

func (p Page) query() repository.PageQuery {
	if p.Limit <= 0 {
		p.Limit = DefaultLimit
	}
	if p.Limit > MaxLimit {
		p.Limit = MaxLimit
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return repository.PageQuery{Limit: p.Limit, Offset: p.Offset}
}

// ListResult is the service-level DTO for paginated lists.
type ListResult[T any] struct {
	Items []T `json:"data"`
	Total int `json:"total"`
}

func toList[T any](res *repository.PageResult[T]) *ListResult[T] {
	return &ListResult[T]{Items: res.Items, Total: res.Total}
}

// TaskQueue defers slow work to the worker.
type TaskQueue interface {
	EnqueueEmail(ctx context.Context, msg mailer.Message) error
	EnqueueImageCleanup(ctx context.Context, keys []string) error
}

// ListingCache holds published listings.
// Set is skipped when the listing was deleted from the cache after Version was read.
type ListingCache interface {
	Get(ctx context.Context, kind model.Kind, id string) (*model.Listing, error)
	Version(ctx context.Context, kind model.Kind, id string) (int64, error)
	Set(ctx context.Context, l *model.Listing, version int64) error
	Delete(ctx context.Context, kind model.Kind, id string) error
}

// TaxonomyCache holds the flat node list of each tree.
type TaxonomyCache interface {
	Get(ctx context.Context, kind model.TaxonomyKind) ([]model.Taxonomy, error)
	Set(ctx context.Context, kind model.TaxonomyKind, nodes []model.Taxonomy) error
	Invalidate(ctx context.Context, kind model.TaxonomyKind) error
}

func isNotFound(err error) bool      { return errors.Is(err, ErrNotFound) }
func isAlreadyExists(err error) bool { return errors.Is(err, ErrAlreadyExists) }
