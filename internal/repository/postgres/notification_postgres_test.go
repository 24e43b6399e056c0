package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sunnyapi/internal/model"
	"sunnyapi/internal/repository"
)

var notificationCols = []string{"id", "user_id", "kind", "text", "link", "read_at", "created_at"}

func TestNotificationPostgres_Create(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now().UTC()
	n := &model.Notification{ID: "n-1", UserID: "u-1", Kind: model.NotifyListingApproved, Text: "Опубликовано", Link: "/services/svc-1", CreatedAt: now}

	mock.ExpectQuery("INSERT INTO notifications").
		WithArgs("n-1", "u-1", "listing_approved", "Опубликовано", "/services/svc-1", now).
		WillReturnRows(sqlmock.NewRows(notificationCols).
			AddRow("n-1", "u-1", "listing_approved", "Опубликовано", "/services/svc-1", nil, now))

	got, err := NewNotificationPostgres(db).Create(context.Background(), n)

	require.NoError(t, err)
	assert.Equal(t, model.NotifyListingApproved, got.Kind)
	assert.Nil(t, got.ReadAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNotificationPostgres_ListByUser_UnreadOnly(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now().UTC()

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM notifications WHERE user_id = \$1 AND read_at IS NULL`).
		WithArgs("u-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(`FROM notifications WHERE user_id = \$1 AND read_at IS NULL ORDER BY`).
		WithArgs("u-1", 20, 0).
		WillReturnRows(sqlmock.NewRows(notificationCols).
			AddRow("n-1", "u-1", "comment_new", "Новый отзыв", "", nil, now))

	page, err := NewNotificationPostgres(db).ListByUser(context.Background(), "u-1", true, repository.PageQuery{Limit: 20})

	require.NoError(t, err)
	assert.Equal(t, 1, page.Total)
	assert.Equal(t, model.NotifyCommentNew, page.Items[0].Kind)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNotificationPostgres_MarkRead(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewNotificationPostgres(db)

	mock.ExpectExec(`UPDATE notifications SET read_at = coalesce`).
		WithArgs("n-1", "intruder").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`UPDATE notifications SET read_at = now\(\) WHERE user_id = \$1 AND read_at IS NULL`).
		WithArgs("u-1").
		WillReturnResult(sqlmock.NewResult(0, 4))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM notifications`).
		WithArgs("u-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	assert.ErrorIs(t, repo.MarkRead(context.Background(), "n-1", "intruder"), repository.ErrNotFound)

	n, err := repo.MarkAllRead(context.Background(), "u-1")
	require.NoError(t, err)
	assert.EqualValues(t, 4, n)

	unread, err := repo.CountUnread(context.Background(), "u-1")
	require.NoError(t, err)
	assert.Zero(t, unread)

	assert.NoError(t, mock.ExpectationsWereMet())
}
