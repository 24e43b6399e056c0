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

var commentCols = []string{"id", "target_kind", "target_id", "author_id", "text", "rating", "status", "created_at", "updated_at"}

func TestCommentPostgres_Create(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now().UTC()
	c := &model.Comment{
		ID:         "c-1",
		TargetKind: model.KindService,
		TargetID:   "svc-1",
		AuthorID:   "u-1",
		Text:       "Отличный мастер",
		Rating:     5,
		Status:     model.CommentPending,
		CreatedAt:  now,
	}

	mock.ExpectQuery("INSERT INTO comments").
		WithArgs("c-1", "service", "svc-1", "u-1", "Отличный мастер", 5, "pending", now).
		WillReturnRows(sqlmock.NewRows(commentCols).
			AddRow("c-1", "service", "svc-1", "u-1", "Отличный мастер", 5, "pending", now, now))

	got, err := NewCommentPostgres(db).Create(context.Background(), c)

	require.NoError(t, err)
	assert.Equal(t, model.CommentPending, got.Status)
	assert.Equal(t, model.KindService, got.TargetKind)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCommentPostgres_ListByTarget_IncludesOwnPending(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now().UTC()
	f := repository.CommentFilter{Statuses: []model.CommentStatus{model.CommentApproved}, IncludeAuthor: "u-1"}

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM comments WHERE target_kind = \$1 AND target_id = \$2 AND \(status IN \(\$3\) OR author_id = \$4\)`).
		WithArgs("ad", "ad-1", "approved", "u-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	mock.ExpectQuery(`LIMIT \$5 OFFSET \$6`).
		WithArgs("ad", "ad-1", "approved", "u-1", 20, 0).
		WillReturnRows(sqlmock.NewRows(commentCols).
			AddRow("c-1", "ad", "ad-1", "u-2", "Хорошо", 4, "approved", now, now).
			AddRow("c-2", "ad", "ad-1", "u-1", "Моё", 3, "pending", now, now))

	page, err := NewCommentPostgres(db).ListByTarget(context.Background(), model.KindAd, "ad-1", f, repository.PageQuery{Limit: 20})

	require.NoError(t, err)
	assert.Equal(t, 2, page.Total)
	assert.Equal(t, model.CommentPending, page.Items[1].Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCommentPostgres_ExistsByAuthor(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`SELECT EXISTS \(SELECT 1 FROM comments`).
		WithArgs("service", "svc-1", "u-1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	ok, err := NewCommentPostgres(db).ExistsByAuthor(context.Background(), model.KindService, "svc-1", "u-1")

	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCommentPostgres_UpdateStatus(t *testing.T) {
	t.Run("pending to approved", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectExec(`UPDATE comments SET status = \$2, updated_at = now\(\) WHERE id = \$1 AND status = \$3`).
			WithArgs("c1", "approved", "pending").
			WillReturnResult(sqlmock.NewResult(0, 1))

		err = NewCommentPostgres(db).UpdateStatus(context.Background(), "c1", model.CommentPending, model.CommentApproved)

		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("already moderated by someone else", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectExec(`UPDATE comments SET status = \$2`).
			WithArgs("c1", "rejected", "pending").
			WillReturnResult(sqlmock.NewResult(0, 0))

		err = NewCommentPostgres(db).UpdateStatus(context.Background(), "c1", model.CommentPending, model.CommentRejected)

		assert.ErrorIs(t, err, repository.ErrStatusConflict)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
