package favorites

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/FACorreiaa/go-loongo/internal/app/models"
)

func newMockRepo(t *testing.T) (*RepositoryImpl, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewRepository(mock, zap.NewNop()), mock
}

func TestRepositoryIsFavorite(t *testing.T) {
	repo, mock := newMockRepo(t)
	ctx := context.Background()

	mock.ExpectQuery(`SELECT EXISTS\(\s*SELECT 1 FROM favorites\s*WHERE visitor_id = \$1`).
		WithArgs("v1", int64(42), models.ItemTypeCity).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	ok, err := repo.IsFavorite(ctx, models.VisitorOwner{Token: "v1"}, 42, models.ItemTypeCity)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryToggle(t *testing.T) {
	ctx := context.Background()
	owner := models.UserOwner{ID: 7}

	t.Run("inserts when absent", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		mock.ExpectBegin()
		mock.ExpectExec(`DELETE FROM favorites\s+WHERE user_id = \$1`).
			WithArgs(int64(7), int64(42), models.ItemTypeCity).
			WillReturnResult(pgxmock.NewResult("DELETE", 0))
		mock.ExpectQuery(`INSERT INTO favorites \(user_id, item_id, item_type\)`).
			WithArgs(int64(7), int64(42), models.ItemTypeCity).
			WillReturnRows(pgxmock.NewRows([]string{"id", "created_at"}).AddRow(uuid.New(), time.Now()))
		mock.ExpectCommit()

		isFavorite, err := repo.Toggle(ctx, owner, 42, models.ItemTypeCity)
		require.NoError(t, err)
		assert.True(t, isFavorite)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("removes when present", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		mock.ExpectBegin()
		mock.ExpectExec(`DELETE FROM favorites`).
			WithArgs(int64(7), int64(3), models.ItemTypePOI).
			WillReturnResult(pgxmock.NewResult("DELETE", 1))
		mock.ExpectCommit()

		isFavorite, err := repo.Toggle(ctx, owner, 3, models.ItemTypePOI)
		require.NoError(t, err)
		assert.False(t, isFavorite)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unique violation is a race", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		mock.ExpectBegin()
		mock.ExpectExec(`DELETE FROM favorites`).
			WithArgs(int64(7), int64(42), models.ItemTypeCity).
			WillReturnResult(pgxmock.NewResult("DELETE", 0))
		mock.ExpectQuery(`INSERT INTO favorites`).
			WithArgs(int64(7), int64(42), models.ItemTypeCity).
			WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "favorites_user_item_key"})
		mock.ExpectRollback()

		_, err := repo.Toggle(ctx, owner, 42, models.ItemTypeCity)
		assert.ErrorIs(t, err, models.ErrFavoriteRace)
		assert.ErrorIs(t, err, models.ErrConflict)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("other errors roll back", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		mock.ExpectBegin()
		mock.ExpectExec(`DELETE FROM favorites`).
			WithArgs(int64(7), int64(42), models.ItemTypeCity).
			WillReturnError(errors.New("connection reset"))
		mock.ExpectRollback()

		_, err := repo.Toggle(ctx, owner, 42, models.ItemTypeCity)
		require.Error(t, err)
		assert.NotErrorIs(t, err, models.ErrConflict)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestRepositoryMerge(t *testing.T) {
	ctx := context.Background()

	t.Run("moves and drops in one transaction", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		mock.ExpectBegin()
		mock.ExpectExec(`UPDATE favorites AS v\s+SET user_id = \$1, visitor_id = NULL`).
			WithArgs(int64(7), "v1").
			WillReturnResult(pgxmock.NewResult("UPDATE", 2))
		mock.ExpectExec(`DELETE FROM favorites WHERE visitor_id = \$1`).
			WithArgs("v1").
			WillReturnResult(pgxmock.NewResult("DELETE", 1))
		mock.ExpectCommit()

		res, err := repo.Merge(ctx, models.VisitorOwner{Token: "v1"}, models.UserOwner{ID: 7})
		require.NoError(t, err)
		assert.Equal(t, models.MergeResult{Moved: 2, Dropped: 1}, res)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("empty visitor set is a no-op", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		mock.ExpectBegin()
		mock.ExpectExec(`UPDATE favorites`).
			WithArgs(int64(7), "v2").
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))
		mock.ExpectExec(`DELETE FROM favorites WHERE visitor_id`).
			WithArgs("v2").
			WillReturnResult(pgxmock.NewResult("DELETE", 0))
		mock.ExpectCommit()

		res, err := repo.Merge(ctx, models.VisitorOwner{Token: "v2"}, models.UserOwner{ID: 7})
		require.NoError(t, err)
		assert.Zero(t, res.Moved)
		assert.Zero(t, res.Dropped)
	})

	t.Run("race while moving", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		mock.ExpectBegin()
		mock.ExpectExec(`UPDATE favorites`).
			WithArgs(int64(7), "v1").
			WillReturnError(&pgconn.PgError{Code: "23505"})
		mock.ExpectRollback()

		_, err := repo.Merge(ctx, models.VisitorOwner{Token: "v1"}, models.UserOwner{ID: 7})
		assert.ErrorIs(t, err, models.ErrFavoriteRace)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestRepositoryListByIdentity(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectQuery(`SELECT item_id FROM favorites\s+WHERE user_id = \$1 AND item_type = \$2\s+ORDER BY created_at DESC`).
		WithArgs(int64(7), models.ItemTypeCity).
		WillReturnRows(pgxmock.NewRows([]string{"item_id"}).AddRow(int64(42)).AddRow(int64(5)))

	ids, err := repo.ListByIdentity(context.Background(), models.UserOwner{ID: 7}, models.ItemTypeCity)
	require.NoError(t, err)
	assert.Equal(t, []int64{42, 5}, ids)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryFavoriteSet(t *testing.T) {
	t.Run("marks matching ids", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		ids := []int64{1, 2, 3}
		mock.ExpectQuery(`SELECT item_id FROM favorites WHERE item_id IN \(\$1,\$2,\$3\) AND item_type = \$4 AND visitor_id = \$5`).
			WithArgs(int64(1), int64(2), int64(3), models.ItemTypePOI, "v1").
			WillReturnRows(pgxmock.NewRows([]string{"item_id"}).AddRow(int64(2)))

		set, err := repo.FavoriteSet(context.Background(), models.VisitorOwner{Token: "v1"}, models.ItemTypePOI, ids)
		require.NoError(t, err)
		assert.Equal(t, map[int64]bool{2: true}, set)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("no ids skips the query", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		set, err := repo.FavoriteSet(context.Background(), models.VisitorOwner{Token: "v1"}, models.ItemTypePOI, nil)
		require.NoError(t, err)
		assert.Empty(t, set)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
