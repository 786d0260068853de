package repository

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupMockDB(t *testing.T) (RatingRepository, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	gdb, err := gorm.Open(postgres.New(postgres.Config{Conn: db}), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	return NewRatingRepository(gdb), mock
}

func TestLockStoreSelectsForUpdate(t *testing.T) {
	repo, mock := setupMockDB(t)
	storeID := uuid.New()
	ownerID := uuid.New()

	mock.ExpectQuery(`SELECT \* FROM "stores" WHERE id = \$1 .*FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "owner_id", "average_rating", "total_ratings"}).
			AddRow(storeID, "corner", ownerID, 3.5, 2))

	store, err := repo.LockStore(context.Background(), storeID)
	require.NoError(t, err)
	assert.Equal(t, storeID, store.ID)
	assert.Equal(t, 3.5, store.AverageRating)
	assert.Equal(t, 2, store.TotalRatings)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLockStoreMissing(t *testing.T) {
	repo, mock := setupMockDB(t)

	mock.ExpectQuery(`SELECT \* FROM "stores" WHERE id = \$1 .*FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.LockStore(context.Background(), uuid.New())
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAggregateForStore(t *testing.T) {
	repo, mock := setupMockDB(t)
	storeID := uuid.New()

	mock.ExpectQuery(`SELECT COALESCE\(AVG\(rating\), 0\) AS average, COUNT\(\*\) AS count FROM "ratings" WHERE store_id = \$1`).
		WithArgs(storeID).
		WillReturnRows(sqlmock.NewRows([]string{"average", "count"}).AddRow(4.5, 2))

	agg, err := repo.AggregateForStore(context.Background(), storeID)
	require.NoError(t, err)
	assert.Equal(t, 4.5, agg.Average)
	assert.Equal(t, int64(2), agg.Count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateStoreAggregateMissingStore(t *testing.T) {
	repo, mock := setupMockDB(t)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "stores" SET .*"average_rating"=.*"total_ratings"=`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	err := repo.UpdateStoreAggregate(context.Background(), uuid.New(), 4, 1)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteMissingRating(t *testing.T) {
	repo, mock := setupMockDB(t)
	id := uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM "ratings" WHERE id = \$1`).
		WithArgs(id).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	err := repo.Delete(context.Background(), id)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRollsBackOnError(t *testing.T) {
	repo, mock := setupMockDB(t)

	mock.ExpectBegin()
	mock.ExpectRollback()

	err := repo.Transaction(context.Background(), func(tx RatingRepository) error {
		return gorm.ErrInvalidData
	})
	assert.ErrorIs(t, err, gorm.ErrInvalidData)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLockUserSelectsForUpdate(t *testing.T) {
	repo, mock := setupMockDB(t)
	userID := uuid.New()

	mock.ExpectQuery(`SELECT \* FROM "users" WHERE id = \$1 .*FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow(userID, "someone"))

	user, err := repo.LockUser(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, userID, user.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteMissingUser(t *testing.T) {
	repo, mock := setupMockDB(t)
	id := uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM "users" WHERE id = \$1`).
		WithArgs(id).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	err := repo.DeleteUser(context.Background(), id)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
