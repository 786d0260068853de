package repository

import (
	"context"
	"errors"
	"testing"

	"anoa.com/storerating/internal/entity"
	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupMockDB(t *testing.T) (StoreRepository, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	gdb, err := gorm.Open(postgres.New(postgres.Config{Conn: db}), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	return NewStoreRepository(gdb), mock
}

func TestFindByIDsKeepsCallerOrder(t *testing.T) {
	repo, mock := setupMockDB(t)
	first, second, ownerID := uuid.New(), uuid.New(), uuid.New()

	mock.ExpectQuery(`SELECT \* FROM "stores" WHERE id IN \(\$1,\$2\)`).
		WithArgs(first, second).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "owner_id"}).
			AddRow(second, "second", ownerID).
			AddRow(first, "first", ownerID))
	mock.ExpectQuery(`SELECT \* FROM "users" WHERE "users"."id" = \$1`).
		WithArgs(ownerID).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "role"}).AddRow(ownerID, "owner", entity.RoleStoreOwner))

	stores, err := repo.FindByIDs(context.Background(), []uuid.UUID{first, second})
	require.NoError(t, err)
	require.Len(t, stores, 2)
	assert.Equal(t, "first", stores[0].Name)
	assert.Equal(t, "second", stores[1].Name)
	require.NotNil(t, stores[0].Owner)
	assert.Equal(t, ownerID, stores[0].Owner.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindByIDsEmpty(t *testing.T) {
	repo, mock := setupMockDB(t)

	stores, err := repo.FindByIDs(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, stores)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindAllSearchesNameAndAddress(t *testing.T) {
	repo, mock := setupMockDB(t)
	storeID, ownerID := uuid.New(), uuid.New()

	mock.ExpectQuery(`SELECT count\(\*\) FROM "stores" WHERE name ILIKE \$1 OR address ILIKE \$2`).
		WithArgs("%bread%", "%bread%").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(`SELECT \* FROM "stores" WHERE name ILIKE \$1 OR address ILIKE \$2 ORDER BY average_rating DESC,id ASC`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "owner_id", "average_rating"}).
			AddRow(storeID, "Bread Corner", ownerID, 4.25))
	mock.ExpectQuery(`SELECT \* FROM "users" WHERE "users"."id" = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow(ownerID, "owner"))

	stores, total, err := repo.FindAll(context.Background(), StoreFilter{
		Search: " bread ",
		SortBy: "averageRating",
		Desc:   true,
		Limit:  10,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, stores, 1)
	assert.Equal(t, 4.25, stores[0].AverageRating)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteMissingStore(t *testing.T) {
	repo, mock := setupMockDB(t)

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM "stores" WHERE id = \$1`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	err := repo.Delete(context.Background(), uuid.New())
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateMissingStoreSkipsPromotion(t *testing.T) {
	repo, mock := setupMockDB(t)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "stores" SET`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.Update(context.Background(), &entity.Store{ID: uuid.New(), Name: "x", OwnerID: uuid.New()})
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreatePromotesOwnerInSameTransaction(t *testing.T) {
	repo, mock := setupMockDB(t)
	ownerID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO "stores"`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE "users" SET "role"=\$1,"updated_at"=\$2 WHERE \(?id = \$3 AND role = \$4`).
		WithArgs(entity.RoleStoreOwner, sqlmock.AnyArg(), ownerID, entity.RoleNormalUser).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	store := &entity.Store{Name: "Corner Bakery And Coffee", Email: "corner@store.com", Address: "1 Main", OwnerID: ownerID}
	require.NoError(t, repo.Create(context.Background(), store))
	assert.NotEqual(t, uuid.Nil, store.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateRollsBackWhenPromotionFails(t *testing.T) {
	repo, mock := setupMockDB(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO "stores"`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE "users" SET "role"`).
		WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	err := repo.Create(context.Background(), &entity.Store{Name: "x", Email: "x@store.com", OwnerID: uuid.New()})
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
