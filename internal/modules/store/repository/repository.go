package repository

import (
	"context"
	"strings"

	"anoa.com/storerating/internal/entity"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type StoreFilter struct {
	Search string
	SortBy string
	Desc   bool
	Offset int
	Limit  int
}

type StoreRepository interface {
	Create(ctx context.Context, store *entity.Store) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Store, error)
	FindByEmail(ctx context.Context, email string) (*entity.Store, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]*entity.Store, error)
	FindAll(ctx context.Context, filter StoreFilter) ([]*entity.Store, int64, error)
	FindByOwner(ctx context.Context, ownerID uuid.UUID) ([]*entity.Store, error)
	Update(ctx context.Context, store *entity.Store) error
	Delete(ctx context.Context, id uuid.UUID) error
	Count(ctx context.Context) (int64, error)
}

type storeRepository struct {
	db *gorm.DB
}

func NewStoreRepository(db *gorm.DB) StoreRepository {
	return &storeRepository{db: db}
}

var storeSortColumns = map[string]string{
	"name":          "name",
	"email":         "email",
	"address":       "address",
	"averageRating": "average_rating",
	"totalRatings":  "total_ratings",
	"createdAt":     "created_at",
}

// Create inserts the store and promotes its owner from normal_user to store_owner in one transaction.
func (r *storeRepository) Create(ctx context.Context, store *entity.Store) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// aggregates always start empty
		store.AverageRating = 0
		store.TotalRatings = 0
		if err := tx.Create(store).Error; err != nil {
			return err
		}
		return promoteOwner(tx, store.OwnerID)
	})
}

func (r *storeRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Store, error) {
	var store entity.Store
	if err := r.db.WithContext(ctx).
		Preload("Owner").
		Where("id = ?", id).
		First(&store).Error; err != nil {
		return nil, err
	}
	return &store, nil
}

func (r *storeRepository) FindByEmail(ctx context.Context, email string) (*entity.Store, error) {
	var store entity.Store
	if err := r.db.WithContext(ctx).
		Where("LOWER(email) = ?", strings.ToLower(email)).
		First(&store).Error; err != nil {
		return nil, err
	}
	return &store, nil
}

func (r *storeRepository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]*entity.Store, error) {
	if len(ids) == 0 {
		return []*entity.Store{}, nil
	}

	var stores []*entity.Store
	if err := r.db.WithContext(ctx).
		Preload("Owner").
		Where("id IN ?", ids).
		Find(&stores).Error; err != nil {
		return nil, err
	}

	// keep the caller's order
	byID := make(map[uuid.UUID]*entity.Store, len(stores))
	for _, s := range stores {
		byID[s.ID] = s
	}
	ordered := make([]*entity.Store, 0, len(ids))
	for _, id := range ids {
		if s, ok := byID[id]; ok {
			ordered = append(ordered, s)
		}
	}
	return ordered, nil
}

func (r *storeRepository) FindAll(ctx context.Context, filter StoreFilter) ([]*entity.Store, int64, error) {
	var stores []*entity.Store
	var total int64

	query := r.db.WithContext(ctx).Model(&entity.Store{})

	if search := strings.TrimSpace(filter.Search); search != "" {
		pattern := "%" + search + "%"
		query = query.Where("name ILIKE ? OR address ILIKE ?", pattern, pattern)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	column, ok := storeSortColumns[filter.SortBy]
	if !ok {
		column = "name"
	}
	direction := " ASC"
	if filter.Desc {
		direction = " DESC"
	}

	if err := query.
		Preload("Owner").
		Order(column + direction).
		Order("id ASC").
		Offset(filter.Offset).
		Limit(filter.Limit).
		Find(&stores).Error; err != nil {
		return nil, 0, err
	}

	return stores, total, nil
}

func (r *storeRepository) FindByOwner(ctx context.Context, ownerID uuid.UUID) ([]*entity.Store, error) {
	var stores []*entity.Store
	if err := r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("name ASC").
		Find(&stores).Error; err != nil {
		return nil, err
	}
	return stores, nil
}

// Update writes the editable columns only. A changed owner is promoted like on Create.
func (r *storeRepository) Update(ctx context.Context, store *entity.Store) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&entity.Store{}).
			Where("id = ?", store.ID).
			Updates(map[string]any{
				"name":     store.Name,
				"email":    store.Email,
				"address":  store.Address,
				"owner_id": store.OwnerID,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return promoteOwner(tx, store.OwnerID)
	})
}

func (r *storeRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).Delete(&entity.Store{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *storeRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&entity.Store{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func promoteOwner(tx *gorm.DB, ownerID uuid.UUID) error {
	return tx.Model(&entity.User{}).
		Where("id = ? AND role = ?", ownerID, entity.RoleNormalUser).
		Update("role", entity.RoleStoreOwner).Error
}
