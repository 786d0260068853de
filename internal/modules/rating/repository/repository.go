package repository

import (
	"context"

	"anoa.com/storerating/internal/entity"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type RatingRepository interface {
	// Transaction runs fn against a repository bound to one database transaction.
	// Calling it on a repository that is already transactional opens a savepoint.
	Transaction(ctx context.Context, fn func(repo RatingRepository) error) error

	// LockStore loads the store row with SELECT ... FOR UPDATE.
	LockStore(ctx context.Context, storeID uuid.UUID) (*entity.Store, error)
	FindStore(ctx context.Context, storeID uuid.UUID) (*entity.Store, error)

	FindByID(ctx context.Context, id uuid.UUID) (*entity.Rating, error)
	FindByIDAndUser(ctx context.Context, id, userID uuid.UUID) (*entity.Rating, error)
	FindByUserAndStore(ctx context.Context, userID, storeID uuid.UUID) (*entity.Rating, error)
	Create(ctx context.Context, rating *entity.Rating) error
	Update(ctx context.Context, rating *entity.Rating) error
	Delete(ctx context.Context, id uuid.UUID) error
	DeleteByUser(ctx context.Context, userID uuid.UUID) (int64, error)
	Count(ctx context.Context) (int64, error)

	ListByStore(ctx context.Context, storeID uuid.UUID, offset, limit int) ([]*entity.Rating, int64, error)
	ListByUser(ctx context.Context, userID uuid.UUID, offset, limit int) ([]*entity.Rating, int64, error)

	AggregateForStore(ctx context.Context, storeID uuid.UUID) (entity.Aggregate, error)
	UpdateStoreAggregate(ctx context.Context, storeID uuid.UUID, average float64, total int64) error
	StoreIDsRatedBy(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error)
	StoreIDsOwnedBy(ctx context.Context, ownerID uuid.UUID) ([]uuid.UUID, error)
	AllStoreIDs(ctx context.Context) ([]uuid.UUID, error)

	// LockUser loads the user row with SELECT ... FOR UPDATE. Holding it blocks new ratings
	// by that user, since their foreign key check needs a share lock on the same row.
	LockUser(ctx context.Context, userID uuid.UUID) (*entity.User, error)
	// DeleteUser removes the user row. Owned stores and their ratings go through the cascade.
	DeleteUser(ctx context.Context, userID uuid.UUID) error
}

type ratingRepository struct {
	db *gorm.DB
}

func NewRatingRepository(db *gorm.DB) RatingRepository {
	return &ratingRepository{db: db}
}

func (r *ratingRepository) Transaction(ctx context.Context, fn func(repo RatingRepository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&ratingRepository{db: tx})
	})
}

func (r *ratingRepository) LockStore(ctx context.Context, storeID uuid.UUID) (*entity.Store, error) {
	var store entity.Store
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", storeID).
		First(&store).Error; err != nil {
		return nil, err
	}
	return &store, nil
}

func (r *ratingRepository) FindStore(ctx context.Context, storeID uuid.UUID) (*entity.Store, error) {
	var store entity.Store
	if err := r.db.WithContext(ctx).
		Where("id = ?", storeID).
		First(&store).Error; err != nil {
		return nil, err
	}
	return &store, nil
}

func (r *ratingRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Rating, error) {
	var rating entity.Rating
	if err := r.db.WithContext(ctx).
		Preload("User").
		Preload("Store").
		Where("id = ?", id).
		First(&rating).Error; err != nil {
		return nil, err
	}
	return &rating, nil
}

func (r *ratingRepository) FindByIDAndUser(ctx context.Context, id, userID uuid.UUID) (*entity.Rating, error) {
	var rating entity.Rating
	if err := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&rating).Error; err != nil {
		return nil, err
	}
	return &rating, nil
}

func (r *ratingRepository) FindByUserAndStore(ctx context.Context, userID, storeID uuid.UUID) (*entity.Rating, error) {
	var rating entity.Rating
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND store_id = ?", userID, storeID).
		First(&rating).Error; err != nil {
		return nil, err
	}
	return &rating, nil
}

// Create runs inside its own savepoint so a duplicate-key failure leaves the surrounding transaction usable.
func (r *ratingRepository) Create(ctx context.Context, rating *entity.Rating) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Omit(clause.Associations).Create(rating).Error
	})
}

func (r *ratingRepository) Update(ctx context.Context, rating *entity.Rating) error {
	res := r.db.WithContext(ctx).
		Model(&entity.Rating{}).
		Where("id = ?", rating.ID).
		Updates(map[string]any{
			"rating":  rating.Rating,
			"comment": rating.Comment,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *ratingRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).Delete(&entity.Rating{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *ratingRepository) DeleteByUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).Delete(&entity.Rating{}, "user_id = ?", userID)
	return res.RowsAffected, res.Error
}

func (r *ratingRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&entity.Rating{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *ratingRepository) ListByStore(ctx context.Context, storeID uuid.UUID, offset, limit int) ([]*entity.Rating, int64, error) {
	var ratings []*entity.Rating
	var total int64

	query := r.db.WithContext(ctx).
		Model(&entity.Rating{}).
		Where("store_id = ?", storeID)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if err := query.
		Preload("User").
		Order("created_at DESC").
		Order("id DESC").
		Offset(offset).
		Limit(limit).
		Find(&ratings).Error; err != nil {
		return nil, 0, err
	}

	return ratings, total, nil
}

func (r *ratingRepository) ListByUser(ctx context.Context, userID uuid.UUID, offset, limit int) ([]*entity.Rating, int64, error) {
	var ratings []*entity.Rating
	var total int64

	query := r.db.WithContext(ctx).
		Model(&entity.Rating{}).
		Where("user_id = ?", userID)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if err := query.
		Preload("Store").
		Order("created_at DESC").
		Order("id DESC").
		Offset(offset).
		Limit(limit).
		Find(&ratings).Error; err != nil {
		return nil, 0, err
	}

	return ratings, total, nil
}

func (r *ratingRepository) AggregateForStore(ctx context.Context, storeID uuid.UUID) (entity.Aggregate, error) {
	var agg entity.Aggregate
	err := r.db.WithContext(ctx).
		Model(&entity.Rating{}).
		Select("COALESCE(AVG(rating), 0) AS average, COUNT(*) AS count").
		Where("store_id = ?", storeID).
		Scan(&agg).Error
	return agg, err
}

func (r *ratingRepository) UpdateStoreAggregate(ctx context.Context, storeID uuid.UUID, average float64, total int64) error {
	res := r.db.WithContext(ctx).
		Model(&entity.Store{}).
		Where("id = ?", storeID).
		Updates(map[string]any{
			"average_rating": average,
			"total_ratings":  total,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *ratingRepository) StoreIDsRatedBy(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&entity.Rating{}).
		Where("user_id = ?", userID).
		Distinct().
		Order("store_id").
		Pluck("store_id", &ids).Error
	return ids, err
}

func (r *ratingRepository) StoreIDsOwnedBy(ctx context.Context, ownerID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&entity.Store{}).
		Where("owner_id = ?", ownerID).
		Order("id").
		Pluck("id", &ids).Error
	return ids, err
}

func (r *ratingRepository) LockUser(ctx context.Context, userID uuid.UUID) (*entity.User, error) {
	var user entity.User
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", userID).
		First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *ratingRepository) DeleteUser(ctx context.Context, userID uuid.UUID) error {
	res := r.db.WithContext(ctx).Delete(&entity.User{}, "id = ?", userID)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *ratingRepository) AllStoreIDs(ctx context.Context) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&entity.Store{}).
		Order("id").
		Pluck("id", &ids).Error
	return ids, err
}
