package repository

import (
	"context"
	"strings"

	"anoa.com/storerating/internal/entity"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// UserFilter drives the admin user list.
// FilterType narrows Search to one column: name, email, address or role. Empty or "all" searches name, email and address.
type UserFilter struct {
	Search     string
	FilterType string
	Role       entity.Role
	SortBy     string
	Desc       bool
	Offset     int
	Limit      int
}

type UserRepository interface {
	Create(ctx context.Context, user *entity.User) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.User, error)
	FindByEmail(ctx context.Context, email string) (*entity.User, error)
	FindAll(ctx context.Context, filter UserFilter) ([]*entity.User, int64, error)
	Update(ctx context.Context, user *entity.User) error
	UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error
	Delete(ctx context.Context, id uuid.UUID) error
	Count(ctx context.Context) (int64, error)
	CountByRole(ctx context.Context, role entity.Role) (int64, error)
}

type userRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

var userSortColumns = map[string]string{
	"name":      "name",
	"email":     "email",
	"address":   "address",
	"role":      "role",
	"createdAt": "created_at",
}

func (r *userRepository) Create(ctx context.Context, user *entity.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

func (r *userRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.User, error) {
	var user entity.User
	if err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) FindByEmail(ctx context.Context, email string) (*entity.User, error) {
	var user entity.User
	if err := r.db.WithContext(ctx).
		Where("LOWER(email) = ?", strings.ToLower(email)).
		First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) FindAll(ctx context.Context, filter UserFilter) ([]*entity.User, int64, error) {
	var users []*entity.User
	var total int64

	query := r.db.WithContext(ctx).Model(&entity.User{})

	if filter.Search != "" {
		pattern := "%" + filter.Search + "%"
		switch filter.FilterType {
		case "name", "email", "address":
			query = query.Where(filter.FilterType+" ILIKE ?", pattern)
		case "role":
			query = query.Where("CAST(role AS TEXT) ILIKE ?", pattern)
		default:
			query = query.Where("name ILIKE ? OR email ILIKE ? OR address ILIKE ?", pattern, pattern, pattern)
		}
	}

	if filter.Role != "" {
		query = query.Where("role = ?", filter.Role)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	column, ok := userSortColumns[filter.SortBy]
	if !ok {
		column = "created_at"
	}
	direction := " ASC"
	if filter.Desc {
		direction = " DESC"
	}

	if err := query.
		Order(column + direction).
		Order("id ASC").
		Offset(filter.Offset).
		Limit(filter.Limit).
		Find(&users).Error; err != nil {
		return nil, 0, err
	}

	return users, total, nil
}

func (r *userRepository) Update(ctx context.Context, user *entity.User) error {
	return r.db.WithContext(ctx).
		Model(&entity.User{}).
		Where("id = ?", user.ID).
		Updates(map[string]any{
			"name":    user.Name,
			"email":   user.Email,
			"address": user.Address,
			"role":    user.Role,
		}).Error
}

func (r *userRepository) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	res := r.db.WithContext(ctx).
		Model(&entity.User{}).
		Where("id = ?", id).
		Update("password", passwordHash)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *userRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).Delete(&entity.User{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *userRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&entity.User{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *userRepository) CountByRole(ctx context.Context, role entity.Role) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&entity.User{}).
		Where("role = ?", role).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
