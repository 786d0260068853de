package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"anoa.com/storerating/internal/entity"
	"anoa.com/storerating/internal/modules/admin/dto"
	userDto "anoa.com/storerating/internal/modules/user/dto"
	userRepo "anoa.com/storerating/internal/modules/user/repository"
	"anoa.com/storerating/pkg/apperror"
	commonDto "anoa.com/storerating/pkg/dto"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	errUserNotFound = fmt.Errorf("user not found: %w", apperror.ErrNotFound)
	errEmailTaken   = fmt.Errorf("email already registered: %w", apperror.ErrConflict)
)

type StoreOwnerLookup interface {
	FindByOwner(ctx context.Context, ownerID uuid.UUID) ([]*entity.Store, error)
}

// UserRemover deletes a user with their ratings and owned stores in one transaction, keeping
// the aggregates of every other store they rated exact. It returns the deleted store ids.
type UserRemover interface {
	RemoveUser(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error)
}

type StoreUnindexer interface {
	RemoveStore(ctx context.Context, id uuid.UUID) error
}

type StatsInvalidator interface {
	Invalidate(ctx context.Context)
}

type AdminService interface {
	ListUsers(ctx context.Context, q dto.UserListQuery) (*dto.UserListResponse, error)
	GetUser(ctx context.Context, id uuid.UUID) (*dto.UserDetailResponse, error)
	CreateUser(ctx context.Context, input dto.CreateUserInput) (*userDto.UserResponse, error)
	UpdateUser(ctx context.Context, id uuid.UUID, input dto.UpdateUserInput) (*userDto.UserResponse, error)
	DeleteUser(ctx context.Context, actorID, id uuid.UUID) error
}

type adminService struct {
	users      userRepo.UserRepository
	stores     StoreOwnerLookup
	ratings    UserRemover
	index      StoreUnindexer
	stats      StatsInvalidator
	log        logrus.FieldLogger
	bcryptCost int
}

func NewAdminService(
	users userRepo.UserRepository,
	stores StoreOwnerLookup,
	ratings UserRemover,
	index StoreUnindexer,
	stats StatsInvalidator,
	log logrus.FieldLogger,
) AdminService {
	return &adminService{
		users:      users,
		stores:     stores,
		ratings:    ratings,
		index:      index,
		stats:      stats,
		log:        log,
		bcryptCost: bcrypt.DefaultCost,
	}
}

func (s *adminService) ListUsers(ctx context.Context, q dto.UserListQuery) (*dto.UserListResponse, error) {
	q.Normalize()
	users, total, err := s.users.FindAll(ctx, userRepo.UserFilter{
		Search:     strings.TrimSpace(q.Search),
		FilterType: q.FilterType,
		Role:       entity.Role(q.Role),
		SortBy:     q.SortBy,
		Desc:       q.Descending(),
		Offset:     q.Offset(),
		Limit:      q.Limit,
	})
	if err != nil {
		return nil, err
	}

	return &dto.UserListResponse{
		Users:      dto.NewUserResponses(users),
		Pagination: commonDto.NewPagination(total, q.Page, q.Limit),
	}, nil
}

func (s *adminService) GetUser(ctx context.Context, id uuid.UUID) (*dto.UserDetailResponse, error) {
	user, err := s.findUser(ctx, id)
	if err != nil {
		return nil, err
	}

	res := &dto.UserDetailResponse{UserResponse: userDto.NewUserResponse(user)}
	if user.Role != entity.RoleStoreOwner {
		return res, nil
	}

	stores, err := s.stores.FindByOwner(ctx, id)
	if err != nil {
		return nil, err
	}
	res.OwnedStores = make([]dto.OwnedStoreSummary, 0, len(stores))
	for _, st := range stores {
		res.OwnedStores = append(res.OwnedStores, dto.OwnedStoreSummary{
			ID:            st.ID,
			Name:          st.Name,
			AverageRating: st.AverageRating,
		})
	}
	return res, nil
}

func (s *adminService) CreateUser(ctx context.Context, input dto.CreateUserInput) (*userDto.UserResponse, error) {
	email := strings.TrimSpace(input.Email)
	if err := s.ensureEmailFree(ctx, email, uuid.Nil); err != nil {
		return nil, err
	}

	role := entity.RoleNormalUser
	if input.Role != "" {
		parsed, err := entity.ParseRole(input.Role)
		if err != nil {
			return nil, fmt.Errorf("%v: %w", err, apperror.ErrInvalidInput)
		}
		role = parsed
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), s.bcryptCost)
	if err != nil {
		return nil, err
	}

	user := &entity.User{
		Name:         strings.TrimSpace(input.Name),
		Email:        email,
		PasswordHash: string(hash),
		Address:      strings.TrimSpace(input.Address),
		Role:         role,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, errEmailTaken
		}
		return nil, err
	}

	s.log.WithFields(logrus.Fields{"user_id": user.ID, "role": role}).Info("user created by admin")
	s.invalidate(ctx)

	res := userDto.NewUserResponse(user)
	return &res, nil
}

func (s *adminService) UpdateUser(ctx context.Context, id uuid.UUID, input dto.UpdateUserInput) (*userDto.UserResponse, error) {
	user, err := s.findUser(ctx, id)
	if err != nil {
		return nil, err
	}

	if input.Name != nil {
		user.Name = strings.TrimSpace(*input.Name)
	}
	if input.Address != nil {
		user.Address = strings.TrimSpace(*input.Address)
	}
	if input.Email != nil {
		email := strings.TrimSpace(*input.Email)
		if !strings.EqualFold(email, user.Email) {
			if err := s.ensureEmailFree(ctx, email, user.ID); err != nil {
				return nil, err
			}
		}
		user.Email = email
	}
	if input.Role != nil {
		role, err := entity.ParseRole(*input.Role)
		if err != nil {
			return nil, fmt.Errorf("%v: %w", err, apperror.ErrInvalidInput)
		}
		user.Role = role
	}

	if err := s.users.Update(ctx, user); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, errEmailTaken
		}
		return nil, err
	}

	s.log.WithField("user_id", id).Info("user updated by admin")

	res := userDto.NewUserResponse(user)
	return &res, nil
}

// DeleteUser removes the user along with their ratings and owned stores. Stores they rated are recomputed
// in the same transaction.
func (s *adminService) DeleteUser(ctx context.Context, actorID, id uuid.UUID) error {
	if actorID == id {
		return fmt.Errorf("admins cannot delete their own account: %w", apperror.ErrInvalidInput)
	}

	user, err := s.findUser(ctx, id)
	if err != nil {
		return err
	}

	owned, err := s.ratings.RemoveUser(ctx, id)
	if err != nil {
		return err
	}

	s.log.WithFields(logrus.Fields{
		"user_id":      id,
		"role":         user.Role,
		"owned_stores": len(owned),
	}).Info("user deleted")

	if s.index != nil {
		for _, storeID := range owned {
			if err := s.index.RemoveStore(ctx, storeID); err != nil {
				s.log.WithError(err).WithField("store_id", storeID).Warn("failed to remove store from search index")
			}
		}
	}
	s.invalidate(ctx)
	return nil
}

func (s *adminService) findUser(ctx context.Context, id uuid.UUID) (*entity.User, error) {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errUserNotFound
		}
		return nil, err
	}
	return user, nil
}

func (s *adminService) ensureEmailFree(ctx context.Context, email string, self uuid.UUID) error {
	existing, err := s.users.FindByEmail(ctx, email)
	switch {
	case err == nil:
		if existing.ID != self {
			return errEmailTaken
		}
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil
	default:
		return err
	}
}

func (s *adminService) invalidate(ctx context.Context) {
	if s.stats != nil {
		s.stats.Invalidate(ctx)
	}
}
