package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"anoa.com/storerating/internal/entity"
	searchService "anoa.com/storerating/internal/modules/search/service"
	"anoa.com/storerating/internal/modules/store/dto"
	storeRepo "anoa.com/storerating/internal/modules/store/repository"
	userRepo "anoa.com/storerating/internal/modules/user/repository"
	"anoa.com/storerating/pkg/apperror"
	commonDto "anoa.com/storerating/pkg/dto"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

var (
	errStoreNotFound = fmt.Errorf("store not found: %w", apperror.ErrNotFound)
	errOwnerNotFound = fmt.Errorf("owner not found: %w", apperror.ErrNotFound)
	errEmailTaken    = fmt.Errorf("store email already in use: %w", apperror.ErrConflict)
)

// RatingLookup finds the caller's own rating for the store detail view.
type RatingLookup interface {
	FindByUserAndStore(ctx context.Context, userID, storeID uuid.UUID) (*entity.Rating, error)
}

type StatsInvalidator interface {
	Invalidate(ctx context.Context)
}

type StoreService interface {
	List(ctx context.Context, q dto.StoreListQuery) (*dto.StoreListResponse, error)
	// Search uses the search index when one is configured and falls back to List otherwise.
	Search(ctx context.Context, q dto.StoreListQuery) (*dto.StoreListResponse, error)
	Get(ctx context.Context, id uuid.UUID, callerID *uuid.UUID) (*dto.StoreDetailResponse, error)
	Create(ctx context.Context, input dto.CreateStoreInput) (*dto.StoreResponse, error)
	Update(ctx context.Context, id uuid.UUID, input dto.UpdateStoreInput) (*dto.StoreResponse, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Owned(ctx context.Context, ownerID uuid.UUID) ([]dto.StoreResponse, error)
}

type storeService struct {
	stores  storeRepo.StoreRepository
	users   userRepo.UserRepository
	ratings RatingLookup
	search  searchService.StoreSearchService
	stats   StatsInvalidator
	log     logrus.FieldLogger
}

func NewStoreService(
	stores storeRepo.StoreRepository,
	users userRepo.UserRepository,
	ratings RatingLookup,
	search searchService.StoreSearchService,
	stats StatsInvalidator,
	log logrus.FieldLogger,
) StoreService {
	return &storeService{
		stores:  stores,
		users:   users,
		ratings: ratings,
		search:  search,
		stats:   stats,
		log:     log,
	}
}

func (s *storeService) List(ctx context.Context, q dto.StoreListQuery) (*dto.StoreListResponse, error) {
	q.Normalize()
	stores, total, err := s.stores.FindAll(ctx, storeRepo.StoreFilter{
		Search: q.Search,
		SortBy: q.SortBy,
		Desc:   q.Descending(),
		Offset: q.Offset(),
		Limit:  q.Limit,
	})
	if err != nil {
		return nil, err
	}

	return &dto.StoreListResponse{
		Stores:     dto.NewStoreResponses(stores),
		Pagination: commonDto.NewPagination(total, q.Page, q.Limit),
	}, nil
}

func (s *storeService) Search(ctx context.Context, q dto.StoreListQuery) (*dto.StoreListResponse, error) {
	if s.search == nil || !s.search.Enabled() || strings.TrimSpace(q.Search) == "" {
		return s.List(ctx, q)
	}

	q.Normalize()
	ids, total, err := s.search.SearchStores(ctx, q.Search, q.Offset(), q.Limit)
	if err != nil {
		s.log.WithError(err).Warn("store search index unavailable, falling back to database")
		return s.List(ctx, q)
	}

	stores, err := s.stores.FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	return &dto.StoreListResponse{
		Stores:     dto.NewStoreResponses(stores),
		Pagination: commonDto.NewPagination(total, q.Page, q.Limit),
	}, nil
}

func (s *storeService) Get(ctx context.Context, id uuid.UUID, callerID *uuid.UUID) (*dto.StoreDetailResponse, error) {
	store, err := s.stores.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errStoreNotFound
		}
		return nil, err
	}

	res := &dto.StoreDetailResponse{StoreResponse: dto.NewStoreResponse(store)}
	if callerID == nil || s.ratings == nil {
		return res, nil
	}

	rating, err := s.ratings.FindByUserAndStore(ctx, *callerID, id)
	switch {
	case err == nil:
		res.UserRating = &rating.Rating
	case errors.Is(err, gorm.ErrRecordNotFound):
	default:
		return nil, err
	}
	return res, nil
}

func (s *storeService) Create(ctx context.Context, input dto.CreateStoreInput) (*dto.StoreResponse, error) {
	ownerID, err := uuid.Parse(input.OwnerID)
	if err != nil {
		return nil, fmt.Errorf("invalid owner id: %w", apperror.ErrInvalidInput)
	}
	if err := s.ensureOwner(ctx, ownerID); err != nil {
		return nil, err
	}

	email := strings.TrimSpace(input.Email)
	if err := s.ensureEmailFree(ctx, email, uuid.Nil); err != nil {
		return nil, err
	}

	store := &entity.Store{
		Name:    strings.TrimSpace(input.Name),
		Email:   email,
		Address: strings.TrimSpace(input.Address),
		OwnerID: ownerID,
	}
	if err := s.stores.Create(ctx, store); err != nil {
		return nil, translateWriteError(err)
	}

	s.log.WithFields(logrus.Fields{"store_id": store.ID, "owner_id": ownerID}).Info("store created")
	s.afterWrite(ctx, store)

	res := dto.NewStoreResponse(store)
	return &res, nil
}

func (s *storeService) Update(ctx context.Context, id uuid.UUID, input dto.UpdateStoreInput) (*dto.StoreResponse, error) {
	store, err := s.stores.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errStoreNotFound
		}
		return nil, err
	}

	if input.Name != nil {
		store.Name = strings.TrimSpace(*input.Name)
	}
	if input.Address != nil {
		store.Address = strings.TrimSpace(*input.Address)
	}
	if input.Email != nil {
		email := strings.TrimSpace(*input.Email)
		if !strings.EqualFold(email, store.Email) {
			if err := s.ensureEmailFree(ctx, email, store.ID); err != nil {
				return nil, err
			}
		}
		store.Email = email
	}
	if input.OwnerID != nil {
		ownerID, err := uuid.Parse(*input.OwnerID)
		if err != nil {
			return nil, fmt.Errorf("invalid owner id: %w", apperror.ErrInvalidInput)
		}
		if ownerID != store.OwnerID {
			if err := s.ensureOwner(ctx, ownerID); err != nil {
				return nil, err
			}
			store.OwnerID = ownerID
			store.Owner = nil
		}
	}

	if err := s.stores.Update(ctx, store); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errStoreNotFound
		}
		return nil, translateWriteError(err)
	}

	updated, err := s.stores.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	s.afterWrite(ctx, updated)

	res := dto.NewStoreResponse(updated)
	return &res, nil
}

// Delete removes the store; its ratings go with it through the foreign key cascade.
func (s *storeService) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.stores.Delete(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errStoreNotFound
		}
		return err
	}

	s.log.WithField("store_id", id).Info("store deleted")

	if s.search != nil {
		if err := s.search.RemoveStore(ctx, id); err != nil {
			s.log.WithError(err).WithField("store_id", id).Warn("failed to remove store from search index")
		}
	}
	if s.stats != nil {
		s.stats.Invalidate(ctx)
	}
	return nil
}

func (s *storeService) Owned(ctx context.Context, ownerID uuid.UUID) ([]dto.StoreResponse, error) {
	stores, err := s.stores.FindByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	return dto.NewStoreResponses(stores), nil
}

func (s *storeService) ensureOwner(ctx context.Context, ownerID uuid.UUID) error {
	if _, err := s.users.FindByID(ctx, ownerID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errOwnerNotFound
		}
		return err
	}
	return nil
}

func (s *storeService) ensureEmailFree(ctx context.Context, email string, self uuid.UUID) error {
	existing, err := s.stores.FindByEmail(ctx, email)
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

func (s *storeService) afterWrite(ctx context.Context, store *entity.Store) {
	if s.stats != nil {
		s.stats.Invalidate(ctx)
	}
	if s.search != nil {
		if err := s.search.IndexStore(ctx, store); err != nil {
			s.log.WithError(err).WithField("store_id", store.ID).Warn("failed to index store")
		}
	}
}

func translateWriteError(err error) error {
	switch {
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return errEmailTaken
	case errors.Is(err, gorm.ErrForeignKeyViolated):
		return errOwnerNotFound
	default:
		return err
	}
}
