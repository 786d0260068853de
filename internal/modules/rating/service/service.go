package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html"
	"math"
	"slices"
	"strings"
	"time"

	"anoa.com/storerating/internal/entity"
	"anoa.com/storerating/internal/metrics"
	"anoa.com/storerating/internal/modules/rating/dto"
	"anoa.com/storerating/internal/modules/rating/repository"
	"anoa.com/storerating/pkg/apperror"
	commonDto "anoa.com/storerating/pkg/dto"
	"anoa.com/storerating/pkg/validator"
	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

var (
	errStoreNotFound  = fmt.Errorf("store not found: %w", apperror.ErrNotFound)
	errRatingNotFound = fmt.Errorf("rating not found: %w", apperror.ErrNotFound)
	errUserNotFound   = fmt.Errorf("user not found: %w", apperror.ErrNotFound)
)

// StoreIndexer keeps the search index in step with store aggregates.
type StoreIndexer interface {
	IndexStore(ctx context.Context, store *entity.Store) error
}

type RatingService interface {
	SubmitRating(ctx context.Context, userID, storeID uuid.UUID, rating int, comment *string) (*dto.SubmitResult, error)
	DeleteRating(ctx context.Context, userID, ratingID uuid.UUID) error
	ListRatingsForStore(ctx context.Context, callerID uuid.UUID, role entity.Role, storeID uuid.UUID, q commonDto.ListQuery) (*dto.StoreRatingsResponse, error)
	ListRatingsForUser(ctx context.Context, userID uuid.UUID, q commonDto.ListQuery) (*dto.MyRatingsResponse, error)
	// AuthorizeStoreFeed applies the same access rule as ListRatingsForStore without loading ratings.
	AuthorizeStoreFeed(ctx context.Context, callerID uuid.UUID, role entity.Role, storeID uuid.UUID) error

	RecomputeStore(ctx context.Context, storeID uuid.UUID) error
	// RecomputeAll rebuilds every store's aggregate and returns how many stores were rewritten.
	RecomputeAll(ctx context.Context) (int, error)
	// RemoveUser deletes a user, their ratings and the stores they own in one transaction, recomputing
	// every other store they rated. It returns the ids of the deleted stores.
	RemoveUser(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error)
}

type ratingService struct {
	repo      repository.RatingRepository
	publisher Publisher
	stats     StatsInvalidator
	indexer   StoreIndexer
	metrics   *metrics.Metrics
	sanitizer *bluemonday.Policy
	log       logrus.FieldLogger
}

// NewRatingService wires the aggregator. publisher, stats, indexer and m may be nil.
func NewRatingService(
	repo repository.RatingRepository,
	publisher Publisher,
	stats StatsInvalidator,
	indexer StoreIndexer,
	m *metrics.Metrics,
	log logrus.FieldLogger,
) RatingService {
	return &ratingService{
		repo:      repo,
		publisher: publisher,
		stats:     stats,
		indexer:   indexer,
		metrics:   m,
		sanitizer: bluemonday.StrictPolicy(),
		log:       log,
	}
}

// mutation carries what a committed transaction changed, for the post-commit side effects.
type mutation struct {
	status string
	rating *entity.Rating
	store  *entity.Store
	agg    entity.Aggregate
}

func (s *ratingService) SubmitRating(ctx context.Context, userID, storeID uuid.UUID, rating int, comment *string) (*dto.SubmitResult, error) {
	if err := validator.ValidateRatingValue(rating); err != nil {
		return nil, err
	}
	comment = s.cleanComment(comment)

	var m mutation
	err := s.repo.Transaction(ctx, func(tx repository.RatingRepository) error {
		store, err := tx.LockStore(ctx, storeID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return errStoreNotFound
			}
			return err
		}

		saved, status, err := s.upsert(ctx, tx, userID, storeID, rating, comment)
		if err != nil {
			return err
		}

		agg, err := s.recompute(ctx, tx, store)
		if err != nil {
			return err
		}

		reloaded, err := tx.FindByID(ctx, saved.ID)
		if err != nil {
			return fmt.Errorf("reload rating %s: %w", saved.ID, err)
		}

		m = mutation{status: status, rating: reloaded, store: store, agg: agg}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.afterCommit(ctx, m)

	return &dto.SubmitResult{
		Rating: toRatingResponse(m.rating),
		Status: m.status,
	}, nil
}

// upsert updates the caller's existing rating in place or inserts a new one. A duplicate key on
// insert means another writer got there first; the row is then updated once, and a second miss
// is reported as internal.
func (s *ratingService) upsert(ctx context.Context, tx repository.RatingRepository, userID, storeID uuid.UUID, value int, comment *string) (*entity.Rating, string, error) {
	existing, err := tx.FindByUserAndStore(ctx, userID, storeID)
	if err == nil {
		return s.updateExisting(ctx, tx, existing, value, comment)
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, "", err
	}

	created := &entity.Rating{
		UserID:  userID,
		StoreID: storeID,
		Rating:  value,
		Comment: comment,
	}
	err = tx.Create(ctx, created)
	switch {
	case err == nil:
		return created, dto.StatusCreated, nil
	case errors.Is(err, gorm.ErrForeignKeyViolated):
		return nil, "", errUserNotFound
	case !errors.Is(err, gorm.ErrDuplicatedKey):
		return nil, "", err
	}

	s.metrics.ObserveConflict()
	s.log.WithFields(logrus.Fields{"user_id": userID, "store_id": storeID}).Warn("duplicate rating insert, retrying as update")

	existing, err = tx.FindByUserAndStore(ctx, userID, storeID)
	if err != nil {
		return nil, "", fmt.Errorf("rating for user %s on store %s conflicted twice: %w", userID, storeID, apperror.ErrInternal)
	}
	saved, status, err := s.updateExisting(ctx, tx, existing, value, comment)
	if err != nil {
		return nil, "", fmt.Errorf("rating for user %s on store %s conflicted twice: %w", userID, storeID, apperror.ErrInternal)
	}
	return saved, status, nil
}

func (s *ratingService) updateExisting(ctx context.Context, tx repository.RatingRepository, existing *entity.Rating, value int, comment *string) (*entity.Rating, string, error) {
	existing.Rating = value
	existing.Comment = comment
	if err := tx.Update(ctx, existing); err != nil {
		return nil, "", err
	}
	return existing, dto.StatusUpdated, nil
}

// recompute reads AVG/COUNT fresh from the ratings table and writes both onto the locked store.
func (s *ratingService) recompute(ctx context.Context, tx repository.RatingRepository, store *entity.Store) (entity.Aggregate, error) {
	agg, err := tx.AggregateForStore(ctx, store.ID)
	if err != nil {
		return entity.Aggregate{}, fmt.Errorf("aggregate store %s: %w", store.ID, err)
	}
	agg.Average = round2(agg.Average)

	if err := tx.UpdateStoreAggregate(ctx, store.ID, agg.Average, agg.Count); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entity.Aggregate{}, errStoreNotFound
		}
		return entity.Aggregate{}, fmt.Errorf("update store %s aggregate: %w", store.ID, err)
	}

	store.AverageRating = agg.Average
	store.TotalRatings = int(agg.Count)
	return agg, nil
}

func (s *ratingService) DeleteRating(ctx context.Context, userID, ratingID uuid.UUID) error {
	var m mutation
	err := s.repo.Transaction(ctx, func(tx repository.RatingRepository) error {
		// non-owners get the same answer as a missing id
		existing, err := tx.FindByIDAndUser(ctx, ratingID, userID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return errRatingNotFound
			}
			return err
		}

		store, err := tx.LockStore(ctx, existing.StoreID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return errRatingNotFound
			}
			return err
		}

		if err := tx.Delete(ctx, existing.ID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return errRatingNotFound
			}
			return err
		}

		agg, err := s.recompute(ctx, tx, store)
		if err != nil {
			return err
		}

		m = mutation{status: dto.StatusDeleted, rating: existing, store: store, agg: agg}
		return nil
	})
	if err != nil {
		return err
	}

	s.afterCommit(ctx, m)
	return nil
}

func (s *ratingService) checkStoreAccess(ctx context.Context, callerID uuid.UUID, role entity.Role, storeID uuid.UUID) (*entity.Store, error) {
	store, err := s.repo.FindStore(ctx, storeID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errStoreNotFound
		}
		return nil, err
	}

	switch role {
	case entity.RoleSystemAdmin:
		return store, nil
	case entity.RoleStoreOwner:
		if store.OwnerID == callerID {
			return store, nil
		}
		return nil, fmt.Errorf("store %s is not owned by caller: %w", storeID, apperror.ErrForbidden)
	default:
		return nil, fmt.Errorf("role %q may not view store ratings: %w", role, apperror.ErrForbidden)
	}
}

func (s *ratingService) AuthorizeStoreFeed(ctx context.Context, callerID uuid.UUID, role entity.Role, storeID uuid.UUID) error {
	_, err := s.checkStoreAccess(ctx, callerID, role, storeID)
	return err
}

func (s *ratingService) ListRatingsForStore(ctx context.Context, callerID uuid.UUID, role entity.Role, storeID uuid.UUID, q commonDto.ListQuery) (*dto.StoreRatingsResponse, error) {
	if _, err := s.checkStoreAccess(ctx, callerID, role, storeID); err != nil {
		return nil, err
	}

	q.Normalize()
	ratings, total, err := s.repo.ListByStore(ctx, storeID, q.Offset(), q.Limit)
	if err != nil {
		return nil, err
	}

	out := make([]dto.RatingResponse, 0, len(ratings))
	for _, r := range ratings {
		res := dto.NewRatingResponse(r)
		if r.User != nil {
			res.User = &dto.RatingUserSummary{
				ID:      r.User.ID,
				Name:    r.User.Name,
				Email:   r.User.Email,
				Address: r.User.Address,
			}
		}
		out = append(out, res)
	}

	return &dto.StoreRatingsResponse{
		Ratings:    out,
		Pagination: commonDto.NewPagination(total, q.Page, q.Limit),
	}, nil
}

func (s *ratingService) ListRatingsForUser(ctx context.Context, userID uuid.UUID, q commonDto.ListQuery) (*dto.MyRatingsResponse, error) {
	q.Normalize()
	ratings, total, err := s.repo.ListByUser(ctx, userID, q.Offset(), q.Limit)
	if err != nil {
		return nil, err
	}

	out := make([]dto.RatingResponse, 0, len(ratings))
	for _, r := range ratings {
		res := dto.NewRatingResponse(r)
		if r.Store != nil {
			avg := r.Store.AverageRating
			res.Store = &dto.RatingStoreSummary{
				ID:            r.Store.ID,
				Name:          r.Store.Name,
				Address:       r.Store.Address,
				AverageRating: &avg,
			}
		}
		out = append(out, res)
	}

	return &dto.MyRatingsResponse{
		Ratings:    out,
		Pagination: commonDto.NewPagination(total, q.Page, q.Limit),
	}, nil
}

func (s *ratingService) RecomputeStore(ctx context.Context, storeID uuid.UUID) error {
	_, err := s.recomputeLocked(ctx, storeID)
	return err
}

// recomputeLocked reports whether the stored aggregate had drifted from the ratings table.
func (s *ratingService) recomputeLocked(ctx context.Context, storeID uuid.UUID) (bool, error) {
	var (
		drifted bool
		store   *entity.Store
	)
	err := s.repo.Transaction(ctx, func(tx repository.RatingRepository) error {
		locked, err := tx.LockStore(ctx, storeID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return errStoreNotFound
			}
			return err
		}
		before, beforeCount := locked.AverageRating, locked.TotalRatings

		agg, err := s.recompute(ctx, tx, locked)
		if err != nil {
			return err
		}
		drifted = round2(before) != agg.Average || int64(beforeCount) != agg.Count
		store = locked
		return nil
	})
	if err != nil {
		return false, err
	}

	if drifted {
		s.log.WithFields(logrus.Fields{
			"store_id":      storeID,
			"average":       store.AverageRating,
			"total_ratings": store.TotalRatings,
		}).Warn("store aggregate drifted, rewritten")
		s.reindex(ctx, store)
	}
	return drifted, nil
}

func (s *ratingService) RecomputeAll(ctx context.Context) (int, error) {
	ids, err := s.repo.AllStoreIDs(ctx)
	if err != nil {
		return 0, err
	}

	var (
		errs     []error
		repaired int
	)
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		drifted, err := s.recomputeLocked(ctx, id)
		if err != nil {
			// deleted since AllStoreIDs ran
			if errors.Is(err, apperror.ErrNotFound) {
				continue
			}
			errs = append(errs, fmt.Errorf("store %s: %w", id, err))
			continue
		}
		if drifted {
			repaired++
		}
	}

	s.metrics.ObserveReconciled(repaired)
	return repaired, errors.Join(errs...)
}

func (s *ratingService) RemoveUser(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	var (
		touched []mutation
		owned   []uuid.UUID
	)
	err := s.repo.Transaction(ctx, func(tx repository.RatingRepository) error {
		// taken first so no rating by this user can commit while we work
		if _, err := tx.LockUser(ctx, userID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return errUserNotFound
			}
			return err
		}

		rated, err := tx.StoreIDsRatedBy(ctx, userID)
		if err != nil {
			return err
		}
		owned, err = tx.StoreIDsOwnedBy(ctx, userID)
		if err != nil {
			return err
		}

		// one sorted pass, so concurrent removals lock stores in the same order
		ids := append(slices.Clone(rated), owned...)
		slices.SortFunc(ids, func(a, b uuid.UUID) int { return bytes.Compare(a[:], b[:]) })
		ids = slices.Compact(ids)

		locked := make(map[uuid.UUID]*entity.Store, len(ids))
		for _, id := range ids {
			store, err := tx.LockStore(ctx, id)
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					continue
				}
				return err
			}
			locked[id] = store
		}

		if _, err := tx.DeleteByUser(ctx, userID); err != nil {
			return err
		}

		for _, id := range rated {
			store, ok := locked[id]
			if !ok || slices.Contains(owned, id) {
				continue
			}
			agg, err := s.recompute(ctx, tx, store)
			if err != nil {
				return err
			}
			touched = append(touched, mutation{
				status: dto.StatusDeleted,
				rating: &entity.Rating{UserID: userID, StoreID: store.ID},
				store:  store,
				agg:    agg,
			})
		}

		if err := tx.DeleteUser(ctx, userID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return errUserNotFound
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, m := range touched {
		s.afterCommit(ctx, m)
	}
	return owned, nil
}

// afterCommit runs the best-effort side effects of a committed mutation. Failures are logged only.
func (s *ratingService) afterCommit(ctx context.Context, m mutation) {
	ctx = context.WithoutCancel(ctx)
	log := s.log.WithFields(logrus.Fields{
		"store_id": m.store.ID,
		"user_id":  m.rating.UserID,
		"status":   m.status,
	})

	s.metrics.ObserveRating(m.status)
	log.WithFields(logrus.Fields{
		"average":       m.agg.Average,
		"total_ratings": m.agg.Count,
	}).Info("rating committed")

	if s.publisher != nil {
		event := dto.RatingEvent{
			Type:          m.status,
			StoreID:       m.store.ID,
			RatingID:      m.rating.ID,
			UserID:        m.rating.UserID,
			AverageRating: m.agg.Average,
			TotalRatings:  m.agg.Count,
			OccurredAt:    time.Now().UTC(),
		}
		if m.status != dto.StatusDeleted {
			event.Rating = m.rating.Rating
		}
		if err := s.publisher.PublishRatingEvent(ctx, event); err != nil {
			log.WithError(err).Warn("failed to publish rating event")
		}
	}

	if s.stats != nil {
		s.stats.Invalidate(ctx)
	}

	s.reindex(ctx, m.store)
}

func (s *ratingService) reindex(ctx context.Context, store *entity.Store) {
	if s.indexer == nil {
		return
	}
	if err := s.indexer.IndexStore(ctx, store); err != nil {
		s.log.WithError(err).WithField("store_id", store.ID).Warn("failed to reindex store")
	}
}

// cleanComment strips markup and turns a blank comment into no comment.
func (s *ratingService) cleanComment(comment *string) *string {
	if comment == nil {
		return nil
	}
	cleaned := strings.TrimSpace(html.UnescapeString(s.sanitizer.Sanitize(*comment)))
	if cleaned == "" {
		return nil
	}
	return &cleaned
}

func toRatingResponse(r *entity.Rating) dto.RatingResponse {
	res := dto.NewRatingResponse(r)
	if r.User != nil {
		res.User = &dto.RatingUserSummary{ID: r.User.ID, Name: r.User.Name, Email: r.User.Email}
	}
	if r.Store != nil {
		res.Store = &dto.RatingStoreSummary{ID: r.Store.ID, Name: r.Store.Name}
	}
	return res
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
