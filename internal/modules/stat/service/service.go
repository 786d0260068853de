package service

import (
	"context"
	"time"

	"anoa.com/storerating/internal/modules/stat/dto"
	"anoa.com/storerating/pkg/cache"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const dashboardCacheKey = "stats:dashboard"

// Counter is satisfied by the user, store and rating repositories.
type Counter interface {
	Count(ctx context.Context) (int64, error)
}

type StatService interface {
	GetDashboardStats(ctx context.Context) (*dto.DashboardStats, error)
	Invalidate(ctx context.Context)
}

type statService struct {
	users       Counter
	stores      Counter
	ratings     Counter
	redisClient *redis.Client
	ttl         time.Duration
	log         logrus.FieldLogger
}

func NewStatService(users, stores, ratings Counter, redisClient *redis.Client, ttl time.Duration, log logrus.FieldLogger) StatService {
	return &statService{
		users:       users,
		stores:      stores,
		ratings:     ratings,
		redisClient: redisClient,
		ttl:         ttl,
		log:         log,
	}
}

func (s *statService) GetDashboardStats(ctx context.Context) (*dto.DashboardStats, error) {
	var stats dto.DashboardStats
	if hit, err := cache.GetJSON(ctx, s.redisClient, dashboardCacheKey, &stats); err != nil {
		s.log.WithError(err).Warn("dashboard stats cache read failed")
	} else if hit {
		return &stats, nil
	}

	var err error
	if stats.TotalUsers, err = s.users.Count(ctx); err != nil {
		return nil, err
	}
	if stats.TotalStores, err = s.stores.Count(ctx); err != nil {
		return nil, err
	}
	if stats.TotalRatings, err = s.ratings.Count(ctx); err != nil {
		return nil, err
	}

	if s.ttl > 0 {
		if err := cache.SetJSON(ctx, s.redisClient, dashboardCacheKey, stats, s.ttl); err != nil {
			s.log.WithError(err).Warn("dashboard stats cache write failed")
		}
	}

	return &stats, nil
}

// Invalidate drops the cached counts. Failures are logged; the TTL bounds staleness anyway.
func (s *statService) Invalidate(ctx context.Context) {
	if err := cache.Delete(ctx, s.redisClient, dashboardCacheKey); err != nil {
		s.log.WithError(err).Warn("dashboard stats cache invalidation failed")
	}
}
