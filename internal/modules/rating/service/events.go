package service

import (
	"context"
	"encoding/json"
	"fmt"

	"anoa.com/storerating/internal/modules/rating/dto"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// StoreChannel is the Redis pub/sub channel carrying rating events for one store.
func StoreChannel(storeID uuid.UUID) string {
	return fmt.Sprintf("store_ratings:%s", storeID.String())
}

type Publisher interface {
	PublishRatingEvent(ctx context.Context, event dto.RatingEvent) error
}

// StatsInvalidator drops cached dashboard counts after a mutation.
type StatsInvalidator interface {
	Invalidate(ctx context.Context)
}

type redisPublisher struct {
	client *redis.Client
}

// NewRedisPublisher returns nil when Redis is not configured, so the service skips publishing.
func NewRedisPublisher(client *redis.Client) Publisher {
	if client == nil {
		return nil
	}
	return &redisPublisher{client: client}
}

func (p *redisPublisher) PublishRatingEvent(ctx context.Context, event dto.RatingEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return p.client.Publish(ctx, StoreChannel(event.StoreID), payload).Err()
}
