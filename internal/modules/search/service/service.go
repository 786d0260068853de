package service

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"strings"

	"anoa.com/storerating/internal/entity"
	"github.com/google/uuid"
	"github.com/meilisearch/meilisearch-go"
	"github.com/microcosm-cc/bluemonday"
	"github.com/sirupsen/logrus"
)

const storesIndex = "stores"

// StoreSearchService mirrors stores into Meilisearch. Without a client it is a no-op and
// Enabled reports false so callers fall back to database search.
type StoreSearchService interface {
	Enabled() bool
	IndexStore(ctx context.Context, store *entity.Store) error
	IndexStores(ctx context.Context, stores []*entity.Store) error
	RemoveStore(ctx context.Context, id uuid.UUID) error
	SearchStores(ctx context.Context, query string, offset, limit int) ([]uuid.UUID, int64, error)
}

type meiliSearchService struct {
	client    meilisearch.ServiceManager
	sanitizer *bluemonday.Policy
	log       logrus.FieldLogger
}

func NewMeiliSearchService(client meilisearch.ServiceManager, log logrus.FieldLogger) StoreSearchService {
	s := &meiliSearchService{
		client:    client,
		sanitizer: bluemonday.StrictPolicy(),
		log:       log,
	}
	if client != nil {
		s.initIndexes()
	}
	return s
}

// NewClient returns nil when host is empty.
func NewClient(host, apiKey string) meilisearch.ServiceManager {
	if host == "" {
		return nil
	}
	if !strings.HasPrefix(host, "http") {
		host = "http://" + host
	}
	return meilisearch.New(host, meilisearch.WithAPIKey(apiKey))
}

func (s *meiliSearchService) initIndexes() {
	filterableAttrs := []string{"ownerId"}
	filterableInterface := make([]any, len(filterableAttrs))
	for i, v := range filterableAttrs {
		filterableInterface[i] = v
	}
	if _, err := s.client.Index(storesIndex).UpdateFilterableAttributes(&filterableInterface); err != nil {
		s.log.WithError(err).Warn("failed to update stores filterable attributes")
	}

	sortableAttrs := []string{"name", "averageRating", "totalRatings", "createdAt"}
	if _, err := s.client.Index(storesIndex).UpdateSortableAttributes(&sortableAttrs); err != nil {
		s.log.WithError(err).Warn("failed to update stores sortable attributes")
	}

	searchable := []string{"name", "address", "email"}
	if _, err := s.client.Index(storesIndex).UpdateSearchableAttributes(&searchable); err != nil {
		s.log.WithError(err).Warn("failed to update stores searchable attributes")
	}
}

type meiliStoreDoc struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	Email         string  `json:"email"`
	Address       string  `json:"address"`
	OwnerID       string  `json:"ownerId"`
	AverageRating float64 `json:"averageRating"`
	TotalRatings  int     `json:"totalRatings"`
	CreatedAt     int64   `json:"createdAt"`
}

type meiliSearchResult struct {
	Hits               []meiliStoreDoc `json:"hits"`
	EstimatedTotalHits int64           `json:"estimatedTotalHits"`
}

func (s *meiliSearchService) Enabled() bool {
	return s.client != nil
}

func (s *meiliSearchService) cleanText(content string) string {
	sanitized := s.sanitizer.Sanitize(content)
	cleanText := html.UnescapeString(sanitized)
	return strings.Join(strings.Fields(cleanText), " ")
}

func (s *meiliSearchService) toDoc(store *entity.Store) meiliStoreDoc {
	return meiliStoreDoc{
		ID:            store.ID.String(),
		Name:          s.cleanText(store.Name),
		Email:         store.Email,
		Address:       s.cleanText(store.Address),
		OwnerID:       store.OwnerID.String(),
		AverageRating: store.AverageRating,
		TotalRatings:  store.TotalRatings,
		CreatedAt:     store.CreatedAt.Unix(),
	}
}

func (s *meiliSearchService) IndexStore(ctx context.Context, store *entity.Store) error {
	return s.IndexStores(ctx, []*entity.Store{store})
}

func (s *meiliSearchService) IndexStores(_ context.Context, stores []*entity.Store) error {
	if s.client == nil || len(stores) == 0 {
		return nil
	}

	docs := make([]meiliStoreDoc, 0, len(stores))
	for _, store := range stores {
		docs = append(docs, s.toDoc(store))
	}

	task, err := s.client.Index(storesIndex).AddDocuments(docs, strPtr("id"))
	if err != nil {
		return fmt.Errorf("index stores: %w", err)
	}
	s.log.WithFields(logrus.Fields{"count": len(docs), "task_uid": task.TaskUID}).Debug("stores queued for indexing")
	return nil
}

func (s *meiliSearchService) RemoveStore(_ context.Context, id uuid.UUID) error {
	if s.client == nil {
		return nil
	}
	_, err := s.client.Index(storesIndex).DeleteDocument(id.String())
	return err
}

func (s *meiliSearchService) SearchStores(_ context.Context, query string, offset, limit int) ([]uuid.UUID, int64, error) {
	if s.client == nil {
		return nil, 0, fmt.Errorf("search index not configured")
	}

	raw, err := s.client.Index(storesIndex).SearchRaw(query, &meilisearch.SearchRequest{
		Offset:               int64(offset),
		Limit:                int64(limit),
		AttributesToRetrieve: []string{"id"},
	})
	if err != nil {
		return nil, 0, fmt.Errorf("search stores: %w", err)
	}

	var result meiliSearchResult
	if err := json.Unmarshal(*raw, &result); err != nil {
		return nil, 0, fmt.Errorf("decode search result: %w", err)
	}

	ids := make([]uuid.UUID, 0, len(result.Hits))
	for _, hit := range result.Hits {
		id, err := uuid.Parse(hit.ID)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}

	return ids, result.EstimatedTotalHits, nil
}

func strPtr(s string) *string {
	return &s
}
