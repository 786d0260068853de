package dto

import (
	"time"

	"anoa.com/storerating/internal/entity"
	commonDto "anoa.com/storerating/pkg/dto"
	"github.com/google/uuid"
)

type CreateStoreInput struct {
	Name    string `json:"name" binding:"required,max=255"`
	Email   string `json:"email" binding:"required,email_address"`
	Address string `json:"address" binding:"address"`
	OwnerID string `json:"ownerId" binding:"required,uuid"`
}

// UpdateStoreInput is a partial update; nil fields are left as they are.
type UpdateStoreInput struct {
	Name    *string `json:"name" binding:"omitempty,min=1,max=255"`
	Email   *string `json:"email" binding:"omitempty,email_address"`
	Address *string `json:"address" binding:"omitempty,address"`
	OwnerID *string `json:"ownerId" binding:"omitempty,uuid"`
}

type StoreListQuery struct {
	commonDto.ListQuery
	Search string `form:"search"`
}

type OwnerSummary struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Email string    `json:"email"`
}

type StoreResponse struct {
	ID            uuid.UUID     `json:"id"`
	Name          string        `json:"name"`
	Email         string        `json:"email"`
	Address       string        `json:"address"`
	OwnerID       uuid.UUID     `json:"ownerId"`
	Owner         *OwnerSummary `json:"owner,omitempty"`
	AverageRating float64       `json:"averageRating"`
	TotalRatings  int           `json:"totalRatings"`
	CreatedAt     time.Time     `json:"createdAt"`
	UpdatedAt     time.Time     `json:"updatedAt"`
}

type StoreDetailResponse struct {
	StoreResponse
	// UserRating is the caller's own rating value, null when anonymous or not yet rated.
	UserRating *int `json:"userRating"`
}

type StoreListResponse struct {
	Stores     []StoreResponse      `json:"stores"`
	Pagination commonDto.Pagination `json:"pagination"`
}

func NewStoreResponse(s *entity.Store) StoreResponse {
	res := StoreResponse{
		ID:            s.ID,
		Name:          s.Name,
		Email:         s.Email,
		Address:       s.Address,
		OwnerID:       s.OwnerID,
		AverageRating: s.AverageRating,
		TotalRatings:  s.TotalRatings,
		CreatedAt:     s.CreatedAt,
		UpdatedAt:     s.UpdatedAt,
	}
	if s.Owner != nil {
		res.Owner = &OwnerSummary{ID: s.Owner.ID, Name: s.Owner.Name, Email: s.Owner.Email}
	}
	return res
}

func NewStoreResponses(stores []*entity.Store) []StoreResponse {
	out := make([]StoreResponse, 0, len(stores))
	for _, s := range stores {
		out = append(out, NewStoreResponse(s))
	}
	return out
}
