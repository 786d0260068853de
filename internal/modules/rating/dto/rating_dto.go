package dto

import (
	"encoding/json"
	"fmt"
	"time"

	"anoa.com/storerating/internal/entity"
	commonDto "anoa.com/storerating/pkg/dto"
	"anoa.com/storerating/pkg/validator"
	"github.com/google/uuid"
)

const (
	StatusCreated = "created"
	StatusUpdated = "updated"
	StatusDeleted = "deleted"
)

// Rating arrives as raw JSON so "3.5" or "4" can be rejected by the rating rule instead of the decoder.
type SubmitRatingInput struct {
	StoreID string  `json:"storeId" binding:"required,uuid"`
	Rating  any     `json:"rating" binding:"required"`
	Comment *string `json:"comment" binding:"omitempty,max=1000"`
}

type RatingUserSummary struct {
	ID      uuid.UUID `json:"id"`
	Name    string    `json:"name"`
	Email   string    `json:"email"`
	Address string    `json:"address,omitempty"`
}

type RatingStoreSummary struct {
	ID            uuid.UUID `json:"id"`
	Name          string    `json:"name"`
	Address       string    `json:"address,omitempty"`
	AverageRating *float64  `json:"averageRating,omitempty"`
}

type RatingResponse struct {
	ID        uuid.UUID           `json:"id"`
	UserID    uuid.UUID           `json:"userId"`
	StoreID   uuid.UUID           `json:"storeId"`
	Rating    int                 `json:"rating"`
	Comment   *string             `json:"comment"`
	CreatedAt time.Time           `json:"createdAt"`
	UpdatedAt time.Time           `json:"updatedAt"`
	User      *RatingUserSummary  `json:"user,omitempty"`
	Store     *RatingStoreSummary `json:"store,omitempty"`
}

func NewRatingResponse(r *entity.Rating) RatingResponse {
	return RatingResponse{
		ID:        r.ID,
		UserID:    r.UserID,
		StoreID:   r.StoreID,
		Rating:    r.Rating,
		Comment:   r.Comment,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

// SubmitResult is what SubmitRating hands back: the persisted row plus whether it was inserted or changed.
type SubmitResult struct {
	Rating RatingResponse `json:"rating"`
	Status string         `json:"status"`
}

type StoreRatingsResponse struct {
	Ratings    []RatingResponse     `json:"ratings"`
	Pagination commonDto.Pagination `json:"pagination"`
}

type MyRatingsResponse struct {
	Ratings    []RatingResponse     `json:"ratings"`
	Pagination commonDto.Pagination `json:"pagination"`
}

// RatingEvent is published on store_ratings:<storeId> after every committed mutation.
type RatingEvent struct {
	Type          string    `json:"type"`
	StoreID       uuid.UUID `json:"storeId"`
	RatingID      uuid.UUID `json:"ratingId"`
	UserID        uuid.UUID `json:"userId"`
	Rating        int       `json:"rating,omitempty"`
	AverageRating float64   `json:"averageRating"`
	TotalRatings  int64     `json:"totalRatings"`
	OccurredAt    time.Time `json:"occurredAt"`
}

// RatingValue converts the raw JSON rating into an int in [1,5]. Fractions, booleans and
// out-of-range numbers are rejected with a rule error wrapping apperror.ErrInvalidInput.
func (in SubmitRatingInput) RatingValue() (int, error) {
	switch v := in.Rating.(type) {
	case float64, string, json.Number:
		return validator.ValidateRating(fmt.Sprint(v))
	default:
		return validator.ValidateRating("")
	}
}
