package dto

import (
	"anoa.com/storerating/internal/entity"
	userDto "anoa.com/storerating/internal/modules/user/dto"
	commonDto "anoa.com/storerating/pkg/dto"
	"github.com/google/uuid"
)

type UserListQuery struct {
	commonDto.ListQuery
	Search     string `form:"search"`
	FilterType string `form:"filterType" binding:"omitempty,oneof=name email address role all"`
	Role       string `form:"role" binding:"omitempty,oneof=system_admin normal_user store_owner"`
}

// CreateUserInput lets an admin pick the role; it defaults to normal_user.
type CreateUserInput struct {
	Name     string `json:"name" binding:"required,person_name"`
	Email    string `json:"email" binding:"required,email_address"`
	Password string `json:"password" binding:"required,strong_password"`
	Address  string `json:"address" binding:"address"`
	Role     string `json:"role" binding:"omitempty,oneof=system_admin normal_user store_owner"`
}

type UpdateUserInput struct {
	Name    *string `json:"name" binding:"omitempty,person_name"`
	Email   *string `json:"email" binding:"omitempty,email_address"`
	Address *string `json:"address" binding:"omitempty,address"`
	Role    *string `json:"role" binding:"omitempty,oneof=system_admin normal_user store_owner"`
}

type OwnedStoreSummary struct {
	ID            uuid.UUID `json:"id"`
	Name          string    `json:"name"`
	AverageRating float64   `json:"averageRating"`
}

type UserDetailResponse struct {
	userDto.UserResponse
	OwnedStores []OwnedStoreSummary `json:"ownedStores,omitempty"`
}

type UserListResponse struct {
	Users      []userDto.UserResponse `json:"users"`
	Pagination commonDto.Pagination   `json:"pagination"`
}

func NewUserResponses(users []*entity.User) []userDto.UserResponse {
	out := make([]userDto.UserResponse, 0, len(users))
	for _, u := range users {
		out = append(out, userDto.NewUserResponse(u))
	}
	return out
}
