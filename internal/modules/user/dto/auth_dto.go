package dto

import (
	"time"

	"anoa.com/storerating/internal/entity"
	"github.com/google/uuid"
)

type RegisterInput struct {
	Name     string `json:"name" binding:"required,person_name"`
	Email    string `json:"email" binding:"required,email_address"`
	Password string `json:"password" binding:"required,strong_password"`
	Address  string `json:"address" binding:"address"`
}

type LoginInput struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type UpdatePasswordInput struct {
	CurrentPassword string `json:"currentPassword" binding:"required"`
	NewPassword     string `json:"newPassword" binding:"required,strong_password"`
}

type UserResponse struct {
	ID        uuid.UUID   `json:"id"`
	Name      string      `json:"name"`
	Email     string      `json:"email"`
	Address   string      `json:"address"`
	Role      entity.Role `json:"role"`
	CreatedAt time.Time   `json:"createdAt"`
	UpdatedAt time.Time   `json:"updatedAt"`
}

func NewUserResponse(u *entity.User) UserResponse {
	return UserResponse{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		Address:   u.Address,
		Role:      u.Role,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

type AuthResponse struct {
	Token     string       `json:"token"`
	TokenType string       `json:"tokenType"`
	ExpiresAt int64        `json:"expiresAt"`
	User      UserResponse `json:"user"`
}
