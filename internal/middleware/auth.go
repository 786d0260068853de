package middleware

import (
	"errors"
	"fmt"
	"strings"

	userRepo "anoa.com/storerating/internal/modules/user/repository"
	userService "anoa.com/storerating/internal/modules/user/service"
	"anoa.com/storerating/internal/policy"
	"anoa.com/storerating/pkg/apperror"
	"anoa.com/storerating/pkg/response"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type AuthMiddleware struct {
	userRepo userRepo.UserRepository
	tokens   *userService.TokenManager
}

func NewAuthMiddleware(userRepo userRepo.UserRepository, tokens *userService.TokenManager) *AuthMiddleware {
	return &AuthMiddleware{
		userRepo: userRepo,
		tokens:   tokens,
	}
}

// RequireAuth rejects the request with 401 unless it carries a valid token naming an existing user.
// The role put in the context is the user's current role, not the one baked into the token.
func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := extractToken(c)
		if tokenString == "" {
			response.ResponseError(c, fmt.Errorf("authorization required: %w", apperror.ErrUnauthenticated))
			return
		}

		if err := m.authenticate(c, tokenString); err != nil {
			response.ResponseError(c, err)
			return
		}

		c.Next()
	}
}

// OptionalAuth identifies the caller when a usable token is present and otherwise lets the request through anonymously.
func (m *AuthMiddleware) OptionalAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if tokenString := extractToken(c); tokenString != "" {
			if err := m.authenticate(c, tokenString); err != nil && !errors.Is(err, apperror.ErrUnauthenticated) {
				response.ResponseError(c, err)
				return
			}
		}
		c.Next()
	}
}

// Authorize applies the role policy for action. Non-public actions need RequireAuth earlier in the chain.
func Authorize(action policy.Action) gin.HandlerFunc {
	return func(c *gin.Context) {
		if policy.Public(action) {
			c.Next()
			return
		}

		role, err := response.GetRole(c)
		if err != nil {
			response.ResponseError(c, fmt.Errorf("authorization required: %w", apperror.ErrUnauthenticated))
			return
		}

		if err := policy.Authorize(role, action); err != nil {
			response.ResponseError(c, err)
			return
		}

		c.Next()
	}
}

func (m *AuthMiddleware) authenticate(c *gin.Context, tokenString string) error {
	userID, _, err := m.tokens.Parse(tokenString)
	if err != nil {
		return err
	}

	user, err := m.userRepo.FindByID(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("user no longer exists: %w", apperror.ErrUnauthenticated)
		}
		return err
	}

	c.Set(response.ContextUserID, user.ID)
	c.Set(response.ContextRole, user.Role)
	return nil
}

func extractToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
		return ""
	}

	// Browsers can't set headers on a WebSocket handshake.
	if c.IsWebsocket() {
		return c.Query("token")
	}
	return ""
}
