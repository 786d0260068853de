package response

import (
	"errors"
	"net/http"
	"strings"

	"anoa.com/storerating/internal/entity"
	"anoa.com/storerating/pkg/apperror"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	ContextUserID = "user_id"
	ContextRole   = "user_role"
)

// GetUserID retrieves the authenticated user ID from the context
func GetUserID(c *gin.Context) (uuid.UUID, error) {
	v, exists := c.Get(ContextUserID)
	if !exists {
		return uuid.Nil, apperror.ErrUnauthenticated
	}

	userID, ok := v.(uuid.UUID)
	if !ok || userID == uuid.Nil {
		return uuid.Nil, apperror.ErrUnauthenticated
	}

	return userID, nil
}

// GetRole retrieves the authenticated user's role from the context
func GetRole(c *gin.Context) (entity.Role, error) {
	v, exists := c.Get(ContextRole)
	if !exists {
		return "", apperror.ErrUnauthenticated
	}

	role, ok := v.(entity.Role)
	if !ok || !role.Valid() {
		return "", apperror.ErrUnauthenticated
	}

	return role, nil
}

// ResponseError standardized error response
func ResponseError(c *gin.Context, err error) {
	code := apperror.MapErrorToStatus(err)
	message := err.Error()

	if code == http.StatusInternalServerError {
		logrus.WithFields(logrus.Fields{
			"method": c.Request.Method,
			"path":   c.FullPath(),
		}).WithError(err).Error("internal error")
		message = apperror.ErrInternal.Error()
	} else {
		var appErr *apperror.AppError
		if !errors.As(err, &appErr) {
			message = clientMessage(err)
		}
	}

	c.AbortWithStatusJSON(code, gin.H{
		"error": message,
		"kind":  apperror.Kind(err),
	})
}

// clientMessage keeps the outermost text the service chose, without the wrapped sentinel suffix.
func clientMessage(err error) string {
	msg := err.Error()
	for _, sentinel := range []error{
		apperror.ErrNotFound,
		apperror.ErrUnauthenticated,
		apperror.ErrForbidden,
		apperror.ErrInvalidInput,
		apperror.ErrConflict,
		apperror.ErrRateLimitExceeded,
	} {
		suffix := ": " + sentinel.Error()
		if trimmed, ok := strings.CutSuffix(msg, suffix); ok && trimmed != "" {
			return trimmed
		}
	}
	return msg
}
