package middleware

import (
	"fmt"
	"strconv"

	"anoa.com/storerating/pkg/apperror"
	"anoa.com/storerating/pkg/ratelimiter"
	"anoa.com/storerating/pkg/response"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// RateLimit throttles by client IP under the given bucket name.
// Limiter backend errors let the request through.
func RateLimit(limiter *ratelimiter.Limiter, bucket string, log logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := fmt.Sprintf("%s:%s", bucket, c.ClientIP())

		allowed, err := limiter.Allow(c.Request.Context(), key)
		if err != nil {
			log.WithError(err).WithField("key", key).Warn("rate limiter unavailable")
			c.Next()
			return
		}

		if !allowed {
			c.Header("Retry-After", strconv.Itoa(int(limiter.Window().Seconds())))
			response.ResponseError(c, fmt.Errorf("too many requests, try again later: %w", apperror.ErrRateLimitExceeded))
			return
		}

		c.Next()
	}
}
