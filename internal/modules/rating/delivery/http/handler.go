package handler

import (
	"context"
	"net/http"
	"time"

	"anoa.com/storerating/internal/modules/rating/dto"
	ratingService "anoa.com/storerating/internal/modules/rating/service"
	"anoa.com/storerating/pkg/apperror"
	commonDto "anoa.com/storerating/pkg/dto"
	"anoa.com/storerating/pkg/response"
	"anoa.com/storerating/pkg/validator"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const pingInterval = 30 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type RatingHandler struct {
	ratingService ratingService.RatingService
	redisClient   *redis.Client
	log           logrus.FieldLogger
}

func NewRatingHandler(ratingService ratingService.RatingService, redisClient *redis.Client, log logrus.FieldLogger) *RatingHandler {
	return &RatingHandler{
		ratingService: ratingService,
		redisClient:   redisClient,
		log:           log,
	}
}

func (h *RatingHandler) SubmitRating(c *gin.Context) {
	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	var input dto.SubmitRatingInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.ResponseError(c, apperror.New(http.StatusBadRequest, validator.FormatValidationError(err), apperror.ErrInvalidInput))
		return
	}

	value, err := input.RatingValue()
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	storeID, err := uuid.Parse(input.StoreID)
	if err != nil {
		response.ResponseError(c, apperror.New(http.StatusBadRequest, "Invalid store id", apperror.ErrInvalidInput))
		return
	}

	result, err := h.ratingService.SubmitRating(c.Request.Context(), userID, storeID, value, input.Comment)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	status := http.StatusOK
	message := "Rating updated successfully"
	if result.Status == dto.StatusCreated {
		status = http.StatusCreated
		message = "Rating submitted successfully"
	}

	c.JSON(status, gin.H{
		"message": message,
		"rating":  result.Rating,
		"status":  result.Status,
	})
}

func (h *RatingHandler) DeleteRating(c *gin.Context) {
	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	ratingID, ok := bindID(c)
	if !ok {
		return
	}

	if err := h.ratingService.DeleteRating(c.Request.Context(), userID, ratingID); err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Rating deleted successfully"})
}

func (h *RatingHandler) ListMyRatings(c *gin.Context) {
	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	var q commonDto.ListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.ResponseError(c, apperror.New(http.StatusBadRequest, validator.FormatValidationError(err), apperror.ErrInvalidInput))
		return
	}

	res, err := h.ratingService.ListRatingsForUser(c.Request.Context(), userID, q)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, res)
}

func (h *RatingHandler) ListStoreRatings(c *gin.Context) {
	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}
	role, err := response.GetRole(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	storeID, ok := bindID(c)
	if !ok {
		return
	}

	var q commonDto.ListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.ResponseError(c, apperror.New(http.StatusBadRequest, validator.FormatValidationError(err), apperror.ErrInvalidInput))
		return
	}

	res, err := h.ratingService.ListRatingsForStore(c.Request.Context(), userID, role, storeID, q)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, res)
}

// LiveFeed streams rating events for one store over a websocket.
func (h *RatingHandler) LiveFeed(c *gin.Context) {
	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}
	role, err := response.GetRole(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	storeID, ok := bindID(c)
	if !ok {
		return
	}

	if err := h.ratingService.AuthorizeStoreFeed(c.Request.Context(), userID, role, storeID); err != nil {
		response.ResponseError(c, err)
		return
	}

	if h.redisClient == nil {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "live updates are not available"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.WithError(err).Warn("websocket upgrade failed")
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	pubsub := h.redisClient.Subscribe(ctx, ratingService.StoreChannel(storeID))
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		h.log.WithError(err).Warn("failed to subscribe to rating events")
		return
	}

	ch := pubsub.Channel()

	// The client never sends anything useful; reading only detects disconnects.
	clientClosed := make(chan struct{})
	go func() {
		defer close(clientClosed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	log := h.log.WithFields(logrus.Fields{"store_id": storeID, "user_id": userID})
	log.Debug("live feed opened")

	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, []byte(msg.Payload)); err != nil {
				log.WithError(err).Debug("live feed write failed")
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
				return
			}
		case <-clientClosed:
			log.Debug("live feed closed by client")
			return
		case <-ctx.Done():
			return
		}
	}
}

func bindID(c *gin.Context) (uuid.UUID, bool) {
	var uri commonDto.IDUri
	if err := c.ShouldBindUri(&uri); err != nil {
		response.ResponseError(c, apperror.New(http.StatusBadRequest, "Invalid id", apperror.ErrInvalidInput))
		return uuid.Nil, false
	}
	id, err := uuid.Parse(uri.ID)
	if err != nil {
		response.ResponseError(c, apperror.New(http.StatusBadRequest, "Invalid id", apperror.ErrInvalidInput))
		return uuid.Nil, false
	}
	return id, true
}
