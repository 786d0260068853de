package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"anoa.com/storerating/internal/entity"
	"anoa.com/storerating/internal/modules/rating/dto"
	ratingService "anoa.com/storerating/internal/modules/rating/service"
	"anoa.com/storerating/pkg/apperror"
	"anoa.com/storerating/pkg/response"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubRatingService struct {
	ratingService.RatingService

	submitted []int
	existing  map[uuid.UUID]bool
}

func (s *stubRatingService) SubmitRating(_ context.Context, userID, storeID uuid.UUID, rating int, _ *string) (*dto.SubmitResult, error) {
	if storeID == uuid.Nil {
		return nil, apperror.ErrNotFound
	}
	s.submitted = append(s.submitted, rating)
	status := dto.StatusCreated
	if s.existing[storeID] {
		status = dto.StatusUpdated
	}
	s.existing[storeID] = true
	return &dto.SubmitResult{
		Rating: dto.RatingResponse{ID: uuid.New(), UserID: userID, StoreID: storeID, Rating: rating},
		Status: status,
	}, nil
}

func newRouter(svc ratingService.RatingService, userID uuid.UUID) *gin.Engine {
	log := logrus.New()
	log.SetOutput(io.Discard)

	h := NewRatingHandler(svc, nil, log)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(response.ContextUserID, userID)
		c.Set(response.ContextRole, entity.RoleNormalUser)
		c.Next()
	})
	r.POST("/ratings", h.SubmitRating)
	return r
}

func post(r *gin.Engine, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/ratings", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestSubmitRatingCreatedThenUpdated(t *testing.T) {
	svc := &stubRatingService{existing: map[uuid.UUID]bool{}}
	r := newRouter(svc, uuid.New())
	storeID := uuid.New()
	body := `{"storeId":"` + storeID.String() + `","rating":4,"comment":"nice"}`

	w := post(r, body)
	require.Equal(t, http.StatusCreated, w.Code)

	var created struct {
		Message string             `json:"message"`
		Status  string             `json:"status"`
		Rating  dto.RatingResponse `json:"rating"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, "Rating submitted successfully", created.Message)
	assert.Equal(t, dto.StatusCreated, created.Status)
	assert.Equal(t, 4, created.Rating.Rating)

	w = post(r, body)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Rating updated successfully")
}

func TestSubmitRatingRejectsBadValues(t *testing.T) {
	svc := &stubRatingService{existing: map[uuid.UUID]bool{}}
	r := newRouter(svc, uuid.New())
	storeID := uuid.New().String()

	cases := map[string]string{
		"fraction":      `{"storeId":"` + storeID + `","rating":3.5}`,
		"too high":      `{"storeId":"` + storeID + `","rating":6}`,
		"zero":          `{"storeId":"` + storeID + `","rating":0}`,
		"boolean":       `{"storeId":"` + storeID + `","rating":true}`,
		"missing":       `{"storeId":"` + storeID + `"}`,
		"bad store id":  `{"storeId":"nope","rating":3}`,
		"long comment":  `{"storeId":"` + storeID + `","rating":3,"comment":"` + strings.Repeat("x", 1001) + `"}`,
		"malformed doc": `{"storeId":`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			w := post(r, body)
			assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
			assert.Contains(t, w.Body.String(), `"kind":"invalid_input"`)
		})
	}
	assert.Empty(t, svc.submitted)
}

func TestSubmitRatingAcceptsNumericString(t *testing.T) {
	svc := &stubRatingService{existing: map[uuid.UUID]bool{}}
	r := newRouter(svc, uuid.New())

	w := post(r, `{"storeId":"`+uuid.New().String()+`","rating":"5"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, []int{5}, svc.submitted)
}
