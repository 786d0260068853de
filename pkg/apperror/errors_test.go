package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMapErrorToStatus(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("store not found: %w", ErrNotFound), http.StatusNotFound},
		{ErrUnauthenticated, http.StatusUnauthorized},
		{fmt.Errorf("wrap: %w", ErrForbidden), http.StatusForbidden},
		{fmt.Errorf("rating: %w", ErrInvalidInput), http.StatusBadRequest},
		{fmt.Errorf("email taken: %w", ErrConflict), http.StatusConflict},
		{ErrRateLimitExceeded, http.StatusTooManyRequests},
		{errors.New("boom"), http.StatusInternalServerError},
		{New(http.StatusTeapot, "teapot", nil), http.StatusTeapot},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, MapErrorToStatus(tc.err), tc.err.Error())
	}
}

func TestKind(t *testing.T) {
	assert.Equal(t, "not_found", Kind(fmt.Errorf("x: %w", ErrNotFound)))
	assert.Equal(t, "conflict", Kind(ErrConflict))
	assert.Equal(t, "internal", Kind(errors.New("db down")))
	assert.Equal(t, "", Kind(nil))
}

func TestAppErrorUnwrap(t *testing.T) {
	err := New(http.StatusBadRequest, "bad rating", ErrInvalidInput)
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Equal(t, "bad rating", err.Error())
}
