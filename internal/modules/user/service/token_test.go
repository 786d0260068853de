package service

import (
	"testing"
	"time"

	"anoa.com/storerating/internal/entity"
	"anoa.com/storerating/pkg/apperror"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenRoundTrip(t *testing.T) {
	m := NewTokenManager("secret", time.Hour)
	user := &entity.User{ID: uuid.New(), Role: entity.RoleStoreOwner}

	token, exp, err := m.Issue(user)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), exp, 5*time.Second)

	id, role, err := m.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, id)
	assert.Equal(t, entity.RoleStoreOwner, role)
}

func TestTokenExpired(t *testing.T) {
	m := NewTokenManager("secret", time.Minute)
	issuedAt := time.Now().Add(-time.Hour)
	m.now = func() time.Time { return issuedAt }

	token, _, err := m.Issue(&entity.User{ID: uuid.New(), Role: entity.RoleNormalUser})
	require.NoError(t, err)

	m.now = time.Now
	_, _, err = m.Parse(token)
	assert.ErrorIs(t, err, apperror.ErrUnauthenticated)
}

func TestTokenWrongSecret(t *testing.T) {
	token, _, err := NewTokenManager("a", time.Hour).Issue(&entity.User{ID: uuid.New(), Role: entity.RoleNormalUser})
	require.NoError(t, err)

	_, _, err = NewTokenManager("b", time.Hour).Parse(token)
	assert.ErrorIs(t, err, apperror.ErrUnauthenticated)

	_, _, err = NewTokenManager("a", time.Hour).Parse("not.a.token")
	assert.ErrorIs(t, err, apperror.ErrUnauthenticated)
}
