package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseRole(t *testing.T) {
	for _, s := range []string{"system_admin", "normal_user", "store_owner"} {
		r, err := ParseRole(s)
		assert.NoError(t, err)
		assert.Equal(t, s, r.String())
	}

	_, err := ParseRole("admin")
	assert.Error(t, err)
	assert.False(t, Role("").Valid())
}
