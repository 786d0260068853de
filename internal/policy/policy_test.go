package policy

import (
	"testing"

	"anoa.com/storerating/internal/entity"
	"anoa.com/storerating/pkg/apperror"
	"github.com/stretchr/testify/assert"
)

var (
	admin = entity.RoleSystemAdmin
	user  = entity.RoleNormalUser
	owner = entity.RoleStoreOwner
)

func TestAuthorizeTable(t *testing.T) {
	cases := []struct {
		action  Action
		allowed []entity.Role
	}{
		{ActionRegister, []entity.Role{admin, user, owner, ""}},
		{ActionLogin, []entity.Role{admin, user, owner, ""}},
		{ActionListStores, []entity.Role{admin, user, owner, ""}},
		{ActionViewStore, []entity.Role{admin, user, owner, ""}},
		{ActionSearchStores, []entity.Role{admin, user, owner, ""}},
		{ActionCreateStore, []entity.Role{admin}},
		{ActionUpdateStore, []entity.Role{admin}},
		{ActionDeleteStore, []entity.Role{admin}},
		{ActionListUsers, []entity.Role{admin}},
		{ActionViewUser, []entity.Role{admin}},
		{ActionCreateUser, []entity.Role{admin}},
		{ActionUpdateUser, []entity.Role{admin}},
		{ActionDeleteUser, []entity.Role{admin}},
		{ActionViewDashboard, []entity.Role{admin}},
		{ActionSubmitRating, []entity.Role{user, owner}},
		{ActionDeleteOwnRating, []entity.Role{user, owner}},
		{ActionListOwnRatings, []entity.Role{user, owner}},
		{ActionViewStoreRatings, []entity.Role{owner, admin}},
		{ActionViewOwnedStores, []entity.Role{owner, admin}},
		{ActionViewProfile, []entity.Role{admin, user, owner}},
		{ActionUpdatePassword, []entity.Role{admin, user, owner}},
	}

	for _, tc := range cases {
		allowed := map[entity.Role]bool{}
		for _, r := range tc.allowed {
			allowed[r] = true
		}
		for _, role := range []entity.Role{admin, user, owner, ""} {
			err := Authorize(role, tc.action)
			if allowed[role] {
				assert.NoError(t, err, "%s as %q", tc.action, role)
			} else {
				assert.ErrorIs(t, err, apperror.ErrForbidden, "%s as %q", tc.action, role)
			}
		}
	}
}

func TestAuthorizeFailsClosed(t *testing.T) {
	assert.ErrorIs(t, Authorize(admin, Action("store:teleport")), apperror.ErrForbidden)
	assert.ErrorIs(t, Authorize(entity.Role("superuser"), ActionViewProfile), apperror.ErrForbidden)
}

func TestNormalUserCannotCreateStore(t *testing.T) {
	err := Authorize(user, ActionCreateStore)
	assert.ErrorIs(t, err, apperror.ErrForbidden)
	assert.Equal(t, 403, apperror.MapErrorToStatus(err))
	assert.NoError(t, Authorize(admin, ActionCreateStore))
}
