// Package policy decides which roles may perform which actions.
//
// Authentication is not handled here: callers resolve the session first and only
// then ask Authorize. Store ownership for ActionViewStoreRatings is checked by the
// rating service, since the policy only sees the role.
package policy

import (
	"fmt"

	"anoa.com/storerating/internal/entity"
	"anoa.com/storerating/pkg/apperror"
)

type Action string

const (
	ActionRegister       Action = "auth:register"
	ActionLogin          Action = "auth:login"
	ActionViewProfile    Action = "auth:profile"
	ActionUpdatePassword Action = "auth:password"

	ActionListStores   Action = "store:list"
	ActionViewStore    Action = "store:view"
	ActionSearchStores Action = "store:search"
	ActionCreateStore  Action = "store:create"
	ActionUpdateStore  Action = "store:update"
	ActionDeleteStore  Action = "store:delete"

	ActionViewOwnedStores  Action = "store:owned"
	ActionViewStoreRatings Action = "store:ratings"

	ActionListUsers  Action = "user:list"
	ActionViewUser   Action = "user:view"
	ActionCreateUser Action = "user:create"
	ActionUpdateUser Action = "user:update"
	ActionDeleteUser Action = "user:delete"

	ActionViewDashboard Action = "dashboard:view"

	ActionSubmitRating    Action = "rating:submit"
	ActionDeleteOwnRating Action = "rating:delete"
	ActionListOwnRatings  Action = "rating:mine"
)

// Public reports whether an action may be performed without a session.
func Public(action Action) bool {
	switch action {
	case ActionRegister, ActionLogin, ActionListStores, ActionViewStore, ActionSearchStores:
		return true
	}
	return false
}

// Authorize returns nil when role may perform action, otherwise an error wrapping apperror.ErrForbidden.
// Unknown roles and unknown actions are denied.
func Authorize(role entity.Role, action Action) error {
	if Public(action) {
		return nil
	}
	if !role.Valid() {
		return deny(role, action)
	}

	var allowed bool
	switch action {
	case ActionViewProfile, ActionUpdatePassword:
		allowed = true

	case ActionCreateStore, ActionUpdateStore, ActionDeleteStore,
		ActionListUsers, ActionViewUser, ActionCreateUser, ActionUpdateUser, ActionDeleteUser,
		ActionViewDashboard:
		allowed = role == entity.RoleSystemAdmin

	case ActionSubmitRating, ActionDeleteOwnRating, ActionListOwnRatings:
		allowed = role == entity.RoleNormalUser || role == entity.RoleStoreOwner

	case ActionViewStoreRatings, ActionViewOwnedStores:
		allowed = role == entity.RoleStoreOwner || role == entity.RoleSystemAdmin

	default:
		allowed = false
	}

	if !allowed {
		return deny(role, action)
	}
	return nil
}

func deny(role entity.Role, action Action) error {
	return fmt.Errorf("role %q may not perform %s: %w", role, action, apperror.ErrForbidden)
}
