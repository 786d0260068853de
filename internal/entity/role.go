package entity

import "fmt"

// Role is the closed set of account roles.
type Role string

const (
	RoleSystemAdmin Role = "system_admin"
	RoleNormalUser  Role = "normal_user"
	RoleStoreOwner  Role = "store_owner"
)

func (r Role) Valid() bool {
	switch r {
	case RoleSystemAdmin, RoleNormalUser, RoleStoreOwner:
		return true
	}
	return false
}

func (r Role) String() string {
	return string(r)
}

func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.Valid() {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return r, nil
}
