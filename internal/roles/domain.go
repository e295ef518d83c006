// Package roles maintains named roles with member sets and admin-role
// references gating membership changes.
package roles

import (
	"errors"
	"time"

	"github.com/tokenvault/tokenvault/internal/identity"
)

// Built-in role names. Admin is the root role and administers itself as
// well as Minter and Burner.
const (
	RoleAdmin  = "ADMIN"
	RoleMinter = "MINTER"
	RoleBurner = "BURNER"
)

// Role describes a named capability set. AdminRole names the role whose
// members may grant and revoke membership of this role.
type Role struct {
	Name      string
	AdminRole string
	CreatedAt time.Time
}

// Member ties an identity to a role.
type Member struct {
	Role      string
	Address   identity.Address
	GrantedAt time.Time
}

// ErrUnauthorized indicates the actor does not hold the admin role of the
// role being changed. An empty admin role rejects everyone, so the
// registry fails safely if the root role were ever emptied.
var ErrUnauthorized = errors.New("roles: unauthorized")

// ErrRoleNotFound indicates an unknown role name.
var ErrRoleNotFound = errors.New("roles: role not found")
