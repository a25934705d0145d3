package auth

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// Principal is the caller identity passed explicitly into services that make
// authorization decisions.
type Principal struct {
	UserID uuid.UUID
	Role   enums.Role
}

// IsAdmin reports whether the principal holds the admin role.
func (p Principal) IsAdmin() bool {
	return p.Role == enums.RoleAdmin
}

// Anonymous reports whether the principal carries no user.
func (p Principal) Anonymous() bool {
	return p.UserID == uuid.Nil
}
