package services

import "github.com/tbourn/go-emoji-backend/internal/domain"

// Identity is the authenticated caller as seen by the service layer. Access
// policy is a capability check against the two-variant role tag; there is no
// behavioral difference between roles beyond visibility scope.
type Identity struct {
	UserID uint
	Role   domain.Role
}

// Admin reports whether the caller holds the ADMIN capability.
func (id Identity) Admin() bool { return id.Role == domain.RoleAdmin }

// CanRead reports whether the caller may read a row owned by ownerID.
func (id Identity) CanRead(ownerID uint) bool {
	return id.Admin() || id.UserID == ownerID
}
