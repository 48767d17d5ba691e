package policy

import "time"

// RoleAssignment ties a user to a role within a company, optionally
// pinned to a vessel and department. Assignments are soft-deactivated on
// revoke, never hard-deleted, so loaders must filter on IsActive and the
// validity window.
type RoleAssignment struct {
	UserID     string
	RoleCode   RoleCode
	CompanyID  int64
	VesselID   string
	Department string
	ValidFrom  time.Time
	ValidUntil *time.Time
	IsActive   bool
}

// ActiveAt reports whether the assignment is in force at t.
func (a RoleAssignment) ActiveAt(t time.Time) bool {
	if !a.IsActive {
		return false
	}
	if !a.ValidFrom.IsZero() && t.Before(a.ValidFrom) {
		return false
	}
	if a.ValidUntil != nil && !t.Before(*a.ValidUntil) {
		return false
	}
	return true
}
