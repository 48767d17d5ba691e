package roles

import (
	"errors"
	"time"
)

var (
	// ErrDuplicateRoleCode indicates the code collides with a system role
	// or an existing company role.
	ErrDuplicateRoleCode = errors.New("roles: duplicate role code")
	// ErrSystemRoleImmutable indicates an attempted mutation of a system
	// role.
	ErrSystemRoleImmutable = errors.New("roles: system role cannot be modified")
	// ErrRoleInUse indicates the role still has active assignments.
	ErrRoleInUse = errors.New("roles: role has active assignments")
	// ErrUnknownRole indicates the role code resolves to nothing.
	ErrUnknownRole = errors.New("roles: unknown role code")
)

// CustomRole is a company-defined role merged into the catalog at policy
// cache load time.
type CustomRole struct {
	ID          string
	CompanyID   int64
	Code        string
	DisplayName string
	ScopeType   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// CustomRoleInput is the admin payload for creating a custom role.
type CustomRoleInput struct {
	Code        string `json:"code" validate:"required,min=2,max=64"`
	DisplayName string `json:"display_name" validate:"required,max=128"`
	ScopeType   string `json:"scope_type" validate:"required,oneof=fleet vessel department self"`
}

// Assignment ties a user to a role. Revocation deactivates, it never
// deletes; the row stays behind for the audit trail.
type Assignment struct {
	ID         string
	UserID     string
	RoleCode   string
	CompanyID  int64
	VesselID   string
	Department string
	ValidFrom  time.Time
	ValidUntil *time.Time
	IsActive   bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// AssignmentInput is the admin payload for granting a role.
type AssignmentInput struct {
	UserID     string     `json:"user_id" validate:"required"`
	RoleCode   string     `json:"role_code" validate:"required"`
	VesselID   string     `json:"vessel_id"`
	Department string     `json:"department"`
	ValidFrom  time.Time  `json:"valid_from"`
	ValidUntil *time.Time `json:"valid_until"`
	Reason     string     `json:"reason"`
}

// Redaction hides a module field from a set of roles.
type Redaction struct {
	ID              string
	CompanyID       int64
	Module          string
	Field           string
	RestrictedRoles []string
	CreatedAt       time.Time
}

// RedactionInput is the admin payload for authoring a redaction rule.
type RedactionInput struct {
	Module          string   `json:"module" validate:"required"`
	Field           string   `json:"field" validate:"required"`
	RestrictedRoles []string `json:"restricted_roles" validate:"required,min=1,dive,required"`
	Reason          string   `json:"reason"`
}
