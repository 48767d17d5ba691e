package policy

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrRoleNotFound indicates the role code is absent from the catalog.
	ErrRoleNotFound = errors.New("policy: role not found")
	// ErrDuplicateRoleCode indicates a custom role code collides with an
	// existing system or company role.
	ErrDuplicateRoleCode = errors.New("policy: duplicate role code")
)

// Catalog is the merged lookup namespace of system and company custom
// roles. It is immutable once built; a role change rebuilds the catalog
// through the session policy cache.
type Catalog struct {
	roles map[RoleCode]Role
}

// NewCatalog merges the baked-in system roles with company custom roles.
// A custom role whose code collides with a system code is rejected; the
// same check runs at creation time, so a collision here means the stored
// data is inconsistent.
func NewCatalog(custom []Role) (*Catalog, error) {
	roles := make(map[RoleCode]Role, len(systemRoles)+len(custom))
	for _, r := range systemRoles {
		roles[r.Code] = r
	}
	for _, r := range custom {
		code := RoleCode(strings.TrimSpace(string(r.Code)))
		if code == "" {
			return nil, fmt.Errorf("policy: custom role with empty code: %w", ErrDuplicateRoleCode)
		}
		if _, exists := roles[code]; exists {
			return nil, fmt.Errorf("policy: role %q: %w", code, ErrDuplicateRoleCode)
		}
		r.Code = code
		r.IsSystem = false
		roles[code] = r
	}
	return &Catalog{roles: roles}, nil
}

// ResolveRole looks up a role by code.
func (c *Catalog) ResolveRole(code RoleCode) (Role, bool) {
	if c == nil {
		return Role{}, false
	}
	r, ok := c.roles[code]
	return r, ok
}

// Roles returns every catalog entry, system roles first in precedence
// order, custom roles after in code order.
func (c *Catalog) Roles() []Role {
	if c == nil {
		return nil
	}
	out := make([]Role, 0, len(c.roles))
	for _, r := range systemRoles {
		out = append(out, c.roles[r.Code])
	}
	custom := make([]Role, 0, len(c.roles)-len(systemRoles))
	for code, r := range c.roles {
		if !IsSystemRoleCode(code) {
			custom = append(custom, r)
		}
	}
	sort.Slice(custom, func(i, j int) bool { return custom[i].Code < custom[j].Code })
	return append(out, custom...)
}
