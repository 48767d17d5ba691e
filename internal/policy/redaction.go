package policy

import (
	"errors"
	"fmt"
	"strings"
)

// ErrRedactionProtectedRole indicates an attempt to restrict a field from
// the DPA-equivalent safety-compliance role, which must always retain
// full field visibility.
var ErrRedactionProtectedRole = errors.New("policy: role cannot be redacted")

// FieldRedaction hides a single field of a module from a set of roles.
// Redaction is independent of action permission: a role with edit on the
// module can still be denied a field.
type FieldRedaction struct {
	Module          Module
	Field           string
	RestrictedRoles []RoleCode
}

// ValidateRedaction enforces the authoring-time invariants on a rule.
// Called wherever redaction rules enter the system; the read path never
// silently drops a stored rule.
func ValidateRedaction(rule FieldRedaction) error {
	if rule.Module == "" || strings.TrimSpace(rule.Field) == "" {
		return fmt.Errorf("policy: redaction requires module and field")
	}
	if len(rule.RestrictedRoles) == 0 {
		return fmt.Errorf("policy: redaction requires at least one restricted role")
	}
	for _, role := range rule.RestrictedRoles {
		if role == RoleDPA {
			return fmt.Errorf("policy: field %s.%s: %w", rule.Module, rule.Field, ErrRedactionProtectedRole)
		}
	}
	return nil
}

// RedactionRegistry answers per-field visibility questions. Built once at
// cache load from the company's stored rules.
type RedactionRegistry struct {
	restricted map[Module]map[string]map[RoleCode]struct{}
}

// NewRedactionRegistry builds a registry, validating every rule.
func NewRedactionRegistry(rules []FieldRedaction) (*RedactionRegistry, error) {
	restricted := make(map[Module]map[string]map[RoleCode]struct{})
	for _, rule := range rules {
		if err := ValidateRedaction(rule); err != nil {
			return nil, err
		}
		fields, ok := restricted[rule.Module]
		if !ok {
			fields = make(map[string]map[RoleCode]struct{})
			restricted[rule.Module] = fields
		}
		roles, ok := fields[rule.Field]
		if !ok {
			roles = make(map[RoleCode]struct{}, len(rule.RestrictedRoles))
			fields[rule.Field] = roles
		}
		for _, role := range rule.RestrictedRoles {
			roles[role] = struct{}{}
		}
	}
	return &RedactionRegistry{restricted: restricted}, nil
}

// IsFieldVisible reports whether the role may see the field. Fields
// without a rule are visible to everyone with module access.
func (r *RedactionRegistry) IsFieldVisible(module Module, field string, role RoleCode) bool {
	if r == nil {
		return true
	}
	roles, ok := r.restricted[module][field]
	if !ok {
		return true
	}
	_, restricted := roles[role]
	return !restricted
}

// VisibleToAny reports whether at least one of the held roles may see the
// field. Multi-role principals see the union of their roles' visibility.
func (r *RedactionRegistry) VisibleToAny(module Module, field string, roles []RoleCode) bool {
	if len(roles) == 0 {
		return false
	}
	for _, role := range roles {
		if r.IsFieldVisible(module, field, role) {
			return true
		}
	}
	return false
}

// RestrictedFields lists the fields of a module that are hidden from
// every one of the held roles. Read paths strip exactly these fields.
func (r *RedactionRegistry) RestrictedFields(module Module, roles []RoleCode) []string {
	if r == nil {
		return nil
	}
	var hidden []string
	for field := range r.restricted[module] {
		if !r.VisibleToAny(module, field, roles) {
			hidden = append(hidden, field)
		}
	}
	return hidden
}
