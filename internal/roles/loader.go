package roles

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-fleet/meridian/internal/policy"
)

// PolicyLoader feeds the session policy caches from postgres. It is the
// only place the policy engine touches persistent storage.
type PolicyLoader struct {
	pool *pgxpool.Pool
}

// NewPolicyLoader constructs a loader over the shared pool.
func NewPolicyLoader(pool *pgxpool.Pool) *PolicyLoader {
	return &PolicyLoader{pool: pool}
}

// RoleAssignments returns the user's assignments, active or not, plus
// the legacy free-text role carried on the account. The cache filters on
// the validity window itself.
func (l *PolicyLoader) RoleAssignments(ctx context.Context, userID string) ([]policy.RoleAssignment, string, error) {
	rows, err := l.pool.Query(ctx,
		`SELECT user_id, role_code, company_id, COALESCE(vessel_id, ''), COALESCE(department, ''),
		        valid_from, valid_until, is_active
		 FROM role_assignments WHERE user_id = $1`, userID)
	if err != nil {
		return nil, "", fmt.Errorf("roles: load assignments: %w", err)
	}
	defer rows.Close()

	var assignments []policy.RoleAssignment
	for rows.Next() {
		var a policy.RoleAssignment
		if err := rows.Scan(&a.UserID, &a.RoleCode, &a.CompanyID, &a.VesselID, &a.Department,
			&a.ValidFrom, &a.ValidUntil, &a.IsActive); err != nil {
			return nil, "", err
		}
		assignments = append(assignments, a)
	}
	if err := rows.Err(); err != nil {
		return nil, "", err
	}

	var legacy string
	err = l.pool.QueryRow(ctx,
		`SELECT COALESCE(legacy_role, '') FROM users WHERE id = $1`, userID).Scan(&legacy)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, "", fmt.Errorf("roles: load legacy role: %w", err)
	}
	return assignments, legacy, nil
}

// CustomRoles returns the company's custom roles as catalog entries.
func (l *PolicyLoader) CustomRoles(ctx context.Context, companyID int64) ([]policy.Role, error) {
	rows, err := l.pool.Query(ctx,
		`SELECT code, display_name, scope_type FROM custom_roles WHERE company_id = $1`, companyID)
	if err != nil {
		return nil, fmt.Errorf("roles: load custom roles: %w", err)
	}
	defer rows.Close()

	var out []policy.Role
	for rows.Next() {
		role := policy.Role{CompanyID: companyID}
		var scope string
		if err := rows.Scan(&role.Code, &role.DisplayName, &scope); err != nil {
			return nil, err
		}
		role.DefaultScope = policy.ScopeType(scope)
		out = append(out, role)
	}
	return out, rows.Err()
}

// FieldRedactions returns the company's stored redaction rules.
func (l *PolicyLoader) FieldRedactions(ctx context.Context, companyID int64) ([]policy.FieldRedaction, error) {
	rows, err := l.pool.Query(ctx,
		`SELECT module, field, restricted_roles FROM field_redactions WHERE company_id = $1`, companyID)
	if err != nil {
		return nil, fmt.Errorf("roles: load redactions: %w", err)
	}
	defer rows.Close()

	var out []policy.FieldRedaction
	for rows.Next() {
		var rule policy.FieldRedaction
		var codes []string
		if err := rows.Scan(&rule.Module, &rule.Field, &codes); err != nil {
			return nil, err
		}
		rule.RestrictedRoles = make([]policy.RoleCode, len(codes))
		for i, code := range codes {
			rule.RestrictedRoles[i] = policy.RoleCode(code)
		}
		out = append(out, rule)
	}
	return out, rows.Err()
}

var _ policy.Loader = (*PolicyLoader)(nil)
