package roles

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-fleet/meridian/internal/platform/db"
	"github.com/meridian-fleet/meridian/internal/shared"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const uniqueViolation = "23505"

// CreateCustomRole inserts a company role. A code collision surfaces as
// ErrDuplicateRoleCode.
func (r *Repository) CreateCustomRole(ctx context.Context, role CustomRole) (CustomRole, error) {
	role.ID = uuid.NewString()
	err := r.pool.QueryRow(ctx,
		`INSERT INTO custom_roles (id, company_id, code, display_name, scope_type, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		 RETURNING created_at, updated_at`,
		role.ID, role.CompanyID, role.Code, role.DisplayName, role.ScopeType,
	).Scan(&role.CreatedAt, &role.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return CustomRole{}, fmt.Errorf("code %q: %w", role.Code, ErrDuplicateRoleCode)
		}
		return CustomRole{}, fmt.Errorf("roles: create custom role: %w", err)
	}
	return role, nil
}

// GetCustomRole fetches a company role by code.
func (r *Repository) GetCustomRole(ctx context.Context, companyID int64, code string) (CustomRole, error) {
	var role CustomRole
	err := r.pool.QueryRow(ctx,
		`SELECT id, company_id, code, display_name, scope_type, created_at, updated_at
		 FROM custom_roles WHERE company_id = $1 AND code = $2`,
		companyID, code,
	).Scan(&role.ID, &role.CompanyID, &role.Code, &role.DisplayName, &role.ScopeType, &role.CreatedAt, &role.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return CustomRole{}, shared.ErrNotFound
		}
		return CustomRole{}, fmt.Errorf("roles: get custom role: %w", err)
	}
	return role, nil
}

// ListCustomRoles returns the company's roles ordered by code.
func (r *Repository) ListCustomRoles(ctx context.Context, companyID int64) ([]CustomRole, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, company_id, code, display_name, scope_type, created_at, updated_at
		 FROM custom_roles WHERE company_id = $1 ORDER BY code`,
		companyID)
	if err != nil {
		return nil, fmt.Errorf("roles: list custom roles: %w", err)
	}
	defer rows.Close()

	var roles []CustomRole
	for rows.Next() {
		var role CustomRole
		if err := rows.Scan(&role.ID, &role.CompanyID, &role.Code, &role.DisplayName, &role.ScopeType, &role.CreatedAt, &role.UpdatedAt); err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

// DeleteCustomRole removes a company role. The in-use check runs again
// inside the transaction; the service-level check cannot see a grant
// that lands between its count and the delete.
func (r *Repository) DeleteCustomRole(ctx context.Context, companyID int64, code string) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var active int64
		err := tx.QueryRow(ctx,
			`SELECT COUNT(*) FROM role_assignments
			 WHERE company_id = $1 AND role_code = $2 AND is_active
			   AND (valid_until IS NULL OR valid_until > NOW())`,
			companyID, code).Scan(&active)
		if err != nil {
			return fmt.Errorf("roles: delete custom role: %w", err)
		}
		if active > 0 {
			return fmt.Errorf("%d active assignments: %w", active, ErrRoleInUse)
		}
		tag, err := tx.Exec(ctx,
			`DELETE FROM custom_roles WHERE company_id = $1 AND code = $2`, companyID, code)
		if err != nil {
			return fmt.Errorf("roles: delete custom role: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return shared.ErrNotFound
		}
		return nil
	})
}

// CountActiveAssignments counts in-force assignments of a role.
func (r *Repository) CountActiveAssignments(ctx context.Context, companyID int64, code string) (int64, error) {
	var count int64
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM role_assignments
		 WHERE company_id = $1 AND role_code = $2 AND is_active
		   AND (valid_until IS NULL OR valid_until > NOW())`,
		companyID, code).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("roles: count assignments: %w", err)
	}
	return count, nil
}

// CreateAssignment inserts a role assignment.
func (r *Repository) CreateAssignment(ctx context.Context, assignment Assignment) (Assignment, error) {
	assignment.ID = uuid.NewString()
	err := r.pool.QueryRow(ctx,
		`INSERT INTO role_assignments
		   (id, user_id, role_code, company_id, vessel_id, department, valid_from, valid_until, is_active, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW())
		 RETURNING created_at, updated_at`,
		assignment.ID, assignment.UserID, assignment.RoleCode, assignment.CompanyID,
		assignment.VesselID, assignment.Department, assignment.ValidFrom, assignment.ValidUntil, assignment.IsActive,
	).Scan(&assignment.CreatedAt, &assignment.UpdatedAt)
	if err != nil {
		return Assignment{}, fmt.Errorf("roles: create assignment: %w", err)
	}
	return assignment, nil
}

// GetAssignment fetches an assignment by id.
func (r *Repository) GetAssignment(ctx context.Context, id string) (Assignment, error) {
	var a Assignment
	err := r.pool.QueryRow(ctx,
		`SELECT id, user_id, role_code, company_id, vessel_id, department, valid_from, valid_until, is_active, created_at, updated_at
		 FROM role_assignments WHERE id = $1`, id,
	).Scan(&a.ID, &a.UserID, &a.RoleCode, &a.CompanyID, &a.VesselID, &a.Department,
		&a.ValidFrom, &a.ValidUntil, &a.IsActive, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Assignment{}, shared.ErrNotFound
		}
		return Assignment{}, fmt.Errorf("roles: get assignment: %w", err)
	}
	return a, nil
}

// DeactivateAssignment flips is_active off, keeping the row.
func (r *Repository) DeactivateAssignment(ctx context.Context, id string) (Assignment, error) {
	var a Assignment
	err := r.pool.QueryRow(ctx,
		`UPDATE role_assignments SET is_active = FALSE, updated_at = NOW()
		 WHERE id = $1
		 RETURNING id, user_id, role_code, company_id, vessel_id, department, valid_from, valid_until, is_active, created_at, updated_at`,
		id,
	).Scan(&a.ID, &a.UserID, &a.RoleCode, &a.CompanyID, &a.VesselID, &a.Department,
		&a.ValidFrom, &a.ValidUntil, &a.IsActive, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Assignment{}, shared.ErrNotFound
		}
		return Assignment{}, fmt.Errorf("roles: deactivate assignment: %w", err)
	}
	return a, nil
}

// ListAssignments returns a user's assignments, newest first.
func (r *Repository) ListAssignments(ctx context.Context, userID string) ([]Assignment, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, user_id, role_code, company_id, vessel_id, department, valid_from, valid_until, is_active, created_at, updated_at
		 FROM role_assignments WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("roles: list assignments: %w", err)
	}
	defer rows.Close()

	var assignments []Assignment
	for rows.Next() {
		var a Assignment
		if err := rows.Scan(&a.ID, &a.UserID, &a.RoleCode, &a.CompanyID, &a.VesselID, &a.Department,
			&a.ValidFrom, &a.ValidUntil, &a.IsActive, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		assignments = append(assignments, a)
	}
	return assignments, rows.Err()
}

// ExpireAssignments deactivates assignments whose validity window has
// passed. Returns the affected user ids so their policy caches can be
// invalidated.
func (r *Repository) ExpireAssignments(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx,
		`UPDATE role_assignments SET is_active = FALSE, updated_at = NOW()
		 WHERE is_active AND valid_until IS NOT NULL AND valid_until <= NOW()
		 RETURNING user_id`)
	if err != nil {
		return nil, fmt.Errorf("roles: expire assignments: %w", err)
	}
	defer rows.Close()

	var userIDs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		userIDs = append(userIDs, id)
	}
	return userIDs, rows.Err()
}

// CreateRedaction inserts a redaction rule.
func (r *Repository) CreateRedaction(ctx context.Context, redaction Redaction) (Redaction, error) {
	redaction.ID = uuid.NewString()
	err := r.pool.QueryRow(ctx,
		`INSERT INTO field_redactions (id, company_id, module, field, restricted_roles, created_at)
		 VALUES ($1, $2, $3, $4, $5, NOW())
		 RETURNING created_at`,
		redaction.ID, redaction.CompanyID, redaction.Module, redaction.Field, redaction.RestrictedRoles,
	).Scan(&redaction.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return Redaction{}, fmt.Errorf("%s.%s: %w", redaction.Module, redaction.Field, shared.ErrConflict)
		}
		return Redaction{}, fmt.Errorf("roles: create redaction: %w", err)
	}
	return redaction, nil
}

// ListRedactions returns the company's redaction rules.
func (r *Repository) ListRedactions(ctx context.Context, companyID int64) ([]Redaction, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, company_id, module, field, restricted_roles, created_at
		 FROM field_redactions WHERE company_id = $1 ORDER BY module, field`, companyID)
	if err != nil {
		return nil, fmt.Errorf("roles: list redactions: %w", err)
	}
	defer rows.Close()

	var redactions []Redaction
	for rows.Next() {
		var red Redaction
		if err := rows.Scan(&red.ID, &red.CompanyID, &red.Module, &red.Field, &red.RestrictedRoles, &red.CreatedAt); err != nil {
			return nil, err
		}
		redactions = append(redactions, red)
	}
	return redactions, rows.Err()
}
