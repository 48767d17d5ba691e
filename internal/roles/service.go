package roles

import (
	"context"
	"fmt"
	"strings"
	"time"

	"log/slog"

	"github.com/go-playground/validator/v10"

	"github.com/meridian-fleet/meridian/internal/policy"
	"github.com/meridian-fleet/meridian/internal/shared"
)

// RepositoryPort defines data access for roles, assignments and
// redaction rules.
type RepositoryPort interface {
	CreateCustomRole(ctx context.Context, role CustomRole) (CustomRole, error)
	GetCustomRole(ctx context.Context, companyID int64, code string) (CustomRole, error)
	ListCustomRoles(ctx context.Context, companyID int64) ([]CustomRole, error)
	DeleteCustomRole(ctx context.Context, companyID int64, code string) error
	CountActiveAssignments(ctx context.Context, companyID int64, code string) (int64, error)

	CreateAssignment(ctx context.Context, assignment Assignment) (Assignment, error)
	GetAssignment(ctx context.Context, id string) (Assignment, error)
	DeactivateAssignment(ctx context.Context, id string) (Assignment, error)
	ListAssignments(ctx context.Context, userID string) ([]Assignment, error)

	CreateRedaction(ctx context.Context, redaction Redaction) (Redaction, error)
	ListRedactions(ctx context.Context, companyID int64) ([]Redaction, error)
}

// Service handles the admin surface of the role model. Every mutation
// produces an audit record before it is reported committed and
// invalidates the affected policy caches.
type Service struct {
	repo     RepositoryPort
	audit    shared.AuditRecorder
	registry *policy.CacheRegistry
	validate *validator.Validate
	logger   *slog.Logger
}

// NewService builds a Service instance.
func NewService(repo RepositoryPort, audit shared.AuditRecorder, registry *policy.CacheRegistry, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:     repo,
		audit:    audit,
		registry: registry,
		validate: validator.New(),
		logger:   logger,
	}
}

// CreateCustomRole creates a company role. System codes are reserved
// globally; company codes must be unique within the company.
func (s *Service) CreateCustomRole(ctx context.Context, actorID string, companyID int64, input CustomRoleInput) (CustomRole, error) {
	if err := s.validate.Struct(input); err != nil {
		return CustomRole{}, fmt.Errorf("%w: %v", shared.ErrValidation, err)
	}
	code := strings.ToLower(strings.TrimSpace(input.Code))
	if policy.IsSystemRoleCode(policy.RoleCode(code)) {
		return CustomRole{}, fmt.Errorf("code %q is reserved: %w", code, ErrDuplicateRoleCode)
	}
	created, err := s.repo.CreateCustomRole(ctx, CustomRole{
		CompanyID:   companyID,
		Code:        code,
		DisplayName: strings.TrimSpace(input.DisplayName),
		ScopeType:   input.ScopeType,
	})
	if err != nil {
		return CustomRole{}, err
	}
	if err := s.recordAudit(ctx, actorID, "custom_role.create", "custom_role", created.ID, nil, map[string]any{
		"code": created.Code, "display_name": created.DisplayName, "scope_type": created.ScopeType,
	}, ""); err != nil {
		return CustomRole{}, err
	}
	s.registry.InvalidateAll()
	return created, nil
}

// DeleteCustomRole removes a company role that is not a system role and
// has no active assignments.
func (s *Service) DeleteCustomRole(ctx context.Context, actorID string, companyID int64, code string) error {
	code = strings.ToLower(strings.TrimSpace(code))
	if policy.IsSystemRoleCode(policy.RoleCode(code)) {
		return ErrSystemRoleImmutable
	}
	role, err := s.repo.GetCustomRole(ctx, companyID, code)
	if err != nil {
		return err
	}
	count, err := s.repo.CountActiveAssignments(ctx, companyID, code)
	if err != nil {
		return err
	}
	if count > 0 {
		return fmt.Errorf("%d active assignments: %w", count, ErrRoleInUse)
	}
	if err := s.repo.DeleteCustomRole(ctx, companyID, code); err != nil {
		return err
	}
	if err := s.recordAudit(ctx, actorID, "custom_role.delete", "custom_role", role.ID, map[string]any{
		"code": role.Code, "display_name": role.DisplayName,
	}, nil, ""); err != nil {
		return err
	}
	s.registry.InvalidateAll()
	return nil
}

// ListCustomRoles returns the company's custom roles.
func (s *Service) ListCustomRoles(ctx context.Context, companyID int64) ([]CustomRole, error) {
	return s.repo.ListCustomRoles(ctx, companyID)
}

// AssignRole grants a role to a user.
func (s *Service) AssignRole(ctx context.Context, actorID string, companyID int64, input AssignmentInput) (Assignment, error) {
	if err := s.validate.Struct(input); err != nil {
		return Assignment{}, fmt.Errorf("%w: %v", shared.ErrValidation, err)
	}
	code := strings.ToLower(strings.TrimSpace(input.RoleCode))
	if !policy.IsSystemRoleCode(policy.RoleCode(code)) {
		if _, err := s.repo.GetCustomRole(ctx, companyID, code); err != nil {
			return Assignment{}, fmt.Errorf("role %q: %w", code, ErrUnknownRole)
		}
	}
	validFrom := input.ValidFrom
	if validFrom.IsZero() {
		validFrom = time.Now()
	}
	created, err := s.repo.CreateAssignment(ctx, Assignment{
		UserID:     input.UserID,
		RoleCode:   code,
		CompanyID:  companyID,
		VesselID:   input.VesselID,
		Department: input.Department,
		ValidFrom:  validFrom,
		ValidUntil: input.ValidUntil,
		IsActive:   true,
	})
	if err != nil {
		return Assignment{}, err
	}
	if err := s.recordAudit(ctx, actorID, "role.grant", "role_assignment", created.ID, nil, map[string]any{
		"user_id": created.UserID, "role_code": created.RoleCode,
		"vessel_id": created.VesselID, "department": created.Department,
	}, input.Reason); err != nil {
		return Assignment{}, err
	}
	s.registry.Invalidate(created.UserID)
	return created, nil
}

// RevokeAssignment soft-deactivates an assignment. The row is kept for
// the audit trail.
func (s *Service) RevokeAssignment(ctx context.Context, actorID, assignmentID, reason string) (Assignment, error) {
	before, err := s.repo.GetAssignment(ctx, assignmentID)
	if err != nil {
		return Assignment{}, err
	}
	revoked, err := s.repo.DeactivateAssignment(ctx, assignmentID)
	if err != nil {
		return Assignment{}, err
	}
	if err := s.recordAudit(ctx, actorID, "role.revoke", "role_assignment", assignmentID, map[string]any{
		"user_id": before.UserID, "role_code": before.RoleCode, "is_active": before.IsActive,
	}, map[string]any{
		"user_id": revoked.UserID, "role_code": revoked.RoleCode, "is_active": revoked.IsActive,
	}, reason); err != nil {
		return Assignment{}, err
	}
	s.registry.Invalidate(revoked.UserID)
	return revoked, nil
}

// ListAssignments returns a user's assignments, active and revoked.
func (s *Service) ListAssignments(ctx context.Context, userID string) ([]Assignment, error) {
	return s.repo.ListAssignments(ctx, userID)
}

// CreateRedaction authors a field redaction rule. The policy-level
// invariants, including DPA protection, are enforced here, at the
// authoring boundary.
func (s *Service) CreateRedaction(ctx context.Context, actorID string, companyID int64, input RedactionInput) (Redaction, error) {
	if err := s.validate.Struct(input); err != nil {
		return Redaction{}, fmt.Errorf("%w: %v", shared.ErrValidation, err)
	}
	restricted := make([]policy.RoleCode, 0, len(input.RestrictedRoles))
	for _, code := range input.RestrictedRoles {
		restricted = append(restricted, policy.RoleCode(strings.ToLower(strings.TrimSpace(code))))
	}
	rule := policy.FieldRedaction{
		Module:          policy.Module(input.Module),
		Field:           strings.TrimSpace(input.Field),
		RestrictedRoles: restricted,
	}
	if err := policy.ValidateRedaction(rule); err != nil {
		return Redaction{}, err
	}
	codes := make([]string, len(restricted))
	for i, code := range restricted {
		codes[i] = string(code)
	}
	created, err := s.repo.CreateRedaction(ctx, Redaction{
		CompanyID:       companyID,
		Module:          string(rule.Module),
		Field:           rule.Field,
		RestrictedRoles: codes,
	})
	if err != nil {
		return Redaction{}, err
	}
	if err := s.recordAudit(ctx, actorID, "redaction.create", "field_redaction", created.ID, nil, map[string]any{
		"module": created.Module, "field": created.Field, "restricted_roles": created.RestrictedRoles,
	}, input.Reason); err != nil {
		return Redaction{}, err
	}
	s.registry.InvalidateAll()
	return created, nil
}

// ListRedactions returns the company's redaction rules.
func (s *Service) ListRedactions(ctx context.Context, companyID int64) ([]Redaction, error) {
	return s.repo.ListRedactions(ctx, companyID)
}

func (s *Service) recordAudit(ctx context.Context, actorID, action, entity, entityID string, before, after map[string]any, reason string) error {
	if s.audit == nil {
		return nil
	}
	err := s.audit.Record(ctx, shared.AuditEntry{
		ActorID:  actorID,
		Action:   action,
		Entity:   entity,
		EntityID: entityID,
		Before:   before,
		After:    after,
		Reason:   reason,
	})
	if err != nil {
		s.logger.Error("audit record", slog.String("action", action), slog.Any("error", err))
		return fmt.Errorf("roles: audit record: %w", err)
	}
	return nil
}
