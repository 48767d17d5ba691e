package crew

import (
	"context"
	"fmt"
	"strings"

	"log/slog"

	"github.com/go-playground/validator/v10"

	"github.com/meridian-fleet/meridian/internal/policy"
	"github.com/meridian-fleet/meridian/internal/shared"
)

// RepositoryPort defines data access for crew records.
type RepositoryPort interface {
	GetMember(ctx context.Context, companyID int64, id string) (Member, error)
	ListMembers(ctx context.Context, companyID int64, filter ListFilter) ([]Member, error)
	UpdateOwnProfile(ctx context.Context, id string, input OwnProfileInput) (Member, error)
}

// PolicySource answers policy questions for one principal. Satisfied by
// *policy.SessionPolicyCache.
type PolicySource interface {
	Snapshot() *policy.Snapshot
	CheckPermission(module policy.Module, action policy.Action, ctx *policy.PermissionContext) bool
	RestrictedFields(module policy.Module) []string
}

// Service is the crew read path. It never returns a record the caller's
// scope does not admit, and it strips redacted fields before returning.
type Service struct {
	repo     RepositoryPort
	validate *validator.Validate
	logger   *slog.Logger
}

// NewService builds a Service instance.
func NewService(repo RepositoryPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, validate: validator.New(), logger: logger}
}

// GetMember returns a single crew record, scope-checked and redacted for
// the caller.
func (s *Service) GetMember(ctx context.Context, policies PolicySource, id string) (Member, error) {
	snap := policies.Snapshot()
	if snap == nil {
		return Member{}, shared.ErrForbidden
	}
	member, err := s.repo.GetMember(ctx, snap.CompanyID, id)
	if err != nil {
		return Member{}, err
	}
	pctx := targetContext(snap, member)
	if !policies.CheckPermission(policy.ModuleCrew, policy.ActionView, &pctx) {
		return Member{}, shared.ErrForbidden
	}
	return s.redact(policies, snap, member), nil
}

// ListMembers returns the crew listing the caller's scope admits,
// redacted per record.
func (s *Service) ListMembers(ctx context.Context, policies PolicySource, filter ListFilter) ([]Member, error) {
	snap := policies.Snapshot()
	if snap == nil {
		return nil, shared.ErrForbidden
	}
	pctx := snap.ActingContext()
	pctx.TargetVesselID = filter.VesselID
	pctx.TargetDepartment = filter.Department
	if !policies.CheckPermission(policy.ModuleCrew, policy.ActionView, &pctx) {
		return nil, shared.ErrForbidden
	}
	members, err := s.repo.ListMembers(ctx, snap.CompanyID, filter)
	if err != nil {
		return nil, err
	}
	out := make([]Member, 0, len(members))
	for _, member := range members {
		mctx := targetContext(snap, member)
		if !policies.CheckPermission(policy.ModuleCrew, policy.ActionView, &mctx) {
			continue
		}
		out = append(out, s.redact(policies, snap, member))
	}
	return out, nil
}

// UpdateOwnProfile applies the limited self-service edit to the caller's
// own record.
func (s *Service) UpdateOwnProfile(ctx context.Context, policies PolicySource, id string, input OwnProfileInput) (Member, error) {
	snap := policies.Snapshot()
	if snap == nil {
		return Member{}, shared.ErrForbidden
	}
	if err := s.validate.Struct(input); err != nil {
		return Member{}, fmt.Errorf("%w: %v", shared.ErrValidation, err)
	}
	member, err := s.repo.GetMember(ctx, snap.CompanyID, id)
	if err != nil {
		return Member{}, err
	}
	pctx := targetContext(snap, member)
	if !policies.CheckPermission(policy.ModuleCrew, policy.ActionEditOwnLimited, &pctx) {
		return Member{}, shared.ErrForbidden
	}
	input.Email = strings.TrimSpace(input.Email)
	input.Phone = strings.TrimSpace(input.Phone)
	updated, err := s.repo.UpdateOwnProfile(ctx, id, input)
	if err != nil {
		return Member{}, err
	}
	return s.redact(policies, snap, updated), nil
}

// targetContext builds the scope check context for one record.
func targetContext(snap *policy.Snapshot, member Member) policy.PermissionContext {
	pctx := snap.ActingContext()
	pctx.TargetUserID = member.ID
	pctx.TargetVesselID = member.VesselID
	pctx.TargetDepartment = member.Department
	return pctx
}

// redact strips redacted fields, then applies the self-scoped read
// permissions to the sensitive ones. Salary and medical notes survive
// only when the caller both passes redaction and holds the matching
// view permission for this record.
func (s *Service) redact(policies PolicySource, snap *policy.Snapshot, member Member) Member {
	for _, field := range policies.RestrictedFields(policy.ModuleCrew) {
		clearField(&member, field)
	}
	pctx := targetContext(snap, member)
	if member.Salary != nil && !policies.CheckPermission(policy.ModuleCrew, policy.ActionViewSalary, &pctx) {
		member.Salary = nil
	}
	if member.MedicalNotes != nil && !policies.CheckPermission(policy.ModuleCrew, policy.ActionViewMedical, &pctx) {
		member.MedicalNotes = nil
	}
	return member
}

func clearField(member *Member, field string) {
	switch field {
	case FieldSalary:
		member.Salary = nil
	case FieldMedicalNotes:
		member.MedicalNotes = nil
	case "phone":
		member.Phone = ""
	case "email":
		member.Email = ""
	case "next_of_kin":
		member.NextOfKin = ""
	case "nationality":
		member.Nationality = ""
	}
}
