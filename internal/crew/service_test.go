package crew

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian-fleet/meridian/internal/policy"
	"github.com/meridian-fleet/meridian/internal/shared"
)

// ============================================================================
// MOCK REPOSITORY
// ============================================================================

type mockRepository struct {
	members map[string]Member
}

func newMockRepository(members ...Member) *mockRepository {
	repo := &mockRepository{members: make(map[string]Member)}
	for _, m := range members {
		repo.members[m.ID] = m
	}
	return repo
}

func (m *mockRepository) GetMember(ctx context.Context, companyID int64, id string) (Member, error) {
	member, ok := m.members[id]
	if !ok || member.CompanyID != companyID {
		return Member{}, shared.ErrNotFound
	}
	return member, nil
}

func (m *mockRepository) ListMembers(ctx context.Context, companyID int64, filter ListFilter) ([]Member, error) {
	var out []Member
	for _, member := range m.members {
		if member.CompanyID != companyID {
			continue
		}
		if filter.VesselID != "" && member.VesselID != filter.VesselID {
			continue
		}
		if filter.Department != "" && member.Department != filter.Department {
			continue
		}
		out = append(out, member)
	}
	return out, nil
}

func (m *mockRepository) UpdateOwnProfile(ctx context.Context, id string, input OwnProfileInput) (Member, error) {
	member, ok := m.members[id]
	if !ok {
		return Member{}, shared.ErrNotFound
	}
	member.Phone = input.Phone
	member.Email = input.Email
	member.NextOfKin = input.NextOfKin
	m.members[id] = member
	return member, nil
}

// ============================================================================
// FAKE POLICY SOURCE
// ============================================================================

// fakePolicies wraps a real engine in the PolicySource shape so the
// service tests exercise genuine policy semantics.
type fakePolicies struct {
	snap *policy.Snapshot
}

func (f *fakePolicies) Snapshot() *policy.Snapshot {
	return f.snap
}

func (f *fakePolicies) CheckPermission(module policy.Module, action policy.Action, ctx *policy.PermissionContext) bool {
	return f.snap.Engine.CheckPermission(f.snap.Roles, module, action, ctx)
}

func (f *fakePolicies) RestrictedFields(module policy.Module) []string {
	codes := make([]policy.RoleCode, 0, len(f.snap.Roles))
	for _, role := range f.snap.Roles {
		codes = append(codes, role.Code)
	}
	return f.snap.Engine.Redactions().RestrictedFields(module, codes)
}

func newPolicies(t *testing.T, rules []policy.FieldRedaction, assignments ...policy.RoleAssignment) *fakePolicies {
	t.Helper()
	catalog, err := policy.NewCatalog(nil)
	require.NoError(t, err)
	redactions, err := policy.NewRedactionRegistry(rules)
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	engine := policy.NewEngine(policy.EngineConfig{
		Catalog:    catalog,
		Redactions: redactions,
		Logger:     logger,
	})

	var held []policy.Role
	var userID string
	for _, a := range assignments {
		role, ok := catalog.ResolveRole(a.RoleCode)
		require.True(t, ok)
		held = append(held, role)
		userID = a.UserID
	}
	return &fakePolicies{snap: &policy.Snapshot{
		UserID:      userID,
		CompanyID:   1,
		Roles:       held,
		Assignments: assignments,
		Engine:      engine,
		LoadedAt:    time.Now(),
	}}
}

func assignment(userID string, code policy.RoleCode, vesselID, department string) policy.RoleAssignment {
	return policy.RoleAssignment{
		UserID:     userID,
		RoleCode:   code,
		CompanyID:  1,
		VesselID:   vesselID,
		Department: department,
		IsActive:   true,
	}
}

func int64p(v int64) *int64    { return &v }
func strp(v string) *string    { return &v }
func testLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

// ============================================================================
// TESTS
// ============================================================================

func TestGetMemberOwnVesselOnly(t *testing.T) {
	repo := newMockRepository(
		Member{ID: "m-1", CompanyID: 1, VesselID: "vessel-1", Department: "Deck"},
		Member{ID: "m-2", CompanyID: 1, VesselID: "vessel-2", Department: "Deck"},
	)
	svc := NewService(repo, testLogger())
	policies := newPolicies(t, nil, assignment("capt-1", policy.RoleCaptain, "vessel-1", ""))

	_, err := svc.GetMember(context.Background(), policies, "m-1")
	require.NoError(t, err)

	_, err = svc.GetMember(context.Background(), policies, "m-2")
	require.ErrorIs(t, err, shared.ErrForbidden)
}

func TestGetMemberHidesSensitiveFieldsFromCaptain(t *testing.T) {
	repo := newMockRepository(Member{
		ID: "m-1", CompanyID: 1, VesselID: "vessel-1",
		Salary: int64p(4200), MedicalNotes: strp("fit for duty"),
	})
	svc := NewService(repo, testLogger())
	policies := newPolicies(t, nil, assignment("capt-1", policy.RoleCaptain, "vessel-1", ""))

	member, err := svc.GetMember(context.Background(), policies, "m-1")
	require.NoError(t, err)
	assert.Nil(t, member.Salary)
	assert.Nil(t, member.MedicalNotes)
}

func TestCrewSeesOwnSensitiveFieldsOnly(t *testing.T) {
	repo := newMockRepository(
		Member{ID: "user-5", CompanyID: 1, VesselID: "vessel-1",
			Salary: int64p(1800), MedicalNotes: strp("none")},
		Member{ID: "user-6", CompanyID: 1, VesselID: "vessel-1",
			Salary: int64p(2100), MedicalNotes: strp("none")},
	)
	svc := NewService(repo, testLogger())
	policies := newPolicies(t, nil, assignment("user-5", policy.RoleCrew, "vessel-1", ""))

	own, err := svc.GetMember(context.Background(), policies, "user-5")
	require.NoError(t, err)
	require.NotNil(t, own.Salary)
	assert.Equal(t, int64(1800), *own.Salary)
	assert.NotNil(t, own.MedicalNotes)

	colleague, err := svc.GetMember(context.Background(), policies, "user-6")
	require.NoError(t, err)
	assert.Nil(t, colleague.Salary)
	assert.Nil(t, colleague.MedicalNotes)
}

func TestFleetManagerSeesSalaryFleetWide(t *testing.T) {
	repo := newMockRepository(Member{
		ID: "m-1", CompanyID: 1, VesselID: "vessel-9",
		Salary: int64p(5000), MedicalNotes: strp("restricted duty"),
	})
	svc := NewService(repo, testLogger())
	policies := newPolicies(t, nil, assignment("fm-1", policy.RoleFleetManager, "", ""))

	member, err := svc.GetMember(context.Background(), policies, "m-1")
	require.NoError(t, err)
	require.NotNil(t, member.Salary)
	assert.Equal(t, int64(5000), *member.Salary)
	assert.Nil(t, member.MedicalNotes, "medical stays self or DPA scoped")
}

func TestRedactionRuleOverridesPermission(t *testing.T) {
	rules := []policy.FieldRedaction{{
		Module:          policy.ModuleCrew,
		Field:           FieldSalary,
		RestrictedRoles: []policy.RoleCode{policy.RoleFleetManager},
	}}
	repo := newMockRepository(Member{
		ID: "m-1", CompanyID: 1, VesselID: "vessel-9", Salary: int64p(5000),
	})
	svc := NewService(repo, testLogger())
	policies := newPolicies(t, rules, assignment("fm-1", policy.RoleFleetManager, "", ""))

	member, err := svc.GetMember(context.Background(), policies, "m-1")
	require.NoError(t, err)
	assert.Nil(t, member.Salary, "redaction applies even with view_salary granted")
}

func TestListMembersFiltersOutOfScopeRecords(t *testing.T) {
	repo := newMockRepository(
		Member{ID: "m-1", CompanyID: 1, VesselID: "vessel-1"},
		Member{ID: "m-2", CompanyID: 1, VesselID: "vessel-2"},
	)
	svc := NewService(repo, testLogger())
	policies := newPolicies(t, nil, assignment("capt-1", policy.RoleCaptain, "vessel-1", ""))

	members, err := svc.ListMembers(context.Background(), policies, ListFilter{})
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, "m-1", members[0].ID)
}

func TestListMembersDeniesForeignVesselFilter(t *testing.T) {
	repo := newMockRepository(Member{ID: "m-2", CompanyID: 1, VesselID: "vessel-2"})
	svc := NewService(repo, testLogger())
	policies := newPolicies(t, nil, assignment("capt-1", policy.RoleCaptain, "vessel-1", ""))

	_, err := svc.ListMembers(context.Background(), policies, ListFilter{VesselID: "vessel-2"})
	require.ErrorIs(t, err, shared.ErrForbidden)
}

func TestUpdateOwnProfile(t *testing.T) {
	repo := newMockRepository(
		Member{ID: "user-5", CompanyID: 1, VesselID: "vessel-1"},
		Member{ID: "user-6", CompanyID: 1, VesselID: "vessel-1"},
	)
	svc := NewService(repo, testLogger())
	policies := newPolicies(t, nil, assignment("user-5", policy.RoleCrew, "vessel-1", ""))

	updated, err := svc.UpdateOwnProfile(context.Background(), policies, "user-5", OwnProfileInput{
		Phone: "+47 555 0101", NextOfKin: "J. Halvorsen",
	})
	require.NoError(t, err)
	assert.Equal(t, "+47 555 0101", updated.Phone)

	_, err = svc.UpdateOwnProfile(context.Background(), policies, "user-6", OwnProfileInput{
		Phone: "+47 555 0102",
	})
	require.ErrorIs(t, err, shared.ErrForbidden)
}

func TestUpdateOwnProfileValidatesInput(t *testing.T) {
	repo := newMockRepository(Member{ID: "user-5", CompanyID: 1, VesselID: "vessel-1"})
	svc := NewService(repo, testLogger())
	policies := newPolicies(t, nil, assignment("user-5", policy.RoleCrew, "vessel-1", ""))

	_, err := svc.UpdateOwnProfile(context.Background(), policies, "user-5", OwnProfileInput{
		Email: "not-an-email",
	})
	require.ErrorIs(t, err, shared.ErrValidation)
}
