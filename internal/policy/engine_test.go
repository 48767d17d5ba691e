package policy

import (
	"io"
	"log/slog"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testEngine(t *testing.T) *Engine {
	t.Helper()
	return NewEngine(EngineConfig{Logger: testLogger()})
}

func heldRoles(t *testing.T, e *Engine, codes ...RoleCode) []Role {
	t.Helper()
	roles := make([]Role, 0, len(codes))
	for _, code := range codes {
		role, ok := e.Catalog().ResolveRole(code)
		if !ok {
			t.Fatalf("role %q not in catalog", code)
		}
		roles = append(roles, role)
	}
	return roles
}

func TestDenyByDefault(t *testing.T) {
	e := testEngine(t)
	cases := []struct {
		name   string
		module Module
		action Action
		roles  []Role
	}{
		{"no roles", ModuleCrew, ActionView, nil},
		{"unknown module", Module("payroll"), ActionView, heldRoles(t, e, RoleAdmin)},
		{"unknown action", ModuleCrew, Action("teleport"), heldRoles(t, e, RoleAdmin)},
		{"ungranted role", ModuleAdmin, ActionConfigure, heldRoles(t, e, RoleCrew)},
		{"action not declared for module", ModuleAdmin, ActionSign, heldRoles(t, e, RoleAdmin)},
		{"unknown role code", ModuleCrew, ActionView, []Role{{Code: RoleCode("ghost")}}},
	}
	for _, tc := range cases {
		if e.CheckPermission(tc.roles, tc.module, tc.action, nil) {
			t.Fatalf("%s: expected deny", tc.name)
		}
	}
}

func TestUnionAcrossRolesIsMonotonic(t *testing.T) {
	e := testEngine(t)
	base := heldRoles(t, e, RoleCrew)
	extended := heldRoles(t, e, RoleCrew, RoleCaptain)

	baseSet := e.EffectivePermissions(base)
	extendedSet := e.EffectivePermissions(extended)

	for module, actions := range baseSet {
		for _, action := range actions {
			found := false
			for _, a := range extendedSet[module] {
				if a == action {
					found = true
					break
				}
			}
			if !found {
				t.Fatalf("adding a role removed %s/%s", module, action)
			}
		}
	}
	// The captain must contribute something the crew role lacks.
	if e.CheckPermission(base, ModuleCrew, ActionApprove, nil) {
		t.Fatalf("crew should not approve crew records")
	}
	if !e.CheckPermission(extended, ModuleCrew, ActionApprove, nil) {
		t.Fatalf("crew+captain should approve crew records")
	}
}

func TestAuditModeNarrowingIsSubset(t *testing.T) {
	narrowed := testEngine(t)
	unrestricted := NewEngine(EngineConfig{
		Overlay: NewAuditModeOverlay(nil),
		Logger:  testLogger(),
	})
	auditor := heldRoles(t, narrowed, RoleAuditorFlag)

	for module, actions := range defaultGrants {
		for action := range actions {
			if narrowed.CheckPermission(auditor, module, action, nil) &&
				!unrestricted.CheckPermission(auditor, module, action, nil) {
				t.Fatalf("overlay added %s/%s beyond the matrix", module, action)
			}
		}
	}
}

func TestAuditModeOverlayIntersection(t *testing.T) {
	e := testEngine(t)
	auditor := heldRoles(t, e, RoleAuditorFlag)

	// The matrix grants auditor_flag edit on certificates, but the audit
	// mode rule limits the role to view/export; the intersection wins.
	if !e.matrix.IsGranted(ModuleCertificates, ActionEdit, RoleAuditorFlag) {
		t.Fatalf("fixture expects a matrix edit grant for auditor_flag")
	}
	if e.CheckPermission(auditor, ModuleCertificates, ActionEdit, nil) {
		t.Fatalf("overlay should remove the edit grant")
	}
	if !e.CheckPermission(auditor, ModuleCertificates, ActionView, nil) {
		t.Fatalf("overlay should keep the view grant")
	}
	if e.CheckPermission(auditor, ModuleCrew, ActionView, nil) {
		t.Fatalf("overlay should hide modules outside the rule")
	}
}

func TestScopeNarrowsOwnVessel(t *testing.T) {
	e := testEngine(t)
	captain := heldRoles(t, e, RoleCaptain)

	sameVessel := &PermissionContext{ActingUserID: "u1", ActingVesselID: "V1", TargetVesselID: "V1"}
	otherVessel := &PermissionContext{ActingUserID: "u1", ActingVesselID: "V1", TargetVesselID: "V2"}

	if !e.CheckPermission(captain, ModuleCrew, ActionEdit, sameVessel) {
		t.Fatalf("captain should edit crew on own vessel")
	}
	if e.CheckPermission(captain, ModuleCrew, ActionEdit, otherVessel) {
		t.Fatalf("captain must not edit crew on another vessel")
	}

	admin := heldRoles(t, e, RoleAdmin)
	if !e.CheckPermission(admin, ModuleCrew, ActionEdit, otherVessel) {
		t.Fatalf("full-scope role should pass the same context")
	}
}

func TestSelfScopeUnionAcrossRoles(t *testing.T) {
	e := testEngine(t)
	officer := heldRoles(t, e, RoleChiefOfficer)
	both := heldRoles(t, e, RoleChiefOfficer, RoleCrew)

	selfLookup := &PermissionContext{
		ActingUserID:     "u42",
		ActingVesselID:   "V1",
		ActingDepartment: DepartmentDeck,
		TargetUserID:     "u42",
	}
	if e.CheckPermission(officer, ModuleCrew, ActionViewSalary, selfLookup) {
		t.Fatalf("chief officer alone must not view salary")
	}
	if !e.CheckPermission(both, ModuleCrew, ActionViewSalary, selfLookup) {
		t.Fatalf("crew role should grant own salary view via union")
	}

	otherLookup := &PermissionContext{ActingUserID: "u42", TargetUserID: "u7"}
	if e.CheckPermission(both, ModuleCrew, ActionViewSalary, otherLookup) {
		t.Fatalf("self-scoped action must deny a foreign target")
	}
}

func TestSelfOnlyActionWithoutContextDenies(t *testing.T) {
	e := testEngine(t)
	crew := heldRoles(t, e, RoleCrew)
	if e.CheckPermission(crew, ModuleCrew, ActionViewSalary, nil) {
		t.Fatalf("self-scoped action without context must deny")
	}
}

func TestEffectivePermissionsForAuditor(t *testing.T) {
	e := testEngine(t)
	effective := e.EffectivePermissions(heldRoles(t, e, RoleAuditorFlag))

	allowedModules := map[Module]struct{}{
		ModuleCertificates: {},
		ModuleSafety:       {},
		ModuleDocuments:    {},
	}
	for module, actions := range effective {
		if _, ok := allowedModules[module]; !ok {
			t.Fatalf("auditor effective set leaked module %s", module)
		}
		for _, action := range actions {
			if action != ActionView && action != ActionExport {
				t.Fatalf("auditor effective set leaked action %s on %s", action, module)
			}
		}
	}
	if len(effective[ModuleCertificates]) == 0 {
		t.Fatalf("auditor should retain certificate visibility")
	}
}

func TestHighestRolePrecedence(t *testing.T) {
	e := testEngine(t)
	held := heldRoles(t, e, RoleCrew, RoleCaptain, RoleDPA)
	best, ok := e.HighestRole(held)
	if !ok || best.Code != RoleDPA {
		t.Fatalf("expected dpa as primary role, got %v", best.Code)
	}

	custom := append(heldRoles(t, e, RoleCrew), Role{Code: RoleCode("port_agent")})
	best, ok = e.HighestRole(custom)
	if !ok || best.Code != RoleCrew {
		t.Fatalf("custom roles rank below system roles, got %v", best.Code)
	}

	if _, ok := e.HighestRole(nil); ok {
		t.Fatalf("no roles means no primary role")
	}
}

func TestMapLegacyRole(t *testing.T) {
	cases := map[string]RoleCode{
		"Master":                 RoleCaptain,
		"chief_officer":          RoleChiefOfficer,
		"C/E":                    RoleChiefEngineer,
		"  Fleet   Manager ":     RoleFleetManager,
		"ADMINISTRATOR":          RoleAdmin,
		"seafarer":               RoleCrew,
		"director of everything": RoleCrew,
		"":                       RoleCrew,
	}
	for raw, want := range cases {
		if got := MapLegacyRole(raw); got != want {
			t.Fatalf("legacy %q: got %s, want %s", raw, got, want)
		}
	}
}
