package policy

import "testing"

func TestMatrixClosedWorld(t *testing.T) {
	m := DefaultPermissionMatrix()

	if m.IsGranted(Module("payroll"), ActionView, RoleAdmin) {
		t.Fatalf("unknown module must be denied")
	}
	if m.IsGranted(ModuleCrew, Action("levitate"), RoleAdmin) {
		t.Fatalf("unknown action must be denied")
	}
	if m.IsGranted(ModuleCrew, ActionView, RoleCode("ghost")) {
		t.Fatalf("unknown role must be denied")
	}
	if m.IsGranted(ModuleAdmin, ActionConfigure, RoleCaptain) {
		t.Fatalf("absent grant must be denied")
	}
	if !m.IsGranted(ModuleAdmin, ActionConfigure, RoleAdmin) {
		t.Fatalf("present grant must be allowed")
	}

	var nilMatrix *PermissionMatrix
	if nilMatrix.IsGranted(ModuleCrew, ActionView, RoleAdmin) {
		t.Fatalf("nil matrix must deny")
	}
}

func TestModuleActionSetsAreSubsetsOfVocabulary(t *testing.T) {
	vocabulary := map[Action]struct{}{
		ActionView: {}, ActionCreate: {}, ActionEdit: {}, ActionApprove: {},
		ActionSign: {}, ActionDelete: {}, ActionExport: {}, ActionConfigure: {},
		ActionViewSalary: {}, ActionViewMedical: {}, ActionEditOwnLimited: {},
	}
	m := DefaultPermissionMatrix()
	for module := range defaultGrants {
		for _, action := range m.ModuleActions(module) {
			if _, ok := vocabulary[action]; !ok {
				t.Fatalf("module %s declares action %s outside the vocabulary", module, action)
			}
		}
	}
	// Self-scoped reads belong to the crew module only.
	for module := range defaultGrants {
		if module == ModuleCrew {
			continue
		}
		if m.SupportsAction(module, ActionViewSalary) || m.SupportsAction(module, ActionViewMedical) {
			t.Fatalf("module %s must not declare self-scoped crew reads", module)
		}
	}
}

func TestSupportsActionFollowsDeclarations(t *testing.T) {
	m := DefaultPermissionMatrix()
	if !m.SupportsAction(ModuleCertificates, ActionSign) {
		t.Fatalf("certificates declare sign")
	}
	if m.SupportsAction(ModuleAdmin, ActionSign) {
		t.Fatalf("admin module does not declare sign")
	}
}
