package policy

// AuditModeRule narrows the modules and actions visible to a role while
// it operates under audit mode. The rule can only remove capability: the
// engine intersects it with the permission matrix, never unions.
type AuditModeRule struct {
	Modules []Module
	Actions []Action
}

// AuditModeOverlay holds the per-role restriction rules. Roles without a
// rule are unrestricted.
type AuditModeOverlay struct {
	rules map[RoleCode]auditModeRule
}

type auditModeRule struct {
	modules map[Module]struct{}
	actions map[Action]struct{}
}

// defaultAuditModeRules models observer roles: flag state auditors see a
// read/export view of the compliance modules regardless of what the
// permission matrix would otherwise grant them.
var defaultAuditModeRules = map[RoleCode]AuditModeRule{
	RoleAuditorFlag: {
		Modules: []Module{ModuleCertificates, ModuleSafety, ModuleDocuments},
		Actions: []Action{ActionView, ActionExport},
	},
}

// DefaultAuditModeOverlay returns the versioned overlay table.
func DefaultAuditModeOverlay() *AuditModeOverlay {
	return NewAuditModeOverlay(defaultAuditModeRules)
}

// NewAuditModeOverlay builds an overlay from explicit rules.
func NewAuditModeOverlay(rules map[RoleCode]AuditModeRule) *AuditModeOverlay {
	built := make(map[RoleCode]auditModeRule, len(rules))
	for role, rule := range rules {
		modules := make(map[Module]struct{}, len(rule.Modules))
		for _, m := range rule.Modules {
			modules[m] = struct{}{}
		}
		actions := make(map[Action]struct{}, len(rule.Actions))
		for _, a := range rule.Actions {
			actions[a] = struct{}{}
		}
		built[role] = auditModeRule{modules: modules, actions: actions}
	}
	return &AuditModeOverlay{rules: built}
}

// HasRule reports whether the role operates under audit mode.
func (o *AuditModeOverlay) HasRule(role RoleCode) bool {
	if o == nil {
		return false
	}
	_, ok := o.rules[role]
	return ok
}

// IsModuleAllowed reports whether the role may see the module. Roles
// without a rule are unrestricted.
func (o *AuditModeOverlay) IsModuleAllowed(role RoleCode, module Module) bool {
	if o == nil {
		return true
	}
	rule, ok := o.rules[role]
	if !ok {
		return true
	}
	_, ok = rule.modules[module]
	return ok
}

// IsActionAllowed reports whether the role may perform the action.
func (o *AuditModeOverlay) IsActionAllowed(role RoleCode, action Action) bool {
	if o == nil {
		return true
	}
	rule, ok := o.rules[role]
	if !ok {
		return true
	}
	_, ok = rule.actions[action]
	return ok
}
