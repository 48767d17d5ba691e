package policy

import "log/slog"

// Department names used by the department-head narrowing rules.
const (
	DepartmentDeck   = "Deck"
	DepartmentEngine = "Engine"
)

// PermissionContext carries the identity and target facts a scoped check
// needs. It is ephemeral, built per request, never persisted.
type PermissionContext struct {
	ActingUserID     string
	ActingVesselID   string
	ActingDepartment string
	TargetUserID     string
	TargetVesselID   string
	TargetDepartment string
	IsSelf           bool
}

// SelfTarget reports whether the request targets the acting user's own
// record.
func (c *PermissionContext) SelfTarget() bool {
	if c == nil {
		return false
	}
	if c.IsSelf {
		return true
	}
	return c.ActingUserID != "" && c.TargetUserID == c.ActingUserID
}

// HasTarget reports whether the context names a concrete instance. A
// context without a target describes a listing or self operation.
func (c *PermissionContext) HasTarget() bool {
	if c == nil {
		return false
	}
	return c.TargetUserID != "" || c.TargetVesselID != "" || c.TargetDepartment != ""
}

// DepartmentNarrowing selects how department-head roles are narrowed.
// The legacy behavior skips narrowing for roles that also hold full
// vessel scope; whether that exemption is intended is an open policy
// question, so both behaviors are supported and chosen by configuration.
type DepartmentNarrowing int

const (
	// NarrowUnlessFullVessel narrows department-head roles only when
	// their vessel capability is not full.
	NarrowUnlessFullVessel DepartmentNarrowing = iota
	// NarrowAlways narrows department-head roles unconditionally.
	NarrowAlways
)

// departmentRule pins a role to a department. An empty fixed name means
// the role matches whatever department its assignment carries.
type departmentRule struct {
	fixed string
}

// departmentRules is the table of role-specific department predicates.
// Kept here, looked up once, so call sites never compare role strings.
var departmentRules = map[RoleCode]departmentRule{
	RoleChiefOfficer:  {fixed: DepartmentDeck},
	RoleChiefEngineer: {fixed: DepartmentEngine},
	RoleHOD:           {},
}

// moduleDomains lists the scope domains relevant to each module, in
// fall-through order.
var moduleDomains = map[Module][]ScopeDomain{
	ModuleCrew:         {DomainVessel, DomainDepartment},
	ModuleCertificates: {DomainVessel, DomainFleet},
	ModuleMaintenance:  {DomainVessel, DomainDepartment},
	ModuleIncidents:    {DomainVessel, DomainFleet},
	ModuleVoyages:      {DomainVessel, DomainFleet},
	ModuleDocuments:    {DomainVessel, DomainFleet},
	ModuleSafety:       {DomainVessel, DomainDepartment},
	ModuleAdmin:        {DomainFleet},
}

// Evaluator decides whether a role's scope admits a request context.
type Evaluator struct {
	scopes    *ScopeMatrix
	narrowing DepartmentNarrowing
	logger    *slog.Logger
}

// NewEvaluator constructs an evaluator over a scope matrix.
func NewEvaluator(scopes *ScopeMatrix, narrowing DepartmentNarrowing, logger *slog.Logger) *Evaluator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Evaluator{scopes: scopes, narrowing: narrowing, logger: logger}
}

// SatisfiesScope reports whether ctx satisfies the role's scope for the
// requested module and action. Ambiguous or missing context resolves to
// false, never to a skipped check.
func (e *Evaluator) SatisfiesScope(role Role, module Module, action Action, ctx *PermissionContext) bool {
	if ctx == nil {
		return false
	}

	// Self-scoped roles answer self-only actions on identity equality
	// alone; broader roles holding the same grant go through the generic
	// domain walk below.
	if IsSelfOnlyAction(action) && role.DefaultScope == ScopeTypeSelf {
		return ctx.SelfTarget()
	}

	for _, domain := range moduleDomains[module] {
		switch e.scopes.Capability(role.Code, domain) {
		case CapabilityFull:
			return e.departmentNarrowSatisfied(role, ctx)
		case CapabilityOwn:
			if !e.ownInstanceSatisfied(role, domain, ctx) {
				return false
			}
			return e.departmentNarrowSatisfied(role, ctx)
		case CapabilityNone:
			// Domain not authoritative for this role; fall through.
		}
	}
	return false
}

// ownInstanceSatisfied checks the acting/target match for an own-scoped
// domain. A context without a target is a listing or self operation and
// passes vacuously; a named target requires an exact match against the
// acting assignment.
func (e *Evaluator) ownInstanceSatisfied(role Role, domain ScopeDomain, ctx *PermissionContext) bool {
	switch domain {
	case DomainVessel:
		if ctx.TargetVesselID == "" {
			return true
		}
		if ctx.ActingVesselID == "" {
			e.logger.Warn("scope check missing acting vessel",
				slog.String("role", string(role.Code)))
			return false
		}
		return ctx.ActingVesselID == ctx.TargetVesselID
	case DomainDepartment:
		if ctx.TargetDepartment == "" {
			return true
		}
		if ctx.ActingDepartment == "" {
			e.logger.Warn("scope check missing acting department",
				slog.String("role", string(role.Code)))
			return false
		}
		return ctx.ActingDepartment == ctx.TargetDepartment
	case DomainFleet:
		// Fleet is company-wide; own-scoped fleet reach means the single
		// company the principal belongs to.
		return true
	}
	return false
}

// departmentNarrowSatisfied applies the role-specific department
// predicate layered on top of the generic capability result.
func (e *Evaluator) departmentNarrowSatisfied(role Role, ctx *PermissionContext) bool {
	rule, ok := departmentRules[role.Code]
	if !ok {
		return true
	}
	if e.scopes.Capability(role.Code, DomainDepartment) != CapabilityFull {
		return true
	}
	if e.narrowing == NarrowUnlessFullVessel &&
		e.scopes.Capability(role.Code, DomainVessel) == CapabilityFull {
		return true
	}
	want := rule.fixed
	if want == "" {
		want = ctx.ActingDepartment
	}
	if want == "" {
		e.logger.Warn("department narrowing with no acting department",
			slog.String("role", string(role.Code)))
		return false
	}
	if !ctx.HasTarget() {
		return true
	}
	return ctx.TargetDepartment == want
}
