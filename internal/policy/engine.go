package policy

import (
	"log/slog"
	"sort"
	"strings"
)

// DecisionRecorder observes permission decisions for metrics. Must be
// safe for concurrent use.
type DecisionRecorder interface {
	ObserveDecision(module Module, action Action, allowed bool)
}

// Engine combines the permission matrix, scope matrix, audit-mode
// overlay, context evaluator and redaction registry into the policy
// decision surface. Once constructed it is immutable and safe for
// concurrent readers without locking.
type Engine struct {
	catalog    *Catalog
	matrix     *PermissionMatrix
	overlay    *AuditModeOverlay
	evaluator  *Evaluator
	redactions *RedactionRegistry
	logger     *slog.Logger
	recorder   DecisionRecorder
}

// EngineConfig collects the engine's collaborators. Zero-value fields
// fall back to the versioned defaults.
type EngineConfig struct {
	Catalog    *Catalog
	Matrix     *PermissionMatrix
	Overlay    *AuditModeOverlay
	Scopes     *ScopeMatrix
	Redactions *RedactionRegistry
	Narrowing  DepartmentNarrowing
	Logger     *slog.Logger
	Recorder   DecisionRecorder
}

// NewEngine constructs an engine from the configuration.
func NewEngine(cfg EngineConfig) *Engine {
	if cfg.Catalog == nil {
		cfg.Catalog, _ = NewCatalog(nil)
	}
	if cfg.Matrix == nil {
		cfg.Matrix = DefaultPermissionMatrix()
	}
	if cfg.Overlay == nil {
		cfg.Overlay = DefaultAuditModeOverlay()
	}
	if cfg.Scopes == nil {
		cfg.Scopes = DefaultScopeMatrix()
	}
	if cfg.Redactions == nil {
		cfg.Redactions, _ = NewRedactionRegistry(nil)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Engine{
		catalog:    cfg.Catalog,
		matrix:     cfg.Matrix,
		overlay:    cfg.Overlay,
		evaluator:  NewEvaluator(cfg.Scopes, cfg.Narrowing, cfg.Logger),
		redactions: cfg.Redactions,
		logger:     cfg.Logger,
		recorder:   cfg.Recorder,
	}
}

// Catalog exposes the merged role catalog backing this engine.
func (e *Engine) Catalog() *Catalog {
	return e.catalog
}

// Redactions exposes the redaction registry backing this engine.
func (e *Engine) Redactions() *RedactionRegistry {
	return e.redactions
}

// CheckPermission reports whether any of the held roles grants the
// requested module and action under the supplied context. The result is
// the union across roles: one grant suffices, and no role's denial can
// remove another role's grant.
func (e *Engine) CheckPermission(held []Role, module Module, action Action, ctx *PermissionContext) bool {
	allowed := false
	for _, role := range held {
		if e.roleGrants(role, module, action, ctx) {
			allowed = true
			break
		}
	}
	if e.recorder != nil {
		e.recorder.ObserveDecision(module, action, allowed)
	}
	return allowed
}

// roleGrants evaluates a single role's contribution.
func (e *Engine) roleGrants(role Role, module Module, action Action, ctx *PermissionContext) bool {
	if _, known := e.catalog.ResolveRole(role.Code); !known {
		e.logger.Warn("permission check with unknown role",
			slog.String("role", string(role.Code)))
		return false
	}
	if e.overlay.HasRule(role.Code) {
		if !e.overlay.IsModuleAllowed(role.Code, module) || !e.overlay.IsActionAllowed(role.Code, action) {
			return false
		}
	}
	if !e.matrix.IsGranted(module, action, role.Code) {
		return false
	}
	if ctx == nil {
		// Self-only actions are inherently instance-targeted; without a
		// context the self check cannot run and the role contributes
		// nothing.
		if IsSelfOnlyAction(action) && role.DefaultScope == ScopeTypeSelf {
			e.logger.Warn("self-scoped action without context",
				slog.String("role", string(role.Code)),
				slog.String("action", string(action)))
			return false
		}
		return true
	}
	return e.evaluator.SatisfiesScope(role, module, action, ctx)
}

// EffectivePermissions computes the context-free union of allowed
// actions per module across all held roles, each role first narrowed by
// its audit-mode rule. Used to build navigation and menus exhaustively.
func (e *Engine) EffectivePermissions(held []Role) map[Module][]Action {
	out := make(map[Module][]Action)
	for module, actions := range e.matrix.grants {
		var allowed []Action
		for action := range actions {
			granted := false
			for _, role := range held {
				if _, known := e.catalog.ResolveRole(role.Code); !known {
					continue
				}
				if e.overlay.HasRule(role.Code) {
					if !e.overlay.IsModuleAllowed(role.Code, module) || !e.overlay.IsActionAllowed(role.Code, action) {
						continue
					}
				}
				if e.matrix.IsGranted(module, action, role.Code) {
					granted = true
					break
				}
			}
			if granted {
				allowed = append(allowed, action)
			}
		}
		if len(allowed) > 0 {
			sort.Slice(allowed, func(i, j int) bool { return allowed[i] < allowed[j] })
			out[module] = allowed
		}
	}
	return out
}

// IsFieldVisible reports whether the role may see the field. Evaluated
// independently of module action permission.
func (e *Engine) IsFieldVisible(module Module, field string, role RoleCode) bool {
	return e.redactions.IsFieldVisible(module, field, role)
}

// HighestRole resolves the display-primary role among the held set using
// the fixed precedence ranking. Never used to decide permissions.
func (e *Engine) HighestRole(held []Role) (Role, bool) {
	if len(held) == 0 {
		return Role{}, false
	}
	best := held[0]
	for _, role := range held[1:] {
		if precedence(role.Code) < precedence(best.Code) {
			best = role
		}
	}
	return best, true
}

// legacyRoleMap translates the free-text role strings that predate the
// multi-role model. Keys are normalized: lower case, single spaces.
var legacyRoleMap = map[string]RoleCode{
	"admin":                    RoleAdmin,
	"administrator":            RoleAdmin,
	"dpa":                      RoleDPA,
	"designated person ashore": RoleDPA,
	"fleet manager":            RoleFleetManager,
	"superintendent":           RoleTechnicalSuperint,
	"technical superintendent": RoleTechnicalSuperint,
	"master":                   RoleCaptain,
	"captain":                  RoleCaptain,
	"chief officer":            RoleChiefOfficer,
	"c/o":                      RoleChiefOfficer,
	"chief engineer":           RoleChiefEngineer,
	"c/e":                      RoleChiefEngineer,
	"hod":                      RoleHOD,
	"head of department":       RoleHOD,
	"auditor":                  RoleAuditorFlag,
	"flag auditor":             RoleAuditorFlag,
	"crew":                     RoleCrew,
	"seafarer":                 RoleCrew,
}

// MapLegacyRole translates a legacy free-text role string to exactly one
// canonical role code. Unknown strings map to the lowest-privilege role,
// never to an elevated one.
func MapLegacyRole(raw string) RoleCode {
	normalized := strings.Join(strings.Fields(strings.ToLower(strings.ReplaceAll(raw, "_", " "))), " ")
	if code, ok := legacyRoleMap[normalized]; ok {
		return code
	}
	return RoleCrew
}
