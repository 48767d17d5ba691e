package policy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"
)

// State is the lifecycle state of a session policy cache. Every state
// except StateReady denies all queries.
type State int32

const (
	StateUninitialized State = iota
	StateLoading
	StateReady
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return "uninitialized"
	}
}

// ErrLoadSuperseded indicates a Reset happened while the load was in
// flight; the loaded data was discarded.
var ErrLoadSuperseded = errors.New("policy: load superseded by reset")

// Loader fetches a principal's role data from the external collaborators.
// All I/O the engine ever performs happens through this interface, only
// during Load.
type Loader interface {
	// RoleAssignments returns the principal's assignments plus the legacy
	// free-text role string, empty when the account has none.
	RoleAssignments(ctx context.Context, userID string) ([]RoleAssignment, string, error)
	// CustomRoles returns the company-defined roles to merge into the
	// catalog.
	CustomRoles(ctx context.Context, companyID int64) ([]Role, error)
	// FieldRedactions returns the company's stored redaction rules.
	FieldRedactions(ctx context.Context, companyID int64) ([]FieldRedaction, error)
}

// Snapshot is the immutable result of a successful load. Queries read a
// snapshot pointer atomically, so a concurrent Reset can never expose a
// half-populated cache.
type Snapshot struct {
	UserID      string
	CompanyID   int64
	Roles       []Role
	Assignments []RoleAssignment
	Engine      *Engine
	LoadedAt    time.Time
	Stale       bool
}

// ActingContext seeds a PermissionContext with the principal's identity
// facts taken from the active assignments. Target fields stay empty for
// the caller to fill in.
func (s *Snapshot) ActingContext() PermissionContext {
	ctx := PermissionContext{ActingUserID: s.UserID}
	for _, a := range s.Assignments {
		if ctx.ActingVesselID == "" && a.VesselID != "" {
			ctx.ActingVesselID = a.VesselID
		}
		if ctx.ActingDepartment == "" && a.Department != "" {
			ctx.ActingDepartment = a.Department
		}
	}
	return ctx
}

// CacheConfig collects the dependencies of a session policy cache.
type CacheConfig struct {
	Loader    Loader
	Logger    *slog.Logger
	Recorder  DecisionRecorder
	Narrowing DepartmentNarrowing
	Matrix    *PermissionMatrix
	Overlay   *AuditModeOverlay
	Scopes    *ScopeMatrix
	Clock     func() time.Time
}

// SessionPolicyCache holds one principal's resolved roles and matrices.
// Concurrent Load calls collapse into a single fetch; Reset is visible
// immediately to all subsequent queries.
type SessionPolicyCache struct {
	cfg     CacheConfig
	group   singleflight.Group
	state   atomic.Int32
	snap    atomic.Pointer[Snapshot]
	version atomic.Uint64
}

// NewSessionPolicyCache constructs an empty cache in StateUninitialized.
func NewSessionPolicyCache(cfg CacheConfig) *SessionPolicyCache {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
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
	return &SessionPolicyCache{cfg: cfg}
}

// State returns the current lifecycle state.
func (c *SessionPolicyCache) State() State {
	return State(c.state.Load())
}

// IsInitialized reports whether the cache is ready to answer queries.
func (c *SessionPolicyCache) IsInitialized() bool {
	return c.State() == StateReady
}

// Snapshot returns the current snapshot, nil unless a load has
// succeeded since the last Reset. A snapshot retained across a failed
// reload is marked stale.
func (c *SessionPolicyCache) Snapshot() *Snapshot {
	return c.snap.Load()
}

// Load resolves the principal's roles and matrices. Overlapping calls
// for the same principal share one fetch. On failure the prior snapshot,
// if any, is retained stale and the cache denies until a load succeeds.
func (c *SessionPolicyCache) Load(ctx context.Context, userID string, companyID int64) error {
	if c.cfg.Loader == nil {
		return errors.New("policy: cache has no loader")
	}
	version := c.version.Load()
	c.state.Store(int32(StateLoading))

	key := fmt.Sprintf("%s:%d", userID, companyID)
	_, err, _ := c.group.Do(key, func() (any, error) {
		snap, err := c.buildSnapshot(ctx, userID, companyID)
		if err != nil {
			return nil, err
		}
		if c.version.Load() != version {
			return nil, ErrLoadSuperseded
		}
		c.snap.Store(snap)
		c.state.Store(int32(StateReady))
		return snap, nil
	})
	if err != nil {
		if errors.Is(err, ErrLoadSuperseded) {
			// Reset already put the cache back to uninitialized.
			return err
		}
		if prior := c.snap.Load(); prior != nil && !prior.Stale {
			stale := *prior
			stale.Stale = true
			c.snap.Store(&stale)
		}
		c.state.Store(int32(StateFailed))
		c.cfg.Logger.Error("policy cache load failed",
			slog.String("user_id", userID), slog.Any("error", err))
		return err
	}
	return nil
}

// buildSnapshot performs the collaborator I/O and assembles the engine.
func (c *SessionPolicyCache) buildSnapshot(ctx context.Context, userID string, companyID int64) (*Snapshot, error) {
	assignments, legacyRole, err := c.cfg.Loader.RoleAssignments(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("policy: load assignments: %w", err)
	}
	customRoles, err := c.cfg.Loader.CustomRoles(ctx, companyID)
	if err != nil {
		return nil, fmt.Errorf("policy: load custom roles: %w", err)
	}
	redactionRules, err := c.cfg.Loader.FieldRedactions(ctx, companyID)
	if err != nil {
		return nil, fmt.Errorf("policy: load redactions: %w", err)
	}

	catalog, err := NewCatalog(customRoles)
	if err != nil {
		return nil, err
	}
	scopes := c.cfg.Scopes
	for _, role := range customRoles {
		scopes = scopes.WithRole(role)
	}
	redactions, err := NewRedactionRegistry(redactionRules)
	if err != nil {
		return nil, err
	}

	now := c.cfg.Clock()
	held := make([]Role, 0, len(assignments)+1)
	seen := make(map[RoleCode]struct{}, len(assignments)+1)
	active := make([]RoleAssignment, 0, len(assignments))
	for _, a := range assignments {
		if !a.ActiveAt(now) {
			continue
		}
		active = append(active, a)
		role, ok := catalog.ResolveRole(a.RoleCode)
		if !ok {
			c.cfg.Logger.Warn("assignment references unknown role",
				slog.String("user_id", userID), slog.String("role", string(a.RoleCode)))
			continue
		}
		if _, dup := seen[role.Code]; dup {
			continue
		}
		seen[role.Code] = struct{}{}
		held = append(held, role)
	}
	if legacyRole != "" {
		code := MapLegacyRole(legacyRole)
		if _, dup := seen[code]; !dup {
			if role, ok := catalog.ResolveRole(code); ok {
				seen[code] = struct{}{}
				held = append(held, role)
			}
		}
	}

	engine := NewEngine(EngineConfig{
		Catalog:    catalog,
		Matrix:     c.cfg.Matrix,
		Overlay:    c.cfg.Overlay,
		Scopes:     scopes,
		Redactions: redactions,
		Narrowing:  c.cfg.Narrowing,
		Logger:     c.cfg.Logger,
		Recorder:   c.cfg.Recorder,
	})
	return &Snapshot{
		UserID:      userID,
		CompanyID:   companyID,
		Roles:       held,
		Assignments: active,
		Engine:      engine,
		LoadedAt:    now,
	}, nil
}

// Reset discards all cached role and permission data. Subsequent
// queries deny until a load succeeds; a load already in flight is
// abandoned rather than allowed to resurrect pre-reset data.
func (c *SessionPolicyCache) Reset() {
	c.version.Add(1)
	c.snap.Store(nil)
	c.state.Store(int32(StateUninitialized))
}

// ready returns the current snapshot when the cache may answer queries,
// nil otherwise. Every query path goes through this gate, so any state
// other than ready denies.
func (c *SessionPolicyCache) ready() *Snapshot {
	if c.State() != StateReady {
		return nil
	}
	return c.snap.Load()
}

// CheckPermission answers a permission question for the cached
// principal, denying whenever the cache is not ready.
func (c *SessionPolicyCache) CheckPermission(module Module, action Action, ctx *PermissionContext) bool {
	snap := c.ready()
	if snap == nil {
		return false
	}
	return snap.Engine.CheckPermission(snap.Roles, module, action, ctx)
}

// EffectivePermissions returns the cached principal's module/action
// union, empty whenever the cache is not ready.
func (c *SessionPolicyCache) EffectivePermissions() map[Module][]Action {
	snap := c.ready()
	if snap == nil {
		return map[Module][]Action{}
	}
	return snap.Engine.EffectivePermissions(snap.Roles)
}

// IsFieldVisible reports field visibility for one of the principal's
// roles, denying whenever the cache is not ready.
func (c *SessionPolicyCache) IsFieldVisible(module Module, field string, role RoleCode) bool {
	snap := c.ready()
	if snap == nil {
		return false
	}
	return snap.Engine.IsFieldVisible(module, field, role)
}

// FieldVisibleToAny reports whether any of the principal's roles may see
// the field, denying whenever the cache is not ready.
func (c *SessionPolicyCache) FieldVisibleToAny(module Module, field string) bool {
	snap := c.ready()
	if snap == nil {
		return false
	}
	return snap.Engine.Redactions().VisibleToAny(module, field, roleCodes(snap.Roles))
}

// RestrictedFields lists the module fields hidden from every role of the
// cached principal. Everything is hidden while the cache is not ready,
// but callers should have denied the read outright by then.
func (c *SessionPolicyCache) RestrictedFields(module Module) []string {
	snap := c.ready()
	if snap == nil {
		return nil
	}
	return snap.Engine.Redactions().RestrictedFields(module, roleCodes(snap.Roles))
}

func roleCodes(roles []Role) []RoleCode {
	codes := make([]RoleCode, len(roles))
	for i, role := range roles {
		codes[i] = role.Code
	}
	return codes
}

// HighestRole resolves the display-primary role of the cached principal.
func (c *SessionPolicyCache) HighestRole() (Role, bool) {
	snap := c.ready()
	if snap == nil {
		return Role{}, false
	}
	return snap.Engine.HighestRole(snap.Roles)
}
