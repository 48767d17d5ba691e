package policy

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type stubLoader struct {
	mu          sync.Mutex
	assignments []RoleAssignment
	legacy      string
	custom      []Role
	redactions  []FieldRedaction
	err         error

	loadCount atomic.Int32
	entered   chan struct{}
	block     chan struct{}
	enterOnce sync.Once
}

func (s *stubLoader) RoleAssignments(ctx context.Context, userID string) ([]RoleAssignment, string, error) {
	s.loadCount.Add(1)
	if s.entered != nil {
		s.enterOnce.Do(func() { close(s.entered) })
	}
	if s.block != nil {
		<-s.block
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, "", s.err
	}
	return s.assignments, s.legacy, nil
}

func (s *stubLoader) CustomRoles(ctx context.Context, companyID int64) ([]Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.custom, nil
}

func (s *stubLoader) FieldRedactions(ctx context.Context, companyID int64) ([]FieldRedaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.redactions, nil
}

func (s *stubLoader) setErr(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

func captainAssignment() RoleAssignment {
	return RoleAssignment{
		UserID:    "u1",
		RoleCode:  RoleCaptain,
		CompanyID: 7,
		VesselID:  "V1",
		IsActive:  true,
		ValidFrom: time.Now().Add(-time.Hour),
	}
}

func newTestCache(loader Loader) *SessionPolicyCache {
	return NewSessionPolicyCache(CacheConfig{Loader: loader, Logger: testLogger()})
}

func TestCacheFailClosedBeforeLoad(t *testing.T) {
	cache := newTestCache(&stubLoader{assignments: []RoleAssignment{captainAssignment()}})

	if cache.IsInitialized() {
		t.Fatalf("fresh cache must not be initialized")
	}
	if cache.CheckPermission(ModuleCrew, ActionView, nil) {
		t.Fatalf("uninitialized cache must deny")
	}
	if len(cache.EffectivePermissions()) != 0 {
		t.Fatalf("uninitialized cache must expose no permissions")
	}
	if _, ok := cache.HighestRole(); ok {
		t.Fatalf("uninitialized cache has no primary role")
	}
	if cache.IsFieldVisible(ModuleCrew, "rank", RoleCaptain) {
		t.Fatalf("uninitialized cache must hide every field")
	}
}

func TestCacheLoadAndQuery(t *testing.T) {
	cache := newTestCache(&stubLoader{assignments: []RoleAssignment{captainAssignment()}})

	if err := cache.Load(context.Background(), "u1", 7); err != nil {
		t.Fatalf("load: %v", err)
	}
	if !cache.IsInitialized() || cache.State() != StateReady {
		t.Fatalf("cache should be ready after load")
	}

	ownVessel := &PermissionContext{ActingUserID: "u1", ActingVesselID: "V1", TargetVesselID: "V1"}
	otherVessel := &PermissionContext{ActingUserID: "u1", ActingVesselID: "V1", TargetVesselID: "V2"}
	if !cache.CheckPermission(ModuleCrew, ActionEdit, ownVessel) {
		t.Fatalf("captain should edit crew on own vessel")
	}
	if cache.CheckPermission(ModuleCrew, ActionEdit, otherVessel) {
		t.Fatalf("captain must not edit crew on another vessel")
	}
	if role, ok := cache.HighestRole(); !ok || role.Code != RoleCaptain {
		t.Fatalf("expected captain as primary role")
	}
}

func TestCacheLoadFailureRetainsStaleSnapshot(t *testing.T) {
	loader := &stubLoader{assignments: []RoleAssignment{captainAssignment()}}
	cache := newTestCache(loader)

	if err := cache.Load(context.Background(), "u1", 7); err != nil {
		t.Fatalf("load: %v", err)
	}
	loader.setErr(errors.New("upstream down"))
	if err := cache.Load(context.Background(), "u1", 7); err == nil {
		t.Fatalf("expected load failure")
	}

	if cache.State() != StateFailed {
		t.Fatalf("expected failed state, got %s", cache.State())
	}
	snap := cache.Snapshot()
	if snap == nil || !snap.Stale {
		t.Fatalf("prior snapshot should be retained stale")
	}
	if cache.CheckPermission(ModuleCrew, ActionView, nil) {
		t.Fatalf("failed cache must deny even with a stale snapshot")
	}
}

func TestCacheResetDeniesImmediately(t *testing.T) {
	cache := newTestCache(&stubLoader{assignments: []RoleAssignment{captainAssignment()}})
	if err := cache.Load(context.Background(), "u1", 7); err != nil {
		t.Fatalf("load: %v", err)
	}
	cache.Reset()

	if cache.IsInitialized() {
		t.Fatalf("reset cache must not be initialized")
	}
	if cache.Snapshot() != nil {
		t.Fatalf("reset must discard the snapshot")
	}
	if cache.CheckPermission(ModuleCrew, ActionView, nil) {
		t.Fatalf("reset cache must deny")
	}
}

func TestCacheLoadSingleflight(t *testing.T) {
	loader := &stubLoader{
		assignments: []RoleAssignment{captainAssignment()},
		entered:     make(chan struct{}),
		block:       make(chan struct{}),
	}
	cache := newTestCache(loader)

	const callers = 8
	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = cache.Load(context.Background(), "u1", 7)
		}(i)
	}

	<-loader.entered
	time.Sleep(50 * time.Millisecond)
	close(loader.block)
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("caller %d: %v", i, err)
		}
	}
	if got := loader.loadCount.Load(); got != 1 {
		t.Fatalf("expected a single collapsed fetch, got %d", got)
	}
	if !cache.IsInitialized() {
		t.Fatalf("cache should be ready after the shared load")
	}
}

func TestCacheResetDuringLoadDiscardsResult(t *testing.T) {
	loader := &stubLoader{
		assignments: []RoleAssignment{captainAssignment()},
		entered:     make(chan struct{}),
		block:       make(chan struct{}),
	}
	cache := newTestCache(loader)

	done := make(chan error, 1)
	go func() { done <- cache.Load(context.Background(), "u1", 7) }()

	<-loader.entered
	cache.Reset()
	close(loader.block)

	if err := <-done; !errors.Is(err, ErrLoadSuperseded) {
		t.Fatalf("expected ErrLoadSuperseded, got %v", err)
	}
	if cache.State() != StateUninitialized {
		t.Fatalf("superseded load must leave the cache uninitialized, got %s", cache.State())
	}
	if cache.CheckPermission(ModuleCrew, ActionView, nil) {
		t.Fatalf("no pre-reset data may survive")
	}
}

func TestCacheFoldsLegacyRole(t *testing.T) {
	cache := newTestCache(&stubLoader{legacy: "Master"})
	if err := cache.Load(context.Background(), "u1", 7); err != nil {
		t.Fatalf("load: %v", err)
	}
	role, ok := cache.HighestRole()
	if !ok || role.Code != RoleCaptain {
		t.Fatalf("legacy master should fold to captain, got %v", role.Code)
	}
}

func TestCacheSkipsInactiveAndUnknownAssignments(t *testing.T) {
	past := time.Now().Add(-time.Minute)
	loader := &stubLoader{assignments: []RoleAssignment{
		{UserID: "u1", RoleCode: RoleCaptain, IsActive: false},
		{UserID: "u1", RoleCode: RoleDPA, IsActive: true, ValidUntil: &past},
		{UserID: "u1", RoleCode: RoleCode("ghost"), IsActive: true},
	}}
	cache := newTestCache(loader)
	if err := cache.Load(context.Background(), "u1", 7); err != nil {
		t.Fatalf("load: %v", err)
	}
	snap := cache.Snapshot()
	if len(snap.Roles) != 0 {
		t.Fatalf("expected no resolved roles, got %v", snap.Roles)
	}
	if cache.CheckPermission(ModuleCrew, ActionView, nil) {
		t.Fatalf("revoked and unknown roles grant nothing")
	}
}

func TestCacheMergesCustomRoles(t *testing.T) {
	customCode := RoleCode("port_agent")
	loader := &stubLoader{
		custom: []Role{{Code: customCode, DisplayName: "Port Agent", CompanyID: 7, DefaultScope: ScopeTypeVessel}},
		assignments: []RoleAssignment{{
			UserID: "u1", RoleCode: customCode, CompanyID: 7, VesselID: "V1", IsActive: true,
		}},
	}
	matrix := NewPermissionMatrix(map[Module]map[Action][]RoleCode{
		ModuleVoyages: {ActionView: {customCode}},
	})
	cache := NewSessionPolicyCache(CacheConfig{Loader: loader, Logger: testLogger(), Matrix: matrix})
	if err := cache.Load(context.Background(), "u1", 7); err != nil {
		t.Fatalf("load: %v", err)
	}

	own := &PermissionContext{ActingUserID: "u1", ActingVesselID: "V1", TargetVesselID: "V1"}
	other := &PermissionContext{ActingUserID: "u1", ActingVesselID: "V1", TargetVesselID: "V2"}
	if !cache.CheckPermission(ModuleVoyages, ActionView, own) {
		t.Fatalf("custom role should view voyages on its vessel")
	}
	if cache.CheckPermission(ModuleVoyages, ActionView, other) {
		t.Fatalf("vessel-scoped custom role must not reach other vessels")
	}
}

func TestCacheRejectsCollidingCustomRole(t *testing.T) {
	loader := &stubLoader{
		custom: []Role{{Code: RoleCaptain, DisplayName: "Shadow Captain", CompanyID: 7}},
	}
	cache := newTestCache(loader)
	err := cache.Load(context.Background(), "u1", 7)
	if !errors.Is(err, ErrDuplicateRoleCode) {
		t.Fatalf("expected ErrDuplicateRoleCode, got %v", err)
	}
	if cache.State() != StateFailed {
		t.Fatalf("collision must fail the load")
	}
}
