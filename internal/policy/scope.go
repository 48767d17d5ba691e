package policy

// ScopeDomain is a dimension over which a role's reach is limited.
type ScopeDomain string

const (
	DomainFleet      ScopeDomain = "fleet"
	DomainVessel     ScopeDomain = "vessel"
	DomainDepartment ScopeDomain = "department"
)

// Capability is a role's reach within a scope domain.
type Capability int

const (
	// CapabilityNone means the domain is not authoritative for the role.
	CapabilityNone Capability = iota
	// CapabilityOwn limits the role to its assigned instance.
	CapabilityOwn
	// CapabilityFull allows the role to act across the whole domain.
	CapabilityFull
)

func (c Capability) String() string {
	switch c {
	case CapabilityFull:
		return "full"
	case CapabilityOwn:
		return "own"
	default:
		return "none"
	}
}

// ScopeMatrix maps role and domain to a capability. Missing entries are
// CapabilityNone, never full by omission.
type ScopeMatrix struct {
	entries map[RoleCode]map[ScopeDomain]Capability
}

var defaultScopes = map[RoleCode]map[ScopeDomain]Capability{
	RoleAdmin:             {DomainFleet: CapabilityFull, DomainVessel: CapabilityFull, DomainDepartment: CapabilityFull},
	RoleDPA:               {DomainFleet: CapabilityFull, DomainVessel: CapabilityFull, DomainDepartment: CapabilityFull},
	RoleFleetManager:      {DomainFleet: CapabilityFull, DomainVessel: CapabilityFull, DomainDepartment: CapabilityFull},
	RoleTechnicalSuperint: {DomainFleet: CapabilityFull, DomainVessel: CapabilityFull, DomainDepartment: CapabilityFull},
	RoleCaptain:           {DomainVessel: CapabilityOwn},
	RoleChiefOfficer:      {DomainVessel: CapabilityOwn, DomainDepartment: CapabilityFull},
	RoleChiefEngineer:     {DomainVessel: CapabilityOwn, DomainDepartment: CapabilityFull},
	RoleHOD:               {DomainVessel: CapabilityOwn, DomainDepartment: CapabilityFull},
	RoleAuditorFlag:       {DomainFleet: CapabilityFull, DomainVessel: CapabilityFull, DomainDepartment: CapabilityFull},
	RoleAPIClient:         {DomainFleet: CapabilityFull, DomainVessel: CapabilityFull, DomainDepartment: CapabilityFull},
	RoleCrew:              {DomainVessel: CapabilityOwn},
}

// DefaultScopeMatrix returns the versioned scope table for system roles.
func DefaultScopeMatrix() *ScopeMatrix {
	return NewScopeMatrix(defaultScopes)
}

// NewScopeMatrix builds a matrix from explicit entries.
func NewScopeMatrix(entries map[RoleCode]map[ScopeDomain]Capability) *ScopeMatrix {
	copied := make(map[RoleCode]map[ScopeDomain]Capability, len(entries))
	for role, domains := range entries {
		inner := make(map[ScopeDomain]Capability, len(domains))
		for domain, capability := range domains {
			inner[domain] = capability
		}
		copied[role] = inner
	}
	return &ScopeMatrix{entries: copied}
}

// Capability returns the role's capability for a domain, CapabilityNone
// when unspecified.
func (m *ScopeMatrix) Capability(role RoleCode, domain ScopeDomain) Capability {
	if m == nil {
		return CapabilityNone
	}
	return m.entries[role][domain]
}

// WithRole returns a copy of the matrix extended with entries for an
// additional role, derived from its declared scope type. Used when custom
// roles are merged at cache-load time.
func (m *ScopeMatrix) WithRole(role Role) *ScopeMatrix {
	out := NewScopeMatrix(m.entries)
	if _, exists := out.entries[role.Code]; exists {
		return out
	}
	switch role.DefaultScope {
	case ScopeTypeFleet:
		out.entries[role.Code] = map[ScopeDomain]Capability{
			DomainFleet:      CapabilityFull,
			DomainVessel:     CapabilityFull,
			DomainDepartment: CapabilityFull,
		}
	case ScopeTypeVessel:
		out.entries[role.Code] = map[ScopeDomain]Capability{DomainVessel: CapabilityOwn}
	case ScopeTypeDepartment:
		out.entries[role.Code] = map[ScopeDomain]Capability{
			DomainVessel:     CapabilityOwn,
			DomainDepartment: CapabilityFull,
		}
	default:
		// Self-scoped roles get no domain capability; self-only actions
		// are evaluated on identity equality instead.
		out.entries[role.Code] = map[ScopeDomain]Capability{}
	}
	return out
}
