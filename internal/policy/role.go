package policy

import "time"

// RoleCode identifies a role in the catalog. System role codes are the
// constants below; custom roles carry company-assigned codes that must not
// collide with them.
type RoleCode string

// System role codes. This set is closed and versioned with the engine.
const (
	RoleAdmin             RoleCode = "admin"
	RoleDPA               RoleCode = "dpa"
	RoleFleetManager      RoleCode = "fleet_manager"
	RoleTechnicalSuperint RoleCode = "technical_superintendent"
	RoleCaptain           RoleCode = "captain"
	RoleChiefOfficer      RoleCode = "chief_officer"
	RoleChiefEngineer     RoleCode = "chief_engineer"
	RoleHOD               RoleCode = "hod"
	RoleAuditorFlag       RoleCode = "auditor_flag"
	RoleAPIClient         RoleCode = "api_client"
	RoleCrew              RoleCode = "crew"
)

// ScopeType is the scope a role is declared with at creation time.
type ScopeType string

const (
	ScopeTypeFleet      ScopeType = "fleet"
	ScopeTypeVessel     ScopeType = "vessel"
	ScopeTypeDepartment ScopeType = "department"
	ScopeTypeSelf       ScopeType = "self"
)

// Role is a catalog entry, system or company custom.
type Role struct {
	Code          RoleCode
	DisplayName   string
	IsSystem      bool
	CompanyID     int64
	DefaultScope  ScopeType
	IsAPIOnly     bool
	MaxSessionAge time.Duration
}

// systemRoles is the baked-in catalog, most privileged first. The slice
// order doubles as the display precedence used by HighestRole.
var systemRoles = []Role{
	{Code: RoleAdmin, DisplayName: "Administrator", IsSystem: true, DefaultScope: ScopeTypeFleet},
	{Code: RoleDPA, DisplayName: "Designated Person Ashore", IsSystem: true, DefaultScope: ScopeTypeFleet},
	{Code: RoleFleetManager, DisplayName: "Fleet Manager", IsSystem: true, DefaultScope: ScopeTypeFleet},
	{Code: RoleTechnicalSuperint, DisplayName: "Technical Superintendent", IsSystem: true, DefaultScope: ScopeTypeFleet},
	{Code: RoleCaptain, DisplayName: "Captain", IsSystem: true, DefaultScope: ScopeTypeVessel},
	{Code: RoleChiefOfficer, DisplayName: "Chief Officer", IsSystem: true, DefaultScope: ScopeTypeDepartment},
	{Code: RoleChiefEngineer, DisplayName: "Chief Engineer", IsSystem: true, DefaultScope: ScopeTypeDepartment},
	{Code: RoleHOD, DisplayName: "Head of Department", IsSystem: true, DefaultScope: ScopeTypeDepartment},
	{Code: RoleAuditorFlag, DisplayName: "Flag State Auditor", IsSystem: true, DefaultScope: ScopeTypeFleet},
	{Code: RoleAPIClient, DisplayName: "API Client", IsSystem: true, DefaultScope: ScopeTypeFleet, IsAPIOnly: true, MaxSessionAge: time.Hour},
	{Code: RoleCrew, DisplayName: "Crew Member", IsSystem: true, DefaultScope: ScopeTypeSelf},
}

// SystemRoles returns a copy of the baked-in role set.
func SystemRoles() []Role {
	out := make([]Role, len(systemRoles))
	copy(out, systemRoles)
	return out
}

// IsSystemRoleCode reports whether code is reserved by the engine.
func IsSystemRoleCode(code RoleCode) bool {
	for _, r := range systemRoles {
		if r.Code == code {
			return true
		}
	}
	return false
}

// rolePrecedence maps system codes to their rank in systemRoles. Custom
// roles rank below every system role. Display ordering only; never a
// security decision.
var rolePrecedence = func() map[RoleCode]int {
	m := make(map[RoleCode]int, len(systemRoles))
	for i, r := range systemRoles {
		m[r.Code] = i
	}
	return m
}()

func precedence(code RoleCode) int {
	if rank, ok := rolePrecedence[code]; ok {
		return rank
	}
	return len(systemRoles)
}
