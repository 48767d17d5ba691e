package policy

// PermissionMatrix is the static module/action/role grant table. Absence
// of an entry means denied; there is no runtime mutation path, permission
// editing rewrites the data this matrix is built from and re-enters
// through the same closed-world lookup.
type PermissionMatrix struct {
	grants map[Module]map[Action]map[RoleCode]struct{}
}

// defaultGrants is the authoritative grant table, versioned with the
// engine build.
var defaultGrants = map[Module]map[Action][]RoleCode{
	ModuleCrew: {
		ActionView:           {RoleAdmin, RoleDPA, RoleFleetManager, RoleCaptain, RoleChiefOfficer, RoleChiefEngineer, RoleHOD, RoleCrew, RoleAPIClient},
		ActionCreate:         {RoleAdmin, RoleFleetManager},
		ActionEdit:           {RoleAdmin, RoleFleetManager, RoleCaptain, RoleChiefOfficer, RoleChiefEngineer, RoleHOD},
		ActionApprove:        {RoleAdmin, RoleFleetManager, RoleCaptain},
		ActionDelete:         {RoleAdmin},
		ActionExport:         {RoleAdmin, RoleFleetManager, RoleDPA, RoleAPIClient},
		ActionViewSalary:     {RoleAdmin, RoleFleetManager, RoleCrew},
		ActionViewMedical:    {RoleAdmin, RoleDPA, RoleCrew},
		ActionEditOwnLimited: {RoleCrew},
	},
	ModuleCertificates: {
		ActionView:    {RoleAdmin, RoleDPA, RoleFleetManager, RoleTechnicalSuperint, RoleCaptain, RoleChiefOfficer, RoleChiefEngineer, RoleAuditorFlag, RoleAPIClient},
		ActionCreate:  {RoleAdmin, RoleFleetManager, RoleTechnicalSuperint},
		ActionEdit:    {RoleAdmin, RoleFleetManager, RoleTechnicalSuperint, RoleAuditorFlag},
		ActionApprove: {RoleAdmin, RoleDPA},
		ActionSign:    {RoleAdmin, RoleDPA, RoleCaptain},
		ActionDelete:  {RoleAdmin},
		ActionExport:  {RoleAdmin, RoleDPA, RoleFleetManager, RoleAuditorFlag, RoleAPIClient},
	},
	ModuleMaintenance: {
		ActionView:    {RoleAdmin, RoleFleetManager, RoleTechnicalSuperint, RoleCaptain, RoleChiefOfficer, RoleChiefEngineer, RoleHOD},
		ActionCreate:  {RoleAdmin, RoleTechnicalSuperint, RoleChiefOfficer, RoleChiefEngineer, RoleHOD},
		ActionEdit:    {RoleAdmin, RoleTechnicalSuperint, RoleChiefOfficer, RoleChiefEngineer, RoleHOD},
		ActionApprove: {RoleAdmin, RoleTechnicalSuperint, RoleCaptain},
		ActionDelete:  {RoleAdmin, RoleTechnicalSuperint},
		ActionExport:  {RoleAdmin, RoleTechnicalSuperint, RoleAPIClient},
	},
	ModuleIncidents: {
		ActionView:    {RoleAdmin, RoleDPA, RoleFleetManager, RoleCaptain, RoleChiefOfficer, RoleChiefEngineer, RoleHOD, RoleCrew},
		ActionCreate:  {RoleAdmin, RoleDPA, RoleCaptain, RoleChiefOfficer, RoleChiefEngineer, RoleHOD, RoleCrew},
		ActionEdit:    {RoleAdmin, RoleDPA, RoleCaptain},
		ActionApprove: {RoleAdmin, RoleDPA},
		ActionSign:    {RoleAdmin, RoleDPA, RoleCaptain},
		ActionExport:  {RoleAdmin, RoleDPA, RoleAPIClient},
	},
	ModuleVoyages: {
		ActionView:    {RoleAdmin, RoleDPA, RoleFleetManager, RoleCaptain, RoleChiefOfficer, RoleChiefEngineer, RoleCrew},
		ActionCreate:  {RoleAdmin, RoleFleetManager, RoleCaptain},
		ActionEdit:    {RoleAdmin, RoleFleetManager, RoleCaptain},
		ActionApprove: {RoleAdmin, RoleFleetManager},
		ActionDelete:  {RoleAdmin},
		ActionExport:  {RoleAdmin, RoleFleetManager, RoleAPIClient},
	},
	ModuleDocuments: {
		ActionView:   {RoleAdmin, RoleDPA, RoleFleetManager, RoleTechnicalSuperint, RoleCaptain, RoleChiefOfficer, RoleChiefEngineer, RoleHOD, RoleCrew, RoleAuditorFlag},
		ActionCreate: {RoleAdmin, RoleDPA, RoleFleetManager, RoleCaptain},
		ActionEdit:   {RoleAdmin, RoleDPA, RoleFleetManager},
		ActionSign:   {RoleAdmin, RoleDPA, RoleCaptain},
		ActionDelete: {RoleAdmin},
		ActionExport: {RoleAdmin, RoleDPA, RoleAuditorFlag, RoleAPIClient},
	},
	ModuleSafety: {
		ActionView:    {RoleAdmin, RoleDPA, RoleFleetManager, RoleCaptain, RoleChiefOfficer, RoleChiefEngineer, RoleHOD, RoleCrew, RoleAuditorFlag},
		ActionCreate:  {RoleAdmin, RoleDPA, RoleCaptain, RoleChiefOfficer, RoleChiefEngineer},
		ActionEdit:    {RoleAdmin, RoleDPA, RoleCaptain},
		ActionApprove: {RoleAdmin, RoleDPA},
		ActionSign:    {RoleAdmin, RoleDPA, RoleCaptain},
		ActionExport:  {RoleAdmin, RoleDPA, RoleAuditorFlag},
	},
	ModuleAdmin: {
		ActionView:      {RoleAdmin, RoleDPA},
		ActionConfigure: {RoleAdmin},
	},
}

// DefaultPermissionMatrix builds the matrix from the versioned grant
// table.
func DefaultPermissionMatrix() *PermissionMatrix {
	return NewPermissionMatrix(defaultGrants)
}

// NewPermissionMatrix builds a matrix from explicit grant data. Tests and
// company-specific deployments supply their own tables.
func NewPermissionMatrix(data map[Module]map[Action][]RoleCode) *PermissionMatrix {
	grants := make(map[Module]map[Action]map[RoleCode]struct{}, len(data))
	for module, actions := range data {
		grants[module] = make(map[Action]map[RoleCode]struct{}, len(actions))
		for action, roles := range actions {
			set := make(map[RoleCode]struct{}, len(roles))
			for _, role := range roles {
				set[role] = struct{}{}
			}
			grants[module][action] = set
		}
	}
	return &PermissionMatrix{grants: grants}
}

// IsGranted reports whether the matrix grants (module, action) to role.
// Total over all inputs: unknown module, action, or role is false.
func (m *PermissionMatrix) IsGranted(module Module, action Action, role RoleCode) bool {
	if m == nil {
		return false
	}
	actions, ok := m.grants[module]
	if !ok {
		return false
	}
	roles, ok := actions[action]
	if !ok {
		return false
	}
	_, ok = roles[role]
	return ok
}

// SupportsAction reports whether the module declares the action at all.
func (m *PermissionMatrix) SupportsAction(module Module, action Action) bool {
	if m == nil {
		return false
	}
	actions, ok := m.grants[module]
	if !ok {
		return false
	}
	_, ok = actions[action]
	return ok
}

// ModuleActions returns the declared action set for a module.
func (m *PermissionMatrix) ModuleActions(module Module) []Action {
	if m == nil {
		return nil
	}
	actions := make([]Action, 0, len(m.grants[module]))
	for action := range m.grants[module] {
		actions = append(actions, action)
	}
	return actions
}
