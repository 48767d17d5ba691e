package policy

// Module is a capability domain grouping related actions.
type Module string

const (
	ModuleCrew         Module = "crew"
	ModuleCertificates Module = "certificates"
	ModuleMaintenance  Module = "maintenance"
	ModuleIncidents    Module = "incidents"
	ModuleVoyages      Module = "voyages"
	ModuleDocuments    Module = "documents"
	ModuleSafety       Module = "safety"
	ModuleAdmin        Module = "admin"
)

// Action is an entry in the global action vocabulary. Not every action
// applies to every module; the permission matrix declares per-module
// action sets.
type Action string

const (
	ActionView      Action = "view"
	ActionCreate    Action = "create"
	ActionEdit      Action = "edit"
	ActionApprove   Action = "approve"
	ActionSign      Action = "sign"
	ActionDelete    Action = "delete"
	ActionExport    Action = "export"
	ActionConfigure Action = "configure"

	// Self-scoped crew-module reads and edits. Granted only through the
	// crew role and satisfied only when the request targets the acting
	// user's own record.
	ActionViewSalary     Action = "view_salary"
	ActionViewMedical    Action = "view_medical"
	ActionEditOwnLimited Action = "edit_own_limited"
)

// selfOnlyActions are actions that are meaningless without an identity
// match between the acting and target user.
var selfOnlyActions = map[Action]struct{}{
	ActionViewSalary:     {},
	ActionViewMedical:    {},
	ActionEditOwnLimited: {},
}

// IsSelfOnlyAction reports whether the action requires a self target.
func IsSelfOnlyAction(action Action) bool {
	_, ok := selfOnlyActions[action]
	return ok
}
