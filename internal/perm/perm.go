// Package perm holds the static role/action grant table. The table is
// compiled in, loaded once and immutable at runtime; there is no way
// to grant or revoke an action while the process is running.
package perm

// Role names the three account classes of the system.
type Role string

const (
	RoleAdmin     Role = "admin"
	RoleReception Role = "reception"
	RoleTech      Role = "tech"
)

// Action enumerates everything a role can be granted.
type Action string

const (
	ActionCreateOS     Action = "CREATE_OS"
	ActionEditOS       Action = "EDIT_OS"
	ActionDeleteOS     Action = "DELETE_OS"
	ActionViewOS       Action = "VIEW_OS"
	ActionCompleteOS   Action = "COMPLETE_OS"
	ActionReopenOS     Action = "REOPEN_OS"
	ActionManageUsers  Action = "MANAGE_USERS"
	ActionViewAudit    Action = "VIEW_AUDIT"
	ActionManageConfig Action = "MANAGE_CONFIG"
	ActionAddComment   Action = "ADD_COMMENT"
	ActionAssignTechs  Action = "ASSIGN_TECHS"
)

// grants lists only the allowed pairs. Anything absent is denied,
// which makes an unknown role or a typo'd action fail closed.
var grants = map[Role]map[Action]bool{
	RoleAdmin: {
		ActionCreateOS:     true,
		ActionEditOS:       true,
		ActionDeleteOS:     true,
		ActionViewOS:       true,
		ActionCompleteOS:   true,
		ActionReopenOS:     true,
		ActionManageUsers:  true,
		ActionViewAudit:    true,
		ActionManageConfig: true,
		ActionAddComment:   true,
		ActionAssignTechs:  true,
	},
	RoleReception: {
		ActionCreateOS:    true,
		ActionEditOS:      true,
		ActionViewOS:      true,
		ActionAddComment:  true,
		ActionAssignTechs: true,
	},
	RoleTech: {
		ActionEditOS:     true,
		ActionViewOS:     true,
		ActionCompleteOS: true,
		ActionAddComment: true,
	},
}

// Allowed reports whether the role is granted the action. It never
// errors: an undefined pair is simply denied.
func Allowed(role Role, action Action) bool {
	return grants[role][action]
}
