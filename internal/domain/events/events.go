// Package events names the messages exchanged over the observer and client
// channels. Event payloads are plain maps assembled by the broadcaster; the
// constants here keep both sides of the wire in agreement.
package events

// Observer-bound events.
const (
	Init               = "init"
	SessionCreated     = "session_created"
	SessionUpdated     = "session_updated"
	SessionRemoved     = "session_removed"
	SessionsCleared    = "sessions_cleared"
	AssignmentsCleared = "assignments_cleared"
	AliasUpdated       = "alias_updated"
	BanAdded           = "ban_added"
	BanRemoved         = "ban_removed"
	SettingsUpdated    = "settings_updated"
	ForceLogout        = "force_logout"
	AssignmentError    = "assignment_error"
	RedirectError      = "redirect_error"
	OperatorAdded      = "operator_added"
	OperatorUpdated    = "operator_updated"
	OperatorDeleted    = "operator_deleted"
)

// Client-bound events.
const (
	Redirect = "redirect"
	Verified = "verified"
)

// Observer commands.
const (
	CmdRedirectSession  = "redirect_session"
	CmdRemoveSession    = "remove_session"
	CmdBanAddress       = "ban_address"
	CmdUnbanAddress     = "unban_address"
	CmdAssignSession    = "assign_session"
	CmdUnassignSession  = "unassign_session"
	CmdClearSessions    = "clear_sessions"
	CmdSetAlias         = "set_alias"
	CmdAddOperator      = "add_operator"
	CmdUpdateOperator   = "update_operator"
	CmdDeleteOperator   = "delete_operator"
	CmdUpdateSettings   = "update_settings"
	CmdClearAssignments = "clear_assignments"
)

// Client commands.
const (
	CmdHeartbeat   = "heartbeat"
	CmdNavigate    = "navigate"
	CmdPageLoading = "page_loading"
	CmdAction      = "action"
)
