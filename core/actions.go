package core

// Reserved action names understood by the dialogue loop.
const (
	ActionListen          = "action_listen"
	ActionSessionStart    = "action_session_start"
	ActionDefaultFallback = "action_default_fallback"
	ActionHandoff         = "action_handoff"
	ActionDeactivateForm  = "action_deactivate_form"
	ActionCancelled       = "action_cancelled"
	ActionRestart         = "action_restart"
	ActionResetSlots      = "action_reset_slots"
)

// UtterPrefix marks actions that render a domain response.
const UtterPrefix = "utter_"
