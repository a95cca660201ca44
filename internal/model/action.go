package model

// ActionKind names what the bot is about to tell the user.
type ActionKind string

// Action kinds emitted by the router and the periodic jobs.
const (
	ActionAutoClassified          ActionKind = "auto_classified"
	ActionAskCategoryConfirmation ActionKind = "ask_category_confirmation"
	ActionAskCategory             ActionKind = "ask_category"
	ActionCategoryConfirmed       ActionKind = "category_confirmed"
	ActionCorrectionConfirmed     ActionKind = "correction_confirmed"
	ActionRuleDeleted             ActionKind = "rule_deleted"
	ActionRuleNotFound            ActionKind = "rule_not_found"
	ActionRulesList               ActionKind = "rules_list"
	ActionHelp                    ActionKind = "help"
	ActionClarify                 ActionKind = "clarify"
	ActionPhasePrompt             ActionKind = "phase_prompt"
	ActionPhaseAdvanced           ActionKind = "phase_advanced"
	ActionDataRecorded            ActionKind = "data_recorded"
	ActionBehaviorSummary         ActionKind = "behavior_summary"
	ActionFreeForm                ActionKind = "free_form"
	ActionPendingCancelled        ActionKind = "pending_cancelled"
	ActionUnknownCategory         ActionKind = "unknown_category"
	ActionAlert                   ActionKind = "alert"
	ActionMilestone               ActionKind = "milestone"
)

// Action is the descriptor the composer renders. It carries every fact the
// outgoing message states; the composer may rephrase but never change them.
type Action struct {
	Kind              ActionKind
	Vendor            string
	Category          string
	SuggestedCategory string
	PreviousCategory  string
	Phase             Phase
	Text              string    // user text passed through, e.g. for free_form
	Options           []string  // numbered choices, rendered as "1. ..."
	Rules             []VendorPattern
	Lines             []string  // pre-computed facts, e.g. insight descriptions
	Amount            float64
	Confidence        int
	Count             int
}

// PendingKind names the reply a pending action is waiting for.
type PendingKind string

// Pending action kinds.
const (
	PendingCategoryConfirmation PendingKind = "category_confirmation"
	PendingCategoryChoice       PendingKind = "category_choice"
)

// PendingAction is a question the router asked and is waiting to be answered.
type PendingAction struct {
	Kind              PendingKind `json:"kind"`
	Vendor            string      `json:"vendor"`
	SuggestedCategory string      `json:"suggested_category,omitempty"`
	TransactionIDs    []string    `json:"transaction_ids,omitempty"`
	Options           []string    `json:"options,omitempty"`
}

// ConversationState is the stored per-user router state besides the phase.
type ConversationState struct {
	UserID  string
	Pending *PendingAction
	Retries int
}
