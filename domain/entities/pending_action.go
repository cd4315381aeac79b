package entities

// PendingAction is a click that was held back until the user approves it
type PendingAction struct {
	Selector string `json:"selector"`
	Intent   string `json:"intent,omitempty"`
	Risk     string `json:"risk"`
	Reason   string `json:"reason"`
}
