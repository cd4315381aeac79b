package entities

// VendorRecipe is a fixed multi-step resolution recipe for one site.
// Every step but the last is a reveal step that is clicked; the last
// step yields the locator.
type VendorRecipe struct {
	Name   string       `yaml:"name" json:"name"`
	Hosts  []string     `yaml:"hosts" json:"hosts"`
	Intent IntentKind   `yaml:"intent" json:"intent"`
	Steps  []RecipeStep `yaml:"steps" json:"steps"`
	Submit string       `yaml:"submit,omitempty" json:"submit,omitempty"`
}

// RecipeStep lists candidate selectors in priority order
type RecipeStep struct {
	Description string   `yaml:"description" json:"description"`
	Candidates  []string `yaml:"candidates" json:"candidates"`
	ElementType string   `yaml:"element_type,omitempty" json:"element_type,omitempty"`
	// SettleMS is the delay after a reveal click
	SettleMS int `yaml:"settle_ms,omitempty" json:"settle_ms,omitempty"`
}

// InferenceRequest is the structured request sent to the language inference service
type InferenceRequest struct {
	Role   string `json:"role"`
	Task   string `json:"task"`
	Schema string `json:"schema"`
	Markup string `json:"markup"`
	URL    string `json:"url,omitempty"`
}
