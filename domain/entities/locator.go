package entities

// ResolutionMethod tags how a locator was obtained
type ResolutionMethod string

const (
	MethodStatic         ResolutionMethod = "static"
	MethodVendorSpecific ResolutionMethod = "vendor-specific"
	MethodInferred       ResolutionMethod = "inferred"
	MethodParsed         ResolutionMethod = "parsed"
	MethodPositional     ResolutionMethod = "positional"
)

// Locator is a resolved reference to a page element.
// Selector may be a descriptive placeholder when the element was reached
// positionally and has no stable selector (see ElementType).
type Locator struct {
	Selector    string           `json:"selector"`
	Method      ResolutionMethod `json:"method"`
	Strategy    string           `json:"strategy"`
	ElementType string           `json:"element_type,omitempty"`
	// SubmitSelector is the companion submit button for search inputs, if known
	SubmitSelector string `json:"submit_selector,omitempty"`
}
