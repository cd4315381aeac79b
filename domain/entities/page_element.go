package entities

// PageElement is an element found in captured markup (offline parse)
type PageElement struct {
	Tag        string            `json:"tag"`
	Selector   string            `json:"selector"`
	Text       string            `json:"text"`
	Attributes map[string]string `json:"attributes"`
}

// Attr returns an attribute value or an empty string
func (e PageElement) Attr(name string) string {
	if e.Attributes == nil {
		return ""
	}
	return e.Attributes[name]
}
