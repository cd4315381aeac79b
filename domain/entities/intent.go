package entities

import (
	"strings"
)

// IntentKind names the semantic goal of a resolution call
type IntentKind string

const (
	IntentSearchInput    IntentKind = "search_input"
	IntentProductListing IntentKind = "product_listing"
	IntentProductImage   IntentKind = "product_image"
	IntentButtonByText   IntentKind = "button_by_text"
)

// Intent is a semantic goal parameterized by keyword and synonym sets.
// Keywords are matched lexically against markup, Synonyms against visible
// button/link text.
type Intent struct {
	Kind     IntentKind `json:"kind"`
	Label    string     `json:"label,omitempty"`
	Keywords []string   `json:"keywords,omitempty"`
	Synonyms []string   `json:"synonyms,omitempty"`
}

// Button presets for GenericButtonByText
var (
	AddToCartSynonyms  = []string{"Add to Cart", "Add to Bag", "Add to Basket"}
	CartSynonyms       = []string{"Cart", "Bag", "Basket"}
	CheckoutSynonyms   = []string{"Checkout", "Proceed to Checkout", "Check Out"}
	PlaceOrderSynonyms = []string{"Place Order", "Complete Order", "Buy Now"}
)

var searchKeywords = []string{"search", "q", "query"}

// SearchInput - intent for the site search input
func SearchInput() Intent {
	return Intent{
		Kind:     IntentSearchInput,
		Label:    "search input",
		Keywords: append([]string(nil), searchKeywords...),
	}
}

// ProductImage - intent for the image next to a product name
func ProductImage(productName string) Intent {
	return Intent{
		Kind:     IntentProductImage,
		Label:    "product image for " + strings.TrimSpace(productName),
		Keywords: SplitKeywords(productName),
	}
}

// ProductListing - intent for a product card or product link
func ProductListing(productName string) Intent {
	return Intent{
		Kind:     IntentProductListing,
		Label:    "product listing for " + strings.TrimSpace(productName),
		Keywords: SplitKeywords(productName),
	}
}

// ButtonByText - intent for a button or link whose text matches one of the synonyms
func ButtonByText(label string, synonyms ...string) Intent {
	keywords := make([]string, 0, len(synonyms))
	for _, s := range synonyms {
		keywords = append(keywords, strings.ToLower(strings.TrimSpace(s)))
	}
	return Intent{
		Kind:     IntentButtonByText,
		Label:    label,
		Keywords: keywords,
		Synonyms: synonyms,
	}
}

// Phrase returns the keywords joined back into a single lower-case phrase
func (i Intent) Phrase() string {
	return strings.Join(i.Keywords, " ")
}

// Describe returns a human readable description used in logs and script annotations
func (i Intent) Describe() string {
	if i.Label != "" {
		return i.Label
	}
	return strings.ReplaceAll(string(i.Kind), "_", " ")
}

// MatchesAll reports whether text contains every keyword (case-insensitive)
func (i Intent) MatchesAll(text string) bool {
	if len(i.Keywords) == 0 {
		return false
	}
	lower := strings.ToLower(text)
	for _, kw := range i.Keywords {
		if !strings.Contains(lower, kw) {
			return false
		}
	}
	return true
}

// SplitKeywords lower-cases a phrase and splits it on whitespace
func SplitKeywords(phrase string) []string {
	return strings.Fields(strings.ToLower(phrase))
}
