package resolver

import (
	"fmt"
	"strings"

	"shop_replay/domain/entities"
)

// searchInputSelectors are tried in order for SearchInput
var searchInputSelectors = []string{
	"input[type='search']",
	"input[type='text'][name*='search' i]",
	"input[type='text'][id*='search' i]",
	"input[type='text'][placeholder*='Search' i]",
	"input[type='text'][placeholder*='search' i]",
	"input[name='q']",
	"input[name='search']",
	"input[id='search']",
	"input[id='searchbox']",
	"#search",
	"#searchbox",
	".search input",
	".searchbox input",
	"input[aria-label*='Search' i]",
	"input[aria-label*='search' i]",
	"form[action*='search' i] input",
	"form[method='get'] input[type='text']",
}

// searchSubmitSelectors locate the button that submits a search form
var searchSubmitSelectors = []string{
	"button[type='submit']",
	"input[type='submit']",
	"button.search",
	"button[aria-label*='Search' i]",
	"form button",
}

// cssString quotes s for use inside a single-quoted CSS attribute value
func cssString(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return "'" + strings.ReplaceAll(s, "'", `\'`) + "'"
}

func slug(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), "-")
}

// buttonSelectors builds the static candidates for one button synonym
func buttonSelectors(synonym string) []string {
	q := cssString(synonym)
	return []string{
		fmt.Sprintf("button:has-text(%s)", q),
		fmt.Sprintf("a:has-text(%s)", q),
		fmt.Sprintf("button[aria-label*=%s i]", q),
		fmt.Sprintf("a[aria-label*=%s i]", q),
		fmt.Sprintf("[data-testid*=%s]", cssString(slug(synonym))),
		fmt.Sprintf("input[type='submit'][value*=%s i]", q),
	}
}

// imageSelectors match product images by alt or title
func imageSelectors(phrase string) []string {
	q := cssString(phrase)
	return []string{
		fmt.Sprintf("img[alt*=%s i]", q),
		fmt.Sprintf("img[title*=%s i]", q),
	}
}

// listingSelectors match product links by accessible name or text
func listingSelectors(phrase string) []string {
	q := cssString(phrase)
	return []string{
		fmt.Sprintf("a[title*=%s i]", q),
		fmt.Sprintf("a[aria-label*=%s i]", q),
		fmt.Sprintf("a:has-text(%s)", q),
		fmt.Sprintf("[data-testid*='product'] a:has-text(%s)", q),
	}
}

// candidate is one static selector and the element type it yields
type candidate struct {
	selector    string
	elementType string
}

// staticCandidates returns the prioritized selector patterns for an intent
func staticCandidates(intent entities.Intent) []candidate {
	var out []candidate
	add := func(elementType string, selectors ...string) {
		for _, s := range selectors {
			out = append(out, candidate{selector: s, elementType: elementType})
		}
	}

	switch intent.Kind {
	case entities.IntentSearchInput:
		add(entities.ElementSearchInput, searchInputSelectors...)
	case entities.IntentButtonByText:
		for _, syn := range intent.Synonyms {
			add(entities.ElementGeneric, buttonSelectors(syn)...)
		}
	case entities.IntentProductImage:
		if phrase := intent.Phrase(); phrase != "" {
			add(entities.ElementProductImage, imageSelectors(phrase)...)
		}
	case entities.IntentProductListing:
		if phrase := intent.Phrase(); phrase != "" {
			add(entities.ElementProductLink, listingSelectors(phrase)...)
		}
	}
	return out
}
