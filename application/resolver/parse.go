package resolver

import (
	"context"
	"regexp"
	"strings"

	"shop_replay/domain/entities"
	"shop_replay/domain/interfaces"
)

// keywordAttrs are the attributes checked for intent keywords
var keywordAttrs = []string{"id", "name", "placeholder", "aria-label", "alt", "src", "title"}

// parseTargets are the offline selectors scanned per intent
var parseTargets = map[entities.IntentKind]string{
	entities.IntentSearchInput:    "input",
	entities.IntentProductImage:   "img",
	entities.IntentProductListing: "a[href]",
	entities.IntentButtonByText:   "button, a, input[type='submit'], input[type='button']",
}

// liveAttrs are read back from a probed element to confirm it
var liveAttrs = append([]string{"type", "value", "href"}, keywordAttrs...)

var cssIdent = regexp.MustCompile(`^-?[A-Za-z_][A-Za-z0-9_-]*$`)

// ParseStrategy queries the captured markup offline and synthesizes a
// selector for the first element whose attributes name the intent
type ParseStrategy struct {
	env    *env
	parser interfaces.MarkupParser
}

func (s *ParseStrategy) Name() string { return "structural-parse" }

func (s *ParseStrategy) Supports(intent entities.Intent) bool {
	_, ok := parseTargets[intent.Kind]
	return ok
}

func (s *ParseStrategy) Try(ctx context.Context, intent entities.Intent, page interfaces.Page) Outcome {
	markup, err := page.Content(ctx)
	if err != nil {
		return notFound(0, "page content unavailable: %v", err)
	}
	doc, err := s.parser.Parse(markup)
	if err != nil {
		return notFound(0, "markup parse failed: %v", err)
	}

	var t tally
	seen := make(map[string]bool)
	for _, el := range doc.FindAll(parseTargets[intent.Kind]) {
		if !parsedMatches(intent, el) {
			continue
		}
		for _, sel := range synthesizeSelectors(el) {
			if seen[sel] || ctx.Err() != nil {
				continue
			}
			seen[sel] = true

			r := probeWhere(ctx, page, sel, s.env.probeTimeout, describes(intent, el))
			t.add(r)
			if r.status == probeMatched {
				return matched(entities.Locator{
					Selector:    sel,
					Method:      entities.MethodParsed,
					Strategy:    s.Name(),
					ElementType: elementTypeFor(intent.Kind),
				}, r.element, t.probed)
			}
		}
	}
	return notFound(t.probed, "%s", t)
}

// parsedMatches applies the lexical keyword test for one parsed element
func parsedMatches(intent entities.Intent, el entities.PageElement) bool {
	switch intent.Kind {
	case entities.IntentSearchInput:
		typ := strings.ToLower(el.Attr("type"))
		if typ != "" && typ != "text" && typ != "search" {
			return false
		}
		for _, attr := range keywordAttrs {
			v := strings.ToLower(el.Attr(attr))
			if v == "" {
				continue
			}
			for _, kw := range intent.Keywords {
				// Short keywords such as "q" only count as the whole value.
				if (len(kw) <= 2 && v == kw) || (len(kw) > 2 && strings.Contains(v, kw)) {
					return true
				}
			}
		}
		return false

	case entities.IntentButtonByText:
		text := el.Text + " " + el.Attr("value") + " " + el.Attr("aria-label")
		_, ok := firstMatchingText(text, intent.Synonyms)
		return ok

	case entities.IntentProductListing:
		return intent.MatchesAll(el.Text + " " + el.Attr("title") + " " + el.Attr("aria-label") + " " + el.Attr("href"))
	}

	var values []string
	for _, attr := range keywordAttrs {
		values = append(values, el.Attr(attr))
	}
	return intent.MatchesAll(strings.Join(values, " "))
}

// describes accepts only live elements that still look like the parsed one:
// same tag, same id and name, and the intent keywords on the live attributes
func describes(intent entities.Intent, parsed entities.PageElement) acceptFunc {
	return func(ctx context.Context, el interfaces.Element) bool {
		live := entities.PageElement{Attributes: map[string]string{}}
		live.Tag, _ = el.TagName(ctx)
		if parsed.Tag != "" && !strings.EqualFold(live.Tag, parsed.Tag) {
			return false
		}
		for _, attr := range liveAttrs {
			if v, err := el.Attribute(ctx, attr); err == nil && v != "" {
				live.Attributes[attr] = v
			}
		}
		if live.Attr("id") != parsed.Attr("id") || live.Attr("name") != parsed.Attr("name") {
			return false
		}
		if intent.Kind == entities.IntentButtonByText || intent.Kind == entities.IntentProductListing {
			live.Text, _ = el.Text(ctx)
		}
		return parsedMatches(intent, live)
	}
}

// synthesizeSelectors returns candidate selectors for a parsed element:
// id first, then name, then the tag with a distinguishing attribute. The
// bare tag is only a candidate for elements with neither id nor name.
func synthesizeSelectors(el entities.PageElement) []string {
	tag := strings.ToLower(el.Tag)
	if tag == "" {
		tag = "*"
	}

	var out []string
	if id := el.Attr("id"); id != "" {
		if cssIdent.MatchString(id) {
			out = append(out, "#"+id)
		} else {
			out = append(out, tag+"[id="+cssString(id)+"]")
		}
	}
	if name := el.Attr("name"); name != "" {
		out = append(out, tag+"[name="+cssString(name)+"]")
	}
	for _, attr := range []string{"aria-label", "placeholder", "alt", "title", "href", "src"} {
		if v := el.Attr(attr); v != "" {
			out = append(out, tag+"["+attr+"="+cssString(v)+"]")
			break
		}
	}
	if tag == "button" || tag == "a" {
		if text := strings.TrimSpace(el.Text); text != "" && len(text) <= 60 {
			out = append(out, tag+":has-text("+cssString(text)+")")
		}
	}
	if el.Selector != "" {
		out = append(out, el.Selector)
	}
	if el.Attr("id") == "" && el.Attr("name") == "" {
		out = append(out, tag)
	}
	return out
}
