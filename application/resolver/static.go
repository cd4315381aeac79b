package resolver

import (
	"context"
	"strings"

	"shop_replay/domain/entities"
	"shop_replay/domain/interfaces"
)

// imageScanLimit bounds the attribute scan over page images
const imageScanLimit = 30

// ProductImagePlaceholder stands in for an image reached without a stable selector
const ProductImagePlaceholder = "img (product image)"

// StaticStrategy probes the common selector patterns for an intent
type StaticStrategy struct {
	env *env
}

func (s *StaticStrategy) Name() string { return "static-patterns" }

func (s *StaticStrategy) Supports(intent entities.Intent) bool {
	switch intent.Kind {
	case entities.IntentButtonByText:
		return len(intent.Synonyms) > 0
	case entities.IntentProductImage, entities.IntentProductListing:
		return len(intent.Keywords) > 0
	}
	return intent.Kind == entities.IntentSearchInput
}

func (s *StaticStrategy) Try(ctx context.Context, intent entities.Intent, page interfaces.Page) Outcome {
	var t tally
	for _, c := range staticCandidates(intent) {
		if ctx.Err() != nil {
			break
		}
		r := probe(ctx, page, c.selector, s.env.probeTimeout)
		t.add(r)
		if r.status != probeMatched {
			continue
		}

		loc := entities.Locator{
			Selector:    c.selector,
			Method:      entities.MethodStatic,
			Strategy:    s.Name(),
			ElementType: c.elementType,
		}
		if intent.Kind == entities.IntentSearchInput {
			loc.SubmitSelector = findSubmit(ctx, page, s.env)
		}
		return matched(loc, r.element, t.probed)
	}

	if intent.Kind == entities.IntentProductImage && ctx.Err() == nil {
		if out, ok := s.scanImages(ctx, intent, page, &t); ok {
			return out
		}
	}
	return notFound(t.probed, "%s", t)
}

// scanImages matches the first images on the page by alt, title and src
func (s *StaticStrategy) scanImages(ctx context.Context, intent entities.Intent, page interfaces.Page, t *tally) (Outcome, bool) {
	images, err := page.QueryAll(ctx, "img")
	if err != nil {
		return Outcome{}, false
	}
	if len(images) > imageScanLimit {
		images = images[:imageScanLimit]
	}

	for _, img := range images {
		alt, _ := img.Attribute(ctx, "alt")
		title, _ := img.Attribute(ctx, "title")
		src, _ := img.Attribute(ctx, "src")
		if !intent.MatchesAll(alt + " " + title + " " + src) {
			continue
		}

		r := checkVisible(ctx, img)
		t.add(r)
		if r.status != probeMatched {
			continue
		}

		selector := ProductImagePlaceholder
		if alt != "" {
			selector = "img[alt=" + cssString(alt) + "]"
		}
		return matched(entities.Locator{
			Selector:    selector,
			Method:      entities.MethodStatic,
			Strategy:    s.Name(),
			ElementType: entities.ElementProductImage,
		}, img, t.probed), true
	}
	return Outcome{}, false
}

// findSubmit returns the first existing search submit selector, or ""
func findSubmit(ctx context.Context, page interfaces.Page, e *env) string {
	for _, sel := range searchSubmitSelectors {
		pctx, cancel := context.WithTimeout(ctx, e.probeTimeout)
		el, err := page.Query(pctx, sel)
		cancel()
		if err == nil && el != nil {
			return sel
		}
	}
	return ""
}

// firstMatchingText reports whether text contains any of the synonyms
func firstMatchingText(text string, synonyms []string) (string, bool) {
	lower := strings.ToLower(strings.TrimSpace(text))
	for _, syn := range synonyms {
		if syn != "" && strings.Contains(lower, strings.ToLower(syn)) {
			return syn, true
		}
	}
	return "", false
}
