package resolver

import (
	"context"
	"strings"

	"shop_replay/domain/entities"
	"shop_replay/domain/interfaces"
)

const (
	// textMatchLimit bounds how many text matches are walked
	textMatchLimit = 20
	// ancestorLevels is how far the walk climbs looking for a container image
	ancestorLevels = 5
)

// AdjacencyStrategy finds the text naming a product and walks the nearby
// tree for the image that belongs to it
type AdjacencyStrategy struct {
	env *env
}

func (s *AdjacencyStrategy) Name() string { return "image-adjacency" }

func (s *AdjacencyStrategy) Supports(intent entities.Intent) bool {
	return intent.Kind == entities.IntentProductImage && len(intent.Keywords) > 0
}

func (s *AdjacencyStrategy) Try(ctx context.Context, intent entities.Intent, page interfaces.Page) Outcome {
	texts, err := s.textMatches(ctx, intent, page)
	if err != nil {
		return notFound(0, "text search failed: %v", err)
	}
	if len(texts) == 0 {
		return notFound(0, "no text contains %q", intent.Phrase())
	}

	var t tally
	var link interfaces.Element
	for _, el := range texts {
		if ctx.Err() != nil {
			break
		}
		if img := s.walk(ctx, el, &t); img != nil {
			return matched(entities.Locator{
				Selector:    ProductImagePlaceholder,
				Method:      entities.MethodPositional,
				Strategy:    s.Name(),
				ElementType: entities.ElementProductImage,
			}, img, t.probed)
		}
		if link == nil && isVisibleLink(ctx, el) {
			link = el
		}
	}

	if link != nil {
		href, _ := link.Attribute(ctx, "href")
		selector := "a (product link)"
		if href != "" {
			selector = "a[href=" + cssString(href) + "]"
		}
		return matched(entities.Locator{
			Selector:    selector,
			Method:      entities.MethodPositional,
			Strategy:    s.Name(),
			ElementType: entities.ElementProductLink,
		}, link, t.probed)
	}
	return notFound(t.probed, "%d text matches, no visible image nearby", len(texts))
}

// textMatches returns the elements whose text contains every keyword
func (s *AdjacencyStrategy) textMatches(ctx context.Context, intent entities.Intent, page interfaces.Page) ([]interfaces.Element, error) {
	found, err := page.FindByText(ctx, intent.Phrase())
	if err != nil {
		return nil, err
	}
	if len(found) == 0 && len(intent.Keywords) > 1 {
		// The name may be split across inline elements.
		if found, err = page.FindByText(ctx, intent.Keywords[0]); err != nil {
			return nil, err
		}
	}

	var out []interfaces.Element
	for _, el := range found {
		if len(out) == textMatchLimit {
			break
		}
		text, err := el.Text(ctx)
		if err != nil || !intent.MatchesAll(text) {
			continue
		}
		out = append(out, el)
	}
	return out, nil
}

// walk searches outward from el in strict order: el itself, its descendants,
// the parent's, the grandparent's, the previous then next sibling's, and
// finally up to five ancestor levels. Only visible images count.
func (s *AdjacencyStrategy) walk(ctx context.Context, el interfaces.Element, t *tally) interfaces.Element {
	visible := func(candidate interfaces.Element) interfaces.Element {
		if candidate == nil {
			return nil
		}
		r := checkVisible(ctx, candidate)
		t.add(r)
		if r.status == probeMatched {
			return candidate
		}
		return nil
	}
	imageIn := func(container interfaces.Element) interfaces.Element {
		if container == nil {
			return nil
		}
		images, err := container.QueryAll(ctx, "img")
		if err != nil {
			return nil
		}
		for _, img := range images {
			if found := visible(img); found != nil {
				return found
			}
		}
		return nil
	}

	if tag, err := el.TagName(ctx); err == nil && strings.EqualFold(tag, "img") {
		if img := visible(el); img != nil {
			return img
		}
	}
	if img := imageIn(el); img != nil {
		return img
	}

	parent, _ := el.Parent(ctx)
	if img := imageIn(parent); img != nil {
		return img
	}
	var grandparent interfaces.Element
	if parent != nil {
		grandparent, _ = parent.Parent(ctx)
		if img := imageIn(grandparent); img != nil {
			return img
		}
	}

	if prev, _ := el.PreviousSibling(ctx); prev != nil {
		if img := imageIn(prev); img != nil {
			return img
		}
	}
	if next, _ := el.NextSibling(ctx); next != nil {
		if img := imageIn(next); img != nil {
			return img
		}
	}

	// Levels one and two were checked above.
	ancestor := grandparent
	for level := 3; level <= ancestorLevels && ancestor != nil; level++ {
		ancestor, _ = ancestor.Parent(ctx)
		if img := imageIn(ancestor); img != nil {
			return img
		}
	}
	return nil
}

func isVisibleLink(ctx context.Context, el interfaces.Element) bool {
	tag, err := el.TagName(ctx)
	if err != nil || !strings.EqualFold(tag, "a") {
		return false
	}
	return checkVisible(ctx, el).status == probeMatched
}
