package resolver

import (
	"context"
	"net/url"
	"strings"
	"time"

	"shop_replay/domain/entities"
	"shop_replay/domain/interfaces"

	"github.com/sirupsen/logrus"
)

const defaultRevealSettle = 2 * time.Second

// VendorStrategy runs fixed multi-step recipes for sites that hide their
// target behind a reveal interaction
type VendorStrategy struct {
	env     *env
	recipes []entities.VendorRecipe
}

func (s *VendorStrategy) Name() string { return "vendor-recipe" }

func (s *VendorStrategy) Supports(intent entities.Intent) bool {
	for _, r := range s.recipes {
		if r.Intent == intent.Kind {
			return true
		}
	}
	return false
}

func (s *VendorStrategy) Try(ctx context.Context, intent entities.Intent, page interfaces.Page) Outcome {
	pageURL, err := page.URL(ctx)
	if err != nil {
		return notFound(0, "page url unavailable: %v", err)
	}

	recipe, ok := s.match(intent.Kind, pageURL)
	if !ok {
		return skipped("no recipe for %s", hostOf(pageURL))
	}

	logger := s.env.logger.WithFields(logrus.Fields{
		"recipe": recipe.Name,
		"host":   hostOf(pageURL),
	})
	logger.Info("Running vendor recipe")

	var t tally
	for i, step := range recipe.Steps {
		last := i == len(recipe.Steps)-1

		if !last {
			// A missing reveal target is not fatal; the final step may already be visible.
			if err := s.reveal(ctx, step, page, &t, logger); err != nil {
				return notFound(t.probed, "reveal interrupted: %v", err)
			}
			continue
		}

		for _, sel := range step.Candidates {
			r := probe(ctx, page, sel, s.env.revealTimeout)
			t.add(r)
			if r.status != probeMatched {
				continue
			}
			elementType := step.ElementType
			if elementType == "" && recipe.Intent == entities.IntentSearchInput {
				elementType = entities.ElementSearchInput
			}
			return matched(entities.Locator{
				Selector:       sel,
				Method:         entities.MethodVendorSpecific,
				Strategy:       s.Name() + ":" + recipe.Name,
				ElementType:    elementType,
				SubmitSelector: recipe.Submit,
			}, r.element, t.probed)
		}
	}
	return notFound(t.probed, "recipe %s: %s", recipe.Name, t)
}

// reveal clicks the first visible candidate of a reveal step and records
// the click and its settle delay
func (s *VendorStrategy) reveal(ctx context.Context, step entities.RecipeStep, page interfaces.Page, t *tally, logger *logrus.Entry) error {
	for _, sel := range step.Candidates {
		r := probe(ctx, page, sel, s.env.probeTimeout)
		t.add(r)
		if r.status != probeMatched {
			continue
		}
		if err := r.element.Click(ctx); err != nil {
			logger.WithError(err).WithField("selector", sel).Debug("Reveal click failed")
			continue
		}

		elementType := step.ElementType
		if elementType == "" {
			elementType = entities.ElementGeneric
		}
		s.env.recorder.AppendAnnotated(entities.ActionClick, entities.Click{
			Selector:    sel,
			ElementType: elementType,
		}, step.Description)

		settle := defaultRevealSettle
		if step.SettleMS > 0 {
			settle = time.Duration(step.SettleMS) * time.Millisecond
		}
		logger.WithField("selector", sel).Info("Reveal step clicked")
		if err := s.env.sleep(ctx, settle); err != nil {
			return err
		}
		s.env.recorder.Append(entities.ActionSleep, entities.Sleep{Duration: settle})
		return nil
	}
	logger.WithField("step", step.Description).Debug("No reveal candidate visible")
	return nil
}

func (s *VendorStrategy) match(kind entities.IntentKind, pageURL string) (entities.VendorRecipe, bool) {
	host := hostOf(pageURL)
	for _, r := range s.recipes {
		if r.Intent != kind || len(r.Steps) == 0 {
			continue
		}
		for _, h := range r.Hosts {
			h = strings.ToLower(strings.TrimPrefix(h, "."))
			if host == h || strings.HasSuffix(host, "."+h) {
				return r, true
			}
		}
	}
	return entities.VendorRecipe{}, false
}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return strings.ToLower(raw)
	}
	return strings.ToLower(u.Hostname())
}
