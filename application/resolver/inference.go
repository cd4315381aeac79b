package resolver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"unicode/utf8"

	"shop_replay/domain/entities"
	"shop_replay/domain/interfaces"

	"github.com/kaptinlin/jsonrepair"
)

const inferenceRole = "You are an expert at analyzing e-commerce HTML and locating interactive elements. Always return valid JSON only."

// intentSchemas describe the JSON object the inference service must return.
// The first key of each schema holds the candidate selector.
var intentSchemas = map[entities.IntentKind]struct {
	key    string
	schema string
	task   string
}{
	entities.IntentSearchInput: {
		key:    "input_selector",
		schema: `{"input_selector": "exact CSS selector of the search input", "button_selector": "CSS selector of the submit button or null"}`,
		task:   `Find the site search input. Look for inputs with type="search" or type="text", inputs whose name, id, placeholder or aria-label contain "search", "q" or "query", and forms whose action contains "search".`,
	},
	entities.IntentProductListing: {
		key:    "link_selector",
		schema: `{"link_selector": "CSS selector of the link to the product detail page", "title": "product title"}`,
		task:   "Find the product card or link for the product %q. Prefer links to product detail pages.",
	},
	entities.IntentProductImage: {
		key:    "image_selector",
		schema: `{"image_selector": "CSS selector of the product image"}`,
		task:   "Find the image that belongs to the product %q in the search results.",
	},
	entities.IntentButtonByText: {
		key:    "button_selector",
		schema: `{"button_selector": "CSS selector of the button or link"}`,
		task:   "Find the button or link labelled with one of: %s.",
	},
}

// rateLimited is implemented by inference errors that know their cause
type rateLimited interface {
	RateLimited() bool
}

// InferenceStrategy asks the language inference service for a selector and
// validates the answer against the live page. A rate-limit or quota failure
// disables it for the lifetime of the resolver.
type InferenceStrategy struct {
	env       *env
	inference interfaces.Inference
	disabled  atomic.Bool
	calls     atomic.Int64
}

// NewInferenceStrategy - creates the inference tier
func NewInferenceStrategy(e *env, inf interfaces.Inference) *InferenceStrategy {
	return &InferenceStrategy{env: e, inference: inf}
}

func (s *InferenceStrategy) Name() string { return "inference" }

func (s *InferenceStrategy) Supports(intent entities.Intent) bool {
	_, ok := intentSchemas[intent.Kind]
	return ok
}

// Calls returns how many requests were sent
func (s *InferenceStrategy) Calls() int64 { return s.calls.Load() }

// Disabled reports whether a rate-limit failure switched the strategy off
func (s *InferenceStrategy) Disabled() bool { return s.disabled.Load() }

func (s *InferenceStrategy) Try(ctx context.Context, intent entities.Intent, page interfaces.Page) Outcome {
	if s.disabled.Load() {
		return skipped("disabled after rate limit")
	}

	markup, err := page.Content(ctx)
	if err != nil {
		return notFound(0, "page content unavailable: %v", err)
	}
	pageURL, _ := page.URL(ctx)

	req := buildInferenceRequest(intent, markup, pageURL, s.env.excerptLimit)
	s.calls.Add(1)
	text, err := s.inference.Complete(ctx, req)
	if err != nil {
		if isRateLimit(err) {
			s.disabled.Store(true)
			s.env.logger.WithError(err).Warn("Inference rate limited, continuing with deterministic strategies only")
			return Outcome{Status: StatusUnavailable, Detail: "rate limited"}
		}
		s.env.logger.WithError(err).Debug("Inference request failed")
		return Outcome{Status: StatusUnavailable, Detail: err.Error()}
	}

	key := intentSchemas[intent.Kind].key
	selector, submit, err := parseInferenceAnswer(text, key)
	if err != nil {
		return notFound(0, "unusable answer: %v", err)
	}

	r := probe(ctx, page, selector, s.env.probeTimeout)
	if r.status != probeMatched {
		return notFound(1, "inferred selector %s is %s", selector, r.status)
	}

	loc := entities.Locator{
		Selector:    selector,
		Method:      entities.MethodInferred,
		Strategy:    s.Name(),
		ElementType: elementTypeFor(intent.Kind),
	}
	if intent.Kind == entities.IntentSearchInput {
		loc.SubmitSelector = submit
	}
	return matched(loc, r.element, 1)
}

func buildInferenceRequest(intent entities.Intent, markup, pageURL string, limit int) entities.InferenceRequest {
	schema := intentSchemas[intent.Kind]

	task := schema.task
	switch intent.Kind {
	case entities.IntentProductImage, entities.IntentProductListing:
		task = fmt.Sprintf(task, intent.Phrase())
	case entities.IntentButtonByText:
		task = fmt.Sprintf(task, strings.Join(intent.Synonyms, ", "))
	}

	return entities.InferenceRequest{
		Role:   inferenceRole,
		Task:   task,
		Schema: schema.schema,
		Markup: excerpt(markup, limit),
		URL:    pageURL,
	}
}

// excerpt truncates markup to at most limit bytes without splitting a rune
func excerpt(markup string, limit int) string {
	if limit <= 0 || len(markup) <= limit {
		return markup
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(markup[cut]) {
		cut--
	}
	return markup[:cut]
}

// parseInferenceAnswer extracts the selector under key from a possibly
// fenced, possibly malformed JSON answer. Arrays yield their first object.
func parseInferenceAnswer(text, key string) (string, string, error) {
	raw := extractJSON(text)
	if raw == "" {
		return "", "", errors.New("no JSON payload")
	}

	var v interface{}
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		repaired, rerr := jsonrepair.JSONRepair(raw)
		if rerr != nil {
			return "", "", fmt.Errorf("failed to parse answer: %w", err)
		}
		if err := json.Unmarshal([]byte(repaired), &v); err != nil {
			return "", "", fmt.Errorf("failed to parse repaired answer: %w", err)
		}
	}

	if list, ok := v.([]interface{}); ok {
		if len(list) == 0 {
			return "", "", errors.New("empty answer")
		}
		v = list[0]
	}
	obj, ok := v.(map[string]interface{})
	if !ok {
		return "", "", errors.New("answer is not an object")
	}

	selector := stringField(obj, key)
	if selector == "" {
		selector = stringField(obj, "selector")
	}
	if selector == "" {
		return "", "", fmt.Errorf("answer has no %s", key)
	}
	return selector, stringField(obj, "button_selector"), nil
}

func stringField(obj map[string]interface{}, key string) string {
	s, _ := obj[key].(string)
	s = strings.TrimSpace(s)
	if strings.EqualFold(s, "null") || strings.EqualFold(s, "none") {
		return ""
	}
	return s
}

// extractJSON strips markdown fences and slices out the outermost JSON value
func extractJSON(text string) string {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```") {
		lines := strings.Split(text, "\n")
		var body []string
		for _, line := range lines[1:] {
			if strings.HasPrefix(strings.TrimSpace(line), "```") {
				break
			}
			body = append(body, line)
		}
		text = strings.TrimSpace(strings.Join(body, "\n"))
	}

	start := strings.IndexAny(text, "{[")
	if start == -1 {
		return ""
	}
	closer := "}"
	if text[start] == '[' {
		closer = "]"
	}
	end := strings.LastIndex(text, closer)
	if end <= start {
		// Unterminated payloads are left for jsonrepair.
		return text[start:]
	}
	return text[start : end+1]
}

func isRateLimit(err error) bool {
	var rl rateLimited
	if errors.As(err, &rl) && rl.RateLimited() {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "429") || strings.Contains(msg, "quota")
}

func elementTypeFor(kind entities.IntentKind) string {
	switch kind {
	case entities.IntentSearchInput:
		return entities.ElementSearchInput
	case entities.IntentProductImage:
		return entities.ElementProductImage
	case entities.IntentProductListing:
		return entities.ElementProductLink
	}
	return entities.ElementGeneric
}
