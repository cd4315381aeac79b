package resolver

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"shop_replay/application/recorder"
	"shop_replay/domain/entities"
	"shop_replay/domain/interfaces"
	"shop_replay/infrastructure/markup"
	"shop_replay/internal/fakepage"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

type spyInference struct {
	calls  int
	answer string
	err    error
	last   entities.InferenceRequest
}

func (s *spyInference) Complete(ctx context.Context, req entities.InferenceRequest) (string, error) {
	s.calls++
	s.last = req
	return s.answer, s.err
}

type quotaError struct{}

func (quotaError) Error() string     { return "insufficient_quota" }
func (quotaError) RateLimited() bool { return true }

func newResolver(opts ...Option) *Resolver {
	r := New(quietLogger(), opts...)
	r.env.sleep = func(context.Context, time.Duration) error { return nil }
	return r
}

func attemptOf(t *testing.T, res Resolution, strategy string) Attempt {
	t.Helper()
	for _, a := range res.Attempts {
		if a.Strategy == strategy {
			return a
		}
	}
	require.Failf(t, "no attempt", "strategy %s was not tried", strategy)
	return Attempt{}
}

func input(attrs map[string]string) *fakepage.Node {
	return fakepage.El("input", attrs)
}

func TestStaticMatchWinsWithoutCallingInference(t *testing.T) {
	box := input(map[string]string{"type": "search", "name": "q"})
	page := fakepage.New("https://shop.test/", fakepage.El("body", nil, box)).
		Bind("input[type='search']", box).
		Bind("button[type='submit']", fakepage.El("button", nil))
	spy := &spyInference{answer: `{"input_selector": "#other"}`}

	res := newResolver(WithInference(spy), WithParser(markup.NewParser())).
		Resolve(context.Background(), entities.SearchInput(), page)

	require.True(t, res.Found)
	assert.Equal(t, entities.MethodStatic, res.Locator.Method)
	assert.Equal(t, "input[type='search']", res.Locator.Selector)
	assert.Equal(t, "button[type='submit']", res.Locator.SubmitSelector)
	assert.Equal(t, box, res.Element.(*fakepage.Element).Node())
	assert.Equal(t, 0, spy.calls)
	require.Len(t, res.Attempts, 1)
	assert.Equal(t, "static-patterns", res.Attempts[0].Strategy)
	assert.NoError(t, res.Err())
}

func TestHiddenMatchIsSkipped(t *testing.T) {
	hidden := input(map[string]string{"type": "search"}).Hide()
	visible := input(map[string]string{"name": "q"})
	page := fakepage.New("https://shop.test/", fakepage.El("body", nil, hidden, visible)).
		Bind("input[type='search']", hidden).
		Bind("input[name='q']", visible)

	res := newResolver().Resolve(context.Background(), entities.SearchInput(), page)

	require.True(t, res.Found)
	assert.Equal(t, "input[name='q']", res.Locator.Selector)
	assert.Equal(t, visible, res.Element.(*fakepage.Element).Node())
	assert.Zero(t, hidden.Clicks)
}

func TestHiddenStaticMatchFallsThroughToInference(t *testing.T) {
	hidden := input(map[string]string{"type": "search"}).Hide()
	target := input(map[string]string{"id": "q2", "type": "text"})
	page := fakepage.New("https://shop.test/", fakepage.El("body", nil, hidden, target)).
		Bind("input[type='search']", hidden)
	spy := &spyInference{answer: "```json\n{\"input_selector\": \"#q2\", \"button_selector\": null}\n```"}

	res := newResolver(WithInference(spy)).Resolve(context.Background(), entities.SearchInput(), page)

	require.True(t, res.Found)
	assert.Equal(t, entities.MethodInferred, res.Locator.Method)
	assert.Equal(t, "#q2", res.Locator.Selector)
	assert.Empty(t, res.Locator.SubmitSelector)
	assert.Equal(t, 1, spy.calls)
	assert.Contains(t, spy.last.Markup, `id="q2"`)
	assert.Contains(t, spy.last.Schema, "input_selector")
	assert.Equal(t, "https://shop.test/", spy.last.URL)

	require.Len(t, res.Attempts, 2)
	assert.Equal(t, StatusNotFound, res.Attempts[0].Status)
	assert.Contains(t, res.Attempts[0].Detail, "1 hidden")
}

func TestInferredCandidateMustBeVisible(t *testing.T) {
	hidden := input(map[string]string{"id": "ghost"}).Hide()
	page := fakepage.New("https://shop.test/", fakepage.El("body", nil, hidden))
	spy := &spyInference{answer: `{"input_selector": "#ghost"}`}

	res := newResolver(WithInference(spy)).Resolve(context.Background(), entities.SearchInput(), page)

	assert.False(t, res.Found)
	assert.Contains(t, res.Attempts[1].Detail, "hidden")
}

func TestRateLimitDisablesInference(t *testing.T) {
	page := fakepage.New("https://shop.test/", fakepage.El("body", nil))
	spy := &spyInference{err: quotaError{}}
	r := newResolver(WithInference(spy))

	first := r.Resolve(context.Background(), entities.SearchInput(), page)
	second := r.Resolve(context.Background(), entities.SearchInput(), page)

	assert.False(t, first.Found)
	assert.False(t, second.Found)
	assert.Equal(t, 1, spy.calls)
	assert.Equal(t, StatusUnavailable, first.Attempts[1].Status)
	assert.Equal(t, StatusSkipped, second.Attempts[1].Status)
}

func TestPlainQuotaMessageCountsAsRateLimit(t *testing.T) {
	assert.True(t, isRateLimit(errors.New("status 429: Too Many Requests")))
	assert.True(t, isRateLimit(errors.New("You exceeded your current quota")))
	assert.False(t, isRateLimit(errors.New("connection reset")))
}

func TestStructuralParseSynthesizesSelector(t *testing.T) {
	box := input(map[string]string{"id": "site-search", "type": "text"})
	page := fakepage.New("https://shop.test/", fakepage.El("body", nil,
		input(map[string]string{"id": "newsletter", "type": "email"}),
		box,
	))

	res := newResolver(WithParser(markup.NewParser())).Resolve(context.Background(), entities.SearchInput(), page)

	require.True(t, res.Found)
	assert.Equal(t, entities.MethodParsed, res.Locator.Method)
	assert.Equal(t, "#site-search", res.Locator.Selector)
	assert.Equal(t, box, res.Element.(*fakepage.Element).Node())
}

func TestHiddenParsedImageNeverResolvesToAnotherImage(t *testing.T) {
	hero := fakepage.El("img", map[string]string{"id": "iphone-17-hero", "alt": "iPhone 17"}).Hide()
	logo := fakepage.El("img", map[string]string{"id": "logo", "src": "/logo.png"})
	page := fakepage.New("https://shop.test/", fakepage.El("body", nil, logo, hero))

	res := newResolver(WithParser(markup.NewParser())).Resolve(context.Background(), entities.ProductImage("iPhone 17"), page)

	assert.False(t, res.Found)
	assert.Nil(t, res.Element)
	parse := attemptOf(t, res, "structural-parse")
	assert.Equal(t, StatusNotFound, parse.Status)
	assert.Contains(t, parse.Detail, "hidden")
}

func TestHiddenParsedSearchBoxNeverResolvesToNewsletterInput(t *testing.T) {
	search := input(map[string]string{"id": "site-search", "type": "text"}).Hide()
	newsletter := input(map[string]string{"type": "email", "name": "email"})
	page := fakepage.New("https://shop.test/", fakepage.El("body", nil, search, newsletter))

	res := newResolver(WithParser(markup.NewParser())).Resolve(context.Background(), entities.SearchInput(), page)

	assert.False(t, res.Found)
	assert.Nil(t, res.Element)
	assert.Contains(t, attemptOf(t, res, "structural-parse").Detail, "hidden")
}

func TestParsedBareTagOnlyMatchesTheParsedElement(t *testing.T) {
	newsletter := input(map[string]string{"type": "email", "placeholder": "Your email"})
	search := input(map[string]string{"placeholder": "Search products"})
	page := fakepage.New("https://shop.test/", fakepage.El("body", nil, newsletter, search))

	res := newResolver(WithParser(markup.NewParser())).Resolve(context.Background(), entities.SearchInput(), page)

	require.True(t, res.Found)
	assert.Equal(t, entities.MethodParsed, res.Locator.Method)
	assert.Equal(t, search, res.Element.(*fakepage.Element).Node())
}

func TestStaticCandidateRenderedDuringWaitIsFound(t *testing.T) {
	page := fakepage.New("https://shop.test/", fakepage.El("body", nil))
	box := input(map[string]string{"type": "search"})
	rendered := false
	page.OnWait = func(selector string) {
		if selector == "input[type='search']" && !rendered {
			rendered = true
			page.Root.Append(box)
			page.Bind(selector, box)
		}
	}

	res := newResolver().Resolve(context.Background(), entities.SearchInput(), page)

	require.True(t, rendered)
	require.True(t, res.Found)
	assert.Equal(t, entities.MethodStatic, res.Locator.Method)
	assert.Equal(t, "input[type='search']", res.Locator.Selector)
	assert.Equal(t, box, res.Element.(*fakepage.Element).Node())
}

func TestImageAdjacencyPrefersImageNextToText(t *testing.T) {
	banner := fakepage.El("img", map[string]string{"src": "/banner.jpg", "alt": "Spring sale"})
	product := fakepage.El("img", map[string]string{"src": "/p/1234.jpg"})
	page := fakepage.New("https://shop.test/search?q=iphone", fakepage.El("body", nil,
		fakepage.El("div", map[string]string{"class": "banner"}, banner),
		fakepage.El("div", map[string]string{"class": "card"},
			fakepage.Text("h3", "Apple iPhone 17 (256 GB)", nil),
			fakepage.El("div", map[string]string{"class": "media"}, product),
		),
	))

	res := newResolver().Resolve(context.Background(), entities.ProductImage("iPhone 17"), page)

	require.True(t, res.Found)
	assert.Equal(t, entities.MethodPositional, res.Locator.Method)
	assert.Equal(t, ProductImagePlaceholder, res.Locator.Selector)
	assert.Equal(t, entities.ElementProductImage, res.Locator.ElementType)
	assert.Equal(t, product, res.Element.(*fakepage.Element).Node())
}

func TestImageAdjacencySkipsHiddenThumbnail(t *testing.T) {
	hiddenThumb := fakepage.El("img", map[string]string{"src": "/thumb.jpg"}).Hide()
	sibling := fakepage.El("img", map[string]string{"src": "/p/17.jpg"})
	text := fakepage.Text("span", "iPhone 17", nil)
	page := fakepage.New("https://shop.test/", fakepage.El("body", nil,
		fakepage.El("section", nil,
			fakepage.El("li", nil, hiddenThumb, text, fakepage.El("figure", nil, sibling)),
		),
	))
	res := newResolver().Resolve(context.Background(), entities.ProductImage("iphone 17"), page)

	require.True(t, res.Found)
	assert.Equal(t, sibling, res.Element.(*fakepage.Element).Node())
}

func TestImageAdjacencySkipsHiddenLazyPlaceholder(t *testing.T) {
	placeholder := fakepage.El("img", map[string]string{"src": "data:image/gif;base64,R0lGOD"}).Hide()
	real := fakepage.El("img", map[string]string{"src": "/p/kettle.jpg"})
	page := fakepage.New("https://shop.test/", fakepage.El("body", nil,
		fakepage.El("div", map[string]string{"class": "card"},
			fakepage.Text("h3", "Blue Kettle 1.7L", nil),
			fakepage.El("div", map[string]string{"class": "media"}, placeholder, real),
		),
	))

	res := newResolver().Resolve(context.Background(), entities.ProductImage("blue kettle"), page)

	require.True(t, res.Found)
	assert.Equal(t, entities.ElementProductImage, res.Locator.ElementType)
	assert.Equal(t, real, res.Element.(*fakepage.Element).Node())
}

func TestImageAdjacencyFallsBackToLink(t *testing.T) {
	link := fakepage.Text("a", "iPhone 17 Pro Max", map[string]string{"href": "/p/iphone-17"})
	page := fakepage.New("https://shop.test/", fakepage.El("body", nil, fakepage.El("div", nil, link)))

	res := newResolver().Resolve(context.Background(), entities.ProductImage("iPhone 17"), page)

	require.True(t, res.Found)
	assert.Equal(t, entities.ElementProductLink, res.Locator.ElementType)
	assert.Equal(t, "a[href='/p/iphone-17']", res.Locator.Selector)
}

func TestStaticImageAttributeScanRequiresAllKeywords(t *testing.T) {
	partial := fakepage.El("img", map[string]string{"alt": "iPhone 16"})
	full := fakepage.El("img", map[string]string{"alt": "Apple iPhone 17 in blue"})
	page := fakepage.New("https://shop.test/", fakepage.El("body", nil, partial, full))

	res := newResolver().Resolve(context.Background(), entities.ProductImage("iPhone 17"), page)

	require.True(t, res.Found)
	assert.Equal(t, entities.MethodStatic, res.Locator.Method)
	assert.Equal(t, "img[alt='Apple iPhone 17 in blue']", res.Locator.Selector)
	assert.Equal(t, full, res.Element.(*fakepage.Element).Node())
}

func TestExhaustionListsEveryStrategy(t *testing.T) {
	page := fakepage.New("https://shop.test/", fakepage.El("body", nil, fakepage.Text("p", "nothing here", nil)))
	spy := &spyInference{answer: "I could not find it."}

	res := newResolver(
		WithRecipes(entities.VendorRecipe{Name: "other", Hosts: []string{"other.test"}, Intent: entities.IntentProductImage,
			Steps: []entities.RecipeStep{{Candidates: []string{"img.hero"}}}}),
		WithInference(spy),
		WithParser(markup.NewParser()),
	).Resolve(context.Background(), entities.ProductImage("iPhone 17"), page)

	require.False(t, res.Found)
	names := make([]string, 0, len(res.Attempts))
	for _, a := range res.Attempts {
		names = append(names, a.Strategy)
	}
	assert.Equal(t, []string{"vendor-recipe", "static-patterns", "inference", "structural-parse", "image-adjacency"}, names)

	var nf *NotFoundError
	require.ErrorAs(t, res.Err(), &nf)
	assert.Len(t, nf.Attempts, 5)
	for _, n := range names {
		assert.Contains(t, nf.Error(), n)
	}
}

func TestTransientProbeErrorsAdvanceTheChain(t *testing.T) {
	stale := input(map[string]string{"type": "search"})
	stale.VisibleErr = errors.New("stale element reference")
	good := input(map[string]string{"name": "search"})
	page := fakepage.New("https://shop.test/", fakepage.El("body", nil, stale, good)).
		Bind("input[type='search']", stale).
		Bind("input[name='search']", good)

	res := newResolver().Resolve(context.Background(), entities.SearchInput(), page)

	require.True(t, res.Found)
	assert.Equal(t, "input[name='search']", res.Locator.Selector)
}

func TestQueryFailuresNeverEscape(t *testing.T) {
	page := fakepage.New("https://shop.test/", fakepage.El("body", nil))
	page.QueryErr = errors.New("target closed")

	res := newResolver().Resolve(context.Background(), entities.SearchInput(), page)

	assert.False(t, res.Found)
	assert.Contains(t, res.Attempts[0].Detail, "transient")
}

func TestCancelledContextAbandonsChain(t *testing.T) {
	page := fakepage.New("https://shop.test/", fakepage.El("body", nil))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := newResolver().Resolve(ctx, entities.SearchInput(), page)

	assert.False(t, res.Found)
	assert.ErrorIs(t, res.Err(), context.Canceled)
	assert.Equal(t, StatusCancelled, res.Attempts[0].Status)
}

func appleRecipe() entities.VendorRecipe {
	return entities.VendorRecipe{
		Name:   "apple",
		Hosts:  []string{"apple.com"},
		Intent: entities.IntentSearchInput,
		Submit: "button.ac-gn-searchform-submit",
		Steps: []entities.RecipeStep{
			{Description: "open search menu", Candidates: []string{"#ac-gn-searchform", "#globalnav-menustate-search"}, ElementType: entities.ElementSearchIcon, SettleMS: 1500},
			{Description: "search input", Candidates: []string{"#ac-gn-searchform-input", "input[type='search']"}},
		},
	}
}

func TestVendorRecipeRevealsAndRecords(t *testing.T) {
	field := input(map[string]string{"id": "ac-gn-searchform-input"}).Hide()
	icon := fakepage.El("a", map[string]string{"id": "globalnav-menustate-search"})
	icon.OnClick = func() { field.Hidden = false }
	page := fakepage.New("https://www.apple.com/", fakepage.El("body", nil, icon, field))
	rec := recorder.New(quietLogger())

	res := newResolver(WithRecipes(appleRecipe()), WithRecorder(rec)).
		Resolve(context.Background(), entities.SearchInput(), page)

	require.True(t, res.Found)
	assert.Equal(t, entities.MethodVendorSpecific, res.Locator.Method)
	assert.Equal(t, "#ac-gn-searchform-input", res.Locator.Selector)
	assert.Equal(t, "button.ac-gn-searchform-submit", res.Locator.SubmitSelector)
	assert.Equal(t, "vendor-recipe:apple", res.Locator.Strategy)
	assert.Equal(t, 1, icon.Clicks)

	records := rec.Get()
	require.Len(t, records, 2)
	assert.Equal(t, entities.Click{Selector: "#globalnav-menustate-search", ElementType: entities.ElementSearchIcon}, records[0].Payload)
	assert.Equal(t, "open search menu", records[0].Intent)
	assert.Equal(t, entities.Sleep{Duration: 1500 * time.Millisecond}, records[1].Payload)
}

func TestVendorRecipeSkipsOtherHosts(t *testing.T) {
	box := input(map[string]string{"type": "search"})
	page := fakepage.New("https://www.notapple.com/", fakepage.El("body", nil, box)).
		Bind("input[type='search']", box)
	rec := recorder.New(quietLogger())

	res := newResolver(WithRecipes(appleRecipe()), WithRecorder(rec)).
		Resolve(context.Background(), entities.SearchInput(), page)

	require.True(t, res.Found)
	assert.Equal(t, entities.MethodStatic, res.Locator.Method)
	assert.Equal(t, StatusSkipped, res.Attempts[0].Status)
	assert.Empty(t, rec.Get())
}

func TestButtonByTextUsesSynonyms(t *testing.T) {
	btn := fakepage.Text("button", "Add to Bag", nil)
	page := fakepage.New("https://shop.test/p/1", fakepage.El("body", nil, btn)).
		Bind("button:has-text('Add to Bag')", btn)

	res := newResolver().Resolve(context.Background(), entities.ButtonByText("add to cart", entities.AddToCartSynonyms...), page)

	require.True(t, res.Found)
	assert.Equal(t, "button:has-text('Add to Bag')", res.Locator.Selector)
}

type panickyStrategy struct{}

func (panickyStrategy) Name() string                  { return "panicky" }
func (panickyStrategy) Supports(entities.Intent) bool { return true }
func (panickyStrategy) Try(context.Context, entities.Intent, interfaces.Page) Outcome {
	panic("unexpected page state")
}

func TestCustomChainSurvivesPanickingStrategy(t *testing.T) {
	box := input(map[string]string{"type": "search"})
	page := fakepage.New("https://shop.test/", fakepage.El("body", nil, box)).
		Bind("input[type='search']", box)
	r := New(quietLogger())
	r = New(quietLogger(), WithStrategies(panickyStrategy{}, &StaticStrategy{env: r.env}))

	res := r.Resolve(context.Background(), entities.SearchInput(), page)

	require.True(t, res.Found)
	assert.Equal(t, StatusNotFound, res.Attempts[0].Status)
	assert.Contains(t, res.Attempts[0].Detail, "unexpected page state")
}

func TestParseInferenceAnswer(t *testing.T) {
	cases := []struct {
		name, text, key, want string
	}{
		{"plain", `{"input_selector": "#q"}`, "input_selector", "#q"},
		{"fenced", "```json\n{\"image_selector\": \"img.hero\"}\n```", "image_selector", "img.hero"},
		{"prose around", "Sure! {\"button_selector\": \"button.buy\"} hope that helps", "button_selector", "button.buy"},
		{"array", `[{"link_selector": "a.p1"}, {"link_selector": "a.p2"}]`, "link_selector", "a.p1"},
		{"trailing comma", `{"input_selector": "#q",}`, "input_selector", "#q"},
		{"generic key", `{"selector": "#fallback"}`, "input_selector", "#fallback"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, _, err := parseInferenceAnswer(tc.text, tc.key)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}

	_, _, err := parseInferenceAnswer(`{"input_selector": null}`, "input_selector")
	assert.Error(t, err)
	_, _, err = parseInferenceAnswer("no json at all", "input_selector")
	assert.Error(t, err)
}

func TestExcerptIsRuneSafe(t *testing.T) {
	s := strings.Repeat("é", 10)
	got := excerpt(s, 5)
	assert.Equal(t, "éé", got)
	assert.Equal(t, "short", excerpt("short", 8000))
}

func TestSynthesizeSelectors(t *testing.T) {
	got := synthesizeSelectors(entities.PageElement{
		Tag:        "input",
		Selector:   "body > form > input",
		Attributes: map[string]string{"id": "2fast", "name": "q", "placeholder": "Search"},
	})
	assert.Equal(t, []string{
		"input[id='2fast']",
		"input[name='q']",
		"input[placeholder='Search']",
		"body > form > input",
	}, got)

	// The bare tag only stands in for elements with neither id nor name.
	got = synthesizeSelectors(entities.PageElement{
		Tag:        "input",
		Attributes: map[string]string{"placeholder": "Search"},
	})
	assert.Equal(t, []string{"input[placeholder='Search']", "input"}, got)
}
