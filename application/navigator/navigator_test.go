package navigator

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"shop_replay/application/recorder"
	"shop_replay/domain/entities"
	"shop_replay/infrastructure/security"
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

func newNavigator(page *fakepage.Page, allowRisky bool) (*Navigator, *recorder.Recorder) {
	logger := quietLogger()
	rec := recorder.New(logger)
	rec.Start()
	nav := New(page, rec, security.NewClickGuard(allowRisky, logger), logger, Timeouts{})
	nav.sleep = func(ctx context.Context, d time.Duration) error { return ctx.Err() }
	return nav, rec
}

func types(records []entities.ActionRecord) []entities.ActionType {
	out := make([]entities.ActionType, len(records))
	for i, r := range records {
		out[i] = r.Type
	}
	return out
}

func TestGotoRecordsNavigateWaitAndSettle(t *testing.T) {
	page := fakepage.New("about:blank", nil)
	nav, rec := newNavigator(page, false)

	require.NoError(t, nav.Goto(context.Background(), "https://shop.test"))

	assert.Equal(t, []string{"https://shop.test"}, page.Navigations)
	assert.Equal(t, 1, page.IdleWaits)

	records := rec.Get()
	assert.Equal(t, []entities.ActionType{entities.ActionNavigate, entities.ActionWait, entities.ActionSleep}, types(records))
	assert.Equal(t, entities.Navigate{URL: "https://shop.test"}, records[0].Payload)
	assert.Equal(t, entities.Wait{WaitKind: entities.WaitLoad, Timeout: 10 * time.Second}, records[1].Payload)
	assert.Equal(t, entities.Sleep{Duration: 2 * time.Second}, records[2].Payload)
}

func TestFillClearsThenTypesAndRecordsOnce(t *testing.T) {
	input := fakepage.El("input", map[string]string{"id": "q"})
	page := fakepage.New("https://shop.test", fakepage.El("body", nil, input))
	nav, rec := newNavigator(page, false)

	input.Value = "stale"
	err := nav.Fill(context.Background(), Target{Selector: "#q", Intent: "search input"}, "blue kettle")
	require.NoError(t, err)

	assert.Equal(t, "blue kettle", input.Value)
	assert.Equal(t, 1, input.Clicks)

	records := rec.Get()
	require.Len(t, records, 1)
	assert.Equal(t, entities.Fill{Selector: "#q", Text: "blue kettle"}, records[0].Payload)
	assert.Equal(t, "search input", records[0].Intent)
}

func TestPressUsesResolvedElement(t *testing.T) {
	input := fakepage.El("input", nil)
	page := fakepage.New("https://shop.test", fakepage.El("body", nil, input))
	nav, rec := newNavigator(page, false)

	el, err := page.Query(context.Background(), "input")
	require.NoError(t, err)

	// The selector is not bound on the page; the handle must be used as is.
	err = nav.Press(context.Background(), Target{Selector: "input[name='q']", Element: el}, "Enter")
	require.NoError(t, err)

	assert.Equal(t, []string{"Enter"}, input.Pressed)
	assert.Equal(t, entities.KeyPress{Selector: "input[name='q']", Key: "Enter"}, rec.Get()[0].Payload)
}

func TestFailedClickIsNotRecorded(t *testing.T) {
	hidden := fakepage.El("button", map[string]string{"id": "buy"}).Hide()
	page := fakepage.New("https://shop.test", fakepage.El("body", nil, hidden))
	nav, rec := newNavigator(page, false)

	err := nav.Click(context.Background(), Target{Selector: "#buy"})
	require.Error(t, err)
	assert.Empty(t, rec.Get())
}

func TestClickDefaultsElementType(t *testing.T) {
	btn := fakepage.Text("button", "Add to cart", map[string]string{"id": "add"})
	page := fakepage.New("https://shop.test", fakepage.El("body", nil, btn))
	nav, rec := newNavigator(page, false)

	require.NoError(t, nav.Click(context.Background(), Target{Selector: "#add", Intent: "add to cart button"}))
	assert.Equal(t, 1, btn.Clicks)
	assert.Equal(t, entities.Click{Selector: "#add", ElementType: entities.ElementGeneric}, rec.Get()[0].Payload)
}

func TestRiskyClickNeedsApproval(t *testing.T) {
	btn := fakepage.Text("button", "Place order", map[string]string{"id": "place-order"})
	page := fakepage.New("https://shop.test", fakepage.El("body", nil, btn))
	nav, rec := newNavigator(page, false)
	target := Target{Selector: "#place-order", Intent: "place order button"}

	err := nav.Click(context.Background(), target)
	require.ErrorIs(t, err, ErrApprovalRequired)

	var approval *ApprovalError
	require.True(t, errors.As(err, &approval))
	assert.Equal(t, "#place-order", approval.Action.Selector)
	assert.Equal(t, security.RiskHigh, approval.Action.Risk)
	assert.Zero(t, btn.Clicks)
	assert.Empty(t, rec.Get())

	nav.Approve("#place-order")
	require.NoError(t, nav.Click(context.Background(), target))
	assert.Equal(t, 1, btn.Clicks)

	// Approval is spent by one click.
	assert.ErrorIs(t, nav.Click(context.Background(), target), ErrApprovalRequired)
}

func TestOpeningAProductNamedLikeARiskyWordNeedsNoApproval(t *testing.T) {
	img := fakepage.El("img", map[string]string{"alt": "Clear case"})
	page := fakepage.New("https://shop.test", fakepage.El("body", nil, img))
	nav, rec := newNavigator(page, false)
	el, err := page.Query(context.Background(), "img")
	require.NoError(t, err)

	err = nav.Click(context.Background(), Target{
		Selector:    "img[alt='Clear case']",
		ElementType: entities.ElementProductImage,
		Intent:      entities.ProductImage("clear case").Describe(),
		Element:     el,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, img.Clicks)
	assert.Len(t, rec.Get(), 1)
}

func TestAllowRiskyClicksBypassesApproval(t *testing.T) {
	btn := fakepage.Text("button", "Pay now", map[string]string{"id": "pay"})
	page := fakepage.New("https://shop.test", fakepage.El("body", nil, btn))
	nav, _ := newNavigator(page, true)

	require.NoError(t, nav.Click(context.Background(), Target{Selector: "#pay", Intent: "pay now"}))
	assert.Equal(t, 1, btn.Clicks)
}

func TestWaitForSelectorRecordsOnlyOnSuccess(t *testing.T) {
	price := fakepage.Text("span", "$10", map[string]string{"id": "price"})
	page := fakepage.New("https://shop.test", fakepage.El("body", nil, price))
	nav, rec := newNavigator(page, false)

	_, err := nav.WaitForSelector(context.Background(), "#missing")
	require.Error(t, err)
	assert.Empty(t, rec.Get())

	el, err := nav.WaitForSelector(context.Background(), "#price")
	require.NoError(t, err)
	require.NotNil(t, el)
	assert.Equal(t, entities.Wait{WaitKind: entities.WaitSelector, Timeout: 5 * time.Second, Selector: "#price"}, rec.Get()[0].Payload)
}

func TestCancelledSleepIsNotRecorded(t *testing.T) {
	page := fakepage.New("https://shop.test", nil)
	nav, rec := newNavigator(page, false)
	nav.sleep = sleepContext

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, nav.Sleep(ctx, time.Minute), context.Canceled)
	assert.ErrorIs(t, nav.WaitForLoad(ctx), context.Canceled)
	assert.Empty(t, rec.Get())
}

func TestTimeoutsFillDefaults(t *testing.T) {
	nav := New(fakepage.New("", nil), recorder.Nop(), nil, quietLogger(), Timeouts{Element: time.Second})
	got := nav.Timeouts()
	assert.Equal(t, time.Second, got.Element)
	assert.Equal(t, 60*time.Second, got.Navigation)
	assert.Equal(t, 2*time.Second, got.Settle)
}
