package security

import (
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestRiskLevels(t *testing.T) {
	g := NewClickGuard(false, quietLogger())

	cases := []struct {
		selector, intent, want string
	}{
		{"button:has-text('Place Order')", "place order", RiskHigh},
		{"button:has-text('Buy Now')", "", RiskHigh},
		{"[data-testid*='remove-item']", "", RiskHigh},
		{"button[aria-label='Empty basket']", "", RiskHigh},
		{"button.cart-clear", "clear cart", RiskHigh},
		{"button.cart-clear", "", RiskLow},
		{"img[alt='Clear case']", "", RiskLow},
		{"a[title='Remove-able hooks']", "", RiskLow},
		{"button:has-text('Checkout')", "checkout", RiskMedium},
		{"button:has-text('Add to Bag')", "add to cart", RiskLow},
		{"img (product image)", "product image for iPhone 17", RiskLow},
		{"#search-clearance-banner", "", RiskLow},
		{"button.display-toggle", "", RiskLow},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, g.RiskLevel(tc.selector, tc.intent), tc.selector)
	}
}

func TestRequiresApprovalOnlyForHighRisk(t *testing.T) {
	g := NewClickGuard(false, quietLogger())

	pending := g.RequiresApproval("button:has-text('Place Order')", "place order")
	require.NotNil(t, pending)
	assert.Equal(t, RiskHigh, pending.Risk)
	assert.Contains(t, pending.Reason, "place order")

	assert.Nil(t, g.RequiresApproval("button:has-text('Checkout')", "checkout"))
	assert.Nil(t, g.RequiresApproval("a:has-text('Cart')", "cart"))
}

func TestAllowRiskyLetsEverythingThrough(t *testing.T) {
	g := NewClickGuard(true, quietLogger())
	assert.Nil(t, g.RequiresApproval("button:has-text('Place Order')", "place order"))
	assert.Equal(t, RiskHigh, g.RiskLevel("button:has-text('Place Order')", ""))
}

func TestSelectorLabels(t *testing.T) {
	assert.Equal(t, []string{"Place Order"}, selectorLabels("button:has-text('Place Order')"))
	assert.Equal(t, []string{"it's gone", "x"}, selectorLabels(`button[aria-label*='it\'s gone' i] [value='x']`))
	assert.Empty(t, selectorLabels("img[alt='Clear case']"))
}
