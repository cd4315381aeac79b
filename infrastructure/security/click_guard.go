package security

import (
	"regexp"
	"strings"

	"shop_replay/domain/entities"
	"shop_replay/domain/interfaces"

	"github.com/sirupsen/logrus"
)

const (
	RiskLow    = "low"
	RiskMedium = "medium"
	RiskHigh   = "high"
)

// phrases that commit money or place an order
var paymentPhrases = []string{
	"place order", "place-order", "place_order",
	"complete order", "complete-order", "confirm order", "submit order",
	"buy now", "buy-now", "pay now", "pay-now", "purchase", "payment",
}

// words that destroy state the user may care about
var destructiveWords = []string{"delete", "remove", "clear", "reset", "cancel", "trash", "empty"}

// words that move towards checkout without committing
var checkoutWords = []string{"checkout", "check out", "submit", "confirm"}

// ClickGuard holds back clicks that pay or destroy until they are approved
type ClickGuard struct {
	allowRisky bool
	logger     *logrus.Logger
}

// NewClickGuard - creates the guard; allowRisky lets every click through with a warning
func NewClickGuard(allowRisky bool, logger *logrus.Logger) *ClickGuard {
	return &ClickGuard{allowRisky: allowRisky, logger: logger}
}

// RequiresApproval - returns a pending action for high risk clicks
func (g *ClickGuard) RequiresApproval(selector, intent string) *entities.PendingAction {
	risk, reason := classify(selector, intent)
	if risk != RiskHigh {
		return nil
	}

	fields := logrus.Fields{"selector": selector, "intent": intent, "reason": reason}
	if g.allowRisky {
		g.logger.WithFields(fields).Warn("Risky click allowed by configuration")
		return nil
	}
	g.logger.WithFields(fields).Warn("Click held for approval")
	return &entities.PendingAction{
		Selector: selector,
		Intent:   intent,
		Risk:     risk,
		Reason:   reason,
	}
}

// RiskLevel - classifies a click as low, medium or high risk
func (g *ClickGuard) RiskLevel(selector, intent string) string {
	risk, _ := classify(selector, intent)
	return risk
}

// labelPattern pulls the visible or accessible name out of a selector
var labelPattern = regexp.MustCompile(`(?::has-text\(|\[(?:aria-label|value|data-testid)[*^$~|]?=\s*)'((?:[^'\\]|\\.)*)'`)

// selectorLabels returns the button text and accessible names a selector
// targets. Classes, ids and image attributes are not labels.
func selectorLabels(selector string) []string {
	var out []string
	for _, m := range labelPattern.FindAllStringSubmatch(selector, -1) {
		out = append(out, strings.ReplaceAll(m[1], `\'`, "'"))
	}
	return out
}

func classify(selector, intent string) (string, string) {
	text := strings.ToLower(intent + " " + strings.Join(selectorLabels(selector), " "))

	for _, p := range paymentPhrases {
		if strings.Contains(text, p) {
			return RiskHigh, "payment action: " + p
		}
	}
	words := tokens(text)
	for _, w := range destructiveWords {
		if words[w] {
			return RiskHigh, "destructive action: " + w
		}
	}
	for _, w := range checkoutWords {
		if strings.Contains(text, w) {
			return RiskMedium, "checkout step: " + w
		}
	}
	return RiskLow, ""
}

// tokens splits on anything that is not a letter or digit
func tokens(s string) map[string]bool {
	out := map[string]bool{}
	for _, f := range strings.FieldsFunc(s, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	}) {
		out[f] = true
	}
	return out
}

var _ interfaces.Guard = (*ClickGuard)(nil)
