package browser

import (
	"fmt"
	"regexp"
	"strings"
)

const (
	upperAlpha = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	lowerAlpha = "abcdefghijklmnopqrstuvwxyz"
)

var hasTextSelector = regexp.MustCompile(`^([a-zA-Z][a-zA-Z0-9]*|\*)?:has-text\('((?:[^'\\]|\\.)*)'\)$`)

// xpathLiteral quotes s for use inside an XPath 1.0 expression
func xpathLiteral(s string) string {
	if !strings.Contains(s, "'") {
		return "'" + s + "'"
	}
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}
	parts := strings.Split(s, "'")
	quoted := make([]string, len(parts))
	for i, p := range parts {
		quoted[i] = "'" + p + "'"
	}
	return "concat(" + strings.Join(quoted, `, "'", `) + ")"
}

// ownTextXPath matches elements whose own text contains needle, ignoring case
func ownTextXPath(needle string) string {
	return fmt.Sprintf(
		"//*[text()[contains(translate(., '%s', '%s'), %s)]]",
		upperAlpha, lowerAlpha, xpathLiteral(strings.ToLower(needle)),
	)
}

// hasTextXPath translates "tag:has-text('label')" into an XPath query for
// backends without the playwright pseudo-class. ok is false for any other selector.
func hasTextXPath(selector string) (xpath string, ok bool) {
	m := hasTextSelector.FindStringSubmatch(strings.TrimSpace(selector))
	if m == nil {
		return "", false
	}
	tag := m[1]
	if tag == "" {
		tag = "*"
	}
	label := strings.NewReplacer(`\'`, "'", `\\`, `\`).Replace(m[2])
	return fmt.Sprintf(
		"//%s[contains(translate(normalize-space(.), '%s', '%s'), %s)]",
		strings.ToLower(tag), upperAlpha, lowerAlpha, xpathLiteral(strings.ToLower(label)),
	), true
}
