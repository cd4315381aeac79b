package browser

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestXPathLiteral(t *testing.T) {
	assert.Equal(t, "'cart'", xpathLiteral("cart"))
	assert.Equal(t, `"men's"`, xpathLiteral("men's"))
	assert.Equal(t, `concat('a"b', "'", 'c')`, xpathLiteral(`a"b'c`))
}

func TestOwnTextXPath(t *testing.T) {
	xp := ownTextXPath("iPhone 15")
	assert.Contains(t, xp, "'iphone 15'")
	assert.Contains(t, xp, "text()[contains(translate(.")
}

func TestHasTextXPath(t *testing.T) {
	xp, ok := hasTextXPath("button:has-text('Add to Cart')")
	assert.True(t, ok)
	assert.Equal(t, "//button[contains(translate(normalize-space(.), '"+upperAlpha+"', '"+lowerAlpha+"'), 'add to cart')]", xp)

	xp, ok = hasTextXPath(`a:has-text('Men\'s shoes')`)
	assert.True(t, ok)
	assert.Contains(t, xp, `"men's shoes"`)

	xp, ok = hasTextXPath(":has-text('Checkout')")
	assert.True(t, ok)
	assert.Contains(t, xp, "//*[")

	_, ok = hasTextXPath("button[aria-label*='cart' i]")
	assert.False(t, ok)
}

func TestJoinCloseErr(t *testing.T) {
	assert.NoError(t, joinCloseErr(nil, "browser", errors.New("Target closed")))
	assert.NoError(t, joinCloseErr(nil, "browser", errors.New("browser has been closed")))

	err := joinCloseErr(nil, "context", errors.New("boom"))
	assert.EqualError(t, err, "failed to close context: boom")

	err = joinCloseErr(err, "browser", errors.New("bang"))
	assert.EqualError(t, err, "failed to close context: boom; failed to close browser: bang")
}

func TestLocate(t *testing.T) {
	by, value := locate("#search", false)
	assert.Equal(t, "css selector", by)
	assert.Equal(t, "#search", value)

	by, value = locate("xpath=//img", true)
	assert.Equal(t, "xpath", by)
	assert.Equal(t, ".//img", value)

	by, value = locate("button:has-text('Buy')", true)
	assert.Equal(t, "xpath", by)
	assert.Contains(t, value, ".//button[")
}

func TestFindChromeDriverPrefersConfiguredPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chromedriver")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"), 0755))

	found, err := findChromeDriver(path)
	require.NoError(t, err)
	assert.Equal(t, path, found)
	assert.Equal(t, path, findChromeBinary(path))
}
