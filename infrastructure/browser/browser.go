package browser

import (
	"fmt"
	"strings"
	"time"

	"shop_replay/domain/interfaces"

	"github.com/sirupsen/logrus"
)

// Options configures a launched backend
type Options struct {
	Backend      string
	Headless     bool
	SlowMo       time.Duration
	DriverPath   string
	ChromeBinary string
	// StateFile persists cookies and local storage between runs when set
	StateFile string
}

// Browser is a launched backend serving a single page
type Browser interface {
	Page() interfaces.Page
	Close() error
}

// Launch - starts the configured backend
func Launch(opts Options, logger *logrus.Logger) (Browser, error) {
	switch strings.ToLower(opts.Backend) {
	case "", "playwright":
		return NewPlaywrightBrowser(opts, logger)
	case "selenium":
		return NewSeleniumBrowser(opts, logger)
	}
	return nil, fmt.Errorf("unknown browser backend %q", opts.Backend)
}

// isClosedErr reports teardown errors raised by an already closed target
func isClosedErr(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "closed") || strings.Contains(msg, "target closed")
}

// joinCloseErr chains teardown errors, dropping those of closed targets
func joinCloseErr(prev error, what string, err error) error {
	if err == nil || isClosedErr(err) {
		return prev
	}
	if prev != nil {
		return fmt.Errorf("%v; failed to close %s: %w", prev, what, err)
	}
	return fmt.Errorf("failed to close %s: %w", what, err)
}
