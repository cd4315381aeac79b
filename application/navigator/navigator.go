// Package navigator performs primitive page interactions and records each
// one that succeeds, so a session can be replayed later.
package navigator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"shop_replay/domain/entities"
	"shop_replay/domain/interfaces"

	"github.com/sirupsen/logrus"
)

// ErrApprovalRequired is matched by every ApprovalError
var ErrApprovalRequired = errors.New("click requires approval")

// ApprovalError carries the click the guard held back
type ApprovalError struct {
	Action entities.PendingAction
}

func (e *ApprovalError) Error() string {
	return fmt.Sprintf("%v: %s (%s risk: %s)", ErrApprovalRequired, e.Action.Selector, e.Action.Risk, e.Action.Reason)
}

func (e *ApprovalError) Unwrap() error { return ErrApprovalRequired }

// Timeouts bounds each kind of wait
type Timeouts struct {
	Navigation  time.Duration
	NetworkIdle time.Duration
	Element     time.Duration
	// Settle is the pause recorded after every navigation
	Settle time.Duration
}

// DefaultTimeouts returns the timeouts used when a field is left zero
func DefaultTimeouts() Timeouts {
	return Timeouts{
		Navigation:  60 * time.Second,
		NetworkIdle: 10 * time.Second,
		Element:     5 * time.Second,
		Settle:      2 * time.Second,
	}
}

func (t Timeouts) withDefaults() Timeouts {
	d := DefaultTimeouts()
	if t.Navigation <= 0 {
		t.Navigation = d.Navigation
	}
	if t.NetworkIdle <= 0 {
		t.NetworkIdle = d.NetworkIdle
	}
	if t.Element <= 0 {
		t.Element = d.Element
	}
	if t.Settle <= 0 {
		t.Settle = d.Settle
	}
	return t
}

// Target is what an interaction acts on. Element, when set, is a live
// handle already resolved for Selector and is used instead of a lookup.
type Target struct {
	Selector    string
	ElementType string
	Intent      string
	Element     interfaces.Element
}

// Navigator binds one page to one recorder
type Navigator struct {
	page     interfaces.Page
	recorder interfaces.Recorder
	guard    interfaces.Guard
	logger   *logrus.Logger
	timeouts Timeouts
	sleep    func(ctx context.Context, d time.Duration) error

	mu       sync.Mutex
	approved map[string]bool
}

// New - creates a navigator; a nil guard lets every click through
func New(page interfaces.Page, rec interfaces.Recorder, guard interfaces.Guard, logger *logrus.Logger, timeouts Timeouts) *Navigator {
	return &Navigator{
		page:     page,
		recorder: rec,
		guard:    guard,
		logger:   logger,
		timeouts: timeouts.withDefaults(),
		sleep:    sleepContext,
		approved: make(map[string]bool),
	}
}

// Page returns the page this navigator drives
func (n *Navigator) Page() interfaces.Page { return n.page }

// Timeouts returns the effective timeouts
func (n *Navigator) Timeouts() Timeouts { return n.timeouts }

// Goto - navigates to url, then waits for the network and settles
func (n *Navigator) Goto(ctx context.Context, url string) error {
	n.logger.Infof("Navigating to: %s", url)
	if err := n.page.Navigate(ctx, url, n.timeouts.Navigation); err != nil {
		return fmt.Errorf("failed to navigate: %w", err)
	}
	n.recorder.Append(entities.ActionNavigate, entities.Navigate{URL: url})

	if err := n.WaitForLoad(ctx); err != nil {
		return err
	}
	return n.Sleep(ctx, n.timeouts.Settle)
}

// Approve lets the next click on selector bypass the guard
func (n *Navigator) Approve(selector string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.approved[selector] = true
}

func (n *Navigator) checkGuard(t Target) error {
	// Opening a product only navigates; its name is not a button label.
	if n.guard == nil || t.ElementType == entities.ElementProductImage || t.ElementType == entities.ElementProductLink {
		return nil
	}
	n.mu.Lock()
	if n.approved[t.Selector] {
		delete(n.approved, t.Selector)
		n.mu.Unlock()
		return nil
	}
	n.mu.Unlock()

	if pending := n.guard.RequiresApproval(t.Selector, t.Intent); pending != nil {
		return &ApprovalError{Action: *pending}
	}
	return nil
}

// element returns the live handle of t, waiting for it when none was resolved
func (n *Navigator) element(ctx context.Context, t Target) (interfaces.Element, error) {
	if t.Element != nil {
		return t.Element, nil
	}
	el, err := n.page.WaitForSelector(ctx, t.Selector, n.timeouts.Element)
	if err != nil {
		return nil, fmt.Errorf("element not found or not visible: %w", err)
	}
	if el == nil {
		return nil, fmt.Errorf("element not found: %s", t.Selector)
	}
	return el, nil
}

// Click - clicks the target after the guard allows it
func (n *Navigator) Click(ctx context.Context, t Target) error {
	if err := n.checkGuard(t); err != nil {
		return err
	}
	el, err := n.element(ctx, t)
	if err != nil {
		return err
	}
	if err := el.ScrollIntoView(ctx); err != nil {
		n.logger.WithError(err).Debugf("Scroll into view failed for %s", t.Selector)
	}
	if err := el.Click(ctx); err != nil {
		return fmt.Errorf("failed to click %s: %w", t.Selector, err)
	}

	elementType := t.ElementType
	if elementType == "" {
		elementType = entities.ElementGeneric
	}
	n.recorder.AppendAnnotated(entities.ActionClick, entities.Click{Selector: t.Selector, ElementType: elementType}, t.Intent)
	n.logger.Debugf("Clicked %s", t.Selector)
	return nil
}

// Fill - focuses the target, clears it and types text
func (n *Navigator) Fill(ctx context.Context, t Target, text string) error {
	el, err := n.element(ctx, t)
	if err != nil {
		return err
	}
	if err := el.Click(ctx); err != nil {
		return fmt.Errorf("failed to focus %s: %w", t.Selector, err)
	}
	if err := el.Fill(ctx, ""); err != nil {
		return fmt.Errorf("failed to clear %s: %w", t.Selector, err)
	}
	if err := el.Fill(ctx, text); err != nil {
		return fmt.Errorf("failed to fill %s: %w", t.Selector, err)
	}

	n.recorder.AppendAnnotated(entities.ActionFill, entities.Fill{Selector: t.Selector, Text: text}, t.Intent)
	return nil
}

// Press - presses key on the target
func (n *Navigator) Press(ctx context.Context, t Target, key string) error {
	el, err := n.element(ctx, t)
	if err != nil {
		return err
	}
	if err := el.Press(ctx, key); err != nil {
		return fmt.Errorf("failed to press %s on %s: %w", key, t.Selector, err)
	}

	n.recorder.AppendAnnotated(entities.ActionKeyPress, entities.KeyPress{Selector: t.Selector, Key: key}, t.Intent)
	return nil
}

// WaitForLoad waits for network idle. A page that never goes idle is
// tolerated; only cancellation is an error.
func (n *Navigator) WaitForLoad(ctx context.Context) error {
	if err := n.page.WaitForNetworkIdle(ctx, n.timeouts.NetworkIdle); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		n.logger.WithError(err).Debug("Network did not go idle, continuing")
	}
	n.recorder.Append(entities.ActionWait, entities.Wait{WaitKind: entities.WaitLoad, Timeout: n.timeouts.NetworkIdle})
	return nil
}

// WaitForSelector waits until selector is visible
func (n *Navigator) WaitForSelector(ctx context.Context, selector string) (interfaces.Element, error) {
	el, err := n.page.WaitForSelector(ctx, selector, n.timeouts.Element)
	if err != nil {
		return nil, fmt.Errorf("element %s did not appear: %w", selector, err)
	}
	n.recorder.Append(entities.ActionWait, entities.Wait{
		WaitKind: entities.WaitSelector,
		Timeout:  n.timeouts.Element,
		Selector: selector,
	})
	return el, nil
}

// Sleep pauses for d unless ctx ends first
func (n *Navigator) Sleep(ctx context.Context, d time.Duration) error {
	if err := n.sleep(ctx, d); err != nil {
		return err
	}
	n.recorder.Append(entities.ActionSleep, entities.Sleep{Duration: d})
	return nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
