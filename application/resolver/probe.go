package resolver

import (
	"context"
	"fmt"
	"time"

	"shop_replay/domain/interfaces"
)

type probeStatus int

const (
	probeAbsent probeStatus = iota
	probeMatched
	probeHidden
	probeTransient
)

func (s probeStatus) String() string {
	switch s {
	case probeMatched:
		return "matched"
	case probeHidden:
		return "hidden"
	case probeTransient:
		return "transient"
	}
	return "absent"
}

// probeResult is the typed outcome of checking one selector
type probeResult struct {
	status  probeStatus
	element interfaces.Element
	err     error
}

// tally counts probe outcomes for the attempt detail
type tally struct {
	probed    int
	hidden    int
	transient int
}

func (t *tally) add(r probeResult) {
	t.probed++
	switch r.status {
	case probeHidden:
		t.hidden++
	case probeTransient:
		t.transient++
	}
}

func (t tally) String() string {
	s := fmt.Sprintf("%d candidates", t.probed)
	if t.hidden > 0 {
		s += fmt.Sprintf(", %d hidden", t.hidden)
	}
	if t.transient > 0 {
		s += fmt.Sprintf(", %d transient", t.transient)
	}
	return s
}

// acceptFunc narrows a probe to the visible elements it returns true for
type acceptFunc func(ctx context.Context, el interfaces.Element) bool

// probe waits up to timeout for selector to match a visible element.
// Browser errors are reported as transient, never as failures.
func probe(ctx context.Context, page interfaces.Page, selector string, timeout time.Duration) probeResult {
	return probeWhere(ctx, page, selector, timeout, nil)
}

// probeWhere is probe restricted to the elements accept allows
func probeWhere(ctx context.Context, page interfaces.Page, selector string, timeout time.Duration, accept acceptFunc) probeResult {
	r := probeNow(ctx, page, selector, timeout, accept)
	if r.status == probeMatched || ctx.Err() != nil {
		return r
	}

	pctx, cancel := context.WithTimeout(ctx, timeout)
	el, err := page.WaitForSelector(pctx, selector, timeout)
	cancel()
	if err != nil || el == nil {
		return r
	}
	if again := probeNow(ctx, page, selector, timeout, accept); again.status == probeMatched {
		return again
	}
	return r
}

// probeNow checks a selector once without waiting
func probeNow(ctx context.Context, page interfaces.Page, selector string, timeout time.Duration, accept acceptFunc) probeResult {
	pctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	elements, err := page.QueryAll(pctx, selector)
	if err != nil {
		return probeResult{status: probeTransient, err: err}
	}
	return firstVisible(pctx, elements, accept)
}

// firstVisible returns the first visible element accept allows. Visible
// elements accept rejects count as absent.
func firstVisible(ctx context.Context, elements []interfaces.Element, accept acceptFunc) probeResult {
	result := probeResult{status: probeAbsent}
	for _, el := range elements {
		r := checkVisible(ctx, el)
		switch r.status {
		case probeMatched:
			if accept == nil || accept(ctx, el) {
				return r
			}
		case probeHidden:
			if result.status == probeAbsent {
				result = r
			}
		case probeTransient:
			result = r
		}
	}
	return result
}

func checkVisible(ctx context.Context, el interfaces.Element) probeResult {
	if el == nil {
		return probeResult{status: probeAbsent}
	}
	visible, err := el.IsVisible(ctx)
	if err != nil {
		return probeResult{status: probeTransient, err: err}
	}
	if !visible {
		return probeResult{status: probeHidden, element: el}
	}
	return probeResult{status: probeMatched, element: el}
}
