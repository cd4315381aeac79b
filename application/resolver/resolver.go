package resolver

import (
	"context"
	"fmt"
	"strings"
	"time"

	"shop_replay/application/recorder"
	"shop_replay/domain/entities"
	"shop_replay/domain/interfaces"

	"github.com/sirupsen/logrus"
)

// Status is the outcome of one strategy attempt
type Status string

const (
	StatusMatched     Status = "matched"
	StatusNotFound    Status = "not_found"
	StatusSkipped     Status = "skipped"
	StatusUnavailable Status = "unavailable"
	StatusCancelled   Status = "cancelled"
)

// Outcome is what a strategy reports for one intent on one page
type Outcome struct {
	Status  Status
	Locator entities.Locator
	Element interfaces.Element
	Detail  string
	// Probed counts the candidates the strategy checked against the page
	Probed int
}

func matched(loc entities.Locator, el interfaces.Element, probed int) Outcome {
	return Outcome{Status: StatusMatched, Locator: loc, Element: el, Probed: probed}
}

func notFound(probed int, format string, args ...interface{}) Outcome {
	return Outcome{Status: StatusNotFound, Probed: probed, Detail: fmt.Sprintf(format, args...)}
}

func skipped(format string, args ...interface{}) Outcome {
	return Outcome{Status: StatusSkipped, Detail: fmt.Sprintf(format, args...)}
}

// Strategy is one prioritized heuristic for turning an intent into a locator.
// Try must not return hidden elements and must absorb probe failures.
type Strategy interface {
	Name() string
	Supports(intent entities.Intent) bool
	Try(ctx context.Context, intent entities.Intent, page interfaces.Page) Outcome
}

// Attempt is the diagnostic trace of one strategy in one Resolve call
type Attempt struct {
	Strategy string `json:"strategy"`
	Status   Status `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Probed   int    `json:"probed"`
}

func (a Attempt) String() string {
	s := a.Strategy + ": " + string(a.Status)
	if a.Detail != "" {
		s += " (" + a.Detail + ")"
	}
	return s
}

// Resolution is the result of Resolve. Not finding an element is a normal result.
type Resolution struct {
	Found    bool
	Locator  entities.Locator
	Element  interfaces.Element
	Intent   entities.Intent
	Attempts []Attempt
	cause    error
}

// Err returns a *NotFoundError when nothing was resolved
func (r Resolution) Err() error {
	if r.Found {
		return nil
	}
	return &NotFoundError{Intent: r.Intent, Attempts: r.Attempts, Cause: r.cause}
}

// NotFoundError reports an exhausted strategy chain
type NotFoundError struct {
	Intent   entities.Intent
	Attempts []Attempt
	Cause    error
}

func (e *NotFoundError) Error() string {
	parts := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		parts = append(parts, a.String())
	}
	msg := fmt.Sprintf("could not resolve %s: tried %s", e.Intent.Describe(), strings.Join(parts, "; "))
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *NotFoundError) Unwrap() error { return e.Cause }

// Resolver runs the strategy chain in fixed priority order
type Resolver struct {
	env        *env
	strategies []Strategy
	custom     bool

	recipes   []entities.VendorRecipe
	inference interfaces.Inference
	parser    interfaces.MarkupParser
}

// env is shared by the built-in strategies
type env struct {
	logger        *logrus.Logger
	recorder      interfaces.Recorder
	probeTimeout  time.Duration
	revealTimeout time.Duration
	excerptLimit  int
	sleep         func(ctx context.Context, d time.Duration) error
}

// Option configures a Resolver
type Option func(*Resolver)

// WithStrategies replaces the built-in chain
func WithStrategies(strategies ...Strategy) Option {
	return func(r *Resolver) {
		r.strategies = strategies
		r.custom = true
	}
}

// WithRecipes registers vendor recipes, tried before every other strategy
func WithRecipes(recipes ...entities.VendorRecipe) Option {
	return func(r *Resolver) {
		r.recipes = append(r.recipes, recipes...)
	}
}

// WithInference enables the inference tier
func WithInference(inf interfaces.Inference) Option {
	return func(r *Resolver) {
		r.inference = inf
	}
}

// WithParser enables the structural parse tier
func WithParser(p interfaces.MarkupParser) Option {
	return func(r *Resolver) {
		r.parser = p
	}
}

// WithRecorder records the reveal clicks strategies perform
func WithRecorder(rec interfaces.Recorder) Option {
	return func(r *Resolver) {
		if rec != nil {
			r.env.recorder = rec
		}
	}
}

// WithTimeouts sets the per-candidate probe timeout and the reveal wait
func WithTimeouts(probe, reveal time.Duration) Option {
	return func(r *Resolver) {
		if probe > 0 {
			r.env.probeTimeout = probe
		}
		if reveal > 0 {
			r.env.revealTimeout = reveal
		}
	}
}

// WithExcerptLimit caps the markup sent to the inference service
func WithExcerptLimit(n int) Option {
	return func(r *Resolver) {
		if n > 0 {
			r.env.excerptLimit = n
		}
	}
}

// New - creates a resolver with the built-in chain:
// vendor recipe, static patterns, inference, structural parse, image adjacency
func New(logger *logrus.Logger, opts ...Option) *Resolver {
	r := &Resolver{
		env: &env{
			logger:        logger,
			recorder:      recorder.Nop(),
			probeTimeout:  2 * time.Second,
			revealTimeout: 3 * time.Second,
			excerptLimit:  8000,
			sleep:         sleepContext,
		},
	}
	for _, opt := range opts {
		opt(r)
	}

	if !r.custom {
		r.strategies = r.defaultChain()
	}
	return r
}

func (r *Resolver) defaultChain() []Strategy {
	chain := make([]Strategy, 0, 5)
	if len(r.recipes) > 0 {
		chain = append(chain, &VendorStrategy{env: r.env, recipes: r.recipes})
	}
	chain = append(chain, &StaticStrategy{env: r.env})
	if r.inference != nil {
		chain = append(chain, NewInferenceStrategy(r.env, r.inference))
	}
	if r.parser != nil {
		chain = append(chain, &ParseStrategy{env: r.env, parser: r.parser})
	}
	chain = append(chain, &AdjacencyStrategy{env: r.env})
	return chain
}

// Strategies returns the chain in priority order
func (r *Resolver) Strategies() []Strategy {
	return append([]Strategy(nil), r.strategies...)
}

// Resolve - tries each strategy in order and stops at the first visible match.
// Strategy failures never escape; the caller can abandon the chain through ctx.
func (r *Resolver) Resolve(ctx context.Context, intent entities.Intent, page interfaces.Page) Resolution {
	res := Resolution{Intent: intent}
	logger := r.env.logger.WithField("intent", intent.Describe())

	for _, s := range r.strategies {
		if err := ctx.Err(); err != nil {
			res.Attempts = append(res.Attempts, Attempt{Strategy: s.Name(), Status: StatusCancelled})
			res.cause = err
			logger.WithError(err).Warn("Resolution abandoned")
			return res
		}
		if !s.Supports(intent) {
			continue
		}

		out := r.try(ctx, s, intent, page)
		res.Attempts = append(res.Attempts, Attempt{
			Strategy: s.Name(),
			Status:   out.Status,
			Detail:   out.Detail,
			Probed:   out.Probed,
		})
		logger.WithFields(logrus.Fields{
			"strategy": s.Name(),
			"outcome":  out.Status,
			"probed":   out.Probed,
		}).Debug("Strategy attempted")

		if out.Status == StatusMatched {
			res.Found = true
			res.Locator = out.Locator
			res.Element = out.Element
			if res.Locator.Strategy == "" {
				res.Locator.Strategy = s.Name()
			}
			logger.WithFields(logrus.Fields{
				"strategy": s.Name(),
				"selector": res.Locator.Selector,
				"method":   res.Locator.Method,
			}).Info("Element resolved")
			return res
		}
	}

	if err := ctx.Err(); err != nil {
		res.cause = err
	}
	logger.WithField("attempts", len(res.Attempts)).Warn("No strategy resolved the intent")
	return res
}

// try isolates the chain from a strategy that panics on an unexpected page state
func (r *Resolver) try(ctx context.Context, s Strategy, intent entities.Intent, page interfaces.Page) (out Outcome) {
	defer func() {
		if p := recover(); p != nil {
			out = notFound(out.Probed, "strategy failed: %v", p)
		}
	}()
	return s.Try(ctx, intent, page)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
