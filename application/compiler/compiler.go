package compiler

import (
	"strings"
	"time"

	"shop_replay/domain/entities"

	"github.com/sirupsen/logrus"
)

// Compiler translates a sealed action log into a standalone replay script
type Compiler struct {
	dialect  Dialect
	logger   *logrus.Logger
	now      func() time.Time
	headless bool
	slowMo   time.Duration
}

// Option configures a Compiler
type Option func(*Compiler)

// WithDialect selects the output language
func WithDialect(d Dialect) Option {
	return func(c *Compiler) {
		c.dialect = d
	}
}

// WithClock overrides the clock used for the generation timestamp
func WithClock(now func() time.Time) Option {
	return func(c *Compiler) {
		c.now = now
	}
}

// WithBrowser sets the launch options baked into the script
func WithBrowser(headless bool, slowMo time.Duration) Option {
	return func(c *Compiler) {
		c.headless = headless
		c.slowMo = slowMo
	}
}

// New - creates a compiler emitting Go by default
func New(logger *logrus.Logger, opts ...Option) *Compiler {
	c := &Compiler{
		dialect: GoDialect{},
		logger:  logger,
		now:     time.Now,
		slowMo:  500 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// DialectByName returns the dialect for "go" or "python"
func DialectByName(name string) (Dialect, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "go", "golang":
		return GoDialect{}, true
	case "python", "py":
		return PythonDialect{}, true
	}
	return nil, false
}

// Extension returns the file extension of the compiled script
func (c *Compiler) Extension() string {
	return c.dialect.Extension()
}

// Render - renders one record with the variant template for its type
func (c *Compiler) Render(rec entities.ActionRecord) Block {
	d := c.dialect

	switch rec.Type {
	case entities.ActionNavigate:
		p, _ := rec.Payload.(entities.Navigate)
		return d.Navigate(p)
	case entities.ActionClick:
		p, ok := rec.Payload.(entities.Click)
		if !ok {
			p = entities.Click{ElementType: entities.ElementGeneric}
		}
		return d.Click(p)
	case entities.ActionFill:
		p, _ := rec.Payload.(entities.Fill)
		return d.Fill(p)
	case entities.ActionKeyPress:
		p, _ := rec.Payload.(entities.KeyPress)
		if p.Key == "" {
			p.Key = "Enter"
		}
		return d.KeyPress(p)
	case entities.ActionWait:
		p, ok := rec.Payload.(entities.Wait)
		if !ok {
			p = entities.Wait{WaitKind: entities.WaitLoad}
		}
		if p.Timeout <= 0 {
			p.Timeout = 10 * time.Second
		}
		return d.Wait(p)
	case entities.ActionSleep:
		p, _ := rec.Payload.(entities.Sleep)
		return d.Sleep(p)
	}
	return d.Unsupported(rec.Type)
}

// Compile - renders every record in log order, one block per record.
// A nil or empty log yields a runnable skeleton.
func (c *Compiler) Compile(log *entities.ActionLog) string {
	meta := Meta{
		GeneratedAt: c.now(),
		Headless:    c.headless,
		SlowMo:      c.slowMo,
	}

	var records []entities.ActionRecord
	if log != nil {
		meta.SessionID = log.SessionID
		meta.Query = log.Query
		records = log.Actions
		if !log.Sealed {
			c.logger.WithField("session", log.SessionID).Warn("Compiling an action log that was not sealed")
		}
	}
	if len(records) == 0 {
		c.logger.Warn("Action log is empty, emitting skeleton script")
	}

	steps := make([]Step, 0, len(records))
	for i, rec := range records {
		steps = append(steps, Step{
			Number: i + 1,
			Index:  rec.Index,
			Intent: rec.Intent,
			Block:  c.Render(rec),
		})
	}

	c.logger.WithFields(logrus.Fields{
		"dialect": c.dialect.Name(),
		"steps":   len(steps),
	}).Info("Compiled replay script")

	return c.dialect.Assemble(meta, steps)
}
