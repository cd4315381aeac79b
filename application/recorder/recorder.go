package recorder

import (
	"sync"
	"time"

	"shop_replay/domain/entities"
	"shop_replay/domain/interfaces"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Recorder is an append-only log of executed interactions.
// Appends happen at the point of execution so the index order is the
// execution order; the mutex serializes appends if a second flow ever writes.
type Recorder struct {
	mu     sync.Mutex
	log    *entities.ActionLog
	logger *logrus.Logger
	now    func() time.Time
}

// Option configures a Recorder
type Option func(*Recorder)

// WithClock overrides the wall clock used for timestamps
func WithClock(now func() time.Time) Option {
	return func(r *Recorder) {
		r.now = now
	}
}

// New - creates a recorder with an open, empty log
func New(logger *logrus.Logger, opts ...Option) *Recorder {
	r := &Recorder{
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.log = r.freshLog()
	return r
}

func (r *Recorder) freshLog() *entities.ActionLog {
	return &entities.ActionLog{
		SessionID: uuid.NewString(),
		StartTime: r.now(),
		Actions:   []entities.ActionRecord{},
	}
}

// Start - begins a fresh log. Calling it again resets an unsealed log.
func (r *Recorder) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.log = r.freshLog()
}

// SetQuery attaches the originating query to the current log
func (r *Recorder) SetQuery(query string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.log.Query = query
}

// Append - adds one record
func (r *Recorder) Append(t entities.ActionType, payload entities.Payload) (entities.ActionRecord, bool) {
	return r.AppendAnnotated(t, payload, "")
}

// AppendAnnotated - adds one record carrying an intent annotation.
// A missing or mismatched payload is still recorded with a note.
func (r *Recorder) AppendAnnotated(t entities.ActionType, payload entities.Payload, intent string) (entities.ActionRecord, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.log.Sealed {
		r.logger.WithFields(logrus.Fields{
			"session": r.log.SessionID,
			"type":    t,
		}).Warn("Append rejected: action log is sealed")
		return entities.ActionRecord{}, false
	}

	var note string
	switch {
	case payload == nil:
		payload = entities.EmptyPayload(t)
		note = "missing payload"
	case payload.Kind() != t:
		note = "payload kind " + string(payload.Kind()) + " recorded as " + string(t)
	}
	if note != "" {
		r.logger.WithFields(logrus.Fields{
			"session": r.log.SessionID,
			"type":    t,
		}).Warnf("Malformed payload recorded best-effort: %s", note)
	}

	record := entities.ActionRecord{
		Index:     len(r.log.Actions),
		Type:      t,
		Payload:   payload,
		Intent:    intent,
		Note:      note,
		Timestamp: r.now(),
	}
	r.log.Actions = append(r.log.Actions, record)

	r.logger.WithFields(logrus.Fields{
		"index": record.Index,
		"type":  t,
	}).Debug("Action recorded")

	return record, true
}

// Stop - seals the log and returns it. Stopping twice returns the same sealed log.
func (r *Recorder) Stop() *entities.ActionLog {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.log.Sealed {
		end := r.now()
		r.log.EndTime = &end
		r.log.Sealed = true
	}
	return r.log
}

// Get - returns a copy of the current records
func (r *Recorder) Get() []entities.ActionRecord {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]entities.ActionRecord, len(r.log.Actions))
	copy(out, r.log.Actions)
	return out
}

// Sealed reports whether Stop was called on the current log
func (r *Recorder) Sealed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.log.Sealed
}

// Navigate records a navigation
func (r *Recorder) Navigate(url string) {
	r.Append(entities.ActionNavigate, entities.Navigate{URL: url})
}

// Click records a click
func (r *Recorder) Click(selector, elementType string) {
	if elementType == "" {
		elementType = entities.ElementGeneric
	}
	r.Append(entities.ActionClick, entities.Click{Selector: selector, ElementType: elementType})
}

// Fill records filling an input
func (r *Recorder) Fill(selector, text string) {
	r.Append(entities.ActionFill, entities.Fill{Selector: selector, Text: text})
}

// Press records a key press
func (r *Recorder) Press(selector, key string) {
	r.Append(entities.ActionKeyPress, entities.KeyPress{Selector: selector, Key: key})
}

// Wait records a wait
func (r *Recorder) Wait(kind entities.WaitKind, timeout time.Duration, selector string) {
	r.Append(entities.ActionWait, entities.Wait{WaitKind: kind, Timeout: timeout, Selector: selector})
}

// Sleep records a fixed delay
func (r *Recorder) Sleep(d time.Duration) {
	r.Append(entities.ActionSleep, entities.Sleep{Duration: d})
}

var _ interfaces.Recorder = (*Recorder)(nil)
