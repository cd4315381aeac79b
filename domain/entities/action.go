package entities

import (
	"encoding/json"
	"fmt"
	"time"
)

// ActionType represents the type of a recorded primitive interaction
type ActionType string

const (
	ActionNavigate ActionType = "navigate"
	ActionClick    ActionType = "click"
	ActionFill     ActionType = "fill"
	ActionKeyPress ActionType = "press"
	ActionWait     ActionType = "wait"
	ActionSleep    ActionType = "sleep"
)

// WaitKind selects what a Wait record waits for
type WaitKind string

const (
	WaitLoad     WaitKind = "load"
	WaitSelector WaitKind = "selector"
)

// Element types with special replay handling
const (
	ElementGeneric      = "element"
	ElementProductImage = "product_image"
	ElementProductLink  = "product_link"
	ElementSearchIcon   = "search_icon"
	ElementSearchInput  = "search_input"
)

// Payload is the variant-specific part of an ActionRecord
type Payload interface {
	Kind() ActionType
}

// Navigate opens a URL
type Navigate struct {
	URL string `json:"url"`
}

// Click clicks the element behind Selector
type Click struct {
	Selector    string `json:"selector"`
	ElementType string `json:"element_type"`
}

// Fill focuses, clears and sets the value of an input
type Fill struct {
	Selector string `json:"selector"`
	Text     string `json:"text"`
}

// KeyPress presses a key on an element
type KeyPress struct {
	Selector string `json:"selector"`
	Key      string `json:"key"`
}

// Wait waits for network idle or for a selector
type Wait struct {
	WaitKind WaitKind      `json:"wait_type"`
	Timeout  time.Duration `json:"timeout"`
	Selector string        `json:"selector,omitempty"`
}

// Sleep is a fixed delay
type Sleep struct {
	Duration time.Duration `json:"duration"`
}

func (Navigate) Kind() ActionType { return ActionNavigate }
func (Click) Kind() ActionType    { return ActionClick }
func (Fill) Kind() ActionType     { return ActionFill }
func (KeyPress) Kind() ActionType { return ActionKeyPress }
func (Wait) Kind() ActionType     { return ActionWait }
func (Sleep) Kind() ActionType    { return ActionSleep }

// Seconds returns the delay in fractional seconds
func (s Sleep) Seconds() float64 { return s.Duration.Seconds() }

// EmptyPayload returns the zero payload for an action type, nil for unknown types
func EmptyPayload(t ActionType) Payload {
	switch t {
	case ActionNavigate:
		return Navigate{}
	case ActionClick:
		return Click{ElementType: ElementGeneric}
	case ActionFill:
		return Fill{}
	case ActionKeyPress:
		return KeyPress{}
	case ActionWait:
		return Wait{WaitKind: WaitLoad}
	case ActionSleep:
		return Sleep{}
	}
	return nil
}

// ActionRecord is one primitive interaction; immutable once appended
type ActionRecord struct {
	Index     int        `json:"index"`
	Type      ActionType `json:"type"`
	Payload   Payload    `json:"payload"`
	Intent    string     `json:"intent,omitempty"`
	Note      string     `json:"note,omitempty"`
	Timestamp time.Time  `json:"timestamp"`
}

// Target returns the selector the record acts on, if any
func (r ActionRecord) Target() string {
	switch p := r.Payload.(type) {
	case Click:
		return p.Selector
	case Fill:
		return p.Selector
	case KeyPress:
		return p.Selector
	case Wait:
		return p.Selector
	}
	return ""
}

type actionRecordJSON struct {
	Index     int             `json:"index"`
	Type      ActionType      `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Intent    string          `json:"intent,omitempty"`
	Note      string          `json:"note,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// MarshalJSON - encodes the payload under "payload" next to its type tag
func (r ActionRecord) MarshalJSON() ([]byte, error) {
	out := actionRecordJSON{
		Index:     r.Index,
		Type:      r.Type,
		Intent:    r.Intent,
		Note:      r.Note,
		Timestamp: r.Timestamp,
	}
	if r.Payload != nil {
		raw, err := json.Marshal(r.Payload)
		if err != nil {
			return nil, err
		}
		out.Payload = raw
	}
	return json.Marshal(out)
}

// UnmarshalJSON - decodes the payload according to the type tag
func (r *ActionRecord) UnmarshalJSON(data []byte) error {
	var in actionRecordJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}

	r.Index = in.Index
	r.Type = in.Type
	r.Intent = in.Intent
	r.Note = in.Note
	r.Timestamp = in.Timestamp
	r.Payload = nil

	if len(in.Payload) == 0 || string(in.Payload) == "null" {
		r.Payload = EmptyPayload(in.Type)
		return nil
	}

	var err error
	switch in.Type {
	case ActionNavigate:
		var p Navigate
		err = json.Unmarshal(in.Payload, &p)
		r.Payload = p
	case ActionClick:
		var p Click
		err = json.Unmarshal(in.Payload, &p)
		r.Payload = p
	case ActionFill:
		var p Fill
		err = json.Unmarshal(in.Payload, &p)
		r.Payload = p
	case ActionKeyPress:
		var p KeyPress
		err = json.Unmarshal(in.Payload, &p)
		r.Payload = p
	case ActionWait:
		var p Wait
		err = json.Unmarshal(in.Payload, &p)
		r.Payload = p
	case ActionSleep:
		var p Sleep
		err = json.Unmarshal(in.Payload, &p)
		r.Payload = p
	default:
		return fmt.Errorf("unknown action type %q at index %d", in.Type, in.Index)
	}
	if err != nil {
		return fmt.Errorf("failed to decode %s payload at index %d: %w", in.Type, in.Index, err)
	}
	return nil
}

// ActionLog is the ordered record of one recording session
type ActionLog struct {
	SessionID string         `json:"session_id"`
	Query     string         `json:"query,omitempty"`
	StartTime time.Time      `json:"start_time"`
	EndTime   *time.Time     `json:"end_time,omitempty"`
	Sealed    bool           `json:"sealed"`
	Actions   []ActionRecord `json:"actions"`
}

// Len returns the number of records
func (l *ActionLog) Len() int {
	if l == nil {
		return 0
	}
	return len(l.Actions)
}
