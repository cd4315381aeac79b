package interfaces

import "shop_replay/domain/entities"

// Recorder is the session-scoped action log handle
type Recorder interface {
	// Start begins a fresh log, discarding an unsealed one
	Start()

	// Append adds one record; the bool is false when the log is sealed
	Append(t entities.ActionType, payload entities.Payload) (entities.ActionRecord, bool)

	// AppendAnnotated is Append with a human readable intent attached
	AppendAnnotated(t entities.ActionType, payload entities.Payload, intent string) (entities.ActionRecord, bool)

	// Stop seals the log and returns it
	Stop() *entities.ActionLog

	// Get returns a copy of the records appended so far
	Get() []entities.ActionRecord
}
