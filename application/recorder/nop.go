package recorder

import (
	"shop_replay/domain/entities"
	"shop_replay/domain/interfaces"
)

type nopRecorder struct{}

// Nop returns a recorder that drops everything, for sessions with recording disabled
func Nop() interfaces.Recorder {
	return nopRecorder{}
}

func (nopRecorder) Start() {}

func (nopRecorder) Append(entities.ActionType, entities.Payload) (entities.ActionRecord, bool) {
	return entities.ActionRecord{}, false
}

func (nopRecorder) AppendAnnotated(entities.ActionType, entities.Payload, string) (entities.ActionRecord, bool) {
	return entities.ActionRecord{}, false
}

func (nopRecorder) Stop() *entities.ActionLog {
	return &entities.ActionLog{Sealed: true, Actions: []entities.ActionRecord{}}
}

func (nopRecorder) Get() []entities.ActionRecord {
	return nil
}
