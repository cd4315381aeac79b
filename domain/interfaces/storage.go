package interfaces

import "shop_replay/domain/entities"

// Storage persists action logs and compiled scripts
type Storage interface {
	// SaveLog writes the action log and returns its path
	SaveLog(log *entities.ActionLog) (string, error)

	// LoadLog reads an action log written by SaveLog
	LoadLog(path string) (*entities.ActionLog, error)

	// SaveScript writes a compiled script with the given extension and returns its path
	SaveScript(script, ext string) (string, error)
}
