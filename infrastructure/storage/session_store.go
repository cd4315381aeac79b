package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"shop_replay/domain/entities"
	"shop_replay/domain/interfaces"
)

const timestampLayout = "20060102_150405"

// SessionStore keeps action logs and compiled scripts under one directory
type SessionStore struct {
	dir string
	now func() time.Time
}

// DefaultDir returns ~/.shop_replay
func DefaultDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ".shop_replay"
	}
	return filepath.Join(homeDir, ".shop_replay")
}

// NewSessionStore - creates the store, creating dir if needed
func NewSessionStore(dir string) (*SessionStore, error) {
	if dir == "" {
		dir = DefaultDir()
	}
	if strings.HasPrefix(dir, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, dir[2:])
		}
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output dir %s: %w", dir, err)
	}
	return &SessionStore{dir: dir, now: time.Now}, nil
}

// Dir returns the output directory
func (s *SessionStore) Dir() string { return s.dir }

// SaveLog - writes the log as indented JSON and returns its path
func (s *SessionStore) SaveLog(log *entities.ActionLog) (string, error) {
	if log == nil {
		return "", fmt.Errorf("no action log to save")
	}
	data, err := json.MarshalIndent(log, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode action log: %w", err)
	}

	stamp := log.StartTime
	if stamp.IsZero() {
		stamp = s.now()
	}
	path, err := s.writeNew("actions_"+stamp.Format(timestampLayout), ".json", data)
	if err != nil {
		return "", fmt.Errorf("failed to write action log %s: %w", path, err)
	}
	return path, nil
}

// LoadLog - reads a log written by SaveLog
func (s *SessionStore) LoadLog(path string) (*entities.ActionLog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read action log %s: %w", path, err)
	}

	var log entities.ActionLog
	if err := json.Unmarshal(data, &log); err != nil {
		return nil, fmt.Errorf("failed to decode action log %s: %w", path, err)
	}
	if log.Actions == nil {
		log.Actions = []entities.ActionRecord{}
	}
	return &log, nil
}

// SaveScript - writes a compiled script as replay_YYYYMMDD_HHMMSS<ext>, never
// overwriting an earlier script
func (s *SessionStore) SaveScript(script, ext string) (string, error) {
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	path, err := s.writeNew("replay_"+s.now().Format(timestampLayout), ext, []byte(script))
	if err != nil {
		return "", fmt.Errorf("failed to write script %s: %w", path, err)
	}
	return path, nil
}

// writeNew writes data to base+ext, or base_2+ext, base_3+ext and so on
// when a file from the same second already exists
func (s *SessionStore) writeNew(base, ext string, data []byte) (string, error) {
	for n := 1; ; n++ {
		name := base
		if n > 1 {
			name = fmt.Sprintf("%s_%d", base, n)
		}
		path := filepath.Join(s.dir, name+ext)
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return path, err
		}
		if _, err := f.Write(data); err != nil {
			f.Close()
			return path, err
		}
		return path, f.Close()
	}
}

var _ interfaces.Storage = (*SessionStore)(nil)
