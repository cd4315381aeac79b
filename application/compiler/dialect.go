package compiler

import (
	"strings"
	"time"

	"shop_replay/domain/entities"
)

// Block is the rendered code of one step
type Block struct {
	Title   string
	Lines   []string
	Imports []string
}

// Meta is the script-level information rendered into header and footer
type Meta struct {
	SessionID   string
	Query       string
	GeneratedAt time.Time
	Headless    bool
	SlowMo      time.Duration
}

// Step is a rendered block bound to its position in the log
type Step struct {
	Number int
	Index  int
	Intent string
	Block  Block
}

// Annotation is the human readable step label, stable for a fixed record
func (s Step) Annotation() string {
	label := s.Block.Title
	if s.Intent != "" && s.Intent != s.Block.Title {
		label += " (" + s.Intent + ")"
	}
	return oneLine(label)
}

// Dialect renders each record variant and assembles the final script
type Dialect interface {
	Name() string
	Extension() string

	Navigate(p entities.Navigate) Block
	Click(p entities.Click) Block
	Fill(p entities.Fill) Block
	KeyPress(p entities.KeyPress) Block
	Wait(p entities.Wait) Block
	Sleep(p entities.Sleep) Block
	Unsupported(t entities.ActionType) Block

	Assemble(meta Meta, steps []Step) string
}

// GeneratedAtPrefix starts the only line that differs between two compilations of one log
const GeneratedAtPrefix = "Generated at: "

// isImageClick reports whether a click must be broadened at replay time
func isImageClick(elementType string) bool {
	et := strings.ToLower(elementType)
	return strings.Contains(et, entities.ElementProductImage) || strings.Contains(et, "image")
}

func oneLine(s string) string {
	s = strings.ReplaceAll(s, "\r", " ")
	return strings.ReplaceAll(s, "\n", " ")
}
