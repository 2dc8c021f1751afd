package platform

import (
	"fmt"
	"strconv"
	"strings"
)

// Bounds represents a screen rectangle.
type Bounds struct {
	X, Y, Width, Height int
}

// Array returns the bounds in element [x, y, width, height] form.
func (b Bounds) Array() [4]int {
	return [4]int{b.X, b.Y, b.Width, b.Height}
}

// ParseBBox parses a "x,y,w,h" string into a Bounds.
func ParseBBox(s string) (*Bounds, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return nil, fmt.Errorf("invalid bbox %q: expected x,y,w,h", s)
	}
	vals := make([]int, 4)
	for i, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("invalid bbox %q: %w", s, err)
		}
		vals[i] = v
	}
	return &Bounds{X: vals[0], Y: vals[1], Width: vals[2], Height: vals[3]}, nil
}

// ReadOptions controls what elements to read.
type ReadOptions struct {
	App   string // Filter by application name
	PID   int    // Filter by process ID (0 = unset)
	Depth int    // Max traversal depth (0 = unlimited)
}

// ActionOptions configures which element to act on and what action to perform.
type ActionOptions struct {
	App    string // Scope to application
	PID    int    // Scope to process
	ID     int    // Element ID (from read output)
	Action string // Action to perform: "press", "cancel", "pick", "increment", "decrement", "confirm", "showMenu", "raise"
}

// SetValueOptions configures a direct value write.
type SetValueOptions struct {
	App       string
	PID       int
	ID        int
	Value     string
	Attribute string // Attribute to set (default: value)
}

// ScriptLanguage selects the osascript language.
type ScriptLanguage string

const (
	AppleScript ScriptLanguage = "AppleScript"
	JavaScript  ScriptLanguage = "JavaScript"
)
