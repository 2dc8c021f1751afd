package output

import (
	"fmt"
	"io"
	"os"

	"github.com/mj1618/desktopd/internal/model"
)

// Format represents the output format.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// OutputFormat is the current output format, set by the root command's --format flag.
var OutputFormat Format = FormatYAML

// PrettyOutput enables pretty-printing for JSON output.
var PrettyOutput bool

// ParseFormat validates a --format value.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatYAML, FormatJSON:
		return Format(s), nil
	default:
		return "", fmt.Errorf("unsupported format: %s (use yaml or json)", s)
	}
}

// ReadResult is the top-level output of the `read` command.
type ReadResult struct {
	App      string          `yaml:"app,omitempty"     json:"app,omitempty"`
	PID      int             `yaml:"pid,omitempty"     json:"pid,omitempty"`
	Window   string          `yaml:"window,omitempty"  json:"window,omitempty"`
	URL      string          `yaml:"url,omitempty"     json:"url,omitempty"`
	Backend  string          `yaml:"backend,omitempty" json:"backend,omitempty"`
	TS       int64           `yaml:"ts"                json:"ts"`
	Elements []model.Element `yaml:"elements"          json:"elements"`
}

// ReadFlatResult is the top-level output when --flat is used.
type ReadFlatResult struct {
	App      string              `yaml:"app,omitempty"     json:"app,omitempty"`
	PID      int                 `yaml:"pid,omitempty"     json:"pid,omitempty"`
	Window   string              `yaml:"window,omitempty"  json:"window,omitempty"`
	URL      string              `yaml:"url,omitempty"     json:"url,omitempty"`
	Backend  string              `yaml:"backend,omitempty" json:"backend,omitempty"`
	TS       int64               `yaml:"ts"                json:"ts"`
	Elements []model.FlatElement `yaml:"elements"          json:"elements"`
}

// NewReadResult wraps a snapshot with the backend that produced it.
func NewReadResult(snap *model.Snapshot, backend string) ReadResult {
	return ReadResult{
		App:      snap.App,
		PID:      snap.PID,
		Window:   snap.Window,
		URL:      snap.URL,
		Backend:  backend,
		TS:       snap.TS,
		Elements: snap.Elements,
	}
}

// NewReadFlatResult is NewReadResult with the tree flattened into paths.
func NewReadFlatResult(snap *model.Snapshot, backend string) ReadFlatResult {
	return ReadFlatResult{
		App:      snap.App,
		PID:      snap.PID,
		Window:   snap.Window,
		URL:      snap.URL,
		Backend:  backend,
		TS:       snap.TS,
		Elements: model.FlattenElements(snap.Elements),
	}
}

// Print serializes v to stdout in the current output format.
func Print(v interface{}) error {
	return Fprint(os.Stdout, v)
}

// Fprint serializes v to w in the current output format.
func Fprint(w io.Writer, v interface{}) error {
	switch OutputFormat {
	case FormatJSON:
		return PrintJSON(w, v, PrettyOutput)
	case FormatYAML:
		return PrintYAML(w, v)
	default:
		return fmt.Errorf("unsupported output format: %s", OutputFormat)
	}
}
