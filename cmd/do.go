package cmd

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/mj1618/desktopd/internal/action"
	"github.com/mj1618/desktopd/internal/model"
	"github.com/mj1618/desktopd/internal/output"
	"github.com/mj1618/desktopd/internal/server"
)

// DoResult is the output of a batch do command.
type DoResult struct {
	OK        bool         `yaml:"ok"              json:"ok"`
	Action    string       `yaml:"action"          json:"action"`
	Steps     int          `yaml:"steps"           json:"steps"`
	Completed int          `yaml:"completed"       json:"completed"`
	Error     string       `yaml:"error,omitempty" json:"error,omitempty"`
	Results   []StepResult `yaml:"results"         json:"results"`
}

// StepResult is the output for a single step within a batch.
type StepResult struct {
	Step       int                 `yaml:"step"                  json:"step"`
	OK         bool                `yaml:"ok"                    json:"ok"`
	Action     string              `yaml:"action"                json:"action"`
	Backend    string              `yaml:"backend,omitempty"     json:"backend,omitempty"`
	Error      string              `yaml:"error,omitempty"       json:"error,omitempty"`
	ErrorClass string              `yaml:"error_class,omitempty" json:"error_class,omitempty"`
	Payload    map[string]any      `yaml:"payload,omitempty"     json:"payload,omitempty"`
	Elements   []model.FlatElement `yaml:"elements,omitempty"    json:"elements,omitempty"`
}

var doCmd = &cobra.Command{
	Use:   "do",
	Short: "Execute multiple actions in a batch",
	Long: `Execute a sequence of actions from a YAML list on stdin.

Each step is an action name with its parameters as a map. Steps share one
snapshot cache, so refs printed by a read step can be pressed by later steps.
By default execution stops on the first error.

Supported step types: read, press, set-value, evaluate, list-targets,
run-script, page-script, sleep

Example:
  desktopd do --app "Notes" <<'EOF'
  - read: {}
  - press: { ref: e3 }
  - set-value: { ref: e5, value: "groceries" }
  - sleep: { ms: 200 }
  - read: { fresh: true }
  EOF`,
	RunE: runDo,
}

func init() {
	rootCmd.AddCommand(doCmd)
	doCmd.Flags().String("app", "", "Default app for all steps (can be overridden per-step)")
	doCmd.Flags().Bool("stop-on-error", true, "Stop execution on first error (default: true)")
}

func runDo(cmd *cobra.Command, args []string) error {
	defaultApp, _ := cmd.Flags().GetString("app")
	stopOnError, _ := cmd.Flags().GetBool("stop-on-error")

	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return fmt.Errorf("failed to read stdin: %w", err)
	}
	steps, err := parseSteps(data)
	if err != nil {
		return err
	}

	st := newStack(appConfig, logger)
	defer st.Close()

	return output.Print(runSteps(st.dispatcher, steps, defaultApp, stopOnError, time.Sleep))
}

func parseSteps(data []byte) ([]map[string]map[string]interface{}, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("no steps provided on stdin, pipe a YAML list of actions")
	}
	var steps []map[string]map[string]interface{}
	if err := yaml.Unmarshal(data, &steps); err != nil {
		return nil, fmt.Errorf("failed to parse YAML steps: %w", err)
	}
	if len(steps) == 0 {
		return nil, fmt.Errorf("no steps provided, expected a YAML list of actions")
	}
	return steps, nil
}

// runSteps executes steps in order against one dispatcher.
func runSteps(d *server.Dispatcher, steps []map[string]map[string]interface{}, defaultApp string, stopOnError bool, sleep func(time.Duration)) DoResult {
	results := make([]StepResult, 0, len(steps))
	completed := 0
	var lastErr string

	for i, step := range steps {
		stepNum := i + 1
		if len(step) != 1 {
			msg := fmt.Sprintf("expected exactly one action key, got %d", len(step))
			results = append(results, StepResult{Step: stepNum, Error: msg})
			lastErr = fmt.Sprintf("step %d: %s", stepNum, msg)
			if stopOnError {
				break
			}
			continue
		}

		var result StepResult
		for name, params := range step {
			result = executeStep(d, name, params, defaultApp, sleep)
		}
		result.Step = stepNum
		results = append(results, result)
		if result.OK {
			completed++
			continue
		}
		lastErr = fmt.Sprintf("step %d: %s", stepNum, result.Error)
		if stopOnError {
			break
		}
	}

	return DoResult{
		OK:        lastErr == "",
		Action:    "do",
		Steps:     len(steps),
		Completed: completed,
		Error:     lastErr,
		Results:   results,
	}
}

func executeStep(d *server.Dispatcher, name string, params map[string]interface{}, defaultApp string, sleep func(time.Duration)) StepResult {
	if name == "sleep" {
		sleep(time.Duration(intParam(params, "ms", 0)) * time.Millisecond)
		return StepResult{OK: true, Action: name}
	}

	kind := action.Kind(name)
	a := action.Action{
		Kind:     kind,
		App:      stringParam(params, "app", defaultApp),
		BundleID: stringParam(params, "bundle-id", ""),
		PID:      intParam(params, "pid", 0),
		Endpoint: stringParam(params, "endpoint", ""),
		Timeout:  time.Duration(intParam(params, "timeout-ms", 0)) * time.Millisecond,
	}

	var res action.Result
	switch kind {
	case action.KindRead:
		a.Depth = intParam(params, "depth", 0)
		res = d.Read(a, boolParam(params, "fresh", false))
	case action.KindPress, action.KindSetValue:
		a.Ref = stringParam(params, "ref", "")
		a.Value = stringParam(params, "value", "")
		res = d.Do(a)
	case action.KindEvaluate:
		a.Expression = stringParam(params, "expression", "")
		res = d.Do(a)
	case action.KindRunScript, action.KindPageScript:
		a.Expression = stringParam(params, "script", "")
		res = d.Do(a)
	case action.KindListTargets:
		res = d.Do(a)
	default:
		return StepResult{Action: name, Error: fmt.Sprintf("unknown step type: %s", name)}
	}

	out := StepResult{
		OK:         res.Success,
		Action:     name,
		Backend:    res.BackendUsed,
		Error:      res.Error,
		ErrorClass: action.Classify(res.Err),
		Payload:    res.Payload,
	}
	if res.Success && res.Snapshot != nil {
		out.Elements = model.FlattenElements(res.Snapshot.Elements)
	}
	return out
}

// Parameter extraction helpers for step maps.

func stringParam(params map[string]interface{}, key, defaultVal string) string {
	if v, ok := params[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
		return fmt.Sprintf("%v", v)
	}
	return defaultVal
}

func intParam(params map[string]interface{}, key string, defaultVal int) int {
	if v, ok := params[key]; ok {
		switch n := v.(type) {
		case int:
			return n
		case float64:
			return int(n)
		case int64:
			return int(n)
		}
	}
	return defaultVal
}

func boolParam(params map[string]interface{}, key string, defaultVal bool) bool {
	if v, ok := params[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return defaultVal
}
