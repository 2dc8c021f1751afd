package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mj1618/desktopd/internal/action"
	"github.com/mj1618/desktopd/internal/output"
)

// ActionResult is the output of single-action commands.
type ActionResult struct {
	OK         bool           `yaml:"ok"                    json:"ok"`
	Action     string         `yaml:"action"                json:"action"`
	Backend    string         `yaml:"backend,omitempty"     json:"backend,omitempty"`
	Error      string         `yaml:"error,omitempty"       json:"error,omitempty"`
	ErrorClass string         `yaml:"error_class,omitempty" json:"error_class,omitempty"`
	Payload    map[string]any `yaml:"payload,omitempty"     json:"payload,omitempty"`
}

func newActionResult(res action.Result, kind action.Kind) ActionResult {
	return ActionResult{
		OK:         res.Success,
		Action:     string(kind),
		Backend:    res.BackendUsed,
		Error:      res.Error,
		ErrorClass: action.Classify(res.Err),
		Payload:    res.Payload,
	}
}

var evalCmd = &cobra.Command{
	Use:   "eval <expression>",
	Short: "Evaluate JavaScript in a browser page over the debug protocol",
	Long: `Evaluate an expression in the first page of a remote debugging endpoint.
A dead endpoint is retried with backoff and then rediscovered on the usual
debugging ports.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSingle(cmd, action.KindEvaluate, args[0])
	},
}

var targetsCmd = &cobra.Command{
	Use:   "targets",
	Short: "List debug-protocol targets (pages, workers, extensions)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSingle(cmd, action.KindListTargets, "")
	},
}

var scriptCmd = &cobra.Command{
	Use:   "script <source>",
	Short: "Run an AppleScript, or JavaScript in a browser tab with --page",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if page, _ := cmd.Flags().GetBool("page"); page {
			if _, err := requireString(cmd, "app"); err != nil {
				return err
			}
			return runSingle(cmd, action.KindPageScript, args[0])
		}
		return runSingle(cmd, action.KindRunScript, args[0])
	},
}

func init() {
	for _, c := range []*cobra.Command{evalCmd, targetsCmd, scriptCmd} {
		rootCmd.AddCommand(c)
		c.Flags().String("app", "", "Target application name")
		c.Flags().String("bundle-id", "", "Target application bundle identifier")
		c.Flags().Duration("timeout", 0, "Backend deadline (0 = backend default)")
	}
	evalCmd.Flags().String("endpoint", "", "Debugging port to try first (default devtools.port)")
	targetsCmd.Flags().String("endpoint", "", "Debugging port to try first (default devtools.port)")
	scriptCmd.Flags().Bool("page", false, "Run JavaScript in the app's active tab instead of AppleScript")
}

func runSingle(cmd *cobra.Command, kind action.Kind, source string) error {
	app, _ := cmd.Flags().GetString("app")
	bundleID, _ := cmd.Flags().GetString("bundle-id")
	timeout, _ := cmd.Flags().GetDuration("timeout")
	var endpoint string
	if cmd.Flags().Lookup("endpoint") != nil {
		endpoint, _ = cmd.Flags().GetString("endpoint")
	}

	st := newStack(appConfig, logger)
	defer st.Close()

	res := st.dispatcher.Do(action.Action{
		Kind:       kind,
		App:        app,
		BundleID:   bundleID,
		Endpoint:   endpoint,
		Expression: source,
		Timeout:    timeout,
	})
	if err := output.Print(newActionResult(res, kind)); err != nil {
		return err
	}
	if !res.Success {
		return fmt.Errorf("%s: %w", kind, res.Err)
	}
	return nil
}
