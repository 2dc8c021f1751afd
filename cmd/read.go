package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mj1618/desktopd/internal/action"
	"github.com/mj1618/desktopd/internal/model"
	"github.com/mj1618/desktopd/internal/output"
	"github.com/mj1618/desktopd/internal/platform"
)

var readCmd = &cobra.Command{
	Use:   "read",
	Short: "Read an application's UI through the best available backend",
	Long: `Route a single read through the backend chain and print the snapshot.

The tree walk is tried first; browsers fall through to the debug protocol and
page scripting, and an empty tree triggers a second opinion from the OS or
page scripting backend.`,
	RunE: runRead,
}

func init() {
	rootCmd.AddCommand(readCmd)
	readCmd.Flags().String("app", "", "Application name (required)")
	readCmd.Flags().String("bundle-id", "", "Application bundle identifier")
	readCmd.Flags().Int("pid", 0, "Filter to a specific process by PID")
	readCmd.Flags().Int("depth", 0, "Max depth to traverse (0 = unlimited)")
	readCmd.Flags().String("roles", "", "Comma-separated roles to include (e.g. \"btn,input\" or \"interactive\")")
	readCmd.Flags().String("bbox", "", "Only include elements within bounding box (x,y,w,h)")
	readCmd.Flags().String("text", "", "Only include elements whose text contains this substring")
	readCmd.Flags().Bool("flat", false, "Flatten the tree into a list with paths")
	readCmd.Flags().Duration("timeout", 0, "Per-backend deadline (0 = backend default)")
}

func runRead(cmd *cobra.Command, args []string) error {
	app, err := requireString(cmd, "app")
	if err != nil {
		return err
	}
	bundleID, _ := cmd.Flags().GetString("bundle-id")
	pid, _ := cmd.Flags().GetInt("pid")
	depth, _ := cmd.Flags().GetInt("depth")
	timeout, _ := cmd.Flags().GetDuration("timeout")

	st := newStack(appConfig, logger)
	defer st.Close()

	res := st.dispatcher.Read(action.Action{
		Kind:     action.KindRead,
		App:      app,
		BundleID: bundleID,
		PID:      pid,
		Depth:    depth,
		Timeout:  timeout,
	}, true)
	if !res.Success {
		return fmt.Errorf("read %s: %w", app, res.Err)
	}

	snap, err := filterSnapshot(cmd, res.Snapshot)
	if err != nil {
		return err
	}
	if flat, _ := cmd.Flags().GetBool("flat"); flat {
		return output.Print(output.NewReadFlatResult(snap, res.BackendUsed))
	}
	return output.Print(output.NewReadResult(snap, res.BackendUsed))
}

// filterSnapshot applies the role, bbox and text flags to a copy of snap.
func filterSnapshot(cmd *cobra.Command, snap *model.Snapshot) (*model.Snapshot, error) {
	out := snap.Clone()

	var bbox *[4]int
	if s, _ := cmd.Flags().GetString("bbox"); s != "" {
		b, err := platform.ParseBBox(s)
		if err != nil {
			return nil, err
		}
		arr := b.Array()
		bbox = &arr
	}
	var roles []string
	if s, _ := cmd.Flags().GetString("roles"); s != "" {
		roles = model.ExpandRoles(strings.Split(s, ","))
	}
	out.Elements = model.FilterElements(out.Elements, roles, bbox)
	if text, _ := cmd.Flags().GetString("text"); text != "" {
		out.Elements = model.FilterByText(out.Elements, text)
	}
	out.Elements = model.PruneEmptyGroups(out.Elements)
	return out, nil
}
