package platform

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// OSAScript runs scripts through the osascript command.
type OSAScript struct {
	// Path to the osascript binary; empty means look it up on PATH.
	Path string
}

// waitDelay bounds how long Run waits for output pipes after the process is killed.
const waitDelay = 500 * time.Millisecond

// ErrScriptTimeout is returned when a script is killed by its context deadline.
var ErrScriptTimeout = errors.New("script timed out")

// Run executes script and returns its trimmed standard output. On failure the
// returned error carries osascript's stderr so callers can classify it.
func (o OSAScript) Run(ctx context.Context, lang ScriptLanguage, script string) (string, error) {
	bin := o.Path
	if bin == "" {
		bin = "osascript"
	}
	cmd := exec.CommandContext(ctx, bin, "-l", string(lang), "-e", script)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = waitDelay

	if err := cmd.Run(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return "", ErrScriptTimeout
		}
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			return "", fmt.Errorf("osascript: %w", err)
		}
		return "", fmt.Errorf("osascript: %s: %w", msg, err)
	}
	return strings.TrimSpace(stdout.String()), nil
}
