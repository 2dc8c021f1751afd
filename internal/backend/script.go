package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mj1618/desktopd/internal/action"
	"github.com/mj1618/desktopd/internal/platform"
)

// Script error markers that mean the OS refused automation access.
var permissionMarkers = []string{
	"-1743",  // not authorized to send Apple events
	"-1719",  // assistive access not allowed
	"-25211", // accessibility API disabled
	"not allowed assistive access",
	"not authorized to send apple events",
	"executing javascript through applescript is turned off",
	"allow javascript from apple events",
}

// classifyScriptError maps a script runner failure onto the error taxonomy.
func classifyScriptError(err error) error {
	if errors.Is(err, platform.ErrScriptTimeout) {
		return fmt.Errorf("%v: %w", err, action.ErrTimeout)
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range permissionMarkers {
		if strings.Contains(msg, marker) {
			return fmt.Errorf("%v: %w", err, action.ErrPermissionDenied)
		}
	}
	return err
}

// runScript runs script with a deadline and classifies any failure.
func runScript(runner platform.ScriptRunner, lang platform.ScriptLanguage, script string, timeout time.Duration) (string, error) {
	if runner == nil {
		return "", fmt.Errorf("no script runner: %w", action.ErrBackendUnavailable)
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	out, err := runner.Run(ctx, lang, script)
	if err != nil {
		return "", classifyScriptError(err)
	}
	return out, nil
}

// jsString renders s as a JavaScript string literal.
func jsString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}
