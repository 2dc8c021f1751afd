package backend

import (
	"fmt"
	"time"

	"github.com/mj1618/desktopd/internal/action"
)

// Per-call deadlines for blocking collaborator calls.
const (
	ListTargetsTimeout = 5 * time.Second
	EvalTimeout        = 10 * time.Second
	ScriptTimeout      = 10 * time.Second
	TreeReadTimeout    = 15 * time.Second
)

// callWithTimeout runs fn on its own goroutine and blocks the caller until it
// returns or d elapses. A call that times out keeps running in the background;
// its result is discarded.
func callWithTimeout[T any](d time.Duration, fn func() (T, error)) (T, error) {
	type outcome struct {
		val T
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		v, err := fn()
		done <- outcome{v, err}
	}()

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case o := <-done:
		return o.val, o.err
	case <-timer.C:
		var zero T
		return zero, fmt.Errorf("no response after %s: %w", d, action.ErrTimeout)
	}
}
