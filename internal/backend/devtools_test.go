package backend

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-rod/rod"

	"github.com/mj1618/desktopd/internal/action"
)

// gatedDial hands out unconnected browsers once release is closed and counts
// how many of their connections were cancelled.
type gatedDial struct {
	release   chan struct{}
	dialed    chan struct{}
	cancelled atomic.Int32
}

func newGatedDial() *gatedDial {
	return &gatedDial{release: make(chan struct{}), dialed: make(chan struct{}, 8)}
}

func (g *gatedDial) dial(endpoint string) (*rod.Browser, context.CancelFunc, error) {
	g.dialed <- struct{}{}
	<-g.release
	return rod.New(), func() { g.cancelled.Add(1) }, nil
}

func TestRodDevTools_DialStraddlingDropIsDiscarded(t *testing.T) {
	d := NewRodDevTools("")
	g := newGatedDial()
	d.dial = g.dial

	errc := make(chan error, 1)
	go func() {
		_, err := d.connect("9222")
		errc <- err
	}()
	<-g.dialed
	d.drop("9222")
	close(g.release)

	if err := <-errc; !errors.Is(err, action.ErrBackendUnavailable) {
		t.Fatalf("connect err = %v, want ErrBackendUnavailable", err)
	}
	if n := len(d.conns); n != 0 {
		t.Errorf("%d connections stored after drop", n)
	}
	if g.cancelled.Load() != 1 {
		t.Error("the late connection should be closed")
	}
}

func TestRodDevTools_TimedOutCallLeavesNoConnection(t *testing.T) {
	d := NewRodDevTools("")
	g := newGatedDial()
	d.dial = g.dial

	_, err := d.ListTargets("9222", 20*time.Millisecond)
	if !errors.Is(err, action.ErrTimeout) {
		t.Fatalf("err = %v, want ErrTimeout", err)
	}
	close(g.release)

	deadline := time.Now().Add(time.Second)
	for g.cancelled.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if g.cancelled.Load() != 1 {
		t.Fatal("abandoned dial was not closed")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.conns) != 0 {
		t.Errorf("abandoned dial stored a connection: %v", d.conns)
	}
}

func TestRodDevTools_ConnectReusesConnection(t *testing.T) {
	d := NewRodDevTools("")
	g := newGatedDial()
	close(g.release)
	d.dial = g.dial

	first, err := d.connect("9222")
	if err != nil {
		t.Fatal(err)
	}
	second, err := d.connect("9222")
	if err != nil {
		t.Fatal(err)
	}
	if first != second || len(g.dialed) != 1 {
		t.Errorf("dialed %d times, want one shared connection", len(g.dialed))
	}
}

func TestRodDevTools_ReleaseKeepsReplacement(t *testing.T) {
	d := NewRodDevTools("")
	g := newGatedDial()
	close(g.release)
	d.dial = g.dial

	old, _ := d.connect("9222")
	d.drop("9222")
	current, _ := d.connect("9222")

	d.release("9222", old)
	if d.conns["9222"] != current {
		t.Error("releasing a dropped connection must not drop its replacement")
	}
	d.release("9222", current)
	if _, ok := d.conns["9222"]; ok {
		t.Error("releasing the current connection should drop it")
	}
	if g.cancelled.Load() != 2 {
		t.Errorf("cancelled = %d, want 2", g.cancelled.Load())
	}
}

func TestRodDevTools_PageSessionReused(t *testing.T) {
	d := NewRodDevTools("")
	attached := &rod.Page{}
	c := &rodConn{page: attached}

	// A cached session is returned without touching the browser.
	for range 3 {
		page, err := d.page(c, "9222", time.Second)
		if err != nil {
			t.Fatal(err)
		}
		if page != attached {
			t.Fatal("page session was not reused")
		}
	}
}

func TestRodDevTools_UnreachableEndpoint(t *testing.T) {
	d := NewRodDevTools("")
	d.dial = func(endpoint string) (*rod.Browser, context.CancelFunc, error) {
		return nil, nil, fmt.Errorf("connect to port %s: refused: %w", endpoint, action.ErrBackendUnavailable)
	}
	_, err := d.Evaluate("9222", "1", time.Second)
	if !errors.Is(err, action.ErrBackendUnavailable) {
		t.Fatalf("err = %v, want ErrBackendUnavailable", err)
	}
	if len(d.conns) != 0 {
		t.Error("failed dial must not store a connection")
	}
}
