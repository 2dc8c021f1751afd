package backend

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"github.com/mj1618/desktopd/internal/action"
)

// Target is one debuggable target (page, worker, extension) on an endpoint.
type Target struct {
	ID    string `yaml:"id"    json:"id"`
	Type  string `yaml:"type"  json:"type"`
	Title string `yaml:"title" json:"title"`
	URL   string `yaml:"url"   json:"url"`
}

// DevTools is the remote debugging protocol collaborator. Endpoints are port
// numbers on the configured host.
type DevTools interface {
	ListTargets(endpoint string, timeout time.Duration) ([]Target, error)
	// Evaluate runs expression in the first page target and returns its
	// JSON-compatible value.
	Evaluate(endpoint, expression string, timeout time.Duration) (any, error)
}

// RodDevTools speaks the Chrome DevTools Protocol through rod. Connections
// are kept per endpoint and dropped when a call fails.
type RodDevTools struct {
	host string

	dial func(endpoint string) (*rod.Browser, context.CancelFunc, error)

	mu    sync.Mutex
	conns map[string]*rodConn
	drops map[string]uint64 // per endpoint, bumped on every drop
}

type rodConn struct {
	browser *rod.Browser
	page    *rod.Page // session on the first page target, attached once
	cancel  context.CancelFunc
}

// NewRodDevTools returns a DevTools client for debugging ports on host.
func NewRodDevTools(host string) *RodDevTools {
	if host == "" {
		host = "127.0.0.1"
	}
	d := &RodDevTools{
		host:  host,
		conns: make(map[string]*rodConn),
		drops: make(map[string]uint64),
	}
	d.dial = d.dialRod
	return d
}

func (d *RodDevTools) dialRod(endpoint string) (*rod.Browser, context.CancelFunc, error) {
	u, err := launcher.ResolveURL(net.JoinHostPort(d.host, endpoint))
	if err != nil {
		return nil, nil, fmt.Errorf("resolve debugger on port %s: %v: %w", endpoint, err, action.ErrBackendUnavailable)
	}
	ctx, cancel := context.WithCancel(context.Background())
	browser := rod.New().ControlURL(u).Context(ctx)
	if err := browser.Connect(); err != nil {
		cancel()
		return nil, nil, fmt.Errorf("connect to port %s: %v: %w", endpoint, err, action.ErrBackendUnavailable)
	}
	return browser, cancel, nil
}

// connect returns the live connection for endpoint, dialing if there is none.
// A dial that was still in flight when the endpoint was dropped is discarded.
func (d *RodDevTools) connect(endpoint string) (*rodConn, error) {
	d.mu.Lock()
	if c, ok := d.conns[endpoint]; ok {
		d.mu.Unlock()
		return c, nil
	}
	gen := d.drops[endpoint]
	d.mu.Unlock()

	browser, cancel, err := d.dial(endpoint)
	if err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.drops[endpoint] != gen {
		cancel()
		return nil, fmt.Errorf("connection to port %s dropped while dialing: %w", endpoint, action.ErrBackendUnavailable)
	}
	if c, ok := d.conns[endpoint]; ok {
		cancel()
		return c, nil
	}
	c := &rodConn{browser: browser, cancel: cancel}
	d.conns[endpoint] = c
	return c, nil
}

// drop forgets the connection for endpoint. Cancelling the context closes
// the websocket, and every session on it, without closing the browser itself.
func (d *RodDevTools) drop(endpoint string) {
	d.mu.Lock()
	c, ok := d.conns[endpoint]
	delete(d.conns, endpoint)
	d.drops[endpoint]++
	d.mu.Unlock()
	if ok {
		c.cancel()
	}
}

// release drops c after a failed call, unless it was already replaced.
func (d *RodDevTools) release(endpoint string, c *rodConn) {
	d.mu.Lock()
	if d.conns[endpoint] != c {
		d.mu.Unlock()
		return
	}
	delete(d.conns, endpoint)
	d.drops[endpoint]++
	d.mu.Unlock()
	c.cancel()
}

// Close disconnects from every endpoint.
func (d *RodDevTools) Close() {
	d.mu.Lock()
	conns := d.conns
	d.conns = make(map[string]*rodConn)
	for ep := range conns {
		d.drops[ep]++
	}
	d.mu.Unlock()
	for _, c := range conns {
		c.cancel()
	}
}

// callConn runs fn on the connection for endpoint within timeout. Whichever side
// gives up first, the worker or the caller, drops the connection.
func callConn[T any](d *RodDevTools, endpoint string, timeout time.Duration, fn func(c *rodConn) (T, error)) (T, error) {
	val, err := callWithTimeout(timeout, func() (T, error) {
		c, err := d.connect(endpoint)
		if err != nil {
			var zero T
			return zero, err
		}
		v, err := fn(c)
		if err != nil {
			d.release(endpoint, c)
		}
		return v, err
	})
	if err != nil {
		d.drop(endpoint)
	}
	return val, err
}

// ListTargets returns every target on endpoint.
func (d *RodDevTools) ListTargets(endpoint string, timeout time.Duration) ([]Target, error) {
	return callConn(d, endpoint, timeout, func(c *rodConn) ([]Target, error) {
		browser := c.browser.Timeout(timeout)
		defer browser.CancelTimeout()
		res, err := proto.TargetGetTargets{}.Call(browser)
		if err != nil {
			return nil, fmt.Errorf("list targets: %v: %w", err, action.ErrProtocol)
		}
		out := make([]Target, 0, len(res.TargetInfos))
		for _, info := range res.TargetInfos {
			out = append(out, Target{
				ID:    string(info.TargetID),
				Type:  string(info.Type),
				Title: info.Title,
				URL:   info.URL,
			})
		}
		return out, nil
	})
}

// Evaluate runs expression in the first page target on endpoint. The page
// session is attached on first use and reused until the connection drops.
func (d *RodDevTools) Evaluate(endpoint, expression string, timeout time.Duration) (any, error) {
	return callConn(d, endpoint, timeout, func(c *rodConn) (any, error) {
		page, err := d.page(c, endpoint, timeout)
		if err != nil {
			return nil, err
		}
		timed := page.Timeout(timeout)
		defer timed.CancelTimeout()
		out, err := proto.RuntimeEvaluate{
			Expression:    expression,
			ReturnByValue: true,
			AwaitPromise:  true,
		}.Call(timed)
		if err != nil {
			return nil, fmt.Errorf("evaluate: %v: %w", err, action.ErrProtocol)
		}
		if out.ExceptionDetails != nil {
			return nil, fmt.Errorf("evaluate: %s: %w", exceptionText(out.ExceptionDetails), action.ErrProtocol)
		}
		if out.Result == nil {
			return nil, nil
		}
		return out.Result.Value.Val(), nil
	})
}

// page returns c's session on the first page target, attaching it if needed.
func (d *RodDevTools) page(c *rodConn, endpoint string, timeout time.Duration) (*rod.Page, error) {
	d.mu.Lock()
	page := c.page
	d.mu.Unlock()
	if page != nil {
		return page, nil
	}

	browser := c.browser.Timeout(timeout)
	defer browser.CancelTimeout()
	res, err := proto.TargetGetTargets{}.Call(browser)
	if err != nil {
		return nil, fmt.Errorf("list targets: %v: %w", err, action.ErrProtocol)
	}
	var targetID proto.TargetTargetID
	for _, info := range res.TargetInfos {
		if string(info.Type) == "page" {
			targetID = info.TargetID
			break
		}
	}
	if targetID == "" {
		return nil, fmt.Errorf("no page target on port %s: %w", endpoint, action.ErrBackendUnavailable)
	}
	// Attach with the connection's own context so the session outlives this call.
	page, err = c.browser.PageFromTarget(targetID)
	if err != nil {
		return nil, fmt.Errorf("attach to target %s: %v: %w", targetID, err, action.ErrProtocol)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if c.page == nil {
		c.page = page
	}
	return c.page, nil
}

func exceptionText(ex *proto.RuntimeExceptionDetails) string {
	if ex.Exception != nil && ex.Exception.Description != "" {
		return ex.Exception.Description
	}
	return ex.Text
}
