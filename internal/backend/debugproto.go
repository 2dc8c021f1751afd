package backend

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/mj1618/desktopd/internal/action"
	"github.com/mj1618/desktopd/internal/model"
)

// DefaultDebugEndpoint is the debugging port used when an action names none.
const DefaultDebugEndpoint = "9222"

// DebugProtocolBackend drives Chromium browsers and Electron apps over their
// remote debugging endpoint. It is the only stateful backend: every call goes
// through a Reconnector.
type DebugProtocolBackend struct {
	tools     DevTools
	reconnect *Reconnector
	counters  Counters
	log       zerolog.Logger

	mu       sync.Mutex
	endpoint string // default endpoint, replaced by a rediscovered one
}

// NewDebugProtocol returns the debug-protocol backend. An empty endpoint
// selects DefaultDebugEndpoint.
func NewDebugProtocol(tools DevTools, endpoint string, log zerolog.Logger, opts ...ReconnectOption) *DebugProtocolBackend {
	if endpoint == "" {
		endpoint = DefaultDebugEndpoint
	}
	log = log.With().Str("backend", string(DebugProtocol)).Logger()
	return &DebugProtocolBackend{
		tools:     tools,
		reconnect: NewReconnector(log, opts...),
		endpoint:  endpoint,
		log:       log,
	}
}

func (b *DebugProtocolBackend) Name() Name { return DebugProtocol }

func (b *DebugProtocolBackend) CanHandle(app, bundleID string) bool {
	return devToolsApps.match(app, bundleID)
}

func (b *DebugProtocolBackend) Health() action.Health { return b.reconnect.Health() }

func (b *DebugProtocolBackend) Stats() Stats { return b.counters.Stats() }

// Endpoints exposes the reconnect bookkeeping for diagnostics.
func (b *DebugProtocolBackend) Endpoints() map[string]ReconnectState {
	return b.reconnect.Endpoints()
}

func (b *DebugProtocolBackend) Execute(a action.Action) action.Result {
	res := b.execute(a)
	b.counters.Record(res)
	return res
}

func (b *DebugProtocolBackend) execute(a action.Action) action.Result {
	if b.tools == nil {
		return action.Failure(string(DebugProtocol), fmt.Errorf("no debugging client: %w", action.ErrBackendUnavailable))
	}
	endpoint := a.Endpoint
	if endpoint == "" {
		endpoint = b.defaultEndpoint()
	}

	var (
		payload map[string]any
		snap    *model.Snapshot
		actErr  error // element-level outcome, not an endpoint failure
		op      func(ep string) error
	)
	switch a.Kind {
	case action.KindListTargets:
		op = func(ep string) error {
			targets, err := b.tools.ListTargets(ep, a.TimeoutOr(ListTargetsTimeout))
			if err != nil {
				return err
			}
			payload = map[string]any{"targets": targets, "count": len(targets)}
			return nil
		}
	case action.KindEvaluate:
		if a.Expression == "" {
			return action.Failure(string(DebugProtocol), fmt.Errorf("evaluate requires an expression"))
		}
		op = func(ep string) error {
			val, err := b.tools.Evaluate(ep, a.Expression, a.TimeoutOr(EvalTimeout))
			if err != nil {
				return err
			}
			payload = map[string]any{"value": val}
			return nil
		}
	case action.KindRead:
		op = func(ep string) error {
			val, err := b.tools.Evaluate(ep, domSnapshotJS, a.TimeoutOr(EvalTimeout))
			if err != nil {
				return err
			}
			s, err := snapshotFromValue(a.App, val)
			if err != nil {
				return err
			}
			s.BundleID = a.BundleID
			s.PID = a.PID
			snap = s
			return nil
		}
	case action.KindPress, action.KindSetValue:
		if a.Element == nil {
			return action.Failure(string(DebugProtocol), fmt.Errorf("%s needs a resolved element: %w", a.Kind, action.ErrStaleReference))
		}
		setValue := a.Kind == action.KindSetValue
		script := domActionJS(a.Element, setValue, a.Value)
		op = func(ep string) error {
			val, err := b.tools.Evaluate(ep, script, a.TimeoutOr(EvalTimeout))
			if err != nil {
				return err
			}
			payload = map[string]any{"ref": a.Ref}
			if setValue {
				payload["value"] = a.Value
			} else {
				payload["action"] = "press"
			}
			actErr = domActionResult(a.Ref, val)
			return nil
		}
	default:
		return action.Failure(string(DebugProtocol), fmt.Errorf("%s does not support %q: %w", DebugProtocol, a.Kind, action.ErrBackendUnavailable))
	}

	used, err := b.reconnect.Run(endpoint, op)
	name := string(DebugProtocol)
	if used != endpoint {
		name = DebugProtocol.At(used)
	}
	if err != nil {
		return action.Failure(name, err)
	}
	if used != endpoint && a.Endpoint == "" {
		b.adoptEndpoint(endpoint, used)
	}
	if actErr != nil {
		return action.Failure(name, actErr)
	}

	var res action.Result
	if snap != nil {
		res = action.SucceedWithSnapshot(name, snap)
	} else {
		res = action.Succeed(name, payload)
	}
	res.Payload["endpoint"] = used
	if used != endpoint {
		res.Payload["rediscovered_endpoint"] = used
		b.log.Info().Str("requested", endpoint).Str("used", used).Msg("served from rediscovered endpoint")
	}
	return res
}

func (b *DebugProtocolBackend) defaultEndpoint() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.endpoint
}

// adoptEndpoint makes a rediscovered endpoint the default for actions that
// name none, unless another call already moved it.
func (b *DebugProtocolBackend) adoptEndpoint(from, to string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.endpoint == from {
		b.endpoint = to
	}
}
