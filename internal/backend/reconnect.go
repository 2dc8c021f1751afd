package backend

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/mj1618/desktopd/internal/action"
)

// Reconnect defaults.
const (
	DefaultMaxRetries = 3
	InitialBackoff    = time.Second
	MaxBackoff        = 30 * time.Second
)

// RediscoveryEndpoints are the debugging ports scanned, in order, once an
// endpoint has exhausted its retries.
var RediscoveryEndpoints = []string{"9222", "9223", "9224", "9225", "9229"}

type connStatus int

const (
	statusIdle connStatus = iota
	statusConnected
	statusBackoff
	statusDead
)

// ReconnectState is the per-endpoint retry bookkeeping.
type ReconnectState struct {
	RetryCount    int           `yaml:"retry_count"     json:"retry_count"`
	LastAttemptAt time.Time     `yaml:"last_attempt_at" json:"last_attempt_at"`
	Backoff       time.Duration `yaml:"backoff"         json:"backoff"`
	Health        action.Health `yaml:"health"          json:"health"`
}

type endpointState struct {
	retryCount    int
	lastAttemptAt time.Time
	backoff       time.Duration
	status        connStatus
}

func (s *endpointState) health() action.Health {
	switch s.status {
	case statusConnected:
		return action.HealthHealthy
	case statusBackoff:
		return action.HealthReconnecting
	case statusDead:
		return action.HealthDead
	default:
		return action.HealthUnknown
	}
}

// Reconnector retries a stateful backend's operations against an endpoint
// with exponential backoff, then scans alternate endpoints.
type Reconnector struct {
	mu         sync.Mutex
	states     map[string]*endpointState
	maxRetries int
	alternates []string
	sleep      func(time.Duration)
	now        func() time.Time
	log        zerolog.Logger
}

// ReconnectOption configures a Reconnector.
type ReconnectOption func(*Reconnector)

// WithMaxRetries sets the number of retries after the first attempt.
func WithMaxRetries(n int) ReconnectOption {
	return func(r *Reconnector) { r.maxRetries = n }
}

// WithAlternates replaces the rediscovery endpoint list.
func WithAlternates(endpoints ...string) ReconnectOption {
	return func(r *Reconnector) { r.alternates = endpoints }
}

// WithSleep replaces time.Sleep between retries.
func WithSleep(fn func(time.Duration)) ReconnectOption {
	return func(r *Reconnector) { r.sleep = fn }
}

// WithReconnectClock replaces time.Now for attempt timestamps.
func WithReconnectClock(fn func() time.Time) ReconnectOption {
	return func(r *Reconnector) { r.now = fn }
}

// NewReconnector returns a Reconnector with the default retry policy.
func NewReconnector(log zerolog.Logger, opts ...ReconnectOption) *Reconnector {
	r := &Reconnector{
		states:     make(map[string]*endpointState),
		maxRetries: DefaultMaxRetries,
		alternates: RediscoveryEndpoints,
		sleep:      time.Sleep,
		now:        time.Now,
		log:        log,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run calls op against endpoint until it succeeds or retries are exhausted,
// sleeping with doubling backoff between attempts. When the endpoint gives up
// every alternate endpoint is tried once. It returns the endpoint that served
// the call. The lock is never held while op or sleep runs.
func (r *Reconnector) Run(endpoint string, op func(endpoint string) error) (string, error) {
	var err error
	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		r.markAttempt(endpoint)
		if err = op(endpoint); err == nil {
			r.markConnected(endpoint)
			return endpoint, nil
		}
		if attempt == r.maxRetries {
			break
		}
		delay := r.markBackoff(endpoint)
		r.log.Debug().
			Str("endpoint", endpoint).
			Int("attempt", attempt+1).
			Dur("backoff", delay).
			Err(err).
			Msg("endpoint call failed, retrying")
		r.sleep(delay)
	}
	r.markDead(endpoint)
	r.log.Warn().Str("endpoint", endpoint).Err(err).Msg("endpoint dead, scanning alternates")

	for _, alt := range r.alternates {
		if alt == endpoint {
			continue
		}
		r.markAttempt(alt)
		if altErr := op(alt); altErr == nil {
			r.markConnected(alt)
			r.log.Info().Str("from", endpoint).Str("to", alt).Msg("rediscovered endpoint")
			return alt, nil
		}
		r.markDead(alt)
	}
	return endpoint, fmt.Errorf("endpoint %s failed after %d attempts and rediscovery: %w", endpoint, r.maxRetries+1, err)
}

func (r *Reconnector) state(endpoint string) *endpointState {
	s, ok := r.states[endpoint]
	if !ok {
		s = &endpointState{backoff: InitialBackoff}
		r.states[endpoint] = s
	}
	return s
}

func (r *Reconnector) markAttempt(endpoint string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state(endpoint).lastAttemptAt = r.now()
}

func (r *Reconnector) markConnected(endpoint string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.state(endpoint)
	s.retryCount = 0
	s.backoff = InitialBackoff
	s.status = statusConnected
}

// markBackoff records a failed attempt and returns how long to wait.
func (r *Reconnector) markBackoff(endpoint string) time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.state(endpoint)
	delay := min(s.backoff, MaxBackoff)
	s.backoff = min(s.backoff*2, MaxBackoff)
	s.retryCount++
	s.status = statusBackoff
	return delay
}

func (r *Reconnector) markDead(endpoint string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state(endpoint).status = statusDead
}

// State returns a copy of the bookkeeping for endpoint.
func (r *Reconnector) State(endpoint string) (ReconnectState, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.states[endpoint]
	if !ok {
		return ReconnectState{}, false
	}
	return ReconnectState{
		RetryCount:    s.retryCount,
		LastAttemptAt: s.lastAttemptAt,
		Backoff:       s.backoff,
		Health:        s.health(),
	}, true
}

// Endpoints returns a copy of every tracked endpoint's state.
func (r *Reconnector) Endpoints() map[string]ReconnectState {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]ReconnectState, len(r.states))
	for ep, s := range r.states {
		out[ep] = ReconnectState{
			RetryCount:    s.retryCount,
			LastAttemptAt: s.lastAttemptAt,
			Backoff:       s.backoff,
			Health:        s.health(),
		}
	}
	return out
}

// Health aggregates every endpoint: any connected endpoint makes the backend
// healthy, otherwise any endpoint in backoff makes it reconnecting, all dead
// makes it dead, anything else is degraded.
func (r *Reconnector) Health() action.Health {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.states) == 0 {
		return action.HealthUnknown
	}
	dead := 0
	backoff := false
	for _, s := range r.states {
		switch s.status {
		case statusConnected:
			return action.HealthHealthy
		case statusBackoff:
			backoff = true
		case statusDead:
			dead++
		}
	}
	switch {
	case backoff:
		return action.HealthReconnecting
	case dead == len(r.states):
		return action.HealthDead
	default:
		return action.HealthDegraded
	}
}
