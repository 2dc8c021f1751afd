package backend

import (
	"sync"
	"time"

	"github.com/mj1618/desktopd/internal/action"
)

// statsWindow is the number of most recent outcomes the success rate covers.
const statsWindow = 64

// Stats is a read-only view of a backend's counters.
type Stats struct {
	Successes   int       `yaml:"successes"            json:"successes"`
	Failures    int       `yaml:"failures"             json:"failures"`
	SuccessRate float64   `yaml:"success_rate"         json:"success_rate"`
	LastError   string    `yaml:"last_error,omitempty" json:"last_error,omitempty"`
	LastUsed    time.Time `yaml:"last_used,omitempty"  json:"last_used,omitempty"`
}

// Counters keeps rolling success/failure outcomes. The success rate is
// derived from the last statsWindow outcomes on demand; old outcomes simply
// fall out of the ring.
type Counters struct {
	mu        sync.Mutex
	ring      [statsWindow]bool
	filled    int
	next      int
	successes int
	failures  int
	lastOK    bool
	lastError string
	lastUsed  time.Time
}

// Record adds the outcome of one Execute call.
func (c *Counters) Record(res action.Result) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.ring[c.next] = res.Success
	c.next = (c.next + 1) % statsWindow
	if c.filled < statsWindow {
		c.filled++
	}
	if res.Success {
		c.successes++
	} else {
		c.failures++
		c.lastError = res.Error
	}
	c.lastOK = res.Success
	c.lastUsed = time.Now()
}

// SuccessRate returns the fraction of successful outcomes in the window.
func (c *Counters) SuccessRate() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rate()
}

func (c *Counters) rate() float64 {
	if c.filled == 0 {
		return 0
	}
	ok := 0
	for i := 0; i < c.filled; i++ {
		if c.ring[i] {
			ok++
		}
	}
	return float64(ok) / float64(c.filled)
}

// Stats returns a copy of the counters.
func (c *Counters) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Successes:   c.successes,
		Failures:    c.failures,
		SuccessRate: c.rate(),
		LastError:   c.lastError,
		LastUsed:    c.lastUsed,
	}
}

// Health derives the health of a stateless backend from its outcomes.
func (c *Counters) Health() action.Health {
	c.mu.Lock()
	defer c.mu.Unlock()

	rate := c.rate()
	switch {
	case c.filled == 0:
		return action.HealthUnknown
	case c.lastOK && rate >= 0.5:
		return action.HealthHealthy
	case rate > 0:
		return action.HealthDegraded
	default:
		return action.HealthDead
	}
}
