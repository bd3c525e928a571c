// Package queue enforces per-embassy admission limits. Every job
// carries an embassy tag; driving one remote site too hard from many
// concurrent sessions risks lockouts, so embassies can be given rate
// and concurrency caps that the worker pool checks before starting a
// claimed job.
package queue

import (
	"sync"

	"golang.org/x/time/rate"
)

// Config defines limits for one embassy.
type Config struct {
	// Embassy is the embassy/location tag (matches job.Embassy).
	Embassy string

	// MaxConcurrency limits how many jobs for this embassy may run
	// simultaneously in the local pool. Zero means no embassy-specific
	// limit (pool-wide concurrency still applies).
	MaxConcurrency int

	// RateLimit is the maximum sustained job starts per second for this
	// embassy. Zero disables rate limiting.
	RateLimit float64

	// RateBurst is the burst size for the token-bucket limiter.
	// Defaults to 1 if RateLimit is set but RateBurst is zero.
	RateBurst int
}

// embassyState tracks runtime state for a single embassy.
type embassyState struct {
	config  Config
	limiter *rate.Limiter
	active  int
}

// Manager controls per-embassy rate limiting and concurrency. It is
// safe for concurrent use.
type Manager struct {
	mu        sync.Mutex
	embassies map[string]*embassyState
}

// NewManager creates a Manager with the given embassy configurations.
// Embassies not listed have no limits.
func NewManager(configs ...Config) *Manager {
	m := &Manager{embassies: make(map[string]*embassyState, len(configs))}
	for _, cfg := range configs {
		m.embassies[cfg.Embassy] = newEmbassyState(cfg)
	}
	return m
}

func newEmbassyState(cfg Config) *embassyState {
	es := &embassyState{config: cfg}
	if cfg.RateLimit > 0 {
		burst := cfg.RateBurst
		if burst <= 0 {
			burst = 1
		}
		es.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	return es
}

// Acquire checks the embassy's rate and concurrency limits. If the job
// may proceed it increments the active counter and returns true. The
// caller MUST call Release when the job finishes. An unknown or empty
// embassy is always admitted.
func (m *Manager) Acquire(embassy string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	es := m.embassies[embassy]
	if es == nil {
		return true
	}
	if es.limiter != nil && !es.limiter.Allow() {
		return false
	}
	if es.config.MaxConcurrency > 0 && es.active >= es.config.MaxConcurrency {
		return false
	}
	es.active++
	return true
}

// Release decrements the active count for the embassy.
func (m *Manager) Release(embassy string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if es := m.embassies[embassy]; es != nil && es.active > 0 {
		es.active--
	}
}

// Active returns the number of running jobs for the embassy.
func (m *Manager) Active(embassy string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	if es := m.embassies[embassy]; es != nil {
		return es.active
	}
	return 0
}
