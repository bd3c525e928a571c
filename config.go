package formauto

import "time"

// Config holds configuration for the Automator.
type Config struct {
	// Concurrency is the maximum number of jobs processed concurrently.
	// Each job holds one remote session for its whole lifetime.
	Concurrency int

	// PollInterval is how often idle workers poll for queued jobs.
	PollInterval time.Duration

	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	ShutdownTimeout time.Duration

	// HeartbeatInterval is how often running jobs send heartbeats.
	HeartbeatInterval time.Duration

	// StaleJobThreshold is how long a running job may go without a
	// heartbeat before it is considered lost and failed.
	StaleJobThreshold time.Duration

	// ChallengeTTL is the lifetime of an issued human-verification
	// challenge. Jobs waiting longer than this fail with CAPTCHA_TIMEOUT.
	ChallengeTTL time.Duration

	// PrimaryWait is the timeout for the primary step readiness signal.
	PrimaryWait time.Duration

	// SecondaryWait is the timeout for the looser fallback signal tried
	// after the primary signal times out.
	SecondaryWait time.Duration

	// GraceDelay is the fixed delay applied when both readiness signals
	// time out. Only exhausting all three tiers is a hard failure.
	GraceDelay time.Duration

	// SubfieldWait bounds how long the engine waits for conditional
	// sub-fields to materialize after their trigger is set.
	SubfieldWait time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Concurrency:       4,
		PollInterval:      time.Second,
		ShutdownTimeout:   30 * time.Second,
		HeartbeatInterval: 10 * time.Second,
		StaleJobThreshold: 60 * time.Second,
		ChallengeTTL:      5 * time.Minute,
		PrimaryWait:       15 * time.Second,
		SecondaryWait:     10 * time.Second,
		GraceDelay:        3 * time.Second,
		SubfieldWait:      5 * time.Second,
	}
}
