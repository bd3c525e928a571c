package formauto

import (
	"context"
	"log/slog"
)

// Option configures an Automator.
type Option func(*Automator) error

// Storer is the minimal store interface held by the Automator.
// It covers lifecycle operations only. The full composite interface
// (store.Store) is used in subsystem layers that don't create import
// cycles. Implementations satisfy store.Store which embeds all
// subsystem stores.
type Storer interface {
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

// poolRunner is an internal interface for worker pool lifecycle.
type poolRunner interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// extensionEmitter is an internal interface for extension lifecycle events.
type extensionEmitter interface {
	EmitShutdown(ctx context.Context)
}

// Automator is the central coordinator for form-filling jobs. It owns
// the worker pool lifecycle and the shared subsystem references.
//
// Create one with New() and functional options. The Automator holds
// references to subsystem components via internal interfaces to avoid
// import cycles; the orchestrator package wires everything together.
type Automator struct {
	config     Config
	logger     *slog.Logger
	store      Storer
	extensions extensionEmitter
	pool       poolRunner

	// started tracks whether Start has been called.
	started bool
}

// New creates a new Automator with the given options.
func New(opts ...Option) (*Automator, error) {
	a := &Automator{
		config: DefaultConfig(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(a); err != nil {
			return nil, err
		}
	}
	return a, nil
}

// Logger returns the automator's logger.
func (a *Automator) Logger() *slog.Logger { return a.logger }

// Store returns the automator's store.
func (a *Automator) Store() Storer { return a.store }

// Config returns a copy of the automator's configuration.
func (a *Automator) Config() Config { return a.config }

// SetPool sets the worker pool (called by the orchestrator wiring).
func (a *Automator) SetPool(p poolRunner) { a.pool = p }

// SetExtensions sets the extension emitter (called by the orchestrator wiring).
func (a *Automator) SetExtensions(e extensionEmitter) { a.extensions = e }

// Start begins job processing.
func (a *Automator) Start(ctx context.Context) error {
	if a.pool == nil {
		return ErrNoDriver
	}
	if err := a.pool.Start(ctx); err != nil {
		return err
	}
	a.started = true
	return nil
}

// Stop gracefully shuts down the automator.
func (a *Automator) Stop(ctx context.Context) error {
	if a.pool != nil && a.started {
		if err := a.pool.Stop(ctx); err != nil {
			a.logger.Error("pool stop error", "error", err)
		}
	}
	if a.extensions != nil {
		a.extensions.EmitShutdown(ctx)
	}
	if a.store != nil {
		return a.store.Close()
	}
	return nil
}

// WithConcurrency sets the maximum number of concurrent job sessions.
func WithConcurrency(n int) Option {
	return func(a *Automator) error {
		a.config.Concurrency = n
		return nil
	}
}

// WithConfig replaces the whole configuration.
func WithConfig(cfg Config) Option {
	return func(a *Automator) error {
		a.config = cfg
		return nil
	}
}

// WithLogger sets the structured logger for the automator.
func WithLogger(l *slog.Logger) Option {
	return func(a *Automator) error {
		a.logger = l
		return nil
	}
}

// WithStore sets the persistence backend for the automator.
// The store must implement Storer at minimum; typically it will be a
// store.Store which embeds all subsystem store interfaces.
func WithStore(s Storer) Option {
	return func(a *Automator) error {
		a.store = s
		return nil
	}
}
