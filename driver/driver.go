// Package driver defines the abstract contract for the remote form
// surface. The core never talks to a browser or HTTP session directly;
// it depends on this small capability set, injected per job. Concrete
// implementations (UI automation, protocol replay) live outside the core.
package driver

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a target cannot be located on the
	// current page.
	ErrNotFound = errors.New("driver: target not found")

	// ErrTimeout is returned when a wait condition does not hold within
	// its timeout. One ErrTimeout is not fatal; the engine escalates
	// through its wait ladder before treating timeouts as hard failures.
	ErrTimeout = errors.New("driver: condition timeout")
)

// Condition describes a page state the engine can wait for: the presence
// or visibility of a target element.
type Condition struct {
	// Target is the element identifier to await.
	Target string `json:"target"`
	// Visible requires the target to be visible, not merely attached.
	Visible bool `json:"visible,omitempty"`
	// Describe is a short human description used in logs and errors.
	Describe string `json:"describe,omitempty"`
}

// Driver is one open remote session. All calls are blocking and bounded
// by either the passed context or an explicit timeout. Implementations
// must be safe for use by a single goroutine; the engine never issues
// concurrent calls on one session.
type Driver interface {
	// Locate checks that an element exists, returning ErrNotFound if not.
	Locate(ctx context.Context, target string) error

	// Read returns the current value or text content of an element.
	Read(ctx context.Context, target string) (string, error)

	// Fill sets the value of a text input.
	Fill(ctx context.Context, target, value string) error

	// Select chooses an option in a select element by option value.
	Select(ctx context.Context, target, value string) error

	// SetChecked checks or unchecks a checkbox or radio target.
	SetChecked(ctx context.Context, target string, checked bool) error

	// Click activates a button or link.
	Click(ctx context.Context, target string) error

	// WaitFor blocks until the condition holds or the timeout elapses,
	// returning ErrTimeout in the latter case.
	WaitFor(ctx context.Context, cond Condition, timeout time.Duration) error

	// Screenshot captures the current page as an image. Best-effort
	// evidence; format is implementation-defined (typically PNG).
	Screenshot(ctx context.Context) ([]byte, error)

	// Cancel terminates the remote session best-effort. It reports
	// whether the remote side acknowledged the termination; callers
	// must not block on the answer beyond the passed context.
	Cancel(ctx context.Context) bool

	// Close releases local session resources.
	Close() error
}

// Factory opens one remote session per job.
type Factory interface {
	Open(ctx context.Context) (Driver, error)
}

// FactoryFunc adapts a function to the Factory interface.
type FactoryFunc func(ctx context.Context) (Driver, error)

// Open implements Factory.
func (f FactoryFunc) Open(ctx context.Context) (Driver, error) { return f(ctx) }
