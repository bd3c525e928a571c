// Package drivertest provides a scripted in-memory driver for tests.
// The fake models the remote form as a set of present elements; tests
// mutate that set from an OnClick script to simulate page transitions,
// validation banners, verification gates and conditional sub-fields.
package drivertest

import (
	"context"
	"sync"
	"time"

	"github.com/Safi643133/ai-immigration-services-sub003/driver"
)

// Fake is a scriptable driver.Driver. Safe for concurrent use; the
// OnClick script runs with the fake's lock released.
type Fake struct {
	// OnClick, when set, runs after every Click with the clicked
	// target. Tests use it to advance pages and reveal elements.
	OnClick func(f *Fake, target string)

	// ScreenshotData is returned by Screenshot. Nil means failure.
	ScreenshotData []byte

	mu        sync.Mutex
	present   map[string]bool
	values    map[string]string
	checked   map[string]bool
	clicks    []string
	cancelled bool
	closed    bool
}

var _ driver.Driver = (*Fake)(nil)

// New creates an empty fake with the given elements present.
func New(targets ...string) *Fake {
	f := &Fake{
		present:        make(map[string]bool),
		values:         make(map[string]string),
		checked:        make(map[string]bool),
		ScreenshotData: []byte("png"),
	}
	f.Add(targets...)
	return f
}

// Factory returns a driver.Factory that always hands out this fake.
func (f *Fake) Factory() driver.Factory {
	return driver.FactoryFunc(func(context.Context) (driver.Driver, error) {
		return f, nil
	})
}

// ── Script surface ───────────────────────────────────

// Add marks elements present.
func (f *Fake) Add(targets ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range targets {
		f.present[t] = true
	}
}

// Remove marks elements absent.
func (f *Fake) Remove(targets ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range targets {
		delete(f.present, t)
	}
}

// SetValue seeds a readable value for an element.
func (f *Fake) SetValue(target, value string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.present[target] = true
	f.values[target] = value
}

// Value returns the last value written to an element.
func (f *Fake) Value(target string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.values[target]
}

// Checked reports whether a checkbox or radio option was set.
func (f *Fake) Checked(target string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.checked[target]
}

// Clicks returns the click history in order.
func (f *Fake) Clicks() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.clicks...)
}

// Cancelled reports whether Cancel was called.
func (f *Fake) Cancelled() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cancelled
}

// Closed reports whether Close was called.
func (f *Fake) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// ── driver.Driver ────────────────────────────────────

func (f *Fake) has(target string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.present[target]
}

// Locate implements driver.Driver.
func (f *Fake) Locate(_ context.Context, target string) error {
	if !f.has(target) {
		return driver.ErrNotFound
	}
	return nil
}

// Read implements driver.Driver.
func (f *Fake) Read(_ context.Context, target string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.present[target] {
		return "", driver.ErrNotFound
	}
	return f.values[target], nil
}

// Fill implements driver.Driver.
func (f *Fake) Fill(_ context.Context, target, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.present[target] {
		return driver.ErrNotFound
	}
	f.values[target] = value
	return nil
}

// Select implements driver.Driver.
func (f *Fake) Select(_ context.Context, target, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.present[target] {
		return driver.ErrNotFound
	}
	f.values[target] = value
	return nil
}

// SetChecked implements driver.Driver.
func (f *Fake) SetChecked(_ context.Context, target string, checked bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.present[target] {
		return driver.ErrNotFound
	}
	f.checked[target] = checked
	return nil
}

// Click implements driver.Driver.
func (f *Fake) Click(_ context.Context, target string) error {
	f.mu.Lock()
	if !f.present[target] {
		f.mu.Unlock()
		return driver.ErrNotFound
	}
	f.clicks = append(f.clicks, target)
	script := f.OnClick
	f.mu.Unlock()

	if script != nil {
		script(f, target)
	}
	return nil
}

// WaitFor implements driver.Driver by polling the present set.
func (f *Fake) WaitFor(ctx context.Context, cond driver.Condition, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		if f.has(cond.Target) {
			return nil
		}
		if time.Now().After(deadline) {
			return driver.ErrTimeout
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Millisecond):
		}
	}
}

// Screenshot implements driver.Driver.
func (f *Fake) Screenshot(_ context.Context) ([]byte, error) {
	if f.ScreenshotData == nil {
		return nil, driver.ErrNotFound
	}
	return f.ScreenshotData, nil
}

// Cancel implements driver.Driver.
func (f *Fake) Cancel(_ context.Context) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelled = true
	return true
}

// Close implements driver.Driver.
func (f *Fake) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}
