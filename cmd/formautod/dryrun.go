package main

import (
	"context"
	"time"

	"github.com/Safi643133/ai-immigration-services-sub003/driver"
)

// dryRunDriver satisfies driver.Driver without a remote session behind
// it. Writes succeed, readiness waits resolve immediately, and probes
// report nothing present, so no banner or verification gate ever fires.
// Submitted jobs run the full step sequence and complete, which is
// enough to exercise the service end to end before a real transport is
// wired in.
type dryRunDriver struct{}

var _ driver.Driver = dryRunDriver{}

func (dryRunDriver) Locate(context.Context, string) error         { return driver.ErrNotFound }
func (dryRunDriver) Read(context.Context, string) (string, error) { return "", nil }
func (dryRunDriver) Fill(context.Context, string, string) error   { return nil }
func (dryRunDriver) Select(context.Context, string, string) error { return nil }
func (dryRunDriver) SetChecked(context.Context, string, bool) error {
	return nil
}
func (dryRunDriver) Click(context.Context, string) error { return nil }
func (dryRunDriver) WaitFor(context.Context, driver.Condition, time.Duration) error {
	return nil
}
func (dryRunDriver) Screenshot(context.Context) ([]byte, error) {
	return nil, driver.ErrNotFound
}
func (dryRunDriver) Cancel(context.Context) bool { return true }
func (dryRunDriver) Close() error                { return nil }
