// Package store defines the aggregate persistence interface. Each
// subsystem (job, progress, challenge, artifact) defines its own store
// interface; the composite Store composes them all. Backends: Postgres,
// SQLite, and Memory.
package store

import (
	"context"

	"github.com/Safi643133/ai-immigration-services-sub003/artifact"
	"github.com/Safi643133/ai-immigration-services-sub003/challenge"
	"github.com/Safi643133/ai-immigration-services-sub003/job"
	"github.com/Safi643133/ai-immigration-services-sub003/progress"
)

// Store is the aggregate persistence interface. A single backend
// implements all subsystem stores.
type Store interface {
	job.Store
	progress.Store
	challenge.Store
	artifact.Store

	// Migrate runs all schema migrations.
	Migrate(ctx context.Context) error

	// Ping checks backend connectivity.
	Ping(ctx context.Context) error

	// Close closes the store connection.
	Close() error
}
