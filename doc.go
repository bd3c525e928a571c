// Package formauto is the job orchestration core for automated completion
// of long multi-step government application forms. It drives a remote form
// through an ordered sequence of steps, suspends cooperatively when the
// remote site interposes a human-verification challenge, and publishes
// immutable progress events to observers.
//
// The package is designed as a library, not a service. Construct an
// Automator with a store and a driver factory, then submit work through
// the orchestrator:
//
//	a, err := formauto.New(
//	    formauto.WithStore(st),
//	    formauto.WithConcurrency(4),
//	)
//
// # Architecture
//
// Each subsystem (job, progress, challenge, artifact) defines its own
// store interface; a single backend implements all of them. The step
// engine executes one job per remote session, strictly sequentially
// within a job. Lifecycle events fan out through the ext registry to
// the stream broker and any other registered extensions.
//
// All entity IDs are TypeIDs — type-prefixed, K-sortable, UUIDv7-based
// identifiers.
package formauto
