// Package stream provides a real-time event broker for job lifecycle
// events. It bridges the ext hook system to connected clients via
// topic-based pub/sub with credit-controlled delivery.
package stream

import (
	"encoding/json"
	"time"
)

// EventType identifies the kind of lifecycle event.
type EventType string

const (
	// Job events.
	EventJobQueued     EventType = "job.queued"
	EventJobStarted    EventType = "job.started"
	EventJobCompleted  EventType = "job.completed"
	EventJobFailed     EventType = "job.failed"
	EventJobCancelled  EventType = "job.cancelled"
	EventJobSuperseded EventType = "job.superseded"

	// Step events.
	EventStepStarted   EventType = "step.started"
	EventStepCompleted EventType = "step.completed"

	// Challenge events.
	EventChallengeIssued   EventType = "challenge.issued"
	EventChallengeSolved   EventType = "challenge.solved"
	EventChallengeRejected EventType = "challenge.rejected"

	// Progress events mirror the persisted update feed.
	EventProgress EventType = "progress"
)

// Event is the envelope sent to subscribers on a topic channel.
type Event struct {
	// Type identifies the lifecycle event.
	Type EventType `json:"type"`

	// Timestamp is when the event was emitted.
	Timestamp time.Time `json:"ts"`

	// Topic is the entity channel this event was published on.
	Topic string `json:"topic"`

	// Final marks the last event a job will ever emit. Streaming
	// transports hang up after relaying a final event.
	Final bool `json:"final,omitempty"`

	// Data is the event-specific payload.
	Data json.RawMessage `json:"data"`
}

// JobEventData is the payload for job lifecycle events.
type JobEventData struct {
	JobID         string `json:"job_id"`
	SubmissionRef string `json:"submission_ref"`
	OwnerRef      string `json:"owner_ref,omitempty"`
	Embassy       string `json:"embassy,omitempty"`
	ElapsedMs     int64  `json:"elapsed_ms,omitempty"`
	Error         string `json:"error,omitempty"`
	ErrorCode     string `json:"error_code,omitempty"`
	ReplacedBy    string `json:"replaced_by,omitempty"`
}

// StepEventData is the payload for step lifecycle events.
type StepEventData struct {
	JobID      string `json:"job_id"`
	StepName   string `json:"step_name"`
	StepNumber int    `json:"step_number"`
	ElapsedMs  int64  `json:"elapsed_ms,omitempty"`
}

// ChallengeEventData is the payload for challenge lifecycle events.
type ChallengeEventData struct {
	ChallengeID string `json:"challenge_id"`
	JobID       string `json:"job_id"`
	StepName    string `json:"step_name,omitempty"`
	ExpiresAt   string `json:"expires_at,omitempty"`
	Attempts    int    `json:"attempts,omitempty"`
}
