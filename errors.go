package formauto

import "errors"

var (
	// Store errors.
	ErrNoStore     = errors.New("formauto: no store configured")
	ErrNoDriver    = errors.New("formauto: no driver factory configured")
	ErrStoreClosed = errors.New("formauto: store closed")

	// Not found errors.
	ErrJobNotFound       = errors.New("formauto: job not found")
	ErrUpdateNotFound    = errors.New("formauto: progress update not found")
	ErrChallengeNotFound = errors.New("formauto: no active challenge")
	ErrArtifactNotFound  = errors.New("formauto: artifact not found")

	// Conflict errors.
	ErrJobAlreadyExists = errors.New("formauto: job already exists")
	ErrChallengeActive  = errors.New("formauto: unsolved challenge already active")

	// State errors.
	ErrInvalidTransition = errors.New("formauto: invalid status transition")
	ErrJobNotActive      = errors.New("formauto: job is not in an active status")
	ErrChallengeExpired  = errors.New("formauto: challenge expired")
	ErrChallengeSolved   = errors.New("formauto: challenge already solved")

	// Input errors.
	ErrEmptyFieldMap   = errors.New("formauto: field map is empty")
	ErrMissingOwner    = errors.New("formauto: owner reference is required")
	ErrMissingRef      = errors.New("formauto: submission reference is required")
	ErrInvalidSolution = errors.New("formauto: invalid challenge solution")
)
