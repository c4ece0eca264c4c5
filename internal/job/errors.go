package job

import "errors"

var (
	// ErrNotFound means the id is unknown or the job was deleted. Clients
	// must not retry.
	ErrNotFound = errors.New("job not found")

	// ErrNotReady means the job exists but has not reached the state the
	// operation requires (e.g. an audio fetch while still streaming).
	// Clients may retry with backoff.
	ErrNotReady = errors.New("job not ready")

	// ErrInvalidTransition means a status change would move backwards or out
	// of a terminal state.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrExists means a restore collided with a live job id.
	ErrExists = errors.New("job already exists")
)
