package job

// Status is the lifecycle state of a generation job. Transitions only move
// forward; done and error are terminal.
type Status string

const (
	StatusPending   Status = "pending"
	StatusStreaming Status = "streaming"
	StatusDone      Status = "done"
	StatusError     Status = "error"
)

// Terminal reports whether no further transitions are possible.
func (s Status) Terminal() bool {
	return s == StatusDone || s == StatusError
}

// CanTransition reports whether moving from s to next is a legal edge in the
// job state machine.
func (s Status) CanTransition(next Status) bool {
	switch s {
	case StatusPending:
		return next == StatusStreaming || next == StatusError
	case StatusStreaming:
		return next == StatusDone || next == StatusError
	default:
		return false
	}
}
