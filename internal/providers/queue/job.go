package queue

import "time"

// Status is the canonical job state. Provider-specific status strings are
// mapped onto it by each Dialect.
type Status int

const (
	StatusUnknown Status = iota
	StatusSubmitted
	StatusProcessing
	StatusSucceeded
	StatusFailed
	StatusCancelled
)

func (s Status) String() string {
	switch s {
	case StatusSubmitted:
		return "submitted"
	case StatusProcessing:
		return "processing"
	case StatusSucceeded:
		return "succeeded"
	case StatusFailed:
		return "failed"
	case StatusCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further polling can change the status.
func (s Status) Terminal() bool {
	return s == StatusSucceeded || s == StatusFailed || s == StatusCancelled
}

// Job is the state of one submitted task. It belongs to the goroutine running
// Client.Poll for it and is discarded once polling ends.
type Job struct {
	TaskID    string
	Status    Status
	StatusURL string
	// ResultURL is where the result payload is fetched once the job succeeds.
	ResultURL string
	// AssetURL is set directly by dialects whose status payload embeds the
	// output location.
	AssetURL  string
	Message   string
	Attempt   int
	StartedAt time.Time
}
