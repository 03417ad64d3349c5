package jobstore

import "time"

// Status is the lifecycle state of a distribution job.
//
// NOTE: These values are persisted in the jobs table and are part of the
// stable on-disk contract. Transitions are monotonic forward only:
// pending -> processing -> complete|failed.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusComplete   Status = "complete"
	StatusFailed     Status = "failed"
)

// Terminal reports whether the status permits no further transitions.
func (s Status) Terminal() bool {
	return s == StatusComplete || s == StatusFailed
}

// Action is the kind of distribution operation a job performs.
type Action string

const (
	ActionUpload   Action = "upload"
	ActionDownload Action = "download"
	ActionDelete   Action = "delete"
)

// ParseAction validates a wire-format action string.
func ParseAction(s string) (Action, error) {
	switch Action(s) {
	case ActionUpload, ActionDownload, ActionDelete:
		return Action(s), nil
	default:
		return "", ErrValidation
	}
}

// JobRecord is one row per distribution operation.
//
// The store exclusively owns the record lifecycle: the submission path writes
// the initial pending row, and only the worker executor advances status,
// started_at, completed_at and error_message after insertion.
type JobRecord struct {
	JobID      string
	Status     Status
	Action     Action
	TargetPath string
	SourceRef  string
	OwnerID    string
	CreatedAt  time.Time

	StartedAt    *time.Time
	CompletedAt  *time.Time
	ErrorMessage *string

	// ChunksDone/ChunksTotal are coarse executor-maintained counters used to
	// derive progress. Zero totals mean "not yet known".
	ChunksDone  int
	ChunksTotal int
}
