package task

import "errors"

// Status represents the lifecycle state of a task. The string values are
// stored verbatim in the tasks table and returned by the API.
type Status string

const (
	StatusPending    Status = "Pending"
	StatusProcessing Status = "Processing"
	StatusCompleted  Status = "Completed"
	StatusFailed     Status = "Failed"
	StatusCancelled  Status = "Cancelled"
)

func (s Status) String() string {
	return string(s)
}

// IsTerminal returns true once a task can no longer change status.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed, StatusCancelled:
		return Status(s), nil
	default:
		return "", ErrUnknownStatus
	}
}

// Error definitions
var (
	ErrUnknownStatus     = errors.New("unknown task status")
	ErrInvalidTransition = errors.New("invalid status transition")
)

// ValidTransitions encodes the status DAG. Pending may be cancelled before a
// worker ever claims the task; everything terminal stays terminal.
var ValidTransitions = map[Status][]Status{
	StatusPending:    {StatusProcessing, StatusCancelled},
	StatusProcessing: {StatusCompleted, StatusFailed, StatusCancelled},
	StatusCompleted:  {},
	StatusFailed:     {},
	StatusCancelled:  {},
}

// CanTransitionTo checks whether moving from s to target is allowed.
func (s Status) CanTransitionTo(target Status) bool {
	for _, v := range ValidTransitions[s] {
		if v == target {
			return true
		}
	}
	return false
}
