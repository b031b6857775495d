package model

// Status is the task lifecycle status.
type Status string

const (
	StatusPending    Status = "pending"
	StatusRouting    Status = "routing"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusBlocked    Status = "blocked"
)

func (s Status) rank() int {
	switch s {
	case StatusPending, "":
		return 0
	case StatusRouting:
		return 1
	case StatusInProgress:
		return 2
	case StatusCompleted, StatusFailed, StatusBlocked:
		return 3
	}
	return -1
}

// IsTerminal reports whether no further transition is possible.
func (s Status) IsTerminal() bool {
	return s.rank() == 3
}
