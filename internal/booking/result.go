package booking

import "time"

type Status string

const (
	StatusConfirmed Status = "confirmed"
	StatusFailed    Status = "failed"
	StatusNoAnswer  Status = "no-answer"
	StatusBusy      Status = "busy"
	StatusTimedOut  Status = "timed-out"
	StatusCancelled Status = "cancelled"
)

// Result is the final outcome of one booking attempt. It is immutable once
// produced and is the only artifact handed back to callers.
type Result struct {
	SessionID          string
	Status             Status
	ScheduledDate      string
	ScheduledTime      string
	ConfirmationNumber string
	ServiceCenter      string
	Transcript         []Turn
	FailureReason      string
	StartedAt          time.Time
	EndedAt            time.Time
}

func (r *Result) Confirmed() bool {
	return r.Status == StatusConfirmed
}

// Terminal reports whether s is one of the defined terminal statuses.
func (s Status) Terminal() bool {
	switch s {
	case StatusConfirmed, StatusFailed, StatusNoAnswer, StatusBusy, StatusTimedOut, StatusCancelled:
		return true
	default:
		return false
	}
}
