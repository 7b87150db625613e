package repository

import "time"

type SessionStatus string

const (
	SessionStatusRunning   SessionStatus = "running"
	SessionStatusCompleted SessionStatus = "completed"
)

type Session struct {
	ID                 string
	CustomerName       string
	CustomerPhone      string
	VehicleID          string
	IssueType          string
	ServiceCenterName  string
	ServiceCenterPhone string
	Mode               string
	Status             SessionStatus
	StartedAt          time.Time
	EndedAt            *time.Time
	ResultStatus       string
	ScheduledDate      string
	ScheduledTime      string
	ConfirmationNumber string
	FailureReason      string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

type ConversationTurn struct {
	ID        string
	SessionID string
	Speaker   string
	Content   string
	TurnIndex int
	SpokenAt  time.Time
	CreatedAt time.Time
}
