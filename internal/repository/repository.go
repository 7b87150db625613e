package repository

import (
	"context"
	"time"
)

type CreateSessionInput struct {
	SessionID          string
	CustomerName       string
	CustomerPhone      string
	VehicleID          string
	IssueType          string
	ServiceCenterName  string
	ServiceCenterPhone string
	Mode               string
	StartedAt          time.Time
}

type SaveResultInput struct {
	SessionID          string
	EndedAt            time.Time
	ResultStatus       string
	ScheduledDate      string
	ScheduledTime      string
	ConfirmationNumber string
	FailureReason      string
}

type InsertTurnInput struct {
	SessionID string
	Speaker   string
	Content   string
	TurnIndex int
	SpokenAt  time.Time
}

type SessionRepository interface {
	CreateSession(ctx context.Context, input CreateSessionInput) (*Session, error)
	SaveResult(ctx context.Context, input SaveResultInput) error
	GetSessionByID(ctx context.Context, sessionID string) (*Session, error)
	// CloseOrphanSessions marks sessions still running from a previous
	// process as failed and returns how many were closed.
	CloseOrphanSessions(ctx context.Context, endedAt time.Time) (int64, error)
}

type TranscriptRepository interface {
	InsertTurn(ctx context.Context, input InsertTurnInput) error
	ListTurnsBySessionID(ctx context.Context, sessionID string) ([]ConversationTurn, error)
}

type Repository interface {
	SessionRepository
	TranscriptRepository
}
