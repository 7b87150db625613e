package notify

import (
	"context"
	"time"

	"github.com/vehiclecare/voicebook/internal/booking"
)

const ResultPayloadSchemaVersion = 1

type TranscriptEntry struct {
	Speaker string    `json:"speaker"`
	Text    string    `json:"text"`
	At      time.Time `json:"at"`
}

// ResultPayload is the JSON body delivered to the result webhook when a
// booking session ends.
type ResultPayload struct {
	SchemaVersion      int               `json:"schema_version"`
	SessionID          string            `json:"session_id"`
	Status             string            `json:"status"`
	ServiceCenter      string            `json:"service_center"`
	ScheduledDate      string            `json:"scheduled_date,omitempty"`
	ScheduledTime      string            `json:"scheduled_time,omitempty"`
	ConfirmationNumber string            `json:"confirmation_number,omitempty"`
	FailureReason      string            `json:"failure_reason,omitempty"`
	StartedAt          time.Time         `json:"started_at"`
	EndedAt            time.Time         `json:"ended_at"`
	Transcript         []TranscriptEntry `json:"transcript"`
}

// NewResultPayload builds the webhook body for one finished session.
func NewResultPayload(result booking.Result) ResultPayload {
	entries := make([]TranscriptEntry, 0, len(result.Transcript))
	for _, turn := range result.Transcript {
		entries = append(entries, TranscriptEntry{
			Speaker: string(turn.Speaker),
			Text:    turn.Text,
			At:      turn.At,
		})
	}
	return ResultPayload{
		SchemaVersion:      ResultPayloadSchemaVersion,
		SessionID:          result.SessionID,
		Status:             string(result.Status),
		ServiceCenter:      result.ServiceCenter,
		ScheduledDate:      result.ScheduledDate,
		ScheduledTime:      result.ScheduledTime,
		ConfirmationNumber: result.ConfirmationNumber,
		FailureReason:      result.FailureReason,
		StartedAt:          result.StartedAt,
		EndedAt:            result.EndedAt,
		Transcript:         entries,
	}
}

type Sender interface {
	SendResult(ctx context.Context, payload ResultPayload) error
}
