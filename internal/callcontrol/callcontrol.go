// Package callcontrol defines the outbound-call signaling port. A Controller
// places calls, plays synthesized audio into them, and surfaces the telephony
// events the session layer reacts to.
package callcontrol

import (
	"context"
	"time"
)

type EventKind string

const (
	// EventRinging means the destination is being alerted.
	EventRinging EventKind = "ringing"
	// EventAnswered means the counterparty picked up.
	EventAnswered EventKind = "answered"
	// EventSpeechReceived carries one counterparty utterance in Text.
	EventSpeechReceived EventKind = "speech_received"
	// EventNoAnswer means the call rang out without pickup.
	EventNoAnswer EventKind = "no_answer"
	// EventBusy means the destination rejected the call as busy.
	EventBusy EventKind = "busy"
	// EventDisconnected means the call ended, by either side.
	EventDisconnected EventKind = "disconnected"
)

// Event is one telephony signal attributed to a booking session.
type Event struct {
	SessionID string
	Kind      EventKind
	Text      string
	At        time.Time
}

// EventHandler receives events in the order the provider reported them.
type EventHandler func(Event)

// Controller abstracts the telephony provider. Implementations must deliver
// events for a session in order and stop delivering after EventDisconnected.
type Controller interface {
	// PlaceCall starts an outbound call to destination attributed to
	// sessionID. A destination the provider cannot dial is reported as a
	// booking.DialError.
	PlaceCall(ctx context.Context, sessionID, destination string) error
	// SendAudio plays one agent utterance into the session's call and arms
	// the provider to capture the counterparty's reply.
	SendAudio(ctx context.Context, sessionID string, audio []byte) error
	// HangUp tears the session's call down. Hanging up a call that already
	// ended is not an error.
	HangUp(ctx context.Context, sessionID string) error
	// RegisterEventHandler sets the sink for telephony events. It must be
	// called before the first PlaceCall.
	RegisterEventHandler(handler EventHandler)
}
