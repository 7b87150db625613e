package callcontrol

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/vehiclecare/voicebook/internal/booking"
	"github.com/vehiclecare/voicebook/internal/callcontrol"
)

// Outcome scripts what the simulated network does with a call.
type Outcome string

const (
	OutcomeAnswered Outcome = "answered"
	OutcomeBusy     Outcome = "busy"
	OutcomeNoAnswer Outcome = "no_answer"
)

// Responder produces the counterparty's reply to the turnIndex-th agent
// utterance. Returning ok=false hangs up instead of replying.
type Responder func(turnIndex int, agentText string) (reply string, ok bool)

// DefaultResponder walks a service-center receptionist through a successful
// booking: greeting, availability check, then confirmation with a number.
func DefaultResponder(turnIndex int, _ string) (string, bool) {
	switch turnIndex {
	case 0:
		return "Hello, thank you for calling. How can I help you today?", true
	case 1:
		return "Let me check our availability for that date. Yes, we have an opening at that time. Can I get the customer's contact details?", true
	case 2:
		return fmt.Sprintf(
			"Perfect, I've booked the appointment. Your confirmation number is VC%s. We'll see you then!",
			time.Now().Format("20060102150405"),
		), true
	default:
		return "Is there anything else I can help you with?", true
	}
}

type simulatedCall struct {
	turnIndex int
	ended     bool
}

// SimulatedController stands in for the telephony provider in development and
// tests. Every call is local: events are emitted from short-lived goroutines
// with a small scripted latency.
type SimulatedController struct {
	logger    *slog.Logger
	responder Responder
	// outcome per destination phone number, OutcomeAnswered when absent
	outcomes map[string]Outcome
	latency  time.Duration

	mu      sync.Mutex
	handler callcontrol.EventHandler
	calls   map[string]*simulatedCall
}

type SimulatedOption func(*SimulatedController)

// WithResponder replaces the scripted counterparty.
func WithResponder(r Responder) SimulatedOption {
	return func(c *SimulatedController) { c.responder = r }
}

// WithOutcome scripts what happens when destination is dialed.
func WithOutcome(destination string, outcome Outcome) SimulatedOption {
	return func(c *SimulatedController) { c.outcomes[destination] = outcome }
}

// WithLatency sets the delay before each emitted event.
func WithLatency(d time.Duration) SimulatedOption {
	return func(c *SimulatedController) { c.latency = d }
}

func NewSimulatedController(logger *slog.Logger, opts ...SimulatedOption) *SimulatedController {
	c := &SimulatedController{
		logger:    logger,
		responder: DefaultResponder,
		outcomes:  make(map[string]Outcome),
		latency:   10 * time.Millisecond,
		calls:     make(map[string]*simulatedCall),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *SimulatedController) RegisterEventHandler(handler callcontrol.EventHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handler = handler
}

func (c *SimulatedController) PlaceCall(ctx context.Context, sessionID, destination string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	canonical, err := booking.CanonicalPhone(destination)
	if err != nil {
		return &booking.DialError{Destination: destination, Reason: err.Error()}
	}

	c.mu.Lock()
	if c.handler == nil {
		c.mu.Unlock()
		return fmt.Errorf("no event handler registered")
	}
	if _, exists := c.calls[sessionID]; exists {
		c.mu.Unlock()
		return fmt.Errorf("session %s already has a call", sessionID)
	}
	c.calls[sessionID] = &simulatedCall{}
	outcome, ok := c.outcomes[canonical]
	if !ok {
		outcome = OutcomeAnswered
	}
	c.mu.Unlock()

	c.logger.InfoContext(ctx, "simulated call placed",
		slog.String("session_id", sessionID),
		slog.String("destination", canonical),
		slog.String("outcome", string(outcome)),
	)

	go func() {
		c.emit(sessionID, callcontrol.EventRinging, "")
		switch outcome {
		case OutcomeBusy:
			c.emit(sessionID, callcontrol.EventBusy, "")
			c.endCall(sessionID)
		case OutcomeNoAnswer:
			c.emit(sessionID, callcontrol.EventNoAnswer, "")
			c.endCall(sessionID)
		default:
			c.emit(sessionID, callcontrol.EventAnswered, "")
		}
	}()
	return nil
}

func (c *SimulatedController) SendAudio(ctx context.Context, sessionID string, audio []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	call, ok := c.calls[sessionID]
	if !ok || call.ended {
		c.mu.Unlock()
		return fmt.Errorf("session %s has no active call", sessionID)
	}
	turnIndex := call.turnIndex
	call.turnIndex++
	c.mu.Unlock()

	// Audio from the passthrough bridge is the utterance text itself.
	agentText := strings.TrimSpace(string(audio))
	go func() {
		reply, ok := c.responder(turnIndex, agentText)
		if !ok {
			c.emit(sessionID, callcontrol.EventDisconnected, "")
			c.endCall(sessionID)
			return
		}
		c.emit(sessionID, callcontrol.EventSpeechReceived, reply)
	}()
	return nil
}

func (c *SimulatedController) HangUp(ctx context.Context, sessionID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	call, ok := c.calls[sessionID]
	alreadyEnded := !ok || call.ended
	if ok {
		call.ended = true
	}
	c.mu.Unlock()
	if alreadyEnded {
		return nil
	}
	c.logger.InfoContext(ctx, "simulated call hung up", slog.String("session_id", sessionID))
	c.emit(sessionID, callcontrol.EventDisconnected, "")
	return nil
}

func (c *SimulatedController) emit(sessionID string, kind callcontrol.EventKind, text string) {
	time.Sleep(c.latency)
	c.mu.Lock()
	handler := c.handler
	call, ok := c.calls[sessionID]
	suppressed := !ok || (call.ended && kind != callcontrol.EventDisconnected)
	c.mu.Unlock()
	if handler == nil || suppressed {
		return
	}
	handler(callcontrol.Event{
		SessionID: sessionID,
		Kind:      kind,
		Text:      text,
		At:        time.Now(),
	})
}

func (c *SimulatedController) endCall(sessionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if call, ok := c.calls[sessionID]; ok {
		call.ended = true
	}
}
