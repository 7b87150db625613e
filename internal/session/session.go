// Package session drives booking calls from dial to terminal result. The
// Manager owns every active call session and is the only writer of its
// transcript and state.
package session

import (
	"sync"
	"time"

	"github.com/vehiclecare/voicebook/internal/booking"
	"github.com/vehiclecare/voicebook/internal/callcontrol"
)

type State string

const (
	StateIdle       State = "idle"
	StateDialing    State = "dialing"
	StateRinging    State = "ringing"
	StateConnected  State = "connected"
	StateExchanging State = "exchanging"
	StateConcluding State = "concluding"
	StateTerminated State = "terminated"
)

type Mode string

const (
	ModeLive       Mode = "live"
	ModeSimulation Mode = "simulation"
)

const eventBufferSize = 64

// callSession is the mutable state of one in-flight booking call. It is
// owned by the driving goroutine; only the events channel and the cancel
// signal are touched from outside.
type callSession struct {
	id        string
	req       booking.Request
	mode      Mode
	startedAt time.Time

	state      State
	transcript []booking.Turn
	// aggregate of entities extracted so far, later mentions win
	entities   booking.Entities
	agentTurns int

	events     chan callcontrol.Event
	cancelOnce sync.Once
	cancelled  chan struct{}
	// closed once the final result is stored
	done chan struct{}
}

func newCallSession(id string, req booking.Request, mode Mode, startedAt time.Time) *callSession {
	return &callSession{
		id:        id,
		req:       req,
		mode:      mode,
		startedAt: startedAt,
		state:     StateIdle,
		events:    make(chan callcontrol.Event, eventBufferSize),
		cancelled: make(chan struct{}),
		done:      make(chan struct{}),
	}
}

func (s *callSession) cancel() {
	s.cancelOnce.Do(func() {
		close(s.cancelled)
	})
}

func (s *callSession) appendTurn(speaker booking.Speaker, text string, at time.Time, entities *booking.Entities) {
	s.transcript = append(s.transcript, booking.Turn{
		Speaker:  speaker,
		Text:     text,
		At:       at,
		Entities: entities,
	})
}

// mergeEntities folds one utterance's extraction into the session aggregate.
func (s *callSession) mergeEntities(e booking.Entities) {
	if e.Confirmed {
		s.entities.Confirmed = true
	}
	if e.Date != "" {
		s.entities.Date = e.Date
	}
	if e.Time != "" {
		s.entities.Time = e.Time
	}
	if e.ConfirmationNumber != "" {
		s.entities.ConfirmationNumber = e.ConfirmationNumber
	}
}
