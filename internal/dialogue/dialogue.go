package dialogue

import (
	"context"

	"github.com/vehiclecare/voicebook/internal/booking"
)

type Signal string

const (
	SignalContinue        Signal = "continue"
	SignalGoalAchieved    Signal = "goal_achieved"
	SignalGoalUnreachable Signal = "goal_unreachable"
)

// Reply is the engine's answer for one exchange: the agent's next utterance
// when the conversation should continue, a termination recommendation, and a
// best-effort extraction of entities from the counterparty's latest
// utterance.
type Reply struct {
	Utterance string
	Signal    Signal
	Entities  booking.Entities
}

// Engine generates the agent side of the conversation. It is a stateless
// function of the request and the transcript passed in; it recommends
// termination but never ends a call itself; the orchestrator decides.
type Engine interface {
	OpeningUtterance(req booking.Request) string
	NextReply(ctx context.Context, req booking.Request, transcript []booking.Turn, turnsRemaining int) (Reply, error)
}
