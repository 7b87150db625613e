package booking

import "time"

type Speaker string

const (
	SpeakerAgent        Speaker = "agent"
	SpeakerCounterparty Speaker = "counterparty"
)

// Entities are the structured values extracted from a counterparty utterance.
// All fields are best-effort; absent values stay empty.
type Entities struct {
	Confirmed          bool
	Date               string
	Time               string
	ConfirmationNumber string
}

func (e Entities) Empty() bool {
	return !e.Confirmed && e.Date == "" && e.Time == "" && e.ConfirmationNumber == ""
}

// Turn is one utterance in a call transcript. Turns are append-only and
// strictly time-ordered within a session.
type Turn struct {
	Speaker  Speaker
	Text     string
	At       time.Time
	Entities *Entities
}
