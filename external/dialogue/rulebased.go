package dialogue

import (
	"context"
	"fmt"
	"strings"

	"github.com/vehiclecare/voicebook/internal/booking"
	internaldialogue "github.com/vehiclecare/voicebook/internal/dialogue"
)

const monthDayLayout = "January 2"

// RuleBasedEngine is the keyword-driven fallback used when no language-model
// key is configured. It follows the happy path of a booking call closely
// enough for demos and tests.
type RuleBasedEngine struct{}

func NewRuleBasedEngine() *RuleBasedEngine {
	return &RuleBasedEngine{}
}

func (e *RuleBasedEngine) OpeningUtterance(req booking.Request) string {
	return openingUtterance(req)
}

func (e *RuleBasedEngine) NextReply(_ context.Context, req booking.Request, transcript []booking.Turn, _ int) (internaldialogue.Reply, error) {
	last := lastCounterpartyUtterance(transcript)
	if last == "" {
		return internaldialogue.Reply{}, fmt.Errorf("transcript has no counterparty utterance")
	}
	lower := strings.ToLower(last)
	entities := ExtractEntities(last)

	switch {
	// Decline phrases first: "fully booked" must not trip the success case.
	case containsAny(lower, "no availability", "fully booked", "cannot help", "can't help", "not taking"):
		entities.Confirmed = false
		return internaldialogue.Reply{
			Signal:   internaldialogue.SignalGoalUnreachable,
			Entities: entities,
		}, nil

	case containsAny(lower, "confirmation", "confirmed", "booked", "all set"):
		entities.Confirmed = true
		return internaldialogue.Reply{
			Signal:   internaldialogue.SignalGoalAchieved,
			Entities: entities,
		}, nil

	case containsAny(lower, "how can i help", "hello", "good morning", "good afternoon"):
		return internaldialogue.Reply{
			Utterance: fmt.Sprintf(
				"Yes, I'm calling on behalf of %s. We need to schedule a service appointment for a %s issue. The vehicle ID is %s. Do you have availability on %s around %s?",
				req.CustomerName, strings.ToLower(req.IssueType), req.VehicleID,
				req.PreferredDate.Format(monthDayLayout), req.PreferredTime,
			),
			Signal:   internaldialogue.SignalContinue,
			Entities: entities,
		}, nil

	case containsAny(lower, "availability", "check", "opening", "would that work"):
		return internaldialogue.Reply{
			Utterance: fmt.Sprintf(
				"That would be perfect! The customer's contact number is %s and email is %s. Can you confirm the booking?",
				req.CustomerPhone, req.CustomerEmail,
			),
			Signal:   internaldialogue.SignalContinue,
			Entities: entities,
		}, nil

	case containsAny(lower, "name", "contact"):
		return internaldialogue.Reply{
			Utterance: fmt.Sprintf(
				"The customer's name is %s, phone number is %s.",
				req.CustomerName, req.CustomerPhone,
			),
			Signal:   internaldialogue.SignalContinue,
			Entities: entities,
		}, nil

	default:
		return internaldialogue.Reply{
			Utterance: fmt.Sprintf(
				"I understand. To clarify, we need a service appointment for %s. This is a %s priority issue. Would %s at %s work?",
				strings.ToLower(req.IssueType), strings.ToLower(req.Severity),
				req.PreferredDate.Format(monthDayLayout), req.PreferredTime,
			),
			Signal:   internaldialogue.SignalContinue,
			Entities: entities,
		}, nil
	}
}

func containsAny(s string, substrings ...string) bool {
	for _, sub := range substrings {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
