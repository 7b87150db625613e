package dialogue

import (
	"fmt"
	"strings"

	"github.com/vehiclecare/voicebook/internal/booking"
	internaldialogue "github.com/vehiclecare/voicebook/internal/dialogue"
)

const (
	markerConfirmed = "[BOOKING_CONFIRMED]"
	markerFailed    = "[BOOKING_FAILED]"

	preferredDateLayout = "Monday, January 2, 2006"
)

// parseMarkers reads the termination markers the engine prompt asks the
// model to emit and strips them from the spoken text.
func parseMarkers(text string) (string, internaldialogue.Signal) {
	signal := internaldialogue.SignalContinue
	if strings.Contains(text, markerConfirmed) {
		signal = internaldialogue.SignalGoalAchieved
	} else if strings.Contains(text, markerFailed) {
		signal = internaldialogue.SignalGoalUnreachable
	}
	text = strings.ReplaceAll(text, markerConfirmed, "")
	text = strings.ReplaceAll(text, markerFailed, "")
	return strings.TrimSpace(text), signal
}

func openingUtterance(req booking.Request) string {
	return fmt.Sprintf(
		"Hello, good morning! My name is Sara and I'm calling from VehicleCare AI on behalf of %s. "+
			"I'd like to schedule a service appointment for their vehicle. "+
			"The vehicle has been experiencing %s issues and our diagnostic system has identified it as %s priority. "+
			"Would you be able to help me book an appointment?",
		req.CustomerName,
		strings.ToLower(req.IssueType),
		strings.ToLower(req.Severity),
	)
}

func systemPrompt(req booking.Request, turnsRemaining int) string {
	return fmt.Sprintf(`You are an AI assistant making a phone call to schedule a vehicle service appointment on behalf of a customer.

CUSTOMER INFORMATION:
- Name: %s
- Phone: %s
- Email: %s
- Vehicle ID: %s

VEHICLE ISSUE:
- Issue Type: %s
- Description: %s
- Severity: %s

PREFERRED APPOINTMENT:
- Date: %s
- Time: %s

SERVICE CENTER:
- Name: %s

YOUR TASK:
1. Explain the vehicle issue clearly and professionally
2. Request an appointment for the preferred date and time
3. Be flexible if they suggest alternative times
4. Confirm all booking details before ending the call
5. Get a confirmation number if available

You have at most %d exchanges remaining in this call, so work toward a definite answer.

When the booking is confirmed, include %s in your response along with the confirmation number and the scheduled date and time. If the booking cannot be made, include %s and explain why.

Respond naturally as if you are on an actual phone call. Keep responses concise and conversational.`,
		req.CustomerName,
		req.CustomerPhone,
		req.CustomerEmail,
		req.VehicleID,
		req.IssueType,
		req.IssueDescription,
		req.Severity,
		req.PreferredDate.Format(preferredDateLayout),
		req.PreferredTime,
		req.ServiceCenterName,
		turnsRemaining,
		markerConfirmed,
		markerFailed,
	)
}

func lastCounterpartyUtterance(transcript []booking.Turn) string {
	for i := len(transcript) - 1; i >= 0; i-- {
		if transcript[i].Speaker == booking.SpeakerCounterparty {
			return transcript[i].Text
		}
	}
	return ""
}
