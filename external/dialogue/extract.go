package dialogue

import (
	"regexp"
	"strings"

	"github.com/vehiclecare/voicebook/internal/booking"
)

var (
	datePattern = regexp.MustCompile(`(?i)\b(?:(?:January|February|March|April|May|June|July|August|September|October|November|December)\s+\d{1,2}(?:st|nd|rd|th)?(?:,?\s*\d{4})?|\d{4}-\d{2}-\d{2})\b`)
	timePattern = regexp.MustCompile(`(?i)\b\d{1,2}(?::\d{2})?\s*(?:AM|PM)\b|\b\d{1,2}:\d{2}\b`)
	// Labelled confirmation numbers ("confirmation number is VC1234") and
	// bare code-shaped tokens ("VC202408311015").
	labelledConfirmationPattern = regexp.MustCompile(`(?i)\bconfirmation\s+(?:number|code)\s*(?:is|:)?\s*#?([A-Z0-9][A-Z0-9-]{3,})`)
	bareConfirmationPattern     = regexp.MustCompile(`\b[A-Z]{2,}[0-9]{4,}\b`)
)

var confirmationPhrases = []string{
	"booked",
	"confirmed",
	"i've scheduled",
	"you're all set",
	"you are all set",
	"we'll see you",
	"we will see you",
}

// ExtractEntities pulls structured values out of one counterparty utterance.
// When multiple candidates of the same kind appear, the last mentioned wins.
func ExtractEntities(utterance string) booking.Entities {
	var e booking.Entities

	if dates := datePattern.FindAllString(utterance, -1); len(dates) > 0 {
		e.Date = strings.TrimSpace(dates[len(dates)-1])
	}
	if times := timePattern.FindAllString(utterance, -1); len(times) > 0 {
		e.Time = strings.ToUpper(strings.TrimSpace(times[len(times)-1]))
	}
	if labelled := labelledConfirmationPattern.FindAllStringSubmatch(utterance, -1); len(labelled) > 0 {
		e.ConfirmationNumber = labelled[len(labelled)-1][1]
	} else if bare := bareConfirmationPattern.FindAllString(utterance, -1); len(bare) > 0 {
		e.ConfirmationNumber = bare[len(bare)-1]
	}

	lower := strings.ToLower(utterance)
	for _, phrase := range confirmationPhrases {
		if strings.Contains(lower, phrase) {
			e.Confirmed = true
			break
		}
	}
	return e
}
