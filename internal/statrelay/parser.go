package statrelay

import (
	"regexp"
	"strconv"
	"strings"
)

// EventKind tags the result of Parse.
type EventKind int

const (
	// EventNone means the text matched neither recognized shape.
	EventNone EventKind = iota
	// EventRegistration means only the registration announcement matched.
	EventRegistration
	// EventAction means only the amount/category pattern matched.
	EventAction
	// EventRegistrationAndAction means both shapes are present in the
	// same payload.
	EventRegistrationAndAction
)

// Event is the typed extraction of a raw text payload. UserID and
// UserName are set for registration kinds, Amount for action kinds.
type Event struct {
	Kind     EventKind
	UserID   string
	UserName string
	Amount   int
}

var (
	registrationPattern = regexp.MustCompile(`🎉Neuer Nutzer gestartet!\nID: (.*)\nName: (.*)`)
	actionPattern       = regexp.MustCompile(`Aktion: (?:🎟️Gutschein|💰 Paypal|🪙 Krypto) für (\d+)€`)
)

// Parse extracts zero or more recognized sub-patterns from raw text and
// folds them into a single tagged event. Text that matches neither shape
// yields EventNone; parsing never fails.
func Parse(text string) Event {
	ev := Event{Kind: EventNone}

	if m := registrationPattern.FindStringSubmatch(text); m != nil {
		id := strings.TrimSpace(m[1])
		name := strings.TrimSpace(m[2])
		if id != "" {
			ev.Kind = EventRegistration
			ev.UserID = id
			ev.UserName = name
		}
	}

	if m := actionPattern.FindStringSubmatch(text); m != nil {
		amount, err := strconv.Atoi(m[1])
		if err == nil && amount >= 0 {
			ev.Amount = amount
			if ev.Kind == EventRegistration {
				ev.Kind = EventRegistrationAndAction
			} else {
				ev.Kind = EventAction
			}
		}
	}

	return ev
}
