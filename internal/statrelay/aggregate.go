package statrelay

import (
	"encoding/json"
	"time"
)

const (
	// RecentMessageCap bounds the raw message ring; the oldest entries are
	// dropped once the cap is reached.
	RecentMessageCap = 50

	// dedupWindow is the interval within which a repeated registration for
	// the same user does not re-increment the daily counter.
	dedupWindow = 24 * time.Hour

	dateKeyLayout     = "2006-01-02"
	messageTimeLayout = "02.01.2006, 15:04:05"
)

// RawMessage is one ingested payload as shown on the dashboard.
type RawMessage struct {
	User      string `json:"user"`
	Text      string `json:"text"`
	Timestamp string `json:"timestamp"`
}

// User is the last known registration state for an external user id.
type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	LastLogin time.Time `json:"lastLogin"`
}

// Action is one recorded amount event. Actions are append-only and are
// never deduplicated or capped.
type Action struct {
	Value     int       `json:"value"`
	Timestamp time.Time `json:"timestamp"`
}

// Aggregate is the root in-memory state. It is owned by a Store; all
// mutation goes through the Store so save scheduling stays correct.
type Aggregate struct {
	RawMessages []RawMessage    `json:"rawMessages"`
	Users       map[string]User `json:"users"`
	Actions     []Action        `json:"actions"`
	DailyUsage  map[string]int  `json:"dailyUsage"`
}

// NewAggregate returns an empty Aggregate with all containers allocated,
// so an empty snapshot serializes to [] and {} rather than null.
func NewAggregate() *Aggregate {
	return &Aggregate{
		RawMessages: []RawMessage{},
		Users:       map[string]User{},
		Actions:     []Action{},
		DailyUsage:  map[string]int{},
	}
}

func (a *Aggregate) normalize() {
	if a.RawMessages == nil {
		a.RawMessages = []RawMessage{}
	}
	if a.Users == nil {
		a.Users = map[string]User{}
	}
	if a.Actions == nil {
		a.Actions = []Action{}
	}
	if a.DailyUsage == nil {
		a.DailyUsage = map[string]int{}
	}
}

// prependMessage inserts msg newest-first and enforces RecentMessageCap.
func (a *Aggregate) prependMessage(msg RawMessage) {
	a.RawMessages = append([]RawMessage{msg}, a.RawMessages...)
	if len(a.RawMessages) > RecentMessageCap {
		a.RawMessages = a.RawMessages[:RecentMessageCap]
	}
}

// recordRegistration upserts the user and reports whether the daily
// counter was incremented. The counter moves only when the user is new
// or was last seen more than dedupWindow before now; the name and
// lastLogin refresh happens unconditionally.
func (a *Aggregate) recordRegistration(id, name string, now time.Time) bool {
	counted := false
	if existing, ok := a.Users[id]; !ok || now.Sub(existing.LastLogin) > dedupWindow {
		a.DailyUsage[dateKey(now)]++
		counted = true
	}
	a.Users[id] = User{ID: id, Name: name, LastLogin: now}
	return counted
}

// recordAction appends an action entry. Not subject to the dedup window.
func (a *Aggregate) recordAction(value int, now time.Time) {
	a.Actions = append(a.Actions, Action{Value: value, Timestamp: now})
}

func dateKey(t time.Time) string {
	return t.UTC().Format(dateKeyLayout)
}

func formatMessageTime(t time.Time) string {
	return t.Format(messageTimeLayout)
}

// EncodeSnapshot serializes the Aggregate to the persisted text form.
func EncodeSnapshot(a *Aggregate) (string, error) {
	data, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// DecodeSnapshot parses persisted snapshot text back into an Aggregate.
// The text is structurally validated before being trusted; any text that
// does not carry the four top-level fields with the right shapes fails
// with ErrMalformedSnapshot.
func DecodeSnapshot(text string) (*Aggregate, error) {
	if err := validateSnapshotText(text); err != nil {
		return nil, err
	}
	var agg Aggregate
	if err := json.Unmarshal([]byte(text), &agg); err != nil {
		return nil, errMalformed(err)
	}
	agg.normalize()
	return &agg, nil
}
