package statrelay

import (
	"sort"
	"sync"
	"time"
)

// Logger is the minimal logging surface components accept.
type Logger interface {
	Printf(format string, args ...any)
}

// recognizedActionValues is the closed set of amounts tallied by the
// stats projection. Other amounts are stored but excluded from the tally.
var recognizedActionValues = [...]int{5, 10, 15, 25, 30}

// userGrowthDays is the trailing window covered by the daily series.
const userGrowthDays = 30

type saveScheduler interface {
	ScheduleSave()
}

type StoreOptions struct {
	// ApplyIndependently restores the historical behavior of applying a
	// lone registration or lone action instead of requiring both
	// sub-patterns in the same payload.
	ApplyIndependently bool
	Logger             Logger
	// Now is the clock used for event processing time. Defaults to
	// time.Now.
	Now func() time.Time
}

// Store owns the Aggregate. All mutation flows through Ingest so that
// every mutating event schedules a save and wakes live watchers.
type Store struct {
	mu                 sync.RWMutex
	agg                *Aggregate
	scheduler          saveScheduler
	applyIndependently bool
	logger             Logger
	now                func() time.Time

	watchMu  sync.Mutex
	watchers map[int]chan struct{}
	watchSeq int
}

func NewStore(opts StoreOptions) *Store {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Store{
		agg:                NewAggregate(),
		applyIndependently: opts.ApplyIndependently,
		logger:             opts.Logger,
		now:                now,
		watchers:           map[int]chan struct{}{},
	}
}

func (s *Store) setScheduler(sched saveScheduler) {
	s.mu.Lock()
	s.scheduler = sched
	s.mu.Unlock()
}

// Ingest records one text payload: the raw message is prepended
// unconditionally, the parsed event is applied per the active policy,
// and a save is scheduled. sentAt is the source timestamp shown on the
// dashboard; a zero sentAt falls back to processing time.
func (s *Store) Ingest(author, text string, sentAt time.Time) Event {
	now := s.now()
	ev := Parse(text)

	ts := sentAt
	if ts.IsZero() {
		ts = now
	}

	s.mu.Lock()
	s.agg.prependMessage(RawMessage{
		User:      author,
		Text:      text,
		Timestamp: formatMessageTime(ts),
	})
	applyEvent(s.agg, ev, now, s.applyIndependently)
	sched := s.scheduler
	s.mu.Unlock()

	if sched != nil {
		sched.ScheduleSave()
	}
	s.notifyWatchers()
	return ev
}

// SnapshotText serializes the current Aggregate. Mutation and
// serialization share the Store lock, so no snapshot can observe a
// partially applied mutation.
func (s *Store) SnapshotText() (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return EncodeSnapshot(s.agg)
}

// ReplaceFromSnapshot swaps the Aggregate wholesale for the parsed
// snapshot. Used by the sync engine at load time only.
func (s *Store) ReplaceFromSnapshot(text string) error {
	agg, err := DecodeSnapshot(text)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.agg = agg
	s.mu.Unlock()
	s.notifyWatchers()
	return nil
}

type UserSummary struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Stats struct {
	ActionCounts map[int]int    `json:"actionCounts"`
	UserList     []UserSummary  `json:"userList"`
	UserGrowth   map[string]int `json:"userGrowth"`
}

type StatsResponse struct {
	RawMessages []RawMessage `json:"rawMessages"`
	Stats       Stats        `json:"stats"`
}

// StatsAt projects the Aggregate into the read-only stats shape: action
// tallies over the recognized amount set, the user list sorted by name,
// and the zero-filled trailing 30-day daily series ending at now.
func (s *Store) StatsAt(now time.Time) StatsResponse {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[int]int, len(recognizedActionValues))
	for _, value := range recognizedActionValues {
		counts[value] = 0
	}
	for _, action := range s.agg.Actions {
		if _, ok := counts[action.Value]; ok {
			counts[action.Value]++
		}
	}

	users := make([]UserSummary, 0, len(s.agg.Users))
	for _, user := range s.agg.Users {
		users = append(users, UserSummary{ID: user.ID, Name: user.Name})
	}
	sort.Slice(users, func(i, j int) bool {
		if users[i].Name == users[j].Name {
			return users[i].ID < users[j].ID
		}
		return users[i].Name < users[j].Name
	})

	growth := make(map[string]int, userGrowthDays)
	for i := userGrowthDays - 1; i >= 0; i-- {
		day := dateKey(now.AddDate(0, 0, -i))
		growth[day] = s.agg.DailyUsage[day]
	}

	messages := make([]RawMessage, len(s.agg.RawMessages))
	copy(messages, s.agg.RawMessages)

	return StatsResponse{
		RawMessages: messages,
		Stats: Stats{
			ActionCounts: counts,
			UserList:     users,
			UserGrowth:   growth,
		},
	}
}

// Stats projects at the Store clock's current time.
func (s *Store) Stats() StatsResponse {
	return s.StatsAt(s.now())
}

// Watch returns a channel that receives a signal after every aggregate
// change, plus a cancel func. Signals are coalesced, never blocking.
func (s *Store) Watch() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)
	s.watchMu.Lock()
	s.watchSeq++
	id := s.watchSeq
	s.watchers[id] = ch
	s.watchMu.Unlock()
	cancel := func() {
		s.watchMu.Lock()
		delete(s.watchers, id)
		s.watchMu.Unlock()
	}
	return ch, cancel
}

func (s *Store) notifyWatchers() {
	s.watchMu.Lock()
	for _, ch := range s.watchers {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
	s.watchMu.Unlock()
}
