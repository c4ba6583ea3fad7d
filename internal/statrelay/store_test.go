package statrelay

import (
	"sync/atomic"
	"testing"
	"time"
)

type countingScheduler struct {
	calls atomic.Int64
}

func (c *countingScheduler) ScheduleSave() { c.calls.Add(1) }

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestIngestRecordsMessageAndSchedulesSave(t *testing.T) {
	now := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	store := NewStore(StoreOptions{Now: fixedClock(now)})
	sched := &countingScheduler{}
	store.setScheduler(sched)

	ev := store.Ingest("Kanal", "just chatter", time.Time{})
	if ev.Kind != EventNone {
		t.Fatalf("kind = %v, want EventNone", ev.Kind)
	}
	if got := sched.calls.Load(); got != 1 {
		t.Fatalf("ScheduleSave calls = %d, want 1", got)
	}

	stats := store.Stats()
	if len(stats.RawMessages) != 1 {
		t.Fatalf("rawMessages = %d, want 1 even for unparsed text", len(stats.RawMessages))
	}
	msg := stats.RawMessages[0]
	if msg.User != "Kanal" || msg.Text != "just chatter" {
		t.Fatalf("message = %+v", msg)
	}
	if msg.Timestamp != now.Format(messageTimeLayout) {
		t.Fatalf("timestamp = %q, want processing-time fallback %q", msg.Timestamp, now.Format(messageTimeLayout))
	}
}

func TestIngestUsesSourceTimestamp(t *testing.T) {
	now := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	sentAt := now.Add(-3 * time.Minute)
	store := NewStore(StoreOptions{Now: fixedClock(now)})

	store.Ingest("Kanal", "hello", sentAt)
	msg := store.Stats().RawMessages[0]
	if msg.Timestamp != sentAt.Format(messageTimeLayout) {
		t.Fatalf("timestamp = %q, want source timestamp %q", msg.Timestamp, sentAt.Format(messageTimeLayout))
	}
}

func TestIngestStrictPolicyRequiresBothPatterns(t *testing.T) {
	now := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	store := NewStore(StoreOptions{Now: fixedClock(now)})

	store.Ingest("Kanal", sampleRegistration, time.Time{})
	store.Ingest("Kanal", sampleAction, time.Time{})

	stats := store.Stats()
	if len(stats.Stats.UserList) != 0 {
		t.Fatalf("userList = %+v, want empty: lone registration must not apply", stats.Stats.UserList)
	}
	if stats.Stats.ActionCounts[25] != 0 {
		t.Fatalf("actionCounts[25] = %d, want 0: lone action must not apply", stats.Stats.ActionCounts[25])
	}
	if len(stats.RawMessages) != 2 {
		t.Fatalf("rawMessages = %d, want both payloads recorded regardless of policy", len(stats.RawMessages))
	}

	store.Ingest("Kanal", sampleRegistration+"\n"+sampleAction, time.Time{})
	stats = store.Stats()
	if len(stats.Stats.UserList) != 1 || stats.Stats.UserList[0].ID != "4711" {
		t.Fatalf("userList = %+v, want 4711 after combined payload", stats.Stats.UserList)
	}
	if stats.Stats.ActionCounts[25] != 1 {
		t.Fatalf("actionCounts[25] = %d, want 1 after combined payload", stats.Stats.ActionCounts[25])
	}
}

func TestIngestIndependentPolicy(t *testing.T) {
	now := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	store := NewStore(StoreOptions{ApplyIndependently: true, Now: fixedClock(now)})

	store.Ingest("Kanal", sampleRegistration, time.Time{})
	store.Ingest("Kanal", sampleAction, time.Time{})

	stats := store.Stats()
	if len(stats.Stats.UserList) != 1 {
		t.Fatalf("userList = %+v, want the lone registration applied", stats.Stats.UserList)
	}
	if stats.Stats.ActionCounts[25] != 1 {
		t.Fatalf("actionCounts[25] = %d, want the lone action applied", stats.Stats.ActionCounts[25])
	}
}

func TestDedupWindowAcrossIngests(t *testing.T) {
	clock := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	store := NewStore(StoreOptions{Now: func() time.Time { return clock }})
	payload := sampleRegistration + "\n" + sampleAction

	store.Ingest("Kanal", payload, time.Time{})
	clock = clock.Add(23 * time.Hour)
	store.Ingest("Kanal", payload, time.Time{})

	total := 0
	stats := store.StatsAt(clock)
	for _, n := range stats.Stats.UserGrowth {
		total += n
	}
	if total != 1 {
		t.Fatalf("growth total = %d, want 1: second registration inside window", total)
	}
	// Actions are not subject to the dedup window.
	if got := stats.Stats.ActionCounts[25]; got != 2 {
		t.Fatalf("actionCounts[25] = %d, want both actions recorded", got)
	}

	clock = clock.Add(25 * time.Hour)
	store.Ingest("Kanal", payload, time.Time{})
	total = 0
	for _, n := range store.StatsAt(clock).Stats.UserGrowth {
		total += n
	}
	if total != 2 {
		t.Fatalf("growth total = %d, want 2: window elapsed", total)
	}
}

func TestStatsActionCountsClosedSet(t *testing.T) {
	now := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	store := NewStore(StoreOptions{ApplyIndependently: true, Now: fixedClock(now)})

	store.Ingest("Kanal", "Aktion: 💰 Paypal für 10€", time.Time{})
	store.Ingest("Kanal", "Aktion: 💰 Paypal für 10€", time.Time{})
	store.Ingest("Kanal", "Aktion: 🪙 Krypto für 250€", time.Time{})

	counts := store.Stats().Stats.ActionCounts
	if len(counts) != 5 {
		t.Fatalf("actionCounts has %d keys, want the closed set of 5", len(counts))
	}
	if counts[10] != 2 {
		t.Fatalf("actionCounts[10] = %d, want 2", counts[10])
	}
	if counts[5] != 0 || counts[15] != 0 || counts[25] != 0 || counts[30] != 0 {
		t.Fatalf("zero-valued amounts missing from tally: %+v", counts)
	}
	if _, ok := counts[250]; ok {
		t.Fatal("unrecognized amount leaked into the tally")
	}
	// The raw action is still stored even when outside the tallied set.
	text, err := store.SnapshotText()
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	agg, err := DecodeSnapshot(text)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(agg.Actions) != 3 {
		t.Fatalf("stored actions = %d, want 3", len(agg.Actions))
	}
}

func TestStatsUserGrowthWindow(t *testing.T) {
	now := time.Date(2026, 5, 31, 12, 0, 0, 0, time.UTC)
	store := NewStore(StoreOptions{Now: fixedClock(now)})

	store.Ingest("Kanal", sampleRegistration+"\n"+sampleAction, time.Time{})

	growth := store.StatsAt(now).Stats.UserGrowth
	if len(growth) != userGrowthDays {
		t.Fatalf("growth has %d days, want %d", len(growth), userGrowthDays)
	}
	if growth["2026-05-31"] != 1 {
		t.Fatalf("growth[2026-05-31] = %d, want 1", growth["2026-05-31"])
	}
	if got, ok := growth["2026-05-02"]; !ok || got != 0 {
		t.Fatalf("growth[2026-05-02] = %d (present=%v), want zero-filled oldest day", got, ok)
	}
	if _, ok := growth["2026-05-01"]; ok {
		t.Fatal("growth includes a day outside the trailing window")
	}
}

func TestStatsUserListSorted(t *testing.T) {
	now := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	store := NewStore(StoreOptions{ApplyIndependently: true, Now: fixedClock(now)})

	for _, reg := range []struct{ id, name string }{
		{"3", "Zoe"}, {"1", "Anna"}, {"2", "Anna"},
	} {
		store.Ingest("Kanal", "🎉Neuer Nutzer gestartet!\nID: "+reg.id+"\nName: "+reg.name, time.Time{})
	}

	users := store.Stats().Stats.UserList
	if len(users) != 3 {
		t.Fatalf("userList = %+v, want 3 users", users)
	}
	want := []UserSummary{{ID: "1", Name: "Anna"}, {ID: "2", Name: "Anna"}, {ID: "3", Name: "Zoe"}}
	for i := range want {
		if users[i] != want[i] {
			t.Fatalf("userList[%d] = %+v, want %+v", i, users[i], want[i])
		}
	}
}

func TestReplaceFromSnapshotSwapsWholesale(t *testing.T) {
	now := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	store := NewStore(StoreOptions{Now: fixedClock(now)})
	store.Ingest("Kanal", "before", time.Time{})

	replacement := NewAggregate()
	replacement.prependMessage(RawMessage{User: "other", Text: "after", Timestamp: "01.05.2026, 07:00:00"})
	text, err := EncodeSnapshot(replacement)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if err := store.ReplaceFromSnapshot(text); err != nil {
		t.Fatalf("replace: %v", err)
	}

	msgs := store.Stats().RawMessages
	if len(msgs) != 1 || msgs[0].Text != "after" {
		t.Fatalf("rawMessages = %+v, want only the replacement content", msgs)
	}
}

func TestWatchCoalescesNotifications(t *testing.T) {
	now := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	store := NewStore(StoreOptions{Now: fixedClock(now)})
	updates, cancel := store.Watch()
	defer cancel()

	for i := 0; i < 5; i++ {
		store.Ingest("Kanal", "msg", time.Time{})
	}

	select {
	case <-updates:
	default:
		t.Fatal("expected a pending update signal")
	}
	select {
	case <-updates:
		t.Fatal("signals should coalesce to at most one pending")
	default:
	}

	cancel()
	store.Ingest("Kanal", "msg", time.Time{})
	select {
	case <-updates:
		t.Fatal("canceled watcher should not be notified")
	default:
	}
}
