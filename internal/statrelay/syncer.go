package statrelay

import (
	"context"
	"strings"
	"sync"
	"time"
)

// SnapshotBackend is the opaque boundary to the external snapshot store.
// Implementations carry no interpretation of the text.
type SnapshotBackend interface {
	Fetch(ctx context.Context) (string, error)
	Write(ctx context.Context, text string) error
}

type SyncState string

const (
	SyncIdle        SyncState = "idle"
	SyncPendingSave SyncState = "pending_save"
	SyncSaving      SyncState = "saving"
	SyncDegraded    SyncState = "degraded"
)

const (
	defaultDebounceDelay = 10 * time.Second
	defaultFlushInterval = 5 * time.Minute
	defaultWriteTimeout  = 30 * time.Second
)

type SyncerOptions struct {
	// DebounceDelay is the quiet period after the last mutation before a
	// save fires. Arming always replaces the previous timer.
	DebounceDelay time.Duration
	// FlushInterval bounds staleness under continuous input: a save fires
	// at this interval regardless of debounce state.
	FlushInterval time.Duration
	// MinSnapshotBytes guards the durable copy: serialized text shorter
	// than this is never written. Defaults to one byte more than an empty
	// Aggregate serializes to.
	MinSnapshotBytes int
	// WriteTimeout bounds a single backend write.
	WriteTimeout time.Duration
	Logger       Logger
	// DisableFlushLoop skips the periodic flush goroutine; used by tests
	// that drive saves explicitly.
	DisableFlushLoop bool
}

// Syncer keeps the Aggregate durable: load at startup, debounced save
// after mutations, periodic safety flush, and the undersize guard. Saves
// are mutually exclusive; a trigger arriving mid-save queues exactly one
// follow-up save. Failed writes are not retried here; the next debounce
// or flush trigger is the only retry mechanism.
type Syncer struct {
	store         *Store
	backend       SnapshotBackend
	debounceDelay time.Duration
	flushInterval time.Duration
	minBytes      int
	writeTimeout  time.Duration
	logger        Logger

	mu           sync.Mutex
	timer        *time.Timer
	saving       bool
	pending      bool
	degraded     bool
	lastSavedAt  time.Time
	lastSaveErr  string
	savedTotal   uint64
	skippedTotal uint64
	failedTotal  uint64

	closed    chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

func NewSyncer(store *Store, backend SnapshotBackend, opts SyncerOptions) *Syncer {
	debounceDelay := opts.DebounceDelay
	if debounceDelay <= 0 {
		debounceDelay = defaultDebounceDelay
	}
	flushInterval := opts.FlushInterval
	if flushInterval <= 0 {
		flushInterval = defaultFlushInterval
	}
	writeTimeout := opts.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = defaultWriteTimeout
	}
	minBytes := opts.MinSnapshotBytes
	if minBytes <= 0 {
		minBytes = 64
		if text, err := EncodeSnapshot(NewAggregate()); err == nil {
			minBytes = len(text) + 1
		}
	}
	s := &Syncer{
		store:         store,
		backend:       backend,
		debounceDelay: debounceDelay,
		flushInterval: flushInterval,
		minBytes:      minBytes,
		writeTimeout:  writeTimeout,
		logger:        opts.Logger,
		closed:        make(chan struct{}),
	}
	store.setScheduler(s)
	if !opts.DisableFlushLoop {
		s.wg.Add(1)
		go s.flushLoop()
	}
	return s
}

// Load fetches the stored snapshot once at startup. Any failure, empty
// fetch, undersized or malformed text leaves the Aggregate empty and the
// process running; startup never blocks on store health.
func (s *Syncer) Load(ctx context.Context) {
	text, err := s.backend.Fetch(ctx)
	if err != nil {
		s.mu.Lock()
		s.degraded = true
		s.mu.Unlock()
		s.logf("snapshot load failed, starting with empty state: %v", err)
		return
	}
	if strings.TrimSpace(text) == "" || len(text) < s.minBytes {
		s.logf("no usable stored snapshot (%d bytes), starting with empty state", len(text))
		return
	}
	if err := s.store.ReplaceFromSnapshot(text); err != nil {
		s.logf("stored snapshot rejected, starting with empty state: %v", err)
		return
	}
	s.logf("snapshot loaded (%d bytes)", len(text))
}

// ScheduleSave arms the debounce timer, replacing any armed timer so a
// burst of mutations coalesces into one save once input quiets down.
func (s *Syncer) ScheduleSave() {
	s.mu.Lock()
	defer s.mu.Unlock()
	select {
	case <-s.closed:
		return
	default:
	}
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.debounceDelay, s.debounceFired)
}

func (s *Syncer) debounceFired() {
	s.mu.Lock()
	s.timer = nil
	s.startSaveLocked()
	s.mu.Unlock()
}

// Flush triggers an immediate save, canceling any armed debounce timer
// since the save subsumes it.
func (s *Syncer) Flush() {
	s.mu.Lock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.startSaveLocked()
	s.mu.Unlock()
}

func (s *Syncer) flushLoop() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.flushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.closed:
			return
		case <-ticker.C:
			s.Flush()
		}
	}
}

// startSaveLocked starts the save goroutine, or marks a follow-up save
// if one is already running. Callers hold s.mu.
func (s *Syncer) startSaveLocked() {
	select {
	case <-s.closed:
		return
	default:
	}
	if s.saving {
		s.pending = true
		return
	}
	s.saving = true
	s.wg.Add(1)
	go s.saveLoop()
}

func (s *Syncer) saveLoop() {
	defer s.wg.Done()
	for {
		s.saveOnce()
		s.mu.Lock()
		if s.pending {
			s.pending = false
			s.mu.Unlock()
			continue
		}
		s.saving = false
		s.mu.Unlock()
		return
	}
}

func (s *Syncer) saveOnce() {
	text, err := s.store.SnapshotText()
	if err != nil {
		s.recordFailure(err.Error())
		s.logf("snapshot serialization failed: %v", err)
		return
	}
	if len(text) < s.minBytes {
		s.mu.Lock()
		s.skippedTotal++
		s.mu.Unlock()
		s.logf("skipping save: snapshot is %d bytes, below guard threshold %d", len(text), s.minBytes)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.writeTimeout)
	defer cancel()
	if err := s.backend.Write(ctx, text); err != nil {
		s.recordFailure(err.Error())
		s.logf("snapshot write failed: %v", err)
		return
	}

	s.mu.Lock()
	s.savedTotal++
	s.lastSavedAt = time.Now().UTC()
	s.lastSaveErr = ""
	s.degraded = false
	s.mu.Unlock()
}

func (s *Syncer) recordFailure(message string) {
	s.mu.Lock()
	s.failedTotal++
	s.lastSaveErr = message
	s.mu.Unlock()
}

func (s *Syncer) State() SyncState {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.saving:
		return SyncSaving
	case s.timer != nil:
		return SyncPendingSave
	case s.degraded:
		return SyncDegraded
	default:
		return SyncIdle
	}
}

type SyncStatus struct {
	State               SyncState `json:"state"`
	Degraded            bool      `json:"degraded"`
	LastSavedAt         string    `json:"lastSavedAt,omitempty"`
	LastError           string    `json:"lastError,omitempty"`
	SavedTotal          uint64    `json:"savedTotal"`
	SkippedTotal        uint64    `json:"skippedTotal"`
	FailedTotal         uint64    `json:"failedTotal"`
	GuardThresholdBytes int       `json:"guardThresholdBytes"`
	DebounceDelay       string    `json:"debounceDelay"`
	FlushInterval       string    `json:"flushInterval"`
}

func (s *Syncer) Status() SyncStatus {
	state := s.State()
	s.mu.Lock()
	defer s.mu.Unlock()
	status := SyncStatus{
		State:               state,
		Degraded:            s.degraded,
		LastError:           s.lastSaveErr,
		SavedTotal:          s.savedTotal,
		SkippedTotal:        s.skippedTotal,
		FailedTotal:         s.failedTotal,
		GuardThresholdBytes: s.minBytes,
		DebounceDelay:       s.debounceDelay.String(),
		FlushInterval:       s.flushInterval.String(),
	}
	if !s.lastSavedAt.IsZero() {
		status.LastSavedAt = s.lastSavedAt.Format(time.RFC3339Nano)
	}
	return status
}

// Close stops the timers and waits for any in-flight save. Mutations not
// yet persisted at shutdown are lost, which is the documented bounded
// data-loss window.
func (s *Syncer) Close() {
	s.closeOnce.Do(func() {
		close(s.closed)
		s.mu.Lock()
		if s.timer != nil {
			s.timer.Stop()
			s.timer = nil
		}
		s.mu.Unlock()
		s.wg.Wait()
	})
}

func (s *Syncer) logf(format string, args ...any) {
	if s.logger == nil {
		return
	}
	s.logger.Printf(format, args...)
}
