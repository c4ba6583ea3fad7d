package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/agentworkforce/statrelay/internal/statrelay"
)

type Logger interface {
	Printf(format string, args ...any)
}

type ServerConfig struct {
	// WebhookSecret, when set, must match the
	// X-Telegram-Bot-Api-Secret-Token header on webhook deliveries.
	WebhookSecret string
	MaxBodyBytes  int64

	RenderAPIKey    string
	RenderServiceID string
	RenderBaseURL   string
	RenderLogLimit  int

	Logger Logger
}

type Server struct {
	store  *statrelay.Store
	syncer *statrelay.Syncer
	cfg    ServerConfig
	logs   *renderLogClient
}

func NewServer(store *statrelay.Store, syncer *statrelay.Syncer) *Server {
	return NewServerWithConfig(store, syncer, ServerConfig{})
}

func NewServerWithConfig(store *statrelay.Store, syncer *statrelay.Syncer, cfg ServerConfig) *Server {
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 1 << 20
	}
	if cfg.RenderLogLimit <= 0 {
		cfg.RenderLogLimit = 100
	}
	return &Server{
		store:  store,
		syncer: syncer,
		cfg:    cfg,
		logs:   newRenderLogClient(cfg.RenderBaseURL, cfg.RenderAPIKey, cfg.RenderServiceID, cfg.RenderLogLimit, nil),
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == "/healthz" && r.Method == http.MethodGet:
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	case r.URL.Path == "/telegram/webhook" && r.Method == http.MethodPost:
		s.handleWebhook(w, r)
	case r.URL.Path == "/api/stats" && r.Method == http.MethodGet:
		writeJSON(w, http.StatusOK, s.store.Stats())
	case r.URL.Path == "/api/stats/live" && r.Method == http.MethodGet:
		s.handleLiveStats(w, r)
	case r.URL.Path == "/api/logs" && r.Method == http.MethodGet:
		s.handleLogs(w, r)
	case r.URL.Path == "/api/snapshot" && r.Method == http.MethodGet:
		s.handleSnapshot(w, r)
	case r.URL.Path == "/api/snapshot/flush" && r.Method == http.MethodPost:
		s.handleSnapshotFlush(w, r)
	case r.URL.Path == "/" && r.Method == http.MethodGet:
		s.handleDashboard(w, r)
	default:
		writeError(w, http.StatusNotFound, "not_found", "route not found")
	}
}

// telegramUpdate is the subset of a Bot API update this service reads.
type telegramUpdate struct {
	Message     *telegramMessage `json:"message"`
	ChannelPost *telegramMessage `json:"channel_post"`
}

type telegramMessage struct {
	Text string        `json:"text"`
	Date int64         `json:"date"`
	From *telegramPeer `json:"from"`
	Chat telegramChat  `json:"chat"`
}

type telegramPeer struct {
	FirstName string `json:"first_name"`
}

type telegramChat struct {
	Title string `json:"title"`
}

// handleWebhook ingests one update. Once the body is syntactically a
// Telegram update the response is always 200: parse misses, unknown
// shapes and persistence problems are never surfaced to the source, and
// persistence is only scheduled, never awaited, so a slow snapshot store
// cannot delay the acknowledgment.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	if s.cfg.WebhookSecret != "" && r.Header.Get("X-Telegram-Bot-Api-Secret-Token") != s.cfg.WebhookSecret {
		writeError(w, http.StatusUnauthorized, "unauthorized", "invalid webhook secret token")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, "payload_too_large", "request body exceeds configured limit")
			return
		}
		writeError(w, http.StatusBadRequest, "bad_request", "failed to read request body")
		return
	}

	var update telegramUpdate
	if err := json.Unmarshal(body, &update); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid json body")
		return
	}

	msg := update.Message
	if msg == nil {
		msg = update.ChannelPost
	}
	if msg == nil || msg.Text == "" {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}

	author := msg.Chat.Title
	if msg.From != nil && msg.From.FirstName != "" {
		author = msg.From.FirstName
	}
	var sentAt time.Time
	if msg.Date > 0 {
		sentAt = time.Unix(msg.Date, 0)
	}

	s.store.Ingest(author, msg.Text, sentAt)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	if !s.logs.configured() {
		http.Error(w, "Render API key or service ID is not configured.", http.StatusInternalServerError)
		return
	}
	text, err := s.logs.fetch(r.Context())
	if err != nil {
		s.logf("render log fetch failed: %v", err)
		http.Error(w, "Failed to fetch Render logs. See server logs for details.", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(text))
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	text, err := s.store.SnapshotText()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"snapshot": text,
		"sync":     s.syncer.Status(),
	})
}

func (s *Server) handleSnapshotFlush(w http.ResponseWriter, r *http.Request) {
	s.syncer.Flush()
	writeJSON(w, http.StatusAccepted, map[string]any{
		"status": "flush_triggered",
		"sync":   s.syncer.Status(),
	})
}

func (s *Server) logf(format string, args ...any) {
	if s.cfg.Logger == nil {
		return
	}
	s.cfg.Logger.Printf(format, args...)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]any{
		"code":    code,
		"message": message,
	})
}
