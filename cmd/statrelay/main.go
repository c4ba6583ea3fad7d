package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/agentworkforce/statrelay/internal/httpapi"
	"github.com/agentworkforce/statrelay/internal/statrelay"
)

func main() {
	addr := listenAddrFromEnv()

	store := statrelay.NewStore(statrelay.StoreOptions{
		ApplyIndependently: boolEnv("STATRELAY_APPLY_INDEPENDENT_EVENTS", false),
		Logger:             log.Default(),
	})

	backend, err := buildSnapshotBackendFromEnv()
	if err != nil {
		log.Fatalf("failed to initialize snapshot backend: %v", err)
	}

	syncer := statrelay.NewSyncer(store, backend, statrelay.SyncerOptions{
		DebounceDelay:    durationEnv("STATRELAY_SAVE_DEBOUNCE", 0),
		FlushInterval:    durationEnv("STATRELAY_FLUSH_INTERVAL", 0),
		MinSnapshotBytes: intEnv("STATRELAY_MIN_SNAPSHOT_BYTES", 0),
		WriteTimeout:     durationEnv("STATRELAY_WRITE_TIMEOUT", 0),
		Logger:           log.Default(),
	})
	defer syncer.Close()

	loadCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	syncer.Load(loadCtx)
	cancel()

	server := httpapi.NewServerWithConfig(store, syncer, httpapi.ServerConfig{
		WebhookSecret:   os.Getenv("STATRELAY_WEBHOOK_SECRET"),
		MaxBodyBytes:    int64Env("STATRELAY_MAX_BODY_BYTES", 0),
		RenderAPIKey:    os.Getenv("RENDER_API_KEY"),
		RenderServiceID: os.Getenv("RENDER_SERVICE_ID"),
		RenderBaseURL:   os.Getenv("STATRELAY_RENDER_BASE_URL"),
		RenderLogLimit:  intEnv("STATRELAY_RENDER_LOG_LIMIT", 0),
		Logger:          log.Default(),
	})

	log.Printf("statrelay listening on %s", addr)
	if err := http.ListenAndServe(addr, server); err != nil {
		log.Fatalf("server failed: %v", err)
	}
}

func listenAddrFromEnv() string {
	if addr := strings.TrimSpace(os.Getenv("STATRELAY_ADDR")); addr != "" {
		return addr
	}
	// Render injects PORT.
	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		return ":" + port
	}
	return ":10000"
}

// buildSnapshotBackendFromEnv resolves the snapshot backend: an explicit
// DSN wins, otherwise the Telegram database-message variables select the
// telegram backend, otherwise state stays in memory only.
func buildSnapshotBackendFromEnv() (statrelay.SnapshotBackend, error) {
	opts := statrelay.BackendOptions{
		BotToken: strings.TrimSpace(os.Getenv("TELEGRAM_BOT_TOKEN")),
		Logger:   log.Default(),
	}
	if dsn := strings.TrimSpace(os.Getenv("STATRELAY_SNAPSHOT_DSN")); dsn != "" {
		return statrelay.BuildSnapshotBackendFromDSN(dsn, opts)
	}
	chatID := strings.TrimSpace(os.Getenv("DATABASE_CHAT_ID"))
	messageID := strings.TrimSpace(os.Getenv("DATABASE_MESSAGE_ID"))
	if chatID != "" && messageID != "" {
		return statrelay.BuildSnapshotBackendFromDSN("telegram://"+chatID+"/"+messageID, opts)
	}
	log.Printf("no snapshot backend configured; state is kept in memory only")
	return statrelay.NewInMemorySnapshotBackend(), nil
}

func intEnv(name string, fallback int) int {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		log.Printf("invalid %s=%q, using fallback %d", name, raw, fallback)
		return fallback
	}
	return value
}

func int64Env(name string, fallback int64) int64 {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		log.Printf("invalid %s=%q, using fallback %d", name, raw, fallback)
		return fallback
	}
	return value
}

func boolEnv(name string, fallback bool) bool {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		log.Printf("invalid %s=%q, using fallback %v", name, raw, fallback)
		return fallback
	}
	return value
}

func durationEnv(name string, fallback time.Duration) time.Duration {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	value, err := time.ParseDuration(raw)
	if err != nil {
		log.Printf("invalid %s=%q, using fallback %s", name, raw, fallback.String())
		return fallback
	}
	return value
}
