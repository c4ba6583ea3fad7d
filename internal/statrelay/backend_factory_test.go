package statrelay

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

func TestBuildBackendFile(t *testing.T) {
	for _, dsn := range []string{"file:///tmp/state.json", "/tmp/state.json"} {
		backend, err := BuildSnapshotBackendFromDSN(dsn, BackendOptions{})
		if err != nil {
			t.Fatalf("BuildSnapshotBackendFromDSN(%q): %v", dsn, err)
		}
		if _, ok := backend.(*FileSnapshotBackend); !ok {
			t.Fatalf("BuildSnapshotBackendFromDSN(%q) = %T, want *FileSnapshotBackend", dsn, backend)
		}
	}
	if _, err := BuildSnapshotBackendFromDSN("file://", BackendOptions{}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("err = %v, want ErrInvalidInput for pathless file DSN", err)
	}
}

func TestBuildBackendMemory(t *testing.T) {
	for _, dsn := range []string{"memory://", "mem://", "inmem://"} {
		backend, err := BuildSnapshotBackendFromDSN(dsn, BackendOptions{})
		if err != nil {
			t.Fatalf("BuildSnapshotBackendFromDSN(%q): %v", dsn, err)
		}
		if _, ok := backend.(*InMemorySnapshotBackend); !ok {
			t.Fatalf("BuildSnapshotBackendFromDSN(%q) = %T, want *InMemorySnapshotBackend", dsn, backend)
		}
	}
}

func TestBuildBackendTelegram(t *testing.T) {
	backend, err := BuildSnapshotBackendFromDSN("telegram://-100200300/42", BackendOptions{BotToken: "123:abc"})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	tg, ok := backend.(*TelegramSnapshotBackend)
	if !ok {
		t.Fatalf("backend = %T, want *TelegramSnapshotBackend", backend)
	}
	if tg.chatID != "-100200300" || tg.messageID != 42 {
		t.Fatalf("backend = chat %q message %d", tg.chatID, tg.messageID)
	}

	invalid := []string{
		"telegram://",
		"telegram://-100200300",
		"telegram://-100200300/zero",
		"telegram://-100200300/0",
	}
	for _, dsn := range invalid {
		if _, err := BuildSnapshotBackendFromDSN(dsn, BackendOptions{BotToken: "123:abc"}); !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("BuildSnapshotBackendFromDSN(%q) err = %v, want ErrInvalidInput", dsn, err)
		}
	}

	if _, err := BuildSnapshotBackendFromDSN("telegram://-100200300/42", BackendOptions{}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("err = %v, want ErrInvalidInput without a bot token", err)
	}
}

func TestBuildBackendRejections(t *testing.T) {
	if _, err := BuildSnapshotBackendFromDSN("", BackendOptions{}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("err = %v, want ErrInvalidInput for empty DSN", err)
	}
	for _, dsn := range []string{"mysql://u:p@host/db", "sqlite://state.db"} {
		if _, err := BuildSnapshotBackendFromDSN(dsn, BackendOptions{}); !errors.Is(err, ErrNotImplemented) {
			t.Fatalf("BuildSnapshotBackendFromDSN(%q) err = %v, want ErrNotImplemented", dsn, err)
		}
	}
	if _, err := BuildSnapshotBackendFromDSN("redis://host", BackendOptions{}); err == nil {
		t.Fatal("unknown scheme should fail")
	}
}

func TestFileBackendRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "state.json")
	backend := NewFileSnapshotBackend(path)
	ctx := context.Background()

	text, err := backend.Fetch(ctx)
	if err != nil {
		t.Fatalf("fetch on missing file: %v", err)
	}
	if text != "" {
		t.Fatalf("text = %q, want empty for missing file", text)
	}

	if err := backend.Write(ctx, "snapshot text"); err != nil {
		t.Fatalf("write: %v", err)
	}
	text, err = backend.Fetch(ctx)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if text != "snapshot text" {
		t.Fatalf("text = %q", text)
	}

	// Overwrite must fully replace, not append.
	if err := backend.Write(ctx, "v2"); err != nil {
		t.Fatalf("write: %v", err)
	}
	text, _ = backend.Fetch(ctx)
	if text != "v2" {
		t.Fatalf("text = %q, want v2", text)
	}
}

func TestInMemoryBackendRoundTrip(t *testing.T) {
	backend := NewInMemorySnapshotBackend()
	ctx := context.Background()

	text, err := backend.Fetch(ctx)
	if err != nil || text != "" {
		t.Fatalf("fetch = %q, %v, want empty", text, err)
	}
	if err := backend.Write(ctx, "hello"); err != nil {
		t.Fatalf("write: %v", err)
	}
	text, err = backend.Fetch(ctx)
	if err != nil || text != "hello" {
		t.Fatalf("fetch = %q, %v, want hello", text, err)
	}
}
