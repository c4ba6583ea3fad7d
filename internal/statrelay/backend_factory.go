package statrelay

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
)

// BackendOptions carries the pieces a DSN alone cannot express.
type BackendOptions struct {
	BotToken   string
	HTTPClient *http.Client
	Logger     Logger
}

// BuildSnapshotBackendFromDSN selects a snapshot backend by DSN scheme:
// telegram://<chatID>/<messageID>, file://<path> (or a bare path),
// memory://, or a postgres:// connection string.
func BuildSnapshotBackendFromDSN(dsn string, opts BackendOptions) (SnapshotBackend, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, fmt.Errorf("%w: empty snapshot DSN", ErrInvalidInput)
	}
	scheme := ""
	if idx := strings.Index(dsn, "://"); idx >= 0 {
		scheme = strings.ToLower(strings.TrimSpace(dsn[:idx]))
	}
	switch scheme {
	case "", "file":
		path := strings.TrimSpace(strings.TrimPrefix(dsn, scheme+"://"))
		if path == "" {
			return nil, fmt.Errorf("%w: file DSN has no path", ErrInvalidInput)
		}
		return NewFileSnapshotBackend(path), nil
	case "memory", "mem", "inmem":
		return NewInMemorySnapshotBackend(), nil
	case "postgres", "postgresql":
		return NewPostgresSnapshotBackend(dsn)
	case "telegram":
		rest := dsn[len(scheme)+len("://"):]
		chatID, messageIDRaw, ok := strings.Cut(rest, "/")
		if !ok || strings.TrimSpace(chatID) == "" {
			return nil, fmt.Errorf("%w: telegram DSN must be telegram://<chatID>/<messageID>", ErrInvalidInput)
		}
		messageID, err := strconv.Atoi(strings.TrimSpace(messageIDRaw))
		if err != nil || messageID <= 0 {
			return nil, fmt.Errorf("%w: telegram DSN has invalid message id %q", ErrInvalidInput, messageIDRaw)
		}
		return NewTelegramSnapshotBackend(TelegramBackendOptions{
			BotToken:   opts.BotToken,
			ChatID:     strings.TrimSpace(chatID),
			MessageID:  messageID,
			HTTPClient: opts.HTTPClient,
			Logger:     opts.Logger,
		})
	case "mysql", "sqlite":
		return nil, fmt.Errorf("%w: snapshot backend %s", ErrNotImplemented, scheme)
	default:
		return nil, fmt.Errorf("unsupported snapshot backend scheme: %s", scheme)
	}
}
