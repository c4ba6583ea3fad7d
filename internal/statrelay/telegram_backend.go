package statrelay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// TelegramBackendOptions configures the Telegram snapshot backend. The
// durable copy lives in a single message inside ChatID; Fetch forwards
// that message back into the same chat to read its text (the Bot API has
// no direct read call) and Write edits the message in place.
type TelegramBackendOptions struct {
	BaseURL    string
	BotToken   string
	ChatID     string
	MessageID  int
	HTTPClient *http.Client
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	Logger     Logger
}

type TelegramSnapshotBackend struct {
	baseURL    string
	botToken   string
	chatID     string
	messageID  int
	httpClient *http.Client
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
	logger     Logger
}

func NewTelegramSnapshotBackend(opts TelegramBackendOptions) (*TelegramSnapshotBackend, error) {
	botToken := strings.TrimSpace(opts.BotToken)
	chatID := strings.TrimSpace(opts.ChatID)
	if botToken == "" || chatID == "" || opts.MessageID <= 0 {
		return nil, fmt.Errorf("%w: bot token, chat id and message id are required", ErrInvalidInput)
	}
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = "https://api.telegram.org"
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 20 * time.Second}
	}
	maxRetries := opts.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	baseDelay := opts.BaseDelay
	if baseDelay <= 0 {
		baseDelay = 100 * time.Millisecond
	}
	maxDelay := opts.MaxDelay
	if maxDelay <= 0 {
		maxDelay = 2 * time.Second
	}
	return &TelegramSnapshotBackend{
		baseURL:    baseURL,
		botToken:   botToken,
		chatID:     chatID,
		messageID:  opts.MessageID,
		httpClient: httpClient,
		maxRetries: maxRetries,
		baseDelay:  baseDelay,
		maxDelay:   maxDelay,
		logger:     opts.Logger,
	}, nil
}

type telegramResult struct {
	MessageID int    `json:"message_id"`
	Text      string `json:"text"`
}

type telegramResponse struct {
	OK          bool            `json:"ok"`
	Result      *telegramResult `json:"result"`
	ErrorCode   int             `json:"error_code"`
	Description string          `json:"description"`
	Parameters  struct {
		RetryAfter int `json:"retry_after"`
	} `json:"parameters"`
}

// Fetch reads the stored snapshot text by forwarding the database
// message back into its own chat and reading the text off the forwarded
// copy, which is then deleted best-effort.
func (b *TelegramSnapshotBackend) Fetch(ctx context.Context) (string, error) {
	resp, err := b.call(ctx, "forwardMessage", map[string]any{
		"chat_id":              b.chatID,
		"from_chat_id":         b.chatID,
		"message_id":           b.messageID,
		"disable_notification": true,
	})
	if err != nil {
		return "", err
	}
	if resp.Result == nil {
		return "", nil
	}
	if resp.Result.MessageID != 0 {
		if _, err := b.call(ctx, "deleteMessage", map[string]any{
			"chat_id":    b.chatID,
			"message_id": resp.Result.MessageID,
		}); err != nil {
			b.logf("failed to delete forwarded snapshot copy: %v", err)
		}
	}
	return resp.Result.Text, nil
}

func (b *TelegramSnapshotBackend) Write(ctx context.Context, text string) error {
	_, err := b.call(ctx, "editMessageText", map[string]any{
		"chat_id":                  b.chatID,
		"message_id":               b.messageID,
		"text":                     text,
		"disable_web_page_preview": true,
	})
	return err
}

func (b *TelegramSnapshotBackend) call(ctx context.Context, method string, payload map[string]any) (*telegramResponse, error) {
	if b == nil {
		return nil, fmt.Errorf("telegram backend is nil")
	}
	bodyBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	url := b.baseURL + "/bot" + b.botToken + "/" + method

	for attempt := 0; ; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bodyBytes))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := b.httpClient.Do(req)
		if err != nil {
			if attempt < b.maxRetries {
				if waitErr := sleepContext(ctx, b.retryDelay(attempt+1, 0)); waitErr != nil {
					return nil, waitErr
				}
				continue
			}
			return nil, fmt.Errorf("%w: telegram %s: %v", ErrStoreUnavailable, method, err)
		}

		respBody, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if readErr != nil {
			return nil, fmt.Errorf("%w: telegram %s: %v", ErrStoreUnavailable, method, readErr)
		}

		var parsed telegramResponse
		if unmarshalErr := json.Unmarshal(respBody, &parsed); unmarshalErr == nil && parsed.OK {
			return &parsed, nil
		}

		// Editing a message with identical content is rejected by the
		// API but means the durable copy is already current.
		if method == "editMessageText" && strings.Contains(parsed.Description, "message is not modified") {
			return &parsed, nil
		}

		if (resp.StatusCode == http.StatusTooManyRequests || (resp.StatusCode >= 500 && resp.StatusCode <= 599)) && attempt < b.maxRetries {
			retryAfter := time.Duration(parsed.Parameters.RetryAfter) * time.Second
			if retryAfter == 0 {
				retryAfter = parseRetryAfterSeconds(resp.Header.Get("Retry-After"))
			}
			if waitErr := sleepContext(ctx, b.retryDelay(attempt+1, retryAfter)); waitErr != nil {
				return nil, waitErr
			}
			continue
		}

		description := strings.TrimSpace(parsed.Description)
		if description == "" {
			description = strings.TrimSpace(string(respBody))
		}
		return nil, fmt.Errorf("%w: telegram %s failed: status=%d description=%s", ErrStoreUnavailable, method, resp.StatusCode, description)
	}
}

func (b *TelegramSnapshotBackend) retryDelay(attempt int, retryAfter time.Duration) time.Duration {
	if retryAfter > 0 {
		if retryAfter > b.maxDelay {
			return b.maxDelay
		}
		return retryAfter
	}
	delay := b.baseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= b.maxDelay {
			return b.maxDelay
		}
	}
	if delay > b.maxDelay {
		return b.maxDelay
	}
	return delay
}

func (b *TelegramSnapshotBackend) logf(format string, args ...any) {
	if b == nil || b.logger == nil {
		return
	}
	b.logger.Printf(format, args...)
}

func parseRetryAfterSeconds(header string) time.Duration {
	header = strings.TrimSpace(header)
	if header == "" {
		return 0
	}
	seconds, err := strconv.Atoi(header)
	if err != nil || seconds < 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}

func sleepContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
