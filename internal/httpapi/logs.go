package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// renderLogClient forwards the deployment's recent logs from the Render
// API and flattens them to plain text. Pure passthrough; failures map to
// a fixed operator-facing message in the handler.
type renderLogClient struct {
	baseURL    string
	apiKey     string
	serviceID  string
	limit      int
	httpClient *http.Client
}

func newRenderLogClient(baseURL, apiKey, serviceID string, limit int, httpClient *http.Client) *renderLogClient {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = "https://api.render.com"
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	if limit <= 0 {
		limit = 100
	}
	return &renderLogClient{
		baseURL:    baseURL,
		apiKey:     strings.TrimSpace(apiKey),
		serviceID:  strings.TrimSpace(serviceID),
		limit:      limit,
		httpClient: httpClient,
	}
}

func (c *renderLogClient) configured() bool {
	return c != nil && c.apiKey != "" && c.serviceID != ""
}

type renderLogEntry struct {
	Log struct {
		Timestamp string `json:"timestamp"`
		Message   string `json:"message"`
	} `json:"log"`
}

func (c *renderLogClient) fetch(ctx context.Context) (string, error) {
	url := fmt.Sprintf("%s/v1/services/%s/logs?limit=%d", c.baseURL, c.serviceID, c.limit)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("render logs request failed: status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var entries []renderLogEntry
	if err := json.Unmarshal(body, &entries); err != nil {
		return "", fmt.Errorf("render logs response not parsable: %w", err)
	}
	lines := make([]string, 0, len(entries))
	for _, entry := range entries {
		lines = append(lines, entry.Log.Timestamp+" - "+entry.Log.Message)
	}
	return strings.Join(lines, "\n"), nil
}
