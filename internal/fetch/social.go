package fetch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ApifyConfig configures the actor-based social scraper.
type ApifyConfig struct {
	Token   string
	APIBase string // e.g. "https://api.apify.com/v2"
	Timeout time.Duration
	Client  *http.Client // optional; overrides Timeout
	Logger  *slog.Logger
}

// Apify runs Apify actors synchronously and returns their dataset items.
type Apify struct {
	token   string
	apiBase string
	client  *http.Client
	logger  *slog.Logger
}

func NewApify(cfg ApifyConfig) *Apify {
	if cfg.APIBase == "" {
		cfg.APIBase = "https://api.apify.com/v2"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}
	if cfg.Client == nil {
		cfg.Client = &http.Client{Timeout: cfg.Timeout}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Apify{
		token:   cfg.Token,
		apiBase: strings.TrimRight(cfg.APIBase, "/"),
		client:  cfg.Client,
		logger:  cfg.Logger,
	}
}

// RunActor runs actorID with input and returns the resulting dataset items.
// Actor IDs of the form "user/name" are accepted.
func (a *Apify) RunActor(ctx context.Context, actorID string, input any) ([]map[string]any, error) {
	body, err := json.Marshal(input)
	if err != nil {
		return nil, fmt.Errorf("marshal actor input: %w", err)
	}

	endpoint := fmt.Sprintf("%s/acts/%s/run-sync-get-dataset-items",
		a.apiBase, url.PathEscape(strings.ReplaceAll(actorID, "/", "~")))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+a.token)

	start := time.Now()
	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("apify request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("apify %d: %s", resp.StatusCode, string(respBody))
	}

	var items []map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&items); err != nil {
		return nil, fmt.Errorf("decode dataset items: %w", err)
	}

	a.logger.Info("actor run complete",
		"actor", actorID,
		"items", len(items),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return items, nil
}

// facebookInput asks the posts scraper for the single post at u.
func facebookInput(u string) map[string]any {
	return map[string]any{
		"startUrls":    []map[string]string{{"url": u}},
		"resultsLimit": 1,
	}
}

// threadsInput asks the threads scraper for the single post at u.
func threadsInput(u string) map[string]any {
	return map[string]any{
		"startUrls": []map[string]string{{"url": u}},
		"maxItems":  1,
	}
}

// facebookText returns the post text of the first item.
func facebookText(items []map[string]any) string {
	if len(items) == 0 {
		return ""
	}
	s, _ := items[0]["text"].(string)
	return s
}

// threadsText returns thread.text of the first item, else its top-level
// text, else "".
func threadsText(items []map[string]any) string {
	if len(items) == 0 {
		return ""
	}
	item := items[0]
	if thread, ok := item["thread"].(map[string]any); ok {
		if s, ok := thread["text"].(string); ok && s != "" {
			return s
		}
	}
	s, _ := item["text"].(string)
	return s
}
