package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/Kame-terry/line-bot/internal/domain"
)

// NotionConfig configures the Notion database sink.
type NotionConfig struct {
	Token      string
	DatabaseID string
	APIBase    string // default "https://api.notion.com/v1"
	Version    string // Notion-Version header
	Timeout    time.Duration
	Client     *http.Client // optional; overrides Timeout
	Logger     *slog.Logger
	// Configured reports whether Token and DatabaseID are real values.
	// When false the sink never touches the network.
	Configured bool
}

// Notion writes each note as a page in a Notion database.
type Notion struct {
	token      string
	databaseID string
	apiBase    string
	version    string
	configured bool
	client     *http.Client
	logger     *slog.Logger
	now        func() time.Time
}

func NewNotion(cfg NotionConfig) *Notion {
	if cfg.APIBase == "" {
		cfg.APIBase = "https://api.notion.com/v1"
	}
	if cfg.Version == "" {
		cfg.Version = "2022-06-28"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Client == nil {
		cfg.Client = &http.Client{Timeout: cfg.Timeout}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Notion{
		token:      cfg.Token,
		databaseID: cfg.DatabaseID,
		apiBase:    strings.TrimRight(cfg.APIBase, "/"),
		version:    cfg.Version,
		configured: cfg.Configured && cfg.Token != "" && cfg.DatabaseID != "",
		client:     cfg.Client,
		logger:     cfg.Logger,
		now:        time.Now,
	}
}

// Archive creates a page for note. It never returns an error: an unconfigured
// sink reports NotConfigured, any transport or API failure reports Failed.
func (n *Notion) Archive(ctx context.Context, note domain.DerivedNote) domain.ArchiveResult {
	if !n.configured {
		return domain.ArchiveResult{Status: domain.ArchiveNotConfigured}
	}

	rec := NewRecord(note, n.now())
	result := domain.ArchiveResult{Status: domain.ArchiveFailed, Timestamp: rec.Timestamp()}

	if err := n.createPage(ctx, rec); err != nil {
		n.logger.Error("notion archive failed", "type", rec.Type, "error", err)
		return result
	}

	n.logger.Info("note archived", "backend", "notion", "type", rec.Type)
	result.Status = domain.ArchiveSaved
	return result
}

func (n *Notion) createPage(ctx context.Context, rec Record) error {
	body, err := json.Marshal(pageRequest(n.databaseID, rec))
	if err != nil {
		return fmt.Errorf("marshal page: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.apiBase+"/pages", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+n.token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Notion-Version", n.version)

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("notion request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("notion %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}

type richText struct {
	Text struct {
		Content string `json:"content"`
	} `json:"text"`
}

func textBlock(s string) []richText {
	var rt richText
	rt.Text.Content = s
	return []richText{rt}
}

// pageRequest builds the create-page body. URL is set only when the note has
// a source link.
func pageRequest(databaseID string, rec Record) map[string]any {
	props := map[string]any{
		"Title":   map[string]any{"title": textBlock(rec.Title)},
		"Type":    map[string]any{"multi_select": []map[string]string{{"name": string(rec.Type)}}},
		"Author":  map[string]any{"rich_text": textBlock(rec.Author)},
		"Summary": map[string]any{"rich_text": textBlock(rec.Summary)},
		"Content": map[string]any{"rich_text": textBlock(rec.Content)},
		"Created": map[string]any{"date": map[string]string{"start": rec.ISOTime()}},
	}
	if rec.SourceURL != "" {
		props["URL"] = map[string]any{"url": rec.SourceURL}
	}
	return map[string]any{
		"parent":     map[string]string{"database_id": databaseID},
		"properties": props,
	}
}
