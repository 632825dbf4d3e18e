package archive

import (
	"fmt"
	"log/slog"

	"github.com/Kame-terry/line-bot/internal/config"
	"github.com/Kame-terry/line-bot/internal/domain"
)

// New builds the archiver selected by cfg.Archive.Backend. The returned close
// func releases backend resources and is never nil.
func New(cfg *config.Config, logger *slog.Logger) (domain.Archiver, func() error, error) {
	noop := func() error { return nil }

	switch cfg.Archive.Backend {
	case config.ArchiveBackendSQLite:
		s, err := OpenSQLite(cfg.Archive.SQLitePath, logger.With("component", "archive.sqlite"))
		if err != nil {
			return nil, noop, fmt.Errorf("open sqlite archive: %w", err)
		}
		return s, s.Close, nil

	case config.ArchiveBackendNone:
		return Nop{}, noop, nil

	default:
		n := NewNotion(NotionConfig{
			Token:      cfg.Notion.Token,
			DatabaseID: cfg.Notion.DatabaseID,
			APIBase:    cfg.Notion.APIBase,
			Version:    cfg.Notion.Version,
			Timeout:    config.Seconds(cfg.Notion.TimeoutSeconds),
			Configured: cfg.NotionConfigured(),
			Logger:     logger.With("component", "archive.notion"),
		})
		if !cfg.NotionConfigured() {
			logger.Info("notion archive disabled: credentials not configured")
		}
		return n, noop, nil
	}
}
