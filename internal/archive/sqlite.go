package archive

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/Kame-terry/line-bot/internal/domain"

	_ "modernc.org/sqlite"
)

// SQLite archives notes into a local database file.
type SQLite struct {
	db     *sql.DB
	logger *slog.Logger
	now    func() time.Time
}

// OpenSQLite opens (creating if needed) the database at dbPath and applies
// pending migrations.
func OpenSQLite(dbPath string, logger *slog.Logger) (*SQLite, error) {
	if logger == nil {
		logger = slog.Default()
	}
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cannot create database directory %s: %w", dir, err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("cannot open database: %w", err)
	}

	// Single connection for SQLite.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := RunMigrations(db, logger); err != nil {
		db.Close()
		return nil, fmt.Errorf("database migration failed: %w", err)
	}

	return &SQLite{db: db, logger: logger, now: time.Now}, nil
}

// Archive inserts note. Failures are logged and reported as ArchiveFailed.
func (s *SQLite) Archive(ctx context.Context, note domain.DerivedNote) domain.ArchiveResult {
	rec := NewRecord(note, s.now())
	result := domain.ArchiveResult{Status: domain.ArchiveFailed, Timestamp: rec.Timestamp()}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO notes (title, type, author, summary, content, source_url, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.Title, string(rec.Type), rec.Author, rec.Summary, rec.Content, rec.SourceURL, rec.ISOTime(),
	)
	if err != nil {
		s.logger.Error("sqlite archive failed", "type", rec.Type, "error", err)
		return result
	}

	s.logger.Info("note archived", "backend", "sqlite", "type", rec.Type)
	result.Status = domain.ArchiveSaved
	return result
}

// StoredNote is a row of the notes table.
type StoredNote struct {
	ID        int64
	Record
}

// Recent returns up to limit notes, newest first.
func (s *SQLite) Recent(ctx context.Context, limit int) ([]StoredNote, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, type, author, summary, content, source_url, created_at
		 FROM notes ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query notes: %w", err)
	}
	defer rows.Close()

	var out []StoredNote
	for rows.Next() {
		var (
			n       StoredNote
			typ     string
			created string
		)
		if err := rows.Scan(&n.ID, &n.Title, &typ, &n.Author, &n.Summary, &n.Content, &n.SourceURL, &created); err != nil {
			return nil, fmt.Errorf("scan note: %w", err)
		}
		n.Type = domain.NoteType(typ)
		if t, err := time.Parse(time.RFC3339, created); err == nil {
			n.CreatedAt = t.In(domain.LocalZone)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// Close closes the database.
func (s *SQLite) Close() error {
	return s.db.Close()
}
