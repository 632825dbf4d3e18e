package archive

import (
	"context"
	"time"

	"github.com/Kame-terry/line-bot/internal/domain"
)

// MaxTextRunes is the per-field text limit of the archive schema.
const MaxTextRunes = 2000

// Record is a DerivedNote normalized for persistence: text fields capped at
// MaxTextRunes and the creation time pinned to UTC+8.
type Record struct {
	Title     string
	Type      domain.NoteType
	Author    string
	Summary   string
	Content   string
	SourceURL string
	CreatedAt time.Time
}

// NewRecord normalizes note. A zero CreatedAt is replaced with now.
func NewRecord(note domain.DerivedNote, now time.Time) Record {
	created := note.CreatedAt
	if created.IsZero() {
		created = now
	}
	return Record{
		Title:     domain.Truncate(note.Title, MaxTextRunes),
		Type:      note.Type,
		Author:    note.AuthorID,
		Summary:   domain.Truncate(note.Summary, MaxTextRunes),
		Content:   domain.Truncate(note.Body, MaxTextRunes),
		SourceURL: note.SourceURL,
		CreatedAt: created.In(domain.LocalZone),
	}
}

// ISOTime is the creation time as ISO-8601 with the +08:00 offset.
func (r Record) ISOTime() string {
	return r.CreatedAt.Format(time.RFC3339)
}

// Timestamp is the creation time in the reply layout.
func (r Record) Timestamp() string {
	return domain.FormatTimestamp(r.CreatedAt)
}

// Nop is the archiver used when no backend is configured.
type Nop struct{}

func (Nop) Archive(ctx context.Context, note domain.DerivedNote) domain.ArchiveResult {
	return domain.ArchiveResult{Status: domain.ArchiveNotConfigured}
}
