package domain

import (
	"context"
	"time"
)

// NoteType tags a DerivedNote with the pipeline that produced it.
type NoteType string

const (
	NoteVoice    NoteType = "VoiceNote"
	NoteText     NoteType = "TextSummary"
	NoteWeb      NoteType = "WebSummary"
	NoteFacebook NoteType = "FacebookSummary"
	NoteThreads  NoteType = "ThreadsSummary"
	NoteImage    NoteType = "Image"
)

// DerivedNote is the normalized record handed to the archival sink. It is
// immutable once built.
type DerivedNote struct {
	Title     string
	Summary   string
	Body      string
	Type      NoteType
	SourceURL string // optional
	AuthorID  string
	CreatedAt time.Time
}

// ArchiveStatus is the outcome of a single archival attempt.
type ArchiveStatus int

const (
	ArchiveNotConfigured ArchiveStatus = iota
	ArchiveSaved
	ArchiveFailed
)

func (s ArchiveStatus) String() string {
	switch s {
	case ArchiveSaved:
		return "saved"
	case ArchiveFailed:
		return "failed"
	default:
		return "not_configured"
	}
}

// ArchiveResult reports whether a note was persisted. Timestamp is the
// creation time written with the record; empty when nothing was attempted.
type ArchiveResult struct {
	Status    ArchiveStatus
	Timestamp string
}

// Archiver persists derived notes. Implementations never return errors:
// failures are reported through ArchiveResult.
type Archiver interface {
	Archive(ctx context.Context, note DerivedNote) ArchiveResult
}

// Uploader stores a local file in blob storage and returns a durable link.
type Uploader interface {
	Upload(ctx context.Context, path, name, mimeType string) (string, error)
}
