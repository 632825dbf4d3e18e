package dispatch

import (
	"strings"
	"time"

	"github.com/Kame-terry/line-bot/internal/domain"
)

// Card is the content of a formatted pipeline reply.
type Card struct {
	Title       string
	Type        domain.NoteType
	Body        string
	SourceLabel string
	Source      string
}

// Compose renders a card with the archive outcome. The sink's timestamp is
// reused only when the note was saved; otherwise now is formatted.
func Compose(c Card, result domain.ArchiveResult, now time.Time) string {
	ts := domain.FormatTimestamp(now)
	if result.Status == domain.ArchiveSaved && result.Timestamp != "" {
		ts = result.Timestamp
	}

	var sb strings.Builder
	sb.WriteString("【")
	sb.WriteString(c.Title)
	sb.WriteString("】")
	if label := typeLabel(c.Type); label != "" {
		sb.WriteString("(" + label + ")")
	}
	sb.WriteString("\n\n")
	sb.WriteString(domain.Truncate(c.Body, maxBodyRunes))
	sb.WriteString("\n\n---\n")
	sb.WriteString(c.SourceLabel)
	sb.WriteString("：")
	sb.WriteString(excerpt(c.Source))
	sb.WriteString("\n\n")
	sb.WriteString(labelTime + "：")
	sb.WriteString(ts)
	sb.WriteString(statusSuffix(result.Status))

	return domain.Truncate(sb.String(), maxReplyRunes)
}

func excerpt(s string) string {
	if len([]rune(s)) <= maxExcerptRunes {
		return s
	}
	return domain.Truncate(s, maxExcerptRunes) + "..."
}
