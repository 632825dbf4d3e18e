package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Kame-terry/line-bot/internal/domain"
	"github.com/Kame-terry/line-bot/internal/fetch"
)

var errEmptyTranscript = errors.New("empty transcript")

// textPipeline summarizes the operand of the summarize command.
func (d *Dispatcher) textPipeline(ctx context.Context, log *slog.Logger, ev domain.InboundEvent, text string) (string, error) {
	sum := d.summarizer.Summarize(ctx, text)
	if sum.Degraded {
		log.Warn("summary degraded")
	}

	res := d.archive(ctx, log, domain.DerivedNote{
		Title:     sum.Title,
		Summary:   sum.Text,
		Body:      text,
		Type:      domain.NoteText,
		AuthorID:  ev.AuthorID,
		CreatedAt: d.now(),
	})

	return Compose(Card{
		Title:       sum.Title,
		Type:        domain.NoteText,
		Body:        sum.Text,
		SourceLabel: labelOriginal,
		Source:      text,
	}, res, d.now()), nil
}

// urlPipeline fetches a page, summarizes it and archives it with its URL.
func (d *Dispatcher) urlPipeline(ctx context.Context, log *slog.Logger, ev domain.InboundEvent, url string) (string, error) {
	page, err := d.pages.Fetch(ctx, url)
	switch {
	case errors.Is(err, fetch.ErrScraperNotConfigured):
		return "", fail(MsgScraperDisabled, err)
	case err != nil:
		return "", fail(MsgUnreadablePage, err)
	}
	log = log.With("source", page.Source.String())

	sum := d.summarizer.Summarize(ctx, page.Text)
	if sum.Degraded {
		log.Warn("summary degraded")
	}

	noteType := page.Source.NoteType()
	res := d.archive(ctx, log, domain.DerivedNote{
		Title:     sum.Title,
		Summary:   sum.Text,
		Body:      page.Text,
		Type:      noteType,
		SourceURL: url,
		AuthorID:  ev.AuthorID,
		CreatedAt: d.now(),
	})

	return Compose(Card{
		Title:       sum.Title,
		Type:        noteType,
		Body:        sum.Text,
		SourceLabel: labelSource,
		Source:      url,
	}, res, d.now()), nil
}

// audioPipeline transcribes a voice message and summarizes the transcript.
// The downloaded audio is removed before returning on every path.
func (d *Dispatcher) audioPipeline(ctx context.Context, log *slog.Logger, media domain.MediaSource, ev domain.InboundEvent) (string, error) {
	file, err := fetch.Materialize(ctx, media, ev.Content.Media, d.tempDir)
	if err != nil {
		return "", err
	}
	defer file.Remove()

	r, err := file.Open()
	if err != nil {
		return "", fmt.Errorf("open audio: %w", err)
	}
	defer r.Close()

	transcript, err := d.transcriber.Transcribe(ctx, r, file.Name())
	if err != nil {
		return "", fmt.Errorf("transcribe: %w", err)
	}
	transcript = strings.TrimSpace(transcript)
	if transcript == "" {
		return "", errEmptyTranscript
	}
	log.Debug("audio transcribed", "bytes", file.Size, "chars", len([]rune(transcript)))

	sum := d.summarizer.Summarize(ctx, transcript)
	if sum.Degraded {
		log.Warn("summary degraded")
	}

	res := d.archive(ctx, log, domain.DerivedNote{
		Title:     sum.Title,
		Summary:   sum.Text,
		Body:      transcript,
		Type:      domain.NoteVoice,
		AuthorID:  ev.AuthorID,
		CreatedAt: d.now(),
	})

	return Compose(Card{
		Title:       sum.Title,
		Type:        domain.NoteVoice,
		Body:        sum.Text,
		SourceLabel: labelOriginal,
		Source:      transcript,
	}, res, d.now()), nil
}

// imagePipeline uploads an image, describes it and archives the description
// with the storage link. The downloaded image is removed on every path.
func (d *Dispatcher) imagePipeline(ctx context.Context, log *slog.Logger, media domain.MediaSource, ev domain.InboundEvent) (string, error) {
	if d.uploader == nil {
		log.Info("image received but upload is not configured")
		return MsgImageDisabled, nil
	}

	file, err := fetch.Materialize(ctx, media, ev.Content.Media, d.tempDir)
	if err != nil {
		return "", err
	}
	defer file.Remove()

	// A failed upload only costs the link; the image is still described and
	// archived.
	name := uploadName(ev.Content.Media, d.now())
	link, err := d.uploader.Upload(ctx, file.Path, name, file.MimeType)
	switch {
	case err != nil:
		log.Error("image upload failed", "name", name, "error", err)
		link = ""
	case link == "":
		log.Error("image upload returned no link", "name", name)
	default:
		log.Debug("image uploaded", "name", name, "link", link)
	}

	data, err := file.ReadAll()
	if err != nil {
		return "", fmt.Errorf("read image: %w", err)
	}

	desc := d.describer.Describe(ctx, data, file.MimeType, link)
	if desc.Degraded {
		log.Warn("description degraded")
	}

	res := d.archive(ctx, log, domain.DerivedNote{
		Title:     desc.Title,
		Summary:   desc.Text,
		Body:      desc.Text,
		Type:      domain.NoteImage,
		SourceURL: link,
		AuthorID:  ev.AuthorID,
		CreatedAt: d.now(),
	})

	return Compose(Card{
		Title:       desc.Title,
		Type:        domain.NoteImage,
		Body:        desc.Text,
		SourceLabel: labelImageLink,
		Source:      linkOrMarker(link),
	}, res, d.now()), nil
}

func linkOrMarker(link string) string {
	if link == "" {
		return markerUploadFailed
	}
	return link
}

// uploadName names an upload by its local arrival time.
func uploadName(ref domain.MediaRef, now time.Time) string {
	return "image_" + now.In(domain.LocalZone).Format("20060102_150405") + ref.Suffix()
}
