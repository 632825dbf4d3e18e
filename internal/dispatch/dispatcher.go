// Package dispatch routes inbound events through the access gate to the
// content pipelines and composes exactly one reply per handled event.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/Kame-terry/line-bot/internal/domain"
	"github.com/Kame-terry/line-bot/internal/fetch"
	"github.com/Kame-terry/line-bot/internal/security"
)

// PageFetcher returns the readable text behind a URL.
type PageFetcher interface {
	Fetch(ctx context.Context, url string) (fetch.Page, error)
}

// Recorder receives dispatch metrics. Implemented by *metrics.Collector.
type Recorder interface {
	RecordEvent(channel, kind string)
	RecordDenied(kind string)
	RecordPipeline(pipeline, outcome string, d time.Duration)
	RecordArchive(status string)
	RecordReply(err error)
}

// Deps are the collaborators of a Dispatcher, built once at startup.
type Deps struct {
	Gate        *security.Gate
	Transcriber domain.Transcriber
	Summarizer  domain.Summarizer
	Describer   domain.Describer
	Pages       PageFetcher
	Archiver    domain.Archiver
	Uploader    domain.Uploader // nil when Drive is not configured
	Metrics     Recorder        // optional
	TempDir     string          // "" means os.TempDir
	Logger      *slog.Logger
	Now         func() time.Time
}

// Dispatcher is safe for concurrent use; it holds no per-event state.
type Dispatcher struct {
	gate        *security.Gate
	transcriber domain.Transcriber
	summarizer  domain.Summarizer
	describer   domain.Describer
	pages       PageFetcher
	archiver    domain.Archiver
	uploader    domain.Uploader
	metrics     Recorder
	tempDir     string
	logger      *slog.Logger
	now         func() time.Time
}

func New(deps Deps) *Dispatcher {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Metrics == nil {
		deps.Metrics = nopRecorder{}
	}
	return &Dispatcher{
		gate:        deps.Gate,
		transcriber: deps.Transcriber,
		summarizer:  deps.Summarizer,
		describer:   deps.Describer,
		pages:       deps.Pages,
		archiver:    deps.Archiver,
		uploader:    deps.Uploader,
		metrics:     deps.Metrics,
		tempDir:     deps.TempDir,
		logger:      deps.Logger.With("component", "dispatch"),
		now:         deps.Now,
	}
}

// Dispatch handles one event and returns the reply to send, or nil when the
// event gets no reply: unsupported content and text from a denied sender.
// media resolves MediaRefs for audio and image events.
func (d *Dispatcher) Dispatch(ctx context.Context, media domain.MediaSource, ev domain.InboundEvent) *domain.ReplyMessage {
	kind := ev.Content.Kind
	log := d.logger.With("event_id", ev.ID, "channel", ev.Channel, "kind", string(kind))
	d.metrics.RecordEvent(ev.Channel, string(kind))

	var text string
	switch kind {
	case domain.KindText:
		// Denied text is dropped silently so the bot stays invisible in groups.
		if !d.gate.Authorize(ev.AuthorID) {
			log.Info("text from unauthorized sender dropped", "author", ev.AuthorID)
			d.metrics.RecordDenied(string(kind))
			return nil
		}
		text = d.handleText(ctx, log, ev)

	case domain.KindAudio, domain.KindImage:
		if !d.gate.Authorize(ev.AuthorID) {
			log.Info("media from unauthorized sender denied", "author", ev.AuthorID)
			d.metrics.RecordDenied(string(kind))
			text = MsgPermissionDenied
			break
		}
		if kind == domain.KindAudio {
			text = d.guard(log, "audio", MsgAudioFailed, func() (string, error) {
				return d.audioPipeline(ctx, log, media, ev)
			})
		} else {
			text = d.guard(log, "image", MsgImageFailed, func() (string, error) {
				return d.imagePipeline(ctx, log, media, ev)
			})
		}

	default:
		log.Debug("unsupported content ignored")
		return nil
	}

	return &domain.ReplyMessage{ReplyHandle: ev.ReplyHandle, Text: text}
}

func (d *Dispatcher) handleText(ctx context.Context, log *slog.Logger, ev domain.InboundEvent) string {
	route, operand := ClassifyText(ev.Content.Text)
	log = log.With("route", route.String())

	switch route {
	case RouteSummarize:
		if operand == "" {
			return MsgUsage
		}
		return d.guard(log, "text", MsgTextFailed, func() (string, error) {
			return d.textPipeline(ctx, log, ev, operand)
		})
	case RouteURL:
		return d.guard(log, "url", MsgURLFailed, func() (string, error) {
			return d.urlPipeline(ctx, log, ev, operand)
		})
	default:
		return operand
	}
}

// failure attaches the fixed reply for a fatal pipeline error.
type failure struct {
	reply string
	err   error
}

func (f *failure) Error() string { return f.err.Error() }
func (f *failure) Unwrap() error { return f.err }

func fail(reply string, err error) error {
	return &failure{reply: reply, err: err}
}

// guard runs one pipeline. An error or panic is logged and replaced by the
// error's fixed reply, or fallback when it carries none.
func (d *Dispatcher) guard(log *slog.Logger, pipeline, fallback string, run func() (string, error)) (reply string) {
	start := d.now()
	log = log.With("pipeline", pipeline)
	outcome := "ok"

	defer func() {
		if r := recover(); r != nil {
			log.Error("pipeline panic", "panic", fmt.Sprint(r), "stack", string(debug.Stack()))
			reply = fallback
			outcome = "panic"
		}
		elapsed := d.now().Sub(start)
		d.metrics.RecordPipeline(pipeline, outcome, elapsed)
		log.Info("pipeline finished", "outcome", outcome, "duration_ms", elapsed.Milliseconds())
	}()

	reply, err := run()
	if err != nil {
		outcome = "error"
		log.Error("pipeline failed", "error", err)
		var f *failure
		if errors.As(err, &f) {
			return f.reply
		}
		return fallback
	}
	return reply
}

func (d *Dispatcher) archive(ctx context.Context, log *slog.Logger, note domain.DerivedNote) domain.ArchiveResult {
	res := d.archiver.Archive(ctx, note)
	d.metrics.RecordArchive(res.Status.String())
	log.Debug("archive result", "status", res.Status.String(), "type", string(note.Type))
	return res
}

// Bind returns an EventHandler that dispatches events and sends the reply
// through replier.
func (d *Dispatcher) Bind(media domain.MediaSource, replier domain.Replier) domain.EventHandler {
	return &boundHandler{d: d, media: media, replier: replier}
}

type boundHandler struct {
	d       *Dispatcher
	media   domain.MediaSource
	replier domain.Replier
}

func (h *boundHandler) HandleEvent(ctx context.Context, ev domain.InboundEvent) {
	msg := h.d.Dispatch(ctx, h.media, ev)
	if msg == nil {
		return
	}
	err := h.replier.Reply(ctx, *msg)
	h.d.metrics.RecordReply(err)
	if err != nil {
		h.d.logger.Error("reply failed", "event_id", ev.ID, "channel", ev.Channel, "error", err)
	}
}

type nopRecorder struct{}

func (nopRecorder) RecordEvent(string, string)                   {}
func (nopRecorder) RecordDenied(string)                          {}
func (nopRecorder) RecordPipeline(string, string, time.Duration) {}
func (nopRecorder) RecordArchive(string)                         {}
func (nopRecorder) RecordReply(error)                            {}
