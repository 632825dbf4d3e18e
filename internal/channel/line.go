package channel

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"
	"github.com/line/line-bot-sdk-go/v8/linebot/webhook"

	"github.com/Kame-terry/line-bot/internal/domain"
)

// drainTimeout bounds how long shutdown waits for webhook handlers. It covers
// one transcription plus two completions at the default client timeout.
const drainTimeout = 5 * time.Minute

// LINEConfig configures the LINE Messaging API transport.
type LINEConfig struct {
	ChannelSecret      string
	ChannelAccessToken string
	APIEndpoint        string // optional override of https://api.line.me
	BlobEndpoint       string // optional override of https://api-data.line.me
	HTTPClient         *http.Client
	Logger             *slog.Logger
}

// LINE receives webhook callbacks and talks to the Messaging API. It is the
// webhook http.Handler, the Replier and the MediaSource for LINE events.
type LINE struct {
	secret  string
	api     *messaging_api.MessagingApiAPI
	blob    *messaging_api.MessagingApiBlobAPI
	handler domain.EventHandler
	logger  *slog.Logger

	mu       sync.Mutex
	draining bool
	inflight sync.WaitGroup
}

func NewLINE(cfg LINEConfig) (*LINE, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	var apiOpts []messaging_api.MessagingApiAPIOption
	var blobOpts []messaging_api.MessagingApiBlobAPIOption
	if cfg.HTTPClient != nil {
		apiOpts = append(apiOpts, messaging_api.WithHTTPClient(cfg.HTTPClient))
		blobOpts = append(blobOpts, messaging_api.WithBlobHTTPClient(cfg.HTTPClient))
	}
	if cfg.APIEndpoint != "" {
		apiOpts = append(apiOpts, messaging_api.WithEndpoint(cfg.APIEndpoint))
	}
	if cfg.BlobEndpoint != "" {
		blobOpts = append(blobOpts, messaging_api.WithBlobEndpoint(cfg.BlobEndpoint))
	}

	api, err := messaging_api.NewMessagingApiAPI(cfg.ChannelAccessToken, apiOpts...)
	if err != nil {
		return nil, fmt.Errorf("line messaging api: %w", err)
	}
	blob, err := messaging_api.NewMessagingApiBlobAPI(cfg.ChannelAccessToken, blobOpts...)
	if err != nil {
		return nil, fmt.Errorf("line blob api: %w", err)
	}

	return &LINE{
		secret: cfg.ChannelSecret,
		api:    api,
		blob:   blob,
		logger: cfg.Logger.With("component", "line"),
	}, nil
}

func (l *LINE) Name() string { return "line" }

// SetHandler installs the consumer of converted events. Must be called
// before the webhook receives traffic.
func (l *LINE) SetHandler(h domain.EventHandler) {
	l.handler = h
}

// ServeHTTP verifies and parses a webhook callback, starts one handler
// goroutine per event and answers 200 without waiting for them, so slow
// pipelines do not trip LINE's webhook timeout and cause redeliveries. A bad
// signature is answered with 400 and nothing is dispatched.
func (l *LINE) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	cb, err := webhook.ParseRequest(l.secret, r)
	if err != nil {
		if errors.Is(err, webhook.ErrInvalidSignature) {
			l.logger.Warn("invalid webhook signature", "remote", r.RemoteAddr)
			http.Error(w, "invalid signature", http.StatusBadRequest)
			return
		}
		l.logger.Error("parse webhook", "error", err)
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	// Handlers outlive the request; reply tokens stay valid after the 200.
	ctx := context.WithoutCancel(r.Context())

	for _, raw := range cb.Events {
		ev, ok := ConvertLINEEvent(raw)
		if !ok {
			continue
		}
		if ev.Redelivery {
			l.logger.Info("redelivered event", "event_id", ev.ID)
		}
		if l.handler == nil {
			l.logger.Error("no event handler installed", "event_id", ev.ID)
			continue
		}
		l.dispatch(ctx, ev)
	}

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// dispatch hands ev to the handler on a tracked goroutine. Once draining has
// begun the event is handled inline, so the HTTP server's own shutdown wait
// covers it.
func (l *LINE) dispatch(ctx context.Context, ev domain.InboundEvent) {
	l.mu.Lock()
	if l.draining {
		l.mu.Unlock()
		l.handler.HandleEvent(ctx, ev)
		return
	}
	l.inflight.Add(1)
	l.mu.Unlock()

	go func() {
		defer l.inflight.Done()
		l.handler.HandleEvent(ctx, ev)
	}()
}

// Drain waits for in-flight event handlers. It returns ctx.Err() if ctx ends
// first; the handlers keep running either way.
func (l *LINE) Drain(ctx context.Context) error {
	l.mu.Lock()
	l.draining = true
	l.mu.Unlock()

	done := make(chan struct{})
	go func() {
		l.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run blocks until ctx is cancelled and then drains in-flight handlers for up
// to drainTimeout. It is meant to run as a server worker.
func (l *LINE) Run(ctx context.Context) error {
	<-ctx.Done()
	l.logger.Info("draining webhook handlers")

	dctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()
	if err := l.Drain(dctx); err != nil {
		l.logger.Warn("webhook handlers still running at shutdown", "error", err)
	}
	return nil
}

// ConvertLINEEvent maps a webhook event onto an InboundEvent. Only message
// events are converted; message types other than text, audio and image
// become KindUnsupported.
func ConvertLINEEvent(raw webhook.EventInterface) (domain.InboundEvent, bool) {
	e, ok := raw.(webhook.MessageEvent)
	if !ok {
		return domain.InboundEvent{}, false
	}

	ev := domain.InboundEvent{
		ID:          e.WebhookEventId,
		Channel:     "line",
		AuthorID:    lineAuthor(e.Source),
		ReplyHandle: e.ReplyToken,
		ReceivedAt:  time.UnixMilli(e.Timestamp),
	}
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if e.DeliveryContext != nil {
		ev.Redelivery = e.DeliveryContext.IsRedelivery
	}

	switch m := e.Message.(type) {
	case webhook.TextMessageContent:
		ev.Content = domain.TextContent(m.Text)
	case webhook.AudioMessageContent:
		ev.Content = domain.AudioContent(m.Id)
	case webhook.ImageMessageContent:
		ev.Content = domain.ImageContent(m.Id)
	default:
		ev.Content = domain.Content{Kind: domain.KindUnsupported}
	}
	return ev, true
}

func lineAuthor(src webhook.SourceInterface) string {
	switch s := src.(type) {
	case webhook.UserSource:
		return s.UserId
	case webhook.GroupSource:
		return s.UserId
	case webhook.RoomSource:
		return s.UserId
	default:
		return ""
	}
}

// Reply sends msg as a single text message using its reply token.
func (l *LINE) Reply(ctx context.Context, msg domain.ReplyMessage) error {
	if msg.ReplyHandle == "" {
		return errors.New("line reply: empty reply token")
	}
	_, err := l.api.WithContext(ctx).ReplyMessage(&messaging_api.ReplyMessageRequest{
		ReplyToken: msg.ReplyHandle,
		Messages: []messaging_api.MessageInterface{
			messaging_api.TextMessage{Text: msg.Text},
		},
	})
	if err != nil {
		return fmt.Errorf("line reply: %w", err)
	}
	return nil
}

// Open streams the content of a message from the LINE data API.
func (l *LINE) Open(ctx context.Context, ref domain.MediaRef) (io.ReadCloser, error) {
	resp, err := l.blob.WithContext(ctx).GetMessageContent(ref.ID)
	if err != nil {
		return nil, fmt.Errorf("line content %s: %w", ref.ID, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("line content %s: status %d", ref.ID, resp.StatusCode)
	}
	return resp.Body, nil
}
