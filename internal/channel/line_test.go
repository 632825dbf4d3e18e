package channel

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Kame-terry/line-bot/internal/domain"
)

const testSecret = "test-channel-secret"

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

type recordingHandler struct {
	mu     sync.Mutex
	events []domain.InboundEvent
}

func (h *recordingHandler) HandleEvent(ctx context.Context, ev domain.InboundEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, ev)
}

func sign(body string) string {
	mac := hmac.New(sha256.New, []byte(testSecret))
	mac.Write([]byte(body))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func newTestLINE(t *testing.T, api, blob string) *LINE {
	t.Helper()
	l, err := NewLINE(LINEConfig{
		ChannelSecret:      testSecret,
		ChannelAccessToken: "test-token",
		APIEndpoint:        api,
		BlobEndpoint:       blob,
		Logger:             testLogger(),
	})
	if err != nil {
		t.Fatal(err)
	}
	return l
}

const callbackBody = `{
  "destination": "Ubot",
  "events": [
    {"type": "message", "mode": "active", "timestamp": 1700000000000,
     "source": {"type": "user", "userId": "U-alice"},
     "webhookEventId": "01HTEXT", "deliveryContext": {"isRedelivery": false},
     "replyToken": "rt-text",
     "message": {"type": "text", "id": "m1", "quoteToken": "q1", "text": "/a hello"}},
    {"type": "message", "mode": "active", "timestamp": 1700000000001,
     "source": {"type": "group", "groupId": "G1", "userId": "U-bob"},
     "webhookEventId": "01HAUDIO", "deliveryContext": {"isRedelivery": true},
     "replyToken": "rt-audio",
     "message": {"type": "audio", "id": "m2", "duration": 1200, "contentProvider": {"type": "line"}}},
    {"type": "message", "mode": "active", "timestamp": 1700000000002,
     "source": {"type": "room", "roomId": "R1", "userId": "U-carol"},
     "webhookEventId": "01HIMAGE", "deliveryContext": {"isRedelivery": false},
     "replyToken": "rt-image",
     "message": {"type": "image", "id": "m3", "contentProvider": {"type": "line"}}},
    {"type": "message", "mode": "active", "timestamp": 1700000000003,
     "source": {"type": "user", "userId": "U-alice"},
     "webhookEventId": "01HSTICKER", "deliveryContext": {"isRedelivery": false},
     "replyToken": "rt-sticker",
     "message": {"type": "sticker", "id": "m4", "packageId": "1", "stickerId": "2", "stickerResourceType": "STATIC"}},
    {"type": "follow", "mode": "active", "timestamp": 1700000000004,
     "source": {"type": "user", "userId": "U-dave"},
     "webhookEventId": "01HFOLLOW", "deliveryContext": {"isRedelivery": false},
     "replyToken": "rt-follow", "follow": {"isUnblocked": false}}
  ]
}`

func TestLINE_WebhookDispatchesMessageEvents(t *testing.T) {
	l := newTestLINE(t, "", "")
	h := &recordingHandler{}
	l.SetHandler(h)

	req := httptest.NewRequest(http.MethodPost, "/callback", strings.NewReader(callbackBody))
	req.Header.Set("X-Line-Signature", sign(callbackBody))
	rec := httptest.NewRecorder()
	l.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if err := l.Drain(context.Background()); err != nil {
		t.Fatalf("drain: %v", err)
	}
	if len(h.events) != 4 {
		t.Fatalf("expected 4 message events, got %d", len(h.events))
	}

	byID := map[string]domain.InboundEvent{}
	for _, ev := range h.events {
		byID[ev.ID] = ev
	}

	text := byID["01HTEXT"]
	if text.Content.Kind != domain.KindText || text.Content.Text != "/a hello" || text.AuthorID != "U-alice" || text.ReplyHandle != "rt-text" {
		t.Fatalf("unexpected text event: %+v", text)
	}
	audio := byID["01HAUDIO"]
	if audio.Content.Kind != domain.KindAudio || audio.Content.Media.ID != "m2" || audio.AuthorID != "U-bob" || !audio.Redelivery {
		t.Fatalf("unexpected audio event: %+v", audio)
	}
	image := byID["01HIMAGE"]
	if image.Content.Kind != domain.KindImage || image.Content.Media.ID != "m3" || image.AuthorID != "U-carol" {
		t.Fatalf("unexpected image event: %+v", image)
	}
	if byID["01HSTICKER"].Content.Kind != domain.KindUnsupported {
		t.Fatalf("expected sticker to be unsupported, got %+v", byID["01HSTICKER"])
	}
	for _, ev := range h.events {
		if ev.Channel != "line" {
			t.Fatalf("expected channel line, got %q", ev.Channel)
		}
	}
}

// blockingHandler holds every event until release is closed.
type blockingHandler struct {
	started chan struct{}
	release chan struct{}
	mu      sync.Mutex
	done    int
}

func (h *blockingHandler) HandleEvent(ctx context.Context, ev domain.InboundEvent) {
	h.started <- struct{}{}
	<-h.release
	h.mu.Lock()
	h.done++
	h.mu.Unlock()
}

const singleTextBody = `{"destination": "Ubot", "events": [
  {"type": "message", "mode": "active", "timestamp": 1700000000000,
   "source": {"type": "user", "userId": "U-alice"},
   "webhookEventId": "01HSLOW", "deliveryContext": {"isRedelivery": false},
   "replyToken": "rt-slow",
   "message": {"type": "text", "id": "m9", "quoteToken": "q9", "text": "/a slow"}}]}`

func TestLINE_AnswersBeforeHandlersFinish(t *testing.T) {
	l := newTestLINE(t, "", "")
	h := &blockingHandler{started: make(chan struct{}, 1), release: make(chan struct{})}
	l.SetHandler(h)

	req := httptest.NewRequest(http.MethodPost, "/callback", strings.NewReader(singleTextBody))
	req.Header.Set("X-Line-Signature", sign(singleTextBody))
	rec := httptest.NewRecorder()
	l.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	<-h.started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := l.Drain(ctx); err == nil {
		t.Fatal("expected drain to time out while the handler is blocked")
	}

	close(h.release)
	if err := l.Drain(context.Background()); err != nil {
		t.Fatalf("drain: %v", err)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.done != 1 {
		t.Fatalf("expected handler to finish once, got %d", h.done)
	}
}

func TestLINE_HandlesInlineWhileDraining(t *testing.T) {
	l := newTestLINE(t, "", "")
	h := &recordingHandler{}
	l.SetHandler(h)
	if err := l.Drain(context.Background()); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodPost, "/callback", strings.NewReader(singleTextBody))
	req.Header.Set("X-Line-Signature", sign(singleTextBody))
	l.ServeHTTP(httptest.NewRecorder(), req)

	if len(h.events) != 1 {
		t.Fatalf("expected the event handled before ServeHTTP returned, got %d", len(h.events))
	}
}

func TestLINE_BadSignatureRejected(t *testing.T) {
	l := newTestLINE(t, "", "")
	h := &recordingHandler{}
	l.SetHandler(h)

	req := httptest.NewRequest(http.MethodPost, "/callback", strings.NewReader(callbackBody))
	req.Header.Set("X-Line-Signature", sign(callbackBody+"tampered"))
	rec := httptest.NewRecorder()
	l.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if len(h.events) != 0 {
		t.Fatalf("expected no events dispatched, got %d", len(h.events))
	}
}

func TestLINE_MissingSignatureRejected(t *testing.T) {
	l := newTestLINE(t, "", "")
	h := &recordingHandler{}
	l.SetHandler(h)

	req := httptest.NewRequest(http.MethodPost, "/callback", strings.NewReader(callbackBody))
	rec := httptest.NewRecorder()
	l.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if len(h.events) != 0 {
		t.Fatal("expected no events dispatched")
	}
}

func TestLINE_Reply(t *testing.T) {
	var (
		gotPath string
		gotAuth string
		gotBody map[string]any
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"sentMessages":[{"id":"1","quoteToken":"q"}]}`))
	}))
	defer srv.Close()

	l := newTestLINE(t, srv.URL, "")
	err := l.Reply(context.Background(), domain.ReplyMessage{ReplyHandle: "rt-1", Text: "你好"})
	if err != nil {
		t.Fatalf("reply: %v", err)
	}
	if gotPath != "/v2/bot/message/reply" {
		t.Fatalf("unexpected path %q", gotPath)
	}
	if gotAuth != "Bearer test-token" {
		t.Fatalf("unexpected auth %q", gotAuth)
	}
	if gotBody["replyToken"] != "rt-1" {
		t.Fatalf("unexpected reply token: %v", gotBody["replyToken"])
	}
	msgs, _ := gotBody["messages"].([]any)
	if len(msgs) != 1 {
		t.Fatalf("expected one message, got %v", gotBody["messages"])
	}
	first, _ := msgs[0].(map[string]any)
	if first["type"] != "text" || first["text"] != "你好" {
		t.Fatalf("unexpected message: %v", first)
	}
}

func TestLINE_ReplyError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"message":"Invalid reply token"}`))
	}))
	defer srv.Close()

	l := newTestLINE(t, srv.URL, "")
	if err := l.Reply(context.Background(), domain.ReplyMessage{ReplyHandle: "expired", Text: "x"}); err == nil {
		t.Fatal("expected error for rejected reply")
	}
	if err := l.Reply(context.Background(), domain.ReplyMessage{Text: "x"}); err == nil {
		t.Fatal("expected error for empty reply token")
	}
}

func TestLINE_OpenContent(t *testing.T) {
	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		if r.URL.Path == "/v2/bot/message/m-missing/content" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "audio/x-m4a")
		_, _ = w.Write([]byte("m4a-bytes"))
	}))
	defer srv.Close()

	l := newTestLINE(t, "", srv.URL)
	rc, err := l.Open(context.Background(), domain.MediaRef{ID: "m-1", Kind: domain.KindAudio})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	data, _ := io.ReadAll(rc)
	rc.Close()
	if string(data) != "m4a-bytes" {
		t.Fatalf("unexpected payload %q", data)
	}

	if _, err := l.Open(context.Background(), domain.MediaRef{ID: "m-missing", Kind: domain.KindImage}); err == nil {
		t.Fatal("expected error for missing content")
	}

	sort.Strings(paths)
	if paths[0] != "/v2/bot/message/m-1/content" {
		t.Fatalf("unexpected content paths %v", paths)
	}
}
