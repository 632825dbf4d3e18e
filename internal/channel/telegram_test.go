package channel

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/Kame-terry/line-bot/internal/domain"
)

func tgMessage() *tgbotapi.Message {
	return &tgbotapi.Message{
		MessageID: 7,
		From:      &tgbotapi.User{ID: 1001},
		Chat:      &tgbotapi.Chat{ID: 42},
		Date:      1700000000,
	}
}

func TestConvertTelegramUpdate_Kinds(t *testing.T) {
	text := tgMessage()
	text.Text = "https://example.com"

	voice := tgMessage()
	voice.Voice = &tgbotapi.Voice{FileID: "voice-1"}

	audio := tgMessage()
	audio.Audio = &tgbotapi.Audio{FileID: "audio-1", FileName: "memo.MP3"}

	photo := tgMessage()
	photo.Photo = []tgbotapi.PhotoSize{{FileID: "small"}, {FileID: "large"}}

	sticker := tgMessage()
	sticker.Sticker = &tgbotapi.Sticker{FileID: "st-1"}

	tests := []struct {
		name string
		msg  *tgbotapi.Message
		kind domain.ContentKind
		id   string
		ext  string
	}{
		{"text", text, domain.KindText, "", ""},
		{"voice", voice, domain.KindAudio, "voice-1", ".oga"},
		{"audio", audio, domain.KindAudio, "audio-1", ".mp3"},
		{"photo", photo, domain.KindImage, "large", ".jpg"},
		{"sticker", sticker, domain.KindUnsupported, "", ""},
	}
	for _, tt := range tests {
		ev, ok := ConvertTelegramUpdate(tgbotapi.Update{UpdateID: 9, Message: tt.msg})
		if !ok {
			t.Fatalf("%s: expected conversion", tt.name)
		}
		if ev.Content.Kind != tt.kind {
			t.Fatalf("%s: expected kind %s, got %s", tt.name, tt.kind, ev.Content.Kind)
		}
		if ev.Content.Media.ID != tt.id {
			t.Fatalf("%s: expected media id %q, got %q", tt.name, tt.id, ev.Content.Media.ID)
		}
		if tt.ext != "" && ev.Content.Media.Suffix() != tt.ext {
			t.Fatalf("%s: expected suffix %q, got %q", tt.name, tt.ext, ev.Content.Media.Suffix())
		}
		if ev.AuthorID != "1001" || ev.ReplyHandle != "42:7" || ev.Channel != "telegram" || ev.ID != "tg-9" {
			t.Fatalf("%s: unexpected envelope %+v", tt.name, ev)
		}
	}
	if text, _ := ConvertTelegramUpdate(tgbotapi.Update{Message: text}); text.Content.Text != "https://example.com" {
		t.Fatalf("unexpected text %q", text.Content.Text)
	}
}

func TestConvertTelegramUpdate_SkipsNonMessages(t *testing.T) {
	if _, ok := ConvertTelegramUpdate(tgbotapi.Update{}); ok {
		t.Fatal("expected empty update to be skipped")
	}
	if _, ok := ConvertTelegramUpdate(tgbotapi.Update{Message: &tgbotapi.Message{Text: "x"}}); ok {
		t.Fatal("expected message without sender to be skipped")
	}
}

func TestParseReplyHandle(t *testing.T) {
	chat, msg, err := parseReplyHandle("-100123:55")
	if err != nil || chat != -100123 || msg != 55 {
		t.Fatalf("got (%d, %d, %v)", chat, msg, err)
	}
	for _, bad := range []string{"", "42", "x:1", "1:y"} {
		if _, _, err := parseReplyHandle(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}

func TestSplitMessage(t *testing.T) {
	if got := splitMessage("short", 10); len(got) != 1 || got[0] != "short" {
		t.Fatalf("unexpected split %q", got)
	}
	text := strings.Repeat("一", 6) + "\n" + strings.Repeat("二", 6)
	got := splitMessage(text, 10)
	if len(got) != 2 || got[0] != strings.Repeat("一", 6) {
		t.Fatalf("expected newline split, got %q", got)
	}
	if strings.Join(got, "") != text {
		t.Fatal("split lost content")
	}
}

// fakeBotAPI answers the Bot API methods the transport uses.
type fakeBotAPI struct {
	mu   sync.Mutex
	sent []map[string]string
}

func (f *fakeBotAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	switch {
	case strings.HasSuffix(r.URL.Path, "/getMe"):
		_, _ = w.Write([]byte(`{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"bot","username":"test_bot"}}`))
	case strings.HasSuffix(r.URL.Path, "/sendMessage"):
		_ = r.ParseForm()
		f.mu.Lock()
		f.sent = append(f.sent, map[string]string{
			"chat_id":             r.PostForm.Get("chat_id"),
			"text":                r.PostForm.Get("text"),
			"reply_to_message_id": r.PostForm.Get("reply_to_message_id"),
		})
		f.mu.Unlock()
		_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":8,"date":0,"chat":{"id":42,"type":"private"}}}`))
	case strings.HasSuffix(r.URL.Path, "/getFile"):
		_, _ = w.Write([]byte(`{"ok":true,"result":{"file_id":"voice-1","file_path":"voice/file_1.oga"}}`))
	case strings.HasPrefix(r.URL.Path, "/file/"):
		w.Header().Set("Content-Type", "audio/ogg")
		_, _ = w.Write([]byte("ogg-bytes"))
	default:
		http.NotFound(w, r)
	}
}

func newTestTelegram(t *testing.T) (*Telegram, *fakeBotAPI) {
	t.Helper()
	api := &fakeBotAPI{}
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	tg := NewTelegram(TelegramConfig{
		Token:        "123:abc",
		APIEndpoint:  srv.URL + "/bot%s/%s",
		FileEndpoint: srv.URL + "/file/bot%s/%s",
		HTTPClient:   srv.Client(),
		Logger:       testLogger(),
	})
	if err := tg.connect(); err != nil {
		t.Fatalf("connect: %v", err)
	}
	return tg, api
}

func TestTelegram_ReplyQuotesMessage(t *testing.T) {
	tg, api := newTestTelegram(t)
	if err := tg.Reply(context.Background(), domain.ReplyMessage{ReplyHandle: "42:7", Text: "收到"}); err != nil {
		t.Fatalf("reply: %v", err)
	}
	if len(api.sent) != 1 {
		t.Fatalf("expected one message, got %d", len(api.sent))
	}
	got := api.sent[0]
	if got["chat_id"] != "42" || got["text"] != "收到" || got["reply_to_message_id"] != "7" {
		t.Fatalf("unexpected send: %v", got)
	}
}

func TestTelegram_OpenDownloadsFile(t *testing.T) {
	tg, _ := newTestTelegram(t)
	rc, err := tg.Open(context.Background(), domain.MediaRef{ID: "voice-1", Kind: domain.KindAudio})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer rc.Close()
	data, _ := io.ReadAll(rc)
	if string(data) != "ogg-bytes" {
		t.Fatalf("unexpected payload %q", data)
	}
}

func TestTelegram_NotConnected(t *testing.T) {
	tg := NewTelegram(TelegramConfig{Token: "x", Logger: testLogger()})
	if err := tg.Reply(context.Background(), domain.ReplyMessage{ReplyHandle: "1:2", Text: "x"}); err == nil {
		t.Fatal("expected error before connect")
	}
	if _, err := tg.Open(context.Background(), domain.MediaRef{ID: "f"}); err == nil {
		t.Fatal("expected error before connect")
	}
	if err := tg.Start(context.Background()); err == nil {
		t.Fatal("expected error without handler")
	}
}
