package provider

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/Kame-terry/line-bot/internal/domain"
)

// mockProvider implements domain.ChatProvider for testing. Responses are
// returned in order; errs[i] fails the i-th call.
type mockProvider struct {
	mu        sync.Mutex
	responses []string
	errs      []error
	requests  []domain.ChatRequest
}

func (m *mockProvider) Name() string { return "mock" }

func (m *mockProvider) Chat(ctx context.Context, req domain.ChatRequest) (*domain.ChatResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := len(m.requests)
	m.requests = append(m.requests, req)
	if i < len(m.errs) && m.errs[i] != nil {
		return nil, m.errs[i]
	}
	if i < len(m.responses) {
		return &domain.ChatResponse{Content: m.responses[i]}, nil
	}
	return &domain.ChatResponse{}, nil
}

func (m *mockProvider) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// --- Summarizer ---

func TestSummarize_TwoCallsTrimmed(t *testing.T) {
	p := &mockProvider{responses: []string{"  會議重點整理  \n", "\n• 第一點\n• 第二點  "}}
	s := NewChatSummarizer(p, "gpt-test", testLogger())

	got := s.Summarize(context.Background(), "今天的會議討論了預算與時程")
	if got.Title != "會議重點整理" {
		t.Fatalf("expected %q, got %q", "會議重點整理", got.Title)
	}
	if got.Text != "• 第一點\n• 第二點" {
		t.Fatalf("expected trimmed summary, got %q", got.Text)
	}
	if got.Degraded {
		t.Fatal("expected non-degraded summary")
	}
	if p.calls() != 2 {
		t.Fatalf("expected 2 calls, got %d", p.calls())
	}
	if p.requests[0].Model != "gpt-test" {
		t.Fatalf("expected model gpt-test, got %q", p.requests[0].Model)
	}
	if !strings.Contains(p.requests[0].Messages[0].Content, "標點符號") {
		t.Fatal("title prompt should forbid punctuation")
	}
	if p.requests[1].Messages[1].Content != "今天的會議討論了預算與時程" {
		t.Fatal("summary call should receive the input text")
	}
}

func TestSummarize_BothCallsFail(t *testing.T) {
	boom := errors.New("boom")
	p := &mockProvider{errs: []error{boom, boom}}
	s := NewChatSummarizer(p, "", testLogger())

	got := s.Summarize(context.Background(), "hello world")
	if got.Title != "hello world" {
		t.Fatalf("expected %q, got %q", "hello world", got.Title)
	}
	if got.Text != SummaryPlaceholder {
		t.Fatalf("expected placeholder, got %q", got.Text)
	}
	if !got.Degraded {
		t.Fatal("expected degraded summary")
	}
}

func TestSummarize_SecondCallFails(t *testing.T) {
	p := &mockProvider{responses: []string{"好標題"}, errs: []error{nil, errors.New("timeout")}}
	s := NewChatSummarizer(p, "", testLogger())

	got := s.Summarize(context.Background(), "一二三四五六七八九十一二三四五六七八九十一二三")
	if got.Title != "一二三四五六七八九十一二三四五六七八九十" {
		t.Fatalf("expected first 20 runes, got %q", got.Title)
	}
	if got.Text != SummaryPlaceholder {
		t.Fatalf("expected placeholder, got %q", got.Text)
	}
}

func TestSummarize_EmptyCompletionDegrades(t *testing.T) {
	p := &mockProvider{responses: []string{"   ", "• x"}}
	s := NewChatSummarizer(p, "", testLogger())

	got := s.Summarize(context.Background(), "abc")
	if !got.Degraded || got.Title != "abc" {
		t.Fatalf("expected degraded fallback, got %+v", got)
	}
}

// --- Describer ---

func TestParseDescription_Labels(t *testing.T) {
	got := ParseDescription("標題：Foo\n內容：Bar baz")
	if got.Title != "Foo" {
		t.Fatalf("expected %q, got %q", "Foo", got.Title)
	}
	if got.Text != "Bar baz" {
		t.Fatalf("expected %q, got %q", "Bar baz", got.Text)
	}
}

func TestParseDescription_SplitsOnce(t *testing.T) {
	got := ParseDescription("標題：表單\n內容：欄位一 內容：值")
	if got.Title != "表單" {
		t.Fatalf("expected %q, got %q", "表單", got.Title)
	}
	if got.Text != "欄位一 內容：值" {
		t.Fatalf("expected remainder kept, got %q", got.Text)
	}
}

func TestParseDescription_NoLabels(t *testing.T) {
	raw := "A cat sitting on a windowsill."
	got := ParseDescription(raw)
	if got.Title != VisionPlaceholderTitle {
		t.Fatalf("expected placeholder title, got %q", got.Title)
	}
	if got.Text != raw {
		t.Fatalf("expected entire response, got %q", got.Text)
	}
}

func TestParseDescription_OnlyOneLabel(t *testing.T) {
	got := ParseDescription("內容：只有內容")
	if got.Title != VisionPlaceholderTitle || got.Text != "內容：只有內容" {
		t.Fatalf("unexpected parse: %+v", got)
	}
}

func TestDescribe_SendsImage(t *testing.T) {
	p := &mockProvider{responses: []string{"標題：貓咪\n內容：一隻橘貓"}}
	d := NewChatDescriber(p, "gpt-4o", testLogger())

	got := d.Describe(context.Background(), []byte{0xff, 0xd8}, "image/jpeg", "https://drive/x")
	if got.Title != "貓咪" || got.Text != "一隻橘貓" {
		t.Fatalf("unexpected description: %+v", got)
	}
	req := p.requests[0]
	if req.Model != "gpt-4o" {
		t.Fatalf("expected vision model, got %q", req.Model)
	}
	if len(req.Messages) != 1 || len(req.Messages[0].Images) != 1 {
		t.Fatal("expected one message with one image")
	}
	if req.Messages[0].Images[0].MimeType != "image/jpeg" {
		t.Fatalf("expected image/jpeg, got %q", req.Messages[0].Images[0].MimeType)
	}
}

func TestDescribe_FailureEmbedsLink(t *testing.T) {
	p := &mockProvider{errs: []error{errors.New("503")}}
	d := NewChatDescriber(p, "", testLogger())

	got := d.Describe(context.Background(), []byte("img"), "image/jpeg", "https://drive.google.com/file/d/abc/view")
	if got.Title != VisionPlaceholderTitle {
		t.Fatalf("expected placeholder title, got %q", got.Title)
	}
	if !strings.Contains(got.Text, "https://drive.google.com/file/d/abc/view") {
		t.Fatalf("expected link in description, got %q", got.Text)
	}
	if !got.Degraded {
		t.Fatal("expected degraded description")
	}
}

func TestDescribe_FailureWithoutLink(t *testing.T) {
	p := &mockProvider{errs: []error{errors.New("503")}}
	d := NewChatDescriber(p, "", testLogger())

	got := d.Describe(context.Background(), []byte("img"), "image/jpeg", "")
	if got.Title != VisionPlaceholderTitle || !got.Degraded {
		t.Fatalf("expected degraded placeholder, got %+v", got)
	}
	if strings.Contains(got.Text, "圖片連結") {
		t.Fatalf("expected no link line without a link, got %q", got.Text)
	}
}
