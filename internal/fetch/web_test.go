package fetch

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

const samplePage = `<!DOCTYPE html>
<html><head><title>Example</title>
<style>body { color: red; }</style>
<script>var tracking = "secret";</script>
</head>
<body>
<nav>Home | About | Contact</nav>
<h1>Main Heading</h1>
<p>First paragraph.</p>
<p>Left part  Right part</p>
<iframe src="ad.html">ad frame</iframe>
<div>   </div>
<footer>Copyright 2024</footer>
</body></html>`

func TestExtractText_StripsNoise(t *testing.T) {
	got, err := ExtractText(strings.NewReader(samplePage))
	if err != nil {
		t.Fatalf("ExtractText: %v", err)
	}
	want := "Example\nMain Heading\nFirst paragraph.\nLeft part\nRight part"
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
	for _, bad := range []string{"tracking", "color", "Home", "Copyright", "ad frame"} {
		if strings.Contains(got, bad) {
			t.Fatalf("text should not contain %q: %q", bad, got)
		}
	}
}

func TestWebFetcher_SendsUserAgentAndTruncates(t *testing.T) {
	var ua string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ua = r.Header.Get("User-Agent")
		io.WriteString(w, "<p>"+strings.Repeat("字", 50)+"</p>")
	}))
	defer srv.Close()

	wf := NewWebFetcher(WebConfig{UserAgent: "Mozilla/5.0 test", MaxChars: 10, Logger: testLogger()})
	text, err := wf.Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if ua != "Mozilla/5.0 test" {
		t.Fatalf("expected user agent, got %q", ua)
	}
	if text != strings.Repeat("字", 10) {
		t.Fatalf("expected 10 runes, got %q", text)
	}
}

func TestWebFetcher_Non2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	wf := NewWebFetcher(WebConfig{Logger: testLogger()})
	if _, err := wf.Fetch(context.Background(), srv.URL); err == nil {
		t.Fatal("expected error for 404")
	}
}

func TestWebFetcher_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		io.WriteString(w, "<p>late</p>")
	}))
	defer srv.Close()

	wf := NewWebFetcher(WebConfig{Timeout: 50 * time.Millisecond, Logger: testLogger()})
	if _, err := wf.Fetch(context.Background(), srv.URL); err == nil {
		t.Fatal("expected timeout error")
	}
}

func TestWebFetcher_RejectsScheme(t *testing.T) {
	wf := NewWebFetcher(WebConfig{Logger: testLogger()})
	if _, err := wf.Fetch(context.Background(), "ftp://example.com/file"); err == nil {
		t.Fatal("expected error for ftp scheme")
	}
}
