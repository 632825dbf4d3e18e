package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func okHandler(body string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(body))
	})
}

func do(t *testing.T, h http.Handler, method, path string) (int, string) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	body, _ := io.ReadAll(rec.Body)
	return rec.Code, string(body)
}

func TestRouter_Routes(t *testing.T) {
	r := NewRouter(Config{
		Webhook: okHandler("hook"),
		Metrics: okHandler("metrics"),
		Logger:  testLogger(),
	})

	tests := []struct {
		method, path string
		code         int
		body         string
	}{
		{http.MethodGet, "/health", http.StatusOK, `{"status":"ok"}`},
		{http.MethodGet, "/health/live", http.StatusOK, `{"status":"ok"}`},
		{http.MethodPost, "/callback", http.StatusOK, "hook"},
		{http.MethodGet, "/metrics", http.StatusOK, "metrics"},
		{http.MethodGet, "/callback", http.StatusMethodNotAllowed, ""},
	}
	for _, tt := range tests {
		code, body := do(t, r, tt.method, tt.path)
		if code != tt.code {
			t.Fatalf("%s %s: expected %d, got %d", tt.method, tt.path, tt.code, code)
		}
		if tt.body != "" && body != tt.body {
			t.Fatalf("%s %s: expected body %q, got %q", tt.method, tt.path, tt.body, body)
		}
	}
}

func TestRouter_CustomPathsAndDisabledMetrics(t *testing.T) {
	r := NewRouter(Config{WebhookPath: "/line/webhook", Webhook: okHandler("hook")})

	if code, _ := do(t, r, http.MethodPost, "/line/webhook"); code != http.StatusOK {
		t.Fatalf("expected custom webhook path to be served, got %d", code)
	}
	if code, _ := do(t, r, http.MethodGet, "/metrics"); code != http.StatusNotFound {
		t.Fatalf("expected metrics to be disabled, got %d", code)
	}
}

func TestRouter_RecoversPanics(t *testing.T) {
	r := NewRouter(Config{Webhook: http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	})})
	if code, _ := do(t, r, http.MethodPost, "/callback"); code != http.StatusInternalServerError {
		t.Fatalf("expected 500 after panic, got %d", code)
	}
}

func TestRun_StopsWorkersOnCancel(t *testing.T) {
	s := New(Config{Port: 0, Logger: testLogger()})
	ctx, cancel := context.WithCancel(context.Background())

	stopped := make(chan struct{})
	worker := func(ctx context.Context) error {
		<-ctx.Done()
		close(stopped)
		return nil
	}

	done := make(chan error, 1)
	go func() { done <- s.Run(ctx, worker) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected clean shutdown, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	select {
	case <-stopped:
	default:
		t.Fatal("expected worker to observe cancellation")
	}
}

func TestRun_WorkerErrorStopsServer(t *testing.T) {
	s := New(Config{Port: 0, Logger: testLogger()})
	boom := errors.New("telegram auth failed")

	done := make(chan error, 1)
	go func() {
		done <- s.Run(context.Background(), func(context.Context) error { return boom })
	}()

	select {
	case err := <-done:
		if !errors.Is(err, boom) {
			t.Fatalf("expected worker error, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after worker failure")
	}
}
