package fetch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/Kame-terry/line-bot/internal/domain"
)

var (
	// ErrUnreadable means the page could not be fetched or held no text.
	ErrUnreadable = errors.New("page unreadable")
	// ErrScraperNotConfigured means a social URL arrived without a scraper credential.
	ErrScraperNotConfigured = errors.New("social scraper not configured")
)

// Source identifies which retrieval path produced a page.
type Source int

const (
	SourceWeb Source = iota
	SourceFacebook
	SourceThreads
)

func (s Source) String() string {
	switch s {
	case SourceFacebook:
		return "facebook"
	case SourceThreads:
		return "threads"
	default:
		return "web"
	}
}

// NoteType maps a source to the archive type tag.
func (s Source) NoteType() domain.NoteType {
	switch s {
	case SourceFacebook:
		return domain.NoteFacebook
	case SourceThreads:
		return domain.NoteThreads
	default:
		return domain.NoteWeb
	}
}

var (
	facebookHosts = []string{"facebook.com", "fb.com", "fb.watch"}
	threadsHosts  = []string{"threads.net", "threads.com"}
)

// Classify picks the retrieval path for rawURL by host.
func Classify(rawURL string) Source {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return SourceWeb
	}
	host := strings.ToLower(u.Hostname())
	switch {
	case matchHost(host, facebookHosts):
		return SourceFacebook
	case matchHost(host, threadsHosts):
		return SourceThreads
	default:
		return SourceWeb
	}
}

func matchHost(host string, domains []string) bool {
	for _, d := range domains {
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

// Page is the extracted text of a remote URL.
type Page struct {
	Text   string
	Source Source
}

// RouterConfig wires the fetch paths. Social is nil when no scraper
// credential is configured.
type RouterConfig struct {
	Web           *WebFetcher
	Social        *Apify
	FacebookActor string
	ThreadsActor  string
	MaxChars      int
	Logger        *slog.Logger
}

// Router dispatches a URL to the generic fetcher or a social scraper.
type Router struct {
	web           *WebFetcher
	social        *Apify
	facebookActor string
	threadsActor  string
	maxChars      int
	logger        *slog.Logger
}

func NewRouter(cfg RouterConfig) *Router {
	if cfg.MaxChars <= 0 {
		cfg.MaxChars = DefaultMaxChars
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Router{
		web:           cfg.Web,
		social:        cfg.Social,
		facebookActor: cfg.FacebookActor,
		threadsActor:  cfg.ThreadsActor,
		maxChars:      cfg.MaxChars,
		logger:        cfg.Logger,
	}
}

// Fetch returns the text behind rawURL capped at the configured length.
// Every failure, and a page with no text, wraps ErrUnreadable; a social URL
// without a scraper returns ErrScraperNotConfigured.
func (r *Router) Fetch(ctx context.Context, rawURL string) (Page, error) {
	src := Classify(rawURL)
	page := Page{Source: src}

	var (
		text string
		err  error
	)
	switch src {
	case SourceFacebook, SourceThreads:
		if r.social == nil {
			return page, ErrScraperNotConfigured
		}
		text, err = r.scrape(ctx, src, rawURL)
	default:
		text, err = r.web.Fetch(ctx, rawURL)
	}
	if err != nil {
		r.logger.Warn("fetch failed", "source", src.String(), "url", rawURL, "error", err)
		return page, fmt.Errorf("%w: %v", ErrUnreadable, err)
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return page, fmt.Errorf("%w: no text at %s", ErrUnreadable, rawURL)
	}
	page.Text = domain.Truncate(text, r.maxChars)
	return page, nil
}

func (r *Router) scrape(ctx context.Context, src Source, rawURL string) (string, error) {
	if src == SourceFacebook {
		items, err := r.social.RunActor(ctx, r.facebookActor, facebookInput(rawURL))
		if err != nil {
			return "", err
		}
		return facebookText(items), nil
	}
	items, err := r.social.RunActor(ctx, r.threadsActor, threadsInput(rawURL))
	if err != nil {
		return "", err
	}
	return threadsText(items), nil
}
