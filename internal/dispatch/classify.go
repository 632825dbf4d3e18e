package dispatch

import "strings"

// TextRoute is the pipeline a text message is routed to.
type TextRoute int

const (
	RouteEcho TextRoute = iota
	RouteSummarize
	RouteURL
)

func (r TextRoute) String() string {
	switch r {
	case RouteSummarize:
		return "summarize"
	case RouteURL:
		return "url"
	default:
		return "echo"
	}
}

// SummarizePrefix is the command that sends the rest of a message to the
// summarizer.
const SummarizePrefix = "/a"

// ClassifyText routes text by fixed precedence: the summarize command, then
// a URL, then echo. The returned operand is the trimmed command argument for
// RouteSummarize, the trimmed URL for RouteURL and the text unchanged for
// RouteEcho.
func ClassifyText(text string) (TextRoute, string) {
	if strings.HasPrefix(text, SummarizePrefix) {
		return RouteSummarize, strings.TrimSpace(strings.TrimPrefix(text, SummarizePrefix))
	}
	trimmed := strings.TrimSpace(text)
	lower := strings.ToLower(trimmed)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		return RouteURL, trimmed
	}
	return RouteEcho, text
}
