package domain

import (
	"context"
	"io"
)

// ChatProvider is the text-generation backend used by the summarization and
// vision stages.
type ChatProvider interface {
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)
	Name() string
}

// Transcriber converts an audio payload into text. Failures are fatal to the
// calling pipeline.
type Transcriber interface {
	Transcribe(ctx context.Context, audio io.Reader, filename string) (string, error)
}

// Summarizer derives a title and bullet summary from text. It never fails;
// degraded output is flagged on the result.
type Summarizer interface {
	Summarize(ctx context.Context, text string) Summary
}

// Describer derives a title and description from an image. It never fails;
// link is embedded in the fallback description.
type Describer interface {
	Describe(ctx context.Context, image []byte, mimeType, link string) Description
}

type ChatRequest struct {
	Messages    []Message
	Model       string
	MaxTokens   int
	Temperature float64
}

type ChatResponse struct {
	Content      string
	FinishReason string // stop | length
	Usage        Usage
	LatencyMs    int64
}

// Message is a chat message. Images, when set, are sent as multimodal parts
// after the text content.
type Message struct {
	Role    string       `json:"role"` // system | user | assistant
	Content string       `json:"content"`
	Images  []ImageInput `json:"-"`
}

// ImageInput is an inline image for vision-capable models.
type ImageInput struct {
	MimeType string
	Data     []byte
	Detail   string // auto | low | high
}

type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Summary is the output of the summarization stage.
type Summary struct {
	Title    string
	Text     string
	Degraded bool
}

// Description is the output of the vision stage.
type Description struct {
	Title    string
	Text     string
	Degraded bool
}
