package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Kame-terry/line-bot/internal/domain"
)

// SummaryPlaceholder replaces the summary when the model cannot produce one.
const SummaryPlaceholder = "無法生成摘要"

// fallbackTitleRunes is how much of the input becomes the title on failure.
const fallbackTitleRunes = 20

const (
	titlePrompt   = "你是一個標題產生器。請為使用者提供的內容產生一個 10 到 15 個字的繁體中文標題。只輸出標題本身，不要包含任何標點符號，也不要出現「標題」這兩個字。"
	summaryPrompt = "你是一個摘要助手。請用繁體中文，以條列式（每點以「• 」開頭）整理使用者提供內容的重點。只輸出條列重點。"
)

var errEmptyCompletion = errors.New("empty completion")

// ChatSummarizer implements domain.Summarizer with two sequential chat calls:
// one for the title, one for the bullet summary.
type ChatSummarizer struct {
	chat   domain.ChatProvider
	model  string
	logger *slog.Logger
}

func NewChatSummarizer(chat domain.ChatProvider, model string, logger *slog.Logger) *ChatSummarizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &ChatSummarizer{chat: chat, model: model, logger: logger}
}

// Summarize never fails. If either call errors or returns nothing, the title
// falls back to the start of text and the summary to SummaryPlaceholder.
func (s *ChatSummarizer) Summarize(ctx context.Context, text string) domain.Summary {
	title, err := s.complete(ctx, titlePrompt, text, 60)
	if err != nil {
		s.logger.Warn("title generation failed", "error", err)
		return FallbackSummary(text)
	}

	summary, err := s.complete(ctx, summaryPrompt, text, 800)
	if err != nil {
		s.logger.Warn("summary generation failed", "error", err)
		return FallbackSummary(text)
	}

	return domain.Summary{Title: title, Text: summary}
}

// FallbackSummary is the degraded result for text.
func FallbackSummary(text string) domain.Summary {
	return domain.Summary{
		Title:    domain.Truncate(strings.TrimSpace(text), fallbackTitleRunes),
		Text:     SummaryPlaceholder,
		Degraded: true,
	}
}

func (s *ChatSummarizer) complete(ctx context.Context, system, text string, maxTokens int) (string, error) {
	resp, err := s.chat.Chat(ctx, domain.ChatRequest{
		Model: s.model,
		Messages: []domain.Message{
			{Role: "system", Content: system},
			{Role: "user", Content: text},
		},
		MaxTokens: maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("%s chat: %w", s.chat.Name(), err)
	}
	out := strings.TrimSpace(resp.Content)
	if out == "" {
		return "", errEmptyCompletion
	}
	return out, nil
}
