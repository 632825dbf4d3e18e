package provider

import (
	"log/slog"

	"github.com/Kame-terry/line-bot/internal/config"
	"github.com/Kame-terry/line-bot/internal/domain"
)

// Stages bundles the AI stages the dispatcher depends on.
type Stages struct {
	Chat        domain.ChatProvider
	Transcriber domain.Transcriber
	Summarizer  domain.Summarizer
	Describer   domain.Describer
}

// NewStages builds the OpenAI-backed stages from config. Chat and
// transcription get separately sized connection pools.
func NewStages(cfg config.OpenAIConfig, logger *slog.Logger) Stages {
	timeout := config.Seconds(cfg.TimeoutSeconds)

	chat := NewOpenAI(OpenAIConfig{
		APIKey:  cfg.APIKey,
		APIBase: cfg.APIBase,
		Model:   cfg.ChatModel,
		Client:  NewHTTPClient(timeout, ChatPool),
		Logger:  logger.With("component", "openai"),
	})

	return Stages{
		Chat: chat,
		Transcriber: NewWhisperProvider(WhisperConfig{
			APIBase:  cfg.APIBase,
			APIKey:   cfg.APIKey,
			Model:    cfg.TranscriptionModel,
			Language: cfg.Language,
			Client:   NewHTTPClient(timeout, TranscriptionPool),
			Logger:   logger.With("component", "whisper"),
		}),
		Summarizer: NewChatSummarizer(chat, cfg.ChatModel, logger.With("component", "summarizer")),
		Describer:  NewChatDescriber(chat, cfg.VisionModel, logger.With("component", "vision")),
	}
}
