package provider

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Kame-terry/line-bot/internal/domain"
)

// Delimiter labels the vision prompt asks the model to emit.
const (
	TitleLabel   = "標題："
	ContentLabel = "內容："
)

// VisionPlaceholderTitle is used when no title can be parsed.
const VisionPlaceholderTitle = "圖片筆記"

const visionPrompt = "請仔細觀察這張圖片，並嚴格依照以下兩行格式以繁體中文回覆：\n" +
	TitleLabel + "（10 到 15 字的簡短標題）\n" +
	ContentLabel + "（詳細描述圖片內容，若有文字請完整列出）"

// ChatDescriber implements domain.Describer with a single multimodal call.
type ChatDescriber struct {
	chat   domain.ChatProvider
	model  string
	logger *slog.Logger
}

func NewChatDescriber(chat domain.ChatProvider, model string, logger *slog.Logger) *ChatDescriber {
	if logger == nil {
		logger = slog.Default()
	}
	return &ChatDescriber{chat: chat, model: model, logger: logger}
}

// Describe never fails. A failed call yields the placeholder title and a
// description that points at link, when there is one.
func (d *ChatDescriber) Describe(ctx context.Context, image []byte, mimeType, link string) domain.Description {
	resp, err := d.chat.Chat(ctx, domain.ChatRequest{
		Model: d.model,
		Messages: []domain.Message{{
			Role:    "user",
			Content: visionPrompt,
			Images:  []domain.ImageInput{{MimeType: mimeType, Data: image}},
		}},
		MaxTokens: 1000,
	})
	if err != nil {
		d.logger.Warn("image description failed", "provider", d.chat.Name(), "error", err)
		text := "無法產生圖片描述。"
		if link != "" {
			text = fmt.Sprintf("圖片已上傳，但無法產生描述。\n圖片連結：%s", link)
		}
		return domain.Description{
			Title:    VisionPlaceholderTitle,
			Text:     text,
			Degraded: true,
		}
	}
	return ParseDescription(resp.Content)
}

// ParseDescription splits a "標題：…\n內容：…" response. When both labels are
// present it splits once on the content label; otherwise the whole response
// is the description under the placeholder title.
func ParseDescription(raw string) domain.Description {
	raw = strings.TrimSpace(raw)
	if !strings.Contains(raw, TitleLabel) || !strings.Contains(raw, ContentLabel) {
		return domain.Description{Title: VisionPlaceholderTitle, Text: raw}
	}

	head, body, _ := strings.Cut(raw, ContentLabel)
	title := strings.TrimSpace(strings.Replace(head, TitleLabel, "", 1))
	if title == "" {
		title = VisionPlaceholderTitle
	}
	return domain.Description{Title: title, Text: strings.TrimSpace(body)}
}
