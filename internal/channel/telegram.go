package channel

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/Kame-terry/line-bot/internal/domain"
)

const telegramMaxMsgRunes = 4000

// TelegramConfig configures the optional Telegram transport.
type TelegramConfig struct {
	Token        string
	APIEndpoint  string // default tgbotapi.APIEndpoint
	FileEndpoint string // default tgbotapi.FileEndpoint
	HTTPClient   *http.Client
	Logger       *slog.Logger
}

// Telegram long-polls the Bot API and feeds updates to the same dispatcher
// as LINE. Replies quote the originating message.
type Telegram struct {
	token        string
	apiEndpoint  string
	fileEndpoint string
	client       *http.Client

	bot     *tgbotapi.BotAPI
	handler domain.EventHandler
	logger  *slog.Logger
	wg      sync.WaitGroup
}

func NewTelegram(cfg TelegramConfig) *Telegram {
	if cfg.APIEndpoint == "" {
		cfg.APIEndpoint = tgbotapi.APIEndpoint
	}
	if cfg.FileEndpoint == "" {
		cfg.FileEndpoint = tgbotapi.FileEndpoint
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 60 * time.Second}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Telegram{
		token:        cfg.Token,
		apiEndpoint:  cfg.APIEndpoint,
		fileEndpoint: cfg.FileEndpoint,
		client:       cfg.HTTPClient,
		logger:       cfg.Logger.With("component", "telegram"),
	}
}

func (t *Telegram) Name() string { return "telegram" }

// SetHandler installs the consumer of converted updates.
func (t *Telegram) SetHandler(h domain.EventHandler) {
	t.handler = h
}

func (t *Telegram) connect() error {
	if t.bot != nil {
		return nil
	}
	bot, err := tgbotapi.NewBotAPIWithClient(t.token, t.apiEndpoint, t.client)
	if err != nil {
		return fmt.Errorf("telegram bot init: %w", err)
	}
	t.bot = bot
	t.logger.Info("telegram bot connected", "username", bot.Self.UserName, "id", bot.Self.ID)
	return nil
}

// Start connects and polls for updates until ctx is cancelled. Each update
// is handled on its own goroutine; Start waits for them before returning.
func (t *Telegram) Start(ctx context.Context) error {
	if t.handler == nil {
		return errors.New("telegram: no event handler installed")
	}
	if err := t.connect(); err != nil {
		return err
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := t.bot.GetUpdatesChan(u)
	t.logger.Info("telegram polling started")

	// Handlers keep running after shutdown begins so in-flight replies land.
	hctx := context.WithoutCancel(ctx)
	defer t.wg.Wait()

	for {
		select {
		case <-ctx.Done():
			t.logger.Info("telegram channel stopping")
			t.bot.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			ev, ok := ConvertTelegramUpdate(update)
			if !ok {
				continue
			}
			t.wg.Add(1)
			go func(ev domain.InboundEvent) {
				defer t.wg.Done()
				t.handler.HandleEvent(hctx, ev)
			}(ev)
		}
	}
}

// ConvertTelegramUpdate maps a message update onto an InboundEvent. The
// reply handle is "chatID:messageID".
func ConvertTelegramUpdate(update tgbotapi.Update) (domain.InboundEvent, bool) {
	m := update.Message
	if m == nil || m.From == nil || m.Chat == nil {
		return domain.InboundEvent{}, false
	}

	ev := domain.InboundEvent{
		ID:          "tg-" + strconv.Itoa(update.UpdateID),
		Channel:     "telegram",
		AuthorID:    strconv.FormatInt(m.From.ID, 10),
		ReplyHandle: fmt.Sprintf("%d:%d", m.Chat.ID, m.MessageID),
		ReceivedAt:  time.Unix(int64(m.Date), 0),
	}

	switch {
	case m.Voice != nil:
		ev.Content = domain.AudioContent(m.Voice.FileID)
		ev.Content.Media.Ext = ".oga"
	case m.Audio != nil:
		ev.Content = domain.AudioContent(m.Audio.FileID)
		ev.Content.Media.Ext = audioExt(m.Audio.FileName, m.Audio.MimeType)
	case len(m.Photo) > 0:
		// Sizes are ordered smallest first.
		ev.Content = domain.ImageContent(m.Photo[len(m.Photo)-1].FileID)
	case m.Text != "":
		ev.Content = domain.TextContent(m.Text)
	default:
		ev.Content = domain.Content{Kind: domain.KindUnsupported}
	}
	return ev, true
}

func audioExt(fileName, mimeType string) string {
	if ext := strings.ToLower(filepath.Ext(fileName)); ext != "" {
		return ext
	}
	switch mimeType {
	case "audio/mpeg":
		return ".mp3"
	case "audio/ogg":
		return ".ogg"
	case "audio/wav", "audio/x-wav":
		return ".wav"
	default:
		return ""
	}
}

func parseReplyHandle(handle string) (chatID int64, messageID int, err error) {
	chat, msg, ok := strings.Cut(handle, ":")
	if !ok {
		return 0, 0, fmt.Errorf("invalid telegram reply handle %q", handle)
	}
	if chatID, err = strconv.ParseInt(chat, 10, 64); err != nil {
		return 0, 0, fmt.Errorf("invalid chat id in %q: %w", handle, err)
	}
	if messageID, err = strconv.Atoi(msg); err != nil {
		return 0, 0, fmt.Errorf("invalid message id in %q: %w", handle, err)
	}
	return chatID, messageID, nil
}

// Reply sends msg to the originating chat, quoting the original message.
// Long text is split on line boundaries.
func (t *Telegram) Reply(ctx context.Context, msg domain.ReplyMessage) error {
	if t.bot == nil {
		return errors.New("telegram: not connected")
	}
	chatID, messageID, err := parseReplyHandle(msg.ReplyHandle)
	if err != nil {
		return err
	}
	for i, chunk := range splitMessage(msg.Text, telegramMaxMsgRunes) {
		out := tgbotapi.NewMessage(chatID, chunk)
		if i == 0 {
			out.ReplyToMessageID = messageID
		}
		if _, err := t.bot.Send(out); err != nil {
			return fmt.Errorf("telegram send: %w", err)
		}
	}
	return nil
}

// splitMessage cuts text into chunks of at most max runes, preferring the
// last newline in the second half of a chunk.
func splitMessage(text string, max int) []string {
	runes := []rune(text)
	var chunks []string
	for len(runes) > max {
		cut := max
		for i := max - 1; i >= max/2; i-- {
			if runes[i] == '\n' {
				cut = i
				break
			}
		}
		chunks = append(chunks, string(runes[:cut]))
		runes = runes[cut:]
	}
	return append(chunks, string(runes))
}

// Open downloads a file by id through the Bot API file endpoint.
func (t *Telegram) Open(ctx context.Context, ref domain.MediaRef) (io.ReadCloser, error) {
	if t.bot == nil {
		return nil, errors.New("telegram: not connected")
	}
	file, err := t.bot.GetFile(tgbotapi.FileConfig{FileID: ref.ID})
	if err != nil {
		return nil, fmt.Errorf("telegram get file %s: %w", ref.ID, err)
	}

	url := fmt.Sprintf(t.fileEndpoint, t.token, file.FilePath)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("telegram file request: %w", err)
	}
	resp, err := t.client.Do(req)
	if err != nil {
		// The URL carries the bot token; keep it out of the error.
		return nil, fmt.Errorf("telegram download %s: %w", ref.ID, errors.Unwrap(err))
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("telegram download %s: status %d", ref.ID, resp.StatusCode)
	}
	return resp.Body, nil
}
