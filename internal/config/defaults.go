package config

// DefaultUserAgent is sent by the generic page fetcher.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

func Defaults() *Config {
	return &Config{
		App: AppConfig{
			LogLevel:  "info",
			LogFormat: "text",
			Port:      5000,
		},
		LINE: LINEConfig{
			WebhookPath: "/callback",
		},
		Telegram: TelegramConfig{
			Enabled: false,
		},
		OpenAI: OpenAIConfig{
			APIBase:            "https://api.openai.com/v1",
			ChatModel:          "gpt-4o-mini",
			VisionModel:        "gpt-4o",
			TranscriptionModel: "whisper-1",
			TimeoutSeconds:     120,
		},
		Archive: ArchiveConfig{
			Backend:    ArchiveBackendNotion,
			SQLitePath: "~/.linebot/notes.db",
		},
		Notion: NotionConfig{
			APIBase:        "https://api.notion.com/v1",
			Version:        "2022-06-28",
			TimeoutSeconds: 30,
		},
		Drive: DriveConfig{
			CredentialsFile: "credentials.json",
			TokenFile:       "token.json",
			PublicLink:      true,
			UploadBase:      "https://www.googleapis.com/upload/drive/v3",
			APIBase:         "https://www.googleapis.com/drive/v3",
			TimeoutSeconds:  60,
		},
		Apify: ApifyConfig{
			APIBase:        "https://api.apify.com/v2",
			FacebookActor:  "apify/facebook-posts-scraper",
			ThreadsActor:   "curious_coder/threads-scraper",
			TimeoutSeconds: 120,
		},
		Fetch: FetchConfig{
			TimeoutSeconds: 10,
			MaxChars:       8000,
			UserAgent:      DefaultUserAgent,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
	}
}
