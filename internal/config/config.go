package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"gopkg.in/yaml.v3"
)

// Archive backends.
const (
	ArchiveBackendNotion = "notion"
	ArchiveBackendSQLite = "sqlite"
	ArchiveBackendNone   = "none"
)

// Config is the root configuration. Values come from Defaults, then an
// optional YAML file, then environment variables.
type Config struct {
	App      AppConfig      `yaml:"app"`
	LINE     LINEConfig     `yaml:"line"`
	Telegram TelegramConfig `yaml:"telegram"`
	OpenAI   OpenAIConfig   `yaml:"openai"`
	Archive  ArchiveConfig  `yaml:"archive"`
	Notion   NotionConfig   `yaml:"notion"`
	Drive    DriveConfig    `yaml:"drive"`
	Apify    ApifyConfig    `yaml:"apify"`
	Fetch    FetchConfig    `yaml:"fetch"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

type AppConfig struct {
	LogLevel  string `yaml:"log_level"`  // debug | info | warn | error
	LogFormat string `yaml:"log_format"` // text | json
	Port      int    `yaml:"port"`
	TempDir   string `yaml:"temp_dir,omitempty"` // media scratch dir (default: os.TempDir)
}

type LINEConfig struct {
	ChannelSecret      string `yaml:"channel_secret"`
	ChannelAccessToken string `yaml:"channel_access_token"`
	AllowedUserID      string `yaml:"allowed_user_id"` // empty = open mode
	WebhookPath        string `yaml:"webhook_path"`
}

type TelegramConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Token         string `yaml:"token"`
	AllowedUserID string `yaml:"allowed_user_id"`
}

type OpenAIConfig struct {
	APIKey             string `yaml:"api_key"`
	APIBase            string `yaml:"api_base"`
	ChatModel          string `yaml:"chat_model"`
	VisionModel        string `yaml:"vision_model"`
	TranscriptionModel string `yaml:"transcription_model"`
	Language           string `yaml:"language,omitempty"` // transcription hint, ISO-639-1
	TimeoutSeconds     int    `yaml:"timeout_seconds"`
}

type ArchiveConfig struct {
	Backend    string `yaml:"backend"` // notion | sqlite | none
	SQLitePath string `yaml:"sqlite_path,omitempty"`
}

type NotionConfig struct {
	Token          string `yaml:"token"`
	DatabaseID     string `yaml:"database_id"`
	APIBase        string `yaml:"api_base"`
	Version        string `yaml:"version"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

type DriveConfig struct {
	FolderID        string `yaml:"folder_id"`
	CredentialsFile string `yaml:"credentials_file"`
	TokenFile       string `yaml:"token_file"`
	PublicLink      bool   `yaml:"public_link"` // grant "anyone with the link" read access
	UploadBase      string `yaml:"upload_base,omitempty"`
	APIBase         string `yaml:"api_base,omitempty"`
	TimeoutSeconds  int    `yaml:"timeout_seconds"`
}

type ApifyConfig struct {
	Token          string `yaml:"token"`
	APIBase        string `yaml:"api_base"`
	FacebookActor  string `yaml:"facebook_actor"`
	ThreadsActor   string `yaml:"threads_actor"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

type FetchConfig struct {
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	MaxChars       int    `yaml:"max_chars"`
	UserAgent      string `yaml:"user_agent"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// DefaultConfigPath is used when no --config flag is given.
const DefaultConfigPath = "config.yaml"

// Load builds the configuration with Read, then validates it.
func Load(path string) (*Config, error) {
	cfg, err := Read(path)
	if err != nil {
		return nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

// Read builds the configuration from defaults, the YAML file at path (skipped
// when it does not exist) and the environment without validating it. Used by
// operator commands that need only part of the configuration.
func Read(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		path = ExpandPath(path)
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
			// env-only deployment
		case err != nil:
			return nil, fmt.Errorf("cannot read config file %s: %w", path, err)
		default:
			// Substitute environment variables: ${VAR} and ${VAR:-default}
			data = []byte(ExpandEnvVars(string(data)))
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("cannot parse config file %s: %w", path, err)
			}
		}
	}

	ApplyEnv(cfg)

	cfg.Archive.SQLitePath = ExpandPath(cfg.Archive.SQLitePath)
	cfg.Drive.CredentialsFile = ExpandPath(cfg.Drive.CredentialsFile)
	cfg.Drive.TokenFile = ExpandPath(cfg.Drive.TokenFile)
	cfg.App.TempDir = ExpandPath(cfg.App.TempDir)
	return cfg, nil
}

// ApplyEnv overrides config values with the process environment. Only
// variables that are set and non-empty take effect.
func ApplyEnv(cfg *Config) {
	setString(&cfg.LINE.ChannelSecret, "LINE_CHANNEL_SECRET")
	setString(&cfg.LINE.ChannelAccessToken, "LINE_CHANNEL_ACCESS_TOKEN")
	setString(&cfg.LINE.AllowedUserID, "ALLOWED_USER_ID")

	setString(&cfg.Telegram.Token, "TELEGRAM_BOT_TOKEN")
	setString(&cfg.Telegram.AllowedUserID, "TELEGRAM_ALLOWED_USER_ID")
	if cfg.Telegram.Token != "" && os.Getenv("TELEGRAM_BOT_TOKEN") != "" {
		cfg.Telegram.Enabled = true
	}

	setString(&cfg.OpenAI.APIKey, "OPENAI_API_KEY")
	setString(&cfg.OpenAI.APIBase, "OPENAI_API_BASE")

	setString(&cfg.Notion.Token, "NOTION_TOKEN")
	setString(&cfg.Notion.Token, "NOTION_API_KEY")
	setString(&cfg.Notion.DatabaseID, "NOTION_DATABASE_ID")
	setString(&cfg.Archive.Backend, "ARCHIVE_BACKEND")
	setString(&cfg.Archive.SQLitePath, "ARCHIVE_SQLITE_PATH")

	setString(&cfg.Drive.FolderID, "GOOGLE_DRIVE_FOLDER_ID")
	setString(&cfg.Drive.CredentialsFile, "GOOGLE_CREDENTIALS_FILE")
	setString(&cfg.Drive.TokenFile, "GOOGLE_TOKEN_FILE")

	setString(&cfg.Apify.Token, "APIFY_API_TOKEN")

	setString(&cfg.App.LogLevel, "LOG_LEVEL")
	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.App.Port = port
		}
	}
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		*dst = strings.TrimSpace(v)
	}
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns in config strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-(.*?))?\}`)

// ExpandEnvVars replaces ${VAR} with the environment variable value.
// ${VAR:-default} uses "default" when VAR is unset or empty. Unresolved
// references without a default are kept verbatim.
func ExpandEnvVars(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		if len(groups) < 2 {
			return match
		}
		hasDefault := len(groups) >= 3 && groups[2] != ""

		val, exists := os.LookupEnv(groups[1])
		if !exists || val == "" {
			if hasDefault {
				return groups[2]
			}
			return match
		}
		return val
	})
}

// Validate checks required values and ranges. Missing required credentials
// are fatal at startup.
func Validate(cfg *Config) error {
	return validation.Errors{
		"app":      cfg.App.Validate(),
		"line":     cfg.LINE.Validate(),
		"telegram": cfg.Telegram.Validate(),
		"openai":   cfg.OpenAI.Validate(),
		"archive":  cfg.Archive.Validate(),
		"fetch":    cfg.Fetch.Validate(),
		"metrics":  cfg.Metrics.Validate(),
	}.Filter()
}

func (c AppConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.LogLevel, validation.In("debug", "info", "warn", "error")),
		validation.Field(&c.LogFormat, validation.In("text", "json")),
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

func (c LINEConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.ChannelSecret, validation.Required.Error("LINE_CHANNEL_SECRET is required")),
		validation.Field(&c.ChannelAccessToken, validation.Required.Error("LINE_CHANNEL_ACCESS_TOKEN is required")),
		validation.Field(&c.WebhookPath, validation.Required, validation.Match(regexp.MustCompile(`^/`))),
	)
}

func (c TelegramConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	return validation.ValidateStruct(&c,
		validation.Field(&c.Token, validation.Required.Error("TELEGRAM_BOT_TOKEN is required when telegram is enabled")),
	)
}

func (c OpenAIConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.APIKey, validation.Required.Error("OPENAI_API_KEY is required")),
		validation.Field(&c.APIBase, validation.Required),
		validation.Field(&c.TimeoutSeconds, validation.Min(0)),
	)
}

func (c ArchiveConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Backend, validation.In(ArchiveBackendNotion, ArchiveBackendSQLite, ArchiveBackendNone)),
		validation.Field(&c.SQLitePath, validation.When(c.Backend == ArchiveBackendSQLite, validation.Required)),
	)
}

func (c FetchConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.TimeoutSeconds, validation.Required, validation.Min(1)),
		validation.Field(&c.MaxChars, validation.Required, validation.Min(1)),
	)
}

func (c MetricsConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Path, validation.When(c.Enabled, validation.Required, validation.Match(regexp.MustCompile(`^/`)))),
	)
}

// placeholderPattern matches unfilled template values such as
// "your_notion_token", "<database id>", "xxxx" or "changeme".
var placeholderPattern = regexp.MustCompile(`(?i)^(your[_-].*|<.*>|x{3,}.*|changeme|todo|placeholder)$`)

// IsPlaceholder reports whether v is empty or an unfilled template value.
func IsPlaceholder(v string) bool {
	v = strings.TrimSpace(v)
	return v == "" || placeholderPattern.MatchString(v)
}

// NotionConfigured reports whether the Notion sink has usable credentials.
func (c *Config) NotionConfigured() bool {
	return !IsPlaceholder(c.Notion.Token) && !IsPlaceholder(c.Notion.DatabaseID)
}

// DriveConfigured reports whether image uploads can be attempted.
func (c *Config) DriveConfigured() bool {
	return !IsPlaceholder(c.Drive.FolderID) && c.Drive.TokenFile != ""
}

// ApifyConfigured reports whether Facebook/Threads scraping is available.
func (c *Config) ApifyConfigured() bool {
	return !IsPlaceholder(c.Apify.Token)
}

// ExpandPath resolves ~/ to the user's home directory.
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}

// Seconds converts a config value in seconds to a duration. Zero or negative
// values yield zero, which constructors treat as "use the default".
func Seconds(n int) time.Duration {
	if n <= 0 {
		return 0
	}
	return time.Duration(n) * time.Second
}
