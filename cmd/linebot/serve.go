package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/Kame-terry/line-bot/internal/archive"
	"github.com/Kame-terry/line-bot/internal/channel"
	"github.com/Kame-terry/line-bot/internal/config"
	"github.com/Kame-terry/line-bot/internal/dispatch"
	"github.com/Kame-terry/line-bot/internal/domain"
	"github.com/Kame-terry/line-bot/internal/fetch"
	"github.com/Kame-terry/line-bot/internal/metrics"
	"github.com/Kame-terry/line-bot/internal/provider"
	"github.com/Kame-terry/line-bot/internal/security"
	"github.com/Kame-terry/line-bot/internal/server"
	"github.com/Kame-terry/line-bot/internal/upload"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the webhook server",
		Long:  "Serves the LINE webhook, health and metrics endpoints, and polls Telegram when enabled. Press Ctrl+C to stop.",
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfgPath := resolveConfigPath()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger = newLogger(cfg.App.LogLevel, cfg.App.LogFormat)

	archiver, closeArchive, err := archive.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("archive: %w", err)
	}
	defer closeArchive()

	collector := metrics.New()
	deps := buildDeps(cfg, archiver, collector)

	line, err := channel.NewLINE(channel.LINEConfig{
		ChannelSecret:      cfg.LINE.ChannelSecret,
		ChannelAccessToken: cfg.LINE.ChannelAccessToken,
		Logger:             logger,
	})
	if err != nil {
		return err
	}
	deps.Gate = security.NewGate(cfg.LINE.AllowedUserID)
	line.SetHandler(dispatch.New(deps).Bind(line, line))
	if deps.Gate.Open() {
		logger.Warn("ALLOWED_USER_ID not set, every LINE user is authorized")
	}

	workers := []server.Worker{line.Run}
	if cfg.Telegram.Enabled {
		tg := channel.NewTelegram(channel.TelegramConfig{
			Token:  cfg.Telegram.Token,
			Logger: logger,
		})
		tgDeps := deps
		tgDeps.Gate = security.NewGate(cfg.Telegram.AllowedUserID)
		tg.SetHandler(dispatch.New(tgDeps).Bind(tg, tg))
		workers = append(workers, tg.Start)
		logger.Info("telegram channel enabled")
	}

	srv := server.New(server.Config{
		Port:        cfg.App.Port,
		WebhookPath: cfg.LINE.WebhookPath,
		Webhook:     line,
		MetricsPath: cfg.Metrics.Path,
		Metrics:     metricsHandler(cfg, collector),
		Logger:      logger,
	})

	logger.Info("linebot starting",
		"version", version,
		"port", cfg.App.Port,
		"webhook", cfg.LINE.WebhookPath,
		"archive", cfg.Archive.Backend,
		"notion", cfg.NotionConfigured(),
		"drive", cfg.DriveConfigured(),
		"apify", cfg.ApifyConfigured(),
	)
	return srv.Run(context.Background(), workers...)
}

// buildDeps wires the stages shared by every transport. The Gate is set per
// transport by the caller.
func buildDeps(cfg *config.Config, archiver domain.Archiver, collector *metrics.Collector) dispatch.Deps {
	stages := provider.NewStages(cfg.OpenAI, logger)

	web := fetch.NewWebFetcher(fetch.WebConfig{
		Timeout:   config.Seconds(cfg.Fetch.TimeoutSeconds),
		UserAgent: cfg.Fetch.UserAgent,
		MaxChars:  cfg.Fetch.MaxChars,
		Logger:    logger.With("component", "fetch"),
	})
	var social *fetch.Apify
	if cfg.ApifyConfigured() {
		social = fetch.NewApify(fetch.ApifyConfig{
			Token:   cfg.Apify.Token,
			APIBase: cfg.Apify.APIBase,
			Timeout: config.Seconds(cfg.Apify.TimeoutSeconds),
			Logger:  logger.With("component", "apify"),
		})
	}
	pages := fetch.NewRouter(fetch.RouterConfig{
		Web:           web,
		Social:        social,
		FacebookActor: cfg.Apify.FacebookActor,
		ThreadsActor:  cfg.Apify.ThreadsActor,
		MaxChars:      cfg.Fetch.MaxChars,
		Logger:        logger.With("component", "fetch"),
	})

	return dispatch.Deps{
		Transcriber: stages.Transcriber,
		Summarizer:  stages.Summarizer,
		Describer:   stages.Describer,
		Pages:       pages,
		Archiver:    archiver,
		Uploader:    buildUploader(cfg, logger),
		Metrics:     collector,
		TempDir:     cfg.App.TempDir,
		Logger:      logger,
	}
}

// buildUploader returns nil when Drive is not configured so the image
// pipeline can answer with a fixed message instead of failing.
func buildUploader(cfg *config.Config, logger *slog.Logger) domain.Uploader {
	if !cfg.DriveConfigured() {
		logger.Info("google drive not configured, image notes disabled")
		return nil
	}
	return upload.NewDrive(upload.DriveConfig{
		FolderID:        cfg.Drive.FolderID,
		CredentialsFile: cfg.Drive.CredentialsFile,
		TokenFile:       cfg.Drive.TokenFile,
		PublicLink:      cfg.Drive.PublicLink,
		UploadBase:      cfg.Drive.UploadBase,
		APIBase:         cfg.Drive.APIBase,
		Timeout:         config.Seconds(cfg.Drive.TimeoutSeconds),
		Logger:          logger.With("component", "drive"),
	})
}

func metricsHandler(cfg *config.Config, collector *metrics.Collector) http.Handler {
	if !cfg.Metrics.Enabled {
		return nil
	}
	return collector.Handler()
}
