// Car-buyer intake bot server.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/joho/godotenv"

	"github.com/autopodbor/intake-bot/internal/api"
	"github.com/autopodbor/intake-bot/internal/config"
	"github.com/autopodbor/intake-bot/internal/conversation"
	"github.com/autopodbor/intake-bot/internal/observability"
	"github.com/autopodbor/intake-bot/internal/recommend"
	"github.com/autopodbor/intake-bot/internal/session"
	"github.com/autopodbor/intake-bot/internal/sheetsync"
	"github.com/autopodbor/intake-bot/internal/store"
	"github.com/autopodbor/intake-bot/internal/telegram"
	"github.com/autopodbor/intake-bot/internal/transcript"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	telemetry, err := observability.SetupTelemetry(ctx, cfg.OTel)
	if err != nil {
		slog.Error("Failed to initialize telemetry", "error", err)
		os.Exit(1)
	}
	observability.SetupLogger(cfg)

	slog.Info("Starting intake bot",
		"port", cfg.Port,
		"env", cfg.Env,
		"webhook", cfg.Telegram.Enabled(),
		"sheet_sync", cfg.SheetSync.Enabled(),
		"journal", cfg.Journal.Enabled,
		"recommendations", cfg.OpenAI.Enabled(),
	)

	// Dispatch journal (optional).
	var journal store.Journal
	var purger session.Purger
	var recorder sheetsync.Recorder
	if cfg.Journal.Enabled {
		repo, err := store.NewSQLite(cfg.Journal.DBPath)
		if err != nil {
			slog.Error("Failed to initialize database", "error", err)
			os.Exit(1)
		}
		if err := repo.Ping(ctx); err != nil {
			slog.Error("Database health check failed", "error", err)
			os.Exit(1)
		}
		slog.Info("Dispatch journal connected", "path", cfg.Journal.DBPath)
		journal, purger, recorder = repo, repo, repo
	}

	// Remote sheet sync (optional).
	var syncClient *sheetsync.Client
	var dispatcher sheetsync.Dispatcher
	var syncStats api.StatsSource
	if cfg.SheetSync.Enabled() {
		syncClient = sheetsync.NewClient(sheetsync.Options{
			Endpoint:  cfg.SheetSync.URL,
			Timeout:   cfg.SheetSync.Timeout,
			Workers:   cfg.SheetSync.Workers,
			QueueSize: cfg.SheetSync.QueueSize,
			Recorder:  recorder,
			Logger:    slog.Default(),
		})
		dispatcher, syncStats = syncClient, syncClient
	} else {
		slog.Warn("SHEET_SYNC_URL not set, answers will not be synced")
	}

	var recommender recommend.Recommender
	if cfg.OpenAI.Enabled() {
		recommender = recommend.NewOpenAI(recommend.Config{
			APIKey:     cfg.OpenAI.APIKey,
			BaseURL:    cfg.OpenAI.BaseURL,
			Model:      cfg.OpenAI.Model,
			Timeout:    cfg.OpenAI.Timeout,
			MaxRetries: 1,
		})
	}

	var transcripts *transcript.Logger
	if cfg.Transcript.Enabled() {
		transcripts, err = transcript.NewLogger(transcript.Config{
			Dir:       cfg.Transcript.Dir,
			QueueSize: cfg.Transcript.QueueSize,
		}, slog.Default())
		if err != nil {
			slog.Error("Failed to initialize transcripts", "error", err)
			os.Exit(1)
		}
	}

	sessions := session.NewStore()
	engine := conversation.NewEngine(conversation.Options{
		Sessions:          sessions,
		Detector:          sheetsync.NewChangeDetector(dispatcher, slog.Default()),
		Recommender:       recommender,
		CountdownSteps:    cfg.Dialog.CountdownSteps,
		CountdownInterval: cfg.Dialog.CountdownInterval,
		OnTransition:      transcriptHook(transcripts),
		Logger:            slog.Default(),
	})
	mailbox := conversation.NewMailbox(0, slog.Default())

	bot, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		slog.Error("Failed to connect to Telegram", "error", err)
		os.Exit(1)
	}
	slog.Info("Authorized on Telegram", "bot", bot.Self.UserName)
	router := telegram.NewRouter(bot, engine, mailbox, slog.Default())

	session.StartHousekeeping(ctx, sessions, purger, session.HousekeepingConfig{
		IdleTTL:   cfg.SessionIdleTTL,
		Retention: cfg.Journal.Retention,
	})

	routes := httpRoutes{
		health:   api.NewHealthHandler(journal, sessions.Len, syncStats),
		adminKey: cfg.Admin.APIKey,
	}
	if cfg.Admin.Enabled() {
		routes.admin = api.NewAdminHandler(journal, sessions)
	}

	if cfg.Telegram.Enabled() {
		u, err := url.Parse(cfg.Telegram.WebhookURL)
		if err != nil {
			slog.Error("Invalid webhook URL", "error", err)
			os.Exit(1)
		}
		routes.webhook = telegram.NewWebhookHandler(router, cfg.Telegram.WebhookSecret)
		routes.webhookPath = u.Path
		if err := telegram.RegisterWebhook(bot, cfg.Telegram.WebhookURL, cfg.Telegram.WebhookSecret); err != nil {
			slog.Error("Failed to register webhook", "error", err)
			os.Exit(1)
		}
		slog.Info("Webhook registered", "path", u.Path)
	} else {
		if err := telegram.DeleteWebhook(bot); err != nil {
			slog.Warn("Failed to delete webhook", "error", err)
		}
		go telegram.Poll(ctx, bot, router)
	}

	r := newRouter(routes)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal.
	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}
	if err := mailbox.Close(shutdownCtx); err != nil {
		slog.Warn("Conversations interrupted", "error", err)
	}
	if syncClient != nil {
		if err := syncClient.Close(shutdownCtx); err != nil {
			slog.Warn("Sheet sync shutdown incomplete", "error", err)
		}
	}
	if transcripts != nil {
		if err := transcripts.Close(); err != nil {
			slog.Error("Failed to close transcripts", "error", err)
		}
	}
	if journal != nil {
		if err := journal.Close(); err != nil {
			slog.Error("Failed to close journal", "error", err)
		}
	}
	if err := telemetry.Shutdown(shutdownCtx); err != nil {
		slog.Error("Failed to shut down telemetry", "error", err)
	}

	slog.Info("Server stopped successfully")
}

func transcriptHook(l *transcript.Logger) func(context.Context, conversation.Transition) {
	if l == nil {
		return nil
	}
	return func(_ context.Context, t conversation.Transition) {
		l.Log(transcript.Entry{
			IdentityKey: t.IdentityKey,
			Event:       t.Event,
			From:        string(t.From),
			To:          string(t.To),
		})
	}
}
