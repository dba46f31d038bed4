package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/makai-tours/skydesk/internal/anthropic"
	"github.com/makai-tours/skydesk/internal/api"
	"github.com/makai-tours/skydesk/internal/availability"
	"github.com/makai-tours/skydesk/internal/config"
	"github.com/makai-tours/skydesk/internal/events"
	"github.com/makai-tours/skydesk/internal/intent"
	"github.com/makai-tours/skydesk/internal/mailer"
	"github.com/makai-tours/skydesk/internal/pipeline"
	"github.com/makai-tours/skydesk/internal/store"
)

func main() {
	cfg := config.Load()
	setupLogging(cfg.LogLevel)

	slog.Info("skydesk starting", "port", cfg.Port)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Database
	if cfg.DatabaseURL == "" {
		slog.Error("DATABASE_URL is required")
		os.Exit(1)
	}
	db, err := store.New(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("database connected")

	// Anthropic client and intent oracle
	if cfg.AnthropicAPIKey == "" {
		slog.Error("ANTHROPIC_API_KEY is required")
		os.Exit(1)
	}
	llm := anthropic.NewClient(cfg.AnthropicAPIKey, cfg.AnthropicModel)
	oracle := intent.New(llm, slog.Default())
	slog.Info("intent oracle ready", "model", cfg.AnthropicModel)

	// Mail, recorded through the notification outbox
	sender := mailer.NewSender(cfg.MailAPIURL, cfg.MailAPIToken, cfg.MailFrom, cfg.MailSendDelay, slog.Default())
	notifier := pipeline.NewRecordingNotifier(sender, db, slog.Default())

	// Availability prober
	prober := availability.NewProber(cfg.ProbeURL, slog.Default())

	// NATS
	eventsClient, err := events.NewClient(cfg.NatsURL, cfg.NatsToken, slog.Default())
	if err != nil {
		slog.Error("failed to connect to NATS", "error", err)
		os.Exit(1)
	}
	defer eventsClient.Close()
	slog.Info("NATS connected", "url", cfg.NatsURL)

	// Booking pipeline
	pipe := pipeline.New(db, oracle, notifier, prober, eventsClient, cfg.Directory, cfg.SpamAutoReply, slog.Default())

	// Intake subscriptions
	if err := eventsClient.Subscribe(events.SubjectInboundEmail, pipe.HandleEmailEvent); err != nil {
		slog.Error("failed to subscribe to inbound email", "error", err)
		os.Exit(1)
	}
	if err := eventsClient.Subscribe(events.SubjectInboundCall, pipe.HandleCallEvent); err != nil {
		slog.Error("failed to subscribe to inbound calls", "error", err)
		os.Exit(1)
	}

	// Failed-notification retry sweep
	go notifier.StartSweeper(ctx, cfg.OutboxSweepInterval, cfg.OutboxMaxAttempts, 50)

	// HTTP API
	srv := api.NewServer(cfg.Port, cfg.APIToken, pipe, slog.Default())
	go func() {
		if err := srv.Start(); err != nil {
			slog.Error("HTTP server error", "error", err)
		}
	}()

	slog.Info("skydesk ready", "port", cfg.Port, "operators", len(cfg.Directory.Operators))

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	slog.Info("shutting down")
	cancel()
	time.Sleep(200 * time.Millisecond)
	slog.Info("skydesk stopped")
}

func setupLogging(level string) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	slog.SetDefault(slog.New(handler))
}
