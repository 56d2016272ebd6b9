package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/nad-devs/Logger/internal/anthropic"
	"github.com/nad-devs/Logger/internal/api"
	"github.com/nad-devs/Logger/internal/bus"
	"github.com/nad-devs/Logger/internal/config"
	"github.com/nad-devs/Logger/internal/ingest"
	"github.com/nad-devs/Logger/internal/judge"
	"github.com/nad-devs/Logger/internal/pipeline"
	"github.com/nad-devs/Logger/internal/store"
)

func main() {
	cfg := config.Load()
	setupLogging(cfg.LogLevel)

	slog.Info("logger starting", "port", cfg.Port)

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

	// Judgment backend — rule-based fallback only when no key is set
	var j judge.Judge
	if cfg.AnthropicAPIKey != "" {
		llm := anthropic.NewClient(cfg.AnthropicAPIKey, cfg.AnthropicModel)
		j = judge.NewLLMJudge(llm, cfg.Calibration.JudgeTimeout)
		slog.Info("anthropic judge ready", "model", cfg.AnthropicModel)
	} else {
		j = judge.Disabled{}
		slog.Warn("ANTHROPIC_API_KEY not set — judging with rules only")
	}

	// NATS
	nc, err := bus.New(cfg.NatsURL, cfg.NatsToken, slog.Default())
	if err != nil {
		slog.Error("failed to connect to NATS", "error", err)
		os.Exit(1)
	}
	defer nc.Close()
	slog.Info("NATS connected", "url", cfg.NatsURL)

	// Ingest — hook events into the store
	consumer := ingest.New(db, cfg.Calibration, slog.Default())
	if err := nc.Subscribe(bus.SubjectPromptRecorded, consumer.HandlePromptRecorded); err != nil {
		slog.Error("failed to subscribe to prompt events", "error", err)
		os.Exit(1)
	}
	if err := nc.Subscribe(bus.SubjectEditRecorded, consumer.HandleEditRecorded); err != nil {
		slog.Error("failed to subscribe to edit events", "error", err)
		os.Exit(1)
	}

	// Analysis pipeline. Analysis work is tracked so shutdown can wait for
	// the conversation in flight instead of killing it between upserts.
	var analysisWork sync.WaitGroup
	pipe := pipeline.New(db, j, nc, bus.SubjectAnalysisCompleted, cfg.Calibration, slog.Default())
	if err := nc.Subscribe(bus.SubjectAnalysisRequested, func(subject string, data []byte) {
		analysisWork.Add(1)
		defer analysisWork.Done()
		pipe.HandleAnalysisRequested(subject, data)
	}); err != nil {
		slog.Error("failed to subscribe to analysis requests", "error", err)
		os.Exit(1)
	}

	// HTTP API
	srv := api.NewServer(cfg.Port, db, pipe, slog.Default())
	go func() {
		if err := srv.Start(); err != nil {
			slog.Error("HTTP server error", "error", err)
		}
	}()

	// Batch trigger — pick up conversations the event path missed
	analysisWork.Add(1)
	go func() {
		defer analysisWork.Done()
		ticker := time.NewTicker(cfg.PollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				n, err := pipe.RunPending(ctx)
				if err != nil {
					slog.Error("pending batch failed", "error", err)
					continue
				}
				if n > 0 {
					slog.Info("pending batch done", "analyzed", n)
				}
			}
		}
	}()

	slog.Info("logger ready", "port", cfg.Port, "poll_interval", cfg.PollInterval)

	// Graceful shutdown — the conversation in flight finishes before exit
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	slog.Info("shutting down, waiting for in-flight analysis")
	cancel()
	analysisWork.Wait()
	slog.Info("logger stopped")
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
