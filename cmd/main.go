package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pagebrief/internal/completion"
	"pagebrief/internal/config"
	"pagebrief/internal/server"
	"pagebrief/internal/source"
	"pagebrief/internal/summarize"
)

const shutdownTimeout = 10 * time.Second

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(log)

	start := time.Now()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		log.ErrorContext(ctx, "Failed to load config",
			"error", err)

		return
	}

	client := completion.NewClient(cfg.OpenAIAPIKey, cfg.OpenAIModel, cfg.RateLimitWait)
	log.InfoContext(ctx, "Completion client is initialized",
		"provider", "openai",
		"model", cfg.OpenAIModel)

	engine := summarize.NewEngine(client, summarize.Options{
		SplitThresholdWords: cfg.SplitThresholdWords,
		HardCapWords:        cfg.HardCapWords,
		PreTrimWords:        cfg.PreTrimWords,
		MaxRetries:          cfg.MaxRetries,
		RetryInitialBackoff: cfg.RetryInitialBackoff,
		MaxConcurrentCalls:  cfg.MaxConcurrentCalls,
	}, log)

	articles := source.NewArticles(cfg.HTTPTimeout, log)
	transcripts := source.NewTranscripts(cfg.HTTPTimeout, cfg.TranscriptLanguage, log)

	srv, err := server.New(cfg.Port, engine, articles, transcripts, cfg.TargetWords, log)
	if err != nil {
		log.ErrorContext(ctx, "Failed to initialize server",
			"error", err,
			"port", cfg.Port)

		return
	}

	go func() {
		if serveErr := srv.Start(); serveErr != nil {
			log.ErrorContext(ctx, "Server stopped",
				"error", serveErr,
				"port", cfg.Port)
			cancel()
		}
	}()
	log.InfoContext(ctx, "Server is started",
		"port", cfg.Port,
		"targetWords", cfg.TargetWords)

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-c:
		log.InfoContext(ctx, "Shutdown signal is received",
			"signal", sig.String())
	case <-ctx.Done():
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err = srv.Shutdown(shutdownCtx); err != nil {
		log.ErrorContext(shutdownCtx, "Failed to shut down server",
			"error", err)
	}

	log.InfoContext(ctx, "Exiting...",
		"uptimeSeconds", time.Since(start).Seconds())
}
