package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rkstudio/podcastai/internal/api"
	"github.com/rkstudio/podcastai/internal/config"
	"github.com/rkstudio/podcastai/internal/grounding"
	"github.com/rkstudio/podcastai/internal/job"
	"github.com/rkstudio/podcastai/internal/llm"
	"github.com/rkstudio/podcastai/internal/multimodal/stt"
	"github.com/rkstudio/podcastai/internal/multimodal/tts"
	"github.com/rkstudio/podcastai/internal/pipeline"
	"github.com/rkstudio/podcastai/internal/saved"
	"github.com/rkstudio/podcastai/internal/snapshot"
	"github.com/rkstudio/podcastai/internal/stream"
	"github.com/rkstudio/podcastai/internal/synth"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	// Redis connection (optional; snapshots degrade without it)
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		slog.Warn("redis unavailable, snapshot queue degraded", "error", err)
	}
	defer rdb.Close()

	registry := job.NewRegistry()
	hub := stream.NewHub()
	index := saved.NewIndex(registry)

	store, err := snapshot.NewStore(cfg.Snapshot.Dir)
	if err != nil {
		slog.Error("failed to open snapshot store", "error", err)
		os.Exit(1)
	}
	restored, err := snapshot.Restore(store, registry, index, hub)
	if err != nil {
		slog.Warn("snapshot restore failed", "error", err)
	} else if restored > 0 {
		slog.Info("restored saved jobs from snapshots", "count", restored)
	}

	gateway := llm.NewGateway(cfg.LLM)
	sttProvider := newSTTProvider(cfg.STT)
	ttsProvider := newTTSProvider(cfg.TTS)

	grounder := grounding.NewDuckDuckGo()

	runner := pipeline.NewRunner(registry, hub, gateway, sttProvider, grounder, cfg.Generation, logger)
	synthesizer := synth.New(registry, ttsProvider, logger)
	snapClient := snapshot.NewClient(cfg.Redis)
	defer snapClient.Close()

	router := api.NewRouter(rdb, cfg, registry, hub, runner, synthesizer, index, snapClient)
	handler := router.Setup()

	srv := &http.Server{
		Addr:        cfg.Addr(),
		Handler:     handler,
		ReadTimeout: 15 * time.Second,
		// No write timeout: event streams stay open for the whole generation.
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		slog.Info("starting API server", "addr", cfg.Addr())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced shutdown", "error", err)
	}
	slog.Info("server stopped")
}

func newSTTProvider(cfg config.STTConfig) stt.Provider {
	if cfg.Backend == "local" {
		return stt.NewLocalSTT(stt.LocalSTTConfig{BaseURL: cfg.LocalBaseURL})
	}
	return stt.NewOpenAISTT(stt.OpenAISTTConfig{
		APIKey:  cfg.OpenAIKey,
		BaseURL: cfg.OpenAIBaseURL,
		Model:   cfg.OpenAIModel,
	})
}

func newTTSProvider(cfg config.TTSConfig) tts.Provider {
	if cfg.Backend == "local" {
		return tts.NewLocalTTS(tts.LocalTTSConfig{
			PiperBinPath: cfg.LocalBinPath,
			ModelPath:    cfg.LocalModel,
		})
	}
	return tts.NewOpenAITTS(tts.OpenAITTSConfig{
		APIKey:  cfg.OpenAIKey,
		BaseURL: cfg.OpenAIBaseURL,
		Model:   cfg.OpenAIModel,
	})
}
