package main

import (
	"log/slog"
	"os"

	"github.com/hibiken/asynq"

	"github.com/rkstudio/podcastai/internal/config"
	"github.com/rkstudio/podcastai/internal/snapshot"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	store, err := snapshot.NewStore(cfg.Snapshot.Dir)
	if err != nil {
		slog.Error("failed to open snapshot store", "error", err)
		os.Exit(1)
	}

	srv := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		},
		asynq.Config{
			Concurrency: 10,
			Queues: map[string]int{
				"critical": 6,
				"default":  3,
				"low":      1,
			},
		},
	)

	worker := snapshot.NewWorker(store)

	mux := asynq.NewServeMux()
	mux.Handle(snapshot.TypeJobWrite, asynq.HandlerFunc(worker.ProcessJobWrite))
	mux.Handle(snapshot.TypeJobRemove, asynq.HandlerFunc(worker.ProcessJobRemove))

	slog.Info("starting snapshot worker", "dir", cfg.Snapshot.Dir)
	if err := srv.Run(mux); err != nil {
		slog.Error("worker error", "error", err)
		os.Exit(1)
	}
}
