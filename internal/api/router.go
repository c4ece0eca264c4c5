package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/rkstudio/podcastai/internal/api/handlers"
	"github.com/rkstudio/podcastai/internal/api/middleware"
	"github.com/rkstudio/podcastai/internal/config"
	"github.com/rkstudio/podcastai/internal/job"
	"github.com/rkstudio/podcastai/internal/pipeline"
	"github.com/rkstudio/podcastai/internal/saved"
	"github.com/rkstudio/podcastai/internal/snapshot"
	"github.com/rkstudio/podcastai/internal/stream"
	"github.com/rkstudio/podcastai/internal/synth"
)

type Router struct {
	mux         *chi.Mux
	redis       *redis.Client
	cfg         *config.Config
	registry    *job.Registry
	hub         *stream.Hub
	runner      *pipeline.Runner
	synthesizer *synth.Synthesizer
	index       *saved.Index
	snapshots   *snapshot.Client
}

func NewRouter(rdb *redis.Client, cfg *config.Config, registry *job.Registry, hub *stream.Hub, runner *pipeline.Runner, synthesizer *synth.Synthesizer, index *saved.Index, snapshots *snapshot.Client) *Router {
	return &Router{
		mux:         chi.NewRouter(),
		redis:       rdb,
		cfg:         cfg,
		registry:    registry,
		hub:         hub,
		runner:      runner,
		synthesizer: synthesizer,
		index:       index,
		snapshots:   snapshots,
	}
}

func (rt *Router) Setup() http.Handler {
	r := rt.mux

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(rt.cfg.CORS.AllowedOrigins))

	rl := middleware.NewRateLimiter(100, 200)
	r.Use(rl.Limit)

	// Health endpoints
	health := handlers.NewHealthHandler(rt.redis)
	r.Get("/healthz", health.Healthz)
	r.Get("/readyz", health.Readyz)

	// API v1
	r.Route("/api/v1", func(r chi.Router) {
		voicesH := handlers.NewVoicesHandler()
		r.Get("/voices", voicesH.List)

		jobsH := handlers.NewJobsHandler(rt.registry, rt.hub, rt.runner, rt.synthesizer, rt.index, rt.snapshots)
		r.Route("/jobs", func(r chi.Router) {
			r.Post("/", jobsH.Create)
			r.Get("/", jobsH.List)
			r.Get("/saved", jobsH.ListSaved)
			r.Get("/{id}", jobsH.Get)
			r.Delete("/{id}", jobsH.Delete)
			r.Get("/{id}/events", jobsH.Events)
			r.Get("/{id}/audio", jobsH.Audio)
			r.Post("/{id}/save", jobsH.Save)
			r.Delete("/{id}/save", jobsH.Unsave)
		})
	})

	return r
}
