package server

import (
	"net/http"

	"github.com/carepath-labs/skillverify/internal/api"
	"github.com/carepath-labs/skillverify/internal/api/handlers"
	"github.com/carepath-labs/skillverify/internal/api/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
)

type RouterConfig struct {
	APIKey          string
	DocumentHandler *handlers.DocumentHandler
	VerifyHandler   *handlers.VerifyHandler
	StatsHandler    *handlers.StatsHandler
	Registry        *prometheus.Registry
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	const maxBodyBytes int64 = 1 * 1024 * 1024

	r.Use(middleware.RequestID)
	r.Use(middleware.SentryMiddleware)
	r.Use(middleware.AccessLog)
	r.Use(middleware.MaxBodyBytes(maxBodyBytes))
	r.Use(cors.New(cors.Options{
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowedHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}).Handler)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		api.Success(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	if cfg.Registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(cfg.Registry, promhttp.HandlerOpts{}))
	}

	r.Group(func(r chi.Router) {
		r.Use(middleware.APIKeyAuth(cfg.APIKey))

		r.Route("/documents", func(r chi.Router) {
			r.Post("/", cfg.DocumentHandler.Create)
			r.Get("/", cfg.DocumentHandler.List)
			r.Get("/search", cfg.DocumentHandler.Search)
			r.Get("/skill/{skillId}", cfg.DocumentHandler.ListBySkill)
			r.Get("/{id}", cfg.DocumentHandler.Get)
			r.Put("/{id}", cfg.DocumentHandler.Update)
			r.Delete("/{id}", cfg.DocumentHandler.Delete)
			r.Post("/{id}/embeddings", cfg.DocumentHandler.RefreshEmbeddings)
		})

		r.Post("/verify/step", cfg.VerifyHandler.VerifyStep)
		r.Get("/retrieve", cfg.VerifyHandler.Retrieve)

		r.Get("/stats", cfg.StatsHandler.Get)
	})

	return r
}
