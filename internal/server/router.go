package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cloo-solutions/inkwell/internal/api"
	"github.com/cloo-solutions/inkwell/internal/api/handlers"
	"github.com/cloo-solutions/inkwell/internal/api/middleware"
	"github.com/cloo-solutions/inkwell/internal/logger"
)

const (
	// manuscripts and preview texts can be whole books
	textBodyBytes    int64 = 10 << 20
	requestBodyBytes int64 = 1 << 20
)

type RouterConfig struct {
	// APIToken guards every route except /health and /metrics when set
	APIToken          string
	Logger            *logger.Logger
	ManuscriptHandler *handlers.ManuscriptHandler
	EditHandler       *handlers.EditHandler
	PreviewHandler    *handlers.PreviewHandler
}

func NewRouter(cfg RouterConfig) http.Handler {
	if cfg.Logger == nil {
		cfg.Logger = logger.NewNop()
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.SentryMiddleware)
	r.Use(middleware.AccessLog(cfg.Logger))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		api.Success(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(middleware.BearerToken(cfg.APIToken))

		textBody := middleware.MaxBodyBytes(textBodyBytes)
		smallBody := middleware.MaxBodyBytes(requestBodyBytes)

		r.Route("/manuscripts", func(r chi.Router) {
			r.With(textBody).Post("/", cfg.ManuscriptHandler.Create)
			r.Get("/", cfg.ManuscriptHandler.List)

			r.Route("/{id}", func(r chi.Router) {
				r.Use(smallBody)
				r.Get("/", cfg.ManuscriptHandler.Get)
				r.Delete("/", cfg.ManuscriptHandler.Delete)
				r.Post("/revert", cfg.ManuscriptHandler.Revert)
				r.Get("/style-prefs", cfg.ManuscriptHandler.GetStylePrefs)
				r.Put("/style-prefs", cfg.ManuscriptHandler.PutStylePrefs)

				r.Get("/versions", cfg.ManuscriptHandler.ListVersions)
				r.Route("/versions/{versionID}", func(r chi.Router) {
					r.Get("/", cfg.ManuscriptHandler.GetVersion)
					r.Get("/chunks", cfg.ManuscriptHandler.ListChunks)
					r.Post("/reindex", cfg.ManuscriptHandler.Reindex)
					r.Get("/download", cfg.ManuscriptHandler.Download)
				})
			})
		})

		r.Route("/edits", func(r chi.Router) {
			r.Use(smallBody)
			r.Post("/suggest", cfg.EditHandler.Suggest)
			r.Post("/apply", cfg.EditHandler.Apply)
			r.Get("/sessions/{id}", cfg.EditHandler.GetSession)
		})

		r.With(textBody).Post("/diff/preview", cfg.PreviewHandler.Diff)
		r.With(textBody).Post("/chunks/preview", cfg.PreviewHandler.Chunk)
	})

	return r
}
