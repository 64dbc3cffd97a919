package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/Fantasim/tokenmeta/internal/api/handlers"
	"github.com/Fantasim/tokenmeta/internal/api/middleware"
	"github.com/Fantasim/tokenmeta/internal/config"
	"github.com/Fantasim/tokenmeta/internal/db"
	"github.com/Fantasim/tokenmeta/internal/metadata"
	"github.com/Fantasim/tokenmeta/internal/network"
	"github.com/Fantasim/tokenmeta/internal/tokenlist"
)

// Version is set at build time via ldflags.
var Version = "dev"

// Deps holds everything the router wires into handlers.
type Deps struct {
	DB        *db.DB
	Config    *config.Config
	Registry  *network.Registry
	Fetcher   *metadata.Fetcher
	Overrides tokenlist.Overrides
	// Metrics serves /metrics when set.
	Metrics http.Handler
}

// NewRouter creates and configures the Chi router with all middleware and routes.
func NewRouter(deps Deps) chi.Router {
	r := chi.NewRouter()

	// Order matters: request ids must exist before logging, and panics are
	// recovered inside the logger so they are logged as 500s.
	r.Use(chimw.RequestID)
	r.Use(middleware.RequestLogging)
	r.Use(chimw.Recoverer)
	r.Use(middleware.CORS)

	slog.Info("router initialized",
		"middleware", []string{"requestID", "requestLogging", "recoverer", "cors"},
	)

	metadataDeps := &handlers.MetadataDeps{DB: deps.DB, Fetcher: deps.Fetcher}

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", handlers.HealthHandler(deps.Config, Version))
		r.Get("/networks", handlers.ListNetworks(deps.Registry))

		r.Route("/networks/{network}", func(r chi.Router) {
			r.Post("/metadata", handlers.FetchMetadata(metadataDeps))
			r.Get("/metadata", handlers.ListMetadata(deps.DB))
			r.Get("/runs", handlers.ListFetchRuns(deps.DB))
			r.Get("/tokenlist", handlers.GetTokenList(deps.DB, deps.Overrides, config.DefaultTokenListName))
		})
	})

	if deps.Metrics != nil {
		r.Handle("/metrics", deps.Metrics)
	}

	return r
}
