package handlers

import (
	"log/slog"
	"net/http"

	"github.com/Fantasim/tokenmeta/internal/config"
	"github.com/Fantasim/tokenmeta/internal/models"
)

// HealthHandler returns a handler for the GET /api/health endpoint.
func HealthHandler(cfg *config.Config, version string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		slog.Debug("health check requested", "remoteAddr", r.RemoteAddr)

		writeJSON(w, http.StatusOK, map[string]interface{}{
			"status":   "ok",
			"version":  version,
			"dbPath":   cfg.DBPath,
			"networks": len(models.AllNetworks),
		})
	}
}
