package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/Fantasim/tokenmeta/internal/config"
	"github.com/Fantasim/tokenmeta/internal/models"
	"github.com/Fantasim/tokenmeta/internal/network"
)

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to write JSON response", "error", err)
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, models.APIError{
		Error: models.APIErrorDetail{
			Code:    code,
			Message: message,
		},
	})
}

// networkParam parses the {network} URL parameter, writing a 400 on failure.
func networkParam(w http.ResponseWriter, r *http.Request) (models.Network, bool) {
	raw := chi.URLParam(r, "network")
	n, err := network.ParseNetwork(raw)
	if err != nil {
		slog.Warn("invalid network requested", "network", raw)
		writeError(w, http.StatusBadRequest, config.ErrorInvalidNetwork, "unsupported network: "+raw)
		return "", false
	}
	return n, true
}

// parseIntParam extracts an integer query parameter with a default value.
func parseIntParam(r *http.Request, key string, defaultVal int) int {
	val := r.URL.Query().Get(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil || n < 1 {
		slog.Debug("invalid int param, using default",
			"key", key,
			"value", val,
			"default", defaultVal,
		)
		return defaultVal
	}
	return n
}
