package handlers

import (
	"log/slog"
	"net/http"

	"github.com/Fantasim/tokenmeta/internal/models"
	"github.com/Fantasim/tokenmeta/internal/network"
)

type networkResponse struct {
	Network    models.Network `json:"network"`
	ChainID    int64          `json:"chainId"`
	Aggregator string         `json:"aggregator"`
	Configured bool           `json:"configured"`
}

// ListNetworks handles GET /api/networks. Endpoint URLs carry API keys and are
// not exposed.
func ListNetworks(registry *network.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		slog.Debug("networks requested", "remoteAddr", r.RemoteAddr)

		all := registry.All()
		out := make([]networkResponse, 0, len(all))
		for _, c := range all {
			out = append(out, networkResponse{
				Network:    c.Network,
				ChainID:    c.ChainID,
				Aggregator: c.Aggregator.Hex(),
				Configured: c.EndpointURL != "",
			})
		}

		writeJSON(w, http.StatusOK, models.APIResponse{
			Data: out,
			Meta: &models.APIMeta{Total: int64(len(out))},
		})
	}
}
