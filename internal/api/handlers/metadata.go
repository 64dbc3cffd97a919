package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/Fantasim/tokenmeta/internal/config"
	"github.com/Fantasim/tokenmeta/internal/db"
	"github.com/Fantasim/tokenmeta/internal/metadata"
	"github.com/Fantasim/tokenmeta/internal/models"
)

// MetadataDeps holds the dependencies of the metadata handlers.
type MetadataDeps struct {
	DB      *db.DB
	Fetcher *metadata.Fetcher
}

type fetchRequest struct {
	Tokens []string `json:"tokens"`
}

// FetchMetadata handles POST /api/networks/{network}/metadata. It fetches the
// requested tokens in one aggregate call, stores them and records the run.
func FetchMetadata(deps *MetadataDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		n, ok := networkParam(w, r)
		if !ok {
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, config.MaxRequestBodyBytes)

		var req fetchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			slog.Warn("invalid metadata request body", "error", err)
			writeError(w, http.StatusBadRequest, config.ErrorInvalidRequest, "invalid request body")
			return
		}

		if len(req.Tokens) > config.MaxTokensPerRequest {
			writeError(w, http.StatusBadRequest, config.ErrorTooManyTokens,
				fmt.Sprintf("at most %d tokens per request, got %d", config.MaxTokensPerRequest, len(req.Tokens)))
			return
		}

		tokens := make([]common.Address, 0, len(req.Tokens))
		for _, raw := range req.Tokens {
			if !common.IsHexAddress(raw) {
				slog.Warn("invalid token address", "network", n, "address", raw)
				writeError(w, http.StatusBadRequest, config.ErrorInvalidAddress, "invalid token address: "+raw)
				return
			}
			tokens = append(tokens, common.HexToAddress(raw))
		}

		slog.Info("metadata fetch requested", "network", n, "tokens", len(tokens))

		res, err := deps.Fetcher.FetchResult(r.Context(), n, tokens)

		run := models.FetchRun{Network: n, TokenCount: len(tokens)}
		if err != nil {
			run.Error = err.Error()
			run.DurationMs = time.Since(start).Milliseconds()
		} else {
			run.FallbackCount = res.Fallbacks
			run.DurationMs = res.Duration.Milliseconds()
		}
		if _, recErr := deps.DB.RecordFetchRun(run); recErr != nil {
			slog.Error("failed to record fetch run", "network", n, "error", recErr)
		}

		if err != nil {
			writeFetchError(w, n, err)
			return
		}

		if err := deps.DB.UpsertTokenMetadata(n, res.Ordered); err != nil {
			slog.Error("failed to store token metadata", "network", n, "error", err)
			writeError(w, http.StatusInternalServerError, config.ErrorDatabase, "failed to store token metadata")
			return
		}

		out := make(map[string]models.TokenMetadata, len(res.Tokens))
		for addr, md := range res.Tokens {
			out[addr.Hex()] = md
		}

		elapsed := time.Since(start).Milliseconds()

		slog.Info("metadata fetch complete",
			"network", n,
			"tokens", len(out),
			"fallbacks", res.Fallbacks,
			"elapsed_ms", elapsed,
		)

		writeJSON(w, http.StatusOK, models.APIResponse{
			Data: out,
			Meta: &models.APIMeta{Total: int64(len(out)), ExecutionTime: elapsed},
		})
	}
}

// writeFetchError maps fetcher errors onto HTTP statuses.
func writeFetchError(w http.ResponseWriter, n models.Network, err error) {
	switch {
	case errors.Is(err, config.ErrUnsupportedNetwork):
		writeError(w, http.StatusBadRequest, config.ErrorInvalidNetwork, err.Error())
	case errors.Is(err, config.ErrCircuitOpen):
		slog.Warn("metadata fetch rejected, circuit open", "network", n)
		writeError(w, http.StatusServiceUnavailable, config.ErrorCircuitOpen, "network temporarily unavailable")
	default:
		slog.Error("metadata fetch failed", "network", n, "error", err)
		writeError(w, http.StatusBadGateway, config.ErrorAggregateCallFailed, err.Error())
	}
}

// ListMetadata handles GET /api/networks/{network}/metadata.
func ListMetadata(database *db.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		n, ok := networkParam(w, r)
		if !ok {
			return
		}

		tokens, err := database.ListTokenMetadata(n)
		if err != nil {
			slog.Error("failed to list token metadata", "network", n, "error", err)
			writeError(w, http.StatusInternalServerError, config.ErrorDatabase, "failed to list token metadata")
			return
		}

		writeJSON(w, http.StatusOK, models.APIResponse{
			Data: tokens,
			Meta: &models.APIMeta{Total: int64(len(tokens)), ExecutionTime: time.Since(start).Milliseconds()},
		})
	}
}

// ListFetchRuns handles GET /api/networks/{network}/runs?limit=N.
func ListFetchRuns(database *db.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n, ok := networkParam(w, r)
		if !ok {
			return
		}

		limit := parseIntParam(r, "limit", config.DefaultFetchRunLimit)

		runs, err := database.ListFetchRuns(n, limit)
		if err != nil {
			slog.Error("failed to list fetch runs", "network", n, "error", err)
			writeError(w, http.StatusInternalServerError, config.ErrorDatabase, "failed to list fetch runs")
			return
		}

		writeJSON(w, http.StatusOK, models.APIResponse{
			Data: runs,
			Meta: &models.APIMeta{Total: int64(len(runs))},
		})
	}
}
