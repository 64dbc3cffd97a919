package handlers

import (
	"log/slog"
	"net/http"

	"github.com/Fantasim/tokenmeta/internal/config"
	"github.com/Fantasim/tokenmeta/internal/db"
	"github.com/Fantasim/tokenmeta/internal/models"
	"github.com/Fantasim/tokenmeta/internal/tokenlist"
)

// GetTokenList handles GET /api/networks/{network}/tokenlist?list=listed.
// The document is served bare, not wrapped in the API envelope, so token list
// consumers can load the URL directly.
func GetTokenList(database *db.DB, overrides tokenlist.Overrides, name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n, ok := networkParam(w, r)
		if !ok {
			return
		}

		list := models.ListListed
		if raw := r.URL.Query().Get("list"); raw != "" {
			list = models.List(raw)
			if !list.Valid() {
				writeError(w, http.StatusBadRequest, config.ErrorInvalidList, "unknown list: "+raw)
				return
			}
		}

		tokens, err := database.ListTokenMetadata(n)
		if err != nil {
			slog.Error("failed to list token metadata", "network", n, "error", err)
			writeError(w, http.StatusInternalServerError, config.ErrorDatabase, "failed to list token metadata")
			return
		}

		doc := tokenlist.Build(name, list, tokens, overrides.For(n))

		slog.Info("token list served", "network", n, "list", list, "tokens", len(doc.Tokens))

		writeJSON(w, http.StatusOK, doc)
	}
}
