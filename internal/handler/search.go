package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/snipvault/internal/store"
)

type SearchHandler struct {
	snippets *store.SnippetStore
	logger   *slog.Logger
}

func NewSearchHandler(ss *store.SnippetStore, logger *slog.Logger) *SearchHandler {
	return &SearchHandler{snippets: ss, logger: logger.With("component", "search_handler")}
}

// Search matches public snippets by title or description. A blank query
// returns an empty result set rather than everything.
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")

	results, err := h.snippets.SearchPublic(query)
	if err != nil {
		h.logger.Error("search failed", "error", err, "query", query)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "search failed"})
		return
	}
	if results == nil {
		results = []store.PublicSnippet{}
	}

	writeJSON(w, http.StatusOK, results)
}
