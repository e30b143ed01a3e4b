package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/dukerupert/snipvault/internal/model"
	"github.com/dukerupert/snipvault/internal/quota"
	"github.com/dukerupert/snipvault/internal/store"
	"github.com/dukerupert/snipvault/internal/websocket"
)

type SnippetHandler struct {
	quota    *quota.Service
	snippets *store.SnippetStore
	hub      *websocket.Hub
	logger   *slog.Logger
}

func NewSnippetHandler(qs *quota.Service, ss *store.SnippetStore, hub *websocket.Hub, logger *slog.Logger) *SnippetHandler {
	return &SnippetHandler{
		quota:    qs,
		snippets: ss,
		hub:      hub,
		logger:   logger.With("component", "snippet_handler"),
	}
}

func (h *SnippetHandler) broadcast(userID string, msg websocket.Message) {
	if h.hub != nil {
		h.hub.BroadcastTo(userID, msg)
	}
}

type quotaMeta struct {
	LimitReached bool `json:"limitReached"`
	CurrentCount int  `json:"currentCount"`
	MaxCount     int  `json:"maxCount"`
}

type snippetResponse struct {
	Success     bool              `json:"success"`
	Message     string            `json:"message"`
	FieldErrors map[string]string `json:"fieldErrors,omitempty"`
	Quota       *quotaMeta        `json:"quota,omitempty"`
	Snippet     *model.Snippet    `json:"snippet,omitempty"`
}

func (h *SnippetHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID := UserIDFromContext(r.Context())

	var draft quota.Draft
	if err := json.NewDecoder(r.Body).Decode(&draft); err != nil {
		writeJSON(w, http.StatusBadRequest, snippetResponse{Message: "invalid JSON"})
		return
	}

	snippet, ent, err := h.quota.TryCreate(userID, draft)
	if err != nil {
		var verr *quota.ValidationError
		var qerr *quota.QuotaError
		switch {
		case errors.Is(err, quota.ErrUnauthenticated):
			writeJSON(w, http.StatusUnauthorized, snippetResponse{Message: "unauthorized"})
		case errors.As(err, &verr):
			writeJSON(w, http.StatusBadRequest, snippetResponse{
				Message:     "validation failed",
				FieldErrors: verr.Fields,
			})
		case errors.As(err, &qerr):
			writeJSON(w, http.StatusForbidden, snippetResponse{
				Message: "snippet limit reached, upgrade your plan to create more",
				Quota: &quotaMeta{
					LimitReached: true,
					CurrentCount: qerr.CurrentCount,
					MaxCount:     qerr.MaxCount,
				},
			})
		default:
			h.logger.Error("failed to create snippet", "error", err, "user_id", userID)
			writeJSON(w, http.StatusInternalServerError, snippetResponse{Message: "failed to create snippet"})
		}
		return
	}

	h.broadcast(userID, websocket.NewMessage("snippet", "created", snippet.ID, nil))

	writeJSON(w, http.StatusCreated, snippetResponse{
		Success: true,
		Message: "snippet created",
		Quota: &quotaMeta{
			LimitReached: !ent.CanCreateMore,
			CurrentCount: ent.CurrentCount,
			MaxCount:     ent.MaxCount,
		},
		Snippet: snippet,
	})
}

func (h *SnippetHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := UserIDFromContext(r.Context())
	if userID == "" {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}

	snippets, err := h.snippets.ListByOwner(userID)
	if err != nil {
		h.logger.Error("failed to list snippets", "error", err, "user_id", userID)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list snippets"})
		return
	}
	if snippets == nil {
		snippets = []model.Snippet{}
	}
	writeJSON(w, http.StatusOK, snippets)
}

func (h *SnippetHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID := UserIDFromContext(r.Context())
	id := r.PathValue("id")

	snippet, err := h.snippets.GetByID(id)
	if err != nil {
		h.logger.Error("failed to get snippet", "error", err, "snippet_id", id)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to get snippet"})
		return
	}
	if snippet == nil || (snippet.UserID != userID && snippet.Visibility != model.VisibilityPublic) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "snippet not found"})
		return
	}

	writeJSON(w, http.StatusOK, snippet)
}

func (h *SnippetHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID := UserIDFromContext(r.Context())
	id := r.PathValue("id")

	existing, err := h.snippets.GetByID(id)
	if err != nil {
		h.logger.Error("failed to get snippet", "error", err, "snippet_id", id)
		writeJSON(w, http.StatusInternalServerError, snippetResponse{Message: "failed to get snippet"})
		return
	}
	if existing == nil || existing.UserID != userID {
		writeJSON(w, http.StatusNotFound, snippetResponse{Message: "snippet not found"})
		return
	}

	var draft quota.Draft
	if err := json.NewDecoder(r.Body).Decode(&draft); err != nil {
		writeJSON(w, http.StatusBadRequest, snippetResponse{Message: "invalid JSON"})
		return
	}

	// An omitted visibility keeps the stored one. Validate's PUBLIC default
	// is for brand-new snippets only; a partial update must not republish a
	// private snippet.
	if draft.Visibility == "" {
		draft.Visibility = string(existing.Visibility)
	}

	if err := draft.Validate(); err != nil {
		var verr *quota.ValidationError
		if errors.As(err, &verr) {
			writeJSON(w, http.StatusBadRequest, snippetResponse{
				Message:     "validation failed",
				FieldErrors: verr.Fields,
			})
			return
		}
		writeJSON(w, http.StatusBadRequest, snippetResponse{Message: "invalid snippet"})
		return
	}

	snippet, err := h.snippets.Update(id, draft.Title, draft.Description, draft.Snippet, model.Visibility(draft.Visibility))
	if err != nil {
		h.logger.Error("failed to update snippet", "error", err, "snippet_id", id)
		writeJSON(w, http.StatusInternalServerError, snippetResponse{Message: "failed to update snippet"})
		return
	}

	h.broadcast(userID, websocket.NewMessage("snippet", "updated", id, nil))

	writeJSON(w, http.StatusOK, snippetResponse{
		Success: true,
		Message: "snippet updated",
		Snippet: snippet,
	})
}

func (h *SnippetHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID := UserIDFromContext(r.Context())
	id := r.PathValue("id")

	existing, err := h.snippets.GetByID(id)
	if err != nil {
		h.logger.Error("failed to get snippet", "error", err, "snippet_id", id)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to get snippet"})
		return
	}
	if existing == nil || existing.UserID != userID {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "snippet not found"})
		return
	}

	if err := h.snippets.Delete(id); err != nil {
		h.logger.Error("failed to delete snippet", "error", err, "snippet_id", id)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to delete snippet"})
		return
	}

	h.broadcast(userID, websocket.NewMessage("snippet", "deleted", id, nil))

	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
