package handler

import (
	"crypto/subtle"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/dukerupert/snipvault/internal/store"
)

// IdentityHandler syncs users from the external identity provider. The
// provider is the source of truth for profiles; this endpoint mirrors its
// create/update/delete events into the local users table.
type IdentityHandler struct {
	users  *store.UserStore
	secret string
	logger *slog.Logger
}

func NewIdentityHandler(us *store.UserStore, secret string, logger *slog.Logger) *IdentityHandler {
	return &IdentityHandler{
		users:  us,
		secret: secret,
		logger: logger.With("component", "identity_handler"),
	}
}

type identityEvent struct {
	Type string `json:"type"`
	Data struct {
		ID       string `json:"id"`
		Username string `json:"username"`
		Email    string `json:"email"`
	} `json:"data"`
}

func (h *IdentityHandler) HandleIdentityWebhook(w http.ResponseWriter, r *http.Request) {
	got := r.Header.Get("X-Webhook-Secret")
	if h.secret == "" || subtle.ConstantTimeCompare([]byte(got), []byte(h.secret)) != 1 {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}

	var event identityEvent
	if err := json.NewDecoder(io.LimitReader(r.Body, 65536)).Decode(&event); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	if event.Data.ID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing user id"})
		return
	}

	switch event.Type {
	case "user.created":
		h.handleCreated(w, event)
	case "user.updated":
		h.handleUpdated(w, event)
	case "user.deleted":
		h.handleDeleted(w, event)
	default:
		// Unrecognized kinds are acknowledged so the provider stops retrying.
		writeJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
	}
}

func (h *IdentityHandler) handleCreated(w http.ResponseWriter, event identityEvent) {
	if event.Data.Email == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing email"})
		return
	}

	existing, err := h.users.GetByID(event.Data.ID)
	if err != nil {
		h.logger.Error("failed to get user", "error", err, "user_id", event.Data.ID)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to sync user"})
		return
	}
	if existing != nil {
		// Redelivered creation; refresh the profile instead of failing.
		if _, err := h.users.UpdateProfile(event.Data.ID, event.Data.Username, event.Data.Email); err != nil {
			h.logger.Error("failed to update user", "error", err, "user_id", event.Data.ID)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to sync user"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
		return
	}

	if _, err := h.users.Create(event.Data.ID, event.Data.Username, event.Data.Email); err != nil {
		h.logger.Error("failed to create user", "error", err, "user_id", event.Data.ID)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to sync user"})
		return
	}

	h.logger.Info("user created", "user_id", event.Data.ID)
	writeJSON(w, http.StatusCreated, map[string]string{"status": "created"})
}

func (h *IdentityHandler) handleUpdated(w http.ResponseWriter, event identityEvent) {
	if event.Data.Email == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing email"})
		return
	}

	user, err := h.users.UpdateProfile(event.Data.ID, event.Data.Username, event.Data.Email)
	if err != nil {
		h.logger.Error("failed to update user", "error", err, "user_id", event.Data.ID)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to sync user"})
		return
	}
	if user == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "user not found"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

func (h *IdentityHandler) handleDeleted(w http.ResponseWriter, event identityEvent) {
	// Snippets go with the user via the foreign key cascade.
	if err := h.users.Delete(event.Data.ID); err != nil {
		h.logger.Error("failed to delete user", "error", err, "user_id", event.Data.ID)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to sync user"})
		return
	}

	h.logger.Info("user deleted", "user_id", event.Data.ID)
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
