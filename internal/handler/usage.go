package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/snipvault/internal/model"
	"github.com/dukerupert/snipvault/internal/quota"
)

type UsageHandler struct {
	quota  *quota.Service
	logger *slog.Logger
}

func NewUsageHandler(qs *quota.Service, logger *slog.Logger) *UsageHandler {
	return &UsageHandler{quota: qs, logger: logger.With("component", "usage_handler")}
}

type usageResponse struct {
	Plan          model.Plan `json:"plan"`
	CurrentCount  int        `json:"currentCount"`
	MaxCount      int        `json:"maxCount"`
	CanCreateMore bool       `json:"canCreateMore"`
	PercentUsed   int        `json:"percentUsed"`
}

// Get reports the caller's plan and snippet usage for the dashboard meter.
func (h *UsageHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID := UserIDFromContext(r.Context())
	if userID == "" {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}

	ent, err := h.quota.Resolve(userID)
	if err != nil {
		h.logger.Error("failed to resolve usage", "error", err, "user_id", userID)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to resolve usage"})
		return
	}

	percent := 0
	if ent.MaxCount > 0 {
		percent = ent.CurrentCount * 100 / ent.MaxCount
		if percent > 100 {
			percent = 100
		}
	}

	writeJSON(w, http.StatusOK, usageResponse{
		Plan:          ent.Plan,
		CurrentCount:  ent.CurrentCount,
		MaxCount:      ent.MaxCount,
		CanCreateMore: ent.CanCreateMore,
		PercentUsed:   percent,
	})
}
