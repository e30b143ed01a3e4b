package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	billingstripe "github.com/dukerupert/snipvault/internal/billing/stripe"
	"github.com/dukerupert/snipvault/internal/store"
)

type CheckoutHandler struct {
	stripeClient *billingstripe.Client
	users        *store.UserStore
	logger       *slog.Logger
}

func NewCheckoutHandler(sc *billingstripe.Client, us *store.UserStore, logger *slog.Logger) *CheckoutHandler {
	return &CheckoutHandler{
		stripeClient: sc,
		users:        us,
		logger:       logger.With("component", "checkout_handler"),
	}
}

// CreateCheckoutSession starts a subscription checkout for the caller and
// returns the hosted payment page URL. The session carries the user id in
// its metadata so the webhook can correlate the eventual payment.
func (h *CheckoutHandler) CreateCheckoutSession(w http.ResponseWriter, r *http.Request) {
	userID := UserIDFromContext(r.Context())
	if userID == "" {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}

	var req struct {
		PriceID string `json:"priceId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	if req.PriceID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "priceId is required"})
		return
	}

	user, err := h.users.GetByID(userID)
	if err != nil {
		h.logger.Error("failed to get user", "error", err, "user_id", userID)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to create checkout session"})
		return
	}
	if user == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "user not found"})
		return
	}

	url, err := h.stripeClient.CreateCheckoutSession(userID, user.Email, req.PriceID)
	if err != nil {
		h.logger.Error("failed to create checkout session", "error", err, "user_id", userID)
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "failed to create checkout session"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"url": url})
}
