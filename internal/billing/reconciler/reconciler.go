// Package reconciler keeps stored user plans in sync with Stripe
// subscription lifecycle events.
package reconciler

import (
	"encoding/json"
	"log/slog"

	stripe "github.com/stripe/stripe-go/v82"

	"github.com/dukerupert/snipvault/internal/model"
	"github.com/dukerupert/snipvault/internal/store"
	"github.com/dukerupert/snipvault/internal/websocket"
)

// SubscriptionClient is the slice of the Stripe client the reconciler needs.
type SubscriptionClient interface {
	RetrieveSubscription(id string) (*stripe.Subscription, error)
	PlanForPrice(priceID string) model.Plan
}

type Reconciler struct {
	users  *store.UserStore
	stripe SubscriptionClient
	hub    *websocket.Hub
	logger *slog.Logger
}

func New(users *store.UserStore, sc SubscriptionClient, hub *websocket.Hub, logger *slog.Logger) *Reconciler {
	return &Reconciler{users: users, stripe: sc, hub: hub, logger: logger}
}

// HandleEvent applies a verified Stripe event to the user's stored plan.
// Unrecognized event kinds are ignored. Malformed or partial payloads are
// logged and skipped; the webhook still ACKs so the sender does not retry
// forever. Redelivery of the same event is safe: the plan is computed fresh
// from the payload every time, and the per-user event-time guard in the
// store discards deliveries older than the last applied one.
func (r *Reconciler) HandleEvent(event stripe.Event) {
	switch event.Type {
	case "checkout.session.completed":
		r.handleCheckoutCompleted(event)
	case "customer.subscription.updated":
		r.handleSubscriptionUpdated(event)
	case "customer.subscription.deleted":
		r.handleSubscriptionDeleted(event)
	default:
		r.logger.Debug("ignoring event", "type", event.Type)
	}
}

func (r *Reconciler) handleCheckoutCompleted(event stripe.Event) {
	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		r.logger.Warn("unmarshal checkout session", "error", err)
		return
	}

	// Correlation travels in metadata set at checkout time, never by email.
	userID := sess.Metadata["userId"]
	if userID == "" {
		r.logger.Warn("checkout session missing userId metadata", "session", sess.ID)
		return
	}

	if sess.Subscription == nil || sess.Subscription.ID == "" {
		r.logger.Warn("checkout session missing subscription", "session", sess.ID, "user", userID)
		return
	}

	sub, err := r.stripe.RetrieveSubscription(sess.Subscription.ID)
	if err != nil {
		r.logger.Warn("retrieve subscription", "error", err, "user", userID)
		return
	}

	plan := r.stripe.PlanForPrice(firstPriceID(sub))
	r.applyPlan(userID, plan, event)
}

func (r *Reconciler) handleSubscriptionUpdated(event stripe.Event) {
	var sub stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
		r.logger.Warn("unmarshal subscription", "error", err)
		return
	}

	userID := sub.Metadata["userId"]
	if userID == "" {
		r.logger.Warn("subscription missing userId metadata", "subscription", sub.ID)
		return
	}

	plan := r.stripe.PlanForPrice(firstPriceID(&sub))
	r.applyPlan(userID, plan, event)
}

func (r *Reconciler) handleSubscriptionDeleted(event stripe.Event) {
	var sub stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
		r.logger.Warn("unmarshal subscription", "error", err)
		return
	}

	userID := sub.Metadata["userId"]
	if userID == "" {
		r.logger.Warn("subscription missing userId metadata", "subscription", sub.ID)
		return
	}

	// Cancellation resets to FREE regardless of which price was attached.
	r.applyPlan(userID, model.PlanFree, event)
}

func (r *Reconciler) applyPlan(userID string, plan model.Plan, event stripe.Event) {
	applied, err := r.users.UpdatePlan(userID, plan, event.Created)
	if err != nil {
		r.logger.Error("update plan", "error", err, "user", userID)
		return
	}
	if !applied {
		r.logger.Warn("plan update skipped", "user", userID, "plan", plan, "event_type", event.Type)
		return
	}

	r.logger.Info("plan updated", "user", userID, "plan", plan, "event_type", event.Type)

	if r.hub != nil {
		r.hub.BroadcastTo(userID, websocket.NewMessage("plan", "updated", userID, map[string]any{
			"plan": string(plan),
		}))
	}
}

func firstPriceID(sub *stripe.Subscription) string {
	if sub.Items != nil && len(sub.Items.Data) > 0 && sub.Items.Data[0].Price != nil {
		return sub.Items.Data[0].Price.ID
	}
	return ""
}
