package reconciler

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"testing"

	stripe "github.com/stripe/stripe-go/v82"

	"github.com/dukerupert/snipvault/internal/database"
	"github.com/dukerupert/snipvault/internal/model"
	"github.com/dukerupert/snipvault/internal/store"
)

const (
	goldPrice    = "price_gold_123"
	diamondPrice = "price_diamond_456"
)

// fakeStripe serves canned subscriptions and maps the two known price IDs.
type fakeStripe struct {
	subs map[string]*stripe.Subscription
}

func (f *fakeStripe) RetrieveSubscription(id string) (*stripe.Subscription, error) {
	sub, ok := f.subs[id]
	if !ok {
		return nil, fmt.Errorf("no such subscription: %s", id)
	}
	return sub, nil
}

func (f *fakeStripe) PlanForPrice(priceID string) model.Plan {
	switch priceID {
	case goldPrice:
		return model.PlanGold
	case diamondPrice:
		return model.PlanDiamond
	}
	return model.PlanFree
}

func subWithPrice(id, priceID string) *stripe.Subscription {
	return &stripe.Subscription{
		ID: id,
		Items: &stripe.SubscriptionItemList{
			Data: []*stripe.SubscriptionItem{
				{Price: &stripe.Price{ID: priceID}},
			},
		},
	}
}

func setupReconciler(t *testing.T, fs *fakeStripe) (*Reconciler, *store.UserStore) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	users := store.NewUserStore(db)
	if _, err := users.Create("user_1", "Alice", "alice@example.com"); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	if _, err := users.Create("user_2", "Bob", "bob@example.com"); err != nil {
		t.Fatalf("seed user: %v", err)
	}

	return New(users, fs, nil, slog.Default()), users
}

func checkoutEvent(t *testing.T, created int64, userID, subID string) stripe.Event {
	t.Helper()
	payload := map[string]any{
		"id":           "cs_test_1",
		"subscription": subID,
	}
	if userID != "" {
		payload["metadata"] = map[string]string{"userId": userID}
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return stripe.Event{
		Type:    "checkout.session.completed",
		Created: created,
		Data:    &stripe.EventData{Raw: raw},
	}
}

func subscriptionEvent(t *testing.T, eventType string, created int64, userID, priceID string) stripe.Event {
	t.Helper()
	payload := map[string]any{
		"id": "sub_1",
		"items": map[string]any{
			"data": []map[string]any{
				{"price": map[string]any{"id": priceID}},
			},
		},
	}
	if userID != "" {
		payload["metadata"] = map[string]string{"userId": userID}
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return stripe.Event{
		Type:    stripe.EventType(eventType),
		Created: created,
		Data:    &stripe.EventData{Raw: raw},
	}
}

func planOf(t *testing.T, users *store.UserStore, id string) model.Plan {
	t.Helper()
	u, err := users.GetByID(id)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if u == nil {
		t.Fatalf("user %s disappeared", id)
	}
	return u.Plan
}

func TestCheckoutCompletedUpdatesCorrelatedUser(t *testing.T) {
	fs := &fakeStripe{subs: map[string]*stripe.Subscription{
		"sub_1": subWithPrice("sub_1", diamondPrice),
	}}
	r, users := setupReconciler(t, fs)

	r.HandleEvent(checkoutEvent(t, 100, "user_1", "sub_1"))

	if got := planOf(t, users, "user_1"); got != model.PlanDiamond {
		t.Errorf("user_1 plan = %q, want DIAMOND", got)
	}
	if got := planOf(t, users, "user_2"); got != model.PlanFree {
		t.Errorf("user_2 plan = %q, want FREE (untouched)", got)
	}
}

func TestCheckoutCompletedIdempotent(t *testing.T) {
	fs := &fakeStripe{subs: map[string]*stripe.Subscription{
		"sub_1": subWithPrice("sub_1", goldPrice),
	}}
	r, users := setupReconciler(t, fs)

	event := checkoutEvent(t, 100, "user_1", "sub_1")
	r.HandleEvent(event)
	r.HandleEvent(event)

	if got := planOf(t, users, "user_1"); got != model.PlanGold {
		t.Errorf("plan = %q, want GOLD after redelivery", got)
	}
}

func TestCheckoutCompletedUnmappedPriceIsFree(t *testing.T) {
	fs := &fakeStripe{subs: map[string]*stripe.Subscription{
		"sub_1": subWithPrice("sub_1", "price_unknown"),
	}}
	r, users := setupReconciler(t, fs)

	r.HandleEvent(checkoutEvent(t, 100, "user_1", "sub_1"))

	if got := planOf(t, users, "user_1"); got != model.PlanFree {
		t.Errorf("plan = %q, want FREE for unmapped price", got)
	}
}

func TestCheckoutCompletedMissingUserIDSkips(t *testing.T) {
	fs := &fakeStripe{subs: map[string]*stripe.Subscription{
		"sub_1": subWithPrice("sub_1", goldPrice),
	}}
	r, users := setupReconciler(t, fs)

	r.HandleEvent(checkoutEvent(t, 100, "", "sub_1"))

	if got := planOf(t, users, "user_1"); got != model.PlanFree {
		t.Errorf("plan = %q, want FREE (no correlation, no update)", got)
	}
}

func TestCheckoutCompletedMissingSubscriptionSkips(t *testing.T) {
	r, users := setupReconciler(t, &fakeStripe{subs: map[string]*stripe.Subscription{}})

	raw, _ := json.Marshal(map[string]any{
		"id":       "cs_test_1",
		"metadata": map[string]string{"userId": "user_1"},
	})
	r.HandleEvent(stripe.Event{
		Type:    "checkout.session.completed",
		Created: 100,
		Data:    &stripe.EventData{Raw: raw},
	})

	if got := planOf(t, users, "user_1"); got != model.PlanFree {
		t.Errorf("plan = %q, want FREE (no subscription reference)", got)
	}
}

func TestSubscriptionUpdatedThenDeleted(t *testing.T) {
	r, users := setupReconciler(t, &fakeStripe{})

	r.HandleEvent(subscriptionEvent(t, "customer.subscription.updated", 100, "user_1", goldPrice))
	if got := planOf(t, users, "user_1"); got != model.PlanGold {
		t.Fatalf("plan = %q, want GOLD after update", got)
	}

	r.HandleEvent(subscriptionEvent(t, "customer.subscription.deleted", 200, "user_1", goldPrice))
	if got := planOf(t, users, "user_1"); got != model.PlanFree {
		t.Errorf("plan = %q, want FREE after cancellation", got)
	}
}

func TestStaleCancellationDoesNotDowngrade(t *testing.T) {
	r, users := setupReconciler(t, &fakeStripe{})

	// The activation arrives first, then the processor redelivers an older
	// cancellation. The stale event must not win.
	r.HandleEvent(subscriptionEvent(t, "customer.subscription.updated", 100, "user_1", goldPrice))
	r.HandleEvent(subscriptionEvent(t, "customer.subscription.deleted", 50, "user_1", goldPrice))

	if got := planOf(t, users, "user_1"); got != model.PlanGold {
		t.Errorf("plan = %q, want GOLD (stale cancellation skipped)", got)
	}
}

func TestSubscriptionEventMissingMetadataSkips(t *testing.T) {
	r, users := setupReconciler(t, &fakeStripe{})

	r.HandleEvent(subscriptionEvent(t, "customer.subscription.updated", 100, "", goldPrice))

	if got := planOf(t, users, "user_1"); got != model.PlanFree {
		t.Errorf("plan = %q, want FREE (no correlation)", got)
	}
}

func TestUnrecognizedEventIgnored(t *testing.T) {
	r, users := setupReconciler(t, &fakeStripe{})

	r.HandleEvent(stripe.Event{
		Type:    "invoice.paid",
		Created: 100,
		Data:    &stripe.EventData{Raw: json.RawMessage(`{}`)},
	})

	if got := planOf(t, users, "user_1"); got != model.PlanFree {
		t.Errorf("plan = %q, want FREE", got)
	}
}

func TestMalformedPayloadDoesNotPanic(t *testing.T) {
	r, users := setupReconciler(t, &fakeStripe{})

	r.HandleEvent(stripe.Event{
		Type:    "customer.subscription.updated",
		Created: 100,
		Data:    &stripe.EventData{Raw: json.RawMessage(`{"items": "not-an-object"`)},
	})

	if got := planOf(t, users, "user_1"); got != model.PlanFree {
		t.Errorf("plan = %q, want FREE", got)
	}
}
