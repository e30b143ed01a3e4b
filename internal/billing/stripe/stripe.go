package stripe

import (
	"fmt"

	stripe "github.com/stripe/stripe-go/v82"
	checksession "github.com/stripe/stripe-go/v82/checkout/session"
	"github.com/stripe/stripe-go/v82/subscription"
	"github.com/stripe/stripe-go/v82/webhook"

	"github.com/dukerupert/snipvault/internal/model"
)

type Config struct {
	SecretKey      string
	WebhookSecret  string
	GoldPriceID    string
	DiamondPriceID string
	SuccessURL     string
	CancelURL      string
}

type Client struct {
	cfg Config
}

func NewClient(cfg Config) *Client {
	stripe.Key = cfg.SecretKey
	return &Client{cfg: cfg}
}

// CreateCheckoutSession creates a subscription checkout session and returns
// its hosted URL. The user ID rides in the session metadata so the webhook
// can correlate the completed checkout back to the user; email can change
// and is never used for correlation.
func (c *Client) CreateCheckoutSession(userID, email, priceID string) (string, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:               stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(priceID),
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(c.cfg.SuccessURL),
		CancelURL:  stripe.String(c.cfg.CancelURL),
	}
	params.AddMetadata("userId", userID)
	if email != "" {
		params.CustomerEmail = stripe.String(email)
	}

	sess, err := checksession.New(params)
	if err != nil {
		return "", fmt.Errorf("create checkout session: %w", err)
	}
	return sess.URL, nil
}

// RetrieveSubscription fetches a subscription by ID.
func (c *Client) RetrieveSubscription(id string) (*stripe.Subscription, error) {
	sub, err := subscription.Get(id, nil)
	if err != nil {
		return nil, fmt.Errorf("retrieve subscription: %w", err)
	}
	return sub, nil
}

// PlanForPrice maps a Stripe price ID to the plan it purchases. Unmapped
// prices resolve to FREE.
func (c *Client) PlanForPrice(priceID string) model.Plan {
	switch priceID {
	case c.cfg.GoldPriceID:
		return model.PlanGold
	case c.cfg.DiamondPriceID:
		return model.PlanDiamond
	}
	return model.PlanFree
}

// ConstructWebhookEvent verifies the signature against the raw request body
// and returns the parsed event. The body must be the exact bytes received;
// re-serialized JSON can change byte layout and fail verification.
func (c *Client) ConstructWebhookEvent(payload []byte, sigHeader string) (stripe.Event, error) {
	return webhook.ConstructEvent(payload, sigHeader, c.cfg.WebhookSecret)
}
