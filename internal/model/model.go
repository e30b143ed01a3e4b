package model

import "time"

// Plan is a user's subscription tier. Each tier implies a snippet quota.
type Plan string

const (
	PlanFree    Plan = "FREE"
	PlanGold    Plan = "GOLD"
	PlanDiamond Plan = "DIAMOND"
)

// Valid reports whether p is one of the known plans.
func (p Plan) Valid() bool {
	switch p {
	case PlanFree, PlanGold, PlanDiamond:
		return true
	}
	return false
}

// Visibility controls whether a snippet appears in public search.
type Visibility string

const (
	VisibilityPublic  Visibility = "PUBLIC"
	VisibilityPrivate Visibility = "PRIVATE"
)

// Valid reports whether v is one of the known visibilities.
func (v Visibility) Valid() bool {
	return v == VisibilityPublic || v == VisibilityPrivate
}

// User mirrors a user record maintained by the external identity provider.
// ID is the provider-issued opaque identifier and never changes.
type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Plan      Plan      `json:"plan"`
	// PlanEventAt is the unix timestamp of the billing event that last set
	// Plan. Used to discard out-of-order webhook deliveries.
	PlanEventAt *int64    `json:"plan_event_at,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type Snippet struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Snippet     string     `json:"snippet"`
	UserID      string     `json:"user_id"`
	Visibility  Visibility `json:"visibility"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}
