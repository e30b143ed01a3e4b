// Package quota meters snippet creation against the owner's plan.
package quota

import (
	"fmt"

	"github.com/dukerupert/snipvault/internal/model"
	"github.com/dukerupert/snipvault/internal/store"
)

// Limits maps plans to the maximum number of snippets they permit. It is
// injected rather than read from a package-level table so tests and
// deployments can substitute their own numbers.
type Limits map[model.Plan]int

// DefaultLimits are the production plan limits.
var DefaultLimits = Limits{
	model.PlanFree:    10,
	model.PlanGold:    100,
	model.PlanDiamond: 1000,
}

// LimitFor returns the snippet limit for a plan. Unknown plans fall back to
// the FREE limit so a bad plan value can never grant extra quota.
func (l Limits) LimitFor(plan model.Plan) int {
	if max, ok := l[plan]; ok {
		return max
	}
	return l[model.PlanFree]
}

// Entitlement is a point-in-time view of a user's quota state.
type Entitlement struct {
	Plan          model.Plan `json:"plan"`
	CurrentCount  int        `json:"current_count"`
	MaxCount      int        `json:"max_count"`
	CanCreateMore bool       `json:"can_create_more"`
}

// Resolver computes entitlements from stored state. It never trusts a
// client-supplied plan or count.
type Resolver struct {
	users    *store.UserStore
	snippets *store.SnippetStore
	limits   Limits
}

func NewResolver(users *store.UserStore, snippets *store.SnippetStore, limits Limits) *Resolver {
	return &Resolver{users: users, snippets: snippets, limits: limits}
}

// Resolve reads the user's plan and snippet count and derives the
// entitlement. A missing user record or unset plan resolves as FREE.
// Read-only and safe to call concurrently.
func (r *Resolver) Resolve(userID string) (Entitlement, error) {
	plan := model.PlanFree
	user, err := r.users.GetByID(userID)
	if err != nil {
		return Entitlement{}, fmt.Errorf("resolve plan: %w", err)
	}
	if user != nil && user.Plan.Valid() {
		plan = user.Plan
	}

	count, err := r.snippets.CountByOwner(userID)
	if err != nil {
		return Entitlement{}, fmt.Errorf("resolve count: %w", err)
	}

	max := r.limits.LimitFor(plan)
	return Entitlement{
		Plan:          plan,
		CurrentCount:  count,
		MaxCount:      max,
		CanCreateMore: count < max,
	}, nil
}
