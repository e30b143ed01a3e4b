package quota

import (
	"database/sql"
	"testing"

	"github.com/dukerupert/snipvault/internal/database"
	"github.com/dukerupert/snipvault/internal/model"
	"github.com/dukerupert/snipvault/internal/store"
)

func setupQuotaDB(t *testing.T) (*sql.DB, *store.UserStore, *store.SnippetStore) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db, store.NewUserStore(db), store.NewSnippetStore(db)
}

func TestLimitForKnownPlans(t *testing.T) {
	limits := Limits{
		model.PlanFree:    2,
		model.PlanGold:    5,
		model.PlanDiamond: 9,
	}

	if got := limits.LimitFor(model.PlanGold); got != 5 {
		t.Errorf("LimitFor(GOLD) = %d, want 5", got)
	}
	if got := limits.LimitFor(model.PlanDiamond); got != 9 {
		t.Errorf("LimitFor(DIAMOND) = %d, want 9", got)
	}
}

func TestLimitForUnknownPlanFallsBackToFree(t *testing.T) {
	limits := Limits{model.PlanFree: 2, model.PlanGold: 5}

	if got := limits.LimitFor(model.Plan("PLATINUM")); got != 2 {
		t.Errorf("LimitFor(unknown) = %d, want FREE limit 2", got)
	}
	if got := limits.LimitFor(model.PlanDiamond); got != 2 {
		t.Errorf("LimitFor(unconfigured DIAMOND) = %d, want FREE limit 2", got)
	}
}

func TestResolveAtAndBelowLimit(t *testing.T) {
	_, users, snippets := setupQuotaDB(t)
	users.Create("user_1", "Alice", "alice@example.com")

	limits := Limits{model.PlanFree: 2}
	r := NewResolver(users, snippets, limits)

	// One below the limit: can create.
	snippets.Create("user_1", "one", "", "body", model.VisibilityPublic)
	ent, err := r.Resolve("user_1")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if ent.CurrentCount != 1 || ent.MaxCount != 2 {
		t.Errorf("counts = %d/%d, want 1/2", ent.CurrentCount, ent.MaxCount)
	}
	if !ent.CanCreateMore {
		t.Error("expected CanCreateMore below limit")
	}

	// Exactly at the limit: cannot create one more.
	snippets.Create("user_1", "two", "", "body", model.VisibilityPublic)
	ent, err = r.Resolve("user_1")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if ent.CanCreateMore {
		t.Error("expected CanCreateMore = false at limit")
	}
}

func TestResolveMissingUserDefaultsToFree(t *testing.T) {
	_, users, snippets := setupQuotaDB(t)

	r := NewResolver(users, snippets, Limits{model.PlanFree: 3})
	ent, err := r.Resolve("never-seen")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if ent.Plan != model.PlanFree {
		t.Errorf("plan = %q, want FREE", ent.Plan)
	}
	if ent.CurrentCount != 0 || ent.MaxCount != 3 {
		t.Errorf("counts = %d/%d, want 0/3", ent.CurrentCount, ent.MaxCount)
	}
}

func TestResolveUsesStoredPlan(t *testing.T) {
	_, users, snippets := setupQuotaDB(t)
	users.Create("user_1", "Alice", "alice@example.com")
	users.UpdatePlan("user_1", model.PlanGold, 1)

	r := NewResolver(users, snippets, Limits{model.PlanFree: 2, model.PlanGold: 100})
	ent, err := r.Resolve("user_1")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if ent.Plan != model.PlanGold || ent.MaxCount != 100 {
		t.Errorf("got %q/%d, want GOLD/100", ent.Plan, ent.MaxCount)
	}
}
