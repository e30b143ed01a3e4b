package store

import (
	"database/sql"
	"fmt"

	"github.com/dukerupert/snipvault/internal/model"
)

type UserStore struct {
	db *sql.DB
}

func NewUserStore(db *sql.DB) *UserStore {
	return &UserStore{db: db}
}

func scanUser(scanner interface{ Scan(...any) error }) (*model.User, error) {
	var u model.User
	var planEventAt sql.NullInt64

	err := scanner.Scan(&u.ID, &u.Name, &u.Email, &u.Plan, &planEventAt, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if planEventAt.Valid {
		u.PlanEventAt = &planEventAt.Int64
	}
	return &u, nil
}

const userCols = `id, name, email, plan, plan_event_at, created_at, updated_at`

// Create inserts a user record for an identity-provider issued ID.
// New users start on the FREE plan.
func (s *UserStore) Create(id, name, email string) (*model.User, error) {
	_, err := s.db.Exec(
		`INSERT INTO users (id, name, email) VALUES (?, ?, ?)`,
		id, name, email,
	)
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return s.GetByID(id)
}

func (s *UserStore) GetByID(id string) (*model.User, error) {
	row := s.db.QueryRow(`SELECT `+userCols+` FROM users WHERE id = ?`, id)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (s *UserStore) GetByEmail(email string) (*model.User, error) {
	row := s.db.QueryRow(`SELECT `+userCols+` FROM users WHERE email = ?`, email)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return u, nil
}

// UpdateProfile syncs name and email from an identity-provider event.
func (s *UserStore) UpdateProfile(id, name, email string) (*model.User, error) {
	_, err := s.db.Exec(
		`UPDATE users SET name = ?, email = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		name, email, id,
	)
	if err != nil {
		return nil, fmt.Errorf("update user profile: %w", err)
	}
	return s.GetByID(id)
}

// UpdatePlan sets the user's plan from a billing event that occurred at
// eventAt (unix seconds). The update only applies if the event is not older
// than the one that last set the plan, so a stale cancellation delivered
// after a newer activation cannot downgrade the user. Returns true if the
// row was updated.
func (s *UserStore) UpdatePlan(id string, plan model.Plan, eventAt int64) (bool, error) {
	result, err := s.db.Exec(
		`UPDATE users SET plan = ?, plan_event_at = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND (plan_event_at IS NULL OR plan_event_at <= ?)`,
		string(plan), eventAt, id, eventAt,
	)
	if err != nil {
		return false, fmt.Errorf("update user plan: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

// Delete removes a user; owned snippets are removed by the FK cascade.
func (s *UserStore) Delete(id string) error {
	_, err := s.db.Exec(`DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return nil
}
