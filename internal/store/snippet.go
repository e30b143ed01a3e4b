package store

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/dukerupert/snipvault/internal/model"
)

type SnippetStore struct {
	db *sql.DB
}

func NewSnippetStore(db *sql.DB) *SnippetStore {
	return &SnippetStore{db: db}
}

func scanSnippet(scanner interface{ Scan(...any) error }) (*model.Snippet, error) {
	var sn model.Snippet
	err := scanner.Scan(
		&sn.ID, &sn.Title, &sn.Description, &sn.Snippet,
		&sn.UserID, &sn.Visibility, &sn.CreatedAt, &sn.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &sn, nil
}

const snippetCols = `id, title, description, snippet, user_id, visibility, created_at, updated_at`

func (s *SnippetStore) Create(ownerID, title, description, body string, visibility model.Visibility) (*model.Snippet, error) {
	id := uuid.NewString()
	_, err := s.db.Exec(
		`INSERT INTO snippets (id, title, description, snippet, user_id, visibility) VALUES (?, ?, ?, ?, ?, ?)`,
		id, title, description, body, ownerID, string(visibility),
	)
	if err != nil {
		return nil, fmt.Errorf("insert snippet: %w", err)
	}
	return s.GetByID(id)
}

// CreateUnderLimit inserts a snippet only if the owner currently has fewer
// than maxCount snippets. The count check and the insert run as a single
// statement, so the cap holds even for concurrent creations from the same
// owner. Returns nil (no error) when the owner is at the limit.
func (s *SnippetStore) CreateUnderLimit(ownerID, title, description, body string, visibility model.Visibility, maxCount int) (*model.Snippet, error) {
	id := uuid.NewString()
	result, err := s.db.Exec(
		`INSERT INTO snippets (id, title, description, snippet, user_id, visibility)
		 SELECT ?, ?, ?, ?, ?, ?
		 WHERE (SELECT COUNT(*) FROM snippets WHERE user_id = ?) < ?`,
		id, title, description, body, ownerID, string(visibility), ownerID, maxCount,
	)
	if err != nil {
		return nil, fmt.Errorf("insert snippet under limit: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return nil, nil
	}
	return s.GetByID(id)
}

func (s *SnippetStore) GetByID(id string) (*model.Snippet, error) {
	row := s.db.QueryRow(`SELECT `+snippetCols+` FROM snippets WHERE id = ?`, id)
	sn, err := scanSnippet(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get snippet: %w", err)
	}
	return sn, nil
}

func (s *SnippetStore) ListByOwner(ownerID string) ([]model.Snippet, error) {
	rows, err := s.db.Query(
		`SELECT `+snippetCols+` FROM snippets WHERE user_id = ? ORDER BY created_at DESC, id`,
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("list snippets: %w", err)
	}
	defer rows.Close()

	var snippets []model.Snippet
	for rows.Next() {
		sn, err := scanSnippet(rows)
		if err != nil {
			return nil, fmt.Errorf("scan snippet: %w", err)
		}
		snippets = append(snippets, *sn)
	}
	return snippets, rows.Err()
}

// CountByOwner returns the number of snippets the owner has, as a single
// aggregate query. Quota checks depend on this staying O(1) in result size.
func (s *SnippetStore) CountByOwner(ownerID string) (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM snippets WHERE user_id = ?`, ownerID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count snippets: %w", err)
	}
	return count, nil
}

func (s *SnippetStore) Update(id, title, description, body string, visibility model.Visibility) (*model.Snippet, error) {
	_, err := s.db.Exec(
		`UPDATE snippets SET title = ?, description = ?, snippet = ?, visibility = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		title, description, body, string(visibility), id,
	)
	if err != nil {
		return nil, fmt.Errorf("update snippet: %w", err)
	}
	return s.GetByID(id)
}

func (s *SnippetStore) Delete(id string) error {
	_, err := s.db.Exec(`DELETE FROM snippets WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete snippet: %w", err)
	}
	return nil
}

// PublicSnippet is a search result: a public snippet joined with its owner.
type PublicSnippet struct {
	model.Snippet
	OwnerName string     `json:"owner_name"`
	OwnerPlan model.Plan `json:"owner_plan"`
}

// SearchPublic returns PUBLIC snippets whose title or description contains
// the query, case-insensitive. Private snippets never appear, regardless of
// who is asking. An empty query returns no results.
func (s *SnippetStore) SearchPublic(query string) ([]PublicSnippet, error) {
	if query == "" {
		return nil, nil
	}

	rows, err := s.db.Query(
		`SELECT s.id, s.title, s.description, s.snippet, s.user_id, s.visibility, s.created_at, s.updated_at, u.name, u.plan
		 FROM snippets s
		 JOIN users u ON u.id = s.user_id
		 WHERE s.visibility = 'PUBLIC'
		   AND (LOWER(s.title) LIKE '%' || LOWER(?) || '%' OR LOWER(s.description) LIKE '%' || LOWER(?) || '%')
		 ORDER BY s.created_at DESC, s.id`,
		query, query,
	)
	if err != nil {
		return nil, fmt.Errorf("search snippets: %w", err)
	}
	defer rows.Close()

	var results []PublicSnippet
	for rows.Next() {
		var ps PublicSnippet
		err := rows.Scan(
			&ps.ID, &ps.Title, &ps.Description, &ps.Snippet.Snippet,
			&ps.UserID, &ps.Visibility, &ps.CreatedAt, &ps.UpdatedAt, &ps.OwnerName, &ps.OwnerPlan,
		)
		if err != nil {
			return nil, fmt.Errorf("scan search result: %w", err)
		}
		results = append(results, ps)
	}
	return results, rows.Err()
}
