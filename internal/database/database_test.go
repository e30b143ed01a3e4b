package database

import "testing"

func TestOpenRunsMigrations(t *testing.T) {
	db, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	for _, table := range []string{"users", "snippets"} {
		var name string
		err := db.QueryRow(`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&name)
		if err != nil {
			t.Errorf("table %s missing: %v", table, err)
		}
	}
}

func TestOpenEnablesForeignKeys(t *testing.T) {
	db, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	var enabled int
	if err := db.QueryRow(`PRAGMA foreign_keys`).Scan(&enabled); err != nil {
		t.Fatalf("read pragma: %v", err)
	}
	if enabled != 1 {
		t.Fatalf("foreign_keys = %d, want 1", enabled)
	}
}

// Deleting a user must remove their snippets through the declared cascade,
// with no pragma set anywhere but Open itself.
func TestOpenCascadeDeletesSnippets(t *testing.T) {
	db, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if _, err := db.Exec(`INSERT INTO users (id, name, email) VALUES ('user_1', 'Alice', 'alice@example.com')`); err != nil {
		t.Fatalf("insert user: %v", err)
	}
	if _, err := db.Exec(`INSERT INTO snippets (id, title, snippet, user_id) VALUES ('sn_1', 'hello', 'body', 'user_1')`); err != nil {
		t.Fatalf("insert snippet: %v", err)
	}

	if _, err := db.Exec(`DELETE FROM users WHERE id = 'user_1'`); err != nil {
		t.Fatalf("delete user: %v", err)
	}

	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM snippets WHERE user_id = 'user_1'`).Scan(&count); err != nil {
		t.Fatalf("count snippets: %v", err)
	}
	if count != 0 {
		t.Errorf("count = %d, want 0 after owner deletion", count)
	}
}
