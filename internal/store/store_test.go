package store

import (
	"context"
	"database/sql"
	"testing"

	"github.com/dukerupert/flatmate/internal/database"
	"github.com/dukerupert/flatmate/internal/model"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func mustCreateUser(t *testing.T, us *UserStore, email, name string) *model.User {
	t.Helper()
	u, err := us.Create(context.Background(), email, name, nil, "hash")
	if err != nil {
		t.Fatalf("create user %s: %v", email, err)
	}
	return u
}

func countRows(t *testing.T, db *sql.DB, query string, args ...any) int {
	t.Helper()
	var n int
	if err := db.QueryRow(query, args...).Scan(&n); err != nil {
		t.Fatalf("count rows: %v", err)
	}
	return n
}

func strPtr(s string) *string { return &s }
