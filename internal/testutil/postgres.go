package testutil

import (
	"context"
	"os"
	"testing"

	"github.com/jmoiron/sqlx"

	"chat-room/internal/db"
)

// SetupTestDB connects to TEST_PG_DSN, migrates and truncates the Chat table.
// It skips the test if TEST_PG_DSN is not set.
func SetupTestDB(t *testing.T) (*sqlx.DB, string) {
	t.Helper()
	dsn := os.Getenv("TEST_PG_DSN")
	if dsn == "" {
		t.Skip("TEST_PG_DSN not set")
	}
	database, err := db.Connect(context.Background(), dsn)
	if err != nil {
		t.Fatalf("failed to connect test database: %v", err)
	}
	if _, err := database.Exec(`TRUNCATE "Chat" RESTART IDENTITY`); err != nil {
		database.Close()
		t.Fatalf("failed to truncate Chat: %v", err)
	}
	t.Cleanup(func() {
		database.Close()
	})
	return database, dsn
}
