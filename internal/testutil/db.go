package testutil

import (
	"database/sql"
	"testing"

	"github.com/pkathuria/comicden/internal/db"
)

// SetupTestDB creates an in-memory SQLite settings database with all
// migrations applied. The connection is closed when the test completes.
func SetupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	database, err := db.Init(":memory:")
	if err != nil {
		t.Fatalf("Failed to open in-memory database: %v", err)
	}
	t.Cleanup(func() {
		database.Close()
	})

	if err := db.RunMigrations(database); err != nil {
		t.Fatalf("Failed to apply migrations: %v", err)
	}

	return database
}
