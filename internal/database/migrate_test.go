package database

import (
	"context"
	"path/filepath"
	"testing"
)

func TestSplitStatements(t *testing.T) {
	script := `
-- comment
CREATE TABLE a (
    id INTEGER
);

CREATE INDEX i ON a (id);
SELECT 1`
	got := SplitStatements(script)
	if len(got) != 3 {
		t.Fatalf("expected 3 statements, got %d: %q", len(got), got)
	}
	if got[1] != "CREATE INDEX i ON a (id)" {
		t.Fatalf("unexpected second statement %q", got[1])
	}
}

func TestExtractUpMigration(t *testing.T) {
	got := ExtractUpMigration("-- +migrate Up\nCREATE TABLE x (id INT);\n-- +migrate Down\nDROP TABLE x;")
	if got != "\nCREATE TABLE x (id INT);\n" {
		t.Fatalf("unexpected up section %q", got)
	}
}

func TestMigrateSQLiteIsIdempotent(t *testing.T) {
	t.Parallel()

	db, err := OpenSQLite(filepath.Join(t.TempDir(), "booking.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if err := Migrate(ctx, db, DriverSQLite); err != nil {
			t.Fatalf("migrate pass %d: %v", i+1, err)
		}
	}

	var n int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_migrations").Scan(&n); err != nil {
		t.Fatalf("count migrations: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 recorded migration, got %d", n)
	}
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM slots WHERE version = 0 AND booked_count = 0").Scan(&n); err != nil {
		t.Fatalf("slots table missing: %v", err)
	}
}
