package migrate

import (
	"database/sql"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"
)

func TestMigrateIsIdempotent(t *testing.T) {
	conn, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "govsure.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer conn.Close()

	for i := 0; i < 2; i++ {
		if err := Migrate(conn); err != nil {
			t.Fatalf("migrate pass %d: %v", i+1, err)
		}
	}

	var version int
	if err := conn.QueryRow(`SELECT version FROM schema_version`).Scan(&version); err != nil {
		t.Fatalf("read version: %v", err)
	}
	if version != 1 {
		t.Fatalf("schema version = %d, want 1", version)
	}
	for _, table := range []string{"pipeline_items", "proposals", "briefs", "opportunities", "events"} {
		var name string
		err := conn.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&name)
		if err != nil {
			t.Fatalf("table %s missing: %v", table, err)
		}
	}
}

func TestEmbeddedStepsSorted(t *testing.T) {
	steps, err := embeddedSteps()
	if err != nil {
		t.Fatalf("embeddedSteps: %v", err)
	}
	if len(steps) == 0 {
		t.Fatal("no embedded migrations")
	}
	for i := 1; i < len(steps); i++ {
		if steps[i].version <= steps[i-1].version {
			t.Fatalf("steps out of order: %s before %s", steps[i-1].name, steps[i].name)
		}
	}
	if steps[0].version != 1 || steps[0].name != "0001_init.sql" {
		t.Fatalf("unexpected first step %+v", steps[0])
	}
}
