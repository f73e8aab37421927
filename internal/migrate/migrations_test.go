package migrate

import (
	"database/sql"
	"testing"

	"atelier/internal/db"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestMigrateFreshDatabase(t *testing.T) {
	conn := openTestDB(t)

	v, err := Version(conn)
	if err != nil {
		t.Fatalf("version before migrate: %v", err)
	}
	if v != 0 {
		t.Fatalf("fresh database reports version %d, want 0", v)
	}

	if err := Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	latest, err := Latest()
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if latest == 0 {
		t.Fatal("no embedded migrations found")
	}
	v, err = Version(conn)
	if err != nil {
		t.Fatalf("version after migrate: %v", err)
	}
	if v != latest {
		t.Fatalf("version = %d, want %d", v, latest)
	}

	var n int
	if err := conn.QueryRow(`SELECT COUNT(*) FROM ateliers`).Scan(&n); err != nil {
		t.Fatalf("ateliers table missing after migrate: %v", err)
	}
}

func TestMigrateIsIdempotent(t *testing.T) {
	conn := openTestDB(t)
	if err := Migrate(conn); err != nil {
		t.Fatalf("first migrate: %v", err)
	}
	before, err := Version(conn)
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if err := Migrate(conn); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
	after, err := Version(conn)
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if after != before {
		t.Fatalf("version moved from %d to %d on a no-op migrate", before, after)
	}
}
