// Package migrate brings the workspace database up to the schema the binary
// was built for. Migrations are numbered SQL files compiled into the binary
// and applied in a single transaction, so a failed upgrade leaves the
// database at the version it started from.
package migrate

import (
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strconv"
	"strings"
)

//go:embed sql/*.sql
var schemaFS embed.FS

type step struct {
	version int
	file    string
	upSQL   string
}

// steps reads the embedded migration files, named NNNN_description.sql, in
// ascending version order.
func steps() ([]step, error) {
	entries, err := fs.ReadDir(schemaFS, "sql")
	if err != nil {
		return nil, err
	}
	seen := make(map[int]string, len(entries))
	out := make([]step, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		prefix, _, ok := strings.Cut(name, "_")
		if !ok {
			return nil, fmt.Errorf("migration %s: name must look like NNNN_description.sql", name)
		}
		v, err := strconv.Atoi(prefix)
		if err != nil {
			return nil, fmt.Errorf("migration %s: version prefix is not a number", name)
		}
		if prev, dup := seen[v]; dup {
			return nil, fmt.Errorf("migration %s: version %d already taken by %s", name, v, prev)
		}
		seen[v] = name
		data, err := schemaFS.ReadFile("sql/" + name)
		if err != nil {
			return nil, err
		}
		out = append(out, step{version: v, file: name, upSQL: string(data)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].version < out[j].version })
	return out, nil
}

// Migrate applies every migration newer than the version recorded in the
// database. Calling it on an up-to-date database is a no-op, so it runs on
// every startup.
func Migrate(db *sql.DB) error {
	all, err := steps()
	if err != nil {
		return err
	}
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`CREATE TABLE IF NOT EXISTS schema_version(version INTEGER NOT NULL);`); err != nil {
		return fmt.Errorf("create schema_version: %w", err)
	}
	current, err := readVersion(tx.QueryRow(`SELECT version FROM schema_version LIMIT 1`))
	if err != nil {
		return err
	}
	if current < 0 {
		if _, err := tx.Exec(`INSERT INTO schema_version(version) VALUES (0)`); err != nil {
			return fmt.Errorf("init schema_version: %w", err)
		}
		current = 0
	}

	for _, s := range all {
		if s.version <= current {
			continue
		}
		if _, err := tx.Exec(s.upSQL); err != nil {
			return fmt.Errorf("apply %s: %w", s.file, err)
		}
		if _, err := tx.Exec(`UPDATE schema_version SET version=?`, s.version); err != nil {
			return fmt.Errorf("record version %d: %w", s.version, err)
		}
		current = s.version
	}
	return tx.Commit()
}

// Version reports the schema version recorded in the database. A database
// that was never migrated reports 0.
func Version(db *sql.DB) (int, error) {
	var tables int
	err := db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'`).Scan(&tables)
	if err != nil {
		return 0, err
	}
	if tables == 0 {
		return 0, nil
	}
	v, err := readVersion(db.QueryRow(`SELECT version FROM schema_version LIMIT 1`))
	if err != nil {
		return 0, err
	}
	if v < 0 {
		return 0, nil
	}
	return v, nil
}

// Latest reports the newest migration version compiled into the binary.
func Latest() (int, error) {
	all, err := steps()
	if err != nil {
		return 0, err
	}
	if len(all) == 0 {
		return 0, nil
	}
	return all[len(all)-1].version, nil
}

// readVersion returns -1 when no version row exists yet.
func readVersion(row *sql.Row) (int, error) {
	var v int
	switch err := row.Scan(&v); {
	case err == sql.ErrNoRows:
		return -1, nil
	case err != nil:
		return 0, fmt.Errorf("read schema_version: %w", err)
	default:
		return v, nil
	}
}
