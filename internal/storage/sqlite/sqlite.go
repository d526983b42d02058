// Package sqlite persists homes in a single SQLite file through the pure-Go
// modernc.org/sqlite driver. The schema is managed by golang-migrate from the
// embedded migrations directory, like the postgres backend.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"

	"github.com/cory-johannsen/simplehome/internal/home"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

const pragmas = "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"

// Repository stores homes in the homes table of a SQLite database. It
// implements home.Repository.
type Repository struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path and applies pending
// migrations.
//
// Precondition: path must be non-empty.
// Postcondition: Returns a migrated Repository or a non-nil error. The caller must Close it.
func Open(path string) (*Repository, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	clean := filepath.Clean(path)
	if dir := filepath.Dir(clean); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating sqlite directory %s: %w", dir, err)
		}
	}

	if err := MigrateUp(clean); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", clean+pragmas)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}
	// One writer at a time; SQLite serializes writes anyway.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging sqlite db: %w", err)
	}
	return &Repository{db: db}, nil
}

// MigrateUp applies every pending migration to the database at path.
//
// Postcondition: The schema is at the latest version, or a non-nil error is returned.
func MigrateUp(path string) error {
	db, err := sql.Open("sqlite", path+pragmas)
	if err != nil {
		return fmt.Errorf("opening sqlite db for migration: %w", err)
	}
	driver, err := migratesqlite.WithInstance(db, &migratesqlite.Config{})
	if err != nil {
		db.Close()
		return fmt.Errorf("creating sqlite migration driver: %w", err)
	}
	src, err := iofs.New(migrationFS, "migrations")
	if err != nil {
		driver.Close()
		return fmt.Errorf("opening embedded migrations: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		driver.Close()
		return fmt.Errorf("creating migrator: %w", err)
	}
	// Close also closes db through the driver.
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("applying migrations: %w", err)
	}
	return nil
}

// Close releases the database handle.
func (r *Repository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

// LoadAll returns every stored home grouped by player.
//
// Postcondition: Returns a map (possibly empty) or a non-nil error. Players
// without homes have no entry.
func (r *Repository) LoadAll(ctx context.Context) (map[string]home.PlayerHomes, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT player_id, name, x, y, z, world_id
		FROM homes ORDER BY player_id, name`)
	if err != nil {
		return nil, fmt.Errorf("querying homes: %w", err)
	}
	defer rows.Close()

	out := make(map[string]home.PlayerHomes)
	for rows.Next() {
		var h home.Home
		if err := rows.Scan(&h.Owner, &h.Name, &h.Position.X, &h.Position.Y, &h.Position.Z, &h.World); err != nil {
			return nil, fmt.Errorf("scanning home: %w", err)
		}
		if out[h.Owner] == nil {
			out[h.Owner] = make(home.PlayerHomes)
		}
		out[h.Owner][h.Name] = h
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating homes: %w", err)
	}
	return out, nil
}

// SavePlayer replaces playerID's rows with homes in one transaction.
//
// Precondition: every home in homes must be owned by playerID.
// Postcondition: The table holds exactly homes for playerID, or nothing changed and an error is returned.
func (r *Repository) SavePlayer(ctx context.Context, playerID string, homes home.PlayerHomes) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM homes WHERE player_id = ?`, playerID); err != nil {
		return fmt.Errorf("clearing homes for %s: %w", playerID, err)
	}

	now := time.Now().UTC().UnixMilli()
	for _, name := range homes.Names() {
		h := homes[name]
		if h.Owner != playerID {
			return fmt.Errorf("home %q is owned by %q, not %q", name, h.Owner, playerID)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO homes (player_id, name, x, y, z, world_id, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			playerID, h.Name, h.Position.X, h.Position.Y, h.Position.Z, h.World, now,
		); err != nil {
			return fmt.Errorf("inserting home %q for %s: %w", name, playerID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing homes for %s: %w", playerID, err)
	}
	return nil
}
