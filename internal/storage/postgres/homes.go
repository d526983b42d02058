package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cory-johannsen/simplehome/internal/home"
)

// HomeRepository stores homes in the homes table. It implements home.Repository.
type HomeRepository struct {
	db *pgxpool.Pool
}

// NewHomeRepository creates a HomeRepository backed by the given pool.
//
// Precondition: db must be a valid, open connection pool with the homes table migrated.
func NewHomeRepository(db *pgxpool.Pool) *HomeRepository {
	return &HomeRepository{db: db}
}

// LoadAll returns every stored home grouped by player.
//
// Postcondition: Returns a map (possibly empty) or a non-nil error. Players
// without homes have no entry.
func (r *HomeRepository) LoadAll(ctx context.Context) (map[string]home.PlayerHomes, error) {
	rows, err := r.db.Query(ctx, `
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
func (r *HomeRepository) SavePlayer(ctx context.Context, playerID string, homes home.PlayerHomes) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, `DELETE FROM homes WHERE player_id = $1`, playerID); err != nil {
		return fmt.Errorf("clearing homes for %s: %w", playerID, err)
	}

	batch := &pgx.Batch{}
	for _, name := range homes.Names() {
		h := homes[name]
		if h.Owner != playerID {
			return fmt.Errorf("home %q is owned by %q, not %q", name, h.Owner, playerID)
		}
		batch.Queue(`
			INSERT INTO homes (player_id, name, x, y, z, world_id, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, NOW())`,
			playerID, h.Name, h.Position.X, h.Position.Y, h.Position.Z, h.World,
		)
	}
	if batch.Len() > 0 {
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("inserting homes for %s: %w", playerID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing homes for %s: %w", playerID, err)
	}
	return nil
}
