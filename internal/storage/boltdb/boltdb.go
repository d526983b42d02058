// Package boltdb persists homes in an embedded bbolt key/value file. Each
// player is one key in the players bucket; the value is the same YAML document
// the file repository writes, so records can be inspected or copied verbatim.
package boltdb

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.etcd.io/bbolt"

	"github.com/cory-johannsen/simplehome/internal/home"
	"github.com/cory-johannsen/simplehome/internal/storage/yamlfile"
)

var playersBucket = []byte("players")

// OpenTimeout bounds how long Open waits for another process's file lock.
const OpenTimeout = 2 * time.Second

// Repository stores homes in a bbolt database. It implements home.Repository.
type Repository struct {
	db *bbolt.DB
}

// Open opens (creating if needed) the database at path.
//
// Precondition: path must be non-empty.
// Postcondition: Returns a Repository whose players bucket exists, or a non-nil
// error. The caller must Close it.
func Open(path string) (*Repository, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("bolt path is required")
	}
	clean := filepath.Clean(path)
	if dir := filepath.Dir(clean); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating bolt directory %s: %w", dir, err)
		}
	}
	db, err := bbolt.Open(clean, 0o600, &bbolt.Options{Timeout: OpenTimeout})
	if err != nil {
		return nil, fmt.Errorf("opening bolt db %s: %w", clean, err)
	}
	if err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(playersBucket)
		return err
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating players bucket: %w", err)
	}
	return &Repository{db: db}, nil
}

// Close releases the database file lock.
func (r *Repository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

// LoadAll returns every stored player's homes.
//
// Postcondition: Returns a map (possibly empty) or the first decoding error.
func (r *Repository) LoadAll(ctx context.Context) (map[string]home.PlayerHomes, error) {
	out := make(map[string]home.PlayerHomes)
	err := r.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(playersBucket).ForEach(func(k, v []byte) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			playerID := string(k)
			homes, err := yamlfile.UnmarshalPlayer(v, playerID)
			if err != nil {
				return fmt.Errorf("decoding homes for %s: %w", playerID, err)
			}
			out[playerID] = homes
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// SavePlayer replaces playerID's record. A player with no homes has no record.
//
// Precondition: every home in homes must be owned by playerID.
func (r *Repository) SavePlayer(_ context.Context, playerID string, homes home.PlayerHomes) error {
	if playerID == "" {
		return errors.New("player id must not be empty")
	}
	for name, h := range homes {
		if h.Owner != playerID {
			return fmt.Errorf("home %q is owned by %q, not %q", name, h.Owner, playerID)
		}
	}
	var data []byte
	if len(homes) > 0 {
		var err error
		if data, err = yamlfile.MarshalPlayer(homes); err != nil {
			return fmt.Errorf("encoding homes for %s: %w", playerID, err)
		}
	}
	return r.db.Update(func(tx *bbolt.Tx) error {
		bkt := tx.Bucket(playersBucket)
		if data == nil {
			return bkt.Delete([]byte(playerID))
		}
		return bkt.Put([]byte(playerID), data)
	})
}
