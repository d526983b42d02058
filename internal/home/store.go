package home

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/simplehome/internal/metrics"
)

// Repository persists PlayerHomes.
type Repository interface {
	// LoadAll returns every persisted player's homes keyed by player ID.
	//
	// A repository that stores players separately may return the players it
	// could read together with a non-nil error naming the ones it could not,
	// each as a *PersistenceError. A nil map with an error means nothing was read.
	LoadAll(ctx context.Context) (map[string]PlayerHomes, error)
	// SavePlayer replaces the persisted homes of playerID with homes.
	SavePlayer(ctx context.Context, playerID string, homes PlayerHomes) error
}

// HomeValidator is implemented by repositories with storage-specific limits on
// what a home may contain, such as player IDs usable as file names.
type HomeValidator interface {
	ValidateHome(h Home) error
}

// Store maps player IDs to their homes.
//
// All methods are safe for concurrent use. Set and remove take the write
// lock; tier lookups and persistence happen outside it.
type Store struct {
	mu      sync.RWMutex
	players map[string]PlayerHomes
	dirty   map[string]bool
	// skipped players could not be loaded; they are read-only so a save
	// cannot replace their unread homes.
	skipped map[string]bool

	// saveMu orders repository writes so an older snapshot never lands after a newer one.
	saveMu sync.Mutex

	repo         Repository
	policy       *Policy
	banned       BannedWorlds
	writeThrough bool
	logger       *zap.Logger
}

// NewStore creates an empty Store.
//
// Precondition: repo, policy and logger must be non-nil. banned may be nil.
// Postcondition: Returns a Store with no players; call Load to populate it.
func NewStore(repo Repository, policy *Policy, banned BannedWorlds, writeThrough bool, logger *zap.Logger) *Store {
	return &Store{
		players:      make(map[string]PlayerHomes),
		dirty:        make(map[string]bool),
		skipped:      make(map[string]bool),
		repo:         repo,
		policy:       policy,
		banned:       banned,
		writeThrough: writeThrough,
		logger:       logger,
	}
}

// Policy returns the limit policy the store enforces.
func (s *Store) Policy() *Policy { return s.policy }

// ListHomeNames returns playerID's home names in lexicographic order.
//
// Postcondition: Returns a non-nil, possibly empty slice.
func (s *Store) ListHomeNames(playerID string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.players[playerID].Names()
}

// Count returns how many homes playerID owns.
func (s *Store) Count(playerID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.players[playerID])
}

// GetHome returns playerID's home called name.
//
// Postcondition: Returns the Home or ErrNotFound.
func (s *Store) GetHome(playerID, name string) (Home, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.players[playerID][name]
	if !ok {
		return Home{}, ErrNotFound
	}
	return h, nil
}

// TotalHomes returns the number of homes across all players.
func (s *Store) TotalHomes() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, homes := range s.players {
		n += len(homes)
	}
	return n
}

// Players returns every player ID with an entry in the store, sorted.
func (s *Store) Players() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.players))
	for id := range s.players {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// SetHome inserts h, or overwrites the owner's home with the same name.
//
// A new name is checked against the owner's cap first and the banned worlds
// second; overwriting an existing name is only subject to the banned-world check.
//
// Precondition: h must satisfy Home.Validate.
// Postcondition: On nil error the home is stored. Otherwise the store is unchanged
// and the error wraps ErrInvalidHome, ErrLimitExceeded (*LimitError),
// ErrWorldBanned (*BannedWorldError) or ErrTierUnavailable.
func (s *Store) SetHome(ctx context.Context, h Home) error {
	if err := h.Validate(); err != nil {
		return err
	}
	if v, ok := s.repo.(HomeValidator); ok {
		if err := v.ValidateHome(h); err != nil {
			return err
		}
	}

	s.mu.RLock()
	_, exists := s.players[h.Owner][h.Name]
	count := len(s.players[h.Owner])
	skipped := s.skipped[h.Owner]
	s.mu.RUnlock()
	if skipped {
		return &PersistenceError{Player: h.Owner, Err: ErrPlayersSkipped}
	}

	limit := Unlimited
	if !exists {
		var err error
		limit, err = s.policy.MaxFor(ctx, h.Owner)
		if err != nil {
			return err
		}
		if limit != Unlimited && count >= limit {
			return &LimitError{Home: h.Name, Max: limit}
		}
	}

	if s.banned.IsBanned(h.World) {
		return &BannedWorldError{World: h.World}
	}

	// Re-check under the write lock; another command may have added a home meanwhile.
	s.mu.Lock()
	homes := s.players[h.Owner]
	if _, exists := homes[h.Name]; !exists && limit != Unlimited && len(homes) >= limit {
		s.mu.Unlock()
		return &LimitError{Home: h.Name, Max: limit}
	}
	if homes == nil {
		homes = make(PlayerHomes)
		s.players[h.Owner] = homes
	}
	homes[h.Name] = h
	s.dirty[h.Owner] = true
	s.mu.Unlock()

	s.logger.Debug("home set",
		zap.String("player", h.Owner),
		zap.String("home", h.Name),
		zap.String("world", h.World),
	)
	s.afterMutation(ctx, h.Owner)
	return nil
}

// RemoveHome deletes playerID's home called name.
//
// Postcondition: Returns nil if the home was removed, or ErrNotFound.
func (s *Store) RemoveHome(ctx context.Context, playerID, name string) error {
	s.mu.Lock()
	homes := s.players[playerID]
	if _, ok := homes[name]; !ok {
		s.mu.Unlock()
		return ErrNotFound
	}
	delete(homes, name)
	s.dirty[playerID] = true
	s.mu.Unlock()

	s.logger.Debug("home removed",
		zap.String("player", playerID),
		zap.String("home", name),
	)
	s.afterMutation(ctx, playerID)
	return nil
}

// afterMutation persists playerID immediately in write-through mode. A failed
// write leaves the player dirty so the next checkpoint retries it.
func (s *Store) afterMutation(ctx context.Context, playerID string) {
	if !s.writeThrough {
		return
	}
	if err := s.Flush(ctx, playerID); err != nil {
		s.logger.Warn("write-through save failed; will retry at next checkpoint",
			zap.String("player", playerID),
			zap.Error(err),
		)
	}
}

// Load replaces the in-memory state with the repository contents.
//
// Postcondition: On success the store mirrors the repository and nothing is dirty.
// If the repository read some players but not others, the readable players are
// installed and the error wraps ErrPlayersSkipped and ErrPersistence. If nothing
// could be read the store is unchanged and the error wraps ErrPersistence only.
func (s *Store) Load(ctx context.Context) error {
	start := time.Now()
	loaded, err := s.repo.LoadAll(ctx)
	if err != nil && loaded == nil {
		return &PersistenceError{Err: err}
	}
	loadErr := err
	var skipped []string
	if loadErr != nil {
		skipped = skippedPlayers(loadErr)
	}

	players := make(map[string]PlayerHomes, len(loaded))
	total := 0
	for id, homes := range loaded {
		players[id] = homes.Clone()
		total += len(homes)
	}

	s.mu.Lock()
	s.players = players
	s.dirty = make(map[string]bool)
	s.skipped = make(map[string]bool, len(skipped))
	for _, id := range skipped {
		s.skipped[id] = true
	}
	s.mu.Unlock()

	if loadErr != nil {
		s.logger.Error("homes loaded with unreadable players skipped",
			zap.Int("players", len(players)),
			zap.Int("homes", total),
			zap.Strings("skipped", skipped),
			zap.Error(loadErr),
		)
		return fmt.Errorf("%w (%d): %w", ErrPlayersSkipped, len(skipped), loadErr)
	}

	s.logger.Info("homes loaded",
		zap.Int("players", len(players)),
		zap.Int("homes", total),
		zap.Duration("elapsed", time.Since(start)),
	)
	return nil
}

// skippedPlayers lists the players named by the *PersistenceError values in err.
func skippedPlayers(err error) []string {
	var out []string
	var walk func(error)
	walk = func(err error) {
		if pe, ok := err.(*PersistenceError); ok && pe.Player != "" {
			out = append(out, pe.Player)
			return
		}
		if joined, ok := err.(interface{ Unwrap() []error }); ok {
			for _, e := range joined.Unwrap() {
				walk(e)
			}
		}
	}
	walk(err)
	sort.Strings(out)
	return out
}

// Save writes every player's homes, overwriting prior contents.
//
// Postcondition: Returns nil, or the joined *PersistenceError of every player that failed.
// Players that failed stay dirty.
func (s *Store) Save(ctx context.Context) error {
	return s.save(ctx, false)
}

// Checkpoint writes only the players modified since their last successful save.
func (s *Store) Checkpoint(ctx context.Context) error {
	return s.save(ctx, true)
}

// Flush writes a single player's homes.
func (s *Store) Flush(ctx context.Context, playerID string) error {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	s.mu.Lock()
	snapshot := s.players[playerID].Clone()
	delete(s.dirty, playerID)
	s.mu.Unlock()

	if err := s.repo.SavePlayer(ctx, playerID, snapshot); err != nil {
		s.markDirty(playerID)
		metrics.Saves.WithLabelValues("flush", "error").Inc()
		return &PersistenceError{Player: playerID, Err: err}
	}
	metrics.Saves.WithLabelValues("flush", "ok").Inc()
	return nil
}

func (s *Store) save(ctx context.Context, dirtyOnly bool) error {
	start := time.Now()
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	s.mu.Lock()
	snapshot := make(map[string]PlayerHomes, len(s.players))
	for id, homes := range s.players {
		if dirtyOnly && !s.dirty[id] {
			continue
		}
		snapshot[id] = homes.Clone()
		delete(s.dirty, id)
	}
	s.mu.Unlock()

	trigger := "full"
	if dirtyOnly {
		trigger = "checkpoint"
	}
	var errs []error
	for id, homes := range snapshot {
		if err := s.repo.SavePlayer(ctx, id, homes); err != nil {
			s.markDirty(id)
			metrics.Saves.WithLabelValues(trigger, "error").Inc()
			errs = append(errs, &PersistenceError{Player: id, Err: err})
			continue
		}
		metrics.Saves.WithLabelValues(trigger, "ok").Inc()
	}

	s.logger.Debug("homes saved",
		zap.Bool("dirty_only", dirtyOnly),
		zap.Int("players", len(snapshot)),
		zap.Int("failed", len(errs)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return errors.Join(errs...)
}

func (s *Store) markDirty(playerID string) {
	s.mu.Lock()
	s.dirty[playerID] = true
	s.mu.Unlock()
}
