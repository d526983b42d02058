package home

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a player has no home with the requested name.
	ErrNotFound = errors.New("home not found")
	// ErrLimitExceeded is returned when a new home would exceed the player's cap.
	ErrLimitExceeded = errors.New("home limit exceeded")
	// ErrWorldBanned is returned when the home's world disallows setting homes.
	ErrWorldBanned = errors.New("world is banned for homes")
	// ErrTierUnavailable is returned when the leveling service could not supply a tier.
	ErrTierUnavailable = errors.New("tier unavailable")
	// ErrPersistence is returned when homes could not be read or written.
	ErrPersistence = errors.New("home persistence failed")
	// ErrPlayersSkipped is returned by Store.Load when some players could not be
	// read; the rest were loaded.
	ErrPlayersSkipped = errors.New("some players' homes were not loaded")
	// ErrInvalidHome is returned when a home, its owner or its world cannot be stored.
	ErrInvalidHome = errors.New("invalid home")
)

// LimitError reports which home was rejected and the cap that applied.
type LimitError struct {
	Home string
	Max  int
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("cannot set home %q: limit of %d reached", e.Home, e.Max)
}

// Unwrap lets errors.Is match ErrLimitExceeded.
func (e *LimitError) Unwrap() error { return ErrLimitExceeded }

// BannedWorldError reports the world a home was rejected in.
type BannedWorldError struct {
	World string
}

func (e *BannedWorldError) Error() string {
	return fmt.Sprintf("cannot set home in world %q", e.World)
}

// Unwrap lets errors.Is match ErrWorldBanned.
func (e *BannedWorldError) Unwrap() error { return ErrWorldBanned }

// PersistenceError reports a failed load or save for one player.
// Player is empty when the failure is not player specific.
type PersistenceError struct {
	Player string
	Err    error
}

func (e *PersistenceError) Error() string {
	if e.Player == "" {
		return fmt.Sprintf("persisting homes: %v", e.Err)
	}
	return fmt.Sprintf("persisting homes for %q: %v", e.Player, e.Err)
}

// Unwrap exposes both ErrPersistence and the underlying cause.
func (e *PersistenceError) Unwrap() []error { return []error{ErrPersistence, e.Err} }
