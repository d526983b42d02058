package importer

import (
	"context"

	"github.com/cory-johannsen/simplehome/internal/home"
)

// Source supplies every player's homes, e.g. a directory of legacy plugin
// player files.
//
// Postcondition: LoadAll returns every readable player, or a non-nil error.
type Source interface {
	LoadAll(ctx context.Context) (map[string]home.PlayerHomes, error)
}

// Sink receives one player's homes at a time, replacing what it held for them.
type Sink interface {
	SavePlayer(ctx context.Context, playerID string, homes home.PlayerHomes) error
}
