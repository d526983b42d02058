package leveling

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/simplehome/internal/home"
	"github.com/cory-johannsen/simplehome/internal/metrics"
)

// Static serves tiers from an in-memory table. Unknown players are tier 0.
// It is used when no leveling service is configured, and by tests.
type Static struct {
	mu    sync.RWMutex
	tiers map[string]int
}

// NewStatic creates a Static source seeded with tiers (may be nil).
func NewStatic(tiers map[string]int) *Static {
	s := &Static{tiers: make(map[string]int, len(tiers))}
	for k, v := range tiers {
		s.tiers[k] = v
	}
	return s
}

// Set records playerID's tier.
func (s *Static) Set(playerID string, tier int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tiers[playerID] = tier
}

// Tier returns the recorded tier, or 0.
func (s *Static) Tier(_ context.Context, playerID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tiers[playerID], nil
}

// Fallback wraps a source and treats lookup failures as tier 0, so a player
// keeps the base limit while the leveling service is down.
type Fallback struct {
	next   home.TierSource
	logger *zap.Logger
}

// NewFallback wraps next.
//
// Precondition: next and logger must be non-nil.
func NewFallback(next home.TierSource, logger *zap.Logger) *Fallback {
	return &Fallback{next: next, logger: logger}
}

// Tier returns next's tier, or 0 when next fails.
func (f *Fallback) Tier(ctx context.Context, playerID string) (int, error) {
	tier, err := f.next.Tier(ctx, playerID)
	if err != nil {
		metrics.TierFallbacks.Inc()
		f.logger.Warn("leveling service unavailable; using tier 0",
			zap.String("player", playerID),
			zap.Error(err),
		)
		return 0, nil
	}
	return tier, nil
}

// New builds the tier source described by the leveling configuration: a
// Static source when baseURL is empty, otherwise an HTTPClient, wrapped in
// Fallback unless fallback is "error".
func New(baseURL string, timeout time.Duration, fallback string, logger *zap.Logger) home.TierSource {
	if baseURL == "" {
		return NewStatic(nil)
	}
	var src home.TierSource = NewHTTPClient(baseURL, timeout)
	if fallback != "error" {
		src = NewFallback(src, logger)
	}
	return src
}
