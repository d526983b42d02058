package home

import (
	"context"
	"fmt"
)

// Unlimited is the base limit value that disables the home cap entirely.
const Unlimited = -1

// tierStep is how many tier levels grant one extra home.
const tierStep = 10

// TierSource supplies a player's tier level.
type TierSource interface {
	Tier(ctx context.Context, playerID string) (int, error)
}

// LimitFunc overrides the cap formula. ok=false falls back to MaxHomes;
// returning Unlimited lifts the cap for that player.
type LimitFunc func(tier, base int) (limit int, ok bool)

// MaxHomes computes the cap for a tier: base + floor(tier/10).
// A base of Unlimited returns Unlimited regardless of tier; negative tiers count as 0.
func MaxHomes(tier, base int) int {
	if base == Unlimited {
		return Unlimited
	}
	if tier < 0 {
		tier = 0
	}
	return base + tier/tierStep
}

// Policy computes per-player home caps.
type Policy struct {
	base     int
	tiers    TierSource
	override LimitFunc
}

// NewPolicy creates a Policy.
//
// Precondition: base must be >= -1. tiers may be nil (every player is tier 0);
// override may be nil.
func NewPolicy(base int, tiers TierSource, override LimitFunc) *Policy {
	return &Policy{base: base, tiers: tiers, override: override}
}

// Base returns the configured base limit.
func (p *Policy) Base() int { return p.base }

// Unlimited reports whether the cap is disabled.
func (p *Policy) Unlimited() bool { return p.base == Unlimited }

// MaxFor returns the cap for playerID. The tier service is not consulted
// when the policy is unlimited.
//
// Postcondition: Returns Unlimited, a cap >= 0, or an error wrapping ErrTierUnavailable.
func (p *Policy) MaxFor(ctx context.Context, playerID string) (int, error) {
	if p.Unlimited() {
		return Unlimited, nil
	}
	tier := 0
	if p.tiers != nil {
		t, err := p.tiers.Tier(ctx, playerID)
		if err != nil {
			return 0, fmt.Errorf("%w: %w", ErrTierUnavailable, err)
		}
		tier = t
	}
	if tier < 0 {
		tier = 0
	}
	if p.override != nil {
		if limit, ok := p.override(tier, p.base); ok {
			if limit < Unlimited {
				limit = 0
			}
			return limit, nil
		}
	}
	return MaxHomes(tier, p.base), nil
}
