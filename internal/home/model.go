// Package home holds the home record, the per-player home store and the
// policies (tier limit, banned worlds) applied when a home is set.
package home

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

// MaxFieldLength is the longest owner, name or world, in runes, a Home may carry.
const MaxFieldLength = 64

// Position is a point in a world.
type Position struct {
	X float64
	Y float64
	Z float64
}

// Home is a named location owned by one player.
//
// Home is a value type; the Store only ever hands out copies, so a Home
// obtained from it cannot alter stored state.
type Home struct {
	Owner    string
	Name     string
	Position Position
	World    string
}

// New constructs and validates a Home.
//
// Precondition: owner, name and world must be non-empty, at most MaxFieldLength runes
// and free of control characters; name must not contain whitespace; coordinates must be finite.
// Postcondition: Returns a valid Home or a non-nil error.
func New(owner, name string, pos Position, world string) (Home, error) {
	h := Home{Owner: owner, Name: name, Position: pos, World: world}
	if err := h.Validate(); err != nil {
		return Home{}, err
	}
	return h, nil
}

// Validate checks the Home invariants.
//
// Postcondition: Returns nil, or an error wrapping ErrInvalidHome that lists every violation.
func (h Home) Validate() error {
	var errs []error
	for _, f := range []struct{ field, value string }{
		{"owner", h.Owner},
		{"name", h.Name},
		{"world", h.World},
	} {
		if err := checkField(f.field, f.value); err != nil {
			errs = append(errs, err)
		}
	}
	if strings.IndexFunc(h.Name, unicode.IsSpace) >= 0 {
		errs = append(errs, fmt.Errorf("home name %q must not contain whitespace", h.Name))
	}
	for _, c := range []float64{h.Position.X, h.Position.Y, h.Position.Z} {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			errs = append(errs, fmt.Errorf("home %q has a non-finite coordinate", h.Name))
			break
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidHome, errors.Join(errs...))
}

func checkField(field, value string) error {
	switch {
	case value == "":
		return fmt.Errorf("home %s must not be empty", field)
	case !utf8.ValidString(value):
		return fmt.Errorf("home %s must be valid UTF-8", field)
	case utf8.RuneCountInString(value) > MaxFieldLength:
		return fmt.Errorf("home %s must be at most %d characters", field, MaxFieldLength)
	case strings.IndexFunc(value, unicode.IsControl) >= 0:
		return fmt.Errorf("home %s %q must not contain control characters", field, value)
	}
	return nil
}

// PlayerHomes maps a home name (case-sensitive) to the Home, for one player.
type PlayerHomes map[string]Home

// Names returns the home names in lexicographic order.
//
// Postcondition: Returns a non-nil slice.
func (p PlayerHomes) Names() []string {
	names := make([]string, 0, len(p))
	for name := range p {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Clone returns an independent copy of p.
func (p PlayerHomes) Clone() PlayerHomes {
	out := make(PlayerHomes, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}
