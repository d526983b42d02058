package home

// BannedWorlds is the set of worlds in which homes cannot be set.
type BannedWorlds map[string]struct{}

// NewBannedWorlds builds a set from world identifiers.
func NewBannedWorlds(worlds []string) BannedWorlds {
	b := make(BannedWorlds, len(worlds))
	for _, w := range worlds {
		b[w] = struct{}{}
	}
	return b
}

// IsBanned reports whether world is in the set. Matching is exact.
func (b BannedWorlds) IsBanned(world string) bool {
	_, ok := b[world]
	return ok
}

// IsBanned reports whether world exactly matches an entry of banned.
func IsBanned(world string, banned []string) bool {
	for _, w := range banned {
		if w == world {
			return true
		}
	}
	return false
}
