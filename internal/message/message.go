// Package message renders the user-facing texts of the home commands from
// configured templates.
package message

import (
	"strconv"
	"strings"

	"github.com/cory-johannsen/simplehome/internal/config"
)

// Kind identifies a user-facing message.
type Kind int

const (
	NoHome Kind = iota
	HomeList
	SetHomeMax
	BanWorld
	SetHomeOK
	DelHomeOK
	HomeTeleport
	HomeNotFound
	SetHomeUsage
	DelHomeUsage
	TierUnavailable
	InvalidHome
	InternalError
	kindCount
)

var kindKeys = [kindCount]string{
	NoHome:          "no-home",
	HomeList:        "home-list",
	SetHomeMax:      "sethome-max",
	BanWorld:        "ban-world-message",
	SetHomeOK:       "sethome-ok",
	DelHomeOK:       "delhome-ok",
	HomeTeleport:    "home-teleport",
	HomeNotFound:    "home-not-found",
	SetHomeUsage:    "sethome-usage",
	DelHomeUsage:    "delhome-usage",
	TierUnavailable: "tier-unavailable",
	InvalidHome:     "invalid-home",
	InternalError:   "internal-error",
}

// String returns the configuration key of k, e.g. "sethome-max".
func (k Kind) String() string {
	if k < 0 || k >= kindCount {
		return "kind(" + strconv.Itoa(int(k)) + ")"
	}
	return kindKeys[k]
}

// Params carries the values a template may reference.
//
// Named placeholders: {home}, {max}, {count}, {homes}, {world}.
// Positional placeholders keep the legacy config.yml meaning:
// home-list takes %1=count and %2=homes, sethome-max takes %1=home and
// %2=max, ban-world-message takes %1=world, and every other kind takes %1=home.
type Params struct {
	Home  string
	Max   int
	Count int
	Homes []string
	World string
}

// Catalog holds one template per Kind plus the common prefix.
type Catalog struct {
	prefix    string
	templates [kindCount]string
}

// NewCatalog builds a Catalog from the messages section of the configuration.
func NewCatalog(cfg config.MessagesConfig) *Catalog {
	c := &Catalog{prefix: cfg.Prefix}
	c.templates[NoHome] = cfg.NoHome
	c.templates[HomeList] = cfg.HomeList
	c.templates[SetHomeMax] = cfg.SetHomeMax
	c.templates[BanWorld] = cfg.BanWorld
	c.templates[SetHomeOK] = cfg.SetHomeOK
	c.templates[DelHomeOK] = cfg.DelHomeOK
	c.templates[HomeTeleport] = cfg.HomeTeleport
	c.templates[HomeNotFound] = cfg.HomeNotFound
	c.templates[SetHomeUsage] = cfg.SetHomeUsage
	c.templates[DelHomeUsage] = cfg.DelHomeUsage
	c.templates[TierUnavailable] = cfg.TierUnavailable
	c.templates[InvalidHome] = cfg.InvalidHome
	c.templates[InternalError] = cfg.InternalError
	return c
}

// Render expands the template for k with p and prepends the prefix.
//
// Postcondition: Returns "<prefix> <body>", or just the body when the prefix
// is empty. An unconfigured template renders as the kind's key.
func (c *Catalog) Render(k Kind, p Params) string {
	var tmpl string
	if k >= 0 && k < kindCount {
		tmpl = c.templates[k]
	}
	if tmpl == "" {
		tmpl = k.String()
	}
	body := expand(k, tmpl, p)
	if c.prefix == "" {
		return body
	}
	return c.prefix + " " + body
}

func expand(k Kind, tmpl string, p Params) string {
	homes := strings.Join(p.Homes, ", ")
	count := strconv.Itoa(p.Count)
	limit := strconv.Itoa(p.Max)

	var first, second string
	switch k {
	case HomeList:
		first, second = count, homes
	case SetHomeMax:
		first, second = p.Home, limit
	case BanWorld:
		first = p.World
	default:
		first = p.Home
	}

	// Values are substituted once, so a home named "%2" is not expanded again.
	return strings.NewReplacer(
		"{home}", p.Home,
		"{max}", limit,
		"{count}", count,
		"{homes}", homes,
		"{world}", p.World,
		"%1", first,
		"%2", second,
	).Replace(tmpl)
}
