package command

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"

	"github.com/cory-johannsen/simplehome/internal/home"
	"github.com/cory-johannsen/simplehome/internal/message"
	"github.com/cory-johannsen/simplehome/internal/metrics"
	"github.com/cory-johannsen/simplehome/internal/observability"
)

var (
	// ErrUnknownCommand is returned for input that names no registered command.
	ErrUnknownCommand = errors.New("unknown command")
	// ErrInvalidInvocation is returned when the host sends an incomplete invocation.
	ErrInvalidInvocation = errors.New("invalid invocation")
)

// Store is the part of home.Store the commands use.
type Store interface {
	ListHomeNames(playerID string) []string
	GetHome(playerID, name string) (home.Home, error)
	SetHome(ctx context.Context, h home.Home) error
	RemoveHome(ctx context.Context, playerID, name string) error
}

// Invocation describes who ran a command and where they stood.
type Invocation struct {
	// RequestID correlates log lines; may be empty.
	RequestID string
	PlayerID  string
	World     string
	Position  home.Position
}

func (inv Invocation) validate() error {
	if inv.PlayerID == "" {
		return fmt.Errorf("%w: player must not be empty", ErrInvalidInvocation)
	}
	if inv.World == "" {
		return fmt.Errorf("%w: world must not be empty", ErrInvalidInvocation)
	}
	for _, c := range []float64{inv.Position.X, inv.Position.Y, inv.Position.Z} {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return fmt.Errorf("%w: non-finite position", ErrInvalidInvocation)
		}
	}
	return nil
}

// Result is the outcome of a command: a rendered message for the player and,
// for a successful home command, the home to teleport them to.
type Result struct {
	Kind     message.Kind
	Message  string
	Teleport *home.Home
}

// Handler executes home commands against a Store.
type Handler struct {
	store    Store
	catalog  *message.Catalog
	registry *Registry
	logger   *zap.Logger
}

// NewHandler creates a Handler using the built-in command registry.
//
// Precondition: store, catalog and logger must be non-nil.
func NewHandler(store Store, catalog *message.Catalog, logger *zap.Logger) *Handler {
	return &Handler{
		store:    store,
		catalog:  catalog,
		registry: DefaultRegistry(),
		logger:   logger,
	}
}

// Registry returns the commands the handler understands.
func (h *Handler) Registry() *Registry { return h.registry }

// Execute parses line and runs the command it names for inv.
//
// Domain failures (limit reached, banned world, unknown home, tier lookup
// failure) are reported to the player through Result.Message, not as errors.
//
// Postcondition: Returns a Result, or an error wrapping ErrUnknownCommand or
// ErrInvalidInvocation.
func (h *Handler) Execute(ctx context.Context, inv Invocation, line string) (Result, error) {
	parsed := Parse(line)
	cmd, ok := h.registry.Resolve(parsed.Command)
	if !ok {
		return Result{}, fmt.Errorf("%w: %q", ErrUnknownCommand, parsed.Command)
	}
	if err := inv.validate(); err != nil {
		return Result{}, err
	}

	logger := h.logger.With(observability.PlayerFields(inv.RequestID, inv.PlayerID)...).With(observability.TraceFields(ctx)...)
	logger.Debug("executing command",
		zap.String("command", cmd.Name),
		zap.Strings("args", parsed.Args),
	)

	start := time.Now()
	var res Result
	switch cmd.Handler {
	case HandlerSetHome:
		res = h.setHome(ctx, inv, parsed.Args, logger)
	case HandlerDelHome:
		res = h.delHome(ctx, inv, parsed.Args, logger)
	case HandlerHome:
		res = h.listOrTeleport(inv, parsed.Args)
	default:
		return Result{}, fmt.Errorf("%w: no handler for %q", ErrUnknownCommand, cmd.Name)
	}
	metrics.CommandDuration.WithLabelValues(cmd.Name).Observe(time.Since(start).Seconds())
	metrics.Commands.WithLabelValues(cmd.Name, res.Kind.String()).Inc()
	return res, nil
}

// homeName returns the first argument in Unicode NFC so that visually equal
// names typed on different clients address the same home.
func homeName(args []string) string {
	return norm.NFC.String(args[0])
}

func (h *Handler) setHome(ctx context.Context, inv Invocation, args []string, logger *zap.Logger) Result {
	if len(args) == 0 {
		return h.result(message.SetHomeUsage, message.Params{})
	}
	name := homeName(args)

	rec, err := home.New(inv.PlayerID, name, inv.Position, inv.World)
	if err != nil {
		logger.Info("rejected home", zap.String("home", name), zap.Error(err))
		return h.result(message.InvalidHome, message.Params{Home: name, World: inv.World})
	}

	err = h.store.SetHome(ctx, rec)
	var limitErr *home.LimitError
	var bannedErr *home.BannedWorldError
	switch {
	case err == nil:
		logger.Info("home set", zap.String("home", name), zap.String("world", inv.World))
		return h.result(message.SetHomeOK, message.Params{Home: name, World: inv.World})
	case errors.As(err, &limitErr):
		return h.result(message.SetHomeMax, message.Params{Home: name, Max: limitErr.Max, Count: len(h.store.ListHomeNames(inv.PlayerID))})
	case errors.As(err, &bannedErr):
		return h.result(message.BanWorld, message.Params{Home: name, World: bannedErr.World})
	case errors.Is(err, home.ErrTierUnavailable):
		logger.Warn("tier lookup failed", zap.Error(err))
		return h.result(message.TierUnavailable, message.Params{Home: name})
	case errors.Is(err, home.ErrInvalidHome):
		logger.Info("rejected home", zap.String("home", name), zap.Error(err))
		return h.result(message.InvalidHome, message.Params{Home: name, World: inv.World})
	default:
		logger.Error("setting home", zap.String("home", name), zap.Error(err))
		return h.result(message.InternalError, message.Params{Home: name})
	}
}

func (h *Handler) delHome(ctx context.Context, inv Invocation, args []string, logger *zap.Logger) Result {
	if len(args) == 0 {
		return h.result(message.DelHomeUsage, message.Params{})
	}
	name := homeName(args)

	err := h.store.RemoveHome(ctx, inv.PlayerID, name)
	switch {
	case err == nil:
		logger.Info("home removed", zap.String("home", name))
		return h.result(message.DelHomeOK, message.Params{Home: name})
	case errors.Is(err, home.ErrNotFound):
		return h.result(message.HomeNotFound, message.Params{Home: name})
	default:
		logger.Error("removing home", zap.String("home", name), zap.Error(err))
		return h.result(message.InternalError, message.Params{Home: name})
	}
}

// listOrTeleport lists the player's homes when no name is given.
func (h *Handler) listOrTeleport(inv Invocation, args []string) Result {
	if len(args) == 0 {
		names := h.store.ListHomeNames(inv.PlayerID)
		if len(names) == 0 {
			return h.result(message.NoHome, message.Params{})
		}
		return h.result(message.HomeList, message.Params{Count: len(names), Homes: names})
	}
	name := homeName(args)

	rec, err := h.store.GetHome(inv.PlayerID, name)
	if err != nil {
		return h.result(message.HomeNotFound, message.Params{Home: name})
	}
	res := h.result(message.HomeTeleport, message.Params{Home: name, World: rec.World})
	res.Teleport = &rec
	return res
}

func (h *Handler) result(k message.Kind, p message.Params) Result {
	return Result{Kind: k, Message: h.catalog.Render(k, p)}
}
