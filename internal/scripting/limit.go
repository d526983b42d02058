package scripting

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/cory-johannsen/simplehome/internal/home"
)

// LimitHook is the Lua global a limit script must define.
const LimitHook = "max_homes"

// ErrHookMissing is returned when a limit script does not define LimitHook.
var ErrHookMissing = errors.New("scripting: " + LimitHook + " is not defined")

// LimitScript evaluates a Lua max_homes(tier, base) function.
//
// The LState is single-threaded; mu serializes evaluations.
type LimitScript struct {
	mu        sync.Mutex
	L         *lua.LState
	cancel    context.CancelFunc
	instLimit int
	path      string
	logger    *zap.Logger
}

// LoadLimitScript runs the Lua file at path in a fresh sandbox and checks
// that it defines max_homes.
//
// Precondition: logger must be non-nil. instLimit >= 0; 0 uses DefaultInstructionLimit.
// Postcondition: Returns a ready LimitScript, or an error if the file fails to
// load or does not define max_homes as a function.
func LoadLimitScript(path string, instLimit int, logger *zap.Logger) (*LimitScript, error) {
	L, cancel := NewSandboxedState(instLimit)
	RegisterModules(L, logger)

	if err := L.DoFile(path); err != nil {
		cancel()
		L.Close()
		return nil, fmt.Errorf("scripting: loading %q: %w", path, err)
	}
	if _, ok := L.GetGlobal(LimitHook).(*lua.LFunction); !ok {
		cancel()
		L.Close()
		return nil, fmt.Errorf("%w in %q", ErrHookMissing, path)
	}

	logger.Info("limit script loaded", zap.String("path", path))
	return &LimitScript{
		L:         L,
		cancel:    cancel,
		instLimit: instLimit,
		path:      path,
		logger:    logger,
	}, nil
}

// MaxHomes calls max_homes(tier, base). It satisfies home.LimitFunc.
//
// Postcondition: ok is false when the hook raised an error, ran out of
// instructions or returned something other than a finite number; the
// caller then applies the built-in formula. Fractional results are floored
// and negative results other than -1 count as 0.
func (s *LimitScript) MaxHomes(tier, base int) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.L == nil {
		return 0, false
	}

	s.cancel()
	s.cancel = resetBudget(s.L, s.instLimit)

	if err := s.L.CallByParam(lua.P{
		Fn:      s.L.GetGlobal(LimitHook),
		NRet:    1,
		Protect: true,
	}, lua.LNumber(tier), lua.LNumber(base)); err != nil {
		s.logger.Warn("limit script failed; using built-in formula",
			zap.String("path", s.path),
			zap.Int("tier", tier),
			zap.Int("base", base),
			zap.Error(err),
		)
		return 0, false
	}

	ret := s.L.Get(-1)
	s.L.Pop(1)

	n, ok := ret.(lua.LNumber)
	f := float64(n)
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
		s.logger.Warn("limit script returned a non-numeric cap; using built-in formula",
			zap.String("path", s.path),
			zap.String("type", ret.Type().String()),
		)
		return 0, false
	}
	if f > math.MaxInt32 {
		return math.MaxInt32, true
	}
	if f == home.Unlimited {
		return home.Unlimited, true
	}
	if f < 0 {
		return 0, true
	}
	return int(math.Floor(f)), true
}

// Close releases the Lua VM. MaxHomes reports ok=false afterwards.
func (s *LimitScript) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.L == nil {
		return
	}
	s.cancel()
	s.L.Close()
	s.L = nil
}
