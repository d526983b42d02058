package scripting

import (
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/cory-johannsen/simplehome/internal/home"
)

// RegisterModules installs the homes table into L:
//
//	homes.UNLIMITED        the cap value that disables the limit
//	homes.default(t, b)    the built-in formula b + floor(t / 10)
//	homes.log(msg)         writes msg to the service log at info level
//
// Precondition: L must be from NewSandboxedState; logger must be non-nil.
func RegisterModules(L *lua.LState, logger *zap.Logger) {
	mod := L.NewTable()
	L.SetField(mod, "UNLIMITED", lua.LNumber(home.Unlimited))
	L.SetField(mod, "default", L.NewFunction(func(L *lua.LState) int {
		tier := L.CheckInt(1)
		base := L.CheckInt(2)
		L.Push(lua.LNumber(home.MaxHomes(tier, base)))
		return 1
	}))
	L.SetField(mod, "log", L.NewFunction(func(L *lua.LState) int {
		logger.Info("lua", zap.String("msg", L.CheckString(1)))
		return 0
	}))
	L.SetGlobal("homes", mod)
}
