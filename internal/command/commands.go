// Package command provides the home command registry, parser and handler.
package command

// Handler identifiers.
const (
	HandlerSetHome = "sethome"
	HandlerDelHome = "delhome"
	HandlerHome    = "home"
)

// Command defines a player-invocable command.
type Command struct {
	// Name is the canonical command name.
	Name string
	// Aliases are alternate names for this command.
	Aliases []string
	// Usage is the argument synopsis shown in help, e.g. "<name>".
	Usage string
	// Help is the short help text displayed to players.
	Help string
	// Handler selects the Handler method that runs the command.
	Handler string
}

// BuiltinCommands returns the home commands.
func BuiltinCommands() []Command {
	return []Command{
		{Name: "sethome", Usage: "<name>", Help: "Save your current location as a home", Handler: HandlerSetHome},
		{Name: "delhome", Aliases: []string{"rmhome", "removehome"}, Usage: "<name>", Help: "Delete one of your homes", Handler: HandlerDelHome},
		{Name: "home", Aliases: []string{"homes"}, Usage: "[name]", Help: "Teleport to a home, or list your homes", Handler: HandlerHome},
	}
}
