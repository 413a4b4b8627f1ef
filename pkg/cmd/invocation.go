// Package cmd provides a transport-agnostic command core: a command is something
// with a name, description, and Run(ctx, invocation). How it is registered and
// dispatched (Discord slash, CLI) is defined by adapters that wrap this.
package cmd

import "context"

// Invocation carries what a runner hands to a command. Adapters put their own
// context into Data (for Discord, the session and interaction event).
type Invocation struct {
	Args []string
	Data any
}

// Command is the universal contract: identity plus execution. Flags,
// subcommands and transport-specific registration stay in adapters.
type Command interface {
	Name() string
	Description() string
	Run(ctx context.Context, inv *Invocation) error
}
