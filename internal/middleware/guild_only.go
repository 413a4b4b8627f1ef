package middleware

import (
	"context"

	"github.com/keshon/groovebox/internal/command"
	"github.com/keshon/groovebox/internal/discord"
	"github.com/keshon/groovebox/pkg/cmd"
)

// WithGuildOnly wraps a command so it answers DMs with an error instead of running.
func WithGuildOnly() cmd.Middleware {
	return func(c cmd.Command) cmd.Command {
		return cmd.Wrap(c, func(ctx context.Context, inv *cmd.Invocation) error {
			if v, ok := inv.Data.(*command.SlashInteractionContext); ok && v.Event.GuildID == "" {
				return v.Responder.Respond(v.Event, discord.ErrorEmbed("", "This command only works in a server."), true)
			}
			return c.Run(ctx, inv)
		})
	}
}
