package core

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/keshon/groovebox/internal/command"
	"github.com/keshon/groovebox/internal/discord"
)

type PingCommand struct{}

func (c *PingCommand) Name() string        { return "ping" }
func (c *PingCommand) Description() string { return "Check bot latency" }
func (c *PingCommand) Group() string       { return "core" }
func (c *PingCommand) Category() string    { return "🛠️ Maintenance" }

func (c *PingCommand) SlashDefinition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        c.Name(),
		Description: c.Description(),
		Type:        discordgo.ChatApplicationCommand,
	}
}

func (c *PingCommand) Run(_ context.Context, sc *command.SlashInteractionContext) error {
	return sc.Responder.Respond(sc.Event, discord.InfoEmbed("", fmt.Sprintf("🏓 Pong! %dms", sc.Latency())), false)
}
