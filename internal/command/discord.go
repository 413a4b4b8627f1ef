package command

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/keshon/groovebox/pkg/cmd"
)

// Responder sends interaction replies. Commands never talk to the session
// directly for replies, so they can be exercised without a gateway.
type Responder interface {
	Respond(e *discordgo.InteractionCreate, embed *discordgo.MessageEmbed, ephemeral bool) error
	Defer(e *discordgo.InteractionCreate, ephemeral bool) error
	Followup(e *discordgo.InteractionCreate, embed *discordgo.MessageEmbed, ephemeral bool) error
}

// SlashInteractionContext is what the runtime passes when executing a slash command.
type SlashInteractionContext struct {
	Session   *discordgo.Session
	Event     *discordgo.InteractionCreate
	Responder Responder
}

// Latency is the gateway heartbeat latency, zero without a session.
func (c *SlashInteractionContext) Latency() int64 {
	if c.Session == nil {
		return 0
	}
	return c.Session.HeartbeatLatency().Milliseconds()
}

// SlashProvider is how a command is registered with Discord.
type SlashProvider interface {
	SlashDefinition() *discordgo.ApplicationCommand
}

// DiscordMeta is exposed by the adapter so middleware and help output can read
// the category without depending on the concrete command type.
type DiscordMeta interface {
	Group() string
	Category() string
}

// DiscordCommand is what individual Discord commands implement.
type DiscordCommand interface {
	Name() string
	Description() string
	Group() string
	Category() string
	Run(ctx context.Context, sc *SlashInteractionContext) error
}

// DiscordAdapter adapts a DiscordCommand to cmd.Command so it can live in the
// universal registry.
type DiscordAdapter struct {
	Cmd DiscordCommand
}

func (a *DiscordAdapter) Name() string        { return a.Cmd.Name() }
func (a *DiscordAdapter) Description() string { return a.Cmd.Description() }
func (a *DiscordAdapter) Group() string       { return a.Cmd.Group() }
func (a *DiscordAdapter) Category() string    { return a.Cmd.Category() }

func (a *DiscordAdapter) Run(ctx context.Context, inv *cmd.Invocation) error {
	sc, ok := inv.Data.(*SlashInteractionContext)
	if !ok {
		return fmt.Errorf("%s: unsupported invocation %T", a.Cmd.Name(), inv.Data)
	}
	return a.Cmd.Run(ctx, sc)
}

func (a *DiscordAdapter) SlashDefinition() *discordgo.ApplicationCommand {
	if sp, ok := a.Cmd.(SlashProvider); ok {
		return sp.SlashDefinition()
	}
	return nil
}

// RegisterCommand adds a Discord command to reg with middlewares applied.
func RegisterCommand(reg *cmd.Registry, discordCmd DiscordCommand, mws ...cmd.Middleware) error {
	return reg.Register(cmd.Apply(&DiscordAdapter{Cmd: discordCmd}, mws...))
}

// Definition extracts the ApplicationCommand definition from a registered
// command, walking through middleware wrappers.
func Definition(c cmd.Command) *discordgo.ApplicationCommand {
	slash, ok := cmd.Root(c).(SlashProvider)
	if !ok {
		return nil
	}
	def := slash.SlashDefinition()
	if def != nil && def.Type == 0 {
		def.Type = discordgo.ChatApplicationCommand
	}
	return def
}

// InvokingUser returns the user behind an interaction, in guilds or DMs.
func InvokingUser(e *discordgo.InteractionCreate) *discordgo.User {
	if e.Member != nil && e.Member.User != nil {
		return e.Member.User
	}
	if e.User != nil {
		return e.User
	}
	return &discordgo.User{ID: "unknown", Username: "Unknown"}
}

// Subcommand returns the first subcommand option and its string options by name.
func Subcommand(e *discordgo.InteractionCreate) (string, map[string]string) {
	data := e.ApplicationCommandData()
	if len(data.Options) == 0 {
		return "", nil
	}
	sub := data.Options[0]
	args := make(map[string]string, len(sub.Options))
	for _, opt := range sub.Options {
		if opt.Type == discordgo.ApplicationCommandOptionString {
			args[opt.Name] = opt.StringValue()
		}
	}
	return sub.Name, args
}
