package discord

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/keshon/groovebox/internal/command"
	"github.com/keshon/groovebox/pkg/cmd"
	"github.com/keshon/groovebox/pkg/util"
)

const (
	// registerWorkers bounds concurrent guild command syncs on startup.
	registerWorkers = 4
	commandTimeout  = 2 * time.Minute
)

type Options struct {
	Token             string
	InitSlashCommands bool
	Logger            *slog.Logger
}

// Bot owns the gateway session and routes interactions to registered commands.
type Bot struct {
	dg       *discordgo.Session
	commands *cmd.Registry
	opts     Options
	log      *slog.Logger

	ctx context.Context // set by Run; parent of command contexts
}

func NewBot(commands *cmd.Registry, opts Options) (*Bot, error) {
	dg, err := discordgo.New("Bot " + opts.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}

	b := &Bot{
		dg:       dg,
		commands: commands,
		opts:     opts,
		log:      log.With(slog.String("component", "discord")),
		ctx:      context.Background(),
	}
	b.configureIntents()
	dg.AddHandler(b.onReady)
	dg.AddHandler(b.onGuildCreate)
	dg.AddHandler(b.onInteractionCreate)
	return b, nil
}

// Session is the gateway session; it opens voice connections for the engine.
func (b *Bot) Session() *discordgo.Session { return b.dg }

// Run opens the gateway and blocks until ctx is done.
func (b *Bot) Run(ctx context.Context) error {
	b.ctx = ctx
	if err := b.dg.Open(); err != nil {
		return fmt.Errorf("failed to open Discord session: %w", err)
	}
	defer b.dg.Close()

	<-ctx.Done()
	b.log.Info("Shutdown signal received, closing gateway")
	return nil
}

// FindUserVoiceState finds the voice channel of a user from the state cache.
func (b *Bot) FindUserVoiceState(guildID, userID string) (*VoiceState, error) {
	return FindUserVoiceState(b.dg.State, guildID, userID)
}

func (b *Bot) configureIntents() {
	b.dg.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildVoiceStates |
		discordgo.IntentsGuildMessages
}

func (b *Bot) onReady(s *discordgo.Session, r *discordgo.Ready) {
	if !b.opts.InitSlashCommands {
		b.log.Info("Registering slash commands skipped")
	} else {
		err := util.Parallel(b.ctx, r.Guilds, registerWorkers, func(_ context.Context, g *discordgo.Guild) error {
			if err := b.registerCommands(g.ID); err != nil {
				b.log.Error("Error registering slash commands", slog.String("guild", g.ID), slog.Any("err", err))
			}
			return nil
		})
		if err != nil {
			b.log.Error("Command registration aborted", slog.Any("err", err))
		}
	}

	b.log.Info("Discord bot is running",
		slog.String("user", r.User.Username),
		slog.Int("guilds", len(r.Guilds)))
}

func (b *Bot) onGuildCreate(s *discordgo.Session, g *discordgo.GuildCreate) {
	b.log.Info("Guild available", slog.String("guild", g.ID), slog.String("name", g.Name))

	if !b.opts.InitSlashCommands {
		return
	}
	if err := b.registerCommands(g.ID); err != nil {
		b.log.Error("Failed to register commands for guild", slog.String("guild", g.ID), slog.Any("err", err))
	}
}

func (b *Bot) onInteractionCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		b.log.Debug("Unhandled interaction type", slog.Int("type", int(i.Type)))
		return
	}

	name := i.ApplicationCommandData().Name
	c, ok := b.commands.Get(name)
	if !ok {
		b.log.Warn("Unknown command", slog.String("command", name))
		return
	}

	ctx, cancel := context.WithTimeout(b.ctx, commandTimeout)
	defer cancel()

	responder := SessionResponder{Session: s}
	inv := &cmd.Invocation{Data: &command.SlashInteractionContext{
		Session:   s,
		Event:     i,
		Responder: responder,
	}}
	if err := c.Run(ctx, inv); err != nil {
		b.log.Error("Error running slash command", slog.String("command", name), slog.Any("err", err))
		if !errors.Is(err, context.Canceled) {
			_ = responder.Respond(i, ErrorEmbed("", fmt.Sprintf("Error running slash command: %v", err)), true)
		}
	}
}
