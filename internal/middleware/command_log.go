package middleware

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/keshon/groovebox/internal/command"
	"github.com/keshon/groovebox/internal/storage"
	"github.com/keshon/groovebox/pkg/cmd"
)

// HistoryWriter stores executed commands.
type HistoryWriter interface {
	AppendCommandToHistory(ctx context.Context, rec storage.CommandHistoryRecord) error
}

// CommandCounter counts executed commands by name.
type CommandCounter interface {
	Command(name string)
}

// WithCommandLogger records every slash command run in the history store and
// the counter. Either may be nil.
func WithCommandLogger(store HistoryWriter, counter CommandCounter, log *slog.Logger) cmd.Middleware {
	if log == nil {
		log = slog.Default()
	}
	log = log.With(slog.String("component", "discord"))

	return func(c cmd.Command) cmd.Command {
		return cmd.Wrap(c, func(ctx context.Context, inv *cmd.Invocation) error {
			started := time.Now()
			err := c.Run(ctx, inv)

			v, ok := inv.Data.(*command.SlashInteractionContext)
			if !ok {
				return err
			}
			e := v.Event
			user := command.InvokingUser(e)
			param := commandParam(e)

			attrs := []any{
				slog.String("command", c.Name()),
				slog.String("guild", e.GuildID),
				slog.String("user", user.Username),
				slog.Duration("took", time.Since(started)),
			}
			if param != "" {
				attrs = append(attrs, slog.String("param", param))
			}
			if err != nil {
				log.Warn("Command failed", append(attrs, slog.Any("err", err))...)
			} else {
				log.Debug("Command handled", attrs...)
			}

			if counter != nil {
				counter.Command(c.Name())
			}
			if store != nil {
				rec := storage.CommandHistoryRecord{
					GuildID:   e.GuildID,
					ChannelID: e.ChannelID,
					UserID:    user.ID,
					Username:  user.Username,
					Command:   c.Name(),
					Param:     param,
					Datetime:  started,
				}
				rec.ChannelName, rec.GuildName = placeNames(v.Session, e.GuildID, e.ChannelID)
				// the interaction context may already be cancelled when the command returns
				if werr := store.AppendCommandToHistory(context.WithoutCancel(ctx), rec); werr != nil {
					log.Warn("Failed to log command", slog.String("command", c.Name()), slog.Any("err", werr))
				}
			}
			return err
		})
	}
}

// commandParam flattens the subcommand and its options, e.g. "play never gonna".
func commandParam(e *discordgo.InteractionCreate) string {
	if e.Type != discordgo.InteractionApplicationCommand {
		return ""
	}
	var parts []string
	var walk func(opts []*discordgo.ApplicationCommandInteractionDataOption)
	walk = func(opts []*discordgo.ApplicationCommandInteractionDataOption) {
		for _, o := range opts {
			switch o.Type {
			case discordgo.ApplicationCommandOptionSubCommand, discordgo.ApplicationCommandOptionSubCommandGroup:
				parts = append(parts, o.Name)
				walk(o.Options)
			case discordgo.ApplicationCommandOptionString:
				parts = append(parts, o.StringValue())
			}
		}
	}
	walk(e.ApplicationCommandData().Options)
	return strings.Join(parts, " ")
}

// placeNames reads channel and guild names from the session state cache.
func placeNames(s *discordgo.Session, guildID, channelID string) (channel, guild string) {
	if s == nil || s.State == nil {
		return "", ""
	}
	if ch, err := s.State.Channel(channelID); err == nil {
		channel = ch.Name
	}
	if g, err := s.State.Guild(guildID); err == nil {
		guild = g.Name
	}
	return channel, guild
}
