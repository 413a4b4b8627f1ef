package music

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/disgoorg/snowflake/v2"
	"github.com/keshon/groovebox/internal/command"
	"github.com/keshon/groovebox/internal/discord"
	"github.com/keshon/groovebox/internal/music"
	"github.com/keshon/groovebox/internal/playback"
	"github.com/keshon/groovebox/pkg/util"
)

const queueListLimit = 10

// Service is the part of music.Service the slash command drives.
type Service interface {
	Play(ctx context.Context, req music.PlayRequest) (music.PlayResult, error)
	Join(ctx context.Context, guildID, channelID snowflake.ID) error
	Leave(ctx context.Context, guildID snowflake.ID) (int, error)
	Deafen(ctx context.Context, guildID snowflake.ID) (bool, error)
	SetLoop(guildID snowflake.ID, mode playback.LoopMode)
	Queue(guildID snowflake.ID) (playback.Snapshot, bool)
}

// VoiceLocator finds the voice channel a user sits in.
type VoiceLocator interface {
	FindUserVoiceState(guildID, userID string) (*discord.VoiceState, error)
}

type MusicCommand struct {
	Music Service
	Voice VoiceLocator
	Log   *slog.Logger
}

func (c *MusicCommand) Name() string        { return "music" }
func (c *MusicCommand) Description() string { return "Control music playback" }
func (c *MusicCommand) Group() string       { return "music" }
func (c *MusicCommand) Category() string    { return "🎵 Music" }

func (c *MusicCommand) SlashDefinition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        c.Name(),
		Description: c.Description(),
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "play",
				Description: "Play a track or add it to the queue",
				Options: []*discordgo.ApplicationCommandOption{
					{
						Type:        discordgo.ApplicationCommandOptionString,
						Name:        "input",
						Description: "A search query or YouTube URL",
						Required:    true,
					},
				},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "join",
				Description: "Join your voice channel",
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "leave",
				Description: "Leave the voice channel and clear the queue",
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "deafen",
				Description: "Deafen the bot",
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "loop",
				Description: "Set the queue mode",
				Options: []*discordgo.ApplicationCommandOption{
					{
						Type:        discordgo.ApplicationCommandOptionString,
						Name:        "mode",
						Description: "normal drops finished tracks, loop requeues them",
						Required:    true,
						Choices: []*discordgo.ApplicationCommandOptionChoice{
							{Name: "Normal", Value: playback.LoopNormal.String()},
							{Name: "Loop", Value: playback.LoopRotate.String()},
						},
					},
				},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "queue",
				Description: "Show the current track and what is queued",
			},
		},
	}
}

func (c *MusicCommand) Run(ctx context.Context, sc *command.SlashInteractionContext) error {
	e := sc.Event
	r := sc.Responder

	guildID, err := snowflake.Parse(e.GuildID)
	if err != nil {
		return r.Respond(e, discord.ErrorEmbed("🎵 Error", "This command only works in a server."), true)
	}

	sub, args := command.Subcommand(e)
	switch sub {
	case "play":
		return c.runPlay(ctx, sc, guildID, args["input"])
	case "join":
		return c.runJoin(ctx, sc, guildID)
	case "leave":
		return c.runLeave(ctx, sc, guildID)
	case "deafen":
		return c.runDeafen(ctx, sc, guildID)
	case "loop":
		return c.runLoop(sc, guildID, args["mode"])
	case "queue":
		return c.runQueue(sc, guildID)
	case "":
		return r.Respond(e, discord.ErrorEmbed("🎵 Error", "Missing subcommand."), true)
	default:
		return r.Respond(e, discord.ErrorEmbed("🎵 Error", fmt.Sprintf("Unknown subcommand: %s", sub)), true)
	}
}

func (c *MusicCommand) runPlay(ctx context.Context, sc *command.SlashInteractionContext, guildID snowflake.ID, input string) error {
	e := sc.Event
	r := sc.Responder

	if strings.TrimSpace(input) == "" {
		return r.Respond(e, discord.ErrorEmbed("🎵 Error", "Input is required."), true)
	}

	// resolution can take longer than the interaction deadline
	if err := r.Defer(e, false); err != nil {
		return fmt.Errorf("failed to send deferred response: %w", err)
	}

	user := command.InvokingUser(e)
	requester, _ := snowflake.Parse(user.ID)

	res, err := c.Music.Play(ctx, music.PlayRequest{
		GuildID:   guildID,
		ChannelID: c.userChannel(e.GuildID, user.ID),
		Requester: requester,
		Query:     input,
	})
	if err != nil {
		title, desc := describeError(err)
		return r.Followup(e, discord.ErrorEmbed(title, desc), true)
	}

	return r.Followup(e, trackEmbed(res), false)
}

func (c *MusicCommand) runJoin(ctx context.Context, sc *command.SlashInteractionContext, guildID snowflake.ID) error {
	e := sc.Event
	user := command.InvokingUser(e)

	if err := c.Music.Join(ctx, guildID, c.userChannel(e.GuildID, user.ID)); err != nil {
		title, desc := describeError(err)
		return sc.Responder.Respond(e, discord.ErrorEmbed(title, desc), true)
	}
	return sc.Responder.Respond(e, discord.InfoEmbed("", "Joined voice channel"), false)
}

func (c *MusicCommand) runLeave(ctx context.Context, sc *command.SlashInteractionContext, guildID snowflake.ID) error {
	e := sc.Event

	dropped, err := c.Music.Leave(ctx, guildID)
	if errors.Is(err, music.ErrNotConnected) && dropped > 0 {
		desc := fmt.Sprintf("Not in a voice channel. Cleared %d track(s)", dropped)
		return sc.Responder.Respond(e, discord.WarningEmbed("", desc), false)
	}
	if err != nil {
		title, desc := describeError(err)
		return sc.Responder.Respond(e, discord.ErrorEmbed(title, desc), true)
	}

	desc := "Left voice channel"
	if dropped > 0 {
		desc = fmt.Sprintf("Left voice channel and cleared %d track(s)", dropped)
	}
	return sc.Responder.Respond(e, discord.InfoEmbed("", desc), false)
}

func (c *MusicCommand) runDeafen(ctx context.Context, sc *command.SlashInteractionContext, guildID snowflake.ID) error {
	e := sc.Event

	already, err := c.Music.Deafen(ctx, guildID)
	switch {
	case err != nil:
		title, desc := describeError(err)
		return sc.Responder.Respond(e, discord.ErrorEmbed(title, desc), true)
	case already:
		return sc.Responder.Respond(e, discord.WarningEmbed("", "Already deafened"), true)
	default:
		return sc.Responder.Respond(e, discord.InfoEmbed("", "Deafened"), true)
	}
}

func (c *MusicCommand) runLoop(sc *command.SlashInteractionContext, guildID snowflake.ID, raw string) error {
	e := sc.Event

	mode, err := playback.ParseLoopMode(raw)
	if err != nil {
		return sc.Responder.Respond(e, discord.ErrorEmbed("🎵 Error", err.Error()), true)
	}
	c.Music.SetLoop(guildID, mode)

	desc := "Finished tracks are dropped from the queue."
	if mode == playback.LoopRotate {
		desc = "Finished tracks go to the back of the queue."
	}
	return sc.Responder.Respond(e, discord.InfoEmbed("🔁 Queue mode: "+mode.String(), desc), false)
}

func (c *MusicCommand) runQueue(sc *command.SlashInteractionContext, guildID snowflake.ID) error {
	e := sc.Event

	snap, ok := c.Music.Queue(guildID)
	if !ok || snap.Current == nil {
		return sc.Responder.Respond(e, discord.WarningEmbed("🎵 Queue", "Nothing is playing."), true)
	}
	return sc.Responder.Respond(e, queueEmbed(snap), false)
}

// userChannel returns the invoking user's voice channel, zero when they are not in one.
func (c *MusicCommand) userChannel(guildID, userID string) snowflake.ID {
	vs, err := c.Voice.FindUserVoiceState(guildID, userID)
	if err != nil {
		return 0
	}
	id, err := snowflake.Parse(vs.ChannelID)
	if err != nil {
		c.logger().Warn("Bad voice channel id", slog.String("channel", vs.ChannelID), slog.Any("err", err))
		return 0
	}
	return id
}

func (c *MusicCommand) logger() *slog.Logger {
	if c.Log != nil {
		return c.Log
	}
	return slog.Default()
}

// describeError maps service failures to what the user sees.
func describeError(err error) (title, desc string) {
	switch {
	case errors.Is(err, music.ErrEmptyQuery):
		return "🎵 Error", "Input is required."
	case errors.Is(err, music.ErrNotInVoice):
		return "🎵 Voice Error", "You must be in a voice channel to use this command."
	case errors.Is(err, music.ErrNotConnected):
		return "🎵 Voice Error", "Not in a voice channel."
	case errors.Is(err, music.ErrResolve):
		return "🎵 Error", fmt.Sprintf("Error fetching track: %v", err)
	case errors.Is(err, music.ErrJoin):
		return "🎵 Voice Error", fmt.Sprintf("Could not join your channel: %v", err)
	case errors.Is(err, music.ErrPrepare), errors.Is(err, music.ErrStart):
		return "🎵 Playback Error", fmt.Sprintf("Error getting track: %v", err)
	default:
		return "🎵 Error", fmt.Sprintf("Failed: %v", err)
	}
}

func trackEmbed(res music.PlayResult) *discordgo.MessageEmbed {
	meta := res.Meta
	title := "🎶 Now Playing"
	if !res.Started {
		title = fmt.Sprintf("➕ Queued at position %d", res.Position)
	}

	em := discord.InfoEmbed(title, fmt.Sprintf("**%s** by **%s**", meta.Title, meta.Channel))
	em.URL = meta.URL
	em.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: meta.Thumbnail}
	em.Fields = append(em.Fields, &discordgo.MessageEmbedField{
		Name: "Duration", Value: util.FormatDuration(meta.Duration), Inline: true,
	})
	if meta.Requester != 0 {
		em.Fields = append(em.Fields, &discordgo.MessageEmbedField{
			Name: "Requested by", Value: fmt.Sprintf("<@%s>", meta.Requester), Inline: true,
		})
	}
	return em
}

func queueEmbed(snap playback.Snapshot) *discordgo.MessageEmbed {
	var b strings.Builder
	cur := snap.Current.Meta
	fmt.Fprintf(&b, "**Now:** %s (%s)\n", cur.Title, util.FormatDuration(cur.Duration))

	for i, it := range snap.Pending {
		if i == queueListLimit {
			fmt.Fprintf(&b, "…and %d more\n", len(snap.Pending)-queueListLimit)
			break
		}
		fmt.Fprintf(&b, "%d. %s (%s)\n", i+1, it.Meta.Title, util.FormatDuration(it.Meta.Duration))
	}

	em := discord.InfoEmbed("🎵 Queue", b.String())
	em.Footer = &discordgo.MessageEmbedFooter{
		Text: fmt.Sprintf("%d queued · mode %s", len(snap.Pending), snap.Loop),
	}
	return em
}
