package discord

import (
	"github.com/bwmarrin/discordgo"
	embed "github.com/clinet/discordgo-embed"
	"github.com/keshon/groovebox/internal/command"
)

const (
	EmbedColor   = 0xb01e66
	InfoColor    = 0x3498db
	WarningColor = 0xe67e22
	ErrorColor   = 0xe74c3c
)

func InfoEmbed(title, description string) *discordgo.MessageEmbed {
	return newEmbed(title, description, InfoColor)
}

func WarningEmbed(title, description string) *discordgo.MessageEmbed {
	return newEmbed(title, description, WarningColor)
}

func ErrorEmbed(title, description string) *discordgo.MessageEmbed {
	return newEmbed(title, description, ErrorColor)
}

func newEmbed(title, description string, color int) *discordgo.MessageEmbed {
	e := embed.NewEmbed().SetColor(color)
	if title != "" {
		e.SetTitle(title)
	}
	if description != "" {
		e.SetDescription(description)
	}
	return e.Truncate().MessageEmbed
}

// SessionResponder replies to interactions through a live session.
type SessionResponder struct {
	Session *discordgo.Session
}

var _ command.Responder = SessionResponder{}

func (r SessionResponder) Respond(e *discordgo.InteractionCreate, em *discordgo.MessageEmbed, ephemeral bool) error {
	return r.Session.InteractionRespond(e.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Flags:  flags(ephemeral),
			Embeds: []*discordgo.MessageEmbed{em},
		},
	})
}

// Defer acknowledges an interaction without an immediate reply.
func (r SessionResponder) Defer(e *discordgo.InteractionCreate, ephemeral bool) error {
	return r.Session.InteractionRespond(e.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Flags: flags(ephemeral)},
	})
}

func (r SessionResponder) Followup(e *discordgo.InteractionCreate, em *discordgo.MessageEmbed, ephemeral bool) error {
	_, err := r.Session.FollowupMessageCreate(e.Interaction, true, &discordgo.WebhookParams{
		Flags:  flags(ephemeral),
		Embeds: []*discordgo.MessageEmbed{em},
	})
	return err
}

func flags(ephemeral bool) discordgo.MessageFlags {
	if ephemeral {
		return discordgo.MessageFlagsEphemeral
	}
	return 0
}
