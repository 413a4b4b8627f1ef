package core

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/dustin/go-humanize"
	"github.com/keshon/groovebox/internal/command"
	"github.com/keshon/groovebox/internal/discord"
	"github.com/keshon/groovebox/internal/storage"
	"github.com/keshon/groovebox/pkg/util"
)

// HistoryReader is the storage the history command reads from.
type HistoryReader interface {
	FetchCommandHistory(ctx context.Context, guildID string) ([]storage.CommandHistoryRecord, error)
}

type HistoryCommand struct {
	Storage HistoryReader
}

func (c *HistoryCommand) Name() string        { return "history" }
func (c *HistoryCommand) Description() string { return "Show recently used commands" }
func (c *HistoryCommand) Group() string       { return "core" }
func (c *HistoryCommand) Category() string    { return "🛠️ Maintenance" }

func (c *HistoryCommand) SlashDefinition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        c.Name(),
		Description: c.Description(),
		Type:        discordgo.ChatApplicationCommand,
	}
}

func (c *HistoryCommand) Run(ctx context.Context, sc *command.SlashInteractionContext) error {
	e := sc.Event

	records, err := c.Storage.FetchCommandHistory(ctx, e.GuildID)
	if err != nil {
		return sc.Responder.Respond(e, discord.ErrorEmbed("📜 History", "Failed to fetch command history."), true)
	}
	if len(records) == 0 {
		return sc.Responder.Respond(e, discord.WarningEmbed("📜 History", "No commands recorded yet."), true)
	}

	var b strings.Builder
	for i := len(records) - 1; i >= 0; i-- {
		rec := records[i]
		line := fmt.Sprintf("`%s` **%s** /%s", util.FormatDateTpl(rec.Datetime, "YYYY-MM-DD hh:mm"), rec.Username, rec.Command)
		if rec.Param != "" {
			line += " " + rec.Param
		}
		b.WriteString(line + " · " + humanize.Time(rec.Datetime) + "\n")
	}
	return sc.Responder.Respond(e, discord.InfoEmbed("📜 History", b.String()), true)
}
