package core

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/keshon/groovebox/internal/command"
	"github.com/keshon/groovebox/internal/discord"
	"github.com/keshon/groovebox/internal/storage"
	"github.com/keshon/groovebox/pkg/cmd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureResponder struct {
	embed     *discordgo.MessageEmbed
	ephemeral bool
}

func (c *captureResponder) Respond(_ *discordgo.InteractionCreate, em *discordgo.MessageEmbed, ephemeral bool) error {
	c.embed, c.ephemeral = em, ephemeral
	return nil
}

func (c *captureResponder) Defer(*discordgo.InteractionCreate, bool) error { return nil }

func (c *captureResponder) Followup(_ *discordgo.InteractionCreate, em *discordgo.MessageEmbed, ephemeral bool) error {
	return c.Respond(nil, em, ephemeral)
}

type historyStub struct {
	records []storage.CommandHistoryRecord
	err     error
}

func (h historyStub) FetchCommandHistory(context.Context, string) ([]storage.CommandHistoryRecord, error) {
	return h.records, h.err
}

func slashCtx(r command.Responder) *command.SlashInteractionContext {
	return &command.SlashInteractionContext{
		Event:     &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{GuildID: "1"}},
		Responder: r,
	}
}

func TestPing(t *testing.T) {
	r := &captureResponder{}
	require.NoError(t, (&PingCommand{}).Run(context.Background(), slashCtx(r)))
	assert.Equal(t, "🏓 Pong! 0ms", r.embed.Description)
}

func TestHistory_NewestFirst(t *testing.T) {
	at := time.Date(2025, 3, 1, 12, 30, 0, 0, time.UTC)
	r := &captureResponder{}
	c := &HistoryCommand{Storage: historyStub{records: []storage.CommandHistoryRecord{
		{Username: "alice", Command: "music", Param: "play", Datetime: at},
		{Username: "bob", Command: "ping", Datetime: at.Add(time.Minute)},
	}}}

	require.NoError(t, c.Run(context.Background(), slashCtx(r)))

	assert.True(t, r.ephemeral)
	lines := strings.Split(strings.TrimSpace(r.embed.Description), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "`2025-03-01 12:31` **bob** /ping · "), lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "`2025-03-01 12:30` **alice** /music play · "), lines[1])
	assert.True(t, strings.HasSuffix(lines[1], " ago"), lines[1])
}

func TestHistory_EmptyAndFailure(t *testing.T) {
	r := &captureResponder{}
	require.NoError(t, (&HistoryCommand{Storage: historyStub{}}).Run(context.Background(), slashCtx(r)))
	assert.Equal(t, discord.WarningColor, r.embed.Color)

	require.NoError(t, (&HistoryCommand{Storage: historyStub{err: errors.New("db")}}).Run(context.Background(), slashCtx(r)))
	assert.Equal(t, discord.ErrorColor, r.embed.Color)
}

func TestHelp_GroupsByCategoryWeight(t *testing.T) {
	reg := cmd.NewRegistry()
	require.NoError(t, command.RegisterCommand(reg, &PingCommand{}))
	require.NoError(t, command.RegisterCommand(reg, &HistoryCommand{}))
	require.NoError(t, command.RegisterCommand(reg, &HelpCommand{Commands: reg}))

	r := &captureResponder{}
	require.NoError(t, (&HelpCommand{Commands: reg}).Run(context.Background(), slashCtx(r)))

	assert.Equal(t,
		"**🕯️ Information**\n`/help` Show all commands\n\n"+
			"**🛠️ Maintenance**\n`/history` Show recently used commands\n`/ping` Check bot latency",
		r.embed.Description)
}
