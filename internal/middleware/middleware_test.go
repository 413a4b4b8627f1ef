package middleware

import (
	"context"
	"errors"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/keshon/groovebox/internal/command"
	"github.com/keshon/groovebox/internal/storage"
	"github.com/keshon/groovebox/pkg/cmd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubCommand struct {
	runs int
	err  error
}

func (s *stubCommand) Name() string        { return "music" }
func (s *stubCommand) Description() string { return "" }
func (s *stubCommand) Run(context.Context, *cmd.Invocation) error {
	s.runs++
	return s.err
}

type recordingResponder struct {
	embeds []*discordgo.MessageEmbed
}

func (r *recordingResponder) Respond(_ *discordgo.InteractionCreate, em *discordgo.MessageEmbed, _ bool) error {
	r.embeds = append(r.embeds, em)
	return nil
}
func (r *recordingResponder) Defer(*discordgo.InteractionCreate, bool) error { return nil }
func (r *recordingResponder) Followup(_ *discordgo.InteractionCreate, em *discordgo.MessageEmbed, _ bool) error {
	return r.Respond(nil, em, false)
}

type memoryHistory struct {
	records []storage.CommandHistoryRecord
}

func (m *memoryHistory) AppendCommandToHistory(_ context.Context, rec storage.CommandHistoryRecord) error {
	m.records = append(m.records, rec)
	return nil
}

type counter map[string]int

func (c counter) Command(name string) { c[name]++ }

func invocation(guildID string, r command.Responder) *cmd.Invocation {
	return &cmd.Invocation{Data: &command.SlashInteractionContext{
		Event: &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{
			Type:      discordgo.InteractionApplicationCommand,
			GuildID:   guildID,
			ChannelID: "5",
			Member:    &discordgo.Member{User: &discordgo.User{ID: "42", Username: "alice"}},
			Data: discordgo.ApplicationCommandInteractionData{
				Name: "music",
				Options: []*discordgo.ApplicationCommandInteractionDataOption{{
					Name: "play",
					Type: discordgo.ApplicationCommandOptionSubCommand,
					Options: []*discordgo.ApplicationCommandInteractionDataOption{{
						Name: "input", Type: discordgo.ApplicationCommandOptionString, Value: "never gonna",
					}},
				}},
			},
		}},
		Responder: r,
	}}
}

func TestWithGuildOnly(t *testing.T) {
	inner := &stubCommand{}
	c := cmd.Apply(inner, WithGuildOnly())
	r := &recordingResponder{}

	require.NoError(t, c.Run(context.Background(), invocation("", r)))
	assert.Zero(t, inner.runs)
	require.Len(t, r.embeds, 1)

	require.NoError(t, c.Run(context.Background(), invocation("1", r)))
	assert.Equal(t, 1, inner.runs)
}

func TestWithCommandLogger_RecordsHistory(t *testing.T) {
	inner := &stubCommand{}
	hist := &memoryHistory{}
	cnt := counter{}
	c := cmd.Apply(inner, WithCommandLogger(hist, cnt, nil))

	require.NoError(t, c.Run(context.Background(), invocation("1", &recordingResponder{})))

	require.Len(t, hist.records, 1)
	rec := hist.records[0]
	assert.Equal(t, "1", rec.GuildID)
	assert.Equal(t, "5", rec.ChannelID)
	assert.Equal(t, "42", rec.UserID)
	assert.Equal(t, "alice", rec.Username)
	assert.Equal(t, "music", rec.Command)
	assert.Equal(t, "play never gonna", rec.Param)
	assert.False(t, rec.Datetime.IsZero())
	assert.Equal(t, 1, cnt["music"])
}

func TestWithCommandLogger_PassesErrorsThrough(t *testing.T) {
	boom := errors.New("boom")
	hist := &memoryHistory{}
	c := cmd.Apply(&stubCommand{err: boom}, WithCommandLogger(hist, nil, nil))

	assert.ErrorIs(t, c.Run(context.Background(), invocation("1", &recordingResponder{})), boom)
	assert.Len(t, hist.records, 1)
}
