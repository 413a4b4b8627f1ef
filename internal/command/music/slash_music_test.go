package music

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/disgoorg/snowflake/v2"
	"github.com/keshon/groovebox/internal/command"
	"github.com/keshon/groovebox/internal/discord"
	"github.com/keshon/groovebox/internal/music"
	"github.com/keshon/groovebox/internal/playback"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type reply struct {
	kind      string
	embed     *discordgo.MessageEmbed
	ephemeral bool
}

type fakeResponder struct {
	replies []reply
}

func (f *fakeResponder) Respond(_ *discordgo.InteractionCreate, em *discordgo.MessageEmbed, ephemeral bool) error {
	f.replies = append(f.replies, reply{"respond", em, ephemeral})
	return nil
}

func (f *fakeResponder) Defer(_ *discordgo.InteractionCreate, ephemeral bool) error {
	f.replies = append(f.replies, reply{"defer", nil, ephemeral})
	return nil
}

func (f *fakeResponder) Followup(_ *discordgo.InteractionCreate, em *discordgo.MessageEmbed, ephemeral bool) error {
	f.replies = append(f.replies, reply{"followup", em, ephemeral})
	return nil
}

func (f *fakeResponder) last(t *testing.T) reply {
	t.Helper()
	require.NotEmpty(t, f.replies)
	return f.replies[len(f.replies)-1]
}

type fakeService struct {
	playReq   music.PlayRequest
	playRes   music.PlayResult
	playErr   error
	joined    snowflake.ID
	joinErr   error
	leaveN    int
	leaveErr  error
	deafened  bool
	deafenErr error
	loop      *playback.LoopMode
	snap      playback.Snapshot
	hasState  bool
}

func (f *fakeService) Play(_ context.Context, req music.PlayRequest) (music.PlayResult, error) {
	f.playReq = req
	return f.playRes, f.playErr
}

func (f *fakeService) Join(_ context.Context, _, channelID snowflake.ID) error {
	f.joined = channelID
	if channelID == 0 {
		return music.ErrNotInVoice
	}
	return f.joinErr
}

func (f *fakeService) Leave(context.Context, snowflake.ID) (int, error) { return f.leaveN, f.leaveErr }

func (f *fakeService) Deafen(context.Context, snowflake.ID) (bool, error) {
	return f.deafened, f.deafenErr
}

func (f *fakeService) SetLoop(_ snowflake.ID, mode playback.LoopMode) { f.loop = &mode }

func (f *fakeService) Queue(snowflake.ID) (playback.Snapshot, bool) { return f.snap, f.hasState }

type fakeVoice map[string]string

func (f fakeVoice) FindUserVoiceState(_, userID string) (*discord.VoiceState, error) {
	ch, ok := f[userID]
	if !ok {
		return nil, discord.ErrUserNotInVoice
	}
	return &discord.VoiceState{ChannelID: ch, UserID: userID}, nil
}

func slash(sub string, opts ...*discordgo.ApplicationCommandInteractionDataOption) *discordgo.InteractionCreate {
	return &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{
		Type:    discordgo.InteractionApplicationCommand,
		GuildID: "100",
		Member:  &discordgo.Member{User: &discordgo.User{ID: "42", Username: "alice"}},
		Data: discordgo.ApplicationCommandInteractionData{
			Name: "music",
			Options: []*discordgo.ApplicationCommandInteractionDataOption{{
				Name:    sub,
				Type:    discordgo.ApplicationCommandOptionSubCommand,
				Options: opts,
			}},
		},
	}}
}

func str(name, value string) *discordgo.ApplicationCommandInteractionDataOption {
	return &discordgo.ApplicationCommandInteractionDataOption{
		Name: name, Type: discordgo.ApplicationCommandOptionString, Value: value,
	}
}

func run(t *testing.T, svc *fakeService, voice fakeVoice, e *discordgo.InteractionCreate) *fakeResponder {
	t.Helper()
	r := &fakeResponder{}
	c := &MusicCommand{Music: svc, Voice: voice}
	require.NoError(t, c.Run(context.Background(), &command.SlashInteractionContext{Event: e, Responder: r}))
	return r
}

func TestPlay_Started(t *testing.T) {
	svc := &fakeService{playRes: music.PlayResult{
		Meta:    playback.NewTrackMetadata("Song", "Band", "https://youtu.be/x", "", 3*time.Minute, 42),
		Started: true,
	}}

	r := run(t, svc, fakeVoice{"42": "7"}, slash("play", str("input", "never gonna")))

	assert.Equal(t, snowflake.ID(100), svc.playReq.GuildID)
	assert.Equal(t, snowflake.ID(7), svc.playReq.ChannelID)
	assert.Equal(t, snowflake.ID(42), svc.playReq.Requester)
	assert.Equal(t, "never gonna", svc.playReq.Query)

	require.Len(t, r.replies, 2)
	assert.Equal(t, "defer", r.replies[0].kind)
	got := r.last(t)
	assert.Equal(t, "followup", got.kind)
	assert.False(t, got.ephemeral)
	assert.Equal(t, "🎶 Now Playing", got.embed.Title)
	assert.Contains(t, got.embed.Description, "**Song** by **Band**")
	assert.Equal(t, discord.InfoColor, got.embed.Color)
}

func TestPlay_Queued(t *testing.T) {
	svc := &fakeService{playRes: music.PlayResult{
		Meta:     playback.NewTrackMetadata("Second", "", "", "", 0, 42),
		Position: 2,
	}}

	r := run(t, svc, fakeVoice{"42": "7"}, slash("play", str("input", "second")))

	assert.Equal(t, "➕ Queued at position 2", r.last(t).embed.Title)
}

func TestPlay_ErrorsBecomeEphemeralEmbeds(t *testing.T) {
	cases := map[string]struct {
		err   error
		title string
	}{
		"not in voice": {music.ErrNotInVoice, "🎵 Voice Error"},
		"resolve":      {fmt.Errorf("%w: no results", music.ErrResolve), "🎵 Error"},
		"join":         {fmt.Errorf("%w: timeout", music.ErrJoin), "🎵 Voice Error"},
		"prepare":      {fmt.Errorf("%w: 403", music.ErrPrepare), "🎵 Playback Error"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			svc := &fakeService{playErr: tc.err}
			r := run(t, svc, fakeVoice{}, slash("play", str("input", "x")))

			got := r.last(t)
			assert.Equal(t, "followup", got.kind)
			assert.True(t, got.ephemeral)
			assert.Equal(t, tc.title, got.embed.Title)
			assert.Equal(t, discord.ErrorColor, got.embed.Color)
		})
	}
}

func TestPlay_BlankInputIsRejectedBeforeDefer(t *testing.T) {
	svc := &fakeService{}
	r := run(t, svc, fakeVoice{}, slash("play", str("input", "  ")))

	require.Len(t, r.replies, 1)
	assert.Equal(t, "respond", r.replies[0].kind)
	assert.Empty(t, svc.playReq.Query)
}

func TestJoin_RequiresVoiceChannel(t *testing.T) {
	svc := &fakeService{}

	r := run(t, svc, fakeVoice{}, slash("join"))
	assert.Equal(t, discord.ErrorColor, r.last(t).embed.Color)

	r = run(t, svc, fakeVoice{"42": "9"}, slash("join"))
	assert.Equal(t, snowflake.ID(9), svc.joined)
	assert.Equal(t, "Joined voice channel", r.last(t).embed.Description)
}

func TestLeave(t *testing.T) {
	r := run(t, &fakeService{leaveN: 3}, fakeVoice{}, slash("leave"))
	assert.Equal(t, "Left voice channel and cleared 3 track(s)", r.last(t).embed.Description)

	r = run(t, &fakeService{leaveErr: music.ErrNotConnected}, fakeVoice{}, slash("leave"))
	assert.Equal(t, "Not in a voice channel.", r.last(t).embed.Description)

	r = run(t, &fakeService{leaveN: 2, leaveErr: music.ErrNotConnected}, fakeVoice{}, slash("leave"))
	assert.Equal(t, "Not in a voice channel. Cleared 2 track(s)", r.last(t).embed.Description)
	assert.Equal(t, discord.WarningColor, r.last(t).embed.Color)
}

func TestDeafen(t *testing.T) {
	r := run(t, &fakeService{}, fakeVoice{}, slash("deafen"))
	assert.Equal(t, "Deafened", r.last(t).embed.Description)

	r = run(t, &fakeService{deafened: true}, fakeVoice{}, slash("deafen"))
	assert.Equal(t, "Already deafened", r.last(t).embed.Description)
	assert.Equal(t, discord.WarningColor, r.last(t).embed.Color)
}

func TestLoop(t *testing.T) {
	svc := &fakeService{}
	run(t, svc, fakeVoice{}, slash("loop", str("mode", "loop")))
	require.NotNil(t, svc.loop)
	assert.Equal(t, playback.LoopRotate, *svc.loop)

	svc = &fakeService{}
	r := run(t, svc, fakeVoice{}, slash("loop", str("mode", "shuffle")))
	assert.Nil(t, svc.loop)
	assert.True(t, r.last(t).ephemeral)
}

func TestQueue(t *testing.T) {
	r := run(t, &fakeService{}, fakeVoice{}, slash("queue"))
	assert.Equal(t, "Nothing is playing.", r.last(t).embed.Description)

	current := playback.QueueItem{Meta: playback.NewTrackMetadata("Now", "", "", "", 65*time.Second, 0)}
	svc := &fakeService{hasState: true, snap: playback.Snapshot{
		Current: &current,
		Pending: []playback.QueueItem{
			{Meta: playback.NewTrackMetadata("Next", "", "", "", 0, 0)},
		},
		Loop: playback.LoopRotate,
	}}
	r = run(t, svc, fakeVoice{}, slash("queue"))

	got := r.last(t).embed
	assert.Contains(t, got.Description, "**Now:** Now (1:05)")
	assert.Contains(t, got.Description, "1. Next (live)")
	assert.Equal(t, "1 queued · mode loop", got.Footer.Text)
}
