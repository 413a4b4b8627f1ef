package voice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/disgoorg/snowflake/v2"
	"github.com/google/uuid"
	"github.com/keshon/groovebox/internal/playback"
)

const sendTimeout = time.Second

var (
	ErrNotConnected = errors.New("no voice connection for guild")
	ErrSendTimeout  = errors.New("voice send timed out")
	ErrNoSource     = errors.New("track has no source URL")
)

// Joiner opens voice connections. *discordgo.Session implements it.
type Joiner interface {
	ChannelVoiceJoin(gID, cID string, mute, deaf bool) (*discordgo.VoiceConnection, error)
}

// Locator finds a direct media URL for a track's source URL.
type Locator interface {
	StreamURL(ctx context.Context, sourceURL string) (string, error)
}

// FrameSink receives encoded opus frames for one guild.
type FrameSink interface {
	Speaking(on bool) error
	Send(done <-chan struct{}, frame []byte) error
}

type connection struct {
	vc   *discordgo.VoiceConnection
	deaf bool
}

func (c *connection) Speaking(on bool) error { return c.vc.Speaking(on) }

func (c *connection) Send(done <-chan struct{}, frame []byte) error {
	t := time.NewTimer(sendTimeout)
	defer t.Stop()
	select {
	case c.vc.OpusSend <- frame:
		return nil
	case <-done:
		return nil
	case <-t.C:
		return ErrSendTimeout
	}
}

// Engine owns the guild voice connections and creates tracks that stream into them.
type Engine struct {
	joiner     Joiner
	locator    Locator
	open       Opener
	newEncoder func() (Encoder, error)
	sinkFor    func(guildID snowflake.ID) (FrameSink, error)
	log        *slog.Logger

	mu    sync.Mutex
	conns map[snowflake.ID]*connection
}

type Option func(*Engine)

func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// WithOpener replaces ffmpeg as the PCM source.
func WithOpener(o Opener) Option {
	return func(e *Engine) { e.open = o }
}

// WithEncoder replaces the opus encoder factory.
func WithEncoder(fn func() (Encoder, error)) Option {
	return func(e *Engine) { e.newEncoder = fn }
}

// WithSink replaces the voice connection lookup used by playing tracks.
func WithSink(fn func(guildID snowflake.ID) (FrameSink, error)) Option {
	return func(e *Engine) { e.sinkFor = fn }
}

func New(joiner Joiner, locator Locator, opts ...Option) *Engine {
	e := &Engine{
		joiner:     joiner,
		locator:    locator,
		open:       OpenFFmpeg,
		newEncoder: NewOpusEncoder,
		log:        slog.Default(),
		conns:      make(map[snowflake.ID]*connection),
	}
	e.sinkFor = e.connectionSink
	for _, opt := range opts {
		opt(e)
	}
	e.log = e.log.With(slog.String("component", "voice"))
	return e
}

func (e *Engine) connection(guildID snowflake.ID) *connection {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.conns[guildID]
}

func (e *Engine) connectionSink(guildID snowflake.ID) (FrameSink, error) {
	c := e.connection(guildID)
	if c == nil {
		return nil, ErrNotConnected
	}
	return c, nil
}

// Join connects to channelID, moving an existing connection if needed.
func (e *Engine) Join(ctx context.Context, guildID, channelID snowflake.ID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	deaf := false
	if c := e.connection(guildID); c != nil {
		c.vc.RLock()
		same := c.vc.ChannelID == channelID.String() && c.vc.Ready
		c.vc.RUnlock()
		if same {
			return nil
		}
		e.mu.Lock()
		deaf = c.deaf
		e.mu.Unlock()
	}

	vc, err := e.joiner.ChannelVoiceJoin(guildID.String(), channelID.String(), false, deaf)
	if err != nil {
		return fmt.Errorf("join voice channel %s: %w", channelID, err)
	}

	e.mu.Lock()
	e.conns[guildID] = &connection{vc: vc, deaf: deaf}
	e.mu.Unlock()
	e.log.Info("Joined voice channel", slog.String("guild", guildID.String()), slog.String("channel", channelID.String()))
	return nil
}

// Leave disconnects from the guild's voice channel.
func (e *Engine) Leave(_ context.Context, guildID snowflake.ID) error {
	e.mu.Lock()
	c := e.conns[guildID]
	delete(e.conns, guildID)
	e.mu.Unlock()

	if c == nil {
		return ErrNotConnected
	}
	if err := c.vc.Disconnect(); err != nil {
		return fmt.Errorf("disconnect: %w", err)
	}
	e.log.Info("Left voice channel", slog.String("guild", guildID.String()))
	return nil
}

// Deafen self-deafens the bot. already is true when it was deafened before.
func (e *Engine) Deafen(_ context.Context, guildID snowflake.ID) (already bool, err error) {
	e.mu.Lock()
	c := e.conns[guildID]
	if c == nil {
		e.mu.Unlock()
		return false, ErrNotConnected
	}
	if c.deaf {
		e.mu.Unlock()
		return true, nil
	}
	e.mu.Unlock()

	c.vc.RLock()
	channelID := c.vc.ChannelID
	c.vc.RUnlock()
	if err := c.vc.ChangeChannel(channelID, false, true); err != nil {
		return false, fmt.Errorf("deafen: %w", err)
	}

	e.mu.Lock()
	c.deaf = true
	e.mu.Unlock()
	return false, nil
}

func (e *Engine) Connected(guildID snowflake.ID) bool {
	return e.connection(guildID) != nil
}

// Prepare looks up the stream for sourceURL and returns a track that has not
// started yet.
func (e *Engine) Prepare(ctx context.Context, guildID playback.GuildID, sourceURL string) (playback.TrackHandle, error) {
	if sourceURL == "" {
		return nil, ErrNoSource
	}
	link, err := e.locator.StreamURL(ctx, sourceURL)
	if err != nil {
		return nil, fmt.Errorf("stream url: %w", err)
	}
	t := &Track{
		id:      uuid.New(),
		guildID: guildID,
		source:  sourceURL,
		link:    link,
		eng:     e,
	}
	e.log.Debug("Track prepared", slog.String("guild", guildID.String()), slog.String("track", t.id.String()), slog.String("source", sourceURL))
	return t, nil
}

// Close disconnects every voice connection.
func (e *Engine) Close() {
	e.mu.Lock()
	conns := e.conns
	e.conns = make(map[snowflake.ID]*connection)
	e.mu.Unlock()

	for id, c := range conns {
		if err := c.vc.Disconnect(); err != nil {
			e.log.Warn("Disconnect failed", slog.String("guild", id.String()), slog.Any("err", err))
		}
	}
}
