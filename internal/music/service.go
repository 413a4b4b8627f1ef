package music

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/keshon/groovebox/internal/playback"
)

var (
	ErrEmptyQuery   = errors.New("empty query")
	ErrNotInVoice   = errors.New("user is not in a voice channel")
	ErrNotConnected = errors.New("bot is not in a voice channel")
	ErrResolve      = errors.New("could not resolve track")
	ErrJoin         = errors.New("could not join voice channel")
	ErrPrepare      = errors.New("could not prepare track")
	ErrStart        = errors.New("could not start track")
)

// Resolved is what a Resolver found for a query.
type Resolved struct {
	Title     string
	Channel   string
	SourceURL string
	Thumbnail string
	Duration  time.Duration
}

type Resolver interface {
	Resolve(ctx context.Context, query string) (Resolved, error)
}

// Engine creates engine tracks. A prepared track does not play until its Play is called.
type Engine interface {
	Prepare(ctx context.Context, guildID playback.GuildID, sourceURL string) (playback.TrackHandle, error)
}

type Voice interface {
	Join(ctx context.Context, guildID, channelID snowflake.ID) error
	Leave(ctx context.Context, guildID snowflake.ID) error
	// Deafen deafens the bot; already reports that it was deafened before the call.
	Deafen(ctx context.Context, guildID snowflake.ID) (already bool, err error)
	Connected(guildID snowflake.ID) bool
}

// Recorder counts play requests by result. A nil recorder is allowed.
type Recorder interface {
	PlayRequest(result string)
}

type nopRecorder struct{}

func (nopRecorder) PlayRequest(string) {}

type PlayRequest struct {
	GuildID   snowflake.ID
	ChannelID snowflake.ID // requester's voice channel, zero when not connected
	Requester snowflake.ID
	Query     string
}

type PlayResult struct {
	Meta     playback.TrackMetadata
	Started  bool
	Position int
}

// Service runs the music commands against the playback registry. It knows
// nothing about Discord interactions.
type Service struct {
	reg      *playback.Registry
	disp     *playback.Dispatcher
	resolver Resolver
	engine   Engine
	voice    Voice
	rec      Recorder
	log      *slog.Logger
}

type Option func(*Service)

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

func WithRecorder(r Recorder) Option {
	return func(s *Service) {
		if r != nil {
			s.rec = r
		}
	}
}

func NewService(reg *playback.Registry, disp *playback.Dispatcher, resolver Resolver, engine Engine, voice Voice, opts ...Option) *Service {
	s := &Service{
		reg:      reg,
		disp:     disp,
		resolver: resolver,
		engine:   engine,
		voice:    voice,
		rec:      nopRecorder{},
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With(slog.String("component", "music"))
	return s
}

// IsURL reports whether the query is played as a link rather than searched for.
func IsURL(q string) bool {
	return strings.HasPrefix(q, "http://") || strings.HasPrefix(q, "https://")
}

// Play resolves the query, joins the requester's channel, prepares the track and
// queues it. The guild's queue is only touched by the final enqueue, so any
// earlier failure leaves it as it was.
func (s *Service) Play(ctx context.Context, req PlayRequest) (PlayResult, error) {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return PlayResult{}, ErrEmptyQuery
	}
	if req.ChannelID == 0 {
		return PlayResult{}, ErrNotInVoice
	}
	log := s.log.With(slog.String("guild", req.GuildID.String()), slog.String("query", query))

	res, err := s.resolver.Resolve(ctx, query)
	if err != nil {
		s.rec.PlayRequest("resolve_failed")
		log.Warn("Resolve failed", slog.Any("err", err))
		return PlayResult{}, fmt.Errorf("%w: %w", ErrResolve, err)
	}
	meta := playback.NewTrackMetadata(res.Title, res.Channel, res.SourceURL, res.Thumbnail, res.Duration, req.Requester)

	if err := s.voice.Join(ctx, req.GuildID, req.ChannelID); err != nil {
		s.rec.PlayRequest("join_failed")
		log.Warn("Join failed", slog.String("channel", req.ChannelID.String()), slog.Any("err", err))
		return PlayResult{}, fmt.Errorf("%w: %w", ErrJoin, err)
	}

	handle, err := s.engine.Prepare(ctx, req.GuildID, res.SourceURL)
	if err != nil {
		s.rec.PlayRequest("prepare_failed")
		log.Warn("Prepare failed", slog.Any("err", err))
		return PlayResult{}, fmt.Errorf("%w: %w", ErrPrepare, err)
	}

	state := s.reg.GetOrCreate(req.GuildID)
	s.disp.Watch(state, handle)

	out, err := state.Enqueue(playback.QueueItem{Meta: meta, Handle: handle})
	if err != nil {
		if stopErr := handle.Stop(); stopErr != nil {
			log.Warn("Stopping rejected track failed", slog.Any("err", stopErr))
		}
		s.rec.PlayRequest("start_failed")
		log.Error("Enqueue failed", slog.Any("err", err))
		return PlayResult{}, fmt.Errorf("%w: %w", ErrStart, err)
	}

	if out.Started {
		s.rec.PlayRequest("started")
		log.Info("Now playing", slog.String("title", meta.Title))
	} else {
		s.rec.PlayRequest("queued")
		log.Info("Queued", slog.String("title", meta.Title), slog.Int("position", out.Position))
	}
	return PlayResult{Meta: meta, Started: out.Started, Position: out.Position}, nil
}

// Join connects to channelID without touching the queue.
func (s *Service) Join(ctx context.Context, guildID, channelID snowflake.ID) error {
	if channelID == 0 {
		return ErrNotInVoice
	}
	if err := s.voice.Join(ctx, guildID, channelID); err != nil {
		return fmt.Errorf("%w: %w", ErrJoin, err)
	}
	return nil
}

// Leave drops the guild's queue, stops its tracks and disconnects. It returns
// how many tracks were dropped. The queue is dropped even when the bot is no
// longer connected; the count is then returned together with ErrNotConnected.
func (s *Service) Leave(ctx context.Context, guildID snowflake.ID) (int, error) {
	items, evicted := s.reg.Evict(guildID)
	for _, it := range items {
		if err := it.Handle.Stop(); err != nil {
			s.log.Warn("Stopping track on leave failed", slog.String("guild", guildID.String()), slog.String("track", it.ID().String()), slog.Any("err", err))
		}
	}
	if evicted {
		s.log.Info("Guild queue dropped", slog.String("guild", guildID.String()), slog.Int("tracks", len(items)))
	}

	if !s.voice.Connected(guildID) {
		return len(items), ErrNotConnected
	}
	if err := s.voice.Leave(ctx, guildID); err != nil {
		return len(items), fmt.Errorf("leave voice: %w", err)
	}
	return len(items), nil
}

// Deafen deafens the bot in the guild's voice channel.
func (s *Service) Deafen(ctx context.Context, guildID snowflake.ID) (already bool, err error) {
	if !s.voice.Connected(guildID) {
		return false, ErrNotConnected
	}
	return s.voice.Deafen(ctx, guildID)
}

// SetLoop changes the guild's loop mode. The mode applies from the next track end.
func (s *Service) SetLoop(guildID snowflake.ID, mode playback.LoopMode) {
	s.reg.GetOrCreate(guildID).SetLoopMode(mode)
	s.log.Info("Loop mode changed", slog.String("guild", guildID.String()), slog.String("mode", mode.String()))
}

// Queue returns the guild's queue. ok is false when the guild has no state.
func (s *Service) Queue(guildID snowflake.ID) (snap playback.Snapshot, ok bool) {
	state, ok := s.reg.Lookup(guildID)
	if !ok {
		return playback.Snapshot{GuildID: guildID}, false
	}
	return state.Snapshot(), true
}

// AdvanceFailed is installed as the dispatcher's failure sink.
func (s *Service) AdvanceFailed(f playback.AdvanceFailure) {
	s.rec.PlayRequest("advance_failed")
	s.log.Error("Next track did not start",
		slog.String("guild", f.GuildID.String()),
		slog.String("title", f.Item.Meta.Title),
		slog.Any("err", f.Err))
}
