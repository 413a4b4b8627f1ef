package playback

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
)

var (
	ErrStateClosed = errors.New("guild playback state is closed")
	ErrNoHandle    = errors.New("queue item has no track handle")
)

// LoopMode decides what happens to a track once it finishes.
type LoopMode int

const (
	LoopNormal LoopMode = iota // finished track is dropped
	LoopRotate                 // finished track goes to the back of the queue
)

func (m LoopMode) String() string {
	switch m {
	case LoopRotate:
		return "loop"
	default:
		return "normal"
	}
}

// ParseLoopMode accepts "normal" and "loop" in any case.
func ParseLoopMode(s string) (LoopMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "normal", "":
		return LoopNormal, nil
	case "loop":
		return LoopRotate, nil
	default:
		return LoopNormal, fmt.Errorf("unknown loop mode %q", s)
	}
}

// EnqueueResult tells the caller whether the item started right away.
type EnqueueResult struct {
	Started  bool
	Position int // 1-based place in the pending queue when not started
}

// AdvanceOutcome classifies what Advance did.
type AdvanceOutcome int

const (
	AdvanceIgnored AdvanceOutcome = iota
	AdvanceIdle
	AdvanceNext
)

func (o AdvanceOutcome) String() string {
	switch o {
	case AdvanceIdle:
		return "idle"
	case AdvanceNext:
		return "next"
	default:
		return "ignored"
	}
}

// AdvanceResult reports a single queue transition.
type AdvanceResult struct {
	Outcome  AdvanceOutcome
	Finished QueueItem
	Next     QueueItem
	PlayErr  error
}

// Snapshot is a copy of a guild's queue taken under its lock.
type Snapshot struct {
	GuildID GuildID
	Current *QueueItem
	Pending []QueueItem
	Loop    LoopMode
}

// GuildState is the playback state of one guild. Every field below mu is read
// and written only while mu is held.
type GuildState struct {
	guildID GuildID
	log     *slog.Logger

	mu      sync.Mutex
	current *QueueItem
	pending []QueueItem
	loop    LoopMode
	closed  bool
}

// NewGuildState returns an empty state: nothing current, empty queue, normal mode.
func NewGuildState(guildID GuildID, log *slog.Logger) *GuildState {
	if log == nil {
		log = slog.Default()
	}
	return &GuildState{
		guildID: guildID,
		log:     log.With(slog.String("component", "playback"), slog.String("guild", guildID.String())),
	}
}

func (s *GuildState) GuildID() GuildID { return s.guildID }

// Enqueue starts item immediately when the guild is idle, otherwise appends it to
// the pending queue. The idle check, the engine start and the mutation happen
// under one lock hold, so two callers can never both become current. When the
// engine refuses to start the item the state is left untouched.
func (s *GuildState) Enqueue(item QueueItem) (EnqueueResult, error) {
	if item.Handle == nil {
		return EnqueueResult{}, ErrNoHandle
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return EnqueueResult{}, ErrStateClosed
	}

	if s.current == nil {
		if err := item.Handle.Play(); err != nil {
			return EnqueueResult{}, fmt.Errorf("start track %s: %w", item.ID(), err)
		}
		s.current = &item
		s.log.Debug("Track started", slog.String("title", item.Meta.Title), slog.String("track", item.ID().String()))
		return EnqueueResult{Started: true}, nil
	}

	s.pending = append(s.pending, item)
	s.log.Debug("Track queued", slog.String("title", item.Meta.Title), slog.Int("position", len(s.pending)))
	return EnqueueResult{Position: len(s.pending)}, nil
}

// Advance moves the guild past the track that just finished. It is the only
// operation that replaces an occupied current item. An end event for a track
// that is not current (duplicate or stale delivery) is ignored.
//
// In loop mode the finished item is appended to the queue before the next item
// is taken from the head, so a queue of one keeps repeating and longer queues
// rotate.
//
// When the next item fails to start it still becomes current and the error is
// returned in PlayErr. No end event follows for it.
func (s *GuildState) Advance(finished TrackID) AdvanceResult {
	return s.advance(finished, true)
}

// AdvanceErrored is Advance for a track that ended with an error. The errored
// item is dropped even in loop mode.
func (s *GuildState) AdvanceErrored(finished TrackID) AdvanceResult {
	return s.advance(finished, false)
}

func (s *GuildState) advance(finished TrackID, requeue bool) AdvanceResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		s.log.Warn("Advance on closed guild state ignored", slog.String("track", finished.String()))
		return AdvanceResult{Outcome: AdvanceIgnored}
	}
	if s.current == nil || s.current.ID() != finished {
		s.log.Warn("Advance for a track that is not current ignored", slog.String("track", finished.String()))
		return AdvanceResult{Outcome: AdvanceIgnored}
	}

	prev := *s.current
	if s.loop == LoopRotate {
		if requeue {
			s.pending = append(s.pending, prev)
		} else {
			s.log.Info("Errored track removed from loop", slog.String("title", prev.Meta.Title))
		}
	}

	if len(s.pending) == 0 {
		s.current = nil
		s.log.Debug("Queue drained, guild idle")
		return AdvanceResult{Outcome: AdvanceIdle, Finished: prev}
	}

	next := s.pending[0]
	s.pending[0] = QueueItem{}
	s.pending = s.pending[1:]
	s.current = &next

	res := AdvanceResult{Outcome: AdvanceNext, Finished: prev, Next: next}
	if err := next.Handle.Play(); err != nil {
		res.PlayErr = err
		s.log.Error("Failed to start next track", slog.String("title", next.Meta.Title), slog.Any("err", err))
		return res
	}
	s.log.Debug("Advanced to next track", slog.String("title", next.Meta.Title), slog.Int("pending", len(s.pending)))
	return res
}

func (s *GuildState) SetLoopMode(mode LoopMode) {
	s.mu.Lock()
	s.loop = mode
	s.mu.Unlock()
}

func (s *GuildState) LoopMode() LoopMode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loop
}

// Snapshot copies the queue for display.
func (s *GuildState) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		GuildID: s.guildID,
		Pending: slices.Clone(s.pending),
		Loop:    s.loop,
	}
	if s.current != nil {
		cur := *s.current
		snap.Current = &cur
	}
	return snap
}

// Closed reports whether the state was evicted.
func (s *GuildState) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Close empties the state and rejects further mutation. The removed items are
// returned, current first, so the caller can stop them without holding the lock.
func (s *GuildState) Close() []QueueItem {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	items := make([]QueueItem, 0, len(s.pending)+1)
	if s.current != nil {
		items = append(items, *s.current)
	}
	items = append(items, s.pending...)
	s.current = nil
	s.pending = nil
	return items
}
