package voice

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/keshon/groovebox/internal/playback"
)

var (
	ErrAlreadyPlaying = errors.New("track is already playing")
	ErrReleased       = errors.New("track was stopped and released")
)

type trackState int

const (
	trackIdle trackState = iota
	trackPlaying
	trackReleased
)

// Track is one playable instance of a source. Each accepted Play starts a run
// that streams until the source ends, fails or the track is stopped; every run
// reports exactly one end. A track whose run ended can be played again.
type Track struct {
	id      uuid.UUID
	guildID playback.GuildID
	source  string
	eng     *Engine

	mu    sync.Mutex
	link  string // fresh stream URL for the next run, looked up again when empty
	state trackState
	stop  chan struct{}
	onEnd func(playback.TrackEnd)
}

func (t *Track) ID() playback.TrackID { return t.id }

func (t *Track) OnEnd(fn func(playback.TrackEnd)) {
	t.mu.Lock()
	t.onEnd = fn
	t.mu.Unlock()
}

// Play starts a run in the background and returns right away.
func (t *Track) Play() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch t.state {
	case trackReleased:
		return ErrReleased
	case trackPlaying:
		return ErrAlreadyPlaying
	}

	t.state = trackPlaying
	stop := make(chan struct{})
	t.stop = stop
	link := t.link
	t.link = ""

	go t.run(stop, link)
	return nil
}

// Stop ends the current run, if any, and releases the track for good.
func (t *Track) Stop() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state == trackReleased {
		return nil
	}
	if t.state == trackPlaying {
		close(t.stop)
	}
	t.state = trackReleased
	return nil
}

func (t *Track) run(stop chan struct{}, link string) {
	log := t.eng.log.With(slog.String("guild", t.guildID.String()), slog.String("track", t.id.String()))

	err := t.stream(stop, link, log)

	end := playback.TrackEnd{Reason: playback.EndFinished}
	select {
	case <-stop:
		end = playback.TrackEnd{Reason: playback.EndStopped}
	default:
		if err != nil {
			end = playback.TrackEnd{Reason: playback.EndErrored, Err: err}
			log.Warn("Track errored", slog.Any("err", err))
		} else {
			log.Debug("Track finished")
		}
	}

	t.mu.Lock()
	if t.state == trackPlaying {
		t.state = trackIdle
	}
	fn := t.onEnd
	t.mu.Unlock()

	if fn != nil {
		fn(end)
	}
}

// stream pumps one run. A nil result means the source reached its end after
// at least one frame and closed cleanly.
func (t *Track) stream(stop chan struct{}, link string, log *slog.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-stop:
			cancel()
		case <-ctx.Done():
		}
	}()

	sink, err := t.eng.sinkFor(t.guildID)
	if err != nil {
		return err
	}

	if link == "" {
		if link, err = t.eng.locator.StreamURL(ctx, t.source); err != nil {
			return fmt.Errorf("stream url: %w", err)
		}
	}

	src, err := t.eng.open(ctx, link)
	if err != nil {
		return fmt.Errorf("open stream: %w", err)
	}
	defer src.Close()

	enc, err := t.eng.newEncoder()
	if err != nil {
		return err
	}

	if err := sink.Speaking(true); err != nil {
		log.Debug("Speaking on failed", slog.Any("err", err))
	}
	defer func() {
		if err := sink.Speaking(false); err != nil {
			log.Debug("Speaking off failed", slog.Any("err", err))
		}
	}()

	buf := make([]byte, frameSize*channels*2)
	pcm := make([]int16, frameSize*channels)
	sent := 0
	for {
		select {
		case <-stop:
			return nil
		default:
		}

		if err := readFrame(src, buf, pcm); err != nil {
			if !errors.Is(err, io.EOF) {
				return fmt.Errorf("read: %w", err)
			}
			if err := src.Close(); err != nil {
				return fmt.Errorf("close stream: %w", err)
			}
			if sent == 0 {
				return ErrNoAudio
			}
			return nil
		}
		frame, err := enc.Encode(pcm)
		if err != nil {
			return fmt.Errorf("encode: %w", err)
		}
		if err := sink.Send(stop, frame); err != nil {
			return fmt.Errorf("send: %w", err)
		}
		sent++
	}
}
