package playback

import (
	"errors"
	"io"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

var errPlay = errors.New("engine refused")

// fakeHandle records Play/Stop calls and lets tests fire end events by hand.
type fakeHandle struct {
	id uuid.UUID

	mu      sync.Mutex
	plays   int
	stops   int
	playErr error
	onEnd   func(TrackEnd)
}

func newFakeHandle() *fakeHandle {
	return &fakeHandle{id: uuid.New()}
}

func (h *fakeHandle) ID() TrackID { return h.id }

func (h *fakeHandle) Play() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.playErr != nil {
		return h.playErr
	}
	h.plays++
	return nil
}

func (h *fakeHandle) Stop() error {
	h.mu.Lock()
	h.stops++
	h.mu.Unlock()
	return nil
}

func (h *fakeHandle) OnEnd(fn func(TrackEnd)) {
	h.mu.Lock()
	h.onEnd = fn
	h.mu.Unlock()
}

func (h *fakeHandle) end(reason EndReason, err error) {
	h.mu.Lock()
	fn := h.onEnd
	h.mu.Unlock()
	if fn != nil {
		fn(TrackEnd{Reason: reason, Err: err})
	}
}

func (h *fakeHandle) playCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.plays
}

func (h *fakeHandle) stopCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.stops
}

func item(title string) (QueueItem, *fakeHandle) {
	h := newFakeHandle()
	return QueueItem{Meta: NewTrackMetadata(title, "", "", "", 0, 0), Handle: h}, h
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// countingObserver is a thread-safe Observer used to check what the coordinator reported.
type countingObserver struct {
	mu       sync.Mutex
	states   int
	dropped  map[string]int
	outcomes map[AdvanceOutcome]int
	failed   int
}

func newCountingObserver() *countingObserver {
	return &countingObserver{dropped: map[string]int{}, outcomes: map[AdvanceOutcome]int{}}
}

func (o *countingObserver) GuildStates(n int) {
	o.mu.Lock()
	o.states = n
	o.mu.Unlock()
}

func (o *countingObserver) EventDropped(reason string) {
	o.mu.Lock()
	o.dropped[reason]++
	o.mu.Unlock()
}

func (o *countingObserver) Advanced(outcome AdvanceOutcome, playFailed bool) {
	o.mu.Lock()
	o.outcomes[outcome]++
	if playFailed {
		o.failed++
	}
	o.mu.Unlock()
}

func (o *countingObserver) droppedFor(reason string) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.dropped[reason]
}
