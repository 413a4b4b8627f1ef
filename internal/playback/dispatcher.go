package playback

import (
	"context"
	"log/slog"
	"sync"
)

const (
	DefaultWorkers = 8
	workerBuffer   = 64
)

type envelope struct {
	state *GuildState
	ev    TrackEvent
}

// Dispatcher turns engine end notifications into queue advances. Events of one
// guild always land on the same worker and are applied in arrival order.
type Dispatcher struct {
	reg    *Registry
	queues []chan envelope
	opts   options
	log    *slog.Logger

	sinkMu sync.RWMutex
	sink   func(AdvanceFailure)

	done chan struct{}
	once sync.Once
}

// NewDispatcher creates a dispatcher over reg. workers <= 0 selects DefaultWorkers.
func NewDispatcher(reg *Registry, workers int, opts ...Option) *Dispatcher {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	o := buildOptions(opts)
	d := &Dispatcher{
		reg:    reg,
		queues: make([]chan envelope, workers),
		opts:   o,
		log:    o.log.With(slog.String("component", "dispatcher")),
		done:   make(chan struct{}),
	}
	for i := range d.queues {
		d.queues[i] = make(chan envelope, workerBuffer)
	}
	return d
}

// OnFailure installs the sink that receives tracks the engine refused to start
// after an advance. Passing nil removes it.
func (d *Dispatcher) OnFailure(fn func(AdvanceFailure)) {
	d.sinkMu.Lock()
	d.sink = fn
	d.sinkMu.Unlock()
}

// Watch registers the completion callback of h. The guild state is bound into the
// callback, so the event is applied to the state the track was queued on.
func (d *Dispatcher) Watch(state *GuildState, h TrackHandle) {
	guild := state.GuildID()
	id := h.ID()
	h.OnEnd(func(end TrackEnd) {
		ev, ok := EventFor(guild, id, end)
		if !ok {
			d.log.Debug("Track stopped, queue left as is", slog.String("guild", guild.String()), slog.String("track", id.String()))
			return
		}
		d.Publish(state, ev)
	})
}

// Publish queues ev for the worker that owns the guild. It blocks while that
// worker's buffer is full and drops the event once the dispatcher has stopped.
func (d *Dispatcher) Publish(state *GuildState, ev TrackEvent) {
	q := d.queues[spread(ev.Guild())%uint64(len(d.queues))]
	select {
	case q <- envelope{state: state, ev: ev}:
	case <-d.done:
		d.opts.obs.EventDropped("stopped")
		d.log.Warn("Dispatcher stopped, completion dropped", slog.String("guild", ev.Guild().String()), slog.String("track", ev.Track().String()))
	}
}

// Run processes events until ctx is done.
func (d *Dispatcher) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	for _, q := range d.queues {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.worker(ctx, q)
		}()
	}
	d.log.Info("Dispatcher started", slog.Int("workers", len(d.queues)))
	wg.Wait()
	d.once.Do(func() { close(d.done) })
	d.log.Info("Dispatcher stopped")
	return ctx.Err()
}

func (d *Dispatcher) worker(ctx context.Context, q <-chan envelope) {
	for {
		select {
		case <-ctx.Done():
			return
		case env := <-q:
			d.Handle(env.state, env.ev)
		}
	}
}

// Handle applies one event synchronously. Workers call it; it is exported for
// callers that own their own ordering.
func (d *Dispatcher) Handle(state *GuildState, ev TrackEvent) AdvanceResult {
	guild := ev.Guild()
	log := d.log.With(slog.String("guild", guild.String()), slog.String("track", ev.Track().String()))

	registered, ok := d.reg.Lookup(guild)
	if !ok || registered != state {
		d.opts.obs.EventDropped("unregistered")
		log.Warn("Completion for a guild state that is no longer registered, dropped")
		return AdvanceResult{Outcome: AdvanceIgnored}
	}

	var res AdvanceResult
	if e, ok := ev.(TrackErrored); ok {
		log.Error("Track ended with error", slog.Any("err", e.Err))
		res = state.AdvanceErrored(ev.Track())
	} else {
		res = state.Advance(ev.Track())
	}
	d.opts.obs.Advanced(res.Outcome, res.PlayErr != nil)

	switch res.Outcome {
	case AdvanceIgnored:
		d.opts.obs.EventDropped("stale")
	case AdvanceIdle:
		log.Info("Queue finished")
	case AdvanceNext:
		if res.PlayErr != nil {
			d.fail(AdvanceFailure{GuildID: guild, Item: res.Next, Err: res.PlayErr})
		} else {
			log.Info("Now playing", slog.String("title", res.Next.Meta.Title))
		}
	}
	return res
}

func (d *Dispatcher) fail(f AdvanceFailure) {
	d.sinkMu.RLock()
	sink := d.sink
	d.sinkMu.RUnlock()
	if sink != nil {
		sink(f)
	}
}
