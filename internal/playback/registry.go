package playback

import (
	"log/slog"
	"sync"
	"sync/atomic"
)

const DefaultShards = 32

// Observer receives coordinator counters. A nil observer is allowed.
type Observer interface {
	GuildStates(n int)
	EventDropped(reason string)
	Advanced(outcome AdvanceOutcome, playFailed bool)
}

type nopObserver struct{}

func (nopObserver) GuildStates(int)               {}
func (nopObserver) EventDropped(string)           {}
func (nopObserver) Advanced(AdvanceOutcome, bool) {}

type options struct {
	log *slog.Logger
	obs Observer
}

// Option configures a Registry or a Dispatcher.
type Option func(*options)

func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.log = l
		}
	}
}

func WithObserver(obs Observer) Option {
	return func(o *options) {
		if obs != nil {
			o.obs = obs
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{log: slog.Default(), obs: nopObserver{}}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

type registryShard struct {
	mu     sync.RWMutex
	states map[GuildID]*GuildState
}

// Registry maps guilds to their playback state. The map is split into shards,
// each with its own lock, so lookups for unrelated guilds rarely contend.
type Registry struct {
	shards []registryShard
	count  atomic.Int64
	opts   options
}

// NewRegistry creates an empty registry. shards <= 0 selects DefaultShards.
func NewRegistry(shards int, opts ...Option) *Registry {
	if shards <= 0 {
		shards = DefaultShards
	}
	r := &Registry{
		shards: make([]registryShard, shards),
		opts:   buildOptions(opts),
	}
	for i := range r.shards {
		r.shards[i].states = make(map[GuildID]*GuildState)
	}
	return r
}

func (r *Registry) shard(id GuildID) *registryShard {
	return &r.shards[spread(id)%uint64(len(r.shards))]
}

// spread mixes the snowflake bits; the low bits of consecutive IDs are mostly sequence numbers.
func spread(id GuildID) uint64 {
	h := uint64(id)
	h ^= h >> 33
	h *= 0xff51afd7ed558ccd
	h ^= h >> 33
	return h
}

// GetOrCreate returns the guild's state, creating an empty one on first use.
// Concurrent first-touch callers all receive the same state.
func (r *Registry) GetOrCreate(id GuildID) *GuildState {
	sh := r.shard(id)

	sh.mu.RLock()
	st, ok := sh.states[id]
	sh.mu.RUnlock()
	if ok {
		return st
	}

	sh.mu.Lock()
	defer sh.mu.Unlock()
	if st, ok := sh.states[id]; ok {
		return st
	}
	st = NewGuildState(id, r.opts.log)
	sh.states[id] = st
	r.opts.obs.GuildStates(int(r.count.Add(1)))
	return st
}

// Lookup returns the guild's state without creating one.
func (r *Registry) Lookup(id GuildID) (*GuildState, bool) {
	sh := r.shard(id)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	st, ok := sh.states[id]
	return st, ok
}

// Evict removes the guild's state and closes it. The items that were current or
// pending are returned so their engine tracks can be stopped.
func (r *Registry) Evict(id GuildID) ([]QueueItem, bool) {
	sh := r.shard(id)

	sh.mu.Lock()
	st, ok := sh.states[id]
	if ok {
		delete(sh.states, id)
	}
	sh.mu.Unlock()

	if !ok {
		return nil, false
	}
	r.opts.obs.GuildStates(int(r.count.Add(-1)))
	return st.Close(), true
}

func (r *Registry) Len() int {
	return int(r.count.Load())
}

// Range calls fn for every registered guild until fn returns false. A shard is
// read-locked only while it is being copied; fn runs without registry locks held.
func (r *Registry) Range(fn func(GuildID, *GuildState) bool) {
	for i := range r.shards {
		sh := &r.shards[i]
		sh.mu.RLock()
		batch := make([]*GuildState, 0, len(sh.states))
		for _, st := range sh.states {
			batch = append(batch, st)
		}
		sh.mu.RUnlock()

		for _, st := range batch {
			if !fn(st.GuildID(), st) {
				return
			}
		}
	}
}
