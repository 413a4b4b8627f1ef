package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/keshon/groovebox/internal/playback"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics records coordinator and command counters. It implements
// playback.Observer and music.Recorder.
type Metrics struct {
	reg *prometheus.Registry

	guildStates    prometheus.Gauge
	advances       *prometheus.CounterVec
	replayFailures prometheus.Counter
	dropped        *prometheus.CounterVec
	playRequests   *prometheus.CounterVec
	commands       *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		guildStates: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "groovebox_guild_states",
			Help: "Guild playback states currently registered",
		}),
		advances: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "groovebox_queue_advances_total",
			Help: "Queue transitions after a track ended",
		}, []string{"outcome"}),
		replayFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "groovebox_replay_failures_total",
			Help: "Next tracks the engine refused to start",
		}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "groovebox_completion_events_dropped_total",
			Help: "Track end events that did not advance a queue",
		}, []string{"reason"}),
		playRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "groovebox_play_requests_total",
			Help: "Play requests by result",
		}, []string{"result"}),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "groovebox_commands_total",
			Help: "Slash commands handled",
		}, []string{"command"}),
	}
	m.reg.MustRegister(
		m.guildStates, m.advances, m.replayFailures, m.dropped, m.playRequests, m.commands,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) GuildStates(n int) { m.guildStates.Set(float64(n)) }

func (m *Metrics) EventDropped(reason string) { m.dropped.WithLabelValues(reason).Inc() }

func (m *Metrics) Advanced(outcome playback.AdvanceOutcome, playFailed bool) {
	m.advances.WithLabelValues(outcome.String()).Inc()
	if playFailed {
		m.replayFailures.Inc()
	}
}

func (m *Metrics) PlayRequest(result string) { m.playRequests.WithLabelValues(result).Inc() }

func (m *Metrics) Command(name string) { m.commands.WithLabelValues(name).Inc() }

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

// Serve exposes /metrics on addr until ctx is done.
func (m *Metrics) Serve(ctx context.Context, addr string, log *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	log.Info("Metrics exposed", slog.String("url", fmt.Sprintf("http://%s/metrics", addr)))

	select {
	case err := <-errCh:
		return fmt.Errorf("metrics server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
