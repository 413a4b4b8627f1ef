package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/keshon/groovebox/internal/playback"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	m := New()

	m.GuildStates(3)
	m.Advanced(playback.AdvanceNext, false)
	m.Advanced(playback.AdvanceNext, true)
	m.Advanced(playback.AdvanceIdle, false)
	m.EventDropped("stale")
	m.PlayRequest("started")
	m.PlayRequest("queued")
	m.PlayRequest("queued")
	m.Command("music")

	assert.Equal(t, 3.0, testutil.ToFloat64(m.guildStates))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.advances.WithLabelValues("next")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.advances.WithLabelValues("idle")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.replayFailures))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.dropped.WithLabelValues("stale")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.playRequests.WithLabelValues("queued")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.commands.WithLabelValues("music")))
}

func TestMetrics_RegistryObserver(t *testing.T) {
	m := New()
	reg := playback.NewRegistry(2, playback.WithObserver(m))

	reg.GetOrCreate(1)
	reg.GetOrCreate(2)
	reg.Evict(1)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.guildStates))
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.PlayRequest("started")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `groovebox_play_requests_total{result="started"} 1`)
}
