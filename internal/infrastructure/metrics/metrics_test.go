package metrics

import (
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Recorders(t *testing.T) {
	m := New()

	m.AddXP(40)
	m.AddXP(-5)
	m.QuestCompleted()
	m.Claim("quest", "granted")
	m.Claim("quest", "granted")
	m.Claim("quest", "already_claimed")
	m.ObserveJob("sweep_stale_streaks", time.Second, nil)
	m.ObserveJob("sweep_stale_streaks", time.Second, errors.New("boom"))
	m.SkipJob("sweep_stale_streaks")
	m.ObserveHandler("progress.xp_earned", time.Millisecond, nil)

	assert.Equal(t, 40.0, testutil.ToFloat64(m.XPRecorded))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.QuestsCompleted))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Claims.WithLabelValues("quest", "granted")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.JobRuns.WithLabelValues("sweep_stale_streaks", StatusError)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.JobRuns.WithLabelValues("sweep_stale_streaks", StatusSkipped)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EventsHandled.WithLabelValues("progress.xp_earned", StatusOK)))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.AddXP(1)
		m.QuestCompleted()
		m.Claim("quest", "granted")
		m.ObserveJob("x", 0, nil)
		m.ObserveHandler("x", 0, nil)
		m.SetPoolStats(1, 1, 0, 4)
	})
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.QuestCompleted()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "progress_quests_completed_total 1"))
}
