package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder_Counts(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := New(reg)

	r.RecordRequest("quotes", "ok", 0.01)
	r.RecordRequest("quotes", "ok", 0.02)
	r.RecordRequest("quotes", "unauthorized", 0.01)
	r.RecordPoll("holdings", "error", 0.5)
	r.RecordSessionCleared("unauthorized")
	r.RecordLastPrice("AAPL", 190.5)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.requests.WithLabelValues("quotes", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.polls.WithLabelValues("holdings", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.sessionClears.WithLabelValues("unauthorized")))
	assert.Equal(t, 190.5, testutil.ToFloat64(r.lastPrice.WithLabelValues("AAPL")))

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}
