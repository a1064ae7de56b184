package jobmetrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestTrackerRecordsOutcome(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	assert.NoError(t, m.Track("roles:refresh").End(nil))
	boom := errors.New("boom")
	assert.ErrorIs(t, m.Track("roles:refresh").End(boom), boom)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("roles:refresh", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("roles:refresh", "failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.failures.WithLabelValues("roles:refresh")))
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	m.AddDelivery("email")
	assert.NoError(t, m.Track("otp:deliver").End(nil))
}

func TestAddDelivery(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	m.AddDelivery("email")
	m.AddDelivery("")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.deliveries.WithLabelValues("email")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.deliveries.WithLabelValues("unknown")))
}
