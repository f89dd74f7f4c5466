package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Record(t *testing.T) {
	registry := prometheus.NewRegistry()
	m, err := New(registry)
	require.NoError(t, err)

	m.RecordRegistration(OutcomeSuccess)
	m.RecordRegistration(OutcomeSuccess)
	m.RecordRegistration(OutcomeNoFace)
	m.RecordFace(true)
	m.RecordFace(false)
	m.IncrementFallback()
	m.ObserveRetrain(150*time.Millisecond, 7)

	assert.InDelta(t, 2, testutil.ToFloat64(m.Registrations.WithLabelValues(OutcomeSuccess)), 0.001)
	assert.InDelta(t, 1, testutil.ToFloat64(m.Registrations.WithLabelValues(OutcomeNoFace)), 0.001)
	assert.InDelta(t, 1, testutil.ToFloat64(m.RecognizedFaces.WithLabelValues("unknown")), 0.001)
	assert.InDelta(t, 1, testutil.ToFloat64(m.GeneratorFallback), 0.001)
	assert.InDelta(t, 7, testutil.ToFloat64(m.TrainingSamples), 0.001)

	_, err = New(registry)
	assert.Error(t, err, "double registration must fail")
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordRegistration(OutcomeSuccess)
		m.RecordRecognition(OutcomeError)
		m.RecordFace(true)
		m.RecordQuery(OutcomeSuccess)
		m.ObserveRetrain(time.Second, 1)
		m.ObserveAnswer(time.Second)
		m.IncrementFallback()
	})
}
