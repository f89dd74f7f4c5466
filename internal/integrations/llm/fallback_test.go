package llm

import (
	"context"
	"errors"
	"testing"

	"facerag/internal/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubGenerator struct {
	answer string
	err    error
	calls  int
}

func (s *stubGenerator) Generate(context.Context, string) (string, error) {
	s.calls++
	return s.answer, s.err
}

func TestFallbackGenerator(t *testing.T) {
	m, err := metrics.New(prometheus.NewRegistry())
	require.NoError(t, err)

	t.Run("remote succeeds", func(t *testing.T) {
		remote := &stubGenerator{answer: "remote"}
		local := &stubGenerator{answer: "local"}
		answer, err := NewFallbackGenerator(remote, local, m).Generate(context.Background(), "p")
		require.NoError(t, err)
		assert.Equal(t, "remote", answer)
		assert.Zero(t, local.calls)
	})

	t.Run("remote fails once", func(t *testing.T) {
		remote := &stubGenerator{err: errors.New("503")}
		local := &stubGenerator{answer: "local"}
		answer, err := NewFallbackGenerator(remote, local, m).Generate(context.Background(), "p")
		require.NoError(t, err)
		assert.Equal(t, "local", answer)
		assert.Equal(t, 1, remote.calls)
		assert.Equal(t, 1, local.calls)
		assert.InDelta(t, 1, testutil.ToFloat64(m.GeneratorFallback), 0.001)
	})

	t.Run("both fail", func(t *testing.T) {
		remote := &stubGenerator{err: errors.New("503")}
		local := &stubGenerator{err: errors.New("connection refused")}
		_, err := NewFallbackGenerator(remote, local, nil).Generate(context.Background(), "p")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "connection refused")
	})

	t.Run("no local model", func(t *testing.T) {
		remote := &stubGenerator{err: errors.New("503")}
		_, err := NewFallbackGenerator(remote, nil, nil).Generate(context.Background(), "p")
		assert.EqualError(t, err, "503")
	})
}

func TestFallbackGenerator_LocalOnlyIsNoFallback(t *testing.T) {
	m, err := metrics.New(prometheus.NewRegistry())
	require.NoError(t, err)

	local := &stubGenerator{answer: "local"}
	g := NewFallbackGenerator(nil, local, m)
	for i := 0; i < 3; i++ {
		answer, err := g.Generate(context.Background(), "p")
		require.NoError(t, err)
		assert.Equal(t, "local", answer)
	}
	assert.Equal(t, 3, local.calls)
	assert.Zero(t, testutil.ToFloat64(m.GeneratorFallback))
}
