package processor

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"facerag/internal/core/recognition"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingTrainer struct {
	running    atomic.Int32
	maxRunning atomic.Int32
	calls      atomic.Int32
	delay      time.Duration
	err        error
}

func (c *countingTrainer) Retrain(ctx context.Context) (*recognition.TrainingSummary, error) {
	n := c.running.Add(1)
	defer c.running.Add(-1)
	for {
		max := c.maxRunning.Load()
		if n <= max || c.maxRunning.CompareAndSwap(max, n) {
			break
		}
	}
	c.calls.Add(1)
	time.Sleep(c.delay)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &recognition.TrainingSummary{Samples: int(c.calls.Load())}, c.err
}

func TestWorkerPool_SerializesRetrains(t *testing.T) {
	trainer := &countingTrainer{delay: 5 * time.Millisecond}
	pool := NewWorkerPool(trainer, 4)
	defer pool.Shutdown()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			summary, err := pool.Retrain(context.Background(), "test")
			assert.NoError(t, err)
			assert.NotNil(t, summary)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(10), trainer.calls.Load())
	assert.Equal(t, int32(1), trainer.maxRunning.Load())
	stats := pool.Stats()
	assert.Equal(t, 10, stats.CompletedJobs)
	assert.Equal(t, 1, stats.WorkerCount)
	assert.Equal(t, 4, stats.QueueCapacity)
	assert.Zero(t, stats.QueuedJobs)
	assert.Zero(t, stats.ActiveJobs)
}

func TestWorkerPool_PropagatesError(t *testing.T) {
	pool := NewWorkerPool(&countingTrainer{err: errors.New("training failed")}, 1)
	defer pool.Shutdown()

	_, err := pool.Retrain(context.Background(), "test")
	require.EqualError(t, err, "training failed")
}

func TestWorkerPool_CancelledCallerDoesNotAbortTraining(t *testing.T) {
	trainer := &countingTrainer{delay: 50 * time.Millisecond}
	pool := NewWorkerPool(trainer, 1)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := pool.Retrain(ctx, "test")
	require.ErrorIs(t, err, context.DeadlineExceeded)

	// Shutdown wartet auf den laufenden Job
	pool.Shutdown()
	assert.Equal(t, int32(1), trainer.calls.Load())
	assert.Equal(t, 1, pool.Stats().CompletedJobs)
}

func TestWorkerPool_RetrainAfterShutdown(t *testing.T) {
	pool := NewWorkerPool(&countingTrainer{}, 1)
	pool.Shutdown()
	pool.Shutdown()

	_, err := pool.Retrain(context.Background(), "test")
	assert.ErrorIs(t, err, ErrPoolClosed)
}

// gatedTrainer blockiert jeden Lauf, bis release geschlossen wird
type gatedTrainer struct {
	started chan struct{}
	release chan struct{}
	calls   atomic.Int32
}

func (g *gatedTrainer) Retrain(context.Context) (*recognition.TrainingSummary, error) {
	g.calls.Add(1)
	g.started <- struct{}{}
	<-g.release
	return &recognition.TrainingSummary{Trained: true}, nil
}

func TestWorkerPool_QueuedJobFailsOnShutdown(t *testing.T) {
	trainer := &gatedTrainer{started: make(chan struct{}, 2), release: make(chan struct{})}
	pool := NewWorkerPool(trainer, 4)

	type outcome struct {
		summary *recognition.TrainingSummary
		err     error
	}
	running := make(chan outcome, 1)
	queued := make(chan outcome, 1)

	go func() {
		summary, err := pool.Retrain(context.Background(), "running")
		running <- outcome{summary, err}
	}()
	<-trainer.started

	go func() {
		summary, err := pool.Retrain(context.Background(), "queued")
		queued <- outcome{summary, err}
	}()
	require.Eventually(t, func() bool { return pool.Stats().QueuedJobs == 1 }, time.Second, time.Millisecond)

	shutdownDone := make(chan struct{})
	go func() {
		pool.Shutdown()
		close(shutdownDone)
	}()
	// Shutdown muss gesetzt sein, bevor der Worker den nächsten Job holen kann
	time.Sleep(20 * time.Millisecond)
	close(trainer.release)

	select {
	case got := <-running:
		require.NoError(t, got.err)
		assert.True(t, got.summary.Trained)
	case <-time.After(2 * time.Second):
		t.Fatal("running retrain did not return")
	}

	select {
	case got := <-queued:
		if got.err == nil {
			// Der Worker hat den Job noch vor dem Shutdown-Signal übernommen
			assert.Equal(t, int32(2), trainer.calls.Load())
		} else {
			assert.ErrorIs(t, got.err, ErrPoolClosed)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("queued retrain blocked after shutdown")
	}
	<-shutdownDone
}
