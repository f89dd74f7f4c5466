package utils

import (
	"context"
	"testing"

	"facerag/internal/core/processor"
	"facerag/internal/core/recognition"

	"github.com/stretchr/testify/assert"
)

type noopTrainer struct{}

func (noopTrainer) Retrain(context.Context) (*recognition.TrainingSummary, error) {
	return &recognition.TrainingSummary{}, nil
}

func TestFormatBytes(t *testing.T) {
	assert.Equal(t, "512 Bytes", FormatBytes(512))
	assert.Equal(t, "1.50 KB", FormatBytes(1536))
	assert.Equal(t, "2.00 MB", FormatBytes(2*1024*1024))
	assert.Equal(t, "1.00 GB", FormatBytes(1024*1024*1024))
}

func TestGetSystemStats(t *testing.T) {
	pool := processor.NewWorkerPool(noopTrainer{}, 3)
	defer pool.Shutdown()

	stats := GetSystemStats(pool)
	assert.Positive(t, stats.NumCPU)
	assert.Positive(t, stats.GoRoutines)
	assert.NotEmpty(t, stats.MemoryAllocHuman)
	assert.Equal(t, 1, stats.Training.WorkerCount)
	assert.Equal(t, 3, stats.Training.QueueCapacity)

	assert.Zero(t, GetSystemStats(nil).Training.WorkerCount)
}
