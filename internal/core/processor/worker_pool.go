package processor

import (
	"context"
	"errors"
	"sync"
	"time"

	"facerag/internal/core/recognition"

	log "github.com/sirupsen/logrus"
)

// ErrPoolClosed wird zurückgegeben, wenn der Pool bereits heruntergefahren ist
var ErrPoolClosed = errors.New("training worker pool is shut down")

// Retrainer trainiert das Erkennungsmodell vollständig neu
type Retrainer interface {
	Retrain(ctx context.Context) (*recognition.TrainingSummary, error)
}

// WorkerPool serialisiert Trainingsläufe. Ein einzelner Worker arbeitet die Jobs
// in Eingangsreihenfolge ab, sodass nie zwei Trainings gleichzeitig laufen.
type WorkerPool struct {
	trainer         Retrainer
	jobs            chan *TrainJob
	workerCount     int
	activeJobs      int
	completedJobs   int
	activeJobsMutex sync.Mutex
	shutdown        chan struct{}
	shutdownOnce    sync.Once
	stopped         chan struct{} // geschlossen, sobald alle Worker beendet sind
	stopOnce        sync.Once
	wg              sync.WaitGroup
}

// TrainJob repräsentiert einen angeforderten Trainingslauf
type TrainJob struct {
	ctx      context.Context
	reason   string
	resultCh chan *TrainResult // Individueller Ergebniskanal pro Job
}

// TrainResult enthält das Ergebnis eines Trainingslaufs
type TrainResult struct {
	Summary *recognition.TrainingSummary
	Err     error
}

// PoolStats beschreibt den Zustand des Pools
type PoolStats struct {
	WorkerCount   int `json:"worker_count"`
	ActiveJobs    int `json:"active_jobs"`
	QueuedJobs    int `json:"queued_jobs"`
	CompletedJobs int `json:"completed_jobs"`
	QueueCapacity int `json:"queue_capacity"`
}

// NewWorkerPool erstellt den Trainings-Pool und startet den Worker
func NewWorkerPool(trainer Retrainer, queueSize int) *WorkerPool {
	if queueSize < 1 {
		queueSize = 16
	}

	pool := &WorkerPool{
		trainer:     trainer,
		jobs:        make(chan *TrainJob, queueSize),
		workerCount: 1,
		shutdown:    make(chan struct{}),
		stopped:     make(chan struct{}),
	}

	log.Infof("Initializing training worker pool (queue capacity %d)", queueSize)
	pool.startWorkers()

	return pool
}

// startWorkers startet die Worker-Goroutinen
func (p *WorkerPool) startWorkers() {
	for i := 0; i < p.workerCount; i++ {
		p.wg.Add(1)
		go func(workerID int) {
			defer p.wg.Done()
			log.Debugf("Training worker %d started", workerID)

			for {
				select {
				case job := <-p.jobs:
					p.run(workerID, job)
				case <-p.shutdown:
					log.Debugf("Training worker %d received shutdown signal", workerID)
					return
				}
			}
		}(i)
	}
}

func (p *WorkerPool) run(workerID int, job *TrainJob) {
	p.activeJobsMutex.Lock()
	p.activeJobs++
	p.activeJobsMutex.Unlock()

	log.Debugf("Worker %d retraining model (%s)", workerID, job.reason)
	startTime := time.Now()

	// Das Training wird auch dann abgeschlossen, wenn der Anfragende nicht mehr wartet
	summary, err := p.trainer.Retrain(context.WithoutCancel(job.ctx))

	p.activeJobsMutex.Lock()
	p.activeJobs--
	p.completedJobs++
	p.activeJobsMutex.Unlock()

	select {
	case job.resultCh <- &TrainResult{Summary: summary, Err: err}:
	default:
		log.Warnf("Worker %d: could not deliver training result", workerID)
	}

	log.Debugf("Worker %d completed retrain in %v", workerID, time.Since(startTime))
}

// Retrain reiht einen Trainingslauf ein und wartet auf dessen Ergebnis
func (p *WorkerPool) Retrain(ctx context.Context, reason string) (*recognition.TrainingSummary, error) {
	resultCh := make(chan *TrainResult, 1)
	job := &TrainJob{
		ctx:      ctx,
		reason:   reason,
		resultCh: resultCh,
	}

	select {
	case <-p.shutdown:
		return nil, ErrPoolClosed
	default:
	}

	select {
	case p.jobs <- job:
	case <-p.shutdown:
		return nil, ErrPoolClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case result := <-resultCh:
		return result.Summary, result.Err
	case <-p.stopped:
		// Der Worker liefert vor dem Beenden; ohne Ergebnis lief der Job nie
		select {
		case result := <-resultCh:
			return result.Summary, result.Err
		default:
			return nil, ErrPoolClosed
		}
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Stats gibt eine Momentaufnahme des Pools zurück
func (p *WorkerPool) Stats() PoolStats {
	p.activeJobsMutex.Lock()
	defer p.activeJobsMutex.Unlock()
	return PoolStats{
		WorkerCount:   p.workerCount,
		ActiveJobs:    p.activeJobs,
		QueuedJobs:    len(p.jobs),
		CompletedJobs: p.completedJobs,
		QueueCapacity: cap(p.jobs),
	}
}

// Shutdown fährt den Worker-Pool herunter und wartet auf den laufenden Job
func (p *WorkerPool) Shutdown() {
	p.shutdownOnce.Do(func() {
		close(p.shutdown)
	})
	p.wg.Wait()
	p.stopOnce.Do(func() {
		close(p.stopped)
	})
}
