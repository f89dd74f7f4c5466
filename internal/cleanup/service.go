// Package cleanup räumt alte Trainingsläufe und liegengebliebene temporäre Modelldateien auf.
package cleanup

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// Temporäre Modelldateien jünger als diese Frist gehören evtl. zu einem laufenden Speichervorgang
const tempFileGrace = 10 * time.Minute

// TrainingRunPruner löscht alte Trainingsläufe
type TrainingRunPruner interface {
	PruneTrainingRuns(ctx context.Context, keep int) (int64, error)
}

// Result fasst einen Aufräumzyklus zusammen
type Result struct {
	PrunedRuns   int64
	RemovedFiles int
}

// Service räumt periodisch auf
type Service struct {
	repo          TrainingRunPruner
	modelDir      string
	keepRuns      int
	checkInterval time.Duration
	stopChan      chan struct{}
	stopOnce      sync.Once
	now           func() time.Time
}

// NewService erstellt einen neuen Cleanup-Service. Bei keepRuns <= 0 ist das Aufräumen deaktiviert.
func NewService(repo TrainingRunPruner, modelFile string, keepRuns int, checkInterval time.Duration) *Service {
	if keepRuns <= 0 {
		log.Info("Automatic cleanup disabled (keep_training_runs <= 0).")
		return nil
	}
	if repo == nil {
		log.Error("Cannot initialize cleanup service: repository is nil")
		return nil
	}
	if checkInterval <= 0 {
		checkInterval = 24 * time.Hour
	}

	var modelDir string
	if modelFile != "" {
		modelDir = filepath.Dir(modelFile)
	}

	log.Infof("Initializing cleanup service: KeepTrainingRuns=%d, ModelDir='%s', CheckInterval=%s", keepRuns, modelDir, checkInterval)
	return &Service{
		repo:          repo,
		modelDir:      modelDir,
		keepRuns:      keepRuns,
		checkInterval: checkInterval,
		stopChan:      make(chan struct{}),
		now:           time.Now,
	}
}

// StartBackgroundCleanup führt sofort einen Zyklus aus und danach periodisch
func (s *Service) StartBackgroundCleanup() {
	if s == nil {
		return
	}
	log.Info("Starting background cleanup routine...")

	go func() {
		s.RunCleanupCycle(context.Background())

		ticker := time.NewTicker(s.checkInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				log.Debug("Running scheduled cleanup cycle...")
				s.RunCleanupCycle(context.Background())
			case <-s.stopChan:
				log.Info("Stopping background cleanup routine.")
				return
			}
		}
	}()
}

// StopBackgroundCleanup beendet die Hintergrundroutine
func (s *Service) StopBackgroundCleanup() {
	if s == nil {
		return
	}
	s.stopOnce.Do(func() { close(s.stopChan) })
}

// RunCleanupCycle führt einen Aufräumzyklus aus. Fehler werden geloggt, nicht zurückgegeben.
func (s *Service) RunCleanupCycle(ctx context.Context) Result {
	var result Result
	if s == nil {
		return result
	}

	pruned, err := s.repo.PruneTrainingRuns(ctx, s.keepRuns)
	if err != nil {
		log.Errorf("Cleanup: Failed to prune training runs: %v", err)
	} else {
		result.PrunedRuns = pruned
	}

	result.RemovedFiles = s.removeStaleTempFiles()

	if result.PrunedRuns > 0 || result.RemovedFiles > 0 {
		log.Infof("Cleanup cycle finished. Pruned training runs: %d, removed temp files: %d", result.PrunedRuns, result.RemovedFiles)
	}
	return result
}

// removeStaleTempFiles entfernt .tmp-Dateien abgebrochener Modell-Speichervorgänge
func (s *Service) removeStaleTempFiles() int {
	if s.modelDir == "" {
		return 0
	}

	matches, err := filepath.Glob(filepath.Join(s.modelDir, ".tmp-*"))
	if err != nil {
		log.Warnf("Cleanup: Invalid temp file pattern: %v", err)
		return 0
	}

	removed := 0
	cutoff := s.now().Add(-tempFileGrace)
	for _, path := range matches {
		info, err := os.Stat(path)
		if err != nil || info.IsDir() || info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(path); err != nil {
			log.Warnf("Cleanup: Failed to remove temp file '%s': %v", path, err)
			continue
		}
		log.Debugf("Cleanup: Removed stale temp file '%s'", path)
		removed++
	}
	return removed
}
