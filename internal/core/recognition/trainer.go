package recognition

import (
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"time"

	"facerag/internal/core/events"
	"facerag/internal/core/models"
	"facerag/internal/db/repository"
	"facerag/internal/metrics"
	"facerag/internal/util/imageutil"
	"facerag/internal/util/timezone"

	log "github.com/sirupsen/logrus"
)

// TrainingSummary fasst einen abgeschlossenen Trainingslauf zusammen
type TrainingSummary struct {
	Records  int
	Samples  int
	Labels   int
	Trained  bool
	Duration time.Duration
}

// Trainer baut das Modell vollständig aus dem Datenbestand neu auf
type Trainer struct {
	repo      repository.Repository
	detector  Detector
	backend   Backend
	model     *Model
	modelFile string
	metrics   *metrics.Metrics
	publisher events.Publisher
}

// NewTrainer erstellt einen neuen Trainer. Ist modelFile leer, wird kein Modell gespeichert.
func NewTrainer(repo repository.Repository, detector Detector, backend Backend, model *Model,
	modelFile string, m *metrics.Metrics, publisher events.Publisher) *Trainer {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &Trainer{
		repo:      repo,
		detector:  detector,
		backend:   backend,
		model:     model,
		modelFile: modelFile,
		metrics:   m,
		publisher: publisher,
	}
}

// Retrain trainiert das Modell von Grund auf mit allen gespeicherten Datensätzen.
// Jeder Datensatz wird erneut durch den Detektor geschickt; jede gefundene Region ist eine Stichprobe.
func (t *Trainer) Retrain(ctx context.Context) (*TrainingSummary, error) {
	start := time.Now()

	records, err := t.repo.ListFaces(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load face records: %w", err)
	}

	state := models.StoreState{FaceCount: int64(len(records))}
	if len(records) > 0 {
		state.MaxFaceID = records[len(records)-1].ID
	}

	samples, labels, mapping := t.collectSamples(records)

	summary := &TrainingSummary{
		Records: len(records),
		Samples: len(samples),
		Labels:  len(mapping),
	}

	run := &models.TrainingRun{
		FaceCount: state.FaceCount,
		MaxFaceID: state.MaxFaceID,
		Samples:   len(samples),
	}

	if len(samples) == 0 {
		log.Warn("No faces found for training, model stays untrained")
		t.model.Install(nil, nil, 0, timezone.Now())
	} else {
		classifier, err := t.backend.Train(samples, labels)
		if err != nil {
			return nil, fmt.Errorf("failed to train recognizer: %w", err)
		}

		if t.modelFile != "" {
			if err := saveAtomic(classifier, t.modelFile); err != nil {
				// Das Modell im Speicher bleibt gültig, nur die Wiederherstellung entfällt
				log.Errorf("Failed to save model file %s: %v", t.modelFile, err)
			} else {
				run.ModelFile = t.modelFile
			}
		}

		t.model.Install(classifier, mapping, len(samples), timezone.Now())
		run.Trained = true
		summary.Trained = true
	}

	if err := run.SetLabelEntries(labelEntries(mapping)); err != nil {
		return nil, err
	}
	if err := t.repo.SaveTrainingRun(ctx, run); err != nil {
		log.Errorf("Failed to save training run: %v", err)
	}

	summary.Duration = time.Since(start)
	t.metrics.ObserveRetrain(summary.Duration, summary.Samples)
	t.publisher.Publish(events.Event{
		Type:      events.TypeRetrained,
		Faces:     summary.Records,
		Samples:   summary.Samples,
		Timestamp: timezone.Now(),
	})

	log.WithFields(log.Fields{
		"records":  summary.Records,
		"samples":  summary.Samples,
		"labels":   summary.Labels,
		"duration": summary.Duration,
	}).Info("Model retrained")

	return summary, nil
}

// collectSamples dekodiert alle Ausschnitte und vergibt Labels pro Name in der Reihenfolge des ersten Auftretens
func (t *Trainer) collectSamples(records []models.FaceRecord) ([]*image.Gray, []int, map[int]string) {
	var samples []*image.Gray
	var labels []int
	mapping := make(map[int]string)
	labelOf := make(map[string]int)

	for _, record := range records {
		gray, err := imageutil.DecodeGray(record.FaceImage)
		if err != nil {
			log.Warnf("Skipping face record %d: %v", record.ID, err)
			continue
		}

		regions, err := t.detector.Detect(gray)
		if err != nil {
			log.Warnf("Face detection failed for record %d: %v", record.ID, err)
			continue
		}
		if len(regions) == 0 {
			log.Debugf("No face re-detected in record %d (%s)", record.ID, record.Name)
			continue
		}

		label, ok := labelOf[record.Name]
		if !ok {
			label = len(labelOf)
			labelOf[record.Name] = label
			mapping[label] = record.Name
		}

		for _, region := range regions {
			samples = append(samples, imageutil.Crop(gray, region))
			labels = append(labels, label)
		}
	}

	return samples, labels, mapping
}

// Restore lädt Modell und Label-Zuordnung des letzten Trainingslaufs, sofern dieser
// genau dem aktuellen Datenbestand entspricht. Gibt false zurück, wenn neu trainiert werden muss.
func (t *Trainer) Restore(ctx context.Context) (bool, error) {
	run, err := t.repo.LatestTrainingRun(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to load latest training run: %w", err)
	}
	if run == nil {
		log.Info("No previous training run found")
		return false, nil
	}

	state, err := t.repo.GetStoreState(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to read store state: %w", err)
	}
	if !run.Matches(state) {
		log.Infof("Store changed since last training run (%d/%d faces), retraining",
			run.FaceCount, state.FaceCount)
		return false, nil
	}

	if !run.Trained {
		t.model.Install(nil, nil, 0, run.CreatedAt)
		log.Info("Restored untrained model state")
		return true, nil
	}
	if run.ModelFile == "" {
		return false, nil
	}

	entries, err := run.LabelEntries()
	if err != nil {
		return false, err
	}

	classifier, err := t.backend.Load(run.ModelFile)
	if err != nil {
		log.Warnf("Failed to load model file %s: %v", run.ModelFile, err)
		return false, nil
	}

	mapping := make(map[int]string, len(entries))
	for _, e := range entries {
		mapping[e.Label] = e.Name
	}
	t.model.Install(classifier, mapping, run.Samples, run.CreatedAt)

	log.Infof("Restored model from %s with %d labels", run.ModelFile, len(mapping))
	return true, nil
}

// RestoreOrRetrain stellt das Modell wieder her oder trainiert es neu
func (t *Trainer) RestoreOrRetrain(ctx context.Context) error {
	restored, err := t.Restore(ctx)
	if err != nil {
		log.Warnf("Model restore failed: %v", err)
	}
	if restored {
		return nil
	}
	_, err = t.Retrain(ctx)
	return err
}

// saveAtomic schreibt das Modell in eine temporäre Datei und benennt sie dann um.
// Die Endung bleibt erhalten, da OpenCV das Format daran erkennt.
func saveAtomic(classifier Classifier, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create model directory: %w", err)
	}

	tmp := filepath.Join(dir, ".tmp-"+filepath.Base(path))
	if err := classifier.Save(tmp); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace model file: %w", err)
	}
	return nil
}
