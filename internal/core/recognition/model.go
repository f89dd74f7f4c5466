package recognition

import (
	"fmt"
	"image"
	"sort"
	"sync"
	"time"

	"facerag/internal/core/models"

	log "github.com/sirupsen/logrus"
)

// snapshot bündelt einen Classifier mit der Label-Zuordnung, aus der er trainiert wurde.
// Ein Snapshot wird nach dem Einsetzen nicht mehr verändert.
type snapshot struct {
	classifier Classifier // nil, wenn untrainiert
	labels     map[int]string
	samples    int
	trainedAt  time.Time
}

// ModelStatus beschreibt den aktuell eingesetzten Snapshot
type ModelStatus struct {
	Trained   bool      `json:"trained"`
	Labels    int       `json:"labels"`
	Samples   int       `json:"samples"`
	TrainedAt time.Time `json:"trained_at,omitempty"`
}

// Model verwaltet den aktuellen Snapshot. Trainings tauschen ihn unter Schreibsperre aus,
// Erkennungen halten die Lesesperre für alle Vorhersagen einer Anfrage.
type Model struct {
	mu        sync.RWMutex
	current   *snapshot
	threshold float64
}

// NewModel erstellt ein untrainiertes Modell
func NewModel(threshold float64) *Model {
	return &Model{
		current:   &snapshot{labels: map[int]string{}},
		threshold: threshold,
	}
}

// Threshold gibt den Abstands-Schwellwert zurück
func (m *Model) Threshold() float64 {
	return m.threshold
}

// Install setzt einen neuen Snapshot ein und gibt den alten frei.
// classifier darf nil sein (untrainiertes Modell).
func (m *Model) Install(classifier Classifier, labels map[int]string, samples int, trainedAt time.Time) {
	next := &snapshot{
		classifier: classifier,
		labels:     make(map[int]string, len(labels)),
		samples:    samples,
		trainedAt:  trainedAt,
	}
	for label, name := range labels {
		next.labels[label] = name
	}

	m.mu.Lock()
	prev := m.current
	m.current = next
	m.mu.Unlock()

	// Keine Lesesperre hält den alten Snapshot mehr
	if prev != nil && prev.classifier != nil {
		if err := prev.classifier.Close(); err != nil {
			log.Warnf("Failed to release previous classifier: %v", err)
		}
	}
}

// PredictAll ordnet jedem Ausschnitt ein Ergebnis zu. Alle Vorhersagen verwenden denselben Snapshot.
func (m *Model) PredictAll(faces []*image.Gray) []Result {
	m.mu.RLock()
	defer m.mu.RUnlock()

	results := make([]Result, len(faces))
	for i, face := range faces {
		results[i] = m.predict(m.current, face)
	}
	return results
}

// Predict ordnet einen einzelnen Ausschnitt zu
func (m *Model) Predict(face *image.Gray) Result {
	return m.PredictAll([]*image.Gray{face})[0]
}

// predict setzt die Lesesperre voraus
func (m *Model) predict(s *snapshot, face *image.Gray) Result {
	if s.classifier == nil {
		return Unrecognized{Err: ErrUntrained}
	}

	label, distance, err := s.classifier.Predict(face)
	if err != nil {
		log.Debugf("Prediction failed: %v", err)
		return Unrecognized{Err: err}
	}

	name, ok := s.labels[label]
	if !ok {
		return Unrecognized{Confidence: distance, Err: fmt.Errorf("%w: %d", ErrUnknownLabel, label)}
	}
	if distance < m.threshold {
		return Recognized{Name: name, Confidence: distance}
	}
	return Unrecognized{Confidence: distance}
}

// Status gibt eine Zusammenfassung des aktuellen Snapshots zurück
func (m *Model) Status() ModelStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return ModelStatus{
		Trained:   m.current.classifier != nil,
		Labels:    len(m.current.labels),
		Samples:   m.current.samples,
		TrainedAt: m.current.trainedAt,
	}
}

// LabelEntries gibt die aktuelle Label-Zuordnung sortiert nach Label zurück
func (m *Model) LabelEntries() []models.LabelEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return labelEntries(m.current.labels)
}

// Close gibt den aktuellen Classifier frei
func (m *Model) Close() {
	m.Install(nil, nil, 0, time.Time{})
}

func labelEntries(labels map[int]string) []models.LabelEntry {
	entries := make([]models.LabelEntry, 0, len(labels))
	for label, name := range labels {
		entries = append(entries, models.LabelEntry{Label: label, Name: name})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Label < entries[j].Label })
	return entries
}
