// Package enrollment registriert neue Gesichter und stößt das Neutraining an.
package enrollment

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"facerag/internal/core/events"
	"facerag/internal/core/models"
	"facerag/internal/core/recognition"
	"facerag/internal/db/repository"
	"facerag/internal/metrics"
	"facerag/internal/util/imageutil"
	"facerag/internal/util/timezone"

	log "github.com/sirupsen/logrus"
)

var (
	// ErrMissingInput wird zurückgegeben, wenn Name oder Bild fehlen
	ErrMissingInput = errors.New("name and image are required")
	// ErrNoFaceDetected wird zurückgegeben, wenn im Bild kein Gesicht gefunden wurde
	ErrNoFaceDetected = errors.New("no face detected")
)

// Retrainer stößt ein vollständiges Neutraining an und wartet darauf
type Retrainer interface {
	Retrain(ctx context.Context, reason string) (*recognition.TrainingSummary, error)
}

// Result beschreibt eine erfolgreiche Registrierung
type Result struct {
	Record  *models.FaceRecord
	Summary *recognition.TrainingSummary
}

// Service registriert Gesichter
type Service struct {
	repo      repository.Repository
	detector  recognition.Detector
	retrainer Retrainer
	metrics   *metrics.Metrics
	publisher events.Publisher
}

// NewService erstellt einen neuen Registrierungsdienst
func NewService(repo repository.Repository, detector recognition.Detector, retrainer Retrainer,
	m *metrics.Metrics, publisher events.Publisher) *Service {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &Service{
		repo:      repo,
		detector:  detector,
		retrainer: retrainer,
		metrics:   m,
		publisher: publisher,
	}
}

// Register speichert den ersten gefundenen Gesichtsausschnitt unter dem Namen und trainiert
// das Modell danach synchron neu. Ohne Gesicht bleibt der Datenbestand unverändert.
func (s *Service) Register(ctx context.Context, name, payload string) (*Result, error) {
	if strings.TrimSpace(name) == "" || payload == "" {
		s.metrics.RecordRegistration(metrics.OutcomeInvalidInput)
		return nil, ErrMissingInput
	}

	data, err := imageutil.DecodePayload(payload)
	if err != nil {
		s.metrics.RecordRegistration(metrics.OutcomeInvalidInput)
		return nil, err
	}
	gray, err := imageutil.DecodeGray(data)
	if err != nil {
		s.metrics.RecordRegistration(metrics.OutcomeInvalidInput)
		return nil, err
	}

	regions, err := s.detector.Detect(gray)
	if err != nil {
		s.metrics.RecordRegistration(metrics.OutcomeError)
		return nil, fmt.Errorf("face detection failed: %w", err)
	}
	if len(regions) == 0 {
		s.metrics.RecordRegistration(metrics.OutcomeNoFace)
		return nil, ErrNoFaceDetected
	}
	if len(regions) > 1 {
		log.Debugf("Detected %d faces for %s, using the first one", len(regions), name)
	}

	crop, err := imageutil.EncodePNG(imageutil.Crop(gray, regions[0]))
	if err != nil {
		s.metrics.RecordRegistration(metrics.OutcomeError)
		return nil, err
	}

	record := &models.FaceRecord{Name: name, FaceImage: crop}
	if err := s.repo.CreateFace(ctx, record); err != nil {
		s.metrics.RecordRegistration(metrics.OutcomeError)
		return nil, fmt.Errorf("failed to store face record: %w", err)
	}
	log.Infof("Stored face record %d for %s", record.ID, name)

	summary, err := s.retrainer.Retrain(ctx, "registration of "+name)
	if err != nil {
		s.metrics.RecordRegistration(metrics.OutcomeError)
		return nil, fmt.Errorf("failed to retrain model: %w", err)
	}

	s.metrics.RecordRegistration(metrics.OutcomeSuccess)
	s.publisher.Publish(events.Event{
		Type:      events.TypeRegistered,
		Name:      name,
		Faces:     len(regions),
		Samples:   summary.Samples,
		Timestamp: timezone.Now(),
	})

	return &Result{Record: record, Summary: summary}, nil
}

// Message gibt die Erfolgsmeldung für einen Namen zurück
func Message(name string) string {
	return fmt.Sprintf("Face for %s registered and model updated successfully", name)
}
