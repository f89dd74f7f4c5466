package recognition

import (
	"context"
	"fmt"
	"image"

	"facerag/internal/core/events"
	"facerag/internal/metrics"
	"facerag/internal/util/imageutil"
	"facerag/internal/util/timezone"

	log "github.com/sirupsen/logrus"
)

// FaceResult ist das Ergebnis für eine gefundene Region in Bildkoordinaten
type FaceResult struct {
	Name     string  `json:"name"`
	Top      int     `json:"top"`
	Right    int     `json:"right"`
	Bottom   int     `json:"bottom"`
	Left     int     `json:"left"`
	Distance float64 `json:"-"`
}

// Service erkennt alle Gesichter eines Bildes
type Service struct {
	detector  Detector
	model     *Model
	metrics   *metrics.Metrics
	publisher events.Publisher
}

// NewService erstellt einen neuen Erkennungsdienst
func NewService(detector Detector, model *Model, m *metrics.Metrics, publisher events.Publisher) *Service {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &Service{
		detector:  detector,
		model:     model,
		metrics:   m,
		publisher: publisher,
	}
}

// Recognize dekodiert das Bild, findet alle Regionen und ordnet jede unabhängig zu.
// Die Reihenfolge entspricht der des Detektors. Fehlschläge einzelner Vorhersagen ergeben "Unknown".
func (s *Service) Recognize(ctx context.Context, payload string) ([]FaceResult, error) {
	if payload == "" {
		s.metrics.RecordRecognition(metrics.OutcomeInvalidInput)
		return nil, ErrMissingImage
	}

	data, err := imageutil.DecodePayload(payload)
	if err != nil {
		s.metrics.RecordRecognition(metrics.OutcomeInvalidInput)
		return nil, err
	}
	gray, err := imageutil.DecodeGray(data)
	if err != nil {
		s.metrics.RecordRecognition(metrics.OutcomeInvalidInput)
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	regions, err := s.detector.Detect(gray)
	if err != nil {
		s.metrics.RecordRecognition(metrics.OutcomeError)
		return nil, fmt.Errorf("face detection failed: %w", err)
	}

	faces := make([]*image.Gray, len(regions))
	for i, r := range regions {
		faces[i] = imageutil.Crop(gray, r)
	}
	predictions := s.model.PredictAll(faces)

	results := make([]FaceResult, len(regions))
	matches := make([]events.Match, len(regions))
	for i, r := range regions {
		p := predictions[i]
		results[i] = FaceResult{
			Name:     p.DisplayName(),
			Top:      r.Min.Y,
			Right:    r.Max.X,
			Bottom:   r.Max.Y,
			Left:     r.Min.X,
			Distance: p.Distance(),
		}
		matches[i] = events.Match{Name: p.DisplayName(), Distance: p.Distance(), Known: p.Known()}
		s.metrics.RecordFace(p.Known())
	}

	s.metrics.RecordRecognition(metrics.OutcomeSuccess)
	if len(results) > 0 {
		s.publisher.Publish(events.Event{
			Type:      events.TypeRecognized,
			Faces:     len(results),
			Matches:   matches,
			Timestamp: timezone.Now(),
		})
	}

	log.Debugf("Recognized %d face(s)", len(results))
	return results, nil
}
