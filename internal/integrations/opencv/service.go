package opencv

import (
	"fmt"
	"sync"

	"facerag/config"

	log "github.com/sirupsen/logrus"
)

// Service ist der Hauptdienst für die OpenCV-Integration. Er hält den Gesichtsdetektor
// und das LBPH-Backend für Training und Erkennung.
type Service struct {
	detectorCfg   config.DetectorConfig
	recognizerCfg config.RecognizerConfig
	Detector      *CascadeDetector
	Backend       *LBPHBackend
	mutex         sync.Mutex
	initialized   bool
}

// NewService erstellt einen neuen OpenCV-Service und lädt die Cascade-Datei
func NewService(detectorCfg config.DetectorConfig, recognizerCfg config.RecognizerConfig) (*Service, error) {
	service := &Service{
		detectorCfg:   detectorCfg,
		recognizerCfg: recognizerCfg,
	}

	if err := service.initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize OpenCV service: %w", err)
	}
	return service, nil
}

// initialize initialisiert den OpenCV-Service
func (s *Service) initialize() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.initialized {
		return nil
	}

	detector, err := NewCascadeDetector(s.detectorCfg)
	if err != nil {
		return err
	}

	s.Detector = detector
	s.Backend = NewLBPHBackend(s.recognizerCfg.Radius, s.recognizerCfg.Neighbors)
	s.initialized = true

	log.Info("OpenCV face detection and LBPH recognition initialized")
	return nil
}

// Close gibt die Ressourcen des OpenCV-Service frei
func (s *Service) Close() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.initialized && s.Detector != nil {
		if err := s.Detector.Close(); err != nil {
			return err
		}
		s.initialized = false
	}
	return nil
}
