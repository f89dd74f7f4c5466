package opencv

import (
	"errors"
	"fmt"
	"image"
	"os"
	"sync"

	"facerag/internal/core/recognition"

	"gocv.io/x/gocv"
	"gocv.io/x/gocv/contrib"
)

// LBPHBackend trainiert und lädt LBPH-Gesichtserkenner
type LBPHBackend struct {
	Radius    int
	Neighbors int
}

// NewLBPHBackend erstellt ein Backend mit den LBPH-Parametern
func NewLBPHBackend(radius, neighbors int) *LBPHBackend {
	return &LBPHBackend{Radius: radius, Neighbors: neighbors}
}

func (b *LBPHBackend) newRecognizer() *contrib.LBPHFaceRecognizer {
	rec := contrib.NewLBPHFaceRecognizer()
	if b.Radius > 0 {
		rec.SetRadius(b.Radius)
	}
	if b.Neighbors > 0 {
		rec.SetNeighbors(b.Neighbors)
	}
	return rec
}

// Train implementiert recognition.Backend
func (b *LBPHBackend) Train(faces []*image.Gray, labels []int) (recognition.Classifier, error) {
	if len(faces) == 0 {
		return nil, errors.New("no training samples")
	}
	if len(faces) != len(labels) {
		return nil, fmt.Errorf("got %d samples but %d labels", len(faces), len(labels))
	}

	mats := make([]gocv.Mat, 0, len(faces))
	defer func() {
		for _, m := range mats {
			m.Close()
		}
	}()
	for i, f := range faces {
		m, err := gocv.ImageGrayToMatGray(f)
		if err != nil {
			return nil, fmt.Errorf("failed to convert sample %d: %w", i, err)
		}
		mats = append(mats, m)
	}

	rec := b.newRecognizer()
	rec.Train(mats, labels)
	return &lbphClassifier{rec: rec}, nil
}

// Load implementiert recognition.Backend
func (b *LBPHBackend) Load(path string) (recognition.Classifier, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("model file not available: %w", err)
	}
	rec := b.newRecognizer()
	rec.LoadFile(path)
	return &lbphClassifier{rec: rec}, nil
}

// lbphClassifier kapselt einen trainierten LBPH-Erkenner
type lbphClassifier struct {
	rec    *contrib.LBPHFaceRecognizer
	mutex  sync.Mutex
	closed bool
}

// Predict implementiert recognition.Classifier. Der Abstand ist die LBPH-Konfidenz.
func (c *lbphClassifier) Predict(face *image.Gray) (int, float64, error) {
	mat, err := gocv.ImageGrayToMatGray(face)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to convert face: %w", err)
	}
	defer mat.Close()

	c.mutex.Lock()
	defer c.mutex.Unlock()
	if c.closed {
		return 0, 0, errors.New("recognizer already released")
	}

	resp := c.rec.PredictExtendedResponse(mat)
	if resp.Label < 0 {
		return 0, 0, fmt.Errorf("recognizer returned no label")
	}
	return int(resp.Label), float64(resp.Confidence), nil
}

// Save implementiert recognition.Classifier
func (c *lbphClassifier) Save(path string) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if c.closed {
		return errors.New("recognizer already released")
	}

	c.rec.SaveFile(path)
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("model file was not written: %w", err)
	}
	return nil
}

// Close implementiert recognition.Classifier
func (c *lbphClassifier) Close() error {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	// Ältere gocv-Versionen bieten kein Close für den Erkenner
	if closer, ok := any(c.rec).(interface{ Close() error }); ok {
		return closer.Close()
	}
	return nil
}
