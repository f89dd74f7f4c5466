package opencv

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sync"

	"facerag/config"

	log "github.com/sirupsen/logrus"
	"gocv.io/x/gocv"
)

// cascadeSearchPaths sind übliche Installationsorte der OpenCV-Haar-Cascades
var cascadeSearchPaths = []string{
	"/usr/local/share/opencv4/haarcascades",
	"/usr/share/opencv4/haarcascades",
	"/opt/homebrew/share/opencv4/haarcascades",
	"./models/haarcascades",
}

// CascadeDetector findet Gesichter mit einem Haar-Cascade-Klassifikator
type CascadeDetector struct {
	cascade      gocv.CascadeClassifier
	scaleFactor  float64
	minNeighbors int
	minSize      image.Point
	mutex        sync.Mutex
	path         string
}

// NewCascadeDetector lädt die Cascade-Datei. Ein relativer Dateiname wird zusätzlich
// in den üblichen OpenCV-Verzeichnissen gesucht.
func NewCascadeDetector(cfg config.DetectorConfig) (*CascadeDetector, error) {
	cascade := gocv.NewCascadeClassifier()

	candidates := []string{cfg.CascadeFile}
	if !filepath.IsAbs(cfg.CascadeFile) {
		if dir := os.Getenv("OPENCV_CASCADE_PATH"); dir != "" {
			candidates = append(candidates, filepath.Join(dir, cfg.CascadeFile))
		}
		for _, dir := range cascadeSearchPaths {
			candidates = append(candidates, filepath.Join(dir, filepath.Base(cfg.CascadeFile)))
		}
	}

	loaded := ""
	for _, path := range candidates {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if cascade.Load(path) {
			loaded = path
			break
		}
	}
	if loaded == "" {
		cascade.Close()
		return nil, fmt.Errorf("failed to load face cascade classifier from %s or alternative paths", cfg.CascadeFile)
	}

	scale := cfg.ScaleFactor
	if scale <= 1.0 {
		scale = 1.1
	}

	log.Infof("Loaded face cascade from %s (scale %.2f, min neighbors %d)", loaded, scale, cfg.MinNeighbors)
	return &CascadeDetector{
		cascade:      cascade,
		scaleFactor:  scale,
		minNeighbors: cfg.MinNeighbors,
		minSize:      image.Pt(cfg.MinSizeWidth, cfg.MinSizeHeight),
		path:         loaded,
	}, nil
}

// Detect implementiert recognition.Detector
func (d *CascadeDetector) Detect(img *image.Gray) ([]image.Rectangle, error) {
	if img.Bounds().Empty() {
		return nil, nil
	}

	mat, err := gocv.ImageGrayToMatGray(img)
	if err != nil {
		return nil, fmt.Errorf("failed to convert image: %w", err)
	}
	defer mat.Close()

	d.mutex.Lock()
	defer d.mutex.Unlock()

	rects := d.cascade.DetectMultiScaleWithParams(mat, d.scaleFactor, d.minNeighbors, 0, d.minSize, image.Point{})
	return rects, nil
}

// Close gibt den Klassifikator frei
func (d *CascadeDetector) Close() error {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return d.cascade.Close()
}
