// Package recognitiontest stellt OpenCV-freie Detektoren und Classifier für Tests bereit.
//
// Ein "Gesicht" ist ein zusammenhängender Bereich von Pixeln ungleich null auf schwarzem Grund.
// Die Identität eines Gesichts ist seine mittlere Helligkeit.
package recognitiontest

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"sync"

	"facerag/internal/core/recognition"
)

// BlobDetector findet zusammenhängende helle Bereiche (4er-Nachbarschaft)
type BlobDetector struct {
	Err error
}

// Detect implementiert recognition.Detector
func (d BlobDetector) Detect(img *image.Gray) ([]image.Rectangle, error) {
	if d.Err != nil {
		return nil, d.Err
	}
	b := img.Bounds()
	seen := make([]bool, b.Dx()*b.Dy())
	idx := func(x, y int) int { return (y-b.Min.Y)*b.Dx() + (x - b.Min.X) }

	var regions []image.Rectangle
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if seen[idx(x, y)] || img.GrayAt(x, y).Y == 0 {
				continue
			}
			rect := image.Rect(x, y, x+1, y+1)
			stack := []image.Point{{x, y}}
			seen[idx(x, y)] = true
			for len(stack) > 0 {
				p := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				rect = rect.Union(image.Rect(p.X, p.Y, p.X+1, p.Y+1))
				for _, n := range []image.Point{{p.X + 1, p.Y}, {p.X - 1, p.Y}, {p.X, p.Y + 1}, {p.X, p.Y - 1}} {
					if !n.In(b) || seen[idx(n.X, n.Y)] || img.GrayAt(n.X, n.Y).Y == 0 {
						continue
					}
					seen[idx(n.X, n.Y)] = true
					stack = append(stack, n)
				}
			}
			regions = append(regions, rect)
		}
	}
	return regions, nil
}

type sample struct {
	Mean  float64 `json:"mean"`
	Label int     `json:"label"`
}

// MeanClassifier ordnet nach der nächstgelegenen mittleren Helligkeit zu.
// Der Abstand ist die zehnfache Helligkeitsdifferenz.
type MeanClassifier struct {
	samples []sample

	mu     sync.Mutex
	closed bool
}

// Predict implementiert recognition.Classifier
func (c *MeanClassifier) Predict(face *image.Gray) (int, float64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return 0, 0, errors.New("classifier closed")
	}
	if len(c.samples) == 0 {
		return 0, 0, errors.New("classifier has no samples")
	}
	m := Mean(face)
	best, bestDist := -1, math.MaxFloat64
	for _, s := range c.samples {
		if d := math.Abs(s.Mean-m) * 10; d < bestDist {
			best, bestDist = s.Label, d
		}
	}
	return best, bestDist, nil
}

// Save implementiert recognition.Classifier
func (c *MeanClassifier) Save(path string) error {
	data, err := json.Marshal(c.samples)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// Close implementiert recognition.Classifier
func (c *MeanClassifier) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

// Closed meldet, ob Close aufgerufen wurde
func (c *MeanClassifier) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Backend trainiert MeanClassifier und merkt sich die Trainingsaufrufe
type Backend struct {
	mu         sync.Mutex
	TrainCalls int
	LastLabels []int
	Trained    []*MeanClassifier
}

// Train implementiert recognition.Backend
func (b *Backend) Train(faces []*image.Gray, labels []int) (recognition.Classifier, error) {
	if len(faces) != len(labels) {
		return nil, fmt.Errorf("got %d faces but %d labels", len(faces), len(labels))
	}
	c := &MeanClassifier{}
	for i, f := range faces {
		c.samples = append(c.samples, sample{Mean: Mean(f), Label: labels[i]})
	}

	b.mu.Lock()
	b.TrainCalls++
	b.LastLabels = append([]int(nil), labels...)
	b.Trained = append(b.Trained, c)
	b.mu.Unlock()
	return c, nil
}

// Load implementiert recognition.Backend
func (b *Backend) Load(path string) (recognition.Classifier, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	c := &MeanClassifier{}
	if err := json.Unmarshal(data, &c.samples); err != nil {
		return nil, err
	}
	return c, nil
}

// Calls gibt die Anzahl der Trainingsaufrufe zurück
func (b *Backend) Calls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.TrainCalls
}

// Mean berechnet die mittlere Helligkeit eines Bildes
func Mean(img *image.Gray) float64 {
	b := img.Bounds()
	if b.Empty() {
		return 0
	}
	var sum float64
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			sum += float64(img.GrayAt(x, y).Y)
		}
	}
	return sum / float64(b.Dx()*b.Dy())
}

// Face beschreibt ein gefülltes Quadrat in einem Testbild
type Face struct {
	Rect       image.Rectangle
	Brightness uint8
}

// Image zeichnet die Gesichter auf schwarzen Grund
func Image(w, h int, faces ...Face) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for _, f := range faces {
		for y := f.Rect.Min.Y; y < f.Rect.Max.Y; y++ {
			for x := f.Rect.Min.X; x < f.Rect.Max.X; x++ {
				img.SetGray(x, y, color.Gray{Y: f.Brightness})
			}
		}
	}
	return img
}

// DataURI kodiert ein Bild als PNG-Data-URI
func DataURI(img image.Image) string {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		panic(err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())
}
