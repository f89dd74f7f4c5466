package opencv

import (
	"image"
	"os"
	"path/filepath"
	"testing"

	"facerag/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewService_MissingCascade(t *testing.T) {
	_, err := NewService(config.DetectorConfig{
		CascadeFile:  filepath.Join(t.TempDir(), "missing_cascade.xml"),
		ScaleFactor:  1.1,
		MinNeighbors: 5,
	}, config.RecognizerConfig{})
	assert.Error(t, err)
}

// Benötigt eine installierte Haar-Cascade; der Pfad kommt aus FACERAG_TEST_CASCADE.
func TestService_DetectAndTrain(t *testing.T) {
	cascade := os.Getenv("FACERAG_TEST_CASCADE")
	if cascade == "" {
		t.Skip("FACERAG_TEST_CASCADE not set")
	}

	svc, err := NewService(config.DetectorConfig{CascadeFile: cascade, ScaleFactor: 1.1, MinNeighbors: 5},
		config.RecognizerConfig{Radius: 1, Neighbors: 8})
	require.NoError(t, err)
	defer svc.Close()

	// Ein einfarbiges Bild enthält kein Gesicht
	blank := image.NewGray(image.Rect(0, 0, 64, 64))
	rects, err := svc.Detector.Detect(blank)
	require.NoError(t, err)
	assert.Empty(t, rects)

	// LBPH unterscheidet zwei Texturen
	a := stripes(32, 2)
	b := stripes(32, 7)
	classifier, err := svc.Backend.Train([]*image.Gray{a, b}, []int{0, 1})
	require.NoError(t, err)
	defer classifier.Close()

	label, distance, err := classifier.Predict(a)
	require.NoError(t, err)
	assert.Equal(t, 0, label)
	assert.Less(t, distance, 100.0)

	path := filepath.Join(t.TempDir(), "model.xml")
	require.NoError(t, classifier.Save(path))
	loaded, err := svc.Backend.Load(path)
	require.NoError(t, err)
	defer loaded.Close()

	label, _, err = loaded.Predict(b)
	require.NoError(t, err)
	assert.Equal(t, 1, label)
}

func stripes(size, period int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			if (x/period)%2 == 0 {
				img.Pix[y*img.Stride+x] = 220
			} else {
				img.Pix[y*img.Stride+x] = 30
			}
		}
	}
	return img
}
