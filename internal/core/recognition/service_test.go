package recognition_test

import (
	"context"
	"errors"
	"image"
	"testing"

	"facerag/internal/core/events"
	"facerag/internal/core/recognition"
	"facerag/internal/core/recognition/recognitiontest"
	"facerag/internal/util/imageutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	events []events.Event
}

func (p *recordingPublisher) Publish(evt events.Event) {
	p.events = append(p.events, evt)
}

func TestService_RecognizeMultipleFaces(t *testing.T) {
	model := recognition.NewModel(100)
	model.Install(trainedClassifier(t, map[uint8]int{200: 0}), map[int]string{0: "Alice"}, 1, testTime())
	publisher := &recordingPublisher{}
	svc := recognition.NewService(recognitiontest.BlobDetector{}, model, nil, publisher)

	img := recognitiontest.Image(120, 60,
		recognitiontest.Face{Rect: image.Rect(5, 10, 35, 40), Brightness: 200},
		recognitiontest.Face{Rect: image.Rect(60, 5, 100, 45), Brightness: 40},
	)

	// Ergebnisse folgen der Reihenfolge des Detektors (zeilenweise, also zuerst Top 5)
	regions, err := recognitiontest.BlobDetector{}.Detect(img)
	require.NoError(t, err)
	require.Equal(t, []image.Rectangle{image.Rect(60, 5, 100, 45), image.Rect(5, 10, 35, 40)}, regions)

	results, err := svc.Recognize(context.Background(), recognitiontest.DataURI(img))
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, recognition.FaceResult{Name: recognition.UnknownName, Top: 5, Right: 100, Bottom: 45, Left: 60}, withoutDistance(results[0]))
	assert.Equal(t, recognition.FaceResult{Name: "Alice", Top: 10, Right: 35, Bottom: 40, Left: 5}, withoutDistance(results[1]))
	for i, r := range regions {
		assert.Equal(t, r, image.Rect(results[i].Left, results[i].Top, results[i].Right, results[i].Bottom))
	}

	bounds := img.Bounds()
	for _, r := range results {
		assert.True(t, image.Rect(r.Left, r.Top, r.Right, r.Bottom).In(bounds))
	}

	require.Len(t, publisher.events, 1)
	assert.Equal(t, events.TypeRecognized, publisher.events[0].Type)
	assert.Equal(t, 2, publisher.events[0].Faces)
}

func TestService_UntrainedModelYieldsUnknown(t *testing.T) {
	svc := recognition.NewService(recognitiontest.BlobDetector{}, recognition.NewModel(100), nil, nil)
	img := recognitiontest.Image(40, 40, recognitiontest.Face{Rect: image.Rect(5, 5, 25, 25), Brightness: 200})

	results, err := svc.Recognize(context.Background(), recognitiontest.DataURI(img))
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, recognition.UnknownName, results[0].Name)
}

func TestService_NoFaces(t *testing.T) {
	svc := recognition.NewService(recognitiontest.BlobDetector{}, recognition.NewModel(100), nil, nil)
	results, err := svc.Recognize(context.Background(), recognitiontest.DataURI(recognitiontest.Image(30, 30)))
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestService_InputErrors(t *testing.T) {
	svc := recognition.NewService(recognitiontest.BlobDetector{}, recognition.NewModel(100), nil, nil)

	_, err := svc.Recognize(context.Background(), "")
	assert.ErrorIs(t, err, recognition.ErrMissingImage)

	_, err = svc.Recognize(context.Background(), "data:image/png;base64,bm90IGFuIGltYWdl")
	assert.ErrorIs(t, err, imageutil.ErrInvalidImage)

	failing := recognition.NewService(recognitiontest.BlobDetector{Err: errors.New("boom")}, recognition.NewModel(100), nil, nil)
	img := recognitiontest.Image(10, 10)
	_, err = failing.Recognize(context.Background(), recognitiontest.DataURI(img))
	require.Error(t, err)
	assert.NotErrorIs(t, err, imageutil.ErrInvalidImage)
}

func withoutDistance(r recognition.FaceResult) recognition.FaceResult {
	r.Distance = 0
	return r
}
