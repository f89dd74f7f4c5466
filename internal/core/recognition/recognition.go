// Package recognition enthält das LBPH-Erkennungsmodell, dessen Training und den Erkennungsdienst.
// Die eigentliche Bildverarbeitung liegt hinter den Schnittstellen Detector und Backend.
package recognition

import (
	"errors"
	"image"
)

// UnknownName wird für nicht zugeordnete Regionen ausgegeben
const UnknownName = "Unknown"

var (
	// ErrMissingImage wird zurückgegeben, wenn kein Bild übergeben wurde
	ErrMissingImage = errors.New("no image provided")
	// ErrUntrained wird zurückgegeben, wenn kein trainiertes Modell vorliegt
	ErrUntrained = errors.New("model is not trained")
	// ErrUnknownLabel wird zurückgegeben, wenn ein Label nicht in der Zuordnung steht
	ErrUnknownLabel = errors.New("label not in mapping")
)

// Detector findet Gesichtsregionen in einem Graustufenbild
type Detector interface {
	Detect(img *image.Gray) ([]image.Rectangle, error)
}

// Classifier ist ein trainiertes Modell, das einem Gesichtsausschnitt ein Label zuordnet.
// Der Abstand ist umso kleiner, je ähnlicher der Ausschnitt den Trainingsdaten ist.
type Classifier interface {
	Predict(face *image.Gray) (label int, distance float64, err error)
	Save(path string) error
	Close() error
}

// Backend trainiert Classifier von Grund auf oder lädt sie aus einer Datei
type Backend interface {
	Train(faces []*image.Gray, labels []int) (Classifier, error)
	Load(path string) (Classifier, error)
}

// Result ist das Ergebnis der Zuordnung einer einzelnen Region
type Result interface {
	DisplayName() string
	Distance() float64
	Known() bool
}

// Recognized ist eine Region, deren Abstand unter dem Schwellwert liegt
type Recognized struct {
	Name       string
	Confidence float64
}

// DisplayName implementiert Result
func (r Recognized) DisplayName() string { return r.Name }

// Distance implementiert Result
func (r Recognized) Distance() float64 { return r.Confidence }

// Known implementiert Result
func (r Recognized) Known() bool { return true }

// Unrecognized ist eine Region ohne Zuordnung. Err ist gesetzt, wenn die Vorhersage fehlschlug.
type Unrecognized struct {
	Confidence float64
	Err        error
}

// DisplayName implementiert Result
func (r Unrecognized) DisplayName() string { return UnknownName }

// Distance implementiert Result
func (r Unrecognized) Distance() float64 { return r.Confidence }

// Known implementiert Result
func (r Unrecognized) Known() bool { return false }
