// Package imageutil dekodiert hochgeladene Bilder und bereitet Graustufen-Ausschnitte auf.
package imageutil

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"strings"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp" // WebP-Uploads aus Browsern
)

var (
	// ErrInvalidImage wird zurückgegeben, wenn die Nutzdaten kein lesbares Bild sind
	ErrInvalidImage = errors.New("invalid image")
)

// DecodePayload dekodiert einen Base64-String, optional mit Data-URI-Präfix
// ("data:image/png;base64,..."). Getrennt wird am ersten Komma.
func DecodePayload(payload string) ([]byte, error) {
	encoded := payload
	if idx := strings.IndexByte(payload, ','); idx >= 0 {
		encoded = payload[idx+1:]
	}
	encoded = strings.TrimSpace(encoded)
	if encoded == "" {
		return nil, fmt.Errorf("%w: empty payload", ErrInvalidImage)
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		// Browser liefern gelegentlich Base64 ohne Padding
		raw, rawErr := base64.RawStdEncoding.DecodeString(strings.TrimRight(encoded, "="))
		if rawErr != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
		}
		data = raw
	}
	return data, nil
}

// DecodeGray dekodiert ein Bild (JPEG, PNG, GIF, BMP, TIFF, WebP), berücksichtigt die
// EXIF-Orientierung und wandelt es in Graustufen um.
func DecodeGray(data []byte) (*image.Gray, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: no data", ErrInvalidImage)
	}
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	return ToGray(img), nil
}

// ToGray wandelt ein beliebiges Bild in ein Graustufenbild mit Ursprung (0,0) um
func ToGray(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok && g.Rect.Min == (image.Point{}) {
		return g
	}
	b := img.Bounds()
	gray := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(gray, gray.Bounds(), img, b.Min, draw.Src)
	return gray
}

// Crop kopiert den Bereich r aus img in ein neues Bild. r wird auf die Bildgrenzen beschnitten.
func Crop(img *image.Gray, r image.Rectangle) *image.Gray {
	r = r.Intersect(img.Bounds())
	out := image.NewGray(image.Rect(0, 0, r.Dx(), r.Dy()))
	draw.Draw(out, out.Bounds(), img, r.Min, draw.Src)
	return out
}

// EncodePNG kodiert ein Bild verlustfrei als PNG
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, fmt.Errorf("failed to encode png: %w", err)
	}
	return buf.Bytes(), nil
}
