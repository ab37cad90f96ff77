// Package raster decodes provider payloads into normalized intensity grids
// and prepares display-friendly artifacts.
package raster

import (
	"bytes"
	"image"

	// Register stdlib and TIFF decoders with image.Decode.
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/tiff"

	"github.com/floodwatch/imagery-pipeline/internal/domain"
)

// Decode parses a PNG, JPEG or TIFF payload. Failures come back as a
// domain.DecodeError carrying the byte length and a payload excerpt.
func Decode(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, domain.NewDecodeError(data, err)
	}
	return img, nil
}

// DecodeGrid decodes a payload and reduces it to a luminance grid.
func DecodeGrid(data []byte) (*domain.IntensityGrid, error) {
	img, err := Decode(data)
	if err != nil {
		return nil, err
	}
	return ToGrid(img), nil
}

// ToGrid reduces an image to one scalar per pixel in [0, 1]. Single-band
// payloads pass through unchanged (R=G=B makes the weighted sum the
// identity); multi-band payloads reduce to luminance with the fixed weights
// 0.299R + 0.587G + 0.114B. Any alpha channel is ignored.
func ToGrid(img image.Image) *domain.IntensityGrid {
	bounds := img.Bounds()
	grid := domain.NewIntensityGrid(bounds.Dx(), bounds.Dy())
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			lum := 0.299*float64(r) + 0.587*float64(g) + 0.114*float64(b)
			grid.Set(x-bounds.Min.X, y-bounds.Min.Y, lum/65535.0)
		}
	}
	return grid
}
