// Command genscene writes synthetic raster scenes used to exercise the
// pipeline without provider credentials. Scenes are grayscale PNGs with
// known bright regions so contour extraction output is predictable.
//
// Usage:
//
//	go run ./cmd/genscene -out data/scenes -size 512
package main

import (
	"flag"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"log"
	"math"
	"os"
	"path/filepath"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	outDir := flag.String("out", "data/scenes", "output directory for scene PNGs")
	size := flag.Int("size", 512, "scene edge length in pixels")
	flag.Parse()

	if *size < 16 {
		return fmt.Errorf("size must be at least 16, got %d", *size)
	}
	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		return err
	}

	scenes := []struct {
		name string
		fill func(x, y, size int) uint8
	}{
		{"s2-ndwi_blob.png", blob},
		{"s2-ndwi_twin.png", twin},
		{"s2-ndwi_specks.png", specks},
		{"s2-ndwi_flood.png", flood},
	}

	for _, scene := range scenes {
		img := render(*size, scene.fill)
		path := filepath.Join(*outDir, scene.name)
		if err := writePNG(path, img); err != nil {
			return fmt.Errorf("writing %s: %w", scene.name, err)
		}
		log.Printf("wrote %s", path)
	}
	return nil
}

func render(size int, fill func(x, y, size int) uint8) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			img.SetGray(x, y, color.Gray{Y: fill(x, y, size)})
		}
	}
	return img
}

// blob is one bright circle centered in the scene, radius a quarter of the
// edge. Extraction should yield exactly one polygon.
func blob(x, y, size int) uint8 {
	cx, cy := float64(size)/2, float64(size)/2
	r := float64(size) / 4
	if math.Hypot(float64(x)-cx, float64(y)-cy) < r {
		return 220
	}
	return 40
}

// twin is two overlapping circles; with the default merge behavior they
// come out as a single polygon.
func twin(x, y, size int) uint8 {
	r := float64(size) / 5
	c1x, c1y := float64(size)*0.42, float64(size)/2
	c2x, c2y := float64(size)*0.58, float64(size)/2
	if math.Hypot(float64(x)-c1x, float64(y)-c1y) < r ||
		math.Hypot(float64(x)-c2x, float64(y)-c2y) < r {
		return 220
	}
	return 40
}

// specks scatters isolated bright pixels on a regular lattice, enough to
// trip the noise ceiling.
func specks(x, y, size int) uint8 {
	step := size / 32
	if step < 2 {
		step = 2
	}
	if x%step == 0 && y%step == 0 && x > 0 && y > 0 {
		return 220
	}
	return 40
}

// flood brightens most of the frame, enough to trip the coverage guard.
func flood(x, y, size int) uint8 {
	margin := size / 10
	if x > margin && x < size-margin && y > margin && y < size-margin {
		return 220
	}
	return 40
}

func writePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return png.Encode(f, img)
}
