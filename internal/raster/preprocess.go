package raster

import (
	"bytes"
	"fmt"
	"image"
	stddraw "image/draw"
	"image/jpeg"
	"image/png"
	"log/slog"

	"github.com/rwcarlsen/goexif/exif"
	"golang.org/x/image/draw"

	"github.com/floodwatch/imagery-pipeline/internal/domain"
)

const jpegQuality = 90

// Options controls one preprocessing run.
type Options struct {
	TargetWidth  int             // 0 keeps the source width
	OutputFormat domain.Encoding // png (default) or jpeg
	Crop         *domain.BoundingBox
}

// Metadata is whatever could be recovered from the payload's EXIF block.
// All fields are best-effort; a payload without EXIF yields the zero value.
type Metadata struct {
	CapturedAt  string `json:"captured_at,omitempty"`
	Orientation int    `json:"orientation,omitempty"`
}

// Result is a preprocessed artifact payload with its dimensions.
type Result struct {
	Data   []byte
	Width  int
	Height int
	Format domain.Encoding
	Meta   Metadata
}

// Preprocess decodes a raster payload, applies the best-effort crop, resizes
// to the target width preserving aspect ratio, stretches contrast, and
// re-encodes. Metadata and crop problems degrade to "use the whole frame"
// rather than failing; only an undecodable payload is an error.
func Preprocess(data []byte, opts Options, logger *slog.Logger) (Result, error) {
	img, err := Decode(data)
	if err != nil {
		return Result{}, err
	}

	meta := ExtractMetadata(data)

	rect := cropRegion(img.Bounds(), opts.Crop, logger)

	outFormat := opts.OutputFormat
	if outFormat != domain.EncodingJPEG {
		outFormat = domain.EncodingPNG
	}

	width := opts.TargetWidth
	if width <= 0 {
		width = rect.Dx()
	}
	height := rect.Dy() * width / rect.Dx()
	if height < 1 {
		height = 1
	}

	gray := image.NewGray(image.Rect(0, 0, width, height))
	if width == rect.Dx() && height == rect.Dy() {
		stddraw.Draw(gray, gray.Bounds(), img, rect.Min, stddraw.Src)
	} else {
		draw.CatmullRom.Scale(gray, gray.Bounds(), img, rect, draw.Src, nil)
	}

	stretchContrast(gray)

	var buf bytes.Buffer
	switch outFormat {
	case domain.EncodingJPEG:
		err = jpeg.Encode(&buf, gray, &jpeg.Options{Quality: jpegQuality})
	default:
		err = png.Encode(&buf, gray)
	}
	if err != nil {
		return Result{}, fmt.Errorf("encode %s: %w", outFormat, err)
	}

	return Result{
		Data:   buf.Bytes(),
		Width:  width,
		Height: height,
		Format: outFormat,
		Meta:   meta,
	}, nil
}

// ExtractMetadata pulls capture time and orientation from EXIF when present.
// Index rasters rendered by the provider rarely carry EXIF, so every failure
// path returns the zero value.
func ExtractMetadata(data []byte) Metadata {
	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		return Metadata{}
	}

	var meta Metadata
	if tag, err := x.Get(exif.DateTimeOriginal); err == nil {
		meta.CapturedAt, _ = tag.StringVal()
	} else if tag, err := x.Get(exif.DateTime); err == nil {
		meta.CapturedAt, _ = tag.StringVal()
	}
	if tag, err := x.Get(exif.Orientation); err == nil {
		meta.Orientation, _ = tag.Int(0)
	}
	return meta
}

// cropRegion resolves the requested crop against pixel space. Artifacts
// carry no geo-reference, so a geographic crop box cannot be mapped onto
// pixels cleanly; the whole frame is used instead. This is a known,
// deliberate limitation of the preprocessing stage.
func cropRegion(bounds image.Rectangle, crop *domain.BoundingBox, logger *slog.Logger) image.Rectangle {
	if crop == nil {
		return bounds
	}
	if err := crop.Validate(); err != nil {
		logger.Warn("invalid crop region, using full frame", "error", err)
		return bounds
	}
	logger.Debug("crop region has no pixel mapping, using full frame", "crop", crop.Key())
	return bounds
}

// stretchContrast applies a linear stretch anchored at the 2nd and 98th
// luminance percentiles, clipping outliers so a handful of hot pixels
// cannot flatten the display range.
func stretchContrast(img *image.Gray) {
	bounds := img.Bounds()
	total := bounds.Dx() * bounds.Dy()
	if total == 0 {
		return
	}

	var hist [256]int
	for _, pix := range img.Pix {
		hist[pix]++
	}

	lowCut := total * 2 / 100
	highCut := total * 98 / 100

	low, high, seen := 0, 255, 0
	for i, n := range hist {
		seen += n
		if seen <= lowCut {
			low = i
		}
		if seen <= highCut {
			high = i
		}
	}
	if high <= low {
		return
	}

	scale := 255.0 / float64(high-low)
	for i, pix := range img.Pix {
		v := (float64(pix) - float64(low)) * scale
		if v < 0 {
			v = 0
		} else if v > 255 {
			v = 255
		}
		img.Pix[i] = uint8(v)
	}
}
