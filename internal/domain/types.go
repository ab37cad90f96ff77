package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// BoundingBox is a WGS-84 rectangle. Serialized as [minLon, minLat, maxLon,
// maxLat], matching the GeoJSON bbox convention.
type BoundingBox struct {
	MinLon float64
	MinLat float64
	MaxLon float64
	MaxLat float64
}

// NewBoundingBox validates and constructs a BoundingBox from four floats.
func NewBoundingBox(minLon, minLat, maxLon, maxLat float64) (BoundingBox, error) {
	b := BoundingBox{MinLon: minLon, MinLat: minLat, MaxLon: maxLon, MaxLat: maxLat}
	return b, b.Validate()
}

// Validate checks the min<max invariants.
func (b BoundingBox) Validate() error {
	if b.MinLon >= b.MaxLon {
		return fmt.Errorf("bounding box: minLon %v must be less than maxLon %v", b.MinLon, b.MaxLon)
	}
	if b.MinLat >= b.MaxLat {
		return fmt.Errorf("bounding box: minLat %v must be less than maxLat %v", b.MinLat, b.MaxLat)
	}
	return nil
}

// Width returns the longitudinal extent in degrees.
func (b BoundingBox) Width() float64 { return b.MaxLon - b.MinLon }

// Height returns the latitudinal extent in degrees.
func (b BoundingBox) Height() float64 { return b.MaxLat - b.MinLat }

// Area returns the planar footprint in squared degrees.
func (b BoundingBox) Area() float64 { return b.Width() * b.Height() }

// Key returns a stable string form used in fingerprints and artifact names.
func (b BoundingBox) Key() string {
	return fmt.Sprintf("%.6f,%.6f,%.6f,%.6f", b.MinLon, b.MinLat, b.MaxLon, b.MaxLat)
}

// MarshalJSON encodes the box as a four-element array.
func (b BoundingBox) MarshalJSON() ([]byte, error) {
	return json.Marshal([4]float64{b.MinLon, b.MinLat, b.MaxLon, b.MaxLat})
}

// UnmarshalJSON decodes a four-element array and validates it.
func (b *BoundingBox) UnmarshalJSON(data []byte) error {
	var arr [4]float64
	if err := json.Unmarshal(data, &arr); err != nil {
		return fmt.Errorf("bounding box: expected [minLon, minLat, maxLon, maxLat]: %w", err)
	}
	box, err := NewBoundingBox(arr[0], arr[1], arr[2], arr[3])
	if err != nil {
		return err
	}
	*b = box
	return nil
}

// Provenance source values for artifacts that did not come from a sensor.
const (
	SourcePlaceholder = "placeholder"
	SourceUpload      = "upload"
)

// Provenance records where an artifact came from.
type Provenance struct {
	Source string `json:"source"`         // sensor id, "placeholder" or "upload"
	Date   string `json:"date,omitempty"` // acquisition date, YYYY-MM-DD
}

// IsPlaceholder reports whether the artifact is synthetic.
func (p Provenance) IsPlaceholder() bool { return p.Source == SourcePlaceholder }

// RasterArtifact is an opaque raster payload with its declared encoding and
// provenance. Read-only once created.
type RasterArtifact struct {
	Name       string
	Data       []byte
	Encoding   Encoding
	Provenance Provenance
}

// AcquisitionRequest asks the raster source for a scene.
type AcquisitionRequest struct {
	BBox    BoundingBox
	Date    time.Time
	Sensors []SensorProfile // nil means the default priority list
}

// IntensityGrid is a width×height scalar field, one value per pixel in
// row-major order, values normalized to [0, 1]. It carries no geo-reference;
// geographic mapping is supplied separately as a BoundingBox.
type IntensityGrid struct {
	Width  int
	Height int
	Values []float64
}

// NewIntensityGrid allocates a zeroed grid.
func NewIntensityGrid(width, height int) *IntensityGrid {
	return &IntensityGrid{Width: width, Height: height, Values: make([]float64, width*height)}
}

// At returns the value at pixel (x, y). Callers must stay in bounds.
func (g *IntensityGrid) At(x, y int) float64 { return g.Values[y*g.Width+x] }

// Set assigns the value at pixel (x, y).
func (g *IntensityGrid) Set(x, y int, v float64) { g.Values[y*g.Width+x] = v }

// Polygon is a closed geographic ring with its planar area.
type Polygon struct {
	Ring [][2]float64 `json:"ring"` // [lon, lat], first point equals last
	Area float64      `json:"area"` // squared degrees
}

// PolygonCollection is the ordered result of one extraction run. Order has
// no semantic meaning but is stable for reproducible comparison.
type PolygonCollection struct {
	Polygons  []Polygon `json:"polygons"`
	SensorID  string    `json:"sensor_id,omitempty"` // set when a preset override applied
	Threshold float64   `json:"threshold"`
	MinArea   float64   `json:"min_area"`
}

// TotalArea sums the member polygon areas.
func (c PolygonCollection) TotalArea() float64 {
	var total float64
	for _, p := range c.Polygons {
		total += p.Area
	}
	return total
}

// AnalysisResult is the scored output of a full pipeline run, consumed by
// the external plan generator.
type AnalysisResult struct {
	ID           string            `json:"id"`
	BBox         BoundingBox       `json:"bbox"`
	Date         string            `json:"date"`
	ArtifactName string            `json:"artifact_name"`
	Provenance   Provenance        `json:"provenance"`
	SizeBytes    int               `json:"size_bytes"`
	Polygons     PolygonCollection `json:"polygons"`
	Confidence   ConfidenceMetrics `json:"confidence"`
	ProcessedAt  time.Time         `json:"processed_at"`
}

// Fingerprint produces a deterministic short hash of the given request
// parameters, used for cache addressing and artifact naming. Reprocessing
// the same parameters always yields the same fingerprint.
func Fingerprint(parts ...string) string {
	hash := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(hash[:8])
}
