package domain

import "strings"

// Modality distinguishes the physical signal a sensor measures.
type Modality string

const (
	ModalityOptical Modality = "optical"
	ModalityRadar   Modality = "radar"
)

// ExtractionPreset holds the iso-contour parameters tuned for one sensor.
type ExtractionPreset struct {
	Threshold float64 // intensity in [0, 1] above which a pixel counts as signal
	MinArea   float64 // squared degrees below which a polygon is noise
}

// SensorProfile is a named acquisition and processing recipe.
type SensorProfile struct {
	ID          string
	Modality    Modality
	ResolutionM float64  // nominal ground resolution in meters
	Collection  string   // provider collection identifier
	Evalscript  string   // band reduction recipe sent to the process API
	Encoding    Encoding // expected payload encoding
	Preset      ExtractionPreset
}

// Evalscripts reduce the raw bands to a single scaled index layer. The NDWI
// script maps index -1..1 onto 0..255; the VV script maps backscatter in dB
// onto 0..255 with low (smooth water) returns bright, so both modalities
// threshold the same way.
const (
	evalscriptNDWI = `//VERSION=3
function setup() {
  return { input: ["B03", "B08"], output: { bands: 1, sampleType: "UINT8" } };
}
function evaluatePixel(s) {
  var ndwi = (s.B03 - s.B08) / (s.B03 + s.B08 + 1e-9);
  return [Math.round(Math.min(Math.max((ndwi + 1) / 2, 0), 1) * 255)];
}`

	evalscriptVV = `//VERSION=3
function setup() {
  return { input: ["VV"], output: { bands: 1, sampleType: "UINT8" } };
}
function evaluatePixel(s) {
  var db = 10 * Math.log(Math.max(s.VV, 1e-5)) / Math.LN10;
  // -25 dB (smooth water) -> 255, 0 dB (rough terrain) -> 0.
  return [Math.round(Math.min(Math.max(-db / 25, 0), 1) * 255)];
}`
)

// SensorPriority is the fixed acquisition order: optical first, radar as the
// cloud-independent fallback.
var SensorPriority = []SensorProfile{
	{
		ID:          "s2-ndwi",
		Modality:    ModalityOptical,
		ResolutionM: 10,
		Collection:  "sentinel-2-l2a",
		Evalscript:  evalscriptNDWI,
		Encoding:    EncodingPNG,
		Preset:      ExtractionPreset{Threshold: 0.52, MinArea: 1e-6},
	},
	{
		ID:          "s1-vv",
		Modality:    ModalityRadar,
		ResolutionM: 20,
		Collection:  "sentinel-1-grd",
		Evalscript:  evalscriptVV,
		Encoding:    EncodingTIFF,
		Preset:      ExtractionPreset{Threshold: 0.40, MinArea: 2e-6},
	},
}

// SensorByID looks a profile up in the priority list.
func SensorByID(id string) (SensorProfile, bool) {
	for _, p := range SensorPriority {
		if p.ID == id {
			return p, true
		}
	}
	return SensorProfile{}, false
}

// ProfileForArtifact returns the sensor profile whose id is embedded in an
// artifact name, if any. Artifact names produced by acquisition start with
// the sensor id, so extraction can recover the tuned preset without any
// side-channel metadata.
func ProfileForArtifact(name string) (SensorProfile, bool) {
	for _, p := range SensorPriority {
		if strings.Contains(name, p.ID) {
			return p, true
		}
	}
	return SensorProfile{}, false
}
