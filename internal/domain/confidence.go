package domain

import "math"

// ConfidenceConfig holds the scoring tunables. The caps and weights are
// heuristics, not physical constants, so they live in configuration with
// these defaults rather than being hardcoded.
type ConfidenceConfig struct {
	SizeCapBytes  int     // payload size at which imagery quality saturates
	PolygonCap    int     // polygon count at which yield confidence saturates
	WeatherScore  float64 // weather confidence when a real reading was obtained
	WeatherAbsent float64 // weather confidence when no reading was obtained
	SatelliteW    float64
	WeatherW      float64
	DocumentsW    float64
}

// DefaultConfidenceConfig returns the stock tunables: quality saturates at a
// 256 KiB payload and 8 polygons, weights 40/35/25.
func DefaultConfidenceConfig() ConfidenceConfig {
	return ConfidenceConfig{
		SizeCapBytes:  256 * 1024,
		PolygonCap:    8,
		WeatherScore:  85,
		WeatherAbsent: 30,
		SatelliteW:    0.40,
		WeatherW:      0.35,
		DocumentsW:    0.25,
	}
}

// ConfidenceInputs are the observable facts one pipeline run produces.
type ConfidenceInputs struct {
	ArtifactSizeBytes int
	PolygonCount      int
	Provenance        string // artifact source: sensor id, "placeholder" or "upload"
	WeatherAvailable  bool
}

// ConfidenceMetrics are normalized 0-100 scores per source plus the weighted
// overall score.
type ConfidenceMetrics struct {
	Satellite float64 `json:"satellite"`
	Weather   float64 `json:"weather"`
	Documents float64 `json:"documents"`
	Overall   int     `json:"overall"`
}

// ScoreConfidence is a pure function of the inputs and tunables. Increasing
// payload size or polygon count (below their caps) never decreases the
// corresponding component, and every score stays within [0, 100].
func ScoreConfidence(in ConfidenceInputs, cfg ConfidenceConfig) ConfidenceMetrics {
	sizeScore := cappedScore(float64(in.ArtifactSizeBytes), float64(cfg.SizeCapBytes))
	countScore := cappedScore(float64(in.PolygonCount), float64(cfg.PolygonCap))
	satellite := (sizeScore + countScore) / 2

	weather := cfg.WeatherAbsent
	if in.WeatherAvailable {
		weather = cfg.WeatherScore
	}

	// Document confidence rewards a real imagery source and a non-empty
	// polygon yield; a placeholder scene keeps a token floor.
	documents := 10.0
	if in.Provenance != SourcePlaceholder {
		documents = 50
	}
	if in.PolygonCount > 0 {
		documents += 50
	}
	documents = math.Min(documents, 100)

	overall := cfg.SatelliteW*satellite + cfg.WeatherW*weather + cfg.DocumentsW*documents

	return ConfidenceMetrics{
		Satellite: satellite,
		Weather:   weather,
		Documents: documents,
		Overall:   int(math.Round(math.Min(math.Max(overall, 0), 100))),
	}
}

func cappedScore(value, limit float64) float64 {
	if limit <= 0 {
		return 0
	}
	return math.Min(100, 100*value/limit)
}
