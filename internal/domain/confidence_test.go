package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScoreConfidence_Deterministic(t *testing.T) {
	in := ConfidenceInputs{
		ArtifactSizeBytes: 100 * 1024,
		PolygonCount:      3,
		Provenance:        "s2-ndwi",
		WeatherAvailable:  true,
	}
	cfg := DefaultConfidenceConfig()

	first := ScoreConfidence(in, cfg)
	second := ScoreConfidence(in, cfg)
	assert.Equal(t, first, second)
}

func TestScoreConfidence_AllScoresInRange(t *testing.T) {
	cfg := DefaultConfidenceConfig()
	cases := []ConfidenceInputs{
		{},
		{ArtifactSizeBytes: 1},
		{ArtifactSizeBytes: 10 * 1024 * 1024, PolygonCount: 500, Provenance: "s1-vv", WeatherAvailable: true},
		{Provenance: SourcePlaceholder},
		{Provenance: SourcePlaceholder, PolygonCount: 100, WeatherAvailable: true},
	}

	for _, in := range cases {
		m := ScoreConfidence(in, cfg)
		assert.GreaterOrEqual(t, m.Satellite, 0.0)
		assert.LessOrEqual(t, m.Satellite, 100.0)
		assert.GreaterOrEqual(t, m.Weather, 0.0)
		assert.LessOrEqual(t, m.Weather, 100.0)
		assert.GreaterOrEqual(t, m.Documents, 0.0)
		assert.LessOrEqual(t, m.Documents, 100.0)
		assert.GreaterOrEqual(t, m.Overall, 0)
		assert.LessOrEqual(t, m.Overall, 100)
	}
}

func TestScoreConfidence_MonotonicInSize(t *testing.T) {
	cfg := DefaultConfidenceConfig()
	prev := -1.0
	for _, size := range []int{0, 1024, 64 * 1024, 128 * 1024, 256 * 1024, 512 * 1024} {
		m := ScoreConfidence(ConfidenceInputs{ArtifactSizeBytes: size, Provenance: "s2-ndwi"}, cfg)
		assert.GreaterOrEqual(t, m.Satellite, prev, "size %d", size)
		prev = m.Satellite
	}
}

func TestScoreConfidence_MonotonicInPolygonCount(t *testing.T) {
	cfg := DefaultConfidenceConfig()
	prev := -1.0
	for count := 0; count <= cfg.PolygonCap; count++ {
		m := ScoreConfidence(ConfidenceInputs{PolygonCount: count, Provenance: "s2-ndwi"}, cfg)
		assert.GreaterOrEqual(t, m.Satellite, prev, "count %d", count)
		prev = m.Satellite
	}
}

func TestScoreConfidence_SizeSaturatesAtCap(t *testing.T) {
	cfg := DefaultConfidenceConfig()
	atCap := ScoreConfidence(ConfidenceInputs{ArtifactSizeBytes: cfg.SizeCapBytes}, cfg)
	beyond := ScoreConfidence(ConfidenceInputs{ArtifactSizeBytes: cfg.SizeCapBytes * 10}, cfg)
	assert.Equal(t, atCap.Satellite, beyond.Satellite)
}

func TestScoreConfidence_WeatherComponent(t *testing.T) {
	cfg := DefaultConfidenceConfig()

	with := ScoreConfidence(ConfidenceInputs{WeatherAvailable: true, Provenance: "s2-ndwi"}, cfg)
	without := ScoreConfidence(ConfidenceInputs{WeatherAvailable: false, Provenance: "s2-ndwi"}, cfg)

	assert.InDelta(t, cfg.WeatherScore, with.Weather, 1e-9)
	assert.InDelta(t, cfg.WeatherAbsent, without.Weather, 1e-9)
	assert.Greater(t, with.Overall, without.Overall)
}

func TestScoreConfidence_PlaceholderScoresLower(t *testing.T) {
	cfg := DefaultConfidenceConfig()

	real := ScoreConfidence(ConfidenceInputs{
		ArtifactSizeBytes: 64 * 1024, PolygonCount: 2, Provenance: "s2-ndwi",
	}, cfg)
	placeholder := ScoreConfidence(ConfidenceInputs{
		ArtifactSizeBytes: 64 * 1024, PolygonCount: 2, Provenance: SourcePlaceholder,
	}, cfg)

	assert.Less(t, placeholder.Documents, real.Documents)
	assert.Less(t, placeholder.Overall, real.Overall)
}

func TestScoreConfidence_OverallWeights(t *testing.T) {
	// With all three components fixed, the overall score is the exact
	// weighted sum.
	cfg := DefaultConfidenceConfig()
	m := ScoreConfidence(ConfidenceInputs{
		ArtifactSizeBytes: cfg.SizeCapBytes,
		PolygonCount:      cfg.PolygonCap,
		Provenance:        "s2-ndwi",
		WeatherAvailable:  true,
	}, cfg)

	assert.InDelta(t, 100, m.Satellite, 1e-9)
	assert.InDelta(t, 100, m.Documents, 1e-9)
	// 0.40*100 + 0.35*85 + 0.25*100 = 94.75 → 95
	assert.Equal(t, 95, m.Overall)
}

func TestCappedScore_ZeroLimit(t *testing.T) {
	assert.Zero(t, cappedScore(50, 0))
}
