package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBoundingBox_Valid(t *testing.T) {
	b, err := NewBoundingBox(-97.5, 30.1, -97.0, 30.6)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, b.Width(), 1e-9)
	assert.InDelta(t, 0.5, b.Height(), 1e-9)
	assert.InDelta(t, 0.25, b.Area(), 1e-9)
}

func TestNewBoundingBox_RejectsInverted(t *testing.T) {
	_, err := NewBoundingBox(-97.0, 30.1, -97.5, 30.6)
	assert.Error(t, err)

	_, err = NewBoundingBox(-97.5, 30.6, -97.0, 30.1)
	assert.Error(t, err)

	_, err = NewBoundingBox(-97.5, 30.1, -97.5, 30.6)
	assert.Error(t, err, "zero width is degenerate")
}

func TestBoundingBox_JSONRoundTrip(t *testing.T) {
	b, err := NewBoundingBox(-97.5, 30.1, -97.0, 30.6)
	require.NoError(t, err)

	data, err := json.Marshal(b)
	require.NoError(t, err)
	assert.JSONEq(t, `[-97.5, 30.1, -97, 30.6]`, string(data))

	var back BoundingBox
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, b, back)
}

func TestBoundingBox_UnmarshalRejectsInvalid(t *testing.T) {
	var b BoundingBox
	assert.Error(t, json.Unmarshal([]byte(`[1, 2, 3]`), &b))
	assert.Error(t, json.Unmarshal([]byte(`[3, 2, 1, 4]`), &b))
}

func TestFingerprint_DeterministicAndShort(t *testing.T) {
	a := Fingerprint("acquire", "-97.5,30.1,-97.0,30.6", "2026-08-01")
	b := Fingerprint("acquire", "-97.5,30.1,-97.0,30.6", "2026-08-01")
	c := Fingerprint("acquire", "-97.5,30.1,-97.0,30.6", "2026-08-02")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 16, "hex of first 8 hash bytes")
}

func TestFingerprint_PartBoundariesMatter(t *testing.T) {
	assert.NotEqual(t, Fingerprint("ab", "c"), Fingerprint("a", "bc"))
}

func TestIntensityGrid_RowMajorAccess(t *testing.T) {
	g := NewIntensityGrid(3, 2)
	g.Set(2, 1, 0.75)

	assert.InDelta(t, 0.75, g.At(2, 1), 1e-9)
	assert.InDelta(t, 0.75, g.Values[1*3+2], 1e-9)
	assert.Zero(t, g.At(0, 0))
}

func TestProvenance_IsPlaceholder(t *testing.T) {
	assert.True(t, Provenance{Source: SourcePlaceholder}.IsPlaceholder())
	assert.False(t, Provenance{Source: "s2-ndwi"}.IsPlaceholder())
}

func TestPolygonCollection_TotalArea(t *testing.T) {
	c := PolygonCollection{Polygons: []Polygon{{Area: 1.5}, {Area: 0.25}}}
	assert.InDelta(t, 1.75, c.TotalArea(), 1e-9)
}
