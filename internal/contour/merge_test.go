package contour

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/floodwatch/imagery-pipeline/internal/domain"
)

func rect(x0, y0, x1, y1 float64) domain.Polygon {
	ring := [][2]float64{{x0, y0}, {x1, y0}, {x1, y1}, {x0, y1}, {x0, y0}}
	return domain.Polygon{Ring: ring, Area: ringArea(ring)}
}

func TestMerge_OverlappingPairCollapses(t *testing.T) {
	a := rect(0, 0, 10, 10) // area 100
	b := rect(5, 0, 15, 10) // area 100, intersection 50

	out := Merge([]domain.Polygon{a, b}, MergeOverlapFraction)

	require.Len(t, out, 1)
	assert.InEpsilon(t, 150, out[0].Area, 0.05)
}

func TestMerge_SmallOverlapKeptApart(t *testing.T) {
	a := rect(0, 0, 10, 10)
	b := rect(9.5, 0, 19.5, 10) // intersection 5, 5% of the smaller

	out := Merge([]domain.Polygon{a, b}, MergeOverlapFraction)
	assert.Len(t, out, 2)
}

func TestMerge_DisjointUntouched(t *testing.T) {
	a := rect(0, 0, 1, 1)
	b := rect(5, 5, 6, 6)

	out := Merge([]domain.Polygon{a, b}, MergeOverlapFraction)
	require.Len(t, out, 2)
	assert.InEpsilon(t, 1.0, out[0].Area, 1e-9)
	assert.InEpsilon(t, 1.0, out[1].Area, 1e-9)
}

func TestMerge_SmallerSideDrivesTheRatio(t *testing.T) {
	// Intersection is 4: only 4% of the big polygon but 100% of the small
	// one, so the pair merges.
	big := rect(0, 0, 10, 10)
	small := rect(4, 4, 6, 6)

	out := Merge([]domain.Polygon{big, small}, MergeOverlapFraction)
	require.Len(t, out, 1)
	assert.InEpsilon(t, 100, out[0].Area, 0.05)
}

func TestMerge_ChainsToFixedPoint(t *testing.T) {
	// a overlaps b, b overlaps c: all three must end up in one polygon even
	// though a and c never touch.
	a := rect(0, 0, 10, 10)
	b := rect(8, 0, 18, 10)
	c := rect(16, 0, 26, 10)

	out := Merge([]domain.Polygon{a, b, c}, MergeOverlapFraction)
	require.Len(t, out, 1)
	assert.InEpsilon(t, 260, out[0].Area, 0.05)
}

func TestMerge_FewerThanTwoIsIdentity(t *testing.T) {
	assert.Empty(t, Merge(nil, MergeOverlapFraction))

	single := []domain.Polygon{rect(0, 0, 1, 1)}
	assert.Equal(t, single, Merge(single, MergeOverlapFraction))
}

func TestMerge_OrderIndependentCount(t *testing.T) {
	a := rect(0, 0, 10, 10)
	b := rect(5, 0, 15, 10)
	c := rect(100, 100, 101, 101)

	forward := Merge([]domain.Polygon{a, b, c}, MergeOverlapFraction)
	reversed := Merge([]domain.Polygon{c, b, a}, MergeOverlapFraction)

	assert.Len(t, forward, 2)
	assert.Len(t, reversed, 2)
}

func TestRingArea_Shoelace(t *testing.T) {
	assert.InDelta(t, 100, rect(0, 0, 10, 10).Area, 1e-9)

	// Winding direction must not matter.
	cw := [][2]float64{{0, 0}, {0, 10}, {10, 10}, {10, 0}, {0, 0}}
	assert.InDelta(t, 100, ringArea(cw), 1e-9)

	assert.Zero(t, ringArea([][2]float64{{0, 0}, {1, 1}, {0, 0}}))
}
