package contour

import (
	"math"

	geom "github.com/twpayne/go-geom"

	"github.com/floodwatch/imagery-pipeline/internal/domain"
)

// ringToGeo maps a pixel-space ring onto geographic coordinates by linear
// interpolation against the bounding box. Pixel row 0 is the north edge, so
// the vertical axis flips. Border-cell vertices that fall slightly outside
// the grid are clamped onto it. The returned ring is closed.
func ringToGeo(ring []point, width, height int, bbox domain.BoundingBox) [][2]float64 {
	spanX := float64(width - 1)
	spanY := float64(height - 1)

	geo := make([][2]float64, 0, len(ring)+1)
	for _, p := range ring {
		x := math.Min(math.Max(p.X, 0), spanX)
		y := math.Min(math.Max(p.Y, 0), spanY)
		lon := bbox.MinLon + x/spanX*bbox.Width()
		lat := bbox.MaxLat - y/spanY*bbox.Height()
		geo = append(geo, [2]float64{lon, lat})
	}
	if len(geo) > 0 && geo[0] != geo[len(geo)-1] {
		geo = append(geo, geo[0])
	}
	return geo
}

// ringArea returns the planar shoelace area of a closed ring in squared
// degrees, independent of winding.
func ringArea(ring [][2]float64) float64 {
	if len(ring) < 4 {
		return 0
	}
	flat := make([]float64, 0, len(ring)*2)
	for _, c := range ring {
		flat = append(flat, c[0], c[1])
	}
	poly := geom.NewPolygonFlat(geom.XY, flat, []int{len(flat)})
	return math.Abs(poly.Area())
}

// ringBounds returns the axis-aligned bounds of a ring.
func ringBounds(ring [][2]float64) (minLon, minLat, maxLon, maxLat float64) {
	minLon, minLat = math.Inf(1), math.Inf(1)
	maxLon, maxLat = math.Inf(-1), math.Inf(-1)
	for _, c := range ring {
		minLon = math.Min(minLon, c[0])
		maxLon = math.Max(maxLon, c[0])
		minLat = math.Min(minLat, c[1])
		maxLat = math.Max(maxLat, c[1])
	}
	return minLon, minLat, maxLon, maxLat
}
