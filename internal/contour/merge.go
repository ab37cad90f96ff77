package contour

import (
	"math"
	"sort"

	"github.com/floodwatch/imagery-pipeline/internal/domain"
)

// mergeMaskCells is the long-axis resolution of the rasterized masks used
// for intersection and union computation. 512 cells keep union areas within
// about one percent of exact for post-filter polygon sizes.
const mergeMaskCells = 512

// Merge collapses near-duplicate polygons: whenever two polygons'
// intersection area exceeds overlapFraction of the smaller polygon's area,
// the pair is replaced by its geometric union. The scan repeats until no
// pair qualifies. Polygons live in an index-addressed arena with live flags,
// so merge order is deterministic regardless of input permutation effects
// on intermediate state. O(n²) per pass, acceptable because extraction's
// area filter keeps n small.
func Merge(polys []domain.Polygon, overlapFraction float64) []domain.Polygon {
	if len(polys) < 2 {
		return polys
	}

	arena := make([]domain.Polygon, len(polys))
	copy(arena, polys)
	live := make([]bool, len(arena))
	for i := range live {
		live[i] = true
	}

	for changed := true; changed; {
		changed = false
	scan:
		for i := 0; i < len(arena); i++ {
			if !live[i] {
				continue
			}
			for j := i + 1; j < len(arena); j++ {
				if !live[j] {
					continue
				}
				merged, ok := tryMerge(arena[i], arena[j], overlapFraction)
				if !ok {
					continue
				}
				live[i], live[j] = false, false
				arena = append(arena, merged)
				live = append(live, true)
				changed = true
				break scan
			}
		}
	}

	out := make([]domain.Polygon, 0, len(polys))
	for i, p := range arena {
		if live[i] {
			out = append(out, p)
		}
	}
	return out
}

// maskBounds is the shared geographic frame two polygons are rasterized in.
type maskBounds struct {
	minLon, minLat, maxLon, maxLat float64
	width, height                  int
}

func (b maskBounds) stepLon() float64 { return (b.maxLon - b.minLon) / float64(b.width-1) }
func (b maskBounds) stepLat() float64 { return (b.maxLat - b.minLat) / float64(b.height-1) }

// tryMerge rasterizes both rings onto a shared grid, measures their
// intersection, and if it exceeds the merge fraction retraces the union
// mask back into a single polygon.
func tryMerge(a, b domain.Polygon, overlapFraction float64) (domain.Polygon, bool) {
	aMinLon, aMinLat, aMaxLon, aMaxLat := ringBounds(a.Ring)
	bMinLon, bMinLat, bMaxLon, bMaxLat := ringBounds(b.Ring)
	if aMaxLon < bMinLon || bMaxLon < aMinLon || aMaxLat < bMinLat || bMaxLat < aMinLat {
		return domain.Polygon{}, false
	}

	bounds := jointBounds(
		math.Min(aMinLon, bMinLon), math.Min(aMinLat, bMinLat),
		math.Max(aMaxLon, bMaxLon), math.Max(aMaxLat, bMaxLat),
	)

	maskA := rasterize(a.Ring, bounds)
	maskB := rasterize(b.Ring, bounds)

	var interCells int
	for i := range maskA {
		if maskA[i] && maskB[i] {
			interCells++
		}
	}
	if interCells == 0 {
		return domain.Polygon{}, false
	}

	cellArea := bounds.stepLon() * bounds.stepLat()
	smaller := math.Min(a.Area, b.Area)
	if float64(interCells)*cellArea <= overlapFraction*smaller {
		return domain.Polygon{}, false
	}

	return unionPolygon(maskA, maskB, bounds), true
}

// jointBounds pads the combined extent so the union outline never touches
// the mask border, then sizes the grid with the long axis at full
// resolution.
func jointBounds(minLon, minLat, maxLon, maxLat float64) maskBounds {
	padLon := (maxLon - minLon) * 0.02
	padLat := (maxLat - minLat) * 0.02
	if padLon == 0 {
		padLon = 1e-9
	}
	if padLat == 0 {
		padLat = 1e-9
	}
	minLon -= padLon
	maxLon += padLon
	minLat -= padLat
	maxLat += padLat

	width, height := mergeMaskCells, mergeMaskCells
	spanLon := maxLon - minLon
	spanLat := maxLat - minLat
	if spanLon > spanLat {
		height = int(math.Max(float64(mergeMaskCells)*spanLat/spanLon, 16))
	} else {
		width = int(math.Max(float64(mergeMaskCells)*spanLon/spanLat, 16))
	}
	return maskBounds{minLon: minLon, minLat: minLat, maxLon: maxLon, maxLat: maxLat, width: width, height: height}
}

// rasterize fills a boolean mask with even-odd scanline coverage of the
// ring. Cell (i, j) sits at the same pixel-center positions ringToGeo maps
// from, with row 0 on the north edge.
func rasterize(ring [][2]float64, b maskBounds) []bool {
	mask := make([]bool, b.width*b.height)
	stepLon := b.stepLon()
	stepLat := b.stepLat()

	xs := make([]float64, 0, 8)
	for j := 0; j < b.height; j++ {
		lat := b.maxLat - float64(j)*stepLat

		xs = xs[:0]
		for k := 0; k+1 < len(ring); k++ {
			p, q := ring[k], ring[k+1]
			if (p[1] > lat) == (q[1] > lat) {
				continue
			}
			xs = append(xs, p[0]+(lat-p[1])/(q[1]-p[1])*(q[0]-p[0]))
		}
		sort.Float64s(xs)

		for k := 0; k+1 < len(xs); k += 2 {
			i0 := int(math.Ceil((xs[k] - b.minLon) / stepLon))
			i1 := int(math.Floor((xs[k+1] - b.minLon) / stepLon))
			if i0 < 0 {
				i0 = 0
			}
			if i1 > b.width-1 {
				i1 = b.width - 1
			}
			for i := i0; i <= i1; i++ {
				mask[j*b.width+i] = true
			}
		}
	}
	return mask
}

// unionPolygon ORs the two masks and retraces the result with the same
// marching-squares tracer, keeping one geometry code path for extraction
// and merging. The largest traced ring is the union outline.
func unionPolygon(maskA, maskB []bool, b maskBounds) domain.Polygon {
	grid := domain.NewIntensityGrid(b.width, b.height)
	for i := range maskA {
		if maskA[i] || maskB[i] {
			grid.Values[i] = 1
		}
	}

	bbox := domain.BoundingBox{MinLon: b.minLon, MinLat: b.minLat, MaxLon: b.maxLon, MaxLat: b.maxLat}

	var best [][2]float64
	var bestArea float64
	for _, ring := range traceRings(grid, 0.5) {
		geo := ringToGeo(ring, b.width, b.height, bbox)
		if area := ringArea(geo); area > bestArea {
			best, bestArea = geo, area
		}
	}
	return domain.Polygon{Ring: best, Area: bestArea}
}
