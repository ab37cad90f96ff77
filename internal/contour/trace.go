// Package contour extracts geographic flood polygons from intensity grids
// via marching-squares iso-contour tracing, with sensor-aware thresholds and
// noise-rejection guards.
package contour

import "github.com/floodwatch/imagery-pipeline/internal/domain"

// point is a pixel-space coordinate. Contour vertices sit on cell edges, so
// coordinates are fractional.
type point struct {
	X, Y float64
}

type segment struct {
	a, b point
}

// traceRings runs marching squares at the given threshold and links the
// resulting segments into closed rings. Everything outside the grid is
// treated as below threshold, so regions touching the border still produce
// closed rings. A pixel counts as signal when its value is strictly above
// the threshold.
func traceRings(g *domain.IntensityGrid, threshold float64) [][]point {
	w, h := g.Width, g.Height
	if w < 2 || h < 2 {
		return nil
	}

	outside := threshold - 1
	sample := func(x, y int) float64 {
		if x < 0 || y < 0 || x >= w || y >= h {
			return outside
		}
		return g.At(x, y)
	}

	var segs []segment
	emit := func(a, b point) {
		if a != b {
			segs = append(segs, segment{a, b})
		}
	}

	// Cells are indexed by their top-left corner and extend one pixel past
	// the grid on every side to pick up border crossings.
	for y := -1; y < h; y++ {
		for x := -1; x < w; x++ {
			vTL := sample(x, y)
			vTR := sample(x+1, y)
			vBR := sample(x+1, y+1)
			vBL := sample(x, y+1)

			idx := 0
			if vTL > threshold {
				idx |= 1
			}
			if vTR > threshold {
				idx |= 2
			}
			if vBR > threshold {
				idx |= 4
			}
			if vBL > threshold {
				idx |= 8
			}
			if idx == 0 || idx == 15 {
				continue
			}

			fx, fy := float64(x), float64(y)
			top := point{fx + interp(vTL, vTR, threshold), fy}
			right := point{fx + 1, fy + interp(vTR, vBR, threshold)}
			bottom := point{fx + interp(vBL, vBR, threshold), fy + 1}
			left := point{fx, fy + interp(vTL, vBL, threshold)}

			switch idx {
			case 1:
				emit(left, top)
			case 2:
				emit(top, right)
			case 3:
				emit(left, right)
			case 4:
				emit(right, bottom)
			case 5:
				// Saddle: resolve connectivity by the cell-center average.
				if (vTL+vTR+vBR+vBL)/4 > threshold {
					emit(top, right)
					emit(left, bottom)
				} else {
					emit(left, top)
					emit(right, bottom)
				}
			case 6:
				emit(top, bottom)
			case 7:
				emit(left, bottom)
			case 8:
				emit(bottom, left)
			case 9:
				emit(top, bottom)
			case 10:
				if (vTL+vTR+vBR+vBL)/4 > threshold {
					emit(left, top)
					emit(right, bottom)
				} else {
					emit(top, right)
					emit(bottom, left)
				}
			case 11:
				emit(right, bottom)
			case 12:
				emit(right, left)
			case 13:
				emit(top, right)
			case 14:
				emit(left, top)
			}
		}
	}

	return linkSegments(segs)
}

// interp returns the fractional position where the threshold crosses the
// edge between two corner values.
func interp(v0, v1, threshold float64) float64 {
	if v0 == v1 {
		return 0.5
	}
	t := (threshold - v0) / (v1 - v0)
	if t < 0 {
		return 0
	}
	if t > 1 {
		return 1
	}
	return t
}

// linkSegments chains undirected segments into closed rings. Neighboring
// cells compute shared edge crossings from the same corner values, so
// endpoints match exactly and every vertex has degree two.
func linkSegments(segs []segment) [][]point {
	adjacency := make(map[point][]int, len(segs)*2)
	for i, s := range segs {
		adjacency[s.a] = append(adjacency[s.a], i)
		adjacency[s.b] = append(adjacency[s.b], i)
	}

	used := make([]bool, len(segs))
	var rings [][]point

	for i := range segs {
		if used[i] {
			continue
		}
		used[i] = true

		ring := []point{segs[i].a, segs[i].b}
		cur := segs[i].b
		for {
			next := -1
			for _, j := range adjacency[cur] {
				if !used[j] {
					next = j
					break
				}
			}
			if next == -1 {
				break
			}
			used[next] = true
			if segs[next].a == cur {
				cur = segs[next].b
			} else {
				cur = segs[next].a
			}
			ring = append(ring, cur)
		}

		if len(ring) < 4 {
			continue
		}
		if ring[0] != ring[len(ring)-1] {
			ring = append(ring, ring[0])
		}
		rings = append(rings, ring)
	}

	return rings
}
