package contour

import (
	"log/slog"

	"github.com/floodwatch/imagery-pipeline/internal/domain"
	"github.com/floodwatch/imagery-pipeline/internal/observability"
)

const (
	// MaxRawContours is the noise ceiling: more raw rings than this means
	// the scene is speckle, not flooding, and extraction yields nothing.
	MaxRawContours = 500

	// MaxCoverageRatio rejects extractions whose polygons blanket the
	// scene. Above 30% coverage the threshold is almost certainly wrong
	// for this raster.
	MaxCoverageRatio = 0.30

	// MergeOverlapFraction is the intersection-over-smaller ratio beyond
	// which two polygons collapse into their union.
	MergeOverlapFraction = 0.10
)

// Engine turns intensity grids into merged geographic flood polygons.
type Engine struct {
	logger  *slog.Logger
	metrics *observability.Metrics
}

func NewEngine(logger *slog.Logger, metrics *observability.Metrics) *Engine {
	return &Engine{logger: logger, metrics: metrics}
}

// Request carries one extraction job. When ArtifactName encodes a known
// sensor id, that sensor's tuned preset replaces Threshold and MinArea;
// radar and optical signals need different thresholds and the name is the
// authoritative record of which sensor produced the raster. Caller values
// apply only for unrecognized names, with priority-list defaults filling
// zeros. A nil BBox keeps polygons in pixel coordinates and skips the
// coverage guard, since pixel area and scene area are not comparable.
type Request struct {
	Grid         *domain.IntensityGrid
	BBox         *domain.BoundingBox
	ArtifactName string
	Threshold    float64
	MinArea      float64
}

// Extract traces iso-contours on the grid, maps them to geographic
// coordinates, filters degenerate and sub-minimum rings, applies the noise
// and coverage guards, and merges overlapping polygons.
func (e *Engine) Extract(req Request) domain.PolygonCollection {
	threshold, minArea, sensorID := e.resolvePreset(req)

	out := domain.PolygonCollection{
		SensorID:  sensorID,
		Threshold: threshold,
		MinArea:   minArea,
	}
	if req.Grid == nil || req.Grid.Width < 2 || req.Grid.Height < 2 {
		return out
	}

	rings := traceRings(req.Grid, threshold)
	e.metrics.ContoursTraced.Observe(float64(len(rings)))
	if len(rings) > MaxRawContours {
		e.logger.Warn("contour ceiling exceeded, treating scene as noise",
			"artifact", req.ArtifactName, "contours", len(rings), "ceiling", MaxRawContours)
		e.metrics.NoiseRejections.WithLabelValues("contour_ceiling").Inc()
		return out
	}

	bbox := req.BBox
	if bbox == nil {
		// Identity mapping: one geographic unit per pixel.
		bbox = &domain.BoundingBox{
			MinLon: 0, MinLat: 0,
			MaxLon: float64(req.Grid.Width - 1),
			MaxLat: float64(req.Grid.Height - 1),
		}
	}

	polys := make([]domain.Polygon, 0, len(rings))
	for _, ring := range rings {
		geo := ringToGeo(ring, req.Grid.Width, req.Grid.Height, *bbox)
		// A valid ring has at least three distinct vertices plus the
		// closing point.
		if len(geo) < 4 {
			continue
		}
		area := ringArea(geo)
		if area < minArea {
			continue
		}
		polys = append(polys, domain.Polygon{Ring: geo, Area: area})
	}

	if req.BBox != nil {
		var total float64
		for _, p := range polys {
			total += p.Area
		}
		if scene := req.BBox.Area(); scene > 0 && total/scene > MaxCoverageRatio {
			e.logger.Warn("coverage guard tripped, threshold unsuitable for scene",
				"artifact", req.ArtifactName, "coverage", total/scene)
			e.metrics.NoiseRejections.WithLabelValues("coverage").Inc()
			return out
		}
	}

	out.Polygons = Merge(polys, MergeOverlapFraction)
	e.metrics.PolygonsExtracted.Observe(float64(len(out.Polygons)))
	return out
}

// resolvePreset picks threshold and minimum area: a sensor matched from the
// artifact name supplies its tuned preset outright; caller values are used
// only when the name matches no sensor.
func (e *Engine) resolvePreset(req Request) (threshold, minArea float64, sensorID string) {
	if profile, ok := domain.ProfileForArtifact(req.ArtifactName); ok {
		return profile.Preset.Threshold, profile.Preset.MinArea, profile.ID
	}
	threshold, minArea = req.Threshold, req.MinArea
	if threshold == 0 {
		threshold = domain.SensorPriority[0].Preset.Threshold
	}
	if minArea == 0 {
		minArea = domain.SensorPriority[0].Preset.MinArea
	}
	return threshold, minArea, ""
}
