// Package pipeline orchestrates the imagery analysis flow: acquire a raster,
// preprocess it, extract flood polygons, and score confidence. Each stage is
// independently cacheable and independently exposed over HTTP; Analyze runs
// them end to end.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/floodwatch/imagery-pipeline/internal/adapter/storage"
	"github.com/floodwatch/imagery-pipeline/internal/cache"
	"github.com/floodwatch/imagery-pipeline/internal/contour"
	"github.com/floodwatch/imagery-pipeline/internal/domain"
	"github.com/floodwatch/imagery-pipeline/internal/observability"
	"github.com/floodwatch/imagery-pipeline/internal/raster"
)

// Source acquires rasters from a provider. Implemented by the Copernicus
// client; tests substitute fakes.
type Source interface {
	Acquire(ctx context.Context, req domain.AcquisitionRequest) (domain.RasterArtifact, error)
}

// Publisher emits completed analysis results. Optional.
type Publisher interface {
	PublishResult(ctx context.Context, result domain.AnalysisResult) error
}

// Pipeline ties the stages together with per-stage TTL caches keyed on
// request fingerprints. Cached entries are advisory: every hit is verified
// against backing storage, so a deleted artifact forces recomputation.
type Pipeline struct {
	source    Source
	store     storage.Store
	engine    *contour.Engine
	publisher Publisher

	acquireCache    *cache.Store[AcquireResult]
	preprocessCache *cache.Store[PreprocessResult]
	extractCache    *cache.Store[domain.PolygonCollection]
	cacheTTL        time.Duration

	confidence domain.ConfidenceConfig
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// Options carries the pipeline's collaborators. Publisher may be nil.
type Options struct {
	Source     Source
	Store      storage.Store
	Engine     *contour.Engine
	Publisher  Publisher
	Clock      clockwork.Clock
	CacheTTL   time.Duration
	Confidence domain.ConfidenceConfig
	Logger     *slog.Logger
	Metrics    *observability.Metrics
}

func New(opts Options) *Pipeline {
	clock := opts.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Pipeline{
		source:          opts.Source,
		store:           opts.Store,
		engine:          opts.Engine,
		publisher:       opts.Publisher,
		acquireCache:    cache.New[AcquireResult](clock),
		preprocessCache: cache.New[PreprocessResult](clock),
		extractCache:    cache.New[domain.PolygonCollection](clock),
		cacheTTL:        opts.CacheTTL,
		confidence:      opts.Confidence,
		logger:          opts.Logger,
		metrics:         opts.Metrics,
	}
}

// AcquireRequest asks for the best raster covering a scene.
type AcquireRequest struct {
	BBox             domain.BoundingBox
	Date             time.Time
	Sensors          []domain.SensorProfile
	AllowPlaceholder bool
}

// AcquireResult names the stored artifact and how it was obtained.
type AcquireResult struct {
	ArtifactName string            `json:"artifact_name"`
	Provenance   domain.Provenance `json:"provenance"`
	SizeBytes    int               `json:"size_bytes"`
}

// Acquire fetches and stores a raster for the request, consulting the stage
// cache first. When the provider is exhausted and AllowPlaceholder is set,
// a synthetic placeholder scene is substituted so downstream stages can
// still run in degraded mode.
func (p *Pipeline) Acquire(ctx context.Context, req AcquireRequest) (AcquireResult, error) {
	sensorIDs := make([]string, len(req.Sensors))
	for i, s := range req.Sensors {
		sensorIDs[i] = s.ID
	}
	key := domain.Fingerprint(append([]string{"acquire", req.BBox.Key(), req.Date.Format("2006-01-02")}, sensorIDs...)...)

	if cached, ok := p.acquireCache.Get(key); ok {
		if p.artifactExists(ctx, cached.ArtifactName) {
			p.metrics.CacheLookups.WithLabelValues("acquire", "hit").Inc()
			return cached, nil
		}
		p.metrics.CacheLookups.WithLabelValues("acquire", "stale").Inc()
		p.acquireCache.Delete(key)
	} else {
		p.metrics.CacheLookups.WithLabelValues("acquire", "miss").Inc()
	}

	acqReq := domain.AcquisitionRequest{BBox: req.BBox, Date: req.Date, Sensors: req.Sensors}
	artifact, err := p.source.Acquire(ctx, acqReq)
	if err != nil {
		var exhausted *domain.ExhaustionError
		if !errors.As(err, &exhausted) || !req.AllowPlaceholder {
			return AcquireResult{}, err
		}
		p.logger.Warn("provider exhausted, substituting placeholder scene",
			"bbox", req.BBox.Key(), "dates_tried", len(exhausted.DatesTried))
		artifact = raster.PlaceholderScene(acqReq)
	}

	if _, err := p.store.Save(ctx, artifact.Name, artifact.Data); err != nil {
		return AcquireResult{}, fmt.Errorf("store artifact: %w", err)
	}

	result := AcquireResult{
		ArtifactName: artifact.Name,
		Provenance:   artifact.Provenance,
		SizeBytes:    len(artifact.Data),
	}
	p.acquireCache.Set(key, result, p.cacheTTL)
	return result, nil
}

// PreprocessRequest normalizes a stored artifact for extraction.
type PreprocessRequest struct {
	ArtifactName string
	BBox         *domain.BoundingBox
	TargetWidth  int
	OutputFormat domain.Encoding
}

// PreprocessResult names the normalized artifact.
type PreprocessResult struct {
	OutputArtifactName string          `json:"output_artifact_name"`
	Width              int             `json:"width"`
	Height             int             `json:"height"`
	Meta               raster.Metadata `json:"meta"`
}

// Preprocess loads an artifact, normalizes it, and stores the result under
// a derived name. The stage cache maps request fingerprints to full results;
// a hit whose output artifact no longer loads is treated as stale.
func (p *Pipeline) Preprocess(ctx context.Context, req PreprocessRequest) (PreprocessResult, error) {
	bboxKey := ""
	if req.BBox != nil {
		bboxKey = req.BBox.Key()
	}
	key := domain.Fingerprint("preprocess", req.ArtifactName, bboxKey,
		fmt.Sprintf("%d", req.TargetWidth), string(req.OutputFormat))

	if cached, ok := p.preprocessCache.Get(key); ok {
		if p.artifactExists(ctx, cached.OutputArtifactName) {
			p.metrics.CacheLookups.WithLabelValues("preprocess", "hit").Inc()
			return cached, nil
		}
		p.metrics.CacheLookups.WithLabelValues("preprocess", "stale").Inc()
		p.preprocessCache.Delete(key)
	} else {
		p.metrics.CacheLookups.WithLabelValues("preprocess", "miss").Inc()
	}

	data, err := p.store.Load(ctx, req.ArtifactName)
	if err != nil {
		return PreprocessResult{}, err
	}

	out, err := raster.Preprocess(data, raster.Options{
		TargetWidth:  req.TargetWidth,
		OutputFormat: req.OutputFormat,
		Crop:         req.BBox,
	}, p.logger)
	if err != nil {
		return PreprocessResult{}, err
	}

	outName := preprocessedName(req.ArtifactName, out.Format)
	if _, err := p.store.Save(ctx, outName, out.Data); err != nil {
		return PreprocessResult{}, fmt.Errorf("store preprocessed artifact: %w", err)
	}

	result := PreprocessResult{
		OutputArtifactName: outName,
		Width:              out.Width,
		Height:             out.Height,
		Meta:               out.Meta,
	}
	p.preprocessCache.Set(key, result, p.cacheTTL)
	return result, nil
}

// ExtractRequest runs contour extraction on a stored artifact.
type ExtractRequest struct {
	ArtifactName string
	Threshold    float64
	MinArea      float64
	BBox         *domain.BoundingBox
}

// Extract decodes the artifact into an intensity grid and extracts merged
// flood polygons from it.
func (p *Pipeline) Extract(ctx context.Context, req ExtractRequest) (domain.PolygonCollection, error) {
	bboxKey := ""
	if req.BBox != nil {
		bboxKey = req.BBox.Key()
	}
	key := domain.Fingerprint("extract", req.ArtifactName, bboxKey,
		fmt.Sprintf("%g", req.Threshold), fmt.Sprintf("%g", req.MinArea))

	if cached, ok := p.extractCache.Get(key); ok {
		if p.artifactExists(ctx, req.ArtifactName) {
			p.metrics.CacheLookups.WithLabelValues("extract", "hit").Inc()
			return cached, nil
		}
		p.metrics.CacheLookups.WithLabelValues("extract", "stale").Inc()
		p.extractCache.Delete(key)
	} else {
		p.metrics.CacheLookups.WithLabelValues("extract", "miss").Inc()
	}

	data, err := p.store.Load(ctx, req.ArtifactName)
	if err != nil {
		return domain.PolygonCollection{}, err
	}
	grid, err := raster.DecodeGrid(data)
	if err != nil {
		return domain.PolygonCollection{}, err
	}

	collection := p.engine.Extract(contour.Request{
		Grid:         grid,
		BBox:         req.BBox,
		ArtifactName: req.ArtifactName,
		Threshold:    req.Threshold,
		MinArea:      req.MinArea,
	})
	p.extractCache.Set(key, collection, p.cacheTTL)
	return collection, nil
}

// AnalyzeRequest runs the full acquire/preprocess/extract/score flow.
type AnalyzeRequest struct {
	BBox             domain.BoundingBox
	Date             time.Time
	TargetWidth      int
	Threshold        float64
	MinArea          float64
	WeatherAvailable bool
}

// Analyze runs every stage for a scene and scores confidence over the
// outcome. Acquisition always permits placeholder substitution here:
// callers of Analyze want an answer, degraded if need be. Publish failures
// are logged, not returned; the analysis itself succeeded.
func (p *Pipeline) Analyze(ctx context.Context, req AnalyzeRequest) (domain.AnalysisResult, error) {
	start := time.Now()
	acquired, err := p.Acquire(ctx, AcquireRequest{
		BBox:             req.BBox,
		Date:             req.Date,
		AllowPlaceholder: true,
	})
	if err != nil {
		return domain.AnalysisResult{}, err
	}

	targetWidth := req.TargetWidth
	if targetWidth == 0 {
		targetWidth = 512
	}
	pre, err := p.Preprocess(ctx, PreprocessRequest{
		ArtifactName: acquired.ArtifactName,
		BBox:         &req.BBox,
		TargetWidth:  targetWidth,
		OutputFormat: domain.EncodingPNG,
	})
	if err != nil {
		return domain.AnalysisResult{}, err
	}

	polygons, err := p.Extract(ctx, ExtractRequest{
		ArtifactName: pre.OutputArtifactName,
		Threshold:    req.Threshold,
		MinArea:      req.MinArea,
		BBox:         &req.BBox,
	})
	if err != nil {
		return domain.AnalysisResult{}, err
	}

	confidence := domain.ScoreConfidence(domain.ConfidenceInputs{
		ArtifactSizeBytes: acquired.SizeBytes,
		PolygonCount:      len(polygons.Polygons),
		Provenance:        acquired.Provenance.Source,
		WeatherAvailable:  req.WeatherAvailable,
	}, p.confidence)

	dateStr := req.Date.Format("2006-01-02")
	result := domain.AnalysisResult{
		ID:           domain.Fingerprint("analysis", req.BBox.Key(), dateStr, acquired.ArtifactName),
		BBox:         req.BBox,
		Date:         dateStr,
		ArtifactName: acquired.ArtifactName,
		Provenance:   acquired.Provenance,
		SizeBytes:    acquired.SizeBytes,
		Polygons:     polygons,
		Confidence:   confidence,
		ProcessedAt:  domain.TimeNow(),
	}

	if p.publisher != nil {
		if err := p.publisher.PublishResult(ctx, result); err != nil {
			p.logger.Error("publish analysis result failed", "id", result.ID, "error", err)
		} else {
			p.metrics.ResultsPublished.Inc()
		}
	}

	p.metrics.AnalyzeDuration.Observe(time.Since(start).Seconds())
	return result, nil
}

// CheckReadiness verifies backing storage is reachable and updates the
// readiness gauge.
func (p *Pipeline) CheckReadiness(ctx context.Context) error {
	if _, err := p.store.List(ctx); err != nil {
		p.metrics.PipelineReady.Set(0)
		return fmt.Errorf("storage not reachable: %w", err)
	}
	p.metrics.PipelineReady.Set(1)
	return nil
}

func (p *Pipeline) artifactExists(ctx context.Context, name string) bool {
	_, err := p.store.Load(ctx, name)
	return err == nil
}

// preprocessedName derives the normalized artifact's name, preserving the
// sensor prefix so extraction presets still match.
func preprocessedName(source string, format domain.Encoding) string {
	base := source
	if i := strings.LastIndex(base, "."); i >= 0 {
		base = base[:i]
	}
	return base + "_norm." + format.Extension()
}
