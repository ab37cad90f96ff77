package pipeline

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/floodwatch/imagery-pipeline/internal/adapter/storage"
	"github.com/floodwatch/imagery-pipeline/internal/contour"
	"github.com/floodwatch/imagery-pipeline/internal/domain"
	"github.com/floodwatch/imagery-pipeline/internal/observability"
)

type fakeSource struct {
	calls    int
	artifact domain.RasterArtifact
	err      error
}

func (f *fakeSource) Acquire(_ context.Context, _ domain.AcquisitionRequest) (domain.RasterArtifact, error) {
	f.calls++
	if f.err != nil {
		return domain.RasterArtifact{}, f.err
	}
	return f.artifact, nil
}

type fakePublisher struct {
	results []domain.AnalysisResult
	err     error
}

func (f *fakePublisher) PublishResult(_ context.Context, r domain.AnalysisResult) error {
	if f.err != nil {
		return f.err
	}
	f.results = append(f.results, r)
	return nil
}

// scenePNG renders a 64×64 grayscale scene with a bright central square.
func scenePNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, 64, 64))
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			v := uint8(20)
			if x >= 20 && x < 44 && y >= 20 && y < 44 {
				v = 230
			}
			img.Pix[y*img.Stride+x] = v
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func sceneArtifact(t *testing.T) domain.RasterArtifact {
	t.Helper()
	return domain.RasterArtifact{
		Name:       "s2-ndwi_2026-08-20_ab12cd34ef56ab12.png",
		Data:       scenePNG(t),
		Encoding:   domain.EncodingPNG,
		Provenance: domain.Provenance{Source: "s2-ndwi", Date: "2026-08-20"},
	}
}

func exhaustion() *domain.ExhaustionError {
	return &domain.ExhaustionError{
		BBox:       testBBox(),
		Requested:  "2026-08-20",
		DatesTried: []string{"2026-08-20", "2026-08-13"},
		Sensors:    []string{"s2-ndwi", "s1-vv"},
	}
}

func testBBox() domain.BoundingBox {
	return domain.BoundingBox{MinLon: -97.5, MinLat: 30.1, MaxLon: -97.0, MaxLat: 30.6}
}

type fixture struct {
	pipeline  *Pipeline
	source    *fakeSource
	store     *storage.MemoryStore
	publisher *fakePublisher
	clock     *clockwork.FakeClock
}

func newFixture(t *testing.T, source *fakeSource) *fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	metrics := observability.NewMetricsForTesting()
	store := storage.NewMemoryStore()
	publisher := &fakePublisher{}
	clock := clockwork.NewFakeClock()

	p := New(Options{
		Source:     source,
		Store:      store,
		Engine:     contour.NewEngine(logger, metrics),
		Publisher:  publisher,
		Clock:      clock,
		CacheTTL:   15 * time.Minute,
		Confidence: domain.DefaultConfidenceConfig(),
		Logger:     logger,
		Metrics:    metrics,
	})
	return &fixture{pipeline: p, source: source, store: store, publisher: publisher, clock: clock}
}

func acquireRequest() AcquireRequest {
	return AcquireRequest{
		BBox: testBBox(),
		Date: time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC),
	}
}

func TestAcquire_StoresArtifact(t *testing.T) {
	f := newFixture(t, &fakeSource{artifact: sceneArtifact(t)})

	result, err := f.pipeline.Acquire(context.Background(), acquireRequest())
	require.NoError(t, err)

	assert.Equal(t, "s2-ndwi_2026-08-20_ab12cd34ef56ab12.png", result.ArtifactName)
	assert.Equal(t, "s2-ndwi", result.Provenance.Source)
	assert.Equal(t, len(scenePNG(t)), result.SizeBytes)

	stored, err := f.store.Load(context.Background(), result.ArtifactName)
	require.NoError(t, err)
	assert.Equal(t, scenePNG(t), stored)
}

func TestAcquire_CacheHitSkipsSource(t *testing.T) {
	f := newFixture(t, &fakeSource{artifact: sceneArtifact(t)})
	ctx := context.Background()

	_, err := f.pipeline.Acquire(ctx, acquireRequest())
	require.NoError(t, err)
	_, err = f.pipeline.Acquire(ctx, acquireRequest())
	require.NoError(t, err)

	assert.Equal(t, 1, f.source.calls)
}

func TestAcquire_StaleCacheRecomputes(t *testing.T) {
	f := newFixture(t, &fakeSource{artifact: sceneArtifact(t)})
	ctx := context.Background()

	first, err := f.pipeline.Acquire(ctx, acquireRequest())
	require.NoError(t, err)

	// Deleting the backing artifact invalidates the cached entry.
	require.NoError(t, f.store.Delete(ctx, first.ArtifactName))

	_, err = f.pipeline.Acquire(ctx, acquireRequest())
	require.NoError(t, err)
	assert.Equal(t, 2, f.source.calls)
}

func TestAcquire_CacheExpires(t *testing.T) {
	f := newFixture(t, &fakeSource{artifact: sceneArtifact(t)})
	ctx := context.Background()

	_, err := f.pipeline.Acquire(ctx, acquireRequest())
	require.NoError(t, err)

	f.clock.Advance(16 * time.Minute)

	_, err = f.pipeline.Acquire(ctx, acquireRequest())
	require.NoError(t, err)
	assert.Equal(t, 2, f.source.calls)
}

func TestAcquire_PlaceholderOnExhaustion(t *testing.T) {
	f := newFixture(t, &fakeSource{err: exhaustion()})

	req := acquireRequest()
	req.AllowPlaceholder = true
	result, err := f.pipeline.Acquire(context.Background(), req)
	require.NoError(t, err)

	assert.True(t, result.Provenance.IsPlaceholder())
	assert.True(t, strings.HasPrefix(result.ArtifactName, "placeholder_2026-08-20_"))

	stored, err := f.store.Load(context.Background(), result.ArtifactName)
	require.NoError(t, err)
	assert.NoError(t, domain.EncodingPNG.ValidatePayload(stored))
}

func TestAcquire_ExhaustionSurfacesWithoutPlaceholder(t *testing.T) {
	f := newFixture(t, &fakeSource{err: exhaustion()})

	_, err := f.pipeline.Acquire(context.Background(), acquireRequest())
	var exhausted *domain.ExhaustionError
	assert.ErrorAs(t, err, &exhausted)
}

func TestAcquire_NonExhaustionErrorNeverSubstituted(t *testing.T) {
	f := newFixture(t, &fakeSource{err: errors.New("network down")})

	req := acquireRequest()
	req.AllowPlaceholder = true
	_, err := f.pipeline.Acquire(context.Background(), req)
	assert.ErrorContains(t, err, "network down")
}

func TestPreprocess_WritesDerivedArtifact(t *testing.T) {
	f := newFixture(t, &fakeSource{})
	ctx := context.Background()

	_, err := f.store.Save(ctx, "s2-ndwi_2026-08-20_ab12cd34ef56ab12.png", scenePNG(t))
	require.NoError(t, err)

	result, err := f.pipeline.Preprocess(ctx, PreprocessRequest{
		ArtifactName: "s2-ndwi_2026-08-20_ab12cd34ef56ab12.png",
		TargetWidth:  32,
	})
	require.NoError(t, err)

	assert.Equal(t, "s2-ndwi_2026-08-20_ab12cd34ef56ab12_norm.png", result.OutputArtifactName)
	assert.Equal(t, 32, result.Width)
	assert.Equal(t, 32, result.Height)

	stored, err := f.store.Load(ctx, result.OutputArtifactName)
	require.NoError(t, err)
	assert.Equal(t, domain.EncodingPNG, domain.DetectEncoding(stored))
}

func TestPreprocess_CacheHitReturnsSameResult(t *testing.T) {
	f := newFixture(t, &fakeSource{})
	ctx := context.Background()

	_, err := f.store.Save(ctx, "s2-ndwi_2026-08-20_ab12cd34ef56ab12.png", scenePNG(t))
	require.NoError(t, err)

	req := PreprocessRequest{
		ArtifactName: "s2-ndwi_2026-08-20_ab12cd34ef56ab12.png",
		TargetWidth:  32,
	}
	first, err := f.pipeline.Preprocess(ctx, req)
	require.NoError(t, err)

	second, err := f.pipeline.Preprocess(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, first, second, "hit and miss responses match, metadata included")

	// Deleting the derived artifact invalidates the cached entry.
	require.NoError(t, f.store.Delete(ctx, first.OutputArtifactName))
	third, err := f.pipeline.Preprocess(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, first, third)

	_, err = f.store.Load(ctx, first.OutputArtifactName)
	assert.NoError(t, err, "stale hit recomputed and re-stored the output")
}

func TestPreprocess_MissingArtifact(t *testing.T) {
	f := newFixture(t, &fakeSource{})

	_, err := f.pipeline.Preprocess(context.Background(), PreprocessRequest{ArtifactName: "nope.png"})
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestExtract_PolygonsFromStoredScene(t *testing.T) {
	f := newFixture(t, &fakeSource{})
	ctx := context.Background()

	_, err := f.store.Save(ctx, "s2-ndwi_2026-08-20_ab12cd34ef56ab12.png", scenePNG(t))
	require.NoError(t, err)

	bbox := testBBox()
	collection, err := f.pipeline.Extract(ctx, ExtractRequest{
		ArtifactName: "s2-ndwi_2026-08-20_ab12cd34ef56ab12.png",
		BBox:         &bbox,
	})
	require.NoError(t, err)

	assert.Equal(t, "s2-ndwi", collection.SensorID, "preset recovered from artifact name")
	require.Len(t, collection.Polygons, 1)
	assert.Positive(t, collection.Polygons[0].Area)
}

func TestExtract_UndecodableArtifact(t *testing.T) {
	f := newFixture(t, &fakeSource{})
	ctx := context.Background()

	_, err := f.store.Save(ctx, "junk.bin", []byte("not an image"))
	require.NoError(t, err)

	_, err = f.pipeline.Extract(ctx, ExtractRequest{ArtifactName: "junk.bin"})
	var decodeErr *domain.DecodeError
	assert.ErrorAs(t, err, &decodeErr)
}

func TestAnalyze_EndToEnd(t *testing.T) {
	f := newFixture(t, &fakeSource{artifact: sceneArtifact(t)})

	result, err := f.pipeline.Analyze(context.Background(), AnalyzeRequest{
		BBox:             testBBox(),
		Date:             time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC),
		WeatherAvailable: true,
	})
	require.NoError(t, err)

	assert.NotEmpty(t, result.ID)
	assert.Equal(t, "2026-08-20", result.Date)
	assert.Equal(t, "s2-ndwi", result.Provenance.Source)
	assert.NotEmpty(t, result.Polygons.Polygons, "bright square extracted")
	assert.False(t, result.ProcessedAt.IsZero())

	assert.InDelta(t, 85, result.Confidence.Weather, 1e-9)
	assert.InDelta(t, 100, result.Confidence.Documents, 1e-9)
	assert.Positive(t, result.Confidence.Overall)

	require.Len(t, f.publisher.results, 1)
	assert.Equal(t, result.ID, f.publisher.results[0].ID)
}

func TestAnalyze_DegradedPlaceholderRun(t *testing.T) {
	f := newFixture(t, &fakeSource{err: exhaustion()})

	result, err := f.pipeline.Analyze(context.Background(), AnalyzeRequest{
		BBox: testBBox(),
		Date: time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err, "analyze degrades instead of failing")

	assert.True(t, result.Provenance.IsPlaceholder())
	assert.Empty(t, result.Polygons.Polygons)
	assert.InDelta(t, 10, result.Confidence.Documents, 1e-9, "placeholder keeps the token floor")
}

func TestAnalyze_PublishFailureDoesNotFailAnalysis(t *testing.T) {
	f := newFixture(t, &fakeSource{artifact: sceneArtifact(t)})
	f.publisher.err = errors.New("broker down")

	_, err := f.pipeline.Analyze(context.Background(), AnalyzeRequest{
		BBox: testBBox(),
		Date: time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC),
	})
	assert.NoError(t, err)
}

func TestAnalyze_CacheReuseAcrossRuns(t *testing.T) {
	f := newFixture(t, &fakeSource{artifact: sceneArtifact(t)})
	req := AnalyzeRequest{
		BBox: testBBox(),
		Date: time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC),
	}

	first, err := f.pipeline.Analyze(context.Background(), req)
	require.NoError(t, err)
	second, err := f.pipeline.Analyze(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, 1, f.source.calls)
	assert.Equal(t, first.Polygons, second.Polygons)
}

func TestCheckReadiness(t *testing.T) {
	f := newFixture(t, &fakeSource{})
	assert.NoError(t, f.pipeline.CheckReadiness(context.Background()))
}
