package copernicus

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/floodwatch/imagery-pipeline/internal/config"
	"github.com/floodwatch/imagery-pipeline/internal/domain"
	"github.com/floodwatch/imagery-pipeline/internal/observability"
)

var (
	pngPayload  = []byte("\x89PNG\r\n\x1a\nfake-scene-bytes")
	tiffPayload = []byte("II*\x00fake-scene-bytes")
)

func testClient(processURL, tokenURL string, cfg func(*config.Config)) *Client {
	c := &config.Config{
		ProcessURL:        processURL,
		TokenURL:          tokenURL,
		StaticToken:       "static-tok",
		FetchTimeout:      5 * time.Second,
		TokenTimeout:      time.Second,
		RetryAttempts:     3,
		RetryInitialDelay: time.Millisecond,
	}
	if cfg != nil {
		cfg(c)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewClient(c, logger, observability.NewMetricsForTesting())
}

func testRequest(t *testing.T) domain.AcquisitionRequest {
	t.Helper()
	bbox, err := domain.NewBoundingBox(-97.5, 30.1, -97.0, 30.6)
	require.NoError(t, err)
	return domain.AcquisitionRequest{
		BBox:    bbox,
		Date:    time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC),
		Sensors: domain.SensorPriority[:1], // s2-ndwi only
	}
}

func decodeProcessBody(t *testing.T, r *http.Request) processRequest {
	t.Helper()
	var body processRequest
	require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
	return body
}

func TestAcquire_FirstDateSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer static-tok", r.Header.Get("Authorization"))
		assert.Equal(t, "image/png", r.Header.Get("Accept"))

		body := decodeProcessBody(t, r)
		assert.Equal(t, "sentinel-2-l2a", body.Input.Data[0].Type)
		assert.Equal(t, [4]float64{-97.5, 30.1, -97.0, 30.6}, body.Input.Bounds.BBox)
		assert.Contains(t, body.Input.Data[0].DataFilter.TimeRange.From, "2026-08-20")
		assert.NotEmpty(t, body.Evalscript)

		w.Write(pngPayload)
	}))
	defer srv.Close()

	c := testClient(srv.URL, "", nil)
	artifact, err := c.Acquire(context.Background(), testRequest(t))
	require.NoError(t, err)

	assert.Equal(t, pngPayload, artifact.Data)
	assert.Equal(t, domain.EncodingPNG, artifact.Encoding)
	assert.Equal(t, "s2-ndwi", artifact.Provenance.Source)
	assert.Equal(t, "2026-08-20", artifact.Provenance.Date)
	assert.Regexp(t, `^s2-ndwi_2026-08-20_[0-9a-f]{16}\.png$`, artifact.Name)
}

func TestAcquire_TokenExchange(t *testing.T) {
	tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "client_credentials", r.Form.Get("grant_type"))

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"access_token": "exchanged-tok",
			"token_type":   "Bearer",
			"expires_in":   600,
		})
	}))
	defer tokenSrv.Close()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer exchanged-tok", r.Header.Get("Authorization"))
		w.Write(pngPayload)
	}))
	defer srv.Close()

	c := testClient(srv.URL, tokenSrv.URL, func(cfg *config.Config) {
		cfg.StaticToken = ""
		cfg.ClientID = "id"
		cfg.ClientSecret = "secret"
	})

	_, err := c.Acquire(context.Background(), testRequest(t))
	require.NoError(t, err)
}

func TestAcquire_MissingCredentials(t *testing.T) {
	c := testClient("http://unused", "http://unused", func(cfg *config.Config) {
		cfg.StaticToken = ""
	})

	_, err := c.Acquire(context.Background(), testRequest(t))
	assert.ErrorIs(t, err, domain.ErrMissingCredentials)
}

func TestAcquire_RetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "upstream hiccup", http.StatusBadGateway)
			return
		}
		w.Write(pngPayload)
	}))
	defer srv.Close()

	c := testClient(srv.URL, "", nil)
	artifact, err := c.Acquire(context.Background(), testRequest(t))
	require.NoError(t, err)
	assert.Equal(t, pngPayload, artifact.Data)
	assert.Equal(t, int32(3), calls.Load())
}

func TestAcquire_ClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		http.Error(w, "bad evalscript", http.StatusBadRequest)
	}))
	defer srv.Close()

	c := testClient(srv.URL, "", nil)
	_, err := c.Acquire(context.Background(), testRequest(t))
	require.Error(t, err)

	// One call per fallback date, never retried in place.
	assert.Equal(t, int32(len(fallbackOffsets)), calls.Load())
}

func TestAcquire_DateFallback(t *testing.T) {
	var dates []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body := decodeProcessBody(t, r)
		date := body.Input.Data[0].DataFilter.TimeRange.From[:10]
		dates = append(dates, date)
		if date != "2026-08-06" { // 14 days back
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write(pngPayload)
	}))
	defer srv.Close()

	c := testClient(srv.URL, "", nil)
	artifact, err := c.Acquire(context.Background(), testRequest(t))
	require.NoError(t, err)

	assert.Equal(t, "2026-08-06", artifact.Provenance.Date)
	assert.Equal(t, []string{"2026-08-20", "2026-08-13", "2026-08-06"}, dates,
		"sweep stops at the first hit")
}

func TestAcquire_SensorPrioritySweep(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body := decodeProcessBody(t, r)
		if body.Input.Data[0].Type == "sentinel-1-grd" {
			w.Write(tiffPayload)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := testClient(srv.URL, "", nil)
	req := testRequest(t)
	req.Sensors = nil // default priority list

	artifact, err := c.Acquire(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "s1-vv", artifact.Provenance.Source)
	assert.Equal(t, domain.EncodingTIFF, artifact.Encoding)
	assert.Equal(t, "2026-08-20", artifact.Provenance.Date,
		"radar fallback on the same date beats optical on an older date")
}

func TestAcquire_Exhaustion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := testClient(srv.URL, "", nil)
	_, err := c.Acquire(context.Background(), testRequest(t))

	var exhausted *domain.ExhaustionError
	require.ErrorAs(t, err, &exhausted)
	assert.Len(t, exhausted.DatesTried, len(fallbackOffsets))
	assert.Equal(t, "2026-08-20", exhausted.DatesTried[0])
	assert.Equal(t, "2026-06-21", exhausted.DatesTried[len(exhausted.DatesTried)-1])
	assert.Contains(t, err.Error(), "2026-06-21")
	assert.Contains(t, err.Error(), "s2-ndwi")
}

func TestFetchSensor_RejectsMismatchedPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("<html>error page pretending to be a scene</html>"))
	}))
	defer srv.Close()

	c := testClient(srv.URL, "", nil)
	sensor, _ := domain.SensorByID("s2-ndwi")

	_, err := c.fetchSensor(context.Background(), "tok", testRequest(t).BBox, time.Now(), sensor)
	var validation *domain.ValidationError
	require.ErrorAs(t, err, &validation)
	assert.Equal(t, "s2-ndwi", validation.SensorID)
}

func TestAcquire_ContextCancellationStopsSweep(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := testClient(srv.URL, "", nil)
	_, err := c.Acquire(ctx, testRequest(t))
	assert.ErrorIs(t, err, context.Canceled)
}
