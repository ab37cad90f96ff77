// Package copernicus acquires satellite rasters from a Sentinel-Hub-style
// process API (Copernicus Data Space Ecosystem). Acquisition sweeps sensors
// in priority order across a fixed schedule of fallback dates, retrying
// transient failures with exponential backoff.
package copernicus

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/oauth2/clientcredentials"

	"github.com/floodwatch/imagery-pipeline/internal/config"
	"github.com/floodwatch/imagery-pipeline/internal/domain"
	"github.com/floodwatch/imagery-pipeline/internal/observability"
)

// fallbackOffsets is the acquisition date schedule: the requested date
// first, then progressively older scenes. Cloud cover and revisit gaps make
// the exact date miss often; two months back is the staleness limit.
var fallbackOffsets = []int{0, 7, 14, 21, 30, 45, 60}

// Client fetches rasters over HTTP with OAuth2 client-credentials auth.
type Client struct {
	httpClient     *http.Client
	processURL     string
	tokenURL       string
	clientID       string
	clientSecret   string
	staticToken    string
	attempts       int
	backoffInitial time.Duration
	tokenTimeout   time.Duration
	logger         *slog.Logger
	metrics        *observability.Metrics
}

func NewClient(cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) *Client {
	return &Client{
		httpClient:     &http.Client{Timeout: cfg.FetchTimeout},
		processURL:     cfg.ProcessURL,
		tokenURL:       cfg.TokenURL,
		clientID:       cfg.ClientID,
		clientSecret:   cfg.ClientSecret,
		staticToken:    cfg.StaticToken,
		attempts:       cfg.RetryAttempts,
		backoffInitial: cfg.RetryInitialDelay,
		tokenTimeout:   cfg.TokenTimeout,
		logger:         logger,
		metrics:        metrics,
	}
}

// Acquire fetches the best available raster for the request. For each date
// in the fallback schedule it sweeps the requested sensors in order; the
// first valid payload wins. Returns ExhaustionError when every combination
// comes back empty.
func (c *Client) Acquire(ctx context.Context, req domain.AcquisitionRequest) (domain.RasterArtifact, error) {
	token, err := c.token(ctx)
	if err != nil {
		return domain.RasterArtifact{}, err
	}

	sensors := req.Sensors
	if len(sensors) == 0 {
		sensors = domain.SensorPriority
	}

	var datesTried []string
	for i, offset := range fallbackOffsets {
		date := req.Date.AddDate(0, 0, -offset)
		dateStr := date.Format("2006-01-02")
		datesTried = append(datesTried, dateStr)
		if i > 0 {
			c.metrics.DateFallbacks.Inc()
			c.logger.Info("falling back to earlier acquisition date",
				"date", dateStr, "offset_days", offset)
		}

		for _, sensor := range sensors {
			data, err := c.fetchSensor(ctx, token, req.BBox, date, sensor)
			if err != nil {
				if ctx.Err() != nil {
					return domain.RasterArtifact{}, ctx.Err()
				}
				c.logger.Warn("sensor fetch failed",
					"sensor", sensor.ID, "date", dateStr, "error", err)
				continue
			}
			if len(data) == 0 {
				continue
			}

			fp := domain.Fingerprint(req.BBox.Key(), dateStr, sensor.ID)
			return domain.RasterArtifact{
				Name:     fmt.Sprintf("%s_%s_%s.%s", sensor.ID, dateStr, fp, sensor.Encoding.Extension()),
				Data:     data,
				Encoding: sensor.Encoding,
				Provenance: domain.Provenance{
					Source: sensor.ID,
					Date:   dateStr,
				},
			}, nil
		}
	}

	sensorIDs := make([]string, len(sensors))
	for i, s := range sensors {
		sensorIDs[i] = s.ID
	}
	return domain.RasterArtifact{}, &domain.ExhaustionError{
		BBox:       req.BBox,
		Requested:  req.Date.Format("2006-01-02"),
		DatesTried: datesTried,
		Sensors:    sensorIDs,
	}
}

// token returns a bearer token: the configured static token if present,
// otherwise an OAuth2 client-credentials exchange with its own timeout.
func (c *Client) token(ctx context.Context) (string, error) {
	if c.staticToken != "" {
		return c.staticToken, nil
	}
	if c.clientID == "" || c.clientSecret == "" {
		return "", domain.ErrMissingCredentials
	}

	conf := &clientcredentials.Config{
		ClientID:     c.clientID,
		ClientSecret: c.clientSecret,
		TokenURL:     c.tokenURL,
	}
	tokenCtx, cancel := context.WithTimeout(ctx, c.tokenTimeout)
	defer cancel()
	tok, err := conf.Token(tokenCtx)
	if err != nil {
		return "", fmt.Errorf("token exchange: %w", err)
	}
	return tok.AccessToken, nil
}

// fetchSensor runs the retry loop for a single sensor/date combination.
// Only transient failures (network errors, 5xx) are retried; client errors
// and invalid payloads end the attempt immediately.
func (c *Client) fetchSensor(ctx context.Context, token string, bbox domain.BoundingBox, date time.Time, sensor domain.SensorProfile) ([]byte, error) {
	backoff := c.backoffInitial
	var lastErr error

	for attempt := 1; attempt <= c.attempts; attempt++ {
		outcome := "success"
		start := time.Now()
		data, err := c.doProcess(ctx, token, bbox, date, sensor)
		c.metrics.AcquisitionDuration.Observe(time.Since(start).Seconds())

		if err == nil {
			if len(data) == 0 {
				outcome = "no_data"
			} else {
				if verr := sensor.Encoding.ValidatePayload(data); verr != nil {
					c.metrics.AcquisitionRequests.WithLabelValues(sensor.ID, "invalid").Inc()
					return nil, &domain.ValidationError{
						SensorID:  sensor.ID,
						Encoding:  sensor.Encoding,
						SizeBytes: len(data),
						Reason:    verr.Error(),
					}
				}
			}
			c.metrics.AcquisitionRequests.WithLabelValues(sensor.ID, outcome).Inc()
			return data, nil
		}

		lastErr = err
		if !domain.IsTransient(err) {
			c.metrics.AcquisitionRequests.WithLabelValues(sensor.ID, "error").Inc()
			return nil, err
		}

		c.metrics.AcquisitionRequests.WithLabelValues(sensor.ID, "transient").Inc()
		if attempt == c.attempts {
			break
		}
		c.metrics.AcquisitionRetries.Inc()
		c.logger.Warn("transient acquisition failure, retrying",
			"sensor", sensor.ID, "attempt", attempt, "backoff", backoff, "error", err)
		if !sleepWithContext(ctx, backoff) {
			return nil, ctx.Err()
		}
		backoff *= 2
	}

	return nil, fmt.Errorf("acquisition failed after %d attempts: %w", c.attempts, lastErr)
}

// doProcess issues one process-API call. An empty 200 body or a 404 means
// no scene is available; both map to (nil, nil) so the sweep moves on.
func (c *Client) doProcess(ctx context.Context, token string, bbox domain.BoundingBox, date time.Time, sensor domain.SensorProfile) ([]byte, error) {
	body, err := json.Marshal(newProcessRequest(bbox, date, sensor))
	if err != nil {
		return nil, fmt.Errorf("marshal process request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.processURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create process request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", sensor.Encoding.ContentType())
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &domain.TransientError{Err: fmt.Errorf("process request: %w", err)}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, &domain.TransientError{Err: fmt.Errorf("read process response: %w", err)}
		}
		return data, nil
	case resp.StatusCode == http.StatusNotFound:
		return nil, nil
	case resp.StatusCode >= 500:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &domain.TransientError{Err: fmt.Errorf("process API status %d: %s", resp.StatusCode, msg)}
	default:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("process API status %d: %s", resp.StatusCode, msg)
	}
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
