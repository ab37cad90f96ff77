package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/floodwatch/imagery-pipeline/internal/adapter/storage"
	"github.com/floodwatch/imagery-pipeline/internal/domain"
	"github.com/floodwatch/imagery-pipeline/internal/pipeline"
)

type acquireBody struct {
	BBox             domain.BoundingBox `json:"bbox"`
	Date             string             `json:"date"`
	Sensors          []string           `json:"sensors,omitempty"`
	AllowPlaceholder bool               `json:"allow_placeholder"`
}

func (s *Server) handleAcquire(w http.ResponseWriter, r *http.Request) {
	var body acquireBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}
	date, err := parseDate(body.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := body.BBox.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	sensors, err := resolveSensors(body.Sensors)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	result, err := s.api.Acquire(r.Context(), pipeline.AcquireRequest{
		BBox:             body.BBox,
		Date:             date,
		Sensors:          sensors,
		AllowPlaceholder: body.AllowPlaceholder,
	})
	if err != nil {
		writePipelineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type preprocessBody struct {
	ArtifactName string              `json:"artifact_name"`
	BBox         *domain.BoundingBox `json:"bbox,omitempty"`
	TargetWidth  int                 `json:"target_width,omitempty"`
	OutputFormat string              `json:"output_format,omitempty"`
}

func (s *Server) handlePreprocess(w http.ResponseWriter, r *http.Request) {
	var body preprocessBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}
	if body.ArtifactName == "" {
		writeError(w, http.StatusBadRequest, errors.New("artifact_name is required"))
		return
	}

	result, err := s.api.Preprocess(r.Context(), pipeline.PreprocessRequest{
		ArtifactName: body.ArtifactName,
		BBox:         body.BBox,
		TargetWidth:  body.TargetWidth,
		OutputFormat: domain.Encoding(body.OutputFormat),
	})
	if err != nil {
		writePipelineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type extractBody struct {
	ArtifactName string              `json:"artifact_name"`
	Threshold    float64             `json:"threshold,omitempty"`
	MinArea      float64             `json:"min_area,omitempty"`
	BBox         *domain.BoundingBox `json:"bbox,omitempty"`
}

type extractResponse struct {
	SensorID  string          `json:"sensor_id,omitempty"`
	Threshold float64         `json:"threshold"`
	MinArea   float64         `json:"min_area"`
	Count     int             `json:"count"`
	TotalArea float64         `json:"total_area"`
	GeoJSON   json.RawMessage `json:"geojson"`
}

func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	var body extractBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}
	if body.ArtifactName == "" {
		writeError(w, http.StatusBadRequest, errors.New("artifact_name is required"))
		return
	}

	collection, err := s.api.Extract(r.Context(), pipeline.ExtractRequest{
		ArtifactName: body.ArtifactName,
		Threshold:    body.Threshold,
		MinArea:      body.MinArea,
		BBox:         body.BBox,
	})
	if err != nil {
		writePipelineError(w, err)
		return
	}

	geo, err := collectionGeoJSON(collection)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, extractResponse{
		SensorID:  collection.SensorID,
		Threshold: collection.Threshold,
		MinArea:   collection.MinArea,
		Count:     len(collection.Polygons),
		TotalArea: collection.TotalArea(),
		GeoJSON:   geo,
	})
}

type analyzeBody struct {
	BBox             domain.BoundingBox `json:"bbox"`
	Date             string             `json:"date"`
	TargetWidth      int                `json:"target_width,omitempty"`
	Threshold        float64            `json:"threshold,omitempty"`
	MinArea          float64            `json:"min_area,omitempty"`
	WeatherAvailable bool               `json:"weather_available"`
}

type analyzeResponse struct {
	domain.AnalysisResult
	GeoJSON json.RawMessage `json:"geojson"`
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var body analyzeBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}
	date, err := parseDate(body.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := body.BBox.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	result, err := s.api.Analyze(r.Context(), pipeline.AnalyzeRequest{
		BBox:             body.BBox,
		Date:             date,
		TargetWidth:      body.TargetWidth,
		Threshold:        body.Threshold,
		MinArea:          body.MinArea,
		WeatherAvailable: body.WeatherAvailable,
	})
	if err != nil {
		writePipelineError(w, err)
		return
	}

	geo, err := collectionGeoJSON(result.Polygons)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, analyzeResponse{AnalysisResult: result, GeoJSON: geo})
}

func (s *Server) handleListArtifacts(w http.ResponseWriter, r *http.Request) {
	names, err := s.store.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"artifacts": names, "count": len(names)})
}

type uploadBody struct {
	Name string `json:"name,omitempty"`
	Data []byte `json:"data"` // base64 in JSON
}

func (s *Server) handleUploadArtifact(w http.ResponseWriter, r *http.Request) {
	var body uploadBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}
	if len(body.Data) == 0 {
		writeError(w, http.StatusBadRequest, errors.New("data is required"))
		return
	}

	encoding := domain.DetectEncoding(body.Data)
	name := body.Name
	if name == "" {
		name = fmt.Sprintf("%s_%s.%s", domain.SourceUpload, uuid.NewString(), encoding.Extension())
	}

	if _, err := s.store.Save(r.Context(), name, body.Data); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"artifact_name": name,
		"size_bytes":    len(body.Data),
		"encoding":      string(encoding),
	})
}

func (s *Server) handleGetArtifact(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	data, err := s.store.Load(r.Context(), name)
	if err != nil {
		writePipelineError(w, err)
		return
	}
	w.Header().Set("Content-Type", domain.DetectEncoding(data).ContentType())
	w.WriteHeader(http.StatusOK)
	w.Write(data) //nolint:errcheck // best-effort body write
}

func (s *Server) handleDeleteArtifact(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if err := s.store.Delete(r.Context(), name); err != nil {
		writePipelineError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func parseDate(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, errors.New("date is required (YYYY-MM-DD)")
	}
	date, err := time.Parse("2006-01-02", v)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", v, err)
	}
	return date, nil
}

func resolveSensors(ids []string) ([]domain.SensorProfile, error) {
	sensors := make([]domain.SensorProfile, 0, len(ids))
	for _, id := range ids {
		profile, ok := domain.SensorByID(id)
		if !ok {
			return nil, fmt.Errorf("unknown sensor %q", id)
		}
		sensors = append(sensors, profile)
	}
	return sensors, nil
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// writePipelineError maps domain errors to HTTP statuses: missing
// credentials mean the service cannot reach its provider (503), invalid
// payloads are unprocessable (422), and exhaustion or missing artifacts are
// not found (404).
func writePipelineError(w http.ResponseWriter, err error) {
	var (
		validation *domain.ValidationError
		decode     *domain.DecodeError
		exhausted  *domain.ExhaustionError
	)
	switch {
	case errors.Is(err, domain.ErrMissingCredentials):
		writeError(w, http.StatusServiceUnavailable, err)
	case errors.As(err, &validation), errors.As(err, &decode):
		writeError(w, http.StatusUnprocessableEntity, err)
	case errors.As(err, &exhausted):
		writeJSON(w, http.StatusNotFound, map[string]any{
			"error":       err.Error(),
			"dates_tried": exhausted.DatesTried,
		})
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, err)
	default:
		writeError(w, http.StatusInternalServerError, err)
	}
}
