package copernicus

import (
	"time"

	"github.com/floodwatch/imagery-pipeline/internal/domain"
)

// Process API request types. Field names follow the Sentinel Hub process
// endpoint schema.

type processRequest struct {
	Input      processInput  `json:"input"`
	Output     processOutput `json:"output"`
	Evalscript string        `json:"evalscript"`
}

type processInput struct {
	Bounds processBounds `json:"bounds"`
	Data   []processData `json:"data"`
}

type processBounds struct {
	BBox [4]float64 `json:"bbox"` // minLon, minLat, maxLon, maxLat
}

type processData struct {
	Type       string            `json:"type"`
	DataFilter processDataFilter `json:"dataFilter"`
}

type processDataFilter struct {
	TimeRange processTimeRange `json:"timeRange"`
}

type processTimeRange struct {
	From string `json:"from"`
	To   string `json:"to"`
}

type processOutput struct {
	Width     int               `json:"width"`
	Height    int               `json:"height"`
	Responses []processResponse `json:"responses"`
}

type processResponse struct {
	Identifier string        `json:"identifier"`
	Format     processFormat `json:"format"`
}

type processFormat struct {
	Type string `json:"type"`
}

// sceneEdge is the requested raster size; 512 pixels on each axis keeps
// payloads small while leaving enough resolution for contour tracing.
const sceneEdge = 512

func newProcessRequest(bbox domain.BoundingBox, date time.Time, sensor domain.SensorProfile) processRequest {
	dayStart := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
	dayEnd := dayStart.Add(24*time.Hour - time.Second)

	return processRequest{
		Input: processInput{
			Bounds: processBounds{
				BBox: [4]float64{bbox.MinLon, bbox.MinLat, bbox.MaxLon, bbox.MaxLat},
			},
			Data: []processData{{
				Type: sensor.Collection,
				DataFilter: processDataFilter{
					TimeRange: processTimeRange{
						From: dayStart.Format(time.RFC3339),
						To:   dayEnd.Format(time.RFC3339),
					},
				},
			}},
		},
		Output: processOutput{
			Width:  sceneEdge,
			Height: sceneEdge,
			Responses: []processResponse{{
				Identifier: "default",
				Format:     processFormat{Type: sensor.Encoding.ContentType()},
			}},
		},
		Evalscript: sensor.Evalscript,
	}
}
