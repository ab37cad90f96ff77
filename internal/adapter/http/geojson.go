package http

import (
	"encoding/json"
	"fmt"

	geojson "github.com/paulmach/go.geojson"

	"github.com/floodwatch/imagery-pipeline/internal/domain"
)

// collectionGeoJSON renders extracted polygons as a GeoJSON
// FeatureCollection. Each feature carries its planar area and the sensor
// whose preset produced it.
func collectionGeoJSON(collection domain.PolygonCollection) (json.RawMessage, error) {
	fc := geojson.NewFeatureCollection()
	for i, poly := range collection.Polygons {
		ring := make([][]float64, len(poly.Ring))
		for j, pt := range poly.Ring {
			ring[j] = []float64{pt[0], pt[1]}
		}
		f := geojson.NewPolygonFeature([][][]float64{ring})
		f.SetProperty("area", poly.Area)
		f.SetProperty("index", i)
		if collection.SensorID != "" {
			f.SetProperty("sensor_id", collection.SensorID)
		}
		fc.AddFeature(f)
	}

	data, err := fc.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("marshal feature collection: %w", err)
	}
	return data, nil
}
