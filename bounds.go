package gtfs2osm

import (
	"fmt"
	"github.com/tidwall/geojson"
	"github.com/tidwall/geojson/geometry"
	"log/slog"
)

func (s TransitStop) coords() (lat, lon float64) { return s.Lat, s.Lon }
func (s MapStop) coords() (lat, lon float64)     { return s.Lat, s.Lon }

type geoPoint interface {
	coords() (lat, lon float64)
}

// ParseBoundsFeature parses a GeoJSON feature used to restrict the
// review to a geographic area.
func ParseBoundsFeature(featureJSON string) (geojson.Object, error) {
	feature, err := geojson.Parse(featureJSON, &geojson.ParseOptions{RequireValid: true})
	if err != nil {
		return nil, fmt.Errorf("parse bounds feature: %w", err)
	}
	return feature, nil
}

// FilterWithinFeature keeps the stops whose location the feature contains.
func FilterWithinFeature[S geoPoint](feature geojson.Object, stops []S) []S {
	var kept []S
	for _, stop := range stops {
		lat, lon := stop.coords()
		point := geojson.NewPoint(geometry.Point{X: lon, Y: lat})
		if feature.Contains(point) {
			kept = append(kept, stop)
		}
	}
	slog.Info(fmt.Sprintf("%d of %d stops are inside the bounds feature", len(kept), len(stops)))
	return kept
}
