package gtfs2osm

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strconv"
)

// overpassElement is one element of an Overpass API JSON export.
// Pointer fields distinguish absent from zero; Overpass emits ways and
// relations without coordinates and those are useless here.
type overpassElement struct {
	Type string            `json:"type"`
	ID   *int64            `json:"id"`
	Lat  *float64          `json:"lat"`
	Lon  *float64          `json:"lon"`
	Tags map[string]string `json:"tags"`
}

type overpassExtract struct {
	Elements []overpassElement `json:"elements"`
}

// LoadOSMStops reads the point features out of an Overpass JSON export.
// Elements missing a type, id, or coordinates are skipped, matching how
// incomplete crowd-sourced records are normally handled.
func LoadOSMStops(path string) ([]MapStop, error) {
	if path == "" {
		panic("Missing path")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMapDataParse, err)
	}

	var extract overpassExtract
	if err := json.Unmarshal(data, &extract); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMapDataParse, err)
	}
	if extract.Elements == nil {
		return nil, fmt.Errorf("%w: no elements array in %s", ErrMapDataParse, path)
	}

	var stops []MapStop
	seen := make(map[string]struct{}, len(extract.Elements))
	skipped := 0
	for _, elem := range extract.Elements {
		if elem.Type == "" || elem.ID == nil || elem.Lat == nil || elem.Lon == nil {
			slog.Debug("Skipping element failing data validation", "type", elem.Type, "tags", elem.Tags)
			skipped++
			continue
		}
		if err := checkCoordinate(*elem.Lat, *elem.Lon); err != nil {
			slog.Debug("Skipping element with invalid coordinates", "id", *elem.ID, "err", err)
			skipped++
			continue
		}

		id := strconv.FormatInt(*elem.ID, 10)
		if _, ok := seen[id]; ok {
			slog.Debug("Skipping duplicate element", "id", id)
			skipped++
			continue
		}
		seen[id] = struct{}{}

		name := elem.Tags["name"]
		if name == "" {
			name = "n/a"
		}
		stops = append(stops, MapStop{ID: id, Name: name, Lat: *elem.Lat, Lon: *elem.Lon})
	}

	slog.Info(fmt.Sprintf("Loaded %d OSM stops from %s (%d elements skipped)", len(stops), path, skipped))
	return stops, nil
}
