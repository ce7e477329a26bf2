package gtfs2osm

import (
	"fmt"
	"log/slog"
	"math"
	"sort"
)

// Mean earth radius in meters.
const earthRadiusMeters = 6371008.8

// Candidate is a map stop within search range of a transit stop.
type Candidate struct {
	Stop           MapStop
	DistanceMeters float64
}

func checkCoordinate(lat, lon float64) error {
	if math.IsNaN(lat) || lat < -90 || lat > 90 {
		return fmt.Errorf("%w: latitude %v", ErrInvalidCoordinate, lat)
	}
	if math.IsNaN(lon) || lon < -180 || lon > 180 {
		return fmt.Errorf("%w: longitude %v", ErrInvalidCoordinate, lon)
	}
	return nil
}

// HaversineMeters returns the great circle distance between two
// latitude/longitude points, in meters.
// Via http://www.movable-type.co.uk/scripts/latlong.html
func HaversineMeters(lat1, lon1, lat2, lon2 float64) float64 {
	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	dPhi := (lat2 - lat1) * math.Pi / 180
	dLambda := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	return earthRadiusMeters * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// FindCandidates lists the map stops within radiusMeters of stop,
// closest first, ties broken by id. maxResults <= 0 means unlimited.
// Map stops with invalid coordinates are skipped rather than failing
// the whole search.
func FindCandidates(stop TransitStop, mapStops []MapStop, radiusMeters float64, maxResults int) ([]Candidate, error) {
	if err := checkCoordinate(stop.Lat, stop.Lon); err != nil {
		return nil, fmt.Errorf("stop %s: %w", stop.ID, err)
	}

	var candidates []Candidate
	for _, m := range mapStops {
		if err := checkCoordinate(m.Lat, m.Lon); err != nil {
			slog.Warn("Skipping map stop with invalid coordinates", "id", m.ID, "err", err)
			continue
		}
		d := HaversineMeters(stop.Lat, stop.Lon, m.Lat, m.Lon)
		if d <= radiusMeters {
			candidates = append(candidates, Candidate{Stop: m, DistanceMeters: d})
		}
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].DistanceMeters != candidates[j].DistanceMeters {
			return candidates[i].DistanceMeters < candidates[j].DistanceMeters
		}
		return candidates[i].Stop.ID < candidates[j].Stop.ID
	})

	if maxResults > 0 && len(candidates) > maxResults {
		candidates = candidates[:maxResults]
	}
	return candidates, nil
}
