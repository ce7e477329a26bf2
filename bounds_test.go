package gtfs2osm

import (
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"testing"
)

const centerFeature = `{
  "type": "Feature",
  "properties": {},
  "geometry": {
    "type": "Polygon",
    "coordinates": [[
      [26.00, 44.40], [26.15, 44.40], [26.15, 44.44], [26.00, 44.44], [26.00, 44.40]
    ]]
  }
}`

func TestFilterWithinFeature(t *testing.T) {
	feature, err := ParseBoundsFeature(centerFeature)
	require.NoError(t, err)

	stops := []TransitStop{
		{ID: "inside", Lat: 44.43, Lon: 26.10},
		{ID: "outside", Lat: 44.50, Lon: 26.20},
	}
	kept := FilterWithinFeature(feature, stops)
	require.Len(t, kept, 1)
	assert.Equal(t, "inside", kept[0].ID)

	mapStops := []MapStop{
		{ID: "100", Lat: 44.4301, Lon: 26.1001},
		{ID: "200", Lat: 44.50, Lon: 26.20},
	}
	keptMap := FilterWithinFeature(feature, mapStops)
	require.Len(t, keptMap, 1)
	assert.Equal(t, "100", keptMap[0].ID)
}

func TestParseBoundsFeatureInvalid(t *testing.T) {
	_, err := ParseBoundsFeature("{not geojson")
	require.Error(t, err)

	_, err = ParseBoundsFeature(`{"type": "Polygon", "coordinates": "wrong"}`)
	require.Error(t, err)
}
