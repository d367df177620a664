package geometry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPolyline6RoundTrip(t *testing.T) {
	pts := []Point{
		{Lat: 38.5, Lon: -120.2},
		{Lat: 40.7, Lon: -120.95},
		{Lat: 43.252, Lon: -126.453},
	}

	encoded := EncodePolyline6(pts)
	decoded, err := DecodePolyline6(encoded)
	require.NoError(t, err)
	require.Len(t, decoded, len(pts))
	for i := range pts {
		assert.InDelta(t, pts[i].Lat, decoded[i].Lat, 1e-6)
		assert.InDelta(t, pts[i].Lon, decoded[i].Lon, 1e-6)
	}
}

func TestDecodePolyline6_Invalid(t *testing.T) {
	_, err := DecodePolyline6("\xff\xff")
	assert.Error(t, err)
}

func TestLineString_CoordinateOrder(t *testing.T) {
	ls, err := LineString([]Point{{Lat: 25.0, Lon: -80.0}, {Lat: 26.0, Lon: -81.0}})
	require.NoError(t, err)
	assert.Equal(t, 4326, ls.SRID())

	// Storage order is (lon, lat).
	c0 := ls.Coord(0)
	assert.InDelta(t, -80.0, c0.X(), 1e-9)
	assert.InDelta(t, 25.0, c0.Y(), 1e-9)
}

func TestLineString_TooFewPoints(t *testing.T) {
	_, err := LineString([]Point{{Lat: 25.0, Lon: -80.0}})
	assert.Error(t, err)
}

func TestLineStringEWKB_NotEmpty(t *testing.T) {
	b, err := LineStringEWKB([]Point{{Lat: 25.0, Lon: -80.0}, {Lat: 26.0, Lon: -81.0}})
	require.NoError(t, err)
	assert.NotEmpty(t, b)
}

func TestHaversine_KnownDistance(t *testing.T) {
	// JFK to LAX, roughly 3,974 km.
	jfk := Point{Lat: 40.6413, Lon: -73.7781}
	lax := Point{Lat: 33.9416, Lon: -118.4085}

	d := Haversine(jfk, lax)
	assert.InDelta(t, 3974000, d, 15000)
}

func TestHaversine_ZeroDistance(t *testing.T) {
	p := Point{Lat: 40.0, Lon: -84.0}
	assert.InDelta(t, 0, Haversine(p, p), 1e-9)
}

func TestMilesMetersRoundTrip(t *testing.T) {
	for _, mi := range []float64{0, 1, 10.5, 500, 2812.3} {
		back := MetersToMiles(MilesToMeters(mi))
		assert.InDelta(t, mi, back, 1e-9*mi+1e-12)
	}
	assert.InDelta(t, 1609.344, MilesToMeters(1), 1e-9)
}

func TestBounds(t *testing.T) {
	box := Bounds([]Point{
		{Lat: 25.0, Lon: -80.0},
		{Lat: 30.0, Lon: -85.0},
		{Lat: 27.0, Lon: -78.0},
	})
	assert.Equal(t, BBox{-85.0, 25.0, -78.0, 30.0}, box)
}

func TestBounds_Empty(t *testing.T) {
	assert.Equal(t, BBox{}, Bounds(nil))
}
