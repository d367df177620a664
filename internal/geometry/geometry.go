package geometry

import (
	"math"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"
	"github.com/twpayne/go-polyline"
)

const (
	earthRadiusM  = 6371000.0
	metersPerMile = 1609.344
	srid          = 4326
)

// Point is a WGS84 coordinate.
type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

var polyline6 = polyline.Codec{Dim: 2, Scale: 1e6}

// DecodePolyline6 decodes an OSRM precision-6 encoded polyline into
// ordered points.
func DecodePolyline6(encoded string) ([]Point, error) {
	coords, _, err := polyline6.DecodeCoords([]byte(encoded))
	if err != nil {
		return nil, eris.Wrap(err, "geometry: decode polyline")
	}
	pts := make([]Point, len(coords))
	for i, c := range coords {
		pts[i] = Point{Lat: c[0], Lon: c[1]}
	}
	return pts, nil
}

// EncodePolyline6 encodes points as an OSRM precision-6 polyline.
func EncodePolyline6(pts []Point) string {
	coords := make([][]float64, len(pts))
	for i, p := range pts {
		coords[i] = []float64{p.Lat, p.Lon}
	}
	return string(polyline6.EncodeCoords(nil, coords))
}

// LineString builds a lon/lat SRID 4326 line from route points.
func LineString(pts []Point) (*geom.LineString, error) {
	if len(pts) < 2 {
		return nil, eris.New("geometry: line needs at least two points")
	}
	flat := make([]float64, 0, len(pts)*2)
	for _, p := range pts {
		flat = append(flat, p.Lon, p.Lat)
	}
	ls := geom.NewLineStringFlat(geom.XY, flat)
	ls.SetSRID(srid)
	return ls, nil
}

// LineStringEWKB returns the EWKB encoding of the route line, suitable
// as a geography parameter in spatial queries.
func LineStringEWKB(pts []Point) ([]byte, error) {
	ls, err := LineString(pts)
	if err != nil {
		return nil, err
	}
	b, err := ewkb.Marshal(ls, ewkb.NDR)
	if err != nil {
		return nil, eris.Wrap(err, "geometry: marshal line")
	}
	return b, nil
}

// PointEWKB returns the EWKB encoding of a single coordinate.
func PointEWKB(p Point) ([]byte, error) {
	pt := geom.NewPointFlat(geom.XY, []float64{p.Lon, p.Lat})
	pt.SetSRID(srid)
	b, err := ewkb.Marshal(pt, ewkb.NDR)
	if err != nil {
		return nil, eris.Wrap(err, "geometry: marshal point")
	}
	return b, nil
}

// Haversine returns the great-circle distance between two points in
// meters.
func Haversine(a, b Point) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLon := (b.Lon - a.Lon) * math.Pi / 180

	sinLat := math.Sin(dLat / 2)
	sinLon := math.Sin(dLon / 2)
	h := sinLat*sinLat + math.Cos(lat1)*math.Cos(lat2)*sinLon*sinLon
	return 2 * earthRadiusM * math.Asin(math.Sqrt(h))
}

// MetersToMiles converts meters to statute miles.
func MetersToMiles(m float64) float64 { return m / metersPerMile }

// MilesToMeters converts statute miles to meters.
func MilesToMeters(mi float64) float64 { return mi * metersPerMile }

// BBox is [min_lon, min_lat, max_lon, max_lat].
type BBox [4]float64

// Bounds computes the bounding box of a point set.
func Bounds(pts []Point) BBox {
	if len(pts) == 0 {
		return BBox{}
	}
	box := BBox{pts[0].Lon, pts[0].Lat, pts[0].Lon, pts[0].Lat}
	for _, p := range pts[1:] {
		box[0] = math.Min(box[0], p.Lon)
		box[1] = math.Min(box[1], p.Lat)
		box[2] = math.Max(box[2], p.Lon)
		box[3] = math.Max(box[3], p.Lat)
	}
	return box
}
