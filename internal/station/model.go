package station

import (
	"time"

	"github.com/spotter-labs/fuel-router/internal/geometry"
)

// Station is one fuel station row. Location is nil until the station
// has been geocoded; Source records how (or why not).
type Station struct {
	OPISID      int
	Name        string
	Address     string
	City        string
	State       string
	RackID      *int
	RetailPrice float64
	Location    *geometry.Point
	Source      string
	Meta        []byte
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// GeocodeUpdate is one write-back entry from the geocoding pipeline.
// Location is nil for unresolved stations; Source is always set.
type GeocodeUpdate struct {
	OPISID   int
	Location *geometry.Point
	Source   string
	Meta     []byte
}
