package planner

import "math"

// Vehicle constants. Tank capacity follows from range and economy.
const (
	VehicleMPG          = 10.0
	MaxRangeMiles       = 500.0
	TankCapacityGallons = MaxRangeMiles / VehicleMPG

	DefaultCorridorMiles = 10
	MinCorridorMiles     = 1
	MaxCorridorMiles     = 50
)

// InfeasibleError reports a plan that cannot be completed with the
// available stations. Reason is the user-facing explanation.
type InfeasibleError struct {
	Reason string
}

func (e *InfeasibleError) Error() string { return e.Reason }

// Station is a fuel station projected onto the route, ordered by Dist.
type Station struct {
	OPISID  int
	Name    string
	Address string
	City    string
	State   string
	Lat     float64
	Lon     float64
	Price   float64
	Dist    float64 // miles from route start
}

// Stop is one refueling event in the plan. Numeric fields are rounded
// for presentation: miles to one decimal, gallons and cost to two.
type Stop struct {
	StationID      int     `json:"station_id"`
	Name           string  `json:"name"`
	Address        string  `json:"address"`
	City           string  `json:"city"`
	State          string  `json:"state"`
	Lat            float64 `json:"lat"`
	Lon            float64 `json:"lon"`
	PricePerGallon float64 `json:"price_per_gallon"`
	MilesFromStart float64 `json:"miles_from_start"`
	GallonsBought  float64 `json:"gallons_purchased"`
	StopCost       float64 `json:"stop_cost"`
}

// Result is the completed plan with totals.
type Result struct {
	Stops              []Stop  `json:"fuel_plan"`
	TotalDistanceMiles float64 `json:"total_distance_miles"`
	TotalGallons       float64 `json:"total_gallons"`
	TotalCost          float64 `json:"total_cost"`
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }
func round2(v float64) float64 { return math.Round(v*100) / 100 }

// Plan runs the greedy refueling loop over stations already sorted by
// distance from start. The tank starts full. At each iteration it stops
// at the cheapest safe reachable station, then buys just enough fuel to
// reach the first strictly-cheaper station ahead, or the destination,
// or fills the tank when neither is within range.
func Plan(stations []Station, totalDistanceMiles float64) (*Result, error) {
	pos := 0.0
	fuelMiles := MaxRangeMiles
	destination := totalDistanceMiles
	stops := []Stop{}

	for fuelMiles < destination-pos {
		maxReach := pos + fuelMiles

		var reachable []Station
		for _, s := range stations {
			if s.Dist > pos && s.Dist <= maxReach {
				reachable = append(reachable, s)
			}
		}
		if len(reachable) == 0 {
			return nil, &InfeasibleError{Reason: "No stations within range to continue trip."}
		}

		// A candidate is safe when the destination or at least one
		// further station sits within a full tank of it.
		var safe []Station
		for _, c := range reachable {
			candReach := c.Dist + MaxRangeMiles
			if candReach >= destination {
				safe = append(safe, c)
				continue
			}
			for _, s := range stations {
				if s.Dist > c.Dist && s.Dist <= candReach {
					safe = append(safe, c)
					break
				}
			}
		}
		if len(safe) == 0 {
			return nil, &InfeasibleError{Reason: "No safe reachable stations found (dead-end detected)."}
		}

		// Cheapest safe stop; ties resolve to the nearest.
		best := safe[0]
		for _, c := range safe[1:] {
			if c.Price < best.Price {
				best = c
			}
		}

		fuelMiles -= best.Dist - pos
		pos = best.Dist

		// Purchase sizing: first strictly-cheaper station within a full
		// tank wins; otherwise buy for the destination or fill up.
		var cheaper *Station
		futureLimit := pos + MaxRangeMiles
		for i := range stations {
			s := stations[i]
			if s.Dist > pos && s.Dist <= futureLimit && s.Price < best.Price {
				cheaper = &s
				break
			}
		}

		var gallons float64
		switch {
		case cheaper != nil:
			needMiles := cheaper.Dist - pos
			if needMiles > fuelMiles {
				gallons = (needMiles - fuelMiles) / VehicleMPG
			}
		case destination-pos <= MaxRangeMiles:
			if destination-pos > fuelMiles {
				gallons = (destination - pos - fuelMiles) / VehicleMPG
			}
		default:
			gallons = TankCapacityGallons - fuelMiles/VehicleMPG
		}

		cost := gallons * best.Price

		stops = append(stops, Stop{
			StationID:      best.OPISID,
			Name:           best.Name,
			Address:        best.Address,
			City:           best.City,
			State:          best.State,
			Lat:            best.Lat,
			Lon:            best.Lon,
			PricePerGallon: best.Price,
			MilesFromStart: round1(pos),
			GallonsBought:  round2(gallons),
			StopCost:       round2(cost),
		})

		fuelMiles += gallons * VehicleMPG
	}

	var totalCost, totalGallons float64
	for _, s := range stops {
		totalCost += s.StopCost
		totalGallons += s.GallonsBought
	}

	return &Result{
		Stops:              stops,
		TotalDistanceMiles: round1(destination),
		TotalGallons:       round2(totalGallons),
		TotalCost:          round2(totalCost),
	}, nil
}
