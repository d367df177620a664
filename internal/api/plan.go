package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/spotter-labs/fuel-router/internal/geometry"
	"github.com/spotter-labs/fuel-router/internal/planner"
	"github.com/spotter-labs/fuel-router/pkg/geocode"
)

// planRequest is the raw request body. start and finish each accept a
// free-text string or a {lat, lon} object, so they decode lazily.
type planRequest struct {
	Start         json.RawMessage `json:"start"`
	Finish        json.RawMessage `json:"finish"`
	CorridorMiles *int            `json:"corridor_miles"`
}

type latLon struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

type planResponse struct {
	Start              latLon         `json:"start"`
	Finish             latLon         `json:"finish"`
	RouteDistanceMiles float64        `json:"route_distance_miles"`
	BBox               geometry.BBox  `json:"bbox"`
	Polyline           string         `json:"polyline"`
	FuelPlan           []planner.Stop `json:"fuel_plan"`
	TotalCost          float64        `json:"total_cost"`
	TotalGallons       float64        `json:"total_gallons"`
}

// location is a validated endpoint: either resolved coordinates or a
// string still needing geocoding.
type location struct {
	text  string
	coord *latLon
}

// parseLocation validates one endpoint field.
func parseLocation(field string, raw json.RawMessage) (*location, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("%s is required", field)
	}

	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		if strings.TrimSpace(text) == "" {
			return nil, fmt.Errorf("%s: address cannot be empty", field)
		}
		return &location{text: text}, nil
	}

	var coord latLon
	if err := json.Unmarshal(raw, &coord); err != nil {
		return nil, fmt.Errorf("%s must be a string or coordinate object", field)
	}
	if coord.Lat < -90 || coord.Lat > 90 || coord.Lon < -180 || coord.Lon > 180 {
		return nil, fmt.Errorf("%s: invalid coordinates", field)
	}
	return &location{coord: &coord}, nil
}

// resolve turns a location into coordinates, geocoding text inputs.
func (s *Server) resolve(ctx context.Context, router *geocode.Router, loc *location) (latLon, error) {
	if loc.coord != nil {
		return *loc.coord, nil
	}

	pt, _ := router.GeocodeString(ctx, loc.text)
	if pt == nil {
		msg := fmt.Sprintf("Could not geocode location: %s.", loc.text)
		if !router.GoogleViable() {
			msg += " (Google Maps API Key not configured, and Census API failed for this input)."
		}
		return latLon{}, errors.New(msg)
	}
	return latLon{Lat: pt.Lat, Lon: pt.Lon}, nil
}

// checkBounds logs endpoints falling outside the contiguous US box.
func (s *Server) checkBounds(endpoints ...latLon) {
	if s.cfg.Plan.BoundsCheck == "off" {
		return
	}
	for _, c := range endpoints {
		if c.Lat < 24 || c.Lat > 50 || c.Lon < -125 || c.Lon > -66 {
			zap.L().Warn("plan: endpoint outside contiguous US",
				zap.Float64("lat", c.Lat),
				zap.Float64("lon", c.Lon),
			)
		}
	}
}

func (s *Server) handlePlan(w http.ResponseWriter, r *http.Request) {
	var req planRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}

	corridor := planner.DefaultCorridorMiles
	if req.CorridorMiles != nil {
		corridor = *req.CorridorMiles
	}
	if corridor < planner.MinCorridorMiles || corridor > planner.MaxCorridorMiles {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": fmt.Sprintf("corridor_miles must be between %d and %d",
				planner.MinCorridorMiles, planner.MaxCorridorMiles),
		})
		return
	}

	startLoc, err := parseLocation("start", req.Start)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	finishLoc, err := parseLocation("finish", req.Finish)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	ctx := r.Context()
	router := s.newRouter()

	start, err := s.resolve(ctx, router, startLoc)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	finish, err := s.resolve(ctx, router, finishLoc)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	s.checkBounds(start, finish)

	route, err := s.osrmClient.Route(ctx,
		geometry.Point{Lat: start.Lat, Lon: start.Lon},
		geometry.Point{Lat: finish.Lat, Lon: finish.Lon})
	if err != nil {
		zap.L().Error("plan: routing failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "Internal Server Error", "details": err.Error(),
		})
		return
	}

	points, err := geometry.DecodePolyline6(route.Geometry)
	if err != nil {
		zap.L().Error("plan: polyline decode failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "Internal Server Error", "details": err.Error(),
		})
		return
	}

	lineEWKB, err := geometry.LineStringEWKB(points)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "Internal Server Error", "details": err.Error(),
		})
		return
	}

	totalMiles := geometry.MetersToMiles(route.DistanceMeters)

	stations, err := s.store.StationsWithinCorridor(ctx, lineEWKB, float64(corridor), totalMiles)
	if err != nil {
		zap.L().Error("plan: corridor query failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "Internal Server Error", "details": err.Error(),
		})
		return
	}

	result, err := planner.Plan(stations, totalMiles)
	if err != nil {
		var inf *planner.InfeasibleError
		if errors.As(err, &inf) {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]string{
				"error":  inf.Reason,
				"detail": "Try increasing corridor_miles or check route feasibility.",
			})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "Internal Server Error", "details": err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, planResponse{
		Start:              start,
		Finish:             finish,
		RouteDistanceMiles: totalMiles,
		BBox:               geometry.Bounds(points),
		Polyline:           route.Geometry,
		FuelPlan:           result.Stops,
		TotalCost:          result.TotalCost,
		TotalGallons:       result.TotalGallons,
	})
}
