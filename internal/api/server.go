// Package api serves the route-planning HTTP endpoints.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/spotter-labs/fuel-router/internal/config"
	"github.com/spotter-labs/fuel-router/internal/osrm"
	"github.com/spotter-labs/fuel-router/internal/station"
	"github.com/spotter-labs/fuel-router/pkg/geocode"
)

// RouterFactory builds a geocoding router. One router is created per
// request so its in-process cache stays request-scoped.
type RouterFactory func() *geocode.Router

// NewRouterFactory returns the production factory over the real
// providers.
func NewRouterFactory(cache *geocode.Cache, cfg *config.Config) RouterFactory {
	return func() *geocode.Router {
		census := geocode.NewCensusProvider(cache,
			geocode.WithCensusMaxRetries(cfg.Geocode.CensusRetries))
		google := geocode.NewGoogleProvider(cfg.Geocode.GoogleAPIKey)
		osm := geocode.NewOSMProvider(cfg.Geocode.NominatimAgent)
		return geocode.NewRouter(census, google, osm, cfg.Geocode.ProviderPriority)
	}
}

// Server wires the planning endpoint's collaborators.
type Server struct {
	store      station.Store
	osrmClient *osrm.Client
	newRouter  RouterFactory
	cfg        *config.Config
}

// NewServer creates a Server.
func NewServer(store station.Store, osrmClient *osrm.Client, newRouter RouterFactory, cfg *config.Config) *Server {
	return &Server{
		store:      store,
		osrmClient: osrmClient,
		newRouter:  newRouter,
		cfg:        cfg,
	}
}

// Handler returns the chi mux with middleware and routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-API-Key"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(APIKeyAuth(s.cfg.Server.InternalAPIKey))
		r.Post("/plan", s.handlePlan)
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
