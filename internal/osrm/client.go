// Package osrm talks to an OSRM routing backend and caches computed
// routes in Redis.
package osrm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"

	"github.com/spotter-labs/fuel-router/internal/geometry"
)

const (
	DefaultBaseURL = "http://router.project-osrm.org/route/v1/driving"

	requestTimeout = 10 * time.Second
)

// Route is a driving route: distance in meters and the precision-6
// encoded geometry.
type Route struct {
	DistanceMeters float64 `json:"distance_meters"`
	Geometry       string  `json:"geometry"`
}

// RouteCache stores computed routes keyed by endpoint pair. Cache
// failures must not fail routing; implementations degrade to a miss.
type RouteCache interface {
	Get(ctx context.Context, key string) (*Route, bool)
	Set(ctx context.Context, key string, route *Route)
}

// Client fetches driving routes from OSRM.
type Client struct {
	httpClient *http.Client
	baseURL    string
	cache      RouteCache
}

// Option configures the Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client (used by tests).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithCache attaches a route cache.
func WithCache(cache RouteCache) Option {
	return func(c *Client) { c.cache = cache }
}

// NewClient creates a Client against baseURL, falling back to the
// public OSRM demo server when empty.
func NewClient(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		httpClient: &http.Client{Timeout: requestTimeout},
		baseURL:    baseURL,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type osrmResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Routes  []struct {
		Geometry string  `json:"geometry"`
		Distance float64 `json:"distance"`
	} `json:"routes"`
}

func routeKey(start, finish geometry.Point) string {
	return fmt.Sprintf("route:%.6f,%.6f:%.6f,%.6f", start.Lon, start.Lat, finish.Lon, finish.Lat)
}

// Route fetches the driving route from start to finish, serving from
// the cache when possible.
func (c *Client) Route(ctx context.Context, start, finish geometry.Point) (*Route, error) {
	key := routeKey(start, finish)
	if c.cache != nil {
		if route, ok := c.cache.Get(ctx, key); ok {
			return route, nil
		}
	}

	reqURL := fmt.Sprintf("%s/%f,%f;%f,%f?overview=full&geometries=polyline6&steps=false",
		c.baseURL, start.Lon, start.Lat, finish.Lon, finish.Lat)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "osrm: build request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "osrm: request")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "osrm: read response")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("osrm: status %s", resp.Status)
	}

	var parsed osrmResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, eris.Wrap(err, "osrm: decode response")
	}
	if parsed.Code != "Ok" || len(parsed.Routes) == 0 {
		msg := parsed.Message
		if msg == "" {
			msg = parsed.Code
		}
		return nil, eris.Errorf("osrm: no route: %s", msg)
	}

	route := &Route{
		DistanceMeters: parsed.Routes[0].Distance,
		Geometry:       parsed.Routes[0].Geometry,
	}
	if c.cache != nil {
		c.cache.Set(ctx, key, route)
	}
	return route, nil
}
