package geocode

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"
)

const (
	nominatimSearchURL = "https://nominatim.openstreetmap.org/search"
	nominatimTimeout   = 10 * time.Second
)

// nominatimResult is one entry from the Nominatim search response.
type nominatimResult struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
	Type        string `json:"type"`
	Class       string `json:"class"`
}

// OSMProvider geocodes through OSM Nominatim. No key required, but the
// usage policy mandates a User-Agent and 1 request per second, so the
// provider carries its own limiter and never retries.
type OSMProvider struct {
	httpClient *http.Client
	userAgent  string
	limiter    *rate.Limiter
	baseURL    string
}

// OSMOption configures the OSMProvider.
type OSMOption func(*OSMProvider)

// WithOSMHTTPClient sets a custom HTTP client (used by tests).
func WithOSMHTTPClient(hc *http.Client) OSMOption {
	return func(p *OSMProvider) { p.httpClient = hc }
}

// WithOSMBaseURL overrides the endpoint URL (used by tests).
func WithOSMBaseURL(u string) OSMOption {
	return func(p *OSMProvider) { p.baseURL = u }
}

// NewOSMProvider creates an OSMProvider identifying as userAgent.
func NewOSMProvider(userAgent string, opts ...OSMOption) *OSMProvider {
	if userAgent == "" {
		userAgent = "fuel-router/1.0"
	}
	p := &OSMProvider{
		httpClient: &http.Client{Timeout: nominatimTimeout},
		userAgent:  userAgent,
		limiter:    rate.NewLimiter(1, 1),
		baseURL:    nominatimSearchURL,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name implements Provider.
func (p *OSMProvider) Name() string { return "osm" }

// Available implements Provider.
func (p *OSMProvider) Available() bool { return true }

// Geocode implements Provider.
func (p *OSMProvider) Geocode(ctx context.Context, query string) (*Point, Meta) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, Meta{"provider": p.Name(), "query": query, "error": err.Error()}
	}

	params := url.Values{
		"q":      {query},
		"format": {"json"},
		"limit":  {"1"},
	}
	reqURL := p.baseURL + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, Meta{"provider": p.Name(), "query": query, "error": err.Error()}
	}
	req.Header.Set("User-Agent", p.userAgent)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, Meta{"provider": p.Name(), "query": query, "error": err.Error()}
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, Meta{"provider": p.Name(), "query": query, "error": "status " + resp.Status}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, Meta{"provider": p.Name(), "query": query, "error": err.Error()}
	}

	var results []nominatimResult
	if err := json.Unmarshal(body, &results); err != nil {
		return nil, Meta{"provider": p.Name(), "query": query, "error": err.Error()}
	}
	if len(results) == 0 {
		return nil, Meta{"provider": p.Name(), "query": query}
	}

	top := results[0]
	lat, latErr := strconv.ParseFloat(top.Lat, 64)
	lon, lonErr := strconv.ParseFloat(top.Lon, 64)
	if latErr != nil || lonErr != nil {
		return nil, Meta{"provider": p.Name(), "query": query, "error": "unparseable coordinates"}
	}

	return &Point{Lat: lat, Lon: lon}, Meta{
		"provider":     p.Name(),
		"query":        query,
		"display_name": top.DisplayName,
		"type":         top.Type,
		"class":        top.Class,
	}
}
