package geocode

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"time"
)

const (
	googleGeocodeURL = "https://maps.googleapis.com/maps/api/geocode/json"
	googleTimeout    = 10 * time.Second
)

// googleResponse is the JSON response from the Google Geocoding API.
type googleResponse struct {
	Results []struct {
		Geometry struct {
			Location struct {
				Lat float64 `json:"lat"`
				Lng float64 `json:"lng"`
			} `json:"location"`
		} `json:"geometry"`
		FormattedAddress string   `json:"formatted_address"`
		PlaceID          string   `json:"place_id"`
		Types            []string `json:"types"`
		PartialMatch     bool     `json:"partial_match"`
	} `json:"results"`
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
}

// GoogleProvider geocodes through the Google Maps Geocoding API. It is
// viable only when an API key is configured; without one every call
// fails fast. No retries.
type GoogleProvider struct {
	httpClient *http.Client
	apiKey     string
	baseURL    string
}

// GoogleOption configures the GoogleProvider.
type GoogleOption func(*GoogleProvider)

// WithGoogleHTTPClient sets a custom HTTP client (used by tests).
func WithGoogleHTTPClient(hc *http.Client) GoogleOption {
	return func(p *GoogleProvider) { p.httpClient = hc }
}

// WithGoogleBaseURL overrides the endpoint URL (used by tests).
func WithGoogleBaseURL(u string) GoogleOption {
	return func(p *GoogleProvider) { p.baseURL = u }
}

// NewGoogleProvider creates a GoogleProvider with the given API key.
func NewGoogleProvider(apiKey string, opts ...GoogleOption) *GoogleProvider {
	p := &GoogleProvider{
		httpClient: &http.Client{Timeout: googleTimeout},
		apiKey:     apiKey,
		baseURL:    googleGeocodeURL,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name implements Provider.
func (p *GoogleProvider) Name() string { return "google_maps" }

// Available implements Provider.
func (p *GoogleProvider) Available() bool { return p.apiKey != "" }

// Geocode implements Provider.
func (p *GoogleProvider) Geocode(ctx context.Context, query string) (*Point, Meta) {
	if p.apiKey == "" {
		return nil, Meta{"provider": p.Name(), "error": "missing_api_key"}
	}

	params := url.Values{
		"address": {query},
		"key":     {p.apiKey},
	}
	reqURL := p.baseURL + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, Meta{"provider": p.Name(), "query": query, "error": err.Error()}
	}

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

	var parsed googleResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, Meta{"provider": p.Name(), "query": query, "error": err.Error()}
	}

	if parsed.Status != "OK" || len(parsed.Results) == 0 {
		meta := Meta{"provider": p.Name(), "query": query, "status": parsed.Status}
		if parsed.ErrorMessage != "" {
			meta["error"] = parsed.ErrorMessage
		}
		return nil, meta
	}

	top := parsed.Results[0]
	return &Point{Lat: top.Geometry.Location.Lat, Lon: top.Geometry.Location.Lng}, Meta{
		"provider":          p.Name(),
		"query":             query,
		"formatted_address": top.FormattedAddress,
		"place_id":          top.PlaceID,
		"types":             top.Types,
		"partial_match":     top.PartialMatch,
	}
}
