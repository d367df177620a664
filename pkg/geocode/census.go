package geocode

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	censusOneLineURL = "https://geocoding.geo.census.gov/geocoder/locations/onelineaddress"
	censusBenchmark  = "Public_AR_Current"

	censusTimeout = 30 * time.Second
)

// censusResponse is the JSON response from the Census one-line API.
type censusResponse struct {
	Result struct {
		AddressMatches []censusMatch `json:"addressMatches"`
	} `json:"result"`
}

type censusMatch struct {
	Coordinates struct {
		X float64 `json:"x"` // longitude
		Y float64 `json:"y"` // latitude
	} `json:"coordinates"`
	MatchedAddress string `json:"matchedAddress"`
}

// CensusProvider geocodes through the Census one-line address API with
// bounded retries and a persistent query cache.
type CensusProvider struct {
	httpClient *http.Client
	cache      *Cache
	maxRetries int
	backoff    time.Duration
	limiter    *rate.Limiter
	baseURL    string
}

// CensusOption configures the CensusProvider.
type CensusOption func(*CensusProvider)

// WithCensusHTTPClient sets a custom HTTP client (used by tests).
func WithCensusHTTPClient(hc *http.Client) CensusOption {
	return func(p *CensusProvider) { p.httpClient = hc }
}

// WithCensusBaseURL overrides the endpoint URL (used by tests).
func WithCensusBaseURL(u string) CensusOption {
	return func(p *CensusProvider) { p.baseURL = u }
}

// WithCensusBackoff sets the backoff unit between attempts (tests use
// a tiny value).
func WithCensusBackoff(d time.Duration) CensusOption {
	return func(p *CensusProvider) { p.backoff = d }
}

// WithCensusMaxRetries sets how many times a failed request is retried.
func WithCensusMaxRetries(n int) CensusOption {
	return func(p *CensusProvider) {
		if n > 0 {
			p.maxRetries = n
		}
	}
}

// NewCensusProvider creates a CensusProvider. cache may be nil, which
// disables the persistent cache.
func NewCensusProvider(cache *Cache, opts ...CensusOption) *CensusProvider {
	p := &CensusProvider{
		httpClient: &http.Client{Timeout: censusTimeout},
		cache:      cache,
		maxRetries: 2,
		backoff:    2 * time.Second,
		limiter:    rate.NewLimiter(50, 50), // Census default: 50 req/s
		baseURL:    censusOneLineURL,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name implements Provider.
func (p *CensusProvider) Name() string { return "census" }

// Available implements Provider. Census needs no credentials.
func (p *CensusProvider) Available() bool { return true }

// retryableStatus reports whether an HTTP status warrants a retry.
func retryableStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

// Geocode implements Provider. Failures never propagate; they come back
// as (nil, Meta) with an "error" field.
func (p *CensusProvider) Geocode(ctx context.Context, query string) (*Point, Meta) {
	if pt, meta, ok := p.cache.Lookup(ctx, query); ok {
		if meta == nil {
			meta = Meta{}
		}
		meta["provider"] = p.Name()
		return pt, meta
	}

	params := url.Values{
		"address":   {query},
		"benchmark": {censusBenchmark},
		"format":    {"json"},
	}
	reqURL := p.baseURL + "?" + params.Encode()

	var lastErr string
	for attempt := 0; attempt < p.maxRetries; attempt++ {
		if attempt > 0 {
			// Linear backoff: 2s, 4s, ...
			if !sleepCtx(ctx, time.Duration(attempt)*p.backoff) {
				return nil, Meta{"provider": p.Name(), "error": "context cancelled"}
			}
		}

		if err := p.limiter.Wait(ctx); err != nil {
			return nil, Meta{"provider": p.Name(), "error": err.Error()}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return nil, Meta{"provider": p.Name(), "error": err.Error()}
		}

		resp, err := p.httpClient.Do(req)
		if err != nil {
			zap.L().Warn("census: request failed, retrying",
				zap.String("query", query),
				zap.Error(err),
			)
			lastErr = err.Error()
			continue
		}

		if retryableStatus(resp.StatusCode) {
			resp.Body.Close()
			zap.L().Warn("census: transient status, retrying",
				zap.Int("status", resp.StatusCode),
				zap.String("query", query),
			)
			lastErr = http.StatusText(resp.StatusCode)
			continue
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, Meta{"provider": p.Name(), "error": "status " + resp.Status}
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = err.Error()
			continue
		}

		var parsed censusResponse
		if err := json.Unmarshal(body, &parsed); err != nil {
			// HTML error pages show up here; worth one more try.
			zap.L().Warn("census: invalid JSON body, retrying", zap.String("query", query))
			lastErr = "invalid JSON response"
			continue
		}

		if len(parsed.Result.AddressMatches) == 0 {
			return nil, Meta{"provider": p.Name()}
		}

		match := parsed.Result.AddressMatches[0]
		pt := &Point{Lat: match.Coordinates.Y, Lon: match.Coordinates.X}
		meta := Meta{
			"provider":        p.Name(),
			"matched_address": match.MatchedAddress,
			"coordinates":     map[string]float64{"x": match.Coordinates.X, "y": match.Coordinates.Y},
			"benchmark":       censusBenchmark,
		}

		if err := p.cache.Store(ctx, query, *pt, meta); err != nil {
			zap.L().Warn("census: cache store failed", zap.Error(err))
		}

		return pt, meta
	}

	if lastErr == "" {
		lastErr = "retries exhausted"
	}
	return nil, Meta{"provider": p.Name(), "error": lastErr}
}

// sleepCtx sleeps for d unless ctx is cancelled first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
