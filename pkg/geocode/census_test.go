package geocode

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCensusGeocode_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Public_AR_Current", r.URL.Query().Get("benchmark"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"result": {
				"addressMatches": [{
					"coordinates": {"x": -77.0365, "y": 38.8977},
					"matchedAddress": "1600 PENNSYLVANIA AVE NW, WASHINGTON, DC, 20500"
				}]
			}
		}`)
	}))
	defer srv.Close()

	p := NewCensusProvider(nil,
		WithCensusHTTPClient(srv.Client()),
		WithCensusBaseURL(srv.URL),
	)

	pt, meta := p.Geocode(context.Background(), "1600 Pennsylvania Ave NW, Washington, DC")
	require.NotNil(t, pt)
	assert.InDelta(t, 38.8977, pt.Lat, 0.0001)
	assert.InDelta(t, -77.0365, pt.Lon, 0.0001)
	assert.Equal(t, "census", meta["provider"])
	assert.Equal(t, "1600 PENNSYLVANIA AVE NW, WASHINGTON, DC, 20500", meta["matched_address"])
}

func TestCensusGeocode_NoMatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"result": {"addressMatches": []}}`)
	}))
	defer srv.Close()

	p := NewCensusProvider(nil,
		WithCensusHTTPClient(srv.Client()),
		WithCensusBaseURL(srv.URL),
	)

	pt, meta := p.Geocode(context.Background(), "123 Nowhere St, Faketown, XX")
	assert.Nil(t, pt)
	assert.Equal(t, "census", meta["provider"])
	assert.NotContains(t, meta, "error")
}

func TestCensusGeocode_NonRetryableStatusFailsFast(t *testing.T) {
	var requests int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		requests++
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	p := NewCensusProvider(nil,
		WithCensusHTTPClient(srv.Client()),
		WithCensusBaseURL(srv.URL),
	)

	pt, meta := p.Geocode(context.Background(), "123 Main St")
	assert.Nil(t, pt)
	assert.Contains(t, meta, "error")
	assert.Equal(t, 1, requests)
}

func TestCensusGeocode_RetriesTransientStatus(t *testing.T) {
	var requests int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		requests++
		if requests == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"result": {
				"addressMatches": [{
					"coordinates": {"x": -84.1, "y": 40.7},
					"matchedAddress": "MATCHED"
				}]
			}
		}`)
	}))
	defer srv.Close()

	p := NewCensusProvider(nil,
		WithCensusHTTPClient(srv.Client()),
		WithCensusBaseURL(srv.URL),
		WithCensusMaxRetries(2),
		WithCensusBackoff(time.Millisecond),
	)

	pt, _ := p.Geocode(context.Background(), "retry me")
	require.NotNil(t, pt)
	assert.Equal(t, 2, requests)
}

func TestCensusProvider_Available(t *testing.T) {
	assert.True(t, NewCensusProvider(nil).Available())
}
