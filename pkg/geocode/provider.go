// Package geocode resolves free-text and station addresses to WGS84
// points through Census, Google, and OSM Nominatim backends, routed by
// address classification.
package geocode

import (
	"context"
	"encoding/json"
	"fmt"
)

// Point is a WGS84 coordinate.
type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Meta carries provider-specific metadata for a geocode attempt. Every
// provider sets "provider"; failed attempts set "error". Providers never
// return Go errors past their boundary; a miss is (nil, Meta).
type Meta map[string]any

// Provider is a single geocoding backend.
type Provider interface {
	Name() string
	Available() bool
	Geocode(ctx context.Context, query string) (*Point, Meta)
}

// metaKeepKeys are the fields worth retaining when a raw provider
// response is summarized for audit trails.
var metaKeepKeys = []string{
	"matched_address", "match", "status", "score", "coordinates",
	"benchmark", "vintage", "error", "provider", "query",
	"importance", "type", "formatted_address",
}

// SummarizeMeta reduces provider metadata to the audit-relevant subset,
// truncating anything unrecognized.
func SummarizeMeta(meta Meta) map[string]any {
	if len(meta) == 0 {
		return map[string]any{"meta": nil}
	}

	keep := make(map[string]any)
	for _, k := range metaKeepKeys {
		if v, ok := meta[k]; ok {
			keep[k] = v
		}
	}
	if len(keep) == 0 {
		raw, err := json.Marshal(meta)
		if err != nil {
			raw = []byte(fmt.Sprintf("%v", meta))
		}
		s := string(raw)
		if len(s) > 500 {
			s = s[:500]
		}
		keep["raw_truncated"] = s
	}
	return keep
}
