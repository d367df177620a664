package geocode

import (
	"context"
	"strings"
	"sync"
)

// Provider priority strategies for station geocoding.
const (
	PrioritySmart            = "smart"
	PriorityGoogleThenCensus = "google_then_census"
)

// Attempt is one audit-trail entry recorded per provider call.
type Attempt struct {
	Label       string         `json:"label"`
	Query       string         `json:"query"`
	MetaSummary map[string]any `json:"meta_summary"`
}

// Debug is the full decision record for one geocoding request. It is
// persisted alongside station rows so unresolved addresses can be
// diagnosed after the fact.
type Debug struct {
	Classification     AddrType      `json:"classification,omitempty"`
	ClassificationInfo *ClassifyInfo `json:"classification_info,omitempty"`
	Attempts           []Attempt     `json:"attempts"`
	Success            bool          `json:"success"`
	SuccessLabel       string        `json:"success_label,omitempty"`
	Reason             string        `json:"reason,omitempty"`
}

// Router dispatches geocoding requests across providers using a
// strategy chosen from address classification. Results, including
// misses, are memoized per provider+query for the router's lifetime;
// the cache is guarded because ingest runs share one router across
// workers.
type Router struct {
	census   Provider
	google   Provider
	osm      Provider
	priority string

	mu    sync.Mutex
	cache map[string]cachedResult
}

type cachedResult struct {
	pt   *Point
	meta Meta
}

// NewRouter creates a Router over the three providers. priority selects
// the postal-address strategy order; anything other than
// PriorityGoogleThenCensus behaves as PrioritySmart.
func NewRouter(census, google, osm Provider, priority string) *Router {
	if priority == "" {
		priority = PrioritySmart
	}
	return &Router{
		census:   census,
		google:   google,
		osm:      osm,
		priority: priority,
		cache:    make(map[string]cachedResult),
	}
}

// GoogleViable reports whether the commercial provider can be used.
func (r *Router) GoogleViable() bool {
	return r.google != nil && r.google.Available()
}

// try runs one provider attempt through the memo cache and records an
// audit entry. Returns nil on a miss.
func (r *Router) try(ctx context.Context, p Provider, query string, dbg *Debug) *Point {
	key := p.Name() + ":" + query

	r.mu.Lock()
	cached, ok := r.cache[key]
	r.mu.Unlock()
	if ok {
		dbg.Attempts = append(dbg.Attempts, Attempt{
			Label:       p.Name() + "_cached",
			Query:       query,
			MetaSummary: SummarizeMeta(cached.meta),
		})
		return cached.pt
	}

	pt, meta := p.Geocode(ctx, query)

	r.mu.Lock()
	r.cache[key] = cachedResult{pt: pt, meta: meta}
	r.mu.Unlock()

	dbg.Attempts = append(dbg.Attempts, Attempt{
		Label:       p.Name() + "_query",
		Query:       query,
		MetaSummary: SummarizeMeta(meta),
	})
	return pt
}

// GeocodeString resolves a free-text location: Google when viable, then
// Census, then OSM.
func (r *Router) GeocodeString(ctx context.Context, query string) (*Point, *Debug) {
	dbg := &Debug{}

	if r.GoogleViable() {
		if pt := r.try(ctx, r.google, query, dbg); pt != nil {
			return pt, dbg
		}
	}
	if ctx.Err() == nil {
		if pt := r.try(ctx, r.census, query, dbg); pt != nil {
			return pt, dbg
		}
	}
	if ctx.Err() == nil {
		if pt := r.try(ctx, r.osm, query, dbg); pt != nil {
			return pt, dbg
		}
	}

	return nil, dbg
}

// step is one entry in a classification's strategy list: a provider, a
// strategy label, and the query to issue.
type step struct {
	provider Provider
	label    string
	query    string
}

// joinQuery joins non-empty parts with ", ".
func joinQuery(parts ...string) string {
	var nonEmpty []string
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}
	return strings.Join(nonEmpty, ", ")
}

// stationStrategy returns the ordered attempt list for a classification
// plus the terminal reason code used when every attempt misses.
// The lists are data; walkSteps executes them uniformly.
func (r *Router) stationStrategy(class AddrType, addr, city, state string) ([]step, string) {
	noExit := StripExitTokens(addr)
	place := joinQuery(city, state)
	full := joinQuery(addr, city, state)
	noExitFull := joinQuery(noExit, city, state)
	googleOK := r.GoogleViable()

	switch class {
	case PostalAddress:
		if r.priority == PriorityGoogleThenCensus && googleOK {
			return []step{
				{r.google, "postal_full", full},
				{r.census, "postal_full", full},
				{r.census, "postal_simple", addr},
			}, "postal_no_match"
		}
		steps := []step{
			{r.census, "postal_full", full},
			{r.census, "postal_simple", addr},
		}
		if googleOK {
			steps = append(steps, step{r.google, "postal_fallback", full})
		}
		return steps, "postal_no_match"

	case HighwayIntersection2:
		var steps []step
		if googleOK {
			steps = append(steps, step{r.google, "no_exit", noExitFull})
			roads := ExtractRoads(noExit)
			if len(roads) < 2 {
				roads = ExtractRoads(addr)
			}
			if pairs := BestRoadPairs(roads, 1); len(pairs) > 0 {
				q := joinQuery(pairs[0].A+" & "+pairs[0].B, city, state)
				steps = append(steps, step{r.google, "best_pair", q})
			}
			steps = append(steps, step{r.google, "place_fallback", place})
		}
		return steps, "hwy2_no_match"

	case HighwayIntersectionMulti:
		var steps []step
		if googleOK {
			roads := ExtractRoads(noExit)
			if len(roads) < 2 {
				roads = ExtractRoads(addr)
			}
			for i, pair := range BestRoadPairs(roads, 2) {
				q := joinQuery(pair.A+" & "+pair.B, city, state)
				steps = append(steps, step{r.google, "best_pair_" + string(rune('0'+i)), q})
			}
			steps = append(steps,
				step{r.google, "no_exit_fallback", noExitFull},
				step{r.google, "place_fallback", place},
			)
		}
		return steps, "hwy_multi_no_match"

	case SingleRoute, MileMarker:
		var steps []step
		if googleOK {
			steps = append(steps, step{r.google, "place_fallback", place})
		}
		return steps, "unresolvable_single_route_no_place"

	default: // Unknown
		var steps []step
		if googleOK {
			steps = append(steps,
				step{r.google, "unknown_clean", noExitFull},
				step{r.google, "place_fallback", place},
			)
		}
		return steps, "unknown_exhausted"
	}
}

// GeocodeStation resolves a station's (address, city, state) triple
// using the classification-driven strategy table. The returned Debug
// always carries the classification, the audit trail, and either a
// success label or a terminal reason.
func (r *Router) GeocodeStation(ctx context.Context, addr, city, state string) (*Point, *Debug) {
	class, info := Classify(addr)
	dbg := &Debug{
		Classification:     class,
		ClassificationInfo: &info,
	}

	steps, reason := r.stationStrategy(class, addr, city, state)
	for _, st := range steps {
		if pt := r.try(ctx, st.provider, st.query, dbg); pt != nil {
			dbg.Success = true
			dbg.SuccessLabel = st.provider.Name() + ":" + st.label
			return pt, dbg
		}
		// Cancellation is advisory: one cooperative check between attempts.
		if ctx.Err() != nil {
			break
		}
	}

	dbg.Reason = reason
	return nil, dbg
}
