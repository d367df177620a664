package geocode

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/spotter-labs/fuel-router/internal/db"
)

// Cache is the persistent geocode cache backed by the geocode_cache
// table. Entries are keyed by the original query text with a unique
// normalized form; concurrent writers racing on the same query resolve
// to the first writer with no error surfaced.
type Cache struct {
	pool db.Pool
}

// NewCache creates a Cache over the given pool.
func NewCache(pool db.Pool) *Cache {
	return &Cache{pool: pool}
}

// NormalizeQuery lowercases, collapses whitespace, and trims a query
// for cache matching.
func NormalizeQuery(q string) string {
	q = strings.ToLower(strings.TrimSpace(q))
	return whitespaceRE.ReplaceAllString(q, " ")
}

// Lookup returns the cached point and metadata for a query, or
// ok=false on a miss. Lookup never fails the caller: store errors are
// logged and reported as misses.
func (c *Cache) Lookup(ctx context.Context, query string) (*Point, Meta, bool) {
	if c == nil || c.pool == nil {
		return nil, nil, false
	}

	var lat, lon float64
	var metaJSON []byte
	err := c.pool.QueryRow(ctx, `
		SELECT latitude, longitude, metadata
		FROM geocode_cache
		WHERE normalized_text = $1
		LIMIT 1`,
		NormalizeQuery(query),
	).Scan(&lat, &lon, &metaJSON)
	if err != nil {
		return nil, nil, false
	}

	meta := Meta{}
	if len(metaJSON) > 0 {
		if err := json.Unmarshal(metaJSON, &meta); err != nil {
			zap.L().Debug("geocode cache: bad metadata", zap.Error(err))
			meta = Meta{}
		}
	}

	return &Point{Lat: lat, Lon: lon}, meta, true
}

// Store persists a successful geocode. Duplicate inserts from
// concurrent writers are swallowed via ON CONFLICT DO NOTHING.
func (c *Cache) Store(ctx context.Context, query string, pt Point, meta Meta) error {
	if c == nil || c.pool == nil {
		return nil
	}

	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return eris.Wrap(err, "geocode cache: marshal metadata")
	}

	_, err = c.pool.Exec(ctx, `
		INSERT INTO geocode_cache (query_text, normalized_text, latitude, longitude, metadata, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, now(), now())
		ON CONFLICT DO NOTHING`,
		query, NormalizeQuery(query), pt.Lat, pt.Lon, metaJSON,
	)
	if err != nil {
		return eris.Wrap(err, "geocode cache: store")
	}
	return nil
}
