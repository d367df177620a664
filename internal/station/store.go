package station

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/spotter-labs/fuel-router/internal/db"
	"github.com/spotter-labs/fuel-router/internal/geometry"
	"github.com/spotter-labs/fuel-router/internal/planner"
)

const insertBatchSize = 2000

// Store is the station persistence surface used by the ingest pipeline
// and the planner.
type Store interface {
	ExistingOPISIDs(ctx context.Context) (map[int]struct{}, error)
	BulkInsert(ctx context.Context, stations []Station) (int, error)
	PendingGeocode(ctx context.Context, skipAttempted bool, limit int) ([]int, error)
	GetByID(ctx context.Context, opisID int) (*Station, error)
	UpdateGeocodeBatch(ctx context.Context, updates []GeocodeUpdate) error
	StationsWithinCorridor(ctx context.Context, lineEWKB []byte, corridorMiles, totalMiles float64) ([]planner.Station, error)
}

// PostgresStore implements Store over PostGIS.
type PostgresStore struct {
	pool db.Pool
}

// NewPostgresStore creates a PostgresStore over the given pool.
func NewPostgresStore(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// ExistingOPISIDs returns the set of opis_ids already present.
func (s *PostgresStore) ExistingOPISIDs(ctx context.Context) (map[int]struct{}, error) {
	rows, err := s.pool.Query(ctx, `SELECT opis_id FROM fuel_stations`)
	if err != nil {
		return nil, eris.Wrap(err, "station: query existing ids")
	}
	defer rows.Close()

	ids := make(map[int]struct{})
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, eris.Wrap(err, "station: scan id")
		}
		ids[id] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "station: iterate ids")
	}
	return ids, nil
}

// BulkInsert writes new stations in batches, skipping opis_id
// conflicts so re-imports stay idempotent. Returns rows written.
func (s *PostgresStore) BulkInsert(ctx context.Context, stations []Station) (int, error) {
	cfg := db.UpsertConfig{
		Table: "fuel_stations",
		Columns: []string{
			"opis_id", "name", "address", "city", "state",
			"rack_id", "retail_price",
		},
		ConflictKeys: []string{"opis_id"},
		DoNothing:    true,
	}

	total := 0
	for start := 0; start < len(stations); start += insertBatchSize {
		end := start + insertBatchSize
		if end > len(stations) {
			end = len(stations)
		}

		rows := make([][]any, 0, end-start)
		for _, st := range stations[start:end] {
			rows = append(rows, []any{
				st.OPISID, st.Name, st.Address, st.City, st.State,
				st.RackID, st.RetailPrice,
			})
		}

		n, err := db.BulkUpsert(ctx, s.pool, cfg, rows)
		if err != nil {
			return total, eris.Wrap(err, "station: bulk insert")
		}
		total += int(n)
	}
	return total, nil
}

// PendingGeocode returns opis_ids of stations without a location,
// ordered for deterministic runs. skipAttempted excludes stations a
// previous run already tried.
func (s *PostgresStore) PendingGeocode(ctx context.Context, skipAttempted bool, limit int) ([]int, error) {
	q := `SELECT opis_id FROM fuel_stations WHERE location IS NULL`
	if skipAttempted {
		q += ` AND geocode_source IS NULL`
	}
	q += ` ORDER BY opis_id`
	var args []any
	if limit > 0 {
		q += ` LIMIT $1`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, eris.Wrap(err, "station: query pending geocode")
	}
	defer rows.Close()

	var ids []int
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, eris.Wrap(err, "station: scan pending id")
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "station: iterate pending ids")
	}
	return ids, nil
}

// GetByID fetches one station by opis_id.
func (s *PostgresStore) GetByID(ctx context.Context, opisID int) (*Station, error) {
	var st Station
	var lat, lon *float64
	err := s.pool.QueryRow(ctx, `
		SELECT opis_id, name, address, city, state, rack_id,
		       retail_price::float8,
		       ST_Y(location::geometry), ST_X(location::geometry),
		       COALESCE(geocode_source, '')
		FROM fuel_stations
		WHERE opis_id = $1`,
		opisID,
	).Scan(&st.OPISID, &st.Name, &st.Address, &st.City, &st.State,
		&st.RackID, &st.RetailPrice, &lat, &lon, &st.Source)
	if err != nil {
		return nil, eris.Wrapf(err, "station: get %d", opisID)
	}
	if lat != nil && lon != nil {
		st.Location = &geometry.Point{Lat: *lat, Lon: *lon}
	}
	return &st, nil
}

// UpdateGeocodeBatch persists geocode outcomes in one round trip.
// Resolved stations get a location point; unresolved ones only record
// the source label and debug metadata.
func (s *PostgresStore) UpdateGeocodeBatch(ctx context.Context, updates []GeocodeUpdate) error {
	if len(updates) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, u := range updates {
		if u.Location != nil {
			ewkbPoint, err := geometry.PointEWKB(*u.Location)
			if err != nil {
				return eris.Wrapf(err, "station: encode point for %d", u.OPISID)
			}
			batch.Queue(`
				UPDATE fuel_stations
				SET location = $1::geography, geocode_source = $2, geocode_meta = $3, updated_at = now()
				WHERE opis_id = $4`,
				ewkbPoint, u.Source, u.Meta, u.OPISID)
		} else {
			batch.Queue(`
				UPDATE fuel_stations
				SET geocode_source = $1, geocode_meta = $2, updated_at = now()
				WHERE opis_id = $3`,
				u.Source, u.Meta, u.OPISID)
		}
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close() //nolint:errcheck

	for range updates {
		if _, err := br.Exec(); err != nil {
			return eris.Wrap(err, "station: geocode batch update")
		}
	}
	return nil
}

// StationsWithinCorridor returns stations within corridorMiles of the
// route line, projected onto it and ordered by position along it.
func (s *PostgresStore) StationsWithinCorridor(ctx context.Context, lineEWKB []byte, corridorMiles, totalMiles float64) ([]planner.Station, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT opis_id, name, address, city, state,
		       retail_price::float8,
		       ST_Y(location::geometry), ST_X(location::geometry),
		       ST_LineLocatePoint($1::geometry, location::geometry) AS fraction
		FROM fuel_stations
		WHERE location IS NOT NULL
		  AND ST_DWithin(location, $1::geography, $2)
		ORDER BY fraction`,
		lineEWKB, geometry.MilesToMeters(corridorMiles),
	)
	if err != nil {
		return nil, eris.Wrap(err, "station: corridor query")
	}
	defer rows.Close()

	var out []planner.Station
	for rows.Next() {
		var st planner.Station
		var fraction float64
		if err := rows.Scan(&st.OPISID, &st.Name, &st.Address, &st.City, &st.State,
			&st.Price, &st.Lat, &st.Lon, &fraction); err != nil {
			return nil, eris.Wrap(err, "station: scan corridor row")
		}
		st.Dist = fraction * totalMiles
		out = append(out, st)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "station: iterate corridor rows")
	}
	return out, nil
}
