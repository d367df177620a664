package station

import (
	"context"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExistingOPISIDs(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("SELECT opis_id FROM fuel_stations").
		WillReturnRows(pgxmock.NewRows([]string{"opis_id"}).AddRow(100).AddRow(200))

	store := NewPostgresStore(mock)
	ids, err := store.ExistingOPISIDs(context.Background())
	require.NoError(t, err)
	assert.Len(t, ids, 2)
	assert.Contains(t, ids, 100)
	assert.Contains(t, ids, 200)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPendingGeocode_SkipAttempted(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`SELECT opis_id FROM fuel_stations WHERE location IS NULL AND geocode_source IS NULL ORDER BY opis_id LIMIT \$1`).
		WithArgs(10).
		WillReturnRows(pgxmock.NewRows([]string{"opis_id"}).AddRow(1).AddRow(2))

	store := NewPostgresStore(mock)
	ids, err := store.PendingGeocode(context.Background(), true, 10)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, ids)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPendingGeocode_NoLimit(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`SELECT opis_id FROM fuel_stations WHERE location IS NULL ORDER BY opis_id`).
		WillReturnRows(pgxmock.NewRows([]string{"opis_id"}).AddRow(7))

	store := NewPostgresStore(mock)
	ids, err := store.PendingGeocode(context.Background(), false, 0)
	require.NoError(t, err)
	assert.Equal(t, []int{7}, ids)
}

func TestGetByID(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	lat, lon := 40.74, -84.11
	mock.ExpectQuery("SELECT opis_id, name, address").
		WithArgs(100).
		WillReturnRows(pgxmock.NewRows([]string{
			"opis_id", "name", "address", "city", "state", "rack_id",
			"retail_price", "st_y", "st_x", "geocode_source",
		}).AddRow(100, "PILOT #42", "I-75 EXIT 15", "Lima", "OH", (*int)(nil),
			3.459, &lat, &lon, "geocoded:google_maps:no_exit"))

	store := NewPostgresStore(mock)
	st, err := store.GetByID(context.Background(), 100)
	require.NoError(t, err)
	assert.Equal(t, "PILOT #42", st.Name)
	assert.Equal(t, 3.459, st.RetailPrice)
	require.NotNil(t, st.Location)
	assert.InDelta(t, 40.74, st.Location.Lat, 1e-9)
}

func TestStationsWithinCorridor(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	line := []byte{0x01, 0x02}
	mock.ExpectQuery("ST_LineLocatePoint").
		WithArgs(line, 16093.44).
		WillReturnRows(pgxmock.NewRows([]string{
			"opis_id", "name", "address", "city", "state",
			"retail_price", "st_y", "st_x", "fraction",
		}).
			AddRow(1, "STOP A", "ADDR A", "CITY", "ST", 2.00, 40.0, -84.0, 0.2).
			AddRow(2, "STOP B", "ADDR B", "CITY", "ST", 2.10, 41.0, -85.0, 0.8))

	store := NewPostgresStore(mock)
	stations, err := store.StationsWithinCorridor(context.Background(), line, 10, 1000)
	require.NoError(t, err)
	require.Len(t, stations, 2)

	// Fractions project to linear distance along the route.
	assert.InDelta(t, 200.0, stations[0].Dist, 1e-9)
	assert.InDelta(t, 800.0, stations[1].Dist, 1e-9)
	assert.Equal(t, 2.00, stations[0].Price)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateGeocodeBatch_Empty(t *testing.T) {
	store := NewPostgresStore(nil)
	assert.NoError(t, store.UpdateGeocodeBatch(context.Background(), nil))
}
