package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spotter-labs/fuel-router/internal/planner"
	"github.com/spotter-labs/fuel-router/internal/station"
	"github.com/spotter-labs/fuel-router/pkg/geocode"
)

// fakeStore is an in-memory station.Store for pipeline tests.
type fakeStore struct {
	mu        sync.Mutex
	existing  map[int]struct{}
	rows      map[int]*station.Station
	inserted  []station.Station
	updates   []station.GeocodeUpdate
	flushes   int
	updateErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		existing: map[int]struct{}{},
		rows:     map[int]*station.Station{},
	}
}

func (f *fakeStore) ExistingOPISIDs(context.Context) (map[int]struct{}, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[int]struct{}, len(f.existing))
	for k := range f.existing {
		out[k] = struct{}{}
	}
	return out, nil
}

func (f *fakeStore) BulkInsert(_ context.Context, stations []station.Station) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range stations {
		s := s
		f.inserted = append(f.inserted, s)
		f.rows[s.OPISID] = &s
		f.existing[s.OPISID] = struct{}{}
	}
	return len(stations), nil
}

func (f *fakeStore) PendingGeocode(_ context.Context, _ bool, limit int) ([]int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []int
	for id, s := range f.rows {
		if s.Location == nil {
			ids = append(ids, id)
		}
	}
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

func (f *fakeStore) GetByID(_ context.Context, opisID int) (*station.Station, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := *f.rows[opisID]
	return &s, nil
}

func (f *fakeStore) UpdateGeocodeBatch(_ context.Context, updates []station.GeocodeUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return f.updateErr
	}
	f.updates = append(f.updates, updates...)
	f.flushes++
	for _, u := range updates {
		if row, ok := f.rows[u.OPISID]; ok {
			row.Location = u.Location
			row.Source = u.Source
		}
	}
	return nil
}

func (f *fakeStore) StationsWithinCorridor(context.Context, []byte, float64, float64) ([]planner.Station, error) {
	return nil, nil
}

// tableProvider is a fixed-answer geocode.Provider.
type tableProvider struct {
	name      string
	available bool
	points    map[string]*geocode.Point
}

func (p *tableProvider) Name() string    { return p.name }
func (p *tableProvider) Available() bool { return p.available }

func (p *tableProvider) Geocode(_ context.Context, query string) (*geocode.Point, geocode.Meta) {
	if pt, ok := p.points[query]; ok {
		return pt, geocode.Meta{"provider": p.name}
	}
	return nil, geocode.Meta{"provider": p.name}
}

func writeTempCSV(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "prices.csv")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestPipelineRun_InsertsAndGeocodes(t *testing.T) {
	csvPath := writeTempCSV(t, sampleCSV)

	store := newFakeStore()
	census := &tableProvider{name: "census", available: true, points: map[string]*geocode.Point{
		"123 Main St, Miami, FL": {Lat: 25.77, Lon: -80.19},
	}}
	google := &tableProvider{name: "google_maps", available: false}
	osm := &tableProvider{name: "osm", available: true}

	p := &Pipeline{
		Store:       store,
		Router:      geocode.NewRouter(census, google, osm, geocode.PrioritySmart),
		Concurrency: 2,
	}

	summary, err := p.Run(context.Background(), csvPath)
	require.NoError(t, err)

	assert.Equal(t, 3, summary.Parsed)
	assert.Equal(t, 3, summary.Inserted)
	assert.Equal(t, 3, summary.Attempted)
	assert.Equal(t, 1, summary.Succeeded)
	assert.Equal(t, 2, summary.Unresolved)

	// Every attempted station got a write-back, resolved or not.
	assert.Len(t, store.updates, 3)

	miami := store.rows[200]
	require.NotNil(t, miami.Location)
	assert.Equal(t, "geocoded:census:postal_full", miami.Source)

	// Without Google the highway addresses record classification+reason.
	lima := store.rows[100]
	assert.Nil(t, lima.Location)
	assert.Equal(t, "unresolved:SINGLE_ROUTE:unresolvable_single_route_no_place", lima.Source)

	kearney := store.rows[400]
	assert.Nil(t, kearney.Location)
	assert.Equal(t, "unresolved:HIGHWAY_INTERSECTION_2:hwy2_no_match", kearney.Source)
}

func TestPipelineRun_SkipsExistingStations(t *testing.T) {
	csvPath := writeTempCSV(t, sampleCSV)

	store := newFakeStore()
	store.existing[100] = struct{}{}
	store.rows[100] = &station.Station{OPISID: 100, Address: "I-75 EXIT 15", City: "Lima", State: "OH"}

	census := &tableProvider{name: "census", available: true}
	google := &tableProvider{name: "google_maps", available: false}
	osm := &tableProvider{name: "osm", available: true}

	p := &Pipeline{
		Store:       store,
		Router:      geocode.NewRouter(census, google, osm, geocode.PrioritySmart),
		Concurrency: 1,
	}

	summary, err := p.Run(context.Background(), csvPath)
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Inserted)
	for _, ins := range store.inserted {
		assert.NotEqual(t, 100, ins.OPISID)
	}
}

func TestPipelineRun_MaxCapsWork(t *testing.T) {
	csvPath := writeTempCSV(t, sampleCSV)

	store := newFakeStore()
	census := &tableProvider{name: "census", available: true}
	google := &tableProvider{name: "google_maps", available: false}
	osm := &tableProvider{name: "osm", available: true}

	p := &Pipeline{
		Store:       store,
		Router:      geocode.NewRouter(census, google, osm, geocode.PrioritySmart),
		Concurrency: 1,
		Max:         1,
	}

	summary, err := p.Run(context.Background(), csvPath)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Attempted)
}

func TestPipelineRun_WriteBackFailureAborts(t *testing.T) {
	// Enough rows that the first flush happens mid-stream, while
	// workers are still producing.
	var b strings.Builder
	b.WriteString("OPIS Truckstop ID,Truckstop Name,Address,City,State,Rack ID,Retail Price\n")
	for i := 0; i < 60; i++ {
		fmt.Fprintf(&b, "%d,STOP %d,I-75 EXIT %d,Lima,OH,,3.009\n", 1000+i, i, i)
	}
	csvPath := writeTempCSV(t, b.String())

	store := newFakeStore()
	store.updateErr = errors.New("write-back failed")

	census := &tableProvider{name: "census", available: true}
	google := &tableProvider{name: "google_maps", available: false}
	osm := &tableProvider{name: "osm", available: true}

	p := &Pipeline{
		Store:       store,
		Router:      geocode.NewRouter(census, google, osm, geocode.PrioritySmart),
		Concurrency: 4,
	}

	baseline := runtime.NumGoroutine()

	done := make(chan error, 1)
	go func() {
		_, err := p.Run(context.Background(), csvPath)
		done <- err
	}()

	select {
	case err := <-done:
		require.Error(t, err)
		assert.Contains(t, err.Error(), "write-back failed")
	case <-time.After(5 * time.Second):
		t.Fatal("pipeline did not return after write-back failure")
	}

	// The producer and blocked workers must wind down, not linger.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if runtime.NumGoroutine() <= baseline+2 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("goroutines leaked after abort: %d running, baseline %d",
		runtime.NumGoroutine(), baseline)
}

func TestPipelineRun_MissingFile(t *testing.T) {
	p := &Pipeline{Store: newFakeStore()}
	_, err := p.Run(context.Background(), filepath.Join(t.TempDir(), "nope.csv"))
	assert.Error(t, err)
}
