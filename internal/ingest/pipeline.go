package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spotter-labs/fuel-router/internal/geometry"
	"github.com/spotter-labs/fuel-router/internal/station"
	"github.com/spotter-labs/fuel-router/pkg/geocode"
)

const (
	writeBatchSize   = 50
	progressInterval = 100
)

// Pipeline runs the three-phase import: parse the CSV, bulk insert new
// stations, then geocode stations without a location through a bounded
// worker pool. All database writes funnel through the single collector
// loop.
type Pipeline struct {
	Store  station.Store
	Router *geocode.Router

	Sleep         time.Duration
	Max           int
	Concurrency   int
	SkipAttempted bool
}

// Summary reports what a pipeline run did.
type Summary struct {
	Parsed     int
	Inserted   int
	Attempted  int
	Succeeded  int
	Unresolved int
}

// outcome is one station's geocode result, handed from a worker to the
// collector.
type outcome struct {
	update  station.GeocodeUpdate
	source  string
	success bool
}

// Run executes the full import against csvPath.
func (p *Pipeline) Run(ctx context.Context, csvPath string) (*Summary, error) {
	f, err := os.Open(csvPath)
	if err != nil {
		return nil, eris.Wrapf(err, "ingest: open %s", csvPath)
	}
	defer f.Close() //nolint:errcheck

	parsed, err := ParseCSV(f)
	if err != nil {
		return nil, err
	}
	summary := &Summary{Parsed: len(parsed)}
	zap.L().Info("ingest: parsed csv", zap.String("path", csvPath), zap.Int("rows", len(parsed)))

	existing, err := p.Store.ExistingOPISIDs(ctx)
	if err != nil {
		return nil, err
	}
	var toInsert []station.Station
	for _, s := range parsed {
		if _, ok := existing[s.OPISID]; !ok {
			toInsert = append(toInsert, s)
		}
	}
	if len(toInsert) > 0 {
		n, err := p.Store.BulkInsert(ctx, toInsert)
		if err != nil {
			return nil, err
		}
		summary.Inserted = n
		zap.L().Info("ingest: inserted new stations", zap.Int("count", n))
	} else {
		zap.L().Info("ingest: no new stations to insert")
	}

	ids, err := p.Store.PendingGeocode(ctx, p.SkipAttempted, p.Max)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		zap.L().Info("ingest: nothing to geocode")
		return summary, nil
	}

	if err := p.geocodeAll(ctx, ids, summary); err != nil {
		return summary, err
	}

	zap.L().Info("ingest: done",
		zap.Int("attempted", summary.Attempted),
		zap.Int("succeeded", summary.Succeeded),
		zap.Int("unresolved", summary.Unresolved),
	)
	return summary, nil
}

// geocodeAll fans station ids out to Concurrency workers and drains
// their outcomes serially, flushing a write batch every writeBatchSize
// completions.
func (p *Pipeline) geocodeAll(ctx context.Context, ids []int, summary *Summary) error {
	concurrency := p.Concurrency
	if concurrency <= 0 {
		concurrency = 5
	}
	total := len(ids)
	zap.L().Info("ingest: geocoding stations",
		zap.Int("total", total),
		zap.Int("workers", concurrency),
	)

	// An early collector exit (failed flush) must release blocked
	// workers and the producer, not just parent cancellation.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make(chan outcome)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	go func() {
		defer close(results)
		for _, id := range ids {
			id := id
			g.Go(func() error {
				res := p.geocodeOne(gctx, id)
				select {
				case results <- res:
				case <-gctx.Done():
				}
				return nil
			})
		}
		g.Wait() //nolint:errcheck
	}()

	var batch []station.GeocodeUpdate
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := p.Store.UpdateGeocodeBatch(ctx, batch); err != nil {
			return err
		}
		batch = batch[:0]
		return nil
	}

	for res := range results {
		summary.Attempted++
		if res.success {
			summary.Succeeded++
			zap.L().Info("ingest: geocoded", zap.String("source", res.source))
		} else {
			summary.Unresolved++
			zap.L().Warn("ingest: unresolved", zap.String("source", res.source))
		}

		batch = append(batch, res.update)
		if len(batch) >= writeBatchSize {
			if err := flush(); err != nil {
				return err
			}
		}

		if summary.Attempted%progressInterval == 0 {
			zap.L().Info("ingest: progress",
				zap.Int("done", summary.Attempted),
				zap.Int("total", total),
			)
		}
	}

	return flush()
}

// geocodeOne resolves a single station. Failures never abort the run;
// they come back as an error-sourced outcome with no location.
func (p *Pipeline) geocodeOne(ctx context.Context, opisID int) outcome {
	s, err := p.Store.GetByID(ctx, opisID)
	if err != nil {
		return outcome{
			update: station.GeocodeUpdate{OPISID: opisID, Source: "error:" + eris.Cause(err).Error()},
		}
	}

	if p.Sleep > 0 {
		timer := time.NewTimer(p.Sleep)
		select {
		case <-ctx.Done():
			timer.Stop()
			return outcome{
				update: station.GeocodeUpdate{OPISID: opisID, Source: "error:" + ctx.Err().Error()},
			}
		case <-timer.C:
		}
	}

	pt, dbg := p.Router.GeocodeStation(ctx, s.Address, s.City, s.State)

	meta, err := json.Marshal(dbg)
	if err != nil {
		meta = nil
	}

	if pt != nil {
		return outcome{
			update: station.GeocodeUpdate{
				OPISID:   opisID,
				Location: &geometry.Point{Lat: pt.Lat, Lon: pt.Lon},
				Source:   "geocoded:" + dbg.SuccessLabel,
				Meta:     meta,
			},
			source:  "geocoded:" + dbg.SuccessLabel,
			success: true,
		}
	}

	src := fmt.Sprintf("unresolved:%s:%s", dbg.Classification, dbg.Reason)
	return outcome{
		update: station.GeocodeUpdate{OPISID: opisID, Source: src, Meta: meta},
		source: src,
	}
}
