package main

import (
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spotter-labs/fuel-router/internal/db"
	"github.com/spotter-labs/fuel-router/internal/ingest"
	"github.com/spotter-labs/fuel-router/internal/station"
	"github.com/spotter-labs/fuel-router/pkg/geocode"
)

var (
	importCSVPath       string
	importSleep         float64
	importMax           int
	importConcurrent    int
	importSkipAttempted bool
	importProvider      string
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import fuel prices from CSV and geocode new stations",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if cfg.Store.DatabaseURL == "" {
			return eris.New("database url is required (DATABASE_URL)")
		}
		if importProvider != geocode.PrioritySmart && importProvider != geocode.PriorityGoogleThenCensus {
			return eris.Errorf("invalid provider strategy %q", importProvider)
		}

		if cfg.Geocode.GoogleAPIKey == "" {
			zap.L().Warn("GOOGLE_MAPS_API_KEY is missing; only the Census geocoder will be used. " +
				"Highway intersections and single routes may be unresolved. " +
				"Set GOOGLE_MAPS_API_KEY for full coverage.")
		} else {
			zap.L().Info("Google Maps geocoding enabled")
		}

		pool, err := db.Connect(ctx, cfg.Store.DatabaseURL)
		if err != nil {
			return err
		}
		defer pool.Close()

		cache := geocode.NewCache(pool)
		census := geocode.NewCensusProvider(cache,
			geocode.WithCensusMaxRetries(cfg.Geocode.CensusRetries))
		google := geocode.NewGoogleProvider(cfg.Geocode.GoogleAPIKey)
		osm := geocode.NewOSMProvider(cfg.Geocode.NominatimAgent)

		pipeline := &ingest.Pipeline{
			Store:         station.NewPostgresStore(pool),
			Router:        geocode.NewRouter(census, google, osm, importProvider),
			Sleep:         time.Duration(importSleep * float64(time.Second)),
			Max:           importMax,
			Concurrency:   importConcurrent,
			SkipAttempted: importSkipAttempted,
		}

		summary, err := pipeline.Run(ctx, importCSVPath)
		if err != nil {
			return eris.Wrap(err, "import")
		}

		zap.L().Info("import complete",
			zap.Int("parsed", summary.Parsed),
			zap.Int("inserted", summary.Inserted),
			zap.Int("attempted", summary.Attempted),
			zap.Int("succeeded", summary.Succeeded),
			zap.Int("unresolved", summary.Unresolved),
		)
		return nil
	},
}

func init() {
	importCmd.Flags().StringVar(&importCSVPath, "csv", "/app/data/fuel-prices-for-be-assessment.csv", "path to CSV file")
	importCmd.Flags().Float64Var(&importSleep, "sleep", 0.1, "sleep seconds between geocode requests")
	importCmd.Flags().IntVar(&importMax, "max", 0, "max stations to geocode (0 = no limit)")
	importCmd.Flags().IntVar(&importConcurrent, "concurrent", 5, "number of geocoding workers")
	importCmd.Flags().BoolVar(&importSkipAttempted, "skip_attempted", false, "skip stations that already have geocode_source set")
	importCmd.Flags().StringVar(&importProvider, "provider", "smart", "provider priority strategy (smart|google_then_census)")
	rootCmd.AddCommand(importCmd)
}
