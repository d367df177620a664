package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spotter-labs/fuel-router/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "fuel-router",
	Short: "Minimum-cost truck refueling route planner",
	Long:  "Plans the cheapest refueling schedule along a driving route: OSRM routing, PostGIS corridor queries, multi-provider geocoding, greedy fuel-stop selection.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
