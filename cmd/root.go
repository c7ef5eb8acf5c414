package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/miami-mobility/workprogram/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "workprogram",
	Short: "FDOT work program construction data ingestion",
	Long:  "Fetches construction work program records from the FDOT ArcGIS FeatureServer, reports data quality, filters invalid rows, and writes the result to a GeoPackage.",
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
