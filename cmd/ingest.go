package main

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/miami-mobility/workprogram/internal/arcgis"
	"github.com/miami-mobility/workprogram/internal/gpkg"
	"github.com/miami-mobility/workprogram/internal/workprogram"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Fetch, validate, clean, and persist work program data",
	Long: `Pages through the FDOT Work Program FeatureServer for one county,
prints a data quality report, drops rows with missing geometry or location
errors, and writes the cleaned layer to a GeoPackage.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate(); err != nil {
			return err
		}

		runID := uuid.New().String()
		log := zap.L().With(
			zap.String("command", "ingest"),
			zap.String("run_id", runID),
		)

		// Flags override config.
		county, _ := cmd.Flags().GetString("county")
		where, _ := cmd.Flags().GetString("where")
		pageSize, _ := cmd.Flags().GetInt("page-size")
		outPath, _ := cmd.Flags().GetString("out")
		layer, _ := cmd.Flags().GetString("layer")

		if county == "" {
			county = cfg.API.County
		}
		if where == "" {
			where = arcgis.CountyWhere(county)
		}
		if pageSize == 0 {
			pageSize = cfg.API.PageSize
		}
		if outPath == "" {
			outPath = cfg.Output.Path
		}
		if layer == "" {
			layer = cfg.Output.Layer
		}

		client := arcgis.NewClient(arcgis.Options{
			BaseURL:        cfg.API.BaseURL,
			PageSize:       pageSize,
			Timeout:        time.Duration(cfg.API.TimeoutSecs) * time.Second,
			RequestsPerSec: cfg.API.RequestsPerSec,
			UserAgent:      cfg.API.UserAgent,
		})

		log.Info("starting ingest",
			zap.String("where", where),
			zap.Int("page_size", pageSize),
			zap.String("out", outPath),
		)

		fmt.Println("Fetching data from FDOT ArcGIS API...")
		collection, err := client.FetchAll(ctx, where)
		if err != nil {
			return eris.Wrap(err, "ingest: fetch")
		}

		report := workprogram.ComputeQualityReport(collection)
		fmt.Println()
		printQualityReport(report)

		cleaned := workprogram.Clean(collection)
		fmt.Printf("\nRows after cleaning: %d (dropped %d)\n",
			cleaned.Len(), collection.Len()-cleaned.Len())

		if err := gpkg.Write(outPath, layer, cleaned); err != nil {
			return eris.Wrap(err, "ingest: persist")
		}

		log.Info("ingest complete",
			zap.Int("fetched", collection.Len()),
			zap.Int("kept", cleaned.Len()),
		)

		fmt.Printf("\nData saved to: %s\n", outPath)
		return nil
	},
}

func init() {
	ingestCmd.Flags().String("county", "", "county name for the CONTYNAM filter (default: from config)")
	ingestCmd.Flags().String("where", "", "raw where clause, overrides --county")
	ingestCmd.Flags().Int("page-size", 0, "records per API request (default: from config or 2000)")
	ingestCmd.Flags().String("out", "", "output GeoPackage path (default: from config)")
	ingestCmd.Flags().String("layer", "", "output layer name (default: from config)")
	rootCmd.AddCommand(ingestCmd)
}
