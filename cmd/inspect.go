package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/miami-mobility/workprogram/internal/gpkg"
	"github.com/miami-mobility/workprogram/internal/workprogram"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect [path]",
	Short: "Print the quality report for an existing GeoPackage layer",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := cfg.Output.Path
		if len(args) == 1 {
			path = args[0]
		}
		layer, _ := cmd.Flags().GetString("layer")
		if layer == "" {
			layer = cfg.Output.Layer
		}

		collection, err := gpkg.Read(path, layer)
		if err != nil {
			return eris.Wrap(err, "inspect")
		}

		fmt.Printf("Layer %s in %s (EPSG:%d)\n\n", layer, path, collection.SRID)
		printQualityReport(workprogram.ComputeQualityReport(collection))
		return nil
	},
}

func init() {
	inspectCmd.Flags().String("layer", "", "layer name (default: from config)")
	rootCmd.AddCommand(inspectCmd)
}
