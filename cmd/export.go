package main

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/miami-mobility/workprogram/internal/gpkg"
	"github.com/miami-mobility/workprogram/internal/shpexport"
)

var exportCmd = &cobra.Command{
	Use:   "export [path]",
	Short: "Export a GeoPackage layer to Esri shapefiles",
	Long: `Reads a GeoPackage layer and writes one shapefile per geometry class
(points, lines, polygons) for consumers on shapefile-only GIS tooling.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := cfg.Output.Path
		if len(args) == 1 {
			path = args[0]
		}
		layer, _ := cmd.Flags().GetString("layer")
		if layer == "" {
			layer = cfg.Output.Layer
		}
		outDir, _ := cmd.Flags().GetString("out-dir")
		if outDir == "" {
			outDir = filepath.Dir(path)
		}
		base, _ := cmd.Flags().GetString("base")
		if base == "" {
			base = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		}

		collection, err := gpkg.Read(path, layer)
		if err != nil {
			return eris.Wrap(err, "export")
		}

		written, err := shpexport.Export(collection, outDir, base)
		if err != nil {
			return eris.Wrap(err, "export")
		}

		if len(written) == 0 {
			fmt.Println("No exportable geometries found")
			return nil
		}

		classes := make([]string, 0, len(written))
		for class := range written {
			classes = append(classes, class)
		}
		sort.Strings(classes)
		for _, class := range classes {
			fmt.Printf("%-10s %s\n", class, written[class])
		}
		return nil
	},
}

func init() {
	exportCmd.Flags().String("layer", "", "layer name (default: from config)")
	exportCmd.Flags().String("out-dir", "", "output directory (default: alongside the GeoPackage)")
	exportCmd.Flags().String("base", "", "output file base name (default: GeoPackage file name)")
	rootCmd.AddCommand(exportCmd)
}
