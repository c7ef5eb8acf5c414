package gpkg

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/miami-mobility/workprogram/internal/workprogram"
)

// A GeoPackage is a SQLite database with a registered application id and
// a handful of metadata tables. This writer produces a single-layer
// features GeoPackage readable by GDAL/QGIS and geopandas.

const (
	// "GPKG" in ASCII, the registered SQLite application id.
	applicationID = 0x47504B47
	// GeoPackage 1.3.
	userVersion = 10300

	geomColumn = "geom"
)

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

const wgs84WKT = `GEOGCS["WGS 84",DATUM["WGS_1984",SPHEROID["WGS 84",6378137,298.257223563]],PRIMEM["Greenwich",0],UNIT["degree",0.0174532925199433],AUTHORITY["EPSG","4326"]]`

// Write persists the collection as a GeoPackage layer at path, creating
// parent directories as needed. The file is written to a temp sibling and
// renamed over path, so a failed run never leaves a half-written
// GeoPackage behind.
func Write(path, layer string, c workprogram.Collection) error {
	if !identPattern.MatchString(layer) {
		return eris.Errorf("gpkg: invalid layer name %q", layer)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return eris.Wrapf(err, "gpkg: create output dir %s", dir)
	}

	tmp := path + ".tmp"
	_ = os.Remove(tmp)

	if err := writeFile(tmp, layer, c); err != nil {
		_ = os.Remove(tmp)
		return err
	}

	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return eris.Wrapf(err, "gpkg: replace %s", path)
	}

	zap.L().Info("gpkg: wrote layer",
		zap.String("path", path),
		zap.String("layer", layer),
		zap.Int("records", c.Len()),
	)
	return nil
}

func writeFile(path, layer string, c workprogram.Collection) error {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return eris.Wrap(err, "gpkg: open database")
	}
	defer db.Close() //nolint:errcheck

	for _, pragma := range []string{
		fmt.Sprintf("PRAGMA application_id = %d", applicationID),
		fmt.Sprintf("PRAGMA user_version = %d", userVersion),
	} {
		if _, err := db.Exec(pragma); err != nil {
			return eris.Wrapf(err, "gpkg: exec %s", pragma)
		}
	}

	if err := createMetadata(db); err != nil {
		return err
	}

	cols, err := attributeColumns(c)
	if err != nil {
		return err
	}

	if err := createLayer(db, layer, cols, c); err != nil {
		return err
	}

	if err := insertRecords(db, layer, cols, c); err != nil {
		return err
	}

	return eris.Wrap(db.Close(), "gpkg: close database")
}

const metadataSchema = `
CREATE TABLE IF NOT EXISTS gpkg_spatial_ref_sys (
	srs_name                 TEXT NOT NULL,
	srs_id                   INTEGER PRIMARY KEY,
	organization             TEXT NOT NULL,
	organization_coordsys_id INTEGER NOT NULL,
	definition               TEXT NOT NULL,
	description              TEXT
);

CREATE TABLE IF NOT EXISTS gpkg_contents (
	table_name  TEXT PRIMARY KEY,
	data_type   TEXT NOT NULL,
	identifier  TEXT UNIQUE,
	description TEXT DEFAULT '',
	last_change DATETIME NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now')),
	min_x       DOUBLE,
	min_y       DOUBLE,
	max_x       DOUBLE,
	max_y       DOUBLE,
	srs_id      INTEGER,
	CONSTRAINT fk_gc_r_srs_id FOREIGN KEY (srs_id) REFERENCES gpkg_spatial_ref_sys(srs_id)
);

CREATE TABLE IF NOT EXISTS gpkg_geometry_columns (
	table_name         TEXT NOT NULL,
	column_name        TEXT NOT NULL,
	geometry_type_name TEXT NOT NULL,
	srs_id             INTEGER NOT NULL,
	z                  TINYINT NOT NULL,
	m                  TINYINT NOT NULL,
	CONSTRAINT pk_geom_cols PRIMARY KEY (table_name, column_name),
	CONSTRAINT fk_gc_tn FOREIGN KEY (table_name) REFERENCES gpkg_contents(table_name),
	CONSTRAINT fk_gc_srs FOREIGN KEY (srs_id) REFERENCES gpkg_spatial_ref_sys(srs_id)
);
`

func createMetadata(db *sql.DB) error {
	if _, err := db.Exec(metadataSchema); err != nil {
		return eris.Wrap(err, "gpkg: create metadata tables")
	}

	// The two undefined SRS rows are mandatory in every GeoPackage.
	srs := [][]any{
		{"Undefined Cartesian SRS", -1, "NONE", -1, "undefined", "undefined cartesian coordinate reference system"},
		{"Undefined Geographic SRS", 0, "NONE", 0, "undefined", "undefined geographic coordinate reference system"},
		{"WGS 84 geodetic", workprogram.SRIDWGS84, "EPSG", workprogram.SRIDWGS84, wgs84WKT, "longitude/latitude coordinates in decimal degrees"},
	}
	for _, row := range srs {
		_, err := db.Exec(
			`INSERT OR REPLACE INTO gpkg_spatial_ref_sys
			 (srs_name, srs_id, organization, organization_coordsys_id, definition, description)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			row...,
		)
		if err != nil {
			return eris.Wrap(err, "gpkg: insert spatial ref sys")
		}
	}
	return nil
}

// column is one attribute column of the feature table.
type column struct {
	name    string
	sqlType string
}

// attributeColumns derives the feature table schema from the collection:
// the union of attribute keys in sorted order, typed by the first non-nil
// value observed. Keys that only ever hold nil fall back to TEXT.
func attributeColumns(c workprogram.Collection) ([]column, error) {
	types := make(map[string]string)
	for _, r := range c.Records {
		for k, v := range r.Attrs {
			if types[k] == "" && v != nil {
				types[k] = sqlTypeOf(v)
			} else if _, seen := types[k]; !seen {
				types[k] = ""
			}
		}
	}

	names := make([]string, 0, len(types))
	for k := range types {
		names = append(names, k)
	}
	sort.Strings(names)

	cols := make([]column, 0, len(names))
	for _, name := range names {
		if !identPattern.MatchString(name) {
			return nil, eris.Errorf("gpkg: invalid attribute name %q", name)
		}
		sqlType := types[name]
		if sqlType == "" {
			sqlType = "TEXT"
		}
		cols = append(cols, column{name: name, sqlType: sqlType})
	}
	return cols, nil
}

func sqlTypeOf(v any) string {
	switch v.(type) {
	case string:
		return "TEXT"
	case float64, float32:
		return "REAL"
	case int, int32, int64:
		return "INTEGER"
	case bool:
		return "INTEGER"
	default:
		return "TEXT"
	}
}

func createLayer(db *sql.DB, layer string, cols []column, c workprogram.Collection) error {
	defs := make([]string, 0, len(cols)+2)
	defs = append(defs,
		"fid INTEGER PRIMARY KEY AUTOINCREMENT",
		fmt.Sprintf("%q BLOB", geomColumn),
	)
	for _, col := range cols {
		defs = append(defs, fmt.Sprintf("%q %s", col.name, col.sqlType))
	}

	create := fmt.Sprintf("CREATE TABLE %q (%s)", layer, strings.Join(defs, ", "))
	if _, err := db.Exec(create); err != nil {
		return eris.Wrapf(err, "gpkg: create layer %s", layer)
	}

	minX, minY, maxX, maxY := collectionBounds(c)

	_, err := db.Exec(
		`INSERT INTO gpkg_contents
		 (table_name, data_type, identifier, description, last_change, min_x, min_y, max_x, max_y, srs_id)
		 VALUES (?, 'features', ?, ?, ?, ?, ?, ?, ?, ?)`,
		layer, layer, "FDOT work program construction records",
		time.Now().UTC().Format("2006-01-02T15:04:05.000Z"),
		minX, minY, maxX, maxY, c.SRID,
	)
	if err != nil {
		return eris.Wrap(err, "gpkg: insert contents")
	}

	_, err = db.Exec(
		`INSERT INTO gpkg_geometry_columns
		 (table_name, column_name, geometry_type_name, srs_id, z, m)
		 VALUES (?, ?, 'GEOMETRY', ?, 0, 0)`,
		layer, geomColumn, c.SRID,
	)
	if err != nil {
		return eris.Wrap(err, "gpkg: insert geometry columns")
	}
	return nil
}

// collectionBounds returns the envelope of all non-empty geometries, or
// nils when the collection has none.
func collectionBounds(c workprogram.Collection) (minX, minY, maxX, maxY any) {
	found := false
	var x0, y0, x1, y1 float64
	for _, r := range c.Records {
		if r.NullGeometry() || r.EmptyGeometry() {
			continue
		}
		b := r.Geom.Bounds()
		if !found {
			x0, y0, x1, y1 = b.Min(0), b.Min(1), b.Max(0), b.Max(1)
			found = true
			continue
		}
		x0 = min(x0, b.Min(0))
		y0 = min(y0, b.Min(1))
		x1 = max(x1, b.Max(0))
		y1 = max(y1, b.Max(1))
	}
	if !found {
		return nil, nil, nil, nil
	}
	return x0, y0, x1, y1
}

func insertRecords(db *sql.DB, layer string, cols []column, c workprogram.Collection) error {
	tx, err := db.Begin()
	if err != nil {
		return eris.Wrap(err, "gpkg: begin transaction")
	}
	defer tx.Rollback() //nolint:errcheck

	colNames := make([]string, 0, len(cols)+1)
	colNames = append(colNames, fmt.Sprintf("%q", geomColumn))
	placeholders := []string{"?"}
	for _, col := range cols {
		colNames = append(colNames, fmt.Sprintf("%q", col.name))
		placeholders = append(placeholders, "?")
	}

	stmt, err := tx.Prepare(fmt.Sprintf(
		"INSERT INTO %q (%s) VALUES (%s)",
		layer, strings.Join(colNames, ", "), strings.Join(placeholders, ", "),
	))
	if err != nil {
		return eris.Wrap(err, "gpkg: prepare insert")
	}
	defer stmt.Close() //nolint:errcheck

	for i, r := range c.Records {
		args := make([]any, 0, len(cols)+1)

		// Null and empty geometries are stored as NULL; the cleaned
		// pipeline output never contains them, but the writer accepts
		// arbitrary collections.
		if r.NullGeometry() || r.EmptyGeometry() {
			args = append(args, nil)
		} else {
			blob, err := EncodeGeometry(r.Geom, c.SRID)
			if err != nil {
				return eris.Wrapf(err, "gpkg: record %d", i)
			}
			args = append(args, blob)
		}

		for _, col := range cols {
			args = append(args, bindValue(r.Attrs[col.name]))
		}

		if _, err := stmt.Exec(args...); err != nil {
			return eris.Wrapf(err, "gpkg: insert record %d", i)
		}
	}

	return eris.Wrap(tx.Commit(), "gpkg: commit")
}

func bindValue(v any) any {
	switch val := v.(type) {
	case bool:
		if val {
			return int64(1)
		}
		return int64(0)
	default:
		return v
	}
}
