package gpkg

import (
	"database/sql"
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	_ "modernc.org/sqlite"

	"github.com/miami-mobility/workprogram/internal/workprogram"
)

// Read loads a GeoPackage layer back into a collection. It is the inverse
// of Write for the layers this tool produces, and tolerant enough to open
// single-layer GeoPackages written by other tools.
func Read(path, layer string) (workprogram.Collection, error) {
	if !identPattern.MatchString(layer) {
		return workprogram.Collection{}, eris.Errorf("gpkg: invalid layer name %q", layer)
	}
	if _, err := os.Stat(path); err != nil {
		return workprogram.Collection{}, eris.Wrapf(err, "gpkg: open %s", path)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return workprogram.Collection{}, eris.Wrap(err, "gpkg: open database")
	}
	defer db.Close() //nolint:errcheck

	var geomCol string
	var srid int
	err = db.QueryRow(
		`SELECT column_name, srs_id FROM gpkg_geometry_columns WHERE table_name = ?`,
		layer,
	).Scan(&geomCol, &srid)
	if err != nil {
		if eris.Is(err, sql.ErrNoRows) {
			return workprogram.Collection{}, eris.Errorf("gpkg: layer %q not found in %s", layer, path)
		}
		return workprogram.Collection{}, eris.Wrap(err, "gpkg: read geometry columns")
	}

	rows, err := db.Query(fmt.Sprintf("SELECT * FROM %q ORDER BY fid", layer))
	if err != nil {
		return workprogram.Collection{}, eris.Wrapf(err, "gpkg: query layer %s", layer)
	}
	defer rows.Close() //nolint:errcheck

	colNames, err := rows.Columns()
	if err != nil {
		return workprogram.Collection{}, eris.Wrap(err, "gpkg: read columns")
	}

	var records []workprogram.Record
	for rows.Next() {
		values := make([]any, len(colNames))
		ptrs := make([]any, len(colNames))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return workprogram.Collection{}, eris.Wrap(err, "gpkg: scan row")
		}

		rec := workprogram.Record{Attrs: make(map[string]any)}
		for i, name := range colNames {
			switch name {
			case "fid":
				// Synthetic primary key, not an attribute.
			case geomCol:
				g, err := decodeGeomValue(values[i])
				if err != nil {
					return workprogram.Collection{}, err
				}
				rec.Geom = g
			default:
				rec.Attrs[name] = normalizeValue(values[i])
			}
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return workprogram.Collection{}, eris.Wrap(err, "gpkg: iterate rows")
	}

	return workprogram.Collection{SRID: srid, Records: records}, nil
}

func decodeGeomValue(v any) (geom.T, error) {
	if v == nil {
		return nil, nil
	}
	blob, ok := v.([]byte)
	if !ok {
		return nil, eris.Errorf("gpkg: geometry column holds %T, want blob", v)
	}
	decoded, _, err := DecodeGeometry(blob)
	if err != nil {
		return nil, err
	}
	return decoded, nil
}

func normalizeValue(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}
