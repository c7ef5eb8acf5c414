package shpexport

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/miami-mobility/workprogram/internal/workprogram"
)

// A shapefile holds a single geometry class, so a mixed collection is
// split into one file per class: <base>_points.shp, <base>_lines.shp,
// <base>_polygons.shp. Records with null, empty, or unsupported
// geometries are skipped.

type class struct {
	suffix    string
	shapeType shp.ShapeType
}

var (
	classPoint   = class{suffix: "points", shapeType: shp.POINT}
	classLine    = class{suffix: "lines", shapeType: shp.POLYLINE}
	classPolygon = class{suffix: "polygons", shapeType: shp.POLYGON}
)

// dbfStringLen is the character field width used for exported attributes.
const dbfStringLen = 64

// Export writes the collection as shapefiles under dir, one per geometry
// class present, and returns the written paths keyed by class suffix.
// Classes with no records produce no file.
func Export(c workprogram.Collection, dir, base string) (map[string]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, eris.Wrapf(err, "shpexport: create output dir %s", dir)
	}

	groups := map[class][]workprogram.Record{}
	var skipped int
	for _, r := range c.Records {
		if r.NullGeometry() || r.EmptyGeometry() {
			skipped++
			continue
		}
		cl, ok := classOf(r.Geom)
		if !ok {
			skipped++
			continue
		}
		groups[cl] = append(groups[cl], r)
	}

	if skipped > 0 {
		zap.L().Debug("shpexport: skipped records without exportable geometry",
			zap.Int("skipped", skipped),
		)
	}

	written := make(map[string]string, len(groups))
	for _, cl := range []class{classPoint, classLine, classPolygon} {
		records := groups[cl]
		if len(records) == 0 {
			continue
		}
		path := filepath.Join(dir, fmt.Sprintf("%s_%s.shp", base, cl.suffix))
		if err := writeClass(path, cl, records); err != nil {
			return nil, err
		}
		written[cl.suffix] = path
		zap.L().Info("shpexport: wrote shapefile",
			zap.String("path", path),
			zap.Int("records", len(records)),
		)
	}

	return written, nil
}

func classOf(g geom.T) (class, bool) {
	switch g.(type) {
	case *geom.Point:
		return classPoint, true
	case *geom.LineString, *geom.MultiLineString:
		return classLine, true
	case *geom.Polygon, *geom.MultiPolygon:
		return classPolygon, true
	default:
		return class{}, false
	}
}

func writeClass(path string, cl class, records []workprogram.Record) error {
	w, err := shp.Create(path, cl.shapeType)
	if err != nil {
		return eris.Wrapf(err, "shpexport: create %s", path)
	}
	defer w.Close()

	keys := attributeKeys(records)
	fields := make([]shp.Field, 0, len(keys))
	for _, key := range keys {
		fields = append(fields, shp.StringField(dbfName(key), dbfStringLen))
	}
	w.SetFields(fields)

	for row, r := range records {
		shape, err := toShape(r.Geom)
		if err != nil {
			return eris.Wrapf(err, "shpexport: record %d", row)
		}
		w.Write(shape)
		for i, key := range keys {
			w.WriteAttribute(row, i, attrString(r.Attrs[key]))
		}
	}

	return nil
}

// attributeKeys returns the union of attribute keys across records in
// sorted order, dropping keys whose 10-character DBF names collide.
func attributeKeys(records []workprogram.Record) []string {
	seen := map[string]bool{}
	for _, r := range records {
		for k := range r.Attrs {
			seen[k] = true
		}
	}

	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	used := map[string]bool{}
	out := keys[:0]
	for _, k := range keys {
		name := dbfName(k)
		if used[name] {
			zap.L().Debug("shpexport: dropping attribute with colliding DBF name",
				zap.String("attribute", k),
				zap.String("dbf_name", name),
			)
			continue
		}
		used[name] = true
		out = append(out, k)
	}
	return out
}

// dbfName truncates an attribute name to the 10-character DBF field limit.
func dbfName(name string) string {
	name = strings.ToUpper(name)
	if len(name) > 10 {
		return name[:10]
	}
	return name
}

func attrString(v any) string {
	if v == nil {
		return ""
	}
	return fmt.Sprint(v)
}

func toShape(g geom.T) (shp.Shape, error) {
	switch t := g.(type) {
	case *geom.Point:
		c := t.Coords()
		return &shp.Point{X: c[0], Y: c[1]}, nil
	case *geom.LineString:
		return shp.NewPolyLine([][]shp.Point{coordsToPoints(t.Coords())}), nil
	case *geom.MultiLineString:
		parts := make([][]shp.Point, 0, t.NumLineStrings())
		for i := 0; i < t.NumLineStrings(); i++ {
			parts = append(parts, coordsToPoints(t.LineString(i).Coords()))
		}
		return shp.NewPolyLine(parts), nil
	case *geom.Polygon:
		return (*shp.Polygon)(shp.NewPolyLine(ringsToParts(t))), nil
	case *geom.MultiPolygon:
		var parts [][]shp.Point
		for i := 0; i < t.NumPolygons(); i++ {
			parts = append(parts, ringsToParts(t.Polygon(i))...)
		}
		return (*shp.Polygon)(shp.NewPolyLine(parts)), nil
	default:
		return nil, eris.Errorf("shpexport: unsupported geometry %T", g)
	}
}

func ringsToParts(p *geom.Polygon) [][]shp.Point {
	parts := make([][]shp.Point, 0, p.NumLinearRings())
	for i := 0; i < p.NumLinearRings(); i++ {
		parts = append(parts, coordsToPoints(p.LinearRing(i).Coords()))
	}
	return parts
}

func coordsToPoints(coords []geom.Coord) []shp.Point {
	points := make([]shp.Point, 0, len(coords))
	for _, c := range coords {
		points = append(points, shp.Point{X: c[0], Y: c[1]})
	}
	return points
}
