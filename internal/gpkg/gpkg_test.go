package gpkg

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/miami-mobility/workprogram/internal/workprogram"
)

func point(x, y float64) geom.T {
	return geom.NewPointFlat(geom.XY, []float64{x, y}).SetSRID(workprogram.SRIDWGS84)
}

func sampleCollection() workprogram.Collection {
	return workprogram.NewCollection([]workprogram.Record{
		{
			Geom: point(-80.19, 25.76),
			Attrs: map[string]any{
				"OBJECTID":  1.0,
				"LOC_ERROR": "NO ERROR",
				"CONTYNAM":  "MIAMI-DADE",
				"PHASECOST": 1250000.5,
			},
		},
		{
			Geom: point(-80.21, 25.81),
			Attrs: map[string]any{
				"OBJECTID":  2.0,
				"LOC_ERROR": "NO ERROR",
				"CONTYNAM":  "MIAMI-DADE",
				"PHASECOST": 98000.0,
			},
		},
	})
}

func TestWriteReadRoundTrip(t *testing.T) {
	// Parent directories do not exist yet; Write must create them.
	path := filepath.Join(t.TempDir(), "data", "processed", "wp.gpkg")

	require.NoError(t, Write(path, "work_program", sampleCollection()))

	got, err := Read(path, "work_program")
	require.NoError(t, err)

	require.Equal(t, 2, got.Len())
	assert.Equal(t, workprogram.SRIDWGS84, got.SRID)

	first := got.Records[0]
	assert.Equal(t, "NO ERROR", first.Attrs["LOC_ERROR"])
	assert.Equal(t, "MIAMI-DADE", first.Attrs["CONTYNAM"])
	assert.Equal(t, 1.0, first.Attrs["OBJECTID"])
	assert.Equal(t, 1250000.5, first.Attrs["PHASECOST"])

	pt, ok := first.Geom.(*geom.Point)
	require.True(t, ok)
	assert.Equal(t, []float64{-80.19, 25.76}, pt.FlatCoords())

	// Order preserved.
	assert.Equal(t, 2.0, got.Records[1].Attrs["OBJECTID"])
}

func TestWriteOverwritesExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wp.gpkg")

	require.NoError(t, Write(path, "work_program", sampleCollection()))

	smaller := workprogram.NewCollection(sampleCollection().Records[:1])
	require.NoError(t, Write(path, "work_program", smaller))

	got, err := Read(path, "work_program")
	require.NoError(t, err)
	assert.Equal(t, 1, got.Len())
}

func TestWriteLeavesNoTempFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "wp.gpkg")

	require.NoError(t, Write(path, "work_program", sampleCollection()))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "wp.gpkg", entries[0].Name())
}

func TestWriteEmptyCollection(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.gpkg")

	require.NoError(t, Write(path, "work_program", workprogram.NewCollection(nil)))

	got, err := Read(path, "work_program")
	require.NoError(t, err)
	assert.Equal(t, 0, got.Len())
	assert.Equal(t, workprogram.SRIDWGS84, got.SRID)
}

func TestWriteNullGeometry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "null.gpkg")
	c := workprogram.NewCollection([]workprogram.Record{
		{Geom: nil, Attrs: map[string]any{"LOC_ERROR": "GEOCODE FAILED"}},
	})

	require.NoError(t, Write(path, "work_program", c))

	got, err := Read(path, "work_program")
	require.NoError(t, err)
	require.Equal(t, 1, got.Len())
	assert.Nil(t, got.Records[0].Geom)
	assert.Equal(t, "GEOCODE FAILED", got.Records[0].Attrs["LOC_ERROR"])
}

func TestWriteInvalidLayerName(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wp.gpkg")

	err := Write(path, "bad layer; drop", sampleCollection())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid layer name")
}

func TestWriteInvalidAttributeName(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wp.gpkg")
	c := workprogram.NewCollection([]workprogram.Record{
		{Geom: point(-80, 25), Attrs: map[string]any{`bad"col`: 1.0}},
	})

	err := Write(path, "work_program", c)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid attribute name")
}

func TestReadMissingFile(t *testing.T) {
	_, err := Read(filepath.Join(t.TempDir(), "absent.gpkg"), "work_program")
	require.Error(t, err)
}

func TestReadMissingLayer(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wp.gpkg")
	require.NoError(t, Write(path, "work_program", sampleCollection()))

	_, err := Read(path, "other_layer")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestEncodeDecodeGeometry(t *testing.T) {
	g := point(-80.19, 25.76)

	blob, err := EncodeGeometry(g, workprogram.SRIDWGS84)
	require.NoError(t, err)

	// Header: magic "GP", version 0, little-endian flags, then WKB.
	require.GreaterOrEqual(t, len(blob), headerSize)
	assert.Equal(t, byte('G'), blob[0])
	assert.Equal(t, byte('P'), blob[1])
	assert.Equal(t, byte(0), blob[2])

	decoded, srid, err := DecodeGeometry(blob)
	require.NoError(t, err)
	assert.Equal(t, workprogram.SRIDWGS84, srid)

	pt, ok := decoded.(*geom.Point)
	require.True(t, ok)
	assert.Equal(t, []float64{-80.19, 25.76}, pt.FlatCoords())
}

func TestDecodeGeometryRejectsGarbage(t *testing.T) {
	_, _, err := DecodeGeometry([]byte{0x01, 0x02})
	require.Error(t, err)

	_, _, err = DecodeGeometry([]byte("XXXXXXXXXXXX"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "magic")
}

func TestWriteLineAndPolygonGeometries(t *testing.T) {
	line := geom.NewLineStringFlat(geom.XY, []float64{-80.2, 25.7, -80.1, 25.8}).SetSRID(workprogram.SRIDWGS84)
	poly := geom.NewPolygonFlat(geom.XY, []float64{-80.3, 25.7, -80.2, 25.7, -80.2, 25.8, -80.3, 25.7}, []int{8}).SetSRID(workprogram.SRIDWGS84)

	c := workprogram.NewCollection([]workprogram.Record{
		{Geom: line, Attrs: map[string]any{"LOC_ERROR": "NO ERROR"}},
		{Geom: poly, Attrs: map[string]any{"LOC_ERROR": "NO ERROR"}},
	})

	path := filepath.Join(t.TempDir(), "mixed.gpkg")
	require.NoError(t, Write(path, "work_program", c))

	got, err := Read(path, "work_program")
	require.NoError(t, err)
	require.Equal(t, 2, got.Len())

	_, isLine := got.Records[0].Geom.(*geom.LineString)
	assert.True(t, isLine)
	_, isPoly := got.Records[1].Geom.(*geom.Polygon)
	assert.True(t, isPoly)
}
