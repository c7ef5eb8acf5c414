package workprogram

import (
	"github.com/twpayne/go-geom"
)

// Well-known attribute fields from the FDOT work program feature schema.
// Everything else rides in the open attribute map, so upstream schema
// drift does not break ingestion.
const (
	FieldLocError = "LOC_ERROR"
	FieldCounty   = "CONTYNAM"
)

// LocErrorNone is the only LOC_ERROR value accepted downstream.
const LocErrorNone = "NO ERROR"

// SRIDWGS84 is the EPSG code for the WGS 84 geographic CRS. All
// collections produced by this tool are tagged with it.
const SRIDWGS84 = 4326

// Record is one work program feature: a geometry plus the attribute map
// returned by the FeatureServer.
type Record struct {
	// Geom is nil when the source feature had a null geometry.
	Geom  geom.T
	Attrs map[string]any
}

// LocError returns the LOC_ERROR attribute value. ok is false when the
// field is absent or not a string.
func (r Record) LocError() (string, bool) {
	v, ok := r.Attrs[FieldLocError]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// County returns the CONTYNAM attribute value, or "" when absent.
func (r Record) County() string {
	s, _ := r.Attrs[FieldCounty].(string)
	return s
}

// NullGeometry reports whether the record has no geometry at all.
func (r Record) NullGeometry() bool {
	return r.Geom == nil
}

// EmptyGeometry reports whether the record has a geometry with no
// coordinates.
func (r Record) EmptyGeometry() bool {
	return r.Geom != nil && len(r.Geom.FlatCoords()) == 0
}

// Collection is an ordered sequence of records sharing one CRS.
type Collection struct {
	SRID    int
	Records []Record
}

// NewCollection wraps records in a WGS 84 collection.
func NewCollection(records []Record) Collection {
	return Collection{SRID: SRIDWGS84, Records: records}
}

// Len returns the number of records in the collection.
func (c Collection) Len() int {
	return len(c.Records)
}
