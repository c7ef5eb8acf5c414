package arcgis

import (
	"bytes"
	"encoding/json"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/miami-mobility/workprogram/internal/workprogram"
)

// featureCollection mirrors the f=geojson response shape of a
// FeatureServer query.
type featureCollection struct {
	Type     string    `json:"type"`
	Features []feature `json:"features"`
}

type feature struct {
	Geometry   json.RawMessage `json:"geometry"`
	Properties map[string]any  `json:"properties"`
}

var jsonNull = []byte("null")

// records converts the decoded page into work program records, preserving
// order. Null geometries become records with a nil Geom.
func (fc featureCollection) records() ([]workprogram.Record, error) {
	records := make([]workprogram.Record, 0, len(fc.Features))
	for _, f := range fc.Features {
		g, err := decodeGeometry(f.Geometry)
		if err != nil {
			return nil, err
		}
		attrs := f.Properties
		if attrs == nil {
			attrs = map[string]any{}
		}
		records = append(records, workprogram.Record{Geom: g, Attrs: attrs})
	}
	return records, nil
}

func decodeGeometry(raw json.RawMessage) (geom.T, error) {
	if len(raw) == 0 || bytes.Equal(bytes.TrimSpace(raw), jsonNull) {
		return nil, nil
	}
	var g geom.T
	if err := geojson.Unmarshal(raw, &g); err != nil {
		return nil, eris.Wrap(err, "arcgis: decode geometry")
	}
	return g, nil
}
