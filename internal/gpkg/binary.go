package gpkg

import (
	"encoding/binary"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/wkb"
)

// GeoPackage geometry blobs are a fixed header (magic "GP", version,
// flags, srs_id, optional envelope) followed by standard WKB.

const (
	magic1 = 0x47 // 'G'
	magic2 = 0x50 // 'P'

	// flagsLittleEndian: header byte order little-endian, no envelope.
	flagsLittleEndian = 0x01

	headerSize = 8
)

// envelopeSize returns the byte length of the envelope for the given
// indicator (flags bits 1-3).
func envelopeSize(indicator byte) (int, error) {
	switch indicator {
	case 0:
		return 0, nil
	case 1:
		return 32, nil
	case 2, 3:
		return 48, nil
	case 4:
		return 64, nil
	default:
		return 0, eris.Errorf("gpkg: invalid envelope indicator %d", indicator)
	}
}

// EncodeGeometry encodes g as a GeoPackage geometry blob with the given
// SRS id. The header is little-endian with no envelope; the WKB body is
// little-endian.
func EncodeGeometry(g geom.T, srid int) ([]byte, error) {
	body, err := wkb.Marshal(g, wkb.NDR)
	if err != nil {
		return nil, eris.Wrap(err, "gpkg: encode WKB")
	}

	buf := make([]byte, headerSize, headerSize+len(body))
	buf[0] = magic1
	buf[1] = magic2
	buf[2] = 0 // version
	buf[3] = flagsLittleEndian
	binary.LittleEndian.PutUint32(buf[4:8], uint32(int32(srid)))

	return append(buf, body...), nil
}

// DecodeGeometry decodes a GeoPackage geometry blob, returning the
// geometry and its SRS id.
func DecodeGeometry(data []byte) (geom.T, int, error) {
	if len(data) < headerSize {
		return nil, 0, eris.Errorf("gpkg: geometry blob too short (%d bytes)", len(data))
	}
	if data[0] != magic1 || data[1] != magic2 {
		return nil, 0, eris.New("gpkg: bad geometry blob magic")
	}

	flags := data[3]
	var order binary.ByteOrder = binary.BigEndian
	if flags&0x01 != 0 {
		order = binary.LittleEndian
	}

	envSize, err := envelopeSize((flags >> 1) & 0x07)
	if err != nil {
		return nil, 0, err
	}
	if len(data) < headerSize+envSize {
		return nil, 0, eris.New("gpkg: geometry blob truncated envelope")
	}

	srid := int(int32(order.Uint32(data[4:8])))

	g, err := wkb.Unmarshal(data[headerSize+envSize:])
	if err != nil {
		return nil, 0, eris.Wrap(err, "gpkg: decode WKB")
	}

	return g, srid, nil
}
