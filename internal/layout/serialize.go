package layout

import (
	"encoding/binary"
	"fmt"

	"github.com/faromero/tasm/internal/tasmerr"
)

// wireVersion is the only serialization version this package understands.
// Deserialize rejects any other value with tasmerr.SerializationMismatch.
const wireVersion = 1

// Serialize encodes l as the length-delimited record from spec.md §6:
//
//	version:         varint = 1
//	numberOfColumns: varint
//	numberOfRows:    varint
//	widthsOfColumns: packed repeated varint, length = numberOfColumns
//	heightsOfRows:   packed repeated varint, length = numberOfRows
func Serialize(l TileLayout) []byte {
	buf := make([]byte, 0, 8+4*(l.columns+l.rows))
	buf = binary.AppendUvarint(buf, wireVersion)
	buf = binary.AppendUvarint(buf, uint64(l.columns))
	buf = binary.AppendUvarint(buf, uint64(l.rows))
	for _, w := range l.widths {
		buf = binary.AppendUvarint(buf, uint64(w))
	}
	for _, h := range l.heights {
		buf = binary.AppendUvarint(buf, uint64(h))
	}
	return buf
}

// Deserialize decodes a TileLayout previously produced by Serialize. It
// fails with tasmerr.SerializationMismatch if the record's version field is
// not 1, and with tasmerr.CorruptCatalog if the record is truncated or its
// declared column/row counts don't match the available varints.
func Deserialize(buf []byte) (TileLayout, error) {
	version, n := binary.Uvarint(buf)
	if n <= 0 {
		return TileLayout{}, fmt.Errorf("layout: reading version: %w", tasmerr.CorruptCatalog)
	}
	if version != wireVersion {
		return TileLayout{}, fmt.Errorf("layout: version %d: %w", version, tasmerr.SerializationMismatch)
	}
	buf = buf[n:]

	columns, n := binary.Uvarint(buf)
	if n <= 0 {
		return TileLayout{}, fmt.Errorf("layout: reading columns: %w", tasmerr.CorruptCatalog)
	}
	buf = buf[n:]

	rows, n := binary.Uvarint(buf)
	if n <= 0 {
		return TileLayout{}, fmt.Errorf("layout: reading rows: %w", tasmerr.CorruptCatalog)
	}
	buf = buf[n:]

	widths := make([]uint32, columns)
	for i := range widths {
		v, n := binary.Uvarint(buf)
		if n <= 0 {
			return TileLayout{}, fmt.Errorf("layout: reading width %d: %w", i, tasmerr.CorruptCatalog)
		}
		widths[i] = uint32(v)
		buf = buf[n:]
	}

	heights := make([]uint32, rows)
	for i := range heights {
		v, n := binary.Uvarint(buf)
		if n <= 0 {
			return TileLayout{}, fmt.Errorf("layout: reading height %d: %w", i, tasmerr.CorruptCatalog)
		}
		heights[i] = uint32(v)
		buf = buf[n:]
	}

	return TileLayout{columns: int(columns), rows: int(rows), widths: widths, heights: heights}, nil
}
