package region

import (
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"

	"github.com/meigma/region/internal/nbt"
)

// Compression tags as stored in a chunk record's framing byte.
const (
	CompressionRaw  uint8 = 0
	CompressionGzip uint8 = 1
	CompressionZlib uint8 = 2
)

const (
	// chunkHeaderSize is the framing before the payload: u32 length plus
	// the compression tag byte.
	chunkHeaderSize = 5

	// maxRecordLength is the hard sanity cap on a record's declared length.
	maxRecordLength = 128 * SectorSize

	// maxReasonableLength is the tighter cap above which a record length is
	// treated as an invalid-length anomaly.
	maxReasonableLength = 1 << 20
)

// Required payload structure: the root compound must hold a Level compound
// carrying this fixed set of fields.
const (
	fieldLevel = "Level"
	fieldXPos  = "xPos"
	fieldZPos  = "zPos"
)

var requiredLevelFields = []string{
	fieldXPos,
	fieldZPos,
	"Sections",
	"LastUpdate",
	"InhabitedTime",
	"Heightmaps",
	"Entities",
	"TileEntities",
	"LiquidTicks",
	"PostProcessing",
	"Status",
	"Structures",
}

// chunkHeader is the fixed framing at the start of a chunk record.
type chunkHeader struct {
	// Length counts the compression tag byte plus the payload.
	Length uint32

	// Compression is the payload's compression tag.
	Compression uint8
}

// requiredSectors returns the whole sectors the record occupies on disk,
// framing included.
func (h chunkHeader) requiredSectors() uint32 {
	return (h.Length + 4 + SectorSize - 1) / SectorSize
}

// validCompression reports whether the compression tag is one the codec
// knows how to read.
func (h chunkHeader) validCompression() bool {
	return h.Compression <= CompressionZlib
}

// readChunkHeader reads a record's framing at the given sector. A length
// outside (0, maxRecordLength] fails the read outright.
func readChunkHeader(r io.ReaderAt, sector uint32) (chunkHeader, error) {
	var b [chunkHeaderSize]byte
	if _, err := r.ReadAt(b[:], int64(sector)*SectorSize); err != nil {
		return chunkHeader{}, err
	}
	h := chunkHeader{
		Length:      uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3]),
		Compression: b[4],
	}
	if h.Length == 0 || h.Length > maxRecordLength {
		return chunkHeader{}, fmt.Errorf("%w: %d", ErrInvalidLength, h.Length)
	}
	return h, nil
}

// decodePayload decompresses and decodes a record's payload. r must be
// positioned at the first payload byte and limited to length-1 bytes.
func decodePayload(r io.Reader, compression uint8) (nbt.Compound, error) {
	switch compression {
	case CompressionGzip:
		zr, err := gzip.NewReader(r)
		if err != nil {
			return nil, err
		}
		defer zr.Close()
		return nbt.Decode(zr)
	case CompressionZlib:
		zr, err := zlib.NewReader(r)
		if err != nil {
			return nil, err
		}
		defer zr.Close()
		return nbt.Decode(zr)
	default:
		return nbt.Decode(r)
	}
}

// chunkIdentity is the coordinate pair a decoded payload declares for
// itself, used to cross-check the table slot that pointed at it.
type chunkIdentity struct {
	X, Z  int32
	Known bool
}

// validatePayload checks a decoded payload for the required field set and
// extracts the declared coordinates. Missing coordinates from the
// extraction step alone do not fail validation; the required-field check
// above is what enforces their presence.
func validatePayload(root nbt.Compound) (chunkIdentity, error) {
	levelValue, ok := root[fieldLevel]
	if !ok {
		return chunkIdentity{}, fmt.Errorf("%w: %s", ErrMissingField, fieldLevel)
	}
	level, ok := levelValue.(nbt.Compound)
	if !ok {
		return chunkIdentity{}, fmt.Errorf("%w: %s", ErrFieldFormat, fieldLevel)
	}
	for _, name := range requiredLevelFields {
		if _, ok := level[name]; !ok {
			return chunkIdentity{}, fmt.Errorf("%w: %s", ErrMissingField, name)
		}
	}

	var id chunkIdentity
	x, okX := level.GetInt(fieldXPos)
	z, okZ := level.GetInt(fieldZPos)
	if okX && okZ {
		id = chunkIdentity{X: x, Z: z, Known: true}
	}
	return id, nil
}
