package region

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
	"github.com/stretchr/testify/require"

	"github.com/meigma/region/internal/nbt"
)

// payloadBuilder writes raw NBT documents for fixtures.
type payloadBuilder struct {
	bytes.Buffer
}

func (b *payloadBuilder) tag(t nbt.Tag)   { b.WriteByte(byte(t)) }
func (b *payloadBuilder) u16(v uint16)    { _ = binary.Write(b, binary.BigEndian, v) }
func (b *payloadBuilder) u32(v uint32)    { _ = binary.Write(b, binary.BigEndian, v) }
func (b *payloadBuilder) i32(v int32)     { _ = binary.Write(b, binary.BigEndian, v) }
func (b *payloadBuilder) i64(v int64)     { _ = binary.Write(b, binary.BigEndian, v) }
func (b *payloadBuilder) name(s string)   { b.u16(uint16(len(s))); b.WriteString(s) }
func (b *payloadBuilder) end()            { b.tag(nbt.TagEnd) }
func (b *payloadBuilder) emptyList()      { b.tag(nbt.TagEnd); b.u32(0) }

// chunkPayload builds a minimal valid chunk payload declaring coordinates
// (x, z). Fields listed in omit are left out; "xPos:string" swaps the
// coordinate for a non-integer value instead.
func chunkPayload(x, z int32, omit ...string) []byte {
	skip := map[string]bool{}
	stringCoords := false
	for _, o := range omit {
		if o == "xPos:string" {
			stringCoords = true
			continue
		}
		skip[o] = true
	}

	var b payloadBuilder
	b.tag(nbt.TagCompound)
	b.u16(0)
	b.tag(nbt.TagCompound)
	b.name("Level")

	writeField := func(name string, write func()) {
		if skip[name] {
			return
		}
		write()
	}

	writeField("xPos", func() {
		if stringCoords {
			b.tag(nbt.TagString)
			b.name("xPos")
			b.name("east")
			return
		}
		b.tag(nbt.TagInt)
		b.name("xPos")
		b.i32(x)
	})
	writeField("zPos", func() {
		b.tag(nbt.TagInt)
		b.name("zPos")
		b.i32(z)
	})
	for _, listField := range []string{"Sections", "Entities", "TileEntities", "LiquidTicks", "PostProcessing"} {
		writeField(listField, func() {
			b.tag(nbt.TagList)
			b.name(listField)
			b.emptyList()
		})
	}
	for _, longField := range []string{"LastUpdate", "InhabitedTime"} {
		writeField(longField, func() {
			b.tag(nbt.TagLong)
			b.name(longField)
			b.i64(0)
		})
	}
	for _, compoundField := range []string{"Heightmaps", "Structures"} {
		writeField(compoundField, func() {
			b.tag(nbt.TagCompound)
			b.name(compoundField)
			b.end()
		})
	}
	writeField("Status", func() {
		b.tag(nbt.TagString)
		b.name("Status")
		b.name("full")
	})

	b.end() // Level
	b.end() // root
	return b.Bytes()
}

func gzipped(t *testing.T, b []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	_, err := w.Write(b)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func zlibbed(t *testing.T, b []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	_, err := w.Write(b)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

// recordSpec places one chunk record in a fixture file.
type recordSpec struct {
	index   int    // location-table slot
	sector  uint32 // first sector of the record
	count   uint8  // sector count declared in the table
	length  uint32 // framing length; 0 = len(payload)+1
	tag     uint8
	payload []byte
}

// writeRegionFile builds a container file from record specs and returns
// its path.
func writeRegionFile(t *testing.T, specs []recordSpec, timestamps map[int]uint32) string {
	t.Helper()

	fileSectors := uint32(headerSectors)
	for _, s := range specs {
		end := s.sector + uint32(s.count)
		if needed := s.sector + (uint32(len(s.payload))+chunkHeaderSize+SectorSize-1)/SectorSize; needed > end {
			end = needed
		}
		if end > fileSectors {
			fileSectors = end
		}
	}

	data := make([]byte, int(fileSectors)*SectorSize)
	for _, s := range specs {
		o := s.index * 4
		data[o] = byte(s.sector >> 16)
		data[o+1] = byte(s.sector >> 8)
		data[o+2] = byte(s.sector)
		data[o+3] = s.count

		length := s.length
		if length == 0 {
			length = uint32(len(s.payload)) + 1
		}
		rec := int(s.sector) * SectorSize
		binary.BigEndian.PutUint32(data[rec:], length)
		data[rec+4] = s.tag
		copy(data[rec+chunkHeaderSize:], s.payload)
	}
	for i, ts := range timestamps {
		binary.BigEndian.PutUint32(data[SectorSize+i*4:], ts)
	}

	path := filepath.Join(t.TempDir(), "r.0.0.mca")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

// openFixture opens a fixture file and closes it when the test ends.
func openFixture(t *testing.T, specs []recordSpec) *Region {
	t.Helper()
	r, err := Open(writeRegionFile(t, specs, nil))
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })
	return r
}
