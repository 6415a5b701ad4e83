package region

import (
	"encoding/binary"
	"fmt"
)

const (
	// SectorSize is the addressing unit of a container file. Header tables
	// occupy one sector each; chunk records are padded to whole sectors.
	SectorSize = 4096

	// GridWidth is the chunk grid edge length of one container file.
	GridWidth = 32

	// TableEntries is the number of grid cells per container file.
	TableEntries = GridWidth * GridWidth

	// headerSectors is the number of sectors reserved for the two tables.
	headerSectors = 2
)

// Entry is one location-table slot: the sector range holding a grid cell's
// chunk record. The zero Entry means the chunk is absent.
type Entry struct {
	// Offset is the record's first sector, counted from the file start.
	Offset uint32

	// Sectors is the number of sectors the record occupies.
	Sectors uint8
}

// IsEmpty reports whether the slot holds no chunk.
func (e Entry) IsEmpty() bool {
	return e.Offset == 0 && e.Sectors == 0
}

// GridIndex returns the location-table slot for chunk coordinates (x, z).
// Negative coordinates wrap into [0, GridWidth).
func GridIndex(x, z int32) int {
	wx := ((x % GridWidth) + GridWidth) % GridWidth
	wz := ((z % GridWidth) + GridWidth) % GridWidth
	return int(wx + wz*GridWidth)
}

// LocationTable is the first header sector: TableEntries packed entries of
// a 3-byte big-endian sector offset and a 1-byte sector count.
type LocationTable struct {
	entries [TableEntries]Entry
}

// ParseLocationTable decodes a location table from exactly one sector of
// bytes.
func ParseLocationTable(b []byte) (*LocationTable, error) {
	if len(b) != SectorSize {
		return nil, fmt.Errorf("%w: got %d bytes", ErrTableSize, len(b))
	}
	t := &LocationTable{}
	for i := range t.entries {
		o := i * 4
		t.entries[i] = Entry{
			Offset:  uint32(b[o])<<16 | uint32(b[o+1])<<8 | uint32(b[o+2]),
			Sectors: b[o+3],
		}
	}
	return t, nil
}

// Serialize encodes the table back into one sector of bytes, in grid order.
// Serialize(ParseLocationTable(b)) reproduces b exactly.
func (t *LocationTable) Serialize() []byte {
	b := make([]byte, SectorSize)
	for i, e := range t.entries {
		o := i * 4
		b[o] = byte(e.Offset >> 16)
		b[o+1] = byte(e.Offset >> 8)
		b[o+2] = byte(e.Offset)
		b[o+3] = e.Sectors
	}
	return b
}

// Entry returns the slot at the given grid index.
func (t *LocationTable) Entry(i int) Entry {
	return t.entries[i]
}

// SetEntry replaces the slot at the given grid index.
func (t *LocationTable) SetEntry(i int, e Entry) {
	t.entries[i] = e
}

// Zero clears the slot at the given grid index, marking the chunk absent.
func (t *LocationTable) Zero(i int) {
	t.entries[i] = Entry{}
}

// Count returns the number of non-empty slots.
func (t *LocationTable) Count() int {
	n := 0
	for _, e := range t.entries {
		if !e.IsEmpty() {
			n++
		}
	}
	return n
}

// indexedEntry pairs a slot with its grid index.
type indexedEntry struct {
	Index int
	Entry Entry
}

// validEntries returns the slots whose offset points past the header
// sectors, in grid order. Callers needing spatial order re-sort by offset.
func (t *LocationTable) validEntries() []indexedEntry {
	var out []indexedEntry
	for i, e := range t.entries {
		if e.Offset >= headerSectors {
			out = append(out, indexedEntry{Index: i, Entry: e})
		}
	}
	return out
}

// maxOccupiedSector returns the end of the furthest record any non-empty
// slot references, or the header size when the table is empty.
func (t *LocationTable) maxOccupiedSector() uint32 {
	end := uint32(headerSectors)
	for _, e := range t.entries {
		if e.IsEmpty() {
			continue
		}
		if s := e.Offset + uint32(e.Sectors); s > end {
			end = s
		}
	}
	return end
}

// TimestampTable is the second header sector: TableEntries big-endian u32
// modification stamps. Scans carry it through unchanged.
type TimestampTable struct {
	entries [TableEntries]uint32
}

// ParseTimestampTable decodes a timestamp table from exactly one sector of
// bytes.
func ParseTimestampTable(b []byte) (*TimestampTable, error) {
	if len(b) != SectorSize {
		return nil, fmt.Errorf("%w: got %d bytes", ErrTableSize, len(b))
	}
	t := &TimestampTable{}
	for i := range t.entries {
		t.entries[i] = binary.BigEndian.Uint32(b[i*4:])
	}
	return t, nil
}

// Entry returns the stamp at the given grid index.
func (t *TimestampTable) Entry(i int) uint32 {
	return t.entries[i]
}
