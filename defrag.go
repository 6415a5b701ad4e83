package region

import (
	"errors"
	"fmt"
	"io"
	"sort"
)

// relocation asks for every byte from Position onward to shift by Delta
// sectors. Negative deltas compact left.
type relocation struct {
	Position uint32
	Delta    int64
}

// defragment executes a relocation plan: it copies the affected sector
// ranges to their new positions, rebases the location table, and truncates
// the file to its new logical size. It returns the number of bytes the
// file shrank.
//
// Requests are ordered by their resulting position so that no copy
// overwrites source bytes a later request still needs. An inverted range
// means the plan is inconsistent; the whole operation aborts rather than
// guess, leaving any sectors already moved as they are.
func (r *Region) defragment(relocs []relocation) (uint64, error) {
	sort.Slice(relocs, func(i, j int) bool {
		return int64(relocs[i].Position)+relocs[i].Delta < int64(relocs[j].Position)+relocs[j].Delta
	})

	info, err := r.f.Stat()
	if err != nil {
		return 0, err
	}
	oldSize := info.Size()

	// The final request's range extends to the end of the occupied file,
	// so trailing bytes past the last surviving entry still move; the
	// truncate below drops whatever nothing references anymore.
	endSector := (oldSize + SectorSize - 1) / SectorSize

	var buf [SectorSize]byte
	cum := int64(0)
	for i, rl := range relocs {
		cum += rl.Delta
		start := int64(rl.Position)
		stop := endSector
		if i+1 < len(relocs) {
			stop = int64(relocs[i+1].Position)
		}
		if stop < start {
			return 0, fmt.Errorf("%w: range [%d, %d)", ErrRelocationPlan, start, stop)
		}
		for s := start; s < stop; s++ {
			n, err := r.f.ReadAt(buf[:], s*SectorSize)
			if err != nil && !errors.Is(err, io.EOF) {
				return 0, err
			}
			if n == 0 {
				continue
			}
			if _, err := r.f.WriteAt(buf[:n], (s+cum)*SectorSize); err != nil {
				return 0, err
			}
		}
	}

	rebaseTable(r.locations, relocs)

	newSize := int64(r.locations.maxOccupiedSector()) * SectorSize
	if err := r.f.Truncate(newSize); err != nil {
		return 0, err
	}
	r.log().Debug("defragmented", "relocations", len(relocs), "size", newSize)

	if newSize < oldSize {
		return uint64(oldSize - newSize), nil
	}
	return 0, nil
}

// rebaseTable shifts every table offset by the cumulative delta of the
// plan segment its original offset falls in. Offsets before the first
// request are untouched.
func rebaseTable(t *LocationTable, relocs []relocation) {
	for i := 0; i < TableEntries; i++ {
		e := t.Entry(i)
		if e.IsEmpty() {
			continue
		}
		cum := int64(0)
		applied := int64(0)
		for _, rl := range relocs {
			cum += rl.Delta
			if int64(e.Offset) >= int64(rl.Position) {
				applied = cum
			}
		}
		if applied != 0 {
			t.SetEntry(i, Entry{Offset: uint32(int64(e.Offset) + applied), Sectors: e.Sectors})
		}
	}
}
