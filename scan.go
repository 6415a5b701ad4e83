package region

import (
	"errors"
	"io"
	"sort"

	"github.com/meigma/region/internal/nbt"
)

// Scan audits every chunk record the location table references and
// classifies structural anomalies into the returned statistics. Depending
// on opts it also repairs the file in place: bookkeeping fixes rewrite
// single fields, delete mode zeroes unrecoverable entries, and freed
// sectors are compacted before the table is persisted back to sector 0.
//
// Per-chunk corruption never aborts the scan; only I/O failures on the
// open file do, in which case no table is written back.
func (r *Region) Scan(opts ScanOptions) (ScanStatistics, error) {
	capacity, err := r.sectorCapacity()
	if err != nil {
		return ScanStatistics{}, err
	}

	entries := r.locations.validEntries()
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Entry.Offset < entries[j].Entry.Offset
	})

	var stats ScanStatistics
	var relocs []relocation
	stats.TotalChunks = uint64(len(entries))

	// Gap detection runs against the on-disk layout, so the running
	// previous-record state advances by the original entry values even
	// when an entry is repaired or zeroed.
	expected := uint32(headerSectors)
	for _, ie := range entries {
		if err := r.scanEntry(ie, expected, capacity, opts, &stats, &relocs); err != nil {
			return ScanStatistics{}, err
		}
		expected = ie.Entry.Offset + uint32(ie.Entry.Sectors)
	}

	if opts.enabled() {
		if len(relocs) > 0 {
			shrunk, err := r.defragment(relocs)
			if err != nil {
				return ScanStatistics{}, err
			}
			stats.ShrunkSize += shrunk
		}
		if err := r.writeLocations(); err != nil {
			return ScanStatistics{}, err
		}
	}
	return stats, nil
}

// scanEntry audits one location-table entry. It mutates stats, the
// in-memory table, and the relocation plan; a non-nil error is a fatal
// I/O failure.
func (r *Region) scanEntry(ie indexedEntry, expected, capacity uint32, opts ScanOptions, stats *ScanStatistics, relocs *[]relocation) error {
	e := ie.Entry
	end := e.Offset + uint32(e.Sectors)

	if e.Offset > expected {
		gap := e.Offset - expected
		stats.UnusedSpace += uint64(gap) * SectorSize
		if opts.Fix {
			*relocs = append(*relocs, relocation{Position: e.Offset, Delta: -int64(gap)})
		}
	}

	if e.Offset < headerSectors || end > capacity {
		stats.InvalidChunkPointers++
		r.log().Debug("chunk pointer out of bounds",
			"index", ie.Index, "offset", e.Offset, "sectors", e.Sectors)
		if opts.FixDelete {
			r.locations.Zero(ie.Index)
		}
		return nil
	}

	hdr, err := readChunkHeader(r.f, e.Offset)
	if err != nil {
		if !errors.Is(err, ErrInvalidLength) &&
			!errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
			return err
		}
		stats.FailedToRead++
		r.log().Debug("chunk record unreadable", "index", ie.Index, "err", err)
		if opts.FixDelete {
			r.locations.Zero(ie.Index)
			*relocs = append(*relocs, relocation{Position: end, Delta: -int64(e.Sectors)})
		}
		return nil
	}

	if !hdr.validCompression() {
		stats.InvalidCompressionMethods++
		if opts.Fix {
			// Heuristic recovery inherited from the format's tooling: an
			// unknown tag is rewritten to gzip. The payload is not assumed
			// to decode afterwards.
			if err := r.writeCompressionTag(e.Offset, CompressionGzip); err != nil {
				return err
			}
		}
	} else {
		payload := io.NewSectionReader(r.f, int64(e.Offset)*SectorSize+chunkHeaderSize, int64(hdr.Length)-1)
		root, err := decodePayload(payload, hdr.Compression)
		var id chunkIdentity
		if err == nil {
			id, err = validatePayload(root)
		}
		switch {
		case err != nil:
			classifyChunkError(err, stats)
			r.log().Debug("chunk payload invalid", "index", ie.Index, "err", err)
			if opts.FixDelete {
				r.locations.Zero(ie.Index)
				*relocs = append(*relocs, relocation{Position: end, Delta: -int64(e.Sectors)})
				return nil
			}
		case id.Known && GridIndex(id.X, id.Z) != ie.Index:
			stats.InvalidChunkPointers++
			r.log().Debug("chunk stored at wrong grid cell",
				"index", ie.Index, "x", id.X, "z", id.Z)
			if opts.FixDelete {
				// The sectors may hold a chunk another cell still points
				// at, so the slot is cleared without reclaiming them.
				r.locations.Zero(ie.Index)
				return nil
			}
		}
	}

	// Sector-count recomputation runs independently of payload health.
	needed := hdr.requiredSectors()
	if needed != uint32(e.Sectors) || hdr.Length >= maxReasonableLength {
		stats.InvalidLengths++
		if opts.Fix && hdr.Length < maxReasonableLength && needed <= 0xff {
			r.locations.SetEntry(ie.Index, Entry{Offset: e.Offset, Sectors: uint8(needed)})
		}
	}
	return nil
}

// classifyChunkError buckets a payload decode or validation failure.
func classifyChunkError(err error, stats *ScanStatistics) {
	switch {
	case errors.Is(err, ErrMissingField) || errors.Is(err, ErrFieldFormat):
		stats.MissingFields++
	case nbt.IsFormatError(err):
		stats.CorruptedTrees++
	default:
		// Read failures surfacing through the decoder mean the compressed
		// stream itself could not be read back.
		stats.CorruptedCompression++
	}
}

// writeCompressionTag rewrites just the framing tag byte of the record at
// the given sector, leaving the payload bytes untouched.
func (r *Region) writeCompressionTag(sector uint32, tag uint8) error {
	_, err := r.f.WriteAt([]byte{tag}, int64(sector)*SectorSize+4)
	return err
}
