package region

import "fmt"

// ScanStatistics accumulates per-chunk scan results. Counters add
// field-wise, so totals from independent scans merge in any order; the
// zero value is the identity.
type ScanStatistics struct {
	// TotalChunks is the number of table entries scanned.
	TotalChunks uint64

	// FailedToRead counts records whose framing could not be read.
	FailedToRead uint64

	// InvalidChunkPointers counts table entries pointing outside the file
	// or at a chunk that belongs to a different grid cell.
	InvalidChunkPointers uint64

	// InvalidLengths counts records whose declared length disagrees with
	// the table's sector count or is unreasonably large.
	InvalidLengths uint64

	// InvalidCompressionMethods counts records with an unknown
	// compression tag.
	InvalidCompressionMethods uint64

	// MissingFields counts payloads lacking required fields or holding
	// them in the wrong shape.
	MissingFields uint64

	// CorruptedTrees counts payloads that failed tree decoding.
	CorruptedTrees uint64

	// CorruptedCompression counts payloads whose compressed data could
	// not be read back.
	CorruptedCompression uint64

	// UnusedSpace is the number of gap bytes found between records.
	UnusedSpace uint64

	// ShrunkSize is the number of bytes reclaimed by defragmentation.
	ShrunkSize uint64
}

// Add returns the field-wise sum of s and o.
func (s ScanStatistics) Add(o ScanStatistics) ScanStatistics {
	s.TotalChunks += o.TotalChunks
	s.FailedToRead += o.FailedToRead
	s.InvalidChunkPointers += o.InvalidChunkPointers
	s.InvalidLengths += o.InvalidLengths
	s.InvalidCompressionMethods += o.InvalidCompressionMethods
	s.MissingFields += o.MissingFields
	s.CorruptedTrees += o.CorruptedTrees
	s.CorruptedCompression += o.CorruptedCompression
	s.UnusedSpace += o.UnusedSpace
	s.ShrunkSize += o.ShrunkSize
	return s
}

// String formats the statistics as a human-readable report.
func (s ScanStatistics) String() string {
	return fmt.Sprintf(`
	Total chunks: %d
	Failed to read: %d
	Invalid chunk pointers: %d
	Chunks with invalid length: %d
	Chunks with invalid compression method: %d
	Chunks with missing required fields: %d
	Chunks with corrupted payload data: %d
	Chunks with corrupted compressed data: %d
	Unused space: %d KiB
	Reclaimed space: %d KiB`,
		s.TotalChunks,
		s.FailedToRead,
		s.InvalidChunkPointers,
		s.InvalidLengths,
		s.InvalidCompressionMethods,
		s.MissingFields,
		s.CorruptedTrees,
		s.CorruptedCompression,
		s.UnusedSpace/1024,
		s.ShrunkSize/1024,
	)
}
