package region

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
)

// Sentinel errors.
var (
	// ErrTableSize is returned when a header table is not exactly one
	// sector of bytes.
	ErrTableSize = errors.New("region: header table must be one sector")

	// ErrTruncatedHeader is returned when a file is too small to hold the
	// two header tables.
	ErrTruncatedHeader = errors.New("region: truncated header tables")

	// ErrInvalidLength is returned when a chunk record declares a length
	// outside the sane range.
	ErrInvalidLength = errors.New("region: invalid chunk record length")

	// ErrMissingField is returned when a payload lacks a required field.
	ErrMissingField = errors.New("region: missing required field")

	// ErrFieldFormat is returned when a required field has the wrong shape.
	ErrFieldFormat = errors.New("region: unexpected field format")

	// ErrRelocationPlan is returned when a defragmentation plan is
	// internally inconsistent. The file is left untouched from the point
	// of detection onward.
	ErrRelocationPlan = errors.New("region: inconsistent relocation plan")
)

// ScanOptions selects which repairs a scan may apply. The zero value scans
// read-only. Options are read-only during a scan and safe to share across
// concurrent workers.
type ScanOptions struct {
	// Fix enables bookkeeping corrections that never discard data:
	// rewriting a bad compression tag, correcting a table sector count,
	// and compacting unused space.
	Fix bool

	// FixDelete additionally removes records that cannot be recovered,
	// zeroing their table slots and reclaiming their sectors.
	FixDelete bool
}

// enabled reports whether any repair mode is on.
func (o ScanOptions) enabled() bool {
	return o.Fix || o.FixDelete
}

// Region is an open container file. It holds exclusive read and write
// access to the file for its lifetime; the format assumes a single writer.
type Region struct {
	f          *os.File
	path       string
	locations  *LocationTable
	timestamps *TimestampTable
	logger     *slog.Logger
}

// Option configures a Region.
type Option func(*Region)

// WithLogger sets the logger for scan and repair operations.
// If not set, logging is disabled.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Region) {
		r.logger = logger
	}
}

// Open opens a container file and reads its header tables.
func Open(path string, opts ...Option) (*Region, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, err
	}

	header := make([]byte, headerSectors*SectorSize)
	if _, err := io.ReadFull(f, header); err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: %s", ErrTruncatedHeader, path)
	}
	locations, err := ParseLocationTable(header[:SectorSize])
	if err != nil {
		f.Close()
		return nil, err
	}
	timestamps, err := ParseTimestampTable(header[SectorSize:])
	if err != nil {
		f.Close()
		return nil, err
	}

	r := &Region{
		f:          f,
		path:       path,
		locations:  locations,
		timestamps: timestamps,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// log returns the logger, falling back to a discard logger if nil.
func (r *Region) log() *slog.Logger {
	if r.logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return r.logger
}

// Path returns the path the Region was opened from.
func (r *Region) Path() string {
	return r.path
}

// ChunkCount returns the number of chunks the location table references.
func (r *Region) ChunkCount() int {
	return r.locations.Count()
}

// Timestamp returns the header timestamp for chunk coordinates (x, z).
func (r *Region) Timestamp(x, z int32) uint32 {
	return r.timestamps.Entry(GridIndex(x, z))
}

// Close releases the underlying file.
func (r *Region) Close() error {
	return r.f.Close()
}

// writeLocations persists the in-memory location table to sector 0.
func (r *Region) writeLocations() error {
	if _, err := r.f.WriteAt(r.locations.Serialize(), 0); err != nil {
		return fmt.Errorf("region: persist location table: %w", err)
	}
	return nil
}

// sectorCapacity returns the file's current size in whole sectors,
// rounding a ragged tail up.
func (r *Region) sectorCapacity() (uint32, error) {
	info, err := r.f.Stat()
	if err != nil {
		return 0, err
	}
	return uint32((info.Size() + SectorSize - 1) / SectorSize), nil
}
