// Package world fans region container scans out across the files of a
// world directory and merges their results.
package world

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/meigma/region"
)

// regionDirName is the subdirectory of a world folder holding the
// container files.
const regionDirName = "region"

// ProgressEvent reports one completed container file.
type ProgressEvent struct {
	// Path is the container file that finished.
	Path string

	// FilesDone is the number of files completed so far.
	FilesDone int

	// FilesTotal is the total number of container files.
	FilesTotal int
}

// ProgressFunc receives progress updates during a scan. It is called from
// a single goroutine; implementations need not be concurrency-safe.
type ProgressFunc func(ProgressEvent)

// Folder is a world directory holding container files under its region
// subdirectory.
type Folder struct {
	path     string
	workers  int
	logger   *slog.Logger
	progress ProgressFunc
}

// Option configures a Folder.
type Option func(*Folder)

// WithWorkers sets the number of container files scanned concurrently.
// Values < 1 fall back to the default of GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(f *Folder) {
		if n > 0 {
			f.workers = n
		}
	}
}

// WithLogger sets the logger for per-file progress and failures.
// If not set, logging is disabled.
func WithLogger(logger *slog.Logger) Option {
	return func(f *Folder) {
		f.logger = logger
	}
}

// WithProgress sets a callback invoked after each container file finishes.
func WithProgress(fn ProgressFunc) Option {
	return func(f *Folder) {
		f.progress = fn
	}
}

// New creates a Folder for the given world directory.
func New(path string, opts ...Option) *Folder {
	f := &Folder{
		path:    path,
		workers: runtime.GOMAXPROCS(0),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// log returns the logger, falling back to a discard logger if nil.
func (f *Folder) log() *slog.Logger {
	if f.logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return f.logger
}

// CountChunks returns the total number of chunks referenced across every
// container file in the world.
func (f *Folder) CountChunks() (uint64, error) {
	paths, err := f.regionFiles()
	if err != nil {
		return 0, err
	}
	var count uint64
	for _, p := range paths {
		r, err := region.Open(p)
		if err != nil {
			f.log().Error("failed to open container file", "path", p, "err", err)
			continue
		}
		count += uint64(r.ChunkCount())
		r.Close()
	}
	return count, nil
}

// Scan audits every container file in the world, one worker per file, and
// merges the per-file statistics. A file that cannot be opened or whose
// scan fails is logged and excluded from the aggregate; with delete mode
// enabled, unopenable files are removed. Only a directory enumeration
// failure is fatal.
func (f *Folder) Scan(opts region.ScanOptions) (region.ScanStatistics, error) {
	paths, err := f.regionFiles()
	if err != nil {
		return region.ScanStatistics{}, err
	}

	// A single aggregator goroutine owns the running total and the
	// progress callback; workers only send their results.
	results := make(chan region.ScanStatistics)
	done := make(chan region.ScanStatistics)
	go func() {
		var total region.ScanStatistics
		for st := range results {
			total = total.Add(st)
		}
		done <- total
	}()

	var g errgroup.Group
	g.SetLimit(f.workers)
	progressed := make(chan string)
	progressDone := make(chan struct{})
	go func() {
		defer close(progressDone)
		n := 0
		for p := range progressed {
			n++
			if f.progress != nil {
				f.progress(ProgressEvent{Path: p, FilesDone: n, FilesTotal: len(paths)})
			}
		}
	}()

	for _, p := range paths {
		p := p
		g.Go(func() error {
			if st, ok := f.scanFile(p, opts); ok {
				results <- st
			}
			progressed <- p
			return nil
		})
	}
	_ = g.Wait()
	close(results)
	close(progressed)
	total := <-done
	<-progressDone
	return total, nil
}

// scanFile audits one container file and reports whether its statistics
// should contribute to the aggregate.
func (f *Folder) scanFile(path string, opts region.ScanOptions) (region.ScanStatistics, bool) {
	f.log().Debug("scanning container file", "path", path)
	r, err := region.Open(path, region.WithLogger(f.logger))
	if err != nil {
		f.log().Error("failed to open container file", "path", path, "err", err)
		if opts.FixDelete {
			if rmErr := os.Remove(path); rmErr != nil {
				f.log().Error("failed to delete container file", "path", path, "err", rmErr)
			}
		}
		return region.ScanStatistics{}, false
	}
	defer r.Close()

	st, err := r.Scan(opts)
	if err != nil {
		f.log().Error("scan failed", "path", path, "err", err)
		return region.ScanStatistics{}, false
	}
	f.log().Debug("scanned container file", "path", path, "chunks", st.TotalChunks)
	return st, true
}

// regionFiles lists the container files of the world.
func (f *Folder) regionFiles() ([]string, error) {
	dir := filepath.Join(f.path, regionDirName)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("world: list container files: %w", err)
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	return paths, nil
}
