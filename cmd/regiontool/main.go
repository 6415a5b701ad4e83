// Command regiontool audits and repairs the container files of a world
// directory.
//
// Usage:
//
//	regiontool [-v] <world-dir> count
//	regiontool [-v] <world-dir> scan [-fix] [-delete]
//
// count prints the total number of chunks across all container files.
// scan prints an aggregated anomaly report; -fix applies bookkeeping
// corrections and -delete additionally removes unrecoverable records.
// Per-file failures are logged and excluded from the aggregate; only a
// directory enumeration failure exits non-zero.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/meigma/region"
	"github.com/meigma/region/world"
)

func main() {
	verbose := flag.Bool("v", false, "verbose output")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() < 2 {
		usage()
		os.Exit(2)
	}
	worldDir := flag.Arg(0)
	command := flag.Arg(1)

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	switch command {
	case "count":
		runCount(worldDir, logger)
	case "scan":
		runScan(worldDir, logger, *verbose, flag.Args()[2:])
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n", command)
		usage()
		os.Exit(2)
	}
}

func runCount(worldDir string, logger *slog.Logger) {
	folder := world.New(worldDir, world.WithLogger(logger))
	count, err := folder.CountChunks()
	if err != nil {
		logger.Error("count failed", "err", err)
		os.Exit(1)
	}
	fmt.Printf("Chunk count: %d\n", count)
}

func runScan(worldDir string, logger *slog.Logger, verbose bool, args []string) {
	fs := flag.NewFlagSet("scan", flag.ExitOnError)
	fix := fs.Bool("fix", false, "apply bookkeeping corrections")
	fixDelete := fs.Bool("delete", false, "additionally remove unrecoverable records")
	_ = fs.Parse(args)

	opts := region.ScanOptions{Fix: *fix, FixDelete: *fixDelete}
	if opts.Fix || opts.FixDelete {
		logger.Info("repair mode enabled", "fix", opts.Fix, "delete", opts.FixDelete)
	}

	folderOpts := []world.Option{world.WithLogger(logger)}
	if !verbose {
		// The progress line and debug logging share stderr; verbose runs
		// keep only the log.
		folderOpts = append(folderOpts, world.WithProgress(renderProgress))
	}

	logger.Info("scanning container files")
	stats, err := world.New(worldDir, folderOpts...).Scan(opts)
	if err != nil {
		logger.Error("scan failed", "err", err)
		os.Exit(1)
	}
	fmt.Printf("Scan results:%s\n", stats)
}

func renderProgress(ev world.ProgressEvent) {
	fmt.Fprintf(os.Stderr, "\r%d/%d files", ev.FilesDone, ev.FilesTotal)
	if ev.FilesDone == ev.FilesTotal {
		fmt.Fprintln(os.Stderr)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, "usage: %s [-v] <world-dir> count|scan [-fix] [-delete]\n", os.Args[0])
	flag.PrintDefaults()
}
