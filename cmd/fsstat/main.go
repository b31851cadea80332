// Command fsstat scans a raw ext2/3/4 or NTFS block-device image and emits
// two CSV files: one row per contiguous physical extent backing an
// allocated file, and one row per file's parsed metadata.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"golang.org/x/xerrors"

	"github.com/verinov/fs-stat/internal/blockdev"
	"github.com/verinov/fs-stat/internal/extfs"
	"github.com/verinov/fs-stat/internal/fsprobe"
	"github.com/verinov/fs-stat/internal/oninterrupt"
	"github.com/verinov/fs-stat/internal/progress"
	"github.com/verinov/fs-stat/internal/sink"
)

var (
	outPath         = flag.String("out", "./out.txt", "path to write the extents CSV to")
	metaOutPath     = flag.String("meta-out", "./meta_out.txt", "path to write the metadata CSV to")
	stats           = flag.Bool("stats", false, "print a fragmentation summary to stderr after the scan")
	emitExtMetadata = flag.Bool("emit-ext-metadata", false, "emit metadata rows for ext inodes (NTFS metadata is always emitted)")
)

func funcmain() error {
	flag.Parse()
	extfs.EmitMetadata = *emitExtMetadata

	if flag.NArg() != 1 {
		return xerrors.Errorf("syntax: fsstat [-flags] <image-path>")
	}
	imagePath := flag.Arg(0)

	dev, err := blockdev.Open(imagePath)
	if err != nil {
		return xerrors.Errorf("opening image: %w", err)
	}
	defer dev.Close()

	walker, err := fsprobe.Probe(dev)
	if err != nil {
		return xerrors.Errorf("probing filesystem: %w", err)
	}
	log.Printf("probe: recognized filesystem, scanning %s", imagePath)

	csv, err := sink.NewCSVWriter(*outPath, *metaOutPath)
	if err != nil {
		return xerrors.Errorf("opening output files: %w", err)
	}

	aborted := true
	oninterrupt.Register(func() {
		log.Printf("interrupted: discarding in-progress output")
		csv.Abort()
	})
	defer func() {
		if aborted {
			csv.Abort()
		}
	}()

	reporter := progress.NewReporter(os.Stderr)
	reporter.CollectStats = *stats
	blocks, metadata := reporter.Wrap(csv.BlockSink(), csv.MetadataSink())

	if err := walker.Parse(blocks, metadata); err != nil {
		return xerrors.Errorf("scanning %s: %w", imagePath, err)
	}
	reporter.Finish()

	if err := csv.Close(); err != nil {
		return xerrors.Errorf("finalizing output files: %w", err)
	}
	aborted = false

	if *stats {
		if mean, stddev, max, ok := reporter.Summarize(); ok {
			log.Printf("fragmentation: mean run length %.1f, stddev %.1f, max %.0f", mean, stddev, max)
		} else {
			log.Printf("fragmentation: no extents scanned")
		}
	}

	return nil
}

func main() {
	if err := funcmain(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
