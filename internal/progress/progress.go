// Package progress wraps a walker's sinks with operator-facing progress
// reporting: a refreshing terminal status line and, optionally, a
// fragmentation summary computed once the scan completes.
package progress

import (
	"fmt"
	"os"

	"github.com/mattn/go-isatty"
	"gonum.org/v1/gonum/stat"

	"github.com/verinov/fs-stat/internal/sink"
)

// every controls how often the status line is refreshed, in emitted extents.
const every = 4096

// Reporter decorates a BlockSink/MetadataSink pair with counters, a
// terminal status line, and (if CollectStats is set) per-run length tracking
// for a post-scan fragmentation summary.
type Reporter struct {
	// CollectStats enables run-length tracking for Summarize.
	CollectStats bool

	files   uint64
	extents uint64
	isTerm  bool
	lengths []float64
}

// NewReporter creates a Reporter. Status lines are only printed when w is a
// terminal.
func NewReporter(w *os.File) *Reporter {
	return &Reporter{isTerm: isatty.IsTerminal(w.Fd()) || isatty.IsCygwinTerminal(w.Fd())}
}

// Wrap returns sinks that forward to inner while updating progress.
func (r *Reporter) Wrap(blocks sink.BlockSink, metadata sink.MetadataSink) (sink.BlockSink, sink.MetadataSink) {
	wrappedBlocks := func(fileID string, fileSize uint64, startOffset, startPhysOffset uint32, length int32) {
		r.extents++
		if r.CollectStats {
			r.lengths = append(r.lengths, float64(length))
		}
		if r.isTerm && r.extents%every == 0 {
			fmt.Fprintf(os.Stderr, "\rscanned %d extents, %d files", r.extents, r.files)
		}
		blocks(fileID, fileSize, startOffset, startPhysOffset, length)
	}
	wrappedMetadata := func(fileID uint32, fileSize uint64, compressed, encrypted bool, ctime, mtime, atime int64) {
		r.files++
		metadata(fileID, fileSize, compressed, encrypted, ctime, mtime, atime)
	}
	return wrappedBlocks, wrappedMetadata
}

// Finish prints the final counts and ends the status line, when stderr
// status output is enabled.
func (r *Reporter) Finish() {
	if r.isTerm {
		fmt.Fprintf(os.Stderr, "\rscanned %d extents, %d files\n", r.extents, r.files)
	}
}

// Summarize computes mean, standard deviation, and max run length (in blocks
// or clusters) across every extent seen so far. Only meaningful when
// CollectStats was set before the scan; returns false if no extents were
// recorded.
func (r *Reporter) Summarize() (mean, stddev, max float64, ok bool) {
	if len(r.lengths) == 0 {
		return 0, 0, 0, false
	}
	mean, stddev = stat.MeanStdDev(r.lengths, nil)
	max = r.lengths[0]
	for _, l := range r.lengths[1:] {
		if l > max {
			max = l
		}
	}
	return mean, stddev, max, true
}
