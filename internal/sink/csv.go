package sink

import (
	"bufio"
	"fmt"

	"github.com/google/renameio"
	"golang.org/x/xerrors"
)

// CSVWriter streams BlockSink/MetadataSink calls to two CSV-style output
// files, finalizing both with an atomic rename only once the scan completes
// without error. Abort removes the in-progress temp files; if neither Close
// nor Abort is called, they are left behind at their temp paths. The
// caller's requested output paths are never left half-written.
type CSVWriter struct {
	extents  *renameio.PendingFile
	metadata *renameio.PendingFile
	ew       *bufio.Writer
	mw       *bufio.Writer
}

// NewCSVWriter opens temp files alongside extentsPath and metadataPath.
func NewCSVWriter(extentsPath, metadataPath string) (*CSVWriter, error) {
	ef, err := renameio.TempFile("", extentsPath)
	if err != nil {
		return nil, xerrors.Errorf("creating temp file for %q: %w", extentsPath, err)
	}
	mf, err := renameio.TempFile("", metadataPath)
	if err != nil {
		ef.Cleanup()
		return nil, xerrors.Errorf("creating temp file for %q: %w", metadataPath, err)
	}
	return &CSVWriter{
		extents:  ef,
		metadata: mf,
		ew:       bufio.NewWriter(ef),
		mw:       bufio.NewWriter(mf),
	}, nil
}

// BlockSink returns the callback to pass to a walker's Parse.
func (w *CSVWriter) BlockSink() BlockSink {
	return func(fileID string, fileSize uint64, startOffset, startPhysOffset uint32, length int32) {
		fmt.Fprintf(w.ew, "%s,%d,%d,%d,%d\n", fileID, fileSize, startOffset, startPhysOffset, length)
	}
}

// MetadataSink returns the callback to pass to a walker's Parse.
func (w *CSVWriter) MetadataSink() MetadataSink {
	return func(fileID uint32, fileSize uint64, compressed, encrypted bool, ctime, mtime, atime int64) {
		fmt.Fprintf(w.mw, "%d,%d,%d,%d,%d,%d,%d\n", fileID, fileSize, btoi(compressed), btoi(encrypted), ctime, mtime, atime)
	}
}

// btoi renders a bool the way the reference emitter's default iostream
// formatting does: 0 or 1, never "true"/"false".
func btoi(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Close flushes both outputs and atomically renames them into place. Once
// Close returns an error, the caller should call Abort instead of retrying.
func (w *CSVWriter) Close() error {
	if err := w.ew.Flush(); err != nil {
		return xerrors.Errorf("flushing extents output: %w", err)
	}
	if err := w.mw.Flush(); err != nil {
		return xerrors.Errorf("flushing metadata output: %w", err)
	}
	if err := w.extents.CloseAtomicallyReplace(); err != nil {
		return xerrors.Errorf("finalizing extents output: %w", err)
	}
	if err := w.metadata.CloseAtomicallyReplace(); err != nil {
		return xerrors.Errorf("finalizing metadata output: %w", err)
	}
	return nil
}

// Abort discards both temp files without touching the requested output paths.
func (w *CSVWriter) Abort() {
	w.extents.Cleanup()
	w.metadata.Cleanup()
}
