// Package fserrors declares the sentinel error kinds shared by every walker,
// per the error taxonomy: unsupported filesystem/feature, on-disk
// corruption, size bounds violated, and I/O failure. Call sites wrap one of
// these with xerrors.Errorf("...: %w", kind) so callers can still recover the
// kind with errors.Is.
package fserrors

import "errors"

var (
	// ErrUnsupported marks an unknown filesystem, an unsupported ext
	// incompat feature, an encrypted/compressed NTFS attribute, or a BAAD
	// MFT record.
	ErrUnsupported = errors.New("unsupported")

	// ErrCorrupt marks a fixup mismatch, an out-of-order attribute-list
	// start_vcn, a runlist offset preceding the current vcn, or a bitmap
	// bit with no backing inode table entry.
	ErrCorrupt = errors.New("corruption")

	// ErrBounds marks a resident read past content_size, or a walker
	// advancing past the file's declared size.
	ErrBounds = errors.New("bounds")
)
