// Package fsprobe reads the signature bytes that distinguish the two
// filesystems this scanner understands and selects the matching walker.
package fsprobe

import (
	"encoding/binary"

	"golang.org/x/xerrors"

	"github.com/verinov/fs-stat/internal/blockdev"
	"github.com/verinov/fs-stat/internal/extfs"
	"github.com/verinov/fs-stat/internal/fserrors"
	"github.com/verinov/fs-stat/internal/ntfsfs"
	"github.com/verinov/fs-stat/internal/sink"
)

const (
	extSignatureOffset  = 1024 + 0x38
	extSignature        = 0xEF53
	ntfsSignatureOffset = 3
	ntfsSignature       = 0x5346544E // "NTFS"
)

// Walker is the tagged-variant result of a successful probe: exactly one
// concrete filesystem walker, selected by Probe. There is no base type with
// a back-reference to the concrete walker it holds. The selection itself
// *is* the variant.
type Walker interface {
	// Parse walks every allocated file and invokes blocks once per
	// contiguous extent and metadata once per file.
	Parse(blocks sink.BlockSink, metadata sink.MetadataSink) error
}

// Probe reads the ext and NTFS signatures, in that fixed order, and returns
// the walker for whichever matches first. Probing never mutates the device;
// an image crafted to match both signatures is accepted as ext, since ext's
// signature is checked first. This is a known, deliberate ambiguity (see
// DESIGN.md).
func Probe(dev *blockdev.Device) (Walker, error) {
	var extBuf [2]byte
	if err := dev.Read(extBuf[:], 2, extSignatureOffset); err != nil {
		return nil, xerrors.Errorf("probing ext signature: %w", err)
	}
	if binary.LittleEndian.Uint16(extBuf[:]) == extSignature {
		w, err := extfs.New(dev)
		if err != nil {
			return nil, xerrors.Errorf("initializing ext walker: %w", err)
		}
		return w, nil
	}

	var ntfsBuf [4]byte
	if err := dev.Read(ntfsBuf[:], 4, ntfsSignatureOffset); err != nil {
		return nil, xerrors.Errorf("probing NTFS signature: %w", err)
	}
	if binary.LittleEndian.Uint32(ntfsBuf[:]) == ntfsSignature {
		w, err := ntfsfs.New(dev)
		if err != nil {
			return nil, xerrors.Errorf("initializing NTFS walker: %w", err)
		}
		return w, nil
	}

	return nil, xerrors.Errorf("probing filesystem: %w", fserrors.ErrUnsupported)
}
