package ntfsfs

import (
	"bytes"
	"encoding/binary"

	"golang.org/x/xerrors"

	"github.com/verinov/fs-stat/internal/fserrors"
)

// applyFixup validates and undoes the per-sector "update sequence" NTFS
// stamps into the last two bytes of every sector of a protected record
// (MFT file records and index records), restoring the original bytes in
// place. It returns an error if a sector's stamped tag doesn't match the
// record's update-sequence number, or if the record carries the "BAAD"
// signature NTFS writes over a record it failed to fully flush.
func applyFixup(buf []byte, sectorSize uint32) error {
	fixupOffset := binary.LittleEndian.Uint16(buf[4:6])
	fixupCount := binary.LittleEndian.Uint16(buf[6:8])
	if fixupCount == 0 {
		return xerrors.Errorf("fixup count is zero: %w", fserrors.ErrCorrupt)
	}
	fixupCount--

	usn := buf[fixupOffset : fixupOffset+2]
	for i := uint16(0); i < fixupCount; i++ {
		tailOff := (uint32(i)+1)*sectorSize - 2
		if tailOff+2 > uint32(len(buf)) {
			return xerrors.Errorf("fixup sector %d beyond record: %w", i, fserrors.ErrBounds)
		}
		if buf[tailOff] != usn[0] || buf[tailOff+1] != usn[1] {
			return xerrors.Errorf("fixup mismatch at sector %d: %w", i, fserrors.ErrCorrupt)
		}
		replacement := buf[fixupOffset+2+i*2 : fixupOffset+4+i*2]
		buf[tailOff] = replacement[0]
		buf[tailOff+1] = replacement[1]
	}

	if bytes.Equal(buf[:4], []byte("BAAD")) {
		return xerrors.Errorf("record marked BAAD: %w", fserrors.ErrUnsupported)
	}
	return nil
}
