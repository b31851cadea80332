package ntfsfs

import (
	"bytes"
	"errors"
	"testing"

	"github.com/verinov/fs-stat/internal/fserrors"
)

func buildFixupRecord() []byte {
	const sectorSize = 16
	buf := make([]byte, 2*sectorSize)
	binaryPutUint16(buf[4:6], 8)  // fixup array offset
	binaryPutUint16(buf[6:8], 3)  // fixup count: 1 USN word + 2 sector tags
	binaryPutUint16(buf[8:10], 0xCDAB) // stamped USN
	binaryPutUint16(buf[10:12], 0x0201) // real bytes for sector 0's tail
	binaryPutUint16(buf[12:14], 0x0403) // real bytes for sector 1's tail
	copy(buf[14:16], buf[8:10])         // stamp sector 0's tail with USN
	copy(buf[30:32], buf[8:10])         // stamp sector 1's tail with USN
	return buf
}

func binaryPutUint16(dst []byte, v uint16) {
	dst[0] = byte(v)
	dst[1] = byte(v >> 8)
}

func TestApplyFixupRestoresSectorTails(t *testing.T) {
	buf := buildFixupRecord()
	if err := applyFixup(buf, 16); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(buf[14:16], []byte{0x01, 0x02}) {
		t.Errorf("sector 0 tail = %v, want restored bytes", buf[14:16])
	}
	if !bytes.Equal(buf[30:32], []byte{0x03, 0x04}) {
		t.Errorf("sector 1 tail = %v, want restored bytes", buf[30:32])
	}
}

func TestApplyFixupDetectsMismatch(t *testing.T) {
	buf := buildFixupRecord()
	buf[14] ^= 0xFF // corrupt the stamped tag so it no longer matches the USN
	err := applyFixup(buf, 16)
	if !errors.Is(err, fserrors.ErrCorrupt) {
		t.Fatalf("err = %v, want ErrCorrupt", err)
	}
}

func TestApplyFixupDetectsBAAD(t *testing.T) {
	buf := buildFixupRecord()
	binaryPutUint16(buf[6:8], 1) // no sectors to check, isolate the BAAD check
	copy(buf[:4], []byte("BAAD"))
	err := applyFixup(buf, 16)
	if !errors.Is(err, fserrors.ErrUnsupported) {
		t.Fatalf("err = %v, want ErrUnsupported", err)
	}
}
