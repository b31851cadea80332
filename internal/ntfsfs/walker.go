package ntfsfs

import (
	"bytes"
	"encoding/binary"

	"golang.org/x/xerrors"

	"github.com/verinov/fs-stat/internal/blockdev"
	"github.com/verinov/fs-stat/internal/fserrors"
	"github.com/verinov/fs-stat/internal/sink"
)

// Walker parses an NTFS volume.
type Walker struct {
	dev *blockdev.Device

	sectorSize  uint32
	clusterSize uint32
	mftCluster  uint64

	frSize      uint32
	irecordSize uint32

	mftFR []byte // cached, fixed-up file record for $MFT itself (MFT record 0)
}

// New reads the boot sector and the $MFT's own file record (MFT record 0).
func New(dev *blockdev.Device) (*Walker, error) {
	buf := make([]byte, bootSectorSize)
	if err := dev.Read(buf, len(buf), 0); err != nil {
		return nil, xerrors.Errorf("reading NTFS boot sector: %w", err)
	}

	var bs bootSector
	if err := binary.Read(bytes.NewReader(buf), binary.LittleEndian, &bs); err != nil {
		return nil, xerrors.Errorf("decoding NTFS boot sector: %w", err)
	}

	w := &Walker{
		dev:         dev,
		sectorSize:  uint32(bs.BytesPerSector),
		clusterSize: uint32(bs.BytesPerSector) * uint32(bs.SectorsPerCluster),
		mftCluster:  bs.MFTCluster,
	}
	if w.sectorSize == 0 || bs.SectorsPerCluster == 0 {
		return nil, xerrors.Errorf("zero sector or cluster size: %w", fserrors.ErrCorrupt)
	}

	w.frSize = recordSize(bs.FileRecordSize, w.clusterSize)
	w.irecordSize = recordSize(bs.IndexRecordSize, w.clusterSize)

	w.mftFR = make([]byte, w.frSize)
	if err := dev.Read(w.mftFR, int(w.frSize), w.mftCluster*uint64(w.clusterSize)); err != nil {
		return nil, xerrors.Errorf("reading $MFT file record: %w", err)
	}
	if err := applyFixup(w.mftFR, w.sectorSize); err != nil {
		return nil, xerrors.Errorf("fixing up $MFT file record: %w", err)
	}

	return w, nil
}

// recordSize interprets the boot sector's signed per-cluster-or-log2 size
// field: negative means 2^(-n) bytes, positive means n clusters.
func recordSize(raw int8, clusterSize uint32) uint32 {
	if raw < 0 {
		return 1 << uint(-raw)
	}
	return uint32(raw) * clusterSize
}

// Parse enumerates every in-use MFT entry via $Bitmap and analyzes it.
func (w *Walker) Parse(blocks sink.BlockSink, metadata sink.MetadataSink) error {
	bitmapSize, err := w.readFRForAttrSize(0, attrTypeBitmap, nil)
	if err != nil {
		return xerrors.Errorf("reading $MFT $Bitmap size: %w", err)
	}

	const chunkSize = 512
	chunk := make([]byte, chunkSize)

	for offset := uint64(0); offset < bitmapSize; offset += chunkSize {
		want := chunkSize
		if remaining := bitmapSize - offset; remaining < chunkSize {
			want = int(remaining)
		}
		n, err := w.readFR(0, attrTypeBitmap, nil, offset, want, chunk[:want])
		if err != nil {
			return xerrors.Errorf("reading $MFT $Bitmap at %d: %w", offset, err)
		}
		for i := 0; i < n; i++ {
			b := chunk[i]
			if b == 0 {
				continue
			}
			for j := uint(0); j < 8; j++ {
				if b&(1<<j) == 0 {
					continue
				}
				frNum := 8*(offset+uint64(i)) + uint64(j)
				if err := w.analyzeFR(blocks, metadata, frNum); err != nil {
					return xerrors.Errorf("analyzing MFT record %d: %w", frNum, err)
				}
			}
		}
	}

	return nil
}
