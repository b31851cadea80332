package extfs

import (
	"bytes"
	"encoding/binary"

	"golang.org/x/xerrors"

	"github.com/verinov/fs-stat/internal/sink"
)

// analyzeGroup scans one block group's inode bitmap and dispatches every
// allocated inode found.
func (w *Walker) analyzeGroup(blocks sink.BlockSink, metadata sink.MetadataSink, desc groupDesc, groupNum uint32) error {
	if desc.Flags&bgInodeUninit != 0 {
		return nil
	}

	inodeBitmapOff := uint64(desc.InodeBitmapLo)
	inodeTableOff := uint64(desc.InodeTableLo)
	if w.featureIncompat&incompat64Bit != 0 && w.descSize > 32 {
		inodeBitmapOff += uint64(desc.InodeBitmapHi) << 32
		inodeTableOff += uint64(desc.InodeTableHi) << 32
	}

	byteCount := w.inodesPerGroup / 8
	if byteCount > w.blockSize {
		byteCount = w.blockSize
	}

	bitmapChunk := make([]byte, byteCount)
	inodeBuf := make([]byte, w.inodeSize)

	for k := uint32(0); 8*k < w.inodesPerGroup; k += byteCount {
		off := (uint64(w.firstBlock)+inodeBitmapOff)*uint64(w.blockSize) + uint64(k)
		if err := w.dev.Read(bitmapChunk, int(byteCount), off); err != nil {
			return xerrors.Errorf("reading inode bitmap chunk at group-relative byte %d: %w", k, err)
		}
		for i := uint32(0); i < byteCount; i++ {
			b := bitmapChunk[i]
			if b == 0 {
				continue
			}
			for j := uint32(0); j < 8; j++ {
				if b&(1<<j) == 0 {
					continue
				}
				bitIndex := 8*(k+i) + j
				inodeOff := (uint64(w.firstBlock)+inodeTableOff)*uint64(w.blockSize) + uint64(w.inodeSize)*uint64(bitIndex)
				if err := w.dev.Read(inodeBuf, int(w.inodeSize), inodeOff); err != nil {
					return xerrors.Errorf("reading inode at bit %d: %w", bitIndex, err)
				}
				var ino inode
				if err := binary.Read(bytes.NewReader(inodeBuf[:inodeBaseSize]), binary.LittleEndian, &ino.inodeBase); err != nil {
					return xerrors.Errorf("decoding inode at bit %d: %w", bitIndex, err)
				}
				if w.inodeSize-inodeBaseSize >= inodeExtraSize {
					extraBuf := inodeBuf[inodeBaseSize : inodeBaseSize+inodeExtraSize]
					if err := binary.Read(bytes.NewReader(extraBuf), binary.LittleEndian, &ino.inodeExtra); err != nil {
						return xerrors.Errorf("decoding extra-isize region of inode at bit %d: %w", bitIndex, err)
					}
				}
				inodeNum := groupNum*w.inodesPerGroup + bitIndex + 1
				if err := w.analyzeInode(blocks, metadata, &ino, inodeNum); err != nil {
					return xerrors.Errorf("analyzing inode %d: %w", inodeNum, err)
				}
			}
		}
	}

	return nil
}
