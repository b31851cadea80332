package extfs

import (
	"encoding/binary"

	"golang.org/x/xerrors"

	"github.com/verinov/fs-stat/internal/fserrors"
	"github.com/verinov/fs-stat/internal/sink"
)

// power returns base**exp for small non-negative exp (ext block-map depths
// never exceed 3).
func power(base uint32, exp int) uint32 {
	p := uint32(1)
	for i := 0; i < exp; i++ {
		p *= base
	}
	return p
}

// analyzeBlock walks the classic (non-extent) block-map subtree rooted at
// blockPhysOffset, at the given depth (0 = direct leaf, 1..3 = indirect
// levels), coalescing contiguous physical runs into rs.
func (w *Walker) analyzeBlock(blocks sink.BlockSink, rs *runState, blockPhysOffset uint32, fileSize uint64, depth int, fileID string) error {
	if uint64(rs.currOffset)*uint64(w.blockSize) >= fileSize {
		return xerrors.Errorf("block map walk advanced past file size: %w", fserrors.ErrBounds)
	}

	if blockPhysOffset == 0 {
		rs.flush(blocks, fileID, fileSize)
		rs.nextPhysOffset = 0
		rs.startPhysOffset = 0
		rs.currOffset += power(w.blockSize/4, depth)
		return nil
	}

	if depth == 0 {
		if blockPhysOffset == rs.nextPhysOffset {
			rs.nextPhysOffset++
		} else {
			rs.flush(blocks, fileID, fileSize)
			rs.startOffset = rs.currOffset
			rs.startPhysOffset = blockPhysOffset
			rs.nextPhysOffset = rs.startPhysOffset + 1
		}
		rs.currOffset++
		return nil
	}

	buf := make([]byte, w.blockSize)
	if err := w.dev.Read(buf, int(w.blockSize), uint64(blockPhysOffset)*uint64(w.blockSize)); err != nil {
		return xerrors.Errorf("reading indirect block %d: %w", blockPhysOffset, err)
	}
	for off := uint32(0); off+4 <= w.blockSize && uint64(rs.currOffset)*uint64(w.blockSize) < fileSize; off += 4 {
		child := binary.LittleEndian.Uint32(buf[off:])
		if err := w.analyzeBlock(blocks, rs, child, fileSize, depth-1, fileID); err != nil {
			return err
		}
	}
	return nil
}
