package extfs

import (
	"bytes"
	"encoding/binary"

	"golang.org/x/xerrors"

	"github.com/verinov/fs-stat/internal/sink"
)

// uninitExtentMask is the largest initialized ee_len (32768). An ee_len above
// it marks an extent as uninitialized (preallocated but not yet written) of
// ee_len-32768 blocks. Its logical range is a hole: any open run is flushed,
// and the extent itself contributes no physical backing.
const uninitExtentMask = 0x8000

// walkExtentNodes decodes count consecutive 12-byte entries from buf at the
// given depth (0 = leaf entries, >0 = index entries pointing at child
// nodes) and feeds every physical run discovered into rs.
func (w *Walker) walkExtentNodes(blocks sink.BlockSink, buf []byte, count, depth int, rs *runState, fileSize uint64, fileID string) error {
	for i := 0; i < count; i++ {
		entryBuf := buf[i*entrySize : (i+1)*entrySize]

		if depth == 0 {
			var e extent
			if err := binary.Read(bytes.NewReader(entryBuf), binary.LittleEndian, &e); err != nil {
				return xerrors.Errorf("decoding extent leaf entry %d: %w", i, err)
			}
			if e.Len > uninitExtentMask {
				length := uint32(e.Len - uninitExtentMask)
				rs.flush(blocks, fileID, fileSize)
				rs.startPhysOffset = 0
				rs.nextPhysOffset = 0
				rs.currOffset += length
				continue
			}

			length := uint32(e.Len)
			physStart := uint32(uint64(e.StartLo) + uint64(e.StartHi)<<32)

			if physStart == rs.nextPhysOffset {
				rs.nextPhysOffset += length
				rs.currOffset += length
				continue
			}

			rs.flush(blocks, fileID, fileSize)
			rs.startOffset = rs.currOffset
			rs.startPhysOffset = physStart
			rs.nextPhysOffset = physStart + length
			rs.currOffset += length
			continue
		}

		var idx extentIndex
		if err := binary.Read(bytes.NewReader(entryBuf), binary.LittleEndian, &idx); err != nil {
			return xerrors.Errorf("decoding extent index entry %d: %w", i, err)
		}
		childBlock := uint64(idx.LeafLo) + uint64(idx.LeafHi)<<32

		childBuf := make([]byte, w.blockSize)
		if err := w.dev.Read(childBuf, int(w.blockSize), childBlock*uint64(w.blockSize)); err != nil {
			return xerrors.Errorf("reading extent node at block %d: %w", childBlock, err)
		}

		var childHdr extentHeader
		if err := binary.Read(bytes.NewReader(childBuf[:entrySize]), binary.LittleEndian, &childHdr); err != nil {
			return xerrors.Errorf("decoding extent node header at block %d: %w", childBlock, err)
		}
		if childHdr.Magic != extentHeaderMagic {
			return xerrors.Errorf("extent node at block %d has bad magic %#x", childBlock, childHdr.Magic)
		}

		if err := w.walkExtentNodes(blocks, childBuf[entrySize:], int(childHdr.Entries), int(childHdr.Depth), rs, fileSize, fileID); err != nil {
			return err
		}
	}
	return nil
}
