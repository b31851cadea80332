package extfs

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// buildExtentLeaf serializes an extent-tree leaf node (header + entries) the
// way it's stored inline in an inode's i_block array.
func buildExtentLeaf(entries ...extent) []byte {
	hdr := extentHeader{Magic: extentHeaderMagic, Entries: uint16(len(entries)), Max: 4, Depth: 0}
	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, &hdr)
	for _, e := range entries {
		binary.Write(&buf, binary.LittleEndian, &e)
	}
	return buf.Bytes()
}

// writeExtentInode serializes a 128-byte classic-size inode record using
// extents, with leaf already containing a valid header+entries byte stream.
func writeExtentInode(dst []byte, sizeLo uint32, leaf []byte) {
	ino := inode{inodeBase: inodeBase{
		Mode:       0x8180,
		LinksCount: 1,
		SizeLo:     sizeLo,
		Flags:      inodeFlagExtents,
	}}
	buf := make([]byte, 128)
	writeStruct(buf, &ino)
	copy(buf[40:40+len(leaf)], leaf) // i_block starts at offset 40 in ext4_inode
	copy(dst, buf)
}

// buildSingleInodeImage assembles the boot/superblock/GDT/bitmap scaffolding
// shared by every single-inode-per-test fixture in this file, leaving the
// inode table's first 128 bytes for the caller to fill in.
func buildSingleInodeImage(t *testing.T, numBlocks int) (img *imageBuilder, inodeSlot []byte) {
	t.Helper()
	const blockSize = 1024
	img = newImageBuilder(blockSize, numBlocks)

	sb := superblock{
		InodesCount:    8,
		BlocksCountLo:  uint32(numBlocks),
		FirstDataBlock: 1,
		LogBlockSize:   0,
		BlocksPerGroup: 8192,
		InodesPerGroup: 8,
		Magic:          0xEF53,
		RevLevel:       0,
	}
	writeStruct(img.block(1), &sb)

	gd := groupDesc{InodeBitmapLo: 2, InodeTableLo: 3} // blocks 3, 4 (offset by -firstBlock(1))
	writeStruct(img.block(2), &gd)

	img.block(3)[0] = 0b00000001 // inode 1 allocated

	return img, img.block(4)[0:128]
}

func TestWalkerExtentTreeCoalescesMultipleEntries(t *testing.T) {
	// E2: a file split into two logically- and physically-contiguous
	// extents must be coalesced into a single emission.
	const blockSize = 1024
	img, slot := buildSingleInodeImage(t, 30)

	leaf := buildExtentLeaf(
		extent{Block: 0, Len: 2, StartLo: 100},
		extent{Block: 2, Len: 2, StartLo: 102},
	)
	writeExtentInode(slot, 4*blockSize, leaf)

	dev := newDevice(t, img.bytes())
	w, err := New(dev)
	if err != nil {
		t.Fatal(err)
	}

	var got []emittedBlock
	blocks := func(fileID string, fileSize uint64, startOffset, startPhysOffset uint32, length int32) {
		got = append(got, emittedBlock{fileID, fileSize, startOffset, startPhysOffset, length})
	}
	if err := w.Parse(blocks, func(uint32, uint64, bool, bool, int64, int64, int64) {}); err != nil {
		t.Fatal(err)
	}

	want := []emittedBlock{{"1", 4 * blockSize, 0, 100, 4}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Parse() emitted blocks mismatch (-want +got):\n%s", diff)
	}
}

func TestWalkerExtentTreeUninitializedExtentIsHole(t *testing.T) {
	// E3: an uninitialized (hole) extent in the middle of a file flushes
	// the run before it and resumes a new run after it, contributing no
	// emission of its own.
	const blockSize = 1024
	img, slot := buildSingleInodeImage(t, 30)

	leaf := buildExtentLeaf(
		extent{Block: 0, Len: 1, StartLo: 300},         // initialized, 1 block
		extent{Block: 1, Len: 32768 + 1, StartLo: 200}, // uninitialized hole, 1 block
		extent{Block: 2, Len: 10, StartLo: 400},        // initialized, 10 blocks
	)
	writeExtentInode(slot, 12*blockSize, leaf)

	dev := newDevice(t, img.bytes())
	w, err := New(dev)
	if err != nil {
		t.Fatal(err)
	}

	var got []emittedBlock
	blocks := func(fileID string, fileSize uint64, startOffset, startPhysOffset uint32, length int32) {
		got = append(got, emittedBlock{fileID, fileSize, startOffset, startPhysOffset, length})
	}
	if err := w.Parse(blocks, func(uint32, uint64, bool, bool, int64, int64, int64) {}); err != nil {
		t.Fatal(err)
	}

	want := []emittedBlock{
		{"1", 12 * blockSize, 0, 300, 1},
		{"1", 12 * blockSize, 2, 400, 10},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Parse() emitted blocks mismatch (-want +got):\n%s", diff)
	}
}
