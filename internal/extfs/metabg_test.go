package extfs

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

// TestWalkerMetaBgAddressing builds a 3-group image where group 0's
// descriptor lives in the classic group descriptor table but groups 1 and 2
// sit in a separate meta_bg descriptor block elsewhere on the device. The
// byte offset the classic (non-meta) table would use for group 1's slot is
// deliberately left zeroed, so a walker that fell back to sequential GDT
// addressing for meta_bg groups would read a bogus all-zero descriptor
// there and never reach the populated inode this test expects.
func TestWalkerMetaBgAddressing(t *testing.T) {
	const blockSize = 1024
	const numBlocks = 12
	img := newImageBuilder(blockSize, numBlocks)

	sb := superblock{
		InodesCount:     24,
		BlocksCountLo:   6, // bounds the meta_bg loop to groups 0, 1, 2 only
		FirstDataBlock:  1,
		LogBlockSize:    0,
		BlocksPerGroup:  4,
		InodesPerGroup:  8,
		Magic:           0xEF53,
		RevLevel:        1,
		InodeSize:       128,
		FeatureIncompat: incompatMetaBg,
		FirstMetaBg:     1,
	}
	writeStruct(img.block(1), &sb)

	// block 2: classic group descriptor table. Group 0's real descriptor at
	// offset 0; offset 32 (where a naive implementation would expect group
	// 1) is left all-zero.
	gd0 := groupDesc{InodeBitmapLo: 2, InodeTableLo: 3} // blocks 3, 4
	writeStruct(img.block(2)[0:32], &gd0)

	// block 6: the meta_bg descriptor block holding groups 1 and 2.
	gd1 := groupDesc{InodeBitmapLo: 6, InodeTableLo: 7} // blocks 7, 8
	writeStruct(img.block(6)[0:32], &gd1)
	gd2 := groupDesc{InodeBitmapLo: 8, InodeTableLo: 9} // blocks 9, 10
	writeStruct(img.block(6)[32:64], &gd2)

	// Group 0 and group 2: no inodes allocated.
	img.block(3)[0] = 0
	img.block(9)[0] = 0

	// Group 1: inode bit 0 allocated.
	img.block(7)[0] = 0b00000001

	ino := inode{inodeBase: inodeBase{
		Mode:       0x8180,
		LinksCount: 1,
		SizeLo:     blockSize,
	}}
	ino.Block[0] = 11
	writeStruct(img.block(8)[0:128], &ino)

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

	// inode 9 = group 1 (groupNum 1) * inodesPerGroup(8) + bit 0 + 1.
	want := []emittedBlock{{"9", blockSize, 0, 11, 1}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Parse() emitted blocks mismatch (-want +got):\n%s", diff)
	}
}
