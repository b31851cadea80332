package extfs

// Feature bits from the ext4 on-disk format (see ext4_fs.h in the Linux
// kernel). Only the bits this scanner inspects are named.
const (
	compatDirPrealloc = 0x1

	incompatFiletype    = 0x2
	incompatRecover     = 0x4
	incompatMetaBg      = 0x10
	incompatExtents     = 0x40
	incompat64Bit       = 0x80
	incompatFlexBg      = 0x200
	incompatInlineData  = 0x8000

	// supportedIncompat is the set of incompat feature bits this scanner
	// knows how to interpret. An image with any other incompat bit set is
	// rejected per §3's invariant.
	supportedIncompat = incompatFiletype | incompatMetaBg | incompatRecover |
		incompatExtents | incompat64Bit | incompatFlexBg | incompatInlineData

	bgInodeUninit = 0x1
	bgBlockUninit = 0x2
	bgInodeZeroed = 0x4

	inodeFlagIndexed     = 0x1000
	inodeFlagImagic      = 0x2000
	inodeFlagHugeFile     = 0x40000
	inodeFlagExtents      = 0x80000
	inodeFlagEAInode      = 0x200000
	inodeFlagInlineData   = 0x10000000
)
