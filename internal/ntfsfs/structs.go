// Package ntfsfs implements the NTFS filesystem walker: boot sector
// parsing, MFT file-record decoding (including sector fixup), attribute
// resolution (resident, non-resident, and $ATTRIBUTE_LIST-indirected), and
// runlist decoding into physical cluster runs.
package ntfsfs

// On-disk structure layouts, bit-exact with the NTFS boot sector, MFT entry
// header, and attribute headers. Bitfields that straddle byte boundaries
// (base_fr:48 + base_fr_seq_number:16, and the attribute-list's fr:48 +
// fr_seq_number:16) are read as a single raw field and split by masking,
// since Go has no packed bitfields; encoding/binary only cares about field
// order and width, not alignment.

// bootSector is read from byte offset 0, length 80.
type bootSector struct {
	JumpInstruction   [3]byte
	OEMName           [8]byte
	BytesPerSector    uint16
	SectorsPerCluster uint8
	ReservedSectors   uint16
	Unused1           [5]byte
	MediaDesc         uint8
	Unused2           [18]byte
	TotalSectors      uint64
	MFTCluster        uint64
	MFTMirrorCluster  uint64
	FileRecordSize    int8
	Unused3           [3]byte
	IndexRecordSize   int8
	Unused4           [3]byte
	SerialNumber      uint64
}

const bootSectorSize = 80

// mftEntryHeader is the fixed portion at the start of every MFT file
// record (before the fixup array and the attribute list).
type mftEntryHeader struct {
	Signature       [4]byte
	FixupOffset     uint16
	FixupCount      uint16
	LSN             uint64
	SeqValue        uint16
	LinkCount       uint16
	FirstAttrOffset uint16
	Flags           uint16
	UsedEntrySize   uint32
	AllocEntrySize  uint32
	BaseFRRaw       uint64 // low 48 bits: base file-record number; high 16: its sequence number
	NextAttrID      uint16
}

const mftEntryHeaderSize = 42

func (h mftEntryHeader) baseFR() uint64 {
	return h.BaseFRRaw & 0xFFFFFFFFFFFF
}

// attributeHeader is common to every attribute, resident or not.
type attributeHeader struct {
	TypeID      uint32
	AttrLen     uint32
	Nonresident uint8
	NameLen     uint8
	NameOffset  uint16
	Flags       uint16
	AttrID      uint16
}

const attributeHeaderSize = 16

// residentAttr follows attributeHeader when Nonresident == 0.
type residentAttr struct {
	attributeHeader
	ContentSize   uint32
	ContentOffset uint16
}

const residentAttrSize = attributeHeaderSize + 6

// nonresidentAttr follows attributeHeader when Nonresident != 0.
type nonresidentAttr struct {
	attributeHeader
	StartVCN             uint64
	EndVCN               uint64
	RunlistOffset        uint16
	CompressUnitSize     uint16
	Unused               uint32
	AllocatedContentSize uint64
	ActualContentSize    uint64
	InitedContentSize    uint64
}

const nonresidentAttrSize = attributeHeaderSize + 48

// attrListEntry is one entry of an $ATTRIBUTE_LIST (type 32) attribute.
type attrListEntry struct {
	TypeID     uint32
	EntryLen   uint16
	NameLen    uint8
	NameOffset uint8
	StartVCN   uint64
	FRRaw      uint64 // low 48 bits: MFT record number holding the attribute; high 16: its sequence number
	AttrID     uint8
}

const attrListEntrySize = 25

func (e attrListEntry) fr() uint64 {
	return e.FRRaw & 0xFFFFFFFFFFFF
}

// stdInfo is the content of a $STANDARD_INFORMATION (type 16) attribute.
type stdInfo struct {
	Ctime    int64
	Mtime    int64
	MFTMtime int64
	Atime    int64
	Flags    uint32
}

const stdInfoSize = 36

const (
	attrTypeStandardInformation = 16
	attrTypeAttributeList       = 32
	attrTypeData                = 128
	attrTypeBitmap              = 176
	attrTypeTerminator          = 0xFFFFFFFF

	attrFlagCompressed = 0x0001
	attrFlagEncrypted  = 0x4000
	attrFlagSparse     = 0x8000

	stdInfoFlagCompressed = 0x800
	stdInfoFlagEncrypted  = 0x4000
)
