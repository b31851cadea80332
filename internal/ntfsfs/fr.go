package ntfsfs

import (
	"bytes"
	"encoding/binary"

	"golang.org/x/xerrors"

	"github.com/verinov/fs-stat/internal/fserrors"
)

func parseMftEntryHeader(buf []byte) mftEntryHeader {
	var h mftEntryHeader
	binary.Read(bytes.NewReader(buf[:mftEntryHeaderSize]), binary.LittleEndian, &h) //nolint:errcheck
	return h
}

func parseAttrListEntry(buf []byte) attrListEntry {
	var e attrListEntry
	binary.Read(bytes.NewReader(buf[:attrListEntrySize]), binary.LittleEndian, &e) //nolint:errcheck
	return e
}

// nameMatches replicates the original's attribute-name comparison: no name
// requested matches only an unnamed attribute; a requested name must equal
// the attribute's raw UTF-16LE name bytes.
func nameMatches(attrName []byte, nameLen int, want []byte) bool {
	if want == nil {
		return nameLen == 0
	}
	return nameLen > 0 && bytes.Equal(attrName[:nameLen*2], want)
}

// loadFR returns the fixed-up file record for frNum, reading it through
// $MFT's own $DATA attribute when frNum != 0. Must not be called with a
// non-zero frNum from within readFR's own non-zero path (it always
// recurses through frNum 0).
func (w *Walker) loadFR(frNum uint64) ([]byte, error) {
	if frNum == 0 {
		return w.mftFR, nil
	}
	fr := make([]byte, w.frSize)
	if _, err := w.readFR(0, attrTypeData, nil, frNum*uint64(w.frSize), int(w.frSize), fr); err != nil {
		return nil, xerrors.Errorf("reading MFT record %d from $MFT $DATA: %w", frNum, err)
	}
	if err := applyFixup(fr, w.sectorSize); err != nil {
		return nil, xerrors.Errorf("fixing up MFT record %d: %w", frNum, err)
	}
	return fr, nil
}

// readFR finds the attribute (type, name) on file record frNum, following
// into $ATTRIBUTE_LIST when the record's own attribute run doesn't contain
// it, and copies count bytes of its content starting at offset into out.
func (w *Walker) readFR(frNum uint64, typeID uint32, name []byte, offset uint64, count int, out []byte) (int, error) {
	fr, err := w.loadFR(frNum)
	if err != nil {
		return 0, err
	}

	hdr := parseMftEntryHeader(fr)
	pos := int(hdr.FirstAttrOffset)

	for pos+attributeHeaderSize <= len(fr) {
		attrHdr := parseAttributeHeader(fr[pos:])
		if attrHdr.TypeID > attrTypeAttributeList && attrHdr.TypeID > typeID {
			break
		}

		if attrHdr.Flags&(attrFlagCompressed|attrFlagEncrypted) != 0 {
			return 0, xerrors.Errorf("compressed or encrypted attribute: %w", fserrors.ErrUnsupported)
		}

		var attrName []byte
		if attrHdr.NameLen > 0 {
			attrName = fr[pos+int(attrHdr.NameOffset):]
		}

		if attrHdr.TypeID == typeID && nameMatches(attrName, int(attrHdr.NameLen), name) {
			return w.readAttr(fr[pos:], offset, count, out)
		}

		if attrHdr.TypeID == attrTypeAttributeList {
			return w.readAL(fr, pos, frNum, typeID, name, offset, count, out)
		}

		if attrHdr.AttrLen == 0 {
			break
		}
		pos += int(attrHdr.AttrLen)
	}

	return 0, nil
}

// readAL resolves (type, name) through an $ATTRIBUTE_LIST attribute located
// at fr[listAttrPos:], following cross-referenced MFT records as needed.
func (w *Walker) readAL(fr []byte, listAttrPos int, frNum uint64, typeID uint32, name []byte, offset uint64, count int, out []byte) (int, error) {
	listEntryBuf := make([]byte, 280)
	listEntryOffset := uint64(0)
	bytesRead := 0

	for count > 0 {
		n, err := w.readAttr(fr[listAttrPos:], listEntryOffset, 280, listEntryBuf)
		if err != nil {
			return bytesRead, err
		}
		if n == 0 {
			break
		}

		le := parseAttrListEntry(listEntryBuf)
		listEntryOffset += uint64(le.EntryLen)

		if le.TypeID == 0 {
			break
		}
		if le.TypeID != typeID {
			continue
		}
		if !nameMatches(listEntryBuf[le.NameOffset:], int(le.NameLen), name) {
			continue
		}

		vcnStart := le.StartVCN
		if offset < vcnStart*uint64(w.clusterSize) {
			return bytesRead, xerrors.Errorf("attribute-list entry missing or out of vcn order: %w", fserrors.ErrCorrupt)
		}

		nonbaseFRNum := le.fr()
		attrID := le.AttrID

		var nonbaseFR []byte
		if frNum == nonbaseFRNum {
			nonbaseFR = fr
		} else {
			nonbaseFR, err = w.loadFR(nonbaseFRNum)
			if err != nil {
				return bytesRead, err
			}
		}

		nbHdr := parseMftEntryHeader(nonbaseFR)
		tmpPos := int(nbHdr.FirstAttrOffset)
		for count > 0 && tmpPos+attributeHeaderSize <= len(nonbaseFR) {
			tmpHdr := parseAttributeHeader(nonbaseFR[tmpPos:])
			if tmpHdr.TypeID == attrTypeTerminator {
				break
			}
			if tmpHdr.AttrID == uint16(attrID) {
				n2, err := w.readAttr(nonbaseFR[tmpPos:], offset-vcnStart*uint64(w.clusterSize), count, out[bytesRead:])
				if err != nil {
					return bytesRead, err
				}
				offset += uint64(n2)
				count -= n2
				bytesRead += n2
			}
			if tmpHdr.AttrLen == 0 {
				break
			}
			tmpPos += int(tmpHdr.AttrLen)
		}
	}

	return bytesRead, nil
}

// readFRForAttrSize returns the logical size of attribute (type, name) on
// base MFT record baseFRNum.
func (w *Walker) readFRForAttrSize(baseFRNum uint64, typeID uint32, name []byte) (uint64, error) {
	fr, err := w.loadFR(baseFRNum)
	if err != nil {
		return 0, err
	}

	hdr := parseMftEntryHeader(fr)
	pos := int(hdr.FirstAttrOffset)

	for pos+attributeHeaderSize <= len(fr) {
		attrHdr := parseAttributeHeader(fr[pos:])
		if attrHdr.TypeID > attrTypeAttributeList && attrHdr.TypeID > typeID {
			break
		}

		var attrName []byte
		if attrHdr.NameLen > 0 {
			attrName = fr[pos+int(attrHdr.NameOffset):]
		}

		if attrHdr.TypeID == typeID && nameMatches(attrName, int(attrHdr.NameLen), name) {
			if attrHdr.Nonresident != 0 {
				return parseNonresidentAttr(fr[pos:]).ActualContentSize, nil
			}
			return uint64(parseResidentAttr(fr[pos:]).ContentSize), nil
		}

		if attrHdr.TypeID == attrTypeAttributeList {
			return w.readALForAttrSize(fr, pos, baseFRNum, typeID, name)
		}

		if attrHdr.AttrLen == 0 {
			break
		}
		pos += int(attrHdr.AttrLen)
	}

	return 0, nil
}

func (w *Walker) readALForAttrSize(fr []byte, listAttrPos int, baseFRNum uint64, typeID uint32, name []byte) (uint64, error) {
	listEntryBuf := make([]byte, 280)
	listEntryOffset := uint64(0)

	for {
		n, err := w.readAttr(fr[listAttrPos:], listEntryOffset, 280, listEntryBuf)
		if err != nil {
			return 0, err
		}
		if n == 0 {
			break
		}

		le := parseAttrListEntry(listEntryBuf)

		if le.TypeID != typeID || le.StartVCN != 0 || !nameMatches(listEntryBuf[le.NameOffset:], int(le.NameLen), name) {
			listEntryOffset += uint64(le.EntryLen)
			continue
		}

		nonbaseFRNum := le.fr()
		var nonbaseFR []byte
		if baseFRNum == nonbaseFRNum {
			nonbaseFR = fr
		} else {
			nonbaseFR, err = w.loadFR(nonbaseFRNum)
			if err != nil {
				return 0, err
			}
		}

		nbHdr := parseMftEntryHeader(nonbaseFR)
		tmpPos := int(nbHdr.FirstAttrOffset)
		for tmpPos+attributeHeaderSize <= len(nonbaseFR) {
			tmpHdr := parseAttributeHeader(nonbaseFR[tmpPos:])
			if tmpHdr.TypeID == attrTypeTerminator {
				break
			}
			if tmpHdr.AttrID == uint16(le.AttrID) {
				if tmpHdr.Nonresident != 0 {
					return parseNonresidentAttr(nonbaseFR[tmpPos:]).ActualContentSize, nil
				}
				return uint64(parseResidentAttr(nonbaseFR[tmpPos:]).ContentSize), nil
			}
			if tmpHdr.AttrLen == 0 {
				break
			}
			tmpPos += int(tmpHdr.AttrLen)
		}

		listEntryOffset += uint64(le.EntryLen)
	}

	return 0, xerrors.Errorf("attribute %d missing from attribute list: %w", typeID, fserrors.ErrCorrupt)
}
