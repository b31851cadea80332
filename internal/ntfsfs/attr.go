package ntfsfs

import (
	"bytes"
	"encoding/binary"

	"golang.org/x/xerrors"

	"github.com/verinov/fs-stat/internal/fserrors"
)

func parseAttributeHeader(buf []byte) attributeHeader {
	var h attributeHeader
	binary.Read(bytes.NewReader(buf[:attributeHeaderSize]), binary.LittleEndian, &h) //nolint:errcheck // fixed-width decode of an in-memory slice never fails
	return h
}

func parseResidentAttr(buf []byte) residentAttr {
	var r residentAttr
	binary.Read(bytes.NewReader(buf[:residentAttrSize]), binary.LittleEndian, &r) //nolint:errcheck
	return r
}

func parseNonresidentAttr(buf []byte) nonresidentAttr {
	var n nonresidentAttr
	binary.Read(bytes.NewReader(buf[:nonresidentAttrSize]), binary.LittleEndian, &n) //nolint:errcheck
	return n
}

func parseStdInfo(buf []byte) stdInfo {
	var s stdInfo
	binary.Read(bytes.NewReader(buf[:stdInfoSize]), binary.LittleEndian, &s) //nolint:errcheck
	return s
}

// readAttr copies count bytes starting at offset from an attribute's
// content (resident: straight from the record; non-resident: through its
// runlist) into out, returning the number of bytes actually copied.
func (w *Walker) readAttr(attrBuf []byte, offset uint64, count int, out []byte) (int, error) {
	header := parseAttributeHeader(attrBuf)

	if header.Nonresident != 0 {
		nra := parseNonresidentAttr(attrBuf)
		if nra.ActualContentSize < offset {
			return 0, nil
		}
		return w.readRunlistContent(offset, count, out, attrBuf[nra.RunlistOffset:])
	}

	ra := parseResidentAttr(attrBuf)
	if offset+uint64(count) > uint64(ra.ContentSize) {
		return 0, xerrors.Errorf("resident attribute read past content size: %w", fserrors.ErrBounds)
	}
	n := copy(out[:count], attrBuf[uint64(ra.ContentOffset)+offset:])
	return n, nil
}

// readRunlistContent walks a non-resident attribute's mapping-pairs array,
// copying count bytes of logical content starting at offset into out.
func (w *Walker) readRunlistContent(offset uint64, count int, out []byte, runFormat []byte) (int, error) {
	bytesRead := 0
	vcn := uint64(0)
	lcn := int64(0)
	pos := 0

	entry, consumed, ok := parseRunlistEntry(runFormat[pos:])
	for ok && count > 0 {
		lcn += entry.deltaLCN

		if offset < vcn*uint64(w.clusterSize) {
			return bytesRead, xerrors.Errorf("runlist data missing before vcn %d: %w", vcn, fserrors.ErrCorrupt)
		}

		length := 0
		if (vcn+entry.runLength)*uint64(w.clusterSize) > offset {
			avail := (entry.runLength+vcn)*uint64(w.clusterSize) - offset
			length = count
			if avail < uint64(length) {
				length = int(avail)
			}
			if entry.hasOffset {
				physOffset := (lcn-int64(vcn))*int64(w.clusterSize) + int64(offset)
				if err := w.dev.Read(out[bytesRead:bytesRead+length], length, uint64(physOffset)); err != nil {
					return bytesRead, xerrors.Errorf("reading run at vcn %d: %w", vcn, err)
				}
			} else {
				for i := 0; i < length; i++ {
					out[bytesRead+i] = 0
				}
			}
		}

		pos += consumed
		vcn += entry.runLength
		offset += uint64(length)
		count -= length
		bytesRead += length

		entry, consumed, ok = parseRunlistEntry(runFormat[pos:])
	}

	return bytesRead, nil
}
