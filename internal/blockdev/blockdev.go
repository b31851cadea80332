// Package blockdev implements random-access byte reads over a fixed-block-size
// backing store, hiding block alignment from callers.
package blockdev

import (
	"golang.org/x/xerrors"

	"golang.org/x/sys/unix"
)

// blockSize is the device block size assumed for all images: a regular file
// backing a raw volume image is read in fixed 512-byte units, matching the
// sector size used by every on-disk format this scanner understands.
const blockSize = 512

// Device is a read-only, byte-addressable view over a raw image file.
//
// Device holds no mutable state besides its file descriptor: all reads go
// through Pread at an explicit offset, and Read allocates its edge scratch
// block per call.
type Device struct {
	fd int
}

// Open opens path as the backing store for a Device.
func Open(path string) (*Device, error) {
	fd, err := unix.Open(path, unix.O_RDONLY, 0)
	if err != nil {
		return nil, xerrors.Errorf("opening image %q: %w", path, err)
	}
	return &Device{fd: fd}, nil
}

// Close releases the underlying file descriptor.
func (d *Device) Close() error {
	return unix.Close(d.fd)
}

// BlockSize returns the device's block size in bytes.
func (d *Device) BlockSize() int {
	return blockSize
}

// ReadBlocks reads count consecutive blocks starting at blockIndex into dst.
// dst must be at least count*BlockSize() bytes.
func (d *Device) ReadBlocks(dst []byte, count int, blockIndex uint64) error {
	if count == 0 {
		return nil
	}
	need := count * blockSize
	if len(dst) < need {
		return xerrors.Errorf("ReadBlocks: dst too small: have %d, need %d", len(dst), need)
	}
	return d.readAt(dst[:need], blockIndex*blockSize)
}

// Read implements byte-granular access by splitting the request into a
// left-partial block, whole middle blocks, and a right-partial block, using a
// single scratch block to shave the edges off full-block reads.
func (d *Device) Read(dst []byte, size int, byteOffset uint64) error {
	if size == 0 {
		return nil
	}
	if len(dst) < size {
		return xerrors.Errorf("Read: dst too small: have %d, need %d", len(dst), size)
	}

	var scratch [blockSize]byte

	middleBlock := (byteOffset + blockSize - 1) / blockSize
	leftChunk := middleBlock*blockSize - byteOffset

	if leftChunk >= uint64(size) {
		if err := d.ReadBlocks(scratch[:], 1, middleBlock-1); err != nil {
			return err
		}
		copy(dst[:size], scratch[blockSize-leftChunk:])
		return nil
	}

	if leftChunk > 0 {
		if err := d.ReadBlocks(scratch[:], 1, middleBlock-1); err != nil {
			return err
		}
		copy(dst[:leftChunk], scratch[blockSize-leftChunk:])
	}

	middleBlockCount := (uint64(size) - leftChunk) / blockSize
	if middleBlockCount > 0 {
		if err := d.ReadBlocks(dst[leftChunk:uint64(size)], int(middleBlockCount), middleBlock); err != nil {
			return err
		}
	}

	rightChunk := (uint64(size) - leftChunk) % blockSize
	if rightChunk > 0 {
		if err := d.ReadBlocks(scratch[:], 1, middleBlock+middleBlockCount); err != nil {
			return err
		}
		copy(dst[uint64(size)-rightChunk:size], scratch[:rightChunk])
	}

	return nil
}

func (d *Device) readAt(dst []byte, offset uint64) error {
	for len(dst) > 0 {
		n, err := unix.Pread(d.fd, dst, int64(offset))
		if err != nil {
			return xerrors.Errorf("pread at offset %d: %w", offset, err)
		}
		if n == 0 {
			return xerrors.Errorf("pread at offset %d: %w", offset, ErrShortRead)
		}
		dst = dst[n:]
		offset += uint64(n)
	}
	return nil
}
