package blockdev

import (
	"bytes"
	"os"
	"testing"
)

func openFixture(t *testing.T, content []byte) *Device {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), "blockdev-fixture")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.Write(content); err != nil {
		t.Fatal(err)
	}
	path := f.Name()
	f.Close()

	dev, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { dev.Close() })
	return dev
}

func sequentialBytes(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i)
	}
	return b
}

func TestReadWithinSingleBlock(t *testing.T) {
	dev := openFixture(t, sequentialBytes(4*blockSize))

	got := make([]byte, 10)
	if err := dev.Read(got, 10, 5); err != nil {
		t.Fatal(err)
	}
	want := sequentialBytes(4 * blockSize)[5:15]
	if !bytes.Equal(got, want) {
		t.Errorf("Read(5, 10) = %v, want %v", got, want)
	}
}

func TestReadSpanningBlocks(t *testing.T) {
	dev := openFixture(t, sequentialBytes(4*blockSize))

	// left-partial + whole middle block + right-partial
	off := uint64(blockSize - 10)
	size := blockSize + 20
	got := make([]byte, size)
	if err := dev.Read(got, size, off); err != nil {
		t.Fatal(err)
	}
	want := sequentialBytes(4 * blockSize)[off : off+uint64(size)]
	if !bytes.Equal(got, want) {
		t.Errorf("spanning read mismatch")
	}
}

func TestReadExactlyOneBlock(t *testing.T) {
	dev := openFixture(t, sequentialBytes(4*blockSize))

	got := make([]byte, blockSize)
	if err := dev.Read(got, blockSize, blockSize); err != nil {
		t.Fatal(err)
	}
	want := sequentialBytes(4 * blockSize)[blockSize : 2*blockSize]
	if !bytes.Equal(got, want) {
		t.Errorf("single block read mismatch")
	}
}

func TestReadPastEndOfFileFails(t *testing.T) {
	dev := openFixture(t, sequentialBytes(blockSize))

	got := make([]byte, blockSize)
	if err := dev.Read(got, blockSize, blockSize); err == nil {
		t.Fatal("expected an error reading past end of file")
	}
}

func TestReadBlocksDstTooSmall(t *testing.T) {
	dev := openFixture(t, sequentialBytes(2*blockSize))

	got := make([]byte, blockSize-1)
	if err := dev.ReadBlocks(got, 1, 0); err == nil {
		t.Fatal("expected an error for an undersized destination buffer")
	}
}
