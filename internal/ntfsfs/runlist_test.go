package ntfsfs

import "testing"

func TestParseRunlistEntry(t *testing.T) {
	tests := []struct {
		name       string
		buf        []byte
		wantEntry  runlistEntry
		wantConsumed int
		wantOK     bool
	}{
		{
			name:         "terminator",
			buf:          []byte{0x00, 0xFF, 0xFF},
			wantEntry:    runlistEntry{},
			wantConsumed: 0,
			wantOK:       false,
		},
		{
			name: "one-byte length, one-byte positive offset",
			// header 0x11: length field 1 byte, offset field 1 byte
			buf:          []byte{0x11, 0x05, 0x0A},
			wantEntry:    runlistEntry{runLength: 5, deltaLCN: 10, hasOffset: true},
			wantConsumed: 3,
			wantOK:       true,
		},
		{
			name: "one-byte length, one-byte negative offset",
			buf:          []byte{0x11, 0x05, 0xF6}, // 0xF6 = -10 as signed byte
			wantEntry:    runlistEntry{runLength: 5, deltaLCN: -10, hasOffset: true},
			wantConsumed: 3,
			wantOK:       true,
		},
		{
			name: "two-byte length, two-byte offset",
			buf:          []byte{0x22, 0x00, 0x01, 0x34, 0x12},
			wantEntry:    runlistEntry{runLength: 256, deltaLCN: 0x1234, hasOffset: true},
			wantConsumed: 5,
			wantOK:       true,
		},
		{
			name: "sparse run: no offset field at all",
			buf:          []byte{0x01, 0x07},
			wantEntry:    runlistEntry{runLength: 7, deltaLCN: 0, hasOffset: false},
			wantConsumed: 2,
			wantOK:       true,
		},
		{
			name:         "truncated buffer",
			buf:          []byte{0x22, 0x00},
			wantEntry:    runlistEntry{},
			wantConsumed: 0,
			wantOK:       false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry, consumed, ok := parseRunlistEntry(tt.buf)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if entry != tt.wantEntry {
				t.Errorf("entry = %+v, want %+v", entry, tt.wantEntry)
			}
			if consumed != tt.wantConsumed {
				t.Errorf("consumed = %d, want %d", consumed, tt.wantConsumed)
			}
		})
	}
}

func TestReadIntLESignExtends(t *testing.T) {
	if got := readIntLE([]byte{0xFF}); got != -1 {
		t.Errorf("readIntLE(0xFF) = %d, want -1", got)
	}
	if got := readIntLE([]byte{0x00}); got != 0 {
		t.Errorf("readIntLE(0x00) = %d, want 0", got)
	}
	if got := readIntLE([]byte{0xFF, 0x00}); got != 0xFF {
		t.Errorf("readIntLE(0xFF, 0x00) = %d, want 255", got)
	}
}

func TestFiletimeToUnixNano(t *testing.T) {
	// 116444736000000000 is the Unix epoch (1970-01-01) expressed as a
	// FILETIME, which must map to Unix time zero.
	if got := filetimeToUnixNano(116444736000000000); got != 0 {
		t.Errorf("filetimeToUnixNano(epoch) = %d, want 0", got)
	}
	// One FILETIME tick is 100ns.
	if got := filetimeToUnixNano(116444736000000001); got != 100 {
		t.Errorf("filetimeToUnixNano(epoch+1 tick) = %d, want 100", got)
	}
}
