package blockdev

import "errors"

// ErrShortRead is returned when the backing file ends before the requested
// number of bytes could be read.
var ErrShortRead = errors.New("short read: unexpected end of image")
