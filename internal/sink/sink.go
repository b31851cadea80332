// Package sink defines the two callback types that filesystem walkers invoke
// to emit their findings. Sinks are plain function values; there is no global
// sink state and no interface to implement.
package sink

// BlockSink receives one call per contiguous physical extent backing a file.
// fileID is the decimal inode number for ext, or "{baseRecord}:{typeID}" for
// NTFS. fileSize is the file's total size in bytes. startOffset and
// startPhysOffset are in blocks (ext) or clusters (NTFS); length is signed to
// mirror the reference emitter, though it is never negative in practice.
type BlockSink func(fileID string, fileSize uint64, startOffset, startPhysOffset uint32, length int32)

// MetadataSink receives one call per file with parsed standard-info metadata.
// Timestamps are nanoseconds since the Unix epoch.
type MetadataSink func(fileID uint32, fileSize uint64, compressed, encrypted bool, ctime, mtime, atime int64)
