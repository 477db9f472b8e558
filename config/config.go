// Package config defines the tunables for opening a persistent tree,
// following the documented-defaults preset style of Carmen's MPT
// configuration (database/mpt/config.go) rather than a loosely-typed
// options map.
package config

import (
	"github.com/brindlefield/merkletree/backend/pagefile"
	"github.com/brindlefield/merkletree/serialize"
	"github.com/brindlefield/merkletree/tree"
)

// DefaultPageSizeBytes and DefaultMmapBytes are the nearest multiples of
// pagefile.SlotSize to 4KiB and 16MiB respectively: pagefile.Open and
// pagefile.MapHotRegion both reject a size that doesn't divide evenly into
// whole slots, so a round power-of-two default would fail on the very first
// Open.
const (
	DefaultPageSizeBytes = pagefile.SlotSize * 124    // 4092 bytes, nearest multiple of 33 below 4096
	DefaultMmapBytes     = pagefile.SlotSize * 508400 // 16,777,200 bytes, nearest multiple of 33 below 16 MiB
)

// Config bundles every tunable of a persistent tree. Directory and Depth
// are fixed at first open; the remaining fields govern the runtime
// behavior of an already-opened tree and may be changed across restarts
// without invalidating existing on-disk state.
type Config struct {
	// Directory holds data.bin, meta.bin and wal.log.
	Directory string

	// Depth is the fixed tree depth. Immutable after the directory's first
	// open: reopening with a different depth than what is on disk fails
	// with ErrInvalidArgument.
	Depth uint8

	// PageSizeBytes is the data file's page size. Must be a positive
	// multiple of the on-disk slot size (33 bytes, format v1).
	PageSizeBytes int

	// CacheBytes bounds the page cache; it is converted to a page count by
	// dividing by PageSizeBytes.
	CacheBytes int

	// MmapBytes is the length of the memory-mapped hot region at the front
	// of the data file. Zero disables the mmap optimization.
	MmapBytes int

	// WALEnabled toggles write-ahead logging. Disabling it trades crash
	// durability for lower write latency; it should only be turned off for
	// throwaway or read-mostly trees.
	WALEnabled bool

	// CompressionEnabled wraps serialized output in gzip.
	CompressionEnabled bool

	// CompressionLevel is the gzip level, 0 (no compression) to 9 (best
	// compression). Meaningful only when CompressionEnabled is true.
	CompressionLevel int

	// SerializationFormat selects the wire codec for serialized snapshots
	// (merkletreectl export). Sync does not serialize the tree.
	SerializationFormat serialize.Format
}

// Default returns the documented default configuration for directory,
// leaving Depth at its default of 20. Callers typically override Depth
// and Directory and use the rest as-is.
func Default(directory string) Config {
	return Config{
		Directory:           directory,
		Depth:               20,
		PageSizeBytes:       DefaultPageSizeBytes,
		CacheBytes:          1 << 20, // 1 MiB
		MmapBytes:           DefaultMmapBytes,
		WALEnabled:          true,
		CompressionEnabled:  false,
		CompressionLevel:    6,
		SerializationFormat: serialize.FormatFast,
	}
}

// Validate checks the configuration for internally consistent values,
// independent of any on-disk state. It does not check Directory exists;
// package persist creates it on open if needed.
func (c Config) Validate() error {
	if c.Depth < 1 || c.Depth > uint8(tree.MaxDepth) {
		return tree.Wrapf(tree.ErrInvalidArgument, "depth %d out of range [1,%d]", c.Depth, tree.MaxDepth)
	}
	if c.PageSizeBytes <= 0 {
		return tree.Wrapf(tree.ErrInvalidArgument, "page_size_bytes must be positive, got %d", c.PageSizeBytes)
	}
	if c.CacheBytes <= 0 {
		return tree.Wrapf(tree.ErrInvalidArgument, "cache_bytes must be positive, got %d", c.CacheBytes)
	}
	if c.MmapBytes < 0 {
		return tree.Wrapf(tree.ErrInvalidArgument, "mmap_bytes must not be negative, got %d", c.MmapBytes)
	}
	if c.CompressionLevel < 0 || c.CompressionLevel > 9 {
		return tree.Wrapf(tree.ErrInvalidArgument, "compression_level must be in [0,9], got %d", c.CompressionLevel)
	}
	switch c.SerializationFormat {
	case serialize.FormatFast, serialize.FormatPortable, serialize.FormatCompact:
	default:
		return tree.Wrapf(tree.ErrInvalidArgument, "unknown serialization_format %d", int(c.SerializationFormat))
	}
	return nil
}

// CachePages converts CacheBytes into a page count for pagecache.New,
// always at least one page.
func (c Config) CachePages() int {
	pages := c.CacheBytes / c.PageSizeBytes
	if pages < 1 {
		return 1
	}
	return pages
}
