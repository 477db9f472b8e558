package pagefile

import (
	"github.com/edsrzf/mmap-go"

	"github.com/brindlefield/merkletree/hash"
	"github.com/brindlefield/merkletree/tree"
)

// HotRegion memory-maps a prefix of the data file for low-latency reads. It
// is purely a latency optimization: the mapping is shared with the data
// file, so a slot written here is the same byte range the normal file path
// reads, and it reaches disk through Flush followed by File.Sync.
type HotRegion struct {
	handle mmap.MMap
	length int
}

// MapHotRegion maps the first length bytes of f. length must be a positive multiple of SlotSize and must not exceed
// the file's current size - callers grow the file before mapping a larger
// hot region.
func MapHotRegion(f *File, length int) (*HotRegion, error) {
	if length <= 0 || length%SlotSize != 0 {
		return nil, tree.Wrapf(tree.ErrInvalidArgument, "hot region length %d must be a positive multiple of slot size %d", length, SlotSize)
	}
	size, err := f.Size()
	if err != nil {
		return nil, err
	}
	if int64(length) > size {
		return nil, tree.Wrapf(tree.ErrInvalidArgument, "hot region length %d exceeds file size %d", length, size)
	}
	handle, err := mmap.MapRegion(f.f, length, mmap.RDWR, 0, 0)
	if err != nil {
		return nil, tree.Wrap(tree.ErrIO, err)
	}
	return &HotRegion{handle: handle, length: length}, nil
}

// Covers reports whether index's slot lies entirely within the mapped
// region.
func (h *HotRegion) Covers(index uint64) bool {
	end := (index + 1) * SlotSize
	return h.handle != nil && int(end) <= h.length
}

// ReadSlot reads a slot directly out of the mapping. The caller must have
// checked Covers first.
func (h *HotRegion) ReadSlot(index uint64) (present bool, digest hash.Digest) {
	off := index * SlotSize
	return DecodeSlot(h.handle[off : off+SlotSize])
}

// WriteSlot writes a slot directly into the mapping. The caller must have
// checked Covers first. The write lands in the data file's shared mapping
// and becomes durable after Flush and File.Sync.
func (h *HotRegion) WriteSlot(index uint64, digest hash.Digest) {
	off := index * SlotSize
	slot := EncodeSlot(true, digest)
	copy(h.handle[off:off+SlotSize], slot[:])
}

// Flush pushes mapped writes out to the underlying file's page cache. It
// does not fsync the file - callers call File.Sync for durability.
func (h *HotRegion) Flush() error {
	if err := h.handle.Flush(); err != nil {
		return tree.Wrap(tree.ErrIO, err)
	}
	return nil
}

// Close unmaps the region.
func (h *HotRegion) Close() error {
	if h.handle == nil {
		return nil
	}
	err := h.handle.Unmap()
	h.handle = nil
	if err != nil {
		return tree.Wrap(tree.ErrIO, err)
	}
	return nil
}
