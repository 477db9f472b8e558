// Package pagefile implements the on-disk data file: a sequence of
// fixed-size pages, each holding a run of leaf slots. Slot layout and page
// I/O are grounded in Carmen's paged array (backend/array/pagedarray), and
// the memory-mapped hot region in cosmos-iavl-bench's mmap.go wrapper
// around edsrzf/mmap-go.
package pagefile

import "github.com/brindlefield/merkletree/hash"

// SlotSize is the on-disk width of one leaf slot: a one-byte presence flag
// followed by a 32-byte digest. This is format_version 1 - the layout is
// pinned and any future change would bump the version carried in the
// metadata record, not this constant.
const SlotSize = 1 + hash.Size

const (
	slotAbsent  byte = 0x00
	slotPresent byte = 0x01
)

// EncodeSlot lays out a leaf slot: presence byte followed by digest.
func EncodeSlot(present bool, digest hash.Digest) [SlotSize]byte {
	var out [SlotSize]byte
	if present {
		out[0] = slotPresent
		copy(out[1:], digest[:])
	}
	return out
}

// DecodeSlot reads a slot from buf, which must be at least SlotSize bytes.
func DecodeSlot(buf []byte) (present bool, digest hash.Digest) {
	present = buf[0] == slotPresent
	copy(digest[:], buf[1:SlotSize])
	return present, digest
}
