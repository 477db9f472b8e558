package serialize

import (
	"encoding/binary"

	"github.com/brindlefield/merkletree/tree"
)

// The fast codec lays out fixed-width little-endian fields with no framing
// beyond fixed offsets, in the style of Carmen's hand-written serializers:
// format_version(2) | depth(1) | next_index(8) | leaf_count(8) | leaves...
// each leaf is index(8) | digest(32).
const fastLeafSize = 8 + 32

func encodeFast(t *tree.Tree) ([]byte, error) {
	rec := toWireRecord(t)
	buf := make([]byte, 2+1+8+8+len(rec.Leaves)*fastLeafSize)
	off := 0
	binary.LittleEndian.PutUint16(buf[off:], formatVersion)
	off += 2
	buf[off] = rec.Depth
	off++
	binary.LittleEndian.PutUint64(buf[off:], rec.NextIndex)
	off += 8
	binary.LittleEndian.PutUint64(buf[off:], uint64(len(rec.Leaves)))
	off += 8
	for _, leaf := range rec.Leaves {
		binary.LittleEndian.PutUint64(buf[off:], leaf.Index)
		off += 8
		copy(buf[off:], leaf.Digest[:])
		off += 32
	}
	return buf, nil
}

func decodeFast(data []byte) (*tree.Tree, error) {
	const headerSize = 2 + 1 + 8 + 8
	if len(data) < headerSize {
		return nil, tree.Wrapf(tree.ErrCorruption, "fast record too short: %d bytes", len(data))
	}
	off := 0
	version := binary.LittleEndian.Uint16(data[off:])
	off += 2
	if version != formatVersion {
		return nil, tree.Wrapf(tree.ErrInvalidArgument, "unsupported fast format_version %d", version)
	}
	depth := data[off]
	off++
	nextIndex := binary.LittleEndian.Uint64(data[off:])
	off += 8
	leafCount := binary.LittleEndian.Uint64(data[off:])
	off += 8

	want := headerSize + int(leafCount)*fastLeafSize
	if len(data) != want {
		return nil, tree.Wrapf(tree.ErrCorruption, "fast record length %d does not match declared leaf_count %d (want %d)", len(data), leafCount, want)
	}

	leaves := make([]wireLeaf, leafCount)
	for i := range leaves {
		leaves[i].Index = binary.LittleEndian.Uint64(data[off:])
		off += 8
		copy(leaves[i].Digest[:], data[off:off+32])
		off += 32
	}
	return fromWireRecord(wireRecord{Depth: depth, NextIndex: nextIndex, Leaves: leaves})
}
