package serialize

import (
	"encoding/binary"

	"github.com/brindlefield/merkletree/tree"
)

// The compact codec favors size over decode speed: every integer field is a
// varint, and, as in the other two codecs, only occupied leaves are stored -
// the capacity implied by depth may be far larger than next_index.
//
// Layout: format_version(varint) | depth(1 byte) | next_index(varint) |
// count(varint) | count * (index(varint) | digest(32 bytes)), indices
// strictly ascending.
func encodeCompact(t *tree.Tree) ([]byte, error) {
	rec := toWireRecord(t)
	buf := make([]byte, 0, 16+len(rec.Leaves)*(10+32))
	var scratch [binary.MaxVarintLen64]byte

	appendUvarint := func(v uint64) {
		n := binary.PutUvarint(scratch[:], v)
		buf = append(buf, scratch[:n]...)
	}

	appendUvarint(uint64(formatVersion))
	buf = append(buf, rec.Depth)
	appendUvarint(rec.NextIndex)
	appendUvarint(uint64(len(rec.Leaves)))
	for _, leaf := range rec.Leaves {
		appendUvarint(leaf.Index)
		buf = append(buf, leaf.Digest[:]...)
	}
	return buf, nil
}

func decodeCompact(data []byte) (*tree.Tree, error) {
	r := &varintReader{data: data}

	version, err := r.uvarint()
	if err != nil {
		return nil, tree.Wrap(tree.ErrCorruption, err)
	}
	if version != uint64(formatVersion) {
		return nil, tree.Wrapf(tree.ErrInvalidArgument, "unsupported compact format_version %d", version)
	}
	depth, err := r.byte()
	if err != nil {
		return nil, tree.Wrap(tree.ErrCorruption, err)
	}
	nextIndex, err := r.uvarint()
	if err != nil {
		return nil, tree.Wrap(tree.ErrCorruption, err)
	}
	count, err := r.uvarint()
	if err != nil {
		return nil, tree.Wrap(tree.ErrCorruption, err)
	}

	capacity := uint64(1) << uint(depth)
	leaves := make([]wireLeaf, count)
	var prevIndex uint64
	for i := range leaves {
		index, err := r.uvarint()
		if err != nil {
			return nil, tree.Wrap(tree.ErrCorruption, err)
		}
		if index >= capacity {
			return nil, tree.Wrapf(tree.ErrInvalidArgument, "index %d out of range for depth %d (capacity %d)", index, depth, capacity)
		}
		if i > 0 && index <= prevIndex {
			return nil, tree.Wrapf(tree.ErrInvalidArgument, "duplicate or out-of-order index %d after %d", index, prevIndex)
		}
		digest, err := r.digest()
		if err != nil {
			return nil, tree.Wrap(tree.ErrCorruption, err)
		}
		leaves[i] = wireLeaf{Index: index, Digest: digest}
		prevIndex = index
	}
	if !r.exhausted() {
		return nil, tree.Wrapf(tree.ErrCorruption, "compact record has %d trailing bytes", r.remaining())
	}

	return fromWireRecord(wireRecord{Depth: depth, NextIndex: nextIndex, Leaves: leaves})
}

// varintReader is a minimal cursor over a compact-encoded byte slice.
type varintReader struct {
	data []byte
	pos  int
}

func (r *varintReader) uvarint() (uint64, error) {
	v, n := binary.Uvarint(r.data[r.pos:])
	if n <= 0 {
		return 0, tree.Wrapf(tree.ErrCorruption, "truncated varint at offset %d", r.pos)
	}
	r.pos += n
	return v, nil
}

func (r *varintReader) byte() (uint8, error) {
	if r.pos >= len(r.data) {
		return 0, tree.Wrapf(tree.ErrCorruption, "truncated record at offset %d", r.pos)
	}
	b := r.data[r.pos]
	r.pos++
	return b, nil
}

func (r *varintReader) digest() ([32]byte, error) {
	var d [32]byte
	if r.pos+32 > len(r.data) {
		return d, tree.Wrapf(tree.ErrCorruption, "truncated digest at offset %d", r.pos)
	}
	copy(d[:], r.data[r.pos:r.pos+32])
	r.pos += 32
	return d, nil
}

func (r *varintReader) exhausted() bool { return r.pos == len(r.data) }
func (r *varintReader) remaining() int  { return len(r.data) - r.pos }
