package serialize

import (
	"encoding/binary"

	"github.com/brindlefield/merkletree/tree"
)

// A delta between two same-depth trees records only what changed: which
// already-appended leaves got a new digest via Update, and which new
// leaves were appended past base's next_index. Applying it to base
// reproduces target without ever materializing target's full leaf set on
// the wire.
//
// Layout mirrors the fast codec: format_version(2) | depth(1) |
// base_next_index(8) | new_next_index(8) | changed_count(8) | changed... |
// appended_count(8) | appended..., each entry index(8) | digest(32).

// Delta computes the encoded difference between base and target, which
// must share the same depth and satisfy target.NextIndex() >= base's.
func Delta(base, target *tree.Tree) ([]byte, error) {
	if base.Depth() != target.Depth() {
		return nil, tree.Wrapf(tree.ErrDeltaMismatch, "base depth %d != target depth %d", base.Depth(), target.Depth())
	}
	if target.NextIndex() < base.NextIndex() {
		return nil, tree.Wrapf(tree.ErrDeltaMismatch, "target next_index %d is behind base next_index %d", target.NextIndex(), base.NextIndex())
	}

	var changed, appended []wireLeaf
	for i := uint64(0); i < base.NextIndex(); i++ {
		baseDigest, _ := base.Leaf(i)
		targetDigest, _ := target.Leaf(i)
		if baseDigest != targetDigest {
			changed = append(changed, wireLeaf{Index: i, Digest: targetDigest})
		}
	}
	for i := base.NextIndex(); i < target.NextIndex(); i++ {
		digest, _ := target.Leaf(i)
		appended = append(appended, wireLeaf{Index: i, Digest: digest})
	}

	buf := make([]byte, 0, 2+1+8+8+8+8+(len(changed)+len(appended))*fastLeafSize)
	buf = appendUint16(buf, formatVersion)
	buf = append(buf, uint8(base.Depth()))
	buf = appendUint64(buf, base.NextIndex())
	buf = appendUint64(buf, target.NextIndex())
	buf = appendLeaves(buf, changed)
	buf = appendLeaves(buf, appended)
	return buf, nil
}

// ApplyDelta reconstructs the target tree by replaying delta onto base.
// It fails with ErrDeltaMismatch if delta's recorded base state does not
// match base's actual depth and next_index.
func ApplyDelta(base *tree.Tree, delta []byte) (*tree.Tree, error) {
	off := 0
	version, off2, err := readUint16(delta, off)
	if err != nil {
		return nil, err
	}
	off = off2
	if version != formatVersion {
		return nil, tree.Wrapf(tree.ErrInvalidArgument, "unsupported delta format_version %d", version)
	}
	if off >= len(delta) {
		return nil, tree.Wrapf(tree.ErrCorruption, "truncated delta record")
	}
	depth := delta[off]
	off++
	baseNextIndex, off, err := readUint64(delta, off)
	if err != nil {
		return nil, err
	}
	newNextIndex, off, err := readUint64(delta, off)
	if err != nil {
		return nil, err
	}

	if int(depth) != base.Depth() {
		return nil, tree.Wrapf(tree.ErrDeltaMismatch, "delta was built for depth %d, base has depth %d", depth, base.Depth())
	}
	if baseNextIndex != base.NextIndex() {
		return nil, tree.Wrapf(tree.ErrDeltaMismatch, "delta assumes base next_index %d, base has %d", baseNextIndex, base.NextIndex())
	}

	changed, off, err := readLeaves(delta, off)
	if err != nil {
		return nil, err
	}
	appended, off, err := readLeaves(delta, off)
	if err != nil {
		return nil, err
	}
	if off != len(delta) {
		return nil, tree.Wrapf(tree.ErrCorruption, "delta has %d trailing bytes", len(delta)-off)
	}

	out, err := tree.New(base.Depth())
	if err != nil {
		return nil, tree.Wrap(tree.ErrDeltaMismatch, err)
	}
	for _, d := range base.LeafDigests() {
		if _, err := out.AppendDigest(d); err != nil {
			return nil, tree.Wrap(tree.ErrDeltaMismatch, err)
		}
	}
	for _, leaf := range changed {
		if leaf.Index >= out.NextIndex() {
			return nil, tree.Wrapf(tree.ErrDeltaMismatch, "changed index %d is not within base's appended range", leaf.Index)
		}
		if err := out.UpdateDigest(leaf.Index, leaf.Digest); err != nil {
			return nil, tree.Wrap(tree.ErrDeltaMismatch, err)
		}
	}
	for _, leaf := range appended {
		if leaf.Index != out.NextIndex() {
			return nil, tree.Wrapf(tree.ErrDeltaMismatch, "appended index %d is not the next expected index %d", leaf.Index, out.NextIndex())
		}
		if _, err := out.AppendDigest(leaf.Digest); err != nil {
			return nil, tree.Wrap(tree.ErrDeltaMismatch, err)
		}
	}
	if out.NextIndex() != newNextIndex {
		return nil, tree.Wrapf(tree.ErrDeltaMismatch, "applying delta produced next_index %d, delta declares %d", out.NextIndex(), newNextIndex)
	}
	return out, nil
}

func appendUint16(buf []byte, v uint16) []byte {
	var tmp [2]byte
	binary.LittleEndian.PutUint16(tmp[:], v)
	return append(buf, tmp[:]...)
}

func appendUint64(buf []byte, v uint64) []byte {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], v)
	return append(buf, tmp[:]...)
}

func appendLeaves(buf []byte, leaves []wireLeaf) []byte {
	buf = appendUint64(buf, uint64(len(leaves)))
	for _, leaf := range leaves {
		buf = appendUint64(buf, leaf.Index)
		buf = append(buf, leaf.Digest[:]...)
	}
	return buf
}

func readUint16(data []byte, off int) (uint16, int, error) {
	if off+2 > len(data) {
		return 0, 0, tree.Wrapf(tree.ErrCorruption, "truncated uint16 at offset %d", off)
	}
	return binary.LittleEndian.Uint16(data[off:]), off + 2, nil
}

func readUint64(data []byte, off int) (uint64, int, error) {
	if off+8 > len(data) {
		return 0, 0, tree.Wrapf(tree.ErrCorruption, "truncated uint64 at offset %d", off)
	}
	return binary.LittleEndian.Uint64(data[off:]), off + 8, nil
}

func readLeaves(data []byte, off int) ([]wireLeaf, int, error) {
	count, off, err := readUint64(data, off)
	if err != nil {
		return nil, 0, err
	}
	leaves := make([]wireLeaf, count)
	for i := range leaves {
		index, next, err := readUint64(data, off)
		if err != nil {
			return nil, 0, err
		}
		off = next
		if off+32 > len(data) {
			return nil, 0, tree.Wrapf(tree.ErrCorruption, "truncated digest at offset %d", off)
		}
		leaves[i].Index = index
		copy(leaves[i].Digest[:], data[off:off+32])
		off += 32
	}
	return leaves, off, nil
}
