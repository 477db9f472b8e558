// Package tree implements the sparse, fixed-depth in-memory Merkle tree:
// zero-hash short-circuiting, append/update/prove, and standalone proof
// verification. It has no knowledge of persistence - package persist
// composes it with durable storage.
package tree

import (
	"fmt"

	"github.com/brindlefield/merkletree/hash"
)

// MaxDepth is the largest depth this implementation supports; capacity at
// this depth already exceeds any realistic leaf count and keeps node
// indices representable in a uint64.
const MaxDepth = 32

// Tree is a sparse, fixed-depth binary Merkle tree. The zero value is not
// usable; construct one with New.
type Tree struct {
	depth     int
	capacity  uint64
	nextIndex uint64
	leaves    map[uint64]hash.Digest
	zeros     []hash.Digest
	memo      map[nodeKey]hash.Digest
}

type nodeKey struct {
	level int
	index uint64
}

// New constructs an empty tree of the given depth. depth must be in [1, 32].
func New(depth int) (*Tree, error) {
	if depth < 1 || depth > MaxDepth {
		return nil, Wrapf(ErrInvalidArgument, "depth %d out of range [1,%d]", depth, MaxDepth)
	}
	return &Tree{
		depth:    depth,
		capacity: uint64(1) << uint(depth),
		leaves:   make(map[uint64]hash.Digest),
		zeros:    zeroHashes(depth),
		memo:     make(map[nodeKey]hash.Digest),
	}, nil
}

// Depth returns the fixed depth of the tree.
func (t *Tree) Depth() int { return t.depth }

// Capacity returns 2^depth, the maximum number of leaves.
func (t *Tree) Capacity() uint64 { return t.capacity }

// NextIndex returns the count of leaves ever appended, and the slot the
// next Append will occupy.
func (t *Tree) NextIndex() uint64 { return t.nextIndex }

// Append inserts H_leaf(data) at the next free slot and returns its index.
// It fails with ErrCapacityExceeded once the tree is full.
func (t *Tree) Append(data []byte) (uint64, error) {
	if t.nextIndex == t.capacity {
		return 0, Wrapf(ErrCapacityExceeded, "tree at depth %d is full (capacity %d)", t.depth, t.capacity)
	}
	index := t.nextIndex
	t.leaves[index] = hash.Leaf(data)
	t.nextIndex++
	return index, nil
}

// AppendDigest is like Append but takes an already-computed leaf digest.
// It is used by recovery and deserialization paths that reconstruct a tree
// from persisted digests rather than raw leaf bytes.
func (t *Tree) AppendDigest(d hash.Digest) (uint64, error) {
	if t.nextIndex == t.capacity {
		return 0, Wrapf(ErrCapacityExceeded, "tree at depth %d is full (capacity %d)", t.depth, t.capacity)
	}
	index := t.nextIndex
	t.leaves[index] = d
	t.nextIndex++
	return index, nil
}

// Update replaces the digest at an already-appended index. It fails with
// an ErrInvalidArgument-classified error if index >= NextIndex: Update is
// never permitted on a slot that has not been appended to.
func (t *Tree) Update(index uint64, data []byte) error {
	if index >= t.nextIndex {
		return Wrapf(ErrInvalidArgument, "update index %d is not less than next_index %d", index, t.nextIndex)
	}
	t.leaves[index] = hash.Leaf(data)
	t.invalidate(index)
	return nil
}

// UpdateDigest is like Update but takes an already-computed digest.
func (t *Tree) UpdateDigest(index uint64, d hash.Digest) error {
	if index >= t.nextIndex {
		return Wrapf(ErrInvalidArgument, "update index %d is not less than next_index %d", index, t.nextIndex)
	}
	t.leaves[index] = d
	t.invalidate(index)
	return nil
}

// Leaf returns the digest stored at index and whether it has been
// populated (index < NextIndex).
func (t *Tree) Leaf(index uint64) (hash.Digest, bool) {
	if index >= t.nextIndex {
		return hash.Digest{}, false
	}
	d, ok := t.leaves[index]
	if !ok {
		return t.zeros[0], true
	}
	return d, true
}

// Root returns node_hash(depth, 0), the root digest of the tree.
func (t *Tree) Root() hash.Digest {
	return t.nodeHash(t.depth, 0)
}

// nodeHash implements the recursive node definition: leaves at level 0,
// mandatory zero-hash short-circuiting for subtrees with no populated
// leaves, and a memo for subtrees that are fully populated and therefore
// will not change until an Update inside their range invalidates them.
func (t *Tree) nodeHash(level int, index uint64) hash.Digest {
	if level == 0 {
		if d, ok := t.leaves[index]; ok {
			return d
		}
		return t.zeros[0]
	}

	span := uint64(1) << uint(level)
	rangeStart := index * span
	rangeEnd := rangeStart + span

	if rangeStart >= t.nextIndex {
		// no descendant leaf has ever been appended
		return t.zeros[level]
	}

	fullyPopulated := rangeEnd <= t.nextIndex
	key := nodeKey{level: level, index: index}
	if fullyPopulated {
		if cached, ok := t.memo[key]; ok {
			return cached
		}
	}

	left := t.nodeHash(level-1, index*2)
	right := t.nodeHash(level-1, index*2+1)
	out := hash.Node(left, right)

	if fullyPopulated {
		t.memo[key] = out
	}
	return out
}

// invalidate clears every memoized ancestor of index following an update.
func (t *Tree) invalidate(index uint64) {
	for level := 1; level <= t.depth; level++ {
		delete(t.memo, nodeKey{level: level, index: index >> uint(level)})
	}
}

// LeafDigests returns the digests of every populated leaf, in ascending
// index order [0, NextIndex). It is used by the serialization and delta
// codecs, which never need direct access to the sparse map or the memo.
func (t *Tree) LeafDigests() []hash.Digest {
	out := make([]hash.Digest, t.nextIndex)
	for i := uint64(0); i < t.nextIndex; i++ {
		out[i], _ = t.Leaf(i)
	}
	return out
}

// String provides a short human-readable summary, useful in CLI output and
// test failure messages.
func (t *Tree) String() string {
	return fmt.Sprintf("Tree(depth=%d, next_index=%d/%d, root=%x)", t.depth, t.nextIndex, t.capacity, t.Root())
}
