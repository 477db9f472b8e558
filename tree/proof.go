package tree

import "github.com/brindlefield/merkletree/hash"

// Proof is an inclusion proof: the leaf digest at Index, together with the
// sibling path from leaf to root, sufficient to recompute the root
// independently of any tree instance.
type Proof struct {
	Index    uint64
	Leaf     hash.Digest
	Siblings []hash.Digest
}

// Prove builds the inclusion proof for an already-appended index. It fails
// with ErrNotAppended if index >= NextIndex.
func (t *Tree) Prove(index uint64) (Proof, error) {
	if index >= t.nextIndex {
		return Proof{}, Wrapf(ErrNotAppended, "index %d has not been appended (next_index=%d)", index, t.nextIndex)
	}

	leaf, _ := t.Leaf(index)
	siblings := make([]hash.Digest, t.depth)
	idx := index
	for level := 0; level < t.depth; level++ {
		siblingIndex := idx ^ 1
		siblings[level] = t.nodeHash(level, siblingIndex)
		idx >>= 1
	}

	return Proof{Index: index, Leaf: leaf, Siblings: siblings}, nil
}

// VerifyProof is a pure function - it never touches a Tree instance. It
// recomputes the root from leaf, index and siblings and compares it against
// expectedRoot.
func VerifyProof(leaf hash.Digest, index uint64, siblings []hash.Digest, expectedRoot hash.Digest) bool {
	acc := leaf
	for level, sibling := range siblings {
		bit := (index >> uint(level)) & 1
		if bit == 1 {
			acc = hash.Node(sibling, acc)
		} else {
			acc = hash.Node(acc, sibling)
		}
	}
	return acc == expectedRoot
}

// Verify is a convenience method verifying p against expectedRoot.
func (p Proof) Verify(expectedRoot hash.Digest) bool {
	return VerifyProof(p.Leaf, p.Index, p.Siblings, expectedRoot)
}
