package tree

import (
	"testing"

	"github.com/brindlefield/merkletree/hash"
)

func TestNewRejectsInvalidDepth(t *testing.T) {
	if _, err := New(0); err == nil {
		t.Fatalf("expected error for depth 0")
	}
	if _, err := New(MaxDepth + 1); err == nil {
		t.Fatalf("expected error for depth > 32")
	}
	if _, err := New(1); err != nil {
		t.Fatalf("depth 1 should be valid: %v", err)
	}
}

// An empty tree's root is the zero-hash entry for its own depth.
func TestEmptyTreeRoot(t *testing.T) {
	for depth := 1; depth <= 8; depth++ {
		tr, err := New(depth)
		if err != nil {
			t.Fatalf("New(%d): %v", depth, err)
		}
		want := zeroHashes(depth)[depth]
		if got := tr.Root(); got != want {
			t.Errorf("depth %d: empty root = %x, want %x", depth, got, want)
		}
	}
}

// A depth-3 empty tree's root is that depth's zero hash.
func TestEmptyRootEqualsZeroHashAtDepth(t *testing.T) {
	tr, _ := New(3)
	want := zeroHashes(3)[3]
	if got := tr.Root(); got != want {
		t.Fatalf("root = %x, want %x", got, want)
	}
}

// A single append at depth 3 folds the leaf up against zero siblings.
func TestSingleAppendRootMatchesLeafOverZeroSibling(t *testing.T) {
	tr, _ := New(3)
	idx, err := tr.Append([]byte("a"))
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if idx != 0 {
		t.Fatalf("index = %d, want 0", idx)
	}
	z := zeroHashes(3)
	leafA := hash.Leaf([]byte("a"))
	want := hash.Node(hash.Node(hash.Node(leafA, z[0]), z[1]), z[2])
	if got := tr.Root(); got != want {
		t.Fatalf("root = %x, want %x", got, want)
	}
}

// Two appends: proving index 0 verifies, and tampering the first sibling breaks it.
func TestTwoAppendsProveFirstIndex(t *testing.T) {
	tr, _ := New(3)
	tr.Append([]byte("a"))
	tr.Append([]byte("b"))

	proof, err := tr.Prove(0)
	if err != nil {
		t.Fatalf("Prove: %v", err)
	}
	z := zeroHashes(3)
	wantSiblings := []hash.Digest{hash.Leaf([]byte("b")), z[1], z[2]}
	for i, w := range wantSiblings {
		if proof.Siblings[i] != w {
			t.Fatalf("sibling[%d] = %x, want %x", i, proof.Siblings[i], w)
		}
	}
	if !proof.Verify(tr.Root()) {
		t.Fatalf("proof should verify against the tree root")
	}

	tampered := proof
	tampered.Siblings = append([]hash.Digest(nil), proof.Siblings...)
	tampered.Siblings[0][0] ^= 0xFF
	if tampered.Verify(tr.Root()) {
		t.Fatalf("tampered proof should not verify")
	}
}

// Updating an already-appended leaf changes the root and its own proof still verifies.
func TestUpdateChangesRootAndProofStillVerifies(t *testing.T) {
	tr, _ := New(3)
	tr.Append([]byte("x"))
	r1 := tr.Root()

	if err := tr.Update(0, []byte("y")); err != nil {
		t.Fatalf("Update: %v", err)
	}
	r2 := tr.Root()
	if r2 == r1 {
		t.Fatalf("root should change after update")
	}
	proof, err := tr.Prove(0)
	if err != nil {
		t.Fatalf("Prove: %v", err)
	}
	if !proof.Verify(r2) {
		t.Fatalf("proof for the updated leaf should verify against the new root")
	}

	if err := tr.Update(0, []byte("x")); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if got := tr.Root(); got != r1 {
		t.Fatalf("root after reverting update = %x, want %x", got, r1)
	}
}

func TestUpdateRejectsUnappendedIndex(t *testing.T) {
	tr, _ := New(3)
	if err := tr.Update(0, []byte("x")); err == nil {
		t.Fatalf("expected error updating an unappended slot")
	}
}

func TestCapacityExceeded(t *testing.T) {
	tr, _ := New(1) // capacity 2
	if _, err := tr.Append([]byte("a")); err != nil {
		t.Fatalf("Append 1: %v", err)
	}
	if _, err := tr.Append([]byte("b")); err != nil {
		t.Fatalf("Append 2: %v", err)
	}
	if _, err := tr.Append([]byte("c")); err == nil {
		t.Fatalf("expected ErrCapacityExceeded")
	}
}

// Every appended leaf produces a verifiable proof, across a range of depths.
func TestEveryAppendedLeafProducesAVerifyingProof(t *testing.T) {
	for depth := 1; depth <= 8; depth++ {
		tr, _ := New(depth)
		capacity := tr.Capacity()
		for i := uint64(0); i < capacity; i++ {
			if _, err := tr.Append([]byte{byte(i)}); err != nil {
				t.Fatalf("depth %d: Append(%d): %v", depth, i, err)
			}
		}
		root := tr.Root()
		for i := uint64(0); i < capacity; i++ {
			proof, err := tr.Prove(i)
			if err != nil {
				t.Fatalf("depth %d: Prove(%d): %v", depth, i, err)
			}
			if !proof.Verify(root) {
				t.Errorf("depth %d: proof for index %d did not verify", depth, i)
			}
		}
	}
}

// Two independently-built trees fed the same leaves agree on every digest.
func TestRootIsDeterministicForEqualLeafSequences(t *testing.T) {
	build := func() *Tree {
		tr, _ := New(4)
		for _, s := range []string{"a", "b", "c", "d", "e"} {
			tr.Append([]byte(s))
		}
		return tr
	}
	t1, t2 := build(), build()
	if t1.Root() != t2.Root() {
		t.Fatalf("roots diverged: %x vs %x", t1.Root(), t2.Root())
	}
	p1, _ := t1.Prove(2)
	p2, _ := t2.Prove(2)
	if len(p1.Siblings) != len(p2.Siblings) {
		t.Fatalf("sibling count mismatch")
	}
	for i := range p1.Siblings {
		if p1.Siblings[i] != p2.Siblings[i] {
			t.Fatalf("sibling %d diverged", i)
		}
	}
}

// The zero-hash table matches its own recursive definition at every level,
// and an empty subtree's node hash is the zero hash for its level.
func TestZeroHashTableMatchesRecursiveDefinition(t *testing.T) {
	tr, _ := New(5)
	tr.Append([]byte("only-leaf"))
	z := zeroHashes(5)
	if z[0] != hash.Leaf([]byte{0x00}) {
		t.Errorf("zero hash at level 0 = %x, want H_leaf(0x00)", z[0])
	}
	for i := 1; i < len(z); i++ {
		if want := hash.Node(z[i-1], z[i-1]); z[i] != want {
			t.Errorf("zero hash at level %d = %x, want %x", i, z[i], want)
		}
	}
	// the right half of the tree (indices 16..31) has no populated leaves.
	if got := tr.nodeHash(4, 1); got != z[4] {
		t.Errorf("empty right subtree at level 4 = %x, want zero hash %x", got, z[4])
	}
}

// Tampering any single bit of a leaf, a sibling, or the root breaks verification.
func TestTamperedProofFailsVerification(t *testing.T) {
	tr, _ := New(4)
	for _, s := range []string{"a", "b", "c"} {
		tr.Append([]byte(s))
	}
	root := tr.Root()
	proof, err := tr.Prove(1)
	if err != nil {
		t.Fatalf("Prove: %v", err)
	}
	if !proof.Verify(root) {
		t.Fatalf("baseline proof should verify")
	}

	leafTampered := proof
	leafTampered.Leaf[0] ^= 0x01
	if leafTampered.Verify(root) {
		t.Errorf("tampered leaf should not verify")
	}

	for i := range proof.Siblings {
		sibTampered := proof
		sibs := append([]hash.Digest(nil), proof.Siblings...)
		sibs[i][0] ^= 0x01
		sibTampered.Siblings = sibs
		if sibTampered.Verify(root) {
			t.Errorf("tampered sibling %d should not verify", i)
		}
	}

	rootTampered := root
	rootTampered[0] ^= 0x01
	if proof.Verify(rootTampered) {
		t.Errorf("tampered root should not verify")
	}
}

func TestProveAtNextIndexMinusOne(t *testing.T) {
	tr, _ := New(3)
	tr.Append([]byte("a"))
	tr.Append([]byte("b"))
	proof, err := tr.Prove(tr.NextIndex() - 1)
	if err != nil {
		t.Fatalf("Prove: %v", err)
	}
	if !proof.Verify(tr.Root()) {
		t.Fatalf("proof at next_index-1 should verify")
	}
}

func TestProveUnappendedFails(t *testing.T) {
	tr, _ := New(3)
	tr.Append([]byte("a"))
	if _, err := tr.Prove(5); err == nil {
		t.Fatalf("expected ErrNotAppended")
	}
}

func TestZeroLengthLeafBytes(t *testing.T) {
	tr, _ := New(3)
	idx, err := tr.Append(nil)
	if err != nil {
		t.Fatalf("Append(nil): %v", err)
	}
	proof, err := tr.Prove(idx)
	if err != nil {
		t.Fatalf("Prove: %v", err)
	}
	if !proof.Verify(tr.Root()) {
		t.Fatalf("proof of zero-length leaf should verify")
	}
}
