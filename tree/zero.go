package tree

import "github.com/brindlefield/merkletree/hash"

// zeroHashes computes zero_hashes[0..=depth]:
// zero_hashes[0] = H_leaf(0x00), zero_hashes[i+1] = H_node(zero_hashes[i], zero_hashes[i]).
//
// The table is never persisted - it is always cheap to rederive from depth
// alone, which is why the serialization codecs in package serialize omit it.
func zeroHashes(depth int) []hash.Digest {
	zeros := make([]hash.Digest, depth+1)
	zeros[0] = hash.Leaf([]byte{0x00})
	for i := 1; i <= depth; i++ {
		zeros[i] = hash.Node(zeros[i-1], zeros[i-1])
	}
	return zeros
}
