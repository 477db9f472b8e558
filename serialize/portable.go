package serialize

import (
	"github.com/fxamacker/cbor/v2"

	"github.com/brindlefield/merkletree/tree"
)

// The portable codec is a self-describing CBOR encoding: unlike the fast
// codec, a decoder does not need to know the exact field layout ahead of
// time, only the field names. This mirrors how the log package in the
// forestrie retrieval pack wraps fxamacker/cbor with a fixed EncOptions and
// DecOptions pair instead of using the library's untyped defaults.
var (
	cborEncMode cbor.EncMode
	cborDecMode cbor.DecMode
)

func init() {
	var err error
	cborEncMode, err = cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	cborDecMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic(err)
	}
}

type cborLeaf struct {
	Index  uint64 `cbor:"i"`
	Digest []byte `cbor:"d"`
}

type cborRecord struct {
	FormatVersion uint16     `cbor:"v"`
	Depth         uint8      `cbor:"depth"`
	NextIndex     uint64     `cbor:"next"`
	Leaves        []cborLeaf `cbor:"leaves"`
}

func encodePortable(t *tree.Tree) ([]byte, error) {
	rec := toWireRecord(t)
	out := cborRecord{
		FormatVersion: formatVersion,
		Depth:         rec.Depth,
		NextIndex:     rec.NextIndex,
		Leaves:        make([]cborLeaf, len(rec.Leaves)),
	}
	for i, leaf := range rec.Leaves {
		out.Leaves[i] = cborLeaf{Index: leaf.Index, Digest: append([]byte(nil), leaf.Digest[:]...)}
	}
	buf, err := cborEncMode.Marshal(out)
	if err != nil {
		return nil, tree.Wrap(tree.ErrIO, err)
	}
	return buf, nil
}

func decodePortable(data []byte) (*tree.Tree, error) {
	var in cborRecord
	if err := cborDecMode.Unmarshal(data, &in); err != nil {
		return nil, tree.Wrap(tree.ErrCorruption, err)
	}
	if in.FormatVersion != formatVersion {
		return nil, tree.Wrapf(tree.ErrInvalidArgument, "unsupported portable format_version %d", in.FormatVersion)
	}
	leaves := make([]wireLeaf, len(in.Leaves))
	for i, leaf := range in.Leaves {
		if len(leaf.Digest) != 32 {
			return nil, tree.Wrapf(tree.ErrCorruption, "leaf %d has digest of length %d, want 32", i, len(leaf.Digest))
		}
		leaves[i].Index = leaf.Index
		copy(leaves[i].Digest[:], leaf.Digest)
	}
	return fromWireRecord(wireRecord{Depth: in.Depth, NextIndex: in.NextIndex, Leaves: leaves})
}
