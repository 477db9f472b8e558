// Package serialize implements the three interchangeable whole-tree wire
// formats - fast binary, portable (CBOR), and compact - plus delta encoding
// between two same-depth trees and an optional gzip wrapper around any of
// them. None of the codecs ever persist the zero-hash table: it is always
// rederived from depth alone.
package serialize

import (
	"fmt"

	"github.com/brindlefield/merkletree/tree"
)

// Format selects a wire encoding for Serialize/Deserialize.
type Format int

const (
	// FormatFast is a manually laid out little-endian binary encoding,
	// optimized for encode/decode speed over on-disk size.
	FormatFast Format = iota
	// FormatPortable is a self-describing CBOR encoding, decodable without
	// prior knowledge of the exact struct layout used to produce it.
	FormatPortable
	// FormatCompact stores only occupied leaves as index/digest pairs,
	// optimized for on-disk size.
	FormatCompact
)

func (f Format) String() string {
	switch f {
	case FormatFast:
		return "fast"
	case FormatPortable:
		return "portable"
	case FormatCompact:
		return "compact"
	default:
		return fmt.Sprintf("Format(%d)", int(f))
	}
}

// formatVersion is embedded in every encoded record so that a future layout
// change can be rejected cleanly instead of silently misparsed.
const formatVersion uint16 = 1

// Options configures a Serialize/Deserialize call. Compression is orthogonal
// to Format: it wraps whichever codec's output with gzip.
type Options struct {
	Format           Format
	Compress         bool
	CompressionLevel int // gzip level, 0-9; meaningful only when Compress is true.
}

// wireLeaf is the logical (index, digest) pair shared by all three codecs
// once a record has been decoded into memory.
type wireLeaf struct {
	Index  uint64
	Digest [32]byte
}

// wireRecord is the logical content common to all three formats: the codecs
// differ only in how this is laid out on the wire.
type wireRecord struct {
	Depth     uint8
	NextIndex uint64
	Leaves    []wireLeaf
}

func toWireRecord(t *tree.Tree) wireRecord {
	digests := t.LeafDigests()
	leaves := make([]wireLeaf, len(digests))
	for i, d := range digests {
		leaves[i] = wireLeaf{Index: uint64(i), Digest: d}
	}
	return wireRecord{Depth: uint8(t.Depth()), NextIndex: t.NextIndex(), Leaves: leaves}
}

// fromWireRecord rebuilds a tree.Tree from a decoded record, replaying
// leaves in ascending index order via AppendDigest. A malformed-but-not-
// tampered record - a leaf count that doesn't match next_index, leaves
// that are not exactly the dense prefix [0, NextIndex) that every valid
// tree state has, or a leaf index at or past capacity - is ErrInvalidArgument, not ErrCorruption: ErrCorruption
// is reserved for evidence of tampering or a torn write (checksum mismatch,
// sequence gap, magic/root mismatch).
func fromWireRecord(r wireRecord) (*tree.Tree, error) {
	t, err := tree.New(int(r.Depth))
	if err != nil {
		return nil, tree.Wrap(tree.ErrCorruption, err)
	}
	if uint64(len(r.Leaves)) != r.NextIndex {
		return nil, tree.Wrapf(tree.ErrInvalidArgument, "record declares next_index=%d but carries %d leaves", r.NextIndex, len(r.Leaves))
	}
	for i, leaf := range r.Leaves {
		if leaf.Index != uint64(i) {
			return nil, tree.Wrapf(tree.ErrInvalidArgument, "leaf %d has out-of-sequence index %d", i, leaf.Index)
		}
		if leaf.Index >= t.Capacity() {
			return nil, tree.Wrapf(tree.ErrInvalidArgument, "leaf index %d out of range for depth %d (capacity %d)", leaf.Index, r.Depth, t.Capacity())
		}
		if _, err := t.AppendDigest(leaf.Digest); err != nil {
			return nil, tree.Wrap(tree.ErrCorruption, err)
		}
	}
	return t, nil
}

// Serialize encodes t using the format and compression selected by opts.
func Serialize(t *tree.Tree, opts Options) ([]byte, error) {
	var (
		out []byte
		err error
	)
	switch opts.Format {
	case FormatFast:
		out, err = encodeFast(t)
	case FormatPortable:
		out, err = encodePortable(t)
	case FormatCompact:
		out, err = encodeCompact(t)
	default:
		return nil, tree.Wrapf(tree.ErrInvalidArgument, "unknown serialization format %d", int(opts.Format))
	}
	if err != nil {
		return nil, err
	}
	if opts.Compress {
		return gzipCompress(out, opts.CompressionLevel)
	}
	return out, nil
}

// Deserialize decodes data using the format and compression selected by
// opts, returning a fully reconstructed in-memory tree.
func Deserialize(data []byte, opts Options) (*tree.Tree, error) {
	raw := data
	if opts.Compress {
		decompressed, err := gzipDecompress(data)
		if err != nil {
			return nil, err
		}
		raw = decompressed
	}
	switch opts.Format {
	case FormatFast:
		return decodeFast(raw)
	case FormatPortable:
		return decodePortable(raw)
	case FormatCompact:
		return decodeCompact(raw)
	default:
		return nil, tree.Wrapf(tree.ErrInvalidArgument, "unknown serialization format %d", int(opts.Format))
	}
}
