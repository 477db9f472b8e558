package serialize

import (
	"errors"
	"testing"

	"github.com/brindlefield/merkletree/tree"
)

func buildTree(t *testing.T, depth int, leaves ...string) *tree.Tree {
	t.Helper()
	tr, err := tree.New(depth)
	if err != nil {
		t.Fatalf("tree.New(%d): %v", depth, err)
	}
	for _, s := range leaves {
		if _, err := tr.Append([]byte(s)); err != nil {
			t.Fatalf("Append(%q): %v", s, err)
		}
	}
	return tr
}

// Every format round trips, with and without compression.
func TestSerializeDeserializeRoundTripAllFormats(t *testing.T) {
	formats := []Format{FormatFast, FormatPortable, FormatCompact}
	for _, format := range formats {
		for _, compress := range []bool{false, true} {
			tr := buildTree(t, 4, "a", "b", "c", "d", "e")
			opts := Options{Format: format, Compress: compress, CompressionLevel: 6}

			data, err := Serialize(tr, opts)
			if err != nil {
				t.Fatalf("%s compress=%v: Serialize: %v", format, compress, err)
			}
			out, err := Deserialize(data, opts)
			if err != nil {
				t.Fatalf("%s compress=%v: Deserialize: %v", format, compress, err)
			}
			if out.Root() != tr.Root() {
				t.Errorf("%s compress=%v: root mismatch after round trip", format, compress)
			}
			if out.NextIndex() != tr.NextIndex() {
				t.Errorf("%s compress=%v: next_index mismatch: got %d, want %d", format, compress, out.NextIndex(), tr.NextIndex())
			}
			if out.Depth() != tr.Depth() {
				t.Errorf("%s compress=%v: depth mismatch", format, compress)
			}
		}
	}
}

func TestSerializeRoundTripEmptyTree(t *testing.T) {
	for _, format := range []Format{FormatFast, FormatPortable, FormatCompact} {
		tr := buildTree(t, 5)
		data, err := Serialize(tr, Options{Format: format})
		if err != nil {
			t.Fatalf("%s: Serialize: %v", format, err)
		}
		out, err := Deserialize(data, Options{Format: format})
		if err != nil {
			t.Fatalf("%s: Deserialize: %v", format, err)
		}
		if out.Root() != tr.Root() {
			t.Errorf("%s: empty tree root mismatch", format)
		}
	}
}

// Compact encoding carries one index/digest entry per occupied slot: a full
// depth-3 tree encodes eight entries and decodes back to the same root.
func TestCompactEncodingOnlyStoresOccupiedSlots(t *testing.T) {
	tr := buildTree(t, 3, "a", "b", "c", "d", "e", "f", "g", "z")
	if tr.NextIndex() != 8 {
		t.Fatalf("expected full depth-3 tree, next_index=%d", tr.NextIndex())
	}
	data, err := Serialize(tr, Options{Format: FormatCompact})
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	// version, depth, next_index and count take one byte each here, then
	// each entry is a one-byte index varint plus a 32-byte digest.
	if want := 4 + int(tr.NextIndex())*(1+32); len(data) != want {
		t.Fatalf("compact encoding is %d bytes, want %d (one entry per occupied slot)", len(data), want)
	}
	out, err := Deserialize(data, Options{Format: FormatCompact})
	if err != nil {
		t.Fatalf("Deserialize: %v", err)
	}
	if out.Root() != tr.Root() {
		t.Fatalf("root mismatch: got %x, want %x", out.Root(), tr.Root())
	}
}

func TestFastRejectsUnsupportedFormatVersion(t *testing.T) {
	tr := buildTree(t, 3, "a")
	data, err := Serialize(tr, Options{Format: FormatFast})
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	data[0] = 0xFF // corrupt the low byte of format_version
	if _, err := Deserialize(data, Options{Format: FormatFast}); err == nil {
		t.Fatalf("expected error decoding an unsupported format_version")
	}
}

func TestCompactDecodeDetectsDuplicateIndex(t *testing.T) {
	tr := buildTree(t, 3, "a", "b")
	data, err := Serialize(tr, Options{Format: FormatCompact})
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	// force the second leaf's index (a varint at a known offset) to equal
	// the first leaf's index, producing a duplicate.
	corrupted := append([]byte(nil), data...)
	corrupted[len(corrupted)-32-1] = corrupted[len(corrupted)-32-1-33]
	_, err = decodeCompact(corrupted)
	if err == nil {
		t.Fatalf("expected duplicate-index error")
	}
	// a malformed-but-not-tampered payload is InvalidArgument, not
	// Corruption: it changes the CLI exit code (tree.ExitCode) from 2 to 4.
	if !errors.Is(err, tree.ErrInvalidArgument) {
		t.Fatalf("duplicate index should classify as invalid argument, got %v (exit code %d)", err, tree.ExitCode(err))
	}
}

func TestCompactDecodeDetectsIndexOutOfRange(t *testing.T) {
	tr := buildTree(t, 3, "a", "b")
	data, err := Serialize(tr, Options{Format: FormatCompact})
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	// force the second leaf's index past the depth-3 capacity (8); 9 has
	// its continuation bit clear so it still decodes as a single-byte varint.
	corrupted := append([]byte(nil), data...)
	corrupted[len(corrupted)-32-1] = 9
	_, err = decodeCompact(corrupted)
	if err == nil {
		t.Fatalf("expected index-out-of-range error")
	}
	if !errors.Is(err, tree.ErrInvalidArgument) {
		t.Fatalf("out-of-range index should classify as invalid argument, got %v (exit code %d)", err, tree.ExitCode(err))
	}
}

func TestDeserializeUnknownFormat(t *testing.T) {
	if _, err := Deserialize([]byte{0}, Options{Format: Format(99)}); err == nil {
		t.Fatalf("expected error for unknown format")
	}
}

func TestSerializeUnknownFormat(t *testing.T) {
	tr := buildTree(t, 3, "a")
	if _, err := Serialize(tr, Options{Format: Format(99)}); err == nil {
		t.Fatalf("expected error for unknown format")
	}
}
