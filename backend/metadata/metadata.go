// Package metadata implements the fixed-size, atomically-persisted
// metadata record describing a tree's durable state: depth, next_index,
// root and how much of the write-ahead log has already been folded in.
// Atomic persistence follows the write-new-then-rename pattern used by
// Carmen's checkpoint coordinator (backend/utils/checkpoint.go), adapted
// from a two-phase multi-participant commit down to a single fixed-schema
// file.
package metadata

import (
	"encoding/binary"
	"hash/crc32"
	"os"
	"path/filepath"

	"github.com/brindlefield/merkletree/hash"
	"github.com/brindlefield/merkletree/tree"
)

// magic identifies this file as a merkle tree metadata record, guarding
// against accidentally pointing the engine at an unrelated file.
var magic = [4]byte{'M', 'K', 'L', 'T'}

const formatVersion uint16 = 1

// RecordSize is the fixed on-disk width of one metadata record:
// magic(4) | format_version(2) | depth(1) | reserved(1) | next_index(8) |
// root(32) | wal_tail_offset(8) | crc32(4).
const RecordSize = 4 + 2 + 1 + 1 + 8 + hash.Size + 8 + 4

// Record is the durable summary of a persistent tree's state.
type Record struct {
	Depth         uint8
	NextIndex     uint64
	Root          hash.Digest
	WALTailOffset int64
}

func (r Record) encode() [RecordSize]byte {
	var buf [RecordSize]byte
	off := 0
	copy(buf[off:], magic[:])
	off += 4
	binary.LittleEndian.PutUint16(buf[off:], formatVersion)
	off += 2
	buf[off] = r.Depth
	off++
	off++ // reserved padding byte
	binary.LittleEndian.PutUint64(buf[off:], r.NextIndex)
	off += 8
	copy(buf[off:], r.Root[:])
	off += hash.Size
	binary.LittleEndian.PutUint64(buf[off:], uint64(r.WALTailOffset))
	off += 8

	checksum := crc32.ChecksumIEEE(buf[:off])
	binary.LittleEndian.PutUint32(buf[off:], checksum)
	return buf
}

func decode(buf []byte) (Record, error) {
	if len(buf) != RecordSize {
		return Record{}, tree.Wrapf(tree.ErrCorruption, "metadata record is %d bytes, want %d", len(buf), RecordSize)
	}
	off := 0
	if [4]byte(buf[off:off+4]) != magic {
		return Record{}, tree.Wrapf(tree.ErrCorruption, "metadata file has wrong magic %x", buf[off:off+4])
	}
	off += 4
	version := binary.LittleEndian.Uint16(buf[off:])
	off += 2
	if version != formatVersion {
		return Record{}, tree.Wrapf(tree.ErrInvalidArgument, "unsupported metadata format_version %d", version)
	}
	depth := buf[off]
	off++
	off++ // reserved
	nextIndex := binary.LittleEndian.Uint64(buf[off:])
	off += 8
	var root hash.Digest
	copy(root[:], buf[off:off+hash.Size])
	off += hash.Size
	walTail := binary.LittleEndian.Uint64(buf[off:])
	off += 8

	want := crc32.ChecksumIEEE(buf[:off])
	got := binary.LittleEndian.Uint32(buf[off:])
	if got != want {
		return Record{}, tree.Wrapf(tree.ErrCorruption, "metadata crc mismatch: got %08x, want %08x", got, want)
	}

	return Record{Depth: depth, NextIndex: nextIndex, Root: root, WALTailOffset: int64(walTail)}, nil
}

// Load reads and validates the metadata record at path. A missing file is
// reported as os.IsNotExist(err) after unwrapping; callers use that to
// distinguish "never persisted" from a genuine corruption.
func Load(path string) (Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Record{}, err
		}
		return Record{}, tree.Wrap(tree.ErrIO, err)
	}
	return decode(data)
}

// Store persists r atomically: write to a temp file in the same directory,
// fsync it, then rename over path. A crash at any point before the rename
// completes leaves the previous metadata (or none) intact.
func Store(path string, r Record) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".metadata-*.tmp")
	if err != nil {
		return tree.Wrap(tree.ErrIO, err)
	}
	tmpPath := tmp.Name()

	buf := r.encode()
	if _, err := tmp.Write(buf[:]); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return tree.Wrap(tree.ErrIO, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return tree.Wrap(tree.ErrIO, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return tree.Wrap(tree.ErrIO, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return tree.Wrap(tree.ErrIO, err)
	}
	return nil
}
