// Package wal implements the append-only write-ahead log: every mutation
// is durably recorded here before it becomes visible in the data file or
// metadata. Record framing follows the manual encoding/binary style used
// throughout the retrieval pack's on-disk formats, with a CRC32 trailer
// (hash/crc32, standard library - no third-party CRC32 implementation
// appears anywhere in the pack) guarding against a torn write on crash.
package wal

import (
	"encoding/binary"
	"hash/crc32"

	"github.com/brindlefield/merkletree/hash"
	"github.com/brindlefield/merkletree/tree"
)

// Kind tags what a WAL record represents.
type Kind uint8

const (
	KindAppend Kind = 1
	KindUpdate Kind = 2
)

func (k Kind) String() string {
	switch k {
	case KindAppend:
		return "append"
	case KindUpdate:
		return "update"
	default:
		return "unknown"
	}
}

// RecordSize is the fixed on-disk width of one WAL record:
// sequence(8) | kind(1) | index(8) | digest(32) | crc32(4).
const RecordSize = 8 + 1 + 8 + hash.Size + 4

// Record is one durable log entry.
type Record struct {
	Sequence uint64
	Kind     Kind
	Index    uint64
	Digest   hash.Digest
}

// Encode lays out r in its fixed on-disk format, with the CRC32 trailer
// covering every preceding byte.
func (r Record) Encode() [RecordSize]byte {
	var buf [RecordSize]byte
	off := 0
	binary.LittleEndian.PutUint64(buf[off:], r.Sequence)
	off += 8
	buf[off] = byte(r.Kind)
	off++
	binary.LittleEndian.PutUint64(buf[off:], r.Index)
	off += 8
	copy(buf[off:], r.Digest[:])
	off += hash.Size

	checksum := crc32.ChecksumIEEE(buf[:off])
	binary.LittleEndian.PutUint32(buf[off:], checksum)
	return buf
}

// DecodeRecord parses and CRC-validates one record. It fails with
// ErrCorruption if buf is too short or the trailer does not match.
func DecodeRecord(buf []byte) (Record, error) {
	if len(buf) < RecordSize {
		return Record{}, tree.Wrapf(tree.ErrCorruption, "wal record too short: %d bytes", len(buf))
	}
	off := 0
	sequence := binary.LittleEndian.Uint64(buf[off:])
	off += 8
	kind := Kind(buf[off])
	off++
	index := binary.LittleEndian.Uint64(buf[off:])
	off += 8
	var digest hash.Digest
	copy(digest[:], buf[off:off+hash.Size])
	off += hash.Size

	want := crc32.ChecksumIEEE(buf[:off])
	got := binary.LittleEndian.Uint32(buf[off:])
	if got != want {
		return Record{}, tree.Wrapf(tree.ErrCorruption, "wal record crc mismatch: got %08x, want %08x", got, want)
	}

	return Record{Sequence: sequence, Kind: kind, Index: index, Digest: digest}, nil
}
