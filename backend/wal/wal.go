package wal

import (
	"os"
	"sync"

	"github.com/brindlefield/merkletree/hash"
	"github.com/brindlefield/merkletree/tree"
)

// WAL is the append-only write-ahead log file. Every Append is fsynced
// before it returns, so a caller that has received a nil error from
// Append knows the record is durable even if the process dies immediately
// afterward.
type WAL struct {
	mu           sync.Mutex
	f            *os.File
	size         int64
	nextSequence uint64
}

// Open opens or creates the WAL at path, replays it to find the sequence
// number to resume from, and discards any trailing bytes left by a torn
// write that was in flight when the process last stopped. It returns the
// WAL ready for further Append calls together with every valid record
// found, in order, for the caller to fold into recovery.
func Open(path string) (*WAL, []Record, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		return nil, nil, tree.Wrap(tree.ErrIO, err)
	}

	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, nil, tree.Wrap(tree.ErrIO, err)
	}

	content := make([]byte, info.Size())
	if _, err := f.ReadAt(content, 0); err != nil && info.Size() > 0 {
		_ = f.Close()
		return nil, nil, tree.Wrap(tree.ErrIO, err)
	}

	var records []Record
	var validSize int64
	var expected uint64
	for off := int64(0); off+RecordSize <= int64(len(content)); off += RecordSize {
		rec, err := DecodeRecord(content[off : off+RecordSize])
		if err != nil {
			break // CRC failure: a torn tail write from an interrupted crash.
		}
		if rec.Sequence != expected {
			break // sequence gap: also treated as a torn/out-of-order tail.
		}
		records = append(records, rec)
		validSize = off + RecordSize
		expected++
	}

	if validSize < int64(len(content)) {
		if err := f.Truncate(validSize); err != nil {
			_ = f.Close()
			return nil, nil, tree.Wrap(tree.ErrIO, err)
		}
	}

	return &WAL{f: f, size: validSize, nextSequence: expected}, records, nil
}

// Append writes and fsyncs one record, returning it with its assigned
// sequence number filled in.
func (w *WAL) Append(kind Kind, index uint64, digest hash.Digest) (Record, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	rec := Record{Sequence: w.nextSequence, Kind: kind, Index: index, Digest: digest}
	buf := rec.Encode()
	if _, err := w.f.WriteAt(buf[:], w.size); err != nil {
		return Record{}, tree.Wrap(tree.ErrIO, err)
	}
	if err := w.f.Sync(); err != nil {
		return Record{}, tree.Wrap(tree.ErrIO, err)
	}
	w.size += RecordSize
	w.nextSequence++
	return rec, nil
}

// TailOffset returns the current end-of-log byte offset, the value
// recorded as wal_tail_offset in the metadata record on the next sync.
func (w *WAL) TailOffset() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.size
}

// Truncate drops the WAL down to zero length after its contents have been
// safely folded into a synced data file and metadata record. It resets the
// sequence counter to 0 along with the file, since Open always validates a
// WAL's first physical record against an expected sequence of 0: leaving
// nextSequence unreset would make the very next Append, once durably
// written at offset 0, look like a sequence gap on the next crash-and-reopen
// and be discarded as a torn tail. Truncate is otherwise a best-effort
// cleanup - recovery does not depend on it having succeeded, since replay
// skips appends below the tree's persisted next_index and re-applies
// updates in log order.
func (w *WAL) Truncate() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.f.Truncate(0); err != nil {
		return tree.Wrap(tree.ErrIO, err)
	}
	w.size = 0
	w.nextSequence = 0
	return nil
}

// Close closes the underlying file handle.
func (w *WAL) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.f.Close(); err != nil {
		return tree.Wrap(tree.ErrIO, err)
	}
	return nil
}
