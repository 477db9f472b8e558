// Package persist composes the in-memory tree with a data file, page
// cache, optional memory-mapped hot region, write-ahead log and metadata
// record into a crash-durable tree that exposes the same logical API as
// package tree, plus sync, compact and close. A single sync.RWMutex
// guards the logical tree; writes to the data file and WAL happen under
// its exclusive hold, following the "one rwlock for tree-state decisions,
// file mutexes only for low-level I/O" discipline Carmen's page pool and
// paged array types use internally.
package persist

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/brindlefield/merkletree/backend/metadata"
	"github.com/brindlefield/merkletree/backend/pagecache"
	"github.com/brindlefield/merkletree/backend/pagefile"
	"github.com/brindlefield/merkletree/backend/wal"
	"github.com/brindlefield/merkletree/config"
	"github.com/brindlefield/merkletree/hash"
	"github.com/brindlefield/merkletree/serialize"
	"github.com/brindlefield/merkletree/tree"
)

const (
	dataFileName = "data.bin"
	metaFileName = "meta.bin"
	walFileName  = "wal.log"
)

// Tree is a durable, disk-backed Merkle tree.
type Tree struct {
	mu  sync.RWMutex
	cfg config.Config

	lock *dirLock
	meta string

	inner *tree.Tree
	file  *pagefile.File
	cache *pagecache.Cache
	hot   *pagefile.HotRegion
	log   *wal.WAL
}

// Open opens the tree at cfg.Directory, creating it if absent, and
// recovers to a consistent state by replaying the data file, then any WAL
// records not yet reflected in the last synced metadata.
func Open(cfg config.Config) (*Tree, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cfg.Directory, 0o700); err != nil {
		return nil, tree.Wrap(tree.ErrIO, err)
	}

	lock, err := acquireDirLock(cfg.Directory)
	if err != nil {
		return nil, err
	}

	t, err := openLocked(cfg, lock)
	if err != nil {
		_ = lock.release()
		return nil, err
	}
	return t, nil
}

func openLocked(cfg config.Config, lock *dirLock) (*Tree, error) {
	dataPath := filepath.Join(cfg.Directory, dataFileName)
	metaPath := filepath.Join(cfg.Directory, metaFileName)
	walPath := filepath.Join(cfg.Directory, walFileName)

	file, err := pagefile.Open(dataPath, cfg.PageSizeBytes)
	if err != nil {
		return nil, err
	}

	// A missing metadata file and an unreadable one (bad magic, wrong
	// format_version, CRC mismatch) are recovered the same way: rebuild an
	// empty tree and let WAL replay and the data file rescan reconstruct
	// whatever was durable. Metadata is a cache of already-durable state,
	// never its sole source of truth, so losing it is never fatal to Open.
	rec, err := metadata.Load(metaPath)
	fresh := err != nil
	if fresh {
		rec = metadata.Record{Depth: cfg.Depth, NextIndex: 0, Root: hash.Digest{}}
	} else if rec.Depth != cfg.Depth {
		_ = file.Close()
		return nil, tree.Wrapf(tree.ErrInvalidArgument, "directory was opened with depth %d, config requests depth %d", rec.Depth, cfg.Depth)
	}

	inner, err := tree.New(int(cfg.Depth))
	if err != nil {
		_ = file.Close()
		return nil, err
	}

	count := rec.NextIndex
	if fresh {
		// rescan the data file for its dense prefix of present slots
		for count < inner.Capacity() {
			present, _, err := file.ReadSlotDirect(count)
			if err != nil {
				_ = file.Close()
				return nil, err
			}
			if !present {
				break
			}
			count++
		}
	}
	if err := loadLeavesFromFile(inner, file, count); err != nil {
		_ = file.Close()
		return nil, err
	}
	if !fresh && inner.Root() != rec.Root {
		_ = file.Close()
		return nil, tree.Wrapf(tree.ErrCorruption, "data file root %x does not match last synced metadata root %x", inner.Root(), rec.Root)
	}

	cache := pagecache.New(file, cfg.PageSizeBytes, cfg.CachePages())

	t := &Tree{
		cfg:   cfg,
		lock:  lock,
		meta:  metaPath,
		inner: inner,
		file:  file,
		cache: cache,
	}

	if cfg.WALEnabled {
		w, records, err := wal.Open(walPath)
		if err != nil {
			_ = file.Close()
			return nil, err
		}
		t.log = w
		if err := t.replayWAL(records); err != nil {
			_ = w.Close()
			_ = file.Close()
			return nil, err
		}
	}

	if cfg.MmapBytes > 0 {
		if err := t.ensureHotRegion(); err != nil {
			t.closeFiles()
			return nil, err
		}
	}

	return t, nil
}

// loadLeavesFromFile replays the first count slots of the data file
// directly, bypassing the page cache, into a freshly constructed tree.
func loadLeavesFromFile(inner *tree.Tree, file *pagefile.File, count uint64) error {
	for i := uint64(0); i < count; i++ {
		present, digest, err := file.ReadSlotDirect(i)
		if err != nil {
			return err
		}
		if !present {
			return tree.Wrapf(tree.ErrCorruption, "data file is missing leaf %d, but metadata declares next_index %d", i, count)
		}
		if _, err := inner.AppendDigest(digest); err != nil {
			return tree.Wrap(tree.ErrCorruption, err)
		}
	}
	return nil
}

// replayWAL applies WAL records past the tree's current state. Replay is
// idempotent by construction: an append whose index is already below
// next_index has already been folded into the data file and is skipped, so
// re-running it after a crash between "WAL fsync" and "WAL truncate" is
// always safe.
func (t *Tree) replayWAL(records []wal.Record) error {
	for _, rec := range records {
		switch rec.Kind {
		case wal.KindAppend:
			switch {
			case rec.Index < t.inner.NextIndex():
				continue // already applied to the data file
			case rec.Index == t.inner.NextIndex():
				if _, err := t.inner.AppendDigest(rec.Digest); err != nil {
					return tree.Wrap(tree.ErrCorruption, err)
				}
				if err := t.writeSlot(rec.Index, rec.Digest); err != nil {
					return err
				}
			default:
				return tree.Wrapf(tree.ErrCorruption, "wal append at index %d skips ahead of next_index %d", rec.Index, t.inner.NextIndex())
			}
		case wal.KindUpdate:
			if rec.Index >= t.inner.NextIndex() {
				return tree.Wrapf(tree.ErrCorruption, "wal update at index %d precedes its own append", rec.Index)
			}
			if err := t.inner.UpdateDigest(rec.Index, rec.Digest); err != nil {
				return tree.Wrap(tree.ErrCorruption, err)
			}
			if err := t.writeSlot(rec.Index, rec.Digest); err != nil {
				return err
			}
		default:
			return tree.Wrapf(tree.ErrCorruption, "unknown wal record kind %d", rec.Kind)
		}
	}
	return nil
}

// ensureHotRegion (re)maps the configured hot region length, growing the
// data file first if it is not yet that large.
func (t *Tree) ensureHotRegion() error {
	if t.hot != nil {
		_ = t.hot.Close()
		t.hot = nil
	}
	size, err := t.file.Size()
	if err != nil {
		return err
	}
	if size < int64(t.cfg.MmapBytes) {
		if err := t.file.Truncate(int64(t.cfg.MmapBytes)); err != nil {
			return err
		}
	}
	hot, err := pagefile.MapHotRegion(t.file, t.cfg.MmapBytes)
	if err != nil {
		return err
	}
	t.hot = hot
	return nil
}

// writeSlot places digest at index's slot: through the mmap hot
// region when the index falls within it (invalidating the page cache's
// copy of that page so it never serves stale bytes), otherwise through a
// read-modify-write against the cached page.
func (t *Tree) writeSlot(index uint64, digest hash.Digest) error {
	pageID, offset := t.file.SlotLocation(index)
	if t.hot != nil && t.hot.Covers(index) {
		t.hot.WriteSlot(index, digest)
		t.cache.Invalidate(pageID)
		return nil
	}
	page, err := t.cache.Get(pageID)
	if err != nil {
		return err
	}
	slot := pagefile.EncodeSlot(true, digest)
	copy(page[offset:offset+pagefile.SlotSize], slot[:])
	return t.cache.Put(pageID, page)
}

// Depth returns the tree's fixed depth.
func (t *Tree) Depth() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.inner.Depth()
}

// NextIndex returns the count of leaves ever appended.
func (t *Tree) NextIndex() uint64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.inner.NextIndex()
}

// Root returns the current root digest.
func (t *Tree) Root() hash.Digest {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.inner.Root()
}

// Leaf returns the digest at index and whether it has been populated.
func (t *Tree) Leaf(index uint64) (hash.Digest, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.inner.Leaf(index)
}

// Prove builds the inclusion proof for index.
func (t *Tree) Prove(index uint64) (tree.Proof, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.inner.Prove(index)
}

// Append hashes data, durably logs it to the WAL (if enabled), then
// applies it to the in-memory tree and the data file, in that order.
func (t *Tree) Append(data []byte) (uint64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.inner.NextIndex() == t.inner.Capacity() {
		return 0, tree.Wrapf(tree.ErrCapacityExceeded, "tree at depth %d is full (capacity %d)", t.inner.Depth(), t.inner.Capacity())
	}
	digest := hash.Leaf(data)
	index := t.inner.NextIndex()

	if t.log != nil {
		if _, err := t.log.Append(wal.KindAppend, index, digest); err != nil {
			return 0, err
		}
	}
	if _, err := t.inner.AppendDigest(digest); err != nil {
		return 0, err
	}
	if err := t.writeSlot(index, digest); err != nil {
		return 0, err
	}
	return index, nil
}

// Update replaces the digest at an already-appended index, WAL-first.
func (t *Tree) Update(index uint64, data []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if index >= t.inner.NextIndex() {
		return tree.Wrapf(tree.ErrInvalidArgument, "update index %d is not less than next_index %d", index, t.inner.NextIndex())
	}
	digest := hash.Leaf(data)

	if t.log != nil {
		if _, err := t.log.Append(wal.KindUpdate, index, digest); err != nil {
			return err
		}
	}
	if err := t.inner.UpdateDigest(index, digest); err != nil {
		return err
	}
	return t.writeSlot(index, digest)
}

// Sync flushes the page cache, syncs the data file, atomically writes a
// new metadata record, and truncates the WAL now that its contents are
// durably reflected on disk.
func (t *Tree) Sync() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.syncLocked()
}

func (t *Tree) syncLocked() error {
	if err := t.cache.Flush(); err != nil {
		return err
	}
	if t.hot != nil {
		if err := t.hot.Flush(); err != nil {
			return err
		}
	}
	if err := t.file.Sync(); err != nil {
		return err
	}

	var walTail int64
	if t.log != nil {
		walTail = t.log.TailOffset()
	}
	rec := metadata.Record{
		Depth:         uint8(t.inner.Depth()),
		NextIndex:     t.inner.NextIndex(),
		Root:          t.inner.Root(),
		WALTailOffset: walTail,
	}
	if err := metadata.Store(t.meta, rec); err != nil {
		return err
	}
	if t.log != nil {
		if err := t.log.Truncate(); err != nil {
			return err
		}
	}
	return nil
}

// Compact rewrites the data file densely from the in-memory tree's current
// leaves and truncates the WAL, reclaiming space left by pages that never
// held any occupied slot. It is crash-safe via write-new-then-rename: a
// crash mid-compact leaves the previous data file untouched.
func (t *Tree) Compact() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	dataPath := t.file.Name()
	tmpPath := dataPath + ".compact.tmp"

	tmp, err := pagefile.Open(tmpPath, t.cfg.PageSizeBytes)
	if err != nil {
		return err
	}
	for i, digest := range t.inner.LeafDigests() {
		if err := tmp.WriteSlotDirect(uint64(i), digest); err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmpPath)
			return err
		}
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}

	if t.hot != nil {
		_ = t.hot.Close()
		t.hot = nil
	}
	if err := t.file.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, dataPath); err != nil {
		return tree.Wrap(tree.ErrIO, err)
	}

	file, err := pagefile.Open(dataPath, t.cfg.PageSizeBytes)
	if err != nil {
		return err
	}
	t.file = file
	t.cache = pagecache.New(file, t.cfg.PageSizeBytes, t.cfg.CachePages())
	if t.cfg.MmapBytes > 0 {
		if err := t.ensureHotRegion(); err != nil {
			return err
		}
	}

	return t.syncLocked()
}

// Serialize encodes the current tree state per opts.
func (t *Tree) Serialize(opts serialize.Options) ([]byte, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return serialize.Serialize(t.inner, opts)
}

// Close syncs, releases the directory lock, and closes every open file.
func (t *Tree) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	syncErr := t.syncLocked()
	closeErr := t.closeAll()
	if syncErr != nil {
		return syncErr
	}
	return closeErr
}

// closeAll closes every open file handle and releases the directory lock.
// Used by Close, where the lock must be released exactly once.
func (t *Tree) closeAll() error {
	first := t.closeFiles()
	if err := t.lock.release(); err != nil && first == nil {
		first = err
	}
	return first
}

// closeFiles closes file handles without touching the directory lock. Used
// by Open's own error paths, where the caller (Open) owns releasing the
// lock exactly once.
func (t *Tree) closeFiles() error {
	var first error
	record := func(err error) {
		if err != nil && first == nil {
			first = err
		}
	}
	if t.hot != nil {
		record(t.hot.Close())
		t.hot = nil
	}
	if t.log != nil {
		record(t.log.Close())
	}
	record(t.file.Close())
	return first
}
