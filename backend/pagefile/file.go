package pagefile

import (
	"io"
	"os"
	"sync"

	"github.com/brindlefield/merkletree/backend/pagecache"
	"github.com/brindlefield/merkletree/hash"
	"github.com/brindlefield/merkletree/tree"
)

// File is the authoritative on-disk data file: a flat sequence of leaf
// slots grouped into fixed-size pages. It implements pagecache.Source so a
// pagecache.Cache can sit in front of it, and it also supports direct
// unbuffered slot access for the recovery path, which must bypass the
// cache entirely.
type File struct {
	mu           sync.Mutex
	f            *os.File
	pageSize     int
	slotsPerPage int
}

// Open opens or creates the data file at path. pageSize must be a positive
// multiple of SlotSize so that slots never straddle a page boundary.
func Open(path string, pageSize int) (*File, error) {
	if pageSize <= 0 || pageSize%SlotSize != 0 {
		return nil, tree.Wrapf(tree.ErrInvalidArgument, "page size %d must be a positive multiple of slot size %d", pageSize, SlotSize)
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		return nil, tree.Wrap(tree.ErrIO, err)
	}
	return &File{f: f, pageSize: pageSize, slotsPerPage: pageSize / SlotSize}, nil
}

// PageSize returns the configured page size in bytes.
func (fl *File) PageSize() int { return fl.pageSize }

// SlotsPerPage returns how many slots fit in one page.
func (fl *File) SlotsPerPage() int { return fl.slotsPerPage }

// SlotLocation returns the page id and byte offset within that page for a
// leaf index.
func (fl *File) SlotLocation(index uint64) (pagecache.PageID, int) {
	page := index / uint64(fl.slotsPerPage)
	offset := int(index%uint64(fl.slotsPerPage)) * SlotSize
	return pagecache.PageID(page), offset
}

// ReadPage implements pagecache.Source. A page never written to disk reads
// back as all-zero slots (every leaf absent), matching a freshly extended
// sparse file.
func (fl *File) ReadPage(id pagecache.PageID, buf []byte) error {
	fl.mu.Lock()
	defer fl.mu.Unlock()

	off := int64(id) * int64(fl.pageSize)
	n, err := fl.f.ReadAt(buf, off)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return tree.Wrap(tree.ErrIO, err)
	}
	for i := n; i < len(buf); i++ {
		buf[i] = 0
	}
	return nil
}

// WritePage implements pagecache.Source.
func (fl *File) WritePage(id pagecache.PageID, buf []byte) error {
	fl.mu.Lock()
	defer fl.mu.Unlock()

	off := int64(id) * int64(fl.pageSize)
	if _, err := fl.f.WriteAt(buf, off); err != nil {
		return tree.Wrap(tree.ErrIO, err)
	}
	return nil
}

// ReadSlotDirect reads one slot straight from disk, bypassing any page
// cache. Recovery uses this to rescan the file without disturbing a
// possibly-stale in-memory cache.
func (fl *File) ReadSlotDirect(index uint64) (present bool, digest hash.Digest, err error) {
	fl.mu.Lock()
	defer fl.mu.Unlock()

	var buf [SlotSize]byte
	off := int64(index) * int64(SlotSize)
	n, readErr := fl.f.ReadAt(buf[:], off)
	if readErr != nil && readErr != io.EOF && readErr != io.ErrUnexpectedEOF {
		return false, hash.Digest{}, tree.Wrap(tree.ErrIO, readErr)
	}
	if n < SlotSize {
		return false, hash.Digest{}, nil
	}
	present, digest = DecodeSlot(buf[:])
	return present, digest, nil
}

// WriteSlotDirect writes one slot straight to disk, bypassing the page
// cache. It is used for the compact rewrite.
func (fl *File) WriteSlotDirect(index uint64, digest hash.Digest) error {
	fl.mu.Lock()
	defer fl.mu.Unlock()

	slot := EncodeSlot(true, digest)
	off := int64(index) * int64(SlotSize)
	if _, err := fl.f.WriteAt(slot[:], off); err != nil {
		return tree.Wrap(tree.ErrIO, err)
	}
	return nil
}

// Size returns the current on-disk file size in bytes.
func (fl *File) Size() (int64, error) {
	fl.mu.Lock()
	defer fl.mu.Unlock()
	info, err := fl.f.Stat()
	if err != nil {
		return 0, tree.Wrap(tree.ErrIO, err)
	}
	return info.Size(), nil
}

// Sync flushes the file's contents to durable storage.
func (fl *File) Sync() error {
	fl.mu.Lock()
	defer fl.mu.Unlock()
	if err := fl.f.Sync(); err != nil {
		return tree.Wrap(tree.ErrIO, err)
	}
	return nil
}

// Truncate resizes the underlying file, used to grow the data file to the
// length of the memory-mapped hot region before mapping it.
func (fl *File) Truncate(size int64) error {
	fl.mu.Lock()
	defer fl.mu.Unlock()
	if err := fl.f.Truncate(size); err != nil {
		return tree.Wrap(tree.ErrIO, err)
	}
	return nil
}

// Close closes the underlying file handle.
func (fl *File) Close() error {
	fl.mu.Lock()
	defer fl.mu.Unlock()
	if err := fl.f.Close(); err != nil {
		return tree.Wrap(tree.ErrIO, err)
	}
	return nil
}

// Name returns the path the file was opened with.
func (fl *File) Name() string {
	return fl.f.Name()
}
