package pagecache

import (
	"bytes"
	"fmt"
	"testing"
)

type memSource struct {
	pageSize int
	pages    map[PageID][]byte
	writes   []PageID
}

func newMemSource(pageSize int) *memSource {
	return &memSource{pageSize: pageSize, pages: make(map[PageID][]byte)}
}

func (m *memSource) ReadPage(id PageID, buf []byte) error {
	if p, ok := m.pages[id]; ok {
		copy(buf, p)
		return nil
	}
	return nil // reading an unwritten page returns zeroed bytes
}

func (m *memSource) WritePage(id PageID, buf []byte) error {
	cp := make([]byte, len(buf))
	copy(cp, buf)
	m.pages[id] = cp
	m.writes = append(m.writes, id)
	return nil
}

func TestGetLoadsFromSourceOnMiss(t *testing.T) {
	src := newMemSource(16)
	src.pages[3] = bytes.Repeat([]byte{0x7A}, 16)
	c := New(src, 16, 4)

	got, err := c.Get(3)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !bytes.Equal(got, src.pages[3]) {
		t.Fatalf("got %x, want %x", got, src.pages[3])
	}
}

func TestPutThenGetSeesUncommittedWrite(t *testing.T) {
	src := newMemSource(8)
	c := New(src, 8, 4)

	if err := c.Put(1, []byte("abcdefgh")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, err := c.Get(1)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != "abcdefgh" {
		t.Fatalf("got %q", got)
	}
	if len(src.writes) != 0 {
		t.Fatalf("dirty page should not be written back before Flush or eviction, got writes=%v", src.writes)
	}
}

func TestFlushWritesDirtyPagesInAscendingOrder(t *testing.T) {
	src := newMemSource(4)
	c := New(src, 4, 8)

	for _, id := range []PageID{5, 1, 3} {
		if err := c.Put(id, []byte(fmt.Sprintf("p%02d", id))); err != nil {
			t.Fatalf("Put(%d): %v", id, err)
		}
	}
	if err := c.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	want := []PageID{1, 3, 5}
	if len(src.writes) != len(want) {
		t.Fatalf("writes = %v, want %v", src.writes, want)
	}
	for i, id := range want {
		if src.writes[i] != id {
			t.Errorf("writes[%d] = %d, want %d", i, src.writes[i], id)
		}
	}
}

func TestEvictionWritesBackDirtyPage(t *testing.T) {
	src := newMemSource(4)
	c := New(src, 4, 1) // capacity 1: every new page evicts the previous one

	if err := c.Put(1, []byte("aaaa")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := c.Put(2, []byte("bbbb")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if len(src.writes) != 1 || src.writes[0] != 1 {
		t.Fatalf("expected page 1 written back on eviction, got %v", src.writes)
	}
}

func TestEvictionSkipsCleanPage(t *testing.T) {
	src := newMemSource(4)
	src.pages[1] = []byte("aaaa")
	c := New(src, 4, 1)

	if _, err := c.Get(1); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if _, err := c.Get(2); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(src.writes) != 0 {
		t.Fatalf("clean page should not be written back on eviction, got %v", src.writes)
	}
}

func TestInvalidateDropsWithoutWriteBack(t *testing.T) {
	src := newMemSource(4)
	c := New(src, 4, 4)

	if err := c.Put(1, []byte("aaaa")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	c.Invalidate(1)
	if len(src.writes) != 0 {
		t.Fatalf("invalidate must not write back, got %v", src.writes)
	}
	got, err := c.Get(1)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !bytes.Equal(got, make([]byte, 4)) {
		t.Fatalf("expected zeroed page after invalidate+miss, got %x", got)
	}
}

func TestTouchPromotesRecentlyUsedPage(t *testing.T) {
	src := newMemSource(4)
	c := New(src, 4, 2)

	c.Put(1, []byte("aaaa"))
	c.Put(2, []byte("bbbb"))
	// touch page 1 so page 2 becomes the least-recently-used entry
	if _, err := c.Get(1); err != nil {
		t.Fatalf("Get: %v", err)
	}
	c.Put(3, []byte("cccc")) // should evict page 2, not page 1

	if len(src.writes) != 1 || src.writes[0] != 2 {
		t.Fatalf("expected page 2 evicted, got writes=%v", src.writes)
	}
}
