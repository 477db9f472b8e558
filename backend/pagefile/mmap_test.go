package pagefile

import (
	"path/filepath"
	"testing"

	"github.com/brindlefield/merkletree/hash"
)

func TestHotRegionReadWriteRoundTrip(t *testing.T) {
	dir := t.TempDir()
	f, err := Open(filepath.Join(dir, "data"), SlotSize*4)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer f.Close()

	regionLen := SlotSize * 4
	if err := f.Truncate(int64(regionLen)); err != nil {
		t.Fatalf("Truncate: %v", err)
	}

	region, err := MapHotRegion(f, regionLen)
	if err != nil {
		t.Fatalf("MapHotRegion: %v", err)
	}
	defer region.Close()

	if !region.Covers(3) {
		t.Fatalf("region should cover index 3")
	}
	if region.Covers(4) {
		t.Fatalf("region should not cover index 4 beyond its length")
	}

	want := hash.Leaf([]byte("mapped"))
	region.WriteSlot(1, want)
	present, got := region.ReadSlot(1)
	if !present || got != want {
		t.Fatalf("mmap round trip mismatch: present=%v got=%x want=%x", present, got, want)
	}
	if err := region.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
}

func TestMapHotRegionRejectsMisalignedLength(t *testing.T) {
	dir := t.TempDir()
	f, err := Open(filepath.Join(dir, "data"), SlotSize*4)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer f.Close()
	if err := f.Truncate(int64(SlotSize * 4)); err != nil {
		t.Fatalf("Truncate: %v", err)
	}
	if _, err := MapHotRegion(f, SlotSize+1); err == nil {
		t.Fatalf("expected error for misaligned hot region length")
	}
}

func TestMapHotRegionRejectsLengthBeyondFileSize(t *testing.T) {
	dir := t.TempDir()
	f, err := Open(filepath.Join(dir, "data"), SlotSize*4)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer f.Close()
	if _, err := MapHotRegion(f, SlotSize*4); err == nil {
		t.Fatalf("expected error mapping beyond an empty file")
	}
}
