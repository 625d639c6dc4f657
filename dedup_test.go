package smartfs

import (
	"os"
	"path/filepath"
	"testing"
)

// createTestImage creates and sizes a fresh image file with room for
// totalBlocks blocks, per the same format-time sizing Attach performs.
func createTestImage(t *testing.T, path string, totalBlocks uint64) *os.File {
	t.Helper()
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		t.Fatalf("open image: %v", err)
	}
	if err := f.Truncate(int64(totalBlocks) * BlockSize); err != nil {
		t.Fatalf("truncate image: %v", err)
	}
	return f
}

func newTestDedupIndex(t *testing.T) *dedupIndex {
	t.Helper()
	f := createTestImage(t, filepath.Join(t.TempDir(), "image"), 8192)
	t.Cleanup(func() { f.Close() })
	dev := attachBlockDevice(f)
	sb := newSuperblock(dev, 8192)
	if err := sb.save(); err != nil {
		t.Fatalf("save: %v", err)
	}
	idx, err := loadDedupIndex(sb)
	if err != nil {
		t.Fatalf("loadDedupIndex: %v", err)
	}
	return idx
}

func TestDedupLookupInsertRoundtrip(t *testing.T) {
	idx := newTestDedupIndex(t)
	digest := fingerprint([]byte("hello world"))

	if _, ok := idx.lookup(digest); ok {
		t.Fatal("lookup on empty index should miss")
	}
	if err := idx.insert(digest, 55, 11); err != nil {
		t.Fatalf("insert: %v", err)
	}
	block, ok := idx.lookup(digest)
	if !ok || block != 55 {
		t.Errorf("lookup after insert = (%d, %v), want (55, true)", block, ok)
	}
}

func TestDedupInsertIsIdempotent(t *testing.T) {
	idx := newTestDedupIndex(t)
	digest := fingerprint([]byte("same content"))
	if err := idx.insert(digest, 10, 5); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := idx.insert(digest, 999, 5); err != nil {
		t.Fatalf("second insert: %v", err)
	}
	block, _ := idx.lookup(digest)
	if block != 10 {
		t.Errorf("second insert changed the block mapping: got %d, want 10 (first insert wins)", block)
	}
}

func TestDedupRefCounting(t *testing.T) {
	idx := newTestDedupIndex(t)
	digest := fingerprint([]byte("ref counted"))
	if err := idx.insert(digest, 1, 1); err != nil {
		t.Fatalf("insert: %v", err)
	}
	idx.incRef(digest)
	idx.incRef(digest)
	slot := idx.byHash[hashKey(digest)]
	if idx.records[slot].RefCount != 3 {
		t.Errorf("RefCount = %d, want 3 (1 initial + 2 incRef)", idx.records[slot].RefCount)
	}
	idx.decRef(digest)
	if idx.records[slot].RefCount != 2 {
		t.Errorf("RefCount after decRef = %d, want 2", idx.records[slot].RefCount)
	}
}

func TestDedupCapacityExhausted(t *testing.T) {
	idx := newTestDedupIndex(t)
	for i := 0; i < DedupCapacity; i++ {
		digest := fingerprint([]byte{byte(i), byte(i >> 8)})
		if err := idx.insert(digest, uint64(i+1), 1); err != nil {
			t.Fatalf("insert #%d: %v", i, err)
		}
	}
	overflow := fingerprint([]byte("one too many"))
	if err := idx.insert(overflow, 99999, 1); err != ErrNoSpace {
		t.Errorf("insert beyond capacity err = %v, want ErrNoSpace", err)
	}
}

func TestDedupIndexPersistsAcrossReload(t *testing.T) {
	dir := t.TempDir()
	imgPath := filepath.Join(dir, "image")
	f := createTestImage(t, imgPath, 8192)
	dev := attachBlockDevice(f)
	sb := newSuperblock(dev, 8192)
	if err := sb.save(); err != nil {
		t.Fatalf("save: %v", err)
	}

	idx, err := loadDedupIndex(sb)
	if err != nil {
		t.Fatalf("loadDedupIndex: %v", err)
	}
	digest := fingerprint([]byte("persisted"))
	if err := idx.insert(digest, 77, 3); err != nil {
		t.Fatalf("insert: %v", err)
	}
	f.Close()

	f2, err := os.OpenFile(imgPath, os.O_RDWR, 0o600)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	t.Cleanup(func() { f2.Close() })
	dev2 := attachBlockDevice(f2)
	sb2, err := loadSuperblock(dev2)
	if err != nil {
		t.Fatalf("loadSuperblock: %v", err)
	}
	idx2, err := loadDedupIndex(sb2)
	if err != nil {
		t.Fatalf("loadDedupIndex (reload): %v", err)
	}
	block, ok := idx2.lookup(digest)
	if !ok || block != 77 {
		t.Errorf("reloaded lookup = (%d, %v), want (77, true)", block, ok)
	}
}
