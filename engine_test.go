package smartfs

import (
	"bytes"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

// newTestEngine attaches a fresh Engine against temp-dir-backed files, per
// SPEC_FULL.md §6/§8's "tests instantiate fresh engines against fresh
// temporary images" guidance.
func newTestEngine(t *testing.T, opts ...EngineOption) *Engine {
	t.Helper()
	dir := t.TempDir()
	base := []EngineOption{
		WithImageSize(8192),
		WithPhysicalStorePaths(filepath.Join(dir, "smartfs.data"), filepath.Join(dir, "smartfs.idx")),
		WithL2CachePath(filepath.Join(dir, "smartfs_l2.cache")),
		WithWALPath(filepath.Join(dir, "smartfs.wal")),
		WithCacheCapacity(8, 16),
	}
	e, err := Attach(filepath.Join(dir, "image.smartfs"), append(base, opts...)...)
	if err != nil {
		t.Fatalf("Attach: %v", err)
	}
	t.Cleanup(func() { e.Close() })
	return e
}

// Scenario 1 (spec.md §8): two files writing identical content dedup onto
// the same physical block.
func TestScenarioDedup(t *testing.T) {
	e := newTestEngine(t)

	a, err := e.Create("/a", 0o644)
	if err != nil {
		t.Fatalf("Create /a: %v", err)
	}
	n, blockA, err := e.SmartWrite(a, 0, []byte("HELLOHELLO"))
	if err != nil {
		t.Fatalf("SmartWrite /a: %v", err)
	}
	if n != 10 {
		t.Fatalf("wrote %d bytes, want 10", n)
	}

	b, err := e.Create("/b", 0o644)
	if err != nil {
		t.Fatalf("Create /b: %v", err)
	}
	n, blockB, err := e.SmartWrite(b, 0, []byte("HELLOHELLO"))
	if err != nil {
		t.Fatalf("SmartWrite /b: %v", err)
	}
	if n != 10 {
		t.Fatalf("wrote %d bytes, want 10", n)
	}
	if blockB != blockA {
		t.Errorf("dedup failed: block A=%d block B=%d, want equal", blockA, blockB)
	}

	report := e.stats.report(0)
	if report.DeduplicationCount != 1 {
		t.Errorf("DeduplicationCount = %d, want 1", report.DeduplicationCount)
	}
	if report.BytesAfterDedup != 10 {
		t.Errorf("BytesAfterDedup = %d, want 10 (only the first write counts)", report.BytesAfterDedup)
	}
}

// Scenario 2 (spec.md §8): a PNG-header-prefixed write is stored verbatim
// (compression skip heuristic).
func TestScenarioCompressionSkip(t *testing.T) {
	e := newTestEngine(t)

	payload := append([]byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}, bytes.Repeat([]byte{0x42}, 1024)...)
	if len(payload) != 1032 {
		t.Fatalf("test payload is %d bytes, want 1032", len(payload))
	}

	f, err := e.Create("/c", 0o644)
	if err != nil {
		t.Fatalf("Create /c: %v", err)
	}
	n, blockID, err := e.SmartWrite(f, 0, payload)
	if err != nil {
		t.Fatalf("SmartWrite: %v", err)
	}
	if n != len(payload) {
		t.Fatalf("wrote %d bytes, want %d", n, len(payload))
	}

	body, tag, err := e.phys.read(blockID)
	if err != nil {
		t.Fatalf("phys.read: %v", err)
	}
	if tag != codecRaw {
		t.Errorf("codec tag = %v, want codecRaw (skip-compression path)", tag)
	}
	if len(body) != len(payload) {
		t.Errorf("stored body length = %d, want %d (verbatim)", len(body), len(payload))
	}
}

// Scenario 3 (spec.md §8): a write past the snapshot interval opens a new
// version, and each version's content is independently time-travelable.
func TestScenarioSnapshotAndTimeTravel(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	clock := now
	e := newTestEngine(t,
		WithSnapshotInterval(30*time.Second),
		WithClock(func() time.Time { return clock }),
	)

	f, err := e.Create("/d", 0o644)
	if err != nil {
		t.Fatalf("Create /d: %v", err)
	}
	if _, _, err := e.SmartWrite(f, 0, []byte("v1")); err != nil {
		t.Fatalf("SmartWrite v1: %v", err)
	}

	clock = clock.Add(40 * time.Second)
	if _, _, err := e.SmartWrite(f, 0, []byte("v2")); err != nil {
		t.Fatalf("SmartWrite v2: %v", err)
	}

	ino, err := e.sb.readInode(f)
	if err != nil {
		t.Fatalf("readInode: %v", err)
	}
	if ino.TotalVersions != 2 {
		t.Fatalf("TotalVersions = %d, want 2", ino.TotalVersions)
	}

	out := make([]byte, 10)
	n, err := e.SmartReadOffset(f, 0, out)
	if err != nil {
		t.Fatalf("SmartReadOffset latest: %v", err)
	}
	if string(out[:n]) != "v2" {
		t.Errorf("latest read = %q, want %q", out[:n], "v2")
	}

	v1, err := GetVersion(ino, 1)
	if err != nil {
		t.Fatalf("GetVersion(1): %v", err)
	}
	n, err = e.SmartReadBlock(v1.BlockListStartIndex, out)
	if err != nil {
		t.Fatalf("SmartReadBlock(v1): %v", err)
	}
	if string(out[:n]) != "v1" {
		t.Errorf("v1 read = %q, want %q", out[:n], "v1")
	}
}

// Scenario 4 (spec.md §8): pinning a version exempts it from rotation.
func TestScenarioPinPreservesHistory(t *testing.T) {
	now := time.Now()
	ino := &Inode{}
	InitInode(ino, now) // v1

	mustSnapshot := func(msg string, t2 time.Time) uint32 {
		id, err := CreateSnapshot(ino, msg, t2)
		if err != nil {
			panic(err)
		}
		return id
	}

	// Force a tiny ring for this scenario by truncating TotalVersions
	// bookkeeping isn't possible (MaxVersions is a package constant), so
	// this test instead exercises the same rotation/pin interaction at
	// full MaxVersions scale: pin the oldest remaining entry, fill the
	// ring, and confirm it survives while its unpinned neighbor rotates.
	for i := 0; i < MaxVersions-1; i++ {
		mustSnapshot("", now.Add(time.Duration(i+1)*time.Minute))
	}
	oldest := ino.Versions[0].VersionID
	if _, err := TogglePin(ino, oldest); err != nil {
		t.Fatalf("TogglePin(%d): %v", oldest, err)
	}
	secondOldest := ino.Versions[1].VersionID

	mustSnapshot("", now.Add(time.Duration(MaxVersions+1)*time.Minute))

	if _, err := GetVersion(ino, oldest); err != nil {
		t.Errorf("pinned version %d should have survived rotation: %v", oldest, err)
	}
	if _, err := GetVersion(ino, secondOldest); !errors.Is(err, ErrNotFound) {
		t.Errorf("unpinned version %d should have rotated out, err = %v", secondOldest, err)
	}
}

func TestSmartReadOffsetPastEOFReturnsZero(t *testing.T) {
	e := newTestEngine(t)
	f, err := e.Create("/e", 0o644)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, _, err := e.SmartWrite(f, 0, []byte("hi")); err != nil {
		t.Fatalf("SmartWrite: %v", err)
	}
	out := make([]byte, 16)
	n, err := e.SmartReadOffset(f, 5, out)
	if err != nil {
		t.Fatalf("SmartReadOffset: %v", err)
	}
	if n != 0 {
		t.Errorf("read past EOF returned %d bytes, want 0", n)
	}
}

func TestSmartReadBlockInvalidSlotZeroesBuffer(t *testing.T) {
	e := newTestEngine(t)
	out := bytes.Repeat([]byte{0xFF}, 16)
	n, err := e.SmartReadBlock(999999, out)
	if err != nil {
		t.Fatalf("SmartReadBlock: %v", err)
	}
	if n != 0 {
		t.Errorf("n = %d, want 0", n)
	}
	for i, b := range out {
		if b != 0 {
			t.Fatalf("out[%d] = %#x, want 0 (zeroed on miss)", i, b)
		}
	}
}

func TestSmartWriteZeroLengthIsNoOp(t *testing.T) {
	e := newTestEngine(t)
	f, err := e.Create("/f", 0o644)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	n, blockID, err := e.SmartWrite(f, 0, nil)
	if err != nil {
		t.Fatalf("SmartWrite: %v", err)
	}
	if n != 0 || blockID != 0 {
		t.Errorf("SmartWrite(nil) = (%d, %d), want (0, 0)", n, blockID)
	}
}

func TestResolveForWriteRejectsVersionedPath(t *testing.T) {
	e := newTestEngine(t)
	if _, err := e.Create("/g", 0o644); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := e.ResolveForWrite("/g@v1"); !errors.Is(err, ErrReadOnly) {
		t.Errorf("ResolveForWrite(/g@v1) err = %v, want ErrReadOnly", err)
	}
}

func TestStorageReportProjection(t *testing.T) {
	e := newTestEngine(t)
	f, err := e.Create("/h", 0o644)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, _, err := e.SmartWrite(f, 0, bytes.Repeat([]byte{0x7A}, 100)); err != nil {
		t.Fatalf("SmartWrite: %v", err)
	}

	report := e.stats.report(e.sb.FreeBlocks * BlockSize)
	if report.DedupRatio < 0 || report.DedupRatio > 1 {
		t.Errorf("DedupRatio = %v, want in [0, 1]", report.DedupRatio)
	}
	if report.SavedRatio > 1 {
		t.Errorf("SavedRatio = %v, want <= 1", report.SavedRatio)
	}
	if s := e.StorageReport(); s == "" {
		t.Error("StorageReport() returned empty string")
	}
}
