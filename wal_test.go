package smartfs

import (
	"os"
	"path/filepath"
	"testing"
)

func TestWALBeginLogCommitCheckpoints(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.wal")
	w, err := openWAL(path)
	if err != nil {
		t.Fatalf("openWAL: %v", err)
	}
	defer w.close()

	tx := w.begin("test")
	if tx == 0 {
		t.Fatal("begin returned transaction id 0")
	}
	if err := w.logWrite(tx, 42, 0xDEADBEEF); err != nil {
		t.Fatalf("logWrite: %v", err)
	}

	info, err := w.f.Stat()
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if info.Size() != int64(walRecordSize) {
		t.Errorf("WAL file size = %d, want %d after one record", info.Size(), walRecordSize)
	}

	if err := w.commit(tx); err != nil {
		t.Fatalf("commit: %v", err)
	}
	info, err = w.f.Stat()
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if info.Size() != 0 {
		t.Errorf("WAL file size after commit = %d, want 0 (checkpointed)", info.Size())
	}
}

func TestWALRecoverCheckpointsLeftoverRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.wal")

	w, err := openWAL(path)
	if err != nil {
		t.Fatalf("openWAL: %v", err)
	}
	tx := w.begin("crash-before-commit")
	if err := w.logWrite(tx, 7, 1234); err != nil {
		t.Fatalf("logWrite: %v", err)
	}
	// Simulate a crash: close without commit/checkpoint.
	w.f.Close()

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if info.Size() == 0 {
		t.Fatal("expected a leftover record before recovery")
	}

	w2, err := openWAL(path)
	if err != nil {
		t.Fatalf("openWAL (recovery): %v", err)
	}
	defer w2.close()

	info, err = w2.f.Stat()
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if info.Size() != 0 {
		t.Errorf("WAL size after recovery = %d, want 0 (checkpointed away)", info.Size())
	}
}

func TestWALTransactionIDsIncrease(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.wal")
	w, err := openWAL(path)
	if err != nil {
		t.Fatalf("openWAL: %v", err)
	}
	defer w.close()

	tx1 := w.begin("a")
	tx2 := w.begin("b")
	if tx2 <= tx1 {
		t.Errorf("tx2 (%d) should be greater than tx1 (%d)", tx2, tx1)
	}
}
