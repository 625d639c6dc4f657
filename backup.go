package smartfs

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/ulikunitz/xz"
)

// DefaultBackupDir is where Backup writes its xz-compressed snapshots.
const DefaultBackupDir = "/tmp/smartfs_backups"

// Backup implements the user.smartfs.backup xattr's behavior, per
// SPEC_FULL.md §4's backup.go: original_source/src/storage/backup.c's
// backup_create is a no-op placeholder that only prints and returns 0;
// this rewrite gives it real behavior using the teacher's xz dependency
// (comp_xz.go's xz.NewWriter/xz.NewReader pattern), since a placeholder
// gives that dependency nowhere to live. inode is accepted for xattr-call
// symmetry but unused: a backup snapshots the whole image, not one file.
//
// mode "full" xz-compresses the entire image file. mode "inc"
// xz-compresses only the blocks allocated since the last backup,
// tracked via the superblock's LastBackupBlock cursor.
func (e *Engine) Backup(inode uint64, mode string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch mode {
	case "full":
		return e.backupFull()
	case "inc":
		return e.backupIncremental()
	default:
		return fmt.Errorf("%w: backup mode must be \"full\" or \"inc\"", ErrInvalidArgument)
	}
}

func (e *Engine) backupFull() error {
	if err := os.MkdirAll(DefaultBackupDir, 0o700); err != nil {
		return fmt.Errorf("%w: %s", ErrIO, err)
	}
	dst := filepath.Join(DefaultBackupDir, "smartfs-full.img.xz")
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrIO, err)
	}
	defer out.Close()

	w, err := xz.NewWriter(out)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrIO, err)
	}

	if _, err := e.f.Seek(0, io.SeekStart); err != nil {
		w.Close()
		return fmt.Errorf("%w: %s", ErrIO, err)
	}
	if _, err := io.Copy(w, e.f); err != nil {
		w.Close()
		return fmt.Errorf("%w: %s", ErrIO, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("%w: %s", ErrIO, err)
	}
	e.sb.LastBackupBlock = e.sb.LastAllocBlock
	return e.sb.save()
}

// backupIncremental xz-compresses only the blocks allocated since the
// last backup's cursor, identified by the superblock's LastBackupBlock
// marker (initialized to the data area's first block at format time).
func (e *Engine) backupIncremental() error {
	if err := os.MkdirAll(DefaultBackupDir, 0o700); err != nil {
		return fmt.Errorf("%w: %s", ErrIO, err)
	}
	from := e.sb.LastBackupBlock
	to := e.sb.LastAllocBlock
	if to <= from {
		return nil // nothing new since the last backup
	}

	dst := filepath.Join(DefaultBackupDir, fmt.Sprintf("smartfs-inc-%d-%d.img.xz", from, to))
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrIO, err)
	}
	defer out.Close()

	w, err := xz.NewWriter(out)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrIO, err)
	}

	buf := make([]byte, BlockSize)
	for b := from; b < to; b++ {
		if err := e.sb.dev.ReadBlock(b, buf); err != nil {
			w.Close()
			return err
		}
		if _, err := w.Write(buf); err != nil {
			w.Close()
			return fmt.Errorf("%w: %s", ErrIO, err)
		}
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("%w: %s", ErrIO, err)
	}

	e.sb.LastBackupBlock = to
	return e.sb.save()
}
