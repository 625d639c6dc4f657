package smartfs

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// blockDevice exposes fixed-size block I/o over the disk image, per
// spec.md §4.1. It does not interpret block content; callers address it
// strictly by block id or raw byte offset.
//
// Grounded on the positional-I/O pattern used throughout the retrieved
// pack for disk-image-backed stores (e.g.
// calvinalkan-agent-task/pkg/slotcache's syscall.Pread/Pwrite over a
// bound fd); golang.org/x/sys/unix is the teacher's own (indirect)
// dependency, used here directly instead of through hanwen/go-fuse.
type blockDevice struct {
	f  *os.File
	fd int
}

// attachBlockDevice binds an already-open image file as the block device.
func attachBlockDevice(f *os.File) *blockDevice {
	return &blockDevice{f: f, fd: int(f.Fd())}
}

// ReadBlock reads the block-aligned block id into buf, which must be at
// least BlockSize bytes.
func (d *blockDevice) ReadBlock(id uint64, buf []byte) error {
	return d.ReadAt(buf[:BlockSize], int64(id)*BlockSize)
}

// WriteBlock writes buf (at least BlockSize bytes) to the block-aligned
// block id.
func (d *blockDevice) WriteBlock(id uint64, buf []byte) error {
	return d.WriteAt(buf[:BlockSize], int64(id)*BlockSize)
}

// ReadAt reads len(buf) bytes starting at byte offset off. Used for
// records (like an inode) that span more than one block.
func (d *blockDevice) ReadAt(buf []byte, off int64) error {
	n, err := unix.Pread(d.fd, buf, off)
	if err != nil {
		blockLog.Printf("read failure at offset %d: %s", off, err)
		return fmt.Errorf("%w: offset %d: %s", ErrIO, off, err)
	}
	if n != len(buf) {
		blockLog.Printf("short read at offset %d: got %d want %d", off, n, len(buf))
		return fmt.Errorf("%w: short read at offset %d", ErrIO, off)
	}
	return nil
}

// WriteAt writes buf at byte offset off.
func (d *blockDevice) WriteAt(buf []byte, off int64) error {
	n, err := unix.Pwrite(d.fd, buf, off)
	if err != nil {
		blockLog.Printf("write failure at offset %d: %s", off, err)
		return fmt.Errorf("%w: offset %d: %s", ErrIO, off, err)
	}
	if n != len(buf) {
		return fmt.Errorf("%w: short write at offset %d", ErrIO, off)
	}
	return nil
}

// Sync forces durability of everything written so far.
func (d *blockDevice) Sync() error {
	if err := d.f.Sync(); err != nil {
		return fmt.Errorf("%w: sync: %s", ErrIO, err)
	}
	return nil
}

// Truncate grows (or shrinks) the backing file to hold size bytes.
func (d *blockDevice) Truncate(size int64) error {
	return d.f.Truncate(size)
}
