package smartfs

import (
	"fmt"
	"os"
	"sync"
	"time"
)

// Engine is SmartFS's single owning state: one bound disk image plus its
// superblock, dedup index, tiered cache, physical store, and WAL. Per
// SPEC_FULL.md §5, Engine is not safe for concurrent use; mu is a
// courtesy guard against accidental concurrent misuse from a host shim,
// not a substitute for the single-writer model the design assumes.
//
// Grounded on KarpelesLab/squashfs's *Superblock as the module's single
// entry point, generalized here into an explicit Engine that also owns
// the cache/dedup/WAL state squashfs (read-only) never needed.
type Engine struct {
	mu sync.Mutex

	f  *os.File
	sb *Superblock

	dedup *dedupIndex
	phys  *physicalStore
	cache *TieredCache
	wal   *wal
	stats stats

	snapshotEvery time.Duration
	nowFunc       func() time.Time
}

// Attach opens (creating and formatting if necessary) the image at
// imagePath and brings up every subsystem, per spec.md §6's attach +
// SPEC_FULL.md's Go constructor signature. Attach itself sizes the cache
// (CacheInit), opens the L2 tier, and opens the WAL, running its crash
// recovery; CacheInit and WALInit remain callable afterwards to resize
// L1 or re-run recovery.
func Attach(imagePath string, opts ...EngineOption) (*Engine, error) {
	cfg := defaultEngineConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	f, err := os.OpenFile(imagePath, os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		return nil, fmt.Errorf("%w: open image: %s", ErrIO, err)
	}

	dev := attachBlockDevice(f)
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: %s", ErrIO, err)
	}

	var sb *Superblock
	if info.Size() == 0 {
		if err := f.Truncate(int64(cfg.imageBlocks) * BlockSize); err != nil {
			f.Close()
			return nil, fmt.Errorf("%w: size image: %s", ErrIO, err)
		}
		sb = newSuperblock(dev, cfg.imageBlocks)
		if err := sb.save(); err != nil {
			f.Close()
			return nil, err
		}
		superLog.Printf("formatted new image: %s (%d blocks)", imagePath, cfg.imageBlocks)
	} else {
		sb, err = loadSuperblock(dev)
		if err != nil {
			f.Close()
			return nil, err
		}
	}

	dedupIdx, err := loadDedupIndex(sb)
	if err != nil {
		f.Close()
		return nil, err
	}

	phys, err := openPhysicalStore(cfg.dataPath, cfg.idxPath)
	if err != nil {
		f.Close()
		return nil, err
	}

	e := &Engine{
		f:             f,
		sb:            sb,
		dedup:         dedupIdx,
		phys:          phys,
		snapshotEvery: cfg.snapshotEvery,
		nowFunc:       cfg.nowFunc,
	}

	if info.Size() == 0 {
		if err := e.formatRoot(); err != nil {
			f.Close()
			return nil, err
		}
	}

	e.CacheInit(cfg.l1Capacity)
	if _, err := e.bringUpCache(cfg.l2CachePath, cfg.l2Capacity); err != nil {
		f.Close()
		return nil, err
	}
	if err := e.bringUpWAL(cfg.walPath); err != nil {
		f.Close()
		return nil, err
	}

	return e, nil
}

// bringUpCache replaces the placeholder L1-only cache built by CacheInit
// with a full tiered cache once the L2 path/capacity are known. Kept
// separate from CacheInit so CacheInit's signature matches spec.md §6's
// cache_init(cap) exactly (L1 capacity only).
func (e *Engine) bringUpCache(l2Path string, l2Capacity uint64) (*TieredCache, error) {
	l1Capacity := DefaultL1Capacity
	if e.cache != nil {
		l1Capacity = e.cache.l1.capacity
	}
	tc, err := NewTieredCache(l1Capacity, l2Path, l2Capacity)
	if err != nil {
		return nil, err
	}
	e.cache = tc
	return tc, nil
}

func (e *Engine) bringUpWAL(path string) error {
	w, err := openWAL(path)
	if err != nil {
		return err
	}
	e.wal = w
	return nil
}

// CacheInit (re)sizes the L1 tier, per spec.md §6's cache_init(cap).
func (e *Engine) CacheInit(capacity int) {
	if e.cache != nil {
		e.cache.l1 = newL1Cache(capacity)
		return
	}
	e.cache = &TieredCache{l1: newL1Cache(capacity)}
}

// WALInit runs crash recovery against the WAL, per spec.md §6's
// wal_init(). Present for API parity; recovery already runs inside
// Attach's bringUpWAL, so this is a no-op unless called again by a host
// shim after re-opening the log file itself.
func (e *Engine) WALInit() error {
	if e.wal == nil {
		return fmt.Errorf("%w: WAL not attached", ErrInvalidArgument)
	}
	return e.wal.recover()
}

// formatRoot creates inode 0 as the root directory. Its data block is
// the pre-reserved block at DataAreaStart (spec.md §6's "blocks
// [data_area_start, data_area_start+1) = root directory's data block"),
// not one obtained through allocateBlock: that cursor starts one block
// later precisely because this block is spoken for at format time.
func (e *Engine) formatRoot() error {
	now := e.now()
	root := &Inode{InodeID: RootInode, Mode: makeUnixMode(KindDir, 0o755), LinkCount: 2}
	InitInode(root, now)

	blockID := e.sb.DataAreaStart
	entries := make([]DirEntry, dirEntriesPerBlock())
	if err := addDirEntry(entries, ".", RootInode); err != nil {
		return err
	}
	if err := addDirEntry(entries, "..", RootInode); err != nil {
		return err
	}
	if err := e.sb.writeDirBlock(blockID, entries); err != nil {
		return err
	}

	root.Versions[0].BlockListStartIndex = blockID
	return e.sb.writeInode(RootInode, root)
}

func (e *Engine) now() time.Time {
	if e.nowFunc != nil {
		return e.nowFunc()
	}
	return time.Now()
}

// Close releases every subsystem's resources.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	var firstErr error
	note := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if e.wal != nil {
		note(e.wal.close())
	}
	if e.cache != nil {
		note(e.cache.Close())
	}
	if e.phys != nil {
		note(e.phys.close())
	}
	note(e.f.Close())
	return firstErr
}

// SmartWrite implements spec.md §6's smart_write(inode, offset, buf, len):
// it auto-snapshots the inode if the configured interval has elapsed,
// runs the write pipeline (C7) for the block, and folds the result back
// into the inode's latest version, per §4.7/§4.8's interaction ("Writing
// ends by updating the latest entry's file_size and timestamp and, when
// content diverges, its block_list_start_index").
func (e *Engine) SmartWrite(inode uint64, offset int64, data []byte) (int, uint64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.smartWriteInode(inode, offset, data)
}

// smartWriteInode is SmartWrite's body, callable by other locked-path
// operations (e.g. Symlink) that already hold mu.
func (e *Engine) smartWriteInode(inode uint64, offset int64, data []byte) (int, uint64, error) {
	if offset != 0 {
		return 0, 0, fmt.Errorf("%w: only whole-block writes at offset 0 are supported", ErrInvalidArgument)
	}
	if len(data) == 0 {
		return 0, 0, nil
	}

	ino, err := e.sb.readInode(inode)
	if err != nil {
		return 0, 0, err
	}
	if ino.Free() {
		return 0, 0, ErrNotFound
	}

	now := e.now()
	if ShouldSnapshot(ino, e.snapshotEvery, now) {
		if _, err := CreateSnapshot(ino, "", now); err != nil {
			return 0, 0, err
		}
	}

	blockID, _, err := e.smartWrite(data)
	if err != nil {
		return 0, 0, err
	}

	latest := ino.latest()
	latest.FileSize = uint64(len(data))
	latest.BlockCount = 1
	latest.Timestamp = now.Unix()
	if blockID != 0 {
		latest.BlockListStartIndex = blockID
	}
	if err := e.sb.writeInode(inode, ino); err != nil {
		return 0, 0, err
	}

	return len(data), blockID, nil
}

// SmartReadBlock implements spec.md §6's smart_read by physical block id.
func (e *Engine) SmartReadBlock(blockID uint64, out []byte) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.smartReadBlock(blockID, out)
}

// SmartReadOffset implements spec.md §6's smart_read by inode + logical
// offset: resolve the inode's latest version's block, honoring
// file_size and the "reading offset >= file_size returns 0" boundary.
func (e *Engine) SmartReadOffset(inode uint64, offset int64, out []byte) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ino, err := e.sb.readInode(inode)
	if err != nil {
		return 0, err
	}
	if ino.Free() {
		return 0, ErrNotFound
	}
	latest := ino.latest()
	if latest == nil || offset < 0 || uint64(offset) >= latest.FileSize {
		return 0, nil
	}
	if latest.BlockListStartIndex == 0 {
		return 0, nil
	}

	buf := make([]byte, BlockSize)
	n, err := e.smartReadBlock(latest.BlockListStartIndex, buf)
	if err != nil {
		return 0, err
	}
	if uint64(n) > latest.FileSize {
		n = int(latest.FileSize)
	}
	if int(offset) >= n {
		for i := range out {
			out[i] = 0
		}
		return 0, nil
	}
	return copy(out, buf[offset:n]), nil
}

// CreateSnapshot implements spec.md §6's create_snapshot(inode, msg).
func (e *Engine) CreateSnapshot(inode uint64, msg string) (uint32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ino, err := e.sb.readInode(inode)
	if err != nil {
		return 0, err
	}
	if ino.Free() {
		return 0, ErrNotFound
	}
	id, err := CreateSnapshot(ino, msg, e.now())
	if err != nil {
		return 0, err
	}
	return id, e.sb.writeInode(inode, ino)
}

// GetVersion implements spec.md §6's get_version(inode, id).
func (e *Engine) GetVersion(inode uint64, id uint32) (*VersionEntry, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ino, err := e.sb.readInode(inode)
	if err != nil {
		return nil, err
	}
	if ino.Free() {
		return nil, ErrNotFound
	}
	return GetVersion(ino, id)
}

// FindByTimeStr implements spec.md §6's find_by_time_str(inode, s).
func (e *Engine) FindByTimeStr(inode uint64, s string) (*VersionEntry, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ino, err := e.sb.readInode(inode)
	if err != nil {
		return nil, err
	}
	if ino.Free() {
		return nil, ErrNotFound
	}
	return FindByTimeStr(ino, s, e.now())
}

// TogglePin implements spec.md §6's toggle_pin(inode, id).
func (e *Engine) TogglePin(inode uint64, id uint32) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ino, err := e.sb.readInode(inode)
	if err != nil {
		return false, err
	}
	if ino.Free() {
		return false, ErrNotFound
	}
	pinned, err := TogglePin(ino, id)
	if err != nil {
		return false, err
	}
	return pinned, e.sb.writeInode(inode, ino)
}

// ListVersions implements spec.md §6's list_versions(inode, out, max).
func (e *Engine) ListVersions(inode uint64, out []byte) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ino, err := e.sb.readInode(inode)
	if err != nil {
		return 0, err
	}
	if ino.Free() {
		return 0, ErrNotFound
	}
	return ListVersions(ino, out), nil
}

// StorageReport implements spec.md §6's print_storage_report(), including
// §4.12's forward capacity projection computed against the allocator's
// current remaining physical capacity.
func (e *Engine) StorageReport() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	remaining := e.sb.FreeBlocks * BlockSize
	return e.stats.report(remaining).String()
}
