package smartfs

import (
	"fmt"
	"hash/crc32"
)

// smartWrite implements spec.md §4.7's smart_write against e's
// components: fingerprint, dedup lookup, compress, allocate, WAL frame,
// persist, cache. inode is only used for stats/version bookkeeping by
// the caller (Engine.SmartWrite); this function is block-oriented.
//
// A write of zero bytes is a no-op, per spec.md §4.7's tie-break: no
// block is allocated and no WAL transaction opens.
func (e *Engine) smartWrite(data []byte) (blockID uint64, deduped bool, err error) {
	if len(data) == 0 {
		return 0, false, nil
	}
	if len(data) > BlockSize {
		return 0, false, fmt.Errorf("%w: write exceeds block size", ErrFileTooBig)
	}

	digest := fingerprint(data)

	if existing, ok := e.dedup.lookup(digest); ok {
		e.dedup.incRef(digest)
		e.cache.Put(existing, data)
		e.stats.recordWrite(len(data), 0, true)
		pipeLog.Printf("write: deduped onto block %d", existing)
		return existing, true, nil
	}

	body, tag := compress(data)

	blockID, err = e.sb.allocateBlock()
	if err != nil {
		return 0, false, err
	}

	tx := e.wal.begin("smart_write")
	if err := e.wal.logWrite(tx, blockID, crc32.ChecksumIEEE(data)); err != nil {
		walLog.Printf("logWrite failed (advisory only): %s", err)
	}

	if err := e.phys.write(blockID, body, tag); err != nil {
		return 0, false, err
	}

	if err := e.wal.commit(tx); err != nil {
		walLog.Printf("commit failed (advisory only): %s", err)
	}

	if err := e.dedup.insert(digest, blockID, len(body)); err != nil {
		dedupLog.Printf("dedup table full, continuing without an entry: %s", err)
	}
	e.cache.Put(blockID, data)
	e.stats.recordWrite(len(data), len(body), false)

	pipeLog.Printf("write: new block %d (%d -> %d bytes, codec %d)", blockID, len(data), len(body), tag)
	return blockID, false, nil
}

// smartReadBlock implements spec.md §4.7's smart_read by physical block
// id: consult the cache; on miss, read and decompress from the physical
// store; on a physical-store miss (invalid index slot), zero out and
// return 0, per spec.md §7's "reading a missing block returns 0".
func (e *Engine) smartReadBlock(blockID uint64, out []byte) (int, error) {
	if data, ok := e.cache.Get(blockID); ok {
		n := copy(out, data)
		return n, nil
	}

	body, tag, err := e.phys.read(blockID)
	if err == errPhysMiss {
		for i := range out {
			out[i] = 0
		}
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	data, err := decompress(body, tag, BlockSize)
	if err != nil {
		return 0, fmt.Errorf("%w: %s", ErrIO, err)
	}
	e.cache.Put(blockID, data)
	return copy(out, data), nil
}
