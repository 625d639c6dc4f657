package smartfs

import "fmt"

// DirEntry is one slot in a directory's single data block, per spec.md §3.
// A directory is a fixed-count array of these; "." and ".." are
// materialized at mkdir time, and the root directory's ".." points at
// itself.
//
// Grounded on KarpelesLab/squashfs/dir.go's directory-entry shape, with
// squashfs's variable-length on-disk entries replaced by SmartFS's
// fixed-size array (spec.md §3's directory-entry data model).
type DirEntry struct {
	Name    [MaxFilename]byte
	InodeNo uint64
	IsValid uint8
}

// dirEntryName returns name trimmed at the first NUL (or zero byte run).
func (e *DirEntry) dirEntryName() string { return cStr(e.Name[:]) }

func dirEntriesPerBlock() int {
	return BlockSize / binSize(&DirEntry{})
}

// readDirBlock reads the fixed array of directory entries stored in block id.
// Directory blocks are image-resident (spec.md §4.6): raw, uncompressed,
// fixed placement at block_id*BlockSize.
func (sb *Superblock) readDirBlock(blockID uint64) ([]DirEntry, error) {
	buf := make([]byte, BlockSize)
	if err := sb.dev.ReadBlock(blockID, buf); err != nil {
		return nil, err
	}
	entSize := binSize(&DirEntry{})
	n := dirEntriesPerBlock()
	entries := make([]DirEntry, n)
	for i := 0; i < n; i++ {
		if err := binUnmarshal(buf[i*entSize:(i+1)*entSize], &entries[i], sb.order); err != nil {
			return nil, fmt.Errorf("%w: %s", ErrIO, err)
		}
	}
	return entries, nil
}

// writeDirBlock persists the full directory entry array to block id, per
// spec.md §5's "directory-block writes are whole-block" mutation discipline.
func (sb *Superblock) writeDirBlock(blockID uint64, entries []DirEntry) error {
	entSize := binSize(&DirEntry{})
	buf := make([]byte, BlockSize)
	for i := range entries {
		enc, err := binMarshal(&entries[i], sb.order)
		if err != nil {
			return fmt.Errorf("%w: %s", ErrIO, err)
		}
		copy(buf[i*entSize:], enc)
	}
	return sb.dev.WriteBlock(blockID, buf)
}

// findEntryInDir linearly scans entries for name and returns the inode id
// it points to, or 0 if not found, per spec.md §4.10.
func findEntryInDir(entries []DirEntry, name string) uint64 {
	for i := range entries {
		if entries[i].IsValid == 1 && entries[i].dirEntryName() == name {
			return entries[i].InodeNo
		}
	}
	return 0
}

// addDirEntry first-fits name/child into the first invalid slot. Returns
// ErrNoSpace if the directory block is full.
func addDirEntry(entries []DirEntry, name string, child uint64) error {
	if len(name) >= MaxFilename {
		return fmt.Errorf("%w: name too long", ErrInvalidArgument)
	}
	for i := range entries {
		if entries[i].IsValid == 0 {
			setCStr(entries[i].Name[:], name)
			entries[i].InodeNo = child
			entries[i].IsValid = 1
			return nil
		}
	}
	return ErrNoSpace
}

// removeDirEntry clears name's slot (name, inode id, and validity).
func removeDirEntry(entries []DirEntry, name string) error {
	for i := range entries {
		if entries[i].IsValid == 1 && entries[i].dirEntryName() == name {
			entries[i] = DirEntry{}
			return nil
		}
	}
	return ErrNotFound
}
