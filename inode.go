package smartfs

import (
	"fmt"
)

// VersionEntry is one snapshot of a file's metadata, living inline inside
// its owning inode, per spec.md §3. Field order is the on-disk order.
type VersionEntry struct {
	VersionID           uint32
	Timestamp           int64
	FileSize            uint64
	BlockCount          uint32
	BlockListStartIndex uint64 // physical logical-block id of the sole data block; 0 = no data
	CommitMsg           [MaxCommitMsg + 1]byte
	IsPinned            uint8
}

// Message returns the commit message as a Go string, trimmed at the first NUL.
func (v *VersionEntry) Message() string {
	return cStr(v.CommitMsg[:])
}

// SetMessage stores msg, truncated to MaxCommitMsg bytes, per spec.md §3.
func (v *VersionEntry) SetMessage(msg string) {
	setCStr(v.CommitMsg[:], msg)
}

// Pinned reports whether this version is exempt from rotation.
func (v *VersionEntry) Pinned() bool { return v.IsPinned != 0 }

// XattrEntry is one extended-attribute slot carried inline in an inode.
type XattrEntry struct {
	Name  [MaxXattrName + 1]byte
	Value [MaxXattrValue + 1]byte
	Valid uint8
}

// Inode is SmartFS's fixed-layout per-file/dir/symlink metadata record,
// per spec.md §3. Grounded on the teacher's Inode (inode.go): same
// per-field binary decode shape, retargeted at SmartFS's own field set
// (a version array and xattr slots replace squashfs's per-type union).
type Inode struct {
	InodeID       uint64
	Mode          uint32 // 0 == free, per spec.md's inode invariants
	UID           uint32
	GID           uint32
	LinkCount     uint32
	LatestVersion uint32
	TotalVersions uint32
	Versions      [MaxVersions]VersionEntry
	Xattrs        [MaxXattrs]XattrEntry
}

// Kind reports what this inode represents.
func (i *Inode) Kind() InodeKind { return unixModeKind(i.Mode) }

// Free reports whether this inode slot is unused.
func (i *Inode) Free() bool { return i.Mode == 0 }

// latest returns a pointer to the current latest version entry, or nil if
// the inode carries no versions yet.
func (i *Inode) latest() *VersionEntry {
	if i.TotalVersions == 0 {
		return nil
	}
	return &i.Versions[i.TotalVersions-1]
}

// cStr trims a fixed-size NUL-padded byte array down to a Go string.
func cStr(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}

// setCStr copies s into a fixed-size buffer, truncating if necessary and
// zeroing the remainder (including the guaranteed NUL terminator).
func setCStr(dst []byte, s string) {
	for i := range dst {
		dst[i] = 0
	}
	n := copy(dst[:len(dst)-1], s)
	_ = n
}

// inodeOffset returns the byte offset, from the start of the inode area,
// of inode id's fixed-size record.
func (sb *Superblock) inodeOffset(id uint64) uint64 {
	return (sb.InodeAreaStart * BlockSize) + id*inodeRecordBlocks()*BlockSize
}

// readInode loads inode id's record from the inode area.
func (sb *Superblock) readInode(id uint64) (*Inode, error) {
	if id >= MaxInodes {
		return nil, fmt.Errorf("%w: inode id %d out of range", ErrInvalidArgument, id)
	}
	n := int(inodeRecordBlocks()) * BlockSize
	buf := make([]byte, n)
	if err := sb.dev.ReadAt(buf, int64(sb.inodeOffset(id))); err != nil {
		return nil, err
	}
	ino := &Inode{}
	if err := binUnmarshal(buf[:binSize(ino)], ino, sb.order); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrIO, err)
	}
	return ino, nil
}

// writeInode persists inode id's record in full, per spec.md §5's
// "inode writes are whole-inode" mutation discipline.
func (sb *Superblock) writeInode(id uint64, ino *Inode) error {
	ino.InodeID = id
	buf, err := binMarshal(ino, sb.order)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrIO, err)
	}
	full := make([]byte, int(inodeRecordBlocks())*BlockSize)
	copy(full, buf)
	return sb.dev.WriteAt(full, int64(sb.inodeOffset(id)))
}

// allocateInode implements spec.md §4.2: a linear scan of inode slots
// [1, MaxInodes) for the first free slot. Inode 0 (the root) is reserved.
// Returns 0 ("no space") if none is free.
func (sb *Superblock) allocateInode() (uint64, *Inode, error) {
	for id := uint64(1); id < MaxInodes; id++ {
		ino, err := sb.readInode(id)
		if err != nil {
			return 0, nil, err
		}
		if ino.Free() {
			ino.InodeID = id
			return id, ino, nil
		}
	}
	return 0, nil, ErrNoSpace
}

// freeInode clears mode and rewrites the inode, per spec.md §4.2.
func (sb *Superblock) freeInode(id uint64) error {
	ino, err := sb.readInode(id)
	if err != nil {
		return err
	}
	*ino = Inode{}
	return sb.writeInode(id, ino)
}
