package smartfs

import "io/fs"

// Unix mode bits for the file types SmartFS's inode.Mode field can carry.
// The bit layout matches POSIX st_mode, as in the teacher's squashfs
// conversion table; only the three types spec.md's data model supports
// (regular file, directory, symlink) are handled, plus "free" (mode == 0).
const (
	modeIFMT  = 0xf000
	modeIFREG = 0x8000
	modeIFDIR = 0x4000
	modeIFLNK = 0xa000

	modePermBits = 0777
)

// InodeKind classifies what an inode represents, independent of permission bits.
type InodeKind int

const (
	KindFree InodeKind = iota
	KindFile
	KindDir
	KindSymlink
)

func (k InodeKind) String() string {
	switch k {
	case KindFile:
		return "file"
	case KindDir:
		return "dir"
	case KindSymlink:
		return "symlink"
	default:
		return "free"
	}
}

// unixModeKind extracts the InodeKind encoded in a raw on-disk mode word.
// mode == 0 means "free", per spec.md's inode invariants.
func unixModeKind(mode uint32) InodeKind {
	if mode == 0 {
		return KindFree
	}
	switch mode & modeIFMT {
	case modeIFDIR:
		return KindDir
	case modeIFLNK:
		return KindSymlink
	default:
		return KindFile
	}
}

// unixModeToFileMode converts a raw on-disk mode word into an fs.FileMode,
// mirroring the teacher's UnixToMode table.
func unixModeToFileMode(mode uint32) fs.FileMode {
	res := fs.FileMode(mode & modePermBits)
	switch mode & modeIFMT {
	case modeIFDIR:
		res |= fs.ModeDir
	case modeIFLNK:
		res |= fs.ModeSymlink
	}
	return res
}

// makeUnixMode packs a kind and a permission word into a raw on-disk mode
// word, mirroring the teacher's ModeToUnix table in reverse.
func makeUnixMode(kind InodeKind, perm uint32) uint32 {
	res := perm & modePermBits
	switch kind {
	case KindDir:
		res |= modeIFDIR
	case KindSymlink:
		res |= modeIFLNK
	case KindFile:
		res |= modeIFREG
	}
	return res
}
