// Package smartfs implements the SmartFS storage engine: a block-addressed
// disk image with content-addressed deduplication, adaptive compression, a
// tiered block cache, and per-inode version history.
//
// The package is the core engine only. Translating host filesystem calls
// (getattr/read/write/create/...) into calls against an *Engine, argument
// parsing, and a standalone image-formatting tool are left to callers; see
// SPEC_FULL.md for the boundary.
package smartfs

import "log"

// BlockSize is the fixed size, in bytes, of every block in the image.
const BlockSize = 4096

const (
	// MaxFilename is the longest name a directory entry can hold.
	MaxFilename = 255
	// MaxVersions is the number of version slots carried inline in an inode.
	MaxVersions = 128
	// HashSize is the length, in bytes, of a block fingerprint (SHA-256).
	HashSize = 32
	// MaxXattrs is the number of xattr slots carried inline in an inode.
	MaxXattrs = 4
	// MaxXattrName is the longest xattr name (excluding NUL) an entry can hold.
	MaxXattrName = 31
	// MaxXattrValue is the longest xattr value (excluding NUL) an entry can hold.
	MaxXattrValue = 31
	// MaxCommitMsg is the longest commit message (excluding NUL) a version carries.
	MaxCommitMsg = 63
	// MaxInodes bounds the inode table; inode 0 is reserved for the root directory.
	MaxInodes = 1024
	// RootInode is the reserved id of the root directory's inode.
	RootInode = 0
	// DedupCapacity bounds the in-memory/persisted fingerprint table.
	DedupCapacity = 1024
)

// SuperblockMagic identifies a SmartFS image (ASCII "SMAR" read as a
// big-endian uint32, matching spec.md's 0x534D4152).
const SuperblockMagic = 0x534D4152

var (
	blockLog   = log.New(logWriter, "smartfs/block: ", log.LstdFlags)
	superLog   = log.New(logWriter, "smartfs/super: ", log.LstdFlags)
	dedupLog   = log.New(logWriter, "smartfs/dedup: ", log.LstdFlags)
	cacheLog   = log.New(logWriter, "smartfs/cache: ", log.LstdFlags)
	pipeLog    = log.New(logWriter, "smartfs/pipeline: ", log.LstdFlags)
	versionLog = log.New(logWriter, "smartfs/version: ", log.LstdFlags)
	walLog     = log.New(logWriter, "smartfs/wal: ", log.LstdFlags)
)
