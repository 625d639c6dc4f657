package smartfs

import "errors"

// Package-specific error variables that can be used with errors.Is() for error handling.
var (
	// ErrInvalidSuper is returned when the superblock magic or invariants don't check out.
	ErrInvalidSuper = errors.New("smartfs: bad superblock magic")

	// ErrNotFound covers a path that doesn't resolve, a version that isn't
	// present (never existed, or was rotated out), or a missing xattr.
	ErrNotFound = errors.New("smartfs: not found")

	// ErrNoSpace covers inode table exhaustion, block allocator exhaustion,
	// a full directory block, or a version rotation with nothing unpinned
	// left to evict.
	ErrNoSpace = errors.New("smartfs: no space")

	// ErrInvalidArgument covers malformed version suffixes and xattr
	// operations against a version id that was never assigned.
	ErrInvalidArgument = errors.New("smartfs: invalid argument")

	// ErrIO covers underlying block device and physical store failures.
	ErrIO = errors.New("smartfs: I/O failure")

	// ErrReadOnly is returned for writes against a "@v<N>" or "@<time>"
	// historical version path; only the latest version is writable.
	ErrReadOnly = errors.New("smartfs: historical version is read-only")

	// ErrNotDirectory is returned when a directory operation targets a
	// non-directory inode.
	ErrNotDirectory = errors.New("smartfs: not a directory")

	// ErrFileTooBig is returned when a write would need more than the
	// single 4 KiB logical data block this iteration allows per version.
	ErrFileTooBig = errors.New("smartfs: file too big")
)
