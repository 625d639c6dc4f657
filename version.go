package smartfs

import (
	"fmt"
	"time"
)

// InitInode zeroes ino's version array and creates v1 with empty content,
// per spec.md §4.8's init_inode.
func InitInode(ino *Inode, now time.Time) {
	ino.Versions = [MaxVersions]VersionEntry{}
	ino.Versions[0] = VersionEntry{VersionID: 1, Timestamp: now.Unix()}
	ino.TotalVersions = 1
	ino.LatestVersion = 1
}

// ShouldSnapshot reports whether a write against ino should open a new
// version before mutating content, per spec.md §4.8's should_snapshot.
func ShouldSnapshot(ino *Inode, interval time.Duration, now time.Time) bool {
	if ino.TotalVersions == 0 {
		return true
	}
	last := ino.latest()
	return now.Unix()-last.Timestamp >= int64(interval.Seconds())
}

// CreateSnapshot opens a new version on ino, copying the latest entry's
// metadata (copy-on-write: the new entry shares content with its
// predecessor until a write diverges it), per spec.md §4.8's
// create_snapshot. Rotation: when the version array is full, the
// lowest-indexed non-pinned entry in [0, total_versions-1) is evicted
// (the absolute latest is categorically exempt — Open Question #2,
// resolved in SPEC_FULL.md §9); ErrNoSpace if every eligible slot is pinned.
//
// Grounded on original_source/src/versioning/version_mgr.c's
// create_snapshot (rotation loop bound i < total_versions - 1; CoW copy
// of file_size/block_count/block_list_start_index).
func CreateSnapshot(ino *Inode, msg string, now time.Time) (uint32, error) {
	if ino.TotalVersions == MaxVersions {
		victim := -1
		for i := 0; i < int(ino.TotalVersions)-1; i++ {
			if !ino.Versions[i].Pinned() {
				victim = i
				break
			}
		}
		if victim < 0 {
			return 0, fmt.Errorf("%w: all versions pinned", ErrNoSpace)
		}
		copy(ino.Versions[victim:], ino.Versions[victim+1:ino.TotalVersions])
		ino.TotalVersions--
		versionLog.Printf("inode %d: rotated out version index %d", ino.InodeID, victim)
	}

	prev := ino.latest()
	next := &ino.Versions[ino.TotalVersions]
	*next = VersionEntry{
		VersionID:           prev.VersionID + 1,
		Timestamp:           now.Unix(),
		FileSize:            prev.FileSize,
		BlockCount:          prev.BlockCount,
		BlockListStartIndex: prev.BlockListStartIndex,
	}
	next.SetMessage(msg)
	ino.TotalVersions++
	ino.LatestVersion = next.VersionID
	versionLog.Printf("inode %d: snapshot v%d %q", ino.InodeID, next.VersionID, msg)
	return next.VersionID, nil
}

// GetVersion returns the version entry matching id (0 means "latest"),
// per spec.md §4.8's get_version. Returns ErrNotFound when id never
// existed or was rotated out.
func GetVersion(ino *Inode, id uint32) (*VersionEntry, error) {
	if id == 0 {
		if v := ino.latest(); v != nil {
			return v, nil
		}
		return nil, ErrNotFound
	}
	for i := 0; i < int(ino.TotalVersions); i++ {
		if ino.Versions[i].VersionID == id {
			return &ino.Versions[i], nil
		}
	}
	return nil, ErrNotFound
}

// TogglePin flips the pin flag on version id and returns its new state,
// per spec.md §4.8's toggle_pin.
func TogglePin(ino *Inode, id uint32) (bool, error) {
	v, err := GetVersion(ino, id)
	if err != nil {
		return false, err
	}
	if v.IsPinned == 0 {
		v.IsPinned = 1
	} else {
		v.IsPinned = 0
	}
	return v.Pinned(), nil
}

// ListVersions renders one line per version into out, stopping before
// overflow, per spec.md §4.8's list_versions. Returns the number of
// bytes written.
func ListVersions(ino *Inode, out []byte) int {
	n := 0
	for i := 0; i < int(ino.TotalVersions); i++ {
		v := &ino.Versions[i]
		pin := ""
		if v.Pinned() {
			pin = "[PIN]"
		}
		line := fmt.Sprintf("v%d%s | %s | %s | %d bytes\n",
			v.VersionID, pin,
			time.Unix(v.Timestamp, 0).UTC().Format("2006-01-02 15:04:05"),
			v.Message(), v.FileSize)
		if n+len(line) > len(out) {
			break
		}
		n += copy(out[n:], line)
	}
	return n
}
