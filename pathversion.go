package smartfs

import (
	"strconv"
	"strings"
	"time"
)

// VersionQueryKind classifies the `@...` suffix on a path, per spec.md §4.9.
type VersionQueryKind int

const (
	// VersionQueryNone means the path carries no (or an unrecognized)
	// version suffix; it is interpreted literally, including any '@'.
	VersionQueryNone VersionQueryKind = iota
	// VersionQueryID means the suffix names a specific version id (`@v3`).
	VersionQueryID
	// VersionQueryTime means the suffix names a relative time (`@2h`,
	// `@yesterday`).
	VersionQueryTime
)

func (k VersionQueryKind) String() string {
	switch k {
	case VersionQueryID:
		return "id"
	case VersionQueryTime:
		return "time"
	default:
		return "none"
	}
}

// ParseVersionPath splits path into its real path and an optional version
// query, per spec.md §4.9. idOrTime is a uint32 version id when kind is
// VersionQueryID, a string relative-time expression when kind is
// VersionQueryTime, and nil otherwise.
//
// Grounded on original_source/src/versioning/version_utils.c's
// parse_version_path: find the last '@'; a suffix of `v<digits>` is an id
// query, `yesterday` or `<digits><h|m|d>` is a time query, anything else
// (including an absent or leading '@') falls back to treating the whole
// path literally — this is what lets filenames like "email@site" survive
// unharmed.
func ParseVersionPath(path string) (real string, kind VersionQueryKind, idOrTime any) {
	at := strings.LastIndexByte(path, '@')
	if at <= 0 {
		return path, VersionQueryNone, nil
	}

	suffix := path[at+1:]
	real = path[:at]

	if len(suffix) > 1 && suffix[0] == 'v' {
		if id, err := strconv.ParseUint(suffix[1:], 10, 32); err == nil {
			return real, VersionQueryID, uint32(id)
		}
	}

	if isTimeSuffix(suffix) {
		return real, VersionQueryTime, suffix
	}

	return path, VersionQueryNone, nil
}

// isTimeSuffix reports whether suffix is "yesterday" or `<digits><h|m|d>`.
func isTimeSuffix(suffix string) bool {
	if suffix == "yesterday" {
		return true
	}
	if len(suffix) < 2 {
		return false
	}
	unit := suffix[len(suffix)-1]
	if unit != 'h' && unit != 'm' && unit != 'd' {
		return false
	}
	_, err := strconv.ParseUint(suffix[:len(suffix)-1], 10, 64)
	return err == nil
}

// parseRelativeTime turns a time-query suffix into an absolute past
// instant relative to now, per spec.md §4.8's find_by_time_str grammar.
func parseRelativeTime(suffix string, now time.Time) (time.Time, bool) {
	if suffix == "yesterday" {
		return now.Add(-24 * time.Hour), true
	}
	if len(suffix) < 2 {
		return time.Time{}, false
	}
	unit := suffix[len(suffix)-1]
	n, err := strconv.ParseUint(suffix[:len(suffix)-1], 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	switch unit {
	case 'h':
		return now.Add(-time.Duration(n) * time.Hour), true
	case 'm':
		return now.Add(-time.Duration(n) * time.Minute), true
	case 'd':
		return now.Add(-time.Duration(n) * 24 * time.Hour), true
	default:
		return time.Time{}, false
	}
}

// FindByTimeStr returns the newest version whose timestamp is at or
// before the instant named by s, per spec.md §4.8's find_by_time_str.
// Returns ErrInvalidArgument if s doesn't parse, and ErrNotFound if the
// file did not yet exist at that instant.
func FindByTimeStr(ino *Inode, s string, now time.Time) (*VersionEntry, error) {
	target, ok := parseRelativeTime(s, now)
	if !ok {
		return nil, ErrInvalidArgument
	}
	t := target.Unix()

	var best *VersionEntry
	for i := 0; i < int(ino.TotalVersions); i++ {
		v := &ino.Versions[i]
		if v.Timestamp <= t && (best == nil || v.Timestamp > best.Timestamp) {
			best = v
		}
	}
	if best == nil {
		return nil, ErrNotFound
	}
	return best, nil
}
