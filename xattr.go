package smartfs

import (
	"fmt"
	"strconv"
	"strings"
)

// Special xattr key names understood by the host shim and routed to
// engine operations, per spec.md §6.
const (
	XattrSnapshot = "user.smartfs.snapshot"
	XattrPin      = "user.smartfs.pin"
	XattrBackup   = "user.smartfs.backup"
	XattrVersions = "user.smartfs.versions"
)

// SetXattr routes the four special keys to their engine operation;
// any other name is stored as a plain inline xattr slot on the inode,
// per spec.md §3's xattr entry data model.
func (e *Engine) SetXattr(inode uint64, name, value string) error {
	switch name {
	case XattrSnapshot:
		_, err := e.CreateSnapshot(inode, value)
		return err
	case XattrPin:
		id, err := parseVersionTag(value)
		if err != nil {
			return err
		}
		latest, err := e.GetVersion(inode, 0)
		if err != nil {
			return err
		}
		if id > latest.VersionID {
			return fmt.Errorf("%w: version v%d was never assigned", ErrInvalidArgument, id)
		}
		_, err = e.TogglePin(inode, id)
		return err
	case XattrBackup:
		return e.Backup(inode, value)
	case XattrVersions:
		return fmt.Errorf("%w: %s is read-only", ErrInvalidArgument, name)
	default:
		return e.setInlineXattr(inode, name, value)
	}
}

// GetXattr returns the value for name. XattrVersions renders
// ListVersions' text; anything else is read back from the inline xattr
// slots.
func (e *Engine) GetXattr(inode uint64, name string) (string, error) {
	if name == XattrVersions {
		buf := make([]byte, 64*MaxVersions)
		n, err := e.ListVersions(inode, buf)
		if err != nil {
			return "", err
		}
		return string(buf[:n]), nil
	}
	return e.getInlineXattr(inode, name)
}

func parseVersionTag(value string) (uint32, error) {
	if !strings.HasPrefix(value, "v") {
		return 0, fmt.Errorf("%w: pin value must look like v<N>", ErrInvalidArgument)
	}
	id, err := strconv.ParseUint(value[1:], 10, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: pin value must look like v<N>", ErrInvalidArgument)
	}
	return uint32(id), nil
}

func (e *Engine) setInlineXattr(inode uint64, name, value string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	ino, err := e.sb.readInode(inode)
	if err != nil {
		return err
	}
	if ino.Free() {
		return ErrNotFound
	}
	if len(name) > MaxXattrName || len(value) > MaxXattrValue {
		return fmt.Errorf("%w: xattr name or value too long", ErrInvalidArgument)
	}

	slot := -1
	for i := range ino.Xattrs {
		if ino.Xattrs[i].Valid == 1 && cStr(ino.Xattrs[i].Name[:]) == name {
			slot = i
			break
		}
	}
	if slot < 0 {
		for i := range ino.Xattrs {
			if ino.Xattrs[i].Valid == 0 {
				slot = i
				break
			}
		}
	}
	if slot < 0 {
		return fmt.Errorf("%w: no free xattr slots", ErrNoSpace)
	}

	setCStr(ino.Xattrs[slot].Name[:], name)
	setCStr(ino.Xattrs[slot].Value[:], value)
	ino.Xattrs[slot].Valid = 1
	return e.sb.writeInode(inode, ino)
}

func (e *Engine) getInlineXattr(inode uint64, name string) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ino, err := e.sb.readInode(inode)
	if err != nil {
		return "", err
	}
	if ino.Free() {
		return "", ErrNotFound
	}
	for i := range ino.Xattrs {
		if ino.Xattrs[i].Valid == 1 && cStr(ino.Xattrs[i].Name[:]) == name {
			return cStr(ino.Xattrs[i].Value[:]), nil
		}
	}
	return "", ErrNotFound
}
