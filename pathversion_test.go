package smartfs

import (
	"testing"
	"time"
)

func TestParseVersionPath(t *testing.T) {
	cases := []struct {
		path     string
		wantReal string
		wantKind VersionQueryKind
		wantVal  any
	}{
		{"/a/b/file", "/a/b/file", VersionQueryNone, nil},
		{"/a/file@v3", "/a/file", VersionQueryID, uint32(3)},
		{"/a/file@2h", "/a/file", VersionQueryTime, "2h"},
		{"/a/file@30m", "/a/file", VersionQueryTime, "30m"},
		{"/a/file@7d", "/a/file", VersionQueryTime, "7d"},
		{"/a/file@yesterday", "/a/file", VersionQueryTime, "yesterday"},
		{"email@site", "email@site", VersionQueryNone, nil},
		{"@leading", "@leading", VersionQueryNone, nil},
		{"/a/file@notaversion", "/a/file@notaversion", VersionQueryNone, nil},
	}
	for _, c := range cases {
		real, kind, val := ParseVersionPath(c.path)
		if real != c.wantReal || kind != c.wantKind || val != c.wantVal {
			t.Errorf("ParseVersionPath(%q) = (%q, %v, %v), want (%q, %v, %v)",
				c.path, real, kind, val, c.wantReal, c.wantKind, c.wantVal)
		}
	}
}

func TestParseVersionPathRoundtrip(t *testing.T) {
	real := "/docs/report"
	for _, suffix := range []string{"v1", "v42", "2h", "30m", "7d", "yesterday"} {
		path := real + "@" + suffix
		gotReal, kind, _ := ParseVersionPath(path)
		if gotReal != real {
			t.Errorf("ParseVersionPath(%q) real = %q, want %q", path, gotReal, real)
		}
		if kind == VersionQueryNone {
			t.Errorf("ParseVersionPath(%q) kind = None, want a recognized suffix", path)
		}
	}
}

func TestFindByTimeStr(t *testing.T) {
	now := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	ino := &Inode{}
	InitInode(ino, now.Add(-3*time.Hour))
	if _, err := CreateSnapshot(ino, "v2", now.Add(-time.Hour)); err != nil {
		t.Fatalf("CreateSnapshot: %v", err)
	}

	v, err := FindByTimeStr(ino, "2h", now)
	if err != nil {
		t.Fatalf("FindByTimeStr: %v", err)
	}
	if v.VersionID != 1 {
		t.Errorf("FindByTimeStr(2h) returned v%d, want v1", v.VersionID)
	}

	v, err = FindByTimeStr(ino, "30m", now)
	if err != nil {
		t.Fatalf("FindByTimeStr: %v", err)
	}
	if v.VersionID != 2 {
		t.Errorf("FindByTimeStr(30m) returned v%d, want v2", v.VersionID)
	}

	if _, err := FindByTimeStr(ino, "30d", now); err != ErrNotFound {
		t.Errorf("FindByTimeStr(30d) err = %v, want ErrNotFound (file didn't exist yet)", err)
	}

	if _, err := FindByTimeStr(ino, "bogus", now); err != ErrInvalidArgument {
		t.Errorf("FindByTimeStr(bogus) err = %v, want ErrInvalidArgument", err)
	}
}
