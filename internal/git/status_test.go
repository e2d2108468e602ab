package git

import (
	"testing"

	"github.com/gitpanel/host/internal/changelist"
)

func TestParseStatus(t *testing.T) {
	out := " M src/a.go\x00" +
		"M  src/b.go\x00" +
		"MM src/c.go\x00" +
		"?? notes.txt\x00" +
		"UU merge.go\x00" +
		"AA both_added.go\x00" +
		"R  new/name.go\x00old/name.go\x00" +
		"!! build/out\x00"

	files := ParseStatus(out)

	tests := []struct {
		path    string
		status  changelist.StatusKind
		oldPath string
	}{
		{"src/a.go", changelist.StatusUnstaged, ""},
		{"src/b.go", changelist.StatusStaged, ""},
		{"src/c.go", changelist.StatusBoth, ""},
		{"notes.txt", changelist.StatusUntracked, ""},
		{"merge.go", changelist.StatusConflicted, ""},
		{"both_added.go", changelist.StatusConflicted, ""},
		{"new/name.go", changelist.StatusStaged, "old/name.go"},
	}

	if len(files) != len(tests) {
		t.Fatalf("expected %d files, got %d: %+v", len(tests), len(files), files)
	}
	for i, tt := range tests {
		f := files[i]
		if f.Path != tt.path || f.Status != tt.status || f.OldPath != tt.oldPath {
			t.Errorf("file %d = {%s %s %s}, want {%s %s %s}",
				i, f.Path, f.Status, f.OldPath, tt.path, tt.status, tt.oldPath)
		}
	}
}

func TestParseStatus_Empty(t *testing.T) {
	if files := ParseStatus(""); len(files) != 0 {
		t.Errorf("expected no files, got %+v", files)
	}
}
