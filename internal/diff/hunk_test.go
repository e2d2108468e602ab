package diff

import (
	"crypto/sha256"
	"encoding/hex"
	"testing"
)

func TestFingerprint_Deterministic(t *testing.T) {
	h := NewHunk("a.go", KindUnstaged, "@@ -1 +1 @@", 1, 1, 1, 1, "-a\n+b")
	if h.Fingerprint() != h.Fingerprint() {
		t.Fatal("fingerprint changed between calls")
	}
	if h.ContentHash != h.Fingerprint() {
		t.Errorf("ContentHash %q != Fingerprint() %q", h.ContentHash, h.Fingerprint())
	}

	sum := sha256.Sum256([]byte("@@ -1 +1 @@\n-a\n+b"))
	if want := hex.EncodeToString(sum[:]); h.ContentHash != want {
		t.Errorf("ContentHash = %q, want sha256 of header+newline+content %q", h.ContentHash, want)
	}
}

func TestFingerprint_Sensitive(t *testing.T) {
	base := Fingerprint("@@ -1,2 +1,2 @@", " a\n-b\n+c")
	variants := []struct {
		header, content string
	}{
		{"@@ -1,2 +1,3 @@", " a\n-b\n+c"},
		{"@@ -1,2 +1,2 @@ ", " a\n-b\n+c"},
		{"@@ -1,2 +1,2 @@", " a\n-b\n+C"},
		{"@@ -1,2 +1,2 @@", " a\n-b\n+c\n"},
		{"@@ -1,2 +1,2 @@", "  a\n-b\n+c"},
	}
	for _, v := range variants {
		if Fingerprint(v.header, v.content) == base {
			t.Errorf("fingerprint unchanged for header=%q content=%q", v.header, v.content)
		}
	}
}

func TestFingerprint_IndependentOfIDAndKind(t *testing.T) {
	a := NewHunk("a.go", KindUnstaged, "@@ -1 +1 @@", 1, 1, 1, 1, "-a\n+b")
	b := NewHunk("b.go", KindStaged, "@@ -1 +1 @@", 1, 1, 1, 1, "-a\n+b")
	a.ID, b.ID = "x", "y"
	if a.Fingerprint() != b.Fingerprint() {
		t.Error("fingerprint must depend only on header and content")
	}
}

func TestParseKind(t *testing.T) {
	tests := []struct {
		in      string
		want    Kind
		wantErr bool
	}{
		{"", KindUnstaged, false},
		{"unstaged", KindUnstaged, false},
		{"staged", KindStaged, false},
		{"cached", "", true},
	}
	for _, tt := range tests {
		got, err := ParseKind(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseKind(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParseKind(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestConcatHunks(t *testing.T) {
	hunks := []*Hunk{
		NewHunk("a.go", KindUnstaged, "@@ -1 +1 @@", 1, 1, 1, 1, "-a\n+b"),
		NewHunk("a.go", KindUnstaged, "@@ -9,0 +10 @@", 9, 0, 10, 1, "+c"),
	}
	want := "@@ -1 +1 @@\n-a\n+b\n@@ -9,0 +10 @@\n+c"
	if got := ConcatHunks(hunks); got != want {
		t.Errorf("ConcatHunks() = %q, want %q", got, want)
	}
	if got := ConcatHunks(nil); got != "" {
		t.Errorf("ConcatHunks(nil) = %q, want empty", got)
	}
}

func TestFindHunk(t *testing.T) {
	u := NewHunk("a.go", KindUnstaged, "@@ -1 +1 @@", 1, 1, 1, 1, "-a\n+b")
	u.ID = "unstaged:1:1"
	s := NewHunk("a.go", KindStaged, "@@ -1 +1 @@", 1, 1, 1, 1, "-a\n+b")
	s.ID = "staged:1:1"
	hunks := []*Hunk{u, s}

	if got := FindHunk(hunks, KindStaged, "staged:1:1"); got != s {
		t.Errorf("FindHunk staged = %v", got)
	}
	if got := FindHunk(hunks, KindStaged, "unstaged:1:1"); got != nil {
		t.Errorf("kind must match, got %v", got)
	}
}

func TestShortHash(t *testing.T) {
	if got := ShortHash("abcdef0123456789"); got != "abcdef012345" {
		t.Errorf("ShortHash = %q", got)
	}
	if got := ShortHash("abc"); got != "abc" {
		t.Errorf("ShortHash short input = %q", got)
	}
}
