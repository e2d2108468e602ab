package diff

import (
	"strings"
	"testing"
)

func TestParser_Parse_EmptyInput(t *testing.T) {
	if hunks := ParseHunks("", KindUnstaged); len(hunks) != 0 {
		t.Errorf("expected 0 hunks for empty input, got %d", len(hunks))
	}
}

func TestParser_Parse_SingleFileOneHunk(t *testing.T) {
	diffOutput := `diff --git a/README.md b/README.md
index abc123..def456 100644
--- a/README.md
+++ b/README.md
@@ -1,3 +1,4 @@
 # Title
+New line added
 Some content
 More content
`

	hunks := NewParser(KindStaged).Parse(diffOutput)
	if len(hunks) != 1 {
		t.Fatalf("expected 1 hunk, got %d", len(hunks))
	}

	h := hunks[0]
	if h.Path != "README.md" {
		t.Errorf("expected path 'README.md', got '%s'", h.Path)
	}
	if h.OldStart != 1 || h.OldLines != 3 || h.NewStart != 1 || h.NewLines != 4 {
		t.Errorf("unexpected ranges %d,%d %d,%d", h.OldStart, h.OldLines, h.NewStart, h.NewLines)
	}
	if h.Header != "@@ -1,3 +1,4 @@" {
		t.Errorf("Header = %q", h.Header)
	}
	if h.Content != " # Title\n+New line added\n Some content\n More content" {
		t.Errorf("Content = %q", h.Content)
	}
	if h.Kind != KindStaged {
		t.Errorf("Kind = %q", h.Kind)
	}
	if h.ID != "staged:1:3" {
		t.Errorf("ID = %q", h.ID)
	}
	if h.ContentHash != Fingerprint(h.Header, h.Content) {
		t.Error("ContentHash does not match Fingerprint")
	}
}

func TestParser_Parse_MultipleFiles(t *testing.T) {
	diffOutput := readmeBlock + fooBlock + binaryBlock + guideBlock

	hunks := ParseHunks(diffOutput, KindUnstaged)
	if len(hunks) != 3 {
		t.Fatalf("expected 3 hunks (binary file has none), got %d", len(hunks))
	}

	wantPaths := []string{"README.md", "src/foo.ts", "docs/guide.md"}
	for i, want := range wantPaths {
		if hunks[i].Path != want {
			t.Errorf("hunk %d: path %q, want %q", i, hunks[i].Path, want)
		}
	}
	if hunks[1].Header != "@@ -10,2 +10,3 @@ export function foo() {" {
		t.Errorf("section text lost from header: %q", hunks[1].Header)
	}
	if hunks[2].OldLines != 0 || hunks[2].NewLines != 1 {
		t.Errorf("omitted count must default to 1: %+v", hunks[2])
	}
}

func TestParser_Parse_DuplicateIDs(t *testing.T) {
	diffOutput := "diff --git a/x b/x\n--- a/x\n+++ b/x\n" +
		"@@ -5,0 +6 @@\n+one\n" +
		"@@ -5,0 +7 @@\n+two\n" +
		"diff --git a/y b/y\n--- a/y\n+++ b/y\n" +
		"@@ -5,0 +6 @@\n+three\n"

	hunks := ParseHunks(diffOutput, KindUnstaged)
	if len(hunks) != 3 {
		t.Fatalf("expected 3 hunks, got %d", len(hunks))
	}
	want := []string{"unstaged:5:0", "unstaged:5:0#1", "unstaged:5:0"}
	for i, id := range want {
		if hunks[i].ID != id {
			t.Errorf("hunk %d: ID %q, want %q", i, hunks[i].ID, id)
		}
	}
}

func TestParser_Parse_NoFileHeader(t *testing.T) {
	hunks := ParseHunks("@@ -1 +1 @@\n-a\n+b", KindUnstaged)
	if len(hunks) != 1 {
		t.Fatalf("expected 1 hunk, got %d", len(hunks))
	}
	if hunks[0].Path != "" {
		t.Errorf("expected empty path, got %q", hunks[0].Path)
	}
}

func TestParser_Parse_SkipsNonBodyLines(t *testing.T) {
	hunks := ParseHunks("@@ -1 +1 @@\n-a\ngarbage\n+b\n\\ No newline at end of file", KindUnstaged)
	if len(hunks) != 1 {
		t.Fatalf("expected 1 hunk, got %d", len(hunks))
	}
	if hunks[0].Content != "-a\n+b\n\\ No newline at end of file" {
		t.Errorf("Content = %q", hunks[0].Content)
	}
}

func TestFilterHunks(t *testing.T) {
	hunks := ParseHunks(readmeBlock+fooBlock, KindUnstaged)

	got := FilterHunks(hunks, "./src/foo.ts")
	if len(got) != 1 || got[0].Path != "src/foo.ts" {
		t.Errorf("FilterHunks exact = %+v", got)
	}

	got = FilterHunks(hunks, "unknown.go")
	if len(got) != len(hunks) {
		t.Errorf("expected all hunks when nothing matches, got %d", len(got))
	}
}

func TestCalculateDiffStats(t *testing.T) {
	stats := CalculateDiffStats(readmeBlock)
	if stats.AddedLines != 1 || stats.DeletedLines != 1 {
		t.Errorf("added/deleted = %d/%d, want 1/1", stats.AddedLines, stats.DeletedLines)
	}
	if stats.ByteSize != len(readmeBlock) {
		t.Errorf("ByteSize = %d", stats.ByteSize)
	}
}

func TestIsLargeDiff(t *testing.T) {
	if IsLargeDiff(nil, 0) {
		t.Error("nil stats must not be large")
	}
	small := CalculateDiffStats(readmeBlock)
	if IsLargeDiff(small, 0) {
		t.Error("small diff reported as large")
	}
	if !IsLargeDiff(small, 10) {
		t.Error("custom byte limit not honored")
	}
	many := CalculateDiffStats(strings.Repeat("+x\n", LargeDiffLineThreshold+1))
	if !IsLargeDiff(many, 0) {
		t.Error("line threshold not honored")
	}
}
