package git

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gitpanel/host/internal/changelist"
	"github.com/gitpanel/host/internal/diff"
)

// setupTestRepo creates a repository with one committed file, test.txt.
func setupTestRepo(t *testing.T) string {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}

	dir := t.TempDir()
	git(t, dir, "init")
	git(t, dir, "config", "user.email", "test@example.com")
	git(t, dir, "config", "user.name", "Test")
	writeFile(t, dir, "test.txt", "initial content\n")
	git(t, dir, "add", ".")
	git(t, dir, "commit", "-m", "initial commit")
	return dir
}

func git(t *testing.T, dir string, args ...string) {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("git %s failed: %v\n%s", strings.Join(args, " "), err, out)
	}
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
}

func TestFetch_UnstagedChange(t *testing.T) {
	dir := setupTestRepo(t)
	writeFile(t, dir, "test.txt", "changed content\n")

	res, err := NewSource(dir).Fetch(context.Background(), "test.txt", diff.KindUnstaged)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if res.Untracked {
		t.Error("tracked file reported as untracked")
	}
	if !strings.Contains(res.Text, "diff --git a/test.txt b/test.txt") {
		t.Errorf("unexpected diff text:\n%s", res.Text)
	}
	if len(res.Hunks) != 1 {
		t.Fatalf("expected 1 hunk, got %d", len(res.Hunks))
	}
	h := res.Hunks[0]
	if h.ID != "unstaged:1:1" {
		t.Errorf("hunk ID = %q, want unstaged:1:1", h.ID)
	}
	if h.Content != "-initial content\n+changed content" {
		t.Errorf("hunk content = %q", h.Content)
	}
	if h.ContentHash != h.Fingerprint() {
		t.Error("content hash does not match fingerprint")
	}
}

func TestFetch_StagedChange(t *testing.T) {
	dir := setupTestRepo(t)
	writeFile(t, dir, "test.txt", "staged content\n")
	git(t, dir, "add", "test.txt")

	src := NewSource(dir)
	unstaged, err := src.Fetch(context.Background(), "test.txt", diff.KindUnstaged)
	if err != nil {
		t.Fatalf("unstaged Fetch failed: %v", err)
	}
	if len(unstaged.Hunks) != 0 {
		t.Errorf("expected no unstaged hunks, got %d", len(unstaged.Hunks))
	}

	staged, err := src.Fetch(context.Background(), "test.txt", diff.KindStaged)
	if err != nil {
		t.Fatalf("staged Fetch failed: %v", err)
	}
	if len(staged.Hunks) != 1 || staged.Hunks[0].Kind != diff.KindStaged {
		t.Fatalf("expected 1 staged hunk, got %+v", staged.Hunks)
	}
	if !strings.HasPrefix(staged.Hunks[0].ID, "staged:") {
		t.Errorf("staged hunk ID = %q", staged.Hunks[0].ID)
	}
}

func TestFetch_UntrackedFileIsSynthesized(t *testing.T) {
	dir := setupTestRepo(t)
	writeFile(t, dir, "new.txt", "new content\n")

	res, err := NewSource(dir).Fetch(context.Background(), "new.txt", diff.KindUnstaged)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if !res.Untracked {
		t.Error("expected untracked file")
	}
	if !strings.Contains(res.Text, "new file mode 100644") {
		t.Errorf("synthesized patch missing new file mode:\n%s", res.Text)
	}
	if len(res.Hunks) != 1 {
		t.Fatalf("expected 1 hunk, got %d", len(res.Hunks))
	}
	if res.Hunks[0].Content != "+new content" {
		t.Errorf("hunk content = %q", res.Hunks[0].Content)
	}
}

func TestFetch_UntrackedBinaryFile(t *testing.T) {
	dir := setupTestRepo(t)
	writeFile(t, dir, "blob.bin", "a\x00b")

	res, err := NewSource(dir).Fetch(context.Background(), "blob.bin", diff.KindUnstaged)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if !strings.Contains(res.Text, "Binary files /dev/null and b/blob.bin differ") {
		t.Errorf("unexpected binary patch:\n%s", res.Text)
	}
	if len(res.Hunks) != 0 {
		t.Errorf("binary patch should have no hunks, got %d", len(res.Hunks))
	}
}

func TestFetch_MissingFileIsEmpty(t *testing.T) {
	dir := setupTestRepo(t)

	res, err := NewSource(dir).Fetch(context.Background(), "nope.txt", diff.KindUnstaged)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if res.Text != "" || len(res.Hunks) != 0 {
		t.Errorf("expected empty result, got %+v", res)
	}
}

func TestFetch_NotARepository(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
	_, err := NewSource(t.TempDir()).Fetch(context.Background(), "x.txt", diff.KindUnstaged)
	if err == nil {
		t.Fatal("expected error outside a repository")
	}
}

func TestDiffAll(t *testing.T) {
	dir := setupTestRepo(t)
	writeFile(t, dir, "other.txt", "other\n")
	git(t, dir, "add", "other.txt")
	writeFile(t, dir, "test.txt", "changed\n")

	src := NewSource(dir)
	unstagedOnly, err := src.DiffAll(context.Background(), false)
	if err != nil {
		t.Fatalf("DiffAll failed: %v", err)
	}
	if strings.Contains(unstagedOnly, "other.txt") {
		t.Error("staged file leaked into unstaged diff")
	}

	all, err := src.DiffAll(context.Background(), true)
	if err != nil {
		t.Fatalf("DiffAll failed: %v", err)
	}
	if !strings.Contains(all, "b/test.txt") || !strings.Contains(all, "b/other.txt") {
		t.Errorf("combined diff missing a file:\n%s", all)
	}
}

func TestStatus(t *testing.T) {
	dir := setupTestRepo(t)
	writeFile(t, dir, "test.txt", "changed\n")
	writeFile(t, dir, "added.txt", "added\n")
	git(t, dir, "add", "added.txt")
	writeFile(t, dir, "loose.txt", "loose\n")

	files, err := NewSource(dir).Status(context.Background())
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}

	got := make(map[string]changelist.StatusKind)
	for _, f := range files {
		got[f.Path] = f.Status
	}
	want := map[string]changelist.StatusKind{
		"test.txt":  changelist.StatusUnstaged,
		"added.txt": changelist.StatusStaged,
		"loose.txt": changelist.StatusUntracked,
	}
	for path, status := range want {
		if got[path] != status {
			t.Errorf("%s: status = %q, want %q", path, got[path], status)
		}
	}
}

// ageRepo backdates the repository metadata and the named files so their
// stat data is old enough to be trusted by the diff cache.
func ageRepo(t *testing.T, dir string, when time.Time, names ...string) {
	t.Helper()
	paths := []string{
		filepath.Join(dir, ".git", "index"),
		filepath.Join(dir, ".git", "HEAD"),
		filepath.Join(dir, ".git", "logs", "HEAD"),
	}
	for _, name := range names {
		paths = append(paths, filepath.Join(dir, name))
	}
	for _, p := range paths {
		if err := os.Chtimes(p, when, when); err != nil {
			t.Fatalf("failed to backdate %s: %v", p, err)
		}
	}
}

func TestFetch_CachedWhileStampUnchanged(t *testing.T) {
	dir := setupTestRepo(t)
	writeFile(t, dir, "test.txt", "changed content\n")
	old := time.Now().Add(-time.Hour)
	ageRepo(t, dir, old, "test.txt")

	src := NewSource(dir)
	first, err := src.Fetch(context.Background(), "test.txt", diff.KindUnstaged)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if src.cache.len() != 1 {
		t.Fatalf("expected one cached diff, got %d", src.cache.len())
	}

	// Same size and timestamp: the cached text is served.
	writeFile(t, dir, "test.txt", "CHANGED content\n")
	ageRepo(t, dir, old, "test.txt")
	again, err := src.Fetch(context.Background(), "test.txt", diff.KindUnstaged)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if again.Text != first.Text {
		t.Fatalf("expected a cache hit, got:\n%s", again.Text)
	}

	// A different timestamp invalidates the entry.
	ageRepo(t, dir, old.Add(time.Second), "test.txt")
	fresh, err := src.Fetch(context.Background(), "test.txt", diff.KindUnstaged)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if !strings.Contains(fresh.Text, "+CHANGED content") {
		t.Errorf("stale diff served after the file changed:\n%s", fresh.Text)
	}
}

func TestFetch_RecentChangesAreNotCached(t *testing.T) {
	dir := setupTestRepo(t)
	writeFile(t, dir, "test.txt", "changed content\n")

	src := NewSource(dir)
	if _, err := src.Fetch(context.Background(), "test.txt", diff.KindUnstaged); err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if n := src.cache.len(); n != 0 {
		t.Errorf("recently modified file was cached (%d entries)", n)
	}

	writeFile(t, dir, "test.txt", "CHANGED content\n")
	res, err := src.Fetch(context.Background(), "test.txt", diff.KindUnstaged)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if !strings.Contains(res.Text, "+CHANGED content") {
		t.Errorf("expected the latest content:\n%s", res.Text)
	}
}

func TestInvalidateCache(t *testing.T) {
	dir := setupTestRepo(t)
	writeFile(t, dir, "test.txt", "changed content\n")
	old := time.Now().Add(-time.Hour)
	ageRepo(t, dir, old, "test.txt")

	src := NewSource(dir)
	if _, err := src.Fetch(context.Background(), "test.txt", diff.KindUnstaged); err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	writeFile(t, dir, "test.txt", "CHANGED content\n")
	ageRepo(t, dir, old, "test.txt")

	src.InvalidateCache()
	res, err := src.Fetch(context.Background(), "test.txt", diff.KindUnstaged)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if !strings.Contains(res.Text, "+CHANGED content") {
		t.Errorf("expected a refetch after invalidation:\n%s", res.Text)
	}
}

func TestDiffCache_EvictsOldest(t *testing.T) {
	c := newDiffCache(2)
	c.put("a", cacheEntry{stamp: "1", text: "A"})
	c.put("b", cacheEntry{stamp: "1", text: "B"})
	c.put("a", cacheEntry{stamp: "2", text: "A2"})
	c.put("c", cacheEntry{stamp: "1", text: "C"})

	if c.len() != 2 {
		t.Fatalf("len = %d, want 2", c.len())
	}
	if _, ok := c.get("a", "2"); ok {
		t.Error("oldest entry a should be evicted")
	}
	if e, ok := c.get("b", "1"); !ok || e.text != "B" {
		t.Errorf("b = %+v, %v", e, ok)
	}
	if _, ok := c.get("c", "0"); ok {
		t.Error("stamp mismatch must miss")
	}
}
