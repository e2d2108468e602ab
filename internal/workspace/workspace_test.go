package workspace

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gitpanel/host/internal/changelist"
	"github.com/gitpanel/host/internal/diff"
	"github.com/gitpanel/host/internal/dispatch"
	apperrors "github.com/gitpanel/host/internal/errors"
	"github.com/gitpanel/host/internal/git"
	"github.com/gitpanel/host/internal/storage"
)

const utilV1 = `diff --git a/src/util.go b/src/util.go
--- a/src/util.go
+++ b/src/util.go
@@ -1,2 +1,2 @@
 package util
-var x = 1
+var x = 2
@@ -10,1 +10,2 @@
 func f() {}
+func g() {}
`

// utilV2 edits the first hunk of utilV1 and leaves the second alone.
const utilV2 = `diff --git a/src/util.go b/src/util.go
--- a/src/util.go
+++ b/src/util.go
@@ -1,2 +1,2 @@
 package util
-var x = 1
+var x = 3
@@ -10,1 +10,2 @@
 func f() {}
+func g() {}
`

// fakeSource serves canned patches keyed by path and kind. Fetches of a
// path listed in delays take that long.
type fakeSource struct {
	mu      sync.Mutex
	patches map[string]string
	delays  map[string]time.Duration
	status  []changelist.StatusFile
	err     error
}

func (f *fakeSource) set(path string, kind diff.Kind, patch string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.patches == nil {
		f.patches = make(map[string]string)
	}
	f.patches[string(kind)+":"+path] = patch
}

func (f *fakeSource) Fetch(ctx context.Context, path string, kind diff.Kind) (*git.FetchResult, error) {
	f.mu.Lock()
	delay := f.delays[path]
	f.mu.Unlock()
	time.Sleep(delay)

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	text := f.patches[string(kind)+":"+path]
	return &git.FetchResult{
		Path:  path,
		Kind:  kind,
		Text:  text,
		Hunks: diff.FilterHunks(diff.ParseHunks(text, kind), path),
	}, nil
}

func (f *fakeSource) Status(ctx context.Context) ([]changelist.StatusFile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]changelist.StatusFile(nil), f.status...), nil
}

func fixedTime() time.Time {
	return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
}

// failingStore accepts loads and rejects every save.
type failingStore struct{}

func (failingStore) LoadState() (*changelist.State, error) {
	return changelist.DefaultState(fixedTime()), nil
}

func (failingStore) SaveState(*changelist.State) error {
	return apperrors.New(apperrors.CodeStorageSaveFailed, "disk full")
}

func (failingStore) RecordPreview(*storage.PreviewAuditEntry) error {
	return errors.New("disk full")
}

func newTestStore(t *testing.T) *storage.SQLiteStore {
	t.Helper()
	store, err := storage.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func newTestWorkspace(t *testing.T, src Source, store Store) *Workspace {
	t.Helper()
	ch := dispatch.New(dispatch.Config{Workers: 1})
	t.Cleanup(ch.Close)
	w, err := Open(Config{Source: src, Dispatch: ch, Store: store})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	return w
}

func TestOpen_DefaultStateIsPersisted(t *testing.T) {
	store := newTestStore(t)
	w := newTestWorkspace(t, &fakeSource{}, store)

	if got := w.State().ActiveID; got != changelist.DefaultID {
		t.Errorf("ActiveID = %q, want %q", got, changelist.DefaultID)
	}

	loaded, err := store.LoadState()
	if err != nil {
		t.Fatalf("LoadState failed: %v", err)
	}
	if loaded == nil || len(loaded.Lists) != 1 || loaded.Lists[0].ID != changelist.DefaultID {
		t.Fatalf("default state not saved: %+v", loaded)
	}
}

func TestOpen_RequiresCollaborators(t *testing.T) {
	if _, err := Open(Config{}); err == nil {
		t.Error("expected error without a source")
	}
	if _, err := Open(Config{Source: &fakeSource{}}); err == nil {
		t.Error("expected error without a dispatch channel")
	}
}

func TestMutationsSurviveReopen(t *testing.T) {
	store := newTestStore(t)
	w := newTestWorkspace(t, &fakeSource{}, store)

	cl, err := w.CreateChangelist("Feature")
	if err != nil {
		t.Fatalf("CreateChangelist failed: %v", err)
	}
	if err := w.AssignFiles(cl.ID, []string{"./README.md"}); err != nil {
		t.Fatalf("AssignFiles failed: %v", err)
	}
	if err := w.SetActive(cl.ID); err != nil {
		t.Fatalf("SetActive failed: %v", err)
	}

	reopened := newTestWorkspace(t, &fakeSource{}, store)
	state := reopened.State()
	if state.ActiveID != cl.ID {
		t.Errorf("ActiveID = %q, want %q", state.ActiveID, cl.ID)
	}
	if state.FileAssignments["README.md"] != cl.ID {
		t.Errorf("file assignment lost: %+v", state.FileAssignments)
	}
}

func TestMutate_SaveFailureRollsBack(t *testing.T) {
	ch := dispatch.New(dispatch.Config{Workers: 1})
	t.Cleanup(ch.Close)
	w, err := Open(Config{Source: &fakeSource{}, Dispatch: ch, Store: failingStore{}})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	if _, err := w.CreateChangelist("Doomed"); !apperrors.IsCode(err, apperrors.CodeStorageSaveFailed) {
		t.Fatalf("expected save failure, got %v", err)
	}
	if n := len(w.State().Lists); n != 1 {
		t.Errorf("expected rollback to 1 list, got %d", n)
	}
}

func TestOnStateChange(t *testing.T) {
	ch := dispatch.New(dispatch.Config{Workers: 1})
	t.Cleanup(ch.Close)

	var seen []*changelist.State
	w, err := Open(Config{
		Source:        &fakeSource{},
		Dispatch:      ch,
		OnStateChange: func(s *changelist.State) { seen = append(seen, s) },
	})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	if _, err := w.CreateChangelist("A"); err != nil {
		t.Fatalf("CreateChangelist failed: %v", err)
	}
	if err := w.RenameChangelist("missing", "B"); err == nil {
		t.Fatal("expected error renaming unknown changelist")
	}
	if len(seen) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(seen))
	}
	if len(seen[0].Lists) != 2 {
		t.Errorf("notification should carry the new list: %+v", seen[0].Lists)
	}
}

// switchableStore wraps a real store and rejects saves while failing is set.
type switchableStore struct {
	*storage.SQLiteStore
	failing bool
}

func (s *switchableStore) SaveState(state *changelist.State) error {
	if s.failing {
		return apperrors.New(apperrors.CodeStorageSaveFailed, "disk full")
	}
	return s.SQLiteStore.SaveState(state)
}

func TestStatus_RenameIsAnnouncedAndSaved(t *testing.T) {
	store := newTestStore(t)
	src := &fakeSource{}
	ch := dispatch.New(dispatch.Config{Workers: 1})
	t.Cleanup(ch.Close)

	var seen []*changelist.State
	w, err := Open(Config{
		Source:        src,
		Dispatch:      ch,
		Store:         store,
		OnStateChange: func(s *changelist.State) { seen = append(seen, s) },
	})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	cl, _ := w.CreateChangelist("Feature")
	if err := w.AssignFiles(cl.ID, []string{"old.go"}); err != nil {
		t.Fatalf("AssignFiles failed: %v", err)
	}
	seen = nil

	// No rename: nothing to announce.
	src.status = []changelist.StatusFile{{Path: "old.go", Status: changelist.StatusUnstaged}}
	if _, err := w.Status(context.Background()); err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if len(seen) != 0 {
		t.Fatalf("unchanged status announced %d times", len(seen))
	}

	src.status = []changelist.StatusFile{{Path: "new.go", OldPath: "old.go", Status: changelist.StatusStaged}}
	files, err := w.Status(context.Background())
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if files[0].ChangelistID != cl.ID {
		t.Errorf("renamed file not annotated: %+v", files[0])
	}
	if len(seen) != 1 || seen[0].FileAssignments["new.go"] != cl.ID {
		t.Fatalf("rename should be announced once with the moved assignment, got %d", len(seen))
	}

	loaded, err := store.LoadState()
	if err != nil {
		t.Fatalf("LoadState failed: %v", err)
	}
	if loaded.FileAssignments["new.go"] != cl.ID {
		t.Errorf("moved assignment not saved: %+v", loaded.FileAssignments)
	}
}

func TestStatus_RenameSaveFailureRollsBack(t *testing.T) {
	store := &switchableStore{SQLiteStore: newTestStore(t)}
	src := &fakeSource{}
	w := newTestWorkspace(t, src, store)
	cl, _ := w.CreateChangelist("Feature")
	_ = w.AssignFiles(cl.ID, []string{"old.go"})

	store.failing = true
	src.status = []changelist.StatusFile{{Path: "new.go", OldPath: "old.go", Status: changelist.StatusStaged}}
	if _, err := w.Status(context.Background()); !apperrors.IsCode(err, apperrors.CodeStorageSaveFailed) {
		t.Fatalf("expected save failure, got %v", err)
	}

	state := w.State()
	if state.FileAssignments["old.go"] != cl.ID {
		t.Errorf("assignment should stay on the old path: %+v", state.FileAssignments)
	}
	if _, ok := state.FileAssignments["new.go"]; ok {
		t.Error("unsaved move kept in memory")
	}
}

func TestAssignHunks(t *testing.T) {
	src := &fakeSource{}
	src.set("src/util.go", diff.KindUnstaged, utilV1)
	w := newTestWorkspace(t, src, nil)
	cl, _ := w.CreateChangelist("Partial")

	err := w.AssignHunks(context.Background(), "src/util.go", cl.ID, []HunkRef{{ID: "unstaged:1:2"}})
	if err != nil {
		t.Fatalf("AssignHunks failed: %v", err)
	}
	set := w.State().HunkAssignments["src/util.go"]
	if set == nil || set.ChangelistID != cl.ID || len(set.Hunks) != 1 {
		t.Fatalf("unexpected hunk set: %+v", set)
	}
	if set.Hunks[0].Kind != diff.KindUnstaged {
		t.Errorf("kind = %q, want unstaged", set.Hunks[0].Kind)
	}

	err = w.AssignHunks(context.Background(), "src/util.go", cl.ID, []HunkRef{{ID: "unstaged:99:1"}})
	if !apperrors.IsCode(err, apperrors.CodeChangelistHunkNotFound) {
		t.Errorf("expected %s, got %v", apperrors.CodeChangelistHunkNotFound, err)
	}

	err = w.AssignHunks(context.Background(), "src/util.go", cl.ID, nil)
	if !apperrors.IsCode(err, apperrors.CodeChangelistNoHunks) {
		t.Errorf("expected %s, got %v", apperrors.CodeChangelistNoHunks, err)
	}

	if err := w.UnassignHunks("src/util.go", []string{"unstaged:1:2"}); err != nil {
		t.Fatalf("UnassignHunks failed: %v", err)
	}
	if _, ok := w.State().HunkAssignments["src/util.go"]; ok {
		t.Error("empty hunk set should be dropped")
	}
}

func TestInvalidHunks_AfterEdit(t *testing.T) {
	src := &fakeSource{}
	src.set("src/util.go", diff.KindUnstaged, utilV1)
	w := newTestWorkspace(t, src, nil)
	cl, _ := w.CreateChangelist("Partial")

	refs := []HunkRef{{ID: "unstaged:1:2"}, {ID: "unstaged:10:1"}}
	if err := w.AssignHunks(context.Background(), "src/util.go", cl.ID, refs); err != nil {
		t.Fatalf("AssignHunks failed: %v", err)
	}

	invalid, err := w.InvalidHunks(context.Background(), "src/util.go", cl.ID)
	if err != nil {
		t.Fatalf("InvalidHunks failed: %v", err)
	}
	if len(invalid) != 0 {
		t.Fatalf("expected no invalid hunks before edit, got %+v", invalid)
	}

	src.set("src/util.go", diff.KindUnstaged, utilV2)
	invalid, err = w.InvalidHunks(context.Background(), "src/util.go", cl.ID)
	if err != nil {
		t.Fatalf("InvalidHunks failed: %v", err)
	}
	if len(invalid) != 1 || invalid[0].ID != "unstaged:1:2" {
		t.Fatalf("expected the edited hunk to be invalid, got %+v", invalid)
	}

	if _, err := w.InvalidHunks(context.Background(), "src/util.go", "missing"); !apperrors.IsCode(err, apperrors.CodeChangelistUnknown) {
		t.Errorf("expected %s, got %v", apperrors.CodeChangelistUnknown, err)
	}
}

func TestPreview_StaleHunkBlocksAndIsAudited(t *testing.T) {
	store := newTestStore(t)
	src := &fakeSource{status: []changelist.StatusFile{
		{Path: "src/util.go", Status: changelist.StatusUnstaged},
	}}
	src.set("src/util.go", diff.KindUnstaged, utilV1)
	w := newTestWorkspace(t, src, store)
	cl, _ := w.CreateChangelist("Partial")

	refs := []HunkRef{{ID: "unstaged:1:2"}, {ID: "unstaged:10:1"}}
	if err := w.AssignHunks(context.Background(), "src/util.go", cl.ID, refs); err != nil {
		t.Fatalf("AssignHunks failed: %v", err)
	}

	p, err := w.Preview(context.Background(), cl.ID)
	if err != nil {
		t.Fatalf("Preview failed: %v", err)
	}
	if p.Blocked() {
		t.Fatalf("fresh selection should not be blocked: %+v", p.InvalidHunks)
	}

	src.set("src/util.go", diff.KindUnstaged, utilV2)
	p, err = w.Preview(context.Background(), cl.ID)
	if err != nil {
		t.Fatalf("Preview failed: %v", err)
	}
	if !p.Blocked() {
		t.Fatal("edited hunk should block the commit")
	}
	if err := p.RequireCommittable(); !apperrors.IsCode(err, apperrors.CodeChangelistInvalidHunks) {
		t.Errorf("expected %s, got %v", apperrors.CodeChangelistInvalidHunks, err)
	}

	if _, err := w.Preview(context.Background(), changelist.DefaultID); !apperrors.IsCode(err, apperrors.CodeChangelistEmpty) {
		t.Errorf("expected %s for default list, got %v", apperrors.CodeChangelistEmpty, err)
	}

	entries, err := store.ListPreviewAudit(0)
	if err != nil {
		t.Fatalf("ListPreviewAudit failed: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 audit entries, got %d", len(entries))
	}
	if entries[0].ErrorCode != apperrors.CodeChangelistEmpty {
		t.Errorf("newest entry error code = %q", entries[0].ErrorCode)
	}
	if !entries[1].Blocked || entries[1].InvalidHunks != 1 {
		t.Errorf("blocked preview not audited: %+v", entries[1])
	}
}

func TestStatus_AnnotatesChangelists(t *testing.T) {
	src := &fakeSource{status: []changelist.StatusFile{
		{Path: "a.go", Status: changelist.StatusUnstaged},
		{Path: "b.go", Status: changelist.StatusStaged},
	}}
	w := newTestWorkspace(t, src, nil)
	cl, _ := w.CreateChangelist("Feature")
	if err := w.AssignFiles(cl.ID, []string{"a.go"}); err != nil {
		t.Fatalf("AssignFiles failed: %v", err)
	}

	files, err := w.Status(context.Background())
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if files[0].ChangelistID != cl.ID || files[0].ChangelistName != "Feature" {
		t.Errorf("a.go annotated as %+v", files[0])
	}
	if files[1].ChangelistID != changelist.DefaultID {
		t.Errorf("b.go annotated as %+v", files[1])
	}
}

func TestClearAssignments(t *testing.T) {
	w := newTestWorkspace(t, &fakeSource{}, nil)
	cl, _ := w.CreateChangelist("Feature")
	if err := w.AssignFiles(cl.ID, []string{"a.go", "b.go"}); err != nil {
		t.Fatalf("AssignFiles failed: %v", err)
	}

	if err := w.ClearAssignments([]string{"a.go", "untouched.go"}); err != nil {
		t.Fatalf("ClearAssignments failed: %v", err)
	}
	state := w.State()
	if _, ok := state.FileAssignments["a.go"]; ok {
		t.Error("a.go should be cleared")
	}
	if state.FileAssignments["b.go"] != cl.ID {
		t.Error("b.go should stay assigned")
	}
}

func TestDiff(t *testing.T) {
	src := &fakeSource{}
	src.set("src/util.go", diff.KindUnstaged, utilV1)
	w := newTestWorkspace(t, src, nil)

	res, err := w.Diff(context.Background(), "client-1", DiffRequest{Path: "src/util.go"})
	if err != nil {
		t.Fatalf("Diff failed: %v", err)
	}
	if res.Renderable == nil {
		t.Fatal("expected a renderable diff")
	}
	if len(res.Renderable.Hunks) != 2 {
		t.Fatalf("expected 2 hunks, got %d", len(res.Renderable.Hunks))
	}
	if got := res.Renderable.Hunks[0].ID; got != "unstaged:1:2" {
		t.Errorf("first hunk ID = %q, want unstaged:1:2", got)
	}
	if res.Renderable.Source != diff.SourcePrimary {
		t.Errorf("Source = %q", res.Renderable.Source)
	}
}

func TestDiff_CleanFile(t *testing.T) {
	w := newTestWorkspace(t, &fakeSource{}, nil)

	res, err := w.Diff(context.Background(), "client-1", DiffRequest{Path: "clean.go", Kind: diff.KindStaged})
	if err != nil {
		t.Fatalf("Diff failed: %v", err)
	}
	if res.Renderable != nil || len(res.Hunks) != 0 {
		t.Errorf("clean file should have no diff: %+v", res)
	}
}

func TestDiff_SourceError(t *testing.T) {
	src := &fakeSource{err: apperrors.SourceFailed("x.go", errors.New("boom"))}
	w := newTestWorkspace(t, src, nil)

	_, err := w.Diff(context.Background(), "client-1", DiffRequest{Path: "x.go"})
	if !apperrors.IsCode(err, apperrors.CodeDiffSourceFailed) {
		t.Errorf("expected %s, got %v", apperrors.CodeDiffSourceFailed, err)
	}
}

func TestDiff_SlowFetchOfEarlierRequestIsSuperseded(t *testing.T) {
	src := &fakeSource{delays: map[string]time.Duration{"slow.go": 200 * time.Millisecond}}
	src.set("slow.go", diff.KindUnstaged, strings.ReplaceAll(utilV1, "src/util.go", "slow.go"))
	src.set("fast.go", diff.KindUnstaged, strings.ReplaceAll(utilV1, "src/util.go", "fast.go"))
	w := newTestWorkspace(t, src, nil)

	type outcome struct {
		res *DiffResult
		err error
	}
	first := w.IssueDiff("pane", DiffRequest{Path: "slow.go"})
	second := w.IssueDiff("pane", DiffRequest{Path: "fast.go"})

	results := make(chan outcome, 2)
	firstDone := make(chan outcome, 1)
	go func() {
		res, err := first(context.Background())
		firstDone <- outcome{res, err}
	}()
	go func() {
		res, err := second(context.Background())
		results <- outcome{res, err}
	}()

	got := <-results
	if got.err != nil || got.res == nil || got.res.Path != "fast.go" {
		t.Fatalf("later request should apply, got %+v", got)
	}

	old := <-firstDone
	if !apperrors.IsCode(old.err, apperrors.CodeDiffSuperseded) {
		t.Fatalf("earlier request should be superseded after its slow fetch, got res=%v err=%v", old.res, old.err)
	}
}

func TestDiff_FetchErrorOfSupersededRequest(t *testing.T) {
	src := &fakeSource{err: apperrors.SourceFailed("x.go", errors.New("boom"))}
	w := newTestWorkspace(t, src, nil)

	first := w.IssueDiff("pane", DiffRequest{Path: "x.go"})
	_ = w.IssueDiff("pane", DiffRequest{Path: "y.go"})

	if _, err := first(context.Background()); !apperrors.IsCode(err, apperrors.CodeDiffSuperseded) {
		t.Errorf("expected %s, got %v", apperrors.CodeDiffSuperseded, err)
	}
}

func TestPreview_FetchesWithoutHoldingState(t *testing.T) {
	src := &fakeSource{status: []changelist.StatusFile{
		{Path: "src/util.go", Status: changelist.StatusUnstaged},
	}}
	src.set("src/util.go", diff.KindUnstaged, utilV1)
	w := newTestWorkspace(t, src, nil)
	cl, _ := w.CreateChangelist("Partial")
	if err := w.AssignHunks(context.Background(), "src/util.go", cl.ID, []HunkRef{{ID: "unstaged:1:2"}}); err != nil {
		t.Fatalf("AssignHunks failed: %v", err)
	}

	src.mu.Lock()
	src.delays = map[string]time.Duration{"src/util.go": 300 * time.Millisecond}
	src.mu.Unlock()

	done := make(chan error, 1)
	go func() {
		_, err := w.Preview(context.Background(), cl.ID)
		done <- err
	}()
	time.Sleep(50 * time.Millisecond)

	start := time.Now()
	if _, err := w.CreateChangelist("Meanwhile"); err != nil {
		t.Fatalf("CreateChangelist failed: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 200*time.Millisecond {
		t.Errorf("mutation waited %v behind the preview fetch", elapsed)
	}
	if err := <-done; err != nil {
		t.Fatalf("Preview failed: %v", err)
	}
}

func TestPreview_FetchErrorIsAudited(t *testing.T) {
	store := newTestStore(t)
	src := &fakeSource{status: []changelist.StatusFile{
		{Path: "src/util.go", Status: changelist.StatusUnstaged},
	}}
	src.set("src/util.go", diff.KindUnstaged, utilV1)
	w := newTestWorkspace(t, src, store)
	cl, _ := w.CreateChangelist("Partial")
	if err := w.AssignHunks(context.Background(), "src/util.go", cl.ID, []HunkRef{{ID: "unstaged:1:2"}}); err != nil {
		t.Fatalf("AssignHunks failed: %v", err)
	}

	src.mu.Lock()
	src.err = apperrors.SourceFailed("src/util.go", errors.New("boom"))
	src.mu.Unlock()

	if _, err := w.Preview(context.Background(), cl.ID); !apperrors.IsCode(err, apperrors.CodeDiffSourceFailed) {
		t.Fatalf("expected %s, got %v", apperrors.CodeDiffSourceFailed, err)
	}
	entries, err := store.ListPreviewAudit(0)
	if err != nil {
		t.Fatalf("ListPreviewAudit failed: %v", err)
	}
	if len(entries) != 1 || entries[0].ErrorCode != apperrors.CodeDiffSourceFailed {
		t.Errorf("expected one audited failure, got %+v", entries)
	}
}
