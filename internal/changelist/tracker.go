package changelist

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/gitpanel/host/internal/diff"
	apperrors "github.com/gitpanel/host/internal/errors"
)

// Tracker applies every mutation to a State. It holds no lock: the owner of
// the state serializes calls.
type Tracker struct {
	state *State
	now   func() time.Time
	newID func() string
}

// NewTracker wraps state, normalizing it first. A nil state starts from
// DefaultState.
func NewTracker(state *State) *Tracker {
	t := &Tracker{
		now:   time.Now,
		newID: func() string { return "cl-" + uuid.New().String() },
	}
	if state == nil {
		state = DefaultState(t.now())
	}
	state.Normalize(t.now())
	t.state = state
	return t
}

// State returns the tracked state. Callers must not modify it directly.
func (t *Tracker) State() *State {
	return t.state
}

// Create adds a changelist with the given name.
func (t *Tracker) Create(name string) (Changelist, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Changelist{}, apperrors.InvalidName()
	}
	cl := Changelist{
		ID:        t.newID(),
		Name:      name,
		CreatedAt: t.now().UnixMilli(),
	}
	t.state.Lists = append(t.state.Lists, cl)
	return cl, nil
}

// Rename changes the display name of a changelist.
func (t *Tracker) Rename(id, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return apperrors.InvalidName()
	}
	for i := range t.state.Lists {
		if t.state.Lists[i].ID == id {
			t.state.Lists[i].Name = name
			return nil
		}
	}
	return apperrors.UnknownChangelist(id)
}

// Delete removes a changelist together with its file and hunk assignments.
// If it was active, the default changelist becomes active. The default
// changelist cannot be deleted.
func (t *Tracker) Delete(id string) error {
	if id == DefaultID {
		return apperrors.DefaultProtected()
	}
	if _, ok := t.state.Lookup(id); !ok {
		return apperrors.UnknownChangelist(id)
	}

	lists := t.state.Lists[:0]
	for _, cl := range t.state.Lists {
		if cl.ID != id {
			lists = append(lists, cl)
		}
	}
	t.state.Lists = lists

	for path, assigned := range t.state.FileAssignments {
		if assigned == id {
			delete(t.state.FileAssignments, path)
		}
	}
	for path, set := range t.state.HunkAssignments {
		if set.ChangelistID == id {
			delete(t.state.HunkAssignments, path)
		}
	}
	if t.state.ActiveID == id {
		t.state.ActiveID = DefaultID
	}
	return nil
}

// SetActive selects the changelist new files are associated with in the UI.
func (t *Tracker) SetActive(id string) error {
	if _, ok := t.state.Lookup(id); !ok {
		return apperrors.UnknownChangelist(id)
	}
	t.state.ActiveID = id
	return nil
}

// AssignFiles moves whole files into a changelist. Any hunk selection for
// those files is dropped.
func (t *Tracker) AssignFiles(id string, paths []string) error {
	if _, ok := t.state.Lookup(id); !ok {
		return apperrors.UnknownChangelist(id)
	}
	for _, p := range paths {
		p = diff.NormalizePath(p)
		t.state.FileAssignments[p] = id
		delete(t.state.HunkAssignments, p)
	}
	return nil
}

// UnassignFiles returns whole files to the default changelist. Hunk
// selections are kept.
func (t *Tracker) UnassignFiles(paths []string) {
	for _, p := range paths {
		delete(t.state.FileAssignments, diff.NormalizePath(p))
	}
}

// ClearAssignments forgets every file and hunk assignment for paths. It is
// used when a file's last diff disappears.
func (t *Tracker) ClearAssignments(paths []string) bool {
	changed := false
	for _, p := range paths {
		p = diff.NormalizePath(p)
		if _, ok := t.state.FileAssignments[p]; ok {
			delete(t.state.FileAssignments, p)
			changed = true
		}
		if _, ok := t.state.HunkAssignments[p]; ok {
			delete(t.state.HunkAssignments, p)
			changed = true
		}
	}
	return changed
}

// AssignHunks snapshots hunks into a changelist for path, replacing any
// previous selection for that path whichever changelist it belonged to.
// The whole-file assignment for path is removed.
func (t *Tracker) AssignHunks(path, id string, hunks []*diff.Hunk) error {
	path = diff.NormalizePath(path)
	if len(hunks) == 0 {
		return apperrors.NoHunks(path)
	}
	if _, ok := t.state.Lookup(id); !ok {
		return apperrors.UnknownChangelist(id)
	}

	set := &HunkAssignmentSet{ChangelistID: id}
	seen := make(map[string]bool, len(hunks))
	for _, h := range hunks {
		key := string(h.Kind) + "\x00" + h.ID
		if seen[key] {
			continue
		}
		seen[key] = true
		set.Hunks = append(set.Hunks, Snapshot(h))
	}

	delete(t.state.FileAssignments, path)
	t.state.HunkAssignments[path] = set
	return nil
}

// ClearHunks removes the named hunks from path's selection. The path entry
// is dropped once no hunks remain. Unknown ids are ignored.
func (t *Tracker) ClearHunks(path string, hunkIDs []string) {
	path = diff.NormalizePath(path)
	set, ok := t.state.HunkAssignments[path]
	if !ok {
		return
	}
	drop := make(map[string]bool, len(hunkIDs))
	for _, id := range hunkIDs {
		drop[id] = true
	}
	kept := set.Hunks[:0]
	for _, h := range set.Hunks {
		if !drop[h.ID] {
			kept = append(kept, h)
		}
	}
	set.Hunks = kept
	if len(set.Hunks) == 0 {
		delete(t.state.HunkAssignments, path)
	}
}

// InvalidHunksFor returns the assignments stored for path under changelist
// id that no longer match the live diff: either no live hunk of the same
// kind has that id, or the live hunk's freshly computed fingerprint differs
// from the stored one. When path's selection belongs to another changelist
// the result is empty.
func (t *Tracker) InvalidHunksFor(path, id string, live []*diff.Hunk) []HunkAssignment {
	set, ok := t.state.HunkAssignments[diff.NormalizePath(path)]
	if !ok || set.ChangelistID != id {
		return nil
	}
	var invalid []HunkAssignment
	for _, a := range set.Hunks {
		h := diff.FindHunk(live, a.Kind, a.ID)
		if h == nil || h.Fingerprint() != a.ContentHash {
			invalid = append(invalid, a)
		}
	}
	return invalid
}

// Committable returns the paths changelist id can commit: files wholly
// assigned to it plus files with at least one valid hunk assignment to it.
// live maps a path to its current hunks of both kinds. Files that belong to
// the default changelist only implicitly are resolved by ApplyToStatus, not
// here.
func (t *Tracker) Committable(id string, live map[string][]*diff.Hunk) []string {
	paths := t.state.FilePaths(id)
	for _, path := range t.state.HunkPaths(id) {
		set := t.state.HunkAssignments[path]
		if len(t.InvalidHunksFor(path, id, live[path])) < len(set.Hunks) {
			paths = append(paths, path)
		}
	}
	sort.Strings(paths)
	return paths
}
