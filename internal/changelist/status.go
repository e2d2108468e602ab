package changelist

import (
	"github.com/gitpanel/host/internal/diff"
)

// StatusKind summarizes how a file differs from HEAD and the index.
type StatusKind string

const (
	StatusStaged     StatusKind = "staged"
	StatusUnstaged   StatusKind = "unstaged"
	StatusBoth       StatusKind = "both"
	StatusUntracked  StatusKind = "untracked"
	StatusConflicted StatusKind = "conflicted"
)

// StatusFile is one changed file as reported by the backend, annotated with
// its changelist by ApplyToStatus.
type StatusFile struct {
	Path    string     `json:"path"`
	Status  StatusKind `json:"status"`
	OldPath string     `json:"old_path,omitempty"`

	ChangelistID   string `json:"changelist_id,omitempty"`
	ChangelistName string `json:"changelist_name,omitempty"`

	// Partial is true when only selected hunks of the file are assigned.
	Partial bool `json:"changelist_partial"`
}

// ApplyToStatus annotates files with their changelist. A whole-file
// assignment wins over a hunk selection; files with neither belong to the
// default changelist. Assignments recorded under a renamed file's old path
// move to the new path. It reports whether the state changed.
func (t *Tracker) ApplyToStatus(files []StatusFile) bool {
	changed := false
	for i := range files {
		f := &files[i]
		path := diff.NormalizePath(f.Path)

		assigned, ok := t.state.FileAssignments[path]
		if !ok && f.OldPath != "" {
			old := diff.NormalizePath(f.OldPath)
			if oldID, found := t.state.FileAssignments[old]; found {
				delete(t.state.FileAssignments, old)
				t.state.FileAssignments[path] = oldID
				assigned, ok = oldID, true
				changed = true
			}
		}
		if !ok && f.OldPath != "" {
			old := diff.NormalizePath(f.OldPath)
			if set, found := t.state.HunkAssignments[old]; found {
				delete(t.state.HunkAssignments, old)
				t.state.HunkAssignments[path] = set
				changed = true
			}
		}

		if ok {
			if cl, found := t.state.Lookup(assigned); found {
				f.ChangelistID, f.ChangelistName, f.Partial = cl.ID, cl.Name, false
				continue
			}
		}
		if set, found := t.state.HunkAssignments[path]; found {
			if cl, known := t.state.Lookup(set.ChangelistID); known {
				f.ChangelistID, f.ChangelistName, f.Partial = cl.ID, cl.Name, true
				continue
			}
		}
		f.ChangelistID, f.ChangelistName, f.Partial = DefaultID, DefaultName, false
	}
	return changed
}
