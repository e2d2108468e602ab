package changelist

import (
	"github.com/gitpanel/host/internal/diff"
	apperrors "github.com/gitpanel/host/internal/errors"
)

// Warning texts surfaced in a commit preview.
const (
	WarnUnstagedOverStaged = "Unstaged hunks cannot be committed while staged changes exist in the same file."
	WarnStaleHunks         = "Some hunks no longer match the file. Reselect required."
	WarnMixedFiles         = "Some files have both staged and unstaged changes; the commit will use the working tree version."
)

// Counts tallies preview files by status.
type Counts struct {
	Staged     int `json:"staged"`
	Unstaged   int `json:"unstaged"`
	Untracked  int `json:"untracked"`
	Conflicted int `json:"conflicted"`
}

// InvalidHunk is a stale assignment together with the file it belongs to.
type InvalidHunk struct {
	Path string `json:"path"`
	HunkAssignment
}

// Preview describes what committing a changelist would include.
type Preview struct {
	ChangelistID string        `json:"changelist_id"`
	Files        []StatusFile  `json:"files"`
	Stats        Counts        `json:"stats"`
	Warnings     []string      `json:"warnings"`
	HunkFiles    []string      `json:"hunk_files"`
	InvalidHunks []InvalidHunk `json:"invalid_hunks"`
	Committable  []string      `json:"committable"`
}

// Blocked reports whether stale hunk assignments prevent the commit.
func (p *Preview) Blocked() bool {
	return len(p.InvalidHunks) > 0
}

// RequireCommittable returns a changelist.invalid_hunks error while the
// preview is blocked.
func (p *Preview) RequireCommittable() error {
	if p.Blocked() {
		return apperrors.InvalidHunks(len(p.InvalidHunks))
	}
	return nil
}

// LiveHunkKinds returns, per path with hunk assignments to changelist id,
// the kinds whose live hunks Preview needs. Selections that Preview rejects
// without looking at the live diff are left out. status must already be
// annotated by ApplyToStatus.
func (t *Tracker) LiveHunkKinds(id string, status []StatusFile) map[string][]diff.Kind {
	fileStatus := statusByPath(status, id)
	needs := make(map[string][]diff.Kind)
	for _, path := range t.state.HunkPaths(id) {
		set := t.state.HunkAssignments[path]
		if unstagedOverStaged(fileStatus[path], set) {
			continue
		}
		needs[path] = kindsOf(set.Hunks)
	}
	return needs
}

// Preview builds the commit preview for changelist id. status must already
// be annotated by ApplyToStatus. live maps each path of LiveHunkKinds to its
// current hunks; a path missing from live has no live hunks.
//
// A changelist with no files, or with a conflicted file, cannot be
// previewed. Unstaged hunk selections on a file that also has staged changes
// are invalid as a whole; other selections are checked with InvalidHunksFor.
// Eligibility follows Committable, extended by the files status places in
// the changelist without an explicit assignment.
func (t *Tracker) Preview(id string, status []StatusFile, live map[string][]*diff.Hunk) (*Preview, error) {
	if _, ok := t.state.Lookup(id); !ok {
		return nil, apperrors.UnknownChangelist(id)
	}

	p := &Preview{
		ChangelistID: id,
		HunkFiles:    t.state.HunkPaths(id),
	}
	for _, f := range status {
		if f.ChangelistID == id {
			p.Files = append(p.Files, f)
		}
	}
	if len(p.Files) == 0 && len(p.HunkFiles) == 0 {
		return nil, apperrors.EmptyChangelist(id)
	}

	var conflicted []string
	for _, f := range p.Files {
		if f.Status == StatusConflicted {
			conflicted = append(conflicted, f.Path)
		}
	}
	if len(conflicted) > 0 {
		return nil, apperrors.ConflictedChangelist(conflicted)
	}

	mixed := false
	for _, f := range p.Files {
		switch f.Status {
		case StatusStaged:
			p.Stats.Staged++
		case StatusUnstaged:
			p.Stats.Unstaged++
		case StatusBoth:
			p.Stats.Staged++
			p.Stats.Unstaged++
			mixed = true
		case StatusUntracked:
			p.Stats.Untracked++
		}
	}

	fileStatus := statusByPath(p.Files, id)
	usable := make(map[string][]*diff.Hunk, len(live))
	staleWarned := false
	for _, path := range p.HunkFiles {
		set := t.state.HunkAssignments[path]

		if unstagedOverStaged(fileStatus[path], set) {
			for _, h := range set.Hunks {
				p.InvalidHunks = append(p.InvalidHunks, InvalidHunk{Path: path, HunkAssignment: h})
			}
			p.Warnings = append(p.Warnings, WarnUnstagedOverStaged)
			continue
		}
		usable[path] = live[path]

		invalid := t.InvalidHunksFor(path, id, live[path])
		for _, h := range invalid {
			p.InvalidHunks = append(p.InvalidHunks, InvalidHunk{Path: path, HunkAssignment: h})
		}
		if len(invalid) > 0 && !staleWarned {
			p.Warnings = append(p.Warnings, WarnStaleHunks)
			staleWarned = true
		}
	}

	if mixed {
		p.Warnings = append(p.Warnings, WarnMixedFiles)
	}

	committable := make(map[string]bool)
	for _, path := range t.Committable(id, usable) {
		committable[path] = true
	}
	for _, f := range p.Files {
		if !f.Partial {
			committable[diff.NormalizePath(f.Path)] = true
		}
	}
	for _, f := range p.Files {
		if path := diff.NormalizePath(f.Path); committable[path] {
			p.Committable = append(p.Committable, path)
			delete(committable, path)
		}
	}
	for _, path := range p.HunkFiles {
		if committable[path] {
			p.Committable = append(p.Committable, path)
			delete(committable, path)
		}
	}
	return p, nil
}

// statusByPath indexes the status of files placed in changelist id.
func statusByPath(files []StatusFile, id string) map[string]StatusKind {
	out := make(map[string]StatusKind, len(files))
	for _, f := range files {
		if f.ChangelistID == id {
			out[diff.NormalizePath(f.Path)] = f.Status
		}
	}
	return out
}

// unstagedOverStaged reports a selection containing unstaged hunks on a
// file that also has staged changes.
func unstagedOverStaged(st StatusKind, set *HunkAssignmentSet) bool {
	return (st == StatusStaged || st == StatusBoth) && hasKind(set.Hunks, diff.KindUnstaged)
}

func hasKind(hunks []HunkAssignment, kind diff.Kind) bool {
	for _, h := range hunks {
		if h.Kind == kind {
			return true
		}
	}
	return false
}

// kindsOf lists the distinct kinds in hunks, unstaged first.
func kindsOf(hunks []HunkAssignment) []diff.Kind {
	var kinds []diff.Kind
	for _, k := range []diff.Kind{diff.KindUnstaged, diff.KindStaged} {
		if hasKind(hunks, k) {
			kinds = append(kinds, k)
		}
	}
	return kinds
}
