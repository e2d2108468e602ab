package workspace

import (
	"context"

	"github.com/gitpanel/host/internal/changelist"
	"github.com/gitpanel/host/internal/diff"
	apperrors "github.com/gitpanel/host/internal/errors"
)

// HunkRef names one hunk of the live diff as the UI selected it.
type HunkRef struct {
	ID   string    `json:"id"`
	Kind diff.Kind `json:"kind"`
}

// AssignHunks assigns the referenced hunks of path to changelist id. Each
// reference is resolved against a fresh fetch so the stored fingerprint is
// the one the user saw; a reference missing from the live diff fails with
// changelist.hunk_not_found.
func (w *Workspace) AssignHunks(ctx context.Context, path, id string, refs []HunkRef) error {
	if len(refs) == 0 {
		return apperrors.NoHunks(diff.NormalizePath(path))
	}

	live := make(map[diff.Kind][]*diff.Hunk)
	selected := make([]*diff.Hunk, 0, len(refs))
	for _, ref := range refs {
		kind := ref.Kind
		if kind == "" {
			kind = diff.KindUnstaged
		}
		hunks, ok := live[kind]
		if !ok {
			res, err := w.source.Fetch(ctx, path, kind)
			if err != nil {
				return err
			}
			hunks = res.Hunks
			live[kind] = hunks
		}
		h := diff.FindHunk(hunks, kind, ref.ID)
		if h == nil {
			return apperrors.HunkNotFound(diff.NormalizePath(path), ref.ID)
		}
		selected = append(selected, h)
	}

	return w.mutate(func(t *changelist.Tracker) error {
		return t.AssignHunks(path, id, selected)
	})
}

// UnassignHunks drops the named hunks from path's selection.
func (w *Workspace) UnassignHunks(path string, hunkIDs []string) error {
	return w.mutate(func(t *changelist.Tracker) error {
		t.ClearHunks(path, hunkIDs)
		return nil
	})
}

// ClearAssignments forgets every file and hunk assignment for paths, as
// after they were committed. Nothing is saved when no path was assigned.
func (w *Workspace) ClearAssignments(paths []string) error {
	w.mu.Lock()
	var assigned []string
	state := w.tracker.State()
	for _, p := range paths {
		p = diff.NormalizePath(p)
		_, file := state.FileAssignments[p]
		_, hunks := state.HunkAssignments[p]
		if file || hunks {
			assigned = append(assigned, p)
		}
	}
	w.mu.Unlock()

	if len(assigned) == 0 {
		return nil
	}
	return w.mutate(func(t *changelist.Tracker) error {
		t.ClearAssignments(assigned)
		return nil
	})
}

// InvalidHunks returns path's assignments to changelist id that no longer
// match the live diff.
func (w *Workspace) InvalidHunks(ctx context.Context, path, id string) ([]changelist.HunkAssignment, error) {
	path = diff.NormalizePath(path)

	w.mu.Lock()
	if _, ok := w.tracker.State().Lookup(id); !ok {
		w.mu.Unlock()
		return nil, apperrors.UnknownChangelist(id)
	}
	var kinds []diff.Kind
	if set, ok := w.tracker.State().HunkAssignments[path]; ok && set.ChangelistID == id {
		kinds = hunkKinds(set.Hunks)
	}
	w.mu.Unlock()

	if len(kinds) == 0 {
		return nil, nil
	}

	var live []*diff.Hunk
	for _, kind := range kinds {
		res, err := w.source.Fetch(ctx, path, kind)
		if err != nil {
			return nil, err
		}
		live = append(live, res.Hunks...)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	return w.tracker.InvalidHunksFor(path, id, live), nil
}

// hunkKinds lists the distinct kinds among hunks.
func hunkKinds(hunks []changelist.HunkAssignment) []diff.Kind {
	var kinds []diff.Kind
	seen := make(map[diff.Kind]bool)
	for _, h := range hunks {
		if !seen[h.Kind] {
			seen[h.Kind] = true
			kinds = append(kinds, h.Kind)
		}
	}
	return kinds
}
