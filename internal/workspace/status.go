package workspace

import (
	"context"
	"log"

	"github.com/gitpanel/host/internal/changelist"
	"github.com/gitpanel/host/internal/diff"
	apperrors "github.com/gitpanel/host/internal/errors"
	"github.com/gitpanel/host/internal/storage"
)

// Status returns the repository's changed files annotated with their
// changelists. Assignments that followed a rename are saved and announced
// like any other mutation.
func (w *Workspace) Status(ctx context.Context) ([]changelist.StatusFile, error) {
	files, err := w.source.Status(ctx)
	if err != nil {
		return nil, err
	}

	err = w.mutateIf(func(t *changelist.Tracker) (bool, error) {
		return t.ApplyToStatus(files), nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

// Preview builds the commit preview of changelist id against the current
// repository status and records it in the audit trail. Live hunks are
// fetched before the state lock is taken.
func (w *Workspace) Preview(ctx context.Context, id string) (*changelist.Preview, error) {
	files, err := w.Status(ctx)
	if err != nil {
		return nil, err
	}

	w.mu.Lock()
	needs := w.tracker.LiveHunkKinds(id, files)
	w.mu.Unlock()

	live := make(map[string][]*diff.Hunk, len(needs))
	for path, kinds := range needs {
		for _, kind := range kinds {
			res, err := w.source.Fetch(ctx, path, kind)
			if err != nil {
				w.audit(id, nil, err)
				return nil, err
			}
			live[path] = append(live[path], res.Hunks...)
		}
	}

	w.mu.Lock()
	p, err := w.tracker.Preview(id, files, live)
	w.mu.Unlock()

	w.audit(id, p, err)
	return p, err
}

// audit records a preview outcome. Failures are logged, not returned.
func (w *Workspace) audit(id string, p *changelist.Preview, previewErr error) {
	if w.store == nil {
		return
	}
	entry := &storage.PreviewAuditEntry{ChangelistID: id}
	if p != nil {
		entry.FileCount = len(p.Files)
		entry.HunkFileCount = len(p.HunkFiles)
		entry.InvalidHunks = len(p.InvalidHunks)
		entry.Blocked = p.Blocked()
	}
	if previewErr != nil {
		entry.ErrorCode = apperrors.GetCode(previewErr)
	}
	if err := w.store.RecordPreview(entry); err != nil {
		log.Printf("workspace: failed to record preview audit for %s: %v", id, err)
	}
}
