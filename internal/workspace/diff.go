package workspace

import (
	"context"

	"github.com/gitpanel/host/internal/diff"
	"github.com/gitpanel/host/internal/dispatch"
	apperrors "github.com/gitpanel/host/internal/errors"
)

// DiffRequest asks for one file's renderable diff.
type DiffRequest struct {
	Path string
	Kind diff.Kind

	// IncludeContents and InlineHighlights override the workspace defaults
	// when set.
	IncludeContents  bool
	InlineHighlights bool
}

// DiffResult is a built diff together with the backend's hunk list.
type DiffResult struct {
	Path string    `json:"path"`
	Kind diff.Kind `json:"kind"`

	// Renderable is nil when the file has no changes of this kind.
	Renderable *diff.Renderable `json:"renderable,omitempty"`

	Hunks     []*diff.Hunk `json:"hunks"`
	Untracked bool         `json:"untracked,omitempty"`
	Large     bool         `json:"large,omitempty"`
}

// DiffRun completes a diff request whose place on its lane is already fixed.
type DiffRun func(ctx context.Context) (*DiffResult, error)

// Diff issues req on lane and runs it. See IssueDiff.
func (w *Workspace) Diff(ctx context.Context, lane string, req DiffRequest) (*DiffResult, error) {
	return w.IssueDiff(lane, req)(ctx)
}

// IssueDiff reserves the request's position on lane immediately and returns
// the run that fetches path and builds it on the dispatch channel. Ordering
// follows IssueDiff calls, not fetch completion: a run overtaken by a later
// issue on the same lane returns a diff.superseded error. The concatenated
// backend hunks serve as the fallback patch, and hunk IDs are copied onto
// the rendered hunks by content hash.
func (w *Workspace) IssueDiff(lane string, req DiffRequest) DiffRun {
	seq := w.dispatch.Issue(lane)
	return func(ctx context.Context) (*DiffResult, error) {
		return w.runDiff(ctx, lane, seq, req)
	}
}

func (w *Workspace) runDiff(ctx context.Context, lane string, seq uint64, req DiffRequest) (*DiffResult, error) {
	kind := req.Kind
	if kind == "" {
		kind = diff.KindUnstaged
	}

	res, err := w.source.Fetch(ctx, req.Path, kind)
	if err != nil {
		if !w.dispatch.Resolve(lane, seq) {
			return nil, apperrors.Superseded(seq)
		}
		return nil, err
	}

	out := &DiffResult{
		Path:      res.Path,
		Kind:      kind,
		Hunks:     res.Hunks,
		Untracked: res.Untracked,
		Large:     res.Large,
	}
	if res.Text == "" && len(res.Hunks) == 0 {
		if !w.dispatch.Resolve(lane, seq) {
			return nil, apperrors.Superseded(seq)
		}
		return out, nil
	}

	opts := w.opts
	opts.IncludeContents = opts.IncludeContents || req.IncludeContents
	opts.InlineHighlights = opts.InlineHighlights || req.InlineHighlights

	r, err := w.dispatch.CanonicalizeIssued(ctx, lane, seq, dispatch.Request{
		Path:     res.Path,
		Patch:    res.Text,
		Fallback: diff.ConcatHunks(res.Hunks),
		Options:  opts,
	})
	if err != nil {
		return nil, err
	}
	r.AttachIDs(res.Hunks)
	out.Renderable = r
	return out, nil
}
