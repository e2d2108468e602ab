// Package workspace owns the changelist state of one repository. It is the
// only writer of that state: every mutation runs under its lock, is saved
// through the store, and is then announced to OnStateChange. Diffs are
// fetched from the git source and built on the dispatch channel.
package workspace

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/gitpanel/host/internal/changelist"
	"github.com/gitpanel/host/internal/diff"
	"github.com/gitpanel/host/internal/dispatch"
	apperrors "github.com/gitpanel/host/internal/errors"
	"github.com/gitpanel/host/internal/git"
	"github.com/gitpanel/host/internal/storage"
)

// Source is the diff backend.
type Source interface {
	Fetch(ctx context.Context, path string, kind diff.Kind) (*git.FetchResult, error)
	Status(ctx context.Context) ([]changelist.StatusFile, error)
}

// Store persists the changelist state and the preview audit trail.
type Store interface {
	LoadState() (*changelist.State, error)
	SaveState(state *changelist.State) error
	RecordPreview(entry *storage.PreviewAuditEntry) error
}

// Config wires a Workspace.
type Config struct {
	Source   Source
	Dispatch *dispatch.Channel

	// Store may be nil, in which case state lives only in memory.
	Store Store

	// Options are the default diff build options.
	Options diff.Options

	// OnStateChange receives a copy of the state after every saved mutation.
	OnStateChange func(state *changelist.State)
}

// Workspace serializes access to one repository's changelists.
type Workspace struct {
	mu      sync.Mutex
	tracker *changelist.Tracker

	source   Source
	store    Store
	dispatch *dispatch.Channel
	opts     diff.Options
	onChange func(*changelist.State)
}

// Open loads the persisted state (or starts from the default one),
// normalizes it and saves it back when normalization changed anything.
func Open(cfg Config) (*Workspace, error) {
	if cfg.Source == nil {
		return nil, apperrors.Internal("workspace requires a diff source", nil)
	}
	if cfg.Dispatch == nil {
		return nil, apperrors.Internal("workspace requires a dispatch channel", nil)
	}

	var state *changelist.State
	if cfg.Store != nil {
		loaded, err := cfg.Store.LoadState()
		if err != nil {
			return nil, err
		}
		state = loaded
	}

	dirty := state == nil
	if state == nil {
		state = changelist.DefaultState(time.Now())
	} else if state.Normalize(time.Now()) {
		dirty = true
	}

	w := &Workspace{
		tracker:  changelist.NewTracker(state),
		source:   cfg.Source,
		store:    cfg.Store,
		dispatch: cfg.Dispatch,
		opts:     cfg.Options,
		onChange: cfg.OnStateChange,
	}
	if dirty {
		if err := w.save(); err != nil {
			return nil, err
		}
	}
	log.Printf("workspace: loaded %d changelists (active %s)", len(state.Lists), state.ActiveID)
	return w, nil
}

// State returns a copy of the current state.
func (w *Workspace) State() *changelist.State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.tracker.State().Clone()
}

// mutate runs fn under the lock and saves the result. When fn fails nothing
// is saved; when the save fails the in-memory state is rolled back.
func (w *Workspace) mutate(fn func(t *changelist.Tracker) error) error {
	return w.mutateIf(func(t *changelist.Tracker) (bool, error) {
		return true, fn(t)
	})
}

// mutateIf is mutate for changes fn may turn out not to make. Nothing is
// saved or announced when fn reports no change.
func (w *Workspace) mutateIf(fn func(t *changelist.Tracker) (bool, error)) error {
	w.mu.Lock()
	backup := w.tracker.State().Clone()
	changed, err := fn(w.tracker)
	if err != nil || !changed {
		w.mu.Unlock()
		return err
	}
	if err := w.save(); err != nil {
		w.tracker = changelist.NewTracker(backup)
		w.mu.Unlock()
		return err
	}
	snapshot := w.tracker.State().Clone()
	w.mu.Unlock()

	if w.onChange != nil {
		w.onChange(snapshot)
	}
	return nil
}

// save persists the state. Callers hold w.mu.
func (w *Workspace) save() error {
	if w.store == nil {
		return nil
	}
	return w.store.SaveState(w.tracker.State())
}

// CreateChangelist adds a changelist.
func (w *Workspace) CreateChangelist(name string) (changelist.Changelist, error) {
	var created changelist.Changelist
	err := w.mutate(func(t *changelist.Tracker) error {
		cl, err := t.Create(name)
		created = cl
		return err
	})
	return created, err
}

// RenameChangelist renames a changelist.
func (w *Workspace) RenameChangelist(id, name string) error {
	return w.mutate(func(t *changelist.Tracker) error {
		return t.Rename(id, name)
	})
}

// DeleteChangelist removes a changelist and everything assigned to it.
func (w *Workspace) DeleteChangelist(id string) error {
	return w.mutate(func(t *changelist.Tracker) error {
		return t.Delete(id)
	})
}

// SetActive selects the changelist new changes default into.
func (w *Workspace) SetActive(id string) error {
	return w.mutate(func(t *changelist.Tracker) error {
		return t.SetActive(id)
	})
}

// AssignFiles moves whole files into changelist id.
func (w *Workspace) AssignFiles(id string, paths []string) error {
	return w.mutate(func(t *changelist.Tracker) error {
		return t.AssignFiles(id, paths)
	})
}

// UnassignFiles returns files to the default changelist.
func (w *Workspace) UnassignFiles(paths []string) error {
	return w.mutate(func(t *changelist.Tracker) error {
		t.UnassignFiles(paths)
		return nil
	})
}
