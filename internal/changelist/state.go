// Package changelist groups pending changes into user-defined buckets and
// tracks which hunks were assigned to which bucket. A hunk assignment keeps
// a snapshot of the hunk's fingerprint so later edits to the same hunk can
// be detected and block a partial commit.
package changelist

import (
	"sort"
	"time"

	"github.com/gitpanel/host/internal/diff"
)

const (
	// DefaultID is the id of the changelist every unassigned file belongs to.
	DefaultID = "default"

	// DefaultName is the display name of the default changelist.
	DefaultName = "Default"
)

// Changelist is a named bucket for pending changes.
type Changelist struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	CreatedAt int64  `json:"created_at"` // Unix milliseconds
}

// HunkAssignment is an immutable snapshot of a hunk taken when it was
// assigned. It is stored apart from the live hunk so staleness can be
// detected by comparing fingerprints.
type HunkAssignment struct {
	ID          string    `json:"id"`
	Header      string    `json:"header"`
	OldStart    int       `json:"old_start"`
	OldLines    int       `json:"old_lines"`
	NewStart    int       `json:"new_start"`
	NewLines    int       `json:"new_lines"`
	ContentHash string    `json:"content_hash"`
	Kind        diff.Kind `json:"kind"`
}

// Snapshot captures h as an assignment. The stored hash is recomputed from
// the hunk's header and content rather than copied.
func Snapshot(h *diff.Hunk) HunkAssignment {
	return HunkAssignment{
		ID:          h.ID,
		Header:      h.Header,
		OldStart:    h.OldStart,
		OldLines:    h.OldLines,
		NewStart:    h.NewStart,
		NewLines:    h.NewLines,
		ContentHash: h.Fingerprint(),
		Kind:        h.Kind,
	}
}

// HunkAssignmentSet is the hunk selection stored for one file path. A path
// has at most one set, so its hunks belong to a single changelist.
type HunkAssignmentSet struct {
	ChangelistID string           `json:"changelist_id"`
	Hunks        []HunkAssignment `json:"hunks"`
}

// State is the complete changelist configuration of a repository.
type State struct {
	Lists           []Changelist                  `json:"lists"`
	ActiveID        string                        `json:"active_id"`
	FileAssignments map[string]string             `json:"file_assignments"`
	HunkAssignments map[string]*HunkAssignmentSet `json:"hunk_assignments"`
}

// DefaultState returns a state holding only the default changelist.
func DefaultState(now time.Time) *State {
	return &State{
		Lists: []Changelist{{
			ID:        DefaultID,
			Name:      DefaultName,
			CreatedAt: now.UnixMilli(),
		}},
		ActiveID:        DefaultID,
		FileAssignments: make(map[string]string),
		HunkAssignments: make(map[string]*HunkAssignmentSet),
	}
}

// Normalize repairs a loaded state: the default changelist is restored if
// missing, an unknown active id falls back to the default, and nil maps are
// allocated. It reports whether anything changed.
func (s *State) Normalize(now time.Time) bool {
	changed := false
	if _, ok := s.Lookup(DefaultID); !ok {
		s.Lists = append([]Changelist{{
			ID:        DefaultID,
			Name:      DefaultName,
			CreatedAt: now.UnixMilli(),
		}}, s.Lists...)
		changed = true
	}
	if _, ok := s.Lookup(s.ActiveID); !ok {
		s.ActiveID = DefaultID
		changed = true
	}
	if s.FileAssignments == nil {
		s.FileAssignments = make(map[string]string)
	}
	if s.HunkAssignments == nil {
		s.HunkAssignments = make(map[string]*HunkAssignmentSet)
	}
	return changed
}

// Lookup returns the changelist with the given id.
func (s *State) Lookup(id string) (Changelist, bool) {
	for _, cl := range s.Lists {
		if cl.ID == id {
			return cl, true
		}
	}
	return Changelist{}, false
}

// Clone returns a deep copy of s.
func (s *State) Clone() *State {
	out := &State{
		Lists:           append([]Changelist(nil), s.Lists...),
		ActiveID:        s.ActiveID,
		FileAssignments: make(map[string]string, len(s.FileAssignments)),
		HunkAssignments: make(map[string]*HunkAssignmentSet, len(s.HunkAssignments)),
	}
	for path, id := range s.FileAssignments {
		out.FileAssignments[path] = id
	}
	for path, set := range s.HunkAssignments {
		out.HunkAssignments[path] = &HunkAssignmentSet{
			ChangelistID: set.ChangelistID,
			Hunks:        append([]HunkAssignment(nil), set.Hunks...),
		}
	}
	return out
}

// HunkPaths returns the sorted paths whose hunk set belongs to id.
func (s *State) HunkPaths(id string) []string {
	var paths []string
	for path, set := range s.HunkAssignments {
		if set.ChangelistID == id {
			paths = append(paths, path)
		}
	}
	sort.Strings(paths)
	return paths
}

// FilePaths returns the sorted paths wholly assigned to id.
func (s *State) FilePaths(id string) []string {
	var paths []string
	for path, assigned := range s.FileAssignments {
		if assigned == id {
			paths = append(paths, path)
		}
	}
	sort.Strings(paths)
	return paths
}
