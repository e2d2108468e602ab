// Package diff turns raw unified-diff text into renderable, line-classified
// patches. It sanitizes and isolates a single file's diff from git output,
// repairs structurally incomplete patches, and fingerprints hunks so they can
// be tracked across repeated fetches.
package diff

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// Kind says which side of the index a hunk comes from.
type Kind string

const (
	// KindUnstaged is a working-tree change not yet recorded in the index.
	KindUnstaged Kind = "unstaged"

	// KindStaged is a change recorded in the index (git diff --cached).
	KindStaged Kind = "staged"
)

// ParseKind converts a wire value into a Kind. An empty string means unstaged.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindUnstaged, "":
		return KindUnstaged, nil
	case KindStaged:
		return KindStaged, nil
	default:
		return "", fmt.Errorf("invalid diff kind %q (must be 'staged' or 'unstaged')", s)
	}
}

// Hunk is one contiguous block of changed lines within a file's diff.
type Hunk struct {
	// ID is supplied by the diff source and stable for one fetch cycle.
	ID string `json:"id"`

	// Path is the repository-relative path of the file the hunk belongs to.
	Path string `json:"path"`

	// Header is the raw "@@ -a,b +c,d @@" line, including any section text.
	Header string `json:"header"`

	// OldStart is the starting line number in the original file.
	OldStart int `json:"old_start"`

	// OldLines is the number of lines in the original file.
	OldLines int `json:"old_lines"`

	// NewStart is the starting line number in the new file.
	NewStart int `json:"new_start"`

	// NewLines is the number of lines in the new file.
	NewLines int `json:"new_lines"`

	// Content is the hunk body without the header, each line prefixed
	// with ' ', '+', '-' or '\'.
	Content string `json:"content"`

	// ContentHash is Fingerprint(Header, Content).
	ContentHash string `json:"content_hash"`

	// Kind is staged or unstaged.
	Kind Kind `json:"kind"`
}

// NewHunk creates a Hunk and computes its content hash. The ID is left empty
// for the source to fill in.
func NewHunk(path string, kind Kind, header string, oldStart, oldLines, newStart, newLines int, content string) *Hunk {
	h := &Hunk{
		Path:     path,
		Kind:     kind,
		Header:   header,
		OldStart: oldStart,
		OldLines: oldLines,
		NewStart: newStart,
		NewLines: newLines,
		Content:  content,
	}
	h.ContentHash = h.Fingerprint()
	return h
}

// Fingerprint recomputes the content hash from the hunk's current header and
// body. Comparing it with a stored ContentHash tells whether the hunk was
// edited since the hash was taken.
func (h *Hunk) Fingerprint() string {
	return Fingerprint(h.Header, h.Content)
}

// Fingerprint returns the hex sha256 of header + "\n" + content.
func Fingerprint(header, content string) string {
	sum := sha256.Sum256([]byte(header + "\n" + content))
	return hex.EncodeToString(sum[:])
}

// ShortHash returns the first 12 characters of a content hash for logs.
func ShortHash(hash string) string {
	if len(hash) <= 12 {
		return hash
	}
	return hash[:12]
}

// DiffBlock is one file's unified diff split into header lines and hunks.
// It is rebuilt on every fetch and never persisted.
type DiffBlock struct {
	FileHeaderLines []string `json:"file_header_lines"`
	Hunks           []*Hunk  `json:"hunks"`
}

// ConcatHunks joins hunks back into a header-less patch body. The result is
// used as the fallback patch source when the raw diff text cannot be
// rendered; the canonicalizer synthesizes the missing file header.
func ConcatHunks(hunks []*Hunk) string {
	var parts []string
	for _, h := range hunks {
		if h.Content == "" {
			parts = append(parts, h.Header)
			continue
		}
		parts = append(parts, h.Header+"\n"+h.Content)
	}
	return strings.Join(parts, "\n")
}

// FindHunk returns the hunk with the given kind and ID, or nil.
func FindHunk(hunks []*Hunk, kind Kind, id string) *Hunk {
	for _, h := range hunks {
		if h.Kind == kind && h.ID == id {
			return h
		}
	}
	return nil
}
