package git

import (
	"context"
	"strings"

	"github.com/gitpanel/host/internal/changelist"
	"github.com/gitpanel/host/internal/diff"
	apperrors "github.com/gitpanel/host/internal/errors"
)

// Status lists every changed, untracked and conflicted file.
func (s *Source) Status(ctx context.Context) ([]changelist.StatusFile, error) {
	out, err := s.run(ctx, "status", "--porcelain=v1", "-z", "--untracked-files=all")
	if err != nil {
		return nil, apperrors.SourceFailed(".", err)
	}
	return ParseStatus(out), nil
}

// ParseStatus decodes `git status --porcelain=v1 -z` output. Renames and
// copies carry their source path in OldPath. Ignored entries are dropped.
func ParseStatus(out string) []changelist.StatusFile {
	var files []changelist.StatusFile
	fields := strings.Split(out, "\x00")
	for i := 0; i < len(fields); i++ {
		entry := fields[i]
		if len(entry) < 4 {
			continue
		}
		x, y := entry[0], entry[1]
		f := changelist.StatusFile{Path: diff.NormalizePath(entry[3:])}

		if x == 'R' || x == 'C' || y == 'R' || y == 'C' {
			if i+1 < len(fields) {
				f.OldPath = diff.NormalizePath(fields[i+1])
				i++
			}
		}

		kind, ok := statusKind(x, y)
		if !ok {
			continue
		}
		f.Status = kind
		files = append(files, f)
	}
	return files
}

// statusKind maps a porcelain XY pair onto a StatusKind.
func statusKind(x, y byte) (changelist.StatusKind, bool) {
	switch {
	case x == '!' && y == '!':
		return "", false
	case x == '?' && y == '?':
		return changelist.StatusUntracked, true
	case x == 'U' || y == 'U' || (x == 'A' && y == 'A') || (x == 'D' && y == 'D'):
		return changelist.StatusConflicted, true
	}

	staged := x != ' '
	unstaged := y != ' '
	switch {
	case staged && unstaged:
		return changelist.StatusBoth, true
	case staged:
		return changelist.StatusStaged, true
	case unstaged:
		return changelist.StatusUnstaged, true
	}
	return "", false
}
