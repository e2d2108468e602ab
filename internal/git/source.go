// Package git is the diff backend. It shells out to the git binary for
// per-file diffs and repository status, and synthesizes patches for
// untracked files that git itself prints nothing for.
package git

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/gitpanel/host/internal/diff"
	apperrors "github.com/gitpanel/host/internal/errors"
)

// Source runs git in one repository.
type Source struct {
	// RepoPath is the working tree root.
	RepoPath string

	// ContextLines is the context used when synthesizing patches for
	// untracked files. Defaults to 3.
	ContextLines int

	// LargeDiffBytes marks fetched diffs above this size as large.
	// Zero uses diff.LargeDiffByteThreshold.
	LargeDiffBytes int

	cache *diffCache
}

// NewSource creates a Source for the repository at repoPath. Per-file diffs
// are cached while the files they depend on are unchanged.
func NewSource(repoPath string) *Source {
	return &Source{RepoPath: repoPath, ContextLines: 3, cache: newDiffCache(DiffCacheSize)}
}

// FetchResult is one file's diff as git reports it.
type FetchResult struct {
	Path string    `json:"path"`
	Kind diff.Kind `json:"kind"`

	// Text is the raw patch text, possibly empty.
	Text string `json:"text"`

	// Hunks are the parsed hunks of Text, IDs assigned.
	Hunks []*diff.Hunk `json:"hunks"`

	// Untracked is set when Text was synthesized for a file git does not track.
	Untracked bool `json:"untracked,omitempty"`

	Stats *diff.DiffStats `json:"stats,omitempty"`
	Large bool            `json:"large,omitempty"`
}

// Fetch returns the diff of path against the index (unstaged) or of the
// index against HEAD (staged).
func (s *Source) Fetch(ctx context.Context, path string, kind diff.Kind) (*FetchResult, error) {
	path = diff.NormalizePath(path)

	text, untracked, err := s.fetchText(ctx, path, kind)
	if err != nil {
		return nil, apperrors.SourceFailed(path, err)
	}

	res := &FetchResult{Path: path, Kind: kind, Text: text, Untracked: untracked}
	res.Hunks = diff.FilterHunks(diff.ParseHunks(res.Text, kind), path)
	res.Stats = diff.CalculateDiffStats(res.Text)
	res.Large = diff.IsLargeDiff(res.Stats, s.LargeDiffBytes)
	if res.Large {
		log.Printf("git: large diff for %s (%s, %d lines)",
			path, humanize.Bytes(uint64(res.Stats.ByteSize)), res.Stats.LineCount)
	}
	return res, nil
}

// fetchText returns the raw patch of path, from the cache when its stamp
// still matches.
func (s *Source) fetchText(ctx context.Context, path string, kind diff.Kind) (text string, untracked bool, err error) {
	key := cacheKey(path, kind)
	stamp, cacheable := "", false
	if s.cache != nil {
		stamp, cacheable = s.stamp(path, kind)
	}
	if cacheable {
		if e, ok := s.cache.get(key, stamp); ok {
			return e.text, e.untracked, nil
		}
	}

	args := []string{"diff"}
	if kind == diff.KindStaged {
		args = append(args, "--cached")
	}
	args = append(args, "--no-color", "--no-ext-diff", "--", path)

	text, err = s.run(ctx, args...)
	if err != nil {
		return "", false, err
	}
	if text == "" && kind == diff.KindUnstaged {
		synth, ok, err := s.untrackedPatch(ctx, path)
		if err != nil {
			return "", false, err
		}
		if ok {
			text, untracked = synth, true
		}
	}

	if cacheable {
		s.cache.put(key, cacheEntry{stamp: stamp, text: text, untracked: untracked})
	}
	return text, untracked, nil
}

// Hunks returns only the parsed hunks of path.
func (s *Source) Hunks(ctx context.Context, path string, kind diff.Kind) ([]*diff.Hunk, error) {
	res, err := s.Fetch(ctx, path, kind)
	if err != nil {
		return nil, err
	}
	return res.Hunks, nil
}

// DiffAll returns the unstaged diff of the whole repository, followed by the
// staged diff when includeStaged is set.
func (s *Source) DiffAll(ctx context.Context, includeStaged bool) (string, error) {
	out, err := s.run(ctx, "diff", "--no-color", "--no-ext-diff")
	if err != nil {
		return "", apperrors.SourceFailed(".", err)
	}
	if !includeStaged {
		return out, nil
	}

	staged, err := s.run(ctx, "diff", "--cached", "--no-color", "--no-ext-diff")
	if err != nil {
		return "", apperrors.SourceFailed(".", err)
	}
	if staged != "" {
		if out != "" && !strings.HasSuffix(out, "\n") {
			out += "\n"
		}
		out += staged
	}
	return out, nil
}

// untrackedPatch synthesizes a new-file patch for path when it exists on
// disk but is not tracked. ok is false for tracked or missing files.
func (s *Source) untrackedPatch(ctx context.Context, path string) (patch string, ok bool, err error) {
	full := filepath.Join(s.RepoPath, filepath.FromSlash(path))
	info, err := os.Stat(full)
	if err != nil || !info.Mode().IsRegular() {
		return "", false, nil
	}

	if _, err := s.run(ctx, "ls-files", "--error-unmatch", "--", path); err == nil {
		return "", false, nil
	}

	content, err := os.ReadFile(full)
	if err != nil {
		return "", false, fmt.Errorf("read untracked file: %w", err)
	}

	if bytes.IndexByte(content, 0) >= 0 {
		return fmt.Sprintf("diff --git a/%s b/%s\nnew file mode 100644\nBinary files /dev/null and b/%s differ\n",
			path, path, path), true, nil
	}

	patch, err = diff.SynthesizeNewFile(path, string(content), s.ContextLines)
	if err != nil {
		return "", false, fmt.Errorf("synthesize patch: %w", err)
	}
	return patch, patch != "", nil
}

// run executes git with args in the repository and returns stdout.
// The error carries git's stderr.
func (s *Source) run(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = s.RepoPath

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return "", fmt.Errorf("git %s: %w: %s", args[0], err, msg)
		}
		return "", fmt.Errorf("git %s: %w", args[0], err)
	}
	return stdout.String(), nil
}
