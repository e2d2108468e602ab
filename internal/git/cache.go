package git

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gitpanel/host/internal/diff"
)

// DiffCacheSize bounds the number of cached per-file diffs.
const DiffCacheSize = 200

// racyWindow is how recent a modification must be for its stat data to be
// distrusted. Timestamps coarser than the edit rate cannot tell two quick
// same-size writes apart.
const racyWindow = 2 * time.Second

type cacheEntry struct {
	stamp     string
	text      string
	untracked bool
}

// diffCache holds raw diff text keyed by kind and path. Entries are valid
// only while the stamp of the files the diff depends on is unchanged.
type diffCache struct {
	mu      sync.Mutex
	limit   int
	entries map[string]cacheEntry
	order   []string
}

func newDiffCache(limit int) *diffCache {
	return &diffCache{limit: limit, entries: make(map[string]cacheEntry)}
}

func cacheKey(path string, kind diff.Kind) string {
	return string(kind) + ":" + path
}

func (c *diffCache) get(key, stamp string) (cacheEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok || e.stamp != stamp {
		return cacheEntry{}, false
	}
	return e, true
}

// put stores e under key, evicting the oldest entry when full.
func (c *diffCache) put(key string, e cacheEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[key]; !ok {
		if len(c.entries) >= c.limit && len(c.order) > 0 {
			delete(c.entries, c.order[0])
			c.order = c.order[1:]
		}
		c.order = append(c.order, key)
	}
	c.entries[key] = e
}

func (c *diffCache) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]cacheEntry)
	c.order = nil
}

func (c *diffCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// stamp summarizes the stat data a diff of path depends on: the index,
// HEAD and its reflog for both kinds, plus the working file for unstaged
// diffs. ok is false when the repository layout is not a plain .git
// directory or any of those files changed too recently to be trusted.
func (s *Source) stamp(path string, kind diff.Kind) (string, bool) {
	gitDir := filepath.Join(s.RepoPath, ".git")
	if info, err := os.Stat(gitDir); err != nil || !info.IsDir() {
		return "", false
	}

	files := []string{
		filepath.Join(gitDir, "index"),
		filepath.Join(gitDir, "HEAD"),
		filepath.Join(gitDir, "logs", "HEAD"),
	}
	if kind != diff.KindStaged {
		files = append(files, filepath.Join(s.RepoPath, filepath.FromSlash(path)))
	}

	now := time.Now()
	var b strings.Builder
	for _, f := range files {
		info, err := os.Stat(f)
		if err != nil {
			b.WriteString("-;")
			continue
		}
		if now.Sub(info.ModTime()) < racyWindow {
			return "", false
		}
		fmt.Fprintf(&b, "%d:%d;", info.Size(), info.ModTime().UnixNano())
	}
	return b.String(), true
}

// InvalidateCache drops every cached diff.
func (s *Source) InvalidateCache() {
	if s.cache != nil {
		s.cache.clear()
	}
}
