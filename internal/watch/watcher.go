// Package watch notices repository changes and reports them, debounced, to
// a single callback. Watcher uses filesystem notifications; Poller compares
// successive git diff snapshots for filesystems where notifications are
// unreliable.
package watch

import (
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long the tree must stay quiet before OnChange fires.
const DefaultDebounce = 400 * time.Millisecond

// WatcherConfig configures a Watcher.
type WatcherConfig struct {
	// RepoPath is the working tree root. Its .git directory must be a
	// direct child.
	RepoPath string

	// Debounce defaults to DefaultDebounce.
	Debounce time.Duration

	// OnChange is called once per burst of changes.
	OnChange func()

	// OnError receives watcher errors. If nil, they are logged.
	OnError func(err error)
}

// Watcher reports changes to the working tree, the index, HEAD and refs.
type Watcher struct {
	config WatcherConfig
	gitDir string

	fsw     *fsnotify.Watcher
	done    chan struct{}
	stopped chan struct{}

	mu    sync.Mutex
	paths map[string]struct{}
}

// NewWatcher creates a Watcher. Call Start to begin watching.
func NewWatcher(config WatcherConfig) *Watcher {
	if config.Debounce <= 0 {
		config.Debounce = DefaultDebounce
	}
	return &Watcher{
		config: config,
		gitDir: filepath.Join(config.RepoPath, ".git"),
		paths:  make(map[string]struct{}),
	}
}

// Start registers every directory of the working tree plus the git
// directory and its refs, then starts the event loop.
func (w *Watcher) Start() error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	w.fsw = fsw
	w.done = make(chan struct{})
	w.stopped = make(chan struct{})

	w.addTree(w.config.RepoPath)
	w.addDir(w.gitDir)
	w.addTree(filepath.Join(w.gitDir, "refs"))

	w.mu.Lock()
	n := len(w.paths)
	w.mu.Unlock()
	log.Printf("watch: watching %d directories under %s", n, w.config.RepoPath)

	go w.run()
	return nil
}

// Stop ends the event loop. A pending debounced change is dropped.
func (w *Watcher) Stop() {
	if w.fsw == nil {
		return
	}
	select {
	case <-w.done:
		return
	default:
	}
	close(w.done)
	<-w.stopped
	w.fsw.Close()
}

func (w *Watcher) run() {
	defer close(w.stopped)

	timer := time.NewTimer(w.config.Debounce)
	timer.Stop()
	pending := false

	for {
		select {
		case <-w.done:
			timer.Stop()
			return

		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if event.Op&fsnotify.Create != 0 {
				w.maybeWatchNewDir(event.Name)
			}
			if !w.relevant(event.Name) {
				continue
			}
			timer.Reset(w.config.Debounce)
			pending = true

		case <-timer.C:
			if pending && w.config.OnChange != nil {
				w.config.OnChange()
			}
			pending = false

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			if w.config.OnError != nil {
				w.config.OnError(err)
			} else {
				log.Printf("watch: watcher error: %v", err)
			}
		}
	}
}

// relevant filters out git's internal churn. Inside .git only the index,
// HEAD and refs matter.
func (w *Watcher) relevant(path string) bool {
	rel, err := filepath.Rel(w.gitDir, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return true
	}
	rel = filepath.ToSlash(rel)
	if rel == "index" || rel == "HEAD" {
		return true
	}
	return strings.HasPrefix(rel, "refs/") && !strings.HasSuffix(rel, ".lock")
}

func (w *Watcher) maybeWatchNewDir(path string) {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return
	}
	if strings.HasPrefix(path, w.gitDir+string(filepath.Separator)) &&
		!strings.HasPrefix(path, filepath.Join(w.gitDir, "refs")) {
		return
	}
	w.addTree(path)
}

// addTree watches root and every directory below it, skipping .git.
func (w *Watcher) addTree(root string) {
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		if path == w.gitDir {
			return filepath.SkipDir
		}
		w.addDir(path)
		return nil
	})
}

func (w *Watcher) addDir(path string) {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if _, ok := w.paths[path]; ok {
		return
	}
	if err := w.fsw.Add(path); err != nil {
		log.Printf("watch: failed to watch %s: %v", path, err)
		return
	}
	w.paths[path] = struct{}{}
}
