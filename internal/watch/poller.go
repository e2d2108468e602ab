package watch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"
)

// DiffSnapshotter returns the repository's current diff text.
type DiffSnapshotter interface {
	DiffAll(ctx context.Context, includeStaged bool) (string, error)
}

// PollerConfig holds configuration for the diff poller.
type PollerConfig struct {
	// Source produces the diff snapshots to compare.
	Source DiffSnapshotter

	// PollInterval is how often to check for changes.
	PollInterval time.Duration

	// IncludeStaged includes staged changes (git diff --cached) in addition
	// to unstaged changes. When false, only unstaged changes are detected.
	IncludeStaged bool

	// OnChange is called whenever the snapshot differs from the previous one.
	OnChange func()

	// OnError is called when the snapshot fails (e.g., not a git repo).
	// If nil, errors are silently ignored.
	OnError func(err error)
}

// Poller monitors a git repository by hashing successive diff snapshots.
// It tracks the previous snapshot hash to avoid duplicate notifications.
type Poller struct {
	config   PollerConfig  // Immutable config for polling behavior.
	stopCh   chan struct{} // Signals the polling loop to stop.
	doneCh   chan struct{} // Closes when the polling loop exits.
	mu       sync.Mutex    // Guards lifecycle state and lastHash updates.
	lastHash string        // Tracks last diff hash to suppress duplicates.
	running  bool          // True while a pollLoop goroutine is active.
	stopping bool          // True while Stop is waiting for pollLoop to exit.
}

// NewPoller creates a new diff poller with the given configuration.
func NewPoller(config PollerConfig) *Poller {
	return &Poller{
		config: config,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// Start begins polling in a goroutine. It can be stopped with Stop() and
// restarted afterwards.
func (p *Poller) Start() {
	p.mu.Lock()
	if p.running || p.stopping {
		p.mu.Unlock()
		return
	}
	p.running = true
	// Recreate channels to allow restart after Stop
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	p.mu.Unlock()

	go p.pollLoop()
}

// Stop halts the polling loop and waits for it to finish.
func (p *Poller) Stop() {
	p.mu.Lock()
	if !p.running || p.stopping {
		p.mu.Unlock()
		return
	}
	p.stopping = true
	stopCh := p.stopCh
	doneCh := p.doneCh
	p.mu.Unlock()

	close(stopCh)
	<-doneCh

	p.mu.Lock()
	p.running = false
	p.stopping = false
	p.mu.Unlock()
}

// Done returns a channel that closes when the poller has stopped.
// The channel is recreated on each Start().
func (p *Poller) Done() <-chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.doneCh
}

func (p *Poller) pollLoop() {
	defer close(p.doneCh)

	// The first poll only records a baseline.
	p.PollOnce()

	interval := p.config.PollInterval
	if interval <= 0 {
		interval = 1 * time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopCh:
			return
		case <-ticker.C:
			if p.PollOnce() && p.config.OnChange != nil {
				p.config.OnChange()
			}
		}
	}
}

// PollOnce takes one snapshot and reports whether it differs from the
// previous one. A failed snapshot reports no change.
func (p *Poller) PollOnce() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	out, err := p.config.Source.DiffAll(ctx, p.config.IncludeStaged)
	if err != nil {
		if p.config.OnError != nil {
			p.config.OnError(err)
		}
		return false
	}

	current := hashDiff(out)

	p.mu.Lock()
	defer p.mu.Unlock()
	changed := current != p.lastHash
	p.lastHash = current
	return changed
}

// hashDiff computes a hash of the diff output for change detection.
func hashDiff(diffOutput string) string {
	if diffOutput == "" {
		return ""
	}
	hash := sha256.Sum256([]byte(diffOutput))
	return hex.EncodeToString(hash[:])
}
