// Package dispatch runs diff builds on a worker pool and correlates the
// asynchronous results back to their requests. Each request gets a sequence
// number; within one lane only the result of the most recently issued
// request is applied, and older results are discarded when they arrive.
// In-flight work is never cancelled.
package dispatch

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/gitpanel/host/internal/diff"
	apperrors "github.com/gitpanel/host/internal/errors"
)

// ErrClosed completes tickets that were still pending when the channel closed.
var ErrClosed = apperrors.New(apperrors.CodeInternal, "dispatch channel closed")

// BuildFunc turns raw patch text into a renderable diff.
type BuildFunc func(path, patch string, opts diff.Options) (*diff.Renderable, error)

// Request asks for one file's diff to be built.
type Request struct {
	Path  string
	Patch string

	// Fallback is tried when Patch yields nothing renderable.
	// Empty means no fallback.
	Fallback string

	Options diff.Options
}

// Outcome is the single result delivered for a request.
type Outcome struct {
	Seq    uint64
	Lane   string
	Result *diff.Renderable
	Err    error

	// Superseded is set when a newer request on the same lane was issued
	// before this one finished. Err is then a diff.superseded error.
	Superseded bool
}

// Ticket identifies a submitted request and delivers its outcome.
type Ticket struct {
	Seq  uint64
	Lane string
	done <-chan Outcome
}

// Done returns a channel that receives exactly one outcome.
func (t Ticket) Done() <-chan Outcome {
	return t.done
}

// Wait blocks until the outcome arrives or ctx ends.
func (t Ticket) Wait(ctx context.Context) (Outcome, error) {
	select {
	case out := <-t.done:
		return out, nil
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	}
}

// Config configures a Channel.
type Config struct {
	// Workers is the number of concurrent builds. Defaults to 2.
	Workers int

	// QueueSize bounds requests waiting for a worker. Defaults to 64.
	QueueSize int

	// Build defaults to diff.Build.
	Build BuildFunc

	// Registerer receives the channel's metrics. Nil skips registration.
	Registerer prometheus.Registerer
}

type job struct {
	seq  uint64
	lane string
	req  Request
}

type result struct {
	seq        uint64
	lane       string
	renderable *diff.Renderable
	err        error
	skipped    bool
}

// Channel is the dispatch entry point. It is safe for concurrent use.
type Channel struct {
	build   BuildFunc
	metrics *Metrics

	jobs    chan job
	results chan result
	closed  chan struct{}
	workers sync.WaitGroup
	loop    chan struct{}

	mu      sync.Mutex
	seq     uint64
	latest  map[string]uint64
	pending map[uint64]chan Outcome
	stopped bool
}

// New starts a channel's workers and its correlation loop.
func New(cfg Config) *Channel {
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	if cfg.Build == nil {
		cfg.Build = diff.Build
	}

	c := &Channel{
		build:   cfg.Build,
		metrics: NewMetrics(cfg.Registerer),
		jobs:    make(chan job, cfg.QueueSize),
		results: make(chan result, cfg.Workers),
		closed:  make(chan struct{}),
		loop:    make(chan struct{}),
		latest:  make(map[string]uint64),
		pending: make(map[uint64]chan Outcome),
	}

	for i := 0; i < cfg.Workers; i++ {
		c.workers.Add(1)
		go c.worker()
	}
	go c.correlate()

	log.Printf("dispatch: started %d workers (queue %d)", cfg.Workers, cfg.QueueSize)
	return c
}

// Issue reserves the next sequence number on lane without submitting any
// work. Issuing marks every earlier request on the same lane as superseded,
// so callers that prepare a request asynchronously issue first and submit
// the prepared request with SubmitIssued.
func (c *Channel) Issue(lane string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return 0
	}
	c.seq++
	c.latest[lane] = c.seq
	return c.seq
}

// Current reports whether seq is still the most recently issued request on
// lane and has not been applied yet.
func (c *Channel) Current(lane string, seq uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return seq != 0 && c.latest[lane] == seq
}

// Resolve completes an issued request without building anything, for
// callers that found nothing to build. It returns false when a later
// request on lane has been issued, in which case seq is superseded.
func (c *Channel) Resolve(lane string, seq uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if seq == 0 || c.latest[lane] != seq {
		c.metrics.Requests.WithLabelValues(resultSuperseded).Inc()
		return false
	}
	delete(c.latest, lane)
	c.metrics.Requests.WithLabelValues(resultApplied).Inc()
	return true
}

// Submit issues a request on lane and returns immediately with its ticket.
// Submit only blocks while the queue is full.
func (c *Channel) Submit(lane string, req Request) Ticket {
	return c.SubmitIssued(lane, c.Issue(lane), req)
}

// SubmitIssued queues req under a sequence number obtained from Issue. A
// request that was overtaken before it got here resolves as superseded
// without being built.
func (c *Channel) SubmitIssued(lane string, seq uint64, req Request) Ticket {
	done := make(chan Outcome, 1)

	c.mu.Lock()
	if c.stopped || seq == 0 {
		c.mu.Unlock()
		done <- Outcome{Seq: seq, Lane: lane, Err: ErrClosed}
		return Ticket{Seq: seq, Lane: lane, done: done}
	}
	if c.latest[lane] != seq {
		c.mu.Unlock()
		c.metrics.Requests.WithLabelValues(resultSuperseded).Inc()
		done <- Outcome{Seq: seq, Lane: lane, Superseded: true, Err: apperrors.Superseded(seq)}
		return Ticket{Seq: seq, Lane: lane, done: done}
	}
	c.pending[seq] = done
	c.mu.Unlock()

	c.metrics.Queued.Inc()
	select {
	case c.jobs <- job{seq: seq, lane: lane, req: req}:
	case <-c.closed:
		c.metrics.Queued.Dec()
	}
	return Ticket{Seq: seq, Lane: lane, done: done}
}

// Canonicalize submits req and waits for its outcome. A superseded request
// returns a diff.superseded error.
func (c *Channel) Canonicalize(ctx context.Context, lane string, req Request) (*diff.Renderable, error) {
	return c.CanonicalizeIssued(ctx, lane, c.Issue(lane), req)
}

// CanonicalizeIssued is Canonicalize for a sequence number reserved earlier
// with Issue.
func (c *Channel) CanonicalizeIssued(ctx context.Context, lane string, seq uint64, req Request) (*diff.Renderable, error) {
	out, err := c.SubmitIssued(lane, seq, req).Wait(ctx)
	if err != nil {
		return nil, err
	}
	return out.Result, out.Err
}

// Latest returns the sequence number most recently issued on lane, or zero
// once that request has been applied.
func (c *Channel) Latest(lane string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.latest[lane]
}

// Close stops the workers after their current build and fails every
// request still pending with ErrClosed.
func (c *Channel) Close() {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return
	}
	c.stopped = true
	c.mu.Unlock()

	close(c.closed)
	c.workers.Wait()
	close(c.results)
	<-c.loop

	c.mu.Lock()
	for seq, done := range c.pending {
		done <- Outcome{Seq: seq, Err: ErrClosed}
		delete(c.pending, seq)
	}
	c.mu.Unlock()
	log.Printf("dispatch: stopped")
}

func (c *Channel) worker() {
	defer c.workers.Done()
	for {
		select {
		case <-c.closed:
			return
		case j := <-c.jobs:
			c.metrics.Queued.Dec()
			c.results <- c.process(j)
		}
	}
}

// process runs one job unless it was superseded while queued.
func (c *Channel) process(j job) result {
	c.mu.Lock()
	stale := c.latest[j.lane] != j.seq
	c.mu.Unlock()
	if stale {
		return result{seq: j.seq, lane: j.lane, skipped: true}
	}

	start := time.Now()
	r, err := c.run(j.req)
	c.metrics.Duration.Observe(time.Since(start).Seconds())
	return result{seq: j.seq, lane: j.lane, renderable: r, err: err}
}

// run builds the primary patch and, if that fails and a fallback exists,
// the fallback. The returned error joins the messages of every attempt.
func (c *Channel) run(req Request) (*diff.Renderable, error) {
	r, err := c.safeBuild(req.Path, req.Patch, req.Options)
	if err == nil {
		r.Source = diff.SourcePrimary
		return r, nil
	}
	attempts := []string{"primary: " + apperrors.GetMessage(err)}

	if req.Fallback != "" {
		c.metrics.Fallbacks.Inc()
		log.Printf("dispatch: primary patch for %s unrenderable, trying fallback (%s)",
			req.Path, humanize.Bytes(uint64(len(req.Fallback))))
		r, ferr := c.safeBuild(req.Path, req.Fallback, req.Options)
		if ferr == nil {
			r.Source = diff.SourceFallback
			return r, nil
		}
		attempts = append(attempts, "fallback: "+apperrors.GetMessage(ferr))
	}

	return nil, apperrors.ParseFailed(req.Path, attempts)
}

// safeBuild converts a panic in the build function into an error.
func (c *Channel) safeBuild(path, patch string, opts diff.Options) (r *diff.Renderable, err error) {
	defer func() {
		if p := recover(); p != nil {
			r = nil
			err = apperrors.Internal(fmt.Sprintf("diff build panicked: %v", p), nil)
		}
	}()
	r, err = c.build(path, patch, opts)
	if err == nil && r == nil {
		err = apperrors.Unrenderable(path, "empty result")
	}
	return r, err
}

// correlate is the single loop that matches results to waiters and applies
// the last-issued-wins rule.
func (c *Channel) correlate() {
	defer close(c.loop)
	for res := range c.results {
		c.mu.Lock()
		done, ok := c.pending[res.seq]
		delete(c.pending, res.seq)
		applied := c.latest[res.lane] == res.seq
		if applied {
			delete(c.latest, res.lane)
		}
		c.mu.Unlock()

		if !ok {
			continue
		}

		out := Outcome{Seq: res.seq, Lane: res.lane}
		switch {
		case !applied || res.skipped:
			out.Superseded = true
			out.Err = apperrors.Superseded(res.seq)
			c.metrics.Requests.WithLabelValues(resultSuperseded).Inc()
		case res.err != nil:
			out.Err = res.err
			c.metrics.Requests.WithLabelValues(resultFailed).Inc()
			log.Printf("dispatch: request %d failed: %v", res.seq, res.err)
		default:
			out.Result = res.renderable
			c.metrics.Requests.WithLabelValues(resultApplied).Inc()
		}
		done <- out
	}
}
