// Package orchestrator serializes inference: at most one cycle runs at a
// time, triggers raised during an active cycle queue up, and the queue is
// drained oldest-first as soon as the cycle finishes.
package orchestrator

import (
	"context"
	"log"
	"strings"
	"sync"
	"time"
)

// Trigger sources.
const (
	SourceAudio    = "audio_transcript"
	SourceChat     = "chat_message"
	SourceAppEvent = "internal_app_event"
)

// Trigger is one request for the agent's attention.
type Trigger struct {
	Source   string
	Text     string
	RaisedAt time.Time
}

// Runner executes one inference cycle for a (possibly merged) trigger.
type Runner interface {
	RunCycle(ctx context.Context, source, text string) error
}

// Orchestrator enforces single-flight inference per session.
type Orchestrator struct {
	runner Runner
	now    func() time.Time

	mu       sync.Mutex
	active   bool
	pending  []Trigger
	lastUser time.Time // last time an audio or chat trigger was raised
}

// New creates an orchestrator over the given runner.
func New(runner Runner) *Orchestrator {
	return &Orchestrator{runner: runner, now: time.Now}
}

// SetClock overrides the orchestrator's clock. Used in tests.
func (o *Orchestrator) SetClock(now func() time.Time) { o.now = now }

// Active reports whether a cycle is currently running.
func (o *Orchestrator) Active() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.active
}

// PendingCount reports the number of queued triggers.
func (o *Orchestrator) PendingCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.pending)
}

// Raise submits a trigger. If the session is idle the cycle starts
// immediately on a new goroutine; otherwise the trigger queues until the
// current cycle completes.
func (o *Orchestrator) Raise(ctx context.Context, t Trigger) {
	if t.RaisedAt.IsZero() {
		t.RaisedAt = o.now()
	}

	o.mu.Lock()
	if t.Source == SourceAudio || t.Source == SourceChat {
		o.lastUser = t.RaisedAt
	}
	if o.active {
		o.pending = append(o.pending, t)
		o.mu.Unlock()
		log.Printf("[Orchestrator] queued %s trigger (%d pending)", t.Source, len(o.pending))
		return
	}
	o.active = true
	o.mu.Unlock()

	go o.drain(ctx, t)
}

// drain runs the first trigger, then keeps taking batches off the queue
// until it is empty. Cycle errors are logged; draining continues so queued
// user input is never stranded behind a failure.
func (o *Orchestrator) drain(ctx context.Context, first Trigger) {
	batch, ok := []Trigger{first}, true
	for ok {
		o.runBatch(ctx, batch)

		o.mu.Lock()
		batch, ok = o.takeBatchLocked()
		if !ok {
			o.active = false
		}
		o.mu.Unlock()
	}
}

// runBatch executes one cycle for a merged batch, applying the app-event
// freshness rule.
func (o *Orchestrator) runBatch(ctx context.Context, batch []Trigger) {
	t := batch[0]

	if t.Source == SourceAppEvent && o.appEventStale(t) {
		log.Printf("[Orchestrator] skipping stale app event")
		return
	}

	text := t.Text
	if len(batch) > 1 {
		parts := make([]string, len(batch))
		for i, b := range batch {
			parts[i] = b.Text
		}
		text = strings.Join(parts, " ")
	}

	if err := o.runner.RunCycle(ctx, t.Source, text); err != nil {
		log.Printf("[Orchestrator] cycle failed: %v", err)
	}
}

// appEventStale reports whether an app event should be skipped: user input
// arrived after it was raised, or user triggers are still waiting in the
// queue. The user's thread of attention has moved on; the event's context is
// gone.
func (o *Orchestrator) appEventStale(t Trigger) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.lastUser.After(t.RaisedAt) {
		return true
	}
	for _, p := range o.pending {
		if p.Source == SourceAudio || p.Source == SourceChat {
			return true
		}
	}
	return false
}

// takeBatchLocked pops the next batch off the queue: one trigger, except
// that consecutive audio transcripts at the head merge into a single batch.
// Chat messages stay discrete; each was a deliberate send.
func (o *Orchestrator) takeBatchLocked() ([]Trigger, bool) {
	if len(o.pending) == 0 {
		return nil, false
	}
	n := 1
	if o.pending[0].Source == SourceAudio {
		for n < len(o.pending) && o.pending[n].Source == SourceAudio {
			n++
		}
	}
	batch := make([]Trigger, n)
	copy(batch, o.pending[:n])
	o.pending = o.pending[n:]
	return batch, true
}
