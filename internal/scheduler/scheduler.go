// Package scheduler runs background maintenance jobs with per-job
// deduplication: a (kind, entity) pair already in flight is skipped, not
// queued, so slow rounds never pile up behind each other.
package scheduler

import (
	"context"
	"log"
	"sync"
	"time"
)

// Job kinds.
const (
	KindMemorySummary    = "memory_summary"
	KindEmbeddingRefresh = "embedding_refresh"
)

// JobFunc is one unit of background work.
type JobFunc func(ctx context.Context) error

// Scheduler tracks in-flight jobs.
type Scheduler struct {
	mu         sync.Mutex
	inProgress map[[2]string]bool
}

// New creates a scheduler.
func New() *Scheduler {
	return &Scheduler{inProgress: make(map[[2]string]bool)}
}

// InProgress reports whether a (kind, entity) job is currently running.
func (s *Scheduler) InProgress(kind, entity string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inProgress[[2]string{kind, entity}]
}

// TryRun runs fn unless the same (kind, entity) is already in flight, in
// which case the round is skipped. The marker is released when fn returns,
// success or failure. Returns false if skipped.
func (s *Scheduler) TryRun(ctx context.Context, kind, entity string, fn JobFunc) bool {
	key := [2]string{kind, entity}

	s.mu.Lock()
	if s.inProgress[key] {
		s.mu.Unlock()
		return false
	}
	s.inProgress[key] = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.inProgress, key)
		s.mu.Unlock()
	}()

	if err := fn(ctx); err != nil {
		log.Printf("[Scheduler] %s/%s failed: %v", kind, entity, err)
		return true
	}
	return true
}

// RunPeriodic runs the job every interval until ctx is cancelled.
func (s *Scheduler) RunPeriodic(ctx context.Context, kind, entity string, interval time.Duration, fn JobFunc) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !s.TryRun(ctx, kind, entity, fn) {
				log.Printf("[Scheduler] %s/%s still running, round skipped", kind, entity)
			}
		}
	}
}

// RunOnSignal runs the job each time the signal channel fires, until ctx is
// cancelled. Signals arriving while the job runs coalesce with the channel's
// buffering; a round already in flight is skipped.
func (s *Scheduler) RunOnSignal(ctx context.Context, kind, entity string, signal <-chan struct{}, fn JobFunc) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-signal:
			if !s.TryRun(ctx, kind, entity, fn) {
				log.Printf("[Scheduler] %s/%s still running, signal skipped", kind, entity)
			}
		}
	}
}
