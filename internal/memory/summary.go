package memory

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/easelhq/easel/internal/providers"
	"github.com/easelhq/easel/internal/redis"
	"github.com/easelhq/easel/internal/store"
)

const summaryPrompt = `You maintain a running memory of a working session between a user and an assistant collaborating on a shared card board.

Current memory:
%s

New events since the last update:
%s

Rewrite the memory to fold in the new events. Keep it under 300 words. Preserve standing facts, decisions, and preferences; drop play-by-play detail. Reply with the updated memory only.`

// Manager holds the session's long-term memory summary and refreshes it from
// recall entries. The watermark marks the newest entry folded into the
// summary; it only advances when a refresh succeeds, so failed refreshes
// retry the same entries next round.
type Manager struct {
	completer providers.Completer
	st        *store.Store
	sessionID string

	mu          sync.RWMutex
	summary     string
	watermarkMS int64
}

// NewManager creates a memory manager. If a cached summary exists in Redis
// from a previous process, it is restored.
func NewManager(completer providers.Completer, st *store.Store, sessionID string) *Manager {
	m := &Manager{completer: completer, st: st, sessionID: sessionID}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	var cached struct {
		Summary     string `json:"summary"`
		WatermarkMS int64  `json:"watermarkMs"`
	}
	if redis.CacheGetJSON(ctx, redis.MemoryKey(sessionID), &cached) {
		m.summary = cached.Summary
		m.watermarkMS = cached.WatermarkMS
		log.Printf("[Memory] Restored cached summary (%d chars)", len(cached.Summary))
	}
	return m
}

// Summary returns the current long-term memory text.
func (m *Manager) Summary() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.summary
}

// Watermark returns the timestamp of the newest summarized entry.
func (m *Manager) Watermark() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.watermarkMS
}

// Refresh folds recall entries newer than the watermark into the summary.
// A round with no new entries is a no-op.
func (m *Manager) Refresh(ctx context.Context) error {
	m.mu.RLock()
	watermark := m.watermarkMS
	current := m.summary
	m.mu.RUnlock()

	entries, err := m.st.RecallEntriesSince(ctx, watermark)
	if err != nil {
		return fmt.Errorf("load recall entries: %w", err)
	}
	if len(entries) == 0 {
		return nil
	}

	if current == "" {
		current = "(empty)"
	}
	var events strings.Builder
	for _, e := range entries {
		fmt.Fprintf(&events, "- [%s] %s\n", e.Kind, e.Text)
	}

	updated, err := m.completer.Complete(ctx, fmt.Sprintf(summaryPrompt, current, events.String()))
	if err != nil {
		return fmt.Errorf("summarize: %w", err)
	}
	updated = strings.TrimSpace(updated)
	if updated == "" {
		return fmt.Errorf("summarize: empty summary")
	}

	newWatermark := entries[len(entries)-1].CreatedMS

	m.mu.Lock()
	m.summary = updated
	m.watermarkMS = newWatermark
	m.mu.Unlock()

	redis.CacheSetJSON(ctx, redis.MemoryKey(m.sessionID), map[string]any{
		"summary":     updated,
		"watermarkMs": newWatermark,
	}, 24*time.Hour)

	log.Printf("[Memory] Summary refreshed over %d entries", len(entries))
	return nil
}
