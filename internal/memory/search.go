package memory

import (
	"context"
	"fmt"
	"log"

	"github.com/easelhq/easel/internal/store"
)

// Searcher embeds recall entries and answers semantic queries against them.
type Searcher struct {
	embedder Embedder
	st       *store.Store
}

// NewSearcher creates a searcher.
func NewSearcher(embedder Embedder, st *store.Store) *Searcher {
	return &Searcher{embedder: embedder, st: st}
}

// RefreshEmbeddings embeds recall entries that have no embedding yet.
// Returns the number of entries embedded.
func (s *Searcher) RefreshEmbeddings(ctx context.Context) (int, error) {
	entries, err := s.st.UnembeddedEntries(ctx, 64)
	if err != nil {
		return 0, fmt.Errorf("load unembedded entries: %w", err)
	}
	if len(entries) == 0 {
		return 0, nil
	}

	texts := make([]string, len(entries))
	for i, e := range entries {
		texts[i] = e.Text
	}
	vectors, err := s.embedder.Embed(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("embed entries: %w", err)
	}
	if len(vectors) != len(entries) {
		return 0, fmt.Errorf("embed entries: got %d vectors for %d texts", len(vectors), len(entries))
	}

	embedded := 0
	for i, e := range entries {
		if err := s.st.SetEmbedding(ctx, e.ID, vectors[i]); err != nil {
			log.Printf("[Memory] store embedding for entry %d failed: %v", e.ID, err)
			continue
		}
		embedded++
	}
	return embedded, nil
}

// Search returns the recall entries most similar to the query.
func (s *Searcher) Search(ctx context.Context, query string, topK int) ([]store.SearchHit, error) {
	vectors, err := s.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("no embedding generated")
	}
	return s.st.SearchSimilar(ctx, vectors[0], topK)
}
