package store

import (
	"context"
	"encoding/binary"
	"math"
	"sort"
)

// Embeddings are stored as BLOBs (little-endian float32 arrays) on the
// recall_entries table. Similarity is computed in Go; a session rarely
// accumulates more than a few thousand entries.

// SearchHit is one semantic search result.
type SearchHit struct {
	Entry RecallEntry
	Score float32
}

// SetEmbedding stores the embedding for a recall entry, marking it embedded.
func (s *Store) SetEmbedding(ctx context.Context, id int64, vector []float32) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE recall_entries SET embedding = ? WHERE id = ?`,
		encodeFloat32s(vector), id)
	return err
}

// SearchSimilar returns the top-k recall entries most similar to the query
// vector by cosine similarity. Entries without embeddings are skipped.
func (s *Store) SearchSimilar(ctx context.Context, vector []float32, limit int) ([]SearchHit, error) {
	if limit <= 0 {
		limit = 5
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, kind, text, created_ms, embedding
		 FROM recall_entries WHERE embedding IS NOT NULL`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var hits []SearchHit
	for rows.Next() {
		var e RecallEntry
		var blob []byte
		if err := rows.Scan(&e.ID, &e.Kind, &e.Text, &e.CreatedMS, &blob); err != nil {
			continue
		}
		stored := decodeFloat32s(blob)
		if len(stored) != len(vector) {
			continue // dimension mismatch, skip
		}
		e.Embedded = true
		hits = append(hits, SearchHit{Entry: e, Score: cosineSimilarity(vector, stored)})
	}

	sort.Slice(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, rows.Err()
}

// encodeFloat32s converts a float32 slice to little-endian bytes.
func encodeFloat32s(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// decodeFloat32s converts little-endian bytes back to a float32 slice.
func decodeFloat32s(b []byte) []float32 {
	if len(b)%4 != 0 {
		return nil
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v
}

// cosineSimilarity computes the cosine similarity between two vectors.
func cosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		ai, bi := float64(a[i]), float64(b[i])
		dot += ai * bi
		normA += ai * ai
		normB += bi * bi
	}
	denom := math.Sqrt(normA) * math.Sqrt(normB)
	if denom == 0 {
		return 0
	}
	return float32(dot / denom)
}
