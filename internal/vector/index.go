// Package vector holds seed embeddings for nearest-neighbour lookup, in
// memory for routing and in PostgreSQL/pgvector for persistence.
package vector

import (
	"math"
	"sort"

	"github.com/raaihank/secureclaw/internal/corpus"
)

// Index is a brute-force cosine index over seed entries. It is built once
// and is safe for concurrent Search calls afterwards.
type Index struct {
	entries []corpus.SeedEntry
}

// NewIndex copies entries into a new index.
func NewIndex(entries []corpus.SeedEntry) *Index {
	return &Index{entries: corpus.CloneAll(entries)}
}

// Len returns the number of entries, with or without embeddings.
func (ix *Index) Len() int {
	return len(ix.entries)
}

// Embedded returns the number of entries that carry an embedding.
func (ix *Index) Embedded() int {
	n := 0
	for _, e := range ix.entries {
		if len(e.Embedding) > 0 {
			n++
		}
	}
	return n
}

// Search returns up to k entries ordered by descending cosine similarity to
// query. Ties keep insertion order. Entries without an embedding are skipped.
func (ix *Index) Search(query []float32, k int) []Hit {
	if k <= 0 || len(query) == 0 {
		return nil
	}

	hits := make([]Hit, 0, len(ix.entries))
	for _, e := range ix.entries {
		if len(e.Embedding) == 0 {
			continue
		}
		hits = append(hits, Hit{Entry: e, Similarity: CosineSimilarity(query, e.Embedding)})
	}

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Similarity > hits[j].Similarity
	})

	if len(hits) > k {
		hits = hits[:k]
	}
	for i := range hits {
		hits[i].Entry = hits[i].Entry.Clone()
	}
	return hits
}

// CosineSimilarity returns 0 for zero vectors and mismatched dimensions.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
