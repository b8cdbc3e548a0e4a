package embeddings

import (
	"crypto/sha256"
	"fmt"
	"math"
	"strings"
)

// NormalizeEmbedding scales a vector to unit length. A zero vector is
// returned unchanged.
func NormalizeEmbedding(embedding []float32) []float32 {
	var norm float64
	for _, val := range embedding {
		norm += float64(val) * float64(val)
	}
	if norm == 0 {
		return embedding
	}
	norm = math.Sqrt(norm)

	normalized := make([]float32, len(embedding))
	for i, val := range embedding {
		normalized[i] = float32(float64(val) / norm)
	}
	return normalized
}

// CacheKey derives the cache key for text embedded by the named embedder.
func CacheKey(embedderName, text string) string {
	hash := sha256.Sum256([]byte(strings.TrimSpace(text)))
	return fmt.Sprintf("embedding:%s:%x", embedderName, hash[:16])
}
