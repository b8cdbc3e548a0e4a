package embeddings

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"strings"
	"unicode"
)

const bigramWeight = 0.5

// HashEmbedder produces deterministic bag-of-words embeddings by hashing
// lowercased unigrams and bigrams into a fixed number of signed buckets.
// Texts sharing vocabulary land close together, which is enough for the
// corpus similarity signal when no transformer model is installed.
type HashEmbedder struct {
	dim int
}

// NewHashEmbedder creates a hash embedder with dim buckets.
func NewHashEmbedder(dim int) (*HashEmbedder, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("invalid hash embedding dimension: %d", dim)
	}
	return &HashEmbedder{dim: dim}, nil
}

// Name implements Embedder
func (h *HashEmbedder) Name() string {
	return fmt.Sprintf("hash-%d", h.dim)
}

// Dimension implements Embedder
func (h *HashEmbedder) Dimension() int {
	return h.dim
}

// Embed implements Embedder
func (h *HashEmbedder) Embed(text string) ([]float32, error) {
	tokens := wordTokens(text)
	if len(tokens) == 0 {
		return nil, ErrEmptyText
	}

	embedding := make([]float32, h.dim)
	for i, token := range tokens {
		h.addFeature(embedding, "u:"+token, 1)
		if i > 0 {
			h.addFeature(embedding, "b:"+tokens[i-1]+" "+token, bigramWeight)
		}
	}

	return NormalizeEmbedding(embedding), nil
}

// addFeature hashes feature to a bucket and a sign.
func (h *HashEmbedder) addFeature(target []float32, feature string, weight float32) {
	sum := sha256.Sum256([]byte(feature))
	idx := binary.BigEndian.Uint32(sum[0:4]) % uint32(len(target))
	if sum[4]&1 == 1 {
		weight = -weight
	}
	target[idx] += weight
}

func wordTokens(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	})
}
