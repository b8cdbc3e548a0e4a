package embeddings

import "errors"

// EmbeddingDimensions is the output size of all-MiniLM-L6-v2 and the
// default hash embedding size.
const EmbeddingDimensions = 384

var (
	ErrEmptyText          = errors.New("embeddings: empty text")
	ErrDimensionMismatch  = errors.New("embeddings: dimension mismatch")
	ErrBackendUnavailable = errors.New("embeddings: backend unavailable")
)

// TokenizedInput represents tokenized text ready for model inference
type TokenizedInput struct {
	InputIDs      []int64
	AttentionMask []int64
	TokenTypeIDs  []int64
	Length        int // tokens before padding, including [CLS] and [SEP]
	Truncated     bool
}

// CacheStats reports hit/miss counters for a CachedEmbedder.
type CacheStats struct {
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	Errors  int64   `json:"errors"`
	HitRate float64 `json:"hit_rate"`
}
