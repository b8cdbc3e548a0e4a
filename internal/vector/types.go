package vector

import (
	"time"

	"github.com/raaihank/secureclaw/internal/corpus"
)

// SeedVector is one persisted seed entry with its embedding
type SeedVector struct {
	ID            int64     `db:"id" json:"id"`
	Text          string    `db:"text" json:"text"`
	TextHash      string    `db:"text_hash" json:"text_hash"`
	ToolCount     int       `db:"tool_count" json:"tool_count"`
	Privacy       float64   `db:"privacy" json:"privacy"`
	Complexity    float64   `db:"complexity" json:"complexity"`
	Tools         string    `db:"tools" json:"tools"`
	Tier          string    `db:"tier" json:"tier"`
	EmbeddingType string    `db:"embedding_type" json:"embedding_type"`
	Embedding     []float32 `db:"-" json:"embedding"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// Hit is one search result
type Hit struct {
	Entry      corpus.SeedEntry `json:"entry"`
	Similarity float64          `json:"similarity"`
}

// StoreStats represents seed table statistics
type StoreStats struct {
	TotalVectors   int64            `json:"total_vectors"`
	MultiToolCount int64            `json:"multi_tool_count"`
	ByEmbedding    map[string]int64 `json:"by_embedding"`
}

// BatchInsertResult represents the result of a batch insert operation
type BatchInsertResult struct {
	Inserted int64         `json:"inserted"`
	Skipped  int64         `json:"skipped"`
	Duration time.Duration `json:"duration"`
}
