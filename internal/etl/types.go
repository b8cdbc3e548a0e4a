package etl

import (
	"context"
	"time"

	"github.com/raaihank/secureclaw/internal/corpus"
	"github.com/raaihank/secureclaw/internal/vector"
)

// SeedSink persists embedded seeds. *vector.Store satisfies it.
type SeedSink interface {
	SaveSeeds(ctx context.Context, entries []corpus.SeedEntry, embeddingType string) (*vector.BatchInsertResult, error)
}

// ProcessingResult represents the result of importing a seed file
type ProcessingResult struct {
	TotalRecords    int64         `json:"total_records"`
	ProcessedOK     int64         `json:"processed_ok"`
	ProcessedFailed int64         `json:"processed_failed"`
	Duplicates      int64         `json:"duplicates"`
	Reused          int64         `json:"embeddings_reused"`
	Duration        time.Duration `json:"duration"`
	EmbeddingTime   time.Duration `json:"embedding_time"`
	DatabaseTime    time.Duration `json:"database_time"`
	Errors          []string      `json:"errors,omitempty"`
}

// Config contains ETL pipeline configuration
type Config struct {
	BatchSize   int  `yaml:"batch_size" mapstructure:"batch_size"`
	WorkerCount int  `yaml:"worker_count" mapstructure:"worker_count"`
	DryRun      bool `yaml:"dry_run" mapstructure:"dry_run"`
	// ReembedAll ignores embeddings already present in the seed file.
	ReembedAll bool `yaml:"reembed_all" mapstructure:"reembed_all"`
}

// DefaultConfig returns the import defaults
func DefaultConfig() Config {
	return Config{BatchSize: 100, WorkerCount: 4}
}

// ProcessingStats tracks real-time processing statistics
type ProcessingStats struct {
	StartTime      time.Time `json:"start_time"`
	RecordsRead    int64     `json:"records_read"`
	EmbeddingsGen  int64     `json:"embeddings_generated"`
	DatabaseWrites int64     `json:"database_writes"`
	CurrentBatch   int64     `json:"current_batch"`
}
