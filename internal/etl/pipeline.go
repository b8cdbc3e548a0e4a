// Package etl imports labelled seed files into the pgvector seed table and
// loads the router's corpus from its configured source.
package etl

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/raaihank/secureclaw/internal/corpus"
	"github.com/raaihank/secureclaw/internal/embeddings"
)

// Pipeline embeds seed entries and writes them to a sink
type Pipeline struct {
	sink     SeedSink
	embedder embeddings.Embedder
	config   Config
	logger   *zap.Logger
	stats    ProcessingStats
	mu       sync.RWMutex
}

// NewPipeline creates a new ETL pipeline. sink may be nil for dry runs.
func NewPipeline(sink SeedSink, embedder embeddings.Embedder, cfg Config, logger *zap.Logger) (*Pipeline, error) {
	if embedder == nil {
		return nil, fmt.Errorf("seed import requires an embedder")
	}
	if sink == nil && !cfg.DryRun {
		return nil, fmt.Errorf("seed import requires a store unless dry_run is set")
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultConfig().BatchSize
	}
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Pipeline{
		sink:     sink,
		embedder: embedder,
		config:   cfg,
		logger:   logger,
		stats:    ProcessingStats{StartTime: time.Now()},
	}, nil
}

// ProcessFile loads a seed file in any supported format and imports it
func (p *Pipeline) ProcessFile(ctx context.Context, filePath string) (*ProcessingResult, error) {
	p.logger.Info("Starting seed import",
		zap.String("file", filePath),
		zap.Int("batch_size", p.config.BatchSize),
		zap.Int("workers", p.config.WorkerCount),
		zap.String("embedder", p.embedder.Name()),
		zap.Bool("dry_run", p.config.DryRun))

	entries, err := corpus.LoadFile(filePath)
	if err != nil {
		return nil, err
	}
	return p.Process(ctx, entries)
}

// Process imports entries. Texts repeated up to case and surrounding space
// keep their first occurrence.
// A failed batch is recorded and the import continues with the next one.
func (p *Pipeline) Process(ctx context.Context, entries []corpus.SeedEntry) (*ProcessingResult, error) {
	start := time.Now()
	p.resetStats()

	result := &ProcessingResult{TotalRecords: int64(len(entries))}
	unique := dedupe(entries)
	result.Duplicates = int64(len(entries) - len(unique))

	for lo := 0; lo < len(unique); lo += p.config.BatchSize {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		hi := lo + p.config.BatchSize
		if hi > len(unique) {
			hi = len(unique)
		}
		batch := unique[lo:hi]

		if err := p.processBatch(ctx, batch, result); err != nil {
			p.logger.Error("Batch processing failed", zap.Int("offset", lo), zap.Error(err))
			result.ProcessedFailed += int64(len(batch))
			result.Errors = append(result.Errors, err.Error())
			continue
		}
		result.ProcessedOK += int64(len(batch))
	}

	result.Duration = time.Since(start)
	p.logger.Info("Seed import completed",
		zap.Int64("total_records", result.TotalRecords),
		zap.Int64("processed_ok", result.ProcessedOK),
		zap.Int64("processed_failed", result.ProcessedFailed),
		zap.Int64("duplicates", result.Duplicates),
		zap.Int64("embeddings_reused", result.Reused),
		zap.Duration("total_duration", result.Duration),
		zap.Duration("embedding_time", result.EmbeddingTime),
		zap.Duration("database_time", result.DatabaseTime))

	return result, nil
}

func (p *Pipeline) processBatch(ctx context.Context, batch []corpus.SeedEntry, result *ProcessingResult) error {
	p.mu.Lock()
	p.stats.CurrentBatch++
	p.stats.RecordsRead += int64(len(batch))
	p.mu.Unlock()

	embeddingStart := time.Now()
	generated, reused, err := p.embedBatch(ctx, batch)
	if err != nil {
		return fmt.Errorf("batch embedding generation failed: %w", err)
	}
	result.EmbeddingTime += time.Since(embeddingStart)
	result.Reused += int64(reused)

	p.mu.Lock()
	p.stats.EmbeddingsGen += int64(generated)
	p.mu.Unlock()

	if p.config.DryRun {
		return nil
	}

	dbStart := time.Now()
	if _, err := p.sink.SaveSeeds(ctx, batch, p.embedder.Name()); err != nil {
		return fmt.Errorf("database batch insert failed: %w", err)
	}
	result.DatabaseTime += time.Since(dbStart)

	p.mu.Lock()
	p.stats.DatabaseWrites += int64(len(batch))
	p.mu.Unlock()
	return nil
}

// embedBatch fills in missing embeddings in place using the worker pool.
func (p *Pipeline) embedBatch(ctx context.Context, batch []corpus.SeedEntry) (generated, reused int, err error) {
	var todo []int
	for i := range batch {
		if len(batch[i].Embedding) > 0 && !p.config.ReembedAll {
			reused++
			continue
		}
		todo = append(todo, i)
	}

	jobs := make(chan int)
	errs := make(chan error, len(todo))
	var wg sync.WaitGroup

	workers := p.config.WorkerCount
	if workers > len(todo) {
		workers = len(todo)
	}
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				vec, err := p.embedder.Embed(batch[i].Text)
				if err != nil {
					errs <- fmt.Errorf("seed %q: %w", batch[i].Text, err)
					continue
				}
				batch[i].Embedding = vec
			}
		}()
	}

feed:
	for _, i := range todo {
		select {
		case <-ctx.Done():
			break feed
		case jobs <- i:
		}
	}
	close(jobs)
	wg.Wait()
	close(errs)

	if err := ctx.Err(); err != nil {
		return 0, reused, err
	}
	if err, ok := <-errs; ok {
		return 0, reused, err
	}
	return len(todo), reused, nil
}

// dedupe returns copies of entries with repeated texts removed.
func dedupe(entries []corpus.SeedEntry) []corpus.SeedEntry {
	seen := make(map[string]struct{}, len(entries))
	out := make([]corpus.SeedEntry, 0, len(entries))
	for _, e := range entries {
		key := strings.ToLower(strings.TrimSpace(e.Text))
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, e.Clone())
	}
	return out
}

func (p *Pipeline) resetStats() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stats = ProcessingStats{StartTime: time.Now()}
}

// GetStats returns current processing statistics
func (p *Pipeline) GetStats() ProcessingStats {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.stats
}
