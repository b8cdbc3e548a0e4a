package etl

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/raaihank/secureclaw/internal/config"
	"github.com/raaihank/secureclaw/internal/corpus"
	"github.com/raaihank/secureclaw/internal/vector"
)

// Corpus sources accepted in configuration.
const (
	SourceBuiltin  = "builtin"
	SourceFile     = "file"
	SourcePostgres = "postgres"
)

// StoreConfig maps the database section of the configuration onto the
// vector store's settings.
func StoreConfig(db config.DatabaseConfig) vector.Config {
	return vector.Config{
		DatabaseURL:     db.URL,
		MaxOpenConns:    db.MaxConnections,
		MaxIdleConns:    db.MaxIdleConns,
		ConnMaxLifetime: db.ConnMaxLifetime,
		BatchSize:       db.BatchSize,
	}
}

// LoadCorpus returns the seed corpus from the configured source. Seeds read
// from Postgres carry their stored embedding only when it was produced by
// embeddingType, so the router re-embeds the rest.
func LoadCorpus(ctx context.Context, cfg config.CorpusConfig, embeddingType string, logger *zap.Logger) ([]corpus.SeedEntry, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var (
		seeds []corpus.SeedEntry
		err   error
	)
	switch cfg.Source {
	case SourceBuiltin, "":
		seeds = corpus.Default()
	case SourceFile:
		seeds, err = corpus.LoadFile(cfg.SeedFile)
	case SourcePostgres:
		seeds, err = loadFromStore(ctx, cfg.Database, embeddingType, logger)
	default:
		return nil, fmt.Errorf("unknown corpus source: %s", cfg.Source)
	}
	if err != nil {
		return nil, err
	}
	if len(seeds) == 0 {
		return nil, fmt.Errorf("corpus source %s returned no seeds", cfg.Source)
	}

	logger.Info("Seed corpus loaded",
		zap.String("source", cfg.Source),
		zap.Int("seeds", len(seeds)))
	return seeds, nil
}

func loadFromStore(ctx context.Context, db config.DatabaseConfig, embeddingType string, logger *zap.Logger) ([]corpus.SeedEntry, error) {
	store, err := vector.NewStore(StoreConfig(db), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open seed store: %w", err)
	}
	defer store.Close()

	return store.LoadSeeds(ctx, embeddingType)
}
