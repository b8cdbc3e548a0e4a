package embeddings

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/raaihank/secureclaw/internal/cache"
	"github.com/raaihank/secureclaw/internal/config"
)

// Backend names accepted in configuration.
const (
	BackendNone = "none"
	BackendHash = "hash"
	BackendONNX = "onnx"
)

// New builds the embedder selected by cfg, wrapped in a Redis cache when
// one is enabled and reachable. Backend "none" yields a nil Embedder, which
// disables similarity scoring. The returned cleanup func is never nil.
func New(cfg config.EmbeddingsConfig, logger *zap.Logger) (Embedder, func(), error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	noop := func() {}

	var (
		embedder Embedder
		cleanup  = noop
	)

	switch cfg.Backend {
	case BackendNone, "":
		logger.Info("Embeddings disabled, similarity scoring off")
		return nil, noop, nil
	case BackendHash:
		hash, err := NewHashEmbedder(cfg.Dimension)
		if err != nil {
			return nil, noop, err
		}
		embedder = hash
	case BackendONNX:
		tokenizer, err := LoadTokenizer(cfg.VocabPath, cfg.MaxSeqLength)
		if err != nil {
			return nil, noop, err
		}
		backend, err := NewTransformerBackend(logger, cfg.ModelPath, cfg.LibraryPath)
		if err != nil {
			return nil, noop, err
		}
		transformer, err := NewTransformerEmbedder(tokenizer, backend, modelName(cfg.ModelPath), logger)
		if err != nil {
			_ = backend.Close()
			return nil, noop, err
		}
		embedder = transformer
		cleanup = func() { _ = transformer.Close() }
	default:
		return nil, noop, fmt.Errorf("unknown embeddings backend: %s", cfg.Backend)
	}

	logger.Info("Created embedder", zap.String("name", embedder.Name()))

	if !cfg.Cache.Enabled {
		return embedder, cleanup, nil
	}

	vectorCache, err := cache.New(cfg.Cache, logger)
	if err != nil {
		logger.Warn("Redis connection failed, disabling embedding cache", zap.Error(err))
		return embedder, cleanup, nil
	}

	closeInner := cleanup
	cleanup = func() {
		closeInner()
		_ = vectorCache.Close()
	}
	return NewCachedEmbedder(embedder, vectorCache, cfg.Cache.ReadTimeout, logger), cleanup, nil
}
