package embeddings

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// TransformerEmbedder embeds text with a sentence-transformer model behind
// a TransformerBackend, e.g. all-MiniLM-L6-v2 exported to ONNX.
type TransformerEmbedder struct {
	tokenizer *Tokenizer
	backend   TransformerBackend
	name      string
	logger    *zap.Logger

	mu  sync.Mutex
	dim int
}

// NewTransformerEmbedder wires a tokenizer to a backend. The dimension is
// learned from the first successful inference.
func NewTransformerEmbedder(tokenizer *Tokenizer, backend TransformerBackend, name string, logger *zap.Logger) (*TransformerEmbedder, error) {
	if tokenizer == nil || backend == nil {
		return nil, fmt.Errorf("%w: tokenizer and backend are required", ErrBackendUnavailable)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TransformerEmbedder{
		tokenizer: tokenizer,
		backend:   backend,
		name:      name,
		logger:    logger,
	}, nil
}

// modelName derives an embedder name from the model file location,
// e.g. models/all-MiniLM-L6-v2/model.onnx -> onnx-all-minilm-l6-v2.
func modelName(modelPath string) string {
	base := strings.TrimSuffix(filepath.Base(modelPath), filepath.Ext(modelPath))
	if base == "model" {
		base = filepath.Base(filepath.Dir(modelPath))
	}
	return "onnx-" + strings.ToLower(base)
}

// Name implements Embedder
func (e *TransformerEmbedder) Name() string {
	return e.name
}

// Dimension implements Embedder. It is zero until the first embedding.
func (e *TransformerEmbedder) Dimension() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dim
}

// Embed implements Embedder
func (e *TransformerEmbedder) Embed(text string) ([]float32, error) {
	tokens, err := e.tokenizer.Tokenize(text)
	if err != nil {
		return nil, err
	}
	if tokens.Truncated {
		e.logger.Debug("Input truncated for embedding", zap.Int("tokens", tokens.Length))
	}

	vectors, err := e.backend.EmbedBatch(context.Background(), []*TokenizedInput{tokens})
	if err != nil {
		return nil, fmt.Errorf("transformer inference failed: %w", err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("transformer returned %d embeddings for 1 input", len(vectors))
	}

	embedding := NormalizeEmbedding(vectors[0])

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.dim == 0 {
		e.dim = len(embedding)
	} else if e.dim != len(embedding) {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(embedding), e.dim)
	}
	return embedding, nil
}

// Close releases the backend.
func (e *TransformerEmbedder) Close() error {
	return e.backend.Close()
}
