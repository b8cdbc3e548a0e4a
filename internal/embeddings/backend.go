package embeddings

import (
	"context"
)

// TransformerBackend defines a pluggable backend for transformer inference.
// Implementations may use ONNX Runtime, TensorRT, or other engines.
type TransformerBackend interface {
	// EmbedBatch runs a single inference for a batch of tokenized inputs and
	// returns one mean-pooled embedding per input.
	EmbedBatch(ctx context.Context, tokensBatch []*TokenizedInput) ([][]float32, error)
	// IsReady returns whether the backend is initialized and ready.
	IsReady() bool
	// Close releases any native resources.
	Close() error
}

// NewTransformerBackend is provided by build-tagged files: backend_onnx.go
// with the onnx tag, backend_stub.go otherwise.

// meanPool averages token vectors of one sequence, weighting each position
// by its attention mask. hidden is laid out [seq][dims].
func meanPool(hidden []float32, seq, dims int, mask []int64) []float32 {
	pooled := make([]float32, dims)
	var count float32
	for s := 0; s < seq; s++ {
		if s < len(mask) && mask[s] == 0 {
			continue
		}
		offset := s * dims
		for d := 0; d < dims; d++ {
			pooled[d] += hidden[offset+d]
		}
		count++
	}
	if count == 0 {
		return pooled
	}
	inv := 1 / count
	for d := range pooled {
		pooled[d] *= inv
	}
	return pooled
}
