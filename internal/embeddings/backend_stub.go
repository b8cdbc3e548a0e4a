//go:build !onnx
// +build !onnx

package embeddings

import (
	"fmt"

	"go.uber.org/zap"
)

// NewTransformerBackend reports the backend as unavailable when the 'onnx'
// build tag is not set.
func NewTransformerBackend(logger *zap.Logger, modelPath, libraryPath string) (TransformerBackend, error) {
	return nil, fmt.Errorf("%w: built without the onnx tag", ErrBackendUnavailable)
}
