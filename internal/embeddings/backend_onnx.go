//go:build onnx
// +build onnx

package embeddings

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
	"go.uber.org/zap"
)

var (
	ortInitOnce sync.Once
	ortInitErr  error
)

// OnnxBackend implements TransformerBackend using ONNX Runtime (via yalue/onnxruntime_go).
type OnnxBackend struct {
	session    *ort.DynamicAdvancedSession
	inputNames []string
	outputName string
	logger     *zap.Logger
	ready      bool
	mu         sync.RWMutex
}

// NewTransformerBackend initializes the ONNX Runtime backend. Requires build tag 'onnx'.
func NewTransformerBackend(logger *zap.Logger, modelPath, libraryPath string) (TransformerBackend, error) {
	if libraryPath == "" {
		libraryPath = os.Getenv("ONNXRUNTIME_SHARED_LIB")
	}

	ortInitOnce.Do(func() {
		if libraryPath != "" {
			ort.SetSharedLibraryPath(libraryPath)
		}
		ortInitErr = ort.InitializeEnvironment()
	})
	if ortInitErr != nil {
		return nil, fmt.Errorf("%w: onnx runtime init: %v", ErrBackendUnavailable, ortInitErr)
	}

	inputsInfo, outputsInfo, err := ort.GetInputOutputInfo(modelPath)
	if err != nil {
		return nil, fmt.Errorf("failed to inspect onnx model %s: %w", modelPath, err)
	}

	// Prefer common transformer inputs order
	preferredInputs := []string{"input_ids", "attention_mask", "token_type_ids"}
	available := map[string]string{}
	for _, ii := range inputsInfo {
		available[strings.ToLower(ii.Name)] = ii.Name
	}
	var inputNames []string
	for _, name := range preferredInputs {
		if declared, ok := available[name]; ok {
			inputNames = append(inputNames, declared)
		}
	}
	if len(inputNames) == 0 && len(inputsInfo) > 0 {
		// Keep stable order by name for determinism
		for _, ii := range inputsInfo {
			inputNames = append(inputNames, ii.Name)
		}
		sort.Strings(inputNames)
	}

	if len(outputsInfo) == 0 {
		return nil, fmt.Errorf("onnx model %s reports no outputs", modelPath)
	}
	outputName := outputsInfo[0].Name

	sess, err := ort.NewDynamicAdvancedSession(modelPath, inputNames, []string{outputName}, nil)
	if err != nil {
		return nil, fmt.Errorf("onnx session creation failed: %w", err)
	}

	logger.Info("ONNX Runtime backend ready",
		zap.String("model", modelPath),
		zap.Strings("inputs", inputNames),
		zap.String("output", outputName))

	return &OnnxBackend{session: sess, inputNames: inputNames, outputName: outputName, logger: logger, ready: true}, nil
}

// IsReady reports whether the backend is initialized.
func (b *OnnxBackend) IsReady() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.ready && b.session != nil
}

// Close releases the session. The runtime environment stays initialized
// for the life of the process.
func (b *OnnxBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.session != nil {
		b.session.Destroy()
		b.session = nil
	}
	b.ready = false
	return nil
}

// EmbedBatch runs inference for the batch and returns mean-pooled embeddings.
func (b *OnnxBackend) EmbedBatch(ctx context.Context, tokensBatch []*TokenizedInput) ([][]float32, error) {
	if !b.IsReady() {
		return nil, fmt.Errorf("%w: onnx backend not ready", ErrBackendUnavailable)
	}

	batch := len(tokensBatch)
	if batch == 0 {
		return [][]float32{}, nil
	}
	seqLen := len(tokensBatch[0].InputIDs)

	inputIDs := make([]int64, 0, batch*seqLen)
	attention := make([]int64, 0, batch*seqLen)
	tokenTypes := make([]int64, 0, batch*seqLen)
	for _, t := range tokensBatch {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		if len(t.InputIDs) != seqLen {
			return nil, fmt.Errorf("ragged batch: sequence length %d, want %d", len(t.InputIDs), seqLen)
		}
		inputIDs = append(inputIDs, t.InputIDs...)
		attention = append(attention, t.AttentionMask...)
		tokenTypes = append(tokenTypes, t.TokenTypeIDs...)
	}

	shape := ort.NewShape(int64(batch), int64(seqLen))
	idsTensor, err := ort.NewTensor(shape, inputIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to create input_ids tensor: %w", err)
	}
	defer idsTensor.Destroy()
	maskTensor, err := ort.NewTensor(shape, attention)
	if err != nil {
		return nil, fmt.Errorf("failed to create attention_mask tensor: %w", err)
	}
	defer maskTensor.Destroy()
	typeTensor, err := ort.NewTensor(shape, tokenTypes)
	if err != nil {
		return nil, fmt.Errorf("failed to create token_type_ids tensor: %w", err)
	}
	defer typeTensor.Destroy()

	inputs := make([]ort.Value, 0, len(b.inputNames))
	for _, rawName := range b.inputNames {
		name := strings.ToLower(rawName)
		switch {
		case strings.Contains(name, "attention") || strings.Contains(name, "mask"):
			inputs = append(inputs, maskTensor)
		case strings.Contains(name, "token_type") || strings.Contains(name, "segment"):
			inputs = append(inputs, typeTensor)
		default:
			inputs = append(inputs, idsTensor)
		}
	}

	// One output; let ORT allocate it
	outputs := make([]ort.Value, 1)
	if err := b.session.Run(inputs, outputs); err != nil {
		return nil, fmt.Errorf("onnx run failed: %w", err)
	}
	if outputs[0] == nil {
		return nil, fmt.Errorf("onnx returned no outputs")
	}
	defer outputs[0].Destroy()

	outTensor, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, fmt.Errorf("unexpected output type (want float32 tensor)")
	}
	data := outTensor.GetData()
	outShape := outTensor.GetShape()
	res := make([][]float32, batch)

	switch len(outShape) {
	case 2:
		// [batch, dims]
		dims := int(outShape[1])
		if len(data) != batch*dims {
			return nil, fmt.Errorf("unexpected flat data length %d for shape %v", len(data), outShape)
		}
		for i := 0; i < batch; i++ {
			res[i] = make([]float32, dims)
			copy(res[i], data[i*dims:(i+1)*dims])
		}
	case 3:
		// [batch, seq, dims] -> masked mean pool over seq
		seq := int(outShape[1])
		dims := int(outShape[2])
		if len(data) != batch*seq*dims {
			return nil, fmt.Errorf("unexpected flat data length %d for shape %v", len(data), outShape)
		}
		for i := 0; i < batch; i++ {
			start := i * seq * dims
			res[i] = meanPool(data[start:start+seq*dims], seq, dims, tokensBatch[i].AttentionMask)
		}
	default:
		return nil, fmt.Errorf("unsupported output shape %v", outShape)
	}

	return res, nil
}
