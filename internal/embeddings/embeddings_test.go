package embeddings

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/raaihank/secureclaw/internal/config"
)

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func TestHashEmbedder(t *testing.T) {
	h, err := NewHashEmbedder(EmbeddingDimensions)
	require.NoError(t, err)

	t.Run("Deterministic", func(t *testing.T) {
		a, err := h.Embed("Set an alarm for 7 AM")
		require.NoError(t, err)
		b, err := h.Embed("Set an alarm for 7 AM")
		require.NoError(t, err)
		assert.Equal(t, a, b)
		assert.Len(t, a, EmbeddingDimensions)
	})

	t.Run("UnitLength", func(t *testing.T) {
		v, err := h.Embed("Play some jazz music")
		require.NoError(t, err)
		var norm float64
		for _, x := range v {
			norm += float64(x) * float64(x)
		}
		assert.InDelta(t, 1.0, norm, 1e-5)
	})

	t.Run("CaseInsensitive", func(t *testing.T) {
		a, _ := h.Embed("Play Some Jazz")
		b, _ := h.Embed("play some jazz")
		assert.Equal(t, a, b)
	})

	t.Run("SharedVocabularyIsCloser", func(t *testing.T) {
		base, _ := h.Embed("Set an alarm for 7 AM")
		near, _ := h.Embed("Set an alarm for 8 AM")
		far, _ := h.Embed("Text Mom that I'll be late")
		assert.Greater(t, cosine(base, near), cosine(base, far))
		assert.Greater(t, cosine(base, near), 0.5)
	})

	t.Run("EmptyText", func(t *testing.T) {
		_, err := h.Embed("   ")
		assert.ErrorIs(t, err, ErrEmptyText)
	})

	t.Run("InvalidDimension", func(t *testing.T) {
		_, err := NewHashEmbedder(0)
		assert.Error(t, err)
	})

	assert.Equal(t, "hash-384", h.Name())
}

func testVocab() map[string]int64 {
	tokens := []string{"[PAD]", "[UNK]", "[CLS]", "[SEP]", "set", "an", "alarm", "play", "##ing", ",", "music"}
	vocab := make(map[string]int64, len(tokens))
	for i, tok := range tokens {
		vocab[tok] = int64(i)
	}
	return vocab
}

func TestTokenizer(t *testing.T) {
	tok, err := NewTokenizer(testVocab(), 8)
	require.NoError(t, err)

	t.Run("WordPiece", func(t *testing.T) {
		in, err := tok.Tokenize("Playing music, set")
		require.NoError(t, err)
		// [CLS] play ##ing music , set [SEP] [PAD]
		assert.Equal(t, []int64{2, 7, 8, 10, 9, 4, 3, 0}, in.InputIDs)
		assert.Equal(t, []int64{1, 1, 1, 1, 1, 1, 1, 0}, in.AttentionMask)
		assert.Equal(t, 7, in.Length)
		assert.False(t, in.Truncated)
	})

	t.Run("Unknown", func(t *testing.T) {
		in, err := tok.Tokenize("zzz")
		require.NoError(t, err)
		assert.Equal(t, int64(1), in.InputIDs[1])
	})

	t.Run("Truncation", func(t *testing.T) {
		in, err := tok.Tokenize("set an alarm set an alarm set an alarm")
		require.NoError(t, err)
		assert.True(t, in.Truncated)
		assert.Equal(t, 8, in.Length)
		assert.Equal(t, int64(3), in.InputIDs[7])
	})

	t.Run("Empty", func(t *testing.T) {
		_, err := tok.Tokenize("")
		assert.ErrorIs(t, err, ErrEmptyText)
	})

	t.Run("MissingSpecialToken", func(t *testing.T) {
		_, err := NewTokenizer(map[string]int64{"[PAD]": 0}, 8)
		assert.Error(t, err)
	})

	t.Run("LoadFromFile", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "vocab.txt")
		lines := "[PAD]\n[UNK]\n[CLS]\n[SEP]\nset\n"
		require.NoError(t, os.WriteFile(path, []byte(lines), 0o644))
		loaded, err := LoadTokenizer(path, 4)
		require.NoError(t, err)
		in, err := loaded.Tokenize("set")
		require.NoError(t, err)
		assert.Equal(t, []int64{2, 4, 3, 0}, in.InputIDs)
	})
}

type fakeBackend struct {
	out    [][]float32
	err    error
	closed bool
}

func (f *fakeBackend) EmbedBatch(ctx context.Context, batch []*TokenizedInput) ([][]float32, error) {
	return f.out, f.err
}
func (f *fakeBackend) IsReady() bool { return !f.closed }
func (f *fakeBackend) Close() error  { f.closed = true; return nil }

func TestTransformerEmbedder(t *testing.T) {
	tok, err := NewTokenizer(testVocab(), 8)
	require.NoError(t, err)

	t.Run("NormalizesOutput", func(t *testing.T) {
		backend := &fakeBackend{out: [][]float32{{3, 4}}}
		e, err := NewTransformerEmbedder(tok, backend, "onnx-test", zap.NewNop())
		require.NoError(t, err)

		v, err := e.Embed("set an alarm")
		require.NoError(t, err)
		assert.InDeltaSlice(t, []float32{0.6, 0.8}, v, 1e-6)
		assert.Equal(t, 2, e.Dimension())

		require.NoError(t, e.Close())
		assert.True(t, backend.closed)
	})

	t.Run("BackendError", func(t *testing.T) {
		e, err := NewTransformerEmbedder(tok, &fakeBackend{err: errors.New("boom")}, "onnx-test", nil)
		require.NoError(t, err)
		_, err = e.Embed("set")
		assert.Error(t, err)
	})

	t.Run("DimensionChange", func(t *testing.T) {
		backend := &fakeBackend{out: [][]float32{{1, 0}}}
		e, _ := NewTransformerEmbedder(tok, backend, "onnx-test", nil)
		_, err := e.Embed("set")
		require.NoError(t, err)
		backend.out = [][]float32{{1, 0, 0}}
		_, err = e.Embed("set")
		assert.ErrorIs(t, err, ErrDimensionMismatch)
	})

	t.Run("ModelName", func(t *testing.T) {
		assert.Equal(t, "onnx-all-minilm-l6-v2", modelName("models/all-MiniLM-L6-v2/model.onnx"))
		assert.Equal(t, "onnx-minilm", modelName("/opt/minilm.onnx"))
	})
}

func TestMeanPool(t *testing.T) {
	hidden := []float32{
		1, 2,
		3, 4,
		100, 100, // padding
	}
	pooled := meanPool(hidden, 3, 2, []int64{1, 1, 0})
	assert.Equal(t, []float32{2, 3}, pooled)
}

type memoryCache struct {
	mu   sync.Mutex
	data map[string][]float32
	err  error
}

func (m *memoryCache) Get(ctx context.Context, key string) ([]float32, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, false, m.err
	}
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *memoryCache) Set(ctx context.Context, key string, v []float32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.data[key] = v
	return nil
}

type countingEmbedder struct {
	*HashEmbedder
	calls int
}

func (c *countingEmbedder) Embed(text string) ([]float32, error) {
	c.calls++
	return c.HashEmbedder.Embed(text)
}

func TestCachedEmbedder(t *testing.T) {
	h, _ := NewHashEmbedder(16)

	t.Run("HitAfterMiss", func(t *testing.T) {
		inner := &countingEmbedder{HashEmbedder: h}
		c := NewCachedEmbedder(inner, &memoryCache{data: map[string][]float32{}}, 0, nil)

		first, err := c.Embed("play music")
		require.NoError(t, err)
		second, err := c.Embed("play music")
		require.NoError(t, err)

		assert.Equal(t, first, second)
		assert.Equal(t, 1, inner.calls)
		stats := c.Stats()
		assert.Equal(t, int64(1), stats.Hits)
		assert.Equal(t, int64(1), stats.Misses)
		assert.InDelta(t, 0.5, stats.HitRate, 1e-9)
		assert.Equal(t, "hash-16", c.Name())
	})

	t.Run("CacheFailureFallsThrough", func(t *testing.T) {
		inner := &countingEmbedder{HashEmbedder: h}
		c := NewCachedEmbedder(inner, &memoryCache{err: errors.New("redis down")}, 0, zap.NewNop())

		v, err := c.Embed("play music")
		require.NoError(t, err)
		assert.Len(t, v, 16)
		assert.Equal(t, int64(2), c.Stats().Errors)
	})

	t.Run("KeysAreNamespacedByEmbedder", func(t *testing.T) {
		assert.NotEqual(t, CacheKey("hash-16", "x"), CacheKey("hash-32", "x"))
		assert.True(t, strings.HasPrefix(CacheKey("hash-16", "x"), "embedding:hash-16:"))
	})
}

func TestFactory(t *testing.T) {
	t.Run("None", func(t *testing.T) {
		e, cleanup, err := New(config.EmbeddingsConfig{Backend: BackendNone}, zap.NewNop())
		require.NoError(t, err)
		assert.Nil(t, e)
		cleanup()
	})

	t.Run("Hash", func(t *testing.T) {
		e, cleanup, err := New(config.EmbeddingsConfig{Backend: BackendHash, Dimension: 64}, zap.NewNop())
		require.NoError(t, err)
		defer cleanup()
		assert.Equal(t, 64, e.Dimension())
	})

	t.Run("UnreachableCacheIsDropped", func(t *testing.T) {
		cfg := config.EmbeddingsConfig{Backend: BackendHash, Dimension: 64}
		cfg.Cache.Enabled = true
		cfg.Cache.Addr = "127.0.0.1:1"
		e, cleanup, err := New(cfg, zap.NewNop())
		require.NoError(t, err)
		defer cleanup()
		_, cached := e.(*CachedEmbedder)
		assert.False(t, cached)
	})

	t.Run("Unknown", func(t *testing.T) {
		_, _, err := New(config.EmbeddingsConfig{Backend: "bogus"}, zap.NewNop())
		assert.Error(t, err)
	})
}
