package router

import (
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/raaihank/secureclaw/internal/corpus"
	"github.com/raaihank/secureclaw/internal/vector"
)

func tools(names ...string) []Tool {
	out := make([]Tool, len(names))
	for i, n := range names {
		out[i] = Tool{Name: n}
	}
	return out
}

var sevenTools = tools("get_weather", "set_alarm", "send_message", "create_reminder", "search_contacts", "play_music", "set_timer")

func newRouter(t *testing.T, seeds []corpus.SeedEntry, e Embedder) *Router {
	t.Helper()
	r, err := New(seeds, e, DefaultConfig(), zap.NewNop())
	require.NoError(t, err)
	return r
}

func TestConfigValidate(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"NegativeWeight", func(c *Config) { c.PrivacyWeight = -0.1 }},
		{"AllWeightsZero", func(c *Config) {
			c.MultiToolWeight, c.PrivacyWeight, c.ComplexityWeight, c.SimilarityWeight = 0, 0, 0, 0
		}},
		{"ThresholdAboveOne", func(c *Config) { c.CloudThreshold = 1.2 }},
		{"BandsOutOfOrder", func(c *Config) { c.ConfidenceFloor = 0.9 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
			_, err := New(nil, nil, cfg, nil)
			assert.Error(t, err)
		})
	}
}

func TestScoreMultiTool(t *testing.T) {
	t.Run("ConjunctionsNeverDecrease", func(t *testing.T) {
		base := scoreMultiTool("Set an alarm", 1)
		more := scoreMultiTool("Set an alarm and play music", 1)
		most := scoreMultiTool("Set an alarm and play music and send a message", 1)
		assert.InDelta(t, 0.20, base, 1e-9)
		assert.LessOrEqual(t, base, more)
		assert.LessOrEqual(t, more, most)
		assert.InDelta(t, 0.80, most, 1e-9)
	})

	t.Run("VerbsAreDistinct", func(t *testing.T) {
		assert.InDelta(t, 0.0, scoreMultiTool("play play PLAY", 1), 1e-9)
	})

	t.Run("CommaClausesAndLargeToolset", func(t *testing.T) {
		q := "Set an alarm for 7 AM, check the weather, and send a message to Bob"
		assert.InDelta(t, 0.95, scoreMultiTool(q, 7), 1e-9)
	})

	t.Run("Clamped", func(t *testing.T) {
		q := "Set a timer, then play music, and then also send a text, plus check the weather and call Bob"
		assert.Equal(t, 1.0, scoreMultiTool(q, 7))
	})
}

func TestScorePrivacy(t *testing.T) {
	tests := []struct {
		query string
		want  float64
	}{
		{"What's the weather?", 0},
		{"My SSN is 123-45-6789", 1.0},
		{"card 4111111111111111", 1.0},
		{"card 4111 1111 1111 1111", 0.9},
		{"my password is hunter2", 0.7},
		{"keep this PRIVATE", 0.7},
		{"mail bob@example.com", 0.3},
		{"call 555-123-4567", 0.3},
		{"mail bob@example.com my secret", 0.7},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			assert.Equal(t, tt.want, scorePrivacy(tt.query))
		})
	}
}

func TestScoreComplexity(t *testing.T) {
	assert.Equal(t, 0.0, scoreComplexity("Play jazz", 1))
	assert.InDelta(t, 0.05, scoreComplexity("Play jazz", 2), 1e-9)
	assert.InDelta(t, 0.15, scoreComplexity("Play jazz", 4), 1e-9)
	assert.InDelta(t, 0.45, scoreComplexity("Set an alarm for 7 AM, check the weather, and send a message to Bob", 7), 1e-9)

	long := strings.Repeat("word ", 20) + "1 2 3"
	assert.InDelta(t, 0.25+0.25+0.15, scoreComplexity(long, 7), 1e-9)
}

func hit(sim float64, toolCount int) vector.Hit {
	return vector.Hit{Entry: corpus.SeedEntry{Text: "seed", ToolCount: toolCount}, Similarity: sim}
}

func TestScoreSimilarity(t *testing.T) {
	tests := []struct {
		name string
		hits []vector.Hit
		want float64
	}{
		{"NoHits", nil, 0},
		{"BelowHalf", []vector.Hit{hit(0.4, 1)}, 0},
		{"LinearRemap", []vector.Hit{hit(0.9, 1)}, 0.8},
		{"BestMultiTool", []vector.Hit{hit(0.72, 2), hit(0.3, 1)}, 0.8},
		{"MultiToolNeighbourhood", []vector.Hit{hit(0.65, 1), hit(0.62, 2), hit(0.61, 3)}, 0.6},
		{"OneMultiToolNeighbourIsNotEnough", []vector.Hit{hit(0.65, 1), hit(0.62, 2), hit(0.55, 3)}, 0.3},
		{"Exact", []vector.Hit{hit(1.0, 1)}, 1.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, scoreSimilarity(tt.hits), 1e-9)
		})
	}
}

func TestDecideWithoutEmbedder(t *testing.T) {
	r := newRouter(t, corpus.Default(), nil)
	assert.Equal(t, 35, r.SeedCount())
	assert.Equal(t, "none", r.EmbedderName())

	t.Run("SSNWeatherStaysLocal", func(t *testing.T) {
		d := r.Decide("My SSN is 123-45-6789, what's the weather?", tools("get_weather"))
		assert.Equal(t, RouteLocal, d.Route)
		assert.Equal(t, 1.0, d.PrivacyScore)
		assert.InDelta(t, 0.10, d.MultiToolScore, 1e-9)
		assert.InDelta(t, 0.15, d.ComplexityScore, 1e-9)
		assert.Equal(t, 0.0, d.SimilarityScore)
		assert.InDelta(t, 0.1775, d.BlendedScore, 1e-9)
		assert.Contains(t, d.Reason, "< 0.55 (multi=0.10, sim=0.00)")
		assert.Empty(t, d.Matches)
		assert.False(t, d.Borderline)
	})

	t.Run("MultiStepGoesToCloud", func(t *testing.T) {
		d := r.Decide("Set an alarm for 7 AM, check the weather, and send a message to Bob", sevenTools)
		assert.Equal(t, RouteCloud, d.Route)
		assert.InDelta(t, 0.59, d.BlendedScore, 1e-9)
		assert.True(t, strings.HasPrefix(d.Reason, "blended=0.590 >= 0.55"))
	})

	t.Run("Borderline", func(t *testing.T) {
		d := r.Decide("Play jazz and turn it up", tools("play_music"))
		assert.Equal(t, RouteLocal, d.Route)
		assert.True(t, d.Borderline)
	})
}

// mapEmbedder returns fixed vectors per text and fails on texts in fail.
type mapEmbedder struct {
	mu      sync.Mutex
	vectors map[string][]float32
	fail    map[string]bool
	calls   int
}

func (m *mapEmbedder) Embed(text string) ([]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.fail[text] {
		return nil, errors.New("embedding backend down")
	}
	if v, ok := m.vectors[text]; ok {
		return v, nil
	}
	return []float32{0, 0, 1}, nil
}

func (m *mapEmbedder) Name() string { return "map" }

func TestDecideWithEmbedder(t *testing.T) {
	seeds := []corpus.SeedEntry{
		{Text: "alpha", ToolCount: 2, Tools: []string{"a", "b"}},
		{Text: "beta", ToolCount: 1, Tools: []string{"a"}},
		{Text: "precomputed", ToolCount: 1, Embedding: []float32{0, 0, 1}},
	}
	e := &mapEmbedder{
		vectors: map[string][]float32{
			"alpha": {1, 0, 0},
			"beta":  {0, 1, 0},
			"gamma": {1, 0, 0},
		},
		fail: map[string]bool{"boom": true},
	}
	r := newRouter(t, seeds, e)
	assert.Equal(t, 2, e.calls, "only seeds without an embedding are embedded")
	assert.Equal(t, "map", r.EmbedderName())

	t.Run("MultiToolNeighbourBoostsMultiTool", func(t *testing.T) {
		d := r.Decide("gamma", nil)
		assert.InDelta(t, 1.0, d.SimilarityScore, 1e-9)
		assert.InDelta(t, 0.3, d.MultiToolScore, 1e-9)
		assert.InDelta(t, 0.55*0.3+0.20*1.0, d.BlendedScore, 1e-9)
		require.Len(t, d.Matches, 3)
		assert.Equal(t, "alpha", d.Matches[0].Text)
		assert.Equal(t, 2, d.Matches[0].ToolCount)
		assert.Equal(t, RouteLocal, d.Route)
	})

	t.Run("QueryEmbeddingFailureIsZero", func(t *testing.T) {
		d := r.Decide("boom", nil)
		assert.Equal(t, 0.0, d.SimilarityScore)
		assert.Empty(t, d.Matches)
	})

	t.Run("SeedsAreCopied", func(t *testing.T) {
		seeds[0].Text = "mutated"
		d := r.Decide("gamma", nil)
		assert.Equal(t, "alpha", d.Matches[0].Text)
	})

	t.Run("SeedEmbeddingFailureAbortsConstruction", func(t *testing.T) {
		failing := &mapEmbedder{fail: map[string]bool{"beta": true}}
		_, err := New([]corpus.SeedEntry{{Text: "beta", ToolCount: 1}}, failing, DefaultConfig(), nil)
		assert.Error(t, err)
	})
}

// sizedEmbedder reports a fixed output size.
type sizedEmbedder struct {
	*mapEmbedder
	dim int
}

func (s sizedEmbedder) Dimension() int { return s.dim }

func TestStaleSeedEmbeddings(t *testing.T) {
	vectors := map[string][]float32{
		"alpha": {1, 0, 0},
		"beta":  {0, 1, 0},
		"gamma": {1, 0, 0},
	}

	t.Run("ForeignDimensionIsReembedded", func(t *testing.T) {
		seeds := []corpus.SeedEntry{
			{Text: "alpha", ToolCount: 1, Embedding: []float32{0.6, 0.8}},
			{Text: "beta", ToolCount: 1, Embedding: []float32{0, 1, 0}},
		}
		e := &mapEmbedder{vectors: vectors}
		r := newRouter(t, seeds, e)
		assert.Equal(t, 1, e.calls)
		assert.Equal(t, []float32{0.6, 0.8}, seeds[0].Embedding, "caller's seeds are not modified")

		d := r.Decide("gamma", nil)
		require.NotEmpty(t, d.Matches)
		assert.Equal(t, "alpha", d.Matches[0].Text)
		assert.InDelta(t, 1.0, d.SimilarityScore, 1e-9)
	})

	t.Run("MatchingDimensionIsTrusted", func(t *testing.T) {
		seeds := []corpus.SeedEntry{
			{Text: "alpha", ToolCount: 1, Embedding: []float32{1, 0, 0}},
			{Text: "beta", ToolCount: 1, Embedding: []float32{0, 1, 0}},
		}
		e := sizedEmbedder{mapEmbedder: &mapEmbedder{vectors: vectors}, dim: 3}
		newRouter(t, seeds, e)
		assert.Equal(t, 0, e.calls)
	})

	t.Run("ReportedDimensionWins", func(t *testing.T) {
		seeds := []corpus.SeedEntry{
			{Text: "alpha", ToolCount: 1, Embedding: []float32{1, 0}},
			{Text: "beta", ToolCount: 1, Embedding: []float32{0, 1, 0}},
		}
		e := sizedEmbedder{mapEmbedder: &mapEmbedder{vectors: vectors}, dim: 3}
		r := newRouter(t, seeds, e)
		assert.Equal(t, 1, e.calls)
		assert.InDelta(t, 1.0, r.Decide("gamma", nil).SimilarityScore, 1e-9)
	})

	t.Run("InconsistentEmbedderIsRejected", func(t *testing.T) {
		seeds := []corpus.SeedEntry{{Text: "alpha", ToolCount: 1, Embedding: []float32{1, 0}}}
		e := sizedEmbedder{mapEmbedder: &mapEmbedder{vectors: vectors}, dim: 4}
		_, err := New(seeds, e, DefaultConfig(), nil)
		assert.Error(t, err)
	})
}

func TestDecideConcurrent(t *testing.T) {
	r := newRouter(t, corpus.Default(), &mapEmbedder{})
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d := r.Decide("Set an alarm and play music", sevenTools)
			assert.Len(t, d.Matches, 3)
		}()
	}
	wg.Wait()
}

func TestEnumText(t *testing.T) {
	var d struct {
		Route  Route      `json:"route"`
		Reason GateReason `json:"reason"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"route":"cloud","reason":"multi_call"}`), &d))
	assert.Equal(t, RouteCloud, d.Route)
	assert.Equal(t, ReasonMultiCall, d.Reason)

	assert.Error(t, json.Unmarshal([]byte(`{"route":"edge"}`), &d))
	assert.Error(t, json.Unmarshal([]byte(`{"reason":"maybe"}`), &d))
	assert.False(t, ReasonTrusted.Escalates())
	assert.True(t, ReasonEmptyArgument.Escalates())
}

func TestWithConfig(t *testing.T) {
	e := &mapEmbedder{}
	r := newRouter(t, corpus.Default()[:5], e)
	calls := e.calls

	cfg := DefaultConfig()
	cfg.CloudThreshold = 0.10
	tuned, err := r.WithConfig(cfg)
	require.NoError(t, err)

	query := "My SSN is 123-45-6789, what's the weather?"
	assert.Equal(t, RouteCloud, tuned.Decide(query, tools("get_weather")).Route)
	assert.Equal(t, RouteLocal, r.Decide(query, tools("get_weather")).Route)
	assert.Equal(t, 0.55, r.Config().CloudThreshold)
	assert.Equal(t, 5, tuned.SeedCount())
	assert.Equal(t, calls+2, e.calls, "only the two queries are embedded")

	cfg.CloudThreshold = 2
	_, err = r.WithConfig(cfg)
	assert.Error(t, err)
}
