// Package router decides where an assistant query should run and checks the
// local model's answer before it is trusted.
//
// A Router is built once from a seed corpus, an optional embedder and a
// Config. After New returns it is read-only and safe for concurrent use.
// Routers never share state, so building several concurrently is safe.
package router

import (
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/raaihank/secureclaw/internal/corpus"
	"github.com/raaihank/secureclaw/internal/vector"
)

// Embedder turns text into a fixed-length vector. It must be deterministic
// per text for similarity scores to mean anything.
type Embedder interface {
	Embed(text string) ([]float32, error)
	Name() string
}

// Router scores queries before inference and validates local results after.
type Router struct {
	cfg      Config
	embedder Embedder
	index    *vector.Index
	logger   *zap.Logger
}

// New builds a router over a copy of seeds. When embedder is non-nil every
// seed lacking an embedding is embedded once here; a failure aborts
// construction. A nil embedder disables similarity scoring.
func New(seeds []corpus.SeedEntry, embedder Embedder, cfg Config, logger *zap.Logger) (*Router, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid router config: %w", err)
	}

	entries := corpus.CloneAll(seeds)
	embedded := 0
	if embedder != nil {
		var err error
		if embedded, err = embedSeeds(entries, embedder, logger); err != nil {
			return nil, err
		}
	}

	r := &Router{
		cfg:      cfg,
		embedder: embedder,
		index:    vector.NewIndex(entries),
		logger:   logger,
	}

	logger.Info("Router initialized",
		zap.Int("seeds", r.index.Len()),
		zap.Int("seeds_embedded", embedded),
		zap.String("embedder", r.EmbedderName()),
		zap.Float64("cloud_threshold", cfg.CloudThreshold))

	return r, nil
}

// dimensioner is implemented by embedders with a fixed output size.
type dimensioner interface {
	Dimension() int
}

// embedSeeds fills in missing seed embeddings and re-embeds any precomputed
// vector whose length differs from what the embedder produces, since such a
// vector came from another model. It returns how many seeds were embedded.
func embedSeeds(entries []corpus.SeedEntry, embedder Embedder, logger *zap.Logger) (int, error) {
	dim := 0
	if d, ok := embedder.(dimensioner); ok {
		dim = d.Dimension()
	}

	embedded := 0
	embed := func(i int) error {
		vec, err := embedder.Embed(entries[i].Text)
		if err != nil {
			return fmt.Errorf("failed to embed seed %d (%q): %w", i, entries[i].Text, err)
		}
		if dim == 0 {
			dim = len(vec)
		}
		if len(vec) != dim {
			return fmt.Errorf("embedder returned %d dimensions for seed %d, expected %d", len(vec), i, dim)
		}
		entries[i].Embedding = vec
		embedded++
		return nil
	}

	for i := range entries {
		if len(entries[i].Embedding) == 0 {
			if err := embed(i); err != nil {
				return embedded, err
			}
		}
	}

	// Every seed was precomputed; embed one to learn the output size.
	if dim == 0 && len(entries) > 0 {
		if err := embed(0); err != nil {
			return embedded, err
		}
	}

	stale := 0
	for i := range entries {
		if len(entries[i].Embedding) == dim {
			continue
		}
		logger.Debug("Re-embedding seed with foreign vector",
			zap.Int("seed", i),
			zap.Int("dimension", len(entries[i].Embedding)),
			zap.Int("expected", dim))
		if err := embed(i); err != nil {
			return embedded, err
		}
		stale++
	}
	if stale > 0 {
		logger.Warn("Seed embeddings did not match the embedder, re-embedded them",
			zap.Int("seeds", stale),
			zap.String("embedder", embedder.Name()),
			zap.Int("dimension", dim))
	}
	return embedded, nil
}

// WithConfig returns a router with new weights and thresholds over the same
// seeds and embedder. The receiver is left untouched.
func (r *Router) WithConfig(cfg Config) (*Router, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid router config: %w", err)
	}
	return &Router{cfg: cfg, embedder: r.embedder, index: r.index, logger: r.logger}, nil
}

// Config returns the router's configuration.
func (r *Router) Config() Config {
	return r.cfg
}

// EmbedderName returns the embedder's name, or "none".
func (r *Router) EmbedderName() string {
	if r.embedder == nil {
		return "none"
	}
	return r.embedder.Name()
}

// SeedCount returns the number of corpus entries.
func (r *Router) SeedCount() int {
	return r.index.Len()
}

// Decide blends the four pre-inference signals into a route.
func (r *Router) Decide(query string, tools []Tool) Decision {
	cfg := r.cfg

	multi := scoreMultiTool(query, len(tools))
	privacy := scorePrivacy(query)
	complexity := scoreComplexity(query, len(tools))
	hits := r.neighbours(query)
	similarity := scoreSimilarity(hits)

	if similarity >= similarityBoostFloor {
		multi = math.Min(multi+similarity*0.3, 1)
	}

	blended := cfg.MultiToolWeight*multi +
		cfg.PrivacyWeight*privacy +
		cfg.ComplexityWeight*complexity +
		cfg.SimilarityWeight*similarity

	d := Decision{
		Route:           RouteLocal,
		MultiToolScore:  multi,
		PrivacyScore:    privacy,
		ComplexityScore: complexity,
		SimilarityScore: similarity,
		BlendedScore:    blended,
		Matches:         make([]SeedMatch, 0, len(hits)),
	}
	for _, h := range hits {
		d.Matches = append(d.Matches, SeedMatch{
			Text:       h.Entry.Text,
			Similarity: h.Similarity,
			ToolCount:  h.Entry.ToolCount,
		})
	}

	if blended >= cfg.CloudThreshold {
		d.Route = RouteCloud
		d.Reason = fmt.Sprintf("blended=%.3f >= %v (multi=%.2f, sim=%.2f)", blended, cfg.CloudThreshold, multi, similarity)
	} else {
		d.Reason = fmt.Sprintf("blended=%.3f < %v (multi=%.2f, sim=%.2f)", blended, cfg.CloudThreshold, multi, similarity)
		d.Borderline = multi >= cfg.MultiToolBorderline
	}

	r.logger.Debug("Routing decision",
		zap.String("route", d.Route.String()),
		zap.Float64("blended", blended),
		zap.Float64("multi_tool", multi),
		zap.Float64("privacy", privacy),
		zap.Float64("complexity", complexity),
		zap.Float64("similarity", similarity),
		zap.Int("tools", len(tools)),
		zap.Bool("borderline", d.Borderline))

	return d
}

// neighbours embeds the query and returns the closest seeds. Embedding
// failures are logged and treated as no neighbours.
func (r *Router) neighbours(query string) []vector.Hit {
	if r.embedder == nil {
		return nil
	}
	vec, err := r.embedder.Embed(query)
	if err != nil {
		r.logger.Warn("Query embedding failed, similarity disabled for this query",
			zap.String("embedder", r.embedder.Name()),
			zap.Error(err))
		return nil
	}
	return r.index.Search(vec, similarityTopK)
}
