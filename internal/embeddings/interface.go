package embeddings

// Embedder turns text into a fixed-length vector. Implementations must be
// deterministic for a given text and return the same dimension on every
// call.
type Embedder interface {
	Embed(text string) ([]float32, error)
	// Name identifies the embedding space; vectors from embedders with
	// different names are not comparable.
	Name() string
	Dimension() int
}

var (
	_ Embedder = (*HashEmbedder)(nil)
	_ Embedder = (*TransformerEmbedder)(nil)
	_ Embedder = (*CachedEmbedder)(nil)
)
