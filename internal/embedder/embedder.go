package embedder

import "context"

// Embedder turns query text into a unit-length vector of a fixed
// dimension, matching internal/store's VectorStore.Search input.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
	ModelName() string
}

// New resolves a configured provider name to an Embedder. ok is false
// when the provider is unconfigured or unrecognized (spec.md 4.4:
// "Planner degrades to lexical-only and records a warning" — the
// Planner, not this package, decides what to do with ok=false).
func New(name string, dim int) (e Embedder, ok bool) {
	switch name {
	case "static", "":
		return NewStaticEmbedder(dim), true
	default:
		return nil, false
	}
}
