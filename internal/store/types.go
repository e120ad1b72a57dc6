// Package store provides the persistence layer for Recall: doc/chunk/meta
// storage (SQLite via modernc.org/sqlite), the lexical index (SQLite FTS5),
// and the vector index (pure-Go HNSW). This is the only package that
// mutates on-disk state.
package store

import (
	"context"
	"fmt"
)

// CurrentSchemaVersion is the current on-disk schema version.
const CurrentSchemaVersion = 1

// EmptyStoreSnapshot is the snapshot token returned for a store with no
// non-deleted docs (spec.md 8, scenario 1).
const EmptyStoreSnapshot = "0000-01-01T00:00:00Z"

// Meta state keys (meta table).
const (
	StateKeySchemaVersion  = "schema_version"
	StateKeyEmbeddingDim   = "embedding_dim"
	StateKeyEmbeddingModel = "embedding_model"
	StateKeyLexicalVersion = "lexical_index_version"
	StateKeyVectorVersion  = "vector_index_version"
	StateKeyHNSWSeed       = "vector_index_seed"
)

// Doc is the immutable-identity document record (spec.md 3).
type Doc struct {
	ID      string            // deterministic function of (path, hash)
	Path    string            // normalized, forward-slash, unique among live docs
	Hash    string            // content digest
	MTime   string            // RFC3339, lexicographically comparable
	Tag     string            // optional
	Source  string            // optional
	Meta    map[string]any    // scalar leaves only: string, number, bool, nil
	Deleted bool
}

// Chunk is an ordered span of a doc's text carrying an embedding (spec.md 3).
type Chunk struct {
	ID        string // derived from (doc.id, offset)
	DocID     string
	Offset    int // strictly increasing per doc
	Tokens    int
	Text      string
	Embedding []float32 // unit length; len == configured embedding_dim
	Deleted   bool
}

// DefaultStopWords contains common English function words filtered from
// indexing and querying. Unlike a code search engine, Recall's corpus is
// prose documents, so the default list targets closed-class English words
// rather than programming keywords.
var DefaultStopWords = []string{
	"a", "an", "the", "and", "or", "but", "of", "to", "in", "on", "at",
	"is", "are", "was", "were", "be", "been", "being", "it", "its",
	"this", "that", "these", "those", "for", "with", "as", "by", "from",
}

// VectorResult is a single vector-index match.
type VectorResult struct {
	ID       string  // Chunk ID
	Distance float32 // ascending cosine distance, 0 (identical) to 2 (opposite)
	Score    float32 // 1 - cosine_distance/2, in [0, 1]
}

// VectorStoreConfig configures the vector index (spec.md 4.4: cosine-KNN
// over full-precision float32 embeddings; Recall carries no quantization
// scheme since embedding_dim is small enough that f32 storage is cheap and
// spec.md 3 requires embeddings to round-trip exactly through export/import).
type VectorStoreConfig struct {
	Dimensions     int    // embedding_dim
	Metric         string // "cos" (default), "l2"
	M              int    // HNSW max connections per layer
	EfConstruction int    // HNSW build-time search width
	EfSearch       int    // HNSW query-time search width
}

// DefaultVectorStoreConfig returns sensible defaults for the vector index.
func DefaultVectorStoreConfig(dimensions int) VectorStoreConfig {
	return VectorStoreConfig{
		Dimensions:     dimensions,
		Metric:         "cos",
		M:              32,
		EfConstruction: 128,
		EfSearch:       64,
	}
}

// VectorStore provides cosine-KNN search over chunk embeddings.
type VectorStore interface {
	// Add inserts vectors with their IDs. If an ID exists, it is replaced.
	Add(ctx context.Context, ids []string, vectors [][]float32) error

	// Search finds the k nearest neighbors to query, ties broken by
	// ascending ID (spec.md 4.4).
	Search(ctx context.Context, query []float32, k int) ([]*VectorResult, error)

	// Delete removes vectors by ID.
	Delete(ctx context.Context, ids []string) error

	// AllIDs returns all vector IDs in the store (consistency checks).
	AllIDs() []string

	// Contains checks if ID exists.
	Contains(id string) bool

	// Count returns the number of vectors.
	Count() int

	// Persistence.
	Save(path string) error
	Load(path string) error
	Close() error
}

// ErrDimensionMismatch indicates an embedding whose length does not match
// the store's configured embedding_dim (spec.md 3, chunk invariants).
type ErrDimensionMismatch struct {
	Expected int
	Got      int
}

func (e ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("embedding dimension mismatch: expected %d, got %d", e.Expected, e.Got)
}

// DocBatch is what an external ingest producer hands to Store.InsertDoc:
// one doc plus its ordered chunks, inserted atomically (spec.md 3, 4.1, 6).
type DocBatch struct {
	Doc    *Doc
	Chunks []*Chunk
}
