package plan

import (
	"context"

	"recall/internal/filterc"
	"recall/internal/rql"
	"recall/internal/store"
)

// Mode is the resolved execution mode (spec.md 4.7).
type Mode string

const (
	ModeHybrid       Mode = "hybrid"
	ModeSemanticOnly Mode = "semantic_only"
	ModeLexicalOnly  Mode = "lexical_only"
	ModeStrictFilter Mode = "strict_filter"
)

// ResolveMode implements spec.md 4.7's mode resolution table.
func ResolveMode(using *rql.Using) Mode {
	if using == nil {
		return ModeStrictFilter
	}
	hasSem := using.Semantic != nil
	hasLex := using.Lexical != nil
	switch {
	case hasSem && hasLex:
		return ModeHybrid
	case hasSem:
		return ModeSemanticOnly
	case hasLex:
		return ModeLexicalOnly
	default:
		return ModeStrictFilter
	}
}

// LexicalHit is a single lexical-index candidate.
type LexicalHit struct {
	ChunkID string
	Score   float64
}

// VectorHit is a single vector-index candidate.
type VectorHit struct {
	ChunkID string
	Score   float64 // 1 - cosine_distance, in [-1, 1]
}

// LexicalWarning records the sanitize-and-retry fallback (spec.md 4.3).
type LexicalWarning struct {
	Original  string
	Sanitized string
}

// ChunkJoined is a chunk row joined with its parent doc, the unit the
// Planner scores and orders.
type ChunkJoined struct {
	Doc   *store.Doc
	Chunk *store.Chunk
}

// DocJoined is a doc row with no particular chunk association, used for
// strict-filter `FROM doc` queries.
type DocJoined struct {
	Doc *store.Doc
}

// StoreReader is everything the Planner needs from the Store. It is
// satisfied by *store.Store; defining it here keeps internal/plan
// testable against a fake without importing SQLite.
type StoreReader interface {
	// CurrentSnapshot returns the store's current maximum doc.mtime, or
	// store.EmptyStoreSnapshot if the store has no live docs.
	CurrentSnapshot(ctx context.Context) (string, error)

	// ValidateSnapshot checks a caller-supplied snapshot token is a
	// well-formed RFC3339 timestamp. Returns errs.KindInvalidSnapshot if not.
	ValidateSnapshot(token string) error

	// StrictFilterChunks enumerates live chunk rows (joined with their
	// doc) visible at snapshot and matching compiled (nil means no
	// filter).
	StrictFilterChunks(ctx context.Context, compiled *filterc.Compiled, snapshot string) ([]ChunkJoined, error)

	// StrictFilterDocs enumerates live docs visible at snapshot and
	// matching compiled (nil means no filter).
	StrictFilterDocs(ctx context.Context, compiled *filterc.Compiled, snapshot string) ([]DocJoined, error)

	// LexicalSearch runs the BM25-like query restricted by compiled,
	// returning up to limit hits ordered by descending raw score.
	LexicalSearch(ctx context.Context, queryText string, mode string, compiled *filterc.Compiled, snapshot string, limit int) ([]LexicalHit, *LexicalWarning, error)

	// VectorSearch returns up to k nearest neighbors to queryVec,
	// restricted to chunks whose joined doc/chunk rows satisfy compiled.
	// ok=false means the vector index could not be consulted at all
	// (spec.md 4.4: missing extension, incompatible vectors).
	VectorSearch(ctx context.Context, queryVec []float32, k int, compiled *filterc.Compiled, snapshot string) (hits []VectorHit, ok bool, err error)

	// EmbedQuery computes a query embedding for semantic search text.
	// ok=false means no embedder is configured (degrade to lexical-only).
	EmbedQuery(ctx context.Context, text string) (vec []float32, ok bool, err error)

	// ChunkByID materializes a single chunk+doc pair for result assembly.
	ChunkByID(ctx context.Context, chunkID string) (*ChunkJoined, bool, error)
}

// Weights are the fusion weights (spec.md 4.7). Non-negative; the
// Planner normalizes them to sum to 1 if they don't already.
type Weights struct {
	Lexical  float64
	Semantic float64
}

// Normalize scales w so Lexical+Semantic sum to 1, unless both are zero
// (in which case it returns w unchanged — the caller has already
// rejected that configuration, see rconfig.Validate).
func (w Weights) Normalize() Weights {
	sum := w.Lexical + w.Semantic
	if sum <= 0 {
		return w
	}
	return Weights{Lexical: w.Lexical / sum, Semantic: w.Semantic / sum}
}

// Options configures a single Execute call.
type Options struct {
	Weights       Weights
	MinCandidates int    // configured_min_candidates (spec.md 4.7)
	MaxLimit      int    // max_limit (rconfig); LIMIT values above this are clamped
	Snapshot      string // empty means "current"
	LexicalMode   string // "fts5" (default) or "literal" (spec.md 4.3, 6)
	Explain       bool
}
