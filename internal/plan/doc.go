// Package plan implements the Planner + Executor (spec.md 4.7): mode
// resolution, candidate generation over the lexical and vector indexes,
// per-source score normalization, fusion, deterministic ordering,
// snapshot-scoped pagination, and explain-payload assembly.
//
// Its fusion comparator and map-then-sort shape is grounded on
// internal/search/fusion.go's RRFFusion (getOrCreate/toSortedSlice/
// compare/normalize), but the fusion *algorithm* itself follows
// spec.md 4.7 exactly: per-source min-max normalization then
// w_lex*norm_lex + w_sem*norm_sem, not Reciprocal Rank Fusion.
package plan
