// Package embedder provides the query-side embedding step Store.EmbedQuery
// needs to place a query string into the same vector space as stored
// chunk embeddings. Ingest-time embedding is an external producer's
// responsibility (spec.md 1, Non-goals); this package only covers the
// "static" provider the core itself can compute deterministically and
// without network access, matching whatever `embedding_dim` the store
// was initialized with.
package embedder
