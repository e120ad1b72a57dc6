// Package filterc lowers a validated FEL AST (internal/rql) into a
// sargable SQL predicate plus bound parameters, the way
// internal/store/sqlite_bm25.go builds parameterized IN-clauses: every
// literal is bound, never interpolated (spec.md 4.6).
package filterc
