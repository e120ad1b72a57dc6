// Package rql implements Recall's query language: a tokenizer, a
// recursive-descent parser accepting both the pipeline and legacy
// surface grammars (spec.md 4.5), and a validator that checks every
// qualified field against the field catalog before a Query AST reaches
// the planner.
package rql
