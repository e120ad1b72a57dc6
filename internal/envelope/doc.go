// Package envelope builds the stable JSON response shape (spec.md 6):
// `{ok, schema_version, query, results, context, stats, warnings,
// error, explain}`, plus its line-delimited streaming variant. It is
// the only package that knows the wire shape; callers hand it a
// plan.Result/pack.Context and get back something json.Marshal-ready.
package envelope
