package plan

import (
	"strings"

	"recall/internal/rql"
	"recall/internal/store"
)

// ResultRow is one row of a Planner's ordered output: always a doc, and
// a chunk when the row came from chunk-level candidate generation
// (nil for a strict-filter `FROM doc` row, which has no particular
// chunk association).
type ResultRow struct {
	Score    float64
	HasScore bool
	Doc      *store.Doc
	Chunk    *store.Chunk
	Explain  *RowExplain
}

type sortKey struct {
	field string // catalog field name, or "score"
	desc  bool
}

// buildOrderChain implements spec.md 4.7's ordering table: the leading
// key depends on table and whether USING was present, a user ORDER BY
// replaces only the leading key, and the trailing tie-break keys always
// apply.
func buildOrderChain(table rql.Table, hasUsing bool, orderBy *rql.OrderBy) []sortKey {
	var trailing []sortKey
	var defaultLeading sortKey

	switch table {
	case rql.TableChunk:
		trailing = []sortKey{{field: "doc.path"}, {field: "chunk.offset"}, {field: "chunk.id"}}
		if hasUsing {
			defaultLeading = sortKey{field: "score", desc: true}
		} else {
			defaultLeading = trailing[0]
			trailing = trailing[1:]
		}
	default: // rql.TableDoc
		trailing = []sortKey{{field: "doc.path"}, {field: "doc.id"}}
		if hasUsing {
			defaultLeading = sortKey{field: "score", desc: true}
		} else {
			defaultLeading = trailing[0]
			trailing = trailing[1:]
		}
	}

	leading := defaultLeading
	if orderBy != nil {
		leading = sortKey{field: orderBy.Field, desc: orderBy.Desc}
	}

	chain := make([]sortKey, 0, 1+len(trailing))
	chain = append(chain, leading)
	chain = append(chain, trailing...)
	return chain
}

// lessByChain reports whether a should sort before b under chain.
func lessByChain(chain []sortKey, a, b *ResultRow) bool {
	for _, key := range chain {
		c := compareField(a, b, key.field)
		if c == 0 {
			continue
		}
		if key.desc {
			return c > 0
		}
		return c < 0
	}
	return false
}

// compareField returns -1, 0, or 1 comparing a and b on field, ascending.
func compareField(a, b *ResultRow, field string) int {
	if field == "score" {
		return compareFloat(a.Score, b.Score)
	}

	av, an, aIsNum := fieldValue(a, field)
	bv, bn, bIsNum := fieldValue(b, field)
	if aIsNum && bIsNum {
		return compareFloat(an, bn)
	}
	return strings.Compare(av, bv)
}

func compareFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func fieldValue(row *ResultRow, field string) (str string, num float64, isNum bool) {
	if key, ok := rql.IsMetaField(field); ok {
		if row.Doc == nil || row.Doc.Meta == nil {
			return "", 0, false
		}
		v, ok := row.Doc.Meta[key]
		if !ok || v == nil {
			return "", 0, false
		}
		switch t := v.(type) {
		case string:
			return t, 0, false
		case float64:
			return "", t, true
		default:
			return "", 0, false
		}
	}

	switch field {
	case "doc.id":
		return valOrEmpty(row.Doc, func(d *store.Doc) string { return d.ID }), 0, false
	case "doc.path":
		return valOrEmpty(row.Doc, func(d *store.Doc) string { return d.Path }), 0, false
	case "doc.hash":
		return valOrEmpty(row.Doc, func(d *store.Doc) string { return d.Hash }), 0, false
	case "doc.mtime":
		return valOrEmpty(row.Doc, func(d *store.Doc) string { return d.MTime }), 0, false
	case "doc.tag":
		return valOrEmpty(row.Doc, func(d *store.Doc) string { return d.Tag }), 0, false
	case "doc.source":
		return valOrEmpty(row.Doc, func(d *store.Doc) string { return d.Source }), 0, false
	case "chunk.id":
		if row.Chunk == nil {
			return "", 0, false
		}
		return row.Chunk.ID, 0, false
	case "chunk.doc_id":
		if row.Chunk == nil {
			return "", 0, false
		}
		return row.Chunk.DocID, 0, false
	case "chunk.offset":
		if row.Chunk == nil {
			return "", 0, false
		}
		return "", float64(row.Chunk.Offset), true
	case "chunk.tokens":
		if row.Chunk == nil {
			return "", 0, false
		}
		return "", float64(row.Chunk.Tokens), true
	case "chunk.text":
		if row.Chunk == nil {
			return "", 0, false
		}
		return row.Chunk.Text, 0, false
	default:
		return "", 0, false
	}
}

func valOrEmpty(d *store.Doc, f func(*store.Doc) string) string {
	if d == nil {
		return ""
	}
	return f(d)
}
