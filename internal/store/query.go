package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"recall/internal/errs"
	"recall/internal/filterc"
	"recall/internal/plan"
)

// snapshotClause returns a SQL fragment restricting doc.mtime <= snapshot
// (spec.md 4.7: "the Planner restricts the query to docs whose mtime <=
// snapshot") together with its bound arg, or "" with no arg when
// snapshot is empty (meaning "current", i.e. unrestricted).
func snapshotClause(snapshot string) (string, []any) {
	if snapshot == "" {
		return "", nil
	}
	return "doc.mtime <= ?", []any{snapshot}
}

// whereClause combines the compiled filter predicate and the snapshot
// restriction into an "AND (...)" fragment (or "" if both are absent)
// plus its bound args, in a stable order (filter args first, then
// snapshot) matching how Compiled.SQL is built left-to-right. The
// fragment is meant to be appended after a fixed "WHERE doc.deleted = 0
// AND chunk.deleted = 0" prefix.
func whereClause(compiled *filterc.Compiled, snapshot string) (string, []any) {
	var parts []string
	var args []any
	if compiled != nil {
		parts = append(parts, compiled.SQL)
		args = append(args, compiled.Args...)
	}
	if snap, snapArgs := snapshotClause(snapshot); snap != "" {
		parts = append(parts, snap)
		args = append(args, snapArgs...)
	}
	if len(parts) == 0 {
		return "", nil
	}
	return "AND (" + strings.Join(parts, " AND ") + ")", args
}

func scanDoc(rows *sql.Rows) (*Doc, error) {
	d := &Doc{}
	var metaJSON string
	var deleted int
	if err := rows.Scan(&d.ID, &d.Path, &d.Hash, &d.MTime, &d.Tag, &d.Source, &metaJSON, &deleted); err != nil {
		return nil, errs.IO("failed to scan doc row", err)
	}
	d.Meta = parseDocMetaJSON(metaJSON)
	d.Deleted = deleted != 0
	return d, nil
}

// rowToFilterRow converts a joined doc/chunk pair into the filterc.Row
// shape Compiled.Matcher needs for its GLOB post-filter re-check.
func rowToFilterRow(d *Doc, c *Chunk) filterc.Row {
	row := filterc.Row{
		"doc.id":     filterc.StringScalar(d.ID),
		"doc.path":   filterc.StringScalar(d.Path),
		"doc.hash":   filterc.StringScalar(d.Hash),
		"doc.mtime":  filterc.StringScalar(d.MTime),
		"doc.tag":    filterc.StringScalar(d.Tag),
		"doc.source": filterc.StringScalar(d.Source),
	}
	for k, v := range d.Meta {
		row["doc.meta."+k] = metaScalar(v)
	}
	if c != nil {
		row["chunk.id"] = filterc.StringScalar(c.ID)
		row["chunk.doc_id"] = filterc.StringScalar(c.DocID)
		row["chunk.offset"] = filterc.NumberScalar(float64(c.Offset))
		row["chunk.tokens"] = filterc.NumberScalar(float64(c.Tokens))
		row["chunk.text"] = filterc.StringScalar(c.Text)
	}
	return row
}

func metaScalar(v any) filterc.Scalar {
	switch t := v.(type) {
	case nil:
		return filterc.NullScalar()
	case float64:
		return filterc.NumberScalar(t)
	case bool:
		if t {
			return filterc.NumberScalar(1)
		}
		return filterc.NumberScalar(0)
	case string:
		return filterc.StringScalar(t)
	default:
		return filterc.StringScalar(fmt.Sprintf("%v", t))
	}
}

// StrictFilterChunks implements plan.StoreReader.
func (s *Store) StrictFilterChunks(ctx context.Context, compiled *filterc.Compiled, snapshot string) ([]plan.ChunkJoined, error) {
	where, args := whereClause(compiled, snapshot)
	query := fmt.Sprintf(`SELECT doc.id, doc.path, doc.hash, doc.mtime, doc.tag, doc.source, doc.meta, doc.deleted,
		chunk.id, chunk.doc_id, chunk.offset, chunk.tokens, chunk.text, chunk.embedding, chunk.deleted
		FROM chunk JOIN doc ON chunk.doc_id = doc.id
		WHERE doc.deleted = 0 AND chunk.deleted = 0 %s
		ORDER BY chunk.id ASC`, where)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errs.IO("strict filter chunk query failed", err)
	}
	defer rows.Close()

	var out []plan.ChunkJoined
	for rows.Next() {
		d, c, err := scanJoinedRow(rows)
		if err != nil {
			return nil, err
		}
		if compiled != nil && compiled.NeedsPostFilter && !compiled.Matcher(rowToFilterRow(d, c)) {
			continue
		}
		out = append(out, plan.ChunkJoined{Doc: d, Chunk: c})
	}
	return out, rows.Err()
}

func scanJoinedRow(rows *sql.Rows) (*Doc, *Chunk, error) {
	d := &Doc{}
	c := &Chunk{}
	var docMetaJSON string
	var docDeleted, chunkDeleted int
	var embBytes []byte
	err := rows.Scan(&d.ID, &d.Path, &d.Hash, &d.MTime, &d.Tag, &d.Source, &docMetaJSON, &docDeleted,
		&c.ID, &c.DocID, &c.Offset, &c.Tokens, &c.Text, &embBytes, &chunkDeleted)
	if err != nil {
		return nil, nil, errs.IO("failed to scan joined row", err)
	}
	d.Meta = parseDocMetaJSON(docMetaJSON)
	d.Deleted = docDeleted != 0
	c.Embedding = decodeEmbedding(embBytes)
	c.Deleted = chunkDeleted != 0
	return d, c, nil
}

// StrictFilterDocs implements plan.StoreReader.
func (s *Store) StrictFilterDocs(ctx context.Context, compiled *filterc.Compiled, snapshot string) ([]plan.DocJoined, error) {
	where, args := whereClause(compiled, snapshot)
	query := fmt.Sprintf(`SELECT id, path, hash, mtime, tag, source, meta, deleted
		FROM doc WHERE deleted = 0 %s ORDER BY id ASC`, where)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errs.IO("strict filter doc query failed", err)
	}
	defer rows.Close()

	var out []plan.DocJoined
	for rows.Next() {
		d, err := scanDoc(rows)
		if err != nil {
			return nil, err
		}
		if compiled != nil && compiled.NeedsPostFilter && !compiled.Matcher(rowToFilterRow(d, nil)) {
			continue
		}
		out = append(out, plan.DocJoined{Doc: d})
	}
	return out, rows.Err()
}

// LexicalSearch implements plan.StoreReader (spec.md 4.3). Mode "fts5"
// (default) passes queryText to FTS5's MATCH parser using its native
// query syntax as-is; on a parse failure it sanitizes (replacing
// non-word runes with spaces) and retries once, recording a warning with
// the original and sanitized forms. Mode "literal" never reaches FTS5's
// operator grammar at all: every token is quoted and AND-joined before
// MATCH sees it, so literal-mode input can never itself fail to parse.
func (s *Store) LexicalSearch(ctx context.Context, queryText string, mode string, compiled *filterc.Compiled, snapshot string, limit int) ([]plan.LexicalHit, *plan.LexicalWarning, error) {
	if mode == "literal" {
		matchExpr := literalMatchExpr(queryText)
		if matchExpr == "" {
			return nil, nil, nil
		}
		hits, _, err := s.runLexicalMatch(ctx, matchExpr, compiled, snapshot, limit)
		if err != nil {
			return nil, nil, errs.IO("lexical search failed", err)
		}
		return hits, nil, nil
	}

	if strings.TrimSpace(queryText) == "" {
		return nil, nil, nil
	}

	hits, warning, err := s.runLexicalMatch(ctx, queryText, compiled, snapshot, limit)
	if err == nil {
		return hits, warning, nil
	}
	if !isFTS5SyntaxError(err) {
		return nil, nil, errs.IO("lexical search failed", err)
	}

	sanitized := sanitizeFTS5Query(queryText)
	hits, _, retryErr := s.runLexicalMatch(ctx, sanitized, compiled, snapshot, limit)
	if retryErr != nil {
		return nil, nil, errs.IO("lexical search failed after sanitization", retryErr)
	}
	return hits, &plan.LexicalWarning{Original: queryText, Sanitized: sanitized}, nil
}

// literalMatchExpr renders text as an AND of double-quoted FTS5 string
// tokens (spec.md 4.3 item 2: "skip syntax parsing and treat all input as
// a phrase of alphanumeric tokens"), so punctuation that would otherwise
// be FTS5 operator syntax is matched as literal chunk content instead.
func literalMatchExpr(text string) string {
	tokens := TokenizeCode(text)
	tokens = FilterStopWords(tokens, BuildStopWordMap(DefaultStopWords))
	if len(tokens) == 0 {
		return ""
	}
	quoted := make([]string, len(tokens))
	for i, tok := range tokens {
		quoted[i] = `"` + strings.ReplaceAll(tok, `"`, `""`) + `"`
	}
	return strings.Join(quoted, " AND ")
}

func (s *Store) runLexicalMatch(ctx context.Context, matchExpr string, compiled *filterc.Compiled, snapshot string, limit int) ([]plan.LexicalHit, *plan.LexicalWarning, error) {
	where, args := whereClause(compiled, snapshot)
	query := fmt.Sprintf(`SELECT chunk.id, bm25(fts_chunk) AS score
		FROM fts_chunk
		JOIN chunk ON chunk.id = fts_chunk.chunk_id
		JOIN doc ON doc.id = chunk.doc_id
		WHERE fts_chunk MATCH ? AND doc.deleted = 0 AND chunk.deleted = 0 %s
		ORDER BY score, chunk.id ASC
		LIMIT ?`, where)

	allArgs := append([]any{matchExpr}, args...)
	allArgs = append(allArgs, limit)

	rows, err := s.db.QueryContext(ctx, query, allArgs...)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	var hits []plan.LexicalHit
	for rows.Next() {
		var id string
		var score float64
		if err := rows.Scan(&id, &score); err != nil {
			return nil, nil, err
		}
		hits = append(hits, plan.LexicalHit{ChunkID: id, Score: -score})
	}
	return hits, nil, rows.Err()
}

func isFTS5SyntaxError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "fts5:") || strings.Contains(msg, "syntax error")
}

// sanitizeFTS5Query strips FTS5 operator/column-filter punctuation a raw
// user query might contain (quotes, carets, colons, parens, and other
// symbols the query-syntax grammar assigns meaning to), falling back to
// plain AND-of-terms matching (spec.md 4.3: "a query the lexical index
// cannot parse is sanitized and retried once"). The strip set is
// deliberately wider than FTS5's documented operator set so the retry is
// guaranteed to reach the tokenizer as plain words, never as a second
// parse failure.
func sanitizeFTS5Query(q string) string {
	var sb strings.Builder
	for _, r := range q {
		switch r {
		case '"', '^', ':', '(', ')', '*', '-', '!', '+', '{', '}', '[', ']', '|', '~':
			sb.WriteRune(' ')
		default:
			sb.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(sb.String()), " ")
}

// VectorSearch implements plan.StoreReader. It over-fetches neighbors
// from the HNSW index and post-filters in Go against compiled/snapshot,
// since VectorStore.Search has no predicate parameter (the teacher's
// HNSWStore is a pure vector index with no join awareness).
func (s *Store) VectorSearch(ctx context.Context, queryVec []float32, k int, compiled *filterc.Compiled, snapshot string) ([]plan.VectorHit, bool, error) {
	if s.vector == nil || s.vector.Count() == 0 {
		return nil, true, nil
	}
	if len(queryVec) != s.dim {
		return nil, false, nil
	}

	overfetch := k * 4
	if overfetch < k+50 {
		overfetch = k + 50
	}
	results, err := s.vector.Search(ctx, queryVec, overfetch)
	if err != nil {
		return nil, false, nil
	}

	var hits []plan.VectorHit
	for _, r := range results {
		if len(hits) >= k {
			break
		}
		d, c, ok, err := s.chunkJoinedByID(ctx, r.ID)
		if err != nil {
			return nil, false, err
		}
		if !ok || d.Deleted || c.Deleted {
			continue
		}
		if snapshot != "" && d.MTime > snapshot {
			continue
		}
		if compiled != nil {
			if compiled.NeedsPostFilter {
				if !compiled.Matcher(rowToFilterRow(d, c)) {
					continue
				}
			} else if !s.rowMatchesCompiledSQL(ctx, compiled, d, c) {
				continue
			}
		}
		hits = append(hits, plan.VectorHit{ChunkID: r.ID, Score: float64(r.Score)})
	}
	return hits, true, nil
}

// rowMatchesCompiledSQL re-checks a sargable (non-GLOB) compiled filter
// against a single already-materialized row, since the candidate set
// here comes from the vector index rather than a SQL WHERE scan.
func (s *Store) rowMatchesCompiledSQL(ctx context.Context, compiled *filterc.Compiled, d *Doc, c *Chunk) bool {
	query := fmt.Sprintf(`SELECT 1 FROM doc JOIN chunk ON chunk.doc_id = doc.id
		WHERE doc.id = ? AND chunk.id = ? AND (%s) LIMIT 1`, compiled.SQL)
	args := append([]any{d.ID, c.ID}, compiled.Args...)
	var one int
	err := s.db.QueryRowContext(ctx, query, args...).Scan(&one)
	return err == nil
}

func (s *Store) chunkJoinedByID(ctx context.Context, chunkID string) (*Doc, *Chunk, bool, error) {
	row := s.db.QueryRowContext(ctx, `SELECT doc.id, doc.path, doc.hash, doc.mtime, doc.tag, doc.source, doc.meta, doc.deleted,
		chunk.id, chunk.doc_id, chunk.offset, chunk.tokens, chunk.text, chunk.embedding, chunk.deleted
		FROM chunk JOIN doc ON chunk.doc_id = doc.id WHERE chunk.id = ?`, chunkID)

	d := &Doc{}
	c := &Chunk{}
	var docMetaJSON string
	var docDeleted, chunkDeleted int
	var embBytes []byte
	err := row.Scan(&d.ID, &d.Path, &d.Hash, &d.MTime, &d.Tag, &d.Source, &docMetaJSON, &docDeleted,
		&c.ID, &c.DocID, &c.Offset, &c.Tokens, &c.Text, &embBytes, &chunkDeleted)
	if err == sql.ErrNoRows {
		return nil, nil, false, nil
	}
	if err != nil {
		return nil, nil, false, errs.IO("failed to look up chunk", err)
	}
	d.Meta = parseDocMetaJSON(docMetaJSON)
	d.Deleted = docDeleted != 0
	c.Embedding = decodeEmbedding(embBytes)
	c.Deleted = chunkDeleted != 0
	return d, c, true, nil
}

// EmbedQuery implements plan.StoreReader.
func (s *Store) EmbedQuery(ctx context.Context, text string) ([]float32, bool, error) {
	if s.embedding == nil {
		return nil, false, nil
	}
	vec, err := s.embedding.Embed(ctx, text)
	if err != nil {
		return nil, false, errs.Wrap(errs.KindIoError, err)
	}
	return vec, true, nil
}

// ChunkByID implements plan.StoreReader.
func (s *Store) ChunkByID(ctx context.Context, chunkID string) (*plan.ChunkJoined, bool, error) {
	d, c, ok, err := s.chunkJoinedByID(ctx, chunkID)
	if err != nil || !ok {
		return nil, ok, err
	}
	return &plan.ChunkJoined{Doc: d, Chunk: c}, true, nil
}
