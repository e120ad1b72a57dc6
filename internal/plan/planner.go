package plan

import (
	"context"
	"time"

	"recall/internal/errs"
	"recall/internal/filterc"
	"recall/internal/rql"
)

// Planner is the entry point for executing a validated RQL query
// (spec.md 4.7). Construct one per Store.
type Planner struct {
	Store StoreReader
}

// NewPlanner returns a Planner backed by store.
func NewPlanner(store StoreReader) *Planner {
	return &Planner{Store: store}
}

const defaultMinCandidates = 50

// Execute runs a validated query (see rql.Validate) against a snapshot
// and returns an ordered, paginated result set plus explain data.
func (p *Planner) Execute(ctx context.Context, v *rql.Validated, opts Options) (*Result, error) {
	q := v.Query
	var timings []StageTiming
	stage := func(name string, start time.Time) {
		timings = append(timings, StageTiming{Stage: name, Elapsed: time.Since(start)})
	}

	warnings := make([]Warning, 0, len(v.Warnings))
	for _, w := range v.Warnings {
		warnings = append(warnings, Warning{Code: w.Code, Message: w.Message, Stage: w.Stage, Detail: w.Detail})
	}

	t0 := time.Now()
	snapshot, err := p.resolveSnapshot(ctx, opts.Snapshot)
	if err != nil {
		return nil, err
	}
	stage("snapshot", t0)

	t0 = time.Now()
	var compiled *filterc.Compiled
	if q.Filter != nil {
		compiled, err = filterc.Compile(q.Filter)
		if err != nil {
			return nil, errs.Wrap(errs.KindValidationError, err)
		}
	}
	stage("compile_filter", t0)

	limit, offset := p.resolveLimitOffset(q, opts.MaxLimit)
	mode := ResolveMode(q.Using)

	minCandidates := opts.MinCandidates
	if minCandidates <= 0 {
		minCandidates = defaultMinCandidates
	}
	kCandidates := limit + offset
	if kCandidates < minCandidates {
		kCandidates = minCandidates
	}

	if mode == ModeStrictFilter {
		return p.executeStrictFilter(ctx, q, compiled, snapshot, limit, offset, warnings, timings)
	}

	return p.executeScored(ctx, q, compiled, snapshot, mode, kCandidates, limit, offset, opts, warnings, timings)
}

func (p *Planner) resolveSnapshot(ctx context.Context, token string) (string, error) {
	if token == "" {
		return p.Store.CurrentSnapshot(ctx)
	}
	if err := p.Store.ValidateSnapshot(token); err != nil {
		return "", err
	}
	return token, nil
}

func (p *Planner) resolveLimitOffset(q *rql.Query, maxLimit int) (limit, offset int) {
	limit = maxLimit
	if q.Limit != nil {
		limit = *q.Limit
	}
	if maxLimit > 0 && limit > maxLimit {
		limit = maxLimit
	}
	if q.Offset != nil {
		offset = *q.Offset
	}
	return limit, offset
}

func (p *Planner) executeStrictFilter(ctx context.Context, q *rql.Query, compiled *filterc.Compiled, snapshot string, limit, offset int, warnings []Warning, timings []StageTiming) (*Result, error) {
	t0 := time.Now()
	var rows []ResultRow

	switch q.Table {
	case rql.TableChunk:
		chunks, err := p.Store.StrictFilterChunks(ctx, compiled, snapshot)
		if err != nil {
			return nil, err
		}
		for _, cj := range chunks {
			rows = append(rows, ResultRow{Doc: cj.Doc, Chunk: cj.Chunk})
		}
	default:
		docs, err := p.Store.StrictFilterDocs(ctx, compiled, snapshot)
		if err != nil {
			return nil, err
		}
		for _, dj := range docs {
			rows = append(rows, ResultRow{Doc: dj.Doc})
		}
	}
	timings = append(timings, StageTiming{Stage: "candidates", Elapsed: time.Since(t0)})

	t0 = time.Now()
	chain := buildOrderChain(q.Table, false, q.OrderBy)
	sortRows(chain, rows)
	timings = append(timings, StageTiming{Stage: "order", Elapsed: time.Since(t0)})

	total := len(rows)
	paged := paginate(rows, limit, offset)

	return &Result{
		Mode:     ModeStrictFilter,
		Snapshot: snapshot,
		Rows:     paged,
		Limit:    limit,
		Offset:   offset,
		Total:    total,
		Warnings: warnings,
		Explain: &Explain{
			Mode:         ModeStrictFilter,
			StageTimings: timings,
		},
	}, nil
}

func (p *Planner) executeScored(ctx context.Context, q *rql.Query, compiled *filterc.Compiled, snapshot string, mode Mode, kCandidates, limit, offset int, opts Options, warnings []Warning, timings []StageTiming) (*Result, error) {
	var lexical []LexicalHit
	var vector []VectorHit
	var sanitize *LexicalWarning

	if mode == ModeHybrid || mode == ModeLexicalOnly {
		t0 := time.Now()
		hits, sw, err := p.Store.LexicalSearch(ctx, *q.Using.Lexical, lexicalModeOrDefault(opts.LexicalMode), compiled, snapshot, kCandidates)
		if err != nil {
			return nil, err
		}
		lexical = hits
		sanitize = sw
		if sw != nil {
			warnings = append(warnings, Warning{
				Code:    "lexical_sanitized",
				Message: "lexical query failed to parse and was sanitized",
				Stage:   "lexical",
				Detail:  sw.Sanitized,
			})
		}
		timings = append(timings, StageTiming{Stage: "lexical_search", Elapsed: time.Since(t0)})
	}

	vectorDegraded := false
	if mode == ModeHybrid || mode == ModeSemanticOnly {
		t0 := time.Now()
		vec, embedOK, err := p.Store.EmbedQuery(ctx, *q.Using.Semantic)
		if err != nil {
			return nil, err
		}
		if embedOK {
			hits, searchOK, err := p.Store.VectorSearch(ctx, vec, kCandidates, compiled, snapshot)
			if err != nil {
				return nil, err
			}
			if searchOK {
				vector = hits
			} else {
				vectorDegraded = true
			}
		} else {
			vectorDegraded = true
		}
		timings = append(timings, StageTiming{Stage: "vector_search", Elapsed: time.Since(t0)})
	}

	if vectorDegraded {
		warnings = append(warnings, Warning{
			Code:    "vector_index_unavailable",
			Message: "vector index unavailable; degraded to lexical-only",
			Stage:   "vector",
		})
		if mode == ModeSemanticOnly {
			mode = ModeLexicalOnly
			if q.Using.Lexical != nil {
				hits, sw, err := p.Store.LexicalSearch(ctx, *q.Using.Lexical, lexicalModeOrDefault(opts.LexicalMode), compiled, snapshot, kCandidates)
				if err != nil {
					return nil, err
				}
				lexical = hits
				sanitize = sw
			}
		} else if mode == ModeHybrid {
			mode = ModeLexicalOnly
		}
	}

	t0 := time.Now()
	fused := Fuse(lexical, vector, opts.Weights)
	timings = append(timings, StageTiming{Stage: "fuse", Elapsed: time.Since(t0)})

	t0 = time.Now()
	rows, err := p.materialize(ctx, q.Table, fused)
	if err != nil {
		return nil, err
	}
	timings = append(timings, StageTiming{Stage: "materialize", Elapsed: time.Since(t0)})

	t0 = time.Now()
	chain := buildOrderChain(q.Table, true, q.OrderBy)
	sortRows(chain, rows)
	timings = append(timings, StageTiming{Stage: "order", Elapsed: time.Since(t0)})

	total := len(rows)
	paged := paginate(rows, limit, offset)

	return &Result{
		Mode:     mode,
		Snapshot: snapshot,
		Rows:     paged,
		Limit:    limit,
		Offset:   offset,
		Total:    total,
		Warnings: warnings,
		Explain: &Explain{
			Weights:         opts.Weights.Normalize(),
			Mode:            mode,
			LexicalCount:    len(lexical),
			SemanticCount:   len(vector),
			LexicalSanitize: sanitize,
			StageTimings:    timings,
		},
	}, nil
}

func lexicalModeOrDefault(mode string) string {
	if mode == "" {
		return "fts5"
	}
	return mode
}

// materialize turns fused chunk-level candidates into ResultRows,
// rolling up to one row per doc (doc.score = max(chunk.fused)) when
// table is doc (spec.md 4.7).
func (p *Planner) materialize(ctx context.Context, table rql.Table, fused []*Fused) ([]ResultRow, error) {
	if table == rql.TableChunk {
		rows := make([]ResultRow, 0, len(fused))
		for _, f := range fused {
			cj, ok, err := p.Store.ChunkByID(ctx, f.ChunkID)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
			rows = append(rows, ResultRow{
				Score:    f.Score,
				HasScore: true,
				Doc:      cj.Doc,
				Chunk:    cj.Chunk,
				Explain: &RowExplain{
					RawLexical: f.RawLexical, NormLexical: f.NormLexical, HasLexical: f.HasLexical,
					RawSemantic: f.RawSemantic, NormSemantic: f.NormSemantic, HasSemantic: f.HasSemantic,
				},
			})
		}
		return rows, nil
	}

	best := make(map[string]*ResultRow)
	order := make([]string, 0)
	for _, f := range fused {
		cj, ok, err := p.Store.ChunkByID(ctx, f.ChunkID)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		docID := cj.Doc.ID
		existing, seen := best[docID]
		if !seen {
			order = append(order, docID)
		}
		if !seen || f.Score > existing.Score {
			best[docID] = &ResultRow{
				Score:    f.Score,
				HasScore: true,
				Doc:      cj.Doc,
				Chunk:    cj.Chunk,
				Explain: &RowExplain{
					RawLexical: f.RawLexical, NormLexical: f.NormLexical, HasLexical: f.HasLexical,
					RawSemantic: f.RawSemantic, NormSemantic: f.NormSemantic, HasSemantic: f.HasSemantic,
				},
			}
		}
	}

	rows := make([]ResultRow, 0, len(order))
	for _, id := range order {
		rows = append(rows, *best[id])
	}
	return rows, nil
}

func sortRows(chain []sortKey, rows []ResultRow) {
	n := len(rows)
	for i := 1; i < n; i++ {
		for j := i; j > 0 && lessByChain(chain, &rows[j], &rows[j-1]); j-- {
			rows[j], rows[j-1] = rows[j-1], rows[j]
		}
	}
}

func paginate(rows []ResultRow, limit, offset int) []ResultRow {
	if offset >= len(rows) {
		return []ResultRow{}
	}
	rows = rows[offset:]
	if limit >= 0 && limit < len(rows) {
		rows = rows[:limit]
	}
	return rows
}
