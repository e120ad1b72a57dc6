package envelope

import (
	"recall/internal/errs"
	"recall/internal/pack"
	"recall/internal/plan"
	"recall/internal/rql"
)

// BuildOptions carries the request-scoped fields the Planner/Packer
// don't know about (the original query text, echoed back per spec.md 6).
type BuildOptions struct {
	QueryText string
	Table     rql.Table
}

// FromResult builds a success envelope from a Planner result, an
// optional packed Context, and a resolved table/query text.
func FromResult(res *plan.Result, ctx *pack.Context, opts BuildOptions) *Envelope {
	env := &Envelope{
		OK:            true,
		SchemaVersion: SchemaVersion,
		Query: &QueryEcho{
			Text:   opts.QueryText,
			Table:  string(opts.Table),
			Limit:  res.Limit,
			Offset: res.Offset,
		},
		Results: buildResults(res.Rows),
		Stats: &StatsEntry{
			Snapshot: res.Snapshot,
			Mode:     string(res.Mode),
			Total:    res.Total,
		},
		Warnings: buildWarnings(res.Warnings),
	}

	if res.Explain != nil {
		env.Stats.LexicalCount = res.Explain.LexicalCount
		env.Stats.SemanticCount = res.Explain.SemanticCount
	}

	if ctx != nil {
		env.Context = buildContext(ctx)
	}

	if res.Explain != nil {
		env.Explain = buildExplain(res.Explain)
	}

	return env
}

// FromError builds a failure envelope (spec.md 6: "ok=false, omits
// results/context, carries error.code/message/hint").
func FromError(err error) *Envelope {
	e, ok := err.(*errs.Error)
	if !ok {
		e = errs.Wrap(errs.KindIoError, err)
	}
	return &Envelope{
		OK:            false,
		SchemaVersion: SchemaVersion,
		Error: &ErrorEntry{
			Code:    string(e.Kind),
			Message: e.Message,
			Hint:    e.Hint,
		},
	}
}

func buildResults(rows []plan.ResultRow) []ResultEntry {
	entries := make([]ResultEntry, 0, len(rows))
	for _, row := range rows {
		entry := ResultEntry{Doc: buildDoc(row)}
		if row.HasScore {
			score := row.Score
			entry.Score = &score
		}
		if row.Chunk != nil {
			entry.Chunk = &ChunkEntry{
				ID:     row.Chunk.ID,
				DocID:  row.Chunk.DocID,
				Offset: row.Chunk.Offset,
				Tokens: row.Chunk.Tokens,
				Text:   row.Chunk.Text,
			}
		}
		if row.Explain != nil {
			entry.Explain = buildResultExplain(row.Explain)
		}
		entries = append(entries, entry)
	}
	return entries
}

func buildDoc(row plan.ResultRow) DocEntry {
	if row.Doc == nil {
		return DocEntry{}
	}
	return DocEntry{
		ID:     row.Doc.ID,
		Path:   row.Doc.Path,
		MTime:  row.Doc.MTime,
		Hash:   row.Doc.Hash,
		Tag:    row.Doc.Tag,
		Source: row.Doc.Source,
		Meta:   row.Doc.Meta,
	}
}

func buildResultExplain(re *plan.RowExplain) *ResultScoreExplain {
	out := &ResultScoreExplain{}
	if re.HasLexical {
		v := re.NormLexical
		out.Lexical = &v
	}
	if re.HasSemantic {
		v := re.NormSemantic
		out.Semantic = &v
	}
	return out
}

func buildContext(ctx *pack.Context) *ContextEntry {
	chunks := make([]ContextChunkEntry, 0, len(ctx.Chunks))
	for _, c := range ctx.Chunks {
		chunks = append(chunks, ContextChunkEntry{
			Path:   c.Path,
			Hash:   c.Hash,
			MTime:  c.MTime,
			Offset: c.Offset,
			Tokens: c.Tokens,
			Text:   c.Text,
		})
	}
	return &ContextEntry{
		Text:         ctx.Text,
		BudgetTokens: ctx.BudgetTokens,
		UsedTokens:   ctx.UsedTokens,
		Chunks:       chunks,
	}
}

func buildWarnings(warnings []plan.Warning) []WarningEntry {
	if len(warnings) == 0 {
		return nil
	}
	out := make([]WarningEntry, 0, len(warnings))
	for _, w := range warnings {
		out = append(out, WarningEntry{Code: w.Code, Message: w.Message, Stage: w.Stage, Detail: w.Detail})
	}
	return out
}

func buildExplain(e *plan.Explain) *ExplainEntry {
	stages := make([]ExplainStageTiming, 0, len(e.StageTimings))
	for _, st := range e.StageTimings {
		stages = append(stages, ExplainStageTiming{Stage: st.Stage, Millis: st.Elapsed.Milliseconds()})
	}
	return &ExplainEntry{
		Mode:           string(e.Mode),
		LexicalWeight:  e.Weights.Lexical,
		SemanticWeight: e.Weights.Semantic,
		LexicalCount:   e.LexicalCount,
		SemanticCount:  e.SemanticCount,
		Stages:         stages,
	}
}
