package pack

import "recall/internal/ident"

// ChunkProvenance is one entry in a Context's Chunks list: full
// provenance for a single packed chunk (spec.md 4.8, 6).
type ChunkProvenance struct {
	Path   string
	Hash   string
	MTime  string
	Offset int
	Tokens int
	Text   string
}

// Context is the `context` block of the response envelope (spec.md 6).
type Context struct {
	Text        string
	BudgetTokens int
	UsedTokens   int
	Chunks       []ChunkProvenance
}

// Row is the minimal shape Pack needs from a Planner result row: a doc
// path/hash/mtime and a chunk's id/offset/tokens/text. Defined locally so
// internal/pack doesn't need to import internal/plan or internal/store.
type Row struct {
	DocPath    string
	DocHash    string
	DocMTime   string
	ChunkID    string
	Offset     int
	Tokens     int
	Text       string
}

// Options configures a single Pack call.
type Options struct {
	BudgetTokens int
	Diversity    int // max chunks per doc; 0 means unlimited
}

// Pack folds rows (already in retrieval order) into a budgeted Context,
// implementing spec.md 4.8's algorithm exactly: skip diversity-capped or
// duplicate chunks, include whole chunks while they fit the budget, then
// include one deterministic whitespace-boundary prefix of the chunk that
// would overflow it, and stop.
func Pack(rows []Row, opts Options) *Context {
	ctx := &Context{BudgetTokens: opts.BudgetTokens}
	if opts.BudgetTokens <= 0 {
		return ctx
	}

	perDocCount := make(map[string]int)
	seen := make(map[string]bool)

	for _, row := range rows {
		if ctx.UsedTokens >= opts.BudgetTokens {
			break
		}
		if opts.Diversity > 0 && perDocCount[row.DocPath] >= opts.Diversity {
			continue
		}
		if seen[row.ChunkID] {
			continue
		}

		remaining := opts.BudgetTokens - ctx.UsedTokens

		if row.Tokens+ctx.UsedTokens <= opts.BudgetTokens {
			ctx.Chunks = append(ctx.Chunks, ChunkProvenance{
				Path:   row.DocPath,
				Hash:   row.DocHash,
				MTime:  row.DocMTime,
				Offset: row.Offset,
				Tokens: row.Tokens,
				Text:   row.Text,
			})
			ctx.UsedTokens += row.Tokens
			perDocCount[row.DocPath]++
			seen[row.ChunkID] = true
			continue
		}

		if remaining > 0 {
			prefix := prefixByTokens(row.Text, remaining)
			ctx.Chunks = append(ctx.Chunks, ChunkProvenance{
				Path:   row.DocPath,
				Hash:   row.DocHash,
				MTime:  row.DocMTime,
				Offset: row.Offset,
				Tokens: ident.CountTokens(prefix),
				Text:   prefix,
			})
			ctx.UsedTokens = opts.BudgetTokens
			perDocCount[row.DocPath]++
			seen[row.ChunkID] = true
		}
		break
	}

	ctx.Text = joinTexts(ctx.Chunks)
	return ctx
}

func joinTexts(chunks []ChunkProvenance) string {
	if len(chunks) == 0 {
		return ""
	}
	total := 0
	for i, c := range chunks {
		total += len(c.Text)
		if i > 0 {
			total++
		}
	}
	buf := make([]byte, 0, total)
	for i, c := range chunks {
		if i > 0 {
			buf = append(buf, '\n')
		}
		buf = append(buf, c.Text...)
	}
	return string(buf)
}
