package plan

import "sort"

// Fused is a single chunk's fusion result (spec.md 4.7): `fused(c) =
// w_lex*normalized_lex(c) + w_sem*normalized_sem(c)`, a chunk missing
// from one source contributing 0 from that source.
type Fused struct {
	ChunkID      string
	Score        float64
	RawLexical   float64
	NormLexical  float64
	HasLexical   bool
	RawSemantic  float64
	NormSemantic float64
	HasSemantic  bool
}

// Fuse combines lexical and vector hits into per-chunk fused scores,
// grounded on internal/search/fusion.go's getOrCreate/toSortedSlice
// shape, but following spec.md 4.7's min-max-then-weighted-sum formula
// rather than Reciprocal Rank Fusion.
func Fuse(lexical []LexicalHit, vector []VectorHit, weights Weights) []*Fused {
	if len(lexical) == 0 && len(vector) == 0 {
		return []*Fused{}
	}

	rawLex := make(map[string]float64, len(lexical))
	for _, h := range lexical {
		rawLex[h.ChunkID] = h.Score
	}
	rawSem := make(map[string]float64, len(vector))
	for _, h := range vector {
		rawSem[h.ChunkID] = h.Score
	}

	normLex := minMaxNormalize(rawLex)
	normSem := minMaxNormalize(rawSem)

	byID := make(map[string]*Fused)
	order := make([]string, 0, len(rawLex)+len(rawSem))
	get := func(id string) *Fused {
		if f, ok := byID[id]; ok {
			return f
		}
		f := &Fused{ChunkID: id}
		byID[id] = f
		order = append(order, id)
		return f
	}

	for id, raw := range rawLex {
		f := get(id)
		f.RawLexical = raw
		f.NormLexical = normLex[id]
		f.HasLexical = true
	}
	for id, raw := range rawSem {
		f := get(id)
		f.RawSemantic = raw
		f.NormSemantic = normSem[id]
		f.HasSemantic = true
	}

	w := weights.Normalize()
	results := make([]*Fused, 0, len(order))
	for _, id := range order {
		f := byID[id]
		f.Score = w.Lexical*f.NormLexical + w.Semantic*f.NormSemantic
		results = append(results, f)
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ChunkID < results[j].ChunkID
	})

	return results
}
