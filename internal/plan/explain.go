package plan

import "time"

// Warning is a non-fatal note surfaced in response.warnings.
type Warning struct {
	Code    string
	Message string
	Stage   string
	Detail  string
}

// StageTiming records how long a single Execute stage took.
type StageTiming struct {
	Stage   string
	Elapsed time.Duration
}

// RowExplain carries the per-result per-stage scores spec.md 4.7
// requires when explain is requested.
type RowExplain struct {
	RawLexical   float64
	NormLexical  float64
	HasLexical   bool
	RawSemantic  float64
	NormSemantic float64
	HasSemantic  bool
}

// Explain is the top-level explain payload (spec.md 4.7): resolved
// weights, chosen mode, candidate counts per source, and per-stage
// elapsed time. Per-result detail lives on each ResultRow.Explain.
type Explain struct {
	Weights         Weights
	Mode            Mode
	LexicalCount    int
	SemanticCount   int
	LexicalSanitize *LexicalWarning
	StageTimings    []StageTiming
}

// Result is the Planner's output for one Execute call, the input the
// response envelope and context packer consume.
type Result struct {
	Mode     Mode
	Snapshot string
	Rows     []ResultRow
	Limit    int
	Offset   int
	Total    int // candidate rows available before pagination
	Warnings []Warning
	Explain  *Explain
}
