package filterc

import (
	"testing"

	"recall/internal/rql"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseFilter(t *testing.T, rqlSrc string) rql.Expr {
	t.Helper()
	q, err := rql.Parse(rqlSrc)
	require.NoError(t, err)
	require.NotNil(t, q.Filter)
	return q.Filter
}

func TestCompile_SimpleEquality(t *testing.T) {
	expr := parseFilter(t, `FROM doc FILTER doc.tag = 'api' SELECT path;`)
	c, err := Compile(expr)
	require.NoError(t, err)
	assert.Equal(t, "doc.tag = ?", c.SQL)
	assert.Equal(t, []any{"api"}, c.Args)
	assert.False(t, c.NeedsPostFilter)
}

func TestCompile_AndOr(t *testing.T) {
	expr := parseFilter(t, `FROM doc FILTER doc.tag = 'a' AND (chunk.tokens > 5 OR chunk.tokens < 2) SELECT path;`)
	c, err := Compile(expr)
	require.NoError(t, err)
	assert.Equal(t, "(doc.tag = ? AND (chunk.tokens > ? OR chunk.tokens < ?))", c.SQL)
	assert.Equal(t, []any{"a", 5.0, 2.0}, c.Args)
}

func TestCompile_In(t *testing.T) {
	expr := parseFilter(t, `FROM doc FILTER doc.tag IN ('a', 'b') SELECT path;`)
	c, err := Compile(expr)
	require.NoError(t, err)
	assert.Equal(t, "doc.tag IN (?,?)", c.SQL)
	assert.Equal(t, []any{"a", "b"}, c.Args)
}

func TestCompile_MetaFieldUsesJSONExtract(t *testing.T) {
	expr := parseFilter(t, `FROM doc FILTER doc.meta.author = 'ada' SELECT path;`)
	c, err := Compile(expr)
	require.NoError(t, err)
	assert.Contains(t, c.SQL, "json_extract(doc.meta")
	assert.Contains(t, c.SQL, `$."author"`)
}

func TestCompile_GlobNeedsPostFilter(t *testing.T) {
	expr := parseFilter(t, `FROM doc FILTER doc.path GLOB '**/test/*.go' SELECT path;`)
	c, err := Compile(expr)
	require.NoError(t, err)
	assert.True(t, c.NeedsPostFilter)
	require.NotNil(t, c.Matcher)

	assert.True(t, c.Matcher(Row{"doc.path": StringScalar("a/b/test/main.go")}))
	assert.False(t, c.Matcher(Row{"doc.path": StringScalar("a/b/test/sub/main.go")}))
}

func TestMatchGlob_SingleStarDoesNotCrossSeparator(t *testing.T) {
	assert.True(t, MatchGlob("a/*.go", "a/b.go"))
	assert.False(t, MatchGlob("a/*.go", "a/b/c.go"))
}

func TestMatchGlob_DoubleStarCrossesSeparator(t *testing.T) {
	assert.True(t, MatchGlob("a/**/c.go", "a/b/c.go"))
	assert.True(t, MatchGlob("a/**/c.go", "a/b/d/c.go"))
	assert.True(t, MatchGlob("a/**", "a/b/c/d"))
}

func TestMatchGlob_QuestionMarkSingleChar(t *testing.T) {
	assert.True(t, MatchGlob("file?.txt", "file1.txt"))
	assert.False(t, MatchGlob("file?.txt", "file12.txt"))
}

func TestCompile_RejectsUnknownField(t *testing.T) {
	_, err := Compile(rql.Predicate{Field: "doc.bogus", Op: rql.OpEq, Value: rql.StringValue("x")})
	assert.Error(t, err)
}

func TestEvaluate_NullMetaFieldNeverEqualsValue(t *testing.T) {
	pred := rql.Predicate{Field: "doc.meta.missing", Op: rql.OpEq, Value: rql.StringValue("x")}
	assert.False(t, Evaluate(pred, Row{}))
}
