package filterc

import (
	"fmt"
	"strings"

	"recall/internal/rql"
)

// Scalar is a single row value used by Matcher, mirroring rql.Value's
// shape (string, number, or null).
type Scalar struct {
	Str    string
	Num    float64
	IsNum  bool
	IsNull bool
}

// StringScalar and NumberScalar build Scalars from Go literals.
func StringScalar(s string) Scalar  { return Scalar{Str: s} }
func NumberScalar(n float64) Scalar { return Scalar{Num: n, IsNum: true} }
func NullScalar() Scalar            { return Scalar{IsNull: true} }

// Row supplies field values (by fully qualified field name, e.g.
// "doc.path") to Compiled.Matcher for exact post-filter evaluation.
type Row map[string]Scalar

// Compiled is the lowered form of a FEL expression: a sargable SQL WHERE
// fragment plus bound args, and — only when the expression contains a
// GLOB predicate — a Matcher that must also pass, since SQL LIKE cannot
// express GLOB's `*` vs `**` path-segment distinction exactly.
type Compiled struct {
	SQL             string
	Args            []any
	NeedsPostFilter bool
	Matcher         func(Row) bool
}

// metaColumnSQL renders doc.meta.<key> as a JSON field lookup, the way
// spec.md 4.6 requires ("resolved as a JSON field lookup on doc.meta
// with null for missing keys").
func metaColumnSQL(key string) string {
	escaped := strings.ReplaceAll(key, `"`, `\"`)
	return fmt.Sprintf(`json_extract(doc.meta, '$."%s"')`, escaped)
}

func columnSQL(field string) (string, error) {
	if key, ok := rql.IsMetaField(field); ok {
		return metaColumnSQL(key), nil
	}
	if !rql.IsKnownField(field) {
		return "", fmt.Errorf("unknown field %q", field)
	}
	return field, nil
}

// Compile lowers a validated FEL expression to SQL. expr is assumed to
// have already passed rql.Validate (every field is in the catalog).
func Compile(expr rql.Expr) (*Compiled, error) {
	var args []any
	needsPost := false

	sql, err := compileExpr(expr, &args, &needsPost)
	if err != nil {
		return nil, err
	}

	c := &Compiled{SQL: sql, Args: args, NeedsPostFilter: needsPost}
	if needsPost {
		c.Matcher = func(row Row) bool { return Evaluate(expr, row) }
	}
	return c, nil
}

func compileExpr(expr rql.Expr, args *[]any, needsPost *bool) (string, error) {
	switch n := expr.(type) {
	case rql.Or:
		left, err := compileExpr(n.Left, args, needsPost)
		if err != nil {
			return "", err
		}
		right, err := compileExpr(n.Right, args, needsPost)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("(%s OR %s)", left, right), nil
	case rql.And:
		left, err := compileExpr(n.Left, args, needsPost)
		if err != nil {
			return "", err
		}
		right, err := compileExpr(n.Right, args, needsPost)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("(%s AND %s)", left, right), nil
	case rql.Not:
		inner, err := compileExpr(n.Inner, args, needsPost)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("NOT (%s)", inner), nil
	case rql.Predicate:
		return compilePredicate(n, args, needsPost)
	default:
		return "", fmt.Errorf("unsupported filter expression node %T", expr)
	}
}

func compilePredicate(p rql.Predicate, args *[]any, needsPost *bool) (string, error) {
	col, err := columnSQL(p.Field)
	if err != nil {
		return "", err
	}

	switch p.Op {
	case rql.OpEq, rql.OpNeq, rql.OpLt, rql.OpLte, rql.OpGt, rql.OpGte:
		*args = append(*args, valueArg(p.Value))
		return fmt.Sprintf("%s %s ?", col, string(p.Op)), nil
	case rql.OpLike:
		*args = append(*args, valueArg(p.Value))
		return fmt.Sprintf("%s LIKE ?", col), nil
	case rql.OpGlob:
		*needsPost = true
		*args = append(*args, globToLikePattern(p.Value.Str))
		return fmt.Sprintf(`%s LIKE ? ESCAPE '\'`, col), nil
	case rql.OpIn:
		placeholders := make([]string, len(p.Values))
		for i, v := range p.Values {
			placeholders[i] = "?"
			*args = append(*args, valueArg(v))
		}
		return fmt.Sprintf("%s IN (%s)", col, strings.Join(placeholders, ",")), nil
	default:
		return "", fmt.Errorf("unsupported operator %q", p.Op)
	}
}

func valueArg(v rql.Value) any {
	switch {
	case v.IsNull:
		return nil
	case v.IsNum:
		return v.Num
	default:
		return v.Str
	}
}

// Evaluate exactly re-evaluates expr against row, used to post-filter
// SQL query results for predicates SQL cannot express precisely (GLOB's
// `**` path-segment crossing).
func Evaluate(expr rql.Expr, row Row) bool {
	switch n := expr.(type) {
	case rql.Or:
		return Evaluate(n.Left, row) || Evaluate(n.Right, row)
	case rql.And:
		return Evaluate(n.Left, row) && Evaluate(n.Right, row)
	case rql.Not:
		return !Evaluate(n.Inner, row)
	case rql.Predicate:
		return evaluatePredicate(n, row)
	default:
		return false
	}
}

func evaluatePredicate(p rql.Predicate, row Row) bool {
	actual, ok := row[p.Field]
	if !ok {
		actual = NullScalar()
	}

	switch p.Op {
	case rql.OpEq:
		return scalarEquals(actual, scalarFromValue(p.Value))
	case rql.OpNeq:
		return !scalarEquals(actual, scalarFromValue(p.Value))
	case rql.OpLt, rql.OpLte, rql.OpGt, rql.OpGte:
		return scalarCompare(actual, scalarFromValue(p.Value), p.Op)
	case rql.OpLike:
		return MatchGlob(likeToGlob(p.Value.Str), actual.Str)
	case rql.OpGlob:
		return MatchGlob(p.Value.Str, actual.Str)
	case rql.OpIn:
		for _, v := range p.Values {
			if scalarEquals(actual, scalarFromValue(v)) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

func scalarFromValue(v rql.Value) Scalar {
	switch {
	case v.IsNull:
		return NullScalar()
	case v.IsNum:
		return NumberScalar(v.Num)
	default:
		return StringScalar(v.Str)
	}
}

func scalarEquals(a, b Scalar) bool {
	if a.IsNull || b.IsNull {
		return a.IsNull && b.IsNull
	}
	if a.IsNum && b.IsNum {
		return a.Num == b.Num
	}
	return a.Str == b.Str
}

func scalarCompare(a, b Scalar, op rql.Op) bool {
	if a.IsNull || b.IsNull {
		return false
	}
	var cmp int
	if a.IsNum && b.IsNum {
		switch {
		case a.Num < b.Num:
			cmp = -1
		case a.Num > b.Num:
			cmp = 1
		}
	} else {
		cmp = strings.Compare(a.Str, b.Str)
	}
	switch op {
	case rql.OpLt:
		return cmp < 0
	case rql.OpLte:
		return cmp <= 0
	case rql.OpGt:
		return cmp > 0
	case rql.OpGte:
		return cmp >= 0
	default:
		return false
	}
}

// likeToGlob turns a SQL LIKE pattern (`%`, `_`) into an equivalent GLOB
// pattern (`**`, `?`) so LIKE predicates can reuse the same exact
// matcher as GLOB.
func likeToGlob(pattern string) string {
	var sb strings.Builder
	for _, c := range pattern {
		switch c {
		case '%':
			sb.WriteString("**")
		case '_':
			sb.WriteByte('?')
		default:
			sb.WriteRune(c)
		}
	}
	return sb.String()
}
