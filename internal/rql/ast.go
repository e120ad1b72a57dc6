package rql

// Table is the FROM target; RQL only ever queries one of the two
// (spec.md 4.5: "<table> ∈ {doc, chunk}").
type Table string

const (
	TableDoc   Table = "doc"
	TableChunk Table = "chunk"
)

// Using carries the optional semantic(...) / lexical(...) query texts.
// Both are nil when no USING clause was given.
type Using struct {
	Semantic *string
	Lexical  *string
}

// Op is a FEL comparison or membership operator.
type Op string

const (
	OpEq    Op = "="
	OpNeq   Op = "!="
	OpLt    Op = "<"
	OpLte   Op = "<="
	OpGt    Op = ">"
	OpGte   Op = ">="
	OpLike  Op = "LIKE"
	OpGlob  Op = "GLOB"
	OpIn    Op = "IN"
)

// Value is a FEL scalar literal.
type Value struct {
	Str    string
	Num    float64
	IsNum  bool
	IsNull bool
}

func StringValue(s string) Value { return Value{Str: s} }
func NumberValue(n float64) Value { return Value{Num: n, IsNum: true} }

// Expr is a node in a FEL boolean expression tree.
type Expr interface{ exprNode() }

// Or is a disjunction of two expressions.
type Or struct{ Left, Right Expr }

// And is a conjunction of two expressions.
type And struct{ Left, Right Expr }

// Not negates an expression.
type Not struct{ Inner Expr }

// Predicate is a single `field op value` or `field IN (values...)` leaf.
type Predicate struct {
	Field  string // fully qualified, e.g. "doc.path" or "doc.meta.author"
	Op     Op
	Value  Value   // used for every Op except OpIn
	Values []Value // used only for OpIn
}

func (Or) exprNode()        {}
func (And) exprNode()       {}
func (Not) exprNode()       {}
func (Predicate) exprNode() {}

// OrderBy is a single ORDER BY key. Field is either a qualified column or
// the literal "score".
type OrderBy struct {
	Field string
	Desc  bool
}

// Query is the parsed, not-yet-validated AST for one RQL statement.
type Query struct {
	Table   Table
	Using   *Using
	Filter  Expr
	OrderBy *OrderBy
	Limit   *int
	Offset  *int
	Select  []string
}
