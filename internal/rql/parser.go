package rql

import (
	"fmt"
	"strconv"
	"strings"
)

// Parser consumes a token stream and produces a Query AST. Construct one
// with NewParser and call Parse once.
type Parser struct {
	tokens []Token
	pos    int
}

// NewParser tokenizes src and returns a Parser ready to run.
func NewParser(src string) (*Parser, error) {
	toks, err := Tokenize(src)
	if err != nil {
		return nil, err
	}
	return &Parser{tokens: toks}, nil
}

// Parse accepts both the pipeline and legacy surface shapes (spec.md 4.5)
// and produces the same AST from either.
func (p *Parser) Parse() (*Query, error) {
	if p.atKeyword("SELECT") {
		return p.parseLegacy()
	}
	return p.parsePipeline()
}

// parsePipeline parses:
//
//	FROM <table>
//	[USING semantic(<string>) [, lexical(<string>)]]
//	[FILTER <boolean-expr>]
//	[ORDER BY <field|score> [ASC|DESC]]
//	[LIMIT <n> [OFFSET <m>]]
//	SELECT <field-list>;
func (p *Parser) parsePipeline() (*Query, error) {
	if err := p.expectKeyword("FROM"); err != nil {
		return nil, err
	}
	table, err := p.parseTable()
	if err != nil {
		return nil, err
	}

	q := &Query{Table: table}

	if p.atKeyword("USING") {
		p.advance()
		using, err := p.parseUsing()
		if err != nil {
			return nil, err
		}
		q.Using = using
	}

	if p.atKeyword("FILTER") {
		p.advance()
		expr, err := p.parseOrExpr()
		if err != nil {
			return nil, err
		}
		q.Filter = expr
	}

	if p.atKeyword("ORDER") {
		ob, err := p.parseOrderBy()
		if err != nil {
			return nil, err
		}
		q.OrderBy = ob
	}

	if p.atKeyword("LIMIT") {
		limit, offset, err := p.parseLimitOffset()
		if err != nil {
			return nil, err
		}
		q.Limit = limit
		q.Offset = offset
	}

	if err := p.expectKeyword("SELECT"); err != nil {
		return nil, err
	}
	fields, err := p.parseFieldList()
	if err != nil {
		return nil, err
	}
	q.Select = fields

	p.consumeTrailingSemicolon()
	if !p.atEOF() {
		return nil, fmt.Errorf("unexpected trailing input at position %d", p.cur().Pos)
	}

	return q, nil
}

// parseLegacy parses:
//
//	SELECT <field-list> FROM <table> [USING ...] [FILTER ...] [ORDER BY ...] [LIMIT ...];
func (p *Parser) parseLegacy() (*Query, error) {
	if err := p.expectKeyword("SELECT"); err != nil {
		return nil, err
	}
	fields, err := p.parseFieldList()
	if err != nil {
		return nil, err
	}

	if err := p.expectKeyword("FROM"); err != nil {
		return nil, err
	}
	table, err := p.parseTable()
	if err != nil {
		return nil, err
	}

	q := &Query{Table: table, Select: fields}

	if p.atKeyword("USING") {
		p.advance()
		using, err := p.parseUsing()
		if err != nil {
			return nil, err
		}
		q.Using = using
	}

	if p.atKeyword("FILTER") {
		p.advance()
		expr, err := p.parseOrExpr()
		if err != nil {
			return nil, err
		}
		q.Filter = expr
	}

	if p.atKeyword("ORDER") {
		ob, err := p.parseOrderBy()
		if err != nil {
			return nil, err
		}
		q.OrderBy = ob
	}

	if p.atKeyword("LIMIT") {
		limit, offset, err := p.parseLimitOffset()
		if err != nil {
			return nil, err
		}
		q.Limit = limit
		q.Offset = offset
	}

	p.consumeTrailingSemicolon()
	if !p.atEOF() {
		return nil, fmt.Errorf("unexpected trailing input at position %d", p.cur().Pos)
	}

	return q, nil
}

func (p *Parser) parseTable() (Table, error) {
	tok := p.cur()
	if tok.Kind != TokIdent {
		return "", fmt.Errorf("expected table name at position %d", tok.Pos)
	}
	switch strings.ToLower(tok.Text) {
	case "doc":
		p.advance()
		return TableDoc, nil
	case "chunk":
		p.advance()
		return TableChunk, nil
	default:
		return "", fmt.Errorf("unknown table %q at position %d (expected doc or chunk)", tok.Text, tok.Pos)
	}
}

// parseUsing parses `semantic(<string>) [, lexical(<string>)]` with
// either source allowed alone and in either order.
func (p *Parser) parseUsing() (*Using, error) {
	u := &Using{}
	for {
		tok := p.cur()
		if tok.Kind != TokIdent {
			return nil, fmt.Errorf("expected semantic(...) or lexical(...) at position %d", tok.Pos)
		}
		name := strings.ToUpper(tok.Text)
		p.advance()
		if err := p.expect(TokLParen); err != nil {
			return nil, err
		}
		strTok := p.cur()
		if strTok.Kind != TokString {
			return nil, fmt.Errorf("expected string literal at position %d", strTok.Pos)
		}
		p.advance()
		if err := p.expect(TokRParen); err != nil {
			return nil, err
		}

		switch name {
		case "SEMANTIC":
			v := strTok.Text
			u.Semantic = &v
		case "LEXICAL":
			v := strTok.Text
			u.Lexical = &v
		default:
			return nil, fmt.Errorf("unknown USING source %q at position %d", tok.Text, tok.Pos)
		}

		if p.cur().Kind == TokComma {
			p.advance()
			continue
		}
		break
	}
	return u, nil
}

func (p *Parser) parseOrderBy() (*OrderBy, error) {
	if err := p.expectKeyword("ORDER"); err != nil {
		return nil, err
	}
	if err := p.expectKeyword("BY"); err != nil {
		return nil, err
	}
	tok := p.cur()
	if tok.Kind != TokIdent {
		return nil, fmt.Errorf("expected ORDER BY field at position %d", tok.Pos)
	}
	field := tok.Text
	p.advance()

	ob := &OrderBy{Field: field, Desc: false}
	if p.atKeyword("ASC") {
		p.advance()
	} else if p.atKeyword("DESC") {
		ob.Desc = true
		p.advance()
	}
	return ob, nil
}

func (p *Parser) parseLimitOffset() (*int, *int, error) {
	if err := p.expectKeyword("LIMIT"); err != nil {
		return nil, nil, err
	}
	limTok := p.cur()
	if limTok.Kind != TokNumber {
		return nil, nil, fmt.Errorf("expected integer LIMIT at position %d", limTok.Pos)
	}
	lim, err := strconv.Atoi(limTok.Text)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid LIMIT %q at position %d", limTok.Text, limTok.Pos)
	}
	p.advance()

	var offset *int
	if p.atKeyword("OFFSET") {
		p.advance()
		offTok := p.cur()
		if offTok.Kind != TokNumber {
			return nil, nil, fmt.Errorf("expected integer OFFSET at position %d", offTok.Pos)
		}
		off, err := strconv.Atoi(offTok.Text)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid OFFSET %q at position %d", offTok.Text, offTok.Pos)
		}
		p.advance()
		offset = &off
	}

	return &lim, offset, nil
}

func (p *Parser) parseFieldList() ([]string, error) {
	var fields []string
	for {
		tok := p.cur()
		if tok.Kind != TokIdent {
			return nil, fmt.Errorf("expected field name at position %d", tok.Pos)
		}
		fields = append(fields, tok.Text)
		p.advance()
		if p.cur().Kind == TokComma {
			p.advance()
			continue
		}
		break
	}
	return fields, nil
}

// --- FEL expression grammar ---
//
//	expr     := or_expr
//	or_expr  := and_expr (OR and_expr)*
//	and_expr := not_expr (AND not_expr)*
//	not_expr := [NOT] atom
//	atom     := predicate | '(' expr ')'
//	predicate:= field op value | field IN '(' value_list ')'

func (p *Parser) parseOrExpr() (Expr, error) {
	left, err := p.parseAndExpr()
	if err != nil {
		return nil, err
	}
	for p.atKeyword("OR") {
		p.advance()
		right, err := p.parseAndExpr()
		if err != nil {
			return nil, err
		}
		left = Or{Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseAndExpr() (Expr, error) {
	left, err := p.parseNotExpr()
	if err != nil {
		return nil, err
	}
	for p.atKeyword("AND") {
		p.advance()
		right, err := p.parseNotExpr()
		if err != nil {
			return nil, err
		}
		left = And{Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseNotExpr() (Expr, error) {
	if p.atKeyword("NOT") {
		p.advance()
		inner, err := p.parseAtom()
		if err != nil {
			return nil, err
		}
		return Not{Inner: inner}, nil
	}
	return p.parseAtom()
}

func (p *Parser) parseAtom() (Expr, error) {
	if p.cur().Kind == TokLParen {
		p.advance()
		expr, err := p.parseOrExpr()
		if err != nil {
			return nil, err
		}
		if err := p.expect(TokRParen); err != nil {
			return nil, err
		}
		return expr, nil
	}
	return p.parsePredicate()
}

func (p *Parser) parsePredicate() (Expr, error) {
	fieldTok := p.cur()
	if fieldTok.Kind != TokIdent {
		return nil, fmt.Errorf("expected field in filter expression at position %d", fieldTok.Pos)
	}
	field := fieldTok.Text
	p.advance()

	if p.atKeyword("IN") {
		p.advance()
		if err := p.expect(TokLParen); err != nil {
			return nil, err
		}
		values, err := p.parseValueList()
		if err != nil {
			return nil, err
		}
		if err := p.expect(TokRParen); err != nil {
			return nil, err
		}
		return Predicate{Field: field, Op: OpIn, Values: values}, nil
	}

	if p.atKeyword("LIKE") {
		p.advance()
		v, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		return Predicate{Field: field, Op: OpLike, Value: v}, nil
	}

	if p.atKeyword("GLOB") {
		p.advance()
		v, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		return Predicate{Field: field, Op: OpGlob, Value: v}, nil
	}

	op, err := p.parseComparisonOp()
	if err != nil {
		return nil, err
	}
	v, err := p.parseValue()
	if err != nil {
		return nil, err
	}
	return Predicate{Field: field, Op: op, Value: v}, nil
}

func (p *Parser) parseComparisonOp() (Op, error) {
	tok := p.cur()
	var op Op
	switch tok.Kind {
	case TokEq:
		op = OpEq
	case TokNeq:
		op = OpNeq
	case TokLt:
		op = OpLt
	case TokLte:
		op = OpLte
	case TokGt:
		op = OpGt
	case TokGte:
		op = OpGte
	default:
		return "", fmt.Errorf("expected comparison operator at position %d", tok.Pos)
	}
	p.advance()
	return op, nil
}

func (p *Parser) parseValueList() ([]Value, error) {
	var values []Value
	for {
		v, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		values = append(values, v)
		if p.cur().Kind == TokComma {
			p.advance()
			continue
		}
		break
	}
	return values, nil
}

func (p *Parser) parseValue() (Value, error) {
	tok := p.cur()
	switch tok.Kind {
	case TokString:
		p.advance()
		return StringValue(tok.Text), nil
	case TokNumber:
		p.advance()
		n, err := strconv.ParseFloat(tok.Text, 64)
		if err != nil {
			return Value{}, fmt.Errorf("invalid number %q at position %d", tok.Text, tok.Pos)
		}
		return NumberValue(n), nil
	case TokIdent:
		if strings.EqualFold(tok.Text, "null") {
			p.advance()
			return Value{IsNull: true}, nil
		}
		if strings.EqualFold(tok.Text, "true") {
			p.advance()
			return NumberValue(1), nil
		}
		if strings.EqualFold(tok.Text, "false") {
			p.advance()
			return NumberValue(0), nil
		}
		return Value{}, fmt.Errorf("expected literal value at position %d, got identifier %q", tok.Pos, tok.Text)
	default:
		return Value{}, fmt.Errorf("expected literal value at position %d", tok.Pos)
	}
}

// --- token cursor helpers ---

func (p *Parser) cur() Token {
	if p.pos >= len(p.tokens) {
		return Token{Kind: TokEOF}
	}
	return p.tokens[p.pos]
}

func (p *Parser) advance() {
	if p.pos < len(p.tokens) {
		p.pos++
	}
}

func (p *Parser) atEOF() bool {
	return p.cur().Kind == TokEOF
}

func (p *Parser) atKeyword(kw string) bool {
	tok := p.cur()
	return tok.Kind == TokIdent && strings.EqualFold(tok.Text, kw)
}

func (p *Parser) expectKeyword(kw string) error {
	if !p.atKeyword(kw) {
		return fmt.Errorf("expected %s at position %d", kw, p.cur().Pos)
	}
	p.advance()
	return nil
}

func (p *Parser) expect(kind TokenKind) error {
	if p.cur().Kind != kind {
		return fmt.Errorf("unexpected token at position %d", p.cur().Pos)
	}
	p.advance()
	return nil
}

func (p *Parser) consumeTrailingSemicolon() {
	if p.cur().Kind == TokSemicolon {
		p.advance()
	}
}

// Parse is a convenience wrapper around NewParser(src).Parse().
func Parse(src string) (*Query, error) {
	p, err := NewParser(src)
	if err != nil {
		return nil, err
	}
	return p.Parse()
}
