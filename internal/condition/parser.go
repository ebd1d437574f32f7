package condition

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	// ErrSyntax is returned for a malformed condition.
	ErrSyntax = errors.New("condition: syntax error")
	// ErrUnknownColumn is returned by Validate and Eval for a column missing
	// from the schema.
	ErrUnknownColumn = errors.New("condition: unknown column")
	// ErrTypeMismatch is returned when a literal cannot be compared with its
	// column.
	ErrTypeMismatch = errors.New("condition: type mismatch")
)

// Expr is a parsed condition.
type Expr struct {
	src  string
	root node
}

// Parse parses src. An empty or blank src is rejected.
func Parse(src string) (*Expr, error) {
	if strings.TrimSpace(src) == "" {
		return nil, fmt.Errorf("%w: empty condition", ErrSyntax)
	}

	toks, err := lex(src)
	if err != nil {
		return nil, err
	}

	p := &parser{toks: toks}
	root, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if t := p.peek(); t.kind != tokEOF {
		return nil, fmt.Errorf("%w: unexpected %s", ErrSyntax, t)
	}
	return &Expr{src: src, root: root}, nil
}

// String returns the source text of e.
func (e *Expr) String() string { return e.src }

// Columns returns the distinct column names referenced by e, in order of
// first appearance.
func (e *Expr) Columns() []string {
	var cols []string
	seen := map[string]bool{}
	e.root.walk(func(c string) {
		if !seen[c] {
			seen[c] = true
			cols = append(cols, c)
		}
	})
	return cols
}

type parser struct {
	toks []token
	pos  int
}

func (p *parser) peek() token { return p.toks[p.pos] }

func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) keyword(word string) bool {
	t := p.peek()
	if t.kind == tokIdent && strings.EqualFold(t.text, word) {
		p.pos++
		return true
	}
	return false
}

func (p *parser) expect(kind tokenKind, what string) (token, error) {
	t := p.next()
	if t.kind != kind {
		return t, fmt.Errorf("%w: expected %s, got %s", ErrSyntax, what, t)
	}
	return t, nil
}

func (p *parser) parseOr() (node, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.keyword("or") {
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &logicalNode{op: opOr, left: left, right: right}
	}
	return left, nil
}

func (p *parser) parseAnd() (node, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for p.keyword("and") {
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		left = &logicalNode{op: opAnd, left: left, right: right}
	}
	return left, nil
}

func (p *parser) parseNot() (node, error) {
	if p.keyword("not") {
		x, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return &notNode{x: x}, nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (node, error) {
	t := p.peek()
	if t.kind == tokLParen {
		p.next()
		x, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokRParen, "')'"); err != nil {
			return nil, err
		}
		return x, nil
	}

	col, err := p.expect(tokIdent, "column name")
	if err != nil {
		return nil, err
	}
	if isReserved(col.text) {
		return nil, fmt.Errorf("%w: expected column name, got %s", ErrSyntax, col)
	}

	if p.keyword("in") {
		if _, err := p.expect(tokLBracket, "'['"); err != nil {
			return nil, err
		}
		var lits []literal
		for {
			lit, err := p.parseLiteral()
			if err != nil {
				return nil, err
			}
			lits = append(lits, lit)
			if p.peek().kind == tokComma {
				p.next()
				continue
			}
			break
		}
		if _, err := p.expect(tokRBracket, "']'"); err != nil {
			return nil, err
		}
		return &inNode{column: col.text, values: lits}, nil
	}

	opTok, err := p.expect(tokOp, "comparison operator")
	if err != nil {
		return nil, err
	}
	lit, err := p.parseLiteral()
	if err != nil {
		return nil, err
	}
	return &cmpNode{column: col.text, op: compareOps[opTok.text], value: lit}, nil
}

func (p *parser) parseLiteral() (literal, error) {
	t := p.next()
	switch t.kind {
	case tokString:
		return literal{kind: litString, s: t.text}, nil
	case tokNumber:
		if i, err := strconv.ParseInt(t.text, 10, 64); err == nil {
			return literal{kind: litInt, i: i, f: float64(i)}, nil
		}
		f, err := strconv.ParseFloat(t.text, 64)
		if err != nil {
			return literal{}, fmt.Errorf("%w: bad number %s", ErrSyntax, t)
		}
		return literal{kind: litFloat, f: f}, nil
	case tokIdent:
		switch strings.ToLower(t.text) {
		case "true":
			return literal{kind: litBool, b: true}, nil
		case "false":
			return literal{kind: litBool, b: false}, nil
		}
	}
	return literal{}, fmt.Errorf("%w: expected literal, got %s", ErrSyntax, t)
}

func isReserved(word string) bool {
	switch strings.ToLower(word) {
	case "and", "or", "not", "in", "true", "false":
		return true
	}
	return false
}
