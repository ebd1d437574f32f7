package condition

import (
	"fmt"
	"strconv"
)

type compareOp int

const (
	opEq compareOp = iota
	opNe
	opLt
	opLe
	opGt
	opGe
)

var compareOps = map[string]compareOp{
	"==": opEq,
	"!=": opNe,
	"<":  opLt,
	"<=": opLe,
	">":  opGt,
	">=": opGe,
}

func (op compareOp) String() string {
	return [...]string{"==", "!=", "<", "<=", ">", ">="}[op]
}

// holds reports whether the comparison holds given c = cmp(value, literal).
func (op compareOp) holds(c int) bool {
	switch op {
	case opEq:
		return c == 0
	case opNe:
		return c != 0
	case opLt:
		return c < 0
	case opLe:
		return c <= 0
	case opGt:
		return c > 0
	default:
		return c >= 0
	}
}

// negate returns the operator holding exactly when op does not, for
// non-null values.
func (op compareOp) negate() compareOp {
	return [...]compareOp{opNe, opEq, opGe, opGt, opLe, opLt}[op]
}

type logicalOp int

const (
	opAnd logicalOp = iota
	opOr
)

type literalKind int

const (
	litString literalKind = iota
	litInt
	litFloat
	litBool
)

type literal struct {
	kind literalKind
	s    string
	i    int64
	f    float64
	b    bool
}

func (l literal) String() string {
	switch l.kind {
	case litString:
		return strconv.Quote(l.s)
	case litInt:
		return strconv.FormatInt(l.i, 10)
	case litFloat:
		return strconv.FormatFloat(l.f, 'g', -1, 64)
	default:
		if l.b {
			return "True"
		}
		return "False"
	}
}

type node interface {
	walk(fn func(column string))
	fmt.Stringer
}

type logicalNode struct {
	op          logicalOp
	left, right node
}

func (n *logicalNode) walk(fn func(string)) {
	n.left.walk(fn)
	n.right.walk(fn)
}

func (n *logicalNode) String() string {
	word := "and"
	if n.op == opOr {
		word = "or"
	}
	return fmt.Sprintf("(%s %s %s)", n.left, word, n.right)
}

type notNode struct {
	x node
}

func (n *notNode) walk(fn func(string)) { n.x.walk(fn) }

func (n *notNode) String() string { return fmt.Sprintf("not %s", n.x) }

type cmpNode struct {
	column string
	op     compareOp
	value  literal
}

func (n *cmpNode) walk(fn func(string)) { fn(n.column) }

func (n *cmpNode) String() string { return fmt.Sprintf("%s %s %s", n.column, n.op, n.value) }

type inNode struct {
	column string
	values []literal
}

func (n *inNode) walk(fn func(string)) { fn(n.column) }

func (n *inNode) String() string { return fmt.Sprintf("%s in %v", n.column, n.values) }
