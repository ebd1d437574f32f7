package condition

import (
	"cmp"
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/bits-and-blooms/bitset"
)

// Validate checks that every referenced column exists in schema and that
// every literal can be compared with its column's type.
func (e *Expr) Validate(schema *arrow.Schema) error {
	return validate(e.root, schema)
}

func validate(n node, schema *arrow.Schema) error {
	switch n := n.(type) {
	case *logicalNode:
		if err := validate(n.left, schema); err != nil {
			return err
		}
		return validate(n.right, schema)
	case *notNode:
		return validate(n.x, schema)
	case *cmpNode:
		dt, err := columnType(schema, n.column)
		if err != nil {
			return err
		}
		return checkLiteral(n.column, dt, n.op, n.value)
	case *inNode:
		dt, err := columnType(schema, n.column)
		if err != nil {
			return err
		}
		for _, v := range n.values {
			if err := checkLiteral(n.column, dt, opEq, v); err != nil {
				return err
			}
		}
	}
	return nil
}

func columnType(schema *arrow.Schema, name string) (arrow.DataType, error) {
	idx := schema.FieldIndices(name)
	if len(idx) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrUnknownColumn, name)
	}
	return schema.Field(idx[0]).Type, nil
}

func checkLiteral(column string, dt arrow.DataType, op compareOp, v literal) error {
	ok := false
	switch dt.ID() {
	case arrow.INT8, arrow.INT16, arrow.INT32, arrow.INT64,
		arrow.UINT8, arrow.UINT16, arrow.UINT32, arrow.UINT64,
		arrow.FLOAT32, arrow.FLOAT64:
		ok = v.kind == litInt || v.kind == litFloat
	case arrow.STRING, arrow.LARGE_STRING:
		ok = v.kind == litString
	case arrow.BOOL:
		ok = v.kind == litBool && (op == opEq || op == opNe)
	}
	if !ok {
		return fmt.Errorf("%w: %s (%s) %s %s", ErrTypeMismatch, column, dt, op, v)
	}
	return nil
}

// Eval returns the set of rows of rec for which e holds. A null value
// satisfies no comparison, negated or not.
func (e *Expr) Eval(rec arrow.Record) (*bitset.BitSet, error) {
	if err := e.Validate(rec.Schema()); err != nil {
		return nil, err
	}
	return eval(e.root, rec, false)
}

// eval evaluates n, or its negation when neg is set. Negation is pushed
// down to the comparisons so that null values stay unmatched.
func eval(n node, rec arrow.Record, neg bool) (*bitset.BitSet, error) {
	rows := uint(rec.NumRows())

	switch n := n.(type) {
	case *logicalNode:
		l, err := eval(n.left, rec, neg)
		if err != nil {
			return nil, err
		}
		r, err := eval(n.right, rec, neg)
		if err != nil {
			return nil, err
		}
		if (n.op == opAnd) != neg {
			l.InPlaceIntersection(r)
		} else {
			l.InPlaceUnion(r)
		}
		return l, nil

	case *notNode:
		return eval(n.x, rec, !neg)

	case *cmpNode:
		op := n.op
		if neg {
			op = op.negate()
		}
		return match(rec, n.column, rows, func(c int) bool { return op.holds(c) }, []literal{n.value}, false)

	case *inNode:
		if neg {
			return match(rec, n.column, rows, func(c int) bool { return c != 0 }, n.values, true)
		}
		return match(rec, n.column, rows, func(c int) bool { return c == 0 }, n.values, false)
	}
	return nil, fmt.Errorf("condition: unexpected node %T", n)
}

// match sets row i when test(cmp(value_i, lit)) holds for any literal, or
// for every literal when all is set. Null values never match.
func match(rec arrow.Record, column string, rows uint, test func(int) bool, lits []literal, all bool) (*bitset.BitSet, error) {
	idx := rec.Schema().FieldIndices(column)
	if len(idx) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrUnknownColumn, column)
	}
	col := rec.Column(idx[0])
	out := bitset.New(rows)

	var compare func(i int, lit literal) int
	switch a := col.(type) {
	case *array.Int8:
		compare = func(i int, l literal) int { return cmpInt(int64(a.Value(i)), l) }
	case *array.Int16:
		compare = func(i int, l literal) int { return cmpInt(int64(a.Value(i)), l) }
	case *array.Int32:
		compare = func(i int, l literal) int { return cmpInt(int64(a.Value(i)), l) }
	case *array.Int64:
		compare = func(i int, l literal) int { return cmpInt(a.Value(i), l) }
	case *array.Uint8:
		compare = func(i int, l literal) int { return cmpInt(int64(a.Value(i)), l) }
	case *array.Uint16:
		compare = func(i int, l literal) int { return cmpInt(int64(a.Value(i)), l) }
	case *array.Uint32:
		compare = func(i int, l literal) int { return cmpInt(int64(a.Value(i)), l) }
	case *array.Uint64:
		compare = func(i int, l literal) int { return cmpUint(a.Value(i), l) }
	case *array.Float32:
		compare = func(i int, l literal) int { return cmp.Compare(float64(a.Value(i)), l.f) }
	case *array.Float64:
		compare = func(i int, l literal) int { return cmp.Compare(a.Value(i), l.f) }
	case *array.String:
		compare = func(i int, l literal) int { return cmp.Compare(a.Value(i), l.s) }
	case *array.LargeString:
		compare = func(i int, l literal) int { return cmp.Compare(a.Value(i), l.s) }
	case *array.Boolean:
		compare = func(i int, l literal) int {
			if a.Value(i) == l.b {
				return 0
			}
			return 1
		}
	default:
		return nil, fmt.Errorf("%w: column %q has unsupported type %s", ErrTypeMismatch, column, col.DataType())
	}

	for i := 0; i < col.Len(); i++ {
		if col.IsNull(i) {
			continue
		}
		hit := all
		for _, l := range lits {
			if test(compare(i, l)) != all {
				hit = !all
				break
			}
		}
		if hit {
			out.Set(uint(i))
		}
	}
	return out, nil
}

func cmpInt(v int64, l literal) int {
	if l.kind == litInt {
		return cmp.Compare(v, l.i)
	}
	return cmp.Compare(float64(v), l.f)
}

func cmpUint(v uint64, l literal) int {
	if l.kind == litInt {
		if l.i < 0 {
			return 1
		}
		return cmp.Compare(v, uint64(l.i))
	}
	return cmp.Compare(float64(v), l.f)
}
