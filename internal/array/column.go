package array

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/bitutil"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// Column payload: [flags u8][pad 7][validity, padded to 8][values].
// Values follow the Arrow layout of the column type so decodeColumn can
// wrap them in place. Every section starts 8-byte aligned.
const flagValidity = 1

func align8(n int) int { return (n + 7) &^ 7 }

func padTo8(b []byte) []byte {
	for len(b)%8 != 0 {
		b = append(b, 0)
	}
	return b
}

func encodeColumn(arr arrow.Array, typ Type) ([]byte, error) {
	n := arr.Len()
	out := make([]byte, 8, 8+align8(int(bitutil.BytesForBits(int64(n))))+n*8)

	if arr.NullN() > 0 {
		out[0] = flagValidity
		bm := make([]byte, bitutil.BytesForBits(int64(n)))
		for i := 0; i < n; i++ {
			if arr.IsValid(i) {
				bitutil.SetBit(bm, i)
			}
		}
		out = padTo8(append(out, bm...))
	}

	switch typ {
	case Int32:
		a, ok := arr.(*array.Int32)
		if !ok {
			return nil, typeError(arr, typ)
		}
		for _, v := range a.Int32Values() {
			out = binary.LittleEndian.AppendUint32(out, uint32(v))
		}
	case Int64:
		a, ok := arr.(*array.Int64)
		if !ok {
			return nil, typeError(arr, typ)
		}
		for _, v := range a.Int64Values() {
			out = binary.LittleEndian.AppendUint64(out, uint64(v))
		}
	case Float32:
		a, ok := arr.(*array.Float32)
		if !ok {
			return nil, typeError(arr, typ)
		}
		for _, v := range a.Float32Values() {
			out = binary.LittleEndian.AppendUint32(out, math.Float32bits(v))
		}
	case Float64:
		a, ok := arr.(*array.Float64)
		if !ok {
			return nil, typeError(arr, typ)
		}
		for _, v := range a.Float64Values() {
			out = binary.LittleEndian.AppendUint64(out, math.Float64bits(v))
		}
	case Bool:
		a, ok := arr.(*array.Boolean)
		if !ok {
			return nil, typeError(arr, typ)
		}
		bm := make([]byte, bitutil.BytesForBits(int64(n)))
		for i := 0; i < n; i++ {
			if a.IsValid(i) && a.Value(i) {
				bitutil.SetBit(bm, i)
			}
		}
		out = append(out, bm...)
	case String:
		a, ok := arr.(*array.String)
		if !ok {
			return nil, typeError(arr, typ)
		}
		var data []byte
		out = binary.LittleEndian.AppendUint32(out, 0)
		for i := 0; i < n; i++ {
			if a.IsValid(i) {
				data = append(data, a.Value(i)...)
			}
			if len(data) > math.MaxInt32 {
				return nil, fmt.Errorf("%w: string column exceeds 2 GiB", ErrSchemaMismatch)
			}
			out = binary.LittleEndian.AppendUint32(out, uint32(len(data)))
		}
		out = append(padTo8(out), data...)
	default:
		return nil, typeError(arr, typ)
	}
	return out, nil
}

func typeError(arr arrow.Array, typ Type) error {
	return fmt.Errorf("%w: column of type %s where %s expected", ErrSchemaMismatch, arr.DataType(), typ)
}

// decodeColumn wraps a column payload of n rows as an Arrow array without
// copying. payload must be 8-byte aligned.
func decodeColumn(payload []byte, typ Type, n int) (arrow.Array, error) {
	if len(payload) < 8 {
		return nil, fmt.Errorf("%w: column header", ErrCorrupt)
	}
	pos := 8

	var (
		validity *memory.Buffer
		nulls    int
	)
	if payload[0]&flagValidity != 0 {
		size := bitutil.BytesForBits(int64(n))
		if len(payload) < pos+int(size) {
			return nil, fmt.Errorf("%w: validity bitmap", ErrCorrupt)
		}
		bm := payload[pos : pos+int(size)]
		nulls = n - bitutil.CountSetBits(bm, 0, n)
		validity = memory.NewBufferBytes(bm)
		pos += align8(int(size))
	}

	dt, err := typ.ArrowType()
	if err != nil {
		return nil, err
	}

	var buffers []*memory.Buffer
	switch typ {
	case Int32, Int64, Float32, Float64:
		size := n * typ.width()
		if len(payload) < pos+size {
			return nil, fmt.Errorf("%w: %s values", ErrCorrupt, typ)
		}
		buffers = []*memory.Buffer{validity, memory.NewBufferBytes(payload[pos : pos+size])}
	case Bool:
		size := int(bitutil.BytesForBits(int64(n)))
		if len(payload) < pos+size {
			return nil, fmt.Errorf("%w: bool values", ErrCorrupt)
		}
		buffers = []*memory.Buffer{validity, memory.NewBufferBytes(payload[pos : pos+size])}
	case String:
		size := (n + 1) * 4
		if len(payload) < pos+size {
			return nil, fmt.Errorf("%w: string offsets", ErrCorrupt)
		}
		offsets := payload[pos : pos+size]
		data := payload[pos+align8(size):]
		if pos+align8(size) > len(payload) {
			data = nil
		}
		prev := uint32(0)
		for i := 0; i <= n; i++ {
			off := binary.LittleEndian.Uint32(offsets[i*4:])
			if off < prev || int(off) > len(data) || (i == 0 && off != 0) {
				return nil, fmt.Errorf("%w: string offsets", ErrCorrupt)
			}
			prev = off
		}
		buffers = []*memory.Buffer{validity, memory.NewBufferBytes(offsets), memory.NewBufferBytes(data)}
	}

	data := array.NewData(dt, n, buffers, nil, nulls, 0)
	defer data.Release()
	return array.MakeFromData(data), nil
}

// rowSize estimates the bytes one row of arr occupies in a result batch.
func rowSize(arr arrow.Array, row int) int {
	switch a := arr.(type) {
	case *array.String:
		return 4 + len(a.Value(row))
	case *array.Boolean:
		return 1
	default:
		return arr.DataType().(arrow.FixedWidthDataType).BitWidth() / 8
	}
}

// appendRow copies row of src into b. b and src share a data type.
func appendRow(b array.Builder, src arrow.Array, row int) {
	if src.IsNull(row) {
		b.AppendNull()
		return
	}
	switch a := src.(type) {
	case *array.Int32:
		b.(*array.Int32Builder).Append(a.Value(row))
	case *array.Int64:
		b.(*array.Int64Builder).Append(a.Value(row))
	case *array.Float32:
		b.(*array.Float32Builder).Append(a.Value(row))
	case *array.Float64:
		b.(*array.Float64Builder).Append(a.Value(row))
	case *array.Boolean:
		b.(*array.BooleanBuilder).Append(a.Value(row))
	case *array.String:
		b.(*array.StringBuilder).Append(a.Value(row))
	}
}
