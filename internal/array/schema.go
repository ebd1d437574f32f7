package array

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
)

// Type is an attribute value type.
type Type string

const (
	Int32   Type = "int32"
	Int64   Type = "int64"
	Float32 Type = "float32"
	Float64 Type = "float64"
	String  Type = "string"
	Bool    Type = "bool"
)

// ArrowType returns the Arrow data type of t.
func (t Type) ArrowType() (arrow.DataType, error) {
	switch t {
	case Int32:
		return arrow.PrimitiveTypes.Int32, nil
	case Int64:
		return arrow.PrimitiveTypes.Int64, nil
	case Float32:
		return arrow.PrimitiveTypes.Float32, nil
	case Float64:
		return arrow.PrimitiveTypes.Float64, nil
	case String:
		return arrow.BinaryTypes.String, nil
	case Bool:
		return arrow.FixedWidthTypes.Boolean, nil
	}
	return nil, fmt.Errorf("%w: unsupported type %q", ErrInvalidSchema, t)
}

// width returns the fixed byte width of t, or 0 for variable width types.
func (t Type) width() int {
	switch t {
	case Int32, Float32:
		return 4
	case Int64, Float64:
		return 8
	case Bool:
		return 1
	}
	return 0
}

// Dimension is an int64 coordinate axis with an inclusive domain.
type Dimension struct {
	Name   string   `json:"name"`
	Domain [2]int64 `json:"domain"`
}

// Attribute is a value column.
type Attribute struct {
	Name     string `json:"name"`
	Type     Type   `json:"type"`
	Nullable bool   `json:"nullable,omitempty"`
}

// Schema describes an array.
type Schema struct {
	Dimensions  []Dimension `json:"dimensions"`
	Attributes  []Attribute `json:"attributes"`
	Compression Compression `json:"compression,omitempty"`
}

// Validate checks that s is well formed.
func (s *Schema) Validate() error {
	if len(s.Dimensions) == 0 {
		return fmt.Errorf("%w: no dimensions", ErrInvalidSchema)
	}
	seen := map[string]bool{}
	for _, d := range s.Dimensions {
		if d.Name == "" || seen[d.Name] {
			return fmt.Errorf("%w: bad or duplicate dimension name %q", ErrInvalidSchema, d.Name)
		}
		if d.Domain[0] > d.Domain[1] {
			return fmt.Errorf("%w: dimension %q has empty domain", ErrInvalidSchema, d.Name)
		}
		seen[d.Name] = true
	}
	for _, a := range s.Attributes {
		if a.Name == "" || seen[a.Name] {
			return fmt.Errorf("%w: bad or duplicate attribute name %q", ErrInvalidSchema, a.Name)
		}
		if _, err := a.Type.ArrowType(); err != nil {
			return err
		}
		seen[a.Name] = true
	}
	if _, err := s.Compression.codec(); err != nil {
		return err
	}
	return nil
}

// Dimension returns the named dimension.
func (s *Schema) Dimension(name string) (Dimension, bool) {
	for _, d := range s.Dimensions {
		if d.Name == name {
			return d, true
		}
	}
	return Dimension{}, false
}

// NumColumns returns the number of dimensions plus attributes.
func (s *Schema) NumColumns() int { return len(s.Dimensions) + len(s.Attributes) }

// ColumnNames returns dimension names followed by attribute names.
func (s *Schema) ColumnNames() []string {
	names := make([]string, 0, s.NumColumns())
	for _, d := range s.Dimensions {
		names = append(names, d.Name)
	}
	for _, a := range s.Attributes {
		names = append(names, a.Name)
	}
	return names
}

// column returns the fragment column index, type and nullability of name.
func (s *Schema) column(name string) (int, Type, bool, bool) {
	for i, d := range s.Dimensions {
		if d.Name == name {
			return i, Int64, false, true
		}
	}
	for i, a := range s.Attributes {
		if a.Name == name {
			return len(s.Dimensions) + i, a.Type, a.Nullable, true
		}
	}
	return 0, "", false, false
}

// ArrowSchema returns the Arrow schema of all columns.
func (s *Schema) ArrowSchema() *arrow.Schema {
	sch, _ := s.arrowSchema(s.ColumnNames())
	return sch
}

func (s *Schema) arrowSchema(columns []string) (*arrow.Schema, error) {
	fields := make([]arrow.Field, 0, len(columns))
	for _, name := range columns {
		_, typ, nullable, ok := s.column(name)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownColumn, name)
		}
		dt, err := typ.ArrowType()
		if err != nil {
			return nil, err
		}
		fields = append(fields, arrow.Field{Name: name, Type: dt, Nullable: nullable})
	}
	return arrow.NewSchema(fields, nil), nil
}
