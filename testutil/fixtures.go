package testutil

import (
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	internalarray "github.com/hupe1980/arraystream/internal/array"
)

// Dimension and attribute names of the fixture arrays.
const (
	JoinID   = "soma_joinid"
	CellType = "cell_type"
	NGenes   = "n_genes"
	Dim0     = "soma_dim_0"
	Dim1     = "soma_dim_1"
	Data     = "soma_data"
)

// ObsSchema is a cell annotation dataframe: one row per soma_joinid.
func ObsSchema() internalarray.Schema {
	return internalarray.Schema{
		Dimensions: []internalarray.Dimension{{Name: JoinID, Domain: [2]int64{0, 1<<62 - 1}}},
		Attributes: []internalarray.Attribute{
			{Name: CellType, Type: internalarray.String},
			{Name: NGenes, Type: internalarray.Int32},
		},
	}
}

// ObsRecord builds an obs batch. The slices must have equal length.
func ObsRecord(mem memory.Allocator, ids []int64, cellTypes []string, nGenes []int32) arrow.Record {
	schema := ObsSchema()
	b := array.NewRecordBuilder(mem, schema.ArrowSchema())
	defer b.Release()

	b.Field(0).(*array.Int64Builder).AppendValues(ids, nil)
	b.Field(1).(*array.StringBuilder).AppendValues(cellTypes, nil)
	b.Field(2).(*array.Int32Builder).AppendValues(nGenes, nil)
	return b.NewRecord()
}

// Cell is one stored value of a sparse matrix.
type Cell struct {
	Row, Col int64
	Value    float32
}

// MatrixSchema is a sparse cells-by-genes matrix.
func MatrixSchema() internalarray.Schema {
	return internalarray.Schema{
		Dimensions: []internalarray.Dimension{
			{Name: Dim0, Domain: [2]int64{0, 1<<62 - 1}},
			{Name: Dim1, Domain: [2]int64{0, 1<<31 - 1}},
		},
		Attributes: []internalarray.Attribute{{Name: Data, Type: internalarray.Float32}},
	}
}

// MatrixRecord builds a matrix batch from cells.
func MatrixRecord(mem memory.Allocator, cells []Cell) arrow.Record {
	schema := MatrixSchema()
	b := array.NewRecordBuilder(mem, schema.ArrowSchema())
	defer b.Release()

	rows := b.Field(0).(*array.Int64Builder)
	cols := b.Field(1).(*array.Int64Builder)
	vals := b.Field(2).(*array.Float32Builder)
	for _, c := range cells {
		rows.Append(c.Row)
		cols.Append(c.Col)
		vals.Append(c.Value)
	}
	return b.NewRecord()
}

// RandomCells returns the cells of a matrix over rows and genes [0, genes)
// where each cell is present with probability density. Values are nonzero.
func (r *RNG) RandomCells(rows []int64, genes int, density float64) []Cell {
	var cells []Cell
	for _, row := range rows {
		mask := r.SparseMask(genes, density)
		for g, ok := range mask {
			if ok {
				cells = append(cells, Cell{Row: row, Col: int64(g), Value: 1 + r.Float32()})
			}
		}
	}
	return cells
}
