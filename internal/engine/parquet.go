package engine

import (
	"fmt"

	"github.com/xitongsys/parquet-go-source/buffer"
	"github.com/xitongsys/parquet-go/reader"

	"github.com/nucleus/dq-core/internal/frame"
)

const parquetReadParallelism = 4

// ReadParquet decodes a flat Parquet file. Nested schemas are not supported.
func ReadParquet(raw []byte) (*frame.Frame, error) {
	pf, err := buffer.NewBufferFile(raw)
	if err != nil {
		return nil, fmt.Errorf("open parquet: %w", err)
	}
	defer pf.Close()

	pr, err := reader.NewParquetColumnReader(pf, parquetReadParallelism)
	if err != nil {
		return nil, fmt.Errorf("read parquet footer: %w", err)
	}
	defer pr.ReadStop()

	// The reader renames footer fields to Go identifiers; the schema handler
	// keeps the names as written.
	var columns []string
	for i, el := range pr.Footer.Schema {
		if i == 0 {
			continue
		}
		name := pr.SchemaHandler.GetExName(i)
		if el.NumChildren != nil && *el.NumChildren > 0 {
			return nil, fmt.Errorf("parquet column %q is nested", name)
		}
		columns = append(columns, name)
	}

	numRows := pr.GetNumRows()
	f := frame.New(columns...)
	f.Rows = make([][]any, numRows)
	for i := range f.Rows {
		f.Rows[i] = make([]any, len(columns))
	}
	for c := range columns {
		values, _, _, err := pr.ReadColumnByIndex(int64(c), numRows)
		if err != nil {
			return nil, fmt.Errorf("read parquet column %q: %w", columns[c], err)
		}
		for r := 0; r < len(values) && r < int(numRows); r++ {
			f.Rows[r][c] = values[r]
		}
	}
	return f, nil
}
