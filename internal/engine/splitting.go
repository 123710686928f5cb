package engine

import (
	"fmt"

	"github.com/nucleus/dq-core/internal/batch"
	"github.com/nucleus/dq-core/internal/frame"
)

// Splitter method names.
const (
	SplitWholeTable    = "_split_on_whole_table"
	SplitOnColumnValue = "_split_on_column_value"
)

// Split selects the rows belonging to one split of data.
func Split(data *frame.Frame, m *batch.Method) (*frame.Frame, error) {
	switch m.Name {
	case SplitWholeTable:
		return data, nil
	case SplitOnColumnValue:
		col, err := kwColumn(data, m.Kwargs)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", m.Name, err)
		}
		ids, ok := m.Kwargs["batch_identifiers"].(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%s: batch_identifiers must be a mapping", m.Name)
		}
		want, ok := ids[col]
		if !ok {
			return nil, fmt.Errorf("%s: batch_identifiers has no value for %q", m.Name, col)
		}
		target := fmt.Sprint(want)
		return data.Filter(func(row frame.Record) bool {
			return row[col] != nil && fmt.Sprint(row[col]) == target
		}), nil
	default:
		return nil, fmt.Errorf("unsupported splitter_method %q", m.Name)
	}
}
