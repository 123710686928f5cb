package connector

import (
	"fmt"

	"github.com/nucleus/dq-core/internal/batch"
)

// SelectDefinitions applies a request to the full set of definitions of a
// connector: asset, batch_filter_parameters, sorters, index and limit, in
// that order.
func SelectDefinitions(all []*batch.Definition, req *batch.Request, sorters []Sorter) ([]*batch.Definition, error) {
	var out []*batch.Definition
	for _, def := range all {
		if req.DataAssetName != "" && def.DataAssetName != req.DataAssetName {
			continue
		}
		if q := req.DataConnectorQuery; q != nil && !matchesFilter(def, q.BatchFilterParameters) {
			continue
		}
		out = append(out, def)
	}

	if err := SortDefinitions(out, sorters); err != nil {
		return nil, err
	}

	q := req.DataConnectorQuery
	if q == nil {
		return out, nil
	}
	if q.Index != nil {
		positions := q.Index.Apply(len(out))
		picked := make([]*batch.Definition, 0, len(positions))
		for _, p := range positions {
			picked = append(picked, out[p])
		}
		out = picked
	}
	if q.Limit < 0 {
		return nil, fmt.Errorf("limit must not be negative")
	}
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func matchesFilter(def *batch.Definition, filter map[string]string) bool {
	for k, want := range filter {
		got, ok := def.BatchIdentifiers[k]
		if !ok || got != want {
			return false
		}
	}
	return true
}
