package expectation

import (
	"fmt"
	"math"
	"reflect"
	"regexp"

	"github.com/nucleus/dq-core/internal/frame"
)

func builtins() []*Definition {
	return []*Definition{
		{
			Type:      "expect_table_row_count_to_equal",
			Domain:    DomainTable,
			Required:  []string{"value"},
			Aggregate: tableRowCountToEqual,
		},
		{
			Type:      "expect_table_row_count_to_be_between",
			Domain:    DomainTable,
			Aggregate: tableRowCountToBeBetween,
		},
		{
			Type:      "expect_table_column_count_to_equal",
			Domain:    DomainTable,
			Required:  []string{"value"},
			Aggregate: tableColumnCountToEqual,
		},
		{
			Type:      "expect_table_columns_to_match_ordered_list",
			Domain:    DomainTable,
			Required:  []string{"column_list"},
			Aggregate: tableColumnsToMatchOrderedList,
		},
		{
			Type:      "expect_column_to_exist",
			Domain:    DomainTable,
			Required:  []string{"column"},
			Aggregate: columnToExist,
		},
		{
			Type:         "expect_column_values_to_not_be_null",
			Domain:       DomainColumnMap,
			Required:     []string{"column"},
			IncludeNulls: true,
			Map:          func(values []any, _ Kwargs) ([]bool, error) { return flag(values, func(v any) bool { return v == nil }), nil },
		},
		{
			Type:         "expect_column_values_to_be_null",
			Domain:       DomainColumnMap,
			Required:     []string{"column"},
			IncludeNulls: true,
			Map:          func(values []any, _ Kwargs) ([]bool, error) { return flag(values, func(v any) bool { return v != nil }), nil },
		},
		{
			Type:     "expect_column_values_to_be_between",
			Domain:   DomainColumnMap,
			Required: []string{"column"},
			Map:      columnValuesToBeBetween,
		},
		{
			Type:     "expect_column_values_to_be_in_set",
			Domain:   DomainColumnMap,
			Required: []string{"column", "value_set"},
			Map:      columnValuesInSet(true),
		},
		{
			Type:     "expect_column_values_to_not_be_in_set",
			Domain:   DomainColumnMap,
			Required: []string{"column", "value_set"},
			Map:      columnValuesInSet(false),
		},
		{
			Type:     "expect_column_values_to_match_regex",
			Domain:   DomainColumnMap,
			Required: []string{"column", "regex"},
			Map:      columnValuesToMatchRegex,
		},
		{
			Type:     "expect_column_values_to_be_unique",
			Domain:   DomainColumnMap,
			Required: []string{"column"},
			Map:      columnValuesToBeUnique,
		},
		{
			Type:      "expect_column_min_to_be_between",
			Domain:    DomainColumn,
			Required:  []string{"column"},
			Aggregate: columnAggregateBetween(minOf),
		},
		{
			Type:      "expect_column_max_to_be_between",
			Domain:    DomainColumn,
			Required:  []string{"column"},
			Aggregate: columnAggregateBetween(maxOf),
		},
		{
			Type:      "expect_column_mean_to_be_between",
			Domain:    DomainColumn,
			Required:  []string{"column"},
			Aggregate: columnAggregateBetween(meanOf),
		},
	}
}

// --- Table expectations ---

func tableRowCountToEqual(data *frame.Frame, kw Kwargs) (bool, any, error) {
	want, err := kw.Float("value")
	if err != nil {
		return false, nil, err
	}
	n := data.Count()
	return float64(n) == want, n, nil
}

func tableRowCountToBeBetween(data *frame.Frame, kw Kwargs) (bool, any, error) {
	n := data.Count()
	ok, err := between(float64(n), kw)
	return ok, n, err
}

func tableColumnCountToEqual(data *frame.Frame, kw Kwargs) (bool, any, error) {
	want, err := kw.Float("value")
	if err != nil {
		return false, nil, err
	}
	n := len(data.Columns)
	return float64(n) == want, n, nil
}

func tableColumnsToMatchOrderedList(data *frame.Frame, kw Kwargs) (bool, any, error) {
	list, err := kw.List("column_list")
	if err != nil {
		return false, nil, err
	}
	want := make([]string, len(list))
	for i, v := range list {
		want[i] = fmt.Sprint(v)
	}
	observed := append([]string{}, data.Columns...)
	return reflect.DeepEqual(observed, want), observed, nil
}

func columnToExist(data *frame.Frame, kw Kwargs) (bool, any, error) {
	column, err := kw.String("column")
	if err != nil {
		return false, nil, err
	}
	idx := data.ColumnIndex(column)
	if idx < 0 {
		return false, nil, nil
	}
	want, err := kw.OptionalFloat("column_index")
	if err != nil {
		return false, nil, err
	}
	if want != nil && float64(idx) != *want {
		return false, idx, nil
	}
	return true, idx, nil
}

// --- Column map expectations ---

func flag(values []any, bad func(any) bool) []bool {
	out := make([]bool, len(values))
	for i, v := range values {
		out[i] = bad(v)
	}
	return out
}

func columnValuesToBeBetween(values []any, kw Kwargs) ([]bool, error) {
	b, err := boundsOf(kw)
	if err != nil {
		return nil, err
	}
	return flag(values, func(v any) bool {
		f, ok := toFloat(v)
		return !ok || !b.contains(f)
	}), nil
}

func columnValuesInSet(member bool) MapFunc {
	return func(values []any, kw Kwargs) ([]bool, error) {
		set, err := kw.List("value_set")
		if err != nil {
			return nil, err
		}
		keys := make(map[string]bool, len(set))
		for _, v := range set {
			keys[valueKey(v)] = true
		}
		return flag(values, func(v any) bool { return keys[valueKey(v)] != member }), nil
	}
}

func columnValuesToMatchRegex(values []any, kw Kwargs) ([]bool, error) {
	pattern, err := kw.String("regex")
	if err != nil {
		return nil, err
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("regex: %w", err)
	}
	return flag(values, func(v any) bool { return !re.MatchString(fmt.Sprint(v)) }), nil
}

func columnValuesToBeUnique(values []any, _ Kwargs) ([]bool, error) {
	counts := make(map[string]int, len(values))
	for _, v := range values {
		counts[valueKey(v)]++
	}
	return flag(values, func(v any) bool { return counts[valueKey(v)] > 1 }), nil
}

// --- Column aggregate expectations ---

func columnAggregateBetween(agg func([]float64) float64) AggregateFunc {
	return func(data *frame.Frame, kw Kwargs) (bool, any, error) {
		column, err := kw.String("column")
		if err != nil {
			return false, nil, err
		}
		values, err := data.Column(column)
		if err != nil {
			return false, nil, err
		}
		var nums []float64
		for _, v := range values {
			if v == nil {
				continue
			}
			f, ok := toFloat(v)
			if !ok {
				return false, nil, fmt.Errorf("column %s has non-numeric value %v", column, v)
			}
			nums = append(nums, f)
		}
		if len(nums) == 0 {
			return false, nil, nil
		}
		observed := agg(nums)
		ok, err := between(observed, kw)
		return ok, observed, err
	}
}

func minOf(values []float64) float64 {
	m := math.Inf(1)
	for _, v := range values {
		m = math.Min(m, v)
	}
	return m
}

func maxOf(values []float64) float64 {
	m := math.Inf(-1)
	for _, v := range values {
		m = math.Max(m, v)
	}
	return m
}

func meanOf(values []float64) float64 {
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// --- helpers ---

type bounds struct {
	min, max             *float64
	strictMin, strictMax bool
}

func boundsOf(kw Kwargs) (bounds, error) {
	var b bounds
	var err error
	if b.min, err = kw.OptionalFloat("min_value"); err != nil {
		return b, err
	}
	if b.max, err = kw.OptionalFloat("max_value"); err != nil {
		return b, err
	}
	if b.min == nil && b.max == nil {
		return b, fmt.Errorf("min_value and max_value cannot both be empty")
	}
	if b.min != nil && b.max != nil && *b.min > *b.max {
		return b, fmt.Errorf("min_value %v is greater than max_value %v", *b.min, *b.max)
	}
	b.strictMin = kw.Bool("strict_min")
	b.strictMax = kw.Bool("strict_max")
	return b, nil
}

func (b bounds) contains(v float64) bool {
	if b.min != nil {
		if b.strictMin && v <= *b.min || !b.strictMin && v < *b.min {
			return false
		}
	}
	if b.max != nil {
		if b.strictMax && v >= *b.max || !b.strictMax && v > *b.max {
			return false
		}
	}
	return true
}

func between(v float64, kw Kwargs) (bool, error) {
	b, err := boundsOf(kw)
	if err != nil {
		return false, err
	}
	return b.contains(v), nil
}
