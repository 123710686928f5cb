package expectation

import (
	"fmt"
	"strings"
)

// ResultFormat controls how much detail a Result carries.
type ResultFormat string

const (
	BooleanOnly ResultFormat = "BOOLEAN_ONLY"
	Basic       ResultFormat = "BASIC"
	Summary     ResultFormat = "SUMMARY"
	Complete    ResultFormat = "COMPLETE"
)

// DefaultPartialUnexpectedCount bounds partial unexpected lists.
const DefaultPartialUnexpectedCount = 20

// Format is a parsed result_format.
type Format struct {
	Level                  ResultFormat
	PartialUnexpectedCount int
}

// ParseFormat reads a result_format kwarg: a level name or a mapping with
// result_format and partial_unexpected_count.
func ParseFormat(v any, fallback ResultFormat) (Format, error) {
	f := Format{Level: fallback, PartialUnexpectedCount: DefaultPartialUnexpectedCount}
	if f.Level == "" {
		f.Level = Basic
	}
	switch t := v.(type) {
	case nil:
	case string:
		f.Level = ResultFormat(strings.ToUpper(t))
	case ResultFormat:
		f.Level = t
	case map[string]any:
		if level, ok := t["result_format"].(string); ok {
			f.Level = ResultFormat(strings.ToUpper(level))
		}
		if n, ok := toFloat(t["partial_unexpected_count"]); ok {
			f.PartialUnexpectedCount = int(n)
		}
	default:
		return f, fmt.Errorf("result_format must be a string or mapping, got %T", v)
	}
	switch f.Level {
	case BooleanOnly, Basic, Summary, Complete:
	default:
		return f, fmt.Errorf("unknown result_format %q", f.Level)
	}
	if f.PartialUnexpectedCount < 0 {
		f.PartialUnexpectedCount = 0
	}
	return f, nil
}

// Result is the outcome of evaluating one expectation.
type Result struct {
	Success       bool          `json:"success"`
	Config        Configuration `json:"expectation_config"`
	Result        *Details      `json:"result,omitempty"`
	ExceptionInfo ExceptionInfo `json:"exception_info"`
}

// Details carries observed values. Column-map expectations fill MapDetails.
type Details struct {
	ObservedValue any `json:"observed_value,omitempty"`
	*MapDetails
}

// MapDetails describes per-row outcomes of a column-map expectation.
type MapDetails struct {
	ElementCount               int          `json:"element_count"`
	MissingCount               int          `json:"missing_count"`
	MissingPercent             float64      `json:"missing_percent"`
	UnexpectedCount            int          `json:"unexpected_count"`
	UnexpectedPercent          float64      `json:"unexpected_percent"`
	UnexpectedPercentTotal     float64      `json:"unexpected_percent_total"`
	PartialUnexpectedList      []any        `json:"partial_unexpected_list"`
	PartialUnexpectedIndexList []int        `json:"partial_unexpected_index_list,omitempty"`
	PartialUnexpectedCounts    []ValueCount `json:"partial_unexpected_counts,omitempty"`
	UnexpectedList             []any        `json:"unexpected_list,omitempty"`
	UnexpectedIndexList        []int        `json:"unexpected_index_list,omitempty"`
}

// ValueCount is one entry of partial_unexpected_counts.
type ValueCount struct {
	Value any `json:"value"`
	Count int `json:"count"`
}

// ExceptionInfo records an error raised while evaluating an expectation.
type ExceptionInfo struct {
	RaisedException    bool   `json:"raised_exception"`
	ExceptionMessage   string `json:"exception_message,omitempty"`
	ExceptionTraceback string `json:"exception_traceback,omitempty"`
}
