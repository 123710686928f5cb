package engine

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/nucleus/dq-core/internal/frame"
)

// ReadCSV decodes delimited text. Recognised options:
// header, sep/delimiter, quote, nullValue, inferSchema, comment.
func ReadCSV(r io.Reader, opts map[string]any) (*frame.Frame, error) {
	header := optBool(opts, false, "header")
	infer := optBool(opts, false, "inferSchema", "infer_schema")
	nullValue := optString(opts, "", "nullValue", "null_value", "na_values")

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = false

	if sep := optString(opts, "", "sep", "delimiter"); sep != "" {
		d, size := utf8.DecodeRuneInString(sep)
		if size != len(sep) {
			return nil, fmt.Errorf("csv separator must be a single character, got %q", sep)
		}
		cr.Comma = d
	}
	if q := optString(opts, `"`, "quote", "quotechar"); q != `"` {
		return nil, fmt.Errorf("csv quote character %q is not supported", q)
	}
	if c := optString(opts, "", "comment"); c != "" {
		d, _ := utf8.DecodeRuneInString(c)
		cr.Comment = d
	}

	var (
		columns []string
		rows    [][]any
	)
	first := true
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv: %w", err)
		}
		if first {
			first = false
			if header {
				columns = make([]string, len(rec))
				for i, name := range rec {
					columns[i] = strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))
				}
				continue
			}
		}
		for len(columns) < len(rec) {
			columns = append(columns, fmt.Sprintf("_c%d", len(columns)))
		}
		row := make([]any, len(rec))
		for i, field := range rec {
			if field == "" || (nullValue != "" && field == nullValue) {
				row[i] = nil
				continue
			}
			row[i] = field
		}
		rows = append(rows, row)
	}

	f := frame.New(columns...)
	for _, row := range rows {
		f.Append(row...)
	}
	if infer {
		inferColumnTypes(f)
	}
	return f, nil
}

// inferColumnTypes converts string columns to int64, float64 or bool when
// every non-null value parses.
func inferColumnTypes(f *frame.Frame) {
	for col := range f.Columns {
		kind := "int"
		for _, row := range f.Rows {
			s, ok := row[col].(string)
			if !ok {
				continue
			}
			kind = narrow(kind, s)
			if kind == "string" {
				break
			}
		}
		if kind == "string" {
			continue
		}
		for _, row := range f.Rows {
			s, ok := row[col].(string)
			if !ok {
				continue
			}
			switch kind {
			case "int":
				row[col], _ = strconv.ParseInt(s, 10, 64)
			case "float":
				row[col], _ = strconv.ParseFloat(s, 64)
			case "bool":
				row[col], _ = strconv.ParseBool(s)
			}
		}
	}
}

func narrow(kind, s string) string {
	switch kind {
	case "int":
		if _, err := strconv.ParseInt(s, 10, 64); err == nil {
			return "int"
		}
		if _, err := strconv.ParseFloat(s, 64); err == nil {
			return "float"
		}
		if isBool(s) {
			return "bool"
		}
	case "float":
		if _, err := strconv.ParseFloat(s, 64); err == nil {
			return "float"
		}
	case "bool":
		if isBool(s) {
			return "bool"
		}
	}
	return "string"
}

func isBool(s string) bool {
	switch strings.ToLower(s) {
	case "true", "false":
		return true
	}
	return false
}

// ReadJSONLines decodes one JSON object per line. Columns appear in the
// order they are first seen, sorted within a line. Integral numbers become int64.
func ReadJSONLines(r io.Reader) (*frame.Frame, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	var (
		columns []string
		seen    = map[string]bool{}
		records []frame.Record
	)
	for {
		var obj map[string]any
		err := dec.Decode(&obj)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read json line %d: %w", len(records)+1, err)
		}
		rec := make(frame.Record, len(obj))
		keys := make([]string, 0, len(obj))
		for k, v := range obj {
			rec[k] = normalizeJSON(v)
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if !seen[k] {
				seen[k] = true
				columns = append(columns, k)
			}
		}
		records = append(records, rec)
	}
	return frame.FromRecords(columns, records), nil
}

func normalizeJSON(v any) any {
	n, ok := v.(json.Number)
	if !ok {
		return v
	}
	if i, err := n.Int64(); err == nil {
		return i
	}
	f, _ := n.Float64()
	return f
}

func optBool(opts map[string]any, def bool, keys ...string) bool {
	for _, k := range keys {
		v, ok := opts[k]
		if !ok || v == nil {
			continue
		}
		switch t := v.(type) {
		case bool:
			return t
		case string:
			if b, err := strconv.ParseBool(t); err == nil {
				return b
			}
		case int:
			return t != 0
		}
	}
	return def
}

func optString(opts map[string]any, def string, keys ...string) string {
	for _, k := range keys {
		v, ok := opts[k]
		if !ok || v == nil {
			continue
		}
		if s, ok := v.(string); ok {
			return s
		}
		return fmt.Sprint(v)
	}
	return def
}
