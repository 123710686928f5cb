package connector

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/nucleus/dq-core/internal/batch"
	"github.com/nucleus/dq-core/internal/yamlconfig"
)

// Sorter classes.
const (
	LexicographicSorter = "LexicographicSorter"
	NumericSorter       = "NumericSorter"
	DateTimeSorter      = "DateTimeSorter"
)

// Sorter orders definitions by one batch identifier.
type Sorter struct {
	Name   string
	Class  string
	Desc   bool
	layout string
}

// NewSorters converts sorter configs. DateTimeSorter formats use strftime
// directives.
func NewSorters(cfgs []yamlconfig.SorterConfig) ([]Sorter, error) {
	out := make([]Sorter, 0, len(cfgs))
	for _, c := range cfgs {
		s := Sorter{Name: c.Name, Class: c.ClassName}
		switch strings.ToLower(c.OrderBy) {
		case "", "asc":
		case "desc":
			s.Desc = true
		default:
			return nil, fmt.Errorf("sorter %s: orderby must be asc or desc", c.Name)
		}
		switch c.ClassName {
		case LexicographicSorter, NumericSorter:
		case DateTimeSorter:
			layout, err := StrftimeLayout(c.DatetimeFormat)
			if err != nil {
				return nil, fmt.Errorf("sorter %s: %w", c.Name, err)
			}
			s.layout = layout
		default:
			return nil, fmt.Errorf("sorter %s: unknown class %q", c.Name, c.ClassName)
		}
		out = append(out, s)
	}
	return out, nil
}

// key parses an identifier value into a comparable form.
func (s Sorter) key(def *batch.Definition) (any, error) {
	raw, ok := def.BatchIdentifiers[s.Name]
	if !ok {
		return nil, fmt.Errorf("sorter %s: batch identifier missing for %s", s.Name, def.DataReference)
	}
	switch s.Class {
	case NumericSorter:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("sorter %s: %q is not numeric", s.Name, raw)
		}
		return f, nil
	case DateTimeSorter:
		t, err := time.Parse(s.layout, raw)
		if err != nil {
			return nil, fmt.Errorf("sorter %s: %q does not match datetime_format", s.Name, raw)
		}
		return t, nil
	default:
		return raw, nil
	}
}

func compareKeys(a, b any) int {
	switch av := a.(type) {
	case float64:
		bv := b.(float64)
		switch {
		case av < bv:
			return -1
		case av > bv:
			return 1
		}
		return 0
	case time.Time:
		return av.Compare(b.(time.Time))
	default:
		return strings.Compare(a.(string), b.(string))
	}
}

// SortDefinitions orders defs by sorters, then by data reference. With no
// sorters the order is by data reference ascending.
func SortDefinitions(defs []*batch.Definition, sorters []Sorter) error {
	keys := make([][]any, len(defs))
	for i, def := range defs {
		keys[i] = make([]any, len(sorters))
		for j, s := range sorters {
			k, err := s.key(def)
			if err != nil {
				return err
			}
			keys[i][j] = k
		}
	}

	idx := make([]int, len(defs))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		ia, ib := idx[a], idx[b]
		for j, s := range sorters {
			c := compareKeys(keys[ia][j], keys[ib][j])
			if s.Desc {
				c = -c
			}
			if c != 0 {
				return c < 0
			}
		}
		return defs[ia].DataReference < defs[ib].DataReference
	})

	sorted := make([]*batch.Definition, len(defs))
	for i, j := range idx {
		sorted[i] = defs[j]
	}
	copy(defs, sorted)
	return nil
}

var strftimeDirectives = map[byte]string{
	'Y': "2006",
	'y': "06",
	'm': "01",
	'd': "02",
	'H': "15",
	'I': "03",
	'M': "04",
	'S': "05",
	'p': "PM",
	'b': "Jan",
	'B': "January",
	'a': "Mon",
	'A': "Monday",
	'f': "000000",
	'z': "-0700",
	'Z': "MST",
	'j': "002",
	'%': "%",
}

// StrftimeLayout converts a strftime format to a Go time layout.
func StrftimeLayout(format string) (string, error) {
	if format == "" {
		return "", fmt.Errorf("datetime_format is required")
	}
	var b strings.Builder
	for i := 0; i < len(format); i++ {
		if format[i] != '%' {
			b.WriteByte(format[i])
			continue
		}
		if i+1 >= len(format) {
			return "", fmt.Errorf("datetime_format %q ends with %%", format)
		}
		i++
		layout, ok := strftimeDirectives[format[i]]
		if !ok {
			return "", fmt.Errorf("datetime_format directive %%%c is not supported", format[i])
		}
		b.WriteString(layout)
	}
	return b.String(), nil
}
