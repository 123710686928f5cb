package engine

import (
	"fmt"
	"math/rand"
	"strconv"

	"github.com/nucleus/dq-core/internal/batch"
	"github.com/nucleus/dq-core/internal/frame"
)

// Sampling method names.
const (
	SampleLimit  = "_sample_using_limit"
	SampleRandom = "_sample_using_random"
	SampleMod    = "_sample_using_mod"
	SampleList   = "_sample_using_a_list"
)

// Sample reduces data with a named sampling method.
func Sample(data *frame.Frame, m *batch.Method) (*frame.Frame, error) {
	switch m.Name {
	case SampleLimit:
		n, err := kwInt(m.Kwargs, "n")
		if err != nil {
			return nil, fmt.Errorf("%s: %w", m.Name, err)
		}
		return data.Limit(n), nil

	case SampleRandom:
		p := 0.1
		if v, ok := m.Kwargs["p"]; ok {
			f, err := toFloat(v)
			if err != nil {
				return nil, fmt.Errorf("%s: p: %w", m.Name, err)
			}
			p = f
		}
		if p < 0 || p > 1 {
			return nil, fmt.Errorf("%s: p must be within [0, 1]", m.Name)
		}
		var seed int64 = 1
		if _, ok := m.Kwargs["seed"]; ok {
			s, err := kwInt(m.Kwargs, "seed")
			if err != nil {
				return nil, fmt.Errorf("%s: %w", m.Name, err)
			}
			seed = int64(s)
		}
		rng := rand.New(rand.NewSource(seed))
		return data.Filter(func(frame.Record) bool { return rng.Float64() < p }), nil

	case SampleMod:
		col, err := kwColumn(data, m.Kwargs)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", m.Name, err)
		}
		mod, err := kwInt(m.Kwargs, "mod")
		if err != nil {
			return nil, fmt.Errorf("%s: %w", m.Name, err)
		}
		if mod <= 0 {
			return nil, fmt.Errorf("%s: mod must be positive", m.Name)
		}
		value, err := kwInt(m.Kwargs, "value")
		if err != nil {
			return nil, fmt.Errorf("%s: %w", m.Name, err)
		}
		return data.Filter(func(row frame.Record) bool {
			f, err := toFloat(row[col])
			return err == nil && floorMod(int64(f), int64(mod)) == int64(value)
		}), nil

	case SampleList:
		col, err := kwColumn(data, m.Kwargs)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", m.Name, err)
		}
		wanted := map[string]bool{}
		switch list := m.Kwargs["value_list"].(type) {
		case []any:
			for _, v := range list {
				wanted[fmt.Sprint(v)] = true
			}
		case []string:
			for _, v := range list {
				wanted[v] = true
			}
		default:
			return nil, fmt.Errorf("%s: value_list must be a list", m.Name)
		}
		return data.Filter(func(row frame.Record) bool {
			return row[col] != nil && wanted[fmt.Sprint(row[col])]
		}), nil

	default:
		return nil, fmt.Errorf("unsupported sampling_method %q", m.Name)
	}
}

func kwColumn(data *frame.Frame, kwargs map[string]any) (string, error) {
	col, _ := kwargs["column_name"].(string)
	if col == "" {
		return "", fmt.Errorf("column_name is required")
	}
	if !data.HasColumn(col) {
		return "", fmt.Errorf("column %q not found", col)
	}
	return col, nil
}

func kwInt(kwargs map[string]any, key string) (int, error) {
	v, ok := kwargs[key]
	if !ok {
		return 0, fmt.Errorf("%s is required", key)
	}
	f, err := toFloat(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return int(f), nil
}

func toFloat(v any) (float64, error) {
	switch t := v.(type) {
	case int:
		return float64(t), nil
	case int32:
		return float64(t), nil
	case int64:
		return float64(t), nil
	case uint64:
		return float64(t), nil
	case float32:
		return float64(t), nil
	case float64:
		return t, nil
	case string:
		return strconv.ParseFloat(t, 64)
	default:
		return 0, fmt.Errorf("not a number: %v", v)
	}
}

// floorMod takes the sign of m, so -7 mod 10 is 3.
func floorMod(x, m int64) int64 {
	return ((x % m) + m) % m
}
