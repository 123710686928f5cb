package expectation

import (
	"fmt"
	"strconv"
)

// Kwargs are the keyword arguments of an expectation.
type Kwargs map[string]any

// String returns a required string argument.
func (k Kwargs) String(key string) (string, error) {
	v, ok := k[key]
	if !ok || v == nil {
		return "", fmt.Errorf("%s is required", key)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%s must be a string, got %T", key, v)
	}
	return s, nil
}

// OptionalFloat returns a numeric argument, or nil when absent.
func (k Kwargs) OptionalFloat(key string) (*float64, error) {
	v, ok := k[key]
	if !ok || v == nil {
		return nil, nil
	}
	f, ok := toFloat(v)
	if !ok {
		return nil, fmt.Errorf("%s must be a number, got %v", key, v)
	}
	return &f, nil
}

// Float returns a required numeric argument.
func (k Kwargs) Float(key string) (float64, error) {
	f, err := k.OptionalFloat(key)
	if err != nil {
		return 0, err
	}
	if f == nil {
		return 0, fmt.Errorf("%s is required", key)
	}
	return *f, nil
}

// Bool returns a boolean argument, defaulting to false.
func (k Kwargs) Bool(key string) bool {
	b, _ := k[key].(bool)
	return b
}

// List returns a required list argument.
func (k Kwargs) List(key string) ([]any, error) {
	switch t := k[key].(type) {
	case []any:
		return t, nil
	case []string:
		out := make([]any, len(t))
		for i, s := range t {
			out[i] = s
		}
		return out, nil
	case []int:
		out := make([]any, len(t))
		for i, n := range t {
			out[i] = n
		}
		return out, nil
	case []float64:
		out := make([]any, len(t))
		for i, n := range t {
			out[i] = n
		}
		return out, nil
	case nil:
		return nil, fmt.Errorf("%s is required", key)
	default:
		return nil, fmt.Errorf("%s must be a list, got %T", key, t)
	}
}

// toFloat coerces numbers and numeric strings.
func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case int:
		return float64(t), true
	case int8:
		return float64(t), true
	case int16:
		return float64(t), true
	case int32:
		return float64(t), true
	case int64:
		return float64(t), true
	case uint:
		return float64(t), true
	case uint32:
		return float64(t), true
	case uint64:
		return float64(t), true
	case float32:
		return float64(t), true
	case float64:
		return t, true
	case string:
		f, err := strconv.ParseFloat(t, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// valueKey normalizes a value for set membership: numbers compare by
// value whatever their Go type or textual form.
func valueKey(v any) string {
	if f, ok := toFloat(v); ok {
		return strconv.FormatFloat(f, 'g', -1, 64)
	}
	return fmt.Sprint(v)
}
