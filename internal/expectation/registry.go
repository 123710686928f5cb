package expectation

import (
	"fmt"
	"runtime/debug"
	"sort"
	"sync"

	"github.com/nucleus/dq-core/internal/frame"
)

// Domain is what an expectation evaluates over.
type Domain string

const (
	DomainTable     Domain = "table"
	DomainColumn    Domain = "column"
	DomainColumnMap Domain = "column_map"
)

// AggregateFunc evaluates a table or column aggregate expectation.
type AggregateFunc func(data *frame.Frame, kw Kwargs) (success bool, observed any, err error)

// MapFunc flags unexpected values of a column. values excludes nulls unless
// the definition sets IncludeNulls.
type MapFunc func(values []any, kw Kwargs) (unexpected []bool, err error)

// Definition is a registered expectation implementation.
type Definition struct {
	Type     string
	Domain   Domain
	Required []string

	Aggregate AggregateFunc

	Map MapFunc
	// IncludeNulls passes null cells to Map instead of counting them missing.
	IncludeNulls bool
}

// Registry holds expectation definitions indexed by type.
type Registry struct {
	defs map[string]*Definition
	mu   sync.RWMutex
}

// NewRegistry creates a registry preloaded with the built-in expectations.
func NewRegistry() *Registry {
	r := &Registry{defs: make(map[string]*Definition)}
	for _, d := range builtins() {
		r.Register(d)
	}
	return r
}

// Register adds a definition. Panics if the type is already registered.
func (r *Registry) Register(d *Definition) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.defs[d.Type]; exists {
		panic(fmt.Sprintf("expectation already registered: %s", d.Type))
	}
	r.defs[d.Type] = d
}

// Get returns the definition for expectationType.
func (r *Registry) Get(expectationType string) (*Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.defs[expectationType]
	return d, ok
}

// Types lists registered expectation types, sorted.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.defs))
	for t := range r.defs {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

var (
	defaultOnce     sync.Once
	defaultRegistry *Registry
)

// DefaultRegistry returns the shared registry of built-in expectations.
func DefaultRegistry() *Registry {
	defaultOnce.Do(func() { defaultRegistry = NewRegistry() })
	return defaultRegistry
}

// Evaluate runs cfg against data. Errors and panics are reported in
// ExceptionInfo and never returned.
func (r *Registry) Evaluate(data *frame.Frame, cfg Configuration, fallback ResultFormat) (res *Result) {
	res = &Result{Config: cfg}
	defer func() {
		if p := recover(); p != nil {
			res.Success = false
			res.Result = nil
			res.ExceptionInfo = ExceptionInfo{
				RaisedException:    true,
				ExceptionMessage:   fmt.Sprint(p),
				ExceptionTraceback: string(debug.Stack()),
			}
		}
	}()

	fail := func(err error) *Result {
		res.Success = false
		res.ExceptionInfo = ExceptionInfo{RaisedException: true, ExceptionMessage: err.Error()}
		return res
	}

	def, ok := r.Get(cfg.Type)
	if !ok {
		return fail(fmt.Errorf("unknown expectation type %q", cfg.Type))
	}
	format, err := ParseFormat(cfg.Kwargs["result_format"], fallback)
	if err != nil {
		return fail(err)
	}
	for _, key := range def.Required {
		if v, ok := cfg.Kwargs[key]; !ok || v == nil {
			return fail(fmt.Errorf("%s: %s is required", cfg.Type, key))
		}
	}
	if data == nil {
		return fail(fmt.Errorf("no batch data to validate"))
	}

	switch def.Domain {
	case DomainColumnMap:
		success, details, err := evaluateMap(def, data, cfg.Kwargs, format)
		if err != nil {
			return fail(err)
		}
		res.Success = success
		if format.Level != BooleanOnly {
			res.Result = details
		}
	default:
		success, observed, err := def.Aggregate(data, cfg.Kwargs)
		if err != nil {
			return fail(err)
		}
		res.Success = success
		if format.Level != BooleanOnly {
			res.Result = &Details{ObservedValue: observed}
		}
	}
	return res
}

func evaluateMap(def *Definition, data *frame.Frame, kw Kwargs, format Format) (bool, *Details, error) {
	column, err := kw.String("column")
	if err != nil {
		return false, nil, err
	}
	values, err := data.Column(column)
	if err != nil {
		return false, nil, err
	}
	mostly, err := kw.OptionalFloat("mostly")
	if err != nil {
		return false, nil, err
	}
	if mostly != nil && (*mostly < 0 || *mostly > 1) {
		return false, nil, fmt.Errorf("mostly must be within [0, 1]")
	}

	// indexes maps positions in considered back to row numbers.
	var (
		considered []any
		indexes    []int
		missing    int
	)
	for i, v := range values {
		if v == nil && !def.IncludeNulls {
			missing++
			continue
		}
		considered = append(considered, v)
		indexes = append(indexes, i)
	}

	flags, err := def.Map(considered, kw)
	if err != nil {
		return false, nil, err
	}

	var unexpectedValues []any
	var unexpectedIndexes []int
	for i, bad := range flags {
		if bad {
			unexpectedValues = append(unexpectedValues, considered[i])
			unexpectedIndexes = append(unexpectedIndexes, indexes[i])
		}
	}

	total := len(values)
	nonMissing := len(considered)
	unexpected := len(unexpectedValues)

	success := unexpected == 0
	if mostly != nil && nonMissing > 0 {
		success = float64(nonMissing-unexpected)/float64(nonMissing) >= *mostly
	}

	md := &MapDetails{
		ElementCount:           total,
		MissingCount:           missing,
		MissingPercent:         percent(missing, total),
		UnexpectedCount:        unexpected,
		UnexpectedPercent:      percent(unexpected, nonMissing),
		UnexpectedPercentTotal: percent(unexpected, total),
		PartialUnexpectedList:  head(unexpectedValues, format.PartialUnexpectedCount),
	}
	if format.Level == Summary || format.Level == Complete {
		md.PartialUnexpectedIndexList = headInts(unexpectedIndexes, format.PartialUnexpectedCount)
		md.PartialUnexpectedCounts = countValues(unexpectedValues, format.PartialUnexpectedCount)
	}
	if format.Level == Complete {
		md.UnexpectedList = append([]any{}, unexpectedValues...)
		md.UnexpectedIndexList = append([]int{}, unexpectedIndexes...)
	}
	return success, &Details{MapDetails: md}, nil
}

func percent(n, of int) float64 {
	if of == 0 {
		return 0
	}
	return float64(n) / float64(of) * 100
}

func head(values []any, n int) []any {
	if n > len(values) {
		n = len(values)
	}
	return append([]any{}, values[:n]...)
}

func headInts(values []int, n int) []int {
	if n > len(values) {
		n = len(values)
	}
	return append([]int{}, values[:n]...)
}

// countValues returns the most frequent unexpected values, ties broken by
// first appearance.
func countValues(values []any, n int) []ValueCount {
	counts := map[string]int{}
	first := map[string]any{}
	var order []string
	for _, v := range values {
		k := valueKey(v)
		if _, ok := counts[k]; !ok {
			order = append(order, k)
			first[k] = v
		}
		counts[k]++
	}
	sort.SliceStable(order, func(i, j int) bool { return counts[order[i]] > counts[order[j]] })
	if n > len(order) {
		n = len(order)
	}
	out := make([]ValueCount, 0, n)
	for _, k := range order[:n] {
		out = append(out, ValueCount{Value: first[k], Count: counts[k]})
	}
	return out
}
