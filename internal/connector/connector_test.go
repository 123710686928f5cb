package connector

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nucleus/dq-core/internal/batch"
	"github.com/nucleus/dq-core/internal/yamlconfig"
)

func defs(refs ...string) []*batch.Definition {
	out := make([]*batch.Definition, 0, len(refs))
	for _, ref := range refs {
		// refs look like "asset/year-month"
		asset, ym := ref[:1], ref[2:]
		out = append(out, &batch.Definition{
			DataAssetName:    asset,
			BatchIdentifiers: map[string]string{"year": ym[:4], "month": ym[5:]},
			DataReference:    ref,
		})
	}
	return out
}

func refsOf(defs []*batch.Definition) []string {
	out := make([]string, 0, len(defs))
	for _, d := range defs {
		out = append(out, d.DataReference)
	}
	return out
}

func mustIndex(t *testing.T, raw string) *batch.IndexSpec {
	t.Helper()
	spec, err := batch.ParseIndex(raw)
	require.NoError(t, err)
	return spec
}

// =============================================================================
// Selection
// =============================================================================

func TestSelectDefinitions(t *testing.T) {
	all := defs("a/2019-03", "a/2019-01", "b/2019-01", "a/2020-02", "a/2019-02")
	sorters := []Sorter{{Name: "year", Class: NumericSorter, Desc: true}, {Name: "month", Class: LexicographicSorter}}

	tests := []struct {
		name    string
		query   *batch.DataConnectorQuery
		sorters []Sorter
		want    []string
	}{
		{
			name: "asset only, default order by reference",
			want: []string{"a/2019-01", "a/2019-02", "a/2019-03", "a/2020-02"},
		},
		{
			name:    "sorted",
			sorters: sorters,
			want:    []string{"a/2020-02", "a/2019-01", "a/2019-02", "a/2019-03"},
		},
		{
			name:  "filter",
			query: &batch.DataConnectorQuery{BatchFilterParameters: map[string]string{"year": "2019"}},
			want:  []string{"a/2019-01", "a/2019-02", "a/2019-03"},
		},
		{
			name:  "filter on unknown identifier",
			query: &batch.DataConnectorQuery{BatchFilterParameters: map[string]string{"day": "01"}},
			want:  []string{},
		},
		{
			name:    "index after sort",
			sorters: sorters,
			query:   &batch.DataConnectorQuery{Index: mustIndex(t, "-1")},
			want:    []string{"a/2019-03"},
		},
		{
			name:  "slice then limit",
			query: &batch.DataConnectorQuery{Index: mustIndex(t, "1:"), Limit: 2},
			want:  []string{"a/2019-02", "a/2019-03"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := &batch.Request{DataAssetName: "a", DataConnectorQuery: tt.query}
			got, err := SelectDefinitions(all, req, tt.sorters)
			require.NoError(t, err)
			assert.Equal(t, tt.want, refsOf(got))
		})
	}
}

func TestSelectDefinitions_NegativeLimit(t *testing.T) {
	req := &batch.Request{DataAssetName: "a", DataConnectorQuery: &batch.DataConnectorQuery{Limit: -1}}
	_, err := SelectDefinitions(defs("a/2019-01"), req, nil)
	assert.Error(t, err)
}

// =============================================================================
// Sorters
// =============================================================================

func TestNewSorters(t *testing.T) {
	sorters, err := NewSorters([]yamlconfig.SorterConfig{
		{Name: "year", ClassName: "NumericSorter", OrderBy: "desc"},
		{Name: "ts", ClassName: "DateTimeSorter", DatetimeFormat: "%Y%m%d"},
	})
	require.NoError(t, err)
	require.Len(t, sorters, 2)
	assert.True(t, sorters[0].Desc)
	assert.Equal(t, "20060102", sorters[1].layout)

	_, err = NewSorters([]yamlconfig.SorterConfig{{Name: "x", ClassName: "RandomSorter"}})
	assert.Error(t, err)
	_, err = NewSorters([]yamlconfig.SorterConfig{{Name: "x", ClassName: "LexicographicSorter", OrderBy: "up"}})
	assert.Error(t, err)
	_, err = NewSorters([]yamlconfig.SorterConfig{{Name: "x", ClassName: "DateTimeSorter", DatetimeFormat: "%Q"}})
	assert.Error(t, err)
}

func TestSortDefinitions_DateTime(t *testing.T) {
	items := []*batch.Definition{
		{DataReference: "x", BatchIdentifiers: map[string]string{"d": "05-2019"}},
		{DataReference: "y", BatchIdentifiers: map[string]string{"d": "12-2018"}},
		{DataReference: "z", BatchIdentifiers: map[string]string{"d": "01-2019"}},
	}
	sorters, err := NewSorters([]yamlconfig.SorterConfig{{Name: "d", ClassName: "DateTimeSorter", DatetimeFormat: "%m-%Y"}})
	require.NoError(t, err)

	require.NoError(t, SortDefinitions(items, sorters))
	assert.Equal(t, []string{"y", "z", "x"}, refsOf(items))
}

func TestSortDefinitions_Errors(t *testing.T) {
	items := []*batch.Definition{{DataReference: "x", BatchIdentifiers: map[string]string{"n": "ten"}}}
	assert.Error(t, SortDefinitions(items, []Sorter{{Name: "n", Class: NumericSorter}}))
	assert.Error(t, SortDefinitions(items, []Sorter{{Name: "missing", Class: LexicographicSorter}}))
}

func TestStrftimeLayout(t *testing.T) {
	tests := map[string]string{
		"%Y-%m-%d":      "2006-01-02",
		"%Y%m%dT%H%M%S": "20060102T150405",
		"%d %b %y":      "02 Jan 06",
		"100%%":         "100%",
	}
	for in, want := range tests {
		got, err := StrftimeLayout(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := StrftimeLayout("")
	assert.Error(t, err)
	_, err = StrftimeLayout("%Y%")
	assert.Error(t, err)
}

// =============================================================================
// Registry
// =============================================================================

type stubConnector struct {
	DataConnector
	name string
}

func (s *stubConnector) Name() string { return s.name }

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	r.Register("StubDataConnector", func(cfg *yamlconfig.DataConnectorConfig, opts Options) (DataConnector, error) {
		assert.NotNil(t, opts.Logger)
		return &stubConnector{name: cfg.Name}, nil
	})

	assert.Equal(t, []string{"StubDataConnector"}, r.List())
	assert.Panics(t, func() {
		r.Register("StubDataConnector", nil)
	})

	dc, err := r.Create(&yamlconfig.DataConnectorConfig{Name: "s", ClassName: "StubDataConnector"}, Options{})
	require.NoError(t, err)
	assert.Equal(t, "s", dc.Name())

	_, err = r.Create(&yamlconfig.DataConnectorConfig{Name: "s", ClassName: "Nope"}, Options{})
	assert.Error(t, err)
	_, err = r.Create(nil, Options{})
	assert.Error(t, err)
}

func TestExamples(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, Examples([]string{"a", "b", "c"}, 2))
	assert.Equal(t, []string{"a"}, Examples([]string{"a"}, 3))
	assert.Equal(t, []string{}, Examples(nil, 3))
}
