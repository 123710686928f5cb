package batch

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/nucleus/dq-core/internal/frame"
)

func TestRequest_Validate(t *testing.T) {
	tests := []struct {
		name    string
		req     *Request
		wantErr string
	}{
		{name: "nil", req: nil, wantErr: "batch request is required"},
		{name: "missing all", req: &Request{}, wantErr: "datasource_name, data_connector_name, data_asset_name"},
		{
			name: "complete",
			req:  &Request{DatasourceName: "ds", DataConnectorName: "c", DataAssetName: "a"},
		},
		{
			name: "runtime with both params",
			req: &Request{
				DatasourceName: "ds", DataConnectorName: "c", DataAssetName: "a",
				Runtime: &RuntimeParameters{BatchData: frame.New("x"), Path: "/tmp/x.csv"},
			},
			wantErr: "exactly one",
		},
		{
			name: "runtime with neither",
			req: &Request{
				DatasourceName: "ds", DataConnectorName: "c", DataAssetName: "a",
				Runtime: &RuntimeParameters{},
			},
			wantErr: "exactly one",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestIndexSpec_Apply(t *testing.T) {
	tests := []struct {
		raw  string
		n    int
		want []int
	}{
		{raw: "0", n: 3, want: []int{0}},
		{raw: "-1", n: 3, want: []int{2}},
		{raw: "5", n: 3, want: nil},
		{raw: "1:3", n: 5, want: []int{1, 2}},
		{raw: ":2", n: 5, want: []int{0, 1}},
		{raw: "-2:", n: 5, want: []int{3, 4}},
		{raw: "[1:]", n: 3, want: []int{1, 2}},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			spec, err := ParseIndex(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, spec.Apply(tt.n))
		})
	}

	var none *IndexSpec
	assert.Equal(t, []int{0, 1}, none.Apply(2))

	_, err := ParseIndex("one")
	assert.Error(t, err)
}

func TestIndexSpec_Decoding(t *testing.T) {
	var q DataConnectorQuery
	require.NoError(t, yaml.Unmarshal([]byte("index: -1\nlimit: 2\n"), &q))
	require.NotNil(t, q.Index)
	assert.Equal(t, []int{4}, q.Index.Apply(5))
	assert.Equal(t, 2, q.Limit)

	var fromJSON DataConnectorQuery
	require.NoError(t, json.Unmarshal([]byte(`{"index":"0:2"}`), &fromJSON))
	assert.Equal(t, []int{0, 1}, fromJSON.Index.Apply(5))

	out, err := json.Marshal(fromJSON)
	require.NoError(t, err)
	assert.JSONEq(t, `{"index":"0:2"}`, string(out))
}

func TestDefinition_ID(t *testing.T) {
	a := &Definition{
		DatasourceName: "ds", DataConnectorName: "c", DataAssetName: "a",
		BatchIdentifiers: map[string]string{"year": "2019", "month": "01"},
		DataReference:    "x.csv",
	}
	b := &Definition{
		DatasourceName: "ds", DataConnectorName: "c", DataAssetName: "a",
		BatchIdentifiers: map[string]string{"month": "01", "year": "2019"},
		DataReference:    "y.csv",
	}
	assert.Len(t, a.ID(), 32)
	assert.Equal(t, a.ID(), b.ID(), "data reference and map order do not affect the id")

	b.BatchIdentifiers["month"] = "02"
	assert.NotEqual(t, a.ID(), b.ID())
}

func TestParsePassthrough(t *testing.T) {
	p, err := ParsePassthrough(map[string]any{
		"reader_method":   "csv",
		"reader_options":  map[string]any{"header": true},
		"sampling_method": "_sample_using_limit",
		"sampling_kwargs": map[string]any{"n": 10},
	})
	require.NoError(t, err)
	assert.Equal(t, "csv", p.ReaderMethod)
	assert.Equal(t, true, p.ReaderOptions["header"])
	require.NotNil(t, p.Sampling)
	assert.Equal(t, "_sample_using_limit", p.Sampling.Name)
	assert.Equal(t, 10, p.Sampling.Kwargs["n"])

	_, err = ParsePassthrough(map[string]any{"reader": "csv"})
	assert.Error(t, err)

	_, err = ParsePassthrough(map[string]any{"reader_options": "header"})
	assert.Error(t, err)
}

func TestPassthrough_Merge(t *testing.T) {
	base := &Passthrough{ReaderMethod: "csv", ReaderOptions: map[string]any{"header": false, "sep": ";"}}
	over := &Passthrough{ReaderOptions: map[string]any{"header": true}}

	merged := base.Merge(over)
	assert.Equal(t, "csv", merged.ReaderMethod)
	assert.Equal(t, true, merged.ReaderOptions["header"])
	assert.Equal(t, ";", merged.ReaderOptions["sep"])
	assert.Equal(t, false, base.ReaderOptions["header"], "merge does not mutate inputs")

	var nilBase *Passthrough
	assert.Equal(t, "csv", nilBase.Merge(base).ReaderMethod)
}
