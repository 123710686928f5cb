package runtime

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nucleus/dq-core/internal/batch"
	"github.com/nucleus/dq-core/internal/connector"
	"github.com/nucleus/dq-core/internal/frame"
	"github.com/nucleus/dq-core/internal/yamlconfig"
)

func newConnector(t *testing.T) *Connector {
	t.Helper()
	c, err := New(&yamlconfig.DataConnectorConfig{
		Name:                 "default_runtime_data_connector_name",
		ClassName:            ClassName,
		BatchIdentifiers:     []string{"default_identifier_name"},
		BatchSpecPassthrough: map[string]any{"reader_options": map[string]any{"sep": ","}},
	}, connector.Options{DatasourceName: "ds"})
	require.NoError(t, err)
	return c
}

func runtimeRequest(asset string, data *frame.Frame, ids map[string]string) *batch.Request {
	return &batch.Request{
		DatasourceName:    "ds",
		DataConnectorName: "default_runtime_data_connector_name",
		DataAssetName:     asset,
		Runtime:           &batch.RuntimeParameters{BatchData: data},
		BatchIdentifiers:  ids,
	}
}

func TestConnector_BatchDefinitions(t *testing.T) {
	c := newConnector(t)
	ctx := context.Background()
	data := frame.New("a")
	data.Append(1)

	defs, err := c.BatchDefinitions(ctx, runtimeRequest("trips", data, map[string]string{"default_identifier_name": "run-1"}))
	require.NoError(t, err)
	require.Len(t, defs, 1)
	assert.Equal(t, "ds", defs[0].DatasourceName)
	assert.Equal(t, "trips", defs[0].DataAssetName)
	assert.Equal(t, "run-1", defs[0].BatchIdentifiers["default_identifier_name"])
	assert.Equal(t, inMemoryReference, defs[0].DataReference)

	names, err := c.AvailableDataAssetNames(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"trips"}, names)
}

func TestConnector_BatchDefinitions_Errors(t *testing.T) {
	c := newConnector(t)
	ctx := context.Background()

	tests := []struct {
		name string
		req  *batch.Request
	}{
		{name: "unknown identifier", req: runtimeRequest("trips", frame.New("a"), map[string]string{"run_id": "x"})},
		{name: "not runtime", req: &batch.Request{DatasourceName: "ds", DataConnectorName: "c", DataAssetName: "trips"}},
		{name: "both parameters", req: &batch.Request{
			DatasourceName: "ds", DataConnectorName: "c", DataAssetName: "trips",
			Runtime: &batch.RuntimeParameters{BatchData: frame.New("a"), Path: "/tmp/a.csv"},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.BatchDefinitions(ctx, tt.req)
			assert.Error(t, err)
		})
	}
}

func TestConnector_BuildBatchSpec(t *testing.T) {
	c := newConnector(t)
	data := frame.New("a")
	req := runtimeRequest("trips", data, nil)
	req.BatchSpecPassthrough = map[string]any{"reader_options": map[string]any{"header": true}}

	defs, err := c.BatchDefinitions(context.Background(), req)
	require.NoError(t, err)

	spec, err := c.BuildBatchSpec(defs[0], req)
	require.NoError(t, err)
	assert.Same(t, data, spec.BatchData)
	assert.Equal(t, true, spec.ReaderOptions["header"])
	assert.Equal(t, ",", spec.ReaderOptions["sep"])

	pathReq := &batch.Request{
		DatasourceName: "ds", DataConnectorName: "c", DataAssetName: "file",
		Runtime: &batch.RuntimeParameters{Path: "s3://bucket/a.csv"},
	}
	defs, err = c.BatchDefinitions(context.Background(), pathReq)
	require.NoError(t, err)
	assert.Equal(t, "s3://bucket/a.csv", defs[0].DataReference)
	spec, err = c.BuildBatchSpec(defs[0], pathReq)
	require.NoError(t, err)
	assert.Equal(t, "s3://bucket/a.csv", spec.Path)
}

func TestConnector_SelfCheck(t *testing.T) {
	c := newConnector(t)
	ctx := context.Background()
	for _, asset := range []string{"b", "a", "c", "a"} {
		_, err := c.BatchDefinitions(ctx, runtimeRequest(asset, frame.New("x"), nil))
		require.NoError(t, err)
	}

	report, err := c.SelfCheck(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, ClassName, report.ClassName)
	assert.Equal(t, 3, report.DataAssetCount)
	assert.Equal(t, []string{"a", "b"}, report.ExampleDataAssetNames)
	assert.Zero(t, report.UnmatchedDataReferenceCount)
}

func TestNew_RequiresIdentifiers(t *testing.T) {
	_, err := New(&yamlconfig.DataConnectorConfig{Name: "rt", ClassName: ClassName}, connector.Options{})
	assert.Error(t, err)
}

func TestRegistered(t *testing.T) {
	_, ok := connector.DefaultRegistry().Get(ClassName)
	assert.True(t, ok)
}
