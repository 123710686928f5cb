package datasource

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nucleus/dq-core/internal/batch"
	"github.com/nucleus/dq-core/internal/frame"
	"github.com/nucleus/dq-core/internal/metrics"
	"github.com/nucleus/dq-core/internal/yamlconfig"
)

func filesystemDoc(dir string) string {
	return `
name: local_trips
class_name: Datasource
execution_engine:
  class_name: PandasExecutionEngine
data_connectors:
  runtime:
    class_name: RuntimeDataConnector
    batch_identifiers: [run_id]
  files:
    class_name: InferredAssetFilesystemDataConnector
    base_directory: ` + dir + `
    default_regex:
      pattern: (.*)_(\d{4})\.csv
      group_names: [data_asset_name, year]
`
}

func newDatasource(t *testing.T, doc string, opts Options) *Datasource {
	t.Helper()
	cfg, err := yamlconfig.ParseDatasource(doc)
	require.NoError(t, err)
	ds, err := New(context.Background(), cfg, opts)
	require.NoError(t, err)
	return ds
}

func writeCSV(t *testing.T, dir, name string, rows int) {
	t.Helper()
	var b strings.Builder
	b.WriteString("id,fare\n")
	for i := 0; i < rows; i++ {
		b.WriteString("1,2.5\n")
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(b.String()), 0o644))
}

func TestNew_BuildsConnectors(t *testing.T) {
	ds := newDatasource(t, filesystemDoc(t.TempDir()), Options{})

	assert.Equal(t, "local_trips", ds.Name)
	assert.Equal(t, "PandasExecutionEngine", ds.Engine.ClassName())
	assert.Equal(t, []string{"files", "runtime"}, ds.ConnectorNames())

	dc, err := ds.Connector("files")
	require.NoError(t, err)
	assert.Equal(t, "InferredAssetFilesystemDataConnector", dc.ClassName())

	_, err = ds.Connector("nope")
	assert.True(t, errors.Is(err, ErrConnectorNotFound))
}

func TestNew_RejectsInvalidConfig(t *testing.T) {
	cfg, err := yamlconfig.ParseDatasource("name: x\nexecution_engine: {class_name: PandasExecutionEngine}\n")
	require.NoError(t, err)
	_, err = New(context.Background(), cfg, Options{})
	assert.ErrorContains(t, err, "at least one data connector")

	_, err = New(context.Background(), nil, Options{})
	assert.Error(t, err)
}

func TestBatchList_Filesystem(t *testing.T) {
	dir := t.TempDir()
	writeCSV(t, dir, "trips_2019.csv", 5)
	writeCSV(t, dir, "trips_2020.csv", 7)

	reg := prometheus.NewRegistry()
	m, err := metrics.New(reg)
	require.NoError(t, err)
	ds := newDatasource(t, filesystemDoc(dir), Options{Metrics: m})
	ctx := context.Background()

	assets, err := ds.AvailableDataAssetNames(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"trips"}, assets["files"])
	assert.Empty(t, assets["runtime"])

	req := &batch.Request{
		DatasourceName:    "local_trips",
		DataConnectorName: "files",
		DataAssetName:     "trips",
		DataConnectorQuery: &batch.DataConnectorQuery{
			BatchFilterParameters: map[string]string{"year": "2020"},
		},
	}
	batches, err := ds.BatchList(ctx, req)
	require.NoError(t, err)
	require.Len(t, batches, 1)
	b := batches[0]
	assert.Equal(t, 7, b.Data.Count())
	assert.Equal(t, []string{"id", "fare"}, b.Data.Columns)
	assert.Equal(t, b.Definition.ID(), b.ID)
	assert.False(t, b.Markers.IngestionTime.IsZero())
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(`
# HELP dq_batch_rows Row count of the last batch loaded per datasource
# TYPE dq_batch_rows gauge
dq_batch_rows{datasource="local_trips"} 7
`), "dq_batch_rows"))

	req.DataConnectorQuery = nil
	batches, err = ds.BatchList(ctx, req)
	require.NoError(t, err)
	assert.Len(t, batches, 2)
}

func TestBatchList_Runtime(t *testing.T) {
	ds := newDatasource(t, filesystemDoc(t.TempDir()), Options{})
	data := frame.New("x")
	data.Append(1)
	data.Append(2)

	batches, err := ds.BatchList(context.Background(), &batch.Request{
		DatasourceName:    "local_trips",
		DataConnectorName: "runtime",
		DataAssetName:     "adhoc",
		Runtime:           &batch.RuntimeParameters{BatchData: data},
		BatchIdentifiers:  map[string]string{"run_id": "1"},
	})
	require.NoError(t, err)
	require.Len(t, batches, 1)
	assert.Equal(t, 2, batches[0].Data.Count())

	assets, err := ds.AvailableDataAssetNames(context.Background(), "runtime")
	require.NoError(t, err)
	assert.Equal(t, map[string][]string{"runtime": {"adhoc"}}, assets)
}

func TestBatchList_Errors(t *testing.T) {
	ds := newDatasource(t, filesystemDoc(t.TempDir()), Options{})
	ctx := context.Background()

	_, err := ds.BatchList(ctx, &batch.Request{DatasourceName: "other", DataConnectorName: "files", DataAssetName: "a"})
	assert.Error(t, err)

	_, err = ds.BatchList(ctx, &batch.Request{DatasourceName: "local_trips", DataConnectorName: "nope", DataAssetName: "a"})
	assert.ErrorIs(t, err, ErrConnectorNotFound)

	_, err = ds.BatchList(ctx, &batch.Request{DatasourceName: "local_trips"})
	assert.Error(t, err)

	_, err = ds.AvailableDataAssetNames(ctx, "nope")
	assert.ErrorIs(t, err, ErrConnectorNotFound)
}

func TestSelfCheck(t *testing.T) {
	dir := t.TempDir()
	writeCSV(t, dir, "trips_2019.csv", 1)
	writeCSV(t, dir, "readme.csv", 1)
	ds := newDatasource(t, filesystemDoc(dir), Options{})

	report, err := ds.SelfCheck(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, "PandasExecutionEngine", report.ExecutionEngine)
	require.Contains(t, report.DataConnectors, "files")
	assert.Equal(t, 1, report.DataConnectors["files"].DataAssetCount)
	assert.Equal(t, 1, report.DataConnectors["files"].UnmatchedDataReferenceCount)
	assert.Equal(t, "RuntimeDataConnector", report.DataConnectors["runtime"].ClassName)
}
