package walkthrough

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"

	"github.com/nucleus/dq-core/internal/blobstore"
	"github.com/nucleus/dq-core/internal/datacontext"
	"github.com/nucleus/dq-core/internal/yamlconfig"
)

func skipIfNoAzure(t *testing.T) string {
	t.Helper()
	key := os.Getenv("AZURE_ACCESS_KEY")
	if key == "" || os.Getenv("DQ_TEST_AZURE_LIVE") == "" {
		t.Skip("AZURE_ACCESS_KEY and DQ_TEST_AZURE_LIVE not set")
	}
	return key
}

func tripsCSV(rows int) []byte {
	var b bytes.Buffer
	b.WriteString("vendor_id,pickup_datetime,passenger_count,fare_amount\n")
	for i := 0; i < rows; i++ {
		fmt.Fprintf(&b, "%d,2019-01-01 00:%02d:00,%d,%.2f\n", i%2+1, i%60, i%6+1, 5+float64(i%50)/2)
	}
	return b.Bytes()
}

// seedContainer serves the azure provider from memory with the three monthly
// samples plus objects the regex must not claim.
func seedContainer(t *testing.T, rowsJanuary int) {
	t.Helper()
	restore := blobstore.Override(blobstore.ProviderAzure, blobstore.MemOpener())
	t.Cleanup(restore)
	t.Cleanup(func() { blobstore.ResetMem(DefaultContainer) })

	store, err := blobstore.Open(context.Background(), blobstore.Config{Provider: blobstore.ProviderMem, Bucket: DefaultContainer})
	require.NoError(t, err)
	objects := map[string][]byte{
		DefaultPathPrefix + "yellow_tripdata_sample_2019-01.csv": tripsCSV(rowsJanuary),
		DefaultPathPrefix + "yellow_tripdata_sample_2019-02.csv": tripsCSV(10000),
		DefaultPathPrefix + "yellow_tripdata_sample_2019-03.csv": tripsCSV(10000),
		DefaultPathPrefix + "README.md":                          []byte("samples"),
		"other/unrelated.csv":                                    tripsCSV(1),
	}
	for key, body := range objects {
		require.NoError(t, store.Upload(context.Background(), key, bytes.NewReader(body)))
	}
}

func newContext(t *testing.T) *datacontext.DataContext {
	t.Helper()
	dc, err := datacontext.Get(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { _ = dc.Close() })
	return dc
}

// =============================================================================
// Template
// =============================================================================

func TestRenderDatasource_FillsEveryPlaceholder(t *testing.T) {
	doc := RenderDatasource(Options{Credential: "secret-key"})

	for _, token := range []string{
		yamlconfig.PlaceholderAccountURL,
		yamlconfig.PlaceholderCredential,
		yamlconfig.PlaceholderContainer,
		yamlconfig.PlaceholderPathPrefix,
	} {
		assert.NotContains(t, doc, token)
	}
	assert.Equal(t, 2, strings.Count(doc, "account_url: "+DefaultAccountURL))
	assert.Equal(t, 2, strings.Count(doc, "credential: secret-key"))

	cfg, err := yamlconfig.ParseDatasource(doc)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
	assert.Equal(t, DefaultDatasourceName, cfg.Name)
	assert.Equal(t, yamlconfig.SparkEngineClass, cfg.ExecutionEngine.ClassName)
	assert.Equal(t, "secret-key", cfg.ExecutionEngine.AzureOptions.Credential)

	inferred := cfg.DataConnectors[DefaultConnectorName]
	require.NotNil(t, inferred)
	assert.Equal(t, DefaultContainer, inferred.Container)
	assert.Equal(t, DefaultPathPrefix, inferred.NameStartsWith)
	assert.Equal(t, `(.*)\.csv`, inferred.DefaultRegex.Pattern)
	assert.Equal(t, []string{"data_asset_name"}, inferred.DefaultRegex.GroupNames)

	runtime := cfg.DataConnectors["default_runtime_data_connector_name"]
	require.NotNil(t, runtime)
	assert.Equal(t, []string{"default_identifier_name"}, runtime.BatchIdentifiers)
}

func TestRenderDatasource_EmptyCredentialIsAnonymous(t *testing.T) {
	cfg, err := yamlconfig.ParseDatasource(RenderDatasource(Options{}))
	require.NoError(t, err)
	assert.Empty(t, cfg.ExecutionEngine.AzureOptions.Credential)
	assert.Empty(t, cfg.DataConnectors[DefaultConnectorName].AzureOptions.Credential)
}

func TestBatchRequest(t *testing.T) {
	req := BatchRequest(DefaultAssetName)
	require.NoError(t, req.Validate())
	assert.Equal(t, "csv", req.BatchSpecPassthrough["reader_method"])
	assert.Equal(t, map[string]any{"header": true}, req.BatchSpecPassthrough["reader_options"])
}

// =============================================================================
// Run / Check
// =============================================================================

func TestRun_AgainstInMemoryContainer(t *testing.T) {
	seedContainer(t, 10000)
	dc := newContext(t)

	report, err := Run(context.Background(), dc, Options{})
	require.NoError(t, err)
	require.NoError(t, Check(report, DefaultExpectations()))

	assert.Equal(t, []string{DefaultDatasourceName}, report.DatasourceNames)
	assert.Equal(t, 1, report.BatchCount)
	assert.Equal(t, 10000, report.RowCount)
	assert.Equal(t, DefaultHeadRows, report.Head.Count())
	assert.Equal(t, []string{"vendor_id", "pickup_datetime", "passenger_count", "fare_amount"}, report.Head.Columns)

	inferred := report.TestReport.Report.DataConnectors[DefaultConnectorName]
	require.NotNil(t, inferred)
	assert.Equal(t, 3, inferred.DataAssetCount)
	assert.Equal(t, 1, inferred.UnmatchedDataReferenceCount)

	names, err := dc.ListExpectationSuiteNames(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{DefaultSuiteName}, names)
	assert.Equal(t, DefaultSuiteName, report.Validator.Suite().Name)
}

func TestRun_DuplicateDatasourceFails(t *testing.T) {
	seedContainer(t, 10000)
	dc := newContext(t)

	_, err := Run(context.Background(), dc, Options{})
	require.NoError(t, err)
	_, err = Run(context.Background(), dc, Options{})
	assert.ErrorIs(t, err, datacontext.ErrDatasourceExists)
}

func TestRun_UnknownAsset(t *testing.T) {
	seedContainer(t, 10000)
	_, err := Run(context.Background(), newContext(t), Options{AssetName: "data/nope"})
	assert.ErrorContains(t, err, "get validator")
}

func TestCheck_ReportsEveryMismatch(t *testing.T) {
	seedContainer(t, 9999)
	report, err := Run(context.Background(), newContext(t), Options{})
	require.NoError(t, err)

	err = Check(report, DefaultExpectations())
	require.Error(t, err)
	assert.Len(t, multierr.Errors(err), 1)
	assert.ErrorContains(t, err, "row count = 9999, want 10000")

	report.DataAssetNames = report.DataAssetNames[:2]
	report.DatasourceNames = append(report.DatasourceNames, "extra")
	report.BatchCount = 2
	assert.Len(t, multierr.Errors(Check(report, DefaultExpectations())), 4)

	assert.Error(t, Check(nil, DefaultExpectations()))
}

func TestCheck_AssetNamesAreASet(t *testing.T) {
	want := DefaultExpectations()
	report := &Report{
		Validator:       nil,
		DatasourceNames: want.DatasourceNames,
		DataAssetNames:  []string{want.DataAssetNames[2], want.DataAssetNames[0], want.DataAssetNames[1], want.DataAssetNames[0]},
		BatchCount:      1,
		RowCount:        10000,
	}
	errs := multierr.Errors(Check(report, want))
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "no validator")
}

func TestRun_LiveAzure(t *testing.T) {
	key := skipIfNoAzure(t)
	report, err := Run(context.Background(), newContext(t), Options{Credential: key})
	require.NoError(t, err)
	assert.NoError(t, Check(report, DefaultExpectations()))
}
