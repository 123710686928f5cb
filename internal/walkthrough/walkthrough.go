// Package walkthrough runs the Azure inferred and runtime connector example
// end to end against a data context and checks its outcome.
package walkthrough

import (
	"context"
	"fmt"
	"reflect"
	"sort"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/nucleus/dq-core/internal/batch"
	"github.com/nucleus/dq-core/internal/datacontext"
	"github.com/nucleus/dq-core/internal/frame"
	"github.com/nucleus/dq-core/internal/validator"
	"github.com/nucleus/dq-core/internal/yamlconfig"
)

// DatasourceTemplate is the datasource document with its four placeholders.
const DatasourceTemplate = `
name: my_azure_datasource
class_name: Datasource
execution_engine:
    class_name: SparkDFExecutionEngine
    azure_options:
        account_url: <YOUR_ACCOUNT_URL> # or ` + "`conn_str`" + `
        credential: <YOUR_CREDENTIAL>   # if using a protected container
data_connectors:
    default_runtime_data_connector_name:
        class_name: RuntimeDataConnector
        batch_identifiers:
            - default_identifier_name
    default_inferred_data_connector_name:
        class_name: InferredAssetAzureDataConnector
        azure_options:
            account_url: <YOUR_ACCOUNT_URL> # or ` + "`conn_str`" + `
            credential: <YOUR_CREDENTIAL>   # if using a protected container
        container: <YOUR_AZURE_CONTAINER_HERE>
        name_starts_with: <CONTAINER_PATH_TO_DATA>
        default_regex:
            pattern: (.*)\.csv
            group_names:
                - data_asset_name
`

const (
	DefaultDatasourceName = "my_azure_datasource"
	DefaultConnectorName  = "default_inferred_data_connector_name"
	DefaultContainer      = "superconductive-public"
	DefaultPathPrefix     = "data/taxi_yellow_tripdata_samples/"
	DefaultAccountURL     = "superconductivetesting.blob.core.windows.net"
	DefaultAssetName      = "data/taxi_yellow_tripdata_samples/yellow_tripdata_sample_2019-01"
	DefaultSuiteName      = "test_suite"
	DefaultHeadRows       = 5
)

// Options fill the template and name the asset and suite.
type Options struct {
	Container  string
	PathPrefix string
	AccountURL string
	// Credential is an account key or SAS token; empty means anonymous.
	Credential string
	AssetName  string
	SuiteName  string
	Logger     *zap.Logger
}

func (o Options) withDefaults() Options {
	if o.Container == "" {
		o.Container = DefaultContainer
	}
	if o.PathPrefix == "" {
		o.PathPrefix = DefaultPathPrefix
	}
	if o.AccountURL == "" {
		o.AccountURL = DefaultAccountURL
	}
	if o.AssetName == "" {
		o.AssetName = DefaultAssetName
	}
	if o.SuiteName == "" {
		o.SuiteName = DefaultSuiteName
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}

// RenderDatasource substitutes the placeholders of DatasourceTemplate.
func RenderDatasource(opts Options) string {
	opts = opts.withDefaults()
	return yamlconfig.Substitute(DatasourceTemplate, map[string]string{
		yamlconfig.PlaceholderContainer:  opts.Container,
		yamlconfig.PlaceholderPathPrefix: opts.PathPrefix,
		yamlconfig.PlaceholderAccountURL: opts.AccountURL,
		yamlconfig.PlaceholderCredential: opts.Credential,
	})
}

// BatchRequest names the asset with the csv reader and a header row.
func BatchRequest(assetName string) *batch.Request {
	return &batch.Request{
		DatasourceName:    DefaultDatasourceName,
		DataConnectorName: DefaultConnectorName,
		DataAssetName:     assetName,
		BatchSpecPassthrough: map[string]any{
			"reader_method":  "csv",
			"reader_options": map[string]any{"header": true},
		},
	}
}

// Report is what Run observed.
type Report struct {
	TestReport      *datacontext.TestReport
	Validator       *validator.Validator
	Head            *frame.Frame
	DatasourceNames []string
	DataAssetNames  []string
	BatchCount      int
	RowCount        int
}

// Run performs the walkthrough against dc.
func Run(ctx context.Context, dc *datacontext.DataContext, opts Options) (*Report, error) {
	opts = opts.withDefaults()
	logger := opts.Logger
	doc := RenderDatasource(opts)

	testReport, err := dc.TestYAMLConfig(ctx, doc)
	if err != nil {
		return nil, fmt.Errorf("test yaml config: %w", err)
	}
	cfg, err := yamlconfig.ParseDatasource(doc)
	if err != nil {
		return nil, err
	}
	if _, err := dc.AddDatasource(ctx, cfg); err != nil {
		return nil, fmt.Errorf("add datasource: %w", err)
	}

	req := BatchRequest(opts.AssetName)
	if _, err := dc.AddOrUpdateExpectationSuite(ctx, opts.SuiteName); err != nil {
		return nil, fmt.Errorf("add expectation suite: %w", err)
	}
	v, err := dc.GetValidator(ctx, req, opts.SuiteName)
	if err != nil {
		return nil, fmt.Errorf("get validator: %w", err)
	}
	head := v.Head(DefaultHeadRows)
	logger.Info("validator head\n" + head.Format(DefaultHeadRows))

	report := &Report{
		TestReport:      testReport,
		Validator:       v,
		Head:            head,
		DatasourceNames: dc.DatasourceNames(),
	}
	assets, err := dc.GetAvailableDataAssetNames(ctx)
	if err != nil {
		return nil, fmt.Errorf("get available data asset names: %w", err)
	}
	report.DataAssetNames = assets[DefaultDatasourceName][DefaultConnectorName]

	batches, err := dc.GetBatchList(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("get batch list: %w", err)
	}
	report.BatchCount = len(batches)
	if len(batches) > 0 {
		report.RowCount = batches[0].Data.Count()
	}
	return report, nil
}

// Expectations are the outcomes Check compares a Report against.
type Expectations struct {
	DatasourceNames []string
	DataAssetNames  []string
	BatchCount      int
	RowCount        int
}

// DefaultExpectations match the public taxi sample container.
func DefaultExpectations() Expectations {
	return Expectations{
		DatasourceNames: []string{DefaultDatasourceName},
		DataAssetNames: []string{
			"data/taxi_yellow_tripdata_samples/yellow_tripdata_sample_2019-01",
			"data/taxi_yellow_tripdata_samples/yellow_tripdata_sample_2019-02",
			"data/taxi_yellow_tripdata_samples/yellow_tripdata_sample_2019-03",
		},
		BatchCount: 1,
		RowCount:   10000,
	}
}

// Check returns every mismatch between r and want. Asset names are compared
// as sets.
func Check(r *Report, want Expectations) error {
	if r == nil {
		return fmt.Errorf("no report")
	}
	var err error
	if r.Validator == nil {
		err = multierr.Append(err, fmt.Errorf("no validator was created"))
	}
	if !reflect.DeepEqual(r.DatasourceNames, want.DatasourceNames) {
		err = multierr.Append(err, fmt.Errorf("datasources = %v, want %v", r.DatasourceNames, want.DatasourceNames))
	}
	if got, exp := sortedSet(r.DataAssetNames), sortedSet(want.DataAssetNames); !reflect.DeepEqual(got, exp) {
		err = multierr.Append(err, fmt.Errorf("data asset names = %v, want %v", got, exp))
	}
	if r.BatchCount != want.BatchCount {
		err = multierr.Append(err, fmt.Errorf("batch list length = %d, want %d", r.BatchCount, want.BatchCount))
	}
	if r.RowCount != want.RowCount {
		err = multierr.Append(err, fmt.Errorf("row count = %d, want %d", r.RowCount, want.RowCount))
	}
	return err
}

func sortedSet(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := []string{}
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
