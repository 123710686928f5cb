// Package connector defines the data connector contract and the factory
// registry that connector packages register into.
package connector

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/nucleus/dq-core/internal/batch"
	"github.com/nucleus/dq-core/internal/metrics"
	"github.com/nucleus/dq-core/internal/yamlconfig"
)

// ErrUnknownAsset is returned when a request names an asset the connector
// does not serve.
var ErrUnknownAsset = errors.New("unknown data asset")

// DataConnector discovers data assets and resolves batch requests into
// batch definitions and specs.
type DataConnector interface {
	Name() string
	ClassName() string

	// AvailableDataAssetNames returns asset names, sorted and unique.
	AvailableDataAssetNames(ctx context.Context) ([]string, error)

	// BatchDefinitions resolves req into definitions, already filtered,
	// sorted, indexed and limited.
	BatchDefinitions(ctx context.Context, req *batch.Request) ([]*batch.Definition, error)

	// BuildBatchSpec tells the engine how to load def. Passthrough from req
	// is merged over the connector's own.
	BuildBatchSpec(def *batch.Definition, req *batch.Request) (*batch.Spec, error)

	// SelfCheck summarizes what the connector can see.
	SelfCheck(ctx context.Context, maxExamples int) (*SelfCheckReport, error)
}

// SelfCheckReport describes a connector's view of its data.
type SelfCheckReport struct {
	ClassName                      string                 `json:"class_name" yaml:"class_name"`
	DataAssetCount                 int                    `json:"data_asset_count" yaml:"data_asset_count"`
	ExampleDataAssetNames          []string               `json:"example_data_asset_names" yaml:"example_data_asset_names"`
	DataAssets                     map[string]AssetReport `json:"data_assets" yaml:"data_assets"`
	UnmatchedDataReferenceCount    int                    `json:"unmatched_data_reference_count" yaml:"unmatched_data_reference_count"`
	ExampleUnmatchedDataReferences []string               `json:"example_unmatched_data_references" yaml:"example_unmatched_data_references"`
}

// AssetReport summarizes one asset within a SelfCheckReport.
type AssetReport struct {
	BatchDefinitionCount  int      `json:"batch_definition_count" yaml:"batch_definition_count"`
	ExampleDataReferences []string `json:"example_data_references" yaml:"example_data_references"`
}

// Options carries shared dependencies into connector factories.
type Options struct {
	DatasourceName string
	Logger         *zap.Logger
	Metrics        *metrics.Metrics

	// RateLimit and RateBurst bound blob requests made by the connector.
	RateLimit float64
	RateBurst int
}

// Factory builds a connector from its configuration block.
type Factory func(cfg *yamlconfig.DataConnectorConfig, opts Options) (DataConnector, error)

// Examples returns at most n items from list.
func Examples(list []string, n int) []string {
	if n < 0 || n > len(list) {
		n = len(list)
	}
	return append([]string{}, list[:n]...)
}
