// Package runtime implements RuntimeDataConnector: batches whose data (or
// path) is supplied with the request rather than discovered in storage.
package runtime

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/nucleus/dq-core/internal/batch"
	"github.com/nucleus/dq-core/internal/connector"
	"github.com/nucleus/dq-core/internal/yamlconfig"
)

// ClassName is the configured class_name of this connector.
const ClassName = "RuntimeDataConnector"

const inMemoryReference = "in_memory_data"

// Connector serves runtime batch requests.
type Connector struct {
	name           string
	datasourceName string
	identifiers    map[string]bool
	passthrough    *batch.Passthrough
	logger         *zap.Logger

	mu     sync.Mutex
	assets map[string]bool
}

// New builds a runtime connector.
func New(cfg *yamlconfig.DataConnectorConfig, opts connector.Options) (*Connector, error) {
	if len(cfg.BatchIdentifiers) == 0 {
		return nil, fmt.Errorf("%s %s: batch_identifiers is required", ClassName, cfg.Name)
	}
	pt, err := batch.ParsePassthrough(cfg.BatchSpecPassthrough)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", ClassName, cfg.Name, err)
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Connector{
		name:           cfg.Name,
		datasourceName: opts.DatasourceName,
		identifiers:    make(map[string]bool, len(cfg.BatchIdentifiers)),
		passthrough:    pt,
		logger:         logger.With(zap.String("data_connector", cfg.Name)),
		assets:         map[string]bool{},
	}
	for _, id := range cfg.BatchIdentifiers {
		c.identifiers[id] = true
	}
	return c, nil
}

func (c *Connector) Name() string      { return c.name }
func (c *Connector) ClassName() string { return ClassName }

// AvailableDataAssetNames returns the assets this connector has served so far.
func (c *Connector) AvailableDataAssetNames(_ context.Context) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	names := make([]string, 0, len(c.assets))
	for name := range c.assets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// BatchDefinitions returns the single definition described by a runtime request.
func (c *Connector) BatchDefinitions(_ context.Context, req *batch.Request) ([]*batch.Definition, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if !req.IsRuntime() {
		return nil, fmt.Errorf("%s %s requires runtime_parameters", ClassName, c.name)
	}
	for key := range req.BatchIdentifiers {
		if !c.identifiers[key] {
			return nil, fmt.Errorf("batch identifier %q is not configured for data connector %s", key, c.name)
		}
	}

	ref := req.Runtime.Path
	if ref == "" {
		ref = inMemoryReference
	}
	ids := make(map[string]string, len(req.BatchIdentifiers))
	for k, v := range req.BatchIdentifiers {
		ids[k] = v
	}

	c.mu.Lock()
	c.assets[req.DataAssetName] = true
	c.mu.Unlock()

	c.logger.Debug("resolved runtime batch",
		zap.String("data_asset_name", req.DataAssetName),
		zap.String("data_reference", ref))

	return []*batch.Definition{{
		DatasourceName:    c.datasourceName,
		DataConnectorName: c.name,
		DataAssetName:     req.DataAssetName,
		BatchIdentifiers:  ids,
		DataReference:     ref,
	}}, nil
}

// BuildBatchSpec carries the request's frame or path into a spec.
func (c *Connector) BuildBatchSpec(def *batch.Definition, req *batch.Request) (*batch.Spec, error) {
	if !req.IsRuntime() {
		return nil, fmt.Errorf("%s %s requires runtime_parameters", ClassName, c.name)
	}
	over, err := batch.ParsePassthrough(req.BatchSpecPassthrough)
	if err != nil {
		return nil, err
	}
	pt := c.passthrough.Merge(over)
	return &batch.Spec{
		Path:          req.Runtime.Path,
		BatchData:     req.Runtime.BatchData,
		ReaderMethod:  pt.ReaderMethod,
		ReaderOptions: pt.ReaderOptions,
		Sampling:      pt.Sampling,
		Splitting:     pt.Splitting,
	}, nil
}

// SelfCheck reports the assets served so far. Runtime connectors have no
// unmatched references.
func (c *Connector) SelfCheck(ctx context.Context, maxExamples int) (*connector.SelfCheckReport, error) {
	names, _ := c.AvailableDataAssetNames(ctx)
	report := &connector.SelfCheckReport{
		ClassName:                      ClassName,
		DataAssetCount:                 len(names),
		ExampleDataAssetNames:          connector.Examples(names, maxExamples),
		DataAssets:                     map[string]connector.AssetReport{},
		ExampleUnmatchedDataReferences: []string{},
	}
	for _, name := range report.ExampleDataAssetNames {
		report.DataAssets[name] = connector.AssetReport{ExampleDataReferences: []string{}}
	}
	return report, nil
}

func init() {
	connector.Register(ClassName, func(cfg *yamlconfig.DataConnectorConfig, opts connector.Options) (connector.DataConnector, error) {
		return New(cfg, opts)
	})
}
