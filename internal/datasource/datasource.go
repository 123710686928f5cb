// Package datasource binds an execution engine to a set of data connectors
// built from one datasource document.
package datasource

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/nucleus/dq-core/internal/batch"
	"github.com/nucleus/dq-core/internal/connector"
	_ "github.com/nucleus/dq-core/internal/connector/blob"
	_ "github.com/nucleus/dq-core/internal/connector/runtime"
	"github.com/nucleus/dq-core/internal/engine"
	"github.com/nucleus/dq-core/internal/metrics"
	"github.com/nucleus/dq-core/internal/yamlconfig"
)

// ErrConnectorNotFound is returned for an unknown data connector name.
var ErrConnectorNotFound = errors.New("data connector not found")

// Options configures New.
type Options struct {
	Logger   *zap.Logger
	Metrics  *metrics.Metrics
	Registry *connector.Registry

	// RateLimit and RateBurst bound blob requests per opened store.
	RateLimit float64
	RateBurst int
}

// Datasource is the runtime form of a DatasourceConfig.
type Datasource struct {
	Name   string
	Config *yamlconfig.DatasourceConfig
	Engine *engine.Engine

	connectors map[string]connector.DataConnector
	logger     *zap.Logger
	metrics    *metrics.Metrics
}

// New validates cfg and instantiates its engine and connectors.
func New(_ context.Context, cfg *yamlconfig.DatasourceConfig, opts Options) (*Datasource, error) {
	if cfg == nil {
		return nil, fmt.Errorf("datasource config is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid datasource %q: %w", cfg.Name, err)
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("datasource", cfg.Name))
	registry := opts.Registry
	if registry == nil {
		registry = connector.DefaultRegistry()
	}

	eng, err := engine.New(cfg.ExecutionEngine,
		engine.WithLogger(logger),
		engine.WithRateLimit(opts.RateLimit, opts.RateBurst))
	if err != nil {
		return nil, fmt.Errorf("datasource %s: %w", cfg.Name, err)
	}

	ds := &Datasource{
		Name:       cfg.Name,
		Config:     cfg,
		Engine:     eng,
		connectors: make(map[string]connector.DataConnector, len(cfg.DataConnectors)),
		logger:     logger,
		metrics:    opts.Metrics,
	}
	for _, name := range cfg.ConnectorNames() {
		dc, err := registry.Create(cfg.DataConnectors[name], connector.Options{
			DatasourceName: cfg.Name,
			Logger:         logger,
			Metrics:        opts.Metrics,
			RateLimit:      opts.RateLimit,
			RateBurst:      opts.RateBurst,
		})
		if err != nil {
			return nil, fmt.Errorf("datasource %s: data connector %s: %w", cfg.Name, name, err)
		}
		ds.connectors[name] = dc
	}
	return ds, nil
}

// ConnectorNames returns the data connector names, sorted.
func (d *Datasource) ConnectorNames() []string {
	return d.Config.ConnectorNames()
}

// Connector returns the named data connector.
func (d *Datasource) Connector(name string) (connector.DataConnector, error) {
	dc, ok := d.connectors[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s in datasource %s", ErrConnectorNotFound, name, d.Name)
	}
	return dc, nil
}

// AvailableDataAssetNames returns asset names per connector. With no names,
// every connector is listed.
func (d *Datasource) AvailableDataAssetNames(ctx context.Context, connectorNames ...string) (map[string][]string, error) {
	if len(connectorNames) == 0 {
		connectorNames = d.ConnectorNames()
	}
	out := make(map[string][]string, len(connectorNames))
	for _, name := range connectorNames {
		dc, err := d.Connector(name)
		if err != nil {
			return nil, err
		}
		names, err := dc.AvailableDataAssetNames(ctx)
		if err != nil {
			return nil, err
		}
		out[name] = names
	}
	return out, nil
}

// BatchList resolves req and loads every selected batch.
func (d *Datasource) BatchList(ctx context.Context, req *batch.Request) ([]*batch.Batch, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if req.DatasourceName != d.Name {
		return nil, fmt.Errorf("batch request names datasource %q, not %q", req.DatasourceName, d.Name)
	}
	dc, err := d.Connector(req.DataConnectorName)
	if err != nil {
		return nil, err
	}

	defs, err := dc.BatchDefinitions(ctx, req)
	if err != nil {
		return nil, err
	}

	batches := make([]*batch.Batch, 0, len(defs))
	for _, def := range defs {
		spec, err := dc.BuildBatchSpec(def, req)
		if err != nil {
			return nil, err
		}
		data, err := d.Engine.LoadBatchData(ctx, spec)
		if err != nil {
			return nil, fmt.Errorf("load batch %s: %w", def.DataReference, err)
		}
		b := &batch.Batch{
			ID:         def.ID(),
			Definition: def,
			Spec:       spec,
			Markers:    batch.Markers{IngestionTime: time.Now().UTC()},
			Data:       data,
		}
		method := spec.ReaderMethod
		if method == "" && spec.BatchData == nil {
			method = engine.InferReaderMethod(def.DataReference)
		}
		d.metrics.BatchLoaded(d.Name, method, data.Count())
		d.logger.Info("loaded batch",
			zap.String("data_connector", def.DataConnectorName),
			zap.String("data_asset_name", def.DataAssetName),
			zap.String("batch_id", b.ID),
			zap.Int("rows", data.Count()))
		batches = append(batches, b)
	}
	return batches, nil
}

// Report is the result of a datasource self check.
type Report struct {
	ExecutionEngine string                                `json:"execution_engine" yaml:"execution_engine"`
	DataConnectors  map[string]*connector.SelfCheckReport `json:"data_connectors" yaml:"data_connectors"`
}

// SelfCheck runs every connector's self check.
func (d *Datasource) SelfCheck(ctx context.Context, maxExamples int) (*Report, error) {
	report := &Report{
		ExecutionEngine: d.Engine.ClassName(),
		DataConnectors:  make(map[string]*connector.SelfCheckReport, len(d.connectors)),
	}
	for _, name := range d.ConnectorNames() {
		r, err := d.connectors[name].SelfCheck(ctx, maxExamples)
		if err != nil {
			return nil, fmt.Errorf("data connector %s: %w", name, err)
		}
		report.DataConnectors[name] = r
	}
	return report, nil
}
