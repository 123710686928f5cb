// Package datacontext is the entry point of dq-core: it owns registered
// datasources, the suite and validation stores, and checkpoints.
package datacontext

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/nucleus/dq-core/internal/batch"
	"github.com/nucleus/dq-core/internal/datasource"
	"github.com/nucleus/dq-core/internal/expectation"
	"github.com/nucleus/dq-core/internal/metrics"
	"github.com/nucleus/dq-core/internal/store"
	"github.com/nucleus/dq-core/internal/validator"
	"github.com/nucleus/dq-core/internal/yamlconfig"
)

var (
	ErrDatasourceNotFound = errors.New("datasource not found")
	ErrDatasourceExists   = errors.New("datasource already exists")
	ErrSuiteNotFound      = store.ErrSuiteNotFound
)

// DefaultSelfCheckExamples bounds the example lists in a TestYAMLConfig report.
const DefaultSelfCheckExamples = 3

type options struct {
	root      string
	logger    *zap.Logger
	metrics   *metrics.Metrics
	vars      map[string]string
	rateLimit float64
	rateBurst int
}

// Option configures Get.
type Option func(*options)

// WithRoot points the context at a project directory.
func WithRoot(root string) Option {
	return func(o *options) { o.root = root }
}

// WithLogger sets the logger shared by datasources and validators.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithMetrics records loads and validations.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithConfigVariables supplies ${VAR} values. They take precedence over the
// project file's config_variables and the environment.
func WithConfigVariables(vars map[string]string) Option {
	return func(o *options) {
		for k, v := range vars {
			o.vars[k] = v
		}
	}
}

// WithRateLimit bounds blob requests per opened store.
func WithRateLimit(rps float64, burst int) Option {
	return func(o *options) {
		o.rateLimit = rps
		o.rateBurst = burst
	}
}

// DataContext holds datasources, stores and checkpoints. A context with a
// root persists datasource and checkpoint changes to dq.yml.
type DataContext struct {
	mu          sync.RWMutex
	root        string
	project     *ProjectConfig
	datasources map[string]*datasource.Datasource

	suites      *store.SuiteStore
	validations *store.ValidationStore
	backends    []store.Backend

	vars    map[string]string
	logger  *zap.Logger
	metrics *metrics.Metrics
	dsOpts  datasource.Options
}

// Get returns a file-backed context when the root holds dq.yml, otherwise an
// ephemeral one with in-memory stores.
func Get(ctx context.Context, opts ...Option) (*DataContext, error) {
	o := &options{logger: zap.NewNop(), vars: map[string]string{}}
	for _, opt := range opts {
		opt(o)
	}

	project := ephemeralProjectConfig()
	root := ""
	if o.root != "" {
		cfg, err := LoadProjectConfig(o.root)
		switch {
		case err == nil:
			project = cfg
			root = o.root
		case errors.Is(err, os.ErrNotExist):
			o.logger.Debug("no project file, using an ephemeral context", zap.String("root", o.root))
		default:
			return nil, err
		}
	}
	return newContext(ctx, root, project, o)
}

// Init writes a default dq.yml under root, if none exists, and opens it.
func Init(ctx context.Context, root string, opts ...Option) (*DataContext, error) {
	if root == "" {
		return nil, errors.New("root is required")
	}
	if _, err := os.Stat(filepath.Join(root, ProjectFileName)); errors.Is(err, os.ErrNotExist) {
		if err := WriteProjectConfig(root, DefaultProjectConfig()); err != nil {
			return nil, fmt.Errorf("init project: %w", err)
		}
	} else if err != nil {
		return nil, err
	}
	return Get(ctx, append(opts, WithRoot(root))...)
}

func newContext(ctx context.Context, root string, project *ProjectConfig, o *options) (*DataContext, error) {
	vars := make(map[string]string, len(project.ConfigVariables)+len(o.vars))
	for k, v := range project.ConfigVariables {
		vars[k] = v
	}
	for k, v := range o.vars {
		vars[k] = v
	}

	dc := &DataContext{
		root:        root,
		project:     project,
		datasources: map[string]*datasource.Datasource{},
		vars:        vars,
		logger:      o.logger,
		metrics:     o.metrics,
		dsOpts: datasource.Options{
			Logger:    o.logger,
			Metrics:   o.metrics,
			RateLimit: o.rateLimit,
			RateBurst: o.rateBurst,
		},
	}

	suitesBackend, err := store.Open(ctx, project.Stores.Expectations.ResolvePaths(root))
	if err != nil {
		return nil, fmt.Errorf("open expectations store: %w", err)
	}
	dc.backends = append(dc.backends, suitesBackend)
	validationsBackend, err := store.Open(ctx, project.Stores.Validations.ResolvePaths(root))
	if err != nil {
		_ = dc.Close()
		return nil, fmt.Errorf("open validations store: %w", err)
	}
	dc.backends = append(dc.backends, validationsBackend)
	dc.suites = store.NewSuiteStore(suitesBackend)
	dc.validations = store.NewValidationStore(validationsBackend)

	for _, cfg := range project.Datasources {
		ds, err := dc.instantiate(ctx, cfg)
		if err != nil {
			_ = dc.Close()
			return nil, err
		}
		dc.datasources[cfg.Name] = ds
	}
	dc.logger.Info("data context ready",
		zap.String("root", root),
		zap.Int("datasources", len(project.Datasources)))
	return dc, nil
}

// Root returns the project directory, or "" for an ephemeral context.
func (dc *DataContext) Root() string { return dc.root }

// IsEphemeral reports whether changes stay in memory.
func (dc *DataContext) IsEphemeral() bool { return dc.root == "" }

// Suites returns the expectation suite store.
func (dc *DataContext) Suites() *store.SuiteStore { return dc.suites }

// Validations returns the validation result store.
func (dc *DataContext) Validations() *store.ValidationStore { return dc.validations }

// Close releases the store backends.
func (dc *DataContext) Close() error {
	var err error
	for _, b := range dc.backends {
		err = multierr.Append(err, b.Close())
	}
	dc.backends = nil
	return err
}

// resolve substitutes config variables into a copy of cfg.
func (dc *DataContext) resolve(cfg *yamlconfig.DatasourceConfig) (*yamlconfig.DatasourceConfig, error) {
	doc, err := yamlconfig.MarshalDatasource(cfg)
	if err != nil {
		return nil, err
	}
	return yamlconfig.ParseDatasource(yamlconfig.SubstituteVariables(doc, dc.vars))
}

func (dc *DataContext) instantiate(ctx context.Context, cfg *yamlconfig.DatasourceConfig) (*datasource.Datasource, error) {
	resolved, err := dc.resolve(cfg)
	if err != nil {
		return nil, fmt.Errorf("datasource %s: %w", cfg.Name, err)
	}
	return datasource.New(ctx, resolved, dc.dsOpts)
}

func (dc *DataContext) persist() error {
	if dc.root == "" {
		return nil
	}
	return WriteProjectConfig(dc.root, dc.project)
}

// TestReport is the outcome of TestYAMLConfig.
type TestReport struct {
	Name      string             `json:"name" yaml:"name"`
	ClassName string             `json:"class_name" yaml:"class_name"`
	Report    *datasource.Report `json:"report" yaml:"report"`
}

// TestYAMLConfig substitutes variables, parses, validates and instantiates a
// datasource document without registering it, then runs its self check.
func (dc *DataContext) TestYAMLConfig(ctx context.Context, doc string) (*TestReport, error) {
	cfg, err := yamlconfig.ParseDatasource(yamlconfig.SubstituteVariables(doc, dc.vars))
	if err != nil {
		return nil, err
	}
	ds, err := datasource.New(ctx, cfg, dc.dsOpts)
	if err != nil {
		return nil, err
	}
	report, err := ds.SelfCheck(ctx, DefaultSelfCheckExamples)
	if err != nil {
		return nil, fmt.Errorf("self check %s: %w", cfg.Name, err)
	}

	for _, name := range ds.ConnectorNames() {
		r := report.DataConnectors[name]
		dc.logger.Info("data connector self check",
			zap.String("datasource", cfg.Name),
			zap.String("data_connector", name),
			zap.String("class_name", r.ClassName),
			zap.Int("data_asset_count", r.DataAssetCount),
			zap.Strings("example_data_asset_names", r.ExampleDataAssetNames),
			zap.Int("unmatched_data_reference_count", r.UnmatchedDataReferenceCount))
	}
	return &TestReport{Name: cfg.Name, ClassName: cfg.ClassName, Report: report}, nil
}

// AddDatasource registers cfg. A duplicate name is an error.
func (dc *DataContext) AddDatasource(ctx context.Context, cfg *yamlconfig.DatasourceConfig) (*datasource.Datasource, error) {
	return dc.addDatasource(ctx, cfg, false)
}

// AddOrUpdateDatasource registers cfg, replacing a datasource of the same
// name in place.
func (dc *DataContext) AddOrUpdateDatasource(ctx context.Context, cfg *yamlconfig.DatasourceConfig) (*datasource.Datasource, error) {
	return dc.addDatasource(ctx, cfg, true)
}

// AddDatasourceYAML parses doc and registers it with AddDatasource.
// Variables are kept unresolved in the stored document.
func (dc *DataContext) AddDatasourceYAML(ctx context.Context, doc string) (*datasource.Datasource, error) {
	cfg, err := yamlconfig.ParseDatasource(doc)
	if err != nil {
		return nil, err
	}
	return dc.AddDatasource(ctx, cfg)
}

func (dc *DataContext) addDatasource(ctx context.Context, cfg *yamlconfig.DatasourceConfig, replace bool) (*datasource.Datasource, error) {
	if cfg == nil || cfg.Name == "" {
		return nil, errors.New("datasource name is required")
	}
	stored, err := cfg.Clone()
	if err != nil {
		return nil, err
	}

	dc.mu.Lock()
	defer dc.mu.Unlock()

	idx := dc.project.Datasources.Index(cfg.Name)
	if idx >= 0 && !replace {
		return nil, fmt.Errorf("%w: %s", ErrDatasourceExists, cfg.Name)
	}
	ds, err := dc.instantiate(ctx, stored)
	if err != nil {
		return nil, err
	}

	prev := dc.project.Datasources
	if idx >= 0 {
		next := append(Datasources(nil), prev...)
		next[idx] = stored
		dc.project.Datasources = next
	} else {
		dc.project.Datasources = append(append(Datasources(nil), prev...), stored)
	}
	if err := dc.persist(); err != nil {
		dc.project.Datasources = prev
		return nil, fmt.Errorf("persist datasource %s: %w", cfg.Name, err)
	}
	dc.datasources[cfg.Name] = ds
	dc.logger.Info("added datasource", zap.String("datasource", cfg.Name), zap.Bool("replaced", idx >= 0))
	return ds, nil
}

// DeleteDatasource removes a registered datasource.
func (dc *DataContext) DeleteDatasource(_ context.Context, name string) error {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	idx := dc.project.Datasources.Index(name)
	if idx < 0 {
		return fmt.Errorf("%w: %s", ErrDatasourceNotFound, name)
	}
	prev := dc.project.Datasources
	next := append(Datasources(nil), prev[:idx]...)
	dc.project.Datasources = append(next, prev[idx+1:]...)
	if err := dc.persist(); err != nil {
		dc.project.Datasources = prev
		return fmt.Errorf("persist datasource removal %s: %w", name, err)
	}
	delete(dc.datasources, name)
	dc.logger.Info("deleted datasource", zap.String("datasource", name))
	return nil
}

// ListDatasources returns the registered datasource documents in
// registration order, with variables unresolved.
func (dc *DataContext) ListDatasources() []*yamlconfig.DatasourceConfig {
	dc.mu.RLock()
	defer dc.mu.RUnlock()
	return append([]*yamlconfig.DatasourceConfig(nil), dc.project.Datasources...)
}

// DatasourceNames returns registered names in registration order.
func (dc *DataContext) DatasourceNames() []string {
	dc.mu.RLock()
	defer dc.mu.RUnlock()
	names := make([]string, 0, len(dc.project.Datasources))
	for _, cfg := range dc.project.Datasources {
		names = append(names, cfg.Name)
	}
	return names
}

// GetDatasource returns the named datasource.
func (dc *DataContext) GetDatasource(name string) (*datasource.Datasource, error) {
	dc.mu.RLock()
	defer dc.mu.RUnlock()
	ds, ok := dc.datasources[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrDatasourceNotFound, name)
	}
	return ds, nil
}

// GetAvailableDataAssetNames lists assets per datasource and connector. With
// no names, every datasource is listed.
func (dc *DataContext) GetAvailableDataAssetNames(ctx context.Context, datasourceNames ...string) (map[string]map[string][]string, error) {
	if len(datasourceNames) == 0 {
		datasourceNames = dc.DatasourceNames()
	}
	out := make(map[string]map[string][]string, len(datasourceNames))
	for _, name := range datasourceNames {
		ds, err := dc.GetDatasource(name)
		if err != nil {
			return nil, err
		}
		assets, err := ds.AvailableDataAssetNames(ctx)
		if err != nil {
			return nil, fmt.Errorf("datasource %s: %w", name, err)
		}
		out[name] = assets
	}
	return out, nil
}

// AddOrUpdateExpectationSuite stores an empty suite under name, replacing
// any existing one.
func (dc *DataContext) AddOrUpdateExpectationSuite(ctx context.Context, name string) (*expectation.Suite, error) {
	suite := expectation.NewSuite(name)
	if err := dc.suites.Save(ctx, suite); err != nil {
		return nil, err
	}
	dc.logger.Info("saved expectation suite", zap.String("expectation_suite_name", name))
	return suite, nil
}

// SaveExpectationSuite stores suite as is.
func (dc *DataContext) SaveExpectationSuite(ctx context.Context, suite *expectation.Suite) error {
	return dc.suites.Save(ctx, suite)
}

// GetExpectationSuite loads a suite; unknown names return ErrSuiteNotFound.
func (dc *DataContext) GetExpectationSuite(ctx context.Context, name string) (*expectation.Suite, error) {
	return dc.suites.Get(ctx, name)
}

// ListExpectationSuiteNames returns stored suite names, sorted.
func (dc *DataContext) ListExpectationSuiteNames(ctx context.Context) ([]string, error) {
	return dc.suites.List(ctx)
}

// DeleteExpectationSuite removes a stored suite.
func (dc *DataContext) DeleteExpectationSuite(ctx context.Context, name string) error {
	return dc.suites.Delete(ctx, name)
}

// GetBatchList loads every batch selected by req.
func (dc *DataContext) GetBatchList(ctx context.Context, req *batch.Request) ([]*batch.Batch, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	ds, err := dc.GetDatasource(req.DatasourceName)
	if err != nil {
		return nil, err
	}
	return ds.BatchList(ctx, req)
}

// GetValidator loads the batches of req and binds them to the named suite.
func (dc *DataContext) GetValidator(ctx context.Context, req *batch.Request, suiteName string) (*validator.Validator, error) {
	suite, err := dc.suites.Get(ctx, suiteName)
	if err != nil {
		return nil, err
	}
	batches, err := dc.GetBatchList(ctx, req)
	if err != nil {
		return nil, err
	}
	if len(batches) == 0 {
		return nil, fmt.Errorf("batch request for %s/%s matched no batches", req.DataConnectorName, req.DataAssetName)
	}
	return validator.New(batches, suite,
		validator.WithLogger(dc.logger),
		validator.WithMetrics(dc.metrics),
		validator.WithSuiteSaver(dc.suites))
}
