// Package engine materializes batches into frames. It reads objects through
// blobstore, decodes them with a reader method, then applies splitting and
// sampling.
package engine

import (
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/nucleus/dq-core/internal/batch"
	"github.com/nucleus/dq-core/internal/blobstore"
	"github.com/nucleus/dq-core/internal/frame"
	"github.com/nucleus/dq-core/internal/yamlconfig"
)

// Reader method names.
const (
	ReaderCSV     = "csv"
	ReaderParquet = "parquet"
	ReaderJSON    = "json"
)

// Engine loads batch data.
type Engine struct {
	className      string
	readerDefaults map[string]any
	azure          *blobstore.AzureOptions
	s3             *blobstore.S3Options
	gcs            *blobstore.GCSOptions
	limiter        *rate.Limiter
	logger         *zap.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithRateLimit limits blob requests made while loading batches. One token
// bucket covers every object the engine reads.
func WithRateLimit(rps float64, burst int) Option {
	return func(e *Engine) {
		e.limiter = blobstore.NewLimiter(rps, burst)
	}
}

// New builds an engine from the execution_engine block.
func New(cfg *yamlconfig.ExecutionEngineConfig, opts ...Option) (*Engine, error) {
	if cfg == nil {
		return nil, fmt.Errorf("execution_engine config is required")
	}
	if !yamlconfig.IsEngineClass(cfg.ClassName) {
		return nil, fmt.Errorf("unknown execution engine class %q", cfg.ClassName)
	}
	e := &Engine{
		className:      cfg.ClassName,
		readerDefaults: map[string]any{},
		azure:          cfg.AzureOptions,
		s3:             cfg.S3Options,
		gcs:            cfg.GCSOptions,
		logger:         zap.NewNop(),
	}
	// Spark reads headerless unless told otherwise; pandas assumes a header row.
	switch cfg.ClassName {
	case yamlconfig.SparkEngineClass:
		e.readerDefaults["header"] = false
	case yamlconfig.PandasEngineClass:
		e.readerDefaults["header"] = true
	}
	for k, v := range cfg.ReaderDefaults {
		e.readerDefaults[k] = v
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// ClassName returns the configured engine class.
func (e *Engine) ClassName() string { return e.className }

// LoadBatchData materializes spec into a frame.
func (e *Engine) LoadBatchData(ctx context.Context, spec *batch.Spec) (*frame.Frame, error) {
	if spec == nil {
		return nil, fmt.Errorf("batch spec is required")
	}

	var (
		data *frame.Frame
		err  error
	)
	switch {
	case spec.BatchData != nil:
		data = spec.BatchData
	case spec.Location != nil:
		data, err = e.loadLocation(ctx, spec)
	case spec.Path != "":
		data, err = e.loadPath(ctx, spec)
	default:
		return nil, fmt.Errorf("batch spec has no data, location or path")
	}
	if err != nil {
		return nil, err
	}

	if spec.Splitting != nil {
		if data, err = Split(data, spec.Splitting); err != nil {
			return nil, err
		}
	}
	if spec.Sampling != nil {
		if data, err = Sample(data, spec.Sampling); err != nil {
			return nil, err
		}
	}
	return data, nil
}

func (e *Engine) loadLocation(ctx context.Context, spec *batch.Spec) (*frame.Frame, error) {
	loc := spec.Location
	storeCfg := e.storeConfig(loc)

	store, err := blobstore.Open(ctx, storeCfg)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", loc.URI(), err)
	}
	defer store.Close()

	raw, err := blobstore.ReadAll(ctx, store, loc.Key)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", loc.URI(), err)
	}
	e.logger.Debug("loaded batch object",
		zap.String("uri", loc.URI()),
		zap.Int("bytes", len(raw)))
	return e.decode(loc.Key, raw, spec)
}

// loadPath reads a runtime path: a local file or a provider URI
// (s3://, gs://, az://, file://, mem://).
func (e *Engine) loadPath(ctx context.Context, spec *batch.Spec) (*frame.Frame, error) {
	u, err := url.Parse(spec.Path)
	if err != nil || u.Scheme == "" || u.Scheme == "file" {
		p := spec.Path
		if err == nil && u.Scheme == "file" {
			p = u.Path
		}
		raw, readErr := os.ReadFile(p)
		if readErr != nil {
			return nil, fmt.Errorf("read %s: %w", p, readErr)
		}
		return e.decode(p, raw, spec)
	}

	provider, ok := map[string]string{
		"s3":  blobstore.ProviderS3,
		"s3a": blobstore.ProviderS3,
		"gs":  blobstore.ProviderGCS,
		"az":  blobstore.ProviderAzure,
		"mem": blobstore.ProviderMem,
	}[u.Scheme]
	if !ok {
		return nil, fmt.Errorf("unsupported path scheme %q", u.Scheme)
	}
	located := *spec
	located.Location = &batch.Location{
		Provider: provider,
		Bucket:   u.Host,
		Key:      strings.TrimPrefix(u.Path, "/"),
	}
	return e.loadLocation(ctx, &located)
}

// storeConfig merges the engine's provider options over the connector's.
func (e *Engine) storeConfig(loc *batch.Location) blobstore.Config {
	cfg := loc.Options
	cfg.Provider = loc.Provider
	cfg.Bucket = loc.Bucket
	if e.limiter != nil {
		cfg.Limiter = e.limiter
		cfg.RateLimit, cfg.RateBurst = 0, 0
	}
	switch loc.Provider {
	case blobstore.ProviderAzure:
		cfg.Azure = mergeAzure(cfg.Azure, e.azure)
	case blobstore.ProviderS3, blobstore.ProviderMinio:
		cfg.S3 = mergeS3(cfg.S3, e.s3)
	case blobstore.ProviderGCS:
		cfg.GCS = mergeGCS(cfg.GCS, e.gcs)
	}
	return cfg
}

func (e *Engine) decode(key string, raw []byte, spec *batch.Spec) (*frame.Frame, error) {
	name := key
	if strings.HasSuffix(strings.ToLower(name), ".gz") {
		zr, err := gzip.NewReader(bytes.NewReader(raw))
		if err != nil {
			return nil, fmt.Errorf("gunzip %s: %w", key, err)
		}
		raw, err = io.ReadAll(zr)
		if err != nil {
			return nil, fmt.Errorf("gunzip %s: %w", key, err)
		}
		name = strings.TrimSuffix(name, path.Ext(name))
	}

	method := spec.ReaderMethod
	if method == "" {
		method = InferReaderMethod(name)
	}
	opts := e.readerOptions(spec.ReaderOptions)

	switch method {
	case ReaderCSV:
		return ReadCSV(bytes.NewReader(raw), opts)
	case ReaderParquet:
		return ReadParquet(raw)
	case ReaderJSON:
		return ReadJSONLines(bytes.NewReader(raw))
	case "":
		return nil, fmt.Errorf("cannot infer reader_method for %s", key)
	default:
		return nil, fmt.Errorf("unsupported reader_method %q", method)
	}
}

func (e *Engine) readerOptions(over map[string]any) map[string]any {
	out := make(map[string]any, len(e.readerDefaults)+len(over))
	for k, v := range e.readerDefaults {
		out[k] = v
	}
	for k, v := range over {
		out[k] = v
	}
	return out
}

// InferReaderMethod maps a file extension to a reader method, or "".
func InferReaderMethod(key string) string {
	lower := strings.ToLower(key)
	lower = strings.TrimSuffix(lower, ".gz")
	switch path.Ext(lower) {
	case ".csv", ".tsv", ".txt":
		return ReaderCSV
	case ".parquet", ".pq":
		return ReaderParquet
	case ".json", ".jsonl", ".ndjson":
		return ReaderJSON
	default:
		return ""
	}
}

func mergeAzure(base, over *blobstore.AzureOptions) *blobstore.AzureOptions {
	if base == nil && over == nil {
		return nil
	}
	out := &blobstore.AzureOptions{}
	for _, src := range []*blobstore.AzureOptions{base, over} {
		if src == nil {
			continue
		}
		if src.AccountURL != "" {
			out.AccountURL = src.AccountURL
		}
		if src.ConnStr != "" {
			out.ConnStr = src.ConnStr
		}
		if src.Credential != "" {
			out.Credential = src.Credential
		}
		if src.UseManagedIdentity {
			out.UseManagedIdentity = true
		}
		if src.ManagedIdentityClientID != "" {
			out.ManagedIdentityClientID = src.ManagedIdentityClientID
		}
	}
	return out
}

func mergeS3(base, over *blobstore.S3Options) *blobstore.S3Options {
	if base == nil && over == nil {
		return nil
	}
	out := &blobstore.S3Options{}
	for _, src := range []*blobstore.S3Options{base, over} {
		if src == nil {
			continue
		}
		if src.EndpointURL != "" {
			out.EndpointURL = src.EndpointURL
		}
		if src.RegionName != "" {
			out.RegionName = src.RegionName
		}
		if src.AccessKeyID != "" {
			out.AccessKeyID = src.AccessKeyID
		}
		if src.SecretAccessKey != "" {
			out.SecretAccessKey = src.SecretAccessKey
		}
		if src.SessionToken != "" {
			out.SessionToken = src.SessionToken
		}
		if src.UsePathStyle {
			out.UsePathStyle = true
		}
	}
	return out
}

func mergeGCS(base, over *blobstore.GCSOptions) *blobstore.GCSOptions {
	if base == nil && over == nil {
		return nil
	}
	out := &blobstore.GCSOptions{}
	for _, src := range []*blobstore.GCSOptions{base, over} {
		if src == nil {
			continue
		}
		if src.Filename != "" {
			out.Filename = src.Filename
		}
		if src.Project != "" {
			out.Project = src.Project
		}
		if src.Endpoint != "" {
			out.Endpoint = src.Endpoint
		}
		if src.Anonymous {
			out.Anonymous = true
		}
	}
	return out
}
