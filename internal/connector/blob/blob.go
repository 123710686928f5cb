// Package blob implements data connectors over object storage: the
// inferred-asset and configured-asset families for Azure Blob Storage, S3,
// GCS and the local filesystem.
package blob

import (
	"context"
	"fmt"
	"path"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/nucleus/dq-core/internal/batch"
	"github.com/nucleus/dq-core/internal/blobstore"
	"github.com/nucleus/dq-core/internal/connector"
	"github.com/nucleus/dq-core/internal/metrics"
	"github.com/nucleus/dq-core/internal/yamlconfig"
)

// base carries what every blob connector shares: where to list, how to
// sort, and the connector-level passthrough.
type base struct {
	name           string
	className      string
	datasourceName string
	storeCfg       blobstore.Config
	prefix         string
	glob           string
	sorters        []connector.Sorter
	passthrough    *batch.Passthrough
	logger         *zap.Logger
	metrics        *metrics.Metrics
}

func newBase(cfg *yamlconfig.DataConnectorConfig, class yamlconfig.ConnectorClass, opts connector.Options) (*base, error) {
	storeCfg, prefix, err := StoreConfig(cfg, class.Provider)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", class.Name, cfg.Name, err)
	}
	storeCfg.Limiter = blobstore.NewLimiter(opts.RateLimit, opts.RateBurst)

	sorters, err := connector.NewSorters(cfg.Sorters)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", class.Name, cfg.Name, err)
	}
	pt, err := batch.ParsePassthrough(cfg.BatchSpecPassthrough)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", class.Name, cfg.Name, err)
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &base{
		name:           cfg.Name,
		className:      class.Name,
		datasourceName: opts.DatasourceName,
		storeCfg:       storeCfg,
		prefix:         prefix,
		glob:           cfg.GlobDirective,
		sorters:        sorters,
		passthrough:    pt,
		logger:         logger.With(zap.String("data_connector", cfg.Name)),
		metrics:        opts.Metrics,
	}, nil
}

// StoreConfig maps a connector block to the blobstore config and listing
// prefix for provider.
func StoreConfig(cfg *yamlconfig.DataConnectorConfig, provider string) (blobstore.Config, string, error) {
	out := blobstore.Config{Provider: provider}
	switch provider {
	case blobstore.ProviderAzure:
		if cfg.Container == "" {
			return out, "", fmt.Errorf("container is required")
		}
		out.Bucket = cfg.Container
		out.Azure = cfg.AzureOptions
		return out, cfg.NameStartsWith, nil
	case blobstore.ProviderS3:
		if cfg.Bucket == "" {
			return out, "", fmt.Errorf("bucket is required")
		}
		out.Bucket = cfg.Bucket
		out.S3 = cfg.Boto3Options
		return out, cfg.Prefix, nil
	case blobstore.ProviderGCS:
		out.Bucket = cfg.BucketOrName
		if out.Bucket == "" {
			out.Bucket = cfg.Bucket
		}
		if out.Bucket == "" {
			return out, "", fmt.Errorf("bucket_or_name is required")
		}
		out.GCS = cfg.GCSOptions
		return out, cfg.Prefix, nil
	case blobstore.ProviderFile:
		if cfg.BaseDirectory == "" {
			return out, "", fmt.Errorf("base_directory is required")
		}
		out.Bucket = cfg.BaseDirectory
		return out, cfg.Prefix, nil
	default:
		return out, "", fmt.Errorf("unsupported provider %q", provider)
	}
}

func (b *base) Name() string      { return b.name }
func (b *base) ClassName() string { return b.className }

// listKeys returns object keys under prefix, skipping directory markers and
// keys rejected by the glob directive.
func (b *base) listKeys(ctx context.Context, prefix string) ([]string, error) {
	start := time.Now()
	store, err := blobstore.Open(ctx, b.storeCfg)
	if err != nil {
		return nil, fmt.Errorf("data connector %s: %w", b.name, err)
	}
	defer store.Close()

	objects, err := store.List(ctx, prefix)
	b.metrics.ObserveConnectorList(b.className, time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("data connector %s: list %q: %w", b.name, prefix, err)
	}

	keys := make([]string, 0, len(objects))
	for _, obj := range objects {
		if strings.HasSuffix(obj.Key, "/") {
			continue
		}
		if b.glob != "" && !matchGlob(b.glob, obj.Key) {
			continue
		}
		keys = append(keys, obj.Key)
	}
	b.logger.Debug("listed data references",
		zap.String("bucket", b.storeCfg.Bucket),
		zap.String("prefix", prefix),
		zap.Int("count", len(keys)))
	return keys, nil
}

func (b *base) buildSpec(def *batch.Definition, req *batch.Request, assetPassthrough *batch.Passthrough) (*batch.Spec, error) {
	if def == nil || def.DataReference == "" {
		return nil, fmt.Errorf("batch definition has no data reference")
	}
	var over *batch.Passthrough
	if req != nil {
		var err error
		if over, err = batch.ParsePassthrough(req.BatchSpecPassthrough); err != nil {
			return nil, err
		}
	}
	pt := b.passthrough.Merge(assetPassthrough).Merge(over)

	splitting := pt.Splitting
	if splitting != nil && splitting.Kwargs["batch_identifiers"] == nil {
		kwargs := make(map[string]any, len(splitting.Kwargs)+1)
		for k, v := range splitting.Kwargs {
			kwargs[k] = v
		}
		ids := make(map[string]any, len(def.BatchIdentifiers))
		for k, v := range def.BatchIdentifiers {
			ids[k] = v
		}
		kwargs["batch_identifiers"] = ids
		splitting = &batch.Method{Name: splitting.Name, Kwargs: kwargs}
	}

	return &batch.Spec{
		Location: &batch.Location{
			Provider: b.storeCfg.Provider,
			Bucket:   b.storeCfg.Bucket,
			Key:      def.DataReference,
			Options:  b.storeCfg,
		},
		ReaderMethod:  pt.ReaderMethod,
		ReaderOptions: pt.ReaderOptions,
		Sampling:      pt.Sampling,
		Splitting:     splitting,
	}, nil
}

// matcher applies one regex to data references.
type matcher struct {
	re     *regexp.Regexp
	groups []string
}

func newMatcher(pattern string, groups []string) (*matcher, error) {
	re, err := yamlconfig.CompileAnchored(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
	}
	if len(groups) > re.NumSubexp() {
		return nil, fmt.Errorf("pattern %q has %d capture groups, %d group_names given",
			pattern, re.NumSubexp(), len(groups))
	}
	return &matcher{re: re, groups: groups}, nil
}

// match returns the named groups of ref, or false when ref does not match.
func (m *matcher) match(ref string) (map[string]string, bool) {
	sub := m.re.FindStringSubmatch(ref)
	if sub == nil {
		return nil, false
	}
	out := make(map[string]string, len(m.groups))
	for i, name := range m.groups {
		out[name] = sub[i+1]
	}
	return out, true
}

// matchGlob matches key, or its base name when the pattern has no
// separator. "**/" prefixes match any depth.
func matchGlob(pattern, key string) bool {
	pattern = strings.TrimPrefix(pattern, "**/")
	if !strings.Contains(pattern, "/") {
		key = path.Base(key)
	}
	ok, err := path.Match(pattern, key)
	return err == nil && ok
}
