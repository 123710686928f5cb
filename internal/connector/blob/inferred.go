package blob

import (
	"context"
	"fmt"
	"sort"

	"github.com/nucleus/dq-core/internal/batch"
	"github.com/nucleus/dq-core/internal/connector"
	"github.com/nucleus/dq-core/internal/yamlconfig"
)

// InferredConnector derives asset names from object keys with the
// connector's default_regex.
type InferredConnector struct {
	*base
	matcher *matcher
}

// mapping is a data reference resolved into an asset and identifiers.
type mapping struct {
	ref   string
	asset string
	ids   map[string]string
}

// NewInferred builds an inferred-asset connector for class.
func NewInferred(cfg *yamlconfig.DataConnectorConfig, class yamlconfig.ConnectorClass, opts connector.Options) (*InferredConnector, error) {
	if cfg.DefaultRegex == nil || cfg.DefaultRegex.Pattern == "" {
		return nil, fmt.Errorf("%s %s: default_regex.pattern is required", class.Name, cfg.Name)
	}
	b, err := newBase(cfg, class, opts)
	if err != nil {
		return nil, err
	}
	m, err := newMatcher(cfg.DefaultRegex.Pattern, cfg.DefaultRegex.GroupNames)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", class.Name, cfg.Name, err)
	}
	hasAsset := false
	for _, g := range cfg.DefaultRegex.GroupNames {
		hasAsset = hasAsset || g == yamlconfig.DataAssetNameGroup
	}
	if !hasAsset {
		return nil, fmt.Errorf("%s %s: group_names must include %s", class.Name, cfg.Name, yamlconfig.DataAssetNameGroup)
	}
	return &InferredConnector{base: b, matcher: m}, nil
}

func (c *InferredConnector) mapAll(ctx context.Context) ([]mapping, []string, error) {
	keys, err := c.listKeys(ctx, c.prefix)
	if err != nil {
		return nil, nil, err
	}
	var (
		matched   []mapping
		unmatched []string
	)
	for _, key := range keys {
		groups, ok := c.matcher.match(key)
		if !ok {
			unmatched = append(unmatched, key)
			continue
		}
		asset := groups[yamlconfig.DataAssetNameGroup]
		delete(groups, yamlconfig.DataAssetNameGroup)
		matched = append(matched, mapping{ref: key, asset: asset, ids: groups})
	}
	return matched, unmatched, nil
}

// AvailableDataAssetNames lists the distinct inferred asset names, sorted.
func (c *InferredConnector) AvailableDataAssetNames(ctx context.Context) ([]string, error) {
	matched, _, err := c.mapAll(ctx)
	if err != nil {
		return nil, err
	}
	return assetNames(matched), nil
}

// BatchDefinitions resolves req against the listed objects.
func (c *InferredConnector) BatchDefinitions(ctx context.Context, req *batch.Request) ([]*batch.Definition, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	matched, _, err := c.mapAll(ctx)
	if err != nil {
		return nil, err
	}
	known := false
	defs := make([]*batch.Definition, 0, len(matched))
	for _, m := range matched {
		known = known || m.asset == req.DataAssetName
		defs = append(defs, c.definition(m))
	}
	if !known {
		return nil, fmt.Errorf("%w: %s in data connector %s", connector.ErrUnknownAsset, req.DataAssetName, c.name)
	}
	return connector.SelectDefinitions(defs, req, c.sorters)
}

// BuildBatchSpec points the engine at the definition's object.
func (c *InferredConnector) BuildBatchSpec(def *batch.Definition, req *batch.Request) (*batch.Spec, error) {
	return c.buildSpec(def, req, nil)
}

// SelfCheck lists the container and summarizes what matched.
func (c *InferredConnector) SelfCheck(ctx context.Context, maxExamples int) (*connector.SelfCheckReport, error) {
	matched, unmatched, err := c.mapAll(ctx)
	if err != nil {
		return nil, err
	}
	return buildReport(c.className, matched, unmatched, maxExamples), nil
}

func (c *InferredConnector) definition(m mapping) *batch.Definition {
	return &batch.Definition{
		DatasourceName:    c.datasourceName,
		DataConnectorName: c.name,
		DataAssetName:     m.asset,
		BatchIdentifiers:  m.ids,
		DataReference:     m.ref,
	}
}

func assetNames(matched []mapping) []string {
	seen := map[string]bool{}
	var names []string
	for _, m := range matched {
		if !seen[m.asset] {
			seen[m.asset] = true
			names = append(names, m.asset)
		}
	}
	sort.Strings(names)
	return names
}

func buildReport(className string, matched []mapping, unmatched []string, maxExamples int) *connector.SelfCheckReport {
	names := assetNames(matched)
	refs := map[string][]string{}
	for _, m := range matched {
		refs[m.asset] = append(refs[m.asset], m.ref)
	}

	report := &connector.SelfCheckReport{
		ClassName:                      className,
		DataAssetCount:                 len(names),
		ExampleDataAssetNames:          connector.Examples(names, maxExamples),
		DataAssets:                     map[string]connector.AssetReport{},
		UnmatchedDataReferenceCount:    len(unmatched),
		ExampleUnmatchedDataReferences: connector.Examples(unmatched, maxExamples),
	}
	for _, name := range report.ExampleDataAssetNames {
		report.DataAssets[name] = connector.AssetReport{
			BatchDefinitionCount:  len(refs[name]),
			ExampleDataReferences: connector.Examples(refs[name], maxExamples),
		}
	}
	return report
}
