package blob

import (
	"context"
	"fmt"
	"sort"

	"github.com/nucleus/dq-core/internal/batch"
	"github.com/nucleus/dq-core/internal/connector"
	"github.com/nucleus/dq-core/internal/yamlconfig"
)

// ConfiguredConnector serves only the assets declared under assets.
type ConfiguredConnector struct {
	*base
	assets     map[string]*configuredAsset
	assetNames []string
}

type configuredAsset struct {
	name        string
	prefix      string
	matcher     *matcher
	passthrough *batch.Passthrough
}

// NewConfigured builds a configured-asset connector for class.
func NewConfigured(cfg *yamlconfig.DataConnectorConfig, class yamlconfig.ConnectorClass, opts connector.Options) (*ConfiguredConnector, error) {
	if len(cfg.Assets) == 0 {
		return nil, fmt.Errorf("%s %s: assets is required", class.Name, cfg.Name)
	}
	b, err := newBase(cfg, class, opts)
	if err != nil {
		return nil, err
	}
	c := &ConfiguredConnector{base: b, assets: map[string]*configuredAsset{}}
	for name, asset := range cfg.Assets {
		pattern, groups := cfg.AssetRegex(asset)
		m, err := newMatcher(pattern, groups)
		if err != nil {
			return nil, fmt.Errorf("%s %s: asset %s: %w", class.Name, cfg.Name, name, err)
		}
		a := &configuredAsset{name: name, prefix: b.prefix, matcher: m}
		if asset != nil {
			if p := firstNonEmpty(asset.Prefix, asset.NameStartsWith); p != "" {
				a.prefix = p
			}
			if a.passthrough, err = batch.ParsePassthrough(asset.BatchSpecPassthrough); err != nil {
				return nil, fmt.Errorf("%s %s: asset %s: %w", class.Name, cfg.Name, name, err)
			}
		}
		c.assets[name] = a
		c.assetNames = append(c.assetNames, name)
	}
	sort.Strings(c.assetNames)
	return c, nil
}

// AvailableDataAssetNames returns the declared assets.
func (c *ConfiguredConnector) AvailableDataAssetNames(_ context.Context) ([]string, error) {
	return append([]string{}, c.assetNames...), nil
}

func (c *ConfiguredConnector) mapAsset(ctx context.Context, a *configuredAsset) ([]mapping, error) {
	keys, err := c.listKeys(ctx, a.prefix)
	if err != nil {
		return nil, err
	}
	var out []mapping
	for _, key := range keys {
		if ids, ok := a.matcher.match(key); ok {
			delete(ids, yamlconfig.DataAssetNameGroup)
			out = append(out, mapping{ref: key, asset: a.name, ids: ids})
		}
	}
	return out, nil
}

// BatchDefinitions lists the requested asset and selects from its matches.
func (c *ConfiguredConnector) BatchDefinitions(ctx context.Context, req *batch.Request) ([]*batch.Definition, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	a, ok := c.assets[req.DataAssetName]
	if !ok {
		return nil, fmt.Errorf("%w: %s in data connector %s", connector.ErrUnknownAsset, req.DataAssetName, c.name)
	}
	matched, err := c.mapAsset(ctx, a)
	if err != nil {
		return nil, err
	}
	defs := make([]*batch.Definition, 0, len(matched))
	for _, m := range matched {
		defs = append(defs, &batch.Definition{
			DatasourceName:    c.datasourceName,
			DataConnectorName: c.name,
			DataAssetName:     m.asset,
			BatchIdentifiers:  m.ids,
			DataReference:     m.ref,
		})
	}
	return connector.SelectDefinitions(defs, req, c.sorters)
}

// BuildBatchSpec layers asset passthrough between connector and request.
func (c *ConfiguredConnector) BuildBatchSpec(def *batch.Definition, req *batch.Request) (*batch.Spec, error) {
	var assetPT *batch.Passthrough
	if a, ok := c.assets[def.DataAssetName]; ok {
		assetPT = a.passthrough
	}
	return c.buildSpec(def, req, assetPT)
}

// SelfCheck lists each asset; keys under the connector prefix matched by no
// asset are unmatched.
func (c *ConfiguredConnector) SelfCheck(ctx context.Context, maxExamples int) (*connector.SelfCheckReport, error) {
	var matched []mapping
	claimed := map[string]bool{}
	for _, name := range c.assetNames {
		m, err := c.mapAsset(ctx, c.assets[name])
		if err != nil {
			return nil, err
		}
		for _, mm := range m {
			claimed[mm.ref] = true
		}
		matched = append(matched, m...)
	}

	keys, err := c.listKeys(ctx, c.prefix)
	if err != nil {
		return nil, err
	}
	var unmatched []string
	for _, key := range keys {
		if !claimed[key] {
			unmatched = append(unmatched, key)
		}
	}

	report := buildReport(c.className, matched, unmatched, maxExamples)
	// declared assets count even when nothing matched them
	report.DataAssetCount = len(c.assetNames)
	report.ExampleDataAssetNames = connector.Examples(c.assetNames, maxExamples)
	for _, name := range report.ExampleDataAssetNames {
		if _, ok := report.DataAssets[name]; !ok {
			report.DataAssets[name] = connector.AssetReport{ExampleDataReferences: []string{}}
		}
	}
	return report, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
