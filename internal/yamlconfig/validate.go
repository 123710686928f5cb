package yamlconfig

import (
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/multierr"

	"github.com/nucleus/dq-core/internal/blobstore"
)

// DataAssetNameGroup is the group name that yields the asset name.
const DataAssetNameGroup = "data_asset_name"

// Validate reports every problem in the document at once.
func (c *DatasourceConfig) Validate() error {
	var errs error
	if strings.TrimSpace(c.Name) == "" {
		errs = multierr.Append(errs, fmt.Errorf("name is required"))
	}
	if c.ClassName != "" && c.ClassName != DefaultDatasourceClass {
		errs = multierr.Append(errs, fmt.Errorf("unsupported datasource class_name %q", c.ClassName))
	}

	switch {
	case c.ExecutionEngine == nil || c.ExecutionEngine.ClassName == "":
		errs = multierr.Append(errs, fmt.Errorf("execution_engine.class_name is required"))
	case !IsEngineClass(c.ExecutionEngine.ClassName):
		errs = multierr.Append(errs, fmt.Errorf("unknown execution_engine class_name %q", c.ExecutionEngine.ClassName))
	}

	if len(c.DataConnectors) == 0 {
		errs = multierr.Append(errs, fmt.Errorf("at least one data connector is required"))
	}
	for _, name := range c.ConnectorNames() {
		dc := c.DataConnectors[name]
		if dc == nil {
			errs = multierr.Append(errs, fmt.Errorf("data_connectors.%s: empty config", name))
			continue
		}
		if err := dc.Validate(); err != nil {
			for _, e := range multierr.Errors(err) {
				errs = multierr.Append(errs, fmt.Errorf("data_connectors.%s: %w", name, e))
			}
		}
	}
	return errs
}

// Validate checks a single connector block against its class.
func (dc *DataConnectorConfig) Validate() error {
	class, ok := LookupConnectorClass(dc.ClassName)
	if !ok {
		return fmt.Errorf("unknown class_name %q", dc.ClassName)
	}

	var errs error
	switch class.Kind {
	case KindRuntime:
		if len(dc.BatchIdentifiers) == 0 {
			errs = multierr.Append(errs, fmt.Errorf("batch_identifiers is required"))
		}
	case KindInferred:
		if dc.DefaultRegex == nil || dc.DefaultRegex.Pattern == "" {
			errs = multierr.Append(errs, fmt.Errorf("default_regex.pattern is required"))
			break
		}
		errs = multierr.Append(errs, validateRegex("default_regex", dc.DefaultRegex.Pattern, dc.DefaultRegex.GroupNames, true))
	case KindConfigured:
		if len(dc.Assets) == 0 {
			errs = multierr.Append(errs, fmt.Errorf("assets is required"))
		}
		for name, asset := range dc.Assets {
			pattern, groups := dc.AssetRegex(asset)
			if pattern == "" {
				errs = multierr.Append(errs, fmt.Errorf("assets.%s: pattern is required", name))
				continue
			}
			errs = multierr.Append(errs, validateRegex("assets."+name, pattern, groups, false))
		}
	}

	errs = multierr.Append(errs, dc.validateLocation(class))
	errs = multierr.Append(errs, validateSorters(dc.Sorters))
	return errs
}

// AssetRegex returns the asset's pattern and group names, falling back to
// the connector's default_regex.
func (dc *DataConnectorConfig) AssetRegex(asset *AssetConfig) (string, []string) {
	var pattern string
	var groups []string
	if dc.DefaultRegex != nil {
		pattern, groups = dc.DefaultRegex.Pattern, dc.DefaultRegex.GroupNames
	}
	if asset != nil {
		if asset.Pattern != "" {
			pattern = asset.Pattern
		}
		if len(asset.GroupNames) > 0 {
			groups = asset.GroupNames
		}
	}
	return pattern, groups
}

func (dc *DataConnectorConfig) validateLocation(class ConnectorClass) error {
	switch class.Kind {
	case KindInferred, KindConfigured:
	default:
		return nil
	}
	switch class.Provider {
	case blobstore.ProviderAzure:
		if dc.Container == "" {
			return fmt.Errorf("container is required")
		}
		if !dc.AzureOptions.Configured() {
			return fmt.Errorf("azure_options.account_url or azure_options.conn_str is required")
		}
	case blobstore.ProviderS3:
		if dc.Bucket == "" {
			return fmt.Errorf("bucket is required")
		}
	case blobstore.ProviderGCS:
		if dc.BucketOrName == "" && dc.Bucket == "" {
			return fmt.Errorf("bucket_or_name is required")
		}
	case blobstore.ProviderFile:
		if dc.BaseDirectory == "" {
			return fmt.Errorf("base_directory is required")
		}
	}
	return nil
}

// CompileAnchored compiles pattern with match-at-start semantics.
func CompileAnchored(pattern string) (*regexp.Regexp, error) {
	return regexp.Compile(`^(?:` + pattern + `)`)
}

func validateRegex(field, pattern string, groups []string, needAsset bool) error {
	re, err := CompileAnchored(pattern)
	if err != nil {
		return fmt.Errorf("%s.pattern: %w", field, err)
	}
	var errs error
	if len(groups) > re.NumSubexp() {
		errs = multierr.Append(errs, fmt.Errorf("%s: %d group_names but pattern has %d capture groups",
			field, len(groups), re.NumSubexp()))
	}
	if needAsset && !contains(groups, DataAssetNameGroup) {
		errs = multierr.Append(errs, fmt.Errorf("%s.group_names must include %s", field, DataAssetNameGroup))
	}
	return errs
}

func validateSorters(sorters []SorterConfig) error {
	var errs error
	for i, s := range sorters {
		if s.Name == "" {
			errs = multierr.Append(errs, fmt.Errorf("sorters[%d]: name is required", i))
		}
		switch s.ClassName {
		case "LexicographicSorter", "NumericSorter":
		case "DateTimeSorter":
			if s.DatetimeFormat == "" {
				errs = multierr.Append(errs, fmt.Errorf("sorters[%d]: datetime_format is required", i))
			}
		default:
			errs = multierr.Append(errs, fmt.Errorf("sorters[%d]: unknown class_name %q", i, s.ClassName))
		}
		switch strings.ToLower(s.OrderBy) {
		case "", "asc", "desc":
		default:
			errs = multierr.Append(errs, fmt.Errorf("sorters[%d]: orderby must be asc or desc", i))
		}
	}
	return errs
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
