// Package yamlconfig decodes and validates datasource configuration documents.
package yamlconfig

import (
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/nucleus/dq-core/internal/blobstore"
)

// DefaultDatasourceClass is assumed when class_name is omitted.
const DefaultDatasourceClass = "Datasource"

// DatasourceConfig is the top-level datasource document.
type DatasourceConfig struct {
	Name            string                          `yaml:"name" json:"name"`
	ClassName       string                          `yaml:"class_name,omitempty" json:"class_name,omitempty"`
	ExecutionEngine *ExecutionEngineConfig          `yaml:"execution_engine" json:"execution_engine"`
	DataConnectors  map[string]*DataConnectorConfig `yaml:"data_connectors" json:"data_connectors"`
}

// ExecutionEngineConfig configures how batches are read.
type ExecutionEngineConfig struct {
	ClassName    string                  `yaml:"class_name" json:"class_name"`
	AzureOptions *blobstore.AzureOptions `yaml:"azure_options,omitempty" json:"azure_options,omitempty"`
	S3Options    *blobstore.S3Options    `yaml:"boto3_options,omitempty" json:"boto3_options,omitempty"`
	GCSOptions   *blobstore.GCSOptions   `yaml:"gcs_options,omitempty" json:"gcs_options,omitempty"`

	// ReaderDefaults are applied beneath every batch's reader options.
	ReaderDefaults map[string]any `yaml:"reader_defaults,omitempty" json:"reader_defaults,omitempty"`
}

// DataConnectorConfig is a union over the supported connector classes.
// Which fields apply depends on ClassName.
type DataConnectorConfig struct {
	// Name is filled from the data_connectors key.
	Name      string `yaml:"-" json:"-"`
	ClassName string `yaml:"class_name" json:"class_name"`

	// RuntimeDataConnector
	BatchIdentifiers []string `yaml:"batch_identifiers,omitempty" json:"batch_identifiers,omitempty"`

	// Azure
	AzureOptions   *blobstore.AzureOptions `yaml:"azure_options,omitempty" json:"azure_options,omitempty"`
	Container      string                  `yaml:"container,omitempty" json:"container,omitempty"`
	NameStartsWith string                  `yaml:"name_starts_with,omitempty" json:"name_starts_with,omitempty"`
	Delimiter      string                  `yaml:"delimiter,omitempty" json:"delimiter,omitempty"`

	// S3 / GCS
	Bucket       string                `yaml:"bucket,omitempty" json:"bucket,omitempty"`
	BucketOrName string                `yaml:"bucket_or_name,omitempty" json:"bucket_or_name,omitempty"`
	Prefix       string                `yaml:"prefix,omitempty" json:"prefix,omitempty"`
	Boto3Options *blobstore.S3Options  `yaml:"boto3_options,omitempty" json:"boto3_options,omitempty"`
	GCSOptions   *blobstore.GCSOptions `yaml:"gcs_options,omitempty" json:"gcs_options,omitempty"`

	// Filesystem
	BaseDirectory string `yaml:"base_directory,omitempty" json:"base_directory,omitempty"`
	GlobDirective string `yaml:"glob_directive,omitempty" json:"glob_directive,omitempty"`

	DefaultRegex         *RegexConfig            `yaml:"default_regex,omitempty" json:"default_regex,omitempty"`
	Assets               map[string]*AssetConfig `yaml:"assets,omitempty" json:"assets,omitempty"`
	Sorters              []SorterConfig          `yaml:"sorters,omitempty" json:"sorters,omitempty"`
	BatchSpecPassthrough map[string]any          `yaml:"batch_spec_passthrough,omitempty" json:"batch_spec_passthrough,omitempty"`
}

// RegexConfig maps capture groups of pattern to names, in order.
type RegexConfig struct {
	Pattern    string   `yaml:"pattern" json:"pattern"`
	GroupNames []string `yaml:"group_names" json:"group_names"`
}

// AssetConfig declares one asset of a configured-asset connector.
// Empty fields inherit from the connector.
type AssetConfig struct {
	Prefix               string         `yaml:"prefix,omitempty" json:"prefix,omitempty"`
	NameStartsWith       string         `yaml:"name_starts_with,omitempty" json:"name_starts_with,omitempty"`
	BaseDirectory        string         `yaml:"base_directory,omitempty" json:"base_directory,omitempty"`
	Pattern              string         `yaml:"pattern,omitempty" json:"pattern,omitempty"`
	GroupNames           []string       `yaml:"group_names,omitempty" json:"group_names,omitempty"`
	BatchSpecPassthrough map[string]any `yaml:"batch_spec_passthrough,omitempty" json:"batch_spec_passthrough,omitempty"`
}

// SorterConfig orders batch definitions by one batch identifier.
type SorterConfig struct {
	Name           string `yaml:"name" json:"name"`
	ClassName      string `yaml:"class_name" json:"class_name"`
	OrderBy        string `yaml:"orderby,omitempty" json:"orderby,omitempty"`
	DatetimeFormat string `yaml:"datetime_format,omitempty" json:"datetime_format,omitempty"`
}

// ParseDatasource decodes a datasource document. It does not validate.
func ParseDatasource(doc string) (*DatasourceConfig, error) {
	if strings.TrimSpace(doc) == "" {
		return nil, fmt.Errorf("datasource config is empty")
	}
	var cfg DatasourceConfig
	if err := yaml.Unmarshal([]byte(doc), &cfg); err != nil {
		return nil, fmt.Errorf("parse datasource config: %w", err)
	}
	cfg.normalize()
	return &cfg, nil
}

// ParseDatasourceNode decodes a datasource from an already-parsed YAML node,
// as found inside a project file.
func ParseDatasourceNode(node *yaml.Node) (*DatasourceConfig, error) {
	var cfg DatasourceConfig
	if err := node.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode datasource config: %w", err)
	}
	cfg.normalize()
	return &cfg, nil
}

// MarshalDatasource renders cfg back to YAML.
func MarshalDatasource(cfg *DatasourceConfig) (string, error) {
	out, err := yaml.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("marshal datasource config: %w", err)
	}
	return string(out), nil
}

func (c *DatasourceConfig) normalize() {
	if c.ClassName == "" {
		c.ClassName = DefaultDatasourceClass
	}
	for name, dc := range c.DataConnectors {
		if dc == nil {
			continue
		}
		dc.Name = name
	}
}

// ConnectorNames returns the data connector names, sorted.
func (c *DatasourceConfig) ConnectorNames() []string {
	names := make([]string, 0, len(c.DataConnectors))
	for name := range c.DataConnectors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Clone returns a deep copy by way of a YAML round trip.
func (c *DatasourceConfig) Clone() (*DatasourceConfig, error) {
	doc, err := MarshalDatasource(c)
	if err != nil {
		return nil, err
	}
	return ParseDatasource(doc)
}
