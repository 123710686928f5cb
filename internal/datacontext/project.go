package datacontext

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/nucleus/dq-core/internal/blobstore"
	"github.com/nucleus/dq-core/internal/store"
	"github.com/nucleus/dq-core/internal/yamlconfig"
)

// ProjectFileName is the project file looked up under the context root.
const ProjectFileName = "dq.yml"

// CurrentConfigVersion is written to new project files.
const CurrentConfigVersion = 1

// ProjectConfig is the content of dq.yml.
type ProjectConfig struct {
	ConfigVersion   int               `yaml:"config_version"`
	Datasources     Datasources       `yaml:"datasources"`
	Stores          StoresConfig      `yaml:"stores"`
	Checkpoints     []*Checkpoint     `yaml:"checkpoints,omitempty"`
	ConfigVariables map[string]string `yaml:"config_variables,omitempty"`
}

// StoresConfig selects the backends for suites and validation results.
type StoresConfig struct {
	Expectations store.Config `yaml:"expectations"`
	Validations  store.Config `yaml:"validations"`
}

// Datasources keeps datasource documents in registration order. In YAML it
// is a mapping from name to document.
type Datasources []*yamlconfig.DatasourceConfig

// UnmarshalYAML decodes the name-keyed mapping preserving key order.
func (d *Datasources) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode && node.Tag == "!!null" {
		*d = nil
		return nil
	}
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: datasources must be a mapping", node.Line)
	}
	out := make(Datasources, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		name := node.Content[i].Value
		cfg, err := yamlconfig.ParseDatasourceNode(node.Content[i+1])
		if err != nil {
			return fmt.Errorf("datasource %s: %w", name, err)
		}
		if cfg.Name == "" {
			cfg.Name = name
		}
		if cfg.Name != name {
			return fmt.Errorf("datasource %s: name %q does not match its key", name, cfg.Name)
		}
		out = append(out, cfg)
	}
	*d = out
	return nil
}

// MarshalYAML encodes the datasources as a name-keyed mapping.
func (d Datasources) MarshalYAML() (any, error) {
	node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for _, cfg := range d {
		var value yaml.Node
		if err := value.Encode(cfg); err != nil {
			return nil, fmt.Errorf("datasource %s: %w", cfg.Name, err)
		}
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: cfg.Name},
			&value)
	}
	return node, nil
}

// Index returns the position of the named datasource, or -1.
func (d Datasources) Index(name string) int {
	for i, cfg := range d {
		if cfg.Name == name {
			return i
		}
	}
	return -1
}

// DefaultProjectConfig stores suites and results as JSON files under the
// context root.
func DefaultProjectConfig() *ProjectConfig {
	fileStore := store.Config{Type: store.TypeBlob, Provider: blobstore.ProviderFile, Bucket: "."}
	return &ProjectConfig{
		ConfigVersion: CurrentConfigVersion,
		Datasources:   Datasources{},
		Stores: StoresConfig{
			Expectations: fileStore,
			Validations:  fileStore,
		},
	}
}

func ephemeralProjectConfig() *ProjectConfig {
	return &ProjectConfig{
		ConfigVersion: CurrentConfigVersion,
		Datasources:   Datasources{},
		Stores: StoresConfig{
			Expectations: store.Config{Type: store.TypeMemory},
			Validations:  store.Config{Type: store.TypeMemory},
		},
	}
}

// LoadProjectConfig reads root/dq.yml.
func LoadProjectConfig(root string) (*ProjectConfig, error) {
	raw, err := os.ReadFile(filepath.Join(root, ProjectFileName))
	if err != nil {
		return nil, err
	}
	var cfg ProjectConfig
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", ProjectFileName, err)
	}
	if cfg.ConfigVersion == 0 {
		cfg.ConfigVersion = CurrentConfigVersion
	}
	if cfg.Datasources == nil {
		cfg.Datasources = Datasources{}
	}
	return &cfg, nil
}

// WriteProjectConfig writes cfg to root/dq.yml through a temp file rename.
func WriteProjectConfig(root string, cfg *ProjectConfig) error {
	out, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", ProjectFileName, err)
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(root, "."+ProjectFileName+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(out); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), filepath.Join(root, ProjectFileName))
}
