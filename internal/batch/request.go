// Package batch defines batch requests, definitions and specs, and the
// loaded Batch handed to validators.
package batch

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/nucleus/dq-core/internal/frame"
)

// Request identifies which batches to retrieve from a datasource.
type Request struct {
	DatasourceName       string              `yaml:"datasource_name" json:"datasource_name"`
	DataConnectorName    string              `yaml:"data_connector_name" json:"data_connector_name"`
	DataAssetName        string              `yaml:"data_asset_name" json:"data_asset_name"`
	DataConnectorQuery   *DataConnectorQuery `yaml:"data_connector_query,omitempty" json:"data_connector_query,omitempty"`
	BatchSpecPassthrough map[string]any      `yaml:"batch_spec_passthrough,omitempty" json:"batch_spec_passthrough,omitempty"`

	// Runtime is set for requests against runtime data connectors.
	Runtime *RuntimeParameters `yaml:"runtime_parameters,omitempty" json:"runtime_parameters,omitempty"`
	// BatchIdentifiers labels a runtime batch.
	BatchIdentifiers map[string]string `yaml:"batch_identifiers,omitempty" json:"batch_identifiers,omitempty"`
}

// RuntimeParameters supplies batch data directly. Exactly one field is set.
type RuntimeParameters struct {
	BatchData *frame.Frame `yaml:"-" json:"-"`
	Path      string       `yaml:"path,omitempty" json:"path,omitempty"`
}

// DataConnectorQuery narrows the definitions a connector returns.
type DataConnectorQuery struct {
	BatchFilterParameters map[string]string `yaml:"batch_filter_parameters,omitempty" json:"batch_filter_parameters,omitempty"`
	Index                 *IndexSpec        `yaml:"index,omitempty" json:"index,omitempty"`
	Limit                 int               `yaml:"limit,omitempty" json:"limit,omitempty"`
}

// Validate checks the required naming fields.
func (r *Request) Validate() error {
	if r == nil {
		return errors.New("batch request is required")
	}
	var missing []string
	if strings.TrimSpace(r.DatasourceName) == "" {
		missing = append(missing, "datasource_name")
	}
	if strings.TrimSpace(r.DataConnectorName) == "" {
		missing = append(missing, "data_connector_name")
	}
	if strings.TrimSpace(r.DataAssetName) == "" {
		missing = append(missing, "data_asset_name")
	}
	if len(missing) > 0 {
		return fmt.Errorf("batch request is missing %s", strings.Join(missing, ", "))
	}
	if r.Runtime != nil {
		hasData := r.Runtime.BatchData != nil
		hasPath := strings.TrimSpace(r.Runtime.Path) != ""
		if hasData == hasPath {
			return errors.New("runtime_parameters must set exactly one of batch_data or path")
		}
	}
	return nil
}

// IsRuntime reports whether the request carries runtime parameters.
func (r *Request) IsRuntime() bool {
	return r != nil && r.Runtime != nil
}

// IndexSpec selects definitions by position: a single index (negative counts
// from the end) or a half-open slice.
type IndexSpec struct {
	Single   *int
	Start    *int
	Stop     *int
	IsSlice  bool
	original string
}

// ParseIndex accepts "3", "-1", "1:3", ":2" or "-2:".
func ParseIndex(raw string) (*IndexSpec, error) {
	raw = strings.Trim(strings.TrimSpace(raw), "[]")
	if raw == "" {
		return nil, errors.New("empty index")
	}
	spec := &IndexSpec{original: raw}
	if !strings.Contains(raw, ":") {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid index %q: %w", raw, err)
		}
		spec.Single = &n
		return spec, nil
	}

	parts := strings.SplitN(raw, ":", 2)
	spec.IsSlice = true
	for i, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("invalid index slice %q: %w", raw, err)
		}
		if i == 0 {
			spec.Start = &n
		} else {
			spec.Stop = &n
		}
	}
	return spec, nil
}

// Apply selects from a list of n items and returns the kept positions.
func (s *IndexSpec) Apply(n int) []int {
	if s == nil {
		out := make([]int, n)
		for i := range out {
			out[i] = i
		}
		return out
	}
	norm := func(i int) int {
		if i < 0 {
			i += n
		}
		return i
	}
	if !s.IsSlice {
		i := norm(*s.Single)
		if i < 0 || i >= n {
			return nil
		}
		return []int{i}
	}

	start, stop := 0, n
	if s.Start != nil {
		start = max(0, norm(*s.Start))
	}
	if s.Stop != nil {
		stop = min(n, norm(*s.Stop))
	}
	var out []int
	for i := start; i < stop; i++ {
		out = append(out, i)
	}
	return out
}

func (s *IndexSpec) String() string {
	if s == nil {
		return ""
	}
	if s.original != "" {
		return s.original
	}
	if !s.IsSlice {
		return strconv.Itoa(*s.Single)
	}
	var start, stop string
	if s.Start != nil {
		start = strconv.Itoa(*s.Start)
	}
	if s.Stop != nil {
		stop = strconv.Itoa(*s.Stop)
	}
	return start + ":" + stop
}

// UnmarshalYAML accepts an integer or a slice string.
func (s *IndexSpec) UnmarshalYAML(node *yaml.Node) error {
	parsed, err := ParseIndex(node.Value)
	if err != nil {
		return err
	}
	*s = *parsed
	return nil
}

// MarshalYAML renders the index back to its textual form.
func (s IndexSpec) MarshalYAML() (any, error) {
	return s.String(), nil
}

// UnmarshalJSON accepts a number or a slice string.
func (s *IndexSpec) UnmarshalJSON(data []byte) error {
	parsed, err := ParseIndex(strings.Trim(string(data), `"`))
	if err != nil {
		return err
	}
	*s = *parsed
	return nil
}

// MarshalJSON renders the index as a string.
func (s IndexSpec) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(s.String())), nil
}
