// Package expectation holds expectation suites and the registry of
// expectation implementations evaluated against frames.
package expectation

import (
	"errors"
	"fmt"
	"reflect"
)

// ErrNotFound is returned when a suite has no matching expectation.
var ErrNotFound = errors.New("expectation not found")

// Configuration is one expectation in a suite.
type Configuration struct {
	Type   string         `json:"expectation_type" yaml:"expectation_type"`
	Kwargs Kwargs         `json:"kwargs" yaml:"kwargs"`
	Meta   map[string]any `json:"meta,omitempty" yaml:"meta,omitempty"`
}

// domainKeys identify what an expectation targets; two configurations with
// the same type and domain keys describe the same expectation.
var domainKeys = []string{"column", "column_A", "column_B", "column_list"}

// SameTarget reports whether c and o are the same expectation with possibly
// different success kwargs.
func (c Configuration) SameTarget(o Configuration) bool {
	if c.Type != o.Type {
		return false
	}
	for _, k := range domainKeys {
		if !reflect.DeepEqual(c.Kwargs[k], o.Kwargs[k]) {
			return false
		}
	}
	return true
}

// Column returns the column kwarg, if any.
func (c Configuration) Column() string {
	s, _ := c.Kwargs["column"].(string)
	return s
}

// Suite is a named, ordered set of expectations.
type Suite struct {
	Name          string          `json:"expectation_suite_name" yaml:"expectation_suite_name"`
	Expectations  []Configuration `json:"expectations" yaml:"expectations"`
	Meta          map[string]any  `json:"meta" yaml:"meta"`
	DataAssetType string          `json:"data_asset_type,omitempty" yaml:"data_asset_type,omitempty"`
}

// NewSuite returns an empty suite.
func NewSuite(name string) *Suite {
	return &Suite{
		Name:         name,
		Expectations: []Configuration{},
		Meta:         map[string]any{},
	}
}

// Add appends cfg, or replaces the existing expectation with the same
// target. It reports whether a replacement happened.
func (s *Suite) Add(cfg Configuration) bool {
	for i, existing := range s.Expectations {
		if existing.SameTarget(cfg) {
			s.Expectations[i] = cfg
			return true
		}
	}
	s.Expectations = append(s.Expectations, cfg)
	return false
}

// Replace swaps the expectation with the same target as cfg.
func (s *Suite) Replace(cfg Configuration) error {
	for i, existing := range s.Expectations {
		if existing.SameTarget(cfg) {
			s.Expectations[i] = cfg
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrNotFound, cfg.Type)
}

// Remove deletes the expectation with the same target as cfg.
func (s *Suite) Remove(cfg Configuration) error {
	for i, existing := range s.Expectations {
		if existing.SameTarget(cfg) {
			s.Expectations = append(s.Expectations[:i], s.Expectations[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrNotFound, cfg.Type)
}

// Find returns expectations matching expectationType and column. Empty
// arguments match anything.
func (s *Suite) Find(expectationType, column string) []Configuration {
	var out []Configuration
	for _, e := range s.Expectations {
		if expectationType != "" && e.Type != expectationType {
			continue
		}
		if column != "" && e.Column() != column {
			continue
		}
		out = append(out, e)
	}
	return out
}
