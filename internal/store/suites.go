package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nucleus/dq-core/internal/expectation"
)

// ErrSuiteNotFound is returned for an unknown expectation suite.
var ErrSuiteNotFound = errors.New("expectation suite not found")

// SuiteStore persists expectation suites keyed by name.
type SuiteStore struct {
	backend Backend
}

// NewSuiteStore returns a suite store over backend.
func NewSuiteStore(backend Backend) *SuiteStore {
	return &SuiteStore{backend: backend}
}

// Save writes the suite, replacing any stored version.
func (s *SuiteStore) Save(ctx context.Context, suite *expectation.Suite) error {
	if suite == nil || suite.Name == "" {
		return errors.New("expectation suite name is required")
	}
	data, err := json.MarshalIndent(suite, "", "  ")
	if err != nil {
		return fmt.Errorf("encode suite %s: %w", suite.Name, err)
	}
	return s.backend.Put(ctx, NamespaceExpectations, suite.Name, data)
}

// Get loads a suite by name.
func (s *SuiteStore) Get(ctx context.Context, name string) (*expectation.Suite, error) {
	data, err := s.backend.Get(ctx, NamespaceExpectations, name)
	if errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrSuiteNotFound, name)
	}
	if err != nil {
		return nil, err
	}
	suite := expectation.NewSuite(name)
	if err := json.Unmarshal(data, suite); err != nil {
		return nil, fmt.Errorf("decode suite %s: %w", name, err)
	}
	if suite.Expectations == nil {
		suite.Expectations = []expectation.Configuration{}
	}
	return suite, nil
}

// Exists reports whether a suite is stored under name.
func (s *SuiteStore) Exists(ctx context.Context, name string) (bool, error) {
	_, err := s.backend.Get(ctx, NamespaceExpectations, name)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

// List returns stored suite names, sorted.
func (s *SuiteStore) List(ctx context.Context) ([]string, error) {
	return s.backend.List(ctx, NamespaceExpectations)
}

// Delete removes a suite. Unknown names return ErrSuiteNotFound.
func (s *SuiteStore) Delete(ctx context.Context, name string) error {
	ok, err := s.Exists(ctx, name)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrSuiteNotFound, name)
	}
	return s.backend.Delete(ctx, NamespaceExpectations, name)
}
