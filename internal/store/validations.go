package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/nucleus/dq-core/internal/validator"
)

var _ validator.SuiteSaver = (*SuiteStore)(nil)

// ValidationStore persists suite results keyed by
// <suite>/<run name>/<batch id>.
type ValidationStore struct {
	backend Backend
}

// NewValidationStore returns a validation store over backend.
func NewValidationStore(backend Backend) *ValidationStore {
	return &ValidationStore{backend: backend}
}

// ValidationKey builds the storage key of a result.
func ValidationKey(res *validator.SuiteResult) string {
	batchID := res.Meta.BatchID
	if batchID == "" {
		batchID = "__none__"
	}
	return strings.Join([]string{res.Meta.ExpectationSuiteName, res.Meta.RunID.RunName, batchID}, "/")
}

// Put stores res and returns its key.
func (v *ValidationStore) Put(ctx context.Context, res *validator.SuiteResult) (string, error) {
	if res == nil || res.Meta.ExpectationSuiteName == "" {
		return "", errors.New("validation result has no expectation suite name")
	}
	data, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode validation result: %w", err)
	}
	key := ValidationKey(res)
	if err := v.backend.Put(ctx, NamespaceValidations, key, data); err != nil {
		return "", err
	}
	return key, nil
}

// Get loads a stored result.
func (v *ValidationStore) Get(ctx context.Context, key string) (*validator.SuiteResult, error) {
	data, err := v.backend.Get(ctx, NamespaceValidations, key)
	if err != nil {
		return nil, err
	}
	var res validator.SuiteResult
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, fmt.Errorf("decode validation result %s: %w", key, err)
	}
	return &res, nil
}

// List returns stored keys for suite, or every key when suite is empty.
func (v *ValidationStore) List(ctx context.Context, suite string) ([]string, error) {
	keys, err := v.backend.List(ctx, NamespaceValidations)
	if err != nil || suite == "" {
		return keys, err
	}
	out := []string{}
	for _, k := range keys {
		if strings.HasPrefix(k, suite+"/") {
			out = append(out, k)
		}
	}
	return out, nil
}
