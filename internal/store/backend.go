// Package store persists expectation suites and validation results.
//
// A Backend is a namespaced key/value store over JSON documents:
//   - memory:   process-local map
//   - blob:     any blobstore provider (file, azure, s3, gcs, minio, mem)
//   - sqlite:   modernc.org/sqlite file database
//   - postgres: pgx connection pool
package store

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
)

// ErrNotFound is returned by Get when the key does not exist.
var ErrNotFound = errors.New("store: not found")

// Namespaces used by dq-core.
const (
	NamespaceExpectations = "expectations"
	NamespaceValidations  = "validations"
)

// Backend stores JSON documents under (namespace, key).
type Backend interface {
	// Put stores value, replacing any previous value.
	Put(ctx context.Context, namespace, key string, value []byte) error

	// Get returns the value, or ErrNotFound.
	Get(ctx context.Context, namespace, key string) ([]byte, error)

	// List returns the keys of namespace sorted ascending.
	List(ctx context.Context, namespace string) ([]string, error)

	// Delete removes the key. Missing keys are not an error.
	Delete(ctx context.Context, namespace, key string) error

	Close() error
}

// MemoryBackend keeps documents in process memory.
type MemoryBackend struct {
	mu   sync.RWMutex
	data map[string]map[string][]byte
}

// NewMemoryBackend returns an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{data: map[string]map[string][]byte{}}
}

func (m *MemoryBackend) Put(_ context.Context, namespace, key string, value []byte) error {
	if err := checkKey(namespace, key); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	ns, ok := m.data[namespace]
	if !ok {
		ns = map[string][]byte{}
		m.data[namespace] = ns
	}
	ns[key] = append([]byte(nil), value...)
	return nil
}

func (m *MemoryBackend) Get(_ context.Context, namespace, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	value, ok := m.data[namespace][key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), value...), nil
}

func (m *MemoryBackend) List(_ context.Context, namespace string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := make([]string, 0, len(m.data[namespace]))
	for k := range m.data[namespace] {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

func (m *MemoryBackend) Delete(_ context.Context, namespace, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data[namespace], key)
	return nil
}

func (m *MemoryBackend) Close() error { return nil }

func checkKey(namespace, key string) error {
	if strings.TrimSpace(namespace) == "" {
		return errors.New("store: namespace is required")
	}
	if strings.TrimSpace(key) == "" {
		return errors.New("store: key is required")
	}
	return nil
}
