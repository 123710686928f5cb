package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/nucleus/dq-core/internal/blobstore"
)

// Backend types.
const (
	TypeMemory   = "memory"
	TypeBlob     = "blob"
	TypeSQLite   = "sqlite"
	TypePostgres = "postgres"
)

// Config is the stores block of dq.yml.
type Config struct {
	Type string `yaml:"type" json:"type"`

	// blob
	Provider     string                  `yaml:"provider,omitempty" json:"provider,omitempty"`
	Bucket       string                  `yaml:"bucket,omitempty" json:"bucket,omitempty"`
	Prefix       string                  `yaml:"prefix,omitempty" json:"prefix,omitempty"`
	AzureOptions *blobstore.AzureOptions `yaml:"azure_options,omitempty" json:"azure_options,omitempty"`
	S3Options    *blobstore.S3Options    `yaml:"boto3_options,omitempty" json:"boto3_options,omitempty"`
	GCSOptions   *blobstore.GCSOptions   `yaml:"gcs_options,omitempty" json:"gcs_options,omitempty"`

	// sqlite
	Path string `yaml:"path,omitempty" json:"path,omitempty"`

	// postgres; falls back to DQ_STORE_DATABASE_URL, then DATABASE_URL.
	DSN string `yaml:"dsn,omitempty" json:"dsn,omitempty"`
}

// ResolvePaths makes relative sqlite paths and file buckets relative to root.
func (c Config) ResolvePaths(root string) Config {
	if root == "" {
		return c
	}
	if c.Type == TypeSQLite && c.Path != "" && !filepath.IsAbs(c.Path) {
		c.Path = filepath.Join(root, c.Path)
	}
	if c.Type == TypeBlob && c.Provider == blobstore.ProviderFile && !filepath.IsAbs(c.Bucket) {
		c.Bucket = filepath.Join(root, c.Bucket)
	}
	return c
}

// Open opens the backend described by cfg. An empty type is memory.
func Open(ctx context.Context, cfg Config) (Backend, error) {
	switch strings.ToLower(cfg.Type) {
	case "", TypeMemory:
		return NewMemoryBackend(), nil
	case TypeBlob:
		s, err := blobstore.Open(ctx, blobstore.Config{
			Provider: cfg.Provider,
			Bucket:   cfg.Bucket,
			Azure:    cfg.AzureOptions,
			S3:       cfg.S3Options,
			GCS:      cfg.GCSOptions,
		})
		if err != nil {
			return nil, fmt.Errorf("open blob store: %w", err)
		}
		return NewBlobBackend(s, cfg.Prefix), nil
	case TypeSQLite:
		return NewSQLiteBackend(ctx, cfg.Path)
	case TypePostgres:
		dsn := cfg.DSN
		if dsn == "" {
			dsn = os.Getenv("DQ_STORE_DATABASE_URL")
		}
		if dsn == "" {
			dsn = os.Getenv("DATABASE_URL")
		}
		return NewPostgresBackend(ctx, dsn)
	default:
		return nil, fmt.Errorf("unknown store type %q", cfg.Type)
	}
}
