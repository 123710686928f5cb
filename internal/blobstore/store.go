// Package blobstore provides provider-agnostic object storage used by data
// connectors, the execution engine and the blob-backed result stores.
//
// Providers:
//   - azure: Azure Blob Storage (azblob + gocloud azureblob)
//   - s3:    AWS S3 (aws-sdk-go-v2 + gocloud s3blob); endpoint_url switches to minio
//   - minio: S3-compatible endpoints (minio-go)
//   - gcs:   Google Cloud Storage (gocloud gcsblob)
//   - file:  local directory (gocloud fileblob)
//   - mem:   process-local named buckets (gocloud memblob)
package blobstore

import (
	"context"
	"io"
	"time"
)

// ObjectInfo contains metadata about an object in storage.
type ObjectInfo struct {
	Key          string
	Size         int64
	LastModified time.Time
	ETag         string
}

// Store is the set of object operations the rest of dq-core relies on.
// Implementations must be safe for concurrent use.
type Store interface {
	// List returns all objects under prefix, sorted by key ascending.
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)

	// Download returns a reader for the object. The caller closes it.
	Download(ctx context.Context, key string) (io.ReadCloser, error)

	// Head returns object metadata, or nil and no error if it does not exist.
	Head(ctx context.Context, key string) (*ObjectInfo, error)

	// Upload stores body under key, replacing any previous object.
	Upload(ctx context.Context, key string, body io.Reader) error

	// Delete removes the object. Missing objects are not an error.
	Delete(ctx context.Context, key string) error

	Close() error
}

// ReadAll downloads an object fully into memory.
func ReadAll(ctx context.Context, s Store, key string) ([]byte, error) {
	rc, err := s.Download(ctx, key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, classify(err, CodeReadFailed)
	}
	return data, nil
}
