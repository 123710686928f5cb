package blobstore

import (
	"context"
	"fmt"
	"os"

	"gocloud.dev/blob/fileblob"
)

// openFile opens a local directory as a bucket. cfg.Bucket is the directory.
func openFile(_ context.Context, cfg Config) (Store, error) {
	dir := cfg.Bucket
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, wrapError(CodePermissionDenied, false, err)
	}
	bucket, err := fileblob.OpenBucket(dir, nil)
	if err != nil {
		return nil, classify(fmt.Errorf("failed to open directory %s: %w", dir, err), CodeBucketNotFound)
	}
	return NewBucket(bucket), nil
}
