package blobstore

import (
	"context"
	"io"
	"sort"
	"strings"

	"gocloud.dev/blob"
	"gocloud.dev/gcerrors"
)

// Bucket adapts a gocloud *blob.Bucket to Store.
type Bucket struct {
	bucket *blob.Bucket
}

// NewBucket wraps a gocloud bucket.
func NewBucket(bucket *blob.Bucket) *Bucket {
	return &Bucket{bucket: bucket}
}

// List returns metadata for all objects matching prefix, skipping directory
// markers. Results are sorted by key.
func (b *Bucket) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	var result []ObjectInfo
	iter := b.bucket.List(&blob.ListOptions{Prefix: prefix})
	for {
		obj, err := iter.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, classify(err, CodeReadFailed)
		}
		if obj.IsDir || strings.HasSuffix(obj.Key, "/") {
			continue
		}
		result = append(result, ObjectInfo{
			Key:          obj.Key,
			Size:         obj.Size,
			LastModified: obj.ModTime,
		})
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Key < result[j].Key })
	return result, nil
}

func (b *Bucket) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	r, err := b.bucket.NewReader(ctx, key, nil)
	if err != nil {
		return nil, classify(err, CodeReadFailed)
	}
	return r, nil
}

func (b *Bucket) Head(ctx context.Context, key string) (*ObjectInfo, error) {
	attrs, err := b.bucket.Attributes(ctx, key)
	if err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			return nil, nil
		}
		return nil, classify(err, CodeReadFailed)
	}
	return &ObjectInfo{
		Key:          key,
		Size:         attrs.Size,
		LastModified: attrs.ModTime,
		ETag:         attrs.ETag,
	}, nil
}

func (b *Bucket) Upload(ctx context.Context, key string, body io.Reader) error {
	w, err := b.bucket.NewWriter(ctx, key, nil)
	if err != nil {
		return classify(err, CodeWriteFailed)
	}
	_, copyErr := io.Copy(w, body)
	closeErr := w.Close()
	if copyErr != nil {
		return classify(copyErr, CodeWriteFailed)
	}
	return classify(closeErr, CodeWriteFailed)
}

func (b *Bucket) Delete(ctx context.Context, key string) error {
	err := b.bucket.Delete(ctx, key)
	if err != nil && gcerrors.Code(err) == gcerrors.NotFound {
		return nil
	}
	return classify(err, CodeWriteFailed)
}

func (b *Bucket) Close() error {
	return b.bucket.Close()
}
