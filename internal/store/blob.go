package store

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/nucleus/dq-core/internal/blobstore"
)

const documentSuffix = ".json"

// BlobBackend stores each document as <prefix>/<namespace>/<key>.json.
type BlobBackend struct {
	store  blobstore.Store
	prefix string
}

// NewBlobBackend wraps an opened blob store. The backend owns the store.
func NewBlobBackend(store blobstore.Store, prefix string) *BlobBackend {
	return &BlobBackend{store: store, prefix: strings.Trim(prefix, "/")}
}

func (b *BlobBackend) namespacePrefix(namespace string) string {
	if b.prefix == "" {
		return namespace + "/"
	}
	return path.Join(b.prefix, namespace) + "/"
}

func (b *BlobBackend) objectKey(namespace, key string) string {
	return b.namespacePrefix(namespace) + key + documentSuffix
}

func (b *BlobBackend) Put(ctx context.Context, namespace, key string, value []byte) error {
	if err := checkKey(namespace, key); err != nil {
		return err
	}
	objectKey := b.objectKey(namespace, key)
	if err := b.store.Upload(ctx, objectKey, bytes.NewReader(value)); err != nil {
		return fmt.Errorf("put %s/%s: %w", namespace, key, err)
	}

	// Verify upload
	info, err := b.store.Head(ctx, objectKey)
	if err != nil {
		return fmt.Errorf("put %s/%s: verify upload: %w", namespace, key, err)
	}
	if info == nil {
		return fmt.Errorf("put %s/%s: object not found after upload", namespace, key)
	}
	if info.Size != int64(len(value)) {
		return fmt.Errorf("put %s/%s: uploaded %d bytes, stored %d", namespace, key, len(value), info.Size)
	}
	return nil
}

func (b *BlobBackend) Get(ctx context.Context, namespace, key string) ([]byte, error) {
	data, err := blobstore.ReadAll(ctx, b.store, b.objectKey(namespace, key))
	if err != nil {
		if blobstore.IsNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get %s/%s: %w", namespace, key, err)
	}
	return data, nil
}

func (b *BlobBackend) List(ctx context.Context, namespace string) ([]string, error) {
	prefix := b.namespacePrefix(namespace)
	objects, err := b.store.List(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", namespace, err)
	}
	keys := make([]string, 0, len(objects))
	for _, obj := range objects {
		if !strings.HasSuffix(obj.Key, documentSuffix) {
			continue
		}
		keys = append(keys, strings.TrimSuffix(strings.TrimPrefix(obj.Key, prefix), documentSuffix))
	}
	sort.Strings(keys)
	return keys, nil
}

func (b *BlobBackend) Delete(ctx context.Context, namespace, key string) error {
	if err := b.store.Delete(ctx, b.objectKey(namespace, key)); err != nil {
		return fmt.Errorf("delete %s/%s: %w", namespace, key, err)
	}
	return nil
}

func (b *BlobBackend) Close() error { return b.store.Close() }
