package blobstore

import (
	"context"
	"sync"

	"gocloud.dev/blob"
	"gocloud.dev/blob/memblob"
)

var (
	memMu      sync.Mutex
	memBuckets = map[string]*blob.Bucket{}
)

// MemBucket returns the process-local bucket registered under name,
// creating it on first use. Every Open of provider "mem" with the same name
// sees the same objects.
func MemBucket(name string) *blob.Bucket {
	memMu.Lock()
	defer memMu.Unlock()

	if b, ok := memBuckets[name]; ok {
		return b
	}
	b := memblob.OpenBucket(nil)
	memBuckets[name] = b
	return b
}

// ResetMem drops the named in-memory bucket.
func ResetMem(name string) {
	memMu.Lock()
	defer memMu.Unlock()

	if b, ok := memBuckets[name]; ok {
		_ = b.Close()
		delete(memBuckets, name)
	}
}

// memStore shares the underlying bucket, so Close leaves it open.
type memStore struct {
	*Bucket
}

func (memStore) Close() error { return nil }

func openMem(_ context.Context, cfg Config) (Store, error) {
	return memStore{Bucket: NewBucket(MemBucket(cfg.Bucket))}, nil
}

// MemOpener returns an Opener that serves every bucket name from the
// in-memory provider. Tests use it with Override to stand in for a cloud
// provider.
func MemOpener() Opener {
	return openMem
}
