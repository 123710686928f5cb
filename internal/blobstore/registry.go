package blobstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"golang.org/x/time/rate"
)

// Provider names.
const (
	ProviderAzure = "azure"
	ProviderS3    = "s3"
	ProviderMinio = "minio"
	ProviderGCS   = "gcs"
	ProviderFile  = "file"
	ProviderMem   = "mem"
)

// Config selects a provider and the bucket/container to open.
type Config struct {
	Provider string

	// Bucket is the bucket, container, base directory or mem bucket name.
	Bucket string

	Azure *AzureOptions
	S3    *S3Options
	GCS   *GCSOptions

	// Limiter throttles requests against the opened store. It is shared by
	// every store opened with it; nil falls back to RateLimit.
	Limiter *rate.Limiter `json:"-" yaml:"-"`

	// RateLimit is requests per second for a store-private limiter; 0 disables.
	RateLimit float64
	RateBurst int
}

// Opener opens a Store for a Config.
type Opener func(ctx context.Context, cfg Config) (Store, error)

var (
	openersMu sync.RWMutex
	openers   = map[string]Opener{}
)

// Register adds an opener for a provider name.
// Panics if the provider is already registered.
func Register(provider string, opener Opener) {
	openersMu.Lock()
	defer openersMu.Unlock()

	if _, exists := openers[provider]; exists {
		panic(fmt.Sprintf("blobstore provider already registered: %s", provider))
	}
	openers[provider] = opener
}

// Override replaces the opener for provider and returns a func restoring the
// previous one. Intended for tests that redirect a cloud provider to memblob.
func Override(provider string, opener Opener) (restore func()) {
	openersMu.Lock()
	defer openersMu.Unlock()

	prev, had := openers[provider]
	openers[provider] = opener
	return func() {
		openersMu.Lock()
		defer openersMu.Unlock()
		if had {
			openers[provider] = prev
		} else {
			delete(openers, provider)
		}
	}
}

// Providers lists registered provider names.
func Providers() []string {
	openersMu.RLock()
	defer openersMu.RUnlock()

	names := make([]string, 0, len(openers))
	for name := range openers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Open opens a store for cfg and applies rate limiting when configured.
func Open(ctx context.Context, cfg Config) (Store, error) {
	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	openersMu.RLock()
	opener, ok := openers[provider]
	openersMu.RUnlock()
	if !ok {
		return nil, wrapError(CodeInvalidConfig, false, fmt.Errorf("unknown blob provider %q", cfg.Provider))
	}
	if cfg.Bucket == "" && provider != ProviderFile {
		return nil, wrapError(CodeInvalidConfig, false, fmt.Errorf("bucket is required"))
	}

	store, err := opener(ctx, cfg)
	if err != nil {
		return nil, err
	}
	limiter := cfg.Limiter
	if limiter == nil {
		limiter = NewLimiter(cfg.RateLimit, cfg.RateBurst)
	}
	if limiter != nil {
		store = NewRateLimited(store, limiter)
	}
	return store, nil
}

func init() {
	Register(ProviderAzure, openAzure)
	Register(ProviderS3, openS3)
	Register(ProviderMinio, openMinio)
	Register(ProviderGCS, openGCS)
	Register(ProviderFile, openFile)
	Register(ProviderMem, openMem)
}
