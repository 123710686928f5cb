package blobstore

import (
	"context"
	"io"

	"golang.org/x/time/rate"
)

// RateLimited throttles every request issued to the wrapped store.
type RateLimited struct {
	inner   Store
	limiter *rate.Limiter
}

// NewLimiter returns a token bucket of rps and burst, or nil when rps is not
// positive. Share one limiter across every store a component opens.
func NewLimiter(rps float64, burst int) *rate.Limiter {
	if rps <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(rps), burst)
}

// NewRateLimited wraps store so each request first takes a token from limiter.
func NewRateLimited(store Store, limiter *rate.Limiter) *RateLimited {
	return &RateLimited{inner: store, limiter: limiter}
}

func (r *RateLimited) wait(ctx context.Context) error {
	if err := r.limiter.Wait(ctx); err != nil {
		return wrapError(CodeTimeout, true, err)
	}
	return nil
}

func (r *RateLimited) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	if err := r.wait(ctx); err != nil {
		return nil, err
	}
	return r.inner.List(ctx, prefix)
}

func (r *RateLimited) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	if err := r.wait(ctx); err != nil {
		return nil, err
	}
	return r.inner.Download(ctx, key)
}

func (r *RateLimited) Head(ctx context.Context, key string) (*ObjectInfo, error) {
	if err := r.wait(ctx); err != nil {
		return nil, err
	}
	return r.inner.Head(ctx, key)
}

func (r *RateLimited) Upload(ctx context.Context, key string, body io.Reader) error {
	if err := r.wait(ctx); err != nil {
		return err
	}
	return r.inner.Upload(ctx, key, body)
}

func (r *RateLimited) Delete(ctx context.Context, key string) error {
	if err := r.wait(ctx); err != nil {
		return err
	}
	return r.inner.Delete(ctx, key)
}

func (r *RateLimited) Close() error { return r.inner.Close() }
