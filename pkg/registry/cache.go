package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
)

// requestCache memoizes registry responses for the lifetime of one
// invocation. Values are stored in their JSON encoding and decoded on every
// read, so callers always receive a private copy. At most one fill per key
// is in flight; concurrent callers for the same key wait for the first.
type requestCache struct {
	mu      sync.Mutex
	entries map[string]*cacheEntry
}

type cacheEntry struct {
	done  chan struct{}
	value []byte
	err   error
}

func newRequestCache() *requestCache {
	return &requestCache{entries: make(map[string]*cacheEntry)}
}

// do returns the cached value for key into out, filling it once via fill.
// Fills aborted by context cancellation are discarded rather than stored, so
// a later caller retries the operation.
func (c *requestCache) do(ctx context.Context, key string, fill func() (interface{}, error), out interface{}) error {
	c.mu.Lock()
	entry, ok := c.entries[key]
	if ok {
		c.mu.Unlock()
		select {
		case <-entry.done:
		case <-ctx.Done():
			return ctx.Err()
		}
		if entry.err != nil {
			return entry.err
		}
		return json.Unmarshal(entry.value, out)
	}

	entry = &cacheEntry{done: make(chan struct{})}
	c.entries[key] = entry
	c.mu.Unlock()

	value, err := fill()
	if err == nil {
		entry.value, err = json.Marshal(value)
	}
	entry.err = err
	close(entry.done)

	if err != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
	}

	if err != nil {
		return err
	}
	return json.Unmarshal(entry.value, out)
}

// CachedRegistry memoizes a Registry.
type CachedRegistry struct {
	inner Registry
	cache *requestCache
}

// NewCachedRegistry wraps inner with a process-scoped cache.
func NewCachedRegistry(inner Registry) *CachedRegistry {
	return &CachedRegistry{inner: inner, cache: newRequestCache()}
}

func (c *CachedRegistry) Manifest(ctx context.Context, repository, reference string) (*ocispec.Manifest, error) {
	var out ocispec.Manifest
	key := fmt.Sprintf("manifest\x00%s\x00%s", repository, reference)
	err := c.cache.do(ctx, key, func() (interface{}, error) {
		return c.inner.Manifest(ctx, repository, reference)
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *CachedRegistry) Referrers(ctx context.Context, repository, dgst string) ([]ocispec.Descriptor, error) {
	var out []ocispec.Descriptor
	key := fmt.Sprintf("referrers\x00%s\x00%s", repository, dgst)
	err := c.cache.do(ctx, key, func() (interface{}, error) {
		return c.inner.Referrers(ctx, repository, dgst)
	}, &out)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *CachedRegistry) Blob(ctx context.Context, repository, dgst string) ([]byte, error) {
	var out []byte
	key := fmt.Sprintf("blob\x00%s\x00%s", repository, dgst)
	err := c.cache.do(ctx, key, func() (interface{}, error) {
		return c.inner.Blob(ctx, repository, dgst)
	}, &out)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// CachedTagLister memoizes a TagLister.
type CachedTagLister struct {
	inner TagLister
	cache *requestCache
}

// NewCachedTagLister wraps inner with a process-scoped cache.
func NewCachedTagLister(inner TagLister) *CachedTagLister {
	return &CachedTagLister{inner: inner, cache: newRequestCache()}
}

func (c *CachedTagLister) ListTags(ctx context.Context, repository string) ([]TagRecord, error) {
	var out []TagRecord
	key := fmt.Sprintf("tags\x00%s", repository)
	err := c.cache.do(ctx, key, func() (interface{}, error) {
		return c.inner.ListTags(ctx, repository)
	}, &out)
	if err != nil {
		return nil, err
	}
	return out, nil
}
