package registry

import (
	"context"
	"encoding/json"
	"time"

	"github.com/matzehuels/monopub/pkg/cache"
	"github.com/matzehuels/monopub/pkg/observability"
)

// DistTagFetcher resolves the dist-tags of a package.
// [*Client] and the value returned by [NewCachedTags] implement it.
type DistTagFetcher interface {
	FetchDistTags(ctx context.Context, name string) (map[string]string, error)
}

// CachedTags serves dist-tags from a cache and falls back to its source.
type CachedTags struct {
	src       DistTagFetcher
	cache     cache.Cache
	ttl       time.Duration
	namespace string
}

// NewCachedTags puts c in front of src. Entries live for ttl.
// Cache failures are treated as misses; only source errors are returned.
func NewCachedTags(src DistTagFetcher, c cache.Cache, ttl time.Duration) *CachedTags {
	ns := ""
	if cl, ok := src.(*Client); ok {
		ns = cl.URL()
	}
	return &CachedTags{src: src, cache: c, ttl: ttl, namespace: ns}
}

// FetchDistTags implements [DistTagFetcher].
func (t *CachedTags) FetchDistTags(ctx context.Context, name string) (map[string]string, error) {
	key := cache.Key("dist-tags", t.namespace, name)
	hooks := observability.Cache()

	if data, ok, err := t.cache.Get(ctx, key); err == nil && ok {
		var tags map[string]string
		if json.Unmarshal(data, &tags) == nil && tags != nil {
			hooks.OnCacheHit(ctx, key)
			return tags, nil
		}
	}
	hooks.OnCacheMiss(ctx, key)

	tags, err := t.src.FetchDistTags(ctx, name)
	if err != nil {
		return nil, err
	}
	if data, err := json.Marshal(tags); err == nil {
		if t.cache.Set(ctx, key, data, t.ttl) == nil {
			hooks.OnCacheSet(ctx, key, len(data))
		}
	}
	return tags, nil
}

var (
	_ DistTagFetcher = (*Client)(nil)
	_ DistTagFetcher = (*CachedTags)(nil)
)
