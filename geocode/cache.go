package geocode

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru"
)

// CachedGeocoder wraps a Geocoder with an in-memory LRU cache.
type CachedGeocoder struct {
	inner Geocoder
	cache *lru.Cache
}

func NewCachedGeocoder(inner Geocoder, maxEntries int) (*CachedGeocoder, error) {
	c, err := lru.New(maxEntries)
	if err != nil {
		return nil, fmt.Errorf("geocode cache: %w", err)
	}
	return &CachedGeocoder{inner: inner, cache: c}, nil
}

func (c *CachedGeocoder) Forward(ctx context.Context, address string) (Result, error) {
	return c.lookup("fwd:"+address, func() (Result, error) { return c.inner.Forward(ctx, address) })
}

func (c *CachedGeocoder) Reverse(ctx context.Context, lat, lng float64) (Result, error) {
	key := fmt.Sprintf("rev:%.6f,%.6f", lat, lng)
	return c.lookup(key, func() (Result, error) { return c.inner.Reverse(ctx, lat, lng) })
}

func (c *CachedGeocoder) lookup(key string, load func() (Result, error)) (Result, error) {
	if v, ok := c.cache.Get(key); ok {
		return v.(Result), nil
	}
	r, err := load()
	if err != nil {
		return r, err
	}
	// Empty results are not cached so a transient miss can be retried.
	if r.FormattedAddress != "" {
		c.cache.Add(key, r)
	}
	return r, nil
}
