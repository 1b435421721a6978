// Package catalog defines the catalog collaborator contract and the
// cache-backed client the recommendation engine talks through. Transport
// details live behind the Client interface; every call resolves to a uniform
// success/data/error envelope and never panics past this boundary.
package catalog

import (
	"context"

	"github.com/reelfeed/reelfeed/internal/cache"
	"github.com/reelfeed/reelfeed/internal/model"
)

// Filters narrows a discover query.
type Filters struct {
	MediaType model.MediaType `json:"media_type,omitempty"`
	GenreIDs  []int           `json:"genre_ids,omitempty"`
	SortBy    string          `json:"sort_by,omitempty"`
	Page      int             `json:"page,omitempty"`
}

// SortPopularity is the one sort order the engine relies on.
const SortPopularity = "popularity.desc"

// Result is the uniform envelope every catalog call returns, success or not.
type Result struct {
	Success bool                `json:"success"`
	Items   []model.CatalogItem `json:"items,omitempty"`
	Err     string              `json:"error,omitempty"`
}

// Ok wraps items in a successful Result.
func Ok(items []model.CatalogItem) Result {
	return Result{Success: true, Items: items}
}

// Fail wraps an error message in a failed Result.
func Fail(msg string) Result {
	return Result{Err: msg}
}

// Client is the catalog query collaborator.
type Client interface {
	// DiscoverByFilters returns items matching the filters.
	DiscoverByFilters(ctx context.Context, f Filters) Result

	// GetSimilar returns items similar to the given one.
	GetSimilar(ctx context.Context, externalID int, mediaType model.MediaType) Result
}

// CachedClient decorates a Client with the expiring cache. Successful
// responses are cached under deterministic request-shape keys; failures fall
// through uncached so the next call retries.
type CachedClient struct {
	inner  Client
	cache  *cache.Store
	source string
}

// NewCachedClient wraps inner with the cache. source is the key namespace
// (and thereby the TTL policy) the wrapped calls live under.
func NewCachedClient(inner Client, c *cache.Store, source string) *CachedClient {
	return &CachedClient{inner: inner, cache: c, source: source}
}

func (c *CachedClient) DiscoverByFilters(ctx context.Context, f Filters) Result {
	key := cache.Key(c.source, "discover", map[string]any{
		"media_type": string(f.MediaType),
		"genre_ids":  f.GenreIDs,
		"sort_by":    f.SortBy,
		"page":       f.Page,
	})

	var items []model.CatalogItem
	if c.cache.Get(ctx, key, &items) {
		return Ok(items)
	}

	res := c.inner.DiscoverByFilters(ctx, f)
	if res.Success {
		c.cache.Set(ctx, key, res.Items)
	}
	return res
}

func (c *CachedClient) GetSimilar(ctx context.Context, externalID int, mediaType model.MediaType) Result {
	key := cache.Key(c.source, "similar", map[string]any{
		"external_id": externalID,
		"media_type":  string(mediaType),
	})

	var items []model.CatalogItem
	if c.cache.Get(ctx, key, &items) {
		return Ok(items)
	}

	res := c.inner.GetSimilar(ctx, externalID, mediaType)
	if res.Success {
		c.cache.Set(ctx, key, res.Items)
	}
	return res
}
