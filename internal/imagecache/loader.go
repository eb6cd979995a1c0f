package imagecache

import (
	"context"
	"fmt"

	"github.com/oaktrail/treetrack/internal/logging"
)

// Fetcher downloads an image by absolute URL. The remote gateway satisfies
// this.
type Fetcher interface {
	FetchImage(ctx context.Context, url string) ([]byte, error)
}

// Loader consults the cache before any network image fetch. Fetched images
// are downscaled to thumbnail size and stored back, best effort: a cache
// write failure is logged, never surfaced.
type Loader struct {
	cache   *Cache
	fetcher Fetcher
	thumbPx uint
	log     logging.Logger
}

// NewLoader returns a Loader that bounds cached entries to thumbPx pixels
// per side.
func NewLoader(cache *Cache, fetcher Fetcher, thumbPx uint, log logging.Logger) *Loader {
	return &Loader{cache: cache, fetcher: fetcher, thumbPx: thumbPx, log: log}
}

// Load returns the image for url, from cache when possible.
func (l *Loader) Load(ctx context.Context, url string) ([]byte, error) {
	if data, ok := l.cache.Get(ctx, url); ok {
		return data, nil
	}

	data, err := l.fetcher.FetchImage(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch image: %w", err)
	}

	thumb, err := Thumbnail(data, l.thumbPx)
	if err != nil {
		// not decodable as an image; cache the raw bytes as-is
		thumb = data
	}
	if err := l.cache.Put(ctx, url, thumb); err != nil {
		l.log.Warn(ctx, "failed to cache image", "url", url, "error", err)
	}
	return thumb, nil
}
