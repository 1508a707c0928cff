package fetcher

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/genricoloni/nowplaying/internal/domain"
	"github.com/jellydator/ttlcache/v3"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// ArtworkResolver turns an art URI into image bytes. It never fails outward:
// every error is logged and collapsed to an empty Artwork.
type ArtworkResolver struct {
	logger *zap.Logger
	http   *HTTPFetcher
	file   *FileFetcher
	cache  *ttlcache.Cache[string, domain.Artwork] // nil when caching is disabled
}

// ResolverOptions configure an ArtworkResolver
type ResolverOptions struct {
	HTTPTimeout time.Duration
	MaxBytes    int64
	CacheTTL    time.Duration // zero disables the cache
}

// NewArtworkResolver creates a resolver for http(s) and file URIs
func NewArtworkResolver(logger *zap.Logger, fs afero.Fs, opts ResolverOptions) *ArtworkResolver {
	r := &ArtworkResolver{
		logger: logger,
		http:   NewHTTPFetcher(logger, opts.HTTPTimeout, opts.MaxBytes),
		file:   NewFileFetcher(logger, fs, opts.MaxBytes),
	}
	if opts.CacheTTL > 0 {
		r.cache = ttlcache.New[string, domain.Artwork](
			ttlcache.WithTTL[string, domain.Artwork](opts.CacheTTL),
			ttlcache.WithDisableTouchOnHit[string, domain.Artwork](),
		)
		go r.cache.Start()
	}
	return r
}

// Resolve returns the artwork behind uri, or an empty Artwork on any failure
func (r *ArtworkResolver) Resolve(ctx context.Context, uri string) domain.Artwork {
	if r.cache != nil {
		if item := r.cache.Get(uri); item != nil {
			r.logger.Debug("Artwork cache hit", zap.String("uri", uri))
			return item.Value()
		}
	}

	art, err := r.fetch(ctx, uri)
	if err != nil {
		r.logger.Debug("Artwork unavailable", zap.String("uri", uri), zap.Error(err))
		return domain.Artwork{}
	}

	// Only successes are cached so a flaky server is retried next time
	if r.cache != nil && !art.IsEmpty() {
		r.cache.Set(uri, art, ttlcache.DefaultTTL)
	}
	return art
}

// fetch dispatches on the URI scheme
func (r *ArtworkResolver) fetch(ctx context.Context, uri string) (domain.Artwork, error) {
	switch {
	case strings.HasPrefix(uri, "http://"), strings.HasPrefix(uri, "https://"):
		return r.http.Fetch(ctx, uri)
	case strings.HasPrefix(uri, "file://"):
		return r.file.Fetch(uri)
	default:
		return domain.Artwork{}, fmt.Errorf("%w: %q", domain.ErrUnsupportedScheme, uri)
	}
}

// Close stops the cache expiry goroutine
func (r *ArtworkResolver) Close() {
	if r.cache != nil {
		r.cache.Stop()
	}
}
