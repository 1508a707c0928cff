package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/genricoloni/nowplaying/internal/domain"
	"go.uber.org/zap"
)

const _defaultMaxImageSize = 10 * 1024 * 1024 // 10 MB

// readLimited reads all of r, failing instead of truncating when r holds
// more than limit bytes
func readLimited(r io.Reader, limit int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("%w: more than %d bytes", domain.ErrArtworkTooLarge, limit)
	}
	return data, nil
}

// HTTPFetcher handles downloading image data from HTTP/HTTPS URLs
type HTTPFetcher struct {
	logger   *zap.Logger
	client   *http.Client
	maxBytes int64
}

// NewHTTPFetcher creates a new HTTP-based fetcher instance
func NewHTTPFetcher(logger *zap.Logger, timeout time.Duration, maxBytes int64) *HTTPFetcher {
	if maxBytes <= 0 {
		maxBytes = _defaultMaxImageSize
	}
	return &HTTPFetcher{
		logger: logger,
		client: &http.Client{
			Timeout: timeout, // Bounds how long a song change can stall the watcher
		},
		maxBytes: maxBytes,
	}
}

// Fetch downloads image data from the given URL together with the
// Content-Type the server declared. An empty declaration is sniffed.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (domain.Artwork, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return domain.Artwork{}, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", "nowplayingDaemon/1.0")

	resp, err := f.client.Do(req)
	if err != nil {
		return domain.Artwork{}, fmt.Errorf("network error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return domain.Artwork{}, fmt.Errorf("%w: %d", domain.ErrArtworkStatus, resp.StatusCode)
	}

	data, err := readLimited(resp.Body, f.maxBytes)
	if err != nil {
		return domain.Artwork{}, fmt.Errorf("failed to read body: %w", err)
	}

	mimeType := resp.Header.Get("Content-Type")
	if mimeType == "" && len(data) > 0 {
		mimeType = http.DetectContentType(data)
	}

	f.logger.Debug("Image fetched successfully", zap.Int("bytes", len(data)), zap.String("url", url))
	return domain.Artwork{Data: data, MimeType: mimeType}, nil
}
