package fetcher

import (
	"fmt"
	"mime"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/genricoloni/nowplaying/internal/domain"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// FileFetcher reads artwork referenced by file:// URIs
type FileFetcher struct {
	logger   *zap.Logger
	fs       afero.Fs
	maxBytes int64
}

// NewFileFetcher creates a fetcher reading from fs
func NewFileFetcher(logger *zap.Logger, fs afero.Fs, maxBytes int64) *FileFetcher {
	if maxBytes <= 0 {
		maxBytes = _defaultMaxImageSize
	}
	return &FileFetcher{logger: logger, fs: fs, maxBytes: maxBytes}
}

// Fetch reads the file behind uri. The MIME type is guessed from the
// extension, then from the content.
func (f *FileFetcher) Fetch(uri string) (domain.Artwork, error) {
	path := filePath(uri)

	file, err := f.fs.Open(path)
	if err != nil {
		return domain.Artwork{}, fmt.Errorf("open artwork: %w", err)
	}
	defer file.Close()

	data, err := readLimited(file, f.maxBytes)
	if err != nil {
		return domain.Artwork{}, fmt.Errorf("read artwork: %w", err)
	}

	mimeType := mime.TypeByExtension(strings.ToLower(filepath.Ext(path)))
	if mimeType == "" && len(data) > 0 {
		mimeType = http.DetectContentType(data)
	}

	f.logger.Debug("Image read successfully", zap.Int("bytes", len(data)), zap.String("path", path))
	return domain.Artwork{Data: data, MimeType: mimeType}, nil
}

// filePath strips the scheme and an optional localhost authority, then
// undoes percent-encoding, which players apply to spaces and non-ASCII names
func filePath(uri string) string {
	path := strings.TrimPrefix(uri, "file://")
	if rest, ok := strings.CutPrefix(path, "localhost/"); ok {
		path = "/" + rest
	}
	if unescaped, err := url.PathUnescape(path); err == nil {
		path = unescaped
	}
	return filepath.Clean(path)
}
