package processor

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"  // GIF format support
	_ "image/jpeg" // JPEG format support
	_ "image/png"  // PNG format support

	"github.com/disintegration/imaging"
	"github.com/genricoloni/nowplaying/internal/domain"
	"go.uber.org/zap"
)

const jpegQuality = 90

// ResizeProcessor shrinks artwork so its longest side fits MaxDimension.
// Smaller images and anything it cannot decode pass through untouched.
type ResizeProcessor struct {
	logger       *zap.Logger
	maxDimension int // zero disables resizing
}

// NewResizeProcessor creates a new artwork downscaler
func NewResizeProcessor(logger *zap.Logger, maxDimension int) *ResizeProcessor {
	return &ResizeProcessor{
		logger:       logger,
		maxDimension: maxDimension,
	}
}

// Process resizes the artwork if it exceeds the bound.
// JPEG input is re-encoded as JPEG, everything else as PNG.
func (p *ResizeProcessor) Process(ctx context.Context, art domain.Artwork) (domain.Artwork, error) {
	if p.maxDimension <= 0 || art.IsEmpty() {
		return art, nil
	}

	// 1. Decode image from bytes
	img, format, err := image.Decode(bytes.NewReader(art.Data))
	if err != nil {
		return art, fmt.Errorf("failed to decode image: %w", err)
	}

	// Validate image dimensions to prevent division by zero
	bounds := img.Bounds()
	if bounds.Dy() == 0 || bounds.Dx() == 0 {
		return art, fmt.Errorf("invalid image dimensions: %dx%d", bounds.Dx(), bounds.Dy())
	}

	if bounds.Dx() <= p.maxDimension && bounds.Dy() <= p.maxDimension {
		return art, nil
	}

	// 2. Fit inside the bounding square, keeping the aspect ratio
	p.logger.Debug("Resizing artwork",
		zap.Int("w", bounds.Dx()),
		zap.Int("h", bounds.Dy()),
		zap.Int("max", p.maxDimension))
	resized := imaging.Fit(img, p.maxDimension, p.maxDimension, imaging.Lanczos)

	// 3. Encode result (in-memory buffer)
	out := domain.Artwork{MimeType: "image/png"}
	encodeFormat := imaging.PNG
	if format == "jpeg" {
		out.MimeType = "image/jpeg"
		encodeFormat = imaging.JPEG
	}

	buf := new(bytes.Buffer)
	if err := imaging.Encode(buf, resized, encodeFormat, imaging.JPEGQuality(jpegQuality)); err != nil {
		return art, fmt.Errorf("failed to encode result: %w", err)
	}
	out.Data = buf.Bytes()

	p.logger.Debug("Artwork resized", zap.Int("bytes", len(out.Data)), zap.String("mime", out.MimeType))
	return out, nil
}
