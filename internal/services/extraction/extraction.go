// Package extraction turns an uploaded file into plain text.
//
// Two real variants exist: PDFs are parsed page by page with the pure-Go
// ledongthuc/pdf library, and images are run through the tesseract OCR
// binary. A demo variant returns canned text so the whole workflow can run
// without either. The Router picks a variant from the file's media type.
//
// Contract: Extract returns non-empty trimmed text or an extraction error,
// never an empty success.
package extraction

import (
	"context"
	"fmt"
	"mime"
	"strings"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/Shimizu-Technology/post-insights-api/internal/apperrors"
	"github.com/Shimizu-Technology/post-insights-api/internal/models"
)

// ProgressFunc receives extraction progress as a percentage in [0, 100].
type ProgressFunc func(percent int)

// Service extracts text from a file.
type Service interface {
	Extract(ctx context.Context, file *models.UploadedFile, progress ProgressFunc) (string, error)
}

// Media types accepted for upload.
const (
	MediaTypePDF  = "application/pdf"
	MediaTypeJPEG = "image/jpeg"
	MediaTypePNG  = "image/png"
	MediaTypeGIF  = "image/gif"
	MediaTypeBMP  = "image/bmp"
	MediaTypeWebP = "image/webp"
)

// AcceptedMediaTypes lists every media type the service can extract.
var AcceptedMediaTypes = []string{
	MediaTypeJPEG, MediaTypePNG, MediaTypeGIF, MediaTypeBMP, MediaTypeWebP, MediaTypePDF,
}

// NormalizeMediaType strips parameters and lower-cases a media type.
// "image/PNG; charset=binary" becomes "image/png".
func NormalizeMediaType(mediaType string) string {
	mt, _, err := mime.ParseMediaType(mediaType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(mediaType))
	}
	return mt
}

// Accepts reports whether the media type is one we can extract.
func Accepts(mediaType string) bool {
	return lo.Contains(AcceptedMediaTypes, NormalizeMediaType(mediaType))
}

// IsImage reports whether the media type is an accepted image type.
func IsImage(mediaType string) bool {
	mt := NormalizeMediaType(mediaType)
	return strings.HasPrefix(mt, "image/") && Accepts(mt)
}

// Router dispatches to the image or document extractor by media type.
type Router struct {
	Image    Service
	Document Service
	log      *zap.Logger
}

// NewRouter creates a router over the two variants.
func NewRouter(image, document Service, log *zap.Logger) *Router {
	if log == nil {
		log = zap.NewNop()
	}
	return &Router{Image: image, Document: document, log: log}
}

// Extract implements Service.
func (r *Router) Extract(ctx context.Context, file *models.UploadedFile, progress ProgressFunc) (string, error) {
	mt := NormalizeMediaType(file.MediaType)

	var svc Service
	switch {
	case mt == MediaTypePDF:
		svc = r.Document
	case IsImage(mt):
		svc = r.Image
	default:
		return "", apperrors.Extraction(fmt.Sprintf("Unsupported file type %q.", file.MediaType), nil)
	}

	r.log.Debug("🔎 Extracting text", zap.String("file", file.Name), zap.String("media_type", mt))
	return svc.Extract(ctx, file, progress)
}

// report calls progress if it is non-nil.
func report(progress ProgressFunc, percent int) {
	if progress != nil {
		progress(percent)
	}
}

// finish enforces the contract on a raw result: trimmed, non-empty.
func finish(text, emptyMessage string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", apperrors.Extraction(emptyMessage, nil)
	}
	return text, nil
}
