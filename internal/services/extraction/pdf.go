package extraction

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
	"go.uber.org/zap"

	"github.com/Shimizu-Technology/post-insights-api/internal/apperrors"
	"github.com/Shimizu-Technology/post-insights-api/internal/models"
)

// PDFExtractor pulls the text layer out of PDF documents.
//
// We use the ledongthuc/pdf library for text extraction.
// It's a pure Go implementation, so no CGO or external binaries are needed.
type PDFExtractor struct {
	log *zap.Logger
}

// NewPDFExtractor creates a PDF extractor.
func NewPDFExtractor(log *zap.Logger) *PDFExtractor {
	if log == nil {
		log = zap.NewNop()
	}
	return &PDFExtractor{log: log}
}

// pageSource is the slice of a paged document we need. It keeps the page
// loop independent of the PDF library.
type pageSource interface {
	NumPage() int
	PageText(i int) (string, error)
}

type pdfPages struct {
	r *pdf.Reader
}

func (p pdfPages) NumPage() int { return p.r.NumPage() }

func (p pdfPages) PageText(i int) (string, error) {
	page := p.r.Page(i)
	if page.V.IsNull() {
		return "", nil
	}
	return page.GetPlainText(nil)
}

// Extract implements Service.
//
// Go Pattern: The pdf library requires an io.ReaderAt for random access to
// the PDF structure, so we wrap the in-memory upload in a bytes.Reader.
func (e *PDFExtractor) Extract(ctx context.Context, file *models.UploadedFile, progress ProgressFunc) (text string, err error) {
	// ledongthuc/pdf panics on some malformed inputs; turn that into an error.
	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = apperrors.Extraction("Could not read the PDF document.", fmt.Errorf("pdf parser panic: %v", r))
		}
	}()

	report(progress, 0)

	reader, err := pdf.NewReader(bytes.NewReader(file.Data), int64(len(file.Data)))
	if err != nil {
		return "", apperrors.Extraction("Could not open the PDF document.", err)
	}

	return extractPages(ctx, pdfPages{r: reader}, progress, e.log)
}

// extractPages walks pages 1..N in order, joining their text with line
// breaks and reporting currentPage/totalPages as progress.
func extractPages(ctx context.Context, src pageSource, progress ProgressFunc, log *zap.Logger) (string, error) {
	total := src.NumPage()
	if total == 0 {
		return "", apperrors.Extraction("The PDF document has no pages.", nil)
	}

	var b strings.Builder
	for i := 1; i <= total; i++ {
		if err := ctx.Err(); err != nil {
			return "", apperrors.Extraction("PDF extraction was interrupted.", err)
		}

		text, err := src.PageText(i)
		if err != nil {
			return "", apperrors.Extraction(fmt.Sprintf("Could not parse page %d of the PDF document.", i), err)
		}

		if i > 1 {
			b.WriteString("\n")
		}
		b.WriteString(text)

		report(progress, i*100/total)
	}

	log.Debug("📄 PDF pages extracted", zap.Int("pages", total), zap.Int("chars", b.Len()))
	return finish(b.String(), "No text could be found in the PDF document.")
}

// LooksLikePDF checks the "%PDF-" magic bytes.
func LooksLikePDF(data []byte) bool {
	return len(data) >= 5 && string(data[:5]) == "%PDF-"
}
