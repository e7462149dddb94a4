package extraction

import (
	"context"
	"fmt"
	"time"

	"github.com/Shimizu-Technology/post-insights-api/internal/apperrors"
	"github.com/Shimizu-Technology/post-insights-api/internal/models"
)

// DemoExtractor returns canned text without parsing the file. It stands in
// for OCR/PDF parsing in demos and local development.
type DemoExtractor struct {
	// StepDelay is the pause between progress steps.
	StepDelay time.Duration
}

// Extract implements Service.
func (d DemoExtractor) Extract(ctx context.Context, file *models.UploadedFile, progress ProgressFunc) (string, error) {
	for _, p := range []int{0, 25, 50, 75} {
		report(progress, p)
		if d.StepDelay > 0 {
			select {
			case <-ctx.Done():
				return "", apperrors.Extraction("Extraction was interrupted.", ctx.Err())
			case <-time.After(d.StepDelay):
			}
		}
	}
	report(progress, 100)

	return fmt.Sprintf("Extracted text from %s: \"Just had the most amazing brunch at The Sunny Side! ☀️🥞 "+
		"The avocado toast was divine. Highly recommend this spot for a weekend treat! "+
		"#brunch #foodie #weekendvibes\"", file.Name), nil
}
