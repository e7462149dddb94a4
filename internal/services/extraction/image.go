package extraction

import (
	"bytes"
	"context"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Shimizu-Technology/post-insights-api/internal/apperrors"
	"github.com/Shimizu-Technology/post-insights-api/internal/models"
)

// Runner lets us stub external commands in tests.
type Runner interface {
	Run(ctx context.Context, stdin []byte, name string, args ...string) (stdout, stderr []byte, err error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct {
	Log *zap.Logger
}

// Run implements Runner.
func (r ExecRunner) Run(ctx context.Context, stdin []byte, name string, args ...string) ([]byte, []byte, error) {
	log := r.Log
	if log == nil {
		log = zap.NewNop()
	}
	start := time.Now()

	cmd := exec.CommandContext(ctx, name, args...)
	var out, errb bytes.Buffer
	cmd.Stdin = bytes.NewReader(stdin)
	cmd.Stdout = &out
	cmd.Stderr = &errb

	err := cmd.Run()
	if err != nil {
		log.Error("exec failed",
			zap.String("cmd", name),
			zap.String("args", strings.Join(args, " ")),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err),
			zap.String("stderr", truncate(errb.String(), 8<<10)),
		)
	} else {
		log.Debug("exec ok",
			zap.String("cmd", name),
			zap.Duration("duration", time.Since(start)),
			zap.Int("stdout_bytes", out.Len()),
		)
	}
	return out.Bytes(), errb.Bytes(), err
}

// ImageExtractor recognizes text in images with the tesseract CLI.
type ImageExtractor struct {
	binary string
	lang   string
	runner Runner
	log    *zap.Logger
}

// NewImageExtractor creates an OCR extractor. Empty binary/lang fall back
// to "tesseract" and "eng"; a nil runner executes the real binary.
func NewImageExtractor(binary, lang string, runner Runner, log *zap.Logger) *ImageExtractor {
	if binary == "" {
		binary = "tesseract"
	}
	if lang == "" {
		lang = "eng"
	}
	if log == nil {
		log = zap.NewNop()
	}
	if runner == nil {
		runner = ExecRunner{Log: log}
	}
	return &ImageExtractor{binary: binary, lang: lang, runner: runner, log: log}
}

// Extract implements Service.
func (e *ImageExtractor) Extract(ctx context.Context, file *models.UploadedFile, progress ProgressFunc) (string, error) {
	report(progress, 0)

	// tesseract stdin stdout -l <lang>
	out, errb, err := e.runner.Run(ctx, file.Data, e.binary, "stdin", "stdout", "-l", e.lang)
	if err != nil {
		e.log.Warn("⚠️  OCR failed", zap.String("file", file.Name), zap.String("stderr", truncate(string(errb), 512)))
		return "", apperrors.Extraction("Text recognition failed for this image.", err)
	}

	text, err := finish(normalizeOCR(string(out)), "No text could be recognized in this image.")
	if err != nil {
		return "", err
	}

	report(progress, 100)
	return text, nil
}

// normalizeOCR drops form feeds and trailing spaces tesseract leaves behind.
func normalizeOCR(s string) string {
	s = strings.ReplaceAll(s, "\f", "")
	s = strings.ReplaceAll(s, "\r\n", "\n")
	lines := strings.Split(s, "\n")
	for i, ln := range lines {
		lines[i] = strings.TrimRight(ln, " \t")
	}
	return strings.Join(lines, "\n")
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "...(truncated)"
}
