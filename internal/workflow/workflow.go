// Package workflow is the upload → extract → analyze/rewrite state machine
// behind a single user session.
//
// Phases run idle → extracting → ready. Analysis and rewriting are
// independent flags that are only meaningful in ready. Everything slow
// (extraction, model calls) runs on the worker pool; the workflow mutex
// is never held while those run.
//
// Every async task captures the epoch at dispatch. SubmitFile and Reset
// bump the epoch, so a completion from an older epoch is dropped without
// touching flags, results or the error.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/Shimizu-Technology/post-insights-api/internal/apperrors"
	"github.com/Shimizu-Technology/post-insights-api/internal/models"
	"github.com/Shimizu-Technology/post-insights-api/internal/services/extraction"
	"github.com/Shimizu-Technology/post-insights-api/internal/services/genai"
	"github.com/Shimizu-Technology/post-insights-api/internal/services/worker"
)

// ErrClosed is returned by operations on a closed workflow.
var ErrClosed = errors.New("workflow is closed")

// busyMessage is shown when the worker queue rejects a task.
const busyMessage = "The server is busy right now. Please try again."

// Dispatcher runs tasks off the caller's goroutine. *worker.Pool is the
// production implementation.
type Dispatcher interface {
	Submit(task worker.Task) error
}

// Recorder receives committed results, e.g. for a history table.
// Errors are logged and never affect the workflow.
type Recorder interface {
	RecordExtraction(ctx context.Context, sessionID string, file models.FileInfo, text string) error
	RecordAnalysis(ctx context.Context, sessionID string, file models.FileInfo, text string, result *models.AnalysisResult) error
	RecordRewrite(ctx context.Context, sessionID string, file models.FileInfo, text string, result *models.RewriteResult) error
}

// Options wires a workflow to its collaborators.
type Options struct {
	SessionID      string
	Extractor      extraction.Service
	Analyzer       genai.Analyzer
	Rewriter       genai.Rewriter
	Dispatcher     Dispatcher
	Previews       *PreviewStore
	Recorder       Recorder // optional
	MaxUploadBytes int64
	Logger         *zap.Logger

	// OnProgress observes accepted extraction progress values.
	OnProgress func(percent int)
}

// Workflow is safe for concurrent use.
type Workflow struct {
	opts Options
	log  *zap.Logger

	mu        sync.Mutex
	phase     models.Phase
	analyzing bool
	rewriting bool
	file      *models.UploadedFile
	preview   *models.Preview
	progress  int
	text      string
	analysis  *models.AnalysisResult
	rewrite   *models.RewriteResult
	err       *models.ErrorState
	theme     models.Theme
	epoch     uint64
	closed    bool
}

// New creates an idle workflow with the light theme.
func New(opts Options) *Workflow {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Workflow{
		opts:  opts,
		log:   opts.Logger.With(zap.String("session_id", opts.SessionID)),
		phase: models.PhaseIdle,
		theme: models.ThemeLight,
	}
}

// validate checks an upload before anything else happens to it.
func (w *Workflow) validate(file *models.UploadedFile) error {
	if file == nil {
		return apperrors.Validation("No file was selected.")
	}
	size := file.Size
	if size == 0 {
		size = int64(len(file.Data))
	}
	if w.opts.MaxUploadBytes > 0 && size > w.opts.MaxUploadBytes {
		return apperrors.Validation(fmt.Sprintf("File is too large. The maximum size is %s.", formatBytes(w.opts.MaxUploadBytes)))
	}
	if !extraction.Accepts(file.MediaType) {
		return apperrors.Validation("Unsupported file type. Upload a PDF or an image (JPEG, PNG, GIF, BMP, WebP).")
	}
	return nil
}

// SubmitFile replaces the current file and starts extracting it. A
// rejected file only records a validation error; the rest of the state
// and the phase stay as they were.
func (w *Workflow) SubmitFile(file *models.UploadedFile) error {
	if err := w.validate(file); err != nil {
		w.mu.Lock()
		defer w.mu.Unlock()
		if w.closed {
			return ErrClosed
		}
		w.err = errorState(err)
		w.log.Info("🚫 Upload rejected", zap.String("reason", apperrors.MessageOf(err)))
		return err
	}

	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return ErrClosed
	}
	w.epoch++
	ep := w.epoch
	w.releasePreviewLocked()
	w.clearDerivedLocked()
	w.file = file
	if w.opts.Previews != nil {
		p, err := w.opts.Previews.Allocate(file)
		if err != nil {
			w.log.Warn("⚠️  Preview unavailable", zap.Error(err))
		} else {
			w.preview = p
		}
	}
	w.phase = models.PhaseExtracting
	w.mu.Unlock()

	w.log.Info("📤 File accepted",
		zap.String("file", file.Name),
		zap.String("media_type", file.MediaType),
		zap.Int64("size", file.Size),
		zap.Uint64("epoch", ep),
	)

	err := w.opts.Dispatcher.Submit(worker.Task{
		Name: "extract:" + w.opts.SessionID,
		Run: func(ctx context.Context) {
			text, err := w.opts.Extractor.Extract(ctx, file, func(p int) { w.reportProgress(ep, p) })
			w.finishExtraction(ctx, ep, text, err)
		},
	})
	if err != nil {
		w.finishExtraction(context.Background(), ep, "", apperrors.Extraction(busyMessage, err))
	}
	return nil
}

// reportProgress keeps stored progress non-decreasing within [0, 100].
func (w *Workflow) reportProgress(ep uint64, percent int) {
	percent = max(0, min(100, percent))

	w.mu.Lock()
	if ep != w.epoch || w.phase != models.PhaseExtracting || percent < w.progress {
		w.mu.Unlock()
		return
	}
	changed := percent != w.progress
	w.progress = percent
	w.mu.Unlock()

	if changed || percent == 0 {
		w.notifyProgress(percent)
	}
}

func (w *Workflow) notifyProgress(percent int) {
	if w.opts.OnProgress != nil {
		w.opts.OnProgress(percent)
	}
}

func (w *Workflow) finishExtraction(ctx context.Context, ep uint64, text string, err error) {
	text = strings.TrimSpace(text)
	if err == nil && text == "" {
		err = apperrors.Extraction("No text could be extracted from this file.", nil)
	}
	if err != nil && apperrors.KindOf(err) != apperrors.KindExtraction {
		err = apperrors.Extraction("Text extraction failed.", err)
	}

	w.mu.Lock()
	if ep != w.epoch {
		w.mu.Unlock()
		w.log.Debug("🗑️  Dropping stale extraction result", zap.Uint64("epoch", ep))
		return
	}

	if err != nil {
		w.err = errorState(err)
		w.phase = models.PhaseIdle
		w.text = ""
		w.progress = 0
		w.file = nil
		w.releasePreviewLocked()
		w.mu.Unlock()
		w.log.Warn("❌ Extraction failed", zap.Error(err))
		return
	}

	needsFinal := w.progress < 100
	file := w.file.Info()
	w.text = text
	w.phase = models.PhaseReady
	w.progress = 0
	w.mu.Unlock()

	if needsFinal {
		w.notifyProgress(100)
	}
	w.log.Info("✅ Text extracted", zap.Int("chars", len(text)))

	if w.opts.Recorder != nil {
		if err := w.opts.Recorder.RecordExtraction(ctx, w.opts.SessionID, file, text); err != nil {
			w.log.Warn("⚠️  Failed to record extraction", zap.Error(err))
		}
	}
}

// RequestAnalysis starts engagement analysis of the extracted text. It
// returns false, changing nothing, when there is no text or an analysis
// is already running.
func (w *Workflow) RequestAnalysis() bool {
	w.mu.Lock()
	if w.closed || w.phase != models.PhaseReady || w.text == "" || w.analyzing {
		w.mu.Unlock()
		return false
	}
	w.analyzing = true
	w.analysis = nil
	w.err = nil
	ep, text := w.epoch, w.text
	w.mu.Unlock()

	w.log.Info("📊 Analysis requested", zap.Uint64("epoch", ep))

	err := w.opts.Dispatcher.Submit(worker.Task{
		Name: "analyze:" + w.opts.SessionID,
		Run: func(ctx context.Context) {
			res, err := w.opts.Analyzer.Analyze(ctx, text)
			w.finishAnalysis(ctx, ep, res, err)
		},
	})
	if err != nil {
		w.finishAnalysis(context.Background(), ep, nil, apperrors.Analysis(busyMessage, err))
	}
	return true
}

func (w *Workflow) finishAnalysis(ctx context.Context, ep uint64, res *models.AnalysisResult, err error) {
	if err == nil && res == nil {
		err = errors.New("analyzer returned no result")
	}
	if err != nil && apperrors.KindOf(err) != apperrors.KindAnalysis {
		err = apperrors.Analysis(genai.AnalysisFailedMessage, err)
	}

	w.mu.Lock()
	if ep != w.epoch {
		w.mu.Unlock()
		w.log.Debug("🗑️  Dropping stale analysis result", zap.Uint64("epoch", ep))
		return
	}
	w.analyzing = false
	if err != nil {
		w.err = errorState(err)
		w.mu.Unlock()
		w.log.Warn("❌ Analysis failed", zap.Error(err))
		return
	}
	w.analysis = res
	if w.err != nil && w.err.Kind == string(apperrors.KindAnalysis) {
		w.err = nil
	}
	file, text := w.file.Info(), w.text
	w.mu.Unlock()

	w.log.Info("✅ Analysis ready", zap.Float64("score", res.EngagementScore), zap.String("sentiment", res.Sentiment))
	if w.opts.Recorder != nil {
		if err := w.opts.Recorder.RecordAnalysis(ctx, w.opts.SessionID, file, text, res); err != nil {
			w.log.Warn("⚠️  Failed to record analysis", zap.Error(err))
		}
	}
}

// RequestRewrite starts tone rewriting of the extracted text. Same rules
// as RequestAnalysis, with its own flag and result.
func (w *Workflow) RequestRewrite() bool {
	w.mu.Lock()
	if w.closed || w.phase != models.PhaseReady || w.text == "" || w.rewriting {
		w.mu.Unlock()
		return false
	}
	w.rewriting = true
	w.rewrite = nil
	w.err = nil
	ep, text := w.epoch, w.text
	w.mu.Unlock()

	w.log.Info("✍️  Rewrite requested", zap.Uint64("epoch", ep))

	err := w.opts.Dispatcher.Submit(worker.Task{
		Name: "rewrite:" + w.opts.SessionID,
		Run: func(ctx context.Context) {
			res, err := w.opts.Rewriter.Rewrite(ctx, text)
			w.finishRewrite(ctx, ep, res, err)
		},
	})
	if err != nil {
		w.finishRewrite(context.Background(), ep, nil, apperrors.Rewrite(busyMessage, err))
	}
	return true
}

func (w *Workflow) finishRewrite(ctx context.Context, ep uint64, res *models.RewriteResult, err error) {
	if err == nil && res == nil {
		err = errors.New("rewriter returned no result")
	}
	if err != nil && apperrors.KindOf(err) != apperrors.KindRewrite {
		err = apperrors.Rewrite(genai.RewriteFailedMessage, err)
	}

	w.mu.Lock()
	if ep != w.epoch {
		w.mu.Unlock()
		w.log.Debug("🗑️  Dropping stale rewrite result", zap.Uint64("epoch", ep))
		return
	}
	w.rewriting = false
	if err != nil {
		w.err = errorState(err)
		w.mu.Unlock()
		w.log.Warn("❌ Rewrite failed", zap.Error(err))
		return
	}
	w.rewrite = res
	if w.err != nil && w.err.Kind == string(apperrors.KindRewrite) {
		w.err = nil
	}
	file, text := w.file.Info(), w.text
	w.mu.Unlock()

	w.log.Info("✅ Rewrites ready")
	if w.opts.Recorder != nil {
		if err := w.opts.Recorder.RecordRewrite(ctx, w.opts.SessionID, file, text, res); err != nil {
			w.log.Warn("⚠️  Failed to record rewrite", zap.Error(err))
		}
	}
}

// Reset returns to idle, dropping the file and every result. The theme
// is kept. In-flight work is not cancelled; its results are discarded.
func (w *Workflow) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.resetLocked()
	w.log.Info("🔄 Workflow reset", zap.Uint64("epoch", w.epoch))
}

// Close resets the workflow for good. Used when a session ends.
func (w *Workflow) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	w.resetLocked()
	w.closed = true
}

func (w *Workflow) resetLocked() {
	w.epoch++
	w.releasePreviewLocked()
	w.clearDerivedLocked()
	w.file = nil
	w.phase = models.PhaseIdle
}

// clearDerivedLocked drops everything derived from the current file.
func (w *Workflow) clearDerivedLocked() {
	w.text = ""
	w.analysis = nil
	w.rewrite = nil
	w.err = nil
	w.analyzing = false
	w.rewriting = false
	w.progress = 0
}

func (w *Workflow) releasePreviewLocked() {
	if w.preview != nil && w.opts.Previews != nil {
		w.opts.Previews.Release(w.preview.ID)
	}
	w.preview = nil
}

// ToggleTheme flips between light and dark and returns the new theme.
func (w *Workflow) ToggleTheme() models.Theme {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.theme == models.ThemeDark {
		w.theme = models.ThemeLight
	} else {
		w.theme = models.ThemeDark
	}
	return w.theme
}

// SetTheme sets the theme explicitly.
func (w *Workflow) SetTheme(theme models.Theme) error {
	if theme != models.ThemeLight && theme != models.ThemeDark {
		return apperrors.Validation(fmt.Sprintf("Unknown theme %q.", theme))
	}
	w.mu.Lock()
	w.theme = theme
	w.mu.Unlock()
	return nil
}

// Snapshot returns a deep copy of the current state.
func (w *Workflow) Snapshot() models.WorkflowState {
	w.mu.Lock()
	defer w.mu.Unlock()

	s := models.WorkflowState{
		Phase:         w.phase,
		Analyzing:     w.analyzing,
		Rewriting:     w.rewriting,
		Progress:      w.progress,
		ExtractedText: w.text,
		Analysis:      w.analysis.Clone(),
		Theme:         w.theme,
		Epoch:         w.epoch,
	}
	if w.file != nil {
		info := w.file.Info()
		s.File = &info
	}
	if w.preview != nil {
		p := *w.preview
		s.Preview = &p
	}
	if w.rewrite != nil {
		r := *w.rewrite
		s.Rewrite = &r
	}
	if w.err != nil {
		e := *w.err
		s.Error = &e
	}
	return s
}

// RewriteVariant returns the rewritten text for a tone.
func (w *Workflow) RewriteVariant(tone string) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.rewrite == nil {
		return "", apperrors.Validation("No rewrites are available yet.")
	}
	text, ok := w.rewrite.Variant(strings.ToLower(tone))
	if !ok {
		return "", apperrors.Validation(fmt.Sprintf("Unknown tone %q.", tone))
	}
	return text, nil
}

// PreviewID returns the current preview handle id, if any.
func (w *Workflow) PreviewID() (string, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.preview == nil {
		return "", false
	}
	return w.preview.ID, true
}

func errorState(err error) *models.ErrorState {
	return &models.ErrorState{Kind: string(apperrors.KindOf(err)), Message: apperrors.MessageOf(err)}
}

func formatBytes(n int64) string {
	if n >= 1<<20 && n%(1<<20) == 0 {
		return fmt.Sprintf("%d MB", n>>20)
	}
	if n >= 1<<10 && n%(1<<10) == 0 {
		return fmt.Sprintf("%d KB", n>>10)
	}
	return fmt.Sprintf("%d bytes", n)
}
