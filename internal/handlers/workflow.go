// workflow.go exposes the upload → extract → analyze/rewrite workflow of
// the caller's session.
//
//   POST /api/v1/session/file           upload a PDF or image (field "file")
//   POST /api/v1/session/analysis       start engagement analysis
//   POST /api/v1/session/rewrite        start tone rewrites
//   POST /api/v1/session/reset          back to idle
//   GET  /api/v1/session/preview        the uploaded file, for display
//   GET  /api/v1/session/rewrite/:tone  one rewrite as text/plain
//   POST /api/v1/session/theme          toggle or set light/dark
package handlers

import (
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Shimizu-Technology/post-insights-api/internal/apperrors"
	"github.com/Shimizu-Technology/post-insights-api/internal/middleware"
	"github.com/Shimizu-Technology/post-insights-api/internal/models"
	"github.com/Shimizu-Technology/post-insights-api/internal/services/extraction"
	"github.com/Shimizu-Technology/post-insights-api/internal/workflow"
)

// multipartOverhead is allowed on top of the upload limit for headers and
// boundaries, so an oversized file is still parsed far enough to be
// rejected by its declared size.
const multipartOverhead = 1 << 20

// maxRequestBytes caps the request body. Bodies above it are cut off
// without reading the file.
func (h *Handler) maxRequestBytes() int64 {
	return 2*h.MaxUploadBytes + multipartOverhead
}

// UploadFile accepts a file and starts text extraction.
// POST /api/v1/session/file
func (h *Handler) UploadFile(c *gin.Context) {
	wf := middleware.GetSession(c).Workflow
	if h.MaxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxRequestBytes())
	}

	header, err := c.FormFile("file")
	if err != nil {
		if isBodyTooLarge(err) {
			h.rejectUpload(c, wf, &models.UploadedFile{Size: max(c.Request.ContentLength, h.MaxUploadBytes+1)})
			return
		}
		respondError(c, http.StatusBadRequest, "invalid_request", "No file provided. Upload a file with the field name 'file'.")
		return
	}

	name := filepath.Base(header.Filename)
	declared := extraction.NormalizeMediaType(header.Header.Get("Content-Type"))

	// Go Pattern: check the cheap thing first. An oversized file is
	// rejected on its declared size without reading it.
	if h.MaxUploadBytes > 0 && header.Size > h.MaxUploadBytes {
		h.rejectUpload(c, wf, &models.UploadedFile{Name: name, MediaType: declared, Size: header.Size})
		return
	}

	f, err := header.Open()
	if err != nil {
		respondError(c, http.StatusBadRequest, "read_error", "Failed to read uploaded file")
		return
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		respondError(c, http.StatusBadRequest, "read_error", "Failed to read uploaded file")
		return
	}

	file := &models.UploadedFile{
		Name:      name,
		MediaType: detectMediaType(declared, data),
		Size:      int64(len(data)),
		Data:      data,
	}

	if err := wf.SubmitFile(file); err != nil {
		h.respondUploadError(c, err, false)
		return
	}

	c.JSON(http.StatusAccepted, models.ActionResponse{Started: true, State: wf.Snapshot()})
}

// rejectUpload hands an oversized file to the workflow so
// the rejection shows up in its state, then writes the error response.
func (h *Handler) rejectUpload(c *gin.Context, wf *workflow.Workflow, file *models.UploadedFile) {
	h.respondUploadError(c, wf.SubmitFile(file), true)
}

// respondUploadError maps a SubmitFile error to a status code.
func (h *Handler) respondUploadError(c *gin.Context, err error, oversized bool) {
	switch {
	case errors.Is(err, workflow.ErrClosed):
		respondError(c, http.StatusGone, "session_ended", "This session has ended. Create a new one.")
	case oversized && apperrors.Is(err, apperrors.KindValidation):
		respondError(c, http.StatusRequestEntityTooLarge, string(apperrors.KindValidation), apperrors.MessageOf(err))
	case apperrors.Is(err, apperrors.KindValidation):
		respondError(c, http.StatusBadRequest, string(apperrors.KindValidation), apperrors.MessageOf(err))
	default:
		h.Log.Error("❌ Upload failed", zap.Error(err))
		respondError(c, http.StatusInternalServerError, "internal_error", "Failed to accept the file")
	}
}

func isBodyTooLarge(err error) bool {
	var mbe *http.MaxBytesError
	return errors.As(err, &mbe) || strings.Contains(err.Error(), "request body too large")
}

// detectMediaType trusts the declared type unless it is missing or
// generic, then sniffs the content.
func detectMediaType(declared string, data []byte) string {
	if declared != "" && declared != "application/octet-stream" {
		return declared
	}
	return extraction.NormalizeMediaType(mimetype.Detect(data).String())
}

// RequestAnalysis starts engagement analysis.
// POST /api/v1/session/analysis
func (h *Handler) RequestAnalysis(c *gin.Context) {
	wf := middleware.GetSession(c).Workflow
	respondAction(c, wf.RequestAnalysis(), wf)
}

// RequestRewrite starts tone rewriting.
// POST /api/v1/session/rewrite
func (h *Handler) RequestRewrite(c *gin.Context) {
	wf := middleware.GetSession(c).Workflow
	respondAction(c, wf.RequestRewrite(), wf)
}

// respondAction reports 202 when the action started and 409 when it was a
// no-op (no extracted text yet, or already running).
func respondAction(c *gin.Context, started bool, wf *workflow.Workflow) {
	status := http.StatusAccepted
	if !started {
		status = http.StatusConflict
	}
	c.JSON(status, models.ActionResponse{Started: started, State: wf.Snapshot()})
}

// Reset returns the workflow to idle.
// POST /api/v1/session/reset
func (h *Handler) Reset(c *gin.Context) {
	wf := middleware.GetSession(c).Workflow
	wf.Reset()
	c.JSON(http.StatusOK, wf.Snapshot())
}

// GetPreview serves the uploaded file of the current workflow.
// GET /api/v1/session/preview
func (h *Handler) GetPreview(c *gin.Context) {
	wf := middleware.GetSession(c).Workflow

	id, ok := wf.PreviewID()
	if !ok {
		respondError(c, http.StatusNotFound, "not_found", "No file has been uploaded")
		return
	}

	f, mediaType, name, err := h.Previews.Open(id)
	if err != nil {
		// Released between the lookup and the open: the file was replaced.
		respondError(c, http.StatusNotFound, "not_found", "No file has been uploaded")
		return
	}
	defer f.Close()

	c.Header("Content-Type", mediaType)
	c.Header("Content-Disposition", `inline; filename="`+sanitizeFilename(name)+`"`)
	c.Header("Cache-Control", "private, no-store")
	http.ServeContent(c.Writer, c.Request, name, time.Time{}, f)
}

// GetRewriteVariant returns one rewrite as plain text, ready to copy.
// GET /api/v1/session/rewrite/:tone
func (h *Handler) GetRewriteVariant(c *gin.Context) {
	wf := middleware.GetSession(c).Workflow

	text, err := wf.RewriteVariant(c.Param("tone"))
	if err != nil {
		respondError(c, http.StatusNotFound, "not_found", apperrors.MessageOf(err))
		return
	}
	c.String(http.StatusOK, text)
}

// SetTheme toggles the theme, or sets it when the body names one.
// POST /api/v1/session/theme
func (h *Handler) SetTheme(c *gin.Context) {
	wf := middleware.GetSession(c).Workflow

	var req models.SetThemeRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			respondError(c, http.StatusBadRequest, "invalid_request", "Theme must be 'light' or 'dark'")
			return
		}
	}

	if req.Theme == "" {
		wf.ToggleTheme()
	} else if err := wf.SetTheme(req.Theme); err != nil {
		respondError(c, http.StatusBadRequest, "invalid_request", apperrors.MessageOf(err))
		return
	}
	c.JSON(http.StatusOK, wf.Snapshot())
}
