// Package models defines the data structures used throughout the application.
//
// Go Pattern: Models are plain structs with JSON tags for serialization.
// The workflow owns the live state; what leaves the package is always a
// snapshot copy built from these types.
package models

import (
	"encoding/json"
	"time"
)

// Phase is the coarse-grained state of the upload/extraction pipeline.
// Go Pattern: We use string constants instead of enums (Go doesn't have enums).
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseExtracting Phase = "extracting"
	PhaseReady      Phase = "ready"
)

// Theme is the user's display preference, kept with the rest of the
// session state rather than in a global.
type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

// Tone labels for rewrites.
const (
	ToneCasual       = "casual"
	ToneProfessional = "professional"
	ToneExcited      = "excited"
)

// Tones lists every rewrite tone in display order.
var Tones = []string{ToneCasual, ToneProfessional, ToneExcited}

// UploadedFile is a user-selected file. It is never mutated after creation.
type UploadedFile struct {
	Name      string
	MediaType string
	Size      int64
	Data      []byte
}

// FileInfo is the metadata of an UploadedFile that is safe to render.
type FileInfo struct {
	Name      string `json:"name"`
	MediaType string `json:"media_type"`
	Size      int64  `json:"size"`
}

// Info returns the file's metadata.
func (f *UploadedFile) Info() FileInfo {
	return FileInfo{Name: f.Name, MediaType: f.MediaType, Size: f.Size}
}

// AnalysisResult is the engagement analysis returned by the model.
// Field names match the response schema so the payload decodes verbatim.
type AnalysisResult struct {
	EngagementScore float64  `json:"engagementScore"`
	Sentiment       string   `json:"sentiment"`
	Suggestions     []string `json:"suggestions"`
}

// Clone returns a deep copy.
func (a *AnalysisResult) Clone() *AnalysisResult {
	if a == nil {
		return nil
	}
	c := *a
	c.Suggestions = append([]string(nil), a.Suggestions...)
	return &c
}

// RewriteResult holds one rewritten variant per tone.
type RewriteResult struct {
	Casual       string `json:"casual"`
	Professional string `json:"professional"`
	Excited      string `json:"excited"`
}

// Variant returns the text for a tone label.
func (r *RewriteResult) Variant(tone string) (string, bool) {
	switch tone {
	case ToneCasual:
		return r.Casual, true
	case ToneProfessional:
		return r.Professional, true
	case ToneExcited:
		return r.Excited, true
	}
	return "", false
}

// Preview identifies the transient preview handle of the current file.
type Preview struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// ErrorState is the single user-visible error. Most recent wins.
type ErrorState struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// WorkflowState is a point-in-time snapshot of a workflow.
type WorkflowState struct {
	Phase         Phase           `json:"phase"`
	Analyzing     bool            `json:"analyzing"`
	Rewriting     bool            `json:"rewriting"`
	File          *FileInfo       `json:"file,omitempty"`
	Preview       *Preview        `json:"preview,omitempty"`
	Progress      int             `json:"progress"` // 0-100, only meaningful while extracting
	ExtractedText string          `json:"extracted_text"`
	Analysis      *AnalysisResult `json:"analysis"`
	Rewrite       *RewriteResult  `json:"rewrite"`
	Error         *ErrorState     `json:"error"`
	Theme         Theme           `json:"theme"`
	Epoch         uint64          `json:"epoch"`
}

// --- History records (optional PostgreSQL store) ---

// HistoryKind identifies what a history record holds.
type HistoryKind string

const (
	HistoryExtraction HistoryKind = "extraction"
	HistoryAnalysis   HistoryKind = "analysis"
	HistoryRewrite    HistoryKind = "rewrite"
)

// HistoryRecord is one committed workflow result.
type HistoryRecord struct {
	ID        string          `json:"id" db:"id"`
	SessionID string          `json:"session_id" db:"session_id"`
	Kind      HistoryKind     `json:"kind" db:"kind"`
	FileName  string          `json:"file_name" db:"file_name"`
	MediaType string          `json:"media_type" db:"media_type"`
	WordCount int             `json:"word_count" db:"word_count"`
	Payload   json.RawMessage `json:"payload" db:"payload"` // JSONB
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
}

// HistoryListParams filters GET /api/v1/history.
type HistoryListParams struct {
	SessionID string      `form:"-"`
	Kind      HistoryKind `form:"kind" binding:"omitempty,oneof=extraction analysis rewrite"`
	Page      int         `form:"page"`
	PerPage   int         `form:"per_page"`
}

// HistoryListResponse is one page of history records.
type HistoryListResponse struct {
	Records []HistoryRecord `json:"records"`
	Total   int             `json:"total"`
	Page    int             `json:"page"`
	PerPage int             `json:"per_page"`
}

// --- Request/Response DTOs ---

// CreateSessionResponse is returned by POST /api/v1/sessions.
type CreateSessionResponse struct {
	SessionID string        `json:"session_id"`
	Token     string        `json:"token"`
	ExpiresAt time.Time     `json:"expires_at"`
	State     WorkflowState `json:"state"`
}

// SetThemeRequest is the optional JSON body for POST /api/v1/session/theme.
type SetThemeRequest struct {
	Theme Theme `json:"theme" binding:"omitempty,oneof=light dark"`
}

// ActionResponse reports whether a workflow action started.
type ActionResponse struct {
	Started bool          `json:"started"`
	State   WorkflowState `json:"state"`
}

// ErrorResponse is a standard error format for all API errors.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// HealthResponse is returned by the health check endpoint.
type HealthResponse struct {
	Status         string `json:"status"`
	Version        string `json:"version"`
	History        string `json:"history"`
	Workers        int    `json:"workers"`
	QueuedJobs     int    `json:"queued_jobs"`
	ActiveSessions int    `json:"active_sessions"`
	AnalysisMode   string `json:"analysis_mode"`
	ExtractionMode string `json:"extraction_mode"`
}
