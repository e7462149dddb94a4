// export.go downloads the session's results as a report.
//
// Supported formats:
//   - txt:  extracted text followed by analysis and rewrites
//   - md:   Markdown with a file metadata table
//   - json: the raw results for programmatic use
//
// Go Pattern: Each export format is its own function. Adding a format is
// one case in the switch and one formatter.
package handlers

import (
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Shimizu-Technology/post-insights-api/internal/middleware"
	"github.com/Shimizu-Technology/post-insights-api/internal/models"
)

// ExportReport exports the current results in the requested format.
// GET /api/v1/session/export?format=txt|md|json
func (h *Handler) ExportReport(c *gin.Context) {
	format := c.DefaultQuery("format", "txt")

	validFormats := map[string]bool{"txt": true, "md": true, "json": true}
	if !validFormats[format] {
		respondError(c, http.StatusBadRequest, "invalid_format", "Supported formats: txt, md, json")
		return
	}

	state := middleware.GetSession(c).Workflow.Snapshot()
	if state.Phase != models.PhaseReady {
		respondError(c, http.StatusNotFound, "not_ready", "Nothing to export until text has been extracted")
		return
	}

	filename := reportFilename(state.File)
	switch format {
	case "txt":
		c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.txt"`, filename))
		c.Data(http.StatusOK, "text/plain; charset=utf-8", []byte(renderText(state)))
	case "md":
		c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.md"`, filename))
		c.Data(http.StatusOK, "text/markdown; charset=utf-8", []byte(renderMarkdown(state, time.Now())))
	case "json":
		exportJSON(c, state, filename)
	}
}

// renderText returns the report as plain text.
func renderText(s models.WorkflowState) string {
	var sb strings.Builder
	sb.WriteString(s.ExtractedText)
	sb.WriteString("\n")

	if s.Analysis != nil {
		sb.WriteString("\nENGAGEMENT ANALYSIS\n")
		fmt.Fprintf(&sb, "Score: %s/10\n", formatScore(s.Analysis.EngagementScore))
		fmt.Fprintf(&sb, "Sentiment: %s\n", s.Analysis.Sentiment)
		for _, suggestion := range s.Analysis.Suggestions {
			fmt.Fprintf(&sb, "- %s\n", suggestion)
		}
	}

	if s.Rewrite != nil {
		sb.WriteString("\nREWRITES\n")
		for _, tone := range models.Tones {
			text, _ := s.Rewrite.Variant(tone)
			fmt.Fprintf(&sb, "[%s]\n%s\n\n", tone, text)
		}
	}
	return sb.String()
}

// renderMarkdown returns the report as Markdown with a metadata header.
func renderMarkdown(s models.WorkflowState, now time.Time) string {
	var sb strings.Builder

	title := "Post"
	if s.File != nil && s.File.Name != "" {
		title = s.File.Name
	}
	words := len(strings.Fields(s.ExtractedText))

	fmt.Fprintf(&sb, "# %s\n\n", title)
	sb.WriteString("| Field | Value |\n")
	sb.WriteString("|-------|-------|\n")
	if s.File != nil {
		fmt.Fprintf(&sb, "| Type | %s |\n", s.File.MediaType)
		fmt.Fprintf(&sb, "| Size | %s |\n", humanSize(s.File.Size))
	}
	fmt.Fprintf(&sb, "| Words | %d |\n", words)
	fmt.Fprintf(&sb, "| Exported | %s |\n", now.Format("2006-01-02 15:04:05 MST"))
	sb.WriteString("\n---\n\n")
	sb.WriteString("## Extracted Text\n\n")
	sb.WriteString(s.ExtractedText)
	sb.WriteString("\n")

	if s.Analysis != nil {
		sb.WriteString("\n## Engagement Analysis\n\n")
		fmt.Fprintf(&sb, "**Score:** %s/10  \n", formatScore(s.Analysis.EngagementScore))
		fmt.Fprintf(&sb, "**Sentiment:** %s\n\n", s.Analysis.Sentiment)
		for _, suggestion := range s.Analysis.Suggestions {
			fmt.Fprintf(&sb, "- %s\n", suggestion)
		}
	}

	if s.Rewrite != nil {
		sb.WriteString("\n## Rewrites\n")
		for _, tone := range models.Tones {
			text, _ := s.Rewrite.Variant(tone)
			fmt.Fprintf(&sb, "\n### %s\n\n%s\n", strings.ToUpper(tone[:1])+tone[1:], text)
		}
	}
	return sb.String()
}

// exportJSON returns the results as indented JSON.
func exportJSON(c *gin.Context, s models.WorkflowState, filename string) {
	exportData := map[string]interface{}{
		"file":           s.File,
		"extracted_text": s.ExtractedText,
		"word_count":     len(strings.Fields(s.ExtractedText)),
		"reading_time":   fmt.Sprintf("%d min", int(math.Ceil(float64(len(strings.Fields(s.ExtractedText)))/200.0))),
		"analysis":       s.Analysis,
		"rewrite":        s.Rewrite,
	}

	jsonBytes, err := json.MarshalIndent(exportData, "", "  ")
	if err != nil {
		respondError(c, http.StatusInternalServerError, "export_error", "Failed to generate JSON export")
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.json"`, filename))
	c.Data(http.StatusOK, "application/json; charset=utf-8", jsonBytes)
}

// --- Helper Functions ---

// reportFilename names the download after the uploaded file.
func reportFilename(file *models.FileInfo) string {
	name := ""
	if file != nil {
		name = strings.TrimSuffix(file.Name, filepath.Ext(file.Name))
	}
	name = sanitizeFilename(name)
	if name == "" {
		return "post-insights"
	}
	return name + "-insights"
}

// formatScore prints a score with at most one decimal.
func formatScore(score float64) string {
	if score == math.Trunc(score) {
		return fmt.Sprintf("%.0f", score)
	}
	return fmt.Sprintf("%.1f", score)
}

// humanSize converts bytes to a short human-readable size.
func humanSize(n int64) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(n)/(1<<10))
	}
	return fmt.Sprintf("%d B", n)
}

// sanitizeFilename removes characters that aren't safe for filenames.
// Go Pattern: Keep it simple. Unsafe characters become hyphens and the
// result is trimmed; it only ever lands in a Content-Disposition header.
func sanitizeFilename(name string) string {
	replacer := strings.NewReplacer(
		"/", "-", "\\", "-", ":", "-", "*", "-",
		"?", "-", "\"", "-", "<", "-", ">", "-",
		"|", "-", "\n", " ", "\r", "",
	)
	name = replacer.Replace(name)

	// Collapse multiple hyphens/spaces
	for strings.Contains(name, "  ") {
		name = strings.ReplaceAll(name, "  ", " ")
	}
	for strings.Contains(name, "--") {
		name = strings.ReplaceAll(name, "--", "-")
	}

	name = strings.TrimSpace(name)

	if len(name) > 100 {
		name = name[:100]
	}
	return name
}
