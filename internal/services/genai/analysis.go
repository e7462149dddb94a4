package genai

import (
	"context"
	"fmt"
	"strings"

	"github.com/Shimizu-Technology/post-insights-api/internal/apperrors"
	"github.com/Shimizu-Technology/post-insights-api/internal/models"
)

// Analyzer scores a post for engagement.
type Analyzer interface {
	Analyze(ctx context.Context, text string) (*models.AnalysisResult, error)
}

// AnalysisFailedMessage is shown to the user for any analysis failure.
const AnalysisFailedMessage = "Failed to get analysis from the AI. Please try again."

const analysisTemperature = 0.7

var analysisSchema = MustSchema("analysis.json", map[string]any{
	"type": "object",
	"properties": map[string]any{
		"engagementScore": map[string]any{"type": "number"},
		"sentiment":       map[string]any{"type": "string"},
		"suggestions": map[string]any{
			"type":  "array",
			"items": map[string]any{"type": "string"},
		},
	},
	"required": []any{"engagementScore", "sentiment", "suggestions"},
})

// AnalysisClient is the Gemini-backed Analyzer.
type AnalysisClient struct {
	client *Client
}

// NewAnalysisClient wraps a Gemini client.
func NewAnalysisClient(client *Client) *AnalysisClient {
	return &AnalysisClient{client: client}
}

// Analyze implements Analyzer. The result is returned as the model gave
// it; score range and sentiment vocabulary are not checked.
func (a *AnalysisClient) Analyze(ctx context.Context, text string) (*models.AnalysisResult, error) {
	if strings.TrimSpace(text) == "" {
		return nil, apperrors.Analysis(AnalysisFailedMessage, errEmptyText)
	}

	var result models.AnalysisResult
	if err := a.client.GenerateJSON(ctx, analysisPrompt(text), analysisSchema, analysisTemperature, &result); err != nil {
		return nil, apperrors.Analysis(AnalysisFailedMessage, err)
	}
	return &result, nil
}

func analysisPrompt(text string) string {
	return fmt.Sprintf(`Analyze the following social media post text. Provide a JSON object with your analysis.
Post: "%s"
Provide an estimated engagement score out of 10 (float), the overall sentiment (one word: Positive, Neutral, or Negative), and an array of 4 short, actionable suggestions for improvement.`, text)
}
