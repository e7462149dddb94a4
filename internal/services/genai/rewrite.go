package genai

import (
	"context"
	"fmt"
	"strings"

	"github.com/Shimizu-Technology/post-insights-api/internal/apperrors"
	"github.com/Shimizu-Technology/post-insights-api/internal/models"
)

// Rewriter produces tone variants of a post.
type Rewriter interface {
	Rewrite(ctx context.Context, text string) (*models.RewriteResult, error)
}

// RewriteFailedMessage is shown to the user for any rewrite failure.
const RewriteFailedMessage = "Failed to get rewrites from the AI. Please try again."

const rewriteTemperature = 0.8

var rewriteSchema = MustSchema("rewrite.json", map[string]any{
	"type": "object",
	"properties": map[string]any{
		"casual":       map[string]any{"type": "string"},
		"professional": map[string]any{"type": "string"},
		"excited":      map[string]any{"type": "string"},
	},
	"required": []any{"casual", "professional", "excited"},
})

// RewriteClient is the Gemini-backed Rewriter.
type RewriteClient struct {
	client *Client
}

// NewRewriteClient wraps a Gemini client.
func NewRewriteClient(client *Client) *RewriteClient {
	return &RewriteClient{client: client}
}

// Rewrite implements Rewriter.
func (r *RewriteClient) Rewrite(ctx context.Context, text string) (*models.RewriteResult, error) {
	if strings.TrimSpace(text) == "" {
		return nil, apperrors.Rewrite(RewriteFailedMessage, errEmptyText)
	}

	var result models.RewriteResult
	if err := r.client.GenerateJSON(ctx, rewritePrompt(text), rewriteSchema, rewriteTemperature, &result); err != nil {
		return nil, apperrors.Rewrite(RewriteFailedMessage, err)
	}
	return &result, nil
}

func rewritePrompt(text string) string {
	return fmt.Sprintf(`Rewrite the following social media post in three different tones: Casual, Professional, and Excited. Provide the result as a JSON object.
Original Post: "%s"`, text)
}
